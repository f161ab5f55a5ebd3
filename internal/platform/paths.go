// Package platform resolves where sitebook keeps its config, database, and logs.
package platform

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
)

// DefaultAppName names the per-user config and data directories.
const DefaultAppName = "sitebook"

// WorkspaceDirName holds a site workspace's config and book. A directory whose
// WorkspaceDirName contains config.toml is a workspace root.
const WorkspaceDirName = ".sitebook"

const configFileName = "config.toml"

var errEmptyAppName = errors.New("empty app name")

// Paths holds the on-disk locations sitebook reads and writes.
type Paths struct {
	ConfigPath string
	EnvPath    string
	DataDir    string
	DBPath     string
	LogDir     string
	// Workspace is the site workspace root, empty for per-user paths.
	Workspace string
}

// Options tunes path resolution.
type Options struct {
	AppName string
	DevMode bool
	// WorkDir starts the workspace lookup. Empty means the process working dir.
	WorkDir string
	// NoWorkspace forces per-user paths even inside a site workspace.
	NoWorkspace bool
	// WorkspaceRoot pins the workspace root and skips the lookup.
	WorkspaceRoot string
}

// UserDirs are the per-user base directories resolved for one platform.
type UserDirs struct {
	GOOS   string
	Config string
	Data   string
	// Env carries XDG_CONFIG_HOME, XDG_DATA_HOME, APPDATA, and LOCALAPPDATA.
	Env map[string]string
}

// DefaultPaths resolves per-user paths for the default app name.
func DefaultPaths() (Paths, error) {
	return DefaultPathsWithOptions(Options{NoWorkspace: true})
}

// DefaultPathsWithOptions resolves a site workspace when one encloses WorkDir,
// and per-user paths otherwise. Dev mode suffixes the app name with "-dev" so a
// development book never touches the real one.
func DefaultPathsWithOptions(opts Options) (Paths, error) {
	appName, err := resolveAppName(opts)
	if err != nil {
		return Paths{}, err
	}
	if root := strings.TrimSpace(opts.WorkspaceRoot); root != "" {
		return WorkspacePaths(root, appName), nil
	}
	if !opts.NoWorkspace {
		start := opts.WorkDir
		if start == "" {
			if start, err = os.Getwd(); err != nil {
				return Paths{}, fmt.Errorf("working dir: %w", err)
			}
		}
		if root, ok := FindWorkspace(start); ok {
			return WorkspacePaths(root, appName), nil
		}
	}
	dirs, err := currentUserDirs()
	if err != nil {
		return Paths{}, err
	}
	return UserPaths(dirs, appName)
}

func resolveAppName(opts Options) (string, error) {
	appName := strings.TrimSpace(opts.AppName)
	if appName == "" {
		appName = DefaultAppName
	}
	if strings.ContainsAny(appName, `/\`) {
		return "", fmt.Errorf("invalid app name %q", appName)
	}
	if opts.DevMode {
		appName += "-dev"
	}
	return appName, nil
}

func currentUserDirs() (UserDirs, error) {
	configDir, err := os.UserConfigDir()
	if err != nil {
		return UserDirs{}, fmt.Errorf("user config dir: %w", err)
	}
	dirs := UserDirs{GOOS: runtime.GOOS, Config: configDir, Data: configDir, Env: map[string]string{}}
	for _, key := range []string{"XDG_CONFIG_HOME", "XDG_DATA_HOME", "APPDATA", "LOCALAPPDATA"} {
		dirs.Env[key] = strings.TrimSpace(os.Getenv(key))
	}
	if runtime.GOOS == "linux" {
		home, err := os.UserHomeDir()
		if err != nil {
			return UserDirs{}, fmt.Errorf("user home dir: %w", err)
		}
		dirs.Data = filepath.Join(home, ".local", "share")
	}
	return dirs, nil
}

// UserPaths lays out per-user paths. XDG variables apply on linux and
// APPDATA/LOCALAPPDATA on windows; other platforms use the base dirs as given.
func UserPaths(dirs UserDirs, appName string) (Paths, error) {
	if dirs.Config == "" || dirs.Data == "" {
		return Paths{}, fmt.Errorf("empty base dirs")
	}
	appName = strings.TrimSpace(appName)
	if appName == "" {
		return Paths{}, errEmptyAppName
	}

	configBase, dataBase := dirs.Config, dirs.Data
	var configKey, dataKey string
	switch dirs.GOOS {
	case "linux":
		configKey, dataKey = "XDG_CONFIG_HOME", "XDG_DATA_HOME"
	case "windows":
		configKey, dataKey = "APPDATA", "LOCALAPPDATA"
	}
	if v := dirs.Env[configKey]; configKey != "" && v != "" {
		configBase = v
	}
	if v := dirs.Env[dataKey]; dataKey != "" && v != "" {
		dataBase = v
	}

	configDir := filepath.Join(configBase, appName)
	dataDir := filepath.Join(dataBase, appName)
	return Paths{
		ConfigPath: filepath.Join(configDir, configFileName),
		EnvPath:    filepath.Join(configDir, ".env"),
		DataDir:    dataDir,
		DBPath:     filepath.Join(dataDir, appName+".db"),
		LogDir:     filepath.Join(dataDir, "logs"),
	}, nil
}

// WorkspacePaths lays out paths inside a site workspace rooted at root.
func WorkspacePaths(root, appName string) Paths {
	dir := filepath.Join(root, WorkspaceDirName)
	return Paths{
		ConfigPath: filepath.Join(dir, configFileName),
		EnvPath:    filepath.Join(root, ".env"),
		DataDir:    dir,
		DBPath:     filepath.Join(dir, appName+".db"),
		LogDir:     filepath.Join(dir, "log"),
		Workspace:  root,
	}
}

// FindWorkspace walks up from start to the nearest workspace root.
func FindWorkspace(start string) (string, bool) {
	dir, err := filepath.Abs(strings.TrimSpace(start))
	if err != nil {
		return "", false
	}
	for {
		if info, err := os.Stat(filepath.Join(dir, WorkspaceDirName, configFileName)); err == nil && info.Mode().IsRegular() {
			return dir, true
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return "", false
		}
		dir = parent
	}
}
