package platform

import (
	"os"
	"path/filepath"
	"testing"
)

func TestUserPathsLinuxWithXDG(t *testing.T) {
	p, err := UserPaths(UserDirs{
		GOOS:   "linux",
		Config: "/fallback/config",
		Data:   "/fallback/data",
		Env:    map[string]string{"XDG_CONFIG_HOME": "/xdg/config", "XDG_DATA_HOME": "/xdg/data"},
	}, "sitebook")
	if err != nil {
		t.Fatalf("UserPaths() error = %v", err)
	}
	want := Paths{
		ConfigPath: filepath.Join("/xdg/config", "sitebook", "config.toml"),
		EnvPath:    filepath.Join("/xdg/config", "sitebook", ".env"),
		DataDir:    filepath.Join("/xdg/data", "sitebook"),
		DBPath:     filepath.Join("/xdg/data", "sitebook", "sitebook.db"),
		LogDir:     filepath.Join("/xdg/data", "sitebook", "logs"),
	}
	if p != want {
		t.Fatalf("UserPaths() = %#v, want %#v", p, want)
	}
}

func TestUserPathsPlatforms(t *testing.T) {
	cases := []struct {
		name       string
		dirs       UserDirs
		wantConfig string
		wantDB     string
	}{
		{
			name:       "windows app data",
			dirs:       UserDirs{GOOS: "windows", Config: `C:\fallback\config`, Data: `C:\fallback\data`, Env: map[string]string{"APPDATA": `C:\Roaming`, "LOCALAPPDATA": `C:\Local`}},
			wantConfig: filepath.Join(`C:\Roaming`, "site", "config.toml"),
			wantDB:     filepath.Join(`C:\Local`, "site", "site.db"),
		},
		{
			name:       "darwin ignores xdg",
			dirs:       UserDirs{GOOS: "darwin", Config: "/Users/me/Library/Application Support", Data: "/Users/me/Library/Application Support", Env: map[string]string{"XDG_CONFIG_HOME": "/ignored"}},
			wantConfig: filepath.Join("/Users/me/Library/Application Support", "site", "config.toml"),
			wantDB:     filepath.Join("/Users/me/Library/Application Support", "site", "site.db"),
		},
		{
			name:       "linux without xdg",
			dirs:       UserDirs{GOOS: "linux", Config: "/home/me/.config", Data: "/home/me/.local/share"},
			wantConfig: filepath.Join("/home/me/.config", "site", "config.toml"),
			wantDB:     filepath.Join("/home/me/.local/share", "site", "site.db"),
		},
		{
			name:       "unknown os",
			dirs:       UserDirs{GOOS: "freebsd", Config: "/cfg", Data: "/data", Env: map[string]string{"APPDATA": "/ignored"}},
			wantConfig: filepath.Join("/cfg", "site", "config.toml"),
			wantDB:     filepath.Join("/data", "site", "site.db"),
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			p, err := UserPaths(tc.dirs, "site")
			if err != nil {
				t.Fatalf("UserPaths() error = %v", err)
			}
			if p.ConfigPath != tc.wantConfig {
				t.Fatalf("config path = %q, want %q", p.ConfigPath, tc.wantConfig)
			}
			if p.DBPath != tc.wantDB {
				t.Fatalf("db path = %q, want %q", p.DBPath, tc.wantDB)
			}
		})
	}
}

func TestUserPathsRejectsEmptyInputs(t *testing.T) {
	if _, err := UserPaths(UserDirs{GOOS: "darwin", Data: "/tmp/data"}, "sitebook"); err == nil {
		t.Fatal("expected error for empty dirs")
	}
	if _, err := UserPaths(UserDirs{GOOS: "darwin", Config: "/cfg", Data: "/data"}, "  "); err == nil {
		t.Fatal("expected error for empty app name")
	}
}

func TestDefaultPathsWithOptionsDevMode(t *testing.T) {
	p, err := DefaultPathsWithOptions(Options{DevMode: true, NoWorkspace: true})
	if err != nil {
		t.Fatalf("DefaultPathsWithOptions() error = %v", err)
	}
	if filepath.Base(filepath.Dir(p.ConfigPath)) != "sitebook-dev" {
		t.Fatalf("expected dev config dir suffix, got %q", p.ConfigPath)
	}
	if filepath.Base(p.DBPath) != "sitebook-dev.db" {
		t.Fatalf("expected dev db name, got %q", p.DBPath)
	}
	if p.Workspace != "" {
		t.Fatalf("expected per-user paths, got workspace %q", p.Workspace)
	}
}

func TestDefaultPathsWithOptionsRejectsPathAppName(t *testing.T) {
	if _, err := DefaultPathsWithOptions(Options{AppName: "../escape", NoWorkspace: true}); err == nil {
		t.Fatal("expected error for app name containing a separator")
	}
}

func TestDefaultPathsWithOptionsUsesSiteWorkspace(t *testing.T) {
	root := t.TempDir()
	writeWorkspaceConfig(t, root)
	nested := filepath.Join(root, "north-wing", "level-2")
	if err := os.MkdirAll(nested, 0o755); err != nil {
		t.Fatalf("MkdirAll() error = %v", err)
	}

	p, err := DefaultPathsWithOptions(Options{WorkDir: nested})
	if err != nil {
		t.Fatalf("DefaultPathsWithOptions() error = %v", err)
	}
	if p != WorkspacePaths(root, "sitebook") {
		t.Fatalf("paths = %#v, want workspace layout under %q", p, root)
	}
	if want := filepath.Join(root, WorkspaceDirName, "sitebook.db"); p.DBPath != want {
		t.Fatalf("db path = %q, want %q", p.DBPath, want)
	}

	p, err = DefaultPathsWithOptions(Options{WorkDir: nested, NoWorkspace: true})
	if err != nil {
		t.Fatalf("DefaultPathsWithOptions(NoWorkspace) error = %v", err)
	}
	if p.Workspace != "" {
		t.Fatalf("expected per-user paths, got workspace %q", p.Workspace)
	}
}

func TestFindWorkspaceRequiresConfig(t *testing.T) {
	root := t.TempDir()
	// A bare directory, such as one holding only dev logs, is not a workspace.
	if err := os.MkdirAll(filepath.Join(root, WorkspaceDirName, "log"), 0o755); err != nil {
		t.Fatalf("MkdirAll() error = %v", err)
	}
	if got, ok := FindWorkspace(root); ok && got == root {
		t.Fatalf("FindWorkspace() = %q, want no workspace without config", got)
	}
	writeWorkspaceConfig(t, root)
	if got, ok := FindWorkspace(filepath.Join(root, "sub")); !ok || got != root {
		t.Fatalf("FindWorkspace() = %q, %v, want %q", got, ok, root)
	}
}

func TestDefaultPathsWithOptionsPinnedWorkspace(t *testing.T) {
	p, err := DefaultPathsWithOptions(Options{WorkspaceRoot: "/sites/harbor", DevMode: true})
	if err != nil {
		t.Fatalf("DefaultPathsWithOptions() error = %v", err)
	}
	if want := filepath.Join("/sites/harbor", WorkspaceDirName, "sitebook-dev.db"); p.DBPath != want {
		t.Fatalf("db path = %q, want %q", p.DBPath, want)
	}
	if p.Workspace != "/sites/harbor" {
		t.Fatalf("workspace = %q", p.Workspace)
	}
}

func writeWorkspaceConfig(t *testing.T, root string) {
	t.Helper()
	dir := filepath.Join(root, WorkspaceDirName)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatalf("MkdirAll() error = %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, "config.toml"), nil, 0o644); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}
}
