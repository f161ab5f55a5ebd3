package main

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"

	"github.com/hylla/sitebook/internal/adapters/server/common"
	"github.com/hylla/sitebook/internal/adapters/storage/sqlite"
	"github.com/hylla/sitebook/internal/app"
	"github.com/hylla/sitebook/internal/config"
	"github.com/hylla/sitebook/internal/platform"
)

// rootOptions holds global flags shared by every command.
type rootOptions struct {
	ConfigPath string
	DBPath     string
	AppName    string
	DevMode    bool
	JSON       bool
	Verbose    bool

	// NoWorkspace ignores an enclosing .sitebook site workspace.
	NoWorkspace bool

	// workspaceRoot pins a site workspace created during this invocation.
	workspaceRoot string
	// resolved is filled by the root pre-run hook.
	resolved      settings
	// now overrides the service clock in tests.
	now           func() time.Time
}

// settings are the fully resolved paths and config for one invocation.
type settings struct {
	paths        platform.Paths
	configPath   string
	dbPath       string
	dbOverridden bool
	cfg          config.Config
}

// newRootCommand creates the root command for the sitebook CLI.
func newRootCommand() *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:   "sitebook",
		Short: "Construction-site payroll and budget book",
		Long: `sitebook records worker attendance and site expenses, derives payroll
from attendance, tracks which periods were paid, and keeps the project
budget reconciled with every recorded cost.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return opts.resolve(cmd)
		},
	}

	cmd.PersistentFlags().StringVar(&opts.ConfigPath, "config", "", "path to config TOML (env "+config.EnvConfigPath+")")
	cmd.PersistentFlags().StringVar(&opts.DBPath, "db", "", "path to sqlite database (env "+config.EnvDBPath+")")
	cmd.PersistentFlags().StringVar(&opts.AppName, "app", platform.DefaultAppName, "application name for config/data path resolution (env "+config.EnvAppName+")")
	cmd.PersistentFlags().BoolVar(&opts.DevMode, "dev", version == "dev", "use dev mode paths (<app>-dev) (env "+config.EnvDevMode+")")
	cmd.PersistentFlags().BoolVar(&opts.JSON, "json", false, "print JSON instead of tables")
	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "log runtime events to stderr")
	cmd.PersistentFlags().BoolVar(&opts.NoWorkspace, "no-workspace", false, "use per-user paths even inside a .sitebook site workspace")

	cmd.AddCommand(newPathsCommand(opts))
	cmd.AddCommand(newInitCommand(opts))
	cmd.AddCommand(newServeCommand(opts))
	cmd.AddCommand(newWorkerCommand(opts))
	cmd.AddCommand(newAttendanceCommand(opts))
	cmd.AddCommand(newExpenseCommand(opts))
	cmd.AddCommand(newPayrollCommand(opts))
	cmd.AddCommand(newBudgetCommand(opts))
	cmd.AddCommand(newActivityCommand(opts))

	return cmd
}

// resolve applies env fallbacks for unset flags, loads the optional .env file, and reads config.
func (o *rootOptions) resolve(cmd *cobra.Command) error {
	flags := cmd.Flags()
	if !flags.Changed("app") {
		if v := config.EnvString(config.EnvAppName); v != "" {
			o.AppName = v
		}
	}
	if !flags.Changed("dev") {
		if v, ok := config.EnvBool(config.EnvDevMode); ok {
			o.DevMode = v
		}
	}

	paths, err := platform.DefaultPathsWithOptions(platform.Options{
		AppName:       o.AppName,
		DevMode:       o.DevMode,
		NoWorkspace:   o.NoWorkspace,
		WorkspaceRoot: o.workspaceRoot,
	})
	if err != nil {
		return err
	}
	if err := config.LoadDotEnv(paths.EnvPath); err != nil {
		return err
	}

	s := settings{paths: paths, configPath: strings.TrimSpace(o.ConfigPath), dbPath: strings.TrimSpace(o.DBPath)}
	if s.configPath == "" {
		if v := config.EnvString(config.EnvConfigPath); v != "" {
			s.configPath = v
		} else {
			s.configPath = paths.ConfigPath
		}
	}
	s.dbOverridden = s.dbPath != ""
	if !s.dbOverridden {
		if v := config.EnvString(config.EnvDBPath); v != "" {
			s.dbPath = v
			s.dbOverridden = true
		} else {
			s.dbPath = paths.DBPath
		}
	}

	cfg, err := config.Load(s.configPath, config.Default(s.dbPath))
	if err != nil {
		return fmt.Errorf("load config %q: %w", s.configPath, err)
	}
	if s.dbOverridden {
		cfg.Database.Path = s.dbPath
	}
	s.cfg = cfg
	o.resolved = s
	return nil
}

// runtimeEnv owns the process resources one command needs.
type runtimeEnv struct {
	cfg      config.Config
	logger   *runtimeLogger
	repo     *sqlite.Repository
	service  *app.Service
	api      *common.AppServiceAdapter
	notifier *app.Notifier
	registry *prometheus.Registry
	metrics  *app.Metrics
}

// openRuntime opens storage and builds the service. live wires a notifier
// and metrics registry for long-running serve mode.
func openRuntime(o *rootOptions, stderr io.Writer, live bool) (*runtimeEnv, error) {
	s := o.resolved
	logger, err := newRuntimeLogger(stderr, o.AppName, o.DevMode, s.cfg.Logging, s.paths, time.Now)
	if err != nil {
		return nil, fmt.Errorf("configure runtime logger: %w", err)
	}
	if !live && !o.Verbose {
		// One-shot commands keep stderr quiet; events still reach the dev-file sink.
		logger.SetConsoleEnabled(false)
	}
	rt := &runtimeEnv{cfg: s.cfg, logger: logger}

	logger.Debug("runtime paths resolved", "config_path", s.configPath, "data_dir", s.paths.DataDir, "db_path", s.cfg.Database.Path)
	if devPath := logger.DevLogPath(); devPath != "" {
		logger.Debug("dev file logging enabled", "path", devPath)
	}

	policy, err := s.cfg.PayPolicy()
	if err != nil {
		rt.Close()
		return nil, err
	}
	weekStart, err := s.cfg.WeekStart()
	if err != nil {
		rt.Close()
		return nil, err
	}
	defaultTotal, err := s.cfg.DefaultBudgetTotal()
	if err != nil {
		rt.Close()
		return nil, err
	}

	if err := config.EnsureConfigDir(s.cfg.Database.Path); err != nil {
		rt.Close()
		return nil, fmt.Errorf("create database dir: %w", err)
	}
	logger.Info("opening sqlite repository", "db_path", s.cfg.Database.Path)
	repo, err := sqlite.Open(s.cfg.Database.Path)
	if err != nil {
		logger.Error("sqlite open failed", "db_path", s.cfg.Database.Path, "err", err)
		rt.Close()
		return nil, fmt.Errorf("open sqlite repository: %w", err)
	}
	rt.repo = repo

	if live {
		rt.registry = prometheus.NewRegistry()
		rt.registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
		rt.metrics = app.NewMetrics(rt.registry)
		rt.notifier = app.NewNotifier(logger, rt.metrics)
	}
	rt.service = app.NewService(repo, uuid.NewString, o.now, app.ServiceConfig{
		Policy:             policy,
		WeekStart:          weekStart,
		DefaultBudgetTotal: defaultTotal,
		Notifier:           rt.notifier,
		Logger:             logger,
		Metrics:            rt.metrics,
	})
	rt.api = common.NewAppServiceAdapter(rt.service)
	logger.Debug("application service initialized", "week_start", weekStart, "live", live)
	return rt, nil
}

// Close releases resources in reverse order of acquisition.
func (rt *runtimeEnv) Close() {
	if rt == nil {
		return
	}
	if rt.service != nil {
		rt.service.Close()
	}
	if rt.notifier != nil {
		rt.notifier.Close()
	}
	if rt.repo != nil {
		if err := rt.repo.Close(); err != nil {
			rt.logger.Warn("sqlite close failed", "err", err)
		}
	}
	_ = rt.logger.Close()
}

// withRuntime opens a one-shot runtime around fn.
func withRuntime(cmd *cobra.Command, o *rootOptions, fn func(*runtimeEnv, *printer) error) error {
	rt, err := openRuntime(o, cmd.ErrOrStderr(), false)
	if err != nil {
		return err
	}
	defer rt.Close()
	return fn(rt, newPrinter(cmd.OutOrStdout(), o.JSON))
}
