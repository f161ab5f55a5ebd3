package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/joho/godotenv"
	toml "github.com/pelletier/go-toml/v2"
	"github.com/robfig/cron/v3"
	"github.com/shopspring/decimal"

	"github.com/hylla/sitebook/internal/domain"
)

// Environment variables consulted by the CLI.
const (
	EnvConfigPath = "SITEBOOK_CONFIG"
	EnvDBPath     = "SITEBOOK_DB_PATH"
	EnvAppName    = "SITEBOOK_APP_NAME"
	EnvDevMode    = "SITEBOOK_DEV_MODE"
)

type Config struct {
	Database  DatabaseConfig  `toml:"database"`
	Budget    BudgetConfig    `toml:"budget"`
	Payroll   PayrollConfig   `toml:"payroll"`
	Server    ServerConfig    `toml:"server"`
	Scheduler SchedulerConfig `toml:"scheduler"`
	Logging   LoggingConfig   `toml:"logging"`
}

type DatabaseConfig struct {
	Path string `toml:"path"`
}

// BudgetConfig holds the fallback total used when no budget row exists yet.
type BudgetConfig struct {
	DefaultTotal string `toml:"default_total"`
	ProjectName  string `toml:"project_name"`
}

type PayrollConfig struct {
	PaidStatuses  []string `toml:"paid_statuses"`
	LaborStatuses []string `toml:"labor_statuses"`
	WeekStart     string   `toml:"week_start"`
}

type ServerConfig struct {
	HTTPBind        string `toml:"http_bind"`
	APIEndpoint     string `toml:"api_endpoint"`
	MCPEndpoint     string `toml:"mcp_endpoint"`
	WSEndpoint      string `toml:"ws_endpoint"`
	MetricsEndpoint string `toml:"metrics_endpoint"`
}

// SchedulerConfig holds standard five-field cron expressions. Empty disables a job.
type SchedulerConfig struct {
	BudgetRecalcCron  string `toml:"budget_recalc_cron"`
	PayrollCommitCron string `toml:"payroll_commit_cron"`
	BoardRollCron     string `toml:"board_roll_cron"`
}

type LoggingConfig struct {
	Level   string        `toml:"level"`
	DevFile DevFileConfig `toml:"dev_file"`
}

// DevFileConfig controls the dev-mode log file. An empty Dir uses the book's
// log dir and a relative Dir resolves under the book's data dir.
type DevFileConfig struct {
	Enabled bool   `toml:"enabled"`
	Dir     string `toml:"dir"`
}

func Default(dbPath string) Config {
	return Config{
		Database: DatabaseConfig{
			Path: dbPath,
		},
		Budget: BudgetConfig{
			DefaultTotal: "1000000",
			ProjectName:  "site",
		},
		Payroll: PayrollConfig{
			PaidStatuses:  []string{string(domain.AttendancePresent)},
			LaborStatuses: []string{string(domain.AttendancePresent), string(domain.AttendanceLate)},
			WeekStart:     "monday",
		},
		Server: ServerConfig{
			HTTPBind:        "127.0.0.1:5437",
			APIEndpoint:     "/api/v1",
			MCPEndpoint:     "/mcp",
			WSEndpoint:      "/ws",
			MetricsEndpoint: "/metrics",
		},
		Scheduler: SchedulerConfig{
			BudgetRecalcCron: "*/30 * * * *",
			BoardRollCron:    "5 0 * * *",
		},
		Logging: LoggingConfig{
			Level:   "info",
			DevFile: DevFileConfig{Enabled: true},
		},
	}
}

func Load(path string, defaults Config) (Config, error) {
	cfg := defaults
	if strings.TrimSpace(path) == "" {
		return cfg, cfg.Validate()
	}

	content, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return cfg, cfg.Validate()
		}
		return Config{}, fmt.Errorf("read config: %w", err)
	}
	if len(content) == 0 {
		return cfg, cfg.Validate()
	}

	if err := toml.Unmarshal(content, &cfg); err != nil {
		return Config{}, fmt.Errorf("decode toml: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

// Validate rejects values the runtime could not act on.
func (c Config) Validate() error {
	if strings.TrimSpace(c.Database.Path) == "" {
		return errors.New("database path is required")
	}

	total, err := c.DefaultBudgetTotal()
	if err != nil {
		return err
	}
	if total.IsNegative() {
		return fmt.Errorf("budget.default_total must be >= 0, got %s", total)
	}

	if _, err := c.PayPolicy(); err != nil {
		return fmt.Errorf("payroll statuses: %w", err)
	}
	if _, err := c.WeekStart(); err != nil {
		return err
	}

	for name, endpoint := range map[string]string{
		"server.api_endpoint":     c.Server.APIEndpoint,
		"server.mcp_endpoint":     c.Server.MCPEndpoint,
		"server.ws_endpoint":      c.Server.WSEndpoint,
		"server.metrics_endpoint": c.Server.MetricsEndpoint,
	} {
		if !strings.HasPrefix(strings.TrimSpace(endpoint), "/") {
			return fmt.Errorf("%s must start with '/': %q", name, endpoint)
		}
	}
	if strings.TrimSpace(c.Server.HTTPBind) == "" {
		return errors.New("server.http_bind is required")
	}

	parser := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)
	for name, spec := range map[string]string{
		"scheduler.budget_recalc_cron":  c.Scheduler.BudgetRecalcCron,
		"scheduler.payroll_commit_cron": c.Scheduler.PayrollCommitCron,
		"scheduler.board_roll_cron":     c.Scheduler.BoardRollCron,
	} {
		if strings.TrimSpace(spec) == "" {
			continue
		}
		if _, err := parser.Parse(spec); err != nil {
			return fmt.Errorf("invalid %s %q: %w", name, spec, err)
		}
	}

	if _, err := log.ParseLevel(strings.TrimSpace(c.Logging.Level)); err != nil {
		return fmt.Errorf("invalid logging.level %q: %w", c.Logging.Level, err)
	}
	return nil
}

// DefaultBudgetTotal parses budget.default_total.
func (c Config) DefaultBudgetTotal() (decimal.Decimal, error) {
	raw := strings.TrimSpace(c.Budget.DefaultTotal)
	if raw == "" {
		return decimal.Zero, nil
	}
	total, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Zero, fmt.Errorf("invalid budget.default_total %q: %w", c.Budget.DefaultTotal, err)
	}
	return total, nil
}

// PayPolicy builds the payroll status policy.
func (c Config) PayPolicy() (domain.PayPolicy, error) {
	return domain.NewPayPolicy(c.Payroll.PaidStatuses, c.Payroll.LaborStatuses)
}

// WeekStart parses payroll.week_start. Empty means Monday.
func (c Config) WeekStart() (time.Weekday, error) {
	raw := strings.ToLower(strings.TrimSpace(c.Payroll.WeekStart))
	if raw == "" {
		return time.Monday, nil
	}
	for d := time.Sunday; d <= time.Saturday; d++ {
		name := strings.ToLower(d.String())
		if raw == name || raw == name[:3] {
			return d, nil
		}
	}
	return time.Monday, fmt.Errorf("invalid payroll.week_start: %q", c.Payroll.WeekStart)
}

// LoadDotEnv loads KEY=VALUE pairs from path into the process environment.
// Variables already set win, and a missing file is not an error.
func LoadDotEnv(path string) error {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil
	}
	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("stat env file: %w", err)
	}
	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("load env file %q: %w", path, err)
	}
	return nil
}

// EnvBool reads a boolean environment variable. ok is false when unset or unparsable.
func EnvBool(name string) (value bool, ok bool) {
	raw := strings.TrimSpace(os.Getenv(name))
	if raw == "" {
		return false, false
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return false, false
	}
	return v, true
}

// EnvString reads a trimmed environment variable.
func EnvString(name string) string {
	return strings.TrimSpace(os.Getenv(name))
}

func EnsureConfigDir(path string) error {
	dir := filepath.Dir(path)
	if dir == "." || dir == "" {
		return nil
	}
	return os.MkdirAll(dir, 0o755)
}

// WriteDefault writes cfg to path unless a file already exists there.
func WriteDefault(path string, cfg Config) (bool, error) {
	if _, err := os.Stat(path); err == nil {
		return false, nil
	} else if !errors.Is(err, os.ErrNotExist) {
		return false, fmt.Errorf("stat config: %w", err)
	}
	if err := EnsureConfigDir(path); err != nil {
		return false, fmt.Errorf("create config dir: %w", err)
	}
	content, err := toml.Marshal(cfg)
	if err != nil {
		return false, fmt.Errorf("encode toml: %w", err)
	}
	if err := os.WriteFile(path, content, 0o644); err != nil {
		return false, fmt.Errorf("write config: %w", err)
	}
	return true, nil
}
