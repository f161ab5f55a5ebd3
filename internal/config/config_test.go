package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/hylla/sitebook/internal/domain"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}
	return path
}

func TestDefaultConfig(t *testing.T) {
	cfg := Default("/tmp/sitebook.db")
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate() error = %v", err)
	}
	if cfg.Database.Path != "/tmp/sitebook.db" {
		t.Fatalf("unexpected db path %q", cfg.Database.Path)
	}
	policy, err := cfg.PayPolicy()
	if err != nil {
		t.Fatalf("PayPolicy() error = %v", err)
	}
	if !policy.Counts(domain.AttendancePresent) || policy.Counts(domain.AttendanceLate) {
		t.Fatalf("unexpected default paid statuses %#v", policy)
	}
	if !policy.WritesLabor(domain.AttendanceLate) {
		t.Fatal("expected late attendance to write labor by default")
	}
	if start, _ := cfg.WeekStart(); start != time.Monday {
		t.Fatalf("unexpected week start %v", start)
	}
	if cfg.Scheduler.PayrollCommitCron != "" {
		t.Fatal("expected payroll commit job disabled by default")
	}
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	defaults := Default("/tmp/sitebook.db")
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.toml"), defaults)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Budget.DefaultTotal != defaults.Budget.DefaultTotal {
		t.Fatalf("expected default budget, got %q", cfg.Budget.DefaultTotal)
	}
}

func TestLoadFileOverridesDefaults(t *testing.T) {
	path := writeConfig(t, `
[database]
path = "/custom/site.db"

[budget]
default_total = "250000.50"
project_name = "Tower B"

[payroll]
paid_statuses = ["present", "late", "half-day"]
labor_statuses = ["present"]
week_start = "sun"

[server]
http_bind = ":9000"

[scheduler]
payroll_commit_cron = "0 6 * * MON"

[logging]
level = "debug"

[logging.dev_file]
enabled = false
`)
	cfg, err := Load(path, Default("/tmp/default.db"))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Database.Path != "/custom/site.db" || cfg.Server.HTTPBind != ":9000" {
		t.Fatalf("unexpected overrides %#v", cfg)
	}
	total, err := cfg.DefaultBudgetTotal()
	if err != nil {
		t.Fatalf("DefaultBudgetTotal() error = %v", err)
	}
	if !total.Equal(decimal.RequireFromString("250000.5")) {
		t.Fatalf("unexpected default total %s", total)
	}
	policy, err := cfg.PayPolicy()
	if err != nil {
		t.Fatalf("PayPolicy() error = %v", err)
	}
	if !policy.Counts(domain.AttendanceHalfDay) || policy.WritesLabor(domain.AttendanceLate) {
		t.Fatalf("unexpected policy %#v", policy)
	}
	if start, _ := cfg.WeekStart(); start != time.Sunday {
		t.Fatalf("unexpected week start %v", start)
	}
	if cfg.Server.APIEndpoint != "/api/v1" {
		t.Fatalf("expected untouched keys to keep defaults, got %q", cfg.Server.APIEndpoint)
	}
	if cfg.Logging.DevFile.Enabled {
		t.Fatal("expected dev file logging disabled")
	}
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	cases := []struct {
		name    string
		content string
		want    string
	}{
		{name: "budget", content: "[budget]\ndefault_total = \"lots\"\n", want: "budget.default_total"},
		{name: "negative budget", content: "[budget]\ndefault_total = \"-1\"\n", want: "budget.default_total"},
		{name: "absent is never paid", content: "[payroll]\npaid_statuses = [\"absent\"]\n", want: "payroll statuses"},
		{name: "week start", content: "[payroll]\nweek_start = \"someday\"\n", want: "payroll.week_start"},
		{name: "endpoint", content: "[server]\nmcp_endpoint = \"mcp\"\n", want: "server.mcp_endpoint"},
		{name: "cron", content: "[scheduler]\nbudget_recalc_cron = \"every tuesday\"\n", want: "scheduler.budget_recalc_cron"},
		{name: "level", content: "[logging]\nlevel = \"loud\"\n", want: "logging.level"},
		{name: "toml", content: "[database\n", want: "decode toml"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tc.content), Default("/tmp/sitebook.db"))
			if err == nil {
				t.Fatal("expected error")
			}
			if !strings.Contains(err.Error(), tc.want) {
				t.Fatalf("error %q does not mention %q", err, tc.want)
			}
		})
	}
}

func TestValidateRequiresDatabasePath(t *testing.T) {
	if err := Default("  ").Validate(); err == nil {
		t.Fatal("expected missing database path error")
	}
}

func TestWriteDefaultDoesNotOverwrite(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.toml")
	cfg := Default("/tmp/sitebook.db")
	wrote, err := WriteDefault(path, cfg)
	if err != nil || !wrote {
		t.Fatalf("WriteDefault() wrote=%v error=%v", wrote, err)
	}
	loaded, err := Load(path, Default("/elsewhere.db"))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if loaded.Database.Path != "/tmp/sitebook.db" {
		t.Fatalf("unexpected round-tripped db path %q", loaded.Database.Path)
	}
	wrote, err = WriteDefault(path, Default("/other.db"))
	if err != nil || wrote {
		t.Fatalf("expected existing file to be kept, wrote=%v error=%v", wrote, err)
	}
}

func TestLoadDotEnvKeepsExistingVariables(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".env")
	content := EnvDBPath + "=/from/dotenv.db\n" + EnvAppName + "=dotenv-app\n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}
	t.Setenv(EnvAppName, "shell-app")
	t.Setenv(EnvDBPath, "")
	os.Unsetenv(EnvDBPath)

	if err := LoadDotEnv(path); err != nil {
		t.Fatalf("LoadDotEnv() error = %v", err)
	}
	if got := EnvString(EnvDBPath); got != "/from/dotenv.db" {
		t.Fatalf("unexpected db path env %q", got)
	}
	if got := EnvString(EnvAppName); got != "shell-app" {
		t.Fatalf("expected shell value to win, got %q", got)
	}
	if err := LoadDotEnv(filepath.Join(t.TempDir(), "missing.env")); err != nil {
		t.Fatalf("LoadDotEnv(missing) error = %v", err)
	}
}

func TestEnvBool(t *testing.T) {
	t.Setenv(EnvDevMode, "true")
	if v, ok := EnvBool(EnvDevMode); !ok || !v {
		t.Fatalf("EnvBool() = %v, %v", v, ok)
	}
	t.Setenv(EnvDevMode, "maybe")
	if _, ok := EnvBool(EnvDevMode); ok {
		t.Fatal("expected unparsable value to be ignored")
	}
}
