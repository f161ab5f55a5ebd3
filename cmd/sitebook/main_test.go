package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/hylla/sitebook/internal/config"
	"github.com/hylla/sitebook/internal/platform"
)

// TestMain sets deterministic environment defaults for CLI tests.
func TestMain(m *testing.M) {
	_ = os.Setenv(config.EnvDevMode, "false")
	os.Exit(m.Run())
}

// cliEnv isolates one CLI test from the user's config and data dirs.
type cliEnv struct {
	dbPath  string
	cfgPath string
}

func newCLIEnv(t *testing.T) cliEnv {
	t.Helper()
	tmp := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", filepath.Join(tmp, "xdg-config"))
	t.Setenv("XDG_DATA_HOME", filepath.Join(tmp, "xdg-data"))
	return cliEnv{
		dbPath:  filepath.Join(tmp, "sitebook.db"),
		cfgPath: filepath.Join(tmp, "sitebook.toml"),
	}
}

// run executes one command against a fresh root, since cobra keeps flag state per tree.
func (e cliEnv) run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCommand()
	var out, errOut bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetArgs(append([]string{"--db", e.dbPath, "--config", e.cfgPath, "--dev=false", "--no-workspace"}, args...))
	err := cmd.Execute()
	return out.String(), err
}

func (e cliEnv) mustJSON(t *testing.T, v any, args ...string) {
	t.Helper()
	out, err := e.run(t, append(args, "--json")...)
	if err != nil {
		t.Fatalf("%v error = %v", args, err)
	}
	if err := json.Unmarshal([]byte(out), v); err != nil {
		t.Fatalf("%v output %q is not JSON: %v", args, out, err)
	}
}

// TestRootRegistersCommands verifies the top-level command tree.
func TestRootRegistersCommands(t *testing.T) {
	root := newRootCommand()
	for _, name := range []string{"paths", "init", "serve", "worker", "attendance", "expense", "payroll", "budget", "activity"} {
		cmd, _, err := root.Find([]string{name})
		if err != nil || cmd == root {
			t.Fatalf("command %q not registered (err = %v)", name, err)
		}
	}
}

// TestRunUnknownCommand verifies unknown commands fail.
func TestRunUnknownCommand(t *testing.T) {
	env := newCLIEnv(t)
	if _, err := env.run(t, "bulldoze"); err == nil {
		t.Fatal("expected unknown command error")
	}
}

// TestRunPathsCommand verifies flag overrides reach resolved paths.
func TestRunPathsCommand(t *testing.T) {
	env := newCLIEnv(t)
	var got struct {
		App     string `json:"app"`
		DevMode bool   `json:"dev_mode"`
		Config  string `json:"config"`
		DB      string `json:"db"`
	}
	env.mustJSON(t, &got, "paths")
	if got.Config != env.cfgPath || got.DB != env.dbPath {
		t.Fatalf("paths = %#v, want config %q db %q", got, env.cfgPath, env.dbPath)
	}
	if got.App != "sitebook" || got.DevMode {
		t.Fatalf("expected non-dev sitebook paths, got %#v", got)
	}
}

// TestRunConfigAndDBEnvOverrides verifies env fallbacks when flags are unset.
func TestRunConfigAndDBEnvOverrides(t *testing.T) {
	tmp := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", filepath.Join(tmp, "xdg-config"))
	t.Setenv("XDG_DATA_HOME", filepath.Join(tmp, "xdg-data"))
	dbPath := filepath.Join(tmp, "env.db")
	cfgPath := filepath.Join(tmp, "env.toml")
	t.Setenv(config.EnvDBPath, dbPath)
	t.Setenv(config.EnvConfigPath, cfgPath)

	cmd := newRootCommand()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"paths", "--json", "--dev=false", "--no-workspace"})
	if err := cmd.Execute(); err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if !strings.Contains(out.String(), dbPath) || !strings.Contains(out.String(), cfgPath) {
		t.Fatalf("expected env paths in output, got %s", out.String())
	}
}

// TestRunInitWritesDefaultConfigOnce verifies init never clobbers an existing file.
func TestRunInitWritesDefaultConfigOnce(t *testing.T) {
	env := newCLIEnv(t)
	out, err := env.run(t, "init")
	if err != nil {
		t.Fatalf("init error = %v", err)
	}
	if !strings.HasPrefix(out, "wrote ") {
		t.Fatalf("first init output = %q", out)
	}
	if _, err := os.Stat(env.cfgPath); err != nil {
		t.Fatalf("expected config file, got %v", err)
	}
	out, err = env.run(t, "init")
	if err != nil {
		t.Fatalf("second init error = %v", err)
	}
	if !strings.Contains(out, "already exists") {
		t.Fatalf("second init output = %q", out)
	}
}

// TestRunInitWorkspaceScopesBookToSite verifies a site workspace owns its config and database.
func TestRunInitWorkspaceScopesBookToSite(t *testing.T) {
	newCLIEnv(t)
	site := t.TempDir()
	t.Chdir(site)

	exec := func(args ...string) string {
		t.Helper()
		cmd := newRootCommand()
		var out bytes.Buffer
		cmd.SetOut(&out)
		cmd.SetArgs(append([]string{"--dev=false"}, args...))
		if err := cmd.Execute(); err != nil {
			t.Fatalf("%v error = %v", args, err)
		}
		return out.String()
	}

	out := exec("init", "--workspace")
	if !strings.Contains(out, filepath.Join(".sitebook", "config.toml")) {
		t.Fatalf("init output = %q", out)
	}

	var got struct {
		DB        string `json:"db"`
		Workspace string `json:"workspace"`
	}
	if err := json.Unmarshal([]byte(exec("paths", "--json")), &got); err != nil {
		t.Fatalf("paths output is not JSON: %v", err)
	}
	resolvedSite, err := filepath.EvalSymlinks(site)
	if err != nil {
		t.Fatalf("EvalSymlinks() error = %v", err)
	}
	resolvedWorkspace, err := filepath.EvalSymlinks(got.Workspace)
	if err != nil {
		t.Fatalf("EvalSymlinks(workspace) error = %v", err)
	}
	if resolvedWorkspace != resolvedSite {
		t.Fatalf("workspace = %q, want %q", got.Workspace, site)
	}
	if filepath.Base(got.DB) != "sitebook.db" || filepath.Base(filepath.Dir(got.DB)) != ".sitebook" {
		t.Fatalf("db = %q, want it inside the workspace", got.DB)
	}

	exec("worker", "add", "Ana", "--rate", "120")
	if _, err := os.Stat(got.DB); err != nil {
		t.Fatalf("expected workspace database, got %v", err)
	}
}

// TestRunRejectsInvalidConfig verifies config validation runs before any command.
func TestRunRejectsInvalidConfig(t *testing.T) {
	env := newCLIEnv(t)
	if err := os.WriteFile(env.cfgPath, []byte("[logging]\nlevel = \"chatty\"\n"), 0o644); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}
	if _, err := env.run(t, "worker", "list"); err == nil {
		t.Fatal("expected invalid logging level error")
	}
}

// TestRunPayrollFlow walks one worker from hire to a paid week.
func TestRunPayrollFlow(t *testing.T) {
	env := newCLIEnv(t)

	var worker struct {
		ID     string `json:"id"`
		Active bool   `json:"is_active"`
	}
	env.mustJSON(t, &worker, "worker", "add", "Rosa", "--role", "mason", "--rate", "100", "--lunch", "10")
	if worker.ID == "" || !worker.Active {
		t.Fatalf("created worker = %#v", worker)
	}

	var marked struct {
		Attendance struct {
			Version int `json:"version"`
		} `json:"attendance"`
		LaborExpense *struct {
			Amount string `json:"amount"`
		} `json:"labor_expense"`
	}
	env.mustJSON(t, &marked, "attendance", "mark", worker.ID, "--date", "2024-01-08", "--status", "present", "--lunch")
	if marked.Attendance.Version != 1 || marked.LaborExpense == nil || marked.LaborExpense.Amount != "100" {
		t.Fatalf("mark result = %#v", marked)
	}
	if _, err := env.run(t, "attendance", "mark", worker.ID, "--date", "2024-01-08", "--status", "late"); err == nil || !strings.Contains(err.Error(), "duplicate attendance") {
		t.Fatalf("expected duplicate attendance error, got %v", err)
	}
	env.mustJSON(t, &marked, "attendance", "mark", worker.ID, "--date", "2024-01-09", "--status", "late")

	week := []string{"--start", "2024-01-08", "--end", "2024-01-14"}
	var view struct {
		DaysWorked int    `json:"days_worked"`
		LunchDays  int    `json:"lunch_days"`
		Gross      string `json:"gross_amount"`
		Net        string `json:"net_amount"`
	}
	env.mustJSON(t, &view, append([]string{"payroll", "view", worker.ID}, week...)...)
	if view.DaysWorked != 1 || view.LunchDays != 1 || view.Gross != "100" || view.Net != "90" {
		t.Fatalf("payroll view = %#v", view)
	}

	var committed []struct {
		Status string `json:"status"`
	}
	env.mustJSON(t, &committed, append([]string{"payroll", "commit"}, week...)...)
	if len(committed) != 1 || committed[0].Status != "pending" {
		t.Fatalf("committed = %#v", committed)
	}

	var paid struct {
		Status string  `json:"status"`
		PaidAt *string `json:"paid_at"`
	}
	env.mustJSON(t, &paid, append([]string{"payroll", "pay", worker.ID}, week...)...)
	if paid.Status != "paid" || paid.PaidAt == nil {
		t.Fatalf("paid entry = %#v", paid)
	}

	var ledger []struct {
		WorkerID string `json:"worker_id"`
	}
	env.mustJSON(t, &ledger, "payroll", "ledger", "--status", "paid")
	if len(ledger) != 1 || ledger[0].WorkerID != worker.ID {
		t.Fatalf("paid ledger = %#v", ledger)
	}

	var unpaid struct {
		Found bool `json:"found"`
	}
	env.mustJSON(t, &unpaid, "payroll", "unpay", worker.ID, "--start", "2024-02-05", "--end", "2024-02-11")
	if unpaid.Found {
		t.Fatalf("expected no ledger entry for an uncommitted week, got %#v", unpaid)
	}

	if _, err := env.run(t, "expense", "add", "--category", "materials", "--amount", "50", "--date", "2024-01-10"); err != nil {
		t.Fatalf("expense add error = %v", err)
	}
	if _, err := env.run(t, "expense", "add", "--category", "labor", "--amount", "50", "--date", "2024-01-10"); err == nil {
		t.Fatal("expected labor category to be rejected for manual expenses")
	}

	var summary struct {
		Total string `json:"total"`
		Used  string `json:"used"`
	}
	env.mustJSON(t, &summary, "budget", "show")
	if summary.Used != "250" || summary.Total != "1000000" {
		t.Fatalf("budget summary = %#v", summary)
	}
	env.mustJSON(t, &summary, "budget", "set", "200")
	if summary.Total != "200" {
		t.Fatalf("budget after set = %#v", summary)
	}

	var activity []struct {
		Action string `json:"action_type"`
	}
	env.mustJSON(t, &activity, "activity", "--limit", "3")
	if len(activity) != 3 || activity[0].Action != "budget_set" {
		t.Fatalf("activity = %#v", activity)
	}
}

// TestRunTableOutput verifies the default human rendering.
func TestRunTableOutput(t *testing.T) {
	env := newCLIEnv(t)
	out, err := env.run(t, "worker", "list")
	if err != nil {
		t.Fatalf("worker list error = %v", err)
	}
	if !strings.Contains(out, "(none)") {
		t.Fatalf("expected empty marker, got %q", out)
	}
	if _, err := env.run(t, "worker", "add", "Ana", "--rate", "120"); err != nil {
		t.Fatalf("worker add error = %v", err)
	}
	out, err = env.run(t, "worker", "list")
	if err != nil {
		t.Fatalf("worker list error = %v", err)
	}
	for _, want := range []string{"Name", "Daily rate", "Ana", "120.00"} {
		if !strings.Contains(out, want) {
			t.Fatalf("expected %q in table output, got %q", want, out)
		}
	}
}

// TestDevLogFilePathFollowsResolvedBook verifies dev logs land inside the resolved book.
func TestDevLogFilePathFollowsResolvedBook(t *testing.T) {
	day := time.Date(2026, 2, 22, 12, 0, 0, 0, time.UTC)
	site := platform.WorkspacePaths(filepath.Join("/sites", "north-wing"), "sitebook")
	user := platform.Paths{DataDir: "/home/rosa/.local/share/sitebook", LogDir: "/home/rosa/.local/share/sitebook/logs"}

	cases := []struct {
		name      string
		configDir string
		paths     platform.Paths
		want      string
	}{
		{name: "workspace default", paths: site, want: filepath.Join("/sites", "north-wing", ".sitebook", "log", "site-book-20260222.log")},
		{name: "workspace relative", configDir: "debug", paths: site, want: filepath.Join("/sites", "north-wing", ".sitebook", "debug", "site-book-20260222.log")},
		{name: "per-user default", paths: user, want: filepath.Join(user.LogDir, "site-book-20260222.log")},
		{name: "absolute override", configDir: "/var/log/sitebook", paths: site, want: filepath.Join("/var/log/sitebook", "site-book-20260222.log")},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := devLogFilePath(tc.configDir, tc.paths, "site book", day)
			if err != nil {
				t.Fatalf("devLogFilePath() error = %v", err)
			}
			if got != tc.want {
				t.Fatalf("devLogFilePath() = %q, want %q", got, tc.want)
			}
		})
	}

	if _, err := devLogFilePath("logs", platform.Paths{}, "sitebook", day); err == nil {
		t.Fatal("expected error for a relative dir without a data dir")
	}
	if _, err := devLogFilePath("", platform.Paths{}, "sitebook", day); err == nil {
		t.Fatal("expected error when no log dir resolves")
	}
}

func TestSanitizeLogFileStem(t *testing.T) {
	cases := map[string]string{
		"sitebook":     "sitebook",
		" a/b:c ":      "a-b-c",
		"---":          "sitebook",
		"":             "sitebook",
		`north\wing 2`: "north-wing-2",
	}
	for in, want := range cases {
		if got := sanitizeLogFileStem(in); got != want {
			t.Fatalf("sanitizeLogFileStem(%q) = %q, want %q", in, got, want)
		}
	}
}

// TestRuntimeLoggerCanMuteConsoleSink verifies console output can be suppressed while other sinks remain active.
func TestRuntimeLoggerCanMuteConsoleSink(t *testing.T) {
	var console bytes.Buffer
	cfg := config.Default("/tmp/sitebook.db").Logging

	logger, err := newRuntimeLogger(&console, "sitebook", false, cfg, platform.Paths{}, func() time.Time {
		return time.Date(2026, 2, 23, 12, 0, 0, 0, time.UTC)
	})
	if err != nil {
		t.Fatalf("newRuntimeLogger() error = %v", err)
	}

	logger.Info("before")
	logger.SetConsoleEnabled(false)
	logger.Info("during")
	logger.SetConsoleEnabled(true)
	logger.Info("after")

	out := console.String()
	if !strings.Contains(out, "before") || strings.Contains(out, "during") || !strings.Contains(out, "after") {
		t.Fatalf("unexpected console log %q", out)
	}
}

// TestRuntimeLoggerDevFileSink verifies dev mode tees events into the site workspace log file.
func TestRuntimeLoggerDevFileSink(t *testing.T) {
	cfg := config.Default("/tmp/sitebook.db").Logging
	paths := platform.WorkspacePaths(filepath.Join(t.TempDir(), "north-wing"), "sitebook")

	logger, err := newRuntimeLogger(nil, "sitebook", true, cfg, paths, func() time.Time {
		return time.Date(2026, 2, 23, 12, 0, 0, 0, time.UTC)
	})
	if err != nil {
		t.Fatalf("newRuntimeLogger() error = %v", err)
	}
	logger.Info("attendance marked", "worker_id", "w1")
	if err := logger.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	if want := filepath.Join(paths.LogDir, "sitebook-20260223.log"); logger.DevLogPath() != want {
		t.Fatalf("DevLogPath() = %q, want %q", logger.DevLogPath(), want)
	}
	content, err := os.ReadFile(logger.DevLogPath())
	if err != nil {
		t.Fatalf("ReadFile() error = %v", err)
	}
	for _, want := range []string{"attendance marked", "worker_id=w1", "site=north-wing"} {
		if !strings.Contains(string(content), want) {
			t.Fatalf("expected %q in dev log %q", want, content)
		}
	}
}
