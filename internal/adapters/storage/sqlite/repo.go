package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/hylla/sitebook/internal/app"
	"github.com/hylla/sitebook/internal/domain"
)

// driverName defines a package constant value.
const driverName = "sqlite"

// dsnPragmas apply to every pooled connection.
const dsnPragmas = "_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)"

// Repository implements app.Repository on a single SQLite database.
type Repository struct {
	db *sql.DB
}

var _ app.Repository = (*Repository)(nil)

// Open opens or creates the database at path and applies migrations.
func Open(path string) (*Repository, error) {
	if strings.TrimSpace(path) == "" {
		return nil, errors.New("sqlite path is required")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create sqlite dir: %w", err)
	}
	dsn := "file:" + path + "?" + dsnPragmas + "&_pragma=journal_mode(WAL)"
	return open(dsn)
}

// OpenInMemory opens a private in-memory database.
func OpenInMemory() (*Repository, error) {
	dsn := "file:" + uuid.NewString() + "?mode=memory&cache=shared&" + dsnPragmas
	return open(dsn)
}

func open(dsn string) (*Repository, error) {
	db, err := sql.Open(driverName, dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// One writer keeps upserts and revision transactions serialized.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	repo := &Repository{db: db}
	if err := repo.migrate(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return repo, nil
}

// Close closes the requested operation.
func (r *Repository) Close() error {
	return r.db.Close()
}

// Ping reports whether the database is reachable.
func (r *Repository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

// migrate handles migrate.
func (r *Repository) migrate(ctx context.Context) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS workers (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL,
			role TEXT NOT NULL DEFAULT '',
			daily_rate TEXT NOT NULL,
			lunch_allowance TEXT NOT NULL DEFAULT '0',
			is_active INTEGER NOT NULL DEFAULT 1,
			created_at TEXT NOT NULL,
			updated_at TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS attendance (
			id TEXT PRIMARY KEY,
			worker_id TEXT NOT NULL,
			date TEXT NOT NULL,
			status TEXT NOT NULL CHECK (status IN ('present', 'absent', 'late', 'half-day')),
			lunch_taken INTEGER NOT NULL DEFAULT 0,
			hours REAL NOT NULL DEFAULT 0 CHECK (hours >= 0),
			version INTEGER NOT NULL DEFAULT 1,
			note TEXT NOT NULL DEFAULT '',
			created_at TEXT NOT NULL,
			updated_at TEXT NOT NULL,
			UNIQUE(worker_id, date),
			FOREIGN KEY(worker_id) REFERENCES workers(id)
		);`,
		`CREATE INDEX IF NOT EXISTS idx_attendance_date ON attendance(date);`,
		`CREATE TABLE IF NOT EXISTS attendance_revisions (
			attendance_id TEXT NOT NULL,
			version INTEGER NOT NULL,
			status TEXT NOT NULL,
			lunch_taken INTEGER NOT NULL,
			hours REAL NOT NULL,
			note TEXT NOT NULL DEFAULT '',
			recorded_at TEXT NOT NULL,
			superseded_at TEXT NOT NULL,
			PRIMARY KEY(attendance_id, version),
			FOREIGN KEY(attendance_id) REFERENCES attendance(id)
		);`,
		`CREATE TABLE IF NOT EXISTS expenses (
			id TEXT PRIMARY KEY,
			category TEXT NOT NULL,
			amount TEXT NOT NULL,
			date TEXT NOT NULL,
			description TEXT NOT NULL DEFAULT '',
			worker_id TEXT NOT NULL DEFAULT '',
			attendance_id TEXT NOT NULL DEFAULT '',
			created_at TEXT NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_expenses_attendance ON expenses(attendance_id);`,
		`CREATE TABLE IF NOT EXISTS payroll_ledger (
			worker_id TEXT NOT NULL,
			period_start TEXT NOT NULL,
			period_end TEXT NOT NULL,
			days_worked INTEGER NOT NULL,
			lunch_days INTEGER NOT NULL,
			daily_rate TEXT NOT NULL,
			lunch_allowance TEXT NOT NULL,
			gross_amount TEXT NOT NULL,
			lunch_total TEXT NOT NULL,
			net_amount TEXT NOT NULL,
			status TEXT NOT NULL CHECK (status IN ('pending', 'paid')),
			paid_at TEXT,
			committed_at TEXT NOT NULL,
			updated_at TEXT NOT NULL,
			PRIMARY KEY(worker_id, period_start, period_end),
			CHECK (period_start <= period_end)
		);`,
		`CREATE TABLE IF NOT EXISTS budget (
			id INTEGER PRIMARY KEY CHECK (id = 1),
			total_budget TEXT NOT NULL,
			used_budget TEXT NOT NULL,
			updated_at TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS activity_log (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			action_type TEXT NOT NULL,
			collection TEXT NOT NULL,
			subject_id TEXT NOT NULL DEFAULT '',
			message TEXT NOT NULL,
			metadata_json TEXT NOT NULL DEFAULT '{}',
			occurred_at TEXT NOT NULL
		);`,
	}
	for _, stmt := range stmts {
		if _, err := r.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migrate sqlite: %w", err)
		}
	}
	return nil
}

// CreateWorker inserts a worker.
func (r *Repository) CreateWorker(ctx context.Context, w domain.Worker) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO workers(id, name, role, daily_rate, lunch_allowance, is_active, created_at, updated_at)
		VALUES(?, ?, ?, ?, ?, ?, ?, ?)
	`, w.ID, w.Name, w.Role, w.DailyRate, w.LunchAllowance, boolToInt(w.Active), ts(w.CreatedAt), ts(w.UpdatedAt))
	return err
}

// UpdateWorker replaces mutable worker fields.
func (r *Repository) UpdateWorker(ctx context.Context, w domain.Worker) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE workers
		SET name = ?, role = ?, daily_rate = ?, lunch_allowance = ?, is_active = ?, updated_at = ?
		WHERE id = ?
	`, w.Name, w.Role, w.DailyRate, w.LunchAllowance, boolToInt(w.Active), ts(w.UpdatedAt), w.ID)
	if err != nil {
		return err
	}
	return translateNoRows(res)
}

// GetWorker returns one worker.
func (r *Repository) GetWorker(ctx context.Context, id string) (domain.Worker, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, name, role, daily_rate, lunch_allowance, is_active, created_at, updated_at
		FROM workers
		WHERE id = ?
	`, id)
	w, err := scanWorker(row)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Worker{}, app.ErrNotFound
	}
	return w, err
}

// ListWorkers lists workers by name.
func (r *Repository) ListWorkers(ctx context.Context, includeInactive bool) ([]domain.Worker, error) {
	query := `
		SELECT id, name, role, daily_rate, lunch_allowance, is_active, created_at, updated_at
		FROM workers
	`
	if !includeInactive {
		query += ` WHERE is_active = 1`
	}
	query += ` ORDER BY name ASC, id ASC`
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]domain.Worker, 0)
	for rows.Next() {
		w, err := scanWorker(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, w)
	}
	return out, rows.Err()
}

// CreateAttendance inserts a new attendance fact. An existing (worker_id, date)
// row is left untouched and domain.ErrDuplicateAttendance is returned.
func (r *Repository) CreateAttendance(ctx context.Context, rec domain.AttendanceRecord) error {
	res, err := r.db.ExecContext(ctx, `
		INSERT INTO attendance(id, worker_id, date, status, lunch_taken, hours, version, note, created_at, updated_at)
		VALUES(?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(worker_id, date) DO NOTHING
	`, rec.ID, rec.WorkerID, rec.Date, string(rec.Status), boolToInt(rec.LunchTaken), rec.Hours, rec.Version, rec.Note, ts(rec.CreatedAt), ts(rec.UpdatedAt))
	if err != nil {
		if isUniqueViolation(err, "attendance.worker_id") {
			return domain.ErrDuplicateAttendance
		}
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return fmt.Errorf("%w: worker %s on %s", domain.ErrDuplicateAttendance, rec.WorkerID, rec.Date)
	}
	return nil
}

const attendanceColumns = `id, worker_id, date, status, lunch_taken, hours, version, note, created_at, updated_at`

// GetAttendance returns the attendance fact for a worker and date.
func (r *Repository) GetAttendance(ctx context.Context, workerID string, date domain.Date) (domain.AttendanceRecord, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+attendanceColumns+` FROM attendance WHERE worker_id = ? AND date = ?`, workerID, date)
	rec, err := scanAttendance(row)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.AttendanceRecord{}, app.ErrNotFound
	}
	return rec, err
}

// ReviseAttendance stores next over the live row and appends prev as a revision.
// The update only applies when the live row is still at prev.Version.
func (r *Repository) ReviseAttendance(ctx context.Context, next domain.AttendanceRecord, prev domain.AttendanceRevision) (err error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	res, err := tx.ExecContext(ctx, `
		UPDATE attendance
		SET status = ?, lunch_taken = ?, hours = ?, note = ?, version = ?, updated_at = ?
		WHERE id = ? AND version = ?
	`, string(next.Status), boolToInt(next.LunchTaken), next.Hours, next.Note, next.Version, ts(next.UpdatedAt), next.ID, prev.Version)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		var exists int
		if scanErr := tx.QueryRowContext(ctx, `SELECT COUNT(1) FROM attendance WHERE id = ?`, next.ID).Scan(&exists); scanErr != nil {
			return scanErr
		}
		if exists == 0 {
			return app.ErrNotFound
		}
		return fmt.Errorf("%w: attendance %s moved past version %d", app.ErrVersionConflict, next.ID, prev.Version)
	}
	if _, err = insertAttendanceRevision(ctx, tx, prev); err != nil {
		return err
	}
	return tx.Commit()
}

// ListAttendance lists attendance facts by date.
func (r *Repository) ListAttendance(ctx context.Context, filter app.AttendanceFilter) ([]domain.AttendanceRecord, error) {
	where, args := []string{}, []any{}
	if filter.WorkerID != "" {
		where = append(where, "worker_id = ?")
		args = append(args, filter.WorkerID)
	}
	if filter.Period != nil {
		where = append(where, "date >= ? AND date <= ?")
		args = append(args, filter.Period.Start, filter.Period.End)
	}
	query := `SELECT ` + attendanceColumns + ` FROM attendance` + whereClause(where) + ` ORDER BY date ASC, worker_id ASC`
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]domain.AttendanceRecord, 0)
	for rows.Next() {
		rec, err := scanAttendance(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// ListAttendanceRevisions lists superseded versions oldest first.
func (r *Repository) ListAttendanceRevisions(ctx context.Context, attendanceID string) ([]domain.AttendanceRevision, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT attendance_id, version, status, lunch_taken, hours, note, recorded_at, superseded_at
		FROM attendance_revisions
		WHERE attendance_id = ?
		ORDER BY version ASC
	`, attendanceID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]domain.AttendanceRevision, 0)
	for rows.Next() {
		var (
			rev          domain.AttendanceRevision
			status       string
			lunch        int
			recordedRaw  string
			supersededAt string
		)
		if err := rows.Scan(&rev.AttendanceID, &rev.Version, &status, &lunch, &rev.Hours, &rev.Note, &recordedRaw, &supersededAt); err != nil {
			return nil, err
		}
		rev.Status = domain.AttendanceStatus(status)
		rev.LunchTaken = lunch != 0
		rev.RecordedAt = parseTS(recordedRaw)
		rev.SupersededAt = parseTS(supersededAt)
		out = append(out, rev)
	}
	return out, rows.Err()
}

// CreateExpense inserts an expense fact.
func (r *Repository) CreateExpense(ctx context.Context, e domain.ExpenseRecord) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO expenses(id, category, amount, date, description, worker_id, attendance_id, created_at)
		VALUES(?, ?, ?, ?, ?, ?, ?, ?)
	`, e.ID, e.Category, e.Amount, e.Date, e.Description, e.WorkerID, e.AttendanceID, ts(e.CreatedAt))
	return err
}

// ListExpenses lists expenses by date then insertion time.
func (r *Repository) ListExpenses(ctx context.Context, filter app.ExpenseFilter) ([]domain.ExpenseRecord, error) {
	where, args := []string{}, []any{}
	if filter.Category != "" {
		where = append(where, "category = ? COLLATE NOCASE")
		args = append(args, filter.Category)
	}
	if filter.WorkerID != "" {
		where = append(where, "worker_id = ?")
		args = append(args, filter.WorkerID)
	}
	if filter.AttendanceID != "" {
		where = append(where, "attendance_id = ?")
		args = append(args, filter.AttendanceID)
	}
	if filter.Period != nil {
		where = append(where, "date >= ? AND date <= ?")
		args = append(args, filter.Period.Start, filter.Period.End)
	}
	query := `
		SELECT id, category, amount, date, description, worker_id, attendance_id, created_at
		FROM expenses` + whereClause(where) + `
		ORDER BY date ASC, created_at ASC, id ASC`
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]domain.ExpenseRecord, 0)
	for rows.Next() {
		var (
			e          domain.ExpenseRecord
			createdRaw string
		)
		if err := rows.Scan(&e.ID, &e.Category, &e.Amount, &e.Date, &e.Description, &e.WorkerID, &e.AttendanceID, &createdRaw); err != nil {
			return nil, err
		}
		e.CreatedAt = parseTS(createdRaw)
		out = append(out, e)
	}
	return out, rows.Err()
}

// execerContext represents a write-only DB contract used by DB and Tx implementations.
type execerContext interface {
	ExecContext(context.Context, string, ...any) (sql.Result, error)
}

// insertAttendanceRevision appends one superseded attendance version.
func insertAttendanceRevision(ctx context.Context, execer execerContext, rev domain.AttendanceRevision) (sql.Result, error) {
	return execer.ExecContext(ctx, `
		INSERT INTO attendance_revisions(attendance_id, version, status, lunch_taken, hours, note, recorded_at, superseded_at)
		VALUES(?, ?, ?, ?, ?, ?, ?, ?)
	`, rev.AttendanceID, rev.Version, string(rev.Status), boolToInt(rev.LunchTaken), rev.Hours, rev.Note, ts(rev.RecordedAt), ts(rev.SupersededAt))
}

// scanner represents scanner data used by this package.
type scanner interface {
	Scan(dest ...any) error
}

func scanWorker(s scanner) (domain.Worker, error) {
	var (
		w          domain.Worker
		active     int
		createdRaw string
		updatedRaw string
	)
	if err := s.Scan(&w.ID, &w.Name, &w.Role, &w.DailyRate, &w.LunchAllowance, &active, &createdRaw, &updatedRaw); err != nil {
		return domain.Worker{}, err
	}
	w.Active = active != 0
	w.CreatedAt = parseTS(createdRaw)
	w.UpdatedAt = parseTS(updatedRaw)
	return w, nil
}

func scanAttendance(s scanner) (domain.AttendanceRecord, error) {
	var (
		rec        domain.AttendanceRecord
		status     string
		lunch      int
		createdRaw string
		updatedRaw string
	)
	if err := s.Scan(&rec.ID, &rec.WorkerID, &rec.Date, &status, &lunch, &rec.Hours, &rec.Version, &rec.Note, &createdRaw, &updatedRaw); err != nil {
		return domain.AttendanceRecord{}, err
	}
	rec.Status = domain.AttendanceStatus(status)
	rec.LunchTaken = lunch != 0
	rec.CreatedAt = parseTS(createdRaw)
	rec.UpdatedAt = parseTS(updatedRaw)
	return rec, nil
}

func whereClause(conds []string) string {
	if len(conds) == 0 {
		return ""
	}
	return " WHERE " + strings.Join(conds, " AND ")
}

// translateNoRows handles translate no rows.
func translateNoRows(res sql.Result) error {
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return app.ErrNotFound
	}
	return nil
}

func boolToInt(v bool) int {
	if v {
		return 1
	}
	return 0
}

func ts(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

// parseTS parses input into a normalized form.
func parseTS(v string) time.Time {
	ts, err := time.Parse(time.RFC3339Nano, v)
	if err != nil {
		return time.Time{}
	}
	return ts.UTC()
}

// parseNullTS parses input into a normalized form.
func parseNullTS(v sql.NullString) *time.Time {
	if !v.Valid || strings.TrimSpace(v.String) == "" {
		return nil
	}
	ts := parseTS(v.String)
	return &ts
}

// isUniqueViolation reports whether err is a UNIQUE constraint failure naming column.
func isUniqueViolation(err error, column string) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "UNIQUE constraint failed") && strings.Contains(msg, column)
}

func marshalMetadata(m map[string]string) (string, error) {
	if len(m) == 0 {
		return "{}", nil
	}
	b, err := json.Marshal(m)
	if err != nil {
		return "", fmt.Errorf("encode metadata: %w", err)
	}
	return string(b), nil
}
