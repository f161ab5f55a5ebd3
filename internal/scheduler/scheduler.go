// Package scheduler runs periodic payroll and budget maintenance jobs.
package scheduler

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/hylla/sitebook/internal/app"
	"github.com/hylla/sitebook/internal/domain"
)

// defaultJobTimeout bounds one job run.
const defaultJobTimeout = 2 * time.Minute

// Parser accepts standard five-field expressions and descriptors such as @hourly or @every 5m.
var Parser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)

// PayrollJobs is the service surface the scheduler drives.
type PayrollJobs interface {
	CurrentWeek() domain.Period
	RecalculateBudget(ctx context.Context) (domain.Budget, error)
	CommitPeriod(ctx context.Context, period domain.Period) ([]domain.PayrollLedgerEntry, error)
}

// BoardRoller moves a live board onto a new period.
type BoardRoller interface {
	SetPeriod(ctx context.Context, period domain.Period) error
}

// Config holds cron expressions. An empty expression disables that job.
type Config struct {
	BudgetRecalcCron  string
	PayrollCommitCron string
	BoardRollCron     string
	Location          *time.Location
	JobTimeout        time.Duration
}

// Scheduler manages scheduled tasks.
type Scheduler struct {
	cron    *cron.Cron
	jobs    PayrollJobs
	board   BoardRoller
	logger  app.Logger
	timeout time.Duration
}

// New validates every expression and registers the enabled jobs. board may be nil.
func New(cfg Config, jobs PayrollJobs, board BoardRoller, logger app.Logger) (*Scheduler, error) {
	if jobs == nil {
		return nil, fmt.Errorf("scheduler: payroll jobs are required")
	}
	if logger == nil {
		logger = nopLogger{}
	}
	loc := cfg.Location
	if loc == nil {
		loc = time.Local
	}
	s := &Scheduler{
		jobs:    jobs,
		board:   board,
		logger:  logger,
		timeout: cfg.JobTimeout,
	}
	if s.timeout <= 0 {
		s.timeout = defaultJobTimeout
	}
	cronLog := cronLogger{logger}
	s.cron = cron.New(
		cron.WithParser(Parser),
		cron.WithLocation(loc),
		cron.WithLogger(cronLog),
		cron.WithChain(cron.Recover(cronLog), cron.SkipIfStillRunning(cronLog)),
	)

	specs := []struct {
		name string
		spec string
		run  func(context.Context) error
	}{
		{"budget_recalc", cfg.BudgetRecalcCron, s.recalculateBudget},
		{"payroll_commit", cfg.PayrollCommitCron, s.commitPreviousWeek},
		{"board_roll", cfg.BoardRollCron, s.rollBoard},
	}
	for _, job := range specs {
		spec := strings.TrimSpace(job.spec)
		if spec == "" {
			continue
		}
		if job.name == "board_roll" && board == nil {
			continue
		}
		if _, err := s.cron.AddFunc(spec, s.wrap(job.name, job.run)); err != nil {
			return nil, fmt.Errorf("scheduler: %s spec %q: %w", job.name, spec, err)
		}
		logger.Debug("scheduled job", "job", job.name, "spec", spec)
	}
	return s, nil
}

// Start starts the scheduler in its own goroutine.
func (s *Scheduler) Start() {
	s.logger.Info("starting scheduler", "jobs", len(s.cron.Entries()))
	s.cron.Start()
}

// Stop halts scheduling and waits for running jobs or ctx, whichever ends first.
func (s *Scheduler) Stop(ctx context.Context) error {
	s.logger.Info("stopping scheduler")
	done := s.cron.Stop()
	select {
	case <-done.Done():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Run starts the scheduler, blocks until ctx ends, then stops it.
func (s *Scheduler) Run(ctx context.Context) error {
	s.Start()
	<-ctx.Done()
	stopCtx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()
	return s.Stop(stopCtx)
}

// Jobs returns the number of registered jobs.
func (s *Scheduler) Jobs() int {
	return len(s.cron.Entries())
}

func (s *Scheduler) wrap(name string, run func(context.Context) error) func() {
	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
		defer cancel()
		started := time.Now()
		if err := run(ctx); err != nil {
			s.logger.Error("scheduled job failed", "job", name, "err", err)
			return
		}
		s.logger.Debug("scheduled job finished", "job", name, "took", time.Since(started))
	}
}

func (s *Scheduler) recalculateBudget(ctx context.Context) error {
	budget, err := s.jobs.RecalculateBudget(ctx)
	if err != nil {
		return fmt.Errorf("recalculate budget: %w", err)
	}
	s.logger.Info("budget recalculated", "used", budget.Used.String(), "total", budget.Total.String())
	return nil
}

// commitPreviousWeek writes last week's derived payroll into the ledger as pending.
func (s *Scheduler) commitPreviousWeek(ctx context.Context) error {
	period := s.jobs.CurrentWeek().Previous()
	entries, err := s.jobs.CommitPeriod(ctx, period)
	if err != nil {
		return fmt.Errorf("commit payroll %s: %w", period, err)
	}
	s.logger.Info("payroll committed", "period", period.String(), "entries", len(entries))
	return nil
}

func (s *Scheduler) rollBoard(ctx context.Context) error {
	period := s.jobs.CurrentWeek()
	if err := s.board.SetPeriod(ctx, period); err != nil {
		return fmt.Errorf("roll board to %s: %w", period, err)
	}
	return nil
}

// cronLogger adapts app.Logger to cron's logger interface.
type cronLogger struct {
	logger app.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...any) {
	l.logger.Debug("cron: "+msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...any) {
	l.logger.Error("cron: "+msg, append(keysAndValues, "err", err)...)
}

type nopLogger struct{}

func (nopLogger) Debug(any, ...any) {}
func (nopLogger) Info(any, ...any)  {}
func (nopLogger) Warn(any, ...any)  {}
func (nopLogger) Error(any, ...any) {}
