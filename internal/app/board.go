package app

import (
	"context"
	"slices"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/hylla/sitebook/internal/domain"
)

// PayrollRow is one worker's derived payroll plus the committed ledger entry, if any.
type PayrollRow struct {
	Worker  domain.Worker              `json:"worker"`
	Payroll domain.PayrollComputation  `json:"payroll"`
	Ledger  *domain.PayrollLedgerEntry `json:"ledger,omitempty"`
}

// buildPayrollRows derives one row per worker, ordered by worker name.
func buildPayrollRows(workers []domain.Worker, facts []domain.AttendanceRecord, entries []domain.PayrollLedgerEntry, period domain.Period, policy domain.PayPolicy) []PayrollRow {
	byWorker := make(map[string][]domain.AttendanceRecord, len(workers))
	for _, f := range facts {
		byWorker[f.WorkerID] = append(byWorker[f.WorkerID], f)
	}
	ledger := make(map[string]domain.PayrollLedgerEntry, len(entries))
	for _, e := range entries {
		if e.Period == period {
			ledger[e.WorkerID] = e
		}
	}

	rows := make([]PayrollRow, 0, len(workers))
	for _, w := range workers {
		row := PayrollRow{
			Worker:  w,
			Payroll: domain.DerivePayroll(w, byWorker[w.ID], period, policy),
		}
		if e, ok := ledger[w.ID]; ok {
			row.Ledger = &e
		}
		rows = append(rows, row)
	}
	slices.SortFunc(rows, func(a, b PayrollRow) int {
		if c := strings.Compare(a.Worker.Name, b.Worker.Name); c != 0 {
			return c
		}
		return strings.Compare(a.Worker.ID, b.Worker.ID)
	})
	return rows
}

// BoardSnapshot is the last applied live board state.
type BoardSnapshot struct {
	Period      domain.Period `json:"period"`
	Generation  uint64        `json:"generation"`
	Rows        []PayrollRow  `json:"rows"`
	RefreshedAt time.Time     `json:"refreshed_at"`
}

// LiveBoard keeps an in-memory payroll board for one period current by
// re-pulling facts on every workers, attendance or payroll notification.
// A refresh that finishes after a newer one has started is discarded.
type LiveBoard struct {
	repo    Repository
	policy  domain.PayPolicy
	clock   Clock
	logger  Logger
	metrics *Metrics

	mu       sync.RWMutex
	period   domain.Period
	latest   uint64
	snapshot BoardSnapshot
	unsubs   []Unsubscribe
}

// NewLiveBoard constructs a board for period. Call Start to follow changes.
func NewLiveBoard(repo Repository, policy domain.PayPolicy, period domain.Period, clock Clock, logger Logger, metrics *Metrics) *LiveBoard {
	return &LiveBoard{
		repo:     repo,
		policy:   policy,
		clock:    clockOrNow(clock),
		logger:   loggerOrNop(logger),
		metrics:  metrics,
		period:   period,
		snapshot: BoardSnapshot{Period: period},
	}
}

// Start performs an initial refresh and subscribes to n.
func (b *LiveBoard) Start(ctx context.Context, n *Notifier) error {
	if err := b.Refresh(ctx); err != nil {
		return err
	}
	collections := []domain.Collection{domain.CollectionWorkers, domain.CollectionAttendance, domain.CollectionPayroll}
	unsubs := make([]Unsubscribe, 0, len(collections))
	for _, c := range collections {
		unsub, err := n.Subscribe(c, b.onChange)
		if err != nil {
			for _, u := range unsubs {
				u()
			}
			return err
		}
		unsubs = append(unsubs, unsub)
	}
	b.mu.Lock()
	b.unsubs = append(b.unsubs, unsubs...)
	b.mu.Unlock()
	return nil
}

// Stop ends every subscription.
func (b *LiveBoard) Stop() {
	b.mu.Lock()
	unsubs := b.unsubs
	b.unsubs = nil
	b.mu.Unlock()
	for _, u := range unsubs {
		u()
	}
}

// SetPeriod switches the board to period and refreshes.
func (b *LiveBoard) SetPeriod(ctx context.Context, period domain.Period) error {
	if !period.Valid() {
		return domain.ErrInvalidPeriod
	}
	b.mu.Lock()
	b.period = period
	b.mu.Unlock()
	return b.Refresh(ctx)
}

// Snapshot returns the last applied state.
func (b *LiveBoard) Snapshot() BoardSnapshot {
	b.mu.RLock()
	defer b.mu.RUnlock()
	out := b.snapshot
	out.Rows = slices.Clone(b.snapshot.Rows)
	return out
}

// Refresh re-pulls workers, attendance and ledger entries concurrently and
// swaps in the derived rows unless a newer refresh has started meanwhile.
func (b *LiveBoard) Refresh(ctx context.Context) error {
	b.mu.Lock()
	b.latest++
	gen := b.latest
	period := b.period
	b.mu.Unlock()

	var (
		workers []domain.Worker
		facts   []domain.AttendanceRecord
		entries []domain.PayrollLedgerEntry
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		workers, err = b.repo.ListWorkers(gctx, false)
		return err
	})
	g.Go(func() error {
		var err error
		facts, err = b.repo.ListAttendance(gctx, AttendanceFilter{Period: &period})
		return err
	})
	g.Go(func() error {
		var err error
		entries, err = b.repo.ListPayrollEntries(gctx, LedgerFilter{Period: &period})
		return err
	})
	if err := g.Wait(); err != nil {
		return err
	}

	rows := buildPayrollRows(workers, facts, entries, period, b.policy)
	b.metrics.derived(len(rows))

	b.mu.Lock()
	defer b.mu.Unlock()
	if gen != b.latest {
		b.metrics.stale()
		b.logger.Debug("discarding stale board refresh", "generation", gen, "latest", b.latest)
		return nil
	}
	b.snapshot = BoardSnapshot{
		Period:      period,
		Generation:  gen,
		Rows:        rows,
		RefreshedAt: b.clock().UTC(),
	}
	return nil
}

func (b *LiveBoard) onChange(ctx context.Context, c domain.Collection) {
	if err := b.Refresh(ctx); err != nil && ctx.Err() == nil {
		b.logger.Error("live board refresh failed", "collection", c, "err", err)
	}
}
