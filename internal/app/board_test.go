package app

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hylla/sitebook/internal/domain"
)

func TestLiveBoardFollowsAttendance(t *testing.T) {
	n := NewNotifier(nil, nil)
	t.Cleanup(n.Close)
	repo := newFakeRepo()
	svc := newTestService(t, repo, ServiceConfig{Notifier: n})
	ctx := context.Background()

	board := NewLiveBoard(repo, domain.DefaultPayPolicy(), week(t), nil, nil, nil)
	require.NoError(t, board.Start(ctx, n))
	t.Cleanup(board.Stop)
	assert.Empty(t, board.Snapshot().Rows)

	w := seedScenario(t, svc)
	quiesce(t, n)

	snap := board.Snapshot()
	require.Len(t, snap.Rows, 1)
	assert.Equal(t, w.ID, snap.Rows[0].Worker.ID)
	assert.Equal(t, 2, snap.Rows[0].Payroll.DaysWorked)
	assert.True(t, snap.Rows[0].Payroll.Net.Equal(dec("9000")))
	assert.Nil(t, snap.Rows[0].Ledger)

	_, err := svc.MarkPaid(ctx, w.ID, week(t))
	require.NoError(t, err)
	quiesce(t, n)

	snap = board.Snapshot()
	require.NotNil(t, snap.Rows[0].Ledger)
	assert.Equal(t, domain.PaymentPaid, snap.Rows[0].Ledger.Status)
}

func TestLiveBoardDiscardsStaleRefresh(t *testing.T) {
	repo := newFakeRepo()
	svc := newTestService(t, repo, ServiceConfig{})
	seedScenario(t, svc)
	reg := prometheus.NewRegistry()
	metrics := NewMetrics(reg)

	board := NewLiveBoard(repo, domain.DefaultPayPolicy(), week(t), nil, nil, metrics)
	require.NoError(t, board.Refresh(context.Background()))
	first := board.Snapshot()

	slow := &gatedRepo{fakeRepo: repo, entered: make(chan struct{}, 1), gate: make(chan struct{})}
	board.repo = slow
	done := make(chan error, 1)
	go func() { done <- board.Refresh(context.Background()) }()
	<-slow.entered

	// A newer refresh starts while the first one is still fetching.
	board.mu.Lock()
	board.latest++
	board.mu.Unlock()
	close(slow.gate)
	require.NoError(t, <-done)

	assert.Equal(t, first.Generation, board.Snapshot().Generation)
	assert.Equal(t, float64(1), testutil.ToFloat64(metrics.staleRefreshes))
}

func TestLiveBoardRefreshError(t *testing.T) {
	repo := newFakeRepo()
	repo.failList = errors.New("store offline")
	board := NewLiveBoard(repo, domain.DefaultPayPolicy(), week(t), nil, nil, nil)

	err := board.Refresh(context.Background())
	require.ErrorContains(t, err, "store offline")
	assert.Zero(t, board.Snapshot().Generation)
}

func TestLiveBoardSetPeriod(t *testing.T) {
	repo := newFakeRepo()
	svc := newTestService(t, repo, ServiceConfig{})
	seedScenario(t, svc)
	board := NewLiveBoard(repo, domain.DefaultPayPolicy(), week(t), nil, nil, nil)

	next := domain.Period{Start: domain.MustParseDate("2024-01-08"), End: domain.MustParseDate("2024-01-14")}
	require.NoError(t, board.SetPeriod(context.Background(), next))
	snap := board.Snapshot()
	assert.Equal(t, next, snap.Period)
	require.Len(t, snap.Rows, 1)
	assert.Zero(t, snap.Rows[0].Payroll.DaysWorked)

	err := board.SetPeriod(context.Background(), domain.Period{Start: next.End, End: next.Start})
	assert.ErrorIs(t, err, domain.ErrInvalidPeriod)
}

// gatedRepo blocks worker listing until gate closes.
type gatedRepo struct {
	*fakeRepo
	entered chan struct{}
	gate    chan struct{}
}

func (g *gatedRepo) ListWorkers(ctx context.Context, includeInactive bool) ([]domain.Worker, error) {
	g.entered <- struct{}{}
	select {
	case <-g.gate:
	case <-time.After(5 * time.Second):
		return nil, errors.New("gate never opened")
	}
	return g.fakeRepo.ListWorkers(ctx, includeInactive)
}
