package app

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hylla/sitebook/internal/domain"
)

func quiesce(t *testing.T, n *Notifier) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, n.Quiesce(ctx))
}

func TestNotifierDeliversOnlyToCollection(t *testing.T) {
	n := NewNotifier(nil, nil)
	t.Cleanup(n.Close)

	var attendance, expenses atomic.Int32
	_, err := n.Subscribe(domain.CollectionAttendance, func(context.Context, domain.Collection) { attendance.Add(1) })
	require.NoError(t, err)
	_, err = n.Subscribe(domain.CollectionExpenses, func(context.Context, domain.Collection) { expenses.Add(1) })
	require.NoError(t, err)

	n.Publish(domain.CollectionAttendance)
	quiesce(t, n)

	assert.Equal(t, int32(1), attendance.Load())
	assert.Equal(t, int32(0), expenses.Load())
}

func TestNotifierCoalescesWhileHandlerRuns(t *testing.T) {
	n := NewNotifier(nil, nil)
	t.Cleanup(n.Close)

	release := make(chan struct{})
	started := make(chan struct{}, 1)
	var calls atomic.Int32
	_, err := n.Subscribe(domain.CollectionAttendance, func(context.Context, domain.Collection) {
		calls.Add(1)
		select {
		case started <- struct{}{}:
		default:
		}
		<-release
	})
	require.NoError(t, err)

	n.Publish(domain.CollectionAttendance)
	<-started
	for range 10 {
		n.Publish(domain.CollectionAttendance)
	}
	close(release)
	quiesce(t, n)

	assert.Equal(t, int32(2), calls.Load(), "signals during a run collapse into one follow-up run")
}

func TestNotifierUnsubscribeStopsDelivery(t *testing.T) {
	n := NewNotifier(nil, nil)
	t.Cleanup(n.Close)

	var calls atomic.Int32
	unsub, err := n.Subscribe(domain.CollectionWorkers, func(context.Context, domain.Collection) { calls.Add(1) })
	require.NoError(t, err)

	n.Publish(domain.CollectionWorkers)
	quiesce(t, n)
	unsub()
	unsub()
	n.Publish(domain.CollectionWorkers)
	quiesce(t, n)

	assert.Equal(t, int32(1), calls.Load())
}

func TestNotifierUnsubscribeCancelsRunningHandler(t *testing.T) {
	n := NewNotifier(nil, nil)
	t.Cleanup(n.Close)

	started := make(chan struct{})
	var cancelled atomic.Bool
	unsub, err := n.Subscribe(domain.CollectionAttendance, func(ctx context.Context, _ domain.Collection) {
		close(started)
		<-ctx.Done()
		cancelled.Store(true)
	})
	require.NoError(t, err)

	n.Publish(domain.CollectionAttendance)
	<-started
	unsub()

	assert.True(t, cancelled.Load())
	quiesce(t, n)
}

func TestNotifierRecoversFromPanickingHandler(t *testing.T) {
	n := NewNotifier(nil, nil)
	t.Cleanup(n.Close)

	var calls atomic.Int32
	_, err := n.Subscribe(domain.CollectionBudget, func(context.Context, domain.Collection) {
		if calls.Add(1) == 1 {
			panic("boom")
		}
	})
	require.NoError(t, err)

	n.Publish(domain.CollectionBudget)
	quiesce(t, n)
	n.Publish(domain.CollectionBudget)
	quiesce(t, n)

	assert.Equal(t, int32(2), calls.Load())
}

func TestNotifierClose(t *testing.T) {
	n := NewNotifier(nil, nil)
	var wg sync.WaitGroup
	wg.Add(1)
	_, err := n.Subscribe(domain.CollectionExpenses, func(ctx context.Context, _ domain.Collection) {
		defer wg.Done()
	})
	require.NoError(t, err)
	n.Publish(domain.CollectionExpenses)
	wg.Wait()

	n.Close()
	n.Close()
	n.Publish(domain.CollectionExpenses)

	_, err = n.Subscribe(domain.CollectionExpenses, func(context.Context, domain.Collection) {})
	assert.ErrorIs(t, err, ErrNotifierClosed)
	quiesce(t, n)
}

func TestServiceWithNotifierRecalculatesBudgetAsynchronously(t *testing.T) {
	n := NewNotifier(nil, nil)
	t.Cleanup(n.Close)
	repo := newFakeRepo()
	svc := newTestService(t, repo, ServiceConfig{Notifier: n})

	var activity atomic.Int32
	_, err := n.Subscribe(domain.CollectionActivity, func(context.Context, domain.Collection) { activity.Add(1) })
	require.NoError(t, err)

	seedScenario(t, svc)
	quiesce(t, n)

	summary, err := svc.BudgetSummary(context.Background())
	require.NoError(t, err)
	assert.True(t, summary.Used.Equal(dec("10000")), "used = %s", summary.Used)
	assert.Positive(t, activity.Load())
	assert.Contains(t, repo.actions(), domain.ActionBudgetRecalculated)
}
