package app

import (
	"context"

	"github.com/hylla/sitebook/internal/domain"
)

const (
	defaultActivityLimit = 50
	maxActivityLimit     = 500
)

// ActivityRecorder appends audit entries and publishes the matching change signals.
type ActivityRecorder struct {
	store    ActivityStore
	notifier *Notifier
	clock    Clock
	logger   Logger
	metrics  *Metrics
}

// NewActivityRecorder constructs a recorder. notifier may be nil.
func NewActivityRecorder(store ActivityStore, notifier *Notifier, clock Clock, logger Logger, metrics *Metrics) *ActivityRecorder {
	return &ActivityRecorder{
		store:    store,
		notifier: notifier,
		clock:    clockOrNow(clock),
		logger:   loggerOrNop(logger),
		metrics:  metrics,
	}
}

// Record runs after a successful write to collection. It publishes collection,
// appends one audit entry and then publishes activity. A failed append is
// logged and does not undo the write.
func (r *ActivityRecorder) Record(ctx context.Context, collection domain.Collection, action domain.ActivityAction, subjectID, message string, metadata map[string]string) domain.ActivityEntry {
	r.metrics.mutation(collection, action)
	r.notifier.Publish(collection)

	entry := domain.NewActivityEntry(action, collection, subjectID, message, metadata, r.clock())
	saved, err := r.store.AppendActivity(ctx, entry)
	if err != nil {
		r.logger.Error("append activity failed", "action", action, "subject", subjectID, "err", err)
		return entry
	}
	r.logger.Info(message, "action", action, "subject", subjectID)
	r.notifier.Publish(domain.CollectionActivity)
	return saved
}

// List returns the newest entries first.
func (r *ActivityRecorder) List(ctx context.Context, limit int) ([]domain.ActivityEntry, error) {
	switch {
	case limit < 0:
		return nil, ErrInvalidLimit
	case limit == 0:
		limit = defaultActivityLimit
	case limit > maxActivityLimit:
		limit = maxActivityLimit
	}
	return r.store.ListActivity(ctx, limit)
}
