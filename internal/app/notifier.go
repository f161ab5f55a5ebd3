package app

import (
	"context"
	"fmt"
	"sync"

	"github.com/hylla/sitebook/internal/domain"
)

// ChangeHandler re-pulls a collection and recomputes whatever depends on it.
// ctx is cancelled when the subscription ends; handlers should abandon work then.
type ChangeHandler func(ctx context.Context, collection domain.Collection)

// Unsubscribe ends a subscription and waits for its running handler.
// It is safe to call more than once but must not be called from inside the
// subscription's own handler.
type Unsubscribe func()

// Notifier fans "collection changed" signals out to subscribers.
// Signals carry no payload. Each subscriber runs on its own goroutine and
// signals that arrive while a handler is already pending are coalesced.
type Notifier struct {
	mu      sync.Mutex
	subs    map[domain.Collection]map[uint64]*subscription
	nextID  uint64
	pending int
	idle    chan struct{}
	closed  bool

	logger  Logger
	metrics *Metrics
}

type subscription struct {
	collection domain.Collection
	handler    ChangeHandler
	signal     chan struct{}
	cancel     context.CancelFunc
	done       chan struct{}
}

// NewNotifier constructs an open notifier.
func NewNotifier(logger Logger, metrics *Metrics) *Notifier {
	return &Notifier{
		subs:    map[domain.Collection]map[uint64]*subscription{},
		logger:  loggerOrNop(logger),
		metrics: metrics,
	}
}

// Subscribe registers handler for collection.
func (n *Notifier) Subscribe(collection domain.Collection, handler ChangeHandler) (Unsubscribe, error) {
	if handler == nil {
		return nil, fmt.Errorf("subscribe %s: nil handler", collection)
	}
	ctx, cancel := context.WithCancel(context.Background())
	sub := &subscription{
		collection: collection,
		handler:    handler,
		signal:     make(chan struct{}, 1),
		cancel:     cancel,
		done:       make(chan struct{}),
	}

	n.mu.Lock()
	if n.closed {
		n.mu.Unlock()
		cancel()
		return nil, ErrNotifierClosed
	}
	n.nextID++
	id := n.nextID
	if n.subs[collection] == nil {
		n.subs[collection] = map[uint64]*subscription{}
	}
	n.subs[collection][id] = sub
	n.mu.Unlock()

	go n.run(ctx, sub)

	var once sync.Once
	return func() {
		once.Do(func() {
			n.mu.Lock()
			delete(n.subs[collection], id)
			n.mu.Unlock()
			sub.cancel()
			<-sub.done
		})
	}, nil
}

// Publish signals every subscriber of collection. It never blocks on handlers.
// A nil notifier drops the signal.
func (n *Notifier) Publish(collection domain.Collection) {
	if n == nil {
		return
	}
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.closed {
		return
	}
	for _, sub := range n.subs[collection] {
		select {
		case sub.signal <- struct{}{}:
			if n.pending == 0 {
				n.idle = make(chan struct{})
			}
			n.pending++
		default:
			// A signal is already queued; the queued run re-pulls everything.
		}
	}
}

// Quiesce blocks until every queued notification has been handled or ctx ends.
func (n *Notifier) Quiesce(ctx context.Context) error {
	n.mu.Lock()
	if n.pending == 0 {
		n.mu.Unlock()
		return nil
	}
	idle := n.idle
	n.mu.Unlock()

	select {
	case <-idle:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close cancels every subscription and waits for running handlers to return.
func (n *Notifier) Close() {
	n.mu.Lock()
	if n.closed {
		n.mu.Unlock()
		return
	}
	n.closed = true
	var subs []*subscription
	for _, byID := range n.subs {
		for _, sub := range byID {
			subs = append(subs, sub)
		}
	}
	n.subs = map[domain.Collection]map[uint64]*subscription{}
	n.mu.Unlock()

	for _, sub := range subs {
		sub.cancel()
	}
	for _, sub := range subs {
		<-sub.done
	}
}

func (n *Notifier) run(ctx context.Context, sub *subscription) {
	defer close(sub.done)
	defer func() {
		// Publish cannot reach this subscription anymore; release a queued signal.
		select {
		case <-sub.signal:
			n.handled()
		default:
		}
	}()
	for {
		select {
		case <-ctx.Done():
			return
		case <-sub.signal:
			n.deliver(ctx, sub)
			n.handled()
		}
	}
}

func (n *Notifier) deliver(ctx context.Context, sub *subscription) {
	defer func() {
		if r := recover(); r != nil {
			n.logger.Error("change handler panicked", "collection", sub.collection, "panic", r)
		}
	}()
	if ctx.Err() != nil {
		return
	}
	sub.handler(ctx, sub.collection)
	n.metrics.delivered(sub.collection)
}

func (n *Notifier) handled() {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.pending--
	if n.pending == 0 && n.idle != nil {
		close(n.idle)
		n.idle = nil
	}
}
