package advisory

import (
	"context"
	"sync"
	"time"

	"log/slog"

	"github.com/serviceops/conveyor/internal/logging"
	"github.com/serviceops/conveyor/pkg/domain"
	"github.com/serviceops/conveyor/pkg/ports"
)

type notification struct {
	snap domain.Snapshot
	rec  domain.TransitionRecord
}

// Notifier adapts any Advisor into the non-blocking contract the
// orchestrator requires: NotifyTransition enqueues onto a bounded channel
// served by a single worker, and drops the notification under backpressure.
// Advisor errors and panics are logged here and never reach the commit path.
type Notifier struct {
	advisor ports.Advisor
	queue   chan notification
	logger  *slog.Logger

	closeOnce sync.Once
	done      chan struct{}
	drained   chan struct{}

	mu      sync.Mutex
	dropped uint64
}

// NotifierOption configures the Notifier.
type NotifierOption func(*Notifier)

// WithQueueSize sets the notification buffer (default 256).
func WithQueueSize(n int) NotifierOption {
	return func(nf *Notifier) {
		if n > 0 {
			nf.queue = make(chan notification, n)
		}
	}
}

// WithLogger sets the logger for dropped and failed notifications.
func WithLogger(logger *slog.Logger) NotifierOption {
	return func(nf *Notifier) {
		if logger != nil {
			nf.logger = logger
		}
	}
}

// NewNotifier starts the delivery worker around the given advisor.
func NewNotifier(advisor ports.Advisor, opts ...NotifierOption) *Notifier {
	n := &Notifier{
		advisor: advisor,
		queue:   make(chan notification, 256),
		logger:  logging.NewNop(),
		done:    make(chan struct{}),
		drained: make(chan struct{}),
	}
	for _, opt := range opts {
		opt(n)
	}
	go n.run()
	return n
}

func (n *Notifier) run() {
	defer close(n.drained)
	for {
		select {
		case <-n.done:
			// Drain what is already queued, then stop.
			for {
				select {
				case note := <-n.queue:
					n.deliver(note)
				default:
					return
				}
			}
		case note := <-n.queue:
			n.deliver(note)
		}
	}
}

func (n *Notifier) deliver(note notification) {
	defer func() {
		if r := recover(); r != nil {
			n.logger.Warn("advisor panicked during notify",
				"instance_id", note.snap.ID,
				"panic", r,
			)
		}
	}()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := n.advisor.NotifyTransition(ctx, note.snap, note.rec); err != nil {
		n.logger.Warn("advisor notify failed",
			"instance_id", note.snap.ID,
			"action", note.rec.Action,
			"err", err,
		)
	}
}

// NotifyTransition enqueues without blocking. Under backpressure the
// notification is dropped: advisory output is best-effort and its loss never
// affects transition correctness.
func (n *Notifier) NotifyTransition(ctx context.Context, snap domain.Snapshot, rec domain.TransitionRecord) error {
	select {
	case n.queue <- notification{snap: snap, rec: rec}:
	default:
		n.mu.Lock()
		n.dropped++
		dropped := n.dropped
		n.mu.Unlock()
		n.logger.Debug("advisory notification dropped under backpressure",
			"instance_id", snap.ID,
			"dropped_total", dropped,
		)
	}
	return nil
}

// Recommendations passes through to the wrapped advisor.
func (n *Notifier) Recommendations(ctx context.Context, instanceID string) ([]domain.Recommendation, error) {
	return n.advisor.Recommendations(ctx, instanceID)
}

// Dropped reports how many notifications were discarded under backpressure.
func (n *Notifier) Dropped() uint64 {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.dropped
}

// Close stops the worker after draining the queued notifications.
func (n *Notifier) Close() error {
	n.closeOnce.Do(func() {
		close(n.done)
	})
	select {
	case <-n.drained:
	case <-time.After(10 * time.Second):
	}
	return nil
}
