package instances

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"log/slog"

	"github.com/serviceops/conveyor/internal/logging"
	"github.com/serviceops/conveyor/pkg/domain"
	"github.com/serviceops/conveyor/pkg/ports"
)

// lockEntry holds the mutex and the reference count.
type lockEntry struct {
	mu     sync.Mutex
	refs   int
	unlock ports.UnlockFunc
}

// Manager serializes access to individual pipeline instances. All commits
// for one instance funnel through WithLock, which guarantees the linear
// ordering the audit trail depends on. Locks are reference counted so the
// map does not grow with the number of instances ever seen.
type Manager struct {
	store ports.InstanceStore

	mu    sync.Mutex
	locks map[string]*lockEntry

	locker  ports.DistributedLocker // optional, for multi-replica deployments
	lockTTL time.Duration
	logger  *slog.Logger
}

// Option configures the Manager.
type Option func(*Manager)

// WithLocker enables distributed locking on top of the in-process locks.
func WithLocker(locker ports.DistributedLocker) Option {
	return func(m *Manager) {
		m.locker = locker
	}
}

// WithLockTTL sets the distributed lock TTL (default 30s).
func WithLockTTL(ttl time.Duration) Option {
	return func(m *Manager) {
		m.lockTTL = ttl
	}
}

// WithLogger configures a logger for deferred errors.
func WithLogger(logger *slog.Logger) Option {
	return func(m *Manager) {
		m.logger = logger
	}
}

// NewManager creates a Manager over the given persistence store.
func NewManager(store ports.InstanceStore, opts ...Option) *Manager {
	m := &Manager{
		store:   store,
		locks:   make(map[string]*lockEntry),
		lockTTL: 30 * time.Second,
		logger:  logging.NewNop(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// acquire gets or creates a lock entry and increments its reference count.
// The caller MUST Lock entry.mu and call release(id) after unlocking.
func (m *Manager) acquire(id string) *lockEntry {
	m.mu.Lock()
	defer m.mu.Unlock()

	entry, exists := m.locks[id]
	if !exists {
		entry = &lockEntry{}
		m.locks[id] = entry
	}
	entry.refs++
	return entry
}

// release decrements the reference count and deletes the entry at zero.
func (m *Manager) release(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	entry, exists := m.locks[id]
	if !exists {
		return
	}
	entry.refs--
	if entry.refs <= 0 {
		delete(m.locks, id)
	}
}

// Load retrieves an instance without holding its lock. Reads tolerate a
// recent consistent snapshot; they do not serialize against commits.
func (m *Manager) Load(ctx context.Context, id string) (*domain.Instance, error) {
	return m.store.Load(ctx, id)
}

// Create persists a fresh instance. The ID is assumed unique (uuid).
func (m *Manager) Create(ctx context.Context, inst *domain.Instance) error {
	return m.WithLock(ctx, inst.ID, func(ctx context.Context) error {
		if _, err := m.store.Load(ctx, inst.ID); err == nil {
			return fmt.Errorf("instance %s already exists", inst.ID)
		} else if !errors.Is(err, domain.ErrInstanceNotFound) {
			return fmt.Errorf("failed to check instance existence: %w", err)
		}
		if err := m.store.Save(ctx, inst); err != nil {
			return fmt.Errorf("failed to initialize instance: %w", err)
		}
		return nil
	})
}

// List delegates to the store.
func (m *Manager) List(ctx context.Context) ([]string, error) {
	return m.store.List(ctx)
}

// Store returns the underlying instance store.
func (m *Manager) Store() ports.InstanceStore {
	return m.store
}

// WithLock executes fn while holding the exclusive lock for the instance.
// Cancellation is honored before acquisition; once fn starts, it runs to
// completion (partial commits are the orchestrator's problem to avoid, and
// it does so by building the full mutation before a single Save).
func (m *Manager) WithLock(ctx context.Context, id string, fn func(context.Context) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	entry := m.acquire(id)
	entry.mu.Lock()
	defer func() {
		entry.mu.Unlock()
		m.release(id)
	}()

	if err := ctx.Err(); err != nil {
		return err
	}

	if m.locker != nil {
		unlock, err := m.locker.Lock(ctx, id, m.lockTTL)
		if err != nil {
			return fmt.Errorf("failed to acquire distributed lock: %w", err)
		}
		defer func() {
			if err := unlock(ctx); err != nil {
				m.logger.Warn("failed to release distributed lock (will expire via TTL)",
					"instance_id", id,
					"err", err,
				)
			}
		}()
	}

	return fn(ctx)
}
