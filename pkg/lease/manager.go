package lease

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/aretw0/redo/internal/logging"
	"github.com/aretw0/redo/pkg/domain"
	"github.com/aretw0/redo/pkg/ports"
)

// DefaultLockTTL bounds how long a crashed holder keeps a distributed lock.
const DefaultLockTTL = 30 * time.Second

// lockEntry holds the mutex and the reference count.
type lockEntry struct {
	mu   sync.Mutex
	refs int
}

// Manager serializes access to stored workflow logs.
// In-process callers are ordered by a per-name mutex; other processes are
// kept out by the optional Locker. Unused mutexes are reference counted away.
type Manager struct {
	store ports.LogStore

	mu    sync.Mutex
	locks map[string]*lockEntry

	locker      ports.Locker
	lockTTL     time.Duration
	lockTimeout time.Duration
	logger      *slog.Logger
}

// Option configures the Manager.
type Option func(*Manager)

// WithLocker enables cross-process locking.
func WithLocker(locker ports.Locker) Option {
	return func(m *Manager) {
		m.locker = locker
	}
}

// WithLockTTL overrides DefaultLockTTL.
func WithLockTTL(ttl time.Duration) Option {
	return func(m *Manager) {
		if ttl > 0 {
			m.lockTTL = ttl
		}
	}
}

// WithLockTimeout bounds the wait for the cross-process lock. Zero waits as
// long as the context allows.
func WithLockTimeout(d time.Duration) Option {
	return func(m *Manager) {
		m.lockTimeout = d
	}
}

// WithLogger configures a logger for the Manager.
func WithLogger(logger *slog.Logger) Option {
	return func(m *Manager) {
		m.logger = logger
	}
}

// NewManager creates a Manager over the given store.
func NewManager(store ports.LogStore, opts ...Option) *Manager {
	m := &Manager{
		store:   store,
		locks:   make(map[string]*lockEntry),
		lockTTL: DefaultLockTTL,
		logger:  logging.NewNop(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// acquire gets or creates a lock entry and increments its reference count.
// The caller MUST Lock the entry.mu, and then call release(name) after unlocking.
func (m *Manager) acquire(name string) *lockEntry {
	m.mu.Lock()
	defer m.mu.Unlock()

	entry, exists := m.locks[name]
	if !exists {
		entry = &lockEntry{}
		m.locks[name] = entry
	}
	entry.refs++
	return entry
}

// release decrements the reference count and deletes the entry if it reaches zero.
func (m *Manager) release(name string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	entry, exists := m.locks[name]
	if !exists {
		return
	}
	entry.refs--
	if entry.refs <= 0 {
		delete(m.locks, name)
	}
}

// Load retrieves a stored log. A workflow that never ran yields an empty log.
func (m *Manager) Load(ctx context.Context, name string) (domain.Log, error) {
	var log domain.Log
	err := m.WithLock(ctx, name, func(ctx context.Context) error {
		var err error
		log, err = m.load(ctx, name)
		return err
	})
	return log, err
}

// Update runs fn on the stored log and saves what it returns, holding the
// lock for the whole cycle. Nothing is saved when fn fails or when the
// cross-process lock was lost while fn ran.
func (m *Manager) Update(ctx context.Context, name string, fn func(ctx context.Context, prior domain.Log) (domain.Log, error)) error {
	return m.withLease(ctx, name, func(ctx context.Context, held func(context.Context) error) error {
		prior, err := m.load(ctx, name)
		if err != nil {
			return err
		}
		next, err := fn(ctx, prior)
		if err != nil {
			return err
		}
		if err := held(ctx); err != nil {
			return err
		}
		return m.store.Save(ctx, name, next)
	})
}

// Save persists the log.
func (m *Manager) Save(ctx context.Context, name string, log domain.Log) error {
	return m.withLease(ctx, name, func(ctx context.Context, held func(context.Context) error) error {
		if err := held(ctx); err != nil {
			return err
		}
		return m.store.Save(ctx, name, log)
	})
}

// Delete removes the log from the store.
func (m *Manager) Delete(ctx context.Context, name string) error {
	return m.withLease(ctx, name, func(ctx context.Context, held func(context.Context) error) error {
		if err := held(ctx); err != nil {
			return err
		}
		return m.store.Delete(ctx, name)
	})
}

// List delegates to the store.
func (m *Manager) List(ctx context.Context) ([]string, error) {
	return m.store.List(ctx)
}

// Store returns the underlying log store.
func (m *Manager) Store() ports.LogStore {
	return m.store
}

func (m *Manager) load(ctx context.Context, name string) (domain.Log, error) {
	log, err := m.store.Load(ctx, name)
	if errors.Is(err, domain.ErrLogNotFound) {
		return domain.Log{}, nil
	}
	return log, err
}

// WithLock executes fn while holding the lock for the named log.
func (m *Manager) WithLock(ctx context.Context, name string, fn func(context.Context) error) error {
	return m.withLease(ctx, name, func(ctx context.Context, _ func(context.Context) error) error {
		return fn(ctx)
	})
}

// withLease runs fn under both locks. held reports whether the cross-process
// lock is still ours and must be checked right before writing.
func (m *Manager) withLease(ctx context.Context, name string, fn func(ctx context.Context, held func(context.Context) error) error) error {
	entry := m.acquire(name)
	entry.mu.Lock()
	defer func() {
		entry.mu.Unlock()
		m.release(name)
	}()

	if m.locker == nil {
		return fn(ctx, func(context.Context) error { return nil })
	}

	l, err := m.lock(ctx, name)
	if err != nil {
		return fmt.Errorf("failed to acquire lock for %q: %w", name, err)
	}
	defer func() {
		// The run context may be cancelled by now; release regardless.
		if err := l.Unlock(context.WithoutCancel(ctx)); err != nil {
			m.logger.Warn("Failed to release lock",
				"workflow", name,
				"err", err,
			)
		}
	}()

	return fn(ctx, l.Held)
}

func (m *Manager) lock(ctx context.Context, name string) (ports.Lease, error) {
	if m.lockTimeout <= 0 {
		return m.locker.Lock(ctx, name, m.lockTTL)
	}
	waitCtx, cancel := context.WithTimeout(ctx, m.lockTimeout)
	defer cancel()
	return m.locker.Lock(waitCtx, name, m.lockTTL)
}
