package session

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/DJA-prog/serialmacro/internal/logging"
	"github.com/DJA-prog/serialmacro/pkg/domain"
	"github.com/DJA-prog/serialmacro/pkg/ports"
)

// DefaultLockTTL bounds how long a distributed transport lock survives a crashed holder.
const DefaultLockTTL = 5 * time.Minute

// lockEntry holds the mutex and the reference count.
type lockEntry struct {
	mu   sync.Mutex
	refs int
}

// Manager serializes transport access and run record writes.
type Manager struct {
	store ports.RunStore

	mu    sync.Mutex            // guards locks and busy
	locks map[string]*lockEntry // per-run write locks
	busy  map[string]struct{}   // transports with an active run

	locker ports.TransportLocker
	ttl    time.Duration
	logger *slog.Logger
}

// Option configures the Manager.
type Option func(*Manager)

// WithLocker enables cross-process transport locking.
func WithLocker(locker ports.TransportLocker) Option {
	return func(m *Manager) {
		m.locker = locker
	}
}

// WithLockTTL overrides DefaultLockTTL.
func WithLockTTL(ttl time.Duration) Option {
	return func(m *Manager) {
		if ttl > 0 {
			m.ttl = ttl
		}
	}
}

// WithLogger configures a logger for the Manager.
func WithLogger(logger *slog.Logger) Option {
	return func(m *Manager) {
		m.logger = logger
	}
}

// NewManager creates a Manager backed by store.
func NewManager(store ports.RunStore, opts ...Option) *Manager {
	m := &Manager{
		store:  store,
		locks:  make(map[string]*lockEntry),
		busy:   make(map[string]struct{}),
		ttl:    DefaultLockTTL,
		logger: logging.NewNop(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Begin claims the transport identified by key.
// It returns domain.ErrRunActive if a run already holds it. The returned
// release function must be called exactly once when the run ends.
func (m *Manager) Begin(ctx context.Context, key string) (func(), error) {
	m.mu.Lock()
	if _, held := m.busy[key]; held {
		m.mu.Unlock()
		return nil, fmt.Errorf("transport %q: %w", key, domain.ErrRunActive)
	}
	m.busy[key] = struct{}{}
	m.mu.Unlock()

	var unlock ports.UnlockFunc
	if m.locker != nil {
		var err error
		unlock, err = m.locker.TryLock(ctx, key, m.ttl)
		if err != nil {
			m.free(key)
			return nil, fmt.Errorf("transport %q: %w", key, err)
		}
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			if unlock != nil {
				// The caller's context may already be done when the run ends.
				if err := unlock(context.WithoutCancel(ctx)); err != nil {
					m.logger.Warn("Failed to release transport lock (will expire via TTL)",
						"transport", key,
						"err", err,
					)
				}
			}
			m.free(key)
		})
	}, nil
}

func (m *Manager) free(key string) {
	m.mu.Lock()
	delete(m.busy, key)
	m.mu.Unlock()
}

// acquire gets or creates a lock entry and increments its reference count.
// The caller must lock entry.mu and call release(id) after unlocking.
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

// release decrements the reference count and deletes the entry if it reaches zero.
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

// WithLock executes fn while holding the write lock for a run.
func (m *Manager) WithLock(ctx context.Context, id string, fn func(context.Context) error) error {
	entry := m.acquire(id)
	entry.mu.Lock()
	defer func() {
		entry.mu.Unlock()
		m.release(id)
	}()
	return fn(ctx)
}

// Record persists rec.
func (m *Manager) Record(ctx context.Context, rec *domain.RunRecord) error {
	return m.WithLock(ctx, rec.ID, func(ctx context.Context) error {
		return m.store.Save(ctx, rec)
	})
}

// Load retrieves a run record.
func (m *Manager) Load(ctx context.Context, id string) (*domain.RunRecord, error) {
	var rec *domain.RunRecord
	err := m.WithLock(ctx, id, func(ctx context.Context) error {
		var err error
		rec, err = m.store.Load(ctx, id)
		return err
	})
	return rec, err
}

// Delete removes a run record.
func (m *Manager) Delete(ctx context.Context, id string) error {
	return m.WithLock(ctx, id, func(ctx context.Context) error {
		return m.store.Delete(ctx, id)
	})
}

// List delegates to the store.
func (m *Manager) List(ctx context.Context) ([]*domain.RunRecord, error) {
	return m.store.List(ctx)
}
