package memory

import (
	"context"
	"sync"
	"time"

	"github.com/DJA-prog/serialmacro/pkg/domain"
	"github.com/DJA-prog/serialmacro/pkg/ports"
)

// Locker implements ports.TransportLocker within one process.
type Locker struct {
	mu    sync.Mutex
	held  map[string]uint64
	token uint64
	now   func() time.Time
	until map[string]time.Time
}

// NewLocker creates an empty locker.
func NewLocker() *Locker {
	return &Locker{
		held:  make(map[string]uint64),
		until: make(map[string]time.Time),
		now:   time.Now,
	}
}

// TryLock acquires key if it is free or its previous holder's ttl has elapsed.
func (l *Locker) TryLock(ctx context.Context, key string, ttl time.Duration) (ports.UnlockFunc, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if _, ok := l.held[key]; ok {
		if exp := l.until[key]; exp.IsZero() || l.now().Before(exp) {
			return nil, domain.ErrRunActive
		}
	}

	l.token++
	token := l.token
	l.held[key] = token
	if ttl > 0 {
		l.until[key] = l.now().Add(ttl)
	} else {
		delete(l.until, key)
	}

	return func(context.Context) error {
		l.mu.Lock()
		defer l.mu.Unlock()
		if l.held[key] == token {
			delete(l.held, key)
			delete(l.until, key)
		}
		return nil
	}, nil
}
