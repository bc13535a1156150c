package ports

import (
	"context"
	"time"
)

// UnlockFunc is a function that releases a lock.
type UnlockFunc func(ctx context.Context) error

// TransportLocker coordinates exclusive use of a transport, possibly across processes.
type TransportLocker interface {
	// TryLock acquires the lock for key without waiting.
	// Returns domain.ErrRunActive if another holder has it.
	// The lock expires after ttl unless released first; the caller must call the UnlockFunc.
	TryLock(ctx context.Context, key string, ttl time.Duration) (UnlockFunc, error)
}
