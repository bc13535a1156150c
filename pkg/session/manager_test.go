package session_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/DJA-prog/serialmacro/pkg/adapters/memory"
	"github.com/DJA-prog/serialmacro/pkg/domain"
	"github.com/DJA-prog/serialmacro/pkg/ports"
	"github.com/DJA-prog/serialmacro/pkg/session"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// slowStore simulates latency to provoke races if locking is missing.
type slowStore struct {
	*memory.Store
	inflight atomic.Int32
	overlap  atomic.Bool
}

func (s *slowStore) Save(ctx context.Context, rec *domain.RunRecord) error {
	if s.inflight.Add(1) > 1 {
		s.overlap.Store(true)
	}
	defer s.inflight.Add(-1)
	time.Sleep(5 * time.Millisecond)
	return s.Store.Save(ctx, rec)
}

func TestManager_RecordSerializesPerRun(t *testing.T) {
	store := &slowStore{Store: memory.NewStore()}
	mgr := session.NewManager(store)
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(step int) {
			defer wg.Done()
			assert.NoError(t, mgr.Record(ctx, &domain.RunRecord{ID: "r1", StepIndex: step}))
		}(i)
	}
	wg.Wait()

	assert.False(t, store.overlap.Load(), "saves for the same run overlapped")
	_, err := mgr.Load(ctx, "r1")
	assert.NoError(t, err)
}

func TestManager_RecordLoadDelete(t *testing.T) {
	mgr := session.NewManager(memory.NewStore())
	ctx := context.Background()

	require.NoError(t, mgr.Record(ctx, &domain.RunRecord{ID: "r1", State: domain.RunRunning}))
	require.NoError(t, mgr.Record(ctx, &domain.RunRecord{ID: "r1", State: domain.RunCompleted, Stats: domain.RunStats{CommandsSent: 3}}))

	rec, err := mgr.Load(ctx, "r1")
	require.NoError(t, err)
	assert.Equal(t, domain.RunCompleted, rec.State)
	assert.Equal(t, 3, rec.Stats.CommandsSent)

	_, err = mgr.Load(ctx, "missing")
	assert.ErrorIs(t, err, domain.ErrRunNotFound)

	require.NoError(t, mgr.Delete(ctx, "r1"))
	list, err := mgr.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestManager_BeginIsExclusive(t *testing.T) {
	mgr := session.NewManager(memory.NewStore())
	ctx := context.Background()

	release, err := mgr.Begin(ctx, "/dev/ttyUSB0")
	require.NoError(t, err)

	_, err = mgr.Begin(ctx, "/dev/ttyUSB0")
	assert.ErrorIs(t, err, domain.ErrRunActive)

	other, err := mgr.Begin(ctx, "/dev/ttyUSB1")
	require.NoError(t, err)
	other()

	release()
	release()

	again, err := mgr.Begin(ctx, "/dev/ttyUSB0")
	require.NoError(t, err)
	again()
}

func TestManager_BeginSharedLocker(t *testing.T) {
	locker := memory.NewLocker()
	a := session.NewManager(memory.NewStore(), session.WithLocker(locker))
	b := session.NewManager(memory.NewStore(), session.WithLocker(locker), session.WithLockTTL(time.Minute))
	ctx := context.Background()

	release, err := a.Begin(ctx, "modem")
	require.NoError(t, err)

	_, err = b.Begin(ctx, "modem")
	assert.ErrorIs(t, err, domain.ErrRunActive)

	release()
	releaseB, err := b.Begin(ctx, "modem")
	require.NoError(t, err)
	releaseB()
}

// failingLocker fails the first TryLock and grants every later one.
type failingLocker struct {
	calls atomic.Int32
}

func (l *failingLocker) TryLock(ctx context.Context, key string, ttl time.Duration) (ports.UnlockFunc, error) {
	if l.calls.Add(1) == 1 {
		return nil, errors.New("backend down")
	}
	return func(context.Context) error { return nil }, nil
}

func TestManager_BeginLockerError(t *testing.T) {
	mgr := session.NewManager(memory.NewStore(), session.WithLocker(&failingLocker{}))
	ctx := context.Background()

	_, err := mgr.Begin(ctx, "modem")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "backend down")

	release, err := mgr.Begin(ctx, "modem")
	require.NoError(t, err, "failed begin must not leave a local claim")
	release()
}
