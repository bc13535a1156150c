package memory_test

import (
	"context"
	"testing"
	"time"

	"github.com/DJA-prog/serialmacro/pkg/adapters/memory"
	"github.com/DJA-prog/serialmacro/pkg/domain"
	"github.com/DJA-prog/serialmacro/pkg/ports"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStore_Contract(t *testing.T) {
	ports.RunRunStoreContract(t, memory.NewStore())
}

func TestMemoryStore_Isolation(t *testing.T) {
	store := memory.NewStore()
	ctx := context.Background()

	rec := &domain.RunRecord{ID: "run-1", State: domain.RunRunning}
	require.NoError(t, store.Save(ctx, rec))
	rec.State = domain.RunFailed

	loaded, err := store.Load(ctx, "run-1")
	require.NoError(t, err)
	assert.Equal(t, domain.RunRunning, loaded.State, "store keeps its own copy")

	loaded.State = domain.RunCompleted
	again, _ := store.Load(ctx, "run-1")
	assert.Equal(t, domain.RunRunning, again.State)
}

func TestMemoryLocker_Contract(t *testing.T) {
	ports.RunTransportLockerContract(t, memory.NewLocker())
}

func TestMemoryLocker_StaleUnlockDoesNotReleaseNewHolder(t *testing.T) {
	l := memory.NewLocker()
	ctx := context.Background()

	first, err := l.TryLock(ctx, "ttyUSB0", time.Millisecond)
	require.NoError(t, err)
	time.Sleep(5 * time.Millisecond)

	second, err := l.TryLock(ctx, "ttyUSB0", time.Minute)
	require.NoError(t, err, "expired lock can be taken over")

	require.NoError(t, first(ctx))
	_, err = l.TryLock(ctx, "ttyUSB0", time.Minute)
	assert.ErrorIs(t, err, domain.ErrRunActive, "the old holder's unlock must not free the new holder")
	require.NoError(t, second(ctx))
}
