package ports

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DJA-prog/serialmacro/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// RunRunStoreContract runs a suite of tests to verify that a RunStore implementation
// adheres to the defined interface contract.
func RunRunStoreContract(t *testing.T, store RunStore) {
	ctx := context.Background()
	runID := "contract-run-" + time.Now().Format("20060102150405")

	t.Run("Save and Load", func(t *testing.T) {
		rec := &domain.RunRecord{
			ID:        runID,
			Macro:     "modem-check",
			State:     domain.RunCompleted,
			StepIndex: 2,
			Stats:     domain.RunStats{StepsExecuted: 2, CommandsSent: 1, BytesWritten: 3},
			StartedAt: time.Now().UTC().Truncate(time.Millisecond),
		}

		require.NoError(t, store.Save(ctx, rec), "Save should not return error")

		loaded, err := store.Load(ctx, runID)
		require.NoError(t, err, "Load should not return error")
		assert.Equal(t, rec.Macro, loaded.Macro)
		assert.Equal(t, rec.State, loaded.State)
		assert.Equal(t, rec.Stats, loaded.Stats)
		assert.True(t, rec.StartedAt.Equal(loaded.StartedAt))
	})

	t.Run("Load Non-Existent", func(t *testing.T) {
		_, err := store.Load(ctx, "non-existent-"+runID)
		assert.ErrorIs(t, err, domain.ErrRunNotFound)
	})

	t.Run("Delete", func(t *testing.T) {
		require.NoError(t, store.Save(ctx, &domain.RunRecord{ID: runID, State: domain.RunCancelled}))

		require.NoError(t, store.Delete(ctx, runID), "Delete should not return error")

		_, err := store.Load(ctx, runID)
		assert.ErrorIs(t, err, domain.ErrRunNotFound, "Load after Delete should return ErrRunNotFound")
		assert.NoError(t, store.Delete(ctx, runID), "Deleting twice is not an error")
	})

	t.Run("List", func(t *testing.T) {
		older := &domain.RunRecord{ID: runID + "-1", StartedAt: time.Now().Add(-time.Minute)}
		newer := &domain.RunRecord{ID: runID + "-2", StartedAt: time.Now()}
		require.NoError(t, store.Save(ctx, older))
		require.NoError(t, store.Save(ctx, newer))
		defer func() {
			_ = store.Delete(ctx, older.ID)
			_ = store.Delete(ctx, newer.ID)
		}()

		records, err := store.List(ctx)
		require.NoError(t, err)

		var ids []string
		for _, r := range records {
			ids = append(ids, r.ID)
		}
		require.Contains(t, ids, older.ID)
		require.Contains(t, ids, newer.ID)

		pos := func(id string) int {
			for i, v := range ids {
				if v == id {
					return i
				}
			}
			return -1
		}
		assert.Less(t, pos(newer.ID), pos(older.ID), "most recent first")
	})
}

// RunTransportLockerContract verifies exclusive, non-blocking acquisition semantics.
func RunTransportLockerContract(t *testing.T, locker TransportLocker) {
	ctx := context.Background()
	key := "contract-port-" + time.Now().Format("150405.000")

	t.Run("Exclusive", func(t *testing.T) {
		unlock, err := locker.TryLock(ctx, key, time.Minute)
		require.NoError(t, err)

		_, err = locker.TryLock(ctx, key, time.Minute)
		assert.True(t, errors.Is(err, domain.ErrRunActive), "second holder must be rejected, got %v", err)

		require.NoError(t, unlock(ctx))

		unlock, err = locker.TryLock(ctx, key, time.Minute)
		require.NoError(t, err, "lock must be free after unlock")
		require.NoError(t, unlock(ctx))
	})

	t.Run("Independent keys", func(t *testing.T) {
		u1, err := locker.TryLock(ctx, key+"-a", time.Minute)
		require.NoError(t, err)
		u2, err := locker.TryLock(ctx, key+"-b", time.Minute)
		require.NoError(t, err)
		assert.NoError(t, u1(ctx))
		assert.NoError(t, u2(ctx))
	})
}
