package session

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"exboard/internal/exceptions"
	"exboard/internal/fleet"
	"exboard/internal/lookup"
	apperrors "exboard/pkg/errors"
)

func newMemoryStore(t *testing.T) *MemoryStore {
	store, err := NewMemoryStore(MemoryStoreConfig{MaxSessions: 100, TTL: time.Minute})
	require.NoError(t, err)
	t.Cleanup(store.Close)
	return store
}

func sampleRecord() Record {
	return Record{
		Lookup: lookup.Snapshot{
			Rules:   []fleet.Rule{{ID: "r1", Name: "Speeding"}},
			Devices: []fleet.Device{{ID: "d1", Name: "Truck 1"}},
		},
		Selection: exceptions.Selection{RuleID: "r1"},
		CreatedAt: time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC),
	}
}

func TestMemoryStore_SaveLoad(t *testing.T) {
	store := newMemoryStore(t)
	ctx := context.Background()

	require.NoError(t, store.Save(ctx, "s1", sampleRecord()))

	rec, err := store.Load(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, sampleRecord(), rec)
}

func TestMemoryStore_LoadMissing(t *testing.T) {
	store := newMemoryStore(t)

	_, err := store.Load(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.True(t, apperrors.IsNotFound(err))
}

func TestMemoryStore_Generations(t *testing.T) {
	store := newMemoryStore(t)
	ctx := context.Background()
	require.NoError(t, store.Save(ctx, "s1", sampleRecord()))

	cur, err := store.CurrentGeneration(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, int64(0), cur)

	for want := int64(1); want <= 3; want++ {
		gen, err := store.NextGeneration(ctx, "s1")
		require.NoError(t, err)
		assert.Equal(t, want, gen)
	}

	cur, err = store.CurrentGeneration(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, int64(3), cur)

	// saving again keeps the counter
	require.NoError(t, store.Save(ctx, "s1", sampleRecord()))
	cur, err = store.CurrentGeneration(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, int64(3), cur)
}

func TestMemoryStore_Delete(t *testing.T) {
	store := newMemoryStore(t)
	ctx := context.Background()
	require.NoError(t, store.Save(ctx, "s1", sampleRecord()))

	require.NoError(t, store.Delete(ctx, "s1"))

	_, err := store.Load(ctx, "s1")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMemoryStore_RejectedSessionReportsCapacity(t *testing.T) {
	store, err := NewMemoryStore(MemoryStoreConfig{MaxSessions: 1, TTL: time.Minute})
	require.NoError(t, err)
	t.Cleanup(store.Close)
	// an entry costlier than the whole cache is never admitted
	store.cost = 2

	err = store.Save(context.Background(), "s1", sampleRecord())
	assert.ErrorIs(t, err, ErrCapacity)
	assert.Equal(t, 503, apperrors.ToHTTPStatus(err))

	_, err = store.Load(context.Background(), "s1")
	assert.ErrorIs(t, err, ErrNotFound)
}
