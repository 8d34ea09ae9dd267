package jobs

import (
	"context"
	"fmt"
	"testing"

	"github.com/alicebob/miniredis/v2"
	backend "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// runStoreContract exercises behaviour every Store must share
func runStoreContract(t *testing.T, store Store) {
	ctx := context.Background()

	var ids []string
	for i := 0; i < 4; i++ {
		job := NewRecord(fmt.Sprintf("P%d", i), KindKOT, 10*i)
		ids = append(ids, job.ID)
		require.NoError(t, store.Add(ctx, job))
	}

	entries, err := store.Entries(ctx)
	require.NoError(t, err)
	require.Len(t, entries, 3, "capacity is 3")
	assert.Equal(t, ids[3], entries[0].ID, "newest first")
	assert.Equal(t, ids[1], entries[2].ID)
	assert.Equal(t, StatusPrinting, entries[0].Status)

	require.NoError(t, store.UpdateStatus(ctx, ids[2], StatusFailed, "paper out"))
	require.NoError(t, store.UpdateStatus(ctx, ids[3], StatusCompleted, ""))
	require.NoError(t, store.UpdateStatus(ctx, "missing", StatusCompleted, ""))

	entries, err = store.Entries(ctx)
	require.NoError(t, err)
	assert.Equal(t, StatusCompleted, entries[0].Status)
	assert.NotNil(t, entries[0].CompletedAt)
	assert.Empty(t, entries[0].Error)
	assert.Equal(t, StatusFailed, entries[1].Status)
	assert.Equal(t, "paper out", entries[1].Error)
	assert.Equal(t, "P2", entries[1].PrinterID)
}

func TestMemoryStore(t *testing.T) {
	runStoreContract(t, NewMemoryStore(3))
}

func TestRedisStore(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("Failed to start miniredis: %v", err)
	}
	defer mr.Close()

	client := backend.NewClient(&backend.Options{Addr: mr.Addr()})
	store := NewRedisStoreFromClient(client, WithCapacity(3), WithPrefix("test:jobs:"))
	defer store.Close()

	require.NoError(t, store.Ping(context.Background()))
	runStoreContract(t, store)

	keys, err := mr.HKeys("test:jobs:data")
	require.NoError(t, err)
	assert.Len(t, keys, 3, "trimmed records are deleted")
}

func TestRedisStoreFromURL(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	defer mr.Close()

	store, err := NewRedisStore("redis://" + mr.Addr() + "/0")
	require.NoError(t, err)
	defer store.Close()

	entries, err := store.Entries(context.Background())
	require.NoError(t, err)
	assert.Empty(t, entries)

	_, err = NewRedisStore("not a url")
	assert.Error(t, err)
}
