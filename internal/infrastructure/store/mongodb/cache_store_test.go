package mongodb

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Runs against a real server only when MONGO_URI is set.
func newTestStore(t *testing.T, ttl time.Duration) *MongoCacheStore {
	t.Helper()
	uri := os.Getenv("MONGO_URI")
	if uri == "" {
		t.Skip("MONGO_URI not set")
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	client, err := Connect(ctx, uri)
	require.NoError(t, err)
	db := client.Database("testgen_test_" + uuid.NewString()[:8])
	t.Cleanup(func() {
		_ = db.Drop(context.Background())
		_ = client.Disconnect(context.Background())
	})

	s, err := NewMongoCacheStore(ctx, db, ttl)
	require.NoError(t, err)
	return s
}

func TestMongoCacheStore_PutGet(t *testing.T) {
	s := newTestStore(t, time.Hour)
	ctx := context.Background()

	_, ok, err := s.Get(ctx, "missing")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, s.Put(ctx, "k", "import allure"))
	require.NoError(t, s.Put(ctx, "k", "import pytest"))

	v, ok, err := s.Get(ctx, "k")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "import pytest", v)

	n, err := s.col.CountDocuments(ctx, map[string]any{})
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)
}

func TestMongoCacheStore_ExpiredOnRead(t *testing.T) {
	s := newTestStore(t, time.Nanosecond)
	ctx := context.Background()

	require.NoError(t, s.Put(ctx, "k", "v"))
	time.Sleep(time.Millisecond)

	_, ok, err := s.Get(ctx, "k")
	require.NoError(t, err)
	assert.False(t, ok)
}
