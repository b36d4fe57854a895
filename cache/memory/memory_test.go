package memory

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/seyalabs/media-hub/cache/types"
)

func newTestCache(t *testing.T) *Memory {
	m, err := NewMemory(Config{
		NumCounters: 1000,
		MaxCost:     1 << 20,
		BufferItems: 64,
	})
	assert.NoError(t, err)
	t.Cleanup(func() { _ = m.Close() })
	return m
}

func TestSetGetBytes(t *testing.T) {
	m := newTestCache(t)
	ctx := context.Background()

	err := m.Set(ctx, "k", []byte("value"), time.Minute)
	assert.NoError(t, err)

	var got []byte
	err = m.Get(ctx, "k", &got)
	assert.NoError(t, err)
	assert.Equal(t, []byte("value"), got)
}

func TestGetMiss(t *testing.T) {
	m := newTestCache(t)

	var got []byte
	err := m.Get(context.Background(), "missing", &got)
	assert.True(t, types.IsCacheMiss(err))
}

func TestSetGetStruct(t *testing.T) {
	m := newTestCache(t)
	ctx := context.Background()

	type payload struct {
		Name string `json:"name"`
		Size int    `json:"size"`
	}

	err := m.Set(ctx, "k", payload{Name: "a", Size: 3}, time.Minute)
	assert.NoError(t, err)

	var got payload
	err = m.Get(ctx, "k", &got)
	assert.NoError(t, err)
	assert.Equal(t, payload{Name: "a", Size: 3}, got)
}

func TestDelete(t *testing.T) {
	m := newTestCache(t)
	ctx := context.Background()

	assert.NoError(t, m.Set(ctx, "k", []byte("v"), time.Minute))
	assert.NoError(t, m.Delete(ctx, "k"))

	var got []byte
	err := m.Get(ctx, "k", &got)
	assert.True(t, types.IsCacheMiss(err))
}

func TestExists(t *testing.T) {
	m := newTestCache(t)
	ctx := context.Background()

	found, err := m.Exists(ctx, "k")
	assert.NoError(t, err)
	assert.False(t, found)

	assert.NoError(t, m.Set(ctx, "k", []byte("v"), time.Minute))
	found, err = m.Exists(ctx, "k")
	assert.NoError(t, err)
	assert.True(t, found)
}
