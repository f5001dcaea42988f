package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestManager(t *testing.T) (*Manager, *miniredis.Miniredis) {
	t.Helper()

	mr := miniredis.RunT(t)

	cfg := DefaultConfig()
	cfg.Addr = mr.Addr()

	m, err := NewManager(cfg, zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = m.Close() })

	return m, mr
}

func TestManagerGetSet(t *testing.T) {
	m, _ := newTestManager(t)
	ctx := context.Background()

	require.NoError(t, m.Set(ctx, "k1", "v1", time.Minute))

	val, err := m.Get(ctx, "k1")
	require.NoError(t, err)
	assert.Equal(t, "v1", val)
}

func TestManagerCacheMiss(t *testing.T) {
	m, _ := newTestManager(t)

	_, err := m.Get(context.Background(), "absent")
	assert.True(t, IsCacheMiss(err))

	hits, misses := m.Counters()
	assert.Equal(t, uint64(0), hits)
	assert.Equal(t, uint64(1), misses)
}

func TestManagerJSONRoundTrip(t *testing.T) {
	m, _ := newTestManager(t)
	ctx := context.Background()

	type payload struct {
		Vector []float64 `json:"vector"`
	}

	in := payload{Vector: []float64{0.1, 0.2, 0.3}}
	require.NoError(t, m.SetJSON(ctx, "emb:abc", in, 0))

	var out payload
	require.NoError(t, m.GetJSON(ctx, "emb:abc", &out))
	assert.Equal(t, in, out)
}

func TestManagerDefaultTTLApplied(t *testing.T) {
	m, mr := newTestManager(t)
	ctx := context.Background()

	require.NoError(t, m.Set(ctx, "k", "v", 0))

	mr.FastForward(25 * time.Hour)

	_, err := m.Get(ctx, "k")
	assert.True(t, IsCacheMiss(err))
}

func TestManagerDelete(t *testing.T) {
	m, _ := newTestManager(t)
	ctx := context.Background()

	require.NoError(t, m.Set(ctx, "k", "v", time.Minute))
	require.NoError(t, m.Delete(ctx, "k"))

	_, err := m.Get(ctx, "k")
	assert.True(t, IsCacheMiss(err))
}

func TestManagerClosedRejectsOps(t *testing.T) {
	m, _ := newTestManager(t)
	require.NoError(t, m.Close())

	_, err := m.Get(context.Background(), "k")
	assert.Error(t, err)
	assert.False(t, IsCacheMiss(err))

	// Close 是幂等的
	assert.NoError(t, m.Close())
}
