package knowledge

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return mr, client
}

func TestCachedEmbedderEmbed(t *testing.T) {
	mr, client := newTestRedis(t)
	inner := &fakeEmbedder{vectors: map[string][]float32{"hello": {0.25, -0.5}}}
	cache := NewCachedEmbedder(inner, client, "test", time.Hour, nil)
	ctx := context.Background()

	first, err := cache.Embed(ctx, "hello")
	require.NoError(t, err)
	second, err := cache.Embed(ctx, "hello")
	require.NoError(t, err)

	assert.Equal(t, []float32{0.25, -0.5}, first)
	assert.Equal(t, first, second)
	assert.Equal(t, 1, inner.embedCalls)

	key := cache.key("hello")
	assert.True(t, mr.Exists(key))
	assert.Equal(t, time.Hour, mr.TTL(key))
}

func TestCachedEmbedderBatchOnlyEmbedsMisses(t *testing.T) {
	_, client := newTestRedis(t)
	inner := &fakeEmbedder{}
	cache := NewCachedEmbedder(inner, client, "test", 0, nil)
	ctx := context.Background()

	_, err := cache.Embed(ctx, "cached")
	require.NoError(t, err)

	vecs, err := cache.EmbedBatch(ctx, []string{"cached", "fresh", "new one"})
	require.NoError(t, err)
	require.Len(t, vecs, 3)
	assert.Equal(t, []float32{6, 1, 0}, vecs[0])
	assert.Equal(t, []float32{5, 1, 0}, vecs[1])
	assert.Equal(t, []int{2}, inner.batchSizes)

	_, err = cache.EmbedBatch(ctx, []string{"fresh", "new one"})
	require.NoError(t, err)
	assert.Equal(t, 1, inner.batchCalls)
}

func TestCachedEmbedderFallsThroughWhenRedisDown(t *testing.T) {
	mr, client := newTestRedis(t)
	inner := &fakeEmbedder{}
	cache := NewCachedEmbedder(inner, client, "test", time.Minute, nil)
	mr.Close()

	vec, err := cache.Embed(context.Background(), "abc")
	require.NoError(t, err)
	assert.Equal(t, []float32{3, 1, 0}, vec)
}

func TestVectorCodecRoundTrip(t *testing.T) {
	in := []float32{1.5, -2.25, 0}
	out, ok := decodeVector(encodeVector(in))
	require.True(t, ok)
	assert.Equal(t, in, out)

	_, ok = decodeVector([]byte{1, 2, 3})
	assert.False(t, ok)
}
