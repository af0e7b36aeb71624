package knowledge

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/wolfman30/support-ai-platform/pkg/logging"
)

const defaultEmbeddingTTL = 24 * time.Hour

// CachedEmbedder memoizes embeddings in Redis keyed by a digest of the text.
// Redis failures fall through to the wrapped embedder.
type CachedEmbedder struct {
	next      Embedder
	redis     redis.UniversalClient
	namespace string
	ttl       time.Duration
	logger    *logging.Logger
}

// NewCachedEmbedder wraps next. namespace separates models sharing one Redis.
func NewCachedEmbedder(next Embedder, client redis.UniversalClient, namespace string, ttl time.Duration, logger *logging.Logger) *CachedEmbedder {
	if next == nil {
		panic("knowledge: embedder required")
	}
	if client == nil {
		panic("knowledge: redis client required")
	}
	if ttl <= 0 {
		ttl = defaultEmbeddingTTL
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &CachedEmbedder{next: next, redis: client, namespace: namespace, ttl: ttl, logger: logger}
}

func (c *CachedEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	key := c.key(text)
	if raw, err := c.redis.Get(ctx, key).Bytes(); err == nil {
		if vec, ok := decodeVector(raw); ok {
			return vec, nil
		}
	} else if !errors.Is(err, redis.Nil) {
		c.logger.Warn("embedding cache read failed", "error", err)
	}

	vec, err := c.next.Embed(ctx, text)
	if err != nil {
		return nil, err
	}
	if err := c.redis.Set(ctx, key, encodeVector(vec), c.ttl).Err(); err != nil {
		c.logger.Warn("embedding cache write failed", "error", err)
	}
	return vec, nil
}

// EmbedBatch serves hits from Redis and embeds all misses in one call.
func (c *CachedEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	keys := make([]string, len(texts))
	for i, t := range texts {
		keys[i] = c.key(t)
	}

	out := make([][]float32, len(texts))
	cached, err := c.redis.MGet(ctx, keys...).Result()
	if err != nil {
		c.logger.Warn("embedding cache read failed", "error", err)
		cached = nil
	}
	var missIdx []int
	var missTexts []string
	for i := range texts {
		if i < len(cached) {
			if s, ok := cached[i].(string); ok {
				if vec, ok := decodeVector([]byte(s)); ok {
					out[i] = vec
					continue
				}
			}
		}
		missIdx = append(missIdx, i)
		missTexts = append(missTexts, texts[i])
	}
	if len(missTexts) == 0 {
		return out, nil
	}

	vecs, err := c.next.EmbedBatch(ctx, missTexts)
	if err != nil {
		return nil, err
	}
	if len(vecs) != len(missTexts) {
		return nil, fmt.Errorf("knowledge: got %d embeddings for %d texts", len(vecs), len(missTexts))
	}
	pipe := c.redis.Pipeline()
	for n, i := range missIdx {
		out[i] = vecs[n]
		pipe.Set(ctx, keys[i], encodeVector(vecs[n]), c.ttl)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		c.logger.Warn("embedding cache write failed", "error", err)
	}
	return out, nil
}

func (c *CachedEmbedder) key(text string) string {
	sum := sha256.Sum256([]byte(text))
	return fmt.Sprintf("embedding:%s:%s", c.namespace, hex.EncodeToString(sum[:]))
}

func encodeVector(v []float32) []byte {
	buf := make([]byte, 4*len(v))
	for i, f := range v {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	return buf
}

func decodeVector(raw []byte) ([]float32, bool) {
	if len(raw) == 0 || len(raw)%4 != 0 {
		return nil, false
	}
	v := make([]float32, len(raw)/4)
	for i := range v {
		v[i] = math.Float32frombits(binary.LittleEndian.Uint32(raw[i*4:]))
	}
	return v, true
}
