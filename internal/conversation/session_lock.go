package conversation

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/wolfman30/support-ai-platform/pkg/logging"
)

// SessionLocker serializes turns of the same session.
type SessionLocker interface {
	Lock(ctx context.Context, sessionID string) (unlock func(), err error)
}

// NoopLocker lets turns of a session run concurrently.
type NoopLocker struct{}

func (NoopLocker) Lock(context.Context, string) (func(), error) {
	return func() {}, nil
}

// LocalLocker holds one mutex per active session inside this process.
type LocalLocker struct {
	mu    sync.Mutex
	locks map[string]*sessionMutex
}

type sessionMutex struct {
	ch   chan struct{}
	refs int
}

func NewLocalLocker() *LocalLocker {
	return &LocalLocker{locks: make(map[string]*sessionMutex)}
}

func (l *LocalLocker) Lock(ctx context.Context, sessionID string) (func(), error) {
	l.mu.Lock()
	m, ok := l.locks[sessionID]
	if !ok {
		m = &sessionMutex{ch: make(chan struct{}, 1)}
		l.locks[sessionID] = m
	}
	m.refs++
	l.mu.Unlock()

	select {
	case m.ch <- struct{}{}:
	case <-ctx.Done():
		l.release(sessionID, m, false)
		return nil, ctx.Err()
	}

	var once sync.Once
	return func() {
		once.Do(func() { l.release(sessionID, m, true) })
	}, nil
}

func (l *LocalLocker) release(sessionID string, m *sessionMutex, held bool) {
	if held {
		<-m.ch
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	m.refs--
	if m.refs == 0 {
		delete(l.locks, sessionID)
	}
}

var errLockNotHeld = errors.New("conversation: session lock not held")

// Compare-and-delete so a lock that expired and was re-acquired elsewhere is left alone.
var releaseScript = redis.NewScript(`
if redis.call("get", KEYS[1]) == ARGV[1] then
	return redis.call("del", KEYS[1])
end
return 0
`)

// RedisLocker serializes sessions across processes with SET NX PX.
type RedisLocker struct {
	client redis.UniversalClient
	ttl    time.Duration
	poll   time.Duration
	logger *logging.Logger
}

func NewRedisLocker(client redis.UniversalClient, ttl time.Duration, logger *logging.Logger) *RedisLocker {
	if client == nil {
		panic("conversation: redis client required")
	}
	if ttl <= 0 {
		ttl = 90 * time.Second
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &RedisLocker{client: client, ttl: ttl, poll: 50 * time.Millisecond, logger: logger}
}

func (l *RedisLocker) Lock(ctx context.Context, sessionID string) (func(), error) {
	key := lockKey(sessionID)
	token := uuid.NewString()
	ticker := time.NewTicker(l.poll)
	defer ticker.Stop()

	for {
		ok, err := l.client.SetNX(ctx, key, token, l.ttl).Result()
		if err != nil {
			return nil, fmt.Errorf("conversation: acquire session lock: %w", err)
		}
		if ok {
			break
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
		}
	}

	return func() {
		releaseCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		released, err := releaseScript.Run(releaseCtx, l.client, []string{key}, token).Int()
		if err == nil && released == 0 {
			err = errLockNotHeld
		}
		if err != nil {
			l.logger.Warn("failed to release session lock", "session_id", sessionID, "error", err)
		}
	}, nil
}

func lockKey(sessionID string) string {
	return fmt.Sprintf("session_lock:%s", sessionID)
}
