package match

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// ErrAlreadyClaimed means another session is finalizing the room.
var ErrAlreadyClaimed = errors.New("room finalization already claimed")

// CompletionGuard elects the single session allowed to write a room's results.
// The returned release gives the claim back when the write fails.
type CompletionGuard interface {
	Claim(ctx context.Context, roomID uuid.UUID) (release func() error, err error)
}

// RedisCompletionGuard claims rooms with SETNX so sessions on different processes agree.
type RedisCompletionGuard struct {
	redis redis.UniversalClient
	ttl   time.Duration
}

func NewRedisCompletionGuard(client redis.UniversalClient, ttl time.Duration) *RedisCompletionGuard {
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	return &RedisCompletionGuard{redis: client, ttl: ttl}
}

// releaseScript deletes the key only if we still own it.
var releaseScript = redis.NewScript(`
	if redis.call("get", KEYS[1]) == ARGV[1] then
		return redis.call("del", KEYS[1])
	else
		return 0
	end
`)

func (g *RedisCompletionGuard) Claim(ctx context.Context, roomID uuid.UUID) (func() error, error) {
	key := fmt.Sprintf("room:finalize:%s", roomID.String())
	token := uuid.NewString()

	acquired, err := g.redis.SetNX(ctx, key, token, g.ttl).Result()
	if err != nil {
		return nil, fmt.Errorf("claim room finalization: %w", err)
	}
	if !acquired {
		return nil, ErrAlreadyClaimed
	}
	return func() error {
		return releaseScript.Run(context.Background(), g.redis, []string{key}, token).Err()
	}, nil
}

// LocalCompletionGuard is the in-process variant for the memory backend.
type LocalCompletionGuard struct {
	mu      sync.Mutex
	claimed map[uuid.UUID]struct{}
}

func NewLocalCompletionGuard() *LocalCompletionGuard {
	return &LocalCompletionGuard{claimed: make(map[uuid.UUID]struct{})}
}

func (g *LocalCompletionGuard) Claim(_ context.Context, roomID uuid.UUID) (func() error, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if _, ok := g.claimed[roomID]; ok {
		return nil, ErrAlreadyClaimed
	}
	g.claimed[roomID] = struct{}{}
	var once sync.Once
	return func() error {
		once.Do(func() {
			g.mu.Lock()
			delete(g.claimed, roomID)
			g.mu.Unlock()
		})
		return nil
	}, nil
}
