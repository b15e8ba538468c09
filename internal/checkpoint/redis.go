package checkpoint

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"

	"github.com/yungbote/medscribe-backend/internal/agent"
	"github.com/yungbote/medscribe-backend/internal/platform/logger"
)

// releaseScript deletes the lease only when the caller still owns it, so a
// slow invocation can never drop a lease that already expired and was
// re-claimed by another.
var releaseScript = goredis.NewScript(`
if redis.call("get", KEYS[1]) == ARGV[1] then
    return redis.call("del", KEYS[1])
end
return 0
`)

// RedisConfig selects the key-value backend. Prefix namespaces all keys
// (state at "<prefix>:state:<thread>", lease at "<prefix>:lease:<thread>").
type RedisConfig struct {
	URL          string
	Prefix       string
	LeaseTTL     time.Duration
	PollInterval time.Duration
}

// RedisStore keeps snapshots at plain keys and serializes threads with a
// SET NX PX lease.
type RedisStore struct {
	log      *logger.Logger
	rdb      *goredis.Client
	prefix   string
	leaseTTL time.Duration
	poll     time.Duration
}

func NewRedisStore(log *logger.Logger, cfg RedisConfig) (*RedisStore, error) {
	if log == nil {
		return nil, fmt.Errorf("logger required")
	}
	opts, err := goredis.ParseURL(strings.TrimSpace(cfg.URL))
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	rdb := goredis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("%w: redis ping: %v", ErrUnavailable, err)
	}

	prefix := strings.TrimSpace(cfg.Prefix)
	if prefix == "" {
		prefix = "agent_checkpoints"
	}
	s := &RedisStore{
		log:      log.With("service", "RedisCheckpointStore"),
		rdb:      rdb,
		prefix:   prefix,
		leaseTTL: cfg.LeaseTTL,
		poll:     cfg.PollInterval,
	}
	if s.leaseTTL <= 0 {
		s.leaseTTL = defaultLeaseTTL
	}
	if s.poll <= 0 {
		s.poll = defaultPollInterval
	}
	s.log.Info("Checkpoint store ready", "prefix", prefix)
	return s, nil
}

func (s *RedisStore) stateKey(threadID string) string {
	return fmt.Sprintf("%s:state:%s", s.prefix, threadID)
}

func (s *RedisStore) leaseKey(threadID string) string {
	return fmt.Sprintf("%s:lease:%s", s.prefix, threadID)
}

func (s *RedisStore) Load(ctx context.Context, threadID string) (*agent.State, error) {
	raw, err := s.rdb.Get(ctx, s.stateKey(threadID)).Bytes()
	if err == goredis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load thread %s: %w", threadID, err)
	}
	var state agent.State
	if err := json.Unmarshal(raw, &state); err != nil {
		return nil, fmt.Errorf("decode snapshot for thread %s: %w", threadID, err)
	}
	return &state, nil
}

func (s *RedisStore) Save(ctx context.Context, threadID string, state *agent.State) error {
	raw, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("encode snapshot for thread %s: %w", threadID, err)
	}
	if err := s.rdb.Set(ctx, s.stateKey(threadID), raw, 0).Err(); err != nil {
		return fmt.Errorf("save thread %s: %w", threadID, err)
	}
	return nil
}

func (s *RedisStore) Acquire(ctx context.Context, threadID string) (func(), error) {
	owner := uuid.NewString()
	key := s.leaseKey(threadID)
	for {
		ok, err := s.rdb.SetNX(ctx, key, owner, s.leaseTTL).Result()
		if err != nil {
			return nil, fmt.Errorf("claim lease for thread %s: %w", threadID, err)
		}
		if ok {
			return func() { s.release(key, owner) }, nil
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(s.poll):
		}
	}
}

func (s *RedisStore) release(key, owner string) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := releaseScript.Run(ctx, s.rdb, []string{key}, owner).Err(); err != nil && err != goredis.Nil {
		s.log.Warn("Lease release failed; it will expire", "key", key, "error", err)
	}
}

func (s *RedisStore) Close() error {
	return s.rdb.Close()
}
