// Package checkpoint provides the durable conversation stores backing the
// agent graph: per-thread state snapshots plus a lease that serializes
// invocations on the same thread.
package checkpoint

import (
	"context"
	"errors"
	"time"

	"github.com/yungbote/medscribe-backend/internal/agent"
)

// Store matches agent.CheckpointStore; every backend in this package
// implements it.
type Store interface {
	Load(ctx context.Context, threadID string) (*agent.State, error)
	Save(ctx context.Context, threadID string, s *agent.State) error
	Acquire(ctx context.Context, threadID string) (release func(), err error)
	Close() error
}

// ErrUnavailable wraps backend connectivity failures so callers can fail a
// request before running any graph node.
var ErrUnavailable = errors.New("checkpoint store unavailable")

const (
	defaultLeaseTTL     = 30 * time.Second
	defaultPollInterval = 100 * time.Millisecond
)
