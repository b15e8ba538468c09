package agent

import (
	"context"
	"fmt"

	"github.com/yungbote/medscribe-backend/internal/platform/logger"
)

// CheckpointStore persists per-thread state snapshots and serializes
// invocations on the same thread.
type CheckpointStore interface {
	// Load returns the last committed state for the thread, or nil when the
	// thread has no history.
	Load(ctx context.Context, threadID string) (*State, error)
	// Save atomically replaces the thread's snapshot.
	Save(ctx context.Context, threadID string, s *State) error
	// Acquire blocks until the per-thread lease is free or ctx ends. The
	// release func must always be called.
	Acquire(ctx context.Context, threadID string) (release func(), err error)
	Close() error
}

// Runner drives one graph invocation per call, checkpointing the state at
// every node boundary.
type Runner struct {
	log   *logger.Logger
	graph *Graph
	store CheckpointStore
}

func NewRunner(log *logger.Logger, graph *Graph, store CheckpointStore) (*Runner, error) {
	if log == nil {
		return nil, fmt.Errorf("logger required")
	}
	if graph == nil {
		return nil, fmt.Errorf("graph required")
	}
	if store == nil {
		return nil, fmt.Errorf("checkpoint store required")
	}
	return &Runner{
		log:   log.With("service", "AgentRunner"),
		graph: graph,
		store: store,
	}, nil
}

// Invoke runs the graph for one user query on the given thread. The prior
// snapshot's conversation memory carries into the new invocation. If the
// caller cancels mid-node, the node finishes, its commit is skipped, and
// the thread resumes from the previous checkpoint next time.
func (r *Runner) Invoke(ctx context.Context, threadID, query string) (*State, error) {
	if threadID == "" {
		return nil, fmt.Errorf("thread id required")
	}

	release, err := r.store.Acquire(ctx, threadID)
	if err != nil {
		return nil, fmt.Errorf("checkpoint store: %w", err)
	}
	defer release()

	prior, err := r.store.Load(ctx, threadID)
	if err != nil {
		return nil, fmt.Errorf("checkpoint store: %w", err)
	}

	state := &State{UserQuery: query}
	if prior != nil {
		state.Conversation = prior.Conversation
	}
	if err := r.store.Save(ctx, threadID, state); err != nil {
		return nil, fmt.Errorf("checkpoint store: %w", err)
	}

	// Nodes run on a detached context so a caller abort never kills one
	// mid-flight; the abort is honored at the next commit boundary.
	nodeCtx := context.WithoutCancel(ctx)

	node := r.graph.entry
	for node != End {
		fn, err := r.graph.node(node)
		if err != nil {
			return nil, err
		}
		r.log.Debug("Running node", "thread_id", threadID, "node", node)
		if err := fn(nodeCtx, state); err != nil {
			return nil, fmt.Errorf("node %s: %w", node, err)
		}
		if err := ctx.Err(); err != nil {
			r.log.Warn("Invocation canceled, skipping commit", "thread_id", threadID, "node", node)
			return nil, err
		}
		if err := r.store.Save(ctx, threadID, state); err != nil {
			return nil, fmt.Errorf("checkpoint store: %w", err)
		}
		if node, err = r.graph.Next(node, state); err != nil {
			return nil, err
		}
	}
	return state, nil
}
