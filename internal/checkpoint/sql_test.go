package checkpoint

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/yungbote/medscribe-backend/internal/agent"
	"github.com/yungbote/medscribe-backend/internal/platform/logger"
)

func sqliteStore(t *testing.T) *SQLStore {
	t.Helper()
	s, err := NewSQLStore(logger.NewNop(), SQLConfig{
		Dialect:      "sqlite",
		DSN:          filepath.Join(t.TempDir(), "checkpoints.db"),
		Collection:   "agent_checkpoints",
		LeaseTTL:     time.Second,
		PollInterval: 10 * time.Millisecond,
	})
	if err != nil {
		t.Fatalf("NewSQLStore: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestSQLStoreRejectsUnknownDialect(t *testing.T) {
	if _, err := NewSQLStore(logger.NewNop(), SQLConfig{Dialect: "oracle", DSN: "x"}); err == nil {
		t.Fatalf("want error for unknown dialect")
	}
}

func TestSQLStoreLoadAbsentThread(t *testing.T) {
	s := sqliteStore(t)
	state, err := s.Load(context.Background(), "ghost")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if state != nil {
		t.Fatalf("want nil for absent thread, got=%+v", state)
	}
}

func TestSQLStoreSaveOverwritesSnapshot(t *testing.T) {
	s := sqliteStore(t)
	ctx := context.Background()

	first := &agent.State{
		UserQuery:    "first",
		Conversation: agent.RecentChats{1: {Question: "q1", Answer: "a1"}},
	}
	if err := s.Save(ctx, "thread-1", first); err != nil {
		t.Fatalf("Save: %v", err)
	}
	second := &agent.State{
		UserQuery:       "second",
		GeneratedAnswer: "done",
		Conversation: agent.RecentChats{
			1: {Question: "q1", Answer: "a1"},
			2: {Question: "q2", Answer: "a2"},
		},
	}
	if err := s.Save(ctx, "thread-1", second); err != nil {
		t.Fatalf("Save overwrite: %v", err)
	}

	back, err := s.Load(ctx, "thread-1")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if back.UserQuery != "second" || back.GeneratedAnswer != "done" {
		t.Fatalf("snapshot: %+v", back)
	}
	if len(back.Conversation) != 2 || back.Conversation[2].Question != "q2" {
		t.Fatalf("conversation: %+v", back.Conversation)
	}
}

func TestSQLStoreLeaseSerializesThread(t *testing.T) {
	s := sqliteStore(t)

	release, err := s.Acquire(context.Background(), "thread-1")
	if err != nil {
		t.Fatalf("Acquire: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	if _, err := s.Acquire(ctx, "thread-1"); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("second acquire must block until ctx ends, got=%v", err)
	}

	release()
	release2, err := s.Acquire(context.Background(), "thread-1")
	if err != nil {
		t.Fatalf("Acquire after release: %v", err)
	}
	release2()
}

func TestSQLStoreLeaseExpiryIsStolen(t *testing.T) {
	s := sqliteStore(t)
	s.leaseTTL = 30 * time.Millisecond

	// Simulate a crashed holder: acquire and never release.
	if _, err := s.Acquire(context.Background(), "thread-1"); err != nil {
		t.Fatalf("Acquire: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	release, err := s.Acquire(ctx, "thread-1")
	if err != nil {
		t.Fatalf("expired lease must be stealable: %v", err)
	}
	release()
}
