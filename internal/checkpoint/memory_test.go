package checkpoint

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/yungbote/medscribe-backend/internal/agent"
)

func TestMemoryStoreLoadAbsentThread(t *testing.T) {
	m := NewMemoryStore()
	s, err := m.Load(context.Background(), "ghost")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if s != nil {
		t.Fatalf("want nil for absent thread, got=%+v", s)
	}
}

func TestMemoryStoreSnapshotIsolation(t *testing.T) {
	m := NewMemoryStore()
	saved := &agent.State{
		UserQuery:    "q",
		Conversation: agent.RecentChats{1: {Question: "q", Answer: "a"}},
	}
	if err := m.Save(context.Background(), "thread-1", saved); err != nil {
		t.Fatalf("Save: %v", err)
	}

	// Mutating the saved value after the fact must not leak into the store.
	saved.Conversation[1] = agent.ChatTurn{Question: "mutated", Answer: "mutated"}

	back, err := m.Load(context.Background(), "thread-1")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if back.Conversation[1].Question != "q" {
		t.Fatalf("snapshot aliased the caller's pointer: %+v", back.Conversation)
	}
}

func TestMemoryStoreLeaseSerializesThread(t *testing.T) {
	m := NewMemoryStore()
	release, err := m.Acquire(context.Background(), "thread-1")
	if err != nil {
		t.Fatalf("Acquire: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if _, err := m.Acquire(ctx, "thread-1"); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("second acquire must block until ctx ends, got=%v", err)
	}

	release()
	release() // double release must be harmless

	release2, err := m.Acquire(context.Background(), "thread-1")
	if err != nil {
		t.Fatalf("Acquire after release: %v", err)
	}
	release2()
}

func TestMemoryStoreLeasesAreIndependentPerThread(t *testing.T) {
	m := NewMemoryStore()
	releaseA, err := m.Acquire(context.Background(), "thread-a")
	if err != nil {
		t.Fatalf("Acquire a: %v", err)
	}
	defer releaseA()

	releaseB, err := m.Acquire(context.Background(), "thread-b")
	if err != nil {
		t.Fatalf("Acquire b: %v", err)
	}
	releaseB()
}
