package agent

import (
	"encoding/json"
	"testing"
)

func TestUpdateRecentChatsAppends(t *testing.T) {
	rc := UpdateRecentChats(nil, "  What is the diagnosis?  ", " Type 2 diabetes. ", DefaultMaxChats)
	if len(rc) != 1 {
		t.Fatalf("len: want=1 got=%d", len(rc))
	}
	turn := rc[1]
	if turn.Question != "What is the diagnosis?" || turn.Answer != "Type 2 diabetes." {
		t.Fatalf("turn not trimmed: %+v", turn)
	}
}

func TestUpdateRecentChatsEvictsOldest(t *testing.T) {
	var rc RecentChats
	for _, q := range []string{"q1", "q2", "q3", "q4"} {
		rc = UpdateRecentChats(rc, q, "a-"+q, 3)
	}
	if len(rc) != 3 {
		t.Fatalf("len: want=3 got=%d", len(rc))
	}
	for k := 1; k <= 3; k++ {
		if _, ok := rc[k]; !ok {
			t.Fatalf("keys must stay contiguous 1..3, missing %d: %v", k, rc)
		}
	}
	if rc[1].Question != "q2" || rc[3].Question != "q4" {
		t.Fatalf("eviction order: %v", rc)
	}
}

func TestRecentChatsTurnsOrdering(t *testing.T) {
	rc := RecentChats{
		3: {Question: "third"},
		1: {Question: "first"},
		2: {Question: "second"},
	}
	turns := rc.Turns()
	if len(turns) != 3 {
		t.Fatalf("len: want=3 got=%d", len(turns))
	}
	if turns[0].Question != "first" || turns[2].Question != "third" {
		t.Fatalf("turns out of order: %+v", turns)
	}
}

func TestRecentChatsJSONShape(t *testing.T) {
	rc := RecentChats{1: {Question: "q", Answer: "a"}}
	raw, err := json.Marshal(rc)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	want := `{"1":{"question":"q","answer":"a"}}`
	if string(raw) != want {
		t.Fatalf("json shape: want=%s got=%s", want, raw)
	}

	var back RecentChats
	if err := json.Unmarshal(raw, &back); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if back[1].Question != "q" {
		t.Fatalf("round trip: %v", back)
	}
}
