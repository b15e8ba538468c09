package agent

import (
	"sort"

	"github.com/yungbote/medscribe-backend/internal/domain"
)

// ChatTurn is one remembered question/answer exchange.
type ChatTurn struct {
	Question string `json:"question"`
	Answer   string `json:"answer"`
}

// RecentChats is the bounded conversation memory. Keys are contiguous
// 1..len, oldest at 1, newest at len.
type RecentChats map[int]ChatTurn

// Turns returns the remembered exchanges oldest-first.
func (rc RecentChats) Turns() []ChatTurn {
	keys := make([]int, 0, len(rc))
	for k := range rc {
		keys = append(keys, k)
	}
	sort.Ints(keys)
	turns := make([]ChatTurn, 0, len(keys))
	for _, k := range keys {
		turns = append(turns, rc[k])
	}
	return turns
}

// State is the value flowing through the agent graph. It is checkpointed
// after every node, so every field must survive a JSON round trip.
type State struct {
	UserQuery         string              `json:"user_query"`
	RephrasedQuestion string              `json:"rephrased_question"`
	Conversation      RecentChats         `json:"conversation"`
	ToolFlag          bool                `json:"tool_flag"`
	Documents         []domain.IndexedDoc `json:"documents"`
	ProceedToGenerate bool                `json:"proceed_to_generate"`
	GeneratedAnswer   string              `json:"generated_answer"`
}
