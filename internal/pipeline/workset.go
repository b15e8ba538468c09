package pipeline

import (
	"errors"
	"sort"

	"github.com/yungbote/medscribe-backend/internal/domain"
)

// ErrNothingToDo means a stage's upstream input is absent entirely. The
// runner logs it and moves on; it is a clean outcome, not a failure.
var ErrNothingToDo = errors.New("nothing to do")

// WorkSet partitions a stage's source keys against its downstream artifact.
// ToProcess holds keys with no committed output yet; AlreadyProcessed holds
// keys the stage can skip. Both are sorted for deterministic runs.
type WorkSet struct {
	ToProcess        []domain.DocumentID
	AlreadyProcessed []domain.DocumentID
}

// Diff computes the work set for one stage. done is the downstream
// artifact's key set; a missing artifact is an empty map.
func Diff(source []domain.DocumentID, done map[domain.DocumentID]struct{}) WorkSet {
	ws := WorkSet{
		ToProcess:        []domain.DocumentID{},
		AlreadyProcessed: []domain.DocumentID{},
	}
	for _, id := range source {
		if _, ok := done[id]; ok {
			ws.AlreadyProcessed = append(ws.AlreadyProcessed, id)
		} else {
			ws.ToProcess = append(ws.ToProcess, id)
		}
	}
	sort.Strings(ws.ToProcess)
	sort.Strings(ws.AlreadyProcessed)
	return ws
}

// Report summarizes one stage run.
type Report struct {
	Stage       string
	Processed   int
	Skipped     int
	Failed      int
	NothingToDo bool
}
