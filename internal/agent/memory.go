package agent

import "strings"

// DefaultMaxChats bounds the rolling conversation memory.
const DefaultMaxChats = 3

// UpdateRecentChats appends one exchange to the memory window, keeps only
// the newest max turns, and reindexes the keys to a contiguous 1..len.
func UpdateRecentChats(recent RecentChats, question, answer string, max int) RecentChats {
	if max < 1 {
		max = DefaultMaxChats
	}

	turns := recent.Turns()
	turns = append(turns, ChatTurn{
		Question: strings.TrimSpace(question),
		Answer:   strings.TrimSpace(answer),
	})
	if len(turns) > max {
		turns = turns[len(turns)-max:]
	}

	updated := make(RecentChats, len(turns))
	for i, turn := range turns {
		updated[i+1] = turn
	}
	return updated
}
