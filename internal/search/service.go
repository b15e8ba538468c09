// Package search answers keyword queries over the union of the per-document
// summary tables produced by the ingestion pipeline.
package search

import (
	"fmt"
	"math"
	"os"
	"strings"

	"github.com/yungbote/medscribe-backend/internal/artifact"
	"github.com/yungbote/medscribe-backend/internal/platform/logger"
)

// DefaultLimit caps a search when the caller does not ask for one.
const DefaultLimit = 10

// Result is one matching summary row. Score is nil when the stored cell was
// empty or non-finite, so it renders as JSON null. JSON keys mirror the CSV
// column names.
type Result struct {
	Text       string   `json:"Text"`
	Category   string   `json:"Category"`
	Type       string   `json:"Type"`
	Score      *float64 `json:"Score"`
	Attributes *string  `json:"Attributes"`
	FileName   string   `json:"FileName"`
}

// Response is the payload for a query with at least one match.
type Response struct {
	Query        string   `json:"query"`
	TotalResults int      `json:"total_results"`
	Results      []Result `json:"results"`
}

// Service holds the merged summary rows, loaded once at startup.
type Service struct {
	log  *logger.Logger
	rows []Result
}

func NewService(log *logger.Logger, paths artifact.Paths) (*Service, error) {
	if log == nil {
		return nil, fmt.Errorf("logger required")
	}
	s := &Service{log: log.With("service", "SummarySearch")}

	entries, err := os.ReadDir(paths.SummaryDir())
	if os.IsNotExist(err) {
		s.log.Warn("Summary directory not found; search corpus is empty", "dir", paths.SummaryDir())
		return s, nil
	}
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", paths.SummaryDir(), err)
	}

	files := 0
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		id := artifact.SummaryDocID(e.Name())
		if id == "" {
			continue
		}
		rows, err := artifact.ReadSummaryCSV(paths.SummaryFile(id))
		if err != nil {
			s.log.Error("Unreadable summary table, skipping file", "file", e.Name(), "error", err)
			continue
		}
		for _, row := range rows {
			result := Result{
				Text:       row.Text,
				Category:   row.Category,
				Type:       row.Type,
				Attributes: row.Attributes,
				FileName:   id,
			}
			if !math.IsNaN(row.Score) && !math.IsInf(row.Score, 0) {
				score := row.Score
				result.Score = &score
			}
			s.rows = append(s.rows, result)
		}
		files++
	}
	s.log.Info("Search corpus loaded", "files", files, "rows", len(s.rows))
	return s, nil
}

// Empty reports whether any summary rows were loaded.
func (s *Service) Empty() bool {
	return len(s.rows) == 0
}

// Search matches the query case-insensitively against the Text, Category,
// Type, and Attributes columns, returning up to limit rows.
func (s *Service) Search(query string, limit int) []Result {
	if limit <= 0 {
		limit = DefaultLimit
	}
	needle := strings.ToLower(query)

	matches := []Result{}
	for _, row := range s.rows {
		if len(matches) == limit {
			break
		}
		if s.matches(row, needle) {
			matches = append(matches, row)
		}
	}
	return matches
}

func (s *Service) matches(row Result, needle string) bool {
	for _, field := range []string{row.Text, row.Category, row.Type} {
		if strings.Contains(strings.ToLower(field), needle) {
			return true
		}
	}
	return row.Attributes != nil && strings.Contains(strings.ToLower(*row.Attributes), needle)
}
