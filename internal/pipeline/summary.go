package pipeline

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/yungbote/medscribe-backend/internal/artifact"
	"github.com/yungbote/medscribe-backend/internal/domain"
	"github.com/yungbote/medscribe-backend/internal/platform/logger"
)

// SummaryStage reduces each document's entity record to one tabular summary
// CSV. Source keys are the entity artifact's keys; the committed artifact is
// the per-document <id>_summary.csv file.
type SummaryStage struct {
	log   *logger.Logger
	paths artifact.Paths
}

func NewSummaryStage(log *logger.Logger, paths artifact.Paths) *SummaryStage {
	return &SummaryStage{
		log:   log.With("stage", "summary"),
		paths: paths,
	}
}

func (s *SummaryStage) Name() string { return "summary" }

func (s *SummaryStage) Run(ctx context.Context) (Report, error) {
	report := Report{Stage: s.Name()}

	entities := map[domain.DocumentID]domain.EntityRecord{}
	found, err := artifact.ReadJSON(s.paths.EntitiesFile(), &entities)
	if err != nil {
		return report, err
	}
	if !found {
		s.log.Warn("Entity artifact not found", "path", s.paths.EntitiesFile())
		return report, ErrNothingToDo
	}

	done, err := summaryKeys(s.paths)
	if err != nil {
		return report, err
	}

	source := make([]domain.DocumentID, 0, len(entities))
	for id := range entities {
		source = append(source, id)
	}
	ws := Diff(source, done)
	report.Skipped = len(ws.AlreadyProcessed)
	if len(ws.ToProcess) == 0 {
		s.log.Info("No new documents to summarize", "already_processed", report.Skipped)
		return report, nil
	}
	s.log.Info("Writing summary tables", "to_process", len(ws.ToProcess), "already_processed", report.Skipped)

	for _, id := range ws.ToProcess {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		rows := SummarizeEntities(entities[id])
		if err := artifact.WriteSummaryCSV(s.paths.SummaryFile(id), rows); err != nil {
			s.log.Error("Summary write failed, skipping document", "document_id", id, "error", err)
			report.Failed++
			continue
		}
		report.Processed++
	}
	return report, nil
}

// SummarizeEntities emits one summary row per entity, in source order.
func SummarizeEntities(record domain.EntityRecord) []domain.SummaryRow {
	rows := make([]domain.SummaryRow, 0, len(record.Entities))
	for _, ent := range record.Entities {
		rows = append(rows, domain.SummaryRow{
			Text:       ent.Text,
			Category:   ent.Category,
			Type:       ent.Type,
			Score:      ent.Score,
			Attributes: SummarizeAttributes(ent.Attributes),
		})
	}
	return rows
}

// SummarizeAttributes flattens an attribute list to the pipe-joined
// "TYPE: text | ..." display string. Pairs missing a type or text are
// dropped; when nothing survives the result is nil.
func SummarizeAttributes(attrs []domain.EntityAttribute) *string {
	var parts []string
	for _, a := range attrs {
		if a.Type == "" || a.Text == "" {
			continue
		}
		parts = append(parts, fmt.Sprintf("%s: %s", a.Type, a.Text))
	}
	if len(parts) == 0 {
		return nil
	}
	joined := strings.Join(parts, " | ")
	return &joined
}

// summaryKeys lists the DocumentIDs with a committed summary CSV. A missing
// directory reads as empty.
func summaryKeys(paths artifact.Paths) (map[domain.DocumentID]struct{}, error) {
	keys := map[domain.DocumentID]struct{}{}
	entries, err := os.ReadDir(paths.SummaryDir())
	if os.IsNotExist(err) {
		return keys, nil
	}
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", paths.SummaryDir(), err)
	}
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if id := artifact.SummaryDocID(e.Name()); id != "" {
			keys[id] = struct{}{}
		}
	}
	return keys, nil
}
