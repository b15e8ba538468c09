package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/yungbote/medscribe-backend/internal/artifact"
	"github.com/yungbote/medscribe-backend/internal/domain"
	"github.com/yungbote/medscribe-backend/internal/platform/logger"
)

// LLM is the structured-output surface the structurer stage depends on.
type LLM interface {
	GenerateJSON(ctx context.Context, system string, user string, schemaName string, schema map[string]any) (json.RawMessage, error)
}

const structurerPrompt = `You are a careful medical summarizer. The clinical note below may contain:
- Duplicated information,
- OCR noise,
- Spelling/typographical variants (e.g., "Merpes" -> "Herpes").

Instructions:
- Think carefully before answering.
- Deduplicate repeated facts; state each fact once.
- Correct obvious, unambiguous medical spelling errors.
- Normalize units and medication names when clear (e.g., mg, %, °F/°C).
- If conflicting values appear, choose the most consistent/specific one; if uncertain, choose the most reasonable and concise phrasing.
- Output must strictly follow the structure: patient, diagnosis, treatment, follow_up.
- Do not add extra keys or commentary.`

// structuredRecordSchema is the strict four-field contract the LLM must
// satisfy. Anything outside it fails the document, never the run.
var structuredRecordSchema = map[string]any{
	"type": "object",
	"properties": map[string]any{
		"patient": map[string]any{
			"type":        "string",
			"description": "The name or identifying information of the patient.",
		},
		"diagnosis": map[string]any{
			"type":        "string",
			"description": "The diagnosed condition or medical issue.",
		},
		"treatment": map[string]any{
			"type":        "string",
			"description": "Prescribed medications, dosages, or procedures.",
		},
		"follow_up": map[string]any{
			"type":        "string",
			"description": "Follow-up instructions or timeline.",
		},
	},
	"required":             []string{"patient", "diagnosis", "treatment", "follow_up"},
	"additionalProperties": false,
}

// StructurerStage distills each summary table into a validated structured
// record. Source keys are the committed summary CSVs; the idempotence marker
// is the per-document structured_json/<stem>.json file.
type StructurerStage struct {
	log         *logger.Logger
	paths       artifact.Paths
	llm         LLM
	concurrency int
}

func NewStructurerStage(log *logger.Logger, paths artifact.Paths, llm LLM, concurrency int) *StructurerStage {
	if concurrency < 1 {
		concurrency = 1
	}
	return &StructurerStage{
		log:         log.With("stage", "structurer"),
		paths:       paths,
		llm:         llm,
		concurrency: concurrency,
	}
}

func (s *StructurerStage) Name() string { return "structurer" }

func (s *StructurerStage) Run(ctx context.Context) (Report, error) {
	report := Report{Stage: s.Name()}

	summaries, err := summaryKeys(s.paths)
	if err != nil {
		return report, err
	}
	if len(summaries) == 0 {
		s.log.Warn("No summary tables found", "dir", s.paths.SummaryDir())
		return report, ErrNothingToDo
	}

	done := map[domain.DocumentID]struct{}{}
	for id := range summaries {
		if _, err := artifact.ReadStructuredRecord(s.paths.StructuredFile(id)); err == nil {
			done[id] = struct{}{}
		}
	}

	source := make([]domain.DocumentID, 0, len(summaries))
	for id := range summaries {
		source = append(source, id)
	}
	ws := Diff(source, done)
	report.Skipped = len(ws.AlreadyProcessed)
	if len(ws.ToProcess) == 0 {
		s.log.Info("No new summaries to structure", "already_processed", report.Skipped)
		return report, nil
	}
	s.log.Info("Generating structured records", "to_process", len(ws.ToProcess), "already_processed", report.Skipped)

	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.concurrency)
	for _, id := range ws.ToProcess {
		g.Go(func() error {
			if err := s.structureOne(gctx, id); err != nil {
				s.log.Error("Structuring failed, skipping document", "document_id", id, "error", err)
				mu.Lock()
				report.Failed++
				mu.Unlock()
				return nil
			}
			mu.Lock()
			report.Processed++
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return report, err
	}
	return report, nil
}

func (s *StructurerStage) structureOne(ctx context.Context, id domain.DocumentID) error {
	rows, err := artifact.ReadSummaryCSV(s.paths.SummaryFile(id))
	if err != nil {
		return err
	}

	note := RenderClinicalNote(rows)
	user := fmt.Sprintf("Clinical Note:\n%s", note)

	raw, err := s.llm.GenerateJSON(ctx, structurerPrompt, user, "medical_notes", structuredRecordSchema)
	if err != nil {
		return err
	}
	rec, err := domain.ParseStructuredRecord(raw)
	if err != nil {
		return err
	}
	return artifact.WriteJSON(s.paths.StructuredFile(id), rec)
}

// RenderClinicalNote flattens a summary table into the plain-text note sent
// to the LLM, one "<Category> (<Type>): <Text>" line per row with the
// attribute summary appended when present.
func RenderClinicalNote(rows []domain.SummaryRow) string {
	lines := make([]string, 0, len(rows))
	for _, row := range rows {
		line := fmt.Sprintf("%s (%s): %s", strings.TrimSpace(row.Category), strings.TrimSpace(row.Type), strings.TrimSpace(row.Text))
		if row.Attributes != nil && strings.TrimSpace(*row.Attributes) != "" {
			line += " | " + strings.TrimSpace(*row.Attributes)
		}
		lines = append(lines, line)
	}
	return strings.Join(lines, "\n")
}
