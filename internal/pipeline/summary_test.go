package pipeline

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/yungbote/medscribe-backend/internal/artifact"
	"github.com/yungbote/medscribe-backend/internal/domain"
	"github.com/yungbote/medscribe-backend/internal/platform/logger"
)

func TestSummarizeAttributes(t *testing.T) {
	attrs := []domain.EntityAttribute{
		{Type: "DOSAGE", Text: "500 mg"},
		{Type: "", Text: "orphan"},
		{Type: "FREQUENCY", Text: ""},
		{Type: "DURATION", Text: "2 weeks"},
	}
	got := SummarizeAttributes(attrs)
	if got == nil {
		t.Fatalf("want flattened attributes, got nil")
	}
	if want := "DOSAGE: 500 mg | DURATION: 2 weeks"; *got != want {
		t.Fatalf("attributes: want=%q got=%q", want, *got)
	}
}

func TestSummarizeAttributesAllDropped(t *testing.T) {
	if got := SummarizeAttributes([]domain.EntityAttribute{{Type: "", Text: ""}}); got != nil {
		t.Fatalf("want nil when no pair survives, got=%q", *got)
	}
	if got := SummarizeAttributes(nil); got != nil {
		t.Fatalf("want nil for empty list, got=%q", *got)
	}
}

func TestSummarizeEntitiesKeepsSourceOrder(t *testing.T) {
	record := domain.EntityRecord{Entities: []domain.Entity{
		{Text: "metformin", Category: "MEDICATION", Type: "GENERIC_NAME", Score: 0.97,
			Attributes: []domain.EntityAttribute{{Type: "DOSAGE", Text: "500 mg"}}},
		{Text: "diabetes", Category: "MEDICAL_CONDITION", Type: "DX_NAME", Score: 0.99},
	}}
	rows := SummarizeEntities(record)
	if len(rows) != 2 {
		t.Fatalf("rows: want=2 got=%d", len(rows))
	}
	if rows[0].Text != "metformin" || rows[1].Text != "diabetes" {
		t.Fatalf("row order: %+v", rows)
	}
	if rows[0].Attributes == nil || *rows[0].Attributes != "DOSAGE: 500 mg" {
		t.Fatalf("row 0 attributes: %v", rows[0].Attributes)
	}
	if rows[1].Attributes != nil {
		t.Fatalf("row 1 attributes: want nil got=%q", *rows[1].Attributes)
	}
}

func TestSummaryStageToleratesStringifiedAttributes(t *testing.T) {
	paths := artifact.NewPaths(t.TempDir())

	// Entity artifacts that round-tripped through a CSV cell carry their
	// attribute arrays as JSON strings; unparseable cells degrade to null.
	raw := `{
    "note_1.png": {
        "Entities": [
            {
                "Text": "metformin",
                "Category": "MEDICATION",
                "Type": "GENERIC_NAME",
                "Score": 0.97,
                "Attributes": "[{\"Type\": \"DOSAGE\", \"Text\": \"500 mg\"}]"
            },
            {
                "Text": "diabetes",
                "Category": "MEDICAL_CONDITION",
                "Type": "DX_NAME",
                "Score": 0.99,
                "Attributes": "not json at all"
            }
        ]
    }
}`
	if err := os.MkdirAll(filepath.Dir(paths.EntitiesFile()), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(paths.EntitiesFile(), []byte(raw), 0o644); err != nil {
		t.Fatalf("seed entities: %v", err)
	}

	stage := NewSummaryStage(logger.NewNop(), paths)
	report, err := stage.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if report.Processed != 1 || report.Failed != 0 {
		t.Fatalf("report: %+v", report)
	}

	rows, err := artifact.ReadSummaryCSV(paths.SummaryFile("note_1.png"))
	if err != nil {
		t.Fatalf("read summary: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("rows: want=2 got=%d", len(rows))
	}
	if rows[0].Attributes == nil || *rows[0].Attributes != "DOSAGE: 500 mg" {
		t.Fatalf("stringified attributes: %v", rows[0].Attributes)
	}
	if rows[1].Attributes != nil {
		t.Fatalf("unparseable attributes must degrade to null, got=%q", *rows[1].Attributes)
	}
}

func TestSummaryStageMissingUpstream(t *testing.T) {
	paths := artifact.NewPaths(t.TempDir())
	stage := NewSummaryStage(logger.NewNop(), paths)

	_, err := stage.Run(context.Background())
	if !errors.Is(err, ErrNothingToDo) {
		t.Fatalf("want ErrNothingToDo got=%v", err)
	}
}

func TestSummaryStageWritesAndSkips(t *testing.T) {
	paths := artifact.NewPaths(t.TempDir())
	entities := map[domain.DocumentID]domain.EntityRecord{
		"note_1.png": {Entities: []domain.Entity{
			{Text: "hypertension", Category: "MEDICAL_CONDITION", Type: "DX_NAME", Score: 0.99},
		}},
	}
	if err := artifact.WriteJSON(paths.EntitiesFile(), entities); err != nil {
		t.Fatalf("seed entities: %v", err)
	}

	stage := NewSummaryStage(logger.NewNop(), paths)
	report, err := stage.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if report.Processed != 1 {
		t.Fatalf("report: %+v", report)
	}

	rows, err := artifact.ReadSummaryCSV(paths.SummaryFile("note_1.png"))
	if err != nil {
		t.Fatalf("read summary: %v", err)
	}
	if len(rows) != 1 || rows[0].Text != "hypertension" {
		t.Fatalf("summary rows: %+v", rows)
	}

	before, err := os.ReadFile(paths.SummaryFile("note_1.png"))
	if err != nil {
		t.Fatalf("read back: %v", err)
	}
	report, err = stage.Run(context.Background())
	if err != nil {
		t.Fatalf("rerun: %v", err)
	}
	if report.Processed != 0 || report.Skipped != 1 {
		t.Fatalf("rerun report: %+v", report)
	}
	after, err := os.ReadFile(paths.SummaryFile("note_1.png"))
	if err != nil {
		t.Fatalf("read back: %v", err)
	}
	if string(before) != string(after) {
		t.Fatalf("rerun must leave the summary byte-identical")
	}
}
