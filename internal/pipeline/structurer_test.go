package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"io/fs"
	"os"
	"testing"

	"github.com/yungbote/medscribe-backend/internal/artifact"
	"github.com/yungbote/medscribe-backend/internal/domain"
	"github.com/yungbote/medscribe-backend/internal/platform/logger"
)

type stubLLM struct {
	response json.RawMessage
	err      error
	calls    int
	lastUser string
}

func (s *stubLLM) GenerateJSON(ctx context.Context, system, user, schemaName string, schema map[string]any) (json.RawMessage, error) {
	s.calls++
	s.lastUser = user
	if s.err != nil {
		return nil, s.err
	}
	return s.response, nil
}

func seedSummary(t *testing.T, paths artifact.Paths, id domain.DocumentID) {
	t.Helper()
	attrs := "DOSAGE: 500 mg"
	rows := []domain.SummaryRow{
		{Text: "metformin", Category: "MEDICATION", Type: "GENERIC_NAME", Score: 0.97, Attributes: &attrs},
		{Text: "diabetes", Category: "MEDICAL_CONDITION", Type: "DX_NAME", Score: 0.99},
	}
	if err := artifact.WriteSummaryCSV(paths.SummaryFile(id), rows); err != nil {
		t.Fatalf("seed summary: %v", err)
	}
}

func TestRenderClinicalNote(t *testing.T) {
	attrs := "DOSAGE: 500 mg"
	rows := []domain.SummaryRow{
		{Text: "metformin", Category: "MEDICATION", Type: "GENERIC_NAME", Attributes: &attrs},
		{Text: "diabetes", Category: "MEDICAL_CONDITION", Type: "DX_NAME"},
	}
	want := "MEDICATION (GENERIC_NAME): metformin | DOSAGE: 500 mg\nMEDICAL_CONDITION (DX_NAME): diabetes"
	if got := RenderClinicalNote(rows); got != want {
		t.Fatalf("note:\nwant=%q\ngot =%q", want, got)
	}
}

func TestStructurerStageMissingUpstream(t *testing.T) {
	paths := artifact.NewPaths(t.TempDir())
	stage := NewStructurerStage(logger.NewNop(), paths, &stubLLM{}, 1)

	_, err := stage.Run(context.Background())
	if !errors.Is(err, ErrNothingToDo) {
		t.Fatalf("want ErrNothingToDo got=%v", err)
	}
}

func TestStructurerStageWritesValidatedRecord(t *testing.T) {
	paths := artifact.NewPaths(t.TempDir())
	seedSummary(t, paths, "note_1.png")

	llm := &stubLLM{response: json.RawMessage(`{"patient":"Ravi Mehta","diagnosis":"Type 2 diabetes","treatment":"Metformin 500 mg","follow_up":"Review in 2 weeks"}`)}
	stage := NewStructurerStage(logger.NewNop(), paths, llm, 1)

	report, err := stage.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if report.Processed != 1 || report.Failed != 0 {
		t.Fatalf("report: %+v", report)
	}
	if llm.lastUser == "" || llm.lastUser == "Clinical Note:\n" {
		t.Fatalf("clinical note not rendered into the prompt: %q", llm.lastUser)
	}

	rec, err := artifact.ReadStructuredRecord(paths.StructuredFile("note_1.png"))
	if err != nil {
		t.Fatalf("read structured record: %v", err)
	}
	if rec.Patient != "Ravi Mehta" || rec.FollowUp != "Review in 2 weeks" {
		t.Fatalf("record: %+v", rec)
	}

	// The committed record is the idempotence marker.
	report, err = stage.Run(context.Background())
	if err != nil {
		t.Fatalf("rerun: %v", err)
	}
	if report.Processed != 0 || report.Skipped != 1 {
		t.Fatalf("rerun report: %+v", report)
	}
	if llm.calls != 1 {
		t.Fatalf("llm calls: want=1 got=%d", llm.calls)
	}
}

func TestStructurerStageRejectsSchemaViolations(t *testing.T) {
	cases := []struct {
		name     string
		response json.RawMessage
	}{
		{"extra key", json.RawMessage(`{"patient":"A","diagnosis":"B","treatment":"C","follow_up":"D","notes":"E"}`)},
		{"empty field", json.RawMessage(`{"patient":"A","diagnosis":"  ","treatment":"C","follow_up":"D"}`)},
		{"missing field", json.RawMessage(`{"patient":"A","diagnosis":"B","treatment":"C"}`)},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			paths := artifact.NewPaths(t.TempDir())
			seedSummary(t, paths, "note_1.png")

			stage := NewStructurerStage(logger.NewNop(), paths, &stubLLM{response: c.response}, 1)
			report, err := stage.Run(context.Background())
			if err != nil {
				t.Fatalf("Run: %v", err)
			}
			if report.Failed != 1 || report.Processed != 0 {
				t.Fatalf("report: %+v", report)
			}
			if _, err := os.Stat(paths.StructuredFile("note_1.png")); !errors.Is(err, fs.ErrNotExist) {
				t.Fatalf("rejected record must not be committed: %v", err)
			}
		})
	}
}

func TestStructurerStageRetriesFailedDocumentOnRerun(t *testing.T) {
	paths := artifact.NewPaths(t.TempDir())
	seedSummary(t, paths, "note_1.png")

	llm := &stubLLM{err: errors.New("rate limited")}
	stage := NewStructurerStage(logger.NewNop(), paths, llm, 1)
	report, err := stage.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if report.Failed != 1 {
		t.Fatalf("report: %+v", report)
	}

	llm.err = nil
	llm.response = json.RawMessage(`{"patient":"A","diagnosis":"B","treatment":"C","follow_up":"D"}`)
	report, err = stage.Run(context.Background())
	if err != nil {
		t.Fatalf("rerun: %v", err)
	}
	if report.Processed != 1 {
		t.Fatalf("rerun report: %+v", report)
	}
}
