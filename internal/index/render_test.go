package index

import (
	"testing"

	"github.com/yungbote/medscribe-backend/internal/domain"
)

func TestRenderContentFull(t *testing.T) {
	rec := domain.StructuredRecord{
		Patient:   "Anupama Joshi",
		Diagnosis: "Type 2 diabetes",
		Treatment: "Metformin 500 mg",
		FollowUp:  "Review in 2 weeks",
	}
	want := "Name of the patient is Anupama Joshi. The Patient's diagnosed detail is Type 2 diabetes and the suggested treatment is Metformin 500 mg and the followup is Review in 2 weeks"
	if got := RenderContent(rec); got != want {
		t.Fatalf("RenderContent:\nwant=%q\ngot =%q", want, got)
	}
}

func TestRenderContentFallbacks(t *testing.T) {
	want := "Name of the patient is Not given. The Patient's diagnosed detail is Not given and the suggested treatment is Not Given and the followup is Not Given"
	if got := RenderContent(domain.StructuredRecord{}); got != want {
		t.Fatalf("RenderContent fallbacks:\nwant=%q\ngot =%q", want, got)
	}
}

func TestNewDocMetadata(t *testing.T) {
	doc := NewDoc("note_1.png", domain.StructuredRecord{Patient: "Ravi Mehta"})
	if doc.Metadata.SourceFile != "note_1.png" {
		t.Fatalf("source file: want=%q got=%q", "note_1.png", doc.Metadata.SourceFile)
	}
	if doc.Metadata.PatientName != "Ravi Mehta" {
		t.Fatalf("patient name: want=%q got=%q", "Ravi Mehta", doc.Metadata.PatientName)
	}

	anon := NewDoc("note_2.png", domain.StructuredRecord{})
	if anon.Metadata.PatientName != "Unknown" {
		t.Fatalf("patient name fallback: want=%q got=%q", "Unknown", anon.Metadata.PatientName)
	}
}
