package index

import (
	"fmt"

	"github.com/yungbote/medscribe-backend/internal/domain"
)

// RenderContent flattens a structured record into the sentence stored in the
// vector index. The wording (including the uneven "Not given"/"Not Given"
// casing) is part of the indexed-byte contract and must not change.
func RenderContent(rec domain.StructuredRecord) string {
	return fmt.Sprintf(
		"Name of the patient is %s. The Patient's diagnosed detail is %s and the suggested treatment is %s and the followup is %s",
		orFallback(rec.Patient, "Not given"),
		orFallback(rec.Diagnosis, "Not given"),
		orFallback(rec.Treatment, "Not Given"),
		orFallback(rec.FollowUp, "Not Given"),
	)
}

// NewDoc builds the retrieval unit for one document.
func NewDoc(sourceFile domain.DocumentID, rec domain.StructuredRecord) domain.IndexedDoc {
	return domain.IndexedDoc{
		Content: RenderContent(rec),
		Metadata: domain.DocMetadata{
			SourceFile:  sourceFile,
			PatientName: orFallback(rec.Patient, "Unknown"),
		},
	}
}

func orFallback(v, fallback string) string {
	if v == "" {
		return fallback
	}
	return v
}
