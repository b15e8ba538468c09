package domain

import (
	"path/filepath"
	"strings"
)

// DocumentID is the basename of a source image (e.g. "note_1.png"). It is the
// join key across every pipeline stage and artifact.
type DocumentID = string

// Stem strips the file extension from a DocumentID ("note_1.png" -> "note_1").
func Stem(id DocumentID) string {
	return strings.TrimSuffix(id, filepath.Ext(id))
}

// EntityAttribute is a qualifier attached to a detected clinical entity, such
// as a dosage on a medication or an anatomical site on a condition.
type EntityAttribute struct {
	Type string `json:"Type"`
	Text string `json:"Text"`
}

// Entity is one clinical entity detected in a document's text. Attributes
// decodes through AttributeList so artifacts with stringified cells still
// load.
type Entity struct {
	Text       string        `json:"Text"`
	Category   string        `json:"Category"`
	Type       string        `json:"Type"`
	Score      float64       `json:"Score"`
	Attributes AttributeList `json:"Attributes,omitempty"`
}

// EntityRecord is the normalized entity-detection result for one document.
type EntityRecord struct {
	Entities []Entity `json:"Entities"`
}

// SummaryRow is one row of a per-document summary table. Attributes is nil
// when the source entity carried no usable attributes.
type SummaryRow struct {
	Text       string  `json:"Text"`
	Category   string  `json:"Category"`
	Type       string  `json:"Type"`
	Score      float64 `json:"Score"`
	Attributes *string `json:"Attributes"`
}

// DocMetadata identifies the provenance of an indexed document.
type DocMetadata struct {
	SourceFile  DocumentID `json:"source_file"`
	PatientName string     `json:"patient_name"`
}

// IndexedDoc is the retrieval unit stored in the vector index.
type IndexedDoc struct {
	Content  string      `json:"content"`
	Metadata DocMetadata `json:"metadata"`
}
