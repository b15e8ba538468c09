package artifact

import (
	"path/filepath"
	"strings"

	"github.com/yungbote/medscribe-backend/internal/domain"
)

// Paths resolves every pipeline artifact location under a single data root.
//
// Layout:
//
//	<root>/raw_images/                              source images
//	<root>/processed_images/processed_text.json     OCR text per document
//	<root>/processed_medical/processed_entities.json  entities per document
//	<root>/processed_medical_data/<doc>_summary.csv summary tables
//	<root>/structured_json/<stem>.json              structured records
type Paths struct {
	DataDir string
}

func NewPaths(dataDir string) Paths {
	dir := strings.TrimSpace(dataDir)
	if dir == "" {
		dir = "data"
	}
	return Paths{DataDir: dir}
}

func (p Paths) RawImagesDir() string {
	return filepath.Join(p.DataDir, "raw_images")
}

func (p Paths) RawTextFile() string {
	return filepath.Join(p.DataDir, "processed_images", "processed_text.json")
}

func (p Paths) EntitiesFile() string {
	return filepath.Join(p.DataDir, "processed_medical", "processed_entities.json")
}

func (p Paths) SummaryDir() string {
	return filepath.Join(p.DataDir, "processed_medical_data")
}

func (p Paths) SummaryFile(id domain.DocumentID) string {
	return filepath.Join(p.SummaryDir(), id+"_summary.csv")
}

func (p Paths) StructuredDir() string {
	return filepath.Join(p.DataDir, "structured_json")
}

func (p Paths) StructuredFile(id domain.DocumentID) string {
	return filepath.Join(p.StructuredDir(), domain.Stem(id)+".json")
}

// SummaryDocID recovers the DocumentID from a summary CSV filename, or ""
// when the name does not match the <doc>_summary.csv pattern.
func SummaryDocID(name string) domain.DocumentID {
	if !strings.HasSuffix(name, "_summary.csv") {
		return ""
	}
	return strings.TrimSuffix(name, "_summary.csv")
}
