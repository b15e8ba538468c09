package domain

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
)

// StructuredRecord is the distilled clinical summary of one document. It has
// exactly these four fields; decoding rejects anything else.
type StructuredRecord struct {
	Patient   string `json:"patient"`
	Diagnosis string `json:"diagnosis"`
	Treatment string `json:"treatment"`
	FollowUp  string `json:"follow_up"`
}

// ParseStructuredRecord decodes data strictly: unknown keys are an error, and
// every field must be a non-empty string.
func ParseStructuredRecord(data []byte) (StructuredRecord, error) {
	var rec StructuredRecord
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&rec); err != nil {
		return StructuredRecord{}, fmt.Errorf("decode structured record: %w", err)
	}
	if err := rec.Validate(); err != nil {
		return StructuredRecord{}, err
	}
	return rec, nil
}

func (r StructuredRecord) Validate() error {
	for name, val := range map[string]string{
		"patient":   r.Patient,
		"diagnosis": r.Diagnosis,
		"treatment": r.Treatment,
		"follow_up": r.FollowUp,
	} {
		if strings.TrimSpace(val) == "" {
			return fmt.Errorf("structured record field %q is empty", name)
		}
	}
	return nil
}
