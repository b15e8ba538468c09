package artifact

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/yungbote/medscribe-backend/internal/domain"
)

// WriteJSON persists v as pretty-printed UTF-8 JSON (4-space indent, HTML
// escaping off so non-ASCII clinical text survives byte-for-byte). Parent
// directories are created as needed.
func WriteJSON(path string, v any) error {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "    ")
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("encode %s: %w", filepath.Base(path), err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("mkdir %s: %w", filepath.Dir(path), err)
	}
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}

// ReadStructuredRecord loads and strictly validates one structured record
// file. Missing files surface as fs.ErrNotExist.
func ReadStructuredRecord(path string) (domain.StructuredRecord, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return domain.StructuredRecord{}, err
	}
	rec, err := domain.ParseStructuredRecord(data)
	if err != nil {
		return domain.StructuredRecord{}, fmt.Errorf("parse %s: %w", path, err)
	}
	return rec, nil
}

// ReadJSON loads path into out. The boolean reports whether the file exists;
// a missing file is not an error.
func ReadJSON(path string, out any) (bool, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("read %s: %w", path, err)
	}
	if err := json.Unmarshal(data, out); err != nil {
		return true, fmt.Errorf("parse %s: %w", path, err)
	}
	return true, nil
}
