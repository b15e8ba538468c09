package artifact

import (
	"encoding/csv"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strconv"

	"github.com/yungbote/medscribe-backend/internal/domain"
)

var summaryHeader = []string{"Text", "Category", "Type", "Score", "Attributes"}

// WriteSummaryCSV writes a summary table with the fixed column order
// Text,Category,Type,Score,Attributes. Nil attributes and non-finite scores
// become empty cells.
func WriteSummaryCSV(path string, rows []domain.SummaryRow) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("mkdir %s: %w", filepath.Dir(path), err)
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	w := csv.NewWriter(f)
	if err := w.Write(summaryHeader); err != nil {
		f.Close()
		return fmt.Errorf("write header %s: %w", path, err)
	}
	for _, row := range rows {
		score := ""
		if !math.IsNaN(row.Score) && !math.IsInf(row.Score, 0) {
			score = strconv.FormatFloat(row.Score, 'g', -1, 64)
		}
		attrs := ""
		if row.Attributes != nil {
			attrs = *row.Attributes
		}
		if err := w.Write([]string{row.Text, row.Category, row.Type, score, attrs}); err != nil {
			f.Close()
			return fmt.Errorf("write row %s: %w", path, err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		f.Close()
		return fmt.Errorf("flush %s: %w", path, err)
	}
	return f.Close()
}

// ReadSummaryCSV loads a summary table. Empty score cells parse as NaN and
// empty attribute cells as nil, mirroring how the tables are written.
func ReadSummaryCSV(path string) ([]domain.SummaryRow, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	records, err := csv.NewReader(f).ReadAll()
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	if len(records) == 0 {
		return nil, nil
	}
	if len(records[0]) != len(summaryHeader) {
		return nil, fmt.Errorf("parse %s: expected %d columns, got %d", path, len(summaryHeader), len(records[0]))
	}

	rows := make([]domain.SummaryRow, 0, len(records)-1)
	for _, rec := range records[1:] {
		row := domain.SummaryRow{
			Text:     rec[0],
			Category: rec[1],
			Type:     rec[2],
			Score:    math.NaN(),
		}
		if rec[3] != "" {
			if score, err := strconv.ParseFloat(rec[3], 64); err == nil {
				row.Score = score
			}
		}
		if rec[4] != "" {
			attrs := rec[4]
			row.Attributes = &attrs
		}
		rows = append(rows, row)
	}
	return rows, nil
}
