package pipeline

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"strings"
	"time"
)

// ------------------- CSV Ingestion -------------------

// ingestCSV reads one CSV file into a Table. Malformed rows are skipped and
// counted rather than failing the file.
func ingestCSV(ctx context.Context, path string, spec TableSpec, transformations []string) (*Table, error) {
	file, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, ErrTableAbsent
		}
		return nil, fmt.Errorf("failed to open CSV file: %w", err)
	}
	defer file.Close()
	return readCSV(ctx, file, spec, transformations)
}

func readCSV(ctx context.Context, r io.Reader, spec TableSpec, transformations []string) (*Table, error) {
	csvReader := csv.NewReader(r)
	csvReader.LazyQuotes = true
	csvReader.FieldsPerRecord = -1

	raw, err := csvReader.Read()
	if err == io.EOF {
		return &Table{Name: spec.Key}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read CSV header: %w", err)
	}
	headers := cleanHeaders(raw, spec.Positional)

	t := &Table{Name: spec.Key, Columns: headers}
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		row, err := csvReader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			var perr *csv.ParseError
			if errors.As(err, &perr) {
				t.Skipped++
				continue
			}
			return nil, fmt.Errorf("CSV read error: %w", err)
		}

		row, ok := fitRow(row, len(headers), spec.MinFields)
		if !ok {
			t.Skipped++
			continue
		}

		rec := make(GenericRecord, len(headers))
		for i, h := range headers {
			rec[h] = row[i]
		}
		rec, err = applyTransformations(rec, transformations)
		if err != nil {
			return nil, err
		}
		if !validateRecord(rec, spec.Rules) {
			t.Skipped++
			continue
		}
		t.Records = append(t.Records, rec)
	}

	if t.Skipped > 0 {
		log.Printf("📄 %s: %d rows read, %d malformed rows skipped", spec.File, len(t.Records), t.Skipped)
	}
	return t, nil
}

// cleanHeaders trims whitespace and strips quotes from header names, then
// applies positional renames.
func cleanHeaders(raw []string, positional []string) []string {
	headers := make([]string, len(raw))
	for i, h := range raw {
		h = strings.TrimPrefix(h, "\ufeff")
		h = strings.TrimSpace(h)
		headers[i] = strings.ReplaceAll(h, `"`, "")
	}
	for i, name := range positional {
		if i < len(headers) {
			headers[i] = name
		}
	}
	return headers
}

// fitRow matches row to the header width. Short rows are padded with empty
// cells. Rows with too many fields are malformed unless the table parses
// ragged rows, which instead truncates them and rejects rows under minFields.
func fitRow(row []string, width, minFields int) ([]string, bool) {
	switch {
	case len(row) == width:
		return row, true
	case len(row) > width:
		if minFields <= 0 {
			return nil, false
		}
		return row[:width], true
	case minFields > 0 && len(row) < minFields:
		return nil, false
	}
	padded := make([]string, width)
	copy(padded, row)
	return padded, true
}

// ------------------- Dates -------------------

var knownDateColumns = map[string]bool{
	"created_at":         true,
	"updated_at":         true,
	"first_subscription": true,
	"first_execution":    true,
	"last_execution":     true,
	"paid_at":            true,
	"first_session":      true,
	"last_session":       true,
	"last_activity":      true,
}

// IsDateColumn reports whether a column holds timestamps.
func IsDateColumn(name string) bool {
	return strings.HasSuffix(name, "_at") || strings.HasSuffix(name, "_date") || knownDateColumns[name]
}

var dateLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02 15:04:05.999999999Z07:00",
	"2006-01-02 15:04:05.999999999-07",
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02",
	"2006/01/02",
}

// ParseTimestamp parses a date cell into UTC. Naive values are read as UTC.
func ParseTimestamp(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), true
		}
	}
	return time.Time{}, false
}
