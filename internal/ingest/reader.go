// Package ingest reads raw subject records from CSV. It only parses
// and types the data; all filtering happens downstream.
package ingest

import (
	"encoding/csv"
	"fmt"
	"io"
	"log/slog"
	"math"
	"os"
	"strconv"
	"strings"

	"subtyper/internal/cohort"
)

// missingMarkers are the recognized representations of a missing value.
var missingMarkers = map[string]struct{}{
	"":    {},
	"NA":  {},
	"N/A": {},
	".":   {},
}

// ReadFile reads subject records from a CSV file.
func ReadFile(path string, logger *slog.Logger) ([]cohort.Subject, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open subjects file: %w", err)
	}
	defer f.Close()
	return Read(f, logger)
}

// Read parses subject records from CSV data. The header must contain
// id, age, and one column per trait; <trait>_assay columns are optional
// and default to a single level.
func Read(r io.Reader, logger *slog.Logger) ([]cohort.Subject, error) {
	if logger == nil {
		logger = slog.Default()
	}

	cr := csv.NewReader(r)
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}

	cols := make(map[string]int, len(header))
	for i, name := range header {
		cols[strings.ToLower(strings.TrimSpace(strings.TrimPrefix(name, "\ufeff")))] = i
	}

	required := []string{"id", "age"}
	for _, d := range cohort.Traits {
		required = append(required, strings.ToLower(d.Name))
	}
	for _, name := range required {
		if _, ok := cols[name]; !ok {
			return nil, fmt.Errorf("missing required column %q", name)
		}
	}

	var subjects []cohort.Subject
	line := 1
	for {
		row, err := cr.Read()
		if err == io.EOF {
			break
		}
		line++
		if err != nil {
			return nil, fmt.Errorf("read row %d: %w", line, err)
		}

		s := cohort.Subject{
			ID:  strings.TrimSpace(row[cols["id"]]),
			Age: parseValue(row[cols["age"]]),
		}
		if s.ID == "" {
			return nil, fmt.Errorf("row %d: empty subject id", line)
		}
		for _, d := range cohort.Traits {
			s.Values[d.ID] = parseValue(row[cols[strings.ToLower(d.Name)]])
			if d.AssayDependent {
				if idx, ok := cols[strings.ToLower(d.Name)+"_assay"]; ok {
					s.Assays[d.ID] = strings.TrimSpace(row[idx])
				}
			}
		}
		subjects = append(subjects, s)
	}

	logger.Info("subjects loaded",
		slog.Int("count", len(subjects)),
	)
	return subjects, nil
}

// parseValue converts a cell to float64, mapping missing markers and
// unparseable content to NaN.
func parseValue(cell string) float64 {
	cell = strings.TrimSpace(cell)
	if _, missing := missingMarkers[strings.ToUpper(cell)]; missing {
		return math.NaN()
	}
	v, err := strconv.ParseFloat(cell, 64)
	if err != nil {
		return math.NaN()
	}
	return v
}
