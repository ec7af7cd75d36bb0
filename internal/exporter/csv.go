// Package exporter writes completed consensus results to CSV and Excel.
// It formats a fully computed structure and performs no computation.
package exporter

import (
	"encoding/csv"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"

	"subtyper/internal/cohort"
	"subtyper/internal/consensus"
	"subtyper/internal/pipeline"
)

// noConsensus is the exported marker for an undefined consensus.
const noConsensus = "none"

// Header returns the consensus CSV column set: subject ID, the eight
// standardized features, the three per-backend labels, and both
// consensus decisions.
func Header() []string {
	header := []string{"id"}
	for _, d := range cohort.Traits {
		header = append(header, d.Name)
	}
	for b := consensus.BackendID(0); b < consensus.NumBackends; b++ {
		header = append(header, b.String())
	}
	return append(header, "majority", "strict")
}

// Row flattens one consensus record into CSV cells.
func Row(rec consensus.Record) []string {
	row := []string{rec.SubjectID}
	for _, v := range rec.Features {
		row = append(row, strconv.FormatFloat(v, 'f', 6, 64))
	}
	for _, l := range rec.Labels {
		row = append(row, l.String())
	}
	return append(row, consensusCell(rec.Majority, rec.MajorityOK), consensusCell(rec.Strict, rec.StrictOK))
}

// consensusCell renders a consensus decision, distinguishing a missing
// consensus from any label value.
func consensusCell(label consensus.Label, ok bool) string {
	if !ok {
		return noConsensus
	}
	return label.String()
}

// WriteCSV writes the consensus records to path with a UTF-8 BOM so
// spreadsheet tools detect the encoding.
func WriteCSV(path string, result *pipeline.Result, logger *slog.Logger) error {
	if logger == nil {
		logger = slog.Default()
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create output directory: %w", err)
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create csv file: %w", err)
	}
	defer f.Close()

	if _, err := f.Write([]byte{0xEF, 0xBB, 0xBF}); err != nil {
		return fmt.Errorf("write BOM: %w", err)
	}

	w := csv.NewWriter(f)
	if err := w.Write(Header()); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	for _, rec := range result.Records {
		if err := w.Write(Row(rec)); err != nil {
			return fmt.Errorf("write record %s: %w", rec.SubjectID, err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return fmt.Errorf("flush csv: %w", err)
	}

	logger.Info("consensus CSV written",
		slog.String("path", path),
		slog.Int("records", len(result.Records)),
	)
	return nil
}
