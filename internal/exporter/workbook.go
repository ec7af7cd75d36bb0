package exporter

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/xuri/excelize/v2"

	"subtyper/internal/cohort"
	"subtyper/internal/consensus"
	"subtyper/internal/pipeline"
)

const (
	consensusSheet = "Consensus"
	auditSheet     = "Audit"
)

// WriteWorkbook writes the consensus records and the data-quality audit
// counts to an Excel workbook with two sheets.
func WriteWorkbook(path string, result *pipeline.Result, logger *slog.Logger) error {
	if logger == nil {
		logger = slog.Default()
	}

	f := excelize.NewFile()
	defer f.Close()

	f.SetSheetName(f.GetSheetName(0), consensusSheet)

	if err := writeRow(f, consensusSheet, 1, toAny(Header())); err != nil {
		return err
	}
	for i, rec := range result.Records {
		if err := writeRow(f, consensusSheet, i+2, toAny(Row(rec))); err != nil {
			return err
		}
	}

	if _, err := f.NewSheet(auditSheet); err != nil {
		return fmt.Errorf("create audit sheet: %w", err)
	}
	if err := writeAudit(f, result); err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create output directory: %w", err)
	}
	if err := f.SaveAs(path); err != nil {
		return fmt.Errorf("save workbook: %w", err)
	}

	logger.Info("consensus workbook written",
		slog.String("path", path),
		slog.Int("records", len(result.Records)),
	)
	return nil
}

// writeAudit fills the audit sheet with run identity, cleaning counts,
// collision flags, and consensus hit counts.
func writeAudit(f *excelize.File, result *pipeline.Result) error {
	rows := [][]any{
		{"run_id", result.RunID},
		{"input_subjects", result.Report.Input},
		{"duplicates_removed", result.Report.Duplicates},
		{"incomplete_removed", result.Report.Incomplete},
		{"outlier_values_nulled", result.Report.TotalOutlierValues()},
		{"removed_by_outliers", result.Report.RemovedByOutliers},
		{"retained", result.Report.Retained},
		{"majority_assigned", result.MajorityAssigned},
		{"strict_assigned", result.StrictAssigned},
	}
	for _, d := range cohort.Traits {
		if n, ok := result.Report.OutlierValues[d.ID]; ok {
			rows = append(rows, []any{"outlier_values_" + d.Name, n})
		}
	}
	for b := consensus.BackendID(0); b < consensus.NumBackends; b++ {
		rows = append(rows, []any{"label_collision_" + b.String(), result.Collisions[b]})
	}

	for i, row := range rows {
		if err := writeRow(f, auditSheet, i+1, row); err != nil {
			return err
		}
	}
	return nil
}

func writeRow(f *excelize.File, sheet string, rowNum int, values []any) error {
	cell, err := excelize.CoordinatesToCellName(1, rowNum)
	if err != nil {
		return fmt.Errorf("cell name for row %d: %w", rowNum, err)
	}
	if err := f.SetSheetRow(sheet, cell, &values); err != nil {
		return fmt.Errorf("write %s row %d: %w", sheet, rowNum, err)
	}
	return nil
}

func toAny(cells []string) []any {
	out := make([]any, len(cells))
	for i, c := range cells {
		out[i] = c
	}
	return out
}
