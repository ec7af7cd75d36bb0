// Command subtyper assigns each subject in a cohort to a clinical
// subtype by consensus over three independent clustering runs.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"subtyper/internal/config"
	"subtyper/internal/exporter"
	"subtyper/internal/infrastructure"
	"subtyper/internal/ingest"
	"subtyper/internal/pipeline"
)

func main() {
	if err := run(); err != nil {
		slog.Error("run failed",
			"error", err,
			"error_type", string(pipeline.GetErrorType(err)),
		)
		os.Exit(1)
	}
}

func run() error {
	configPath := flag.String("config", "subtyper.yaml", "configuration file path")
	input := flag.String("input", "", "subjects CSV path (overrides config)")
	out := flag.String("out", "", "output directory (overrides config)")
	trace := flag.Bool("trace", false, "write spans to stderr")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if *input != "" {
		cfg.Paths.InputFile = *input
	}
	if *out != "" {
		cfg.Paths.OutputDir = *out
	}

	logger, err := infrastructure.InitializeLogger(cfg.Logging)
	if err != nil {
		return fmt.Errorf("initialize logger: %w", err)
	}

	ctx := context.Background()

	traceOut := io.Writer(io.Discard)
	if *trace {
		traceOut = os.Stderr
	}
	shutdown, err := infrastructure.InitializeTracing(traceOut, "subtyper")
	if err != nil {
		return fmt.Errorf("initialize tracing: %w", err)
	}
	defer func() {
		if err := shutdown(ctx); err != nil {
			logger.Warn("trace shutdown failed", "error", err)
		}
	}()

	subjects, err := ingest.ReadFile(cfg.Paths.InputFile, logger)
	if err != nil {
		return fmt.Errorf("read subjects: %w", err)
	}

	pipeCfg, err := cfg.PipelineConfig()
	if err != nil {
		return fmt.Errorf("pipeline config: %w", err)
	}

	result, err := pipeline.New(pipeCfg, logger).Run(ctx, subjects)
	if err != nil {
		return err
	}

	csvPath := filepath.Join(cfg.Paths.OutputDir, "consensus.csv")
	if err := exporter.WriteCSV(csvPath, result, logger); err != nil {
		return fmt.Errorf("export csv: %w", err)
	}
	xlsxPath := filepath.Join(cfg.Paths.OutputDir, "consensus.xlsx")
	if err := exporter.WriteWorkbook(xlsxPath, result, logger); err != nil {
		return fmt.Errorf("export workbook: %w", err)
	}

	logger.Info("subtyping completed",
		slog.String("run_id", result.RunID),
		slog.Int("subjects_in", result.Report.Input),
		slog.Int("subjects_labeled", len(result.Records)),
		slog.Int("majority_assigned", result.MajorityAssigned),
		slog.Int("strict_assigned", result.StrictAssigned),
		slog.String("csv", csvPath),
		slog.String("workbook", xlsxPath),
	)
	return nil
}
