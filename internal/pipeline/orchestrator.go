// Package pipeline sequences normalization, the three clustering runs,
// per-run canonicalization, and consensus aggregation over a static
// in-memory cohort. A run completes atomically or fails with a typed
// error; no partial results are produced.
package pipeline

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"subtyper/internal/cluster"
	"subtyper/internal/cohort"
	"subtyper/internal/consensus"
	"subtyper/internal/normalize"
)

const tracerName = "subtyper.pipeline"

// Config holds the tunable parameters of one pipeline run.
type Config struct {
	Linkage        cluster.Linkage
	KMeansSeed     int64
	KMeansRestarts int
	KMeansMaxIter  int
	GMMSeed        int64
	GMMMaxIter     int
	GMMTol         float64
	OutlierRules   []cohort.OutlierRule
}

// DefaultConfig returns the standard run parameters.
func DefaultConfig() Config {
	return Config{
		// Average linkage is the default; the Ward update assumes
		// squared-Euclidean dissimilarities, not the Manhattan
		// distances the hierarchical backend computes.
		Linkage:        cluster.LinkageAverage,
		KMeansSeed:     1,
		KMeansRestarts: 20,
		KMeansMaxIter:  100,
		GMMSeed:        1,
		GMMMaxIter:     200,
		GMMTol:         1e-6,
		OutlierRules:   cohort.DefaultOutlierRules(),
	}
}

// Result is the terminal output of a successful run.
type Result struct {
	RunID      string
	Records    []consensus.Record
	Report     cohort.CleanReport
	Collisions [consensus.NumBackends]bool
	// MajorityAssigned and StrictAssigned count subjects with a
	// defined consensus under each variant.
	MajorityAssigned int
	StrictAssigned   int
	Duration         time.Duration
}

// Orchestrator wires the pipeline stages together. It owns no state
// between runs.
type Orchestrator struct {
	cfg        Config
	normalizer *normalize.Normalizer
	backends   [consensus.NumBackends]cluster.Backend
	logger     *slog.Logger
	tracer     trace.Tracer
}

// New creates an orchestrator from the given configuration.
func New(cfg Config, logger *slog.Logger) *Orchestrator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Orchestrator{
		cfg:        cfg,
		normalizer: normalize.New(cfg.OutlierRules, logger),
		backends: [consensus.NumBackends]cluster.Backend{
			consensus.BackendHierarchical: cluster.NewHierarchical(cfg.Linkage, logger),
			consensus.BackendKMeans:       cluster.NewKMeans(cfg.KMeansSeed, cfg.KMeansRestarts, cfg.KMeansMaxIter, logger),
			consensus.BackendGMM:          cluster.NewGMM(cfg.GMMSeed, cfg.GMMMaxIter, cfg.GMMTol, logger),
		},
		logger: logger,
		tracer: otel.Tracer(tracerName),
	}
}

// Run executes the full pipeline over the raw cohort.
func (o *Orchestrator) Run(ctx context.Context, subjects []cohort.Subject) (*Result, error) {
	runID := uuid.NewString()
	start := time.Now()

	ctx, span := o.tracer.Start(ctx, "pipeline.run",
		trace.WithAttributes(
			attribute.String("run.id", runID),
			attribute.Int("run.subjects", len(subjects)),
		),
	)
	defer span.End()

	o.logger.InfoContext(ctx, "starting pipeline run",
		slog.String("run_id", runID),
		slog.Int("subjects", len(subjects)),
	)

	if len(subjects) == 0 {
		return nil, NewValidationError("input", "no subjects provided")
	}

	features, report, err := o.normalizeStage(ctx, subjects)
	if err != nil {
		return nil, err
	}

	labelings, collisions, err := o.labelStage(ctx, features)
	if err != nil {
		return nil, err
	}

	result := o.aggregate(features, labelings)
	result.RunID = runID
	result.Report = report
	result.Collisions = collisions
	result.Duration = time.Since(start)

	o.logger.InfoContext(ctx, "pipeline run completed",
		slog.String("run_id", runID),
		slog.Int("records", len(result.Records)),
		slog.Int("majority_assigned", result.MajorityAssigned),
		slog.Int("strict_assigned", result.StrictAssigned),
		slog.Duration("duration", result.Duration),
	)

	return result, nil
}

func (o *Orchestrator) normalizeStage(ctx context.Context, subjects []cohort.Subject) (*normalize.Matrix, cohort.CleanReport, error) {
	ctx, span := o.tracer.Start(ctx, "pipeline.normalize")
	defer span.End()

	features, report, err := o.normalizer.Normalize(ctx, subjects)
	if err != nil {
		return nil, report, WrapError(err, "normalize")
	}
	span.SetAttributes(attribute.Int("normalize.retained", features.Len()))
	return features, report, nil
}

// labeling is one backend's canonicalized per-subject labels.
type labeling struct {
	canon consensus.Canonicalization
	part  cluster.Partition
}

// labelStage runs the three backends concurrently over the shared
// read-only feature matrix and canonicalizes each partition. Wait() is
// the synchronization barrier: consensus never sees a partial set.
func (o *Orchestrator) labelStage(ctx context.Context, features *normalize.Matrix) ([consensus.NumBackends]labeling, [consensus.NumBackends]bool, error) {
	var labelings [consensus.NumBackends]labeling
	var collisions [consensus.NumBackends]bool

	g, gctx := errgroup.WithContext(ctx)
	for b := consensus.BackendID(0); b < consensus.NumBackends; b++ {
		g.Go(func() error {
			ctx, span := o.tracer.Start(gctx, "pipeline.cluster",
				trace.WithAttributes(attribute.String("backend", b.String())),
			)
			defer span.End()

			backend := o.backends[b]
			part, err := backend.Partition(ctx, features.Data, cluster.DefaultK)
			if err != nil {
				return WrapError(err, backend.Name())
			}

			canon, err := consensus.Canonicalize(part, features.Data, o.logger)
			if err != nil {
				// A partition without 3 distinct non-empty groups
				// cannot be labeled.
				return &PipelineError{
					Type:    ErrorTypeInsufficientData,
					Stage:   backend.Name(),
					Message: "partition cannot be canonicalized",
					Cause:   err,
				}
			}

			labelings[b] = labeling{canon: canon, part: part}
			collisions[b] = canon.Collision
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return labelings, collisions, WrapError(err, "label")
	}
	return labelings, collisions, nil
}

// aggregate builds the per-subject consensus records. Each subject is
// processed independently.
func (o *Orchestrator) aggregate(features *normalize.Matrix, labelings [consensus.NumBackends]labeling) *Result {
	result := &Result{
		Records: make([]consensus.Record, features.Len()),
	}

	for i := 0; i < features.Len(); i++ {
		rec := consensus.Record{
			SubjectID: features.IDs[i],
			Features:  features.Row(i),
		}
		for b := consensus.BackendID(0); b < consensus.NumBackends; b++ {
			rec.Labels[b] = labelings[b].canon.LabelOf(labelings[b].part, i)
		}
		rec.Majority, rec.MajorityOK = consensus.Majority(rec.Labels)
		rec.Strict, rec.StrictOK = consensus.Strict(rec.Labels)

		if rec.MajorityOK {
			result.MajorityAssigned++
		}
		if rec.StrictOK {
			result.StrictAssigned++
		}
		result.Records[i] = rec
	}

	return result
}
