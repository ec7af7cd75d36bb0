// Package normalize converts raw, age- and assay-confounded cohort
// measurements into standardized clustering features. Each feature
// column is the rank-based inverse-normal transform of the residual of
// log(trait) after removing age (and lab-method, where it varies)
// effects, so every column is standard normal by construction.
package normalize

import (
	"context"
	"log/slog"
	"math"
	"time"

	"gonum.org/v1/gonum/mat"

	"subtyper/internal/cohort"
)

// Normalizer runs the full cleaning and standardization pipeline.
type Normalizer struct {
	cleaner *cohort.Cleaner
	logger  *slog.Logger
}

// New creates a Normalizer with the given outlier rules.
func New(rules []cohort.OutlierRule, logger *slog.Logger) *Normalizer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Normalizer{
		cleaner: cohort.NewCleaner(rules, logger),
		logger:  logger,
	}
}

// Normalize cleans the cohort and produces the standardized feature
// matrix, in input order. Fails with KindInsufficientData when too few
// complete subjects remain to fit a regression, and with
// KindDegenerateColumn when a residual column has zero variance.
func (n *Normalizer) Normalize(ctx context.Context, subjects []cohort.Subject) (*Matrix, cohort.CleanReport, error) {
	start := time.Now()

	retained, report := n.cleaner.Clean(subjects)

	if len(retained) == 0 {
		return nil, report, &Error{
			Kind:    KindInsufficientData,
			Trait:   cohort.BMI,
			Message: "no subjects retained after cleaning",
		}
	}
	data := mat.NewDense(len(retained), cohort.NumTraits, nil)

	age := make([]float64, len(retained))
	for i, s := range retained {
		age[i] = s.Age
	}

	for _, desc := range cohort.Traits {
		if err := ctx.Err(); err != nil {
			return nil, report, err
		}

		col, err := n.normalizeColumn(retained, desc, age)
		if err != nil {
			return nil, report, err
		}
		data.SetCol(int(desc.ID), col)
	}

	ids := make([]string, len(retained))
	for i, s := range retained {
		ids[i] = s.ID
	}

	n.logger.InfoContext(ctx, "normalization completed",
		slog.Int("subjects", len(retained)),
		slog.Int("features", cohort.NumTraits),
		slog.Duration("duration", time.Since(start)),
	)

	return &Matrix{IDs: ids, Data: data}, report, nil
}

// normalizeColumn produces one standardized feature column: log
// transform, confound regression, then inverse-normal transform.
func (n *Normalizer) normalizeColumn(subjects []cohort.Subject, desc cohort.TraitDescriptor, age []float64) ([]float64, error) {
	y := make([]float64, len(subjects))
	for i, s := range subjects {
		v := s.Value(desc.ID)
		if v <= 0 {
			return nil, &Error{
				Kind:    KindDegenerateColumn,
				Trait:   desc.ID,
				Message: "non-positive value survived cleaning; log transform undefined",
			}
		}
		y[i] = math.Log(v)
	}

	predictors := [][]float64{age}
	if desc.AssayDependent {
		assays := make([]string, len(subjects))
		for i, s := range subjects {
			assays[i] = s.Assays[desc.ID]
		}
		// Assay method enters the model only when more than one level
		// is observed for this trait.
		predictors = append(predictors, dummyColumns(assays)...)
	}

	if len(subjects) <= len(predictors)+1 {
		return nil, &Error{
			Kind:    KindInsufficientData,
			Trait:   desc.ID,
			Message: "fewer subjects than regression parameters",
		}
	}

	resid, err := residualize(y, predictors...)
	if err != nil {
		return nil, &Error{
			Kind:    KindInsufficientData,
			Trait:   desc.ID,
			Message: "confound regression failed",
			Cause:   err,
		}
	}

	if isConstant(resid) {
		return nil, &Error{
			Kind:    KindDegenerateColumn,
			Trait:   desc.ID,
			Message: "residual column has zero variance",
		}
	}

	return inverseNormal(resid), nil
}
