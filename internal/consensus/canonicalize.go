package consensus

import (
	"fmt"
	"log/slog"

	"gonum.org/v1/gonum/mat"

	"subtyper/internal/cluster"
	"subtyper/internal/cohort"
)

// Canonicalization maps one partition's opaque group indices to labels.
type Canonicalization struct {
	// ByGroup maps group index to label; every label appears once.
	ByGroup [cluster.DefaultK]Label
	// Centroids holds the mean feature vector per group.
	Centroids [cluster.DefaultK][cohort.NumTraits]float64
	// Collision is set when one group maximized both scores and the
	// metabolic assignment took priority.
	Collision bool
}

// LabelOf returns the subject's label under this canonicalization.
func (c Canonicalization) LabelOf(p cluster.Partition, row int) Label {
	return c.ByGroup[p.Assignments[row]]
}

// Canonicalize assigns each group of a 3-group partition a subtype
// label. The group with the highest metabolic score (BMI + Ins0 + Glu0
// centroid components) is Metabolic; the highest reproductive score
// (SHBG + LH + FSH) among the rest is Reproductive; the remaining group
// is Indeterminate by elimination.
//
// When one group maximizes both scores the metabolic assignment wins
// and Reproductive falls to the best of the remaining two groups; the
// collision is recorded and logged, never silently resolved. Score ties
// between distinct groups break toward the lower group index.
func Canonicalize(p cluster.Partition, features *mat.Dense, logger *slog.Logger) (Canonicalization, error) {
	if logger == nil {
		logger = slog.Default()
	}
	n, _ := features.Dims()
	if p.K != cluster.DefaultK {
		return Canonicalization{}, fmt.Errorf("canonicalize: partition has %d groups, want %d", p.K, cluster.DefaultK)
	}
	if err := p.Validate(n); err != nil {
		return Canonicalization{}, fmt.Errorf("canonicalize: %w", err)
	}

	var out Canonicalization
	counts := [cluster.DefaultK]int{}
	for row, g := range p.Assignments {
		counts[g]++
		rv := features.RawRowView(row)
		for j := 0; j < cohort.NumTraits; j++ {
			out.Centroids[g][j] += rv[j]
		}
	}
	for g := 0; g < cluster.DefaultK; g++ {
		for j := 0; j < cohort.NumTraits; j++ {
			out.Centroids[g][j] /= float64(counts[g])
		}
	}

	metabolicMax := argmaxScore(out.Centroids, metabolicScore, nil)
	reproductiveMax := argmaxScore(out.Centroids, reproductiveScore, nil)

	if metabolicMax == reproductiveMax {
		out.Collision = true
		logger.Warn("label collision: one group maximizes both scores; metabolic wins",
			slog.Int("group", metabolicMax),
			slog.Float64("metabolic_score", metabolicScore(out.Centroids[metabolicMax])),
			slog.Float64("reproductive_score", reproductiveScore(out.Centroids[metabolicMax])),
		)
		reproductiveMax = argmaxScore(out.Centroids, reproductiveScore, func(g int) bool {
			return g != metabolicMax
		})
	}

	for g := 0; g < cluster.DefaultK; g++ {
		switch g {
		case metabolicMax:
			out.ByGroup[g] = Metabolic
		case reproductiveMax:
			out.ByGroup[g] = Reproductive
		default:
			out.ByGroup[g] = Indeterminate
		}
	}

	return out, nil
}

// metabolicScore sums the BMI, insulin, and glucose centroid
// components.
func metabolicScore(centroid [cohort.NumTraits]float64) float64 {
	return centroid[cohort.BMI] + centroid[cohort.Ins0] + centroid[cohort.Glu0]
}

// reproductiveScore sums the SHBG, LH, and FSH centroid components.
func reproductiveScore(centroid [cohort.NumTraits]float64) float64 {
	return centroid[cohort.SHBG] + centroid[cohort.LH] + centroid[cohort.FSH]
}

// argmaxScore returns the eligible group with the highest score, lowest
// index on ties. A nil eligible function admits every group.
func argmaxScore(centroids [cluster.DefaultK][cohort.NumTraits]float64, score func([cohort.NumTraits]float64) float64, eligible func(int) bool) int {
	best := -1
	bestScore := 0.0
	for g := 0; g < cluster.DefaultK; g++ {
		if eligible != nil && !eligible(g) {
			continue
		}
		s := score(centroids[g])
		if best == -1 || s > bestScore {
			best = g
			bestScore = s
		}
	}
	return best
}
