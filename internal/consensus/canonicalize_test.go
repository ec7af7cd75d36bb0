package consensus

import (
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gonum.org/v1/gonum/mat"

	"subtyper/internal/cluster"
	"subtyper/internal/cohort"
)

// featureMatrix builds a matrix whose three rows ARE the centroids: one
// subject per group makes centroid math transparent.
func featureMatrix(rows ...[cohort.NumTraits]float64) *mat.Dense {
	data := mat.NewDense(len(rows), cohort.NumTraits, nil)
	for i, r := range rows {
		data.SetRow(i, r[:])
	}
	return data
}

// groupRow builds one row with the given metabolic components (BMI,
// Ins0, Glu0) and reproductive components (SHBG, LH, FSH) all set to
// the respective value.
func groupRow(metabolic, reproductive float64) [cohort.NumTraits]float64 {
	var r [cohort.NumTraits]float64
	r[cohort.BMI], r[cohort.Ins0], r[cohort.Glu0] = metabolic, metabolic, metabolic
	r[cohort.SHBG], r[cohort.LH], r[cohort.FSH] = reproductive, reproductive, reproductive
	return r
}

func TestCanonicalizeAssignsAllThreeLabels(t *testing.T) {
	// Group 0: high metabolic; group 1: high reproductive; group 2:
	// neither.
	features := featureMatrix(
		groupRow(2.0, -1.0),
		groupRow(-1.0, 2.0),
		groupRow(-0.5, -0.5),
	)
	p := cluster.Partition{Assignments: []int{0, 1, 2}, K: 3}

	canon, err := Canonicalize(p, features, slog.Default())
	require.NoError(t, err)

	assert.Equal(t, Metabolic, canon.ByGroup[0])
	assert.Equal(t, Reproductive, canon.ByGroup[1])
	assert.Equal(t, Indeterminate, canon.ByGroup[2])
	assert.False(t, canon.Collision)

	// Each label appears exactly once.
	seen := map[Label]int{}
	for _, l := range canon.ByGroup {
		seen[l]++
	}
	assert.Equal(t, map[Label]int{Metabolic: 1, Reproductive: 1, Indeterminate: 1}, seen)
}

func TestCanonicalizeGroupOrderIrrelevant(t *testing.T) {
	features := featureMatrix(
		groupRow(-0.5, -0.5),
		groupRow(2.0, -1.0),
		groupRow(-1.0, 2.0),
	)
	p := cluster.Partition{Assignments: []int{0, 1, 2}, K: 3}

	canon, err := Canonicalize(p, features, slog.Default())
	require.NoError(t, err)
	assert.Equal(t, Indeterminate, canon.ByGroup[0])
	assert.Equal(t, Metabolic, canon.ByGroup[1])
	assert.Equal(t, Reproductive, canon.ByGroup[2])
}

func TestCanonicalizeCentroidsAreGroupMeans(t *testing.T) {
	features := featureMatrix(
		groupRow(1.0, 0),
		groupRow(3.0, 0),
		groupRow(-1.0, 2.0),
		groupRow(-0.5, -0.5),
	)
	// Rows 0 and 1 share a group; centroid is their mean.
	p := cluster.Partition{Assignments: []int{0, 0, 1, 2}, K: 3}

	canon, err := Canonicalize(p, features, slog.Default())
	require.NoError(t, err)
	assert.InDelta(t, 2.0, canon.Centroids[0][cohort.BMI], 1e-12)
	assert.InDelta(t, 2.0, canon.Centroids[0][cohort.Ins0], 1e-12)
}

func TestCanonicalizeCollision(t *testing.T) {
	// Group 0 maximizes both scores: metabolic assignment wins, and
	// Reproductive falls to the best remaining group (group 2).
	features := featureMatrix(
		groupRow(3.0, 3.0),
		groupRow(-1.0, 0.5),
		groupRow(-0.5, 1.0),
	)
	p := cluster.Partition{Assignments: []int{0, 1, 2}, K: 3}

	canon, err := Canonicalize(p, features, slog.Default())
	require.NoError(t, err)

	assert.True(t, canon.Collision)
	assert.Equal(t, Metabolic, canon.ByGroup[0])
	assert.Equal(t, Indeterminate, canon.ByGroup[1])
	assert.Equal(t, Reproductive, canon.ByGroup[2])
}

func TestCanonicalizeRejectsDegeneratePartitions(t *testing.T) {
	features := featureMatrix(
		groupRow(1, 0),
		groupRow(0, 1),
		groupRow(0, 0),
	)

	t.Run("empty group", func(t *testing.T) {
		p := cluster.Partition{Assignments: []int{0, 0, 1}, K: 3}
		_, err := Canonicalize(p, features, slog.Default())
		assert.Error(t, err)
	})

	t.Run("wrong k", func(t *testing.T) {
		p := cluster.Partition{Assignments: []int{0, 1, 0}, K: 2}
		_, err := Canonicalize(p, features, slog.Default())
		assert.Error(t, err)
	})
}

func TestCanonicalizeLabelOf(t *testing.T) {
	features := featureMatrix(
		groupRow(2.0, -1.0),
		groupRow(-1.0, 2.0),
		groupRow(-0.5, -0.5),
	)
	p := cluster.Partition{Assignments: []int{2, 0, 1}, K: 3}

	canon, err := Canonicalize(p, features, slog.Default())
	require.NoError(t, err)

	assert.Equal(t, canon.ByGroup[2], canon.LabelOf(p, 0))
	assert.Equal(t, canon.ByGroup[0], canon.LabelOf(p, 1))
	assert.Equal(t, canon.ByGroup[1], canon.LabelOf(p, 2))
}
