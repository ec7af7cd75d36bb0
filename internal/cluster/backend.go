// Package cluster defines the partitioning contract the pipeline is
// written against, plus three conforming implementations. A backend
// returns opaque group indices with no semantic meaning; callers must
// canonicalize on every call and never assume index stability.
package cluster

import (
	"context"
	"fmt"

	"gonum.org/v1/gonum/mat"
)

// DefaultK is the number of groups every pipeline run requests.
const DefaultK = 3

// Partition assigns every matrix row to exactly one of K opaque groups.
type Partition struct {
	Assignments []int
	K           int
}

// Groups returns the row indices belonging to each group.
func (p Partition) Groups() [][]int {
	groups := make([][]int, p.K)
	for i, g := range p.Assignments {
		groups[g] = append(groups[g], i)
	}
	return groups
}

// Validate checks that the partition covers n rows, uses only indices
// in [0, K), and has no empty group.
func (p Partition) Validate(n int) error {
	if len(p.Assignments) != n {
		return fmt.Errorf("partition covers %d rows, want %d", len(p.Assignments), n)
	}
	counts := make([]int, p.K)
	for i, g := range p.Assignments {
		if g < 0 || g >= p.K {
			return fmt.Errorf("row %d assigned to group %d, want [0,%d)", i, g, p.K)
		}
		counts[g]++
	}
	for g, c := range counts {
		if c == 0 {
			return fmt.Errorf("group %d is empty", g)
		}
	}
	return nil
}

// Backend produces an unlabeled partition of the feature matrix rows.
// Implementations must be deterministic for a given configuration and
// seed; the matrix is read-only and shared across concurrent runs.
type Backend interface {
	Name() string
	Partition(ctx context.Context, data *mat.Dense, k int) (Partition, error)
}

// manhattan returns the L1 distance between two rows.
func manhattan(a, b []float64) float64 {
	d := 0.0
	for i := range a {
		diff := a[i] - b[i]
		if diff < 0 {
			diff = -diff
		}
		d += diff
	}
	return d
}

// sqEuclidean returns the squared Euclidean distance between two rows.
func sqEuclidean(a, b []float64) float64 {
	d := 0.0
	for i := range a {
		diff := a[i] - b[i]
		d += diff * diff
	}
	return d
}

// relabelByFirstRow renumbers groups by the order their first member
// row appears, making group indices deterministic without attaching
// any meaning to them.
func relabelByFirstRow(assignments []int, k int) []int {
	next := 0
	remap := make(map[int]int, k)
	out := make([]int, len(assignments))
	for i, g := range assignments {
		m, ok := remap[g]
		if !ok {
			m = next
			remap[g] = m
			next++
		}
		out[i] = m
	}
	return out
}
