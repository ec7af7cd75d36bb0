package cluster

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"time"

	"gonum.org/v1/gonum/mat"
)

// Linkage selects the agglomeration rule for hierarchical clustering.
type Linkage string

const (
	LinkageAverage  Linkage = "average"
	LinkageComplete Linkage = "complete"
	LinkageWard     Linkage = "ward"
)

// IsValid reports whether the linkage is a known agglomeration rule.
func (l Linkage) IsValid() bool {
	switch l {
	case LinkageAverage, LinkageComplete, LinkageWard:
		return true
	}
	return false
}

// Hierarchical is the connectivity-based backend: agglomerative
// clustering over Manhattan distances using Lance-Williams updates.
// It is fully deterministic and takes no seed.
type Hierarchical struct {
	linkage Linkage
	logger  *slog.Logger
}

// NewHierarchical creates a hierarchical backend with the given
// agglomeration rule.
func NewHierarchical(linkage Linkage, logger *slog.Logger) *Hierarchical {
	if logger == nil {
		logger = slog.Default()
	}
	return &Hierarchical{linkage: linkage, logger: logger}
}

// Name implements Backend.
func (h *Hierarchical) Name() string {
	return "hierarchical"
}

// Partition implements Backend. Merging starts from singletons and
// stops when k clusters remain; ties on merge distance break toward the
// lowest pair of cluster indices.
func (h *Hierarchical) Partition(ctx context.Context, data *mat.Dense, k int) (Partition, error) {
	n, _ := data.Dims()
	if n < k {
		return Partition{}, fmt.Errorf("hierarchical: %d rows cannot form %d groups", n, k)
	}
	if !h.linkage.IsValid() {
		return Partition{}, fmt.Errorf("hierarchical: unknown linkage %q", h.linkage)
	}

	start := time.Now()

	// Pairwise Manhattan distance matrix between active clusters.
	dist := make([][]float64, n)
	for i := range dist {
		dist[i] = make([]float64, n)
	}
	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			d := manhattan(data.RawRowView(i), data.RawRowView(j))
			dist[i][j] = d
			dist[j][i] = d
		}
	}

	active := make([]bool, n)
	size := make([]int, n)
	member := make([]int, n) // row -> cluster index
	for i := 0; i < n; i++ {
		active[i] = true
		size[i] = 1
		member[i] = i
	}

	for remaining := n; remaining > k; remaining-- {
		if err := ctx.Err(); err != nil {
			return Partition{}, err
		}

		// Closest active pair, lowest indices on ties.
		bi, bj, best := -1, -1, math.Inf(1)
		for i := 0; i < n; i++ {
			if !active[i] {
				continue
			}
			for j := i + 1; j < n; j++ {
				if !active[j] {
					continue
				}
				if dist[i][j] < best {
					best = dist[i][j]
					bi, bj = i, j
				}
			}
		}

		// Merge bj into bi; update distances by Lance-Williams.
		for m := 0; m < n; m++ {
			if !active[m] || m == bi || m == bj {
				continue
			}
			d := h.mergedDistance(dist[bi][m], dist[bj][m], dist[bi][bj], size[bi], size[bj], size[m])
			dist[bi][m] = d
			dist[m][bi] = d
		}
		size[bi] += size[bj]
		active[bj] = false
		for r := range member {
			if member[r] == bj {
				member[r] = bi
			}
		}
	}

	assignments := relabelByFirstRow(member, k)
	h.logger.Debug("hierarchical clustering completed",
		slog.String("linkage", string(h.linkage)),
		slog.Int("rows", n),
		slog.Duration("duration", time.Since(start)),
	)

	return Partition{Assignments: assignments, K: k}, nil
}

// mergedDistance applies the Lance-Williams update for the distance
// between cluster m and the merge of clusters i and j.
func (h *Hierarchical) mergedDistance(dim, djm, dij float64, ni, nj, nm int) float64 {
	switch h.linkage {
	case LinkageComplete:
		return math.Max(dim, djm)
	case LinkageWard:
		sum := float64(ni + nj + nm)
		return (float64(ni+nm)*dim + float64(nj+nm)*djm - float64(nm)*dij) / sum
	default: // average
		return (float64(ni)*dim + float64(nj)*djm) / float64(ni+nj)
	}
}
