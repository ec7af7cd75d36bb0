package cluster

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"math/rand"
	"time"

	"gonum.org/v1/gonum/mat"
)

// KMeans is the centroid-based backend: Lloyd iterations with k-means++
// seeding, keeping the lowest-inertia result across restarts. Identical
// input and seed yield an identical partition.
type KMeans struct {
	seed     int64
	restarts int
	maxIter  int
	logger   *slog.Logger
}

// NewKMeans creates a seeded k-means backend.
func NewKMeans(seed int64, restarts, maxIter int, logger *slog.Logger) *KMeans {
	if logger == nil {
		logger = slog.Default()
	}
	if restarts < 1 {
		restarts = 1
	}
	if maxIter < 1 {
		maxIter = 100
	}
	return &KMeans{seed: seed, restarts: restarts, maxIter: maxIter, logger: logger}
}

// Name implements Backend.
func (km *KMeans) Name() string {
	return "kmeans"
}

// Partition implements Backend.
func (km *KMeans) Partition(ctx context.Context, data *mat.Dense, k int) (Partition, error) {
	n, _ := data.Dims()
	if n < k {
		return Partition{}, fmt.Errorf("kmeans: %d rows cannot form %d groups", n, k)
	}

	start := time.Now()
	rng := rand.New(rand.NewSource(km.seed))

	bestInertia := math.Inf(1)
	var bestAssignments []int

	for r := 0; r < km.restarts; r++ {
		if err := ctx.Err(); err != nil {
			return Partition{}, err
		}
		assignments, inertia := km.run(data, k, rng)
		if inertia < bestInertia {
			bestInertia = inertia
			bestAssignments = assignments
		}
	}

	km.logger.Debug("kmeans clustering completed",
		slog.Int64("seed", km.seed),
		slog.Int("restarts", km.restarts),
		slog.Float64("inertia", bestInertia),
		slog.Duration("duration", time.Since(start)),
	)

	return Partition{Assignments: relabelByFirstRow(bestAssignments, k), K: k}, nil
}

// run performs one seeded Lloyd run and returns assignments plus the
// within-cluster sum of squares.
func (km *KMeans) run(data *mat.Dense, k int, rng *rand.Rand) ([]int, float64) {
	n, dims := data.Dims()
	centroids := kmeansPlusPlusInit(data, k, rng)
	assignments := make([]int, n)

	for iter := 0; iter < km.maxIter; iter++ {
		changed := false
		for i := 0; i < n; i++ {
			best, bestDist := 0, math.Inf(1)
			for c := 0; c < k; c++ {
				d := sqEuclidean(data.RawRowView(i), centroids[c])
				if d < bestDist {
					best, bestDist = c, d
				}
			}
			if assignments[i] != best {
				assignments[i] = best
				changed = true
			}
		}

		counts := make([]int, k)
		sums := make([][]float64, k)
		for c := range sums {
			sums[c] = make([]float64, dims)
		}
		for i := 0; i < n; i++ {
			c := assignments[i]
			counts[c]++
			row := data.RawRowView(i)
			for j := range row {
				sums[c][j] += row[j]
			}
		}
		for c := 0; c < k; c++ {
			if counts[c] == 0 {
				// Reseed an emptied cluster with the row farthest from
				// its current centroid.
				far, farDist := 0, -1.0
				for i := 0; i < n; i++ {
					d := sqEuclidean(data.RawRowView(i), centroids[assignments[i]])
					if d > farDist {
						far, farDist = i, d
					}
				}
				copy(centroids[c], data.RawRowView(far))
				assignments[far] = c
				changed = true
				continue
			}
			for j := 0; j < dims; j++ {
				centroids[c][j] = sums[c][j] / float64(counts[c])
			}
		}

		if !changed && iter > 0 {
			break
		}
	}

	inertia := 0.0
	for i := 0; i < n; i++ {
		inertia += sqEuclidean(data.RawRowView(i), centroids[assignments[i]])
	}
	return assignments, inertia
}

// kmeansPlusPlusInit picks initial centroids proportional to squared
// distance from the nearest already-chosen centroid.
func kmeansPlusPlusInit(data *mat.Dense, k int, rng *rand.Rand) [][]float64 {
	n, dims := data.Dims()
	centroids := make([][]float64, 0, k)

	first := make([]float64, dims)
	copy(first, data.RawRowView(rng.Intn(n)))
	centroids = append(centroids, first)

	minDist := make([]float64, n)
	for len(centroids) < k {
		total := 0.0
		for i := 0; i < n; i++ {
			d := math.Inf(1)
			for _, c := range centroids {
				if dc := sqEuclidean(data.RawRowView(i), c); dc < d {
					d = dc
				}
			}
			minDist[i] = d
			total += d
		}

		next := n - 1
		if total > 0 {
			target := rng.Float64() * total
			acc := 0.0
			for i := 0; i < n; i++ {
				acc += minDist[i]
				if acc >= target {
					next = i
					break
				}
			}
		} else {
			next = rng.Intn(n)
		}

		c := make([]float64, dims)
		copy(c, data.RawRowView(next))
		centroids = append(centroids, c)
	}
	return centroids
}
