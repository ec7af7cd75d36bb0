package cluster

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"time"

	"gonum.org/v1/gonum/mat"
)

// varianceFloor keeps component variances away from zero so the EM
// log-likelihood stays finite on tightly clustered data.
const varianceFloor = 1e-6

// GMM is the distribution-based backend: a diagonal-covariance Gaussian
// mixture fit by expectation-maximization, initialized from a seeded
// k-means run. Identical input and seed yield an identical partition.
type GMM struct {
	seed    int64
	maxIter int
	tol     float64
	logger  *slog.Logger
}

// NewGMM creates a seeded Gaussian-mixture backend.
func NewGMM(seed int64, maxIter int, tol float64, logger *slog.Logger) *GMM {
	if logger == nil {
		logger = slog.Default()
	}
	if maxIter < 1 {
		maxIter = 200
	}
	if tol <= 0 {
		tol = 1e-6
	}
	return &GMM{seed: seed, maxIter: maxIter, tol: tol, logger: logger}
}

// Name implements Backend.
func (g *GMM) Name() string {
	return "gmm"
}

// Partition implements Backend. Rows are assigned to the component with
// the highest posterior responsibility after EM converges.
func (g *GMM) Partition(ctx context.Context, data *mat.Dense, k int) (Partition, error) {
	n, dims := data.Dims()
	if n < k {
		return Partition{}, fmt.Errorf("gmm: %d rows cannot form %d groups", n, k)
	}

	start := time.Now()

	// Deterministic initialization from a single seeded k-means run.
	seeder := NewKMeans(g.seed, 1, 50, g.logger)
	seedPart, err := seeder.Partition(ctx, data, k)
	if err != nil {
		return Partition{}, fmt.Errorf("gmm: initialization: %w", err)
	}

	weights := make([]float64, k)
	means := make([][]float64, k)
	variances := make([][]float64, k)
	for c := 0; c < k; c++ {
		means[c] = make([]float64, dims)
		variances[c] = make([]float64, dims)
	}
	initMoments(data, seedPart.Assignments, weights, means, variances)

	resp := make([][]float64, n)
	for i := range resp {
		resp[i] = make([]float64, k)
	}

	prevLL := math.Inf(-1)
	for iter := 0; iter < g.maxIter; iter++ {
		if err := ctx.Err(); err != nil {
			return Partition{}, err
		}

		ll := g.eStep(data, weights, means, variances, resp)
		g.mStep(data, resp, weights, means, variances)

		if math.Abs(ll-prevLL) < g.tol {
			break
		}
		prevLL = ll
	}

	assignments := make([]int, n)
	for i := 0; i < n; i++ {
		best, bestResp := 0, resp[i][0]
		for c := 1; c < k; c++ {
			if resp[i][c] > bestResp {
				best, bestResp = c, resp[i][c]
			}
		}
		assignments[i] = best
	}

	g.logger.Debug("gmm clustering completed",
		slog.Int64("seed", g.seed),
		slog.Float64("log_likelihood", prevLL),
		slog.Duration("duration", time.Since(start)),
	)

	return Partition{Assignments: relabelByFirstRow(assignments, k), K: k}, nil
}

// initMoments computes per-component weight, mean, and variance from a
// hard initial assignment.
func initMoments(data *mat.Dense, assignments []int, weights []float64, means, variances [][]float64) {
	n, dims := data.Dims()
	k := len(weights)
	counts := make([]int, k)

	for i := 0; i < n; i++ {
		c := assignments[i]
		counts[c]++
		row := data.RawRowView(i)
		for j := 0; j < dims; j++ {
			means[c][j] += row[j]
		}
	}
	for c := 0; c < k; c++ {
		if counts[c] == 0 {
			counts[c] = 1
		}
		for j := 0; j < dims; j++ {
			means[c][j] /= float64(counts[c])
		}
		weights[c] = float64(counts[c]) / float64(n)
	}
	for i := 0; i < n; i++ {
		c := assignments[i]
		row := data.RawRowView(i)
		for j := 0; j < dims; j++ {
			d := row[j] - means[c][j]
			variances[c][j] += d * d
		}
	}
	for c := 0; c < k; c++ {
		for j := 0; j < dims; j++ {
			variances[c][j] = math.Max(variances[c][j]/float64(counts[c]), varianceFloor)
		}
	}
}

// eStep fills posterior responsibilities and returns the total
// log-likelihood, using log-sum-exp for stability.
func (g *GMM) eStep(data *mat.Dense, weights []float64, means, variances [][]float64, resp [][]float64) float64 {
	n, _ := data.Dims()
	k := len(weights)
	ll := 0.0

	logDensity := make([]float64, k)
	for i := 0; i < n; i++ {
		row := data.RawRowView(i)
		maxLog := math.Inf(-1)
		for c := 0; c < k; c++ {
			logDensity[c] = math.Log(weights[c]) + diagLogGaussian(row, means[c], variances[c])
			if logDensity[c] > maxLog {
				maxLog = logDensity[c]
			}
		}
		sum := 0.0
		for c := 0; c < k; c++ {
			sum += math.Exp(logDensity[c] - maxLog)
		}
		logSum := maxLog + math.Log(sum)
		ll += logSum
		for c := 0; c < k; c++ {
			resp[i][c] = math.Exp(logDensity[c] - logSum)
		}
	}
	return ll
}

// mStep re-estimates weights, means, and diagonal variances from the
// responsibilities.
func (g *GMM) mStep(data *mat.Dense, resp [][]float64, weights []float64, means, variances [][]float64) {
	n, dims := data.Dims()
	k := len(weights)

	for c := 0; c < k; c++ {
		total := 0.0
		for j := 0; j < dims; j++ {
			means[c][j] = 0
			variances[c][j] = 0
		}
		for i := 0; i < n; i++ {
			total += resp[i][c]
			row := data.RawRowView(i)
			for j := 0; j < dims; j++ {
				means[c][j] += resp[i][c] * row[j]
			}
		}
		if total == 0 {
			total = math.SmallestNonzeroFloat64
		}
		for j := 0; j < dims; j++ {
			means[c][j] /= total
		}
		for i := 0; i < n; i++ {
			row := data.RawRowView(i)
			for j := 0; j < dims; j++ {
				d := row[j] - means[c][j]
				variances[c][j] += resp[i][c] * d * d
			}
		}
		for j := 0; j < dims; j++ {
			variances[c][j] = math.Max(variances[c][j]/total, varianceFloor)
		}
		weights[c] = total / float64(n)
	}
}

// diagLogGaussian returns the log density of x under a diagonal
// Gaussian.
func diagLogGaussian(x, mean, variance []float64) float64 {
	const log2Pi = 1.8378770664093453
	ll := 0.0
	for j := range x {
		d := x[j] - mean[j]
		ll += -0.5 * (log2Pi + math.Log(variance[j]) + d*d/variance[j])
	}
	return ll
}
