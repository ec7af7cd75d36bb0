package normalize

import (
	"sort"

	"gonum.org/v1/gonum/stat/distuv"
)

// averageRanks returns 1-based ranks, with tied values sharing the
// average of the rank positions they occupy.
func averageRanks(x []float64) []float64 {
	n := len(x)
	order := make([]int, n)
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool {
		return x[order[a]] < x[order[b]]
	})

	ranks := make([]float64, n)
	for i := 0; i < n; {
		j := i
		for j+1 < n && x[order[j+1]] == x[order[i]] {
			j++
		}
		// Positions i..j (0-based) hold equal values; assign the
		// average of ranks i+1..j+1.
		avg := float64(i+j+2) / 2
		for k := i; k <= j; k++ {
			ranks[order[k]] = avg
		}
		i = j + 1
	}
	return ranks
}

// inverseNormal maps each value to the standard normal quantile of
// (rank - 0.5) / n. The output is a permutation of a fixed quantile
// grid, so the column's empirical distribution is standard normal by
// construction.
func inverseNormal(x []float64) []float64 {
	n := float64(len(x))
	ranks := averageRanks(x)
	out := make([]float64, len(x))
	for i, r := range ranks {
		out[i] = distuv.UnitNormal.Quantile((r - 0.5) / n)
	}
	return out
}

// isConstant reports whether the column has no meaningful spread. The
// tolerance absorbs float noise left by the regression solve.
func isConstant(x []float64) bool {
	if len(x) == 0 {
		return true
	}
	lo, hi := x[0], x[0]
	for _, v := range x[1:] {
		if v < lo {
			lo = v
		}
		if v > hi {
			hi = v
		}
	}
	return hi-lo < 1e-10
}
