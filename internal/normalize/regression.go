package normalize

import (
	"fmt"
	"sort"

	"gonum.org/v1/gonum/mat"
)

// residualize fits y = Xb by ordinary least squares and returns the
// residuals y - Xb. The design matrix is an intercept column followed
// by the given predictor columns.
func residualize(y []float64, predictors ...[]float64) ([]float64, error) {
	n := len(y)
	p := 1 + len(predictors)

	x := mat.NewDense(n, p, nil)
	for i := 0; i < n; i++ {
		x.Set(i, 0, 1)
	}
	for j, col := range predictors {
		if len(col) != n {
			return nil, fmt.Errorf("predictor %d has %d rows, want %d", j, len(col), n)
		}
		x.SetCol(j+1, col)
	}

	var qr mat.QR
	qr.Factorize(x)

	var beta mat.Dense
	if err := qr.SolveTo(&beta, false, mat.NewVecDense(n, y)); err != nil {
		return nil, fmt.Errorf("least squares solve: %w", err)
	}

	var fitted mat.Dense
	fitted.Mul(x, &beta)

	resid := make([]float64, n)
	for i := 0; i < n; i++ {
		resid[i] = y[i] - fitted.At(i, 0)
	}
	return resid, nil
}

// dummyColumns encodes a categorical confound as 0/1 indicator columns,
// one per non-baseline level. Levels are sorted so the encoding is
// deterministic regardless of input order. Returns nil when fewer than
// two levels are observed.
func dummyColumns(categories []string) [][]float64 {
	levelSet := make(map[string]struct{})
	for _, c := range categories {
		levelSet[c] = struct{}{}
	}
	if len(levelSet) < 2 {
		return nil
	}

	levels := make([]string, 0, len(levelSet))
	for l := range levelSet {
		levels = append(levels, l)
	}
	sort.Strings(levels)

	// First sorted level is the baseline.
	cols := make([][]float64, len(levels)-1)
	for j, level := range levels[1:] {
		col := make([]float64, len(categories))
		for i, c := range categories {
			if c == level {
				col[i] = 1
			}
		}
		cols[j] = col
	}
	return cols
}
