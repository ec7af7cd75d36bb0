package normalize

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResidualizeRecoversLinearTrend(t *testing.T) {
	// y is exactly linear in age, so residuals must vanish.
	age := []float64{20, 25, 30, 35, 40, 45}
	y := make([]float64, len(age))
	for i, a := range age {
		y[i] = 2 + 0.3*a
	}

	resid, err := residualize(y, age)
	require.NoError(t, err)
	for _, r := range resid {
		assert.InDelta(t, 0, r, 1e-9)
	}
}

func TestResidualizeRemovesCategoryShift(t *testing.T) {
	// Two assay methods with a constant offset between them; after
	// adjustment the category effect is gone.
	age := []float64{20, 30, 40, 20, 30, 40}
	assays := []string{"A", "A", "A", "B", "B", "B"}
	y := []float64{1.0, 1.1, 1.2, 3.0, 3.1, 3.2}

	dummies := dummyColumns(assays)
	require.Len(t, dummies, 1)

	resid, err := residualize(y, append([][]float64{age}, dummies...)...)
	require.NoError(t, err)
	for _, r := range resid {
		assert.InDelta(t, 0, r, 1e-9)
	}
}

func TestResidualizeCentersResiduals(t *testing.T) {
	age := []float64{21, 33, 28, 45, 39, 26, 31}
	y := []float64{1.2, 0.7, 2.9, 1.1, 0.4, 2.0, 1.6}

	resid, err := residualize(y, age)
	require.NoError(t, err)

	sum := 0.0
	for _, r := range resid {
		sum += r
	}
	// Intercept in the model guarantees mean-zero residuals.
	assert.InDelta(t, 0, sum/float64(len(resid)), 1e-9)
}

func TestDummyColumns(t *testing.T) {
	t.Run("single level yields no columns", func(t *testing.T) {
		assert.Nil(t, dummyColumns([]string{"RIA", "RIA", "RIA"}))
	})

	t.Run("levels encode deterministically regardless of order", func(t *testing.T) {
		a := dummyColumns([]string{"LCMS", "RIA", "RIA"})
		b := dummyColumns([]string{"RIA", "RIA", "LCMS"})
		require.Len(t, a, 1)
		require.Len(t, b, 1)
		// Sorted levels make LCMS the baseline in both encodings.
		assert.Equal(t, []float64{0, 1, 1}, a[0])
		assert.Equal(t, []float64{1, 1, 0}, b[0])
	})

	t.Run("three levels yield two columns", func(t *testing.T) {
		cols := dummyColumns([]string{"A", "B", "C", "A"})
		require.Len(t, cols, 2)
	})
}
