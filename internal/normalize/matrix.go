package normalize

import (
	"gonum.org/v1/gonum/mat"

	"subtyper/internal/cohort"
)

// Matrix is the standardized feature matrix. Rows align with IDs; the
// eight columns follow cohort.Traits order. It is read-only once
// produced and safe to share across concurrent clustering runs.
type Matrix struct {
	IDs  []string
	Data *mat.Dense
}

// Len returns the number of subjects (rows).
func (m *Matrix) Len() int {
	return len(m.IDs)
}

// Row copies one subject's feature vector into a fixed-size array.
func (m *Matrix) Row(i int) [cohort.NumTraits]float64 {
	var out [cohort.NumTraits]float64
	copy(out[:], m.Data.RawRowView(i))
	return out
}

// Column returns a copy of one feature column.
func (m *Matrix) Column(t cohort.TraitID) []float64 {
	out := make([]float64, m.Len())
	mat.Col(out, int(t), m.Data)
	return out
}
