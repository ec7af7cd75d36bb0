package cohort

import (
	"log/slog"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testSubject(id string, age float64, values ...float64) Subject {
	s := Subject{ID: id, Age: age}
	for i := range s.Values {
		s.Values[i] = 1
	}
	for i, v := range values {
		s.Values[i] = v
	}
	return s
}

func TestSubjectComplete(t *testing.T) {
	tests := []struct {
		name     string
		subject  Subject
		complete bool
	}{
		{
			name:     "all fields present",
			subject:  testSubject("S1", 30),
			complete: true,
		},
		{
			name:     "missing age",
			subject:  testSubject("S1", math.NaN()),
			complete: false,
		},
		{
			name:     "missing BMI",
			subject:  testSubject("S1", 30, math.NaN()),
			complete: false,
		},
		{
			name:     "missing glucose",
			subject:  testSubject("S1", 30, 22, 1, 1, 1, 1, math.NaN()),
			complete: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.complete, tt.subject.Complete())
		})
	}
}

func TestCleanerDeduplicate(t *testing.T) {
	s1 := testSubject("S1", 30, 22, 0.5)
	s2 := testSubject("S2", 41, 27, 0.9)
	dup := s1
	// Same measurements with a different assay method is still a
	// duplicate; the key covers ID, age, and trait values only.
	dup.Assays[T] = "RIA"

	cleaner := NewCleaner(nil, slog.Default())
	retained, report := cleaner.Clean([]Subject{s1, s2, dup})

	require.Len(t, retained, 2)
	assert.Equal(t, "S1", retained[0].ID)
	assert.Equal(t, "S2", retained[1].ID)
	assert.Equal(t, 1, report.Duplicates)
	assert.Equal(t, 3, report.Input)
	assert.Equal(t, 2, report.Retained)
}

func TestCleanerIncompleteRemoval(t *testing.T) {
	complete := testSubject("S1", 30)
	missingTrait := testSubject("S2", 35, 24, math.NaN())

	cleaner := NewCleaner(nil, slog.Default())
	retained, report := cleaner.Clean([]Subject{complete, missingTrait})

	require.Len(t, retained, 1)
	assert.Equal(t, "S1", retained[0].ID)
	assert.Equal(t, 1, report.Incomplete)
	assert.Equal(t, 0, report.RemovedByOutliers)
}

func TestCleanerOutlierNulling(t *testing.T) {
	t.Run("glucose above threshold drops subject at second filter", func(t *testing.T) {
		s := testSubject("S1", 30)
		s.Values[Glu0] = 130 // above the 126 ceiling

		cleaner := NewCleaner(DefaultOutlierRules(), slog.Default())
		retained, report := cleaner.Clean([]Subject{s})

		// The value is nulled first, then the subject is dropped by
		// the re-applied completeness filter; no imputation.
		assert.Empty(t, retained)
		assert.Equal(t, 0, report.Incomplete)
		assert.Equal(t, 1, report.OutlierValues[Glu0])
		assert.Equal(t, 1, report.RemovedByOutliers)
		assert.Equal(t, 0, report.Retained)
	})

	t.Run("glucose at threshold is retained", func(t *testing.T) {
		s := testSubject("S1", 30)
		s.Values[Glu0] = 126

		cleaner := NewCleaner(DefaultOutlierRules(), slog.Default())
		retained, report := cleaner.Clean([]Subject{s})

		require.Len(t, retained, 1)
		assert.Equal(t, 0, report.TotalOutlierValues())
	})

	t.Run("outlier removal counted separately from incompleteness", func(t *testing.T) {
		flagged := testSubject("S1", 30)
		flagged.Values[Glu0] = 200
		incomplete := testSubject("S2", 35, math.NaN())
		ok := testSubject("S3", 40)

		cleaner := NewCleaner(DefaultOutlierRules(), slog.Default())
		retained, report := cleaner.Clean([]Subject{flagged, incomplete, ok})

		require.Len(t, retained, 1)
		assert.Equal(t, "S3", retained[0].ID)
		assert.Equal(t, 1, report.Incomplete)
		assert.Equal(t, 1, report.RemovedByOutliers)
	})
}

func TestParseTrait(t *testing.T) {
	id, err := ParseTrait("glu0")
	require.NoError(t, err)
	assert.Equal(t, Glu0, id)

	_, err = ParseTrait("cholesterol")
	assert.Error(t, err)
}

func TestTraitDescriptors(t *testing.T) {
	assert.False(t, Traits[BMI].AssayDependent)
	for _, d := range Traits[1:] {
		assert.True(t, d.AssayDependent, d.Name)
	}
	for i, d := range Traits {
		assert.Equal(t, TraitID(i), d.ID)
		assert.Equal(t, d.Name, d.ID.String())
	}
}
