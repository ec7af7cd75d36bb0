// Package consensus turns the arbitrary group indices of each
// clustering run into clinical subtype labels and reconciles the three
// labeled partitions into one per-subject decision.
package consensus

import (
	"subtyper/internal/cohort"
)

// Label is the clinical subtype assigned to a cluster group.
type Label int

const (
	Metabolic Label = iota
	Reproductive
	Indeterminate

	// NumLabels is the number of subtype labels.
	NumLabels = 3
)

// String returns the display name of the label.
func (l Label) String() string {
	switch l {
	case Metabolic:
		return "Metabolic"
	case Reproductive:
		return "Reproductive"
	case Indeterminate:
		return "Indeterminate"
	default:
		return "unknown"
	}
}

// BackendID identifies one of the three clustering runs by position.
type BackendID int

const (
	BackendHierarchical BackendID = iota
	BackendKMeans
	BackendGMM

	// NumBackends is the number of clustering runs feeding consensus.
	NumBackends = 3
)

// String returns the backend's display name.
func (b BackendID) String() string {
	switch b {
	case BackendHierarchical:
		return "hierarchical"
	case BackendKMeans:
		return "kmeans"
	case BackendGMM:
		return "gmm"
	default:
		return "unknown"
	}
}

// Record is the terminal per-subject output: the standardized features,
// one label per backend, and both consensus decisions. A false OK flag
// means "no consensus", which is a valid outcome, not a failure.
type Record struct {
	SubjectID  string
	Features   [cohort.NumTraits]float64
	Labels     [NumBackends]Label
	Majority   Label
	MajorityOK bool
	Strict     Label
	StrictOK   bool
}
