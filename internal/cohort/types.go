package cohort

import (
	"fmt"
	"math"
	"strings"
)

// TraitID identifies one of the eight standardized clustering features.
type TraitID int

const (
	// BMI is body-mass index, the only feature without an assay method.
	BMI TraitID = iota
	// T is total testosterone.
	T
	// SHBG is sex hormone-binding globulin.
	SHBG
	// DHEAS is dehydroepiandrosterone sulfate.
	DHEAS
	// Ins0 is fasting insulin.
	Ins0
	// Glu0 is fasting glucose.
	Glu0
	// LH is luteinizing hormone.
	LH
	// FSH is follicle-stimulating hormone.
	FSH

	// NumTraits is the number of clustering features (BMI + 7 traits).
	NumTraits = 8
)

// String returns the canonical short name of the trait.
func (t TraitID) String() string {
	switch t {
	case BMI:
		return "BMI"
	case T:
		return "T"
	case SHBG:
		return "SHBG"
	case DHEAS:
		return "DHEAS"
	case Ins0:
		return "Ins0"
	case Glu0:
		return "Glu0"
	case LH:
		return "LH"
	case FSH:
		return "FSH"
	default:
		return "unknown"
	}
}

// ParseTrait maps a trait name (case-insensitive) to its TraitID.
func ParseTrait(name string) (TraitID, error) {
	for _, d := range Traits {
		if strings.EqualFold(d.Name, name) {
			return d.ID, nil
		}
	}
	return 0, fmt.Errorf("unknown trait %q", name)
}

// TraitDescriptor describes one clustering feature at compile time.
// AssayDependent marks traits whose measurement carries a lab-method
// category used as a regression confound.
type TraitDescriptor struct {
	ID             TraitID
	Name           string
	AssayDependent bool
}

// Traits is the fixed feature set, in column order. Iterate this table
// instead of building column names at runtime.
var Traits = [NumTraits]TraitDescriptor{
	{ID: BMI, Name: "BMI", AssayDependent: false},
	{ID: T, Name: "T", AssayDependent: true},
	{ID: SHBG, Name: "SHBG", AssayDependent: true},
	{ID: DHEAS, Name: "DHEAS", AssayDependent: true},
	{ID: Ins0, Name: "Ins0", AssayDependent: true},
	{ID: Glu0, Name: "Glu0", AssayDependent: true},
	{ID: LH, Name: "LH", AssayDependent: true},
	{ID: FSH, Name: "FSH", AssayDependent: true},
}

// Subject is one cohort member's raw measurements. Missing values are
// represented as NaN; assay methods are free-form category strings and
// empty for BMI.
type Subject struct {
	ID     string
	Age    float64
	Values [NumTraits]float64
	Assays [NumTraits]string
}

// Value returns the raw measurement for one trait.
func (s Subject) Value(t TraitID) float64 {
	return s.Values[t]
}

// Complete reports whether age and all eight trait values are present.
func (s Subject) Complete() bool {
	if math.IsNaN(s.Age) {
		return false
	}
	for _, v := range s.Values {
		if math.IsNaN(v) {
			return false
		}
	}
	return true
}

// fingerprint is the duplicate-detection key: ID, age, and all eight
// trait values. Assay methods are deliberately excluded.
func (s Subject) fingerprint() string {
	var b strings.Builder
	b.WriteString(s.ID)
	fmt.Fprintf(&b, "|%g", s.Age)
	for _, v := range s.Values {
		fmt.Fprintf(&b, "|%g", v)
	}
	return b.String()
}
