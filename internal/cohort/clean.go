package cohort

import (
	"log/slog"
	"math"
)

// OutlierRule nulls a single trait value when it exceeds a clinical
// ceiling. The value is treated as missing afterwards, never clipped.
type OutlierRule struct {
	Trait TraitID
	Max   float64
}

// DefaultOutlierRules returns the standard rule set: fasting glucose
// above the diabetic threshold is physiologically implausible for this
// cohort and gets nulled.
func DefaultOutlierRules() []OutlierRule {
	return []OutlierRule{
		{Trait: Glu0, Max: 126},
	}
}

// CleanReport holds the audit counts produced by each cleaning stage.
// Counts are explicit return values, never shared mutable state.
type CleanReport struct {
	Input             int              `json:"input"`
	Duplicates        int              `json:"duplicates"`
	Incomplete        int              `json:"incomplete"`
	OutlierValues     map[TraitID]int  `json:"outlier_values"`
	RemovedByOutliers int              `json:"removed_by_outliers"`
	Retained          int              `json:"retained"`
}

// TotalOutlierValues sums nulled values across traits.
func (r CleanReport) TotalOutlierValues() int {
	total := 0
	for _, n := range r.OutlierValues {
		total += n
	}
	return total
}

// Cleaner applies the four deterministic cleaning stages: duplicate
// collapse, completeness filter, outlier nulling, and a second
// completeness filter. Input order is preserved throughout.
type Cleaner struct {
	rules  []OutlierRule
	logger *slog.Logger
}

// NewCleaner creates a cleaner with the given outlier rules.
func NewCleaner(rules []OutlierRule, logger *slog.Logger) *Cleaner {
	if logger == nil {
		logger = slog.Default()
	}
	return &Cleaner{rules: rules, logger: logger}
}

// Clean runs all four stages and returns the retained subjects plus the
// audit report. Subjects removed for incompleteness before outlier
// nulling are counted separately from those removed after it.
func (c *Cleaner) Clean(subjects []Subject) ([]Subject, CleanReport) {
	report := CleanReport{
		Input:         len(subjects),
		OutlierValues: make(map[TraitID]int),
	}

	deduped := c.deduplicate(subjects, &report)
	complete := c.filterIncomplete(deduped, &report)
	nulled := c.applyOutlierRules(complete, &report)

	// Completeness filter #2: subjects losing a value to an outlier
	// rule are dropped here, not imputed.
	retained := make([]Subject, 0, len(nulled))
	for _, s := range nulled {
		if s.Complete() {
			retained = append(retained, s)
		} else {
			report.RemovedByOutliers++
		}
	}
	report.Retained = len(retained)

	c.logger.Info("cohort cleaning completed",
		slog.Int("input", report.Input),
		slog.Int("duplicates", report.Duplicates),
		slog.Int("incomplete", report.Incomplete),
		slog.Int("outlier_values", report.TotalOutlierValues()),
		slog.Int("removed_by_outliers", report.RemovedByOutliers),
		slog.Int("retained", report.Retained),
	)

	return retained, report
}

// deduplicate collapses subjects with identical (ID, age, BMI, traits),
// keeping the first occurrence.
func (c *Cleaner) deduplicate(subjects []Subject, report *CleanReport) []Subject {
	seen := make(map[string]struct{}, len(subjects))
	out := make([]Subject, 0, len(subjects))
	for _, s := range subjects {
		key := s.fingerprint()
		if _, ok := seen[key]; ok {
			report.Duplicates++
			continue
		}
		seen[key] = struct{}{}
		out = append(out, s)
	}
	return out
}

// filterIncomplete drops subjects missing age or any trait value.
func (c *Cleaner) filterIncomplete(subjects []Subject, report *CleanReport) []Subject {
	out := make([]Subject, 0, len(subjects))
	for _, s := range subjects {
		if s.Complete() {
			out = append(out, s)
		} else {
			report.Incomplete++
		}
	}
	return out
}

// applyOutlierRules nulls individual trait values that violate a rule.
// The subject itself survives this stage; completeness is re-checked by
// the caller.
func (c *Cleaner) applyOutlierRules(subjects []Subject, report *CleanReport) []Subject {
	out := make([]Subject, len(subjects))
	for i, s := range subjects {
		for _, rule := range c.rules {
			v := s.Values[rule.Trait]
			if !math.IsNaN(v) && v > rule.Max {
				s.Values[rule.Trait] = math.NaN()
				report.OutlierValues[rule.Trait]++
				c.logger.Debug("nulled outlier trait value",
					slog.String("subject", s.ID),
					slog.String("trait", rule.Trait.String()),
					slog.Float64("value", v),
					slog.Float64("max", rule.Max),
				)
			}
		}
		out[i] = s
	}
	return out
}
