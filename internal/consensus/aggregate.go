package consensus

// Majority returns the label held by at least 2 of the 3 backends. A
// 1-1-1 split has no majority and returns ok=false. Total: never fails.
func Majority(labels [NumBackends]Label) (Label, bool) {
	var tally [NumLabels]int
	for _, l := range labels {
		tally[l]++
	}
	for l, count := range tally {
		if count >= 2 {
			return Label(l), true
		}
	}
	return 0, false
}

// Strict returns the label only when all three backends agree exactly.
func Strict(labels [NumBackends]Label) (Label, bool) {
	if labels[0] == labels[1] && labels[1] == labels[2] {
		return labels[0], true
	}
	return 0, false
}
