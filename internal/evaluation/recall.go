package evaluation

// RecallAtK is the share of relevant ids found in the first k predictions.
// Duplicate predictions count once. ok is false when relevant is empty, in
// which case the row must not be scored.
func RecallAtK(predicted []string, relevant map[string]struct{}, k int) (recall float64, ok bool) {
	if len(relevant) == 0 {
		return 0, false
	}
	if k < len(predicted) {
		predicted = predicted[:max(k, 0)]
	}
	return float64(countHits(predicted, relevant)) / float64(len(relevant)), true
}

func countHits(predicted []string, relevant map[string]struct{}) int {
	seen := make(map[string]struct{}, len(predicted))
	hits := 0
	for _, p := range predicted {
		if _, dup := seen[p]; dup {
			continue
		}
		seen[p] = struct{}{}
		if _, ok := relevant[p]; ok {
			hits++
		}
	}
	return hits
}

func toSet(ids []string) map[string]struct{} {
	set := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		set[id] = struct{}{}
	}
	return set
}
