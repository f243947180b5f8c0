package filter

// Scored is anything carrying a class name and a confidence: raw detector
// predictions, caller facing results and persisted detection rows alike.
type Scored interface {
	GetClassName() string
	GetConfidence() float64
}

// FilterAndCount keeps every item whose confidence is at or above threshold,
// preserving input order, and counts the kept items per class.
func FilterAndCount[T Scored](items []T, threshold float64) ([]T, map[string]int) {
	kept := make([]T, 0, len(items))
	counts := make(map[string]int)
	for _, item := range items {
		// NaN compares false and is dropped
		if !(item.GetConfidence() >= threshold) {
			continue
		}
		kept = append(kept, item)
		counts[item.GetClassName()]++
	}
	return kept, counts
}

// Total sums a class -> count map.
func Total(counts map[string]int) int {
	total := 0
	for _, c := range counts {
		total += c
	}
	return total
}
