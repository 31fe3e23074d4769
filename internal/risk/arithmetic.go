package risk

import "sort"

// sumMasses adds up an outcome list's masses; callers compare the result
// against MassTotal to enforce the mass-conservation invariant.
func sumMasses(outcomes []Outcome) int64 {
	var total int64
	for _, o := range outcomes {
		total += o.MassPpm
	}
	return total
}

// aggregate folds one step's failure mass into a risk-kind ledger entry
// using the declared aggregation rule.
func aggregate(kind AggregationKind, before, failureMassPpm int64) int64 {
	switch kind {
	case AggregationIndependentProduct:
		return (before * (MassTotal - failureMassPpm)) / MassTotal
	default: // AggregationUnionBound
		return before - failureMassPpm
	}
}

// largestRemainderApportion distributes total integer units across weighted
// buckets so the parts sum to exactly total, using the largest-remainder
// method (Hamilton apportionment): each bucket first gets floor(share),
// then the buckets with the largest fractional remainders receive the
// leftover units one at a time. Used by UpdateRiskModel to keep learned
// outcome masses integer and summing to MassTotal; cvarCost clips the
// boundary leaf's float probability at the alpha cutoff and does not call
// it.
func largestRemainderApportion(weights []float64, total int64) []int64 {
	n := len(weights)
	out := make([]int64, n)
	if n == 0 || total <= 0 {
		return out
	}

	var weightSum float64
	for _, w := range weights {
		weightSum += w
	}
	if weightSum <= 0 {
		// Degenerate: split as evenly as possible.
		base := total / int64(n)
		for i := range out {
			out[i] = base
		}
		out[0] += total - base*int64(n)
		return out
	}

	type remainder struct {
		idx float64
		rem float64
	}
	rems := make([]remainder, n)
	var assigned int64
	exact := make([]float64, n)
	for i, w := range weights {
		exact[i] = float64(total) * w / weightSum
		floor := int64(exact[i])
		out[i] = floor
		assigned += floor
		rems[i] = remainder{idx: float64(i), rem: exact[i] - float64(floor)}
	}

	sort.Slice(rems, func(i, j int) bool {
		if rems[i].rem != rems[j].rem {
			return rems[i].rem > rems[j].rem
		}
		return rems[i].idx < rems[j].idx
	})

	leftover := total - assigned
	for i := int64(0); i < leftover; i++ {
		out[int(rems[i].idx)]++
	}
	return out
}
