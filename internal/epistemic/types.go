// Package epistemic implements the epistemic planner: a belief-state
// planner over a bounded hypothesis set with discrete-bucket
// probabilities, discriminative probe selection by expected information
// gain, and a confidence gate that blocks commitment until a hypothesis
// clears a threshold.
package epistemic

import "sort"

// ProbBucket is one of the eleven discrete probability values permitted in
// belief state: {0.0, 0.1, ..., 1.0}. No raw float may appear in a State's
// distribution outside these eleven values.
type ProbBucket = float64

// MaxHypotheses bounds the belief state's cardinality.
const MaxHypotheses = 32

// bucketStep is the resolution of a ProbBucket.
const bucketStep = 0.1

// Snap rounds v to the nearest ProbBucket, rounding the exact midpoint
// (x.x5) up: 1/4 = 0.25 snaps to 0.3, not 0.2.
func Snap(v float64) ProbBucket {
	if v < 0 {
		v = 0
	}
	if v > 1 {
		v = 1
	}
	steps := v/bucketStep + 0.5
	n := int64(steps)
	if n > 10 {
		n = 10
	}
	// Dividing by 10 (rather than multiplying by bucketStep) yields the
	// exact float64 literal for each bucket, e.g. 0.3 and not
	// 0.30000000000000004.
	return float64(n) / 10
}

// State is the belief state: a discrete-bucket distribution over
// hypothesis IDs, the set of probe IDs already spent, and the entropy and
// tick of the last update.
type State struct {
	Distribution    map[string]ProbBucket
	Explored        map[string]bool
	Entropy         float64
	LastUpdatedTick int
}

// clone returns a deep copy so planner updates never alias a caller's maps.
func (s State) clone() State {
	dist := make(map[string]ProbBucket, len(s.Distribution))
	for k, v := range s.Distribution {
		dist[k] = v
	}
	explored := make(map[string]bool, len(s.Explored))
	for k, v := range s.Explored {
		explored[k] = v
	}
	return State{Distribution: dist, Explored: explored, Entropy: s.Entropy, LastUpdatedTick: s.LastUpdatedTick}
}

// evictToCap enforces MaxHypotheses by deterministically removing the
// lowest-probability hypotheses, tie-broken by ascending ID, until the
// distribution is within the cap.
func evictToCap(dist map[string]ProbBucket) {
	if len(dist) <= MaxHypotheses {
		return
	}
	type entry struct {
		id   string
		prob ProbBucket
	}
	entries := make([]entry, 0, len(dist))
	for id, p := range dist {
		entries = append(entries, entry{id, p})
	}
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].prob != entries[j].prob {
			return entries[i].prob < entries[j].prob
		}
		return entries[i].id < entries[j].id
	})
	excess := len(entries) - MaxHypotheses
	for i := 0; i < excess; i++ {
		delete(dist, entries[i].id)
	}
}

// Likelihood supplies P(observation | hypothesis) for a domain-specific
// Bayesian update.
type Likelihood func(hypothesisID string) float64

// ProbeModel supplies, for one candidate probe, the marginal probability of
// each of its possible outcomes conditioned on each hypothesis being true:
// enough to compute expected information gain without running the probe.
type ProbeModel interface {
	// Outcomes lists the probe's possible observation outcome IDs.
	Outcomes() []string
	// OutcomeProb returns P(outcome | hypothesis).
	OutcomeProb(outcome, hypothesisID string) float64
}

// ConfidenceCheck is the result of a confidence check.
type ConfidenceCheck struct {
	BestHypothesis string
	BestProb       ProbBucket
	Threshold      ProbBucket
	Reached        bool
}
