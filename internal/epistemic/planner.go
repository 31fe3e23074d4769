package epistemic

import (
	"math"
	"sort"
)

// DefaultConfidenceThreshold is the default commit threshold.
const DefaultConfidenceThreshold = 0.8

// Initialize builds a uniform belief over hypothesisIDs, bucket-snapped,
// evicting down to MaxHypotheses if the input set is larger (lowest
// probability first, tie-break lexicographic).
func Initialize(hypothesisIDs []string, tick int) State {
	dist := make(map[string]ProbBucket, len(hypothesisIDs))
	if len(hypothesisIDs) == 0 {
		return State{Distribution: dist, Explored: make(map[string]bool), LastUpdatedTick: tick}
	}
	uniform := 1.0 / float64(len(hypothesisIDs))
	for _, id := range hypothesisIDs {
		dist[id] = Snap(uniform)
	}
	evictToCap(dist)
	s := State{Distribution: dist, Explored: make(map[string]bool), LastUpdatedTick: tick}
	s.Entropy = entropy(dist)
	return s
}

// Update folds one Bayesian evidence observation into the belief: compute
// raw posterior mass (prior * likelihood) per hypothesis, normalize to sum
// to one, snap every normalized value to its nearest ProbBucket, then
// enforce the hypothesis cap. Snapping happens after normalization, so the
// returned distribution need not itself sum to exactly one (a uniform
// four-hypothesis belief snaps each entry to 0.3).
func Update(s State, likelihood Likelihood, tick int) State {
	next := s.clone()
	if len(next.Distribution) == 0 {
		next.LastUpdatedTick = tick
		return next
	}

	raw := make(map[string]float64, len(next.Distribution))
	var total float64
	for id, prior := range next.Distribution {
		l := 0.0
		if likelihood != nil {
			l = likelihood(id)
		}
		m := prior * l
		raw[id] = m
		total += m
	}

	if total <= 0 {
		// No evidence could distinguish any hypothesis under this
		// likelihood; the prior is left unchanged rather than divide by
		// zero.
		next.LastUpdatedTick = tick
		next.Entropy = entropy(next.Distribution)
		return next
	}

	for id, m := range raw {
		next.Distribution[id] = Snap(m / total)
	}
	evictToCap(next.Distribution)

	next.LastUpdatedTick = tick
	next.Entropy = entropy(next.Distribution)
	return next
}

// entropy computes Shannon entropy (base 2) over a bucket distribution,
// treating zero-probability buckets as contributing nothing (the standard
// 0*log(0) := 0 convention).
func entropy(dist map[string]ProbBucket) float64 {
	var h float64
	for _, p := range dist {
		if p <= 0 {
			continue
		}
		h -= p * math.Log2(p)
	}
	return h
}

// SelectProbe picks the non-explored probe with the highest expected
// information gain (entropy reduction), tie-broken by ascending probe ID.
// Returns ok=false if every candidate has already been explored.
func SelectProbe(s State, probes map[string]ProbeModel) (probeID string, gain float64, ok bool) {
	ids := make([]string, 0, len(probes))
	for id := range probes {
		if !s.Explored[id] {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)

	current := entropy(s.Distribution)
	best := ""
	var bestGain float64
	found := false
	for _, id := range ids {
		model := probes[id]
		g := current - expectedPosteriorEntropy(s, model)
		if !found || g > bestGain {
			found = true
			best = id
			bestGain = g
		}
	}
	return best, bestGain, found
}

// expectedPosteriorEntropy marginalizes each probe outcome's probability
// over the current belief, then weights that outcome's resulting posterior
// entropy by its marginal probability.
func expectedPosteriorEntropy(s State, model ProbeModel) float64 {
	var expected float64
	for _, outcome := range model.Outcomes() {
		marginal := 0.0
		for id, p := range s.Distribution {
			marginal += p * model.OutcomeProb(outcome, id)
		}
		if marginal <= 0 {
			continue
		}
		posterior := Update(s, func(id string) float64 { return model.OutcomeProb(outcome, id) }, s.LastUpdatedTick)
		expected += marginal * entropy(posterior.Distribution)
	}
	return expected
}

// MarkExplored records that probeID has been spent, so a future
// SelectProbe call never reconsiders it.
func MarkExplored(s State, probeID string) State {
	next := s.clone()
	if next.Explored == nil {
		next.Explored = make(map[string]bool)
	}
	next.Explored[probeID] = true
	return next
}

// CheckConfidence reports the top hypothesis and whether its bucket
// probability clears threshold. No external action may commit while
// Reached is false. Ties break on ascending hypothesis ID.
func CheckConfidence(s State, threshold ProbBucket) ConfidenceCheck {
	ids := make([]string, 0, len(s.Distribution))
	for id := range s.Distribution {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	best := ""
	var bestProb ProbBucket
	for _, id := range ids {
		p := s.Distribution[id]
		if best == "" || p > bestProb {
			best = id
			bestProb = p
		}
	}
	return ConfidenceCheck{
		BestHypothesis: best,
		BestProb:       bestProb,
		Threshold:      threshold,
		Reached:        best != "" && bestProb >= threshold,
	}
}

// ErrConfidenceNotReached is returned by CommitGate when the belief state
// has not yet cleared its confidence threshold.
type ErrConfidenceNotReached struct {
	Check ConfidenceCheck
}

func (e *ErrConfidenceNotReached) Error() string {
	return "epistemic: confidence not reached: best hypothesis " + e.Check.BestHypothesis + " has not cleared the commit threshold"
}

// CommitGate enforces "no external action may commit while reached=false"
// at the call boundary between the epistemic planner and any downstream
// actuator.
func CommitGate(check ConfidenceCheck) error {
	if !check.Reached {
		return &ErrConfidenceNotReached{Check: check}
	}
	return nil
}
