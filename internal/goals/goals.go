// Package goals converts Needs into Goals and ranks them.
package goals

import (
	"sort"
	"time"

	"github.com/noeticlabs/wayfinder/internal/homeostasis"
	"github.com/noeticlabs/wayfinder/internal/ids"
	"github.com/noeticlabs/wayfinder/internal/needs"
)

// Status is the Goal lifecycle FSM:
// PENDING -> ACTIVE -> {COMPLETED, FAILED, SUSPENDED}, SUSPENDED -> PENDING.
type Status string

const (
	StatusPending   Status = "PENDING"
	StatusActive    Status = "ACTIVE"
	StatusCompleted Status = "COMPLETED"
	StatusFailed    Status = "FAILED"
	StatusSuspended Status = "SUSPENDED"
)

var validTransitions = map[Status]map[Status]bool{
	StatusPending:   {StatusActive: true},
	StatusActive:    {StatusCompleted: true, StatusFailed: true, StatusSuspended: true},
	StatusSuspended: {StatusPending: true},
	StatusCompleted: {},
	StatusFailed:    {},
}

// Goal is one candidate objective derived from a Need.
type Goal struct {
	ID         string
	Type       needs.Type
	Priority   float64
	Urgency    float64
	Utility    float64
	Status     Status
	Precond    []string
	Effects    []string
	SubGoals   []string
	CreatedAt  time.Time
	UpdatedAt  time.Time
	Deadline   *time.Time
	SourceNeed string
}

// Transition moves g to next if the transition is legal, returning an error
// describing the illegal move otherwise.
func (g *Goal) Transition(next Status, now time.Time) error {
	allowed := validTransitions[g.Status]
	if !allowed[next] {
		return &IllegalTransitionError{From: g.Status, To: next}
	}
	g.Status = next
	g.UpdatedAt = now
	return nil
}

// IllegalTransitionError reports an attempted Goal status transition the
// FSM does not permit.
type IllegalTransitionError struct {
	From Status
	To   Status
}

func (e *IllegalTransitionError) Error() string {
	return "goals: illegal transition from " + string(e.From) + " to " + string(e.To)
}

// FromNeed builds the one candidate Goal a Need generates: priority =
// intensity*urgency, utility = intensity.
func FromNeed(n needs.Need, now time.Time) Goal {
	return Goal{
		ID:         ids.Prefixed("goal"),
		Type:       n.Type,
		Priority:   n.Intensity * n.Urgency,
		Urgency:    n.Urgency,
		Utility:    n.Intensity,
		Status:     StatusPending,
		CreatedAt:  now,
		UpdatedAt:  now,
		SourceNeed: n.ID,
	}
}

// GenerateAll converts every Need into its candidate Goal, preserving input
// order.
func GenerateAll(in []needs.Need, now time.Time) []Goal {
	out := make([]Goal, len(in))
	for i, n := range in {
		out[i] = FromNeed(n, now)
	}
	return out
}

// ScoreWeights are the weighted-utility priority scorer's factors. They
// must sum to 1.0.
type ScoreWeights struct {
	NeedIntensity float64
	NeedUrgency   float64
	HealthRisk    float64
	SafetyRisk    float64
}

// DefaultWeights returns the standard factor blend.
func DefaultWeights() ScoreWeights {
	return ScoreWeights{NeedIntensity: 0.4, NeedUrgency: 0.3, HealthRisk: 0.2, SafetyRisk: 0.1}
}

// PriorityScorer ranks Goals using a weighted blend of need intensity/urgency
// and the bot's current health/safety risk, falling back to the Goal's own
// Utility/Urgency fields when no source Need is supplied.
type PriorityScorer struct {
	Weights ScoreWeights
}

// NewPriorityScorer builds a scorer using the documented default weights.
func NewPriorityScorer() *PriorityScorer {
	return &PriorityScorer{Weights: DefaultWeights()}
}

// Score computes the weighted score for a single goal given the need that
// produced it (may be the zero value) and the current homeostasis state.
func (s *PriorityScorer) Score(g Goal, n needs.Need, state homeostasis.State) float64 {
	intensity := n.Intensity
	urgency := n.Urgency
	if n.ID == "" {
		intensity = g.Utility
		urgency = g.Urgency
	}
	healthRisk := 1 - state.Health
	safetyRisk := 1 - state.Safety
	w := s.Weights
	return w.NeedIntensity*intensity + w.NeedUrgency*urgency + w.HealthRisk*healthRisk + w.SafetyRisk*safetyRisk
}

// Ranked pairs a Goal with its source Need for ranking.
type Ranked struct {
	Goal Goal
	Need needs.Need
}

// Rank orders goals by descending score, ties broken by ascending Goal ID.
func (s *PriorityScorer) Rank(pairs []Ranked, state homeostasis.State) []Ranked {
	scored := make([]Ranked, len(pairs))
	copy(scored, pairs)

	scores := make(map[string]float64, len(scored))
	for _, r := range scored {
		scores[r.Goal.ID] = s.Score(r.Goal, r.Need, state)
	}

	sort.SliceStable(scored, func(i, j int) bool {
		si, sj := scores[scored[i].Goal.ID], scores[scored[j].Goal.ID]
		if si != sj {
			return si > sj
		}
		return scored[i].Goal.ID < scored[j].Goal.ID
	})
	return scored
}
