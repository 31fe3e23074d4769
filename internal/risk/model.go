package risk

import "fmt"

// StaticModel is a simple in-memory RiskModel: a fixed outcome-mass table
// per actionId, overridable per-action by UpdateRiskModel as real outcomes
// are observed.
type StaticModel struct {
	distributions map[string][]Outcome
}

// NewStaticModel builds a model from an initial action -> outcomes table.
func NewStaticModel(distributions map[string][]Outcome) *StaticModel {
	out := make(map[string][]Outcome, len(distributions))
	for id, outcomes := range distributions {
		cp := make([]Outcome, len(outcomes))
		copy(cp, outcomes)
		out[id] = cp
	}
	return &StaticModel{distributions: out}
}

// GetOutcomeMasses implements RiskModel.
func (m *StaticModel) GetOutcomeMasses(_ State, actionID string) ([]Outcome, error) {
	outcomes, ok := m.distributions[actionID]
	if !ok {
		return nil, fmt.Errorf("risk: no outcome distribution registered for action %q", actionID)
	}
	cp := make([]Outcome, len(outcomes))
	copy(cp, outcomes)
	return cp, nil
}

// UpdateReport is one observed execution to fold into the model.
type UpdateReport struct {
	ActionID          string
	ObservedOutcomeID string
	StateContext      State
	ExecutionCount     int
}

// laplaceAlpha is the additive smoothing constant applied to every
// outcome's pseudo-count before renormalizing.
const laplaceAlpha = 1.0

// UpdateRiskModel returns a new model that overrides only the reported
// action's outcome distribution, built from Laplace-smoothed counts and
// largest-remainder apportionment so the updated masses stay integer and
// sum exactly to MassTotal.
func UpdateRiskModel(model *StaticModel, report UpdateReport) (*StaticModel, error) {
	prior, ok := model.distributions[report.ActionID]
	if !ok {
		return nil, fmt.Errorf("risk: cannot update unknown action %q", report.ActionID)
	}

	executions := report.ExecutionCount
	if executions <= 0 {
		executions = 1
	}

	weights := make([]float64, len(prior))
	found := false
	for i, o := range prior {
		// Recover a pseudo-count from the prior mass (out of one
		// pseudo-trial), then add Laplace smoothing and the newly
		// observed executions.
		weights[i] = float64(o.MassPpm)/float64(MassTotal) + laplaceAlpha
		if o.OutcomeID == report.ObservedOutcomeID {
			weights[i] += float64(executions)
			found = true
		}
	}
	if !found {
		return nil, fmt.Errorf("risk: observed outcome %q is not in action %q's outcome set", report.ObservedOutcomeID, report.ActionID)
	}

	masses := largestRemainderApportion(weights, MassTotal)
	updated := make([]Outcome, len(prior))
	for i, o := range prior {
		updated[i] = Outcome{OutcomeID: o.OutcomeID, MassPpm: masses[i], LossPpm: o.LossPpm}
	}

	next := NewStaticModel(model.distributions)
	next.distributions[report.ActionID] = updated
	return next, nil
}
