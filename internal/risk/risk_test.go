package risk

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func lavaMiningScenario() (State, []Action, RiskModel, []SafetyInvariant, func(State) bool) {
	initial := State{
		World:  map[string]float64{"health": 20, "ore": 0},
		Ledger: map[string]int64{"death": 100_000},
	}

	model := NewStaticModel(map[string][]Outcome{
		"mine_near_lava": {
			{OutcomeID: "success_ore", MassPpm: 700_000, LossPpm: 0},
			{OutcomeID: "minor_injury", MassPpm: 250_000, LossPpm: 20_000},
			{OutcomeID: "death", MassPpm: 50_000, LossPpm: 1_000_000},
		},
		"mine_safe_area": {
			{OutcomeID: "success_ore_safe", MassPpm: 1_000_000, LossPpm: 0},
		},
	})

	actions := []Action{
		{
			ID:   "mine_near_lava",
			Cost: 2,
			Effects: func(s State, outcomeID string) State {
				next := s.Clone()
				switch outcomeID {
				case "success_ore":
					next.World["ore"] += 2
				case "minor_injury":
					next.World["ore"] += 1
					next.World["health"] -= 2
				case "death":
					next.World["health"] = 0
				}
				return next
			},
		},
		{
			ID:   "mine_safe_area",
			Cost: 5,
			Effects: func(s State, outcomeID string) State {
				next := s.Clone()
				next.World["ore"] += 1
				return next
			},
		},
	}

	invariants := []SafetyInvariant{
		{RiskKind: "death", Violated: func(s State) bool { return s.World["health"] <= 0 }},
	}

	goal := func(s State) bool { return s.World["ore"] >= 8 && s.World["health"] >= 1 }

	return initial, actions, model, invariants, goal
}

// Lava mining with a 10% death budget: the safe policy must come back
// satisfied.
func TestLavaMiningWithinBudget(t *testing.T) {
	initial, actions, model, invariants, goal := lavaMiningScenario()

	cfg := Config{
		Measure:     MeasureChanceConstraint,
		EpsilonPpm:  100_000,
		Aggregation: AggregationUnionBound,
	}

	result := Expand(initial, actions, model, invariants, goal, cfg)

	require.False(t, result.WasTruncated)
	assert.Equal(t, "satisfied", result.ConstraintStatus)
	assert.LessOrEqual(t, result.PolicyFailureUpperBoundPpm, int64(100_000))
	assert.True(t, result.SafetyVerified)
	assert.Equal(t, "state", result.BudgetSource)
}

// Identical scenario but the horizon is clamped to 2: truncated searches
// must never report the constraint satisfied.
func TestTruncationLeavesConstraintUnknown(t *testing.T) {
	initial, actions, model, invariants, goal := lavaMiningScenario()

	cfg := Config{
		Measure:      MeasureChanceConstraint,
		EpsilonPpm:   100_000,
		Aggregation:  AggregationUnionBound,
		HorizonDepth: 2,
	}

	result := Expand(initial, actions, model, invariants, goal, cfg)

	assert.True(t, result.WasTruncated)
	assert.Equal(t, "depth_cap", result.TruncationReason)
	assert.Equal(t, "unknown", result.ConstraintStatus)
}

func TestMassConservationRejectsBadDistribution(t *testing.T) {
	initial := State{World: map[string]float64{}, Ledger: map[string]int64{"death": 100_000}}
	model := NewStaticModel(map[string][]Outcome{
		"broken": {{OutcomeID: "a", MassPpm: 400_000}, {OutcomeID: "b", MassPpm: 400_000}},
	})
	actions := []Action{{ID: "broken", Cost: 1}}

	result := Expand(initial, actions, model, nil, func(State) bool { return false }, Config{Aggregation: AggregationUnionBound, HorizonDepth: 1})

	require.Len(t, result.RejectedActions, 1)
	assert.Equal(t, "mass_not_conserved", result.RejectedActions[0].Reason)
}

func TestAggregateUnionBoundAndIndependentProduct(t *testing.T) {
	assert.Equal(t, int64(50_000), aggregate(AggregationUnionBound, 100_000, 50_000))
	assert.Equal(t, int64(-50_000), aggregate(AggregationUnionBound, 0, 50_000))

	// independent_product: floor(before * (MassTotal - failure) / MassTotal)
	assert.Equal(t, int64(950_000), aggregate(AggregationIndependentProduct, 1_000_000, 50_000))
}

func TestLargestRemainderApportionSumsExactly(t *testing.T) {
	masses := largestRemainderApportion([]float64{1, 1, 1}, MassTotal)
	var sum int64
	for _, m := range masses {
		sum += m
	}
	assert.Equal(t, MassTotal, sum)
}

func TestUpdateRiskModelKeepsMassConservationAndOverridesOnlyReportedAction(t *testing.T) {
	model := NewStaticModel(map[string][]Outcome{
		"mine_near_lava": {
			{OutcomeID: "success_ore", MassPpm: 700_000},
			{OutcomeID: "minor_injury", MassPpm: 250_000},
			{OutcomeID: "death", MassPpm: 50_000},
		},
		"mine_safe_area": {{OutcomeID: "success_ore_safe", MassPpm: 1_000_000}},
	})

	updated, err := UpdateRiskModel(model, UpdateReport{ActionID: "mine_near_lava", ObservedOutcomeID: "success_ore", ExecutionCount: 10})
	require.NoError(t, err)

	outcomes, err := updated.GetOutcomeMasses(State{}, "mine_near_lava")
	require.NoError(t, err)
	var sum int64
	for _, o := range outcomes {
		sum += o.MassPpm
	}
	assert.Equal(t, MassTotal, sum)

	unchanged, err := updated.GetOutcomeMasses(State{}, "mine_safe_area")
	require.NoError(t, err)
	assert.Equal(t, int64(1_000_000), unchanged[0].MassPpm)
}

func TestUpdateRiskModelUnknownActionErrors(t *testing.T) {
	model := NewStaticModel(map[string][]Outcome{"a": {{OutcomeID: "x", MassPpm: MassTotal}}})
	_, err := UpdateRiskModel(model, UpdateReport{ActionID: "unknown", ObservedOutcomeID: "x"})
	require.Error(t, err)
}
