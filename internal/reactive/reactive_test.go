package reactive

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noeticlabs/wayfinder/internal/plan"
)

func TestPlanFindsShortestPath(t *testing.T) {
	actions := []Action{
		{ID: "flee", Cost: 1, Pre: WorldState{"near_hostile": true}, Effects: WorldState{"near_hostile": false, "safe": true}},
		{ID: "hide", Cost: 5, Pre: WorldState{"near_hostile": true}, Effects: WorldState{"safe": true}},
	}
	initial := WorldState{"near_hostile": true}
	goal := WorldState{"safe": true}

	p, err := Plan(context.Background(), initial, goal, actions, DefaultBudget, time.Now())
	require.NoError(t, err)
	require.Len(t, p.Steps, 1)
	assert.Equal(t, "flee", p.Steps[0].Action.Type)
	require.NoError(t, plan.ValidateDAG(p))
}

func TestPlanAlreadySatisfiedReturnsEmptyPlan(t *testing.T) {
	p, err := Plan(context.Background(), WorldState{"safe": true}, WorldState{"safe": true}, nil, DefaultBudget, time.Now())
	require.NoError(t, err)
	assert.Empty(t, p.Steps)
}

func TestPlanRespectsPlanLengthCap(t *testing.T) {
	// Each action only flips one of ten independent counters; reaching the
	// full goal needs exactly 10 steps, so it must still succeed right at
	// the cap.
	var actions []Action
	goal := WorldState{}
	for i := 0; i < MaxPlanLength; i++ {
		lit := Literal(string(rune('a' + i)))
		actions = append(actions, Action{
			ID:      string(lit),
			Cost:    1,
			Effects: WorldState{lit: true},
		})
		goal[lit] = true
	}
	p, err := Plan(context.Background(), WorldState{}, goal, actions, 50*time.Millisecond, time.Now())
	require.NoError(t, err)
	assert.Len(t, p.Steps, MaxPlanLength)
}

func TestPlanNoSolutionReturnsError(t *testing.T) {
	actions := []Action{{ID: "noop", Cost: 1, Effects: WorldState{"irrelevant": true}}}
	_, err := Plan(context.Background(), WorldState{}, WorldState{"unreachable": true}, actions, 20*time.Millisecond, time.Now())
	require.Error(t, err)
}

func TestPlanExpiredContextExceedsBudget(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	actions := []Action{{ID: "a", Cost: 1, Effects: WorldState{"x": true}}}
	_, err := Plan(ctx, WorldState{}, WorldState{"unreached": true}, actions, 20*time.Millisecond, time.Now())
	require.ErrorIs(t, err, ErrBudgetExceeded)
}
