package coordinator

import (
	"context"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noeticlabs/wayfinder/internal/goals"
	"github.com/noeticlabs/wayfinder/internal/homeostasis"
	"github.com/noeticlabs/wayfinder/internal/htn"
	"github.com/noeticlabs/wayfinder/internal/needs"
	"github.com/noeticlabs/wayfinder/internal/plan"
	"github.com/noeticlabs/wayfinder/internal/router"
	"github.com/noeticlabs/wayfinder/internal/telemetry"
)

func newTestCoordinator() *Coordinator {
	lib := htn.NewLibrary()
	lib.Register(htn.Method{
		Name:     "eat_nearby",
		GoalType: string(needs.TypeNutrition),
		Build: func(g goals.Goal, f htn.Facts) []plan.Step {
			return []plan.Step{{ID: "eat", Action: plan.Action{Type: "eat", Cost: 1}}}
		},
	})
	metrics := telemetry.NewMetrics(prometheus.NewRegistry())
	return New(lib, nil, metrics)
}

func TestPlanAndExecuteStructuredRoutesToHTN(t *testing.T) {
	c := newTestCoordinator()
	state := homeostasis.State{Hunger: 0.85, Health: 1, Safety: 1, Energy: 0.5}

	result, err := c.PlanAndExecute(context.Background(), state, RoutingHints{Structured: true}, htn.Facts{})
	require.NoError(t, err)
	assert.Equal(t, router.TargetHRMStructured, result.Decision.Router)
	assert.NotEmpty(t, result.Plan.Steps)
	assert.Equal(t, goals.StatusActive, result.Goal.Status)
	assert.Greater(t, result.Quality.Feasibility, 0.0)
	assert.Equal(t, result.Quality.Feasibility, result.Quality.Confidence)
	assert.Equal(t, result.Quality.Optimality, result.Quality.EstimatedSuccess)

	_, ok := c.ActivePlan(result.Plan.ID)
	assert.True(t, ok)
}

func TestPlanAndExecuteNoNeedsReturnsError(t *testing.T) {
	c := newTestCoordinator()
	state := homeostasis.State{Health: 1, Hunger: 0, Safety: 1, Energy: 1, Curiosity: 0.5, Social: 0.5, Achievement: 0.5, Creativity: 0.5}
	_, err := c.PlanAndExecute(context.Background(), state, RoutingHints{}, htn.Facts{})
	require.Error(t, err)
}

func TestPlanAndExecuteHTNFailureSynthesizesPlaceholder(t *testing.T) {
	c := newTestCoordinator()
	c.HTN = htn.NewLibrary() // no methods registered: every goal type misses
	state := homeostasis.State{Hunger: 0.85, Health: 1, Safety: 1, Energy: 0.5}

	result, err := c.PlanAndExecute(context.Background(), state, RoutingHints{Structured: true}, htn.Facts{})
	require.NoError(t, err)
	require.Len(t, result.Plan.Steps, 2)
	assert.Equal(t, "analyze", result.Plan.Steps[0].Action.Type)
	assert.Equal(t, "act", result.Plan.Steps[1].Action.Type)
}

func TestPlanAndExecuteCollaborativeRoutesToMergedPlan(t *testing.T) {
	c := newTestCoordinator()
	state := homeostasis.State{Hunger: 0.85, Health: 1, Safety: 1, Energy: 0.5}

	result, err := c.PlanAndExecute(context.Background(), state, RoutingHints{Structured: true, Creative: true}, htn.Facts{})
	require.NoError(t, err)
	assert.Equal(t, router.TargetCollaborative, result.Decision.Router)
	assert.Equal(t, "collaborative", result.Plan.Source)

	// HRM's three coarse phases lead, then HTN's detailed step follows,
	// gated on HRM's last phase rather than discarded.
	require.Len(t, result.Plan.Steps, 4)
	assert.Equal(t, "eat", result.Plan.Steps[3].Action.Type)
	assert.Contains(t, result.Plan.Steps[3].Dependencies, result.Plan.Steps[2].ID)
}

func TestMergePlansAppliesMaxMeanMinRule(t *testing.T) {
	now := time.Now()
	hrm := plan.Plan{
		Steps:              []plan.Step{{ID: "hrm-1"}},
		Priority:           0.4,
		SuccessProbability: 0.7,
		Duration:           10 * time.Second,
	}
	htnPlan := plan.Plan{
		Steps:              []plan.Step{{ID: "htn-1"}},
		Priority:           0.9,
		SuccessProbability: 0.9,
		Duration:           4 * time.Second,
	}

	merged := mergePlans(hrm, htnPlan, now)
	assert.Equal(t, 0.9, merged.Priority)
	assert.InDelta(t, 0.8, merged.SuccessProbability, 1e-9)
	assert.Equal(t, 4*time.Second, merged.Duration)
	require.Len(t, merged.Steps, 2)
	assert.Contains(t, merged.Steps[1].Dependencies, "hrm-1")
}

func TestPlanAndExecuteEmergencyRoutesReactive(t *testing.T) {
	c := newTestCoordinator()
	state := homeostasis.State{Health: 0.1, Hunger: 0.9, Safety: 0.1, Energy: 0.2}

	// Whichever need (nutrition/survival/safety) ranks top, pre-satisfy its
	// reactive goal literal so the search returns immediately instead of
	// needing a domain action catalog this unit test doesn't supply.
	facts := htn.Facts{
		string(needs.TypeNutrition) + "_addressed": true,
		string(needs.TypeSurvival) + "_addressed":   true,
		string(needs.TypeSafety) + "_addressed":      true,
	}

	result, err := c.PlanAndExecute(context.Background(), state, RoutingHints{}, facts)
	require.NoError(t, err)
	assert.Equal(t, router.TargetReactive, result.Decision.Router)
}

func TestCompleteAndFailPlanRemoveFromActivePlans(t *testing.T) {
	c := newTestCoordinator()
	state := homeostasis.State{Hunger: 0.85, Health: 1, Safety: 1, Energy: 0.5}
	result, err := c.PlanAndExecute(context.Background(), state, RoutingHints{Structured: true}, htn.Facts{})
	require.NoError(t, err)

	var completed []Event
	c.Events.Subscribe(eventsObserverFunc(func(e Event) { completed = append(completed, e) }))

	c.CompletePlan(result.Plan.ID)
	_, ok := c.ActivePlan(result.Plan.ID)
	assert.False(t, ok)
	require.Len(t, completed, 1)
	assert.Equal(t, EventPlanCompleted, completed[0].Kind)
}

type eventsObserverFunc func(Event)

func (f eventsObserverFunc) Notify(e Event) { f(e) }
