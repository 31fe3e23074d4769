// Package coordinator implements the integrated planning coordinator: the
// pipeline that turns raw signals into needs, needs into ranked goals,
// goals into a routing decision, and the decision into a Plan via
// whichever of the reactive/HTN/LLM/collaborative planners the router
// selected, followed by a quality assessment and registration into an
// activePlans map. Cross-invocation access to activePlans is serialized
// behind a mutex; readers observe snapshots, never partial updates.
package coordinator

import (
	"context"
	"fmt"
	"math"
	"sort"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/noeticlabs/wayfinder/internal/events"
	"github.com/noeticlabs/wayfinder/internal/goals"
	"github.com/noeticlabs/wayfinder/internal/homeostasis"
	"github.com/noeticlabs/wayfinder/internal/htn"
	"github.com/noeticlabs/wayfinder/internal/ids"
	"github.com/noeticlabs/wayfinder/internal/needs"
	"github.com/noeticlabs/wayfinder/internal/plan"
	"github.com/noeticlabs/wayfinder/internal/reactive"
	"github.com/noeticlabs/wayfinder/internal/router"
	"github.com/noeticlabs/wayfinder/internal/telemetry"
)

// Quality is the four-score quality assessment of a generated plan.
// Confidence always equals Feasibility and EstimatedSuccess always equals
// Optimality, by construction.
type Quality struct {
	Feasibility     float64
	Optimality      float64
	Coherence       float64
	Risk            float64
	Confidence      float64 // == Feasibility
	EstimatedSuccess float64 // == Optimality
}

// LLMPlanner is the narrow contract the Coordinator needs from the LLM
// client collaborator: given a goal and routing context, return a
// Plan (already parsed from whatever BT-DSL/suggestion shape the client
// returned).
type LLMPlanner interface {
	Plan(ctx context.Context, g goals.Goal, facts htn.Facts) (plan.Plan, error)
}

// RoutingHints supplies the classification dimensions the router cannot
// derive purely from a Goal: whether the task calls for structured
// decomposition, creative exploration, and/or world knowledge. Emergency is
// derived from the goal's urgency by the Coordinator itself.
type RoutingHints struct {
	Structured      bool
	Creative        bool
	RequiresWorld   bool
	EmergencyUrgency float64 // goal.Urgency at/above this counts as emergency
}

// DefaultEmergencyUrgency is the urgency threshold at or above which a goal
// is treated as an emergency regardless of the caller's hints.
const DefaultEmergencyUrgency = 0.9

// Coordinator owns the full planning pipeline and the activePlans map.
type Coordinator struct {
	HTN             *htn.Library
	LLM             LLMPlanner // optional; nil disables the "llm" route
	ReactiveActions []reactive.Action
	Scorer          *goals.PriorityScorer
	Metrics         *telemetry.Metrics // optional
	Events          *events.Bus[Event]

	mu          sync.RWMutex
	activePlans map[string]plan.Plan

	nowFn func() time.Time
}

// New builds a Coordinator with the default priority-scorer weights.
func New(lib *htn.Library, llm LLMPlanner, metrics *telemetry.Metrics) *Coordinator {
	return &Coordinator{
		HTN:         lib,
		LLM:         llm,
		Scorer:      goals.NewPriorityScorer(),
		Metrics:     metrics,
		Events:      events.NewBus[Event](),
		activePlans: make(map[string]plan.Plan),
		nowFn:       time.Now,
	}
}

func (c *Coordinator) now() time.Time {
	if c.nowFn != nil {
		return c.nowFn()
	}
	return time.Now()
}

// Result is the outcome of one full pipeline invocation.
type Result struct {
	Goal     goals.Goal
	Decision router.Decision
	Plan     plan.Plan
	Quality  Quality
}

// PlanAndExecute runs the full pipeline: goal formulation, cognitive
// routing, plan generation, and quality assessment, then registers the
// plan for execution. Actual step execution is the BT executor's and the
// autonomous task executor's job (internal/bt, internal/tasks), not this
// package's; the Coordinator's contract ends at "plan is ready and
// registered."
func (c *Coordinator) PlanAndExecute(ctx context.Context, state homeostasis.State, hints RoutingHints, facts htn.Facts) (Result, error) {
	now := c.now()

	// Step 1: goal formulation.
	ns := needs.Derive(state)
	if len(ns) == 0 {
		err := fmt.Errorf("coordinator: no needs derived from current homeostasis state")
		c.Events.Publish(Event{Kind: EventPlanningError, Err: err, Timestamp: now})
		return Result{}, err
	}
	candidates := goals.GenerateAll(ns, now)
	pairs := make([]goals.Ranked, len(candidates))
	for i, g := range candidates {
		pairs[i] = goals.Ranked{Goal: g, Need: ns[i]}
	}
	ranked := c.Scorer.Rank(pairs, state)
	top := ranked[0].Goal

	// Step 2: cognitive routing.
	traits := router.Traits{
		Emergency:  top.Urgency >= emergencyThreshold(hints),
		Structured: hints.Structured,
		Creative:   hints.Creative,
	}
	decision := router.Route(ctx, traits)

	// Step 3: plan generation, dispatching on the router's target.
	p, err := c.generate(ctx, decision, top, facts, now)
	if err != nil {
		// The goal never reached ACTIVE, so it is left at PENDING rather
		// than forced into FAILED, which is only reachable from ACTIVE.
		// The pipeline never leaves a partially-mutated goal.
		c.Events.Publish(Event{Kind: EventPlanningError, GoalID: top.ID, Decision: &decision, Err: err, Timestamp: now})
		return Result{}, fmt.Errorf("coordinator: plan generation failed: %w", err)
	}

	// Step 4: quality assessment.
	quality := assessQuality(p)

	// Step 5: register for execution.
	c.register(p)

	if err := top.Transition(goals.StatusActive, now); err != nil {
		c.Events.Publish(Event{Kind: EventPlanningError, GoalID: top.ID, Err: err, Timestamp: now})
		return Result{}, fmt.Errorf("coordinator: goal activation failed: %w", err)
	}

	c.Events.Publish(Event{Kind: EventPlanningComplete, PlanID: p.ID, GoalID: top.ID, Decision: &decision, Timestamp: now})
	c.Events.Publish(Event{Kind: EventPlanReady, PlanID: p.ID, Plan: &p, Timestamp: now})

	return Result{Goal: top, Decision: decision, Plan: p, Quality: quality}, nil
}

func emergencyThreshold(hints RoutingHints) float64 {
	if hints.EmergencyUrgency > 0 {
		return hints.EmergencyUrgency
	}
	return DefaultEmergencyUrgency
}

// generate dispatches plan generation on the routing decision.
func (c *Coordinator) generate(ctx context.Context, decision router.Decision, g goals.Goal, facts htn.Facts, now time.Time) (plan.Plan, error) {
	switch decision.Router {
	case router.TargetReactive:
		return c.generateReactive(ctx, g, facts, now)
	case router.TargetHRMStructured:
		return c.generateHTN(g, facts, now)
	case router.TargetLLM:
		return c.generateLLM(ctx, g, facts, now)
	case router.TargetCollaborative:
		return c.generateCollaborative(ctx, g, facts, now)
	default:
		return plan.Plan{}, fmt.Errorf("coordinator: unknown router target %q", decision.Router)
	}
}

func (c *Coordinator) generateHTN(g goals.Goal, facts htn.Facts, now time.Time) (plan.Plan, error) {
	if c.HTN == nil {
		return plan.Plan{}, fmt.Errorf("coordinator: no HTN method library configured")
	}
	p := c.HTN.Decompose(g, facts, now)
	if len(p.Steps) == 0 {
		p = placeholderPlan(now)
	}
	return p, nil
}

func (c *Coordinator) generateReactive(ctx context.Context, g goals.Goal, facts htn.Facts, now time.Time) (plan.Plan, error) {
	initial, goalState := reactiveWorldState(facts, g)
	p, err := reactive.Plan(ctx, initial, goalState, c.ReactiveActions, reactive.DefaultBudget, now)
	if err != nil {
		return plan.Plan{}, err
	}
	return p, nil
}

func (c *Coordinator) generateLLM(ctx context.Context, g goals.Goal, facts htn.Facts, now time.Time) (plan.Plan, error) {
	if c.LLM == nil {
		return plan.Plan{}, fmt.Errorf("coordinator: no LLM planner configured")
	}
	return c.LLM.Plan(ctx, g, facts)
}

// generateCollaborative runs an HRM-style coarse planner and the HTN
// planner in parallel and merges them: HRM provides the high-level node
// ordering, HTN provides detailed steps, merged priority = max, success
// probability = mean, duration = min.
func (c *Coordinator) generateCollaborative(ctx context.Context, g goals.Goal, facts htn.Facts, now time.Time) (plan.Plan, error) {
	var hrm, htnPlan plan.Plan

	var g2 errgroup.Group
	g2.Go(func() error {
		hrm = hrmPlan(g, now)
		return nil
	})
	g2.Go(func() error {
		p, err := c.generateHTN(g, facts, now)
		if err != nil {
			return err
		}
		p.Priority = g.Priority
		p.SuccessProbability = htnSuccessProbability
		p.Duration = p.TotalDuration()
		htnPlan = p
		return nil
	})
	if err := g2.Wait(); err != nil {
		return plan.Plan{}, err
	}

	return mergePlans(hrm, htnPlan, now), nil
}

// hrmSuccessProbability and htnSuccessProbability are the fixed confidence
// estimates each collaborative candidate contributes to the merge; the
// mean rule needs a number from each side and neither hrmPlan nor
// HTN.Decompose computes one on its own. HRM only orders coarse phases, so
// it carries a lower estimate than HTN's precondition/effect-checked
// detailed decomposition.
const (
	hrmSuccessProbability = 0.7
	htnSuccessProbability = 0.9
)

// hrmPlan produces a coarse, high-level ordering for g: a handful of named
// phases rather than HTN's fully detailed steps. Its only consumer is the
// collaborative merge, so it stays a private helper rather than a separate
// planner package.
func hrmPlan(g goals.Goal, now time.Time) plan.Plan {
	phases := []string{"assess", "act", "verify"}
	steps := make([]plan.Step, len(phases))
	var prev string
	for i, phase := range phases {
		var deps []string
		if prev != "" {
			deps = []string{prev}
		}
		steps[i] = plan.Step{
			ID:           ids.Prefixed("hrm"),
			Action:       plan.Action{Type: phase, Cost: 1, EstimatedDuration: time.Second},
			Status:       plan.StepPending,
			Dependencies: deps,
		}
		prev = steps[i].ID
	}
	p := plan.Plan{ID: ids.Prefixed("plan"), Source: "hrm", Steps: steps, CreatedAt: now}
	p.Priority = g.Priority
	p.SuccessProbability = hrmSuccessProbability
	p.Duration = p.TotalDuration()
	return p
}

// mergePlans combines an HRM-style coarse plan with an HTN detailed plan:
// merged priority = max, success probability = mean, duration = min.
// HRM's phase steps run first as a gate: HTN's
// first step is rewired to depend on HRM's last phase, so the merged DAG
// actually waits on HRM's ordering instead of discarding it.
func mergePlans(hrm, htnPlan plan.Plan, now time.Time) plan.Plan {
	steps := make([]plan.Step, 0, len(hrm.Steps)+len(htnPlan.Steps))
	steps = append(steps, hrm.Steps...)

	htnSteps := append([]plan.Step(nil), htnPlan.Steps...)
	if len(hrm.Steps) > 0 && len(htnSteps) > 0 {
		gate := hrm.Steps[len(hrm.Steps)-1].ID
		first := htnSteps[0]
		if !containsDependency(first.Dependencies, gate) {
			first.Dependencies = append(append([]string{}, first.Dependencies...), gate)
		}
		htnSteps[0] = first
	}
	steps = append(steps, htnSteps...)

	return plan.Plan{
		ID:                 ids.Prefixed("plan"),
		Source:             "collaborative",
		Steps:              steps,
		CreatedAt:          now,
		Priority:           math.Max(hrm.Priority, htnPlan.Priority),
		SuccessProbability: (hrm.SuccessProbability + htnPlan.SuccessProbability) / 2,
		Duration:           minDuration(hrm.Duration, htnPlan.Duration),
	}
}

func containsDependency(deps []string, id string) bool {
	for _, d := range deps {
		if d == id {
			return true
		}
	}
	return false
}

func minDuration(a, b time.Duration) time.Duration {
	if a == 0 {
		return b
	}
	if b == 0 {
		return a
	}
	if a < b {
		return a
	}
	return b
}

// placeholderPlan is the coordinator-synthesized fallback when HTN
// decomposition finds no matching method: a minimal 2-step plan (analyze,
// then act).
func placeholderPlan(now time.Time) plan.Plan {
	analyze := plan.Step{ID: ids.Prefixed("step"), Action: plan.Action{Type: "analyze"}, Status: plan.StepPending}
	act := plan.Step{ID: ids.Prefixed("step"), Action: plan.Action{Type: "act"}, Status: plan.StepPending, Dependencies: []string{analyze.ID}}
	return plan.Plan{ID: ids.Prefixed("plan"), Source: "htn", Steps: []plan.Step{analyze, act}, CreatedAt: now}
}

// assessQuality computes the four quality scores from a generated plan.
// Each score is deterministic and stays in [0,1].
func assessQuality(p plan.Plan) Quality {
	feasibility := 1.0
	if len(p.Steps) == 0 {
		feasibility = 0.0
	} else if err := plan.ValidateDAG(p); err != nil {
		feasibility = 0.0
	}

	optimality := 1.0
	if cost := p.TotalCost(); cost > 0 {
		optimality = 1.0 / (1.0 + cost)
	}

	coherence := 1.0
	if n := len(p.Steps); n > 1 {
		linked := 0
		for _, s := range p.Steps {
			if len(s.Dependencies) > 0 {
				linked++
			}
		}
		coherence = float64(linked) / float64(n-1)
		if coherence > 1 {
			coherence = 1
		}
	}

	risk := 0.9 // conservative default in the absence of a risk-model hookup

	return Quality{
		Feasibility:      feasibility,
		Optimality:       optimality,
		Coherence:        coherence,
		Risk:             risk,
		Confidence:       feasibility,
		EstimatedSuccess: optimality,
	}
}

// register records p in activePlans under a write lock.
func (c *Coordinator) register(p plan.Plan) {
	c.mu.Lock()
	c.activePlans[p.ID] = p
	c.mu.Unlock()
	if c.Metrics != nil {
		c.mu.RLock()
		n := len(c.activePlans)
		c.mu.RUnlock()
		c.Metrics.ActivePlans.Set(float64(n))
	}
}

// ActivePlan returns a snapshot of one registered plan.
func (c *Coordinator) ActivePlan(id string) (plan.Plan, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	p, ok := c.activePlans[id]
	return p, ok
}

// CompletePlan marks a plan complete and emits planCompleted.
func (c *Coordinator) CompletePlan(id string) {
	c.mu.Lock()
	delete(c.activePlans, id)
	c.mu.Unlock()
	c.Events.Publish(Event{Kind: EventPlanCompleted, PlanID: id, Timestamp: c.now()})
}

// FailPlan marks a plan failed and emits planFailed.
func (c *Coordinator) FailPlan(id string, cause error) {
	c.mu.Lock()
	delete(c.activePlans, id)
	c.mu.Unlock()
	c.Events.Publish(Event{Kind: EventPlanFailed, PlanID: id, Err: cause, Timestamp: c.now()})
}

// ActivePlanIDs lists every currently registered plan ID, sorted.
func (c *Coordinator) ActivePlanIDs() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]string, 0, len(c.activePlans))
	for id := range c.activePlans {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

// reactiveWorldState translates the generic Facts map and goal into the
// reactive planner's WorldState vocabulary. A real deployment supplies a
// domain-specific action set; this default handles the common "reach a
// single boolean goal literal" case.
func reactiveWorldState(facts htn.Facts, g goals.Goal) (reactive.WorldState, reactive.WorldState) {
	initial := make(reactive.WorldState, len(facts))
	for k, v := range facts {
		initial[reactive.Literal(k)] = v
	}
	goalState := reactive.WorldState{reactive.Literal(string(g.Type) + "_addressed"): true}
	return initial, goalState
}
