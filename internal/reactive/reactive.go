// Package reactive implements the reactive (GOAP) planner: an
// A* search over STRIPS-style boolean-literal preconditions/effects,
// producing short plans for emergencies under a plan-length cap and a
// wall-clock compute budget. The bounded-search shape mirrors the risk
// planner's bounded BFS (internal/risk/planner.go): a priority queue in
// place of a FIFO queue, and a budget check in place of a node cap, but
// the same "stop and report why" discipline.
package reactive

import (
	"container/heap"
	"context"
	"errors"
	"time"

	"github.com/noeticlabs/wayfinder/internal/ids"
	"github.com/noeticlabs/wayfinder/internal/plan"
)

// MaxPlanLength is the reactive planner's plan-length cap.
const MaxPlanLength = 10

// DefaultBudget is the reactive planner's default compute budget.
const DefaultBudget = 20 * time.Millisecond

// Literal is a named boolean world-state fact.
type Literal string

// WorldState is a STRIPS-style assignment of literals to truth values.
// Unlisted literals are treated as false.
type WorldState map[Literal]bool

func (s WorldState) satisfies(goal WorldState) bool {
	for lit, want := range goal {
		if s[lit] != want {
			return false
		}
	}
	return true
}

func (s WorldState) apply(effects WorldState) WorldState {
	next := make(WorldState, len(s)+len(effects))
	for k, v := range s {
		next[k] = v
	}
	for k, v := range effects {
		next[k] = v
	}
	return next
}

func (s WorldState) key() string {
	// Deterministic string key for the visited set; map iteration order
	// is irrelevant since every key/value pair is encoded.
	keys := make([]string, 0, len(s))
	for k := range s {
		keys = append(keys, string(k))
	}
	sortStrings(keys)
	out := make([]byte, 0, 16*len(keys))
	for _, k := range keys {
		out = append(out, k...)
		if s[Literal(k)] {
			out = append(out, '=', '1', ';')
		} else {
			out = append(out, '=', '0', ';')
		}
	}
	return string(out)
}

func sortStrings(s []string) {
	for i := 1; i < len(s); i++ {
		for j := i; j > 0 && s[j-1] > s[j]; j-- {
			s[j-1], s[j] = s[j], s[j-1]
		}
	}
}

// Action is one GOAP action: applicable when Pre is satisfied by the
// current state, producing Effects.
type Action struct {
	ID      string
	Cost    float64
	Pre     WorldState
	Effects WorldState
}

// ErrBudgetExceeded is returned when the search exhausts its compute
// budget before finding a plan.
var ErrBudgetExceeded = errors.New("reactive: compute budget exceeded")

// ErrNoPlanFound is returned when the search space is exhausted (within
// the plan-length cap) without reaching the goal.
var ErrNoPlanFound = errors.New("reactive: no plan satisfies goal within length cap")

type searchNode struct {
	state    WorldState
	path     []Action
	gCost    float64
	fCost    float64
	visitIdx int // insertion order, used only to keep heap ordering stable
}

type nodeHeap []*searchNode

func (h nodeHeap) Len() int { return len(h) }
func (h nodeHeap) Less(i, j int) bool {
	if h[i].fCost != h[j].fCost {
		return h[i].fCost < h[j].fCost
	}
	return h[i].visitIdx < h[j].visitIdx
}
func (h nodeHeap) Swap(i, j int)       { h[i], h[j] = h[j], h[i] }
func (h *nodeHeap) Push(x any)         { *h = append(*h, x.(*searchNode)) }
func (h *nodeHeap) Pop() any {
	old := *h
	n := len(old)
	item := old[n-1]
	*h = old[:n-1]
	return item
}

// heuristic is the number of goal literals the state does not yet satisfy
// (admissible: each unsatisfied literal needs at least one more action).
func heuristic(state, goal WorldState) float64 {
	var unmet float64
	for lit, want := range goal {
		if state[lit] != want {
			unmet++
		}
	}
	return unmet
}

// Plan runs a bounded A* search from initial to goal over actions, capped
// at MaxPlanLength steps and DefaultBudget (or the caller-supplied budget
// via ctx's deadline) wall-clock time, and returns the shortest satisfying
// plan satisfying the goal literals.
func Plan(ctx context.Context, initial, goal WorldState, actions []Action, budget time.Duration, now time.Time) (plan.Plan, error) {
	if budget <= 0 {
		budget = DefaultBudget
	}
	deadline := now.Add(budget)

	if initial.satisfies(goal) {
		return plan.Plan{ID: ids.Prefixed("plan"), Source: "reactive", CreatedAt: now}, nil
	}

	open := &nodeHeap{}
	heap.Init(open)
	visited := map[string]float64{}
	visitCounter := 0

	push := func(n *searchNode) {
		n.visitIdx = visitCounter
		visitCounter++
		heap.Push(open, n)
	}
	push(&searchNode{state: initial, gCost: 0, fCost: heuristic(initial, goal)})

	for open.Len() > 0 {
		if ctx != nil && ctx.Err() != nil {
			return plan.Plan{}, ErrBudgetExceeded
		}
		if time.Now().After(deadline) {
			return plan.Plan{}, ErrBudgetExceeded
		}

		n := heap.Pop(open).(*searchNode)
		k := n.state.key()
		if prior, ok := visited[k]; ok && prior <= n.gCost {
			continue
		}
		visited[k] = n.gCost

		if n.state.satisfies(goal) {
			return toPlan(n.path, now), nil
		}
		if len(n.path) >= MaxPlanLength {
			continue
		}

		for _, a := range actions {
			if !n.state.satisfies(a.Pre) {
				continue
			}
			next := n.state.apply(a.Effects)
			nextPath := make([]Action, len(n.path)+1)
			copy(nextPath, n.path)
			nextPath[len(n.path)] = a
			g := n.gCost + a.Cost
			push(&searchNode{
				state: next,
				path:  nextPath,
				gCost: g,
				fCost: g + heuristic(next, goal),
			})
		}
	}

	return plan.Plan{}, ErrNoPlanFound
}

func toPlan(actions []Action, now time.Time) plan.Plan {
	steps := make([]plan.Step, len(actions))
	var prev string
	for i, a := range actions {
		var deps []string
		if prev != "" {
			deps = []string{prev}
		}
		steps[i] = plan.Step{
			ID:     ids.Prefixed("step"),
			Action: plan.Action{Type: a.ID, Cost: a.Cost},
			Status: plan.StepPending,
			Dependencies: deps,
		}
		prev = steps[i].ID
	}
	return plan.Plan{ID: ids.Prefixed("plan"), Source: "reactive", Steps: steps, CreatedAt: now}
}
