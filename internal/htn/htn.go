// Package htn implements the hierarchical (HTN) planner: deterministic
// method selection by precondition match, decomposing one Goal into an
// ordered Plan. Decomposition is a pure, deterministic method table
// rather than an LLM-backed call, since HTN planning must be
// reproducible.
package htn

import (
	"sort"
	"time"

	"github.com/noeticlabs/wayfinder/internal/goals"
	"github.com/noeticlabs/wayfinder/internal/ids"
	"github.com/noeticlabs/wayfinder/internal/plan"
)

// Facts is the subset of world/goal context a Method's precondition
// consults. It is a plain map rather than an interface so callers can
// assemble it from whatever snapshot the world adapter provides.
type Facts map[string]bool

// Method is one named decomposition recipe: it applies only when
// Precondition holds, and Build constructs the ordered steps once it does.
type Method struct {
	Name          string
	GoalType      string // matches goals.Goal.Type; empty matches any type
	Precondition  func(g goals.Goal, f Facts) bool
	Build         func(g goals.Goal, f Facts) []plan.Step
}

// Library is an ordered method table; the first method whose GoalType and
// Precondition both match wins.
type Library struct {
	Methods []Method
}

// NewLibrary builds an empty method library.
func NewLibrary() *Library {
	return &Library{}
}

// Register appends a method to the end of the selection order.
func (l *Library) Register(m Method) {
	l.Methods = append(l.Methods, m)
}

// Decompose selects the first matching method for g and builds its plan.
// It returns an empty Plan (no steps) when no method matches; the
// coordinator synthesizes its placeholder plan from that.
func (l *Library) Decompose(g goals.Goal, f Facts, now time.Time) plan.Plan {
	for _, m := range l.Methods {
		if m.GoalType != "" && m.GoalType != string(g.Type) {
			continue
		}
		if m.Precondition != nil && !m.Precondition(g, f) {
			continue
		}
		steps := m.Build(g, f)
		return plan.Plan{ID: ids.Prefixed("plan"), Source: "htn", Steps: steps, CreatedAt: now}
	}
	return plan.Plan{ID: ids.Prefixed("plan"), Source: "htn", CreatedAt: now}
}

// SortedGoalTypes returns the distinct goal types the library has methods
// for, sorted for deterministic introspection (admin shell / diagnostics).
func (l *Library) SortedGoalTypes() []string {
	seen := map[string]bool{}
	for _, m := range l.Methods {
		if m.GoalType != "" {
			seen[m.GoalType] = true
		}
	}
	out := make([]string, 0, len(seen))
	for t := range seen {
		out = append(out, t)
	}
	sort.Strings(out)
	return out
}
