package coordinator

import (
	"time"

	"github.com/noeticlabs/wayfinder/internal/plan"
	"github.com/noeticlabs/wayfinder/internal/router"
)

// Event is the closed set of lifecycle records the Coordinator publishes:
// planningComplete, planningError, planReady, planCompleted, planFailed,
// planError.
type Event struct {
	Kind      EventKind
	PlanID    string
	GoalID    string
	Plan      *plan.Plan
	Decision  *router.Decision
	Quality   *Quality
	Err       error
	Timestamp time.Time
}

// EventKind is the closed set of event names this package emits.
type EventKind string

const (
	EventPlanningComplete EventKind = "planningComplete"
	EventPlanningError    EventKind = "planningError"
	EventPlanReady        EventKind = "planReady"
	EventPlanCompleted    EventKind = "planCompleted"
	EventPlanFailed       EventKind = "planFailed"
	EventPlanError        EventKind = "planError"
)
