// Package router implements the cognitive router: a deterministic
// classification-to-planner dispatch driven by boolean task traits
// instead of an LLM classifier call.
package router

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/noeticlabs/wayfinder/internal/telemetry"
)

// Target names the planner/executor a task is routed to.
type Target string

const (
	TargetReactive      Target = "reactive"
	TargetHRMStructured Target = "hrm_structured"
	TargetLLM           Target = "llm"
	TargetCollaborative Target = "collaborative"
)

// Traits are the boolean classification inputs the router dispatches on.
// Emergency always wins regardless of the other two flags.
type Traits struct {
	Emergency  bool
	Structured bool
	Creative   bool
}

// Decision records which target was chosen and why.
type Decision struct {
	Router    Target
	Reasoning string
}

// Route resolves t against an ordered rule table; the "classifier" is
// just the Traits struct, computed upstream.
func Route(ctx context.Context, t Traits) Decision {
	_, span := telemetry.StartSpan(ctx, "router.route",
		trace.WithAttributes(
			attribute.Bool("router.emergency", t.Emergency),
			attribute.Bool("router.structured", t.Structured),
			attribute.Bool("router.creative", t.Creative),
		),
	)
	defer span.End()

	d := route(t)
	span.SetAttributes(attribute.String("router.target", string(d.Router)))
	return d
}

func route(t Traits) Decision {
	switch {
	case t.Emergency:
		return Decision{Router: TargetReactive, Reasoning: "emergency task requires immediate reactive response"}
	case t.Structured && t.Creative:
		return Decision{Router: TargetCollaborative, Reasoning: "task is both structured and creative, merging HRM and LLM plans"}
	case t.Structured:
		return Decision{Router: TargetHRMStructured, Reasoning: "task is structured and not creative, routing to HTN/GOAP planning"}
	case t.Creative:
		return Decision{Router: TargetLLM, Reasoning: "task is creative and not structured, routing to LLM planning"}
	default:
		return Decision{Router: TargetLLM, Reasoning: "no strong structure or creativity signal, defaulting to LLM planning"}
	}
}
