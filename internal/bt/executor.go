package bt

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/noeticlabs/wayfinder/internal/leaf"
	"github.com/noeticlabs/wayfinder/internal/telemetry"
)

// Status is a node's outcome for one execution. There is no
// Running status: the executor runs a compiled tree to completion,
// blocking on each leaf in turn, the same way the world adapter's leaf
// calls themselves block until the underlying bot action finishes.
type Status string

const (
	Success Status = "success"
	Failure Status = "failure"
)

// ErrCancelled is returned (wrapped) when the caller's context is done
// mid-execution.
var ErrCancelled = errors.New("bt: execution cancelled")

// Executor runs a Compiled tree against a leaf registry and a predicate
// registry.
type Executor struct {
	Leaves     *leaf.Registry
	Predicates *PredicateRegistry
	Metrics    *telemetry.Metrics // optional
}

// NewExecutor builds an Executor with the builtin sensor predicates.
func NewExecutor(leaves *leaf.Registry) *Executor {
	return &Executor{Leaves: leaves, Predicates: NewPredicateRegistry()}
}

// ExecutionStats counts node and leaf evaluations for one Execute call.
type ExecutionStats struct {
	NodeExecutions int
	LeafExecutions int
}

// statsCounter accumulates ExecutionStats with atomic counters: a
// DecoratorTimeout node races its child against a timer in a goroutine
// that may still be running (and still incrementing) after the timeout
// branch wins, so plain ints would race.
type statsCounter struct {
	nodes atomic.Int64
	leafs atomic.Int64
}

func (s *statsCounter) snapshot() ExecutionStats {
	return ExecutionStats{NodeExecutions: int(s.nodes.Load()), LeafExecutions: int(s.leafs.Load())}
}

// Execute runs compiled.Root to completion.
func (e *Executor) Execute(lc leaf.Context, compiled *Compiled) (Status, error) {
	status, _, err := e.ExecuteWithStats(lc, compiled)
	return status, err
}

// ExecuteWithStats runs compiled.Root to completion and also reports how
// many nodes and leaves it evaluated.
func (e *Executor) ExecuteWithStats(lc leaf.Context, compiled *Compiled) (Status, ExecutionStats, error) {
	stats := &statsCounter{}
	status, err := e.run(lc, compiled.Root, stats)
	return status, stats.snapshot(), err
}

func (e *Executor) run(lc leaf.Context, n *Node, stats *statsCounter) (Status, error) {
	if err := lc.Ctx.Err(); err != nil {
		return Failure, fmt.Errorf("%w: %v", ErrCancelled, err)
	}
	stats.nodes.Add(1)

	switch n.Kind {
	case KindLeaf:
		return e.runLeaf(lc, n, stats)
	case KindSequence:
		return e.runSequence(lc, n, stats)
	case KindSelector:
		return e.runSelector(lc, n, stats)
	case KindRepeatUntil:
		return e.runRepeatUntil(lc, n, stats)
	case KindDecoratorTimeout:
		return e.runDecoratorTimeout(lc, n, stats)
	case KindDecoratorFailOnTrue:
		return e.runDecoratorFailOnTrue(lc, n, stats)
	default:
		return Failure, &leaf.ExecError{Code: "unknown_node_type", Detail: fmt.Sprintf("unknown node kind %q", n.Kind), Retryable: false}
	}
}

func (e *Executor) runLeaf(lc leaf.Context, n *Node, stats *statsCounter) (Status, error) {
	stats.leafs.Add(1)
	_, err := e.Leaves.Run(lc, n.LeafName, n.LeafVersion, n.Args, nil)
	status := Success
	if err != nil {
		status = Failure
	}
	if e.Metrics != nil {
		e.Metrics.LeafExecutions.WithLabelValues(n.LeafName, string(status)).Inc()
	}
	if err != nil {
		return Failure, err
	}
	return Success, nil
}

func (e *Executor) runSequence(lc leaf.Context, n *Node, stats *statsCounter) (Status, error) {
	for _, c := range n.Children {
		status, err := e.run(lc, c, stats)
		if status != Success {
			e.recordNode(n.Kind, status)
			return status, err
		}
	}
	e.recordNode(n.Kind, Success)
	return Success, nil
}

func (e *Executor) runSelector(lc leaf.Context, n *Node, stats *statsCounter) (Status, error) {
	var lastErr error
	for _, c := range n.Children {
		status, err := e.run(lc, c, stats)
		if status == Success {
			e.recordNode(n.Kind, Success)
			return Success, nil
		}
		lastErr = err
	}
	e.recordNode(n.Kind, Failure)
	if lastErr == nil {
		lastErr = &leaf.ExecError{Code: "unknown", Detail: "selector has no children", Retryable: false}
	}
	return Failure, lastErr
}

func (e *Executor) runRepeatUntil(lc leaf.Context, n *Node, stats *statsCounter) (Status, error) {
	max := n.MaxIterations
	if max <= 0 {
		max = DefaultMaxIterations
	}

	for i := 0; i < max; i++ {
		met, err := e.Predicates.Eval(n.Condition, lc, n.ConditionArgs)
		if err != nil {
			e.recordNode(n.Kind, Failure)
			return Failure, err
		}
		if met {
			e.recordNode(n.Kind, Success)
			return Success, nil
		}

		status, err := e.run(lc, n.Child, stats)
		if status != Success {
			e.recordNode(n.Kind, status)
			return status, err
		}
	}

	e.recordNode(n.Kind, Failure)
	return Failure, &leaf.ExecError{
		Code:      "max_iterations",
		Detail:    fmt.Sprintf("condition %q not met after %d iterations", n.Condition, max),
		Retryable: false,
	}
}

func (e *Executor) runDecoratorTimeout(lc leaf.Context, n *Node, stats *statsCounter) (Status, error) {
	ctx, cancel := context.WithTimeout(lc.Ctx, time.Duration(n.TimeoutMS)*time.Millisecond)
	defer cancel()

	childLC := lc
	childLC.Ctx = ctx

	type result struct {
		status Status
		err    error
	}
	done := make(chan result, 1)
	go func() {
		status, err := e.run(childLC, n.Child, stats)
		done <- result{status, err}
	}()

	select {
	case r := <-done:
		e.recordNode(n.Kind, r.status)
		return r.status, r.err
	case <-ctx.Done():
		e.recordNode(n.Kind, Failure)
		return Failure, &leaf.ExecError{
			Code:      "aborted",
			Detail:    fmt.Sprintf("decorator_timeout exceeded %dms", n.TimeoutMS),
			Retryable: false,
		}
	}
}

func (e *Executor) runDecoratorFailOnTrue(lc leaf.Context, n *Node, stats *statsCounter) (Status, error) {
	met, err := e.Predicates.Eval(n.Condition, lc, n.ConditionArgs)
	if err != nil {
		e.recordNode(n.Kind, Failure)
		return Failure, err
	}
	if met {
		e.recordNode(n.Kind, Failure)
		return Failure, &leaf.ExecError{
			Code:      "precondition_failed",
			Detail:    fmt.Sprintf("condition %q was true", n.Condition),
			Retryable: false,
		}
	}
	return e.run(lc, n.Child, stats)
}

func (e *Executor) recordNode(kind Kind, status Status) {
	if e.Metrics != nil {
		e.Metrics.NodeExecutions.WithLabelValues(string(kind), string(status)).Inc()
	}
}
