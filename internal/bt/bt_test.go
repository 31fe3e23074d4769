package bt

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noeticlabs/wayfinder/internal/leaf"
)

type fakeSnapshot struct {
	x, y, z    float64
	health     float64
	food       float64
	hostiles   int
	timeOfDay  int
}

func (f fakeSnapshot) Position() (float64, float64, float64) { return f.x, f.y, f.z }
func (f fakeSnapshot) Health() float64                        { return f.health }
func (f fakeSnapshot) Food() float64                          { return f.food }
func (f fakeSnapshot) NearbyHostiles() int                    { return f.hostiles }
func (f fakeSnapshot) TimeOfDay() int                         { return f.timeOfDay }

type fakeInventory struct{ items map[string]int }

func (f fakeInventory) HasItem(name string, count int) bool { return f.items[name] >= count }
func (f fakeInventory) Count(name string) int                { return f.items[name] }

func newTestContext(snap fakeSnapshot, inv fakeInventory) leaf.Context {
	return leaf.Context{
		Ctx:       context.Background(),
		Snapshot:  func() leaf.Snapshot { return snap },
		Inventory: func() leaf.Inventory { return inv },
		Now:       time.Now,
	}
}

func succeedLeaf() leaf.Func {
	return func(lc leaf.Context, args, opts leaf.Options) (leaf.Result, error) {
		return leaf.Result{Detail: "ok"}, nil
	}
}

func failLeaf() leaf.Func {
	return func(lc leaf.Context, args, opts leaf.Options) (leaf.Result, error) {
		return leaf.Result{}, &leaf.ExecError{Code: "boom", Detail: "forced failure"}
	}
}

func newRegistryWith(names ...string) *leaf.Registry {
	r := leaf.NewRegistry()
	for _, n := range names {
		fn := succeedLeaf()
		if n == "fail" {
			fn = failLeaf()
		}
		_ = r.Register(leaf.Leaf{Name: n, Version: "v1", Run: fn})
	}
	return r
}

func TestValidateStructureRejectsEmptyChildren(t *testing.T) {
	n := &Node{Kind: KindSequence}
	err := ValidateStructure(n)
	require.Error(t, err)
	var se *StructuralError
	require.ErrorAs(t, err, &se)
}

func TestValidateStructureRejectsLeafWithChildren(t *testing.T) {
	n := &Node{Kind: KindLeaf, LeafName: "move", Children: []*Node{{Kind: KindLeaf, LeafName: "wait"}}}
	require.Error(t, ValidateStructure(n))
}

func TestCompileFailsOnUnregisteredLeaf(t *testing.T) {
	registry := newRegistryWith("move")
	n := &Node{Kind: KindLeaf, LeafName: "dig", LeafVersion: "v1"}
	_, err := Compile(n, registry)
	require.Error(t, err)
	var ce *CompileError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, "missing_leaf", ce.Code)
}

func TestValidateStructureUnknownKindReportsCode(t *testing.T) {
	n := &Node{Kind: Kind("bogus")}
	err := ValidateStructure(n)
	require.Error(t, err)
	var se *StructuralError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, "unknown_node_type", se.Code)
}

func TestPredicateEvalUnknownNameReportsCode(t *testing.T) {
	preds := NewPredicateRegistry()
	_, err := preds.Eval("not_a_real_predicate", leaf.Context{}, nil)
	require.Error(t, err)
	var execErr *leaf.ExecError
	require.ErrorAs(t, err, &execErr)
	assert.Equal(t, "unknown_predicate", execErr.Code)
}

func TestContentHashStableAcrossArgOrder(t *testing.T) {
	a := &Node{Kind: KindLeaf, LeafName: "move", LeafVersion: "v1", Args: map[string]any{"x": 1, "y": 2}}
	b := &Node{Kind: KindLeaf, LeafName: "move", LeafVersion: "v1", Args: map[string]any{"y": 2, "x": 1}}
	assert.Equal(t, ContentHash(a), ContentHash(b))
}

func TestContentHashDiffersOnStructure(t *testing.T) {
	a := &Node{Kind: KindLeaf, LeafName: "move", LeafVersion: "v1"}
	b := &Node{Kind: KindLeaf, LeafName: "dig", LeafVersion: "v1"}
	assert.NotEqual(t, ContentHash(a), ContentHash(b))
}

func TestExecuteSequenceStopsOnFirstFailure(t *testing.T) {
	registry := newRegistryWith("move", "fail", "never")
	n := &Node{Kind: KindSequence, Children: []*Node{
		{Kind: KindLeaf, LeafName: "move", LeafVersion: "v1"},
		{Kind: KindLeaf, LeafName: "fail", LeafVersion: "v1"},
		{Kind: KindLeaf, LeafName: "never", LeafVersion: "v1"},
	}}
	compiled, err := Compile(n, registry)
	require.NoError(t, err)

	exec := NewExecutor(registry)
	lc := newTestContext(fakeSnapshot{}, fakeInventory{})
	status, err := exec.Execute(lc, compiled)
	assert.Equal(t, Failure, status)
	assert.Error(t, err)
}

func TestExecuteSelectorReturnsFirstSuccess(t *testing.T) {
	registry := newRegistryWith("fail", "move")
	n := &Node{Kind: KindSelector, Children: []*Node{
		{Kind: KindLeaf, LeafName: "fail", LeafVersion: "v1"},
		{Kind: KindLeaf, LeafName: "move", LeafVersion: "v1"},
	}}
	compiled, err := Compile(n, registry)
	require.NoError(t, err)

	exec := NewExecutor(registry)
	status, err := exec.Execute(newTestContext(fakeSnapshot{}, fakeInventory{}), compiled)
	assert.Equal(t, Success, status)
	assert.NoError(t, err)
}

func TestExecuteRepeatUntilStopsWhenConditionMet(t *testing.T) {
	registry := newRegistryWith("move")
	n := &Node{
		Kind:      KindRepeatUntil,
		Condition: "hostiles_present",
		Child:     &Node{Kind: KindLeaf, LeafName: "move", LeafVersion: "v1"},
	}
	compiled, err := Compile(n, registry)
	require.NoError(t, err)

	exec := NewExecutor(registry)
	status, err := exec.Execute(newTestContext(fakeSnapshot{hostiles: 1}, fakeInventory{}), compiled)
	assert.Equal(t, Success, status)
	assert.NoError(t, err)
}

func TestExecuteRepeatUntilExhaustsIterations(t *testing.T) {
	registry := newRegistryWith("move")
	n := &Node{
		Kind:          KindRepeatUntil,
		Condition:     "hostiles_present",
		MaxIterations: 3,
		Child:         &Node{Kind: KindLeaf, LeafName: "move", LeafVersion: "v1"},
	}
	compiled, err := Compile(n, registry)
	require.NoError(t, err)

	exec := NewExecutor(registry)
	status, err := exec.Execute(newTestContext(fakeSnapshot{hostiles: 0}, fakeInventory{}), compiled)
	assert.Equal(t, Failure, status)
	require.Error(t, err)
	var execErr *leaf.ExecError
	require.ErrorAs(t, err, &execErr)
	assert.Equal(t, "max_iterations", execErr.Code)
}

func TestExecuteDecoratorFailOnTrueShortCircuits(t *testing.T) {
	registry := newRegistryWith("move")
	n := &Node{
		Kind:      KindDecoratorFailOnTrue,
		Condition: "health_low",
		Child:     &Node{Kind: KindLeaf, LeafName: "move", LeafVersion: "v1"},
	}
	compiled, err := Compile(n, registry)
	require.NoError(t, err)

	exec := NewExecutor(registry)
	status, err := exec.Execute(newTestContext(fakeSnapshot{health: 0.1}, fakeInventory{}), compiled)
	assert.Equal(t, Failure, status)
	require.Error(t, err)
	var execErr *leaf.ExecError
	require.ErrorAs(t, err, &execErr)
	assert.Equal(t, "precondition_failed", execErr.Code)
}

func TestExecuteDecoratorTimeoutFailsSlowChild(t *testing.T) {
	registry := leaf.NewRegistry()
	require.NoError(t, registry.Register(leaf.Leaf{Name: "slow", Version: "v1", Run: func(lc leaf.Context, args, opts leaf.Options) (leaf.Result, error) {
		time.Sleep(30 * time.Millisecond)
		return leaf.Result{}, nil
	}}))

	n := &Node{
		Kind:      KindDecoratorTimeout,
		TimeoutMS: 5,
		Child:     &Node{Kind: KindLeaf, LeafName: "slow", LeafVersion: "v1"},
	}
	compiled, err := Compile(n, registry)
	require.NoError(t, err)

	exec := NewExecutor(registry)
	status, err := exec.Execute(newTestContext(fakeSnapshot{}, fakeInventory{}), compiled)
	assert.Equal(t, Failure, status)
	require.Error(t, err)
	var execErr *leaf.ExecError
	require.ErrorAs(t, err, &execErr)
	assert.Equal(t, "aborted", execErr.Code)
}
