package bt

import (
	"fmt"

	"github.com/noeticlabs/wayfinder/internal/leaf"
)

// Compiled is a BT-DSL tree that has passed structural validation and leaf
// resolution, ready for the Executor.
type Compiled struct {
	Root *Node
	Hash string
}

// CompileError reports a failure reached after structural validation: a
// leaf reference that names no registered (name, version) pair
// ("missing_leaf").
type CompileError struct {
	Code   string
	Detail string
}

func (e *CompileError) Error() string {
	return fmt.Sprintf("bt: compile: %s: %s", e.Code, e.Detail)
}

// Compile validates n's structure, resolves every leaf reference against
// registry, and computes its deterministic content hash.
func Compile(n *Node, registry *leaf.Registry) (*Compiled, error) {
	if err := ValidateStructure(n); err != nil {
		return nil, err
	}
	if err := resolveLeaves(n, registry); err != nil {
		return nil, err
	}
	return &Compiled{Root: n, Hash: ContentHash(n)}, nil
}

func resolveLeaves(n *Node, registry *leaf.Registry) error {
	if n == nil {
		return nil
	}
	switch n.Kind {
	case KindLeaf:
		if _, ok := registry.Get(n.LeafName, n.LeafVersion); !ok {
			return &CompileError{Code: "missing_leaf", Detail: fmt.Sprintf("leaf %q@%q is not registered", n.LeafName, n.LeafVersion)}
		}
	case KindSequence, KindSelector:
		for _, c := range n.Children {
			if err := resolveLeaves(c, registry); err != nil {
				return err
			}
		}
	case KindRepeatUntil, KindDecoratorTimeout, KindDecoratorFailOnTrue:
		if err := resolveLeaves(n.Child, registry); err != nil {
			return err
		}
	}
	return nil
}
