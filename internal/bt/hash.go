package bt

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"
	"strings"
)

// ContentHash produces a deterministic identity for a BT-DSL tree: two
// trees that are semantically identical but authored with map keys in a
// different order (e.g. round-tripped through different YAML libraries)
// hash the same, because map-valued fields are serialized in sorted-key
// order rather than iteration order.
func ContentHash(n *Node) string {
	var b strings.Builder
	writeNode(&b, n)
	sum := sha256.Sum256([]byte(b.String()))
	return hex.EncodeToString(sum[:])
}

func writeNode(b *strings.Builder, n *Node) {
	if n == nil {
		b.WriteString("nil;")
		return
	}
	fmt.Fprintf(b, "kind=%s;", n.Kind)

	switch n.Kind {
	case KindLeaf:
		fmt.Fprintf(b, "leaf=%s@%s;", n.LeafName, n.LeafVersion)
		writeArgs(b, n.Args)

	case KindSequence, KindSelector:
		fmt.Fprintf(b, "children=%d;[", len(n.Children))
		for _, c := range n.Children {
			writeNode(b, c)
		}
		b.WriteString("];")

	case KindRepeatUntil:
		fmt.Fprintf(b, "condition=%s;maxIter=%d;", n.Condition, n.MaxIterations)
		writeArgs(b, n.ConditionArgs)
		b.WriteString("child=[")
		writeNode(b, n.Child)
		b.WriteString("];")

	case KindDecoratorTimeout:
		fmt.Fprintf(b, "timeoutMs=%d;child=[", n.TimeoutMS)
		writeNode(b, n.Child)
		b.WriteString("];")

	case KindDecoratorFailOnTrue:
		fmt.Fprintf(b, "condition=%s;", n.Condition)
		writeArgs(b, n.ConditionArgs)
		b.WriteString("child=[")
		writeNode(b, n.Child)
		b.WriteString("];")
	}
}

func writeArgs(b *strings.Builder, args map[string]any) {
	if len(args) == 0 {
		b.WriteString("args={};")
		return
	}
	keys := make([]string, 0, len(args))
	for k := range args {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	b.WriteString("args={")
	for _, k := range keys {
		fmt.Fprintf(b, "%s=%v,", k, args[k])
	}
	b.WriteString("};")
}
