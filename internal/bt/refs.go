package bt

// LeafRef names one leaf invocation site within a tree.
type LeafRef struct {
	Name    string
	Version string
}

// CollectLeafRefs walks n and returns every distinct (name, version) leaf
// reference it contains, used by the Capability Registry to compute an
// option's permission set as the union of its leaves' permissions.
func CollectLeafRefs(n *Node) []LeafRef {
	seen := make(map[LeafRef]bool)
	var refs []LeafRef
	var walk func(*Node)
	walk = func(n *Node) {
		if n == nil {
			return
		}
		switch n.Kind {
		case KindLeaf:
			ref := LeafRef{Name: n.LeafName, Version: n.LeafVersion}
			if !seen[ref] {
				seen[ref] = true
				refs = append(refs, ref)
			}
		case KindSequence, KindSelector:
			for _, c := range n.Children {
				walk(c)
			}
		case KindRepeatUntil, KindDecoratorTimeout, KindDecoratorFailOnTrue:
			walk(n.Child)
		}
	}
	walk(n)
	return refs
}
