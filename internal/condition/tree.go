package condition

// Canonicalize guarantees a group root: nil becomes an empty AND group and
// any leaf is wrapped in a new AND group.
func Canonicalize(n Node) *Group {
	switch v := n.(type) {
	case *Group:
		if v != nil {
			return v
		}
	case nil:
	default:
		return NewGroup(And, v)
	}
	return NewGroup(And)
}

// Walk visits n and its descendants in pre-order until fn returns false.
func Walk(n Node, fn func(n Node, depth int) bool) {
	walk(n, 0, fn)
}

func walk(n Node, depth int, fn func(Node, int) bool) bool {
	if n == nil {
		return true
	}
	if !fn(n, depth) {
		return false
	}
	if g, ok := n.(*Group); ok {
		for _, ch := range g.Children {
			if !walk(ch, depth+1, fn) {
				return false
			}
		}
	}
	return true
}

// CollectIndicatorLeaves returns every indicator leaf in pre-order.
func CollectIndicatorLeaves(n Node) []*IndicatorLeaf {
	var out []*IndicatorLeaf
	Walk(n, func(n Node, _ int) bool {
		if l, ok := n.(*IndicatorLeaf); ok {
			out = append(out, l)
		}
		return true
	})
	return out
}

// CollectGroups returns every group, the root first.
func CollectGroups(n Node) []*Group {
	var out []*Group
	Walk(n, func(n Node, _ int) bool {
		if g, ok := n.(*Group); ok {
			out = append(out, g)
		}
		return true
	})
	return out
}

// Find returns the node with id, or nil.
func Find(n Node, id string) Node {
	var found Node
	Walk(n, func(n Node, _ int) bool {
		if n.NodeID() == id {
			found = n
			return false
		}
		return true
	})
	return found
}

// FindParent returns the group directly containing id and the child index.
// The root and unknown ids yield (nil, -1).
func FindParent(n Node, id string) (*Group, int) {
	var parent *Group
	idx := -1
	Walk(n, func(n Node, _ int) bool {
		g, ok := n.(*Group)
		if !ok {
			return true
		}
		for i, ch := range g.Children {
			if ch.NodeID() == id {
				parent, idx = g, i
				return false
			}
		}
		return true
	})
	return parent, idx
}

// IsDescendant reports whether id lies in the subtree rooted at ancestorID
// (a node counts as its own descendant).
func IsDescendant(n Node, ancestorID, id string) bool {
	anc := Find(n, ancestorID)
	return anc != nil && Find(anc, id) != nil
}

// Depth returns the number of levels in the tree; a lone leaf has depth 1.
func Depth(n Node) int {
	deepest := 0
	Walk(n, func(_ Node, d int) bool {
		if d+1 > deepest {
			deepest = d + 1
		}
		return true
	})
	return deepest
}

// Clone deep-copies a tree.
func Clone(n Node) Node {
	if n == nil {
		return nil
	}
	return n.clone()
}

// CloneGroup deep-copies a group tree.
func CloneGroup(g *Group) *Group {
	if g == nil {
		return nil
	}
	return g.clone().(*Group)
}
