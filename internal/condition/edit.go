package condition

import "github.com/pkg/errors"

// Edits never mutate their input: each clones the tree, applies the change
// to the copy and returns the new root.

// Insert adds n as a child of parentID at index. An index outside
// [0, len(children)] appends.
func Insert(root *Group, parentID string, index int, n Node) (*Group, error) {
	out := CloneGroup(root)
	parent, err := groupByID(out, parentID)
	if err != nil {
		return nil, err
	}
	insertAt(parent, index, Clone(n))
	return out, nil
}

// Remove deletes the subtree rooted at id.
func Remove(root *Group, id string) (*Group, error) {
	if root != nil && root.ID == id {
		return nil, ErrRootImmutable
	}
	out := CloneGroup(root)
	parent, idx := FindParent(out, id)
	if parent == nil {
		return nil, errors.Wrapf(ErrNodeNotFound, "remove %q", id)
	}
	parent.Children = append(parent.Children[:idx:idx], parent.Children[idx+1:]...)
	return out, nil
}

// Move re-parents id under newParentID at index. Moving a node under itself
// or one of its descendants is rejected with ErrCycle.
func Move(root *Group, id, newParentID string, index int) (*Group, error) {
	if root != nil && root.ID == id {
		return nil, ErrRootImmutable
	}
	if Find(root, id) == nil {
		return nil, errors.Wrapf(ErrNodeNotFound, "move %q", id)
	}
	if IsDescendant(root, id, newParentID) {
		return nil, errors.Wrapf(ErrCycle, "move %q under %q", id, newParentID)
	}
	out := CloneGroup(root)
	target, err := groupByID(out, newParentID)
	if err != nil {
		return nil, err
	}
	parent, idx := FindParent(out, id)
	node := parent.Children[idx]
	parent.Children = append(parent.Children[:idx:idx], parent.Children[idx+1:]...)
	if parent == target && index > idx {
		index--
	}
	insertAt(target, index, node)
	return out, nil
}

// Duplicate copies the subtree at id right after the original, with fresh
// ids throughout. Indicator comparisons inside the copy that targeted leaves
// of the same subtree are re-pointed to the copies. Returns the copy's id.
func Duplicate(root *Group, id string) (*Group, string, error) {
	if root != nil && root.ID == id {
		return nil, "", ErrRootImmutable
	}
	out := CloneGroup(root)
	parent, idx := FindParent(out, id)
	if parent == nil {
		return nil, "", errors.Wrapf(ErrNodeNotFound, "duplicate %q", id)
	}
	dup := Clone(parent.Children[idx])
	remap := map[string]string{}
	Walk(dup, func(n Node, _ int) bool {
		fresh := NewID()
		remap[n.NodeID()] = fresh
		n.setID(fresh)
		if l, ok := n.(*IndicatorLeaf); ok {
			l.Indicator.ID = NewID()
		}
		return true
	})
	for _, l := range CollectIndicatorLeaves(dup) {
		if l.Comparison.Kind != CompareIndicator {
			continue
		}
		if fresh, ok := remap[l.Comparison.TargetID]; ok {
			l.Comparison.TargetID = fresh
		}
	}
	insertAt(parent, idx+1, dup)
	return out, dup.NodeID(), nil
}

// Replace swaps the node at id for n, keeping its position. n keeps its own id.
func Replace(root *Group, id string, n Node) (*Group, error) {
	if root != nil && root.ID == id {
		g, ok := n.(*Group)
		if !ok {
			return nil, errors.Wrap(ErrNotGroup, "replace root")
		}
		return CloneGroup(g), nil
	}
	out := CloneGroup(root)
	parent, idx := FindParent(out, id)
	if parent == nil {
		return nil, errors.Wrapf(ErrNodeNotFound, "replace %q", id)
	}
	parent.Children[idx] = Clone(n)
	return out, nil
}

func groupByID(root *Group, id string) (*Group, error) {
	n := Find(root, id)
	if n == nil {
		return nil, errors.Wrapf(ErrNodeNotFound, "group %q", id)
	}
	g, ok := n.(*Group)
	if !ok {
		return nil, errors.Wrapf(ErrNotGroup, "node %q", id)
	}
	return g, nil
}

func insertAt(g *Group, index int, n Node) {
	if index < 0 || index > len(g.Children) {
		index = len(g.Children)
	}
	g.Children = append(g.Children, nil)
	copy(g.Children[index+1:], g.Children[index:])
	g.Children[index] = n
}
