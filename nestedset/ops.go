package nestedset

import (
	"fmt"
	"strings"
)

// ToSet returns this node's flattened elements as a set, discarding
// order. Convenience wrapper over ToList for callers that only need
// membership testing.
func (n *Node[E]) ToSet() map[E]struct{} {
	leaves := n.ToList()
	out := make(map[E]struct{}, len(leaves))
	for _, e := range leaves {
		out[e] = struct{}{}
	}
	return out
}

// SplitIfExceedsMaxDegree rebuilds this node, if necessary, so that its
// root has no more than maxDegree successors, by introducing
// intermediate branch nodes. Only the root is split: child nodes are
// kept as they are, whatever their own out-degree. Nodes already within
// the limit are returned unchanged (same pointer). maxDegree must be at
// least 2.
//
// The fan-out is reduced by chunking the successors into groups of
// ceil(n/maxDegree) (not groups of size maxDegree), which yields at most
// maxDegree groups, so the rebuilt root is within the limit after a
// single pass — one extra level of depth, never more.
func (n *Node[E]) SplitIfExceedsMaxDegree(maxDegree int) (*Node[E], error) {
	if maxDegree < 2 {
		return nil, ErrMaxDegreeTooSmall
	}
	if n.k != kindBranch || len(n.successors) <= maxDegree {
		return n, nil
	}

	groups := chunkSuccessors(n.successors, maxDegree)
	regrouped := make([]successor[E], 0, len(groups))
	for _, g := range groups {
		if len(g) == 1 {
			regrouped = append(regrouped, g[0])
			continue
		}
		// Chunk wrappers are flagged noReverse: the rebuilt root applies
		// the order's output reversal exactly once over the combined
		// leaves, the same as the unsplit node did. A wrapper reversing
		// its own slice of the traversal would reverse piecewise and
		// permute the flattened list.
		regrouped = append(regrouped, successor[E]{child: buildBranchNode(n.order, g, true)})
	}

	return buildBranchNode(n.order, regrouped, n.noReverse), nil
}

// chunkSuccessors splits in into at most maxDegree groups of size
// ceil(len(in)/maxDegree) (the last may be smaller), rather than groups
// of size maxDegree — the
// latter would still leave ceil(n/maxDegree) groups, which can itself
// exceed maxDegree and force a second recursive split.
func chunkSuccessors[E comparable](in []successor[E], maxDegree int) [][]successor[E] {
	n := len(in)
	groupSize := (n + maxDegree - 1) / maxDegree
	if groupSize < 1 {
		groupSize = 1
	}
	var out [][]successor[E]
	for i := 0; i < n; i += groupSize {
		end := i + groupSize
		if end > n {
			end = n
		}
		out = append(out, in[i:end])
	}
	return out
}

// buildBranchNode constructs a branch node over successors, computing
// depth and noMemo the same way Builder.Build does. noReverse marks a
// chunk wrapper whose output reversal is owned by the node above it.
func buildBranchNode[E comparable](order Order, successors []successor[E], noReverse bool) *Node[E] {
	depth := 0
	for _, s := range successors {
		if !s.isLeafS {
			if d := 1 + s.child.depth; d > depth {
				depth = d
			}
		} else if depth < 2 {
			depth = 2
		}
	}
	return &Node[E]{
		order:      order,
		k:          kindBranch,
		successors: successors,
		depth:      depth,
		noMemo:     allSuccessorsAreLeaves(successors),
		noReverse:  noReverse,
	}
}

func allSuccessorsAreLeaves[E comparable](in []successor[E]) bool {
	for _, s := range in {
		if !s.isLeafS {
			return false
		}
	}
	return true
}

// NodeHandle is an identity token over a Node's underlying
// representation: two handles are == iff they were taken from the same
// node. Usable as a map key for tracking visited nodes across
// traversals without invoking element-level equality.
type NodeHandle[E comparable] struct {
	n *Node[E]
}

// ToNode returns this node's identity handle.
func (n *Node[E]) ToNode() NodeHandle[E] {
	return NodeHandle[E]{n: n}
}

// String returns a debug representation in the style
// "depset(order, [elem1, elem2, depset(...), ...])", without forcing
// memoization of any descendant.
func (n *Node[E]) String() string {
	var b strings.Builder
	b.WriteString("depset(")
	b.WriteString(n.order.String())
	b.WriteString(", [")
	switch n.k {
	case kindLeaf:
		fmt.Fprintf(&b, "%v", n.leaf)
	case kindBranch:
		for i, s := range n.successors {
			if i > 0 {
				b.WriteString(", ")
			}
			if s.isLeafS {
				fmt.Fprintf(&b, "%v", s.leaf)
			} else {
				b.WriteString(s.child.String())
			}
		}
	}
	b.WriteString("])")
	return b.String()
}
