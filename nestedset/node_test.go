package nestedset

import "testing"

func TestCheckElementShapeRejectsOpaqueByteString(t *testing.T) {
	_, err := NewBuilder[opaqueBytesKey](Stable).AddDirect(opaqueBytesKey{}).Build()
	if err != ErrInvalidElementShape {
		t.Errorf("err = %v, want ErrInvalidElementShape", err)
	}
}

// opaqueBytesKey is a comparable stand-in implementing OpaqueByteString,
// since opaqueBytes ([]byte) cannot satisfy the comparable constraint
// required by Builder.
type opaqueBytesKey struct{ tag string }

func (opaqueBytesKey) NestedSetOpaqueByteString() {}

func TestDepthComputation(t *testing.T) {
	leaf, _ := NewBuilder[string](Stable).AddDirect("a").Build()
	if leaf.Depth() != 1 {
		t.Errorf("singleton Depth() = %d, want 1", leaf.Depth())
	}

	emptyNode, _ := NewBuilder[string](Stable).Build()
	if emptyNode.Depth() != 0 {
		t.Errorf("empty Depth() = %d, want 0", emptyNode.Depth())
	}

	bld := NewBuilder[string](Stable)
	bld.AddDirect("a", "b")
	if _, err := bld.AddTransitive(leaf); err != nil {
		t.Fatalf("AddTransitive: %v", err)
	}
	branch, err := bld.Build()
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if branch.Depth() != 2 {
		t.Errorf("branch Depth() = %d, want 2 (1 + child depth 1)", branch.Depth())
	}
}

func TestShallowEqualsIdentityAndStructure(t *testing.T) {
	a, _ := NewBuilder[string](Stable).AddDirect("a", "b").Build()
	b, _ := NewBuilder[string](Stable).AddDirect("a", "b").Build()

	if !a.ShallowEquals(a) {
		t.Error("a node must be ShallowEquals to itself")
	}
	if !a.ShallowEquals(b) {
		t.Error("two independently built branch nodes with the same Order and equal leaf successors must be ShallowEquals (leaves compare by value)")
	}
	if a.ShallowHash() != a.ShallowHash() {
		t.Error("ShallowHash must be deterministic across calls")
	}
}

func TestGetLeavesAndGetNonLeaves(t *testing.T) {
	// The child needs two elements: a singleton child would be hoisted
	// into this node's leaves rather than kept as a non-leaf successor.
	child, _ := NewBuilder[string](Stable).AddDirect("child-leaf1", "child-leaf2").Build()
	bld := NewBuilder[string](Stable)
	bld.AddDirect("a", "b")
	if _, err := bld.AddTransitive(child); err != nil {
		t.Fatalf("AddTransitive: %v", err)
	}
	n, err := bld.Build()
	if err != nil {
		t.Fatalf("Build: %v", err)
	}

	leaves := n.GetLeaves()
	assertElementsEqual(t, leaves, []string{"a", "b"})

	nonLeaves := n.GetNonLeaves()
	if len(nonLeaves) != 1 || nonLeaves[0] != child {
		t.Errorf("GetNonLeaves() = %v, want [child] by identity", nonLeaves)
	}
}

func TestGetSingleOnNonSingletonErrors(t *testing.T) {
	bld := NewBuilder[string](Stable)
	bld.AddDirect("a", "b")
	n, err := bld.Build()
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if _, err := n.GetSingle(); err != ErrNotSingleton {
		t.Errorf("GetSingle() err = %v, want ErrNotSingleton", err)
	}
}

func TestToNodeHandleIdentity(t *testing.T) {
	a, _ := NewBuilder[string](Stable).AddDirect("a", "b").Build()
	b, _ := NewBuilder[string](Stable).AddDirect("a", "b").Build()

	if a.ToNode() != a.ToNode() {
		t.Error("handles from the same node must be equal")
	}
	if a.ToNode() == b.ToNode() {
		t.Error("handles from distinct nodes must differ, even with equal-looking content")
	}

	visited := map[NodeHandle[string]]struct{}{
		a.ToNode(): {},
	}
	if _, ok := visited[b.ToNode()]; ok {
		t.Error("map lookup by handle must use identity, not content")
	}
}

func TestStringRepr(t *testing.T) {
	n, _ := NewBuilder[string](Stable).AddDirect("a", "b").Build()
	s := n.String()
	if s == "" {
		t.Error("String() must not be empty")
	}
}
