package nestedset

import (
	"context"
	"testing"
	"time"
)

func build(t *testing.T, order Order, direct []string, transitive ...*Node[string]) *Node[string] {
	t.Helper()
	bld := NewBuilder[string](order)
	bld.AddDirect(direct...)
	if len(transitive) > 0 {
		if _, err := bld.AddTransitive(transitive...); err != nil {
			t.Fatalf("AddTransitive: %v", err)
		}
	}
	n, err := bld.Build()
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	return n
}

func TestFlattenStableOrderTransitiveFirst(t *testing.T) {
	child := build(t, Stable, []string{"b1", "b2"})
	n := build(t, Stable, []string{"a1", "a2"}, child)
	assertElementsEqual(t, n.ToList(), []string{"b1", "b2", "a1", "a2"})
}

func TestFlattenNaiveLinkDirectFirst(t *testing.T) {
	child := build(t, NaiveLink, []string{"b1", "b2"})
	n := build(t, NaiveLink, []string{"a1", "a2"}, child)
	assertElementsEqual(t, n.ToList(), []string{"a1", "a2", "b1", "b2"})
}

func TestFlattenLinkReversesInputsAndOutput(t *testing.T) {
	child := build(t, Link, []string{"b1", "b2"})
	n := build(t, Link, []string{"a1", "a2"}, child)
	// Link: inputs reversed (direct: a2,a1; transitive: child), then
	// postorder visited (transitive before direct), producing
	// child.ToList() ++ [a2, a1], then the whole thing reversed.
	assertElementsEqual(t, n.ToList(), []string{"a1", "a2", "b2", "b1"})
}

func TestFlattenStableDedupsAcrossTransitiveSets(t *testing.T) {
	cd := build(t, Stable, []string{"c", "d"})
	de := build(t, Stable, []string{"d", "e"})
	n := build(t, Stable, []string{"a", "b"}, cd, de)
	// Transitive sets first, left to right, with "d" emitted only at its
	// first encounter; direct elements last.
	assertElementsEqual(t, n.ToList(), []string{"c", "d", "e", "a", "b"})
}

func TestFlattenDedupsAcrossChildAndParent(t *testing.T) {
	child := build(t, Stable, []string{"shared", "only-in-child"})
	n := build(t, Stable, []string{"shared", "only-in-parent"}, child)
	assertElementsEqual(t, n.ToList(), []string{"shared", "only-in-child", "only-in-parent"})
}

func TestFlattenIsMemoizedAndStable(t *testing.T) {
	child := build(t, Stable, []string{"x", "y"})
	n := build(t, Stable, []string{"z"}, child)

	first := n.ToList()
	second := n.ToList()
	assertElementsEqual(t, first, second)

	// Mutating the slice returned by ToList must not affect the memo:
	// ToList always hands back a fresh copy.
	first[0] = "mutated"
	third := n.ToList()
	assertElementsEqual(t, third, second)
}

func TestFlattenAllLeavesSkipsMemoBitfield(t *testing.T) {
	n := build(t, Stable, []string{"a", "b", "c"})
	if !n.noMemo {
		t.Fatal("branch with only leaf successors should be marked noMemo")
	}
	assertElementsEqual(t, n.ToList(), []string{"a", "b", "c"})
	if n.memo != nil {
		t.Error("all-leaves branch must not allocate a memo bitfield")
	}
	if n.cachedSize != 3 {
		t.Errorf("cachedSize = %d, want 3", n.cachedSize)
	}
}

func TestFlattenAllLeavesLinkStillReversesOnce(t *testing.T) {
	// Link stores its direct inputs reversed, so the no-bitfield fast
	// path must still apply the single output reversal.
	n := build(t, Link, []string{"a", "b", "c"})
	if !n.noMemo {
		t.Fatal("branch with only leaf successors should be marked noMemo")
	}
	assertElementsEqual(t, n.ToList(), []string{"a", "b", "c"})
}

func TestFlattenSizeMatchesListLength(t *testing.T) {
	child := build(t, Stable, []string{"x", "y", "x"})
	n := build(t, Stable, []string{"z", "x"}, child)
	list, size := n.MemoizedFlattenAndGetSize()
	if size != len(list) {
		t.Errorf("size %d != len(list) %d", size, len(list))
	}
}

func TestToListWithContextRespectsCancellation(t *testing.T) {
	child := build(t, Stable, []string{"x"})
	n := build(t, Stable, []string{"y"}, child)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := n.ToListWithContext(ctx)
	if err == nil {
		t.Error("expected an error from an already-cancelled context")
	}
}

func TestToListWithTimeoutSucceedsWellWithinBound(t *testing.T) {
	child := build(t, Stable, []string{"x"})
	n := build(t, Stable, []string{"y"}, child)

	list, err := n.ToListWithTimeout(time.Second)
	if err != nil {
		t.Fatalf("ToListWithTimeout: %v", err)
	}
	assertElementsEqual(t, list, n.ToList())
}

func TestToListWithTimeoutExpires(t *testing.T) {
	n := build(t, Stable, []string{"x"})
	_, err := n.ToListWithTimeout(0)
	if err == nil {
		t.Error("expected an error from a zero-duration timeout")
	}
}

func TestToListOrDieReturnsOnUncancelledContext(t *testing.T) {
	child := build(t, Stable, []string{"x"})
	n := build(t, Stable, []string{"y"}, child)

	list := n.ToListOrDie(context.Background())
	assertElementsEqual(t, list, n.ToList())
}

func TestForEachElementWithoutPredicateVisitsAll(t *testing.T) {
	child := build(t, Stable, []string{"b1", "b2"})
	n := build(t, Stable, []string{"a1"}, child)

	var visited []string
	n.ForEachElement(nil, func(e string) {
		visited = append(visited, e)
	})
	assertElementsEqual(t, visited, n.ToList())
}

func TestForEachElementPrunesSubtree(t *testing.T) {
	pruned := build(t, Stable, []string{"hidden1", "hidden2"})
	kept := build(t, Stable, []string{"shown1"})
	n := build(t, Stable, []string{"top"}, pruned, kept)

	var visited []string
	n.ForEachElement(func(child *Node[string]) bool {
		return child != pruned
	}, func(e string) {
		visited = append(visited, e)
	})

	for _, e := range visited {
		if e == "hidden1" || e == "hidden2" {
			t.Errorf("pruned subtree element %q was visited", e)
		}
	}
	found := false
	for _, e := range visited {
		if e == "shown1" {
			found = true
		}
	}
	if !found {
		t.Error("expected non-pruned subtree element \"shown1\" to be visited")
	}
}
