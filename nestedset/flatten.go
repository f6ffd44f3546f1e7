package nestedset

import (
	"context"
	"os"
	"time"
)

// ExitCodeInterrupted is the process exit code ToListOrDie uses when it
// is interrupted before it can finish flattening (a dedicated
// INTERRUPTED exit code, distinct from the process's standard top-level
// interrupt exit).
const ExitCodeInterrupted = 130

// ToList returns this node's elements flattened into a single slice,
// honoring the node's Order. The first call for a given node computes
// and memoizes the result; subsequent calls (from any goroutine, on
// this node or on any node that shares it as a successor) replay the
// memo without recomputation.
//
// The memo is local to each node: it records, per successor slot,
// whether that slot contributed any new element the first time this
// node was flattened. Because that decision only depends on this
// node's own successors — never on which ancestor is asking — it is
// valid to compute once and reuse forever, independent of call
// context.
func (n *Node[E]) ToList() []E {
	n.ensureMemo()
	out := make([]E, len(n.cachedLeaves))
	copy(out, n.cachedLeaves)
	return out
}

// ToListWithContext is the cancellation-propagating entry point: it
// returns ctx.Err() instead of a result if ctx is already cancelled
// before (or becomes cancelled during) flattening a node this call
// needed to descend into for the first time. ctx is checked on entry
// even when this node's memo is already populated; after that, a
// populated memo is replayed without checking ctx again.
func (n *Node[E]) ToListWithContext(ctx context.Context) ([]E, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := n.ensureMemoWithContext(ctx); err != nil {
		return nil, err
	}
	out := make([]E, len(n.cachedLeaves))
	copy(out, n.cachedLeaves)
	return out, nil
}

// ToListWithTimeout is ToListWithContext with a bound of d on how long
// flattening may take, for callers that know how long they're willing
// to wait but don't already hold a context.
func (n *Node[E]) ToListWithTimeout(d time.Duration) ([]E, error) {
	ctx, cancel := context.WithTimeout(context.Background(), d)
	defer cancel()
	return n.ToListWithContext(ctx)
}

// ToListOrDie is the crash-on-interrupt entry point for callers in
// non-interruptible contexts: it flattens under ctx and, if cancelled
// before finishing, terminates the process with ExitCodeInterrupted
// rather than returning an error the caller has no safe way to
// propagate. It never returns on the cancelled path.
//
// In this representation a Node only ever holds Empty, Leaf, or Branch
// successors — there is no pending-deserialization variant for
// cancellation to interrupt mid-await — so in practice ToListOrDie only
// ever observes ctx's own deadline/cancellation, never a stall inside
// someone else's future.
func (n *Node[E]) ToListOrDie(ctx context.Context) []E {
	out, err := n.ToListWithContext(ctx)
	if err != nil {
		os.Exit(ExitCodeInterrupted)
	}
	return out
}

// MemoizedFlattenAndGetSize returns the flattened list alongside its
// length, without a second pass over the result: size is cached
// alongside the memo itself.
func (n *Node[E]) MemoizedFlattenAndGetSize() ([]E, int) {
	n.ensureMemo()
	out := make([]E, len(n.cachedLeaves))
	copy(out, n.cachedLeaves)
	return out, n.cachedSize
}

// Size returns the number of distinct elements this node flattens to.
// It forces memoization if not already computed.
func (n *Node[E]) Size() int {
	n.ensureMemo()
	return n.cachedSize
}

func (n *Node[E]) ensureMemo() {
	n.memoMu.Lock()
	defer n.memoMu.Unlock()
	if n.memoDone {
		return
	}
	n.computeMemoLocked()
}

func (n *Node[E]) ensureMemoWithContext(ctx context.Context) error {
	n.memoMu.Lock()
	defer n.memoMu.Unlock()
	if n.memoDone {
		return nil
	}
	for _, s := range n.successors {
		if !s.isLeafS {
			if err := ctx.Err(); err != nil {
				return err
			}
			if _, err := s.child.ToListWithContext(ctx); err != nil {
				return err
			}
		}
	}
	n.computeMemoLocked()
	return nil
}

// computeMemoLocked must be called with memoMu held and memoDone false.
func (n *Node[E]) computeMemoLocked() {
	switch n.k {
	case kindEmpty:
		n.memoDone = true
		return
	case kindLeaf:
		n.cachedLeaves = []E{n.leaf}
		n.cachedSize = 1
		n.memoDone = true
		return
	}

	if n.noMemo {
		// Every successor is a leaf and construction already
		// deduplicated them: no bitfield, no dedup pass.
		leaves := make([]E, len(n.successors))
		for i, s := range n.successors {
			leaves[i] = s.leaf
		}
		if n.reverseOnFlatten() {
			reverseInPlace(leaves)
		}
		n.cachedLeaves = leaves
		n.cachedSize = len(leaves)
		n.memoDone = true
		return
	}

	seen := make(map[E]struct{}, len(n.successors))
	leaves := make([]E, 0, len(n.successors))
	memo := make([]bool, len(n.successors))

	for i, s := range n.successors {
		if s.isLeafS {
			if _, dup := seen[s.leaf]; dup {
				continue
			}
			seen[s.leaf] = struct{}{}
			leaves = append(leaves, s.leaf)
			memo[i] = true
			continue
		}
		childLeaves := s.child.ToList()
		wroteAny := false
		for _, e := range childLeaves {
			if _, dup := seen[e]; dup {
				continue
			}
			seen[e] = struct{}{}
			leaves = append(leaves, e)
			wroteAny = true
		}
		memo[i] = wroteAny
	}

	if n.reverseOnFlatten() {
		reverseInPlace(leaves)
	}

	n.memo = memo
	n.cachedLeaves = leaves
	n.cachedSize = len(leaves)
	n.memoDone = true
}

func reverseInPlace[E any](s []E) {
	for i, j := 0, len(s)-1; i < j; i, j = i+1, j-1 {
		s[i], s[j] = s[j], s[i]
	}
}

// ForEachElement visits distinct elements of this node's flattened set,
// calling visitor once per element. With a nil descendPredicate it
// flattens through the memo (computing it if needed) and replays the
// cached leaf list in ToList order, with no dedup set of its own.
// With a non-nil descendPredicate it walks the DAG directly, neither
// reading nor computing the memo, and tracks visited elements in a
// fresh set: the predicate is consulted before descending into each
// transitive child successor, and returning false prunes that entire
// subtree from the walk (its elements are skipped even if unique).
// That walk emits each element at its first encounter in slot order,
// or in reverse slot order at every level under Link; under Link with
// transitive children this order can differ from ToList's.
func (n *Node[E]) ForEachElement(descendPredicate func(*Node[E]) bool, visitor func(E)) {
	if descendPredicate == nil {
		n.ensureMemo()
		for _, e := range n.cachedLeaves {
			visitor(e)
		}
		return
	}
	seen := make(map[E]struct{})
	n.forEachElementPruned(descendPredicate, visitor, seen)
}

func (n *Node[E]) forEachElementPruned(descend func(*Node[E]) bool, visitor func(E), seen map[E]struct{}) {
	switch n.k {
	case kindEmpty:
		return
	case kindLeaf:
		if _, dup := seen[n.leaf]; !dup {
			seen[n.leaf] = struct{}{}
			visitor(n.leaf)
		}
		return
	}

	visit := func(s successor[E]) {
		if s.isLeafS {
			if _, dup := seen[s.leaf]; !dup {
				seen[s.leaf] = struct{}{}
				visitor(s.leaf)
			}
			return
		}
		if !descend(s.child) {
			return
		}
		s.child.forEachElementPruned(descend, visitor, seen)
	}

	if n.reverseOnFlatten() {
		for i := len(n.successors) - 1; i >= 0; i-- {
			visit(n.successors[i])
		}
		return
	}
	for _, s := range n.successors {
		visit(s)
	}
}
