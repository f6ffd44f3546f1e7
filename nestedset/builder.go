package nestedset

// Builder constructs NestedSet nodes from direct elements and transitive
// child sets. A Builder is reusable: calling Build does not consume its
// accumulated direct/transitive inputs, so additional elements can be
// added and Build called again to produce a further, independent node.
type Builder[E comparable] struct {
	order      Order
	direct     []E
	transitive []*Node[E]
}

// NewBuilder returns a Builder that will construct nodes with the given
// Order.
func NewBuilder[E comparable](order Order) *Builder[E] {
	return &Builder[E]{order: order}
}

// AddDirect appends direct elements, to the right of any already added.
func (b *Builder[E]) AddDirect(elems ...E) *Builder[E] {
	b.direct = append(b.direct, elems...)
	return b
}

// AddTransitive appends transitive child sets, to the right of any
// already added. Returns ErrIncompatibleOrder immediately if any child's
// Order does not match the Builder's Order: mixing orders is a
// programming error, caught here rather than tolerated.
func (b *Builder[E]) AddTransitive(children ...*Node[E]) (*Builder[E], error) {
	for _, c := range children {
		if c == nil {
			continue
		}
		if c.IsEmpty() {
			continue
		}
		if !b.order.IsCompatible(c.order) {
			return b, ErrIncompatibleOrder
		}
	}
	b.transitive = append(b.transitive, children...)
	return b, nil
}

// Build constructs the NestedSet node:
//
//  1. Direct elements and hoisted singletons are deduplicated against
//     each other with an ephemeral hash set (never across branch
//     boundaries).
//  2. Branch-shaped transitive children are kept as child-node
//     successors; singleton-leaf transitive children are hoisted and
//     treated as direct elements for dedup purposes; empty transitive
//     children contribute nothing.
//  3. For Order.NaiveLink, direct elements are visited before
//     transitive children; otherwise transitive children are visited
//     first. For Order.Link, both input collections are iterated in
//     reverse.
//  4. If the result has exactly one logical successor, that successor
//     is returned directly (structure sharing) rather than a
//     newly-allocated singleton wrapper. If zero, the canonical empty
//     node is returned.
func (b *Builder[E]) Build() (*Node[E], error) {
	type slot struct {
		leaf    E
		child   *Node[E]
		isLeafS bool
	}

	seen := make(map[E]struct{}, len(b.direct))
	var slots []slot
	depth := 0

	addDirect := func(e E) error {
		if err := checkElementShape(e); err != nil {
			return err
		}
		if _, dup := seen[e]; dup {
			return nil
		}
		seen[e] = struct{}{}
		slots = append(slots, slot{leaf: e, isLeafS: true})
		// A leaf successor has depth 1, so it lifts a branch to 1+1.
		if depth < 2 {
			depth = 2
		}
		return nil
	}

	addTransitive := func(child *Node[E]) error {
		if child == nil || child.IsEmpty() {
			return nil
		}
		if child.IsSingleton() {
			e, _ := child.GetSingle()
			return addDirect(e)
		}
		// Branch child: kept as a successor reference; duplicate
		// transitive subgraphs are NOT eliminated here, only pruned later
		// during flatten.
		slots = append(slots, slot{child: child})
		if d := 1 + child.Depth(); d > depth {
			depth = d
		}
		return nil
	}

	directSeq := b.direct
	transitiveSeq := b.transitive
	if b.order.reverseInputs() {
		directSeq = reversed(directSeq)
		transitiveSeq = reversedPtr(transitiveSeq)
	}

	if b.order.visitDirectFirst() {
		for _, e := range directSeq {
			if err := addDirect(e); err != nil {
				return nil, err
			}
		}
		for _, c := range transitiveSeq {
			if err := addTransitive(c); err != nil {
				return nil, err
			}
		}
	} else {
		for _, c := range transitiveSeq {
			if err := addTransitive(c); err != nil {
				return nil, err
			}
		}
		for _, e := range directSeq {
			if err := addDirect(e); err != nil {
				return nil, err
			}
		}
	}

	switch len(slots) {
	case 0:
		return empty[E](b.order), nil
	case 1:
		s := slots[0]
		if s.isLeafS {
			return singleton[E](b.order, s.leaf), nil
		}
		return s.child, nil
	}

	successors := make([]successor[E], len(slots))
	allLeaves := true
	for i, s := range slots {
		successors[i] = successor[E]{leaf: s.leaf, child: s.child, isLeafS: s.isLeafS}
		if !s.isLeafS {
			allLeaves = false
		}
	}

	return &Node[E]{
		order:      b.order,
		k:          kindBranch,
		successors: successors,
		depth:      depth,
		noMemo:     allLeaves,
	}, nil
}

func reversed[E any](in []E) []E {
	out := make([]E, len(in))
	for i, v := range in {
		out[len(in)-1-i] = v
	}
	return out
}

func reversedPtr[E comparable](in []*Node[E]) []*Node[E] {
	out := make([]*Node[E], len(in))
	for i, v := range in {
		out[len(in)-1-i] = v
	}
	return out
}

// Union is a convenience constructor equivalent to building a node whose
// only successors are a and b (both treated as transitive children).
// It is an O(1) operation: no elements are copied or flattened.
func Union[E comparable](order Order, a, b *Node[E]) (*Node[E], error) {
	bld := NewBuilder[E](order)
	if _, err := bld.AddTransitive(a, b); err != nil {
		return nil, err
	}
	return bld.Build()
}
