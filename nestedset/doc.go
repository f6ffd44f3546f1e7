// Package nestedset provides an immutable, structurally shared DAG
// representation of ordered multisets ("nested sets" / Bazel-style
// depsets), used to propagate transitive information — e.g. compile
// inputs — between build targets.
//
// A NestedSet supports O(1) union (a new branch node referencing its
// inputs as successors), a lazily computed and memoized flatten, and
// four traversal orders that determine how direct and transitive
// elements interleave in the flattened result.
//
// Nodes are immutable after construction; the only mutable state is a
// per-node traversal memo, guarded by a per-node lock and written
// exactly once.
package nestedset
