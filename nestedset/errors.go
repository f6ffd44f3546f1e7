package nestedset

import "errors"

// ErrIncompatibleOrder is returned by a Builder when a transitive input's
// Order does not match the Builder's own Order. Mixing orders within one
// NestedSet is a programming error, caught here rather than silently
// accepted.
var ErrIncompatibleOrder = errors.New("nestedset: incompatible order between builder and transitive input")

// ErrInvalidElementShape is returned when a direct element's runtime
// representation collides with the internal array or opaque byte-string
// layout.
var ErrInvalidElementShape = errors.New("nestedset: element shape collides with internal representation")

// ErrNotSingleton is returned by GetSingle when called on a node that is
// not a singleton leaf.
var ErrNotSingleton = errors.New("nestedset: node is not a singleton")

// ErrMaxDegreeTooSmall is returned by SplitIfExceedsMaxDegree when asked
// to split into branches smaller than the minimum branch size of 2.
var ErrMaxDegreeTooSmall = errors.New("nestedset: max degree must be >= 2")
