package compute

import "errors"

var (
	// ErrOutOfBounds is returned by checked gathers when any non-null index
	// is greater than or equal to the length of the target. The error
	// carries no per-index detail.
	ErrOutOfBounds = errors.New("gather indices are out of bounds")

	// ErrIndexType is returned when an index column is not of
	// [columnar.IndexType].
	ErrIndexType = errors.New("invalid index type")
)
