package columnar

// IsSorted is a cached hint describing the order of a column's elements.
type IsSorted int8

const (
	// SortedNot indicates the column has no known order. It is the zero
	// value.
	SortedNot IsSorted = iota

	// SortedAscending indicates elements are in non-decreasing order.
	SortedAscending

	// SortedDescending indicates elements are in non-increasing order.
	SortedDescending
)

// String returns a human-readable name for s.
func (s IsSorted) String() string {
	switch s {
	case SortedNot:
		return "not"
	case SortedAscending:
		return "ascending"
	case SortedDescending:
		return "descending"
	default:
		return "IsSorted(unknown)"
	}
}

// Reverse returns the hint of a column whose order is reversed: ascending
// becomes descending and vice versa.
func (s IsSorted) Reverse() IsSorted {
	switch s {
	case SortedAscending:
		return SortedDescending
	case SortedDescending:
		return SortedAscending
	default:
		return SortedNot
	}
}
