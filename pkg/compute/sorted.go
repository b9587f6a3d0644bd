package compute

import "github.com/grafana/gather/pkg/columnar"

// UpdateGatherSortedFlag returns the sortedness of the result of gathering a
// target with sortedness target using indices with sortedness index.
//
// Gathering with ascending indices preserves the order of the target, and
// descending indices reverse it. Nothing is known if either input is unsorted.
func UpdateGatherSortedFlag(target, index columnar.IsSorted) columnar.IsSorted {
	switch target {
	case columnar.SortedAscending:
		return index
	case columnar.SortedDescending:
		return index.Reverse()
	default:
		return columnar.SortedNot
	}
}
