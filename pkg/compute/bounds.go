package compute

import (
	"fmt"
	"math/bits"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"

	"github.com/grafana/gather/pkg/columnar"
	colmem "github.com/grafana/gather/pkg/memory"
)

// boundsBlockSize is the number of indices validated per block. Within a
// block, validation is branch-free.
const boundsBlockSize = 32

// CheckBounds returns [ErrOutOfBounds] if any of indices is greater than or
// equal to n.
func CheckBounds(indices []columnar.IdxSize, n columnar.IdxSize) error {
	for start := 0; start < len(indices); start += boundsBlockSize {
		block := indices[start:min(start+boundsBlockSize, len(indices))]

		var largest columnar.IdxSize
		for _, idx := range block {
			largest = max(largest, idx)
		}
		if largest >= n {
			return ErrOutOfBounds
		}
	}
	return nil
}

// CheckBoundsNulls returns [ErrOutOfBounds] if any non-null element of
// indices is greater than or equal to n. The values of null slots are never
// checked.
func CheckBoundsNulls(indices *array.Uint64, n columnar.IdxSize) error {
	var (
		values   = indices.Uint64Values()
		validity = indices.NullBitmapBytes()
		offset   = indices.Data().Offset()
	)
	if indices.NullN() == 0 {
		validity = nil
	}

	for start := 0; start < len(values); start += boundsBlockSize {
		block := values[start:min(start+boundsBlockSize, len(values))]

		// Bit i of inBounds is set iff block[i] < n; the borrow of x-n is 1
		// exactly when x < n.
		var inBounds uint32
		for i, x := range block {
			_, borrow := bits.Sub64(x, n, 0)
			inBounds |= uint32(borrow) << i
		}

		valid := uint32(uint64(1)<<len(block) - 1)
		if validity != nil {
			valid = colmem.Word32(validity, offset+start, len(block))
		}

		if valid&^inBounds != 0 {
			return ErrOutOfBounds
		}
	}
	return nil
}

// CheckBoundsColumn returns [ErrOutOfBounds] if any non-null element of the
// index column indices is greater than or equal to n. Chunks without nulls
// are validated with [CheckBounds] and chunks with nulls with
// [CheckBoundsNulls].
//
// CheckBoundsColumn returns an error wrapping [ErrIndexType] if indices is
// not an index column.
func CheckBoundsColumn(indices *columnar.Column, n columnar.IdxSize) error {
	if err := checkIndexType(indices); err != nil {
		return err
	}

	for _, chunk := range indices.Chunks() {
		arr := chunk.(*array.Uint64)

		var err error
		if arr.NullN() == 0 {
			err = CheckBounds(arr.Uint64Values(), n)
		} else {
			err = CheckBoundsNulls(arr, n)
		}
		if err != nil {
			return err
		}
	}
	return nil
}

func checkIndexType(indices *columnar.Column) error {
	if got := indices.DataType(); !arrow.TypeEqual(got, columnar.IndexType) {
		return fmt.Errorf("%w: got %s, expected %s", ErrIndexType, got, columnar.IndexType)
	}
	return nil
}
