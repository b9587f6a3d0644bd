package compute

import (
	"slices"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/bitutil"
	"github.com/apache/arrow-go/v18/arrow/memory"

	colmem "github.com/grafana/gather/pkg/memory"
)

// newOutputValidity creates the validity bitmap for gathering idx. Slots
// whose index is null start out unset and every other slot starts out set;
// gatherers clear the bits of slots that land on a null target value.
func newOutputValidity(alloc memory.Allocator, idx indexChunk) colmem.Bitmap {
	n := len(idx.values)
	validity := colmem.NewBitmap(alloc, n)

	switch {
	case n == 0:
		return validity

	case !idx.hasNulls():
		// Nulls can only come from the target.
		validity.AppendCount(true, n)
		return validity

	default:
		validity.Resize(n)
		bitutil.CopyBitmap(idx.validity, idx.offset, n, validity.Bytes(), 0)
		return validity
	}
}

// makeArray assembles a gathered chunk of n elements from its buffers. If
// validity is nil, the chunk has no validity bitmap. The buffers are retained
// by the returned array.
func makeArray(dtype arrow.DataType, n int, validity *colmem.Bitmap, buffers ...*memory.Buffer) arrow.Array {
	var (
		validityBuf *memory.Buffer
		nulls       int
	)
	if validity != nil {
		validityBuf = validity.Buffer()
		nulls = n - validity.SetCount()
	}

	data := array.NewData(dtype, n, append([]*memory.Buffer{validityBuf}, buffers...), nil, nulls, 0)
	defer data.Release()
	return array.MakeFromData(data)
}

// dropValidity replaces arr with an equivalent array without a validity
// bitmap. Arrow builders always allocate a bitmap; dropValidity is used when
// a gathered chunk is known to be dense. arr is released.
func dropValidity(arr arrow.Array) arrow.Array {
	data := arr.Data()
	if data.NullN() != 0 || len(data.Buffers()) == 0 || data.Buffers()[0] == nil {
		return arr
	}
	defer arr.Release()

	buffers := slices.Clone(data.Buffers())
	buffers[0] = nil

	dense := array.NewData(data.DataType(), data.Len(), buffers, data.Children(), 0, data.Offset())
	defer dense.Release()
	return array.MakeFromData(dense)
}
