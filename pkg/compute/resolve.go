package compute

import (
	"math/bits"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/bitutil"

	"github.com/grafana/gather/pkg/columnar"
)

// cumulativeLengths computes the start offset of every chunk, for resolving
// a flat index into a chunk with a binary search. The first element is always
// 0. The end of the last chunk is not stored: indices are known to be in
// bounds before they are resolved.
//
// cumulativeLengths panics if the total length overflows [columnar.IdxSize].
func cumulativeLengths(chunks []arrow.Array) []columnar.IdxSize {
	cumlens := make([]columnar.IdxSize, 0, len(chunks))

	var sum columnar.IdxSize
	for _, chunk := range chunks {
		cumlens = append(cumlens, sum)
		sum = addLength(sum, chunk.Len())
	}
	return cumlens
}

// addLength adds n to sum, panicking instead of wrapping around. A wrapped
// length would resolve every subsequent index to the wrong chunk.
func addLength(sum columnar.IdxSize, n int) columnar.IdxSize {
	next, carry := bits.Add64(sum, uint64(n), 0)
	if carry != 0 {
		panic("compute: cumulative chunk length overflows the index type")
	}
	return next
}

// resolveChunkedIdx maps idx to the chunk containing it and the offset of idx
// within that chunk. The chunk is the last one whose start offset is <= idx,
// which skips over empty chunks. idx must be in bounds.
func resolveChunkedIdx(idx columnar.IdxSize, cumlens []columnar.IdxSize) (chunk, local int) {
	lo, hi := 0, len(cumlens)
	for lo < hi {
		mid := int(uint(lo+hi) >> 1)
		if cumlens[mid] <= idx {
			lo = mid + 1
		} else {
			hi = mid
		}
	}

	chunk = lo - 1
	return chunk, int(idx - cumlens[chunk])
}

// targetChunks is a target column prepared for gathering.
type targetChunks struct {
	chunks   []arrow.Array
	cumlens  []columnar.IdxSize // nil for single-chunk targets.
	hasNulls bool
}

func newTargetChunks(col *columnar.Column) *targetChunks {
	t := &targetChunks{
		chunks:   col.Chunks(),
		hasNulls: col.NullN() > 0,
	}
	if len(t.chunks) > 1 {
		t.cumlens = cumulativeLengths(t.chunks)
	}
	return t
}

// resolve maps idx to a chunk and an offset within it. Single-chunk targets
// skip the binary search.
func (t *targetChunks) resolve(idx columnar.IdxSize) (chunk, local int) {
	if t.cumlens == nil {
		return 0, int(idx)
	}
	return resolveChunkedIdx(idx, t.cumlens)
}

// indexChunk is one contiguous run of gather indices, from either a chunk of
// an index column or a plain slice.
type indexChunk struct {
	values []columnar.IdxSize

	// validity is nil when the run has no nulls. Otherwise, bit offset+k of
	// validity is the validity of values[k].
	validity []byte
	offset   int
}

func indexChunkOf(arr *array.Uint64) indexChunk {
	ic := indexChunk{values: arr.Uint64Values()}
	if arr.NullN() > 0 {
		ic.validity = arr.NullBitmapBytes()
		ic.offset = arr.Data().Offset()
	}
	return ic
}

func (ic indexChunk) hasNulls() bool { return ic.validity != nil }

func (ic indexChunk) isValid(k int) bool {
	return ic.validity == nil || bitutil.BitIsSet(ic.validity, ic.offset+k)
}
