package compute

import (
	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/memory"

	colmem "github.com/grafana/gather/pkg/memory"
)

// chunkGatherFunc gathers the elements of tgt selected by idx into a single
// new chunk of type dtype. Every non-null index in idx must be in bounds.
type chunkGatherFunc func(alloc memory.Allocator, dtype arrow.DataType, tgt *targetChunks, idx indexChunk) arrow.Array

// fixedGatherFunc returns a gatherer for flat fixed-width types, which are
// gathered by copying raw values of their byte width. Types which share a
// width share an implementation.
func fixedGatherFunc(dtype arrow.FixedWidthDataType) chunkGatherFunc {
	switch width := dtype.BitWidth() / 8; width {
	case 1:
		return gatherFixed[uint8]
	case 2:
		return gatherFixed[uint16]
	case 4:
		return gatherFixed[uint32]
	case 8:
		return gatherFixed[uint64]
	case 16:
		return gatherFixed[[16]byte]
	case 32:
		return gatherFixed[[32]byte]
	default:
		return func(alloc memory.Allocator, dtype arrow.DataType, tgt *targetChunks, idx indexChunk) arrow.Array {
			return gatherFixedBytes(alloc, dtype, width, tgt, idx)
		}
	}
}

// gatherFixed gathers a flat fixed-width type whose values are exactly the
// size of T.
func gatherFixed[T any](alloc memory.Allocator, dtype arrow.DataType, tgt *targetChunks, idx indexChunk) arrow.Array {
	values := make([][]T, len(tgt.chunks))
	for c, chunk := range tgt.chunks {
		data := chunk.Data()
		values[c] = colmem.Values[T](data.Buffers()[1], data.Offset(), data.Len())
	}

	n := len(idx.values)
	buf, out := colmem.NewValuesBuffer[T](alloc, n)
	defer buf.Release()

	if !tgt.hasNulls && !idx.hasNulls() {
		if len(values) == 1 {
			src := values[0]
			for k, i := range idx.values {
				out[k] = src[i]
			}
		} else {
			for k, i := range idx.values {
				c, l := resolveChunkedIdx(i, tgt.cumlens)
				out[k] = values[c][l]
			}
		}
		return makeArray(dtype, n, nil, buf)
	}

	validity := newOutputValidity(alloc, idx)
	defer validity.Release()

	var zero T
	for k, i := range idx.values {
		if !idx.isValid(k) {
			out[k] = zero
			continue
		}

		c, l := tgt.resolve(i)
		if tgt.hasNulls && tgt.chunks[c].IsNull(l) {
			validity.Set(k, false)
			out[k] = zero
			continue
		}
		out[k] = values[c][l]
	}
	return makeArray(dtype, n, &validity, buf)
}

// gatherFixedBytes gathers a flat fixed-width type of any byte width, such as
// fixed-size binary, by copying width bytes per element.
func gatherFixedBytes(alloc memory.Allocator, dtype arrow.DataType, width int, tgt *targetChunks, idx indexChunk) arrow.Array {
	values := make([][]byte, len(tgt.chunks))
	for c, chunk := range tgt.chunks {
		data := chunk.Data()
		values[c] = colmem.Values[byte](data.Buffers()[1], data.Offset()*width, data.Len()*width)
	}

	n := len(idx.values)
	buf, out := colmem.NewValuesBuffer[byte](alloc, n*width)
	defer buf.Release()

	var validity *colmem.Bitmap
	if tgt.hasNulls || idx.hasNulls() {
		bmap := newOutputValidity(alloc, idx)
		defer bmap.Release()
		validity = &bmap
	}

	for k, i := range idx.values {
		dst := out[k*width : (k+1)*width]
		if !idx.isValid(k) {
			clear(dst)
			continue
		}

		c, l := tgt.resolve(i)
		if tgt.hasNulls && tgt.chunks[c].IsNull(l) {
			validity.Set(k, false)
			clear(dst)
			continue
		}
		copy(dst, values[c][l*width:(l+1)*width])
	}
	return makeArray(dtype, n, validity, buf)
}
