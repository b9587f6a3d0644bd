package compute

import (
	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/memory"

	colmem "github.com/grafana/gather/pkg/memory"
)

// gatherView gathers view-encoded binary and string types by copying their
// 16-byte view headers. Payload bytes are never copied: the output references
// the data buffers of every target chunk.
//
// Data buffers of all chunks are concatenated in chunk order, so a header
// from chunk c which points into a data buffer has its buffer index shifted
// by the number of data buffers in chunks before c. Inline headers carry
// their payload and are copied as is.
func gatherView(alloc memory.Allocator, dtype arrow.DataType, tgt *targetChunks, idx indexChunk) arrow.Array {
	var (
		headers = make([][]arrow.ViewHeader, len(tgt.chunks))
		bases   = make([]int32, len(tgt.chunks))

		dataBuffers []*memory.Buffer
	)
	for c, chunk := range tgt.chunks {
		data := chunk.Data()
		headers[c] = colmem.Values[arrow.ViewHeader](data.Buffers()[1], data.Offset(), data.Len())
		bases[c] = int32(len(dataBuffers))
		dataBuffers = append(dataBuffers, data.Buffers()[2:]...)
	}

	n := len(idx.values)
	buf, out := colmem.NewValuesBuffer[arrow.ViewHeader](alloc, n)
	defer buf.Release()

	var validity *colmem.Bitmap
	if tgt.hasNulls || idx.hasNulls() {
		bmap := newOutputValidity(alloc, idx)
		defer bmap.Release()
		validity = &bmap
	}

	for k, i := range idx.values {
		if !idx.isValid(k) {
			out[k] = arrow.ViewHeader{}
			continue
		}

		c, l := tgt.resolve(i)
		if tgt.hasNulls && tgt.chunks[c].IsNull(l) {
			validity.Set(k, false)
			out[k] = arrow.ViewHeader{}
			continue
		}

		header := headers[c][l]
		if base := bases[c]; base != 0 && !header.IsInline() {
			header.SetIndexOffset(header.BufferIndex()+base, header.BufferOffset())
		}
		out[k] = header
	}

	return makeArray(dtype, n, validity, append([]*memory.Buffer{buf}, dataBuffers...)...)
}
