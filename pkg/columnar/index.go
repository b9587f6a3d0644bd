package columnar

import (
	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/memory"

	colmem "github.com/grafana/gather/pkg/memory"
)

// IdxSize is the type of an index into a column.
type IdxSize = uint64

// IndexType is the Arrow data type of index columns.
var IndexType arrow.DataType = arrow.PrimitiveTypes.Uint64

// NewIndexColumn builds a single-chunk index column from values. If valid is
// non-nil, it must have the same length as values, and values[i] is null
// where valid[i] is false.
//
// The returned column must be released by the caller.
func NewIndexColumn(alloc memory.Allocator, name string, values []IdxSize, valid []bool) *Column {
	builder := array.NewUint64Builder(alloc)
	defer builder.Release()

	builder.AppendValues(values, valid)

	arr := builder.NewUint64Array()
	defer arr.Release()

	return FromArray(name, arr)
}

// NewIndexColumnFromChunks builds an index column from one or more index
// chunks, each of which must be a [*array.Uint64]. Chunks are retained.
func NewIndexColumnFromChunks(name string, chunks ...arrow.Array) *Column {
	return NewColumn(name, IndexType, chunks...)
}

// IndexColumnFromSlice wraps values in a single-chunk index column without
// copying. values must not be modified while the column is in use.
//
// The returned column must be released by the caller.
func IndexColumnFromSlice(name string, values []IdxSize) *Column {
	buf := colmem.BufferFrom(values)
	defer buf.Release()

	data := array.NewData(IndexType, len(values), []*memory.Buffer{nil, buf}, nil, 0, 0)
	defer data.Release()

	arr := array.MakeFromData(data)
	defer arr.Release()

	return FromArray(name, arr)
}
