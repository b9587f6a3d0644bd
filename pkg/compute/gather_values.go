package compute

import (
	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/memory"
)

// valueArray is an Arrow array with typed element access.
type valueArray[T any] interface {
	arrow.Array
	Value(i int) T
}

// valueBuilder is an Arrow builder accepting typed elements.
type valueBuilder[T any] interface {
	array.Builder
	Append(v T)
}

// gatherValues gathers types that can't be copied as fixed-width values,
// such as booleans and offset-encoded binary, through their element accessors
// and builders. A is the array type of dtype and B its builder type.
func gatherValues[T any, A valueArray[T], B valueBuilder[T]](alloc memory.Allocator, dtype arrow.DataType, tgt *targetChunks, idx indexChunk) arrow.Array {
	arrs := make([]A, len(tgt.chunks))
	for c, chunk := range tgt.chunks {
		arrs[c] = chunk.(A)
	}

	builder := array.NewBuilder(alloc, dtype).(B)
	defer builder.Release()
	builder.Reserve(len(idx.values))

	dense := !tgt.hasNulls && !idx.hasNulls()

	for k, i := range idx.values {
		if !idx.isValid(k) {
			builder.AppendNull()
			continue
		}

		c, l := tgt.resolve(i)
		if arr := arrs[c]; tgt.hasNulls && arr.IsNull(l) {
			builder.AppendNull()
		} else {
			builder.Append(arr.Value(l))
		}
	}

	out := builder.NewArray()
	if dense {
		return dropValidity(out)
	}
	return out
}

// gatherNull gathers from a target of the null type. Every gathered element
// is null regardless of idx.
func gatherNull(_ memory.Allocator, _ arrow.DataType, _ *targetChunks, idx indexChunk) arrow.Array {
	return array.NewNull(len(idx.values))
}

// valuesGatherFunc returns the accessor-based gatherer for dtype, or nil if
// dtype is gathered some other way.
func valuesGatherFunc(dtype arrow.DataType) chunkGatherFunc {
	switch dtype.ID() {
	case arrow.NULL:
		return gatherNull
	case arrow.BOOL:
		return gatherValues[bool, *array.Boolean, *array.BooleanBuilder]
	case arrow.STRING:
		return gatherValues[string, *array.String, *array.StringBuilder]
	case arrow.LARGE_STRING:
		return gatherValues[string, *array.LargeString, *array.LargeStringBuilder]
	case arrow.BINARY:
		return gatherValues[[]byte, *array.Binary, *array.BinaryBuilder]
	case arrow.LARGE_BINARY:
		return gatherValues[[]byte, *array.LargeBinary, *array.BinaryBuilder]
	default:
		return nil
	}
}
