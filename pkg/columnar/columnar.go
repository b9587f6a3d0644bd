// Package columnar provides segmented columns over Arrow arrays.
//
// A [Column] is a logical array physically split into one or more Arrow
// chunks of the same data type. Chunks are reference counted and immutable;
// operations on a Column never modify the chunks of their inputs, which lets
// columns share buffers with each other through zero-copy slicing.
//
// Each Column also carries an [IsSorted] hint used by compute kernels to skip
// redundant sorting work. The hint is advisory and never verified.
package columnar

import (
	"fmt"
	"sort"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/memory"
)

// A Column is a named sequence of elements of the same data type, stored
// across one or more Arrow chunks.
//
// Columns must be released with [Column.Release] once they are no longer
// needed.
type Column struct {
	name   string
	dtype  arrow.DataType
	chunks []arrow.Array
	length int
	nulls  int
	sorted IsSorted
}

// NewColumn creates a new Column from chunks. Each chunk is retained by the
// column; callers keep ownership of their own references.
//
// NewColumn panics if a chunk's data type doesn't match dtype.
func NewColumn(name string, dtype arrow.DataType, chunks ...arrow.Array) *Column {
	col := &Column{
		name:   name,
		dtype:  dtype,
		chunks: make([]arrow.Array, 0, len(chunks)),
	}

	for i, chunk := range chunks {
		if !arrow.TypeEqual(chunk.DataType(), dtype) {
			panic(fmt.Sprintf("columnar: chunk %d has type %s, expected %s", i, chunk.DataType(), dtype))
		}

		chunk.Retain()
		col.chunks = append(col.chunks, chunk)
		col.length += chunk.Len()
		col.nulls += chunk.NullN()
	}

	return col
}

// FromArray creates a single-chunk Column from arr. arr is retained.
func FromArray(name string, arr arrow.Array) *Column {
	return NewColumn(name, arr.DataType(), arr)
}

// Name returns the name of the column.
func (c *Column) Name() string { return c.name }

// DataType returns the data type of every chunk in the column.
func (c *Column) DataType() arrow.DataType { return c.dtype }

// Len returns the total number of elements across all chunks.
func (c *Column) Len() int { return c.length }

// NullN returns the total number of null elements across all chunks.
func (c *Column) NullN() int { return c.nulls }

// NumChunks returns the number of chunks in the column.
func (c *Column) NumChunks() int { return len(c.chunks) }

// Chunk returns the chunk at index i. The returned array is owned by the
// column; callers must Retain it to use it past the column's lifetime.
func (c *Column) Chunk(i int) arrow.Array { return c.chunks[i] }

// Chunks returns all chunks of the column. The returned slice must not be
// modified.
func (c *Column) Chunks() []arrow.Array { return c.chunks }

// Sorted returns the cached sortedness hint of the column.
func (c *Column) Sorted() IsSorted { return c.sorted }

// SetSorted sets the cached sortedness hint of the column. The hint is not
// verified.
func (c *Column) SetSorted(sorted IsSorted) { c.sorted = sorted }

// Category returns the storage category of the column's data type.
func (c *Column) Category() (Category, error) { return CategoryOf(c.dtype) }

// IsNull reports whether the element at logical index i is null. IsNull
// panics if i is out of range.
func (c *Column) IsNull(i int) bool {
	if i < 0 || i >= c.length {
		panic(fmt.Sprintf("columnar: index %d out of range [0, %d)", i, c.length))
	}

	chunk, local := c.locate(i)
	return c.chunks[chunk].IsNull(local)
}

// locate maps a logical index to a chunk and an offset within it. i must be
// in range.
func (c *Column) locate(i int) (chunk, local int) {
	// Search for the first chunk whose end is past i; empty chunks are
	// skipped naturally since their end equals the previous end.
	end := 0
	ends := make([]int, len(c.chunks))
	for j, arr := range c.chunks {
		end += arr.Len()
		ends[j] = end
	}

	chunk = sort.SearchInts(ends, i+1)
	start := ends[chunk] - c.chunks[chunk].Len()
	return chunk, i - start
}

// Retain increases the reference count of every chunk in the column.
func (c *Column) Retain() {
	for _, chunk := range c.chunks {
		chunk.Retain()
	}
}

// Release decreases the reference count of every chunk in the column.
func (c *Column) Release() {
	for _, chunk := range c.chunks {
		chunk.Release()
	}
}

// Rechunk returns a copy of the column normalized to exactly one chunk. If
// the column already has a single chunk, the chunk is shared rather than
// copied. The sortedness hint is preserved.
//
// The returned column must be released by the caller.
func (c *Column) Rechunk(alloc memory.Allocator) (*Column, error) {
	var merged arrow.Array

	switch len(c.chunks) {
	case 0:
		merged = array.MakeArrayOfNull(alloc, c.dtype, 0)
	case 1:
		merged = c.chunks[0]
		merged.Retain()
	default:
		arr, err := array.Concatenate(c.chunks, alloc)
		if err != nil {
			return nil, fmt.Errorf("rechunk column %q: %w", c.name, err)
		}
		merged = arr
	}
	defer merged.Release()

	out := NewColumn(c.name, c.dtype, merged)
	out.sorted = c.sorted
	return out, nil
}

// Slice returns a zero-copy view of the elements [offset, offset+length) of
// the column. The view shares buffers with c and keeps c's sortedness hint,
// since any contiguous range of a sorted column is sorted the same way.
//
// Slice panics if the range is out of bounds. The returned column must be
// released by the caller.
func (c *Column) Slice(offset, length int) *Column {
	if offset < 0 || length < 0 || offset+length > c.length {
		panic(fmt.Sprintf("columnar: slice [%d:%d] out of range [0, %d)", offset, offset+length, c.length))
	}

	var (
		parts []arrow.Array
		start = 0
	)
	for _, chunk := range c.chunks {
		end := start + chunk.Len()
		lo, hi := max(start, offset), min(end, offset+length)
		if lo < hi {
			parts = append(parts, array.NewSlice(chunk, int64(lo-start), int64(hi-start)))
		}
		start = end
	}

	out := NewColumn(c.name, c.dtype, parts...)
	out.sorted = c.sorted
	for _, part := range parts {
		part.Release()
	}
	return out
}

// WithChunks returns a new column with the same name and data type as c,
// holding chunks instead of c's chunks. The sortedness hint is reset.
func (c *Column) WithChunks(chunks ...arrow.Array) *Column {
	return NewColumn(c.name, c.dtype, chunks...)
}
