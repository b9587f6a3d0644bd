package compute_test

import (
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"

	"github.com/grafana/gather/pkg/columnar"
	"github.com/grafana/gather/pkg/compute"
)

func fromJSON(t *testing.T, alloc memory.Allocator, dtype arrow.DataType, js string) arrow.Array {
	t.Helper()

	arr, _, err := array.FromJSON(alloc, dtype, strings.NewReader(js))
	require.NoError(t, err)
	return arr
}

// newColumn builds a column with one chunk per JSON array in chunks.
func newColumn(t *testing.T, alloc memory.Allocator, dtype arrow.DataType, chunks ...string) *columnar.Column {
	t.Helper()

	arrs := make([]arrow.Array, 0, len(chunks))
	for _, js := range chunks {
		arrs = append(arrs, fromJSON(t, alloc, dtype, js))
	}

	col := columnar.NewColumn("target", dtype, arrs...)
	for _, arr := range arrs {
		arr.Release()
	}
	return col
}

func newIndices(t *testing.T, alloc memory.Allocator, chunks ...string) *columnar.Column {
	t.Helper()

	col := newColumn(t, alloc, columnar.IndexType, chunks...)
	defer col.Release()
	return columnar.NewIndexColumnFromChunks("indices", col.Chunks()...)
}

// valueStrs returns the string form of every element of col, with nulls
// rendered as [array.NullValueStr].
func valueStrs(col *columnar.Column) []string {
	out := make([]string, 0, col.Len())
	for _, chunk := range col.Chunks() {
		for i := range chunk.Len() {
			out = append(out, chunk.ValueStr(i))
		}
	}
	return out
}

// naiveGather computes the expected output of gathering target at indices
// element by element.
func naiveGather(target, indices *columnar.Column) []string {
	values := valueStrs(target)

	var out []string
	for _, chunk := range indices.Chunks() {
		arr := chunk.(*array.Uint64)
		for i := range arr.Len() {
			if arr.IsNull(i) {
				out = append(out, array.NullValueStr)
				continue
			}
			out = append(out, values[arr.Value(i)])
		}
	}
	return out
}

func requireDense(t *testing.T, col *columnar.Column) {
	t.Helper()

	for i, chunk := range col.Chunks() {
		require.Zero(t, chunk.NullN(), "chunk %d has nulls", i)
		require.Nil(t, chunk.Data().Buffers()[0], "chunk %d has a validity bitmap", i)
	}
}

func TestTake_nullIndex(t *testing.T) {
	alloc := memory.NewCheckedAllocator(memory.DefaultAllocator)
	defer alloc.AssertSize(t, 0)

	target := newColumn(t, alloc, arrow.PrimitiveTypes.Int64, `[10, 20, 30, 40]`)
	defer target.Release()
	indices := newIndices(t, alloc, `[3, 0, null, 1]`)
	defer indices.Release()

	out, err := compute.Take(alloc, target, indices)
	require.NoError(t, err)
	defer out.Release()

	require.Equal(t, 1, out.NumChunks())
	require.Equal(t, []string{"40", "10", array.NullValueStr, "20"}, valueStrs(out))

	expectValid := []bool{true, true, false, true}
	for i, expect := range expectValid {
		require.Equal(t, !expect, out.IsNull(i), "unexpected validity at index %d", i)
	}
}

func TestTake_chunkedTarget(t *testing.T) {
	alloc := memory.NewCheckedAllocator(memory.DefaultAllocator)
	defer alloc.AssertSize(t, 0)

	target := newColumn(t, alloc, arrow.PrimitiveTypes.Int64, `[10, 20]`, `[30, 40]`)
	defer target.Release()
	indices := newIndices(t, alloc, `[2, 0, 3]`)
	defer indices.Release()

	out, err := compute.Take(alloc, target, indices)
	require.NoError(t, err)
	defer out.Release()

	require.Equal(t, []string{"30", "10", "40"}, valueStrs(out))
	requireDense(t, out)
}

func TestTake_outOfBounds(t *testing.T) {
	alloc := memory.NewCheckedAllocator(memory.DefaultAllocator)
	defer alloc.AssertSize(t, 0)

	target := newColumn(t, alloc, arrow.BinaryTypes.String, `["a", "bb", "ccc"]`)
	defer target.Release()

	tt := []struct {
		name    string
		indices []string
	}{
		{name: "single index", indices: []string{`[5]`}},
		{name: "equal to length", indices: []string{`[0, 3]`}},
		{name: "second chunk", indices: []string{`[0, 1]`, `[2, null, 4]`}},
	}

	for _, tc := range tt {
		t.Run(tc.name, func(t *testing.T) {
			indices := newIndices(t, alloc, tc.indices...)
			defer indices.Release()

			out, err := compute.Take(alloc, target, indices)
			require.ErrorIs(t, err, compute.ErrOutOfBounds)
			require.Nil(t, out)
		})
	}
}

func TestTake_sortedFlag(t *testing.T) {
	alloc := memory.NewCheckedAllocator(memory.DefaultAllocator)
	defer alloc.AssertSize(t, 0)

	target := newColumn(t, alloc, arrow.PrimitiveTypes.Int32, `[4, 3, 2, 1]`)
	defer target.Release()
	target.SetSorted(columnar.SortedDescending)

	indices := newIndices(t, alloc, `[3, 2, 0]`)
	defer indices.Release()
	indices.SetSorted(columnar.SortedDescending)

	out, err := compute.Take(alloc, target, indices)
	require.NoError(t, err)
	defer out.Release()

	require.Equal(t, []string{"1", "2", "4"}, valueStrs(out))
	require.Equal(t, columnar.SortedAscending, out.Sorted())

	// Unsorted indices make the result unsorted regardless of the target.
	indices.SetSorted(columnar.SortedNot)
	out2, err := compute.TakeUnchecked(alloc, target, indices)
	require.NoError(t, err)
	defer out2.Release()
	require.Equal(t, columnar.SortedNot, out2.Sorted())
}

// gatherCases are targets of every supported category, spread over multiple
// chunks with nulls, along with index chunks valid for each of them.
var gatherCases = []struct {
	name    string
	dtype   arrow.DataType
	chunks  []string
	indices []string
}{
	{
		name:    "null",
		dtype:   arrow.Null,
		chunks:  []string{`[null, null]`, `[null]`},
		indices: []string{`[2, 0, null]`, `[1]`},
	},
	{
		name:    "bool",
		dtype:   arrow.FixedWidthTypes.Boolean,
		chunks:  []string{`[true, false, null]`, `[]`, `[false, true]`},
		indices: []string{`[4, 2, null, 0, 3]`, `[1, 1]`},
	},
	{
		name:    "uint8",
		dtype:   arrow.PrimitiveTypes.Uint8,
		chunks:  []string{`[1, 2]`, `[null, 4, 5]`},
		indices: []string{`[4, 0, 2, null]`, `[3, 1]`},
	},
	{
		name:    "int16",
		dtype:   arrow.PrimitiveTypes.Int16,
		chunks:  []string{`[-1, 2, 300]`, `[null]`},
		indices: []string{`[3, 2, 1, 0, null]`},
	},
	{
		name:    "float32",
		dtype:   arrow.PrimitiveTypes.Float32,
		chunks:  []string{`[1.5]`, `[2.5, null]`, `[3.5]`},
		indices: []string{`[3]`, `[2, 1, 0, null]`},
	},
	{
		name:    "int64",
		dtype:   arrow.PrimitiveTypes.Int64,
		chunks:  []string{`[10, null, 30]`, `[40, 50]`},
		indices: []string{`[4, 3, 2, 1, 0]`, `[]`, `[null, 0]`},
	},
	{
		name:    "timestamp",
		dtype:   arrow.FixedWidthTypes.Timestamp_ms,
		chunks:  []string{`[1, 2]`, `[3, null]`},
		indices: []string{`[3, 2, 1, null, 0]`},
	},
	{
		name:    "decimal128",
		dtype:   &arrow.Decimal128Type{Precision: 10, Scale: 2},
		chunks:  []string{`["1.23", null]`, `["-4.50"]`},
		indices: []string{`[2, 0, 1, null]`},
	},
	{
		name:    "decimal256",
		dtype:   &arrow.Decimal256Type{Precision: 40, Scale: 0},
		chunks:  []string{`["1", "2"]`, `[null, "4"]`},
		indices: []string{`[3, null, 2, 1, 0]`},
	},
	{
		name:    "fixed size binary",
		dtype:   &arrow.FixedSizeBinaryType{ByteWidth: 3},
		chunks:  []string{`["YWJj", null]`, `["eHl6", "MTIz"]`},
		indices: []string{`[3, 2, 1, 0]`, `[null, 2]`},
	},
	{
		name:    "string",
		dtype:   arrow.BinaryTypes.String,
		chunks:  []string{`["a", "bb"]`, `[null, "dddd"]`},
		indices: []string{`[3, 1, 2, 0, null]`},
	},
	{
		name:    "large string",
		dtype:   arrow.BinaryTypes.LargeString,
		chunks:  []string{`["a"]`, `["bb", null]`},
		indices: []string{`[2, 1]`, `[0, null]`},
	},
	{
		name:    "binary",
		dtype:   arrow.BinaryTypes.Binary,
		chunks:  []string{`["YQ==", null]`, `["YmI="]`},
		indices: []string{`[2, 1, 0]`},
	},
	{
		name:    "large binary",
		dtype:   arrow.BinaryTypes.LargeBinary,
		chunks:  []string{`["YQ=="]`, `["YmI=", null]`},
		indices: []string{`[null, 2, 1, 0]`},
	},
	{
		name:    "string view",
		dtype:   arrow.BinaryTypes.StringView,
		chunks:  []string{`["short", "a string too long to be inlined", null]`, `["another string too long to be inlined", "tiny"]`},
		indices: []string{`[3, 1, 4, 0]`, `[2, null, 3]`},
	},
	{
		name:    "binary view",
		dtype:   arrow.BinaryTypes.BinaryView,
		chunks:  []string{`["YQ=="]`, `["bG9uZyBlbm91Z2ggdG8gbm90IGJlIGlubGluZWQ=", null]`},
		indices: []string{`[1, 0, 2, null]`},
	},
	{
		name: "struct",
		dtype: arrow.StructOf(
			arrow.Field{Name: "a", Type: arrow.PrimitiveTypes.Int64, Nullable: true},
			arrow.Field{Name: "b", Type: arrow.BinaryTypes.String, Nullable: true},
		),
		chunks:  []string{`[{"a": 1, "b": "x"}, null]`, `[{"a": 3, "b": null}]`},
		indices: []string{`[2, 0]`, `[null, 1, 0]`},
	},
	{
		name:    "list",
		dtype:   arrow.ListOf(arrow.PrimitiveTypes.Int64),
		chunks:  []string{`[[1, 2], null]`, `[[], [3]]`},
		indices: []string{`[3, 2, 1, 0, null]`},
	},
	{
		name:    "large list",
		dtype:   arrow.LargeListOf(arrow.BinaryTypes.String),
		chunks:  []string{`[["a"], ["b", null]]`, `[null]`},
		indices: []string{`[1]`, `[2, 0, null]`},
	},
	{
		name:    "fixed size list",
		dtype:   arrow.FixedSizeListOf(2, arrow.PrimitiveTypes.Int32),
		chunks:  []string{`[[1, 2], [3, null]]`, `[null]`},
		indices: []string{`[2, 1, 0, null]`},
	},
}

func TestTake_types(t *testing.T) {
	for _, tc := range gatherCases {
		t.Run(tc.name, func(t *testing.T) {
			alloc := memory.NewCheckedAllocator(memory.DefaultAllocator)
			defer alloc.AssertSize(t, 0)

			target := newColumn(t, alloc, tc.dtype, tc.chunks...)
			defer target.Release()
			indices := newIndices(t, alloc, tc.indices...)
			defer indices.Release()

			checked, err := compute.Take(alloc, target, indices)
			require.NoError(t, err)
			defer checked.Release()

			unchecked, err := compute.TakeUnchecked(alloc, target, indices)
			require.NoError(t, err)
			defer unchecked.Release()

			expect := naiveGather(target, indices)
			require.Equal(t, expect, valueStrs(checked))
			require.Equal(t, expect, valueStrs(unchecked))
			require.True(t, arrow.TypeEqual(tc.dtype, checked.DataType()))
			require.Equal(t, indices.Len(), checked.Len())

			category, err := target.Category()
			require.NoError(t, err)
			if category.Nested() {
				require.Equal(t, 1, checked.NumChunks())
			} else {
				require.Equal(t, indices.NumChunks(), checked.NumChunks())
			}
		})
	}
}

func TestTake_splitInvariance(t *testing.T) {
	for _, tc := range gatherCases {
		t.Run(tc.name, func(t *testing.T) {
			alloc := memory.NewCheckedAllocator(memory.DefaultAllocator)
			defer alloc.AssertSize(t, 0)

			target := newColumn(t, alloc, tc.dtype, tc.chunks...)
			defer target.Release()
			indices := newIndices(t, alloc, tc.indices...)
			defer indices.Release()

			merged, err := indices.Rechunk(alloc)
			require.NoError(t, err)
			defer merged.Release()

			whole, err := compute.Take(alloc, target, merged)
			require.NoError(t, err)
			defer whole.Release()
			expect := valueStrs(whole)

			for split := 0; split <= merged.Len(); split++ {
				head := merged.Slice(0, split)
				tail := merged.Slice(split, merged.Len()-split)
				parts := columnar.NewIndexColumnFromChunks("indices", append(head.Chunks(), tail.Chunks()...)...)
				head.Release()
				tail.Release()

				out, err := compute.Take(alloc, target, parts)
				require.NoError(t, err)
				actual := valueStrs(out)
				out.Release()
				parts.Release()

				if diff := cmp.Diff(expect, actual); diff != "" {
					t.Fatalf("split at %d: unexpected output (-want +got):\n%s", split, diff)
				}
			}
		})
	}
}

func TestTake_emptyIndices(t *testing.T) {
	alloc := memory.NewCheckedAllocator(memory.DefaultAllocator)
	defer alloc.AssertSize(t, 0)

	target := newColumn(t, alloc, arrow.PrimitiveTypes.Int64, `[1, 2, 3]`)
	defer target.Release()

	t.Run("no chunks", func(t *testing.T) {
		indices := columnar.NewIndexColumnFromChunks("indices")
		defer indices.Release()

		out, err := compute.Take(alloc, target, indices)
		require.NoError(t, err)
		defer out.Release()

		require.Equal(t, 0, out.Len())
		require.Equal(t, 0, out.NumChunks())
	})

	t.Run("empty chunk", func(t *testing.T) {
		indices := newIndices(t, alloc, `[]`)
		defer indices.Release()

		out, err := compute.Take(alloc, target, indices)
		require.NoError(t, err)
		defer out.Release()

		require.Equal(t, 0, out.Len())
		require.Equal(t, 1, out.NumChunks())
	})

	t.Run("empty target", func(t *testing.T) {
		empty := columnar.NewColumn("empty", arrow.PrimitiveTypes.Int64)
		defer empty.Release()

		indices := newIndices(t, alloc, `[null, null]`)
		defer indices.Release()

		out, err := compute.Take(alloc, empty, indices)
		require.NoError(t, err)
		defer out.Release()

		require.Equal(t, []string{array.NullValueStr, array.NullValueStr}, valueStrs(out))
	})
}

func TestTake_nullSlotsAreNotChecked(t *testing.T) {
	for _, tc := range gatherCases {
		t.Run(tc.name, func(t *testing.T) {
			alloc := memory.NewCheckedAllocator(memory.DefaultAllocator)
			defer alloc.AssertSize(t, 0)

			target := newColumn(t, alloc, tc.dtype, tc.chunks...)
			defer target.Release()

			// The null slot holds a value far out of bounds.
			indices := columnar.NewIndexColumn(alloc, "indices",
				[]columnar.IdxSize{columnar.IdxSize(target.Len() - 1), 1 << 40, 0},
				[]bool{true, false, true},
			)
			defer indices.Release()

			expect := naiveGather(target, indices)
			require.Equal(t, array.NullValueStr, expect[1])

			for _, take := range []func(memory.Allocator, *columnar.Column, *columnar.Column) (*columnar.Column, error){
				compute.Take,
				compute.TakeUnchecked,
			} {
				out, err := take(alloc, target, indices)
				require.NoError(t, err)
				require.Equal(t, expect, valueStrs(out))
				require.True(t, out.IsNull(1))
				out.Release()
			}
		})
	}
}

func TestTake_denseOutputHasNoBitmap(t *testing.T) {
	for _, tc := range []struct {
		dtype  arrow.DataType
		chunks []string
	}{
		{arrow.PrimitiveTypes.Int32, []string{`[1, 2]`, `[3]`}},
		{arrow.FixedWidthTypes.Boolean, []string{`[true]`, `[false, true]`}},
		{arrow.BinaryTypes.String, []string{`["a", "b", "c"]`}},
		{arrow.BinaryTypes.StringView, []string{`["a"]`, `["b", "c"]`}},
		{&arrow.FixedSizeBinaryType{ByteWidth: 5}, []string{`["YWJjZGU=", "Zmdoamk="]`, `["a2xtbm8="]`}},
		{arrow.ListOf(arrow.PrimitiveTypes.Int64), []string{`[[1], []]`, `[[2, 3]]`}},
		{arrow.LargeListOf(arrow.BinaryTypes.String), []string{`[["a"]]`, `[["b", "c"], []]`}},
		{arrow.FixedSizeListOf(2, arrow.PrimitiveTypes.Int32), []string{`[[1, 2], [3, 4]]`, `[[5, 6]]`}},
		{arrow.StructOf(arrow.Field{Name: "a", Type: arrow.PrimitiveTypes.Int64}), []string{`[{"a": 1}]`, `[{"a": 2}, {"a": 3}]`}},
	} {
		t.Run(tc.dtype.String(), func(t *testing.T) {
			alloc := memory.NewCheckedAllocator(memory.DefaultAllocator)
			defer alloc.AssertSize(t, 0)

			target := newColumn(t, alloc, tc.dtype, tc.chunks...)
			defer target.Release()
			indices := newIndices(t, alloc, `[2, 0]`, `[1]`)
			defer indices.Release()

			out, err := compute.Take(alloc, target, indices)
			require.NoError(t, err)
			defer out.Release()

			requireDense(t, out)
			require.Equal(t, naiveGather(target, indices), valueStrs(out))
		})
	}
}

func TestTake_viewSharesBuffers(t *testing.T) {
	alloc := memory.NewCheckedAllocator(memory.DefaultAllocator)
	defer alloc.AssertSize(t, 0)

	target := newColumn(t, alloc, arrow.BinaryTypes.StringView,
		`["first chunk string that is not inlined", "x"]`,
		`["second chunk string that is not inlined"]`,
	)
	defer target.Release()
	indices := newIndices(t, alloc, `[2, 1, 0]`)
	defer indices.Release()

	out, err := compute.Take(alloc, target, indices)
	require.NoError(t, err)
	defer out.Release()

	require.Equal(t, []string{
		"second chunk string that is not inlined",
		"x",
		"first chunk string that is not inlined",
	}, valueStrs(out))

	// Payloads are referenced, not copied: the output's data buffers are the
	// data buffers of the target chunks, in chunk order.
	var expect []*memory.Buffer
	for _, chunk := range target.Chunks() {
		expect = append(expect, chunk.Data().Buffers()[2:]...)
	}
	actual := out.Chunk(0).Data().Buffers()[2:]
	require.Len(t, actual, len(expect))
	for i := range expect {
		require.Same(t, expect[i], actual[i])
	}
}

func TestTake_unsupportedType(t *testing.T) {
	alloc := memory.NewCheckedAllocator(memory.DefaultAllocator)
	defer alloc.AssertSize(t, 0)

	dtype := &arrow.DictionaryType{IndexType: arrow.PrimitiveTypes.Int8, ValueType: arrow.BinaryTypes.String}
	target := columnar.NewColumn("dict", dtype)
	defer target.Release()
	indices := newIndices(t, alloc, `[]`)
	defer indices.Release()

	_, err := compute.Take(alloc, target, indices)
	require.True(t, errors.Is(err, columnar.ErrUnsupportedType))

	_, err = compute.TakeUnchecked(alloc, target, indices)
	require.True(t, errors.Is(err, columnar.ErrUnsupportedType))
}

func TestTake_indexType(t *testing.T) {
	alloc := memory.NewCheckedAllocator(memory.DefaultAllocator)
	defer alloc.AssertSize(t, 0)

	target := newColumn(t, alloc, arrow.PrimitiveTypes.Int64, `[1, 2]`)
	defer target.Release()
	indices := newColumn(t, alloc, arrow.PrimitiveTypes.Int32, `[0, 1]`)
	defer indices.Release()

	_, err := compute.Take(alloc, target, indices)
	require.ErrorIs(t, err, compute.ErrIndexType)

	_, err = compute.TakeUnchecked(alloc, target, indices)
	require.ErrorIs(t, err, compute.ErrIndexType)
}

func TestTakeSlice(t *testing.T) {
	alloc := memory.NewCheckedAllocator(memory.DefaultAllocator)
	defer alloc.AssertSize(t, 0)

	target := newColumn(t, alloc, arrow.BinaryTypes.String, `["a", null]`, `["c"]`)
	defer target.Release()

	t.Run("in bounds", func(t *testing.T) {
		out, err := compute.TakeSlice(alloc, target, []columnar.IdxSize{2, 1, 0, 2})
		require.NoError(t, err)
		defer out.Release()

		require.Equal(t, 1, out.NumChunks())
		require.Equal(t, []string{"c", array.NullValueStr, "a", "c"}, valueStrs(out))
	})

	t.Run("out of bounds", func(t *testing.T) {
		out, err := compute.TakeSlice(alloc, target, []columnar.IdxSize{0, 3})
		require.ErrorIs(t, err, compute.ErrOutOfBounds)
		require.Nil(t, out)
	})

	t.Run("unchecked", func(t *testing.T) {
		out, err := compute.TakeSliceUnchecked(alloc, target, []columnar.IdxSize{1, 0})
		require.NoError(t, err)
		defer out.Release()

		require.Equal(t, []string{array.NullValueStr, "a"}, valueStrs(out))
	})

	t.Run("nullable", func(t *testing.T) {
		out, err := compute.TakeSliceNullable(alloc, target, []columnar.IdxSize{2, 1 << 40, 0}, []bool{true, false, true})
		require.NoError(t, err)
		defer out.Release()

		require.Equal(t, 1, out.NumChunks())
		require.Equal(t, []string{"c", array.NullValueStr, "a"}, valueStrs(out))
	})

	t.Run("nullable out of bounds", func(t *testing.T) {
		out, err := compute.TakeSliceNullable(alloc, target, []columnar.IdxSize{0, 3}, []bool{true, true})
		require.ErrorIs(t, err, compute.ErrOutOfBounds)
		require.Nil(t, out)
	})

	t.Run("nullable length mismatch", func(t *testing.T) {
		_, err := compute.TakeSliceNullable(alloc, target, []columnar.IdxSize{0, 1}, []bool{true})
		require.Error(t, err)
	})

	t.Run("nested", func(t *testing.T) {
		lists := newColumn(t, alloc, arrow.ListOf(arrow.PrimitiveTypes.Int64), `[[1], [2, 3]]`, `[null]`)
		defer lists.Release()

		out, err := compute.TakeSlice(alloc, lists, []columnar.IdxSize{1, 2})
		require.NoError(t, err)
		defer out.Release()

		require.Equal(t, []string{"[2,3]", array.NullValueStr}, valueStrs(out))
	})
}

func ExampleTake() {
	alloc := memory.DefaultAllocator

	builder := array.NewInt64Builder(alloc)
	builder.AppendValues([]int64{10, 20, 30, 40}, nil)
	values := builder.NewArray()
	builder.Release()

	target := columnar.FromArray("values", values)
	values.Release()
	defer target.Release()

	indices := columnar.NewIndexColumn(alloc, "indices", []columnar.IdxSize{3, 0, 0, 1}, []bool{true, true, false, true})
	defer indices.Release()

	out, err := compute.Take(alloc, target, indices)
	if err != nil {
		panic(err)
	}
	defer out.Release()

	fmt.Println(valueStrs(out))
	// Output: [40 10 (null) 20]
}
