package parquetcol_test

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/parquet-go/parquet-go"
	"github.com/stretchr/testify/require"

	"github.com/grafana/gather/pkg/columnar"
	"github.com/grafana/gather/pkg/parquetcol"
)

type record struct {
	ID      int64   `parquet:"id"`
	Count   int32   `parquet:"count"`
	Score   float64 `parquet:"score"`
	Ratio   float32 `parquet:"ratio"`
	Enabled bool    `parquet:"enabled"`
	Name    *string `parquet:"name,optional"`
	Payload []byte  `parquet:"payload"`
	Tags    []int64 `parquet:"tags,list"`
}

func ptr[T any](v T) *T { return &v }

// writeFile writes one row group per element of groups.
func writeFile(t *testing.T, groups [][]record, options ...parquet.WriterOption) *parquet.File {
	t.Helper()

	var buf bytes.Buffer
	w := parquet.NewGenericWriter[record](&buf, options...)
	for _, rows := range groups {
		_, err := w.Write(rows)
		require.NoError(t, err)
		require.NoError(t, w.Flush())
	}
	require.NoError(t, w.Close())

	f, err := parquet.OpenFile(bytes.NewReader(buf.Bytes()), int64(buf.Len()))
	require.NoError(t, err)
	return f
}

var testGroups = [][]record{
	{
		{ID: 1, Count: 10, Score: 0.5, Ratio: 1.5, Enabled: true, Name: ptr("a"), Payload: []byte{1}},
		{ID: 2, Count: 20, Score: 1.5, Ratio: 2.5, Enabled: false, Name: nil, Payload: []byte{2, 2}},
	},
	{
		{ID: 3, Count: 30, Score: 2.5, Ratio: 3.5, Enabled: true, Name: ptr("ccc"), Payload: nil},
	},
}

func TestReadColumn(t *testing.T) {
	alloc := memory.NewCheckedAllocator(memory.DefaultAllocator)
	defer alloc.AssertSize(t, 0)

	f := writeFile(t, testGroups)

	tt := []struct {
		column string
		dtype  arrow.DataType
		expect []string
	}{
		{column: "id", dtype: arrow.PrimitiveTypes.Int64, expect: []string{"1", "2", "3"}},
		{column: "count", dtype: arrow.PrimitiveTypes.Int32, expect: []string{"10", "20", "30"}},
		{column: "score", dtype: arrow.PrimitiveTypes.Float64, expect: []string{"0.5", "1.5", "2.5"}},
		{column: "ratio", dtype: arrow.PrimitiveTypes.Float32, expect: []string{"1.5", "2.5", "3.5"}},
		{column: "enabled", dtype: arrow.FixedWidthTypes.Boolean, expect: []string{"true", "false", "true"}},
		{column: "name", dtype: arrow.BinaryTypes.String, expect: []string{"a", array.NullValueStr, "ccc"}},
		{column: "payload", dtype: arrow.BinaryTypes.Binary, expect: []string{"AQ==", "AgI=", ""}},
	}

	for _, tc := range tt {
		t.Run(tc.column, func(t *testing.T) {
			col, err := parquetcol.ReadColumn(alloc, f, tc.column)
			require.NoError(t, err)
			defer col.Release()

			require.Equal(t, tc.column, col.Name())
			require.True(t, arrow.TypeEqual(tc.dtype, col.DataType()), "got type %s", col.DataType())
			require.Equal(t, 2, col.NumChunks(), "expected one chunk per row group")
			require.Equal(t, columnar.SortedNot, col.Sorted())

			var actual []string
			for _, chunk := range col.Chunks() {
				for i := range chunk.Len() {
					actual = append(actual, chunk.ValueStr(i))
				}
			}
			require.Equal(t, tc.expect, actual)
		})
	}
}

func TestReadColumn_errors(t *testing.T) {
	alloc := memory.NewCheckedAllocator(memory.DefaultAllocator)
	defer alloc.AssertSize(t, 0)

	f := writeFile(t, testGroups)

	_, err := parquetcol.ReadColumn(alloc, f, "missing")
	require.ErrorIs(t, err, parquetcol.ErrColumnNotFound)

	_, err = parquetcol.ReadColumn(alloc, f, "tags", "list", "element")
	require.ErrorIs(t, err, parquetcol.ErrUnsupportedColumn)
}

func TestReadColumn_sorted(t *testing.T) {
	alloc := memory.NewCheckedAllocator(memory.DefaultAllocator)
	defer alloc.AssertSize(t, 0)

	tt := []struct {
		name    string
		sorting []parquet.SortingColumn
		column  string
		expect  columnar.IsSorted
	}{
		{name: "ascending", sorting: []parquet.SortingColumn{parquet.Ascending("id")}, column: "id", expect: columnar.SortedAscending},
		{name: "descending", sorting: []parquet.SortingColumn{parquet.Descending("count")}, column: "count", expect: columnar.SortedDescending},
		{name: "secondary sort column", sorting: []parquet.SortingColumn{parquet.Ascending("id"), parquet.Ascending("count")}, column: "count", expect: columnar.SortedNot},
	}

	for _, tc := range tt {
		t.Run(tc.name, func(t *testing.T) {
			rows := []record{{ID: 1, Count: 3}, {ID: 2, Count: 2}, {ID: 3, Count: 1}}
			f := writeFile(t, [][]record{rows}, parquet.SortingWriterConfig(parquet.SortingColumns(tc.sorting...)))

			col, err := parquetcol.ReadColumn(alloc, f, tc.column)
			require.NoError(t, err)
			defer col.Release()

			require.Equal(t, 1, col.NumChunks())
			require.Equal(t, tc.expect, col.Sorted())
		})
	}
}

func TestOpen(t *testing.T) {
	rows := []record{{ID: 7}}

	path := filepath.Join(t.TempDir(), "test.parquet")
	require.NoError(t, parquet.WriteFile(path, rows))

	f, closer, err := parquetcol.Open(path)
	require.NoError(t, err)
	defer closer.Close()
	require.Equal(t, int64(1), f.NumRows())

	_, _, err = parquetcol.Open(filepath.Join(t.TempDir(), "missing.parquet"))
	require.ErrorIs(t, err, os.ErrNotExist)
}
