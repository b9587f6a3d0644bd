// Package parquetcol loads columns of Parquet files into [columnar.Column]s.
//
// Each row group of a file becomes one chunk of the loaded column, so loaded
// columns keep the physical segmentation of the file.
package parquetcol

import (
	"errors"
	"fmt"
	"io"
	"os"
	"slices"
	"strings"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/parquet-go/parquet-go"

	"github.com/grafana/gather/pkg/columnar"
)

var (
	// ErrColumnNotFound is returned when a path doesn't name a leaf column of
	// the file.
	ErrColumnNotFound = errors.New("column not found")

	// ErrUnsupportedColumn is returned for repeated columns and for physical
	// types with no Arrow counterpart here, such as INT96.
	ErrUnsupportedColumn = errors.New("unsupported column")
)

// Open opens the Parquet file at path. The returned closer closes the
// underlying file and must be called once the Parquet file is no longer used.
func Open(path string) (*parquet.File, io.Closer, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, err
	}

	info, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return nil, nil, err
	}

	pf, err := parquet.OpenFile(f, info.Size(), parquet.SkipBloomFilters(true))
	if err != nil {
		_ = f.Close()
		return nil, nil, fmt.Errorf("open parquet: %w", err)
	}
	return pf, f, nil
}

// ReadColumn reads the leaf column at path from every row group of file. The
// returned column has one chunk per row group, allocated from alloc.
//
// Boolean, INT32, INT64, FLOAT, DOUBLE, and BYTE_ARRAY columns are supported;
// BYTE_ARRAY columns with a string logical type are read as strings and all
// others as binary. Logical types of numeric columns are ignored.
//
// If file has a single row group sorted first by this column, the sortedness
// hint of the returned column is set accordingly.
func ReadColumn(alloc memory.Allocator, file *parquet.File, path ...string) (*columnar.Column, error) {
	leaf, ok := file.Schema().Lookup(path...)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrColumnNotFound, strings.Join(path, "."))
	}
	if leaf.MaxRepetitionLevel > 0 {
		return nil, fmt.Errorf("%w: %s is repeated", ErrUnsupportedColumn, strings.Join(path, "."))
	}

	dtype, err := arrowType(leaf.Node.Type())
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrUnsupportedColumn, strings.Join(path, "."), err)
	}

	rowGroups := file.RowGroups()
	chunks := make([]arrow.Array, 0, len(rowGroups))
	defer func() {
		for _, chunk := range chunks {
			chunk.Release()
		}
	}()

	for i, rg := range rowGroups {
		chunk, err := readColumnChunk(alloc, dtype, rg.ColumnChunks()[leaf.ColumnIndex])
		if err != nil {
			return nil, fmt.Errorf("read row group %d of %s: %w", i, strings.Join(path, "."), err)
		}
		chunks = append(chunks, chunk)
	}

	col := columnar.NewColumn(strings.Join(path, "."), dtype, chunks...)
	if len(rowGroups) == 1 {
		col.SetSorted(sortedness(rowGroups[0].SortingColumns(), leaf.Path))
	}
	return col, nil
}

func arrowType(typ parquet.Type) (arrow.DataType, error) {
	switch typ.Kind() {
	case parquet.Boolean:
		return arrow.FixedWidthTypes.Boolean, nil
	case parquet.Int32:
		return arrow.PrimitiveTypes.Int32, nil
	case parquet.Int64:
		return arrow.PrimitiveTypes.Int64, nil
	case parquet.Float:
		return arrow.PrimitiveTypes.Float32, nil
	case parquet.Double:
		return arrow.PrimitiveTypes.Float64, nil
	case parquet.ByteArray:
		if lt := typ.LogicalType(); lt != nil && lt.UTF8 != nil {
			return arrow.BinaryTypes.String, nil
		}
		return arrow.BinaryTypes.Binary, nil
	default:
		return nil, fmt.Errorf("physical type %s", typ.Kind())
	}
}

// sortedness returns the sortedness of the column at path in a row group
// sorted by sorting. Only the first sorting column determines the order of
// the column as a whole.
func sortedness(sorting []parquet.SortingColumn, path []string) columnar.IsSorted {
	switch {
	case len(sorting) == 0 || !slices.Equal(sorting[0].Path(), path):
		return columnar.SortedNot
	case sorting[0].Descending():
		return columnar.SortedDescending
	default:
		return columnar.SortedAscending
	}
}

// readColumnChunk reads every page of cc into a single array of type dtype.
func readColumnChunk(alloc memory.Allocator, dtype arrow.DataType, cc parquet.ColumnChunk) (arrow.Array, error) {
	builder := array.NewBuilder(alloc, dtype)
	defer builder.Release()
	builder.Reserve(int(cc.NumValues()))

	appendValue := valueAppender(builder)

	pages := cc.Pages()
	defer pages.Close()

	values := make([]parquet.Value, 1024)
	for {
		page, err := pages.ReadPage()
		if errors.Is(err, io.EOF) {
			break
		} else if err != nil {
			return nil, err
		}

		err = readPageValues(page.Values(), values, func(v parquet.Value) {
			if v.IsNull() {
				builder.AppendNull()
				return
			}
			appendValue(v)
		})
		parquet.Release(page)
		if err != nil {
			return nil, err
		}
	}

	return builder.NewArray(), nil
}

func readPageValues(r parquet.ValueReader, buf []parquet.Value, fn func(parquet.Value)) error {
	for {
		n, err := r.ReadValues(buf)
		for _, v := range buf[:n] {
			fn(v)
		}

		if errors.Is(err, io.EOF) {
			return nil
		} else if err != nil {
			return err
		}
	}
}

// valueAppender returns a function appending non-null Parquet values to
// builder. Byte array values are copied by the builder, so they may be
// released with their page.
func valueAppender(builder array.Builder) func(parquet.Value) {
	switch b := builder.(type) {
	case *array.BooleanBuilder:
		return func(v parquet.Value) { b.Append(v.Boolean()) }
	case *array.Int32Builder:
		return func(v parquet.Value) { b.Append(v.Int32()) }
	case *array.Int64Builder:
		return func(v parquet.Value) { b.Append(v.Int64()) }
	case *array.Float32Builder:
		return func(v parquet.Value) { b.Append(v.Float()) }
	case *array.Float64Builder:
		return func(v parquet.Value) { b.Append(v.Double()) }
	case *array.StringBuilder:
		return func(v parquet.Value) { b.BinaryBuilder.Append(v.ByteArray()) }
	case *array.BinaryBuilder:
		return func(v parquet.Value) { b.Append(v.ByteArray()) }
	default:
		panic(fmt.Sprintf("parquetcol: unexpected builder %T", builder))
	}
}
