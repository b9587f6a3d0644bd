package columnar

import "fmt"

// A RecordBatch is a set of equal-length columns.
type RecordBatch struct {
	nrows int64
	cols  []*Column
}

// NewRecordBatch creates a new RecordBatch from cols. Columns are retained by
// the batch. NewRecordBatch panics if a column's length differs from nrows.
func NewRecordBatch(nrows int64, cols []*Column) RecordBatch {
	for _, col := range cols {
		if int64(col.Len()) != nrows {
			panic(fmt.Sprintf("columnar: column %q has %d rows, expected %d", col.Name(), col.Len(), nrows))
		}
		col.Retain()
	}

	return RecordBatch{
		nrows: nrows,
		cols:  cols,
	}
}

// NumRows returns the number of rows in the batch.
func (rb RecordBatch) NumRows() int64 {
	return rb.nrows
}

// NumCols returns the number of columns in the batch.
func (rb RecordBatch) NumCols() int64 {
	return int64(len(rb.cols))
}

// Column returns the column at index i.
func (rb RecordBatch) Column(i int64) *Column {
	return rb.cols[i]
}

// ColumnByName returns the first column named name, or nil if there is no
// such column.
func (rb RecordBatch) ColumnByName(name string) *Column {
	for _, col := range rb.cols {
		if col.Name() == name {
			return col
		}
	}
	return nil
}

// Release releases every column of the batch.
func (rb RecordBatch) Release() {
	for _, col := range rb.cols {
		col.Release()
	}
}
