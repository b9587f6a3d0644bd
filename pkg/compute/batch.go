package compute

import "github.com/grafana/gather/pkg/columnar"

// TakeBatch gathers every column of batch at indices. Bounds are validated
// once against the number of rows in batch, after which each column is
// gathered without further validation.
//
// No output is produced if any column fails to gather. The returned batch
// must be released by the caller.
func (g *Gatherer) TakeBatch(batch columnar.RecordBatch, indices *columnar.Column) (columnar.RecordBatch, error) {
	if err := checkIndexType(indices); err != nil {
		return columnar.RecordBatch{}, err
	}

	// Reject unsupported columns before doing any work.
	for i := range batch.NumCols() {
		if _, err := batch.Column(i).Category(); err != nil {
			return columnar.RecordBatch{}, err
		}
	}

	if err := CheckBoundsColumn(indices, columnar.IdxSize(batch.NumRows())); err != nil {
		g.reportBoundsViolation("batch", int(batch.NumRows()), indices.Len())
		return columnar.RecordBatch{}, err
	}

	cols := make([]*columnar.Column, 0, batch.NumCols())
	defer func() {
		for _, col := range cols {
			col.Release()
		}
	}()

	for i := range batch.NumCols() {
		col, err := g.take(batch.Column(i), indices, false)
		if err != nil {
			return columnar.RecordBatch{}, err
		}
		cols = append(cols, col)
	}

	return columnar.NewRecordBatch(int64(indices.Len()), cols), nil
}
