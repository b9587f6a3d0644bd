// Package compute implements gathering ("take") over segmented columns: given
// a target column and a column of indices, it produces a new column whose
// i-th element is the target element at the i-th index.
//
// Checked entry points ([Take], [TakeSlice], [TakeSliceNullable], and their
// [Gatherer] counterparts) validate every non-null index against the target
// length and return [ErrOutOfBounds] without producing output on failure.
// Unchecked entry points skip validation: callers must guarantee that every
// non-null index is in bounds. Violating that contract may panic or produce garbage.
//
// Null indices always produce null output elements, and gathering a null
// target element produces a null. Outputs of scalar and view-encoded targets
// have one chunk per index chunk; outputs of nested targets have a single
// chunk.
package compute

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/grafana/gather/pkg/columnar"
)

// defaultMetrics are shared by gatherers created for package-level calls.
// They are never registered.
var defaultMetrics = newMetrics(nil)

// A Gatherer gathers elements of columns. Gatherers are safe for concurrent
// use.
type Gatherer struct {
	cfg     Config
	alloc   memory.Allocator
	logger  log.Logger
	metrics *metrics
}

// NewGatherer creates a new Gatherer which allocates output from alloc.
// Metrics are registered with reg if it is non-nil. If alloc is nil,
// [memory.DefaultAllocator] is used; if logger is nil, logs are discarded.
func NewGatherer(cfg Config, alloc memory.Allocator, logger log.Logger, reg prometheus.Registerer) *Gatherer {
	if alloc == nil {
		alloc = memory.DefaultAllocator
	}
	if logger == nil {
		logger = log.NewNopLogger()
	}

	return &Gatherer{
		cfg:     cfg,
		alloc:   alloc,
		logger:  logger,
		metrics: newMetrics(reg),
	}
}

func defaultGatherer(alloc memory.Allocator) *Gatherer {
	if alloc == nil {
		alloc = memory.DefaultAllocator
	}
	return &Gatherer{
		alloc:   alloc,
		logger:  log.NewNopLogger(),
		metrics: defaultMetrics,
	}
}

// Take gathers the elements of target at indices using the default gatherer.
// See [Gatherer.Take].
func Take(alloc memory.Allocator, target, indices *columnar.Column) (*columnar.Column, error) {
	return defaultGatherer(alloc).Take(target, indices)
}

// TakeUnchecked gathers the elements of target at indices without validating
// bounds using the default gatherer. See [Gatherer.TakeUnchecked].
func TakeUnchecked(alloc memory.Allocator, target, indices *columnar.Column) (*columnar.Column, error) {
	return defaultGatherer(alloc).TakeUnchecked(target, indices)
}

// TakeSlice gathers the elements of target at indices using the default
// gatherer. See [Gatherer.TakeSlice].
func TakeSlice(alloc memory.Allocator, target *columnar.Column, indices []columnar.IdxSize) (*columnar.Column, error) {
	return defaultGatherer(alloc).TakeSlice(target, indices)
}

// TakeSliceUnchecked gathers the elements of target at indices without
// validating bounds using the default gatherer. See
// [Gatherer.TakeSliceUnchecked].
func TakeSliceUnchecked(alloc memory.Allocator, target *columnar.Column, indices []columnar.IdxSize) (*columnar.Column, error) {
	return defaultGatherer(alloc).TakeSliceUnchecked(target, indices)
}

// TakeSliceNullable gathers the elements of target at indices, where
// indices[i] is null if valid[i] is false, using the default gatherer. See
// [Gatherer.TakeSliceNullable].
func TakeSliceNullable(alloc memory.Allocator, target *columnar.Column, indices []columnar.IdxSize, valid []bool) (*columnar.Column, error) {
	return defaultGatherer(alloc).TakeSliceNullable(target, indices, valid)
}

// Take returns a new column whose i-th element is the element of target at
// the i-th index of indices. indices must be an index column.
//
// Take returns [ErrOutOfBounds] if any non-null index is greater than or
// equal to target.Len(), and an error wrapping
// [columnar.ErrUnsupportedType] if target's data type can't be gathered.
//
// The returned column must be released by the caller.
func (g *Gatherer) Take(target, indices *columnar.Column) (*columnar.Column, error) {
	if err := g.checkBounds(target, indices); err != nil {
		return nil, err
	}
	return g.take(target, indices, true)
}

// TakeUnchecked is like [Gatherer.Take] but doesn't validate bounds. The
// caller must guarantee that every non-null index is less than target.Len().
func (g *Gatherer) TakeUnchecked(target, indices *columnar.Column) (*columnar.Column, error) {
	if err := checkIndexType(indices); err != nil {
		return nil, err
	}
	return g.take(target, indices, false)
}

// TakeSlice is like [Gatherer.Take] for a plain slice of indices, none of
// which are null. The output has a single chunk.
func (g *Gatherer) TakeSlice(target *columnar.Column, indices []columnar.IdxSize) (*columnar.Column, error) {
	if err := CheckBounds(indices, columnar.IdxSize(target.Len())); err != nil {
		g.reportBoundsViolation(target.Name(), target.Len(), len(indices))
		return nil, err
	}
	return g.TakeSliceUnchecked(target, indices)
}

// TakeSliceUnchecked is like [Gatherer.TakeSlice] but doesn't validate
// bounds. The caller must guarantee that every index is less than
// target.Len().
func (g *Gatherer) TakeSliceUnchecked(target *columnar.Column, indices []columnar.IdxSize) (*columnar.Column, error) {
	idx := columnar.IndexColumnFromSlice("", indices)
	defer idx.Release()

	return g.take(target, idx, false)
}

// TakeSliceNullable is like [Gatherer.TakeSlice] for a slice of indices that
// may contain nulls: indices[i] is null where valid[i] is false. A nil valid
// means no index is null. Null indices are not validated.
func (g *Gatherer) TakeSliceNullable(target *columnar.Column, indices []columnar.IdxSize, valid []bool) (*columnar.Column, error) {
	if valid != nil && len(valid) != len(indices) {
		return nil, fmt.Errorf("gather column %q: %d validity flags for %d indices", target.Name(), len(valid), len(indices))
	}

	idx := columnar.NewIndexColumn(g.alloc, "", indices, valid)
	defer idx.Release()

	return g.Take(target, idx)
}

func (g *Gatherer) checkBounds(target, indices *columnar.Column) error {
	err := CheckBoundsColumn(indices, columnar.IdxSize(target.Len()))
	if errors.Is(err, ErrOutOfBounds) {
		g.reportBoundsViolation(target.Name(), target.Len(), indices.Len())
	}
	return err
}

func (g *Gatherer) reportBoundsViolation(name string, length, numIndices int) {
	g.metrics.boundsViolations.Inc()
	level.Warn(g.logger).Log(
		"msg", "gather indices out of bounds",
		"column", name,
		"len", length,
		"indices", numIndices,
	)
}

// take dispatches on the category of target. indices must be an index
// column whose non-null values are in bounds.
func (g *Gatherer) take(target, indices *columnar.Column, checked bool) (*columnar.Column, error) {
	category, err := target.Category()
	if err != nil {
		return nil, err
	}

	g.metrics.calls.WithLabelValues(category.String(), strconv.FormatBool(checked)).Inc()
	g.metrics.rows.Add(float64(indices.Len()))

	var out *columnar.Column
	switch category {
	case columnar.CategoryScalar, columnar.CategoryView:
		out, err = g.takeChunked(category, target, indices)
	case columnar.CategoryStruct, columnar.CategoryList, columnar.CategoryFixedSizeList:
		out, err = g.takeNested(target, indices)
	default:
		panic(fmt.Sprintf("compute: unexpected column category %s", category))
	}
	if err != nil {
		return nil, err
	}

	if g.cfg.RechunkOutput && out.NumChunks() > 1 {
		g.metrics.rechunks.WithLabelValues(rechunkReasonOutput).Inc()
		level.Debug(g.logger).Log("msg", "rechunking gather output", "column", target.Name(), "chunks", out.NumChunks())

		merged, err := out.Rechunk(g.alloc)
		out.Release()
		if err != nil {
			return nil, err
		}
		out = merged
	}

	out.SetSorted(UpdateGatherSortedFlag(target.Sorted(), indices.Sorted()))
	return out, nil
}

// takeChunked gathers scalar and view-encoded columns, producing one output
// chunk per chunk of indices.
func (g *Gatherer) takeChunked(category columnar.Category, target, indices *columnar.Column) (*columnar.Column, error) {
	if limit := g.cfg.MaxTargetChunks; limit > 0 && target.NumChunks() > limit {
		g.metrics.rechunks.WithLabelValues(rechunkReasonTargetChunks).Inc()
		level.Debug(g.logger).Log("msg", "rechunking gather target", "column", target.Name(), "chunks", target.NumChunks(), "limit", limit)

		merged, err := target.Rechunk(g.alloc)
		if err != nil {
			return nil, err
		}
		defer merged.Release()
		target = merged
	}

	var (
		dtype  = target.DataType()
		gather = chunkGatherer(category, dtype)
		tgt    = newTargetChunks(target)
	)

	chunks := make([]arrow.Array, 0, indices.NumChunks())
	defer func() {
		for _, chunk := range chunks {
			chunk.Release()
		}
	}()

	for _, chunk := range indices.Chunks() {
		chunks = append(chunks, gather(g.alloc, dtype, tgt, indexChunkOf(chunk.(*array.Uint64))))
	}
	return target.WithChunks(chunks...), nil
}

// chunkGatherer selects the gatherer for a scalar or view-encoded type.
func chunkGatherer(category columnar.Category, dtype arrow.DataType) chunkGatherFunc {
	if category == columnar.CategoryView {
		return gatherView
	}
	if gather := valuesGatherFunc(dtype); gather != nil {
		return gather
	}

	fixed, ok := dtype.(arrow.FixedWidthDataType)
	if !ok || fixed.BitWidth()%8 != 0 {
		panic(fmt.Sprintf("compute: no gatherer for scalar type %s", dtype))
	}
	return fixedGatherFunc(fixed)
}
