package compute

import (
	"context"
	"fmt"

	arrowcompute "github.com/apache/arrow-go/v18/arrow/compute"
	"github.com/go-kit/log/level"

	"github.com/grafana/gather/pkg/columnar"
)

// takeNested gathers struct, list, and fixed-size list columns. Both target
// and indices are normalized to a single chunk and handed to Arrow's take
// kernel with its own bounds checking disabled; the output is always a single
// chunk, with no validity bitmap when neither input has nulls.
func (g *Gatherer) takeNested(target, indices *columnar.Column) (*columnar.Column, error) {
	if target.NumChunks() > 1 || indices.NumChunks() > 1 {
		level.Debug(g.logger).Log(
			"msg", "rechunking nested gather inputs",
			"column", target.Name(),
			"target_chunks", target.NumChunks(),
			"index_chunks", indices.NumChunks(),
		)
		g.metrics.rechunks.WithLabelValues(rechunkReasonNested).Inc()
	}

	values, err := target.Rechunk(g.alloc)
	if err != nil {
		return nil, err
	}
	defer values.Release()

	idx, err := indices.Rechunk(g.alloc)
	if err != nil {
		return nil, err
	}
	defer idx.Release()

	ctx := arrowcompute.WithAllocator(context.Background(), g.alloc)
	out, err := arrowcompute.TakeArrayOpts(ctx, values.Chunk(0), idx.Chunk(0), arrowcompute.TakeOptions{BoundsCheck: false})
	if err != nil {
		return nil, fmt.Errorf("gather column %q: %w", target.Name(), err)
	}
	if target.NullN() == 0 && indices.NullN() == 0 {
		// The take kernel allocates a bitmap even for dense results.
		out = dropValidity(out)
	}
	defer out.Release()

	return target.WithChunks(out), nil
}
