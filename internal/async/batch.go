package async

import (
	"context"

	"golang.org/x/sync/errgroup"

	"github.com/joseph-ayodele/doc-intake/internal/pipeline"
)

// BatchItem pairs an input with its result or error. Exactly one of Result and Err is set.
type BatchItem struct {
	Input  pipeline.Input
	Result *pipeline.ExtractionResult
	Err    error
}

// RunBatch extracts inputs with at most limit running at once.
// Per-document failures are recorded on the item; only cancellation of ctx aborts the batch.
// Items keep the order of inputs.
func RunBatch(ctx context.Context, proc Processor, inputs []pipeline.Input, limit int) ([]BatchItem, error) {
	if limit <= 0 {
		limit = 1
	}
	items := make([]BatchItem, len(inputs))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(limit)
	for i, in := range inputs {
		items[i].Input = in
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				items[i].Err = err
				return err
			}
			res, err := proc.Run(gctx, in)
			items[i].Result, items[i].Err = res, err
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return items, err
	}
	return items, ctx.Err()
}
