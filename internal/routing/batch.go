package routing

import (
	"context"
	"runtime"

	"golang.org/x/sync/errgroup"
)

// BatchResult is the outcome of one request of a batch.
type BatchResult struct {
	Result *PlanResult
	Err    error
}

// PlanBatch plans every request concurrently, at most parallelism at a time
// (GOMAXPROCS when parallelism is not positive). Results are in request order.
// A failing request does not stop the others.
func (p *Planner) PlanBatch(ctx context.Context, reqs []PlanRequest, parallelism int) []BatchResult {
	if parallelism <= 0 {
		parallelism = runtime.GOMAXPROCS(0)
	}
	results := make([]BatchResult, len(reqs))

	var g errgroup.Group
	g.SetLimit(parallelism)
	for i, req := range reqs {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				results[i].Err = err
				return nil
			}
			results[i].Result, results[i].Err = p.Plan(ctx, req)
			return nil
		})
	}
	_ = g.Wait()
	return results
}
