package dispatch

import (
	"context"

	"golang.org/x/sync/errgroup"

	"github.com/dusk-indust/conductor/internal/backend"
)

// BatchResult pairs one request's outcome with its input position. Exactly
// one of Result and Err is set.
type BatchResult struct {
	Result *Result
	Err    error
}

// SubmitBatch fans out requests under the same global concurrency cap,
// filling one concurrency window at a time with a fixed delay between
// successive windows. Results are returned in input order regardless of
// completion order.
func (d *Dispatcher) SubmitBatch(ctx context.Context, reqs []backend.Request) []BatchResult {
	results := make([]BatchResult, len(reqs))

	window := d.cfg.MaxConcurrent
	for offset := 0; offset < len(reqs); offset += window {
		if offset > 0 {
			if err := d.sleep(ctx, d.cfg.BatchDelay); err != nil {
				for i := offset; i < len(reqs); i++ {
					results[i] = BatchResult{Err: err}
				}
				return results
			}
		}

		end := offset + window
		if end > len(reqs) {
			end = len(reqs)
		}

		g := new(errgroup.Group)
		for i := offset; i < end; i++ {
			g.Go(func() error {
				res, err := d.Submit(ctx, reqs[i])
				results[i] = BatchResult{Result: res, Err: err}
				return nil // one failure must not abandon its siblings
			})
		}
		_ = g.Wait()
	}

	return results
}
