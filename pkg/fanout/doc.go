// Package fanout runs a function over a batch of items on a bounded worker
// pool.
//
// At most MaxConcurrency calls are in flight at any instant. Workers pull
// from a shared queue, so a worker picks up the next item as soon as its
// previous call returns; items are never grouped into fixed-size batches.
// Run returns only after every queued item has been processed, which makes
// it a barrier between pipeline phases.
//
// Example usage:
//
//	cfg := fanout.Config{MaxConcurrency: 3, Name: "vehicles"}
//	results := fanout.Run(ctx, ids, cfg, func(ctx context.Context, id int) (Record, error) {
//		return fetch(ctx, id)
//	})
//
// Per-item errors are reported in Result.Err and never stop sibling calls.
// Cancelling ctx stops workers from taking new items; items never started
// are reported with the context error.
package fanout
