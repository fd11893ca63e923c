package ingestion

import (
	"context"
	"sync"

	"github.com/panjf2000/ants/v2"
	"github.com/poiesic/scriptorium/retry"
)

// dispatcher runs remote calls through the retry executor on a bounded pool.
type dispatcher struct {
	pool *ants.Pool
	exec *retry.Executor
}

// call runs fn through the executor.
func (d *dispatcher) call(ctx context.Context, op string, fn func(ctx context.Context) error) error {
	_, err := d.exec.Do(ctx, op, fn)
	return err
}

// each runs fn for 0..n-1 on the pool and waits for all of them. The first
// error cancels the context handed to the remaining calls and is returned.
func (d *dispatcher) each(ctx context.Context, n int, fn func(ctx context.Context, i int) error) error {
	ctx, cancel := context.WithCancelCause(ctx)
	defer cancel(nil)

	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		if ctx.Err() != nil {
			break
		}
		wg.Add(1)
		err := d.pool.Submit(func() {
			defer wg.Done()
			if err := fn(ctx, i); err != nil {
				cancel(err)
			}
		})
		if err != nil {
			wg.Done()
			cancel(err)
			break
		}
	}
	wg.Wait()
	return context.Cause(ctx)
}
