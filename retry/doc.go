// Package retry runs fallible remote calls with bounded attempts and
// exponential backoff.
//
// An Executor classifies every failure with core.Classify and retries only
// the ones its Policy considers retryable (transient by default). Each
// attempt produces exactly one Event for the configured Observer:
//
//	exec, err := retry.New(retry.DefaultPolicy(), retry.WithObserver(obs))
//	res, err := exec.Do(ctx, "vision", func(ctx context.Context) error {
//		out, err = model.ExtractText(ctx, image, mime, opts)
//		return err
//	})
//
// The wait before attempt n+1 is min(BaseDelay*2^(n-1), MaxDelay), spread by
// Jitter. Cancelling ctx stops the executor between attempts and yields an
// OutcomeCancelled result whose error wraps core.ErrCancelled.
package retry
