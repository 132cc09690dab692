// Package retry holds the retry policy used by the transport and a small
// generic retry loop.
//
// A Policy fixes the attempt budget, the backoff factor and the set of
// retryable HTTP statuses. Its delay curve is factor * 2^(n-1) seconds after
// the n-th failed attempt, capped at MaxDelay, so waits never shrink.
//
//	p, err := retry.NewPolicy(5, 0.5, 429, 503)
//	attempts, err := retry.Do(ctx, func(ctx context.Context, attempt int) error {
//		return call(ctx)
//	}, retry.ConfigFromPolicy(p, retry.DefaultRetryIf, log))
//
// Wait is the context-aware sleep shared by backoff and crawl throttling.
package retry
