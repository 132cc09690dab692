// Package ratelimit paces requests sent to the remote API.
//
// TokenBucket refills to full capacity once per period. The transport takes a
// token before every attempt when a requests-per-minute limit is configured:
//
//	limiter := ratelimit.PerMinute(60)
//	if err := limiter.Wait(ctx); err != nil {
//	    return err
//	}
package ratelimit
