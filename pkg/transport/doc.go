// Package transport is the retrying HTTP client used for every call to the
// remote API.
//
// Each logical request gets up to Policy.MaxAttempts tries. Responses whose
// status is in the policy's retryable set, network failures and per-attempt
// timeouts are retried after the policy's backoff delay; other non-2xx
// statuses fail at once. Either way the caller sees one *errors.TransportError
// carrying the last status or cause.
//
//	client := transport.New(retry.DefaultPolicy(),
//	    transport.WithHeaders(session.Headers()),
//	    transport.WithTimeout(30*time.Second),
//	)
//	resp, err := client.Get(ctx, url)
package transport
