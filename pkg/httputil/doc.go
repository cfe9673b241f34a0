// Package httputil provides HTTP plumbing shared by search providers,
// the asset fetcher and the webhook publisher.
//
// # Retry
//
// [Retry] re-runs an operation when it fails with a [RetryableError]:
//
//   - Network errors (connection refused, reset, timeouts)
//   - 5xx server errors
//   - 429 rate limit responses
//
// Other errors are returned immediately. The delay doubles after each
// attempt and the loop aborts as soon as the context is done:
//
//	err := httputil.RetryWithBackoff(ctx, func() error {
//	    return fetch(ctx, url)
//	})
//
// # Status classification
//
// [CheckStatus] maps an HTTP status code onto the error vocabulary used by
// the rest of the module: nil for 2xx, [ErrNotFound] for 404, retryable
// [ErrNetwork] for 5xx and 429, plain [ErrNetwork] otherwise.
//
// # Outbound URL guard
//
// Image URLs come from a third-party search index, so [IsSafeURL] rejects
// non-http(s) schemes and hosts that resolve to private, loopback or
// link-local addresses before anything is fetched.
package httputil
