// Package http provides the JSON client lockdash uses to talk to the lock API.
//
// The client is deliberately single-shot: it never retries. Retry policy,
// backoff and user-facing classification live in the fetcher package, which
// needs to observe every attempt.
//
// Errors
//   - Transport failures (connection refused, DNS, reset) return a NetworkError.
//   - Deadline or net.Error timeouts return a TimeoutError.
//   - Non-2xx responses return the Response together with an HTTPError that
//     carries the status code and raw body.
//   - Interceptor failures return an InterceptorError and are never sent.
//
// Requests
//   - Relative URLs are resolved against the builder's base URL.
//   - A body without an explicit Content-Type is sent as application/json.
//   - Every request carries an X-Request-ID taken from the context or freshly generated.
package http
