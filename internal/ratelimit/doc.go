// Package ratelimit implements the deferred job rate limiter that gates outbound requests to one provider.
//
// A [Limiter] owns a single worker goroutine that drains a queue of [Job]s one at a time. Before each dispatch the worker
// asks the provider's [Throttle] how long to wait, and after each job it reports the outcome back so the throttle can
// record request history. Normal-priority jobs are always dequeued before low-priority jobs; a running job is never
// preempted.
//
// Three throttle policies are provided:
//   - [MinInterval] : a fixed gap between the end of one request and the start of the next
//   - [Window] : at most N requests in any rolling window
//   - [TokenBucket] : a token bucket backed by golang.org/x/time/rate
//
// All of them honor HTTP 429/503 responses by pausing until the server's Retry-After has passed.
//
// The limiter does not coalesce identical requests; callers put a [cache.Cache] in front of it so that a cache miss
// produces exactly one job per key.
package ratelimit
