// Package cache implements the keyed response cache that sits in front of every provider repository.
//
// A [Cache] maps a key (usually a request URL) to a fetched value. On a miss it runs the fetch function exactly once per key,
// no matter how many callers are waiting: callers for the same key queue on a per-key lock and share the result of the fetch
// that completed while they waited, including its failure. Callers for different keys never block each other.
//
// Entries are authoritative for the configured retention. A background sweep owned by the cache evicts stale entries every
// retention interval until [Cache.Close] is called.
//
// Values are stored as pointers; a nil value is a cached "not found" and is distinct from a miss.
package cache
