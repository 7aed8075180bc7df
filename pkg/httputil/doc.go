// Package httputil fetches remote include content for specification
// resolution: the include and includeGraphs references of a
// specification may point at HTTP(S) URLs, and this package provides
// the loader that retrieves them.
//
// # Fetching
//
// [Fetcher] implements the loader contract of the specification
// resolver (a Load method taking a reference and returning raw bytes).
// Responses are cached on disk and transient failures are retried with
// exponential backoff, so resolving a specification with remote
// includes is cheap after the first run and robust against flaky
// registries.
//
//	cache, err := httputil.NewCache("", 24*time.Hour)
//	if err != nil { ... }
//	loader := httputil.NewFetcher(cache)
//	resolved, diags := spec.Resolve(doc, spec.ResolveOptions{Loader: loader})
//
// # Caching
//
// [Cache] stores entries as JSON files under ~/.cache/nodeforge/ by
// default, keyed by a SHA-256 hash of the cache key, with a
// time-to-live based on file modification time. A TTL of 0 means
// entries never expire. Multiple processes can share one cache
// directory; single entries are written atomically by the filesystem.
//
// # Retry
//
// [Retry] re-runs an operation with exponential backoff. Only errors
// wrapped in [RetryableError] are retried; everything else fails
// immediately. The fetcher wraps network errors and 5xx responses this
// way, so a 404 for a missing include fails fast while a registry
// hiccup gets three attempts.
package httputil
