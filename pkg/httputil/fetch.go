package httputil

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/mlenz/nodeforge/pkg/observability"
)

const (
	fetchTimeout = 10 * time.Second

	// maxIncludeSize caps a fetched include document. Specification
	// fragments are small; anything larger is a misdirected URL.
	maxIncludeSize = 8 << 20
)

var (
	// ErrNotFound is returned when an include URL resolves to a 404.
	ErrNotFound = errors.New("include not found")

	// ErrNetwork is returned for HTTP failures (timeouts, connection
	// errors, 5xx responses).
	ErrNetwork = errors.New("network error")
)

// Fetcher retrieves remote include content over HTTP(S). It satisfies
// the specification resolver's loader contract: cached content is
// served from disk, misses are fetched with retry and stored.
type Fetcher struct {
	http  *http.Client
	cache *Cache
	ctx   context.Context
}

// NewFetcher creates a Fetcher over the given cache. A nil cache
// disables caching; every Load then hits the network.
func NewFetcher(cache *Cache) *Fetcher {
	return &Fetcher{
		http:  &http.Client{Timeout: fetchTimeout},
		cache: cache,
		ctx:   context.Background(),
	}
}

// WithContext returns a copy of the Fetcher whose requests and retry
// backoffs are governed by ctx.
func (f *Fetcher) WithContext(ctx context.Context) *Fetcher {
	cp := *f
	cp.ctx = ctx
	return &cp
}

// Load returns the raw content behind an include URL.
//
// Cache hits skip the network entirely. On a miss or an expired entry
// the URL is fetched with the default retry policy; 5xx responses and
// connection failures are retried, a 404 maps to [ErrNotFound]
// immediately.
func (f *Fetcher) Load(url string) ([]byte, error) {
	if f.cache != nil {
		var data []byte
		if ok, _ := f.cache.Get(url, &data); ok {
			observability.Cache().OnCacheHit(f.ctx, "include")
			return data, nil
		}
		observability.Cache().OnCacheMiss(f.ctx, "include")
	}

	var data []byte
	err := RetryWithBackoff(f.ctx, func() error {
		var ferr error
		data, ferr = f.fetch(url)
		return ferr
	})
	if err != nil {
		return nil, fmt.Errorf("fetch include %s: %w", url, err)
	}

	if f.cache != nil {
		if err := f.cache.Set(url, data); err == nil {
			observability.Cache().OnCacheSet(f.ctx, "include", len(data))
		}
	}
	return data, nil
}

func (f *Fetcher) fetch(url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(f.ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	observability.HTTP().OnRequest(f.ctx, req.Method, req.URL.Host, req.URL.Path)

	start := time.Now()
	resp, err := f.http.Do(req)
	if err != nil {
		observability.HTTP().OnError(f.ctx, req.Method, req.URL.Host, req.URL.Path, err)
		return nil, &RetryableError{Err: fmt.Errorf("%w: %v", ErrNetwork, err)}
	}
	defer resp.Body.Close()
	observability.HTTP().OnResponse(f.ctx, req.Method, req.URL.Host, req.URL.Path, resp.StatusCode, time.Since(start))

	if err := checkStatus(resp.StatusCode); err != nil {
		return nil, err
	}
	return io.ReadAll(io.LimitReader(resp.Body, maxIncludeSize))
}

func checkStatus(code int) error {
	switch {
	case code == http.StatusOK:
		return nil
	case code == http.StatusNotFound:
		return ErrNotFound
	case code >= 500:
		return &RetryableError{Err: fmt.Errorf("%w: status %d", ErrNetwork, code)}
	default:
		return fmt.Errorf("%w: status %d", ErrNetwork, code)
	}
}

// IsRemote reports whether a loader reference is an HTTP(S) URL rather
// than a local path.
func IsRemote(ref string) bool {
	return strings.HasPrefix(ref, "http://") || strings.HasPrefix(ref, "https://")
}
