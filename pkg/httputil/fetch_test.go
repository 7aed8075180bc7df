package httputil

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"
)

func TestFetcherLoad(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.Write([]byte(`{"nodes": []}`))
	}))
	defer srv.Close()

	cache, err := NewCache(t.TempDir(), time.Hour)
	if err != nil {
		t.Fatalf("NewCache: %v", err)
	}
	f := NewFetcher(cache)

	data, err := f.Load(srv.URL + "/spec.json")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if string(data) != `{"nodes": []}` {
		t.Errorf("Load = %q", data)
	}

	// The second load is served from the cache.
	if _, err := f.Load(srv.URL + "/spec.json"); err != nil {
		t.Fatalf("Load: %v", err)
	}
	if n := hits.Load(); n != 1 {
		t.Errorf("server hits = %d, want 1", n)
	}
}

func TestFetcherNotFound(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	defer srv.Close()

	f := NewFetcher(nil)
	if _, err := f.Load(srv.URL + "/missing.json"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Load = %v, want ErrNotFound", err)
	}
}

func TestFetcherRetriesServerErrors(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if hits.Add(1) == 1 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	f := &Fetcher{
		http: srv.Client(),
		ctx:  context.Background(),
	}
	data, err := retryLoad(t, f, srv.URL)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if string(data) != `{}` {
		t.Errorf("Load = %q", data)
	}
	if n := hits.Load(); n != 2 {
		t.Errorf("server hits = %d, want 2", n)
	}
}

// retryLoad runs the fetch with a fast retry policy to keep the test
// quick.
func retryLoad(t *testing.T, f *Fetcher, url string) ([]byte, error) {
	t.Helper()
	var data []byte
	err := Retry(f.ctx, 3, time.Millisecond, func() error {
		var ferr error
		data, ferr = f.fetch(url)
		return ferr
	})
	return data, err
}

func TestRetryStopsOnPermanentError(t *testing.T) {
	calls := 0
	err := Retry(context.Background(), 3, time.Millisecond, func() error {
		calls++
		return errors.New("permanent")
	})
	if err == nil || calls != 1 {
		t.Errorf("calls = %d, err = %v; want 1 call and the error", calls, err)
	}
}

func TestRetryExhaustsAttempts(t *testing.T) {
	calls := 0
	err := Retry(context.Background(), 3, time.Millisecond, func() error {
		calls++
		return &RetryableError{Err: errors.New("transient")}
	})
	if err == nil || calls != 3 {
		t.Errorf("calls = %d, err = %v; want 3 calls and the last error", calls, err)
	}
}

func TestRetryHonorsCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := Retry(ctx, 3, time.Minute, func() error {
		return &RetryableError{Err: errors.New("transient")}
	})
	if !errors.Is(err, context.Canceled) {
		t.Errorf("err = %v, want context.Canceled", err)
	}
}

func TestIsRemote(t *testing.T) {
	for ref, want := range map[string]bool{
		"https://example.com/spec.json": true,
		"http://example.com/spec.json":  true,
		"includes/filters.json":         false,
		"/abs/path/spec.json":           false,
	} {
		if got := IsRemote(ref); got != want {
			t.Errorf("IsRemote(%q) = %v, want %v", ref, got, want)
		}
	}
}
