package cli

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/mlenz/nodeforge/pkg/errors"
	"github.com/mlenz/nodeforge/pkg/httputil"
	"github.com/mlenz/nodeforge/pkg/schema"
	"github.com/mlenz/nodeforge/pkg/spec"
)

// includeCacheTTL bounds how long fetched remote includes are reused.
const includeCacheTTL = 24 * time.Hour

// includeLoader routes include references: HTTP(S) URLs go through the
// caching fetcher, everything else resolves as a path relative to the
// specification file.
type includeLoader struct {
	files   spec.FileLoader
	fetcher *httputil.Fetcher
}

func newIncludeLoader(ctx context.Context, base string) includeLoader {
	l := includeLoader{files: spec.FileLoader{Base: base}}
	cache, err := httputil.NewCache("", includeCacheTTL)
	if err != nil {
		// No cache directory is not fatal; remote includes are just
		// fetched every time.
		loggerFromContext(ctx).Warnf("include cache unavailable: %v", err)
	}
	l.fetcher = httputil.NewFetcher(cache).WithContext(ctx)
	return l
}

func (l includeLoader) Load(url string) ([]byte, error) {
	if httputil.IsRemote(url) {
		return l.fetcher.Load(url)
	}
	return l.files.Load(url)
}

// loadResolved reads, shape-checks, and resolves a specification file.
// Includes are resolved relative to the file's directory; remote
// includes are fetched over HTTP. Warnings are logged; accumulated
// errors fail the load.
func loadResolved(ctx context.Context, path string) (*spec.Resolved, error) {
	logger := loggerFromContext(ctx)

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read specification: %w", err)
	}
	if diags := schema.CheckSpecification(data); diags.HasErrors() {
		reportDiags(ctx, diags)
		return nil, fmt.Errorf("specification %s is malformed", path)
	}

	doc, err := spec.Parse(data)
	if err != nil {
		return nil, fmt.Errorf("parse specification: %w", err)
	}

	resolved, diags := spec.Resolve(doc, spec.ResolveOptions{
		Loader: newIncludeLoader(ctx, filepath.Dir(path)),
	})
	reportDiags(ctx, diags)
	if diags.HasErrors() {
		return nil, fmt.Errorf("specification %s did not resolve cleanly", path)
	}
	logger.Debugf("resolved %d node types", len(resolved.Types))
	return resolved, nil
}

// reportDiags logs every collected error and warning.
func reportDiags(ctx context.Context, diags errors.Diagnostics) {
	logger := loggerFromContext(ctx)
	for _, e := range diags.Errors {
		logger.Errorf("%s: %s", e.Code, e.Message)
	}
	for _, w := range diags.Warnings {
		logger.Warnf("%s: %s", w.Code, w.Message)
	}
}
