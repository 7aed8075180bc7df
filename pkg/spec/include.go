package spec

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/mlenz/nodeforge/pkg/dataflow"
	"github.com/mlenz/nodeforge/pkg/errors"
)

// Loader supplies the content behind include and includeGraphs
// directives. Resolution itself is a pure function over the bytes the
// loader returns; FileLoader and MapLoader cover local and pre-fetched
// content, and callers that need remote includes plug in a fetching
// loader of their own.
type Loader interface {
	// Load returns the raw JSON content for the given include reference.
	Load(url string) ([]byte, error)
}

// FileLoader resolves include references against a base directory.
type FileLoader struct {
	// Base is the directory relative references are resolved against.
	// An empty Base uses the current working directory.
	Base string
}

// Load reads the file at the reference path.
func (l FileLoader) Load(url string) ([]byte, error) {
	path := url
	if l.Base != "" && !filepath.IsAbs(path) {
		path = filepath.Join(l.Base, path)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read include %s: %w", url, err)
	}
	return data, nil
}

// MapLoader serves include content from an in-memory map keyed by
// reference. It is the loader to use for pre-fetched remote content and
// for tests.
type MapLoader map[string][]byte

// Load returns the mapped content or an error for unknown references.
func (l MapLoader) Load(url string) ([]byte, error) {
	data, ok := l[url]
	if !ok {
		return nil, fmt.Errorf("include %s: content not provided", url)
	}
	return data, nil
}

// flattened is the result of include expansion: every node-type
// definition, graph include, and embedded graph reachable from the root
// specification, in definition order (included fragments depth-first,
// then the root's own sections).
type flattened struct {
	nodes         []NodeTypeDefinition
	includeGraphs []GraphInclude
	graphs        []dataflow.Graph
}

// flattenIncludes expands the include directives of s recursively.
//
// A fragment included twice is loaded once and skipped on the second
// reference, so a true include cycle cannot recurse; the repeated
// reference is reported as a RESOLUTION_CONFLICT when it would recurse
// into an ancestor still being expanded. Load or parse failures are
// accumulated and the fragment is skipped.
func flattenIncludes(s Specification, loader Loader, diags *errors.Diagnostics) flattened {
	f := &flattened{}
	expanding := make(map[string]bool) // include URLs on the current expansion path
	done := make(map[string]bool)      // include URLs fully expanded
	flattenInto(f, s, "", loader, expanding, done, diags)
	return *f
}

func flattenInto(f *flattened, s Specification, style string, loader Loader, expanding, done map[string]bool, diags *errors.Diagnostics) {
	for _, inc := range s.Include {
		if expanding[inc.URL] {
			diags.Errorf(errors.ErrCodeResolutionConflict, "include cycle through %q", inc.URL)
			continue
		}
		if done[inc.URL] {
			continue
		}
		if loader == nil {
			diags.Errorf(errors.ErrCodeInvalidInput, "include %q: no loader configured", inc.URL)
			continue
		}
		data, err := loader.Load(inc.URL)
		if err != nil {
			diags.AddError(errors.Wrap(errors.ErrCodeNotFound, err, "include %q", inc.URL))
			continue
		}
		sub, err := Parse(data)
		if err != nil {
			diags.AddError(errors.Wrap(errors.ErrCodeSchema, err, "include %q", inc.URL))
			continue
		}
		expanding[inc.URL] = true
		flattenInto(f, sub, inc.Style, loader, expanding, done, diags)
		delete(expanding, inc.URL)
		done[inc.URL] = true
	}

	for _, def := range s.Nodes {
		if style != "" {
			def.Style = append(append(TypeList{}, def.Style...), style)
		}
		f.nodes = append(f.nodes, def)
	}
	f.includeGraphs = append(f.includeGraphs, s.IncludeGraphs...)
	f.graphs = append(f.graphs, s.Graphs...)
}
