// Package validator checks dataflow documents against a resolved
// specification and reports every distinct violation.
//
// Validation runs in two stages. The structural schema check comes
// first; a malformed document is fatal, since semantic checks on a shape
// that did not decode would only produce noise. The semantic stage then
// loads every non-stub graph through the graph model, which verifies
// node types against the catalog, interfaces and properties against the
// resolved definitions (honoring enabled interface groups), and every
// connection's direction, type, and arity compatibility. All diagnostics
// are accumulated; validation never stops at the first defect within a
// stage.
package validator

import (
	"context"
	"fmt"
	"time"

	"github.com/mlenz/nodeforge/pkg/dataflow"
	"github.com/mlenz/nodeforge/pkg/errors"
	"github.com/mlenz/nodeforge/pkg/graph"
	"github.com/mlenz/nodeforge/pkg/observability"
	"github.com/mlenz/nodeforge/pkg/schema"
	"github.com/mlenz/nodeforge/pkg/spec"
)

// Validation statuses.
const (
	StatusValid   = "valid"
	StatusInvalid = "invalid"
)

// Result is the outcome of validating one document. Status is "valid"
// exactly when Errors is empty; warnings alone do not invalidate.
type Result struct {
	Status   string  `json:"status"`
	Errors   []Issue `json:"errors"`
	Warnings []Issue `json:"warnings"`
}

// Issue is one reported violation.
type Issue struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Validate checks a dataflow document, given as raw JSON, against a
// resolved specification.
func Validate(ctx context.Context, data []byte, resolved *spec.Resolved) Result {
	return run(ctx, "dataflow", func() Result {
		diags := schema.CheckDataflow(data)
		if diags.HasErrors() {
			return ResultFrom(diags)
		}

		doc, err := dataflow.UnmarshalDataflow(data)
		if err != nil {
			diags.AddError(errors.Wrap(errors.ErrCodeSchema, err, "decode dataflow document"))
			return ResultFrom(diags)
		}
		diags.Merge(checkDocument(doc, resolved))
		return ResultFrom(diags)
	})
}

// ValidateGraph checks a single graph document, given as raw JSON,
// against a resolved specification.
func ValidateGraph(ctx context.Context, data []byte, resolved *spec.Resolved) Result {
	return run(ctx, "graph", func() Result {
		diags := schema.CheckGraph(data)
		if diags.HasErrors() {
			return ResultFrom(diags)
		}

		doc, err := dataflow.UnmarshalGraph(data)
		if err != nil {
			diags.AddError(errors.Wrap(errors.ErrCodeSchema, err, "decode graph document"))
			return ResultFrom(diags)
		}
		_, gdiags := graph.Load(doc, resolved)
		diags.Merge(gdiags)
		return ResultFrom(diags)
	})
}

// run brackets one validation with the observability hooks.
func run(ctx context.Context, kind string, fn func() Result) Result {
	observability.Validation().OnValidateStart(ctx, kind)
	start := time.Now()
	res := fn()
	observability.Validation().OnValidateComplete(ctx, kind, len(res.Errors), len(res.Warnings), time.Since(start))
	return res
}

// checkDocument runs the semantic stage over every graph of a decoded
// dataflow document.
func checkDocument(doc dataflow.Dataflow, resolved *spec.Resolved) errors.Diagnostics {
	var diags errors.Diagnostics

	seen := make(map[string]bool)
	for _, gd := range doc.Graphs {
		if seen[gd.ID] {
			diags.Errorf(errors.ErrCodeReference, "graph id %q used more than once", gd.ID)
			continue
		}
		seen[gd.ID] = true
		if gd.IsStub() {
			continue
		}
		_, gdiags := graph.Load(gd, resolved)
		diags.Merge(gdiags)
	}

	if doc.EntryGraph != "" && !seen[doc.EntryGraph] {
		diags.Errorf(errors.ErrCodeReference,
			"entry graph %q is not present in the document", doc.EntryGraph)
	}

	// Subgraph references must point at graphs in the same document or at
	// graphs registered with the resolved specification.
	for _, gd := range doc.Graphs {
		for _, nd := range gd.Nodes {
			if nd.Subgraph == "" {
				continue
			}
			if seen[nd.Subgraph] {
				continue
			}
			if _, ok := resolved.Graphs[nd.Subgraph]; ok {
				continue
			}
			diags.Errorf(errors.ErrCodeReference,
				"graph %q: node %q references unknown subgraph %q", gd.ID, nd.ID, nd.Subgraph)
		}
	}
	return diags
}

// ResultFrom converts accumulated diagnostics into a Result. Callers
// that run the schema or resolution stages themselves use this to render
// their diagnostics in the validation response shape.
func ResultFrom(diags errors.Diagnostics) Result {
	res := Result{
		Status:   StatusValid,
		Errors:   issues(diags.Errors),
		Warnings: issues(diags.Warnings),
	}
	if len(res.Errors) > 0 {
		res.Status = StatusInvalid
	}
	return res
}

func issues(errs []*errors.Error) []Issue {
	out := make([]Issue, len(errs))
	for i, e := range errs {
		msg := e.Message
		if e.Cause != nil {
			msg = fmt.Sprintf("%s: %v", e.Message, e.Cause)
		}
		out[i] = Issue{Code: string(e.Code), Message: msg}
	}
	return out
}

// Summary renders a short human-readable line for CLI output.
func (r Result) Summary() string {
	return fmt.Sprintf("%s (%d errors, %d warnings)", r.Status, len(r.Errors), len(r.Warnings))
}
