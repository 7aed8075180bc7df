// Package store persists dataflow documents.
//
// This package defines the storage interface the CLI and HTTP API load
// and save documents through, with implementations for different
// backends:
//   - file: JSON files in a config directory, for CLI use
//   - redis: Redis-backed storage for multi-instance deployments
//   - mongo: MongoDB-backed storage for durable server deployments
//
// All backends key documents by a caller-chosen id and store the full
// document; there is no partial update. A missing id reads as a
// NOT_FOUND error, checked with IsNotFound.
package store

import (
	"context"

	"github.com/mlenz/nodeforge/pkg/dataflow"
	"github.com/mlenz/nodeforge/pkg/errors"
)

// Store is the interface for dataflow document storage backends.
type Store interface {
	// Get retrieves the document stored under id. A missing id returns a
	// NOT_FOUND error.
	Get(ctx context.Context, id string) (*dataflow.Dataflow, error)

	// Put stores the document under id, replacing any previous version.
	Put(ctx context.Context, id string, doc *dataflow.Dataflow) error

	// Delete removes the document under id. Deleting a missing id is not
	// an error.
	Delete(ctx context.Context, id string) error

	// List returns the stored document ids.
	List(ctx context.Context) ([]string, error)

	// Close releases backend resources.
	Close() error
}

// NotFound builds the error every backend returns for a missing id.
func NotFound(id string) error {
	return errors.New(errors.ErrCodeNotFound, "dataflow %q not found", id)
}

// IsNotFound reports whether err marks a missing document.
func IsNotFound(err error) bool {
	return errors.Is(err, errors.ErrCodeNotFound)
}
