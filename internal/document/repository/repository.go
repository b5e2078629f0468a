// Package repository defines the record-store collaborator for documents,
// document types and audit events, with in-memory and MongoDB
// implementations.
package repository

import (
	"context"
	"errors"

	"github.com/dokstore/dokstore/internal/audit"
	"github.com/dokstore/dokstore/internal/document"
)

// ErrSuccessorExists is returned by InsertDocument when another document
// already names the same predecessor. This is the serialization point for
// concurrent replaces: the store enforces at most one successor per
// predecessor, so of two racing inserts exactly one fails here.
var ErrSuccessorExists = errors.New("predecessor already has a successor")

// Store is the full record-store surface consumed by the service layer.
// Write methods called with a context produced by WithTransaction join that
// transaction; either every write in the unit becomes durably visible or
// none does.
type Store interface {
	document.Lookup
	audit.Sink

	InsertType(ctx context.Context, t *document.DocumentType) error
	GetType(ctx context.Context, id string) (*document.DocumentType, error)

	InsertDocument(ctx context.Context, d *document.Document) error

	// UpdatePreview records a preview-status transition. The only mutation
	// the store permits on an existing document.
	UpdatePreview(ctx context.Context, id string, status document.PreviewStatus, previewRef string) error

	DeleteDocument(ctx context.Context, id string) error

	// WithTransaction runs fn as one atomic unit. fn receives the context
	// its store calls must use. Returning an error rolls everything back
	// and propagates the error unchanged.
	WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}
