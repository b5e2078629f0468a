// Package storage provides the blob-store collaborator: opaque byte
// storage addressed by key, used for original document files and generated
// previews.
package storage

import (
	"context"
	"errors"
)

// ErrBlobNotFound is returned when no blob exists under the requested key.
var ErrBlobNotFound = errors.New("blob not found")

// BlobStore is the narrow surface the document and preview services need.
// Keys are slash-separated paths; the "documents/" and "previews/"
// namespaces come from configuration, not from the store.
type BlobStore interface {
	Write(ctx context.Context, key string, data []byte, contentType string) (string, error)
	Read(ctx context.Context, ref string) ([]byte, error)
	// Delete removes the blob under ref. Deleting an absent ref is not an
	// error; callers use it for best-effort cleanup.
	Delete(ctx context.Context, ref string) error
}
