// Package preview derives raster preview images from stored documents.
// Generation runs out-of-band from document creation: its failures (bad
// format, corrupt content, storage errors, timeouts) degrade to a recorded
// previewStatus=failed and never reach the create/replace caller.
package preview

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"path"
	"time"

	"github.com/disintegration/imaging"

	"github.com/dokstore/dokstore/internal/audit"
	"github.com/dokstore/dokstore/internal/document"
	"github.com/dokstore/dokstore/internal/storage"
	"github.com/dokstore/dokstore/pkg/logger"
	"github.com/dokstore/dokstore/pkg/metrics"
)

// Job asks for a preview of one document. Delivery is at-least-once;
// Generate is idempotent for duplicate jobs.
type Job struct {
	DocumentID string `json:"documentId"`
	Force      bool   `json:"force,omitempty"`
}

// Dispatcher hands a job to whatever runs generation (in-process pool or
// Redis queue). Dispatch must not block on the generation itself.
type Dispatcher interface {
	Dispatch(ctx context.Context, j Job) error
}

// Store is the narrow record-store surface generation needs.
type Store interface {
	GetDocument(ctx context.Context, id string) (*document.Document, error)
	UpdatePreview(ctx context.Context, id string, status document.PreviewStatus, previewRef string) error
}

// Rasterizer turns the first page of a paged document into an image.
type Rasterizer interface {
	FirstPage(data []byte) (image.Image, error)
}

// Options bound generation behavior.
type Options struct {
	PreviewDir string        // key prefix for stored previews
	Timeout    time.Duration // hard cap per document; 0 means 30s
	MaxWidth   int           // downscale wider renders; 0 keeps original size
	Quality    int           // JPEG quality; 0 means 85
}

// Generator runs the pipeline for single documents.
type Generator struct {
	store  Store
	blobs  storage.BlobStore
	audit  *audit.Recorder
	raster Rasterizer
	opts   Options
}

func NewGenerator(store Store, blobs storage.BlobStore, rec *audit.Recorder, raster Rasterizer, opts Options) *Generator {
	if opts.Timeout <= 0 {
		opts.Timeout = 30 * time.Second
	}
	if opts.Quality <= 0 {
		opts.Quality = 85
	}
	if opts.PreviewDir == "" {
		opts.PreviewDir = "previews/"
	}
	return &Generator{store: store, blobs: blobs, audit: rec, raster: raster, opts: opts}
}

// Generate renders and stores a JPEG preview for the document. Re-invocation
// on a ready preview is a no-op unless force is set; on none/failed it
// redoes the work (at-least-once dispatch makes duplicates normal).
// Generation failures are contained: the document ends up previewStatus=
// failed with a preview_failed audit event, and the returned error is nil.
// Only a missing document or a failed status write surfaces as an error.
func (g *Generator) Generate(ctx context.Context, documentID string, force bool) error {
	d, err := g.store.GetDocument(ctx, documentID)
	if err != nil {
		return fmt.Errorf("preview: load document %s: %w", documentID, err)
	}
	if d.PreviewStatus == document.PreviewReady && !force {
		return nil
	}

	if err := g.store.UpdatePreview(ctx, d.ID, document.PreviewPending, ""); err != nil {
		return fmt.Errorf("preview: mark pending %s: %w", d.ID, err)
	}

	ref, genErr := g.render(ctx, d)
	if genErr != nil {
		logger.Warnf("preview generation failed for document %s: %v", d.ID, genErr)
		if err := g.store.UpdatePreview(ctx, d.ID, document.PreviewFailed, ""); err != nil {
			return fmt.Errorf("preview: mark failed %s: %w", d.ID, err)
		}
		if _, err := g.audit.Record(ctx, d.ID, audit.KindPreviewFailed, genErr.Error()); err != nil {
			logger.Errorf("failed to record preview_failed for %s: %v", d.ID, err)
		}
		metrics.PreviewsGenerated.WithLabelValues("failed").Inc()
		return nil
	}

	if err := g.store.UpdatePreview(ctx, d.ID, document.PreviewReady, ref); err != nil {
		return fmt.Errorf("preview: mark ready %s: %w", d.ID, err)
	}
	if _, err := g.audit.Record(ctx, d.ID, audit.KindPreviewSucceeded, ref); err != nil {
		logger.Errorf("failed to record preview_succeeded for %s: %v", d.ID, err)
	}
	metrics.PreviewsGenerated.WithLabelValues("ready").Inc()
	logger.Debugf("preview ready for document %s at %s", d.ID, ref)
	return nil
}

// render does the bounded decode/rasterize/encode/store work and returns
// the preview blob reference.
func (g *Generator) render(ctx context.Context, d *document.Document) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, g.opts.Timeout)
	defer cancel()

	data, err := g.blobs.Read(ctx, d.FileRef)
	if err != nil {
		return "", fmt.Errorf("read file: %w", err)
	}

	// rasterization runs in its own goroutine so a hung decoder cannot
	// outlive the timeout
	type result struct {
		img image.Image
		err error
	}
	ch := make(chan result, 1)
	go func() {
		img, err := g.raster.FirstPage(data)
		ch <- result{img: img, err: err}
	}()

	var img image.Image
	select {
	case <-ctx.Done():
		return "", fmt.Errorf("rasterize: %w", ctx.Err())
	case r := <-ch:
		if r.err != nil {
			return "", fmt.Errorf("rasterize: %w", r.err)
		}
		img = r.img
	}

	if g.opts.MaxWidth > 0 && img.Bounds().Dx() > g.opts.MaxWidth {
		img = imaging.Resize(img, g.opts.MaxWidth, 0, imaging.Lanczos)
	}
	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, imaging.JPEG, imaging.JPEGQuality(g.opts.Quality)); err != nil {
		return "", fmt.Errorf("encode jpeg: %w", err)
	}

	key := path.Join(g.opts.PreviewDir, d.ID+".jpg")
	ref, err := g.blobs.Write(ctx, key, buf.Bytes(), "image/jpeg")
	if err != nil {
		return "", fmt.Errorf("store preview: %w", err)
	}
	return ref, nil
}
