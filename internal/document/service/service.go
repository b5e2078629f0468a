// Package service implements the document business operations: type
// registry, creation, the atomic replace path, deletion, and the read
// queries the handler layer exposes.
package service

import (
	"context"
	"errors"
	"fmt"
	"path"
	"time"

	"github.com/dokstore/dokstore/internal/audit"
	"github.com/dokstore/dokstore/internal/document"
	"github.com/dokstore/dokstore/internal/document/repository"
	"github.com/dokstore/dokstore/internal/preview"
	"github.com/dokstore/dokstore/internal/storage"
	"github.com/dokstore/dokstore/pkg/logger"
	"github.com/dokstore/dokstore/pkg/metrics"
)

// Config carries the document-policy settings. ProtectAfter of zero means
// documents are protected immediately on creation.
type Config struct {
	DocumentsDir  string
	ProtectAfter  time.Duration
	RenderPreview bool
}

// Service coordinates the record store, blob store, audit log and preview
// dispatcher. It holds no mutable state of its own; all serialization
// lives in the store.
type Service struct {
	store    repository.Store
	blobs    storage.BlobStore
	audit    *audit.Recorder
	previews preview.Dispatcher
	cfg      Config
	now      func() time.Time
}

// New builds a Service. dispatcher may be nil (previews disabled); now may
// be nil for the wall clock.
func New(store repository.Store, blobs storage.BlobStore, rec *audit.Recorder, dispatcher preview.Dispatcher, cfg Config, now func() time.Time) *Service {
	if now == nil {
		now = time.Now
	}
	if cfg.DocumentsDir == "" {
		cfg.DocumentsDir = "documents/"
	}
	return &Service{store: store, blobs: blobs, audit: rec, previews: dispatcher, cfg: cfg, now: now}
}

// CreateType registers a new document type; the name (and its slug) must be
// unique.
func (s *Service) CreateType(ctx context.Context, name string) (*document.DocumentType, error) {
	if name == "" {
		return nil, fmt.Errorf("type name required")
	}
	t := document.NewType(name)
	if err := s.store.InsertType(ctx, t); err != nil {
		return nil, err
	}
	logger.Infof("document type %s created (%s)", t.ID, t.Name)
	return t, nil
}

func (s *Service) GetType(ctx context.Context, id string) (*document.DocumentType, error) {
	return s.store.GetType(ctx, id)
}

// Create stores the file, persists a new chain root together with its
// `created` audit event in one transaction, and dispatches preview
// generation after the commit.
func (s *Service) Create(ctx context.Context, name, typeID string, data []byte, contentType string) (*document.Document, error) {
	if _, err := s.store.GetType(ctx, typeID); err != nil {
		return nil, fmt.Errorf("resolve type %s: %w", typeID, err)
	}
	d := document.NewRoot(name, typeID, "", s.now().UTC())
	ref, err := s.blobs.Write(ctx, s.fileKey(d), data, contentType)
	if err != nil {
		return nil, fmt.Errorf("%w: store file: %v", document.ErrTransaction, err)
	}
	d.FileRef = ref

	err = s.store.WithTransaction(ctx, func(ctx context.Context) error {
		if err := s.store.InsertDocument(ctx, d); err != nil {
			return err
		}
		_, err := s.audit.Record(ctx, d.ID, audit.KindCreated, "document created")
		return err
	})
	if err != nil {
		s.removeBlob(ctx, ref)
		return nil, fmt.Errorf("%w: create: %v", document.ErrTransaction, err)
	}

	metrics.DocumentsCreated.Inc()
	logger.Infof("document %s created (%s)", d.ID, d.Name)
	s.dispatchPreview(ctx, d.ID, false)
	return d, nil
}

func (s *Service) Get(ctx context.Context, id string) (*document.Document, error) {
	return s.store.GetDocument(ctx, id)
}

// Replace creates the next version of the chain containing id. The target
// must be the current head and still inside its mutable window. The new
// document and its replace_succeeded event commit atomically; a concurrent
// winner turns the loser's insert into ErrNotHead via the store's
// one-successor-per-predecessor constraint. Preview dispatch happens only
// after the commit.
func (s *Service) Replace(ctx context.Context, id, newName string, data []byte, contentType string) (*document.Document, error) {
	cur, err := s.store.GetDocument(ctx, id)
	if err != nil {
		return nil, err
	}
	head, err := document.HeadOf(ctx, s.store, cur)
	if err != nil {
		return nil, err
	}
	if head.ID != cur.ID {
		metrics.Replacements.WithLabelValues("not_head").Inc()
		return nil, fmt.Errorf("%w: head is %s", document.ErrNotHead, head.ID)
	}

	now := s.now().UTC()
	if document.IsProtected(head, now, s.cfg.ProtectAfter) {
		if _, rerr := s.audit.Record(ctx, head.ID, audit.KindReplaceRejected,
			fmt.Sprintf("replace rejected: protected since %s", head.CreatedAt.Add(s.cfg.ProtectAfter).Format(time.RFC3339))); rerr != nil {
			logger.Errorf("failed to record replace rejection for %s: %v", head.ID, rerr)
		}
		metrics.Replacements.WithLabelValues("rejected_protected").Inc()
		return nil, document.ErrProtected
	}

	succ := document.NewSuccessor(head, newName, "", now)
	ref, err := s.blobs.Write(ctx, s.fileKey(succ), data, contentType)
	if err != nil {
		metrics.Replacements.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("%w: store file: %v", document.ErrTransaction, err)
	}
	succ.FileRef = ref

	err = s.store.WithTransaction(ctx, func(ctx context.Context) error {
		if err := s.store.InsertDocument(ctx, succ); err != nil {
			return err
		}
		_, err := s.audit.Record(ctx, succ.ID, audit.KindReplaceSucceeded,
			fmt.Sprintf("replaces %s", head.ID))
		return err
	})
	if err != nil {
		s.removeBlob(ctx, ref)
		if errors.Is(err, repository.ErrSuccessorExists) {
			// lost the race: someone else extended the chain first
			metrics.Replacements.WithLabelValues("not_head").Inc()
			return nil, fmt.Errorf("%w: %s was replaced concurrently", document.ErrNotHead, head.ID)
		}
		metrics.Replacements.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("%w: replace: %v", document.ErrTransaction, err)
	}

	metrics.Replacements.WithLabelValues("succeeded").Inc()
	metrics.DocumentsCreated.Inc()
	logger.Infof("document %s replaced by %s", head.ID, succ.ID)
	s.dispatchPreview(ctx, succ.ID, false)
	return succ, nil
}

// Delete removes a document. Only the unprotected head of a chain may be
// deleted; removing an interior version would break the chain.
func (s *Service) Delete(ctx context.Context, id string) error {
	d, err := s.store.GetDocument(ctx, id)
	if err != nil {
		return err
	}
	head, err := document.HeadOf(ctx, s.store, d)
	if err != nil {
		return err
	}
	if head.ID != d.ID {
		return fmt.Errorf("%w: cannot delete interior version", document.ErrNotHead)
	}
	if document.IsProtected(d, s.now().UTC(), s.cfg.ProtectAfter) {
		return document.ErrProtected
	}
	if err := s.store.DeleteDocument(ctx, id); err != nil {
		return err
	}
	logger.Infof("document %s deleted", id)
	return nil
}

// Chain returns the version chain from the root up to id, oldest first.
func (s *Service) Chain(ctx context.Context, id string) ([]*document.Document, error) {
	d, err := s.store.GetDocument(ctx, id)
	if err != nil {
		return nil, err
	}
	return document.ChainOf(ctx, s.store, d)
}

// Head returns the current head of the chain containing id.
func (s *Service) Head(ctx context.Context, id string) (*document.Document, error) {
	d, err := s.store.GetDocument(ctx, id)
	if err != nil {
		return nil, err
	}
	return document.HeadOf(ctx, s.store, d)
}

// Events returns the audit trail for a document, oldest first.
func (s *Service) Events(ctx context.Context, id string) ([]*audit.Event, error) {
	if _, err := s.store.GetDocument(ctx, id); err != nil {
		return nil, err
	}
	return s.audit.EventsFor(ctx, id)
}

// File returns the original uploaded bytes for a document.
func (s *Service) File(ctx context.Context, id string) ([]byte, *document.Document, error) {
	d, err := s.store.GetDocument(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	data, err := s.blobs.Read(ctx, d.FileRef)
	if err != nil {
		return nil, nil, err
	}
	return data, d, nil
}

// Preview returns the generated preview JPEG, or the document with nil
// bytes when no preview is ready.
func (s *Service) Preview(ctx context.Context, id string) ([]byte, *document.Document, error) {
	d, err := s.store.GetDocument(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	if d.PreviewStatus != document.PreviewReady || d.PreviewRef == "" {
		return nil, d, nil
	}
	data, err := s.blobs.Read(ctx, d.PreviewRef)
	if err != nil {
		return nil, nil, err
	}
	return data, d, nil
}

// Regenerate queues a fresh preview run. force redoes even a ready
// preview; without it a ready preview stays untouched (the worker no-ops).
func (s *Service) Regenerate(ctx context.Context, id string, force bool) error {
	if !s.cfg.RenderPreview || s.previews == nil {
		return fmt.Errorf("preview rendering is disabled")
	}
	if _, err := s.store.GetDocument(ctx, id); err != nil {
		return err
	}
	return s.previews.Dispatch(ctx, preview.Job{DocumentID: id, Force: force})
}

// fileKey builds the blob key for a document's file. The user-supplied
// name is reduced to its last path element so a name like
// "../../previews/x.jpg" cannot escape the documents namespace.
func (s *Service) fileKey(d *document.Document) string {
	name := path.Base(path.Clean("/" + d.Name))
	if name == "/" || name == "." {
		name = "file"
	}
	return path.Join(s.cfg.DocumentsDir, d.ID, name)
}

// removeBlob drops a blob written ahead of a record transaction that then
// failed. Best effort: a blob that stays behind is unreferenced and
// harmless, so the failure is only logged.
func (s *Service) removeBlob(ctx context.Context, ref string) {
	if err := s.blobs.Delete(ctx, ref); err != nil {
		logger.Warnf("orphaned blob %s not removed: %v", ref, err)
	}
}

// dispatchPreview is fire-and-forget: a queue failure is logged, never
// surfaced, because the document itself is already durable.
func (s *Service) dispatchPreview(ctx context.Context, id string, force bool) {
	if !s.cfg.RenderPreview || s.previews == nil {
		return
	}
	if err := s.previews.Dispatch(ctx, preview.Job{DocumentID: id, Force: force}); err != nil {
		logger.Warnf("preview dispatch failed for document %s: %v", id, err)
	}
}
