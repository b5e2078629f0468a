package service

import (
	"context"
	"errors"
	"image"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/dokstore/dokstore/internal/audit"
	"github.com/dokstore/dokstore/internal/document"
	"github.com/dokstore/dokstore/internal/document/repository"
	"github.com/dokstore/dokstore/internal/preview"
	"github.com/dokstore/dokstore/internal/storage"
)

// clock is an adjustable test clock injected into the service.
type clock struct {
	mu  sync.Mutex
	now time.Time
}

func newClock() *clock {
	return &clock{now: time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// recordingDispatcher captures dispatched jobs instead of running them.
type recordingDispatcher struct {
	mu   sync.Mutex
	jobs []preview.Job
}

func (r *recordingDispatcher) Dispatch(ctx context.Context, j preview.Job) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.jobs = append(r.jobs, j)
	return nil
}

func (r *recordingDispatcher) Jobs() []preview.Job {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]preview.Job(nil), r.jobs...)
}

type env struct {
	store      *repository.MemoryStore
	blobs      *storage.MemoryBlobStore
	rec        *audit.Recorder
	dispatcher *recordingDispatcher
	clock      *clock
	svc        *Service
	typ        *document.DocumentType
}

func newEnv(t *testing.T, protectAfter time.Duration) *env {
	t.Helper()
	e := &env{
		store:      repository.NewMemoryStore(),
		blobs:      storage.NewMemoryBlobStore(),
		dispatcher: &recordingDispatcher{},
		clock:      newClock(),
	}
	e.rec = audit.NewRecorder(e.store, e.clock.Now)
	e.svc = New(e.store, e.blobs, e.rec, e.dispatcher, Config{
		DocumentsDir:  "documents/",
		ProtectAfter:  protectAfter,
		RenderPreview: true,
	}, e.clock.Now)

	typ, err := e.svc.CreateType(context.Background(), "Invoice")
	require.NoError(t, err)
	e.typ = typ
	return e
}

func kinds(t *testing.T, e *env, id string) []audit.Kind {
	t.Helper()
	evs, err := e.svc.Events(context.Background(), id)
	require.NoError(t, err)
	out := make([]audit.Kind, 0, len(evs))
	for _, ev := range evs {
		out = append(out, ev.Kind)
	}
	return out
}

func TestCreateTypeDuplicate(t *testing.T) {
	e := newEnv(t, 24*time.Hour)
	_, err := e.svc.CreateType(context.Background(), "Invoice")
	require.ErrorIs(t, err, document.ErrDuplicateName)

	_, err = e.svc.CreateType(context.Background(), "")
	require.Error(t, err)
}

func TestCreateDocument(t *testing.T) {
	e := newEnv(t, 24*time.Hour)
	ctx := context.Background()

	d, err := e.svc.Create(ctx, "Invoice-001", e.typ.ID, []byte("%PDF-1.4"), "application/pdf")
	require.NoError(t, err)
	require.True(t, d.IsRoot())
	require.Equal(t, document.PreviewNone, d.PreviewStatus)

	// persisted with file stored under the documents namespace
	got, err := e.svc.Get(ctx, d.ID)
	require.NoError(t, err)
	require.Equal(t, d.FileRef, got.FileRef)
	data, _, err := e.svc.File(ctx, d.ID)
	require.NoError(t, err)
	require.Equal(t, []byte("%PDF-1.4"), data)

	// created event recorded, preview dispatched after commit
	require.Equal(t, []audit.Kind{audit.KindCreated}, kinds(t, e, d.ID))
	jobs := e.dispatcher.Jobs()
	require.Len(t, jobs, 1)
	require.Equal(t, d.ID, jobs[0].DocumentID)
}

func TestCreateHostileNameStaysInDocumentsNamespace(t *testing.T) {
	e := newEnv(t, 24*time.Hour)
	ctx := context.Background()

	d, err := e.svc.Create(ctx, "../../previews/victim.jpg", e.typ.ID, []byte("payload"), "application/octet-stream")
	require.NoError(t, err)
	require.Equal(t, "documents/"+d.ID+"/victim.jpg", d.FileRef)

	// nothing landed under the previews namespace
	_, err = e.blobs.Read(ctx, "previews/victim.jpg")
	require.ErrorIs(t, err, storage.ErrBlobNotFound)

	data, _, err := e.svc.File(ctx, d.ID)
	require.NoError(t, err)
	require.Equal(t, []byte("payload"), data)
}

func TestCreateDocumentUnknownType(t *testing.T) {
	e := newEnv(t, 24*time.Hour)
	_, err := e.svc.Create(context.Background(), "x", "nope", []byte("data"), "")
	require.ErrorIs(t, err, document.ErrNotFound)
	require.Empty(t, e.dispatcher.Jobs())
}

// failingEventStore refuses audit appends, forcing create/replace
// transactions to roll back.
type failingEventStore struct {
	*repository.MemoryStore
}

func (f *failingEventStore) AppendEvent(ctx context.Context, e *audit.Event) error {
	return errors.New("event sink unavailable")
}

func TestCreateFailedCommitCleansUpBlob(t *testing.T) {
	store := &failingEventStore{repository.NewMemoryStore()}
	blobs := storage.NewMemoryBlobStore()
	svc := New(store, blobs, audit.NewRecorder(store, nil), nil, Config{ProtectAfter: 24 * time.Hour}, nil)
	ctx := context.Background()

	typ := document.NewType("Invoice")
	require.NoError(t, store.InsertType(ctx, typ))

	_, err := svc.Create(ctx, "invoice-001.pdf", typ.ID, []byte("v1"), "application/pdf")
	require.ErrorIs(t, err, document.ErrTransaction)

	// rolled back record and no orphaned file
	require.Zero(t, blobs.Len())
}

func TestReplaceWithinWindow(t *testing.T) {
	e := newEnv(t, 24*time.Hour)
	ctx := context.Background()

	orig, err := e.svc.Create(ctx, "Invoice-001", e.typ.ID, []byte("v1"), "application/pdf")
	require.NoError(t, err)

	// immediately replaceable (elapsed time = 0 < 1 day)
	succ, err := e.svc.Replace(ctx, orig.ID, "", []byte("v2"), "application/pdf")
	require.NoError(t, err)
	require.Equal(t, orig.ID, succ.PredecessorID)
	require.Equal(t, orig.Name, succ.Name)
	require.Equal(t, orig.TypeID, succ.TypeID)

	chain, err := e.svc.Chain(ctx, succ.ID)
	require.NoError(t, err)
	require.Len(t, chain, 2)
	require.Equal(t, orig.ID, chain[0].ID)
	require.Equal(t, succ.ID, chain[1].ID)

	head, err := e.svc.Head(ctx, orig.ID)
	require.NoError(t, err)
	require.Equal(t, succ.ID, head.ID)

	// the original record is untouched
	before, err := e.svc.Get(ctx, orig.ID)
	require.NoError(t, err)
	require.Equal(t, orig.FileRef, before.FileRef)
	require.True(t, orig.CreatedAt.Equal(before.CreatedAt))

	require.Equal(t, []audit.Kind{audit.KindReplaceSucceeded}, kinds(t, e, succ.ID))
}

func TestReplaceProtected(t *testing.T) {
	e := newEnv(t, 24*time.Hour)
	ctx := context.Background()

	orig, err := e.svc.Create(ctx, "Invoice-001", e.typ.ID, []byte("v1"), "application/pdf")
	require.NoError(t, err)

	e.clock.Advance(24 * time.Hour)

	_, err = e.svc.Replace(ctx, orig.ID, "", []byte("v2"), "application/pdf")
	require.ErrorIs(t, err, document.ErrProtected)

	// no successor, original unchanged, rejection recorded
	head, err := e.svc.Head(ctx, orig.ID)
	require.NoError(t, err)
	require.Equal(t, orig.ID, head.ID)
	require.Equal(t, []audit.Kind{audit.KindCreated, audit.KindReplaceRejected}, kinds(t, e, orig.ID))

	// only the create dispatched a preview
	require.Len(t, e.dispatcher.Jobs(), 1)
}

func TestReplaceZeroWindowProtectsImmediately(t *testing.T) {
	e := newEnv(t, 0)
	ctx := context.Background()

	orig, err := e.svc.Create(ctx, "Invoice-001", e.typ.ID, []byte("v1"), "application/pdf")
	require.NoError(t, err)

	_, err = e.svc.Replace(ctx, orig.ID, "", []byte("v2"), "application/pdf")
	require.ErrorIs(t, err, document.ErrProtected)
}

func TestReplaceNonHead(t *testing.T) {
	e := newEnv(t, 24*time.Hour)
	ctx := context.Background()

	orig, err := e.svc.Create(ctx, "Invoice-001", e.typ.ID, []byte("v1"), "application/pdf")
	require.NoError(t, err)
	_, err = e.svc.Replace(ctx, orig.ID, "", []byte("v2"), "application/pdf")
	require.NoError(t, err)

	// replacing the superseded version is rejected
	_, err = e.svc.Replace(ctx, orig.ID, "", []byte("v3"), "application/pdf")
	require.ErrorIs(t, err, document.ErrNotHead)
}

func TestConcurrentReplaceOneWinner(t *testing.T) {
	e := newEnv(t, 24*time.Hour)
	ctx := context.Background()

	orig, err := e.svc.Create(ctx, "Invoice-001", e.typ.ID, []byte("v1"), "application/pdf")
	require.NoError(t, err)

	var wg sync.WaitGroup
	errs := make([]error, 2)
	start := make(chan struct{})
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			<-start
			_, errs[i] = e.svc.Replace(ctx, orig.ID, "", []byte("v2"), "application/pdf")
		}(i)
	}
	close(start)
	wg.Wait()

	// exactly one success; the loser observes a stale head
	var ok, notHead int
	for _, err := range errs {
		switch {
		case err == nil:
			ok++
		case errors.Is(err, document.ErrNotHead):
			notHead++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	require.Equal(t, 1, ok)
	require.Equal(t, 1, notHead)

	chain, err := e.svc.Chain(ctx, orig.ID)
	require.NoError(t, err)
	require.Len(t, chain, 1) // chain from orig: just itself
	head, err := e.svc.Head(ctx, orig.ID)
	require.NoError(t, err)
	full, err := e.svc.Chain(ctx, head.ID)
	require.NoError(t, err)
	require.Len(t, full, 2)
}

func TestDeleteRules(t *testing.T) {
	e := newEnv(t, 24*time.Hour)
	ctx := context.Background()

	orig, err := e.svc.Create(ctx, "Invoice-001", e.typ.ID, []byte("v1"), "application/pdf")
	require.NoError(t, err)
	succ, err := e.svc.Replace(ctx, orig.ID, "", []byte("v2"), "application/pdf")
	require.NoError(t, err)

	// interior versions cannot be deleted
	require.ErrorIs(t, e.svc.Delete(ctx, orig.ID), document.ErrNotHead)

	// protected heads cannot be deleted
	e.clock.Advance(24 * time.Hour)
	require.ErrorIs(t, e.svc.Delete(ctx, succ.ID), document.ErrProtected)
}

func TestDeleteUnprotectedHead(t *testing.T) {
	e := newEnv(t, 24*time.Hour)
	ctx := context.Background()

	d, err := e.svc.Create(ctx, "Invoice-001", e.typ.ID, []byte("v1"), "application/pdf")
	require.NoError(t, err)
	require.NoError(t, e.svc.Delete(ctx, d.ID))

	_, err = e.svc.Get(ctx, d.ID)
	require.ErrorIs(t, err, document.ErrNotFound)
}

func TestRegenerate(t *testing.T) {
	e := newEnv(t, 24*time.Hour)
	ctx := context.Background()

	d, err := e.svc.Create(ctx, "Invoice-001", e.typ.ID, []byte("v1"), "application/pdf")
	require.NoError(t, err)

	require.NoError(t, e.svc.Regenerate(ctx, d.ID, true))
	jobs := e.dispatcher.Jobs()
	require.Len(t, jobs, 2) // create dispatch + explicit regeneration
	require.True(t, jobs[1].Force)

	require.ErrorIs(t, e.svc.Regenerate(ctx, "missing", false), document.ErrNotFound)
}

func TestRenderPreviewDisabled(t *testing.T) {
	e := newEnv(t, 24*time.Hour)
	disabled := New(e.store, e.blobs, e.rec, e.dispatcher, Config{ProtectAfter: 24 * time.Hour, RenderPreview: false}, e.clock.Now)
	ctx := context.Background()

	before := len(e.dispatcher.Jobs())
	d, err := disabled.Create(ctx, "Invoice-002", e.typ.ID, []byte("v1"), "application/pdf")
	require.NoError(t, err)
	require.Equal(t, document.PreviewNone, d.PreviewStatus)
	require.Len(t, e.dispatcher.Jobs(), before)

	require.Error(t, disabled.Regenerate(ctx, d.ID, false))
}

// End-to-end through the real pipeline: create a document and let an
// in-process worker produce the preview.
func TestCreateWithLivePreviewPipeline(t *testing.T) {
	store := repository.NewMemoryStore()
	blobs := storage.NewMemoryBlobStore()
	rec := audit.NewRecorder(store, nil)

	gen := preview.NewGenerator(store, blobs, rec, okRasterizer{}, preview.Options{})
	cd := preview.NewChanDispatcher(16)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go cd.Run(ctx, gen, 1)

	svc := New(store, blobs, rec, cd, Config{ProtectAfter: 24 * time.Hour, RenderPreview: true}, nil)
	typ, err := svc.CreateType(ctx, "Contract")
	require.NoError(t, err)

	d, err := svc.Create(ctx, "Contract-001", typ.ID, []byte("%PDF-1.4"), "application/pdf")
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		got, err := svc.Get(context.Background(), d.ID)
		return err == nil && got.PreviewStatus == document.PreviewReady
	}, 2*time.Second, 10*time.Millisecond)

	data, got, err := svc.Preview(context.Background(), d.ID)
	require.NoError(t, err)
	require.NotEmpty(t, data)
	require.Equal(t, document.PreviewReady, got.PreviewStatus)
}

// Corrupt input degrades to a failed preview without affecting the document.
func TestCreateWithFailingPreviewPipeline(t *testing.T) {
	store := repository.NewMemoryStore()
	blobs := storage.NewMemoryBlobStore()
	rec := audit.NewRecorder(store, nil)

	gen := preview.NewGenerator(store, blobs, rec, badRasterizer{}, preview.Options{})
	cd := preview.NewChanDispatcher(16)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go cd.Run(ctx, gen, 1)

	svc := New(store, blobs, rec, cd, Config{ProtectAfter: 24 * time.Hour, RenderPreview: true}, nil)
	typ, err := svc.CreateType(ctx, "Contract")
	require.NoError(t, err)

	d, err := svc.Create(ctx, "Contract-001", typ.ID, []byte("not a pdf"), "text/plain")
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		got, err := svc.Get(context.Background(), d.ID)
		return err == nil && got.PreviewStatus == document.PreviewFailed
	}, 2*time.Second, 10*time.Millisecond)

	// document remains fully readable
	data, _, err := svc.File(context.Background(), d.ID)
	require.NoError(t, err)
	require.Equal(t, []byte("not a pdf"), data)

	evs, err := svc.Events(context.Background(), d.ID)
	require.NoError(t, err)
	last := evs[len(evs)-1]
	require.Equal(t, audit.KindPreviewFailed, last.Kind)
}

type okRasterizer struct{}

func (okRasterizer) FirstPage(data []byte) (image.Image, error) {
	return image.NewRGBA(image.Rect(0, 0, 16, 16)), nil
}

type badRasterizer struct{}

func (badRasterizer) FirstPage(data []byte) (image.Image, error) {
	return nil, errors.New("unsupported format")
}
