package preview

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/dokstore/dokstore/internal/document"
)

func TestChanDispatcherRunsJobs(t *testing.T) {
	f := newFixture(t)
	g := f.generator(stubRasterizer{img: testImage(8, 8)}, Options{})

	d := NewChanDispatcher(16)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan struct{})
	go func() {
		d.Run(ctx, g, 2)
		close(done)
	}()

	require.NoError(t, d.Dispatch(ctx, Job{DocumentID: f.doc.ID}))

	require.Eventually(t, func() bool {
		got, err := f.store.GetDocument(context.Background(), f.doc.ID)
		return err == nil && got.PreviewStatus == document.PreviewReady
	}, 2*time.Second, 10*time.Millisecond)

	d.Close()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("workers did not stop after Close")
	}
}

func TestChanDispatcherQueueFull(t *testing.T) {
	d := NewChanDispatcher(1)
	ctx := context.Background()

	require.NoError(t, d.Dispatch(ctx, Job{DocumentID: "a"}))
	// no worker is draining; the second dispatch must not block
	err := d.Dispatch(ctx, Job{DocumentID: "b"})
	require.ErrorIs(t, err, ErrQueueFull)
}
