package audit_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/dokstore/dokstore/internal/audit"
	"github.com/dokstore/dokstore/internal/document/repository"
)

func TestRecorderAssignsIDAndTimestamp(t *testing.T) {
	store := repository.NewMemoryStore()
	fixed := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	rec := audit.NewRecorder(store, func() time.Time { return fixed })

	e, err := rec.Record(context.Background(), "doc-1", audit.KindCreated, "document created")
	require.NoError(t, err)
	require.NotEmpty(t, e.ID)
	require.Equal(t, fixed, e.Timestamp)
	require.Equal(t, audit.KindCreated, e.Kind)
}

func TestRecorderEventsForChronological(t *testing.T) {
	store := repository.NewMemoryStore()
	now := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	tick := 0
	rec := audit.NewRecorder(store, func() time.Time {
		tick++
		return now.Add(time.Duration(tick) * time.Second)
	})
	ctx := context.Background()

	_, err := rec.Record(ctx, "doc-1", audit.KindCreated, "")
	require.NoError(t, err)
	_, err = rec.Record(ctx, "doc-1", audit.KindPreviewSucceeded, "previews/doc-1.jpg")
	require.NoError(t, err)
	_, err = rec.Record(ctx, "doc-2", audit.KindCreated, "")
	require.NoError(t, err)

	evs, err := rec.EventsFor(ctx, "doc-1")
	require.NoError(t, err)
	require.Len(t, evs, 2)
	require.Equal(t, audit.KindCreated, evs[0].Kind)
	require.Equal(t, audit.KindPreviewSucceeded, evs[1].Kind)
	require.True(t, evs[0].Timestamp.Before(evs[1].Timestamp))
}
