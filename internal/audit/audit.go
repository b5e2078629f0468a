// Package audit records immutable lifecycle events for compliance. Events
// are append-only: they are never updated or deleted, and a failed append
// inside a create/replace transaction aborts that transaction, since an
// unrecorded transition would break the audit guarantee.
package audit

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Kind identifies the lifecycle transition an event records.
type Kind string

const (
	KindCreated          Kind = "created"
	KindReplaceSucceeded Kind = "replace_succeeded"
	KindReplaceRejected  Kind = "replace_rejected_protected"
	KindPreviewSucceeded Kind = "preview_succeeded"
	KindPreviewFailed    Kind = "preview_failed"
)

// Event is a single audit log entry for a document.
type Event struct {
	ID         string    `json:"id" bson:"_id"`
	DocumentID string    `json:"documentId" bson:"documentId"`
	Kind       Kind      `json:"kind" bson:"kind"`
	Timestamp  time.Time `json:"timestamp" bson:"timestamp"`
	Detail     string    `json:"detail,omitempty" bson:"detail,omitempty"`
}

// Sink is the persistence surface the recorder writes through. When the
// context carries a store transaction, AppendEvent joins it.
type Sink interface {
	AppendEvent(ctx context.Context, e *Event) error
	EventsFor(ctx context.Context, documentID string) ([]*Event, error)
}

// Recorder appends events with server-assigned ids and timestamps.
type Recorder struct {
	sink Sink
	now  func() time.Time
}

// NewRecorder returns a Recorder writing to sink. now may be nil, in which
// case the wall clock is used.
func NewRecorder(sink Sink, now func() time.Time) *Recorder {
	if now == nil {
		now = time.Now
	}
	return &Recorder{sink: sink, now: now}
}

// Record appends one event. The error must not be swallowed by callers in
// transactional paths.
func (r *Recorder) Record(ctx context.Context, documentID string, kind Kind, detail string) (*Event, error) {
	e := &Event{
		ID:         uuid.NewString(),
		DocumentID: documentID,
		Kind:       kind,
		Timestamp:  r.now().UTC(),
		Detail:     detail,
	}
	if err := r.sink.AppendEvent(ctx, e); err != nil {
		return nil, err
	}
	return e, nil
}

// EventsFor returns the events recorded for a document in the order their
// transitions committed.
func (r *Recorder) EventsFor(ctx context.Context, documentID string) ([]*Event, error) {
	return r.sink.EventsFor(ctx, documentID)
}
