package document

import (
	"time"

	"github.com/google/uuid"
)

// PreviewStatus tracks the lifecycle of a document's derived preview image.
// It moves none -> pending -> ready|failed and never regresses on its own;
// an explicit regeneration restarts the cycle from pending.
type PreviewStatus string

const (
	PreviewNone    PreviewStatus = "none"
	PreviewPending PreviewStatus = "pending"
	PreviewReady   PreviewStatus = "ready"
	PreviewFailed  PreviewStatus = "failed"
)

// DocumentType classifies documents (e.g. "Invoice", "Contract").
// Name and slug are unique; the slug is generated once on creation.
type DocumentType struct {
	ID   string `json:"id" bson:"_id"`
	Name string `json:"name" bson:"name"`
	Slug string `json:"slug" bson:"slug"`
}

// Document is a single immutable version of a business document. Versioning
// is modeled exclusively by inserting new records linked via PredecessorID;
// the file reference and creation time of an existing record never change.
// Only the preview fields may transition after creation (see PreviewStatus).
type Document struct {
	ID            string        `json:"id" bson:"_id"`
	Name          string        `json:"name" bson:"name"`
	TypeID        string        `json:"typeId" bson:"typeId"`
	FileRef       string        `json:"fileRef" bson:"fileRef"`
	Content       string        `json:"content,omitempty" bson:"content,omitempty"`
	CreatedAt     time.Time     `json:"createdAt" bson:"createdAt"`
	PredecessorID string        `json:"predecessorId,omitempty" bson:"predecessorId,omitempty"`
	PreviewRef    string        `json:"previewRef,omitempty" bson:"previewRef,omitempty"`
	PreviewStatus PreviewStatus `json:"previewStatus" bson:"previewStatus"`
}

// IsRoot reports whether d is the original version of its chain.
func (d *Document) IsRoot() bool { return d.PredecessorID == "" }

// NewType builds a DocumentType with a fresh ID and derived slug.
// Persistence (and name-uniqueness enforcement) is the store's job.
func NewType(name string) *DocumentType {
	return &DocumentType{ID: uuid.NewString(), Name: name, Slug: Slugify(name)}
}

// NewRoot builds a chain root: a document with no predecessor.
// Pure construction; the caller persists it.
func NewRoot(name, typeID, fileRef string, now time.Time) *Document {
	return &Document{
		ID:            uuid.NewString(),
		Name:          name,
		TypeID:        typeID,
		FileRef:       fileRef,
		CreatedAt:     now,
		PreviewStatus: PreviewNone,
	}
}

// NewSuccessor builds the next version of parent. Name, type and extracted
// content carry over from the parent unless a new name is given. No
// validation happens here; protection and head checks belong to the
// replace coordinator.
func NewSuccessor(parent *Document, name, fileRef string, now time.Time) *Document {
	if name == "" {
		name = parent.Name
	}
	return &Document{
		ID:            uuid.NewString(),
		Name:          name,
		TypeID:        parent.TypeID,
		FileRef:       fileRef,
		Content:       parent.Content,
		CreatedAt:     now,
		PredecessorID: parent.ID,
		PreviewStatus: PreviewNone,
	}
}
