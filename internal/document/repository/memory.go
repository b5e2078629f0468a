package repository

import (
	"context"
	"sync"

	"github.com/dokstore/dokstore/internal/audit"
	"github.com/dokstore/dokstore/internal/document"
)

// MemoryStore is a mutex-guarded in-memory Store used for unit tests and
// storeless development runs. Transactions are implemented by serializing
// all writers and restoring a snapshot on rollback: writes made with the
// transaction's context join it, every other write waits for the
// transaction to finish, so a rollback only ever undoes the transaction's
// own writes. The successor index gives the same at-most-one-successor
// guarantee the Mongo unique index does.
type MemoryStore struct {
	txMu sync.Mutex // serializes transactions and bare writes
	mu   sync.RWMutex

	types      map[string]*document.DocumentType
	typeNames  map[string]string // type slug -> type id
	docs       map[string]*document.Document
	successors map[string]string // predecessor id -> successor id
	events     map[string][]*audit.Event
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		types:      make(map[string]*document.DocumentType),
		typeNames:  make(map[string]string),
		docs:       make(map[string]*document.Document),
		successors: make(map[string]string),
		events:     make(map[string][]*audit.Event),
	}
}

type memorySnapshot struct {
	types      map[string]*document.DocumentType
	typeNames  map[string]string
	docs       map[string]*document.Document
	successors map[string]string
	events     map[string][]*audit.Event
}

func (m *MemoryStore) snapshotLocked() *memorySnapshot {
	s := &memorySnapshot{
		types:      make(map[string]*document.DocumentType, len(m.types)),
		typeNames:  make(map[string]string, len(m.typeNames)),
		docs:       make(map[string]*document.Document, len(m.docs)),
		successors: make(map[string]string, len(m.successors)),
		events:     make(map[string][]*audit.Event, len(m.events)),
	}
	for k, v := range m.types {
		cp := *v
		s.types[k] = &cp
	}
	for k, v := range m.typeNames {
		s.typeNames[k] = v
	}
	for k, v := range m.docs {
		cp := *v
		s.docs[k] = &cp
	}
	for k, v := range m.successors {
		s.successors[k] = v
	}
	for k, v := range m.events {
		s.events[k] = append([]*audit.Event(nil), v...)
	}
	return s
}

// txKey marks a context as belonging to the open transaction, so writes
// made through it skip the transaction lock they are already inside of.
type txKey struct{}

// beginWrite takes the transaction lock for writes arriving outside any
// transaction. Between snapshot and commit the store therefore only ever
// contains the transaction's own writes, which is what makes the
// snapshot-restore rollback safe.
func (m *MemoryStore) beginWrite(ctx context.Context) func() {
	if ctx.Value(txKey{}) == m {
		return func() {}
	}
	m.txMu.Lock()
	return m.txMu.Unlock
}

// WithTransaction snapshots the store, runs fn while holding the writer
// lock, and restores the snapshot if fn fails.
func (m *MemoryStore) WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	m.txMu.Lock()
	defer m.txMu.Unlock()

	m.mu.Lock()
	snap := m.snapshotLocked()
	m.mu.Unlock()

	if err := fn(context.WithValue(ctx, txKey{}, m)); err != nil {
		m.mu.Lock()
		m.types = snap.types
		m.typeNames = snap.typeNames
		m.docs = snap.docs
		m.successors = snap.successors
		m.events = snap.events
		m.mu.Unlock()
		return err
	}
	return nil
}

func (m *MemoryStore) InsertType(ctx context.Context, t *document.DocumentType) error {
	defer m.beginWrite(ctx)()
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.typeNames[t.Slug]; ok {
		return document.ErrDuplicateName
	}
	cp := *t
	m.types[t.ID] = &cp
	m.typeNames[t.Slug] = t.ID
	return nil
}

func (m *MemoryStore) GetType(ctx context.Context, id string) (*document.DocumentType, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	t, ok := m.types[id]
	if !ok {
		return nil, document.ErrNotFound
	}
	cp := *t
	return &cp, nil
}

func (m *MemoryStore) InsertDocument(ctx context.Context, d *document.Document) error {
	defer m.beginWrite(ctx)()
	m.mu.Lock()
	defer m.mu.Unlock()
	if d.PredecessorID != "" {
		if _, ok := m.docs[d.PredecessorID]; !ok {
			return document.ErrNotFound
		}
		if _, taken := m.successors[d.PredecessorID]; taken {
			return ErrSuccessorExists
		}
		m.successors[d.PredecessorID] = d.ID
	}
	cp := *d
	m.docs[d.ID] = &cp
	return nil
}

func (m *MemoryStore) GetDocument(ctx context.Context, id string) (*document.Document, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	d, ok := m.docs[id]
	if !ok {
		return nil, document.ErrNotFound
	}
	cp := *d
	return &cp, nil
}

func (m *MemoryStore) SuccessorOf(ctx context.Context, id string) (*document.Document, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	succID, ok := m.successors[id]
	if !ok {
		return nil, document.ErrNotFound
	}
	d, ok := m.docs[succID]
	if !ok {
		return nil, document.ErrNotFound
	}
	cp := *d
	return &cp, nil
}

func (m *MemoryStore) UpdatePreview(ctx context.Context, id string, status document.PreviewStatus, previewRef string) error {
	defer m.beginWrite(ctx)()
	m.mu.Lock()
	defer m.mu.Unlock()
	d, ok := m.docs[id]
	if !ok {
		return document.ErrNotFound
	}
	d.PreviewStatus = status
	d.PreviewRef = previewRef
	return nil
}

func (m *MemoryStore) DeleteDocument(ctx context.Context, id string) error {
	defer m.beginWrite(ctx)()
	m.mu.Lock()
	defer m.mu.Unlock()
	d, ok := m.docs[id]
	if !ok {
		return document.ErrNotFound
	}
	delete(m.docs, id)
	if d.PredecessorID != "" {
		delete(m.successors, d.PredecessorID)
	}
	return nil
}

func (m *MemoryStore) AppendEvent(ctx context.Context, e *audit.Event) error {
	defer m.beginWrite(ctx)()
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *e
	m.events[e.DocumentID] = append(m.events[e.DocumentID], &cp)
	return nil
}

// EventsFor returns events in append order, which for the in-memory store
// is exactly commit order.
func (m *MemoryStore) EventsFor(ctx context.Context, documentID string) ([]*audit.Event, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	evs := m.events[documentID]
	out := make([]*audit.Event, 0, len(evs))
	for _, e := range evs {
		cp := *e
		out = append(out, &cp)
	}
	return out, nil
}
