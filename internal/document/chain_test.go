package document

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// fakeLookup is a map-backed Lookup for traversal tests.
type fakeLookup struct {
	docs map[string]*Document
	succ map[string]string
}

func newFakeLookup(docs ...*Document) *fakeLookup {
	f := &fakeLookup{docs: map[string]*Document{}, succ: map[string]string{}}
	for _, d := range docs {
		f.docs[d.ID] = d
		if d.PredecessorID != "" {
			f.succ[d.PredecessorID] = d.ID
		}
	}
	return f
}

func (f *fakeLookup) GetDocument(ctx context.Context, id string) (*Document, error) {
	if d, ok := f.docs[id]; ok {
		return d, nil
	}
	return nil, ErrNotFound
}

func (f *fakeLookup) SuccessorOf(ctx context.Context, id string) (*Document, error) {
	if sid, ok := f.succ[id]; ok {
		return f.docs[sid], nil
	}
	return nil, ErrNotFound
}

func testChain(n int) []*Document {
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	docs := make([]*Document, 0, n)
	var prev *Document
	for i := 0; i < n; i++ {
		var d *Document
		if prev == nil {
			d = NewRoot("report.pdf", "t1", "documents/report.pdf", now)
		} else {
			d = NewSuccessor(prev, "", "documents/report-v2.pdf", now.Add(time.Duration(i)*time.Hour))
		}
		docs = append(docs, d)
		prev = d
	}
	return docs
}

func TestChainOfOrdersOldestFirst(t *testing.T) {
	docs := testChain(4)
	store := newFakeLookup(docs...)
	ctx := context.Background()

	chain, err := ChainOf(ctx, store, docs[3])
	require.NoError(t, err)
	require.Len(t, chain, 4)
	for i, d := range chain {
		require.Equal(t, docs[i].ID, d.ID)
		if i > 0 {
			// predecessor is strictly earlier in the sequence
			require.Equal(t, chain[i-1].ID, d.PredecessorID)
		}
	}
	require.True(t, chain[0].IsRoot())

	// walking from the middle yields the prefix
	mid, err := ChainOf(ctx, store, docs[1])
	require.NoError(t, err)
	require.Len(t, mid, 2)
}

func TestChainOfSingleDocument(t *testing.T) {
	docs := testChain(1)
	store := newFakeLookup(docs...)

	chain, err := ChainOf(context.Background(), store, docs[0])
	require.NoError(t, err)
	require.Len(t, chain, 1)
	require.Equal(t, docs[0].ID, chain[0].ID)
}

func TestChainOfMissingPredecessor(t *testing.T) {
	docs := testChain(3)
	store := newFakeLookup(docs[1], docs[2]) // root missing

	_, err := ChainOf(context.Background(), store, docs[2])
	require.ErrorIs(t, err, ErrBrokenChain)
}

func TestChainOfDetectsCycle(t *testing.T) {
	now := time.Now().UTC()
	a := NewRoot("a", "t1", "f1", now)
	b := NewSuccessor(a, "", "f2", now)
	a.PredecessorID = b.ID // corrupt: cycle
	store := newFakeLookup(a, b)

	_, err := ChainOf(context.Background(), store, b)
	require.ErrorIs(t, err, ErrBrokenChain)
}

func TestHeadOf(t *testing.T) {
	docs := testChain(3)
	store := newFakeLookup(docs...)
	ctx := context.Background()

	for _, d := range docs {
		head, err := HeadOf(ctx, store, d)
		require.NoError(t, err)
		require.Equal(t, docs[2].ID, head.ID)
	}
}
