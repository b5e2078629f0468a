package document

import (
	"context"
	"errors"
	"fmt"
)

// Lookup is the narrow read surface the chain walker needs from the record
// store: forward lookup by id plus the reverse successor index (the forward
// chain alone cannot answer "who replaced me").
type Lookup interface {
	GetDocument(ctx context.Context, id string) (*Document, error)
	// SuccessorOf returns the document whose predecessor is id, or
	// ErrNotFound when id is the current head.
	SuccessorOf(ctx context.Context, id string) (*Document, error)
}

// ChainOf walks predecessor links from d back to the root and returns the
// whole chain oldest-first, d included. Chains are short, so the result is
// materialized. A cycle or a dangling predecessor reference yields
// ErrBrokenChain.
func ChainOf(ctx context.Context, store Lookup, d *Document) ([]*Document, error) {
	chain := []*Document{d}
	seen := map[string]bool{d.ID: true}
	cur := d
	for cur.PredecessorID != "" {
		prev, err := store.GetDocument(ctx, cur.PredecessorID)
		if err != nil {
			if errors.Is(err, ErrNotFound) {
				return nil, fmt.Errorf("%w: predecessor %s of %s missing", ErrBrokenChain, cur.PredecessorID, cur.ID)
			}
			return nil, err
		}
		if seen[prev.ID] {
			return nil, fmt.Errorf("%w: cycle at %s", ErrBrokenChain, prev.ID)
		}
		seen[prev.ID] = true
		chain = append([]*Document{prev}, chain...)
		cur = prev
	}
	return chain, nil
}

// HeadOf follows the successor index forward from any chain member to the
// document that currently has no successor.
func HeadOf(ctx context.Context, store Lookup, d *Document) (*Document, error) {
	seen := map[string]bool{d.ID: true}
	cur := d
	for {
		next, err := store.SuccessorOf(ctx, cur.ID)
		if err != nil {
			if errors.Is(err, ErrNotFound) {
				return cur, nil
			}
			return nil, err
		}
		if seen[next.ID] {
			return nil, fmt.Errorf("%w: cycle at %s", ErrBrokenChain, next.ID)
		}
		seen[next.ID] = true
		cur = next
	}
}
