package document

import "errors"

var (
	// ErrNotFound is returned when a referenced document or type is absent.
	ErrNotFound = errors.New("not found")

	// ErrDuplicateName is returned when a document type name (or its slug)
	// collides with an existing one.
	ErrDuplicateName = errors.New("duplicate type name")

	// ErrProtected is returned when a replace or delete targets a document
	// whose protection window has elapsed. Protected documents are frozen
	// for audit compliance and can never be modified again.
	ErrProtected = errors.New("document is protected")

	// ErrNotHead is returned when a replace or delete targets a document
	// that is not (or is no longer) the head of its chain. Callers may
	// re-resolve the head and retry.
	ErrNotHead = errors.New("document is not the chain head")

	// ErrBrokenChain is returned when chain traversal hits a cycle or a
	// missing predecessor. Should not happen if store invariants hold.
	ErrBrokenChain = errors.New("broken version chain")

	// ErrTransaction wraps infrastructure failures from the record store;
	// the operation left no partial state behind.
	ErrTransaction = errors.New("transaction failed")
)
