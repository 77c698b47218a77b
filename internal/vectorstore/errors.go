package vectorstore

import "errors"

var (
	ErrUnreachable       = errors.New("vector database unreachable")
	ErrDimensionMismatch = errors.New("embedding dimension mismatch")
	ErrCountMismatch     = errors.New("chunk and embedding counts differ")

	// ErrIsolationViolation marks an upsert or search attempted without a
	// tenant identity or namespace. Treated as a programming error, never
	// silently scope-broadened.
	ErrIsolationViolation = errors.New("operation missing tenant scope")
)
