package db

import "errors"

// Sentinel errors for database operations.
var (
	ErrIndexNotFound = errors.New("db: index not found")
	ErrGraphNotFound = errors.New("db: graph not found")
	ErrUnsupported   = errors.New("db: unsupported value")
)

// Op constants name backend operations for error context.
const (
	OpPing       = "PING"
	OpSearch     = "FT.SEARCH"
	OpGraphQuery = "GRAPH.QUERY"
	OpQdrant     = "qdrant.Query"
	OpPinecone   = "pinecone.query"
)

// Error wraps an underlying error with the operation name for diagnostics.
type Error struct {
	Op  string
	Err error
}

func (e *Error) Error() string { return e.Op + ": " + e.Err.Error() }
func (e *Error) Unwrap() error { return e.Err }
