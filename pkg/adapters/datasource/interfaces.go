package datasource

import (
	"context"
)

// Explorer is the host-facing surface of one warehouse connection.
// Implementations own a single Session and must be closed when done.
type Explorer interface {
	// Open establishes the session. Concurrent calls share one attempt.
	Open(ctx context.Context) error

	// Close releases the session. Safe to call repeatedly.
	Close() error

	// State reports the session lifecycle state.
	State() SessionState

	// ChildrenOf returns the children of node. parent is the node's own parent
	// when the host has it, otherwise nil.
	//
	// Unknown node types yield an empty slice and no error. A failed listing
	// query yields an empty slice and a *apperrors.QueryError. Session
	// establishment failures propagate as *apperrors.ConnectionError.
	ChildrenOf(ctx context.Context, node CatalogNode, parent *CatalogNode) ([]CatalogNode, error)

	// Execute runs one ad-hoc statement. It never fails; inspect QueryResult.Error.
	Execute(ctx context.Context, sqlText string, bindings []any, requestID string) QueryResult

	// TestConnection validates credentials, opens, probes and always closes.
	TestConnection(ctx context.Context) error

	// SearchItems is the completion hook. It may return nothing.
	SearchItems(ctx context.Context, itemType NodeType, search string) ([]CatalogNode, error)

	// ShowRecords previews a page of rows from a table or view.
	ShowRecords(ctx context.Context, table CatalogNode, limit, offset int) QueryResult

	// DescribeTable lists a table's column metadata.
	DescribeTable(ctx context.Context, table CatalogNode) QueryResult
}

// QueryResult is the single record produced for every submitted statement.
// Failures are data: Error is set and RawError keeps the cause.
type QueryResult struct {
	ConnID    string           `json:"connId,omitempty" yaml:"connId,omitempty"`
	RequestID string           `json:"requestId,omitempty" yaml:"requestId,omitempty"`
	ResultID  string           `json:"resultId" yaml:"resultId"`
	Query     string           `json:"query" yaml:"query"`
	Cols      []string         `json:"cols" yaml:"cols"`
	Results   []map[string]any `json:"results" yaml:"results"`
	Messages  []string         `json:"messages" yaml:"messages"`
	Error     bool             `json:"error" yaml:"error"`
	RawError  error            `json:"-" yaml:"-"`

	// Total is the full row count reported with record previews.
	Total int64 `json:"total,omitempty" yaml:"total,omitempty"`
}

// Err returns RawError when the result is a failure.
func (r QueryResult) Err() error {
	if !r.Error {
		return nil
	}
	return r.RawError
}
