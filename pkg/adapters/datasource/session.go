package datasource

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/ekaya-inc/snowflake-catalog/pkg/apperrors"
	"github.com/ekaya-inc/snowflake-catalog/pkg/logging"
	"github.com/ekaya-inc/snowflake-catalog/pkg/metrics"
)

// SessionState is the lifecycle state of a Session.
type SessionState int

const (
	StateClosed SessionState = iota
	StateOpening
	StateOpen
	StateClosing
)

func (s SessionState) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpening:
		return "opening"
	case StateOpen:
		return "open"
	case StateClosing:
		return "closing"
	}
	return fmt.Sprintf("SessionState(%d)", int(s))
}

// Opener builds the backend handle for a session. It is called once per
// physical open attempt and may block on external verification.
type Opener func(ctx context.Context) (*sql.DB, error)

// Queryer is satisfied by *sql.Conn, *sql.DB and *sql.Tx.
type Queryer interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

// Session wraps at most one live backend connection.
//
//	Closed --Open--> Opening --ok--> Open --Close--> Closing --> Closed
//	Opening --failure--> Closed
//
// Concurrent Open calls share one in-flight attempt. Statements are
// serialized on the pinned connection and complete in submission order.
type Session struct {
	opener Opener
	setup  []string
	logger *zap.Logger

	attempts singleflight.Group

	mu    sync.Mutex
	cond  *sync.Cond
	state SessionState
	db    *sql.DB
	conn  *sql.Conn

	// execMu serializes statements on conn.
	execMu sync.Mutex
}

// NewSession returns a closed session. setup statements run once on every
// new connection before it is considered open.
func NewSession(opener Opener, setup []string, logger *zap.Logger) *Session {
	s := &Session{
		opener: opener,
		setup:  setup,
		logger: logging.OrNop(logger),
	}
	s.cond = sync.NewCond(&s.mu)
	return s
}

// State returns the current lifecycle state.
func (s *Session) State() SessionState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Open establishes the session, or joins the attempt already in flight.
// The attempt itself is not cancelled by ctx; a caller whose ctx ends stops
// waiting while other callers still receive the outcome.
func (s *Session) Open(ctx context.Context) error {
	if s.State() == StateOpen {
		return nil
	}

	ch := s.attempts.DoChan("open", func() (any, error) {
		return nil, s.open(context.WithoutCancel(ctx))
	})

	select {
	case res := <-ch:
		return res.Err
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Session) open(ctx context.Context) error {
	s.mu.Lock()
	for s.state == StateClosing {
		s.cond.Wait()
	}
	if s.state == StateOpen {
		s.mu.Unlock()
		return nil
	}
	s.state = StateOpening
	s.mu.Unlock()

	s.logger.Debug("opening session")
	start := time.Now()
	db, conn, err := s.connect(ctx)
	metrics.RecordSessionOpen(time.Since(start).Seconds(), err == nil)

	s.mu.Lock()
	defer s.mu.Unlock()
	defer s.cond.Broadcast()

	if err != nil {
		s.state = StateClosed
		s.logger.Warn("session open failed",
			zap.Duration("elapsed", time.Since(start)),
			zap.String("error", logging.SanitizeError(err)),
		)
		return &apperrors.ConnectionError{Cause: err}
	}

	s.db, s.conn, s.state = db, conn, StateOpen
	s.logger.Debug("session open", zap.Duration("elapsed", time.Since(start)))
	return nil
}

func (s *Session) connect(ctx context.Context) (*sql.DB, *sql.Conn, error) {
	db, err := s.opener(ctx)
	if err != nil {
		return nil, nil, err
	}

	conn, err := db.Conn(ctx)
	if err != nil {
		_ = db.Close()
		return nil, nil, err
	}

	for _, stmt := range s.setup {
		if _, err := conn.ExecContext(ctx, stmt); err != nil {
			_ = conn.Close()
			_ = db.Close()
			return nil, nil, fmt.Errorf("session setup failed: %w", err)
		}
	}

	return db, conn, nil
}

// Close releases the backend connection. It waits for an in-flight open and
// for the running statement, and is a no-op when nothing is open.
func (s *Session) Close() error {
	s.mu.Lock()
	for s.state == StateOpening || s.state == StateClosing {
		s.cond.Wait()
	}
	if s.state != StateOpen {
		s.mu.Unlock()
		return nil
	}
	s.state = StateClosing
	db, conn := s.db, s.conn
	s.db, s.conn = nil, nil
	s.mu.Unlock()

	s.execMu.Lock()
	err := errors.Join(conn.Close(), db.Close())
	s.execMu.Unlock()

	s.mu.Lock()
	s.state = StateClosed
	s.cond.Broadcast()
	s.mu.Unlock()

	s.logger.Debug("session closed")
	return err
}

// Run opens the session if needed and calls fn with exclusive use of the
// connection. Statements fn issues run back to back with nothing interleaved,
// which LAST_QUERY_ID() follow-ups rely on.
func (s *Session) Run(ctx context.Context, fn func(ctx context.Context, q Queryer) error) error {
	if err := s.Open(ctx); err != nil {
		return err
	}

	s.execMu.Lock()
	defer s.execMu.Unlock()

	s.mu.Lock()
	conn, state := s.conn, s.state
	s.mu.Unlock()
	if state != StateOpen || conn == nil {
		return apperrors.ErrSessionClosed
	}

	return fn(ctx, conn)
}

// Query runs one statement and returns its column names and rows.
func (s *Session) Query(ctx context.Context, query string, args ...any) ([]string, []map[string]any, error) {
	var (
		cols []string
		rows []map[string]any
	)
	err := s.Run(ctx, func(ctx context.Context, q Queryer) error {
		var err error
		cols, rows, err = FetchRows(ctx, q, query, args...)
		return err
	})
	return cols, rows, err
}

// FetchRows runs query on q and materializes every row as a column-name map.
// []byte values are returned as strings.
func FetchRows(ctx context.Context, q Queryer, query string, args ...any) ([]string, []map[string]any, error) {
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, nil, err
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return nil, nil, err
	}

	results := []map[string]any{}
	for rows.Next() {
		values := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, nil, err
		}

		row := make(map[string]any, len(cols))
		for i, col := range cols {
			if b, ok := values[i].([]byte); ok {
				row[col] = string(b)
				continue
			}
			row[col] = values[i]
		}
		results = append(results, row)
	}
	if err := rows.Err(); err != nil {
		return nil, nil, err
	}

	return cols, results, nil
}
