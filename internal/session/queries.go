package session

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
)

// DBTX is the subset of pgx connection behavior the queries need.
// Both *pgxpool.Pool and pgx.Tx satisfy it, so the same Queries value works
// inside and outside transactions.
type DBTX interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Queries is the PostgreSQL implementation of the Querier interface.
type Queries struct {
	db DBTX
}

// NewQueries creates a Queries bound to a pool or transaction.
func NewQueries(db DBTX) *Queries {
	return &Queries{db: db}
}

// Row types mirror the database schema with pgtype columns. Store converts
// them to the application types in types.go.

// SessionRow is a row of the sessions table.
type SessionRow struct {
	ID            pgtype.UUID
	CreatedAt     pgtype.Timestamptz
	UpdatedAt     pgtype.Timestamptz
	ExchangeCount int32
}

// ExchangeRow is a row of the exchanges table.
type ExchangeRow struct {
	ID             pgtype.UUID
	SessionID      pgtype.UUID
	SequenceNumber int32
	Query          string
	Answer         string
	CreatedAt      pgtype.Timestamptz
}

// AddExchangeParams carries the values for inserting one exchange.
type AddExchangeParams struct {
	SessionID      pgtype.UUID
	SequenceNumber int32
	Query          string
	Answer         string
}

// ListSessionsParams carries pagination values for ListSessions.
type ListSessionsParams struct {
	ResultLimit  int32
	ResultOffset int32
}

const createSessionSQL = `
INSERT INTO sessions DEFAULT VALUES
RETURNING id, created_at, updated_at, exchange_count`

// CreateSession inserts a new empty session.
func (q *Queries) CreateSession(ctx context.Context) (SessionRow, error) {
	var row SessionRow
	err := q.db.QueryRow(ctx, createSessionSQL).
		Scan(&row.ID, &row.CreatedAt, &row.UpdatedAt, &row.ExchangeCount)
	return row, err
}

const getSessionSQL = `
SELECT id, created_at, updated_at, exchange_count
FROM sessions
WHERE id = $1`

// GetSession fetches one session by ID.
func (q *Queries) GetSession(ctx context.Context, id pgtype.UUID) (SessionRow, error) {
	var row SessionRow
	err := q.db.QueryRow(ctx, getSessionSQL, id).
		Scan(&row.ID, &row.CreatedAt, &row.UpdatedAt, &row.ExchangeCount)
	return row, err
}

const listSessionsSQL = `
SELECT id, created_at, updated_at, exchange_count
FROM sessions
ORDER BY updated_at DESC
LIMIT $1 OFFSET $2`

// ListSessions returns sessions ordered by most recent activity.
func (q *Queries) ListSessions(ctx context.Context, arg ListSessionsParams) ([]SessionRow, error) {
	rows, err := q.db.Query(ctx, listSessionsSQL, arg.ResultLimit, arg.ResultOffset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []SessionRow
	for rows.Next() {
		var row SessionRow
		if err := rows.Scan(&row.ID, &row.CreatedAt, &row.UpdatedAt, &row.ExchangeCount); err != nil {
			return nil, err
		}
		result = append(result, row)
	}
	return result, rows.Err()
}

const deleteSessionSQL = `DELETE FROM sessions WHERE id = $1`

// DeleteSession removes a session and, via cascade, its exchanges.
func (q *Queries) DeleteSession(ctx context.Context, id pgtype.UUID) error {
	tag, err := q.db.Exec(ctx, deleteSessionSQL, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

const lockSessionSQL = `SELECT id FROM sessions WHERE id = $1 FOR UPDATE`

// LockSession acquires a row lock on the session for the duration of the
// enclosing transaction, serializing concurrent sequence number assignment.
func (q *Queries) LockSession(ctx context.Context, id pgtype.UUID) (pgtype.UUID, error) {
	var locked pgtype.UUID
	err := q.db.QueryRow(ctx, lockSessionSQL, id).Scan(&locked)
	return locked, err
}

const maxSequenceNumberSQL = `
SELECT COALESCE(MAX(sequence_number), 0)
FROM exchanges
WHERE session_id = $1`

// MaxSequenceNumber returns the highest sequence number in a session,
// or 0 when the session has no exchanges.
func (q *Queries) MaxSequenceNumber(ctx context.Context, sessionID pgtype.UUID) (int32, error) {
	var max int32
	err := q.db.QueryRow(ctx, maxSequenceNumberSQL, sessionID).Scan(&max)
	return max, err
}

const addExchangeSQL = `
INSERT INTO exchanges (session_id, sequence_number, query, answer)
VALUES ($1, $2, $3, $4)`

// AddExchange inserts one exchange row.
func (q *Queries) AddExchange(ctx context.Context, arg AddExchangeParams) error {
	_, err := q.db.Exec(ctx, addExchangeSQL,
		arg.SessionID, arg.SequenceNumber, arg.Query, arg.Answer)
	return err
}

const touchSessionSQL = `
UPDATE sessions
SET updated_at = now(), exchange_count = $2
WHERE id = $1`

// TouchSession updates a session's activity timestamp and exchange count.
func (q *Queries) TouchSession(ctx context.Context, id pgtype.UUID, exchangeCount int32) error {
	tag, err := q.db.Exec(ctx, touchSessionSQL, id, exchangeCount)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

const recentExchangesSQL = `
SELECT id, session_id, sequence_number, query, answer, created_at
FROM exchanges
WHERE session_id = $1
ORDER BY sequence_number DESC
LIMIT $2`

// RecentExchanges returns the last N exchanges, newest first. Callers that
// need chronological order reverse the slice.
func (q *Queries) RecentExchanges(ctx context.Context, sessionID pgtype.UUID, limit int32) ([]ExchangeRow, error) {
	rows, err := q.db.Query(ctx, recentExchangesSQL, sessionID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []ExchangeRow
	for rows.Next() {
		var row ExchangeRow
		if err := rows.Scan(&row.ID, &row.SessionID, &row.SequenceNumber,
			&row.Query, &row.Answer, &row.CreatedAt); err != nil {
			return nil, err
		}
		result = append(result, row)
	}
	return result, rows.Err()
}

// IsNotFound reports whether err is pgx's no-rows error.
func IsNotFound(err error) bool {
	return errors.Is(err, pgx.ErrNoRows)
}
