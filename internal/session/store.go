package session

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"coursechat/internal/log"
)

// Querier defines the database operations Store depends on. The interface
// lives with the consumer so tests can substitute a mock, and Queries in
// this package is the PostgreSQL implementation.
type Querier interface {
	CreateSession(ctx context.Context) (SessionRow, error)
	GetSession(ctx context.Context, id pgtype.UUID) (SessionRow, error)
	ListSessions(ctx context.Context, arg ListSessionsParams) ([]SessionRow, error)
	DeleteSession(ctx context.Context, id pgtype.UUID) error
	LockSession(ctx context.Context, id pgtype.UUID) (pgtype.UUID, error)
	MaxSequenceNumber(ctx context.Context, sessionID pgtype.UUID) (int32, error)
	AddExchange(ctx context.Context, arg AddExchangeParams) error
	TouchSession(ctx context.Context, id pgtype.UUID, exchangeCount int32) error
	RecentExchanges(ctx context.Context, sessionID pgtype.UUID, limit int32) ([]ExchangeRow, error)
}

// Store manages session persistence.
//
// Store is safe for concurrent use by multiple goroutines: sequence numbers
// are assigned inside a transaction holding a session row lock.
type Store struct {
	querier Querier
	pool    *pgxpool.Pool // nil in unit tests; enables transactions when set
	logger  log.Logger
}

// New creates a Store. pool may be nil for tests with a mock querier, in
// which case AddExchange runs without a transaction.
func New(querier Querier, pool *pgxpool.Pool, logger log.Logger) *Store {
	if logger == nil {
		logger = log.NewNop()
	}
	return &Store{querier: querier, pool: pool, logger: logger}
}

// Create starts a new empty session.
func (s *Store) Create(ctx context.Context) (*Session, error) {
	row, err := s.querier.CreateSession(ctx)
	if err != nil {
		return nil, fmt.Errorf("creating session: %w", err)
	}

	sess := rowToSession(row)
	s.logger.Debug("created session", "id", sess.ID)
	return sess, nil
}

// Get retrieves a session by ID. Returns ErrSessionNotFound if it does not
// exist.
func (s *Store) Get(ctx context.Context, sessionID uuid.UUID) (*Session, error) {
	row, err := s.querier.GetSession(ctx, uuidToPgUUID(sessionID))
	if err != nil {
		if IsNotFound(err) {
			return nil, fmt.Errorf("session %s: %w", sessionID, ErrSessionNotFound)
		}
		return nil, fmt.Errorf("getting session %s: %w", sessionID, err)
	}
	return rowToSession(row), nil
}

// List returns sessions ordered by most recent activity.
func (s *Store) List(ctx context.Context, limit, offset int32) ([]*Session, error) {
	rows, err := s.querier.ListSessions(ctx, ListSessionsParams{
		ResultLimit:  limit,
		ResultOffset: offset,
	})
	if err != nil {
		return nil, fmt.Errorf("listing sessions: %w", err)
	}

	sessions := make([]*Session, 0, len(rows))
	for _, row := range rows {
		sessions = append(sessions, rowToSession(row))
	}

	s.logger.Debug("listed sessions", "count", len(sessions), "limit", limit, "offset", offset)
	return sessions, nil
}

// Delete removes a session and all its exchanges.
func (s *Store) Delete(ctx context.Context, sessionID uuid.UUID) error {
	if err := s.querier.DeleteSession(ctx, uuidToPgUUID(sessionID)); err != nil {
		if IsNotFound(err) {
			return fmt.Errorf("session %s: %w", sessionID, ErrSessionNotFound)
		}
		return fmt.Errorf("deleting session %s: %w", sessionID, err)
	}

	s.logger.Debug("deleted session", "id", sessionID)
	return nil
}

// History returns the last `window` exchanges in chronological order. A new
// session yields an empty slice, not an error. The window is clamped via
// NormalizeWindow.
func (s *Store) History(ctx context.Context, sessionID uuid.UUID, window int32) ([]Exchange, error) {
	window = NormalizeWindow(window)

	rows, err := s.querier.RecentExchanges(ctx, uuidToPgUUID(sessionID), window)
	if err != nil {
		return nil, fmt.Errorf("loading history for session %s: %w", sessionID, err)
	}

	// Rows arrive newest first; reverse into chronological order.
	exchanges := make([]Exchange, len(rows))
	for i, row := range rows {
		exchanges[len(rows)-1-i] = rowToExchange(row)
	}

	s.logger.Debug("loaded history", "session_id", sessionID, "exchanges", len(exchanges))
	return exchanges, nil
}

// AddExchange appends one question/answer pair to a session. The sequence
// number is assigned under a session row lock so concurrent writers cannot
// collide or leave gaps.
func (s *Store) AddExchange(ctx context.Context, sessionID uuid.UUID, query, answer string) error {
	if s.pool == nil {
		return s.addExchangeNonTransactional(ctx, sessionID, query, answer)
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer func() {
		if err := tx.Rollback(ctx); err != nil {
			s.logger.Debug("transaction rollback (may be already committed)", "error", err)
		}
	}()

	txQuerier := NewQueries(tx)
	pgID := uuidToPgUUID(sessionID)

	if _, err := txQuerier.LockSession(ctx, pgID); err != nil {
		if IsNotFound(err) {
			return fmt.Errorf("session %s: %w", sessionID, ErrSessionNotFound)
		}
		return fmt.Errorf("locking session: %w", err)
	}

	maxSeq, err := txQuerier.MaxSequenceNumber(ctx, pgID)
	if err != nil {
		return fmt.Errorf("reading max sequence number: %w", err)
	}

	if err := txQuerier.AddExchange(ctx, AddExchangeParams{
		SessionID:      pgID,
		SequenceNumber: maxSeq + 1,
		Query:          query,
		Answer:         answer,
	}); err != nil {
		return fmt.Errorf("inserting exchange: %w", err)
	}

	if err := txQuerier.TouchSession(ctx, pgID, maxSeq+1); err != nil {
		return fmt.Errorf("updating session metadata: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}

	s.logger.Debug("added exchange", "session_id", sessionID, "sequence", maxSeq+1)
	return nil
}

// addExchangeNonTransactional is the fallback used when pool is nil.
// Only for unit tests with mock queriers where external synchronization is
// guaranteed.
func (s *Store) addExchangeNonTransactional(ctx context.Context, sessionID uuid.UUID, query, answer string) error {
	pgID := uuidToPgUUID(sessionID)

	maxSeq, err := s.querier.MaxSequenceNumber(ctx, pgID)
	if err != nil {
		return fmt.Errorf("reading max sequence number: %w", err)
	}

	if err := s.querier.AddExchange(ctx, AddExchangeParams{
		SessionID:      pgID,
		SequenceNumber: maxSeq + 1,
		Query:          query,
		Answer:         answer,
	}); err != nil {
		return fmt.Errorf("inserting exchange: %w", err)
	}

	if err := s.querier.TouchSession(ctx, pgID, maxSeq+1); err != nil {
		return fmt.Errorf("updating session metadata: %w", err)
	}

	s.logger.Debug("added exchange (non-transactional)", "session_id", sessionID, "sequence", maxSeq+1)
	return nil
}

func rowToSession(row SessionRow) *Session {
	return &Session{
		ID:            pgUUIDToUUID(row.ID),
		CreatedAt:     row.CreatedAt.Time,
		UpdatedAt:     row.UpdatedAt.Time,
		ExchangeCount: int(row.ExchangeCount),
	}
}

func rowToExchange(row ExchangeRow) Exchange {
	return Exchange{
		ID:             pgUUIDToUUID(row.ID),
		SessionID:      pgUUIDToUUID(row.SessionID),
		SequenceNumber: int(row.SequenceNumber),
		Query:          row.Query,
		Answer:         row.Answer,
		CreatedAt:      row.CreatedAt.Time,
	}
}

// uuidToPgUUID converts uuid.UUID to pgtype.UUID.
func uuidToPgUUID(id uuid.UUID) pgtype.UUID {
	return pgtype.UUID{Bytes: id, Valid: true}
}

// pgUUIDToUUID converts pgtype.UUID to uuid.UUID.
func pgUUIDToUUID(pgUUID pgtype.UUID) uuid.UUID {
	if !pgUUID.Valid {
		return uuid.Nil
	}
	return pgUUID.Bytes
}
