package session

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"

	"coursechat/internal/log"
)

// mockQuerier implements Querier for testing.
type mockQuerier struct {
	createSessionErr error
	getSessionErr    error
	listSessionsErr  error
	deleteSessionErr error
	maxSeqErr        error
	addExchangeErr   error
	touchSessionErr  error
	recentErr        error

	createSessionResult SessionRow
	getSessionResult    SessionRow
	listSessionsResult  []SessionRow
	maxSeqResult        int32
	recentResult        []ExchangeRow

	addExchangeCalls []AddExchangeParams
	touchCalls       []int32
	lastRecentLimit  int32
}

func (m *mockQuerier) CreateSession(ctx context.Context) (SessionRow, error) {
	if m.createSessionErr != nil {
		return SessionRow{}, m.createSessionErr
	}
	return m.createSessionResult, nil
}

func (m *mockQuerier) GetSession(ctx context.Context, id pgtype.UUID) (SessionRow, error) {
	if m.getSessionErr != nil {
		return SessionRow{}, m.getSessionErr
	}
	return m.getSessionResult, nil
}

func (m *mockQuerier) ListSessions(ctx context.Context, arg ListSessionsParams) ([]SessionRow, error) {
	if m.listSessionsErr != nil {
		return nil, m.listSessionsErr
	}
	return m.listSessionsResult, nil
}

func (m *mockQuerier) DeleteSession(ctx context.Context, id pgtype.UUID) error {
	return m.deleteSessionErr
}

func (m *mockQuerier) LockSession(ctx context.Context, id pgtype.UUID) (pgtype.UUID, error) {
	return id, nil
}

func (m *mockQuerier) MaxSequenceNumber(ctx context.Context, sessionID pgtype.UUID) (int32, error) {
	if m.maxSeqErr != nil {
		return 0, m.maxSeqErr
	}
	return m.maxSeqResult, nil
}

func (m *mockQuerier) AddExchange(ctx context.Context, arg AddExchangeParams) error {
	m.addExchangeCalls = append(m.addExchangeCalls, arg)
	return m.addExchangeErr
}

func (m *mockQuerier) TouchSession(ctx context.Context, id pgtype.UUID, exchangeCount int32) error {
	m.touchCalls = append(m.touchCalls, exchangeCount)
	return m.touchSessionErr
}

func (m *mockQuerier) RecentExchanges(ctx context.Context, sessionID pgtype.UUID, limit int32) ([]ExchangeRow, error) {
	m.lastRecentLimit = limit
	if m.recentErr != nil {
		return nil, m.recentErr
	}
	return m.recentResult, nil
}

func pgUUID(t *testing.T) pgtype.UUID {
	t.Helper()
	return pgtype.UUID{Bytes: uuid.New(), Valid: true}
}

func pgTime(ts time.Time) pgtype.Timestamptz {
	return pgtype.Timestamptz{Time: ts, Valid: true}
}

func TestCreate(t *testing.T) {
	id := pgUUID(t)
	now := time.Now()
	querier := &mockQuerier{
		createSessionResult: SessionRow{ID: id, CreatedAt: pgTime(now), UpdatedAt: pgTime(now)},
	}
	store := New(querier, nil, log.NewNop())

	sess, err := store.Create(context.Background())
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if sess.ID != uuid.UUID(id.Bytes) {
		t.Errorf("session ID = %s, want %s", sess.ID, uuid.UUID(id.Bytes))
	}
	if sess.ExchangeCount != 0 {
		t.Errorf("ExchangeCount = %d, want 0", sess.ExchangeCount)
	}
}

func TestCreateError(t *testing.T) {
	querier := &mockQuerier{createSessionErr: errors.New("db down")}
	store := New(querier, nil, log.NewNop())

	if _, err := store.Create(context.Background()); err == nil {
		t.Fatal("Create succeeded, want error")
	}
}

func TestGetNotFound(t *testing.T) {
	querier := &mockQuerier{getSessionErr: pgx.ErrNoRows}
	store := New(querier, nil, log.NewNop())

	_, err := store.Get(context.Background(), uuid.New())
	if !errors.Is(err, ErrSessionNotFound) {
		t.Fatalf("Get error = %v, want ErrSessionNotFound", err)
	}
}

func TestHistoryReversesToChronological(t *testing.T) {
	sid := pgUUID(t)
	// Newest first, as the query returns them.
	querier := &mockQuerier{
		recentResult: []ExchangeRow{
			{SessionID: sid, SequenceNumber: 3, Query: "q3", Answer: "a3"},
			{SessionID: sid, SequenceNumber: 2, Query: "q2", Answer: "a2"},
		},
	}
	store := New(querier, nil, log.NewNop())

	history, err := store.History(context.Background(), uuid.UUID(sid.Bytes), 2)
	if err != nil {
		t.Fatalf("History: %v", err)
	}
	if len(history) != 2 {
		t.Fatalf("len(history) = %d, want 2", len(history))
	}
	if history[0].SequenceNumber != 2 || history[1].SequenceNumber != 3 {
		t.Errorf("history order = [%d, %d], want chronological [2, 3]",
			history[0].SequenceNumber, history[1].SequenceNumber)
	}
}

func TestHistoryEmptySession(t *testing.T) {
	querier := &mockQuerier{}
	store := New(querier, nil, log.NewNop())

	history, err := store.History(context.Background(), uuid.New(), 2)
	if err != nil {
		t.Fatalf("History: %v", err)
	}
	if len(history) != 0 {
		t.Errorf("len(history) = %d, want 0", len(history))
	}
}

func TestHistoryNormalizesWindow(t *testing.T) {
	querier := &mockQuerier{}
	store := New(querier, nil, log.NewNop())

	if _, err := store.History(context.Background(), uuid.New(), 0); err != nil {
		t.Fatalf("History: %v", err)
	}
	if querier.lastRecentLimit != DefaultWindow {
		t.Errorf("limit = %d, want DefaultWindow %d", querier.lastRecentLimit, DefaultWindow)
	}

	if _, err := store.History(context.Background(), uuid.New(), 1000); err != nil {
		t.Fatalf("History: %v", err)
	}
	if querier.lastRecentLimit != MaxWindow {
		t.Errorf("limit = %d, want MaxWindow %d", querier.lastRecentLimit, MaxWindow)
	}
}

func TestAddExchangeAssignsNextSequence(t *testing.T) {
	querier := &mockQuerier{maxSeqResult: 4}
	store := New(querier, nil, log.NewNop())

	if err := store.AddExchange(context.Background(), uuid.New(), "what is MCP?", "a protocol"); err != nil {
		t.Fatalf("AddExchange: %v", err)
	}
	if len(querier.addExchangeCalls) != 1 {
		t.Fatalf("AddExchange calls = %d, want 1", len(querier.addExchangeCalls))
	}
	got := querier.addExchangeCalls[0]
	if got.SequenceNumber != 5 {
		t.Errorf("SequenceNumber = %d, want 5", got.SequenceNumber)
	}
	if got.Query != "what is MCP?" || got.Answer != "a protocol" {
		t.Errorf("exchange content not preserved: %+v", got)
	}
	if len(querier.touchCalls) != 1 || querier.touchCalls[0] != 5 {
		t.Errorf("TouchSession exchange count = %v, want [5]", querier.touchCalls)
	}
}

func TestAddExchangeInsertError(t *testing.T) {
	querier := &mockQuerier{addExchangeErr: errors.New("insert failed")}
	store := New(querier, nil, log.NewNop())

	if err := store.AddExchange(context.Background(), uuid.New(), "q", "a"); err == nil {
		t.Fatal("AddExchange succeeded, want error")
	}
	if len(querier.touchCalls) != 0 {
		t.Errorf("TouchSession called %d times after insert failure, want 0", len(querier.touchCalls))
	}
}

func TestNormalizeWindow(t *testing.T) {
	tests := []struct {
		in, want int32
	}{
		{-1, DefaultWindow},
		{0, DefaultWindow},
		{1, 1},
		{DefaultWindow, DefaultWindow},
		{MaxWindow, MaxWindow},
		{MaxWindow + 1, MaxWindow},
	}
	for _, tt := range tests {
		if got := NormalizeWindow(tt.in); got != tt.want {
			t.Errorf("NormalizeWindow(%d) = %d, want %d", tt.in, got, tt.want)
		}
	}
}
