// Package rag orchestrates a query end to end: session resolution, history
// loading, tool-assisted generation, and exchange recording.
package rag

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"coursechat/internal/generator"
	"coursechat/internal/log"
	"coursechat/internal/session"
	"coursechat/internal/tools"
)

// failureAnswer is returned to the user when generation fails. The failed
// exchange is not recorded, so the session history only ever contains
// completed question/answer pairs.
const failureAnswer = "Something went wrong while answering your question. Please try again."

// SessionStore is the session surface the orchestrator depends on.
type SessionStore interface {
	Create(ctx context.Context) (*session.Session, error)
	History(ctx context.Context, sessionID uuid.UUID, window int32) ([]session.Exchange, error)
	AddExchange(ctx context.Context, sessionID uuid.UUID, query, answer string) error
}

// AnswerGenerator is the generation surface the orchestrator depends on.
type AnswerGenerator interface {
	Generate(ctx context.Context, query string, history []generator.Turn) (*generator.Answer, error)
}

// Response is the outcome of one answered query.
type Response struct {
	Answer    string         `json:"answer"`
	Sources   []tools.Source `json:"sources,omitempty"`
	SessionID uuid.UUID      `json:"session_id"`
}

// System answers user queries over the course materials.
//
// System is safe for concurrent use by multiple goroutines.
type System struct {
	sessions SessionStore
	gen      AnswerGenerator
	window   int32
	logger   log.Logger
}

// New creates a System. window is the number of trailing exchanges handed
// to the model as context; logger may be nil.
func New(sessions SessionStore, gen AnswerGenerator, window int32, logger log.Logger) (*System, error) {
	if sessions == nil {
		return nil, fmt.Errorf("session store is required")
	}
	if gen == nil {
		return nil, fmt.Errorf("generator is required")
	}
	if logger == nil {
		logger = log.NewNop()
	}
	return &System{
		sessions: sessions,
		gen:      gen,
		window:   window,
		logger:   logger,
	}, nil
}

// AnswerQuery answers one user query. An empty sessionID starts a new
// session; otherwise it must be a valid UUID of an existing session.
//
// Generation failures produce a generic failure answer with nil error and
// do not record an exchange. History load failures degrade to an empty
// window; recording failures are logged but do not lose the answer.
func (s *System) AnswerQuery(ctx context.Context, sessionID, query string) (*Response, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, fmt.Errorf("query must not be empty")
	}

	id, err := s.resolveSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	history := s.loadHistory(ctx, id)

	answer, err := s.gen.Generate(ctx, query, history)
	if err != nil {
		s.logger.Error("generation failed", "session_id", id, "error", err)
		return &Response{Answer: failureAnswer, SessionID: id}, nil
	}

	if err := s.sessions.AddExchange(ctx, id, query, answer.Text); err != nil {
		// Best-effort: the user still gets the answer, the window just
		// won't include this exchange next time.
		s.logger.Warn("recording exchange failed", "session_id", id, "error", err)
	}

	return &Response{
		Answer:    answer.Text,
		Sources:   answer.Sources,
		SessionID: id,
	}, nil
}

func (s *System) resolveSession(ctx context.Context, sessionID string) (uuid.UUID, error) {
	if sessionID == "" {
		sess, err := s.sessions.Create(ctx)
		if err != nil {
			return uuid.Nil, fmt.Errorf("creating session: %w", err)
		}
		s.logger.Debug("started new session", "session_id", sess.ID)
		return sess.ID, nil
	}

	id, err := uuid.Parse(sessionID)
	if err != nil {
		return uuid.Nil, fmt.Errorf("%w: %q", session.ErrInvalidSessionID, sessionID)
	}
	return id, nil
}

func (s *System) loadHistory(ctx context.Context, id uuid.UUID) []generator.Turn {
	exchanges, err := s.sessions.History(ctx, id, s.window)
	if err != nil {
		s.logger.Warn("loading history failed, continuing without context",
			"session_id", id, "error", err)
		return nil
	}

	turns := make([]generator.Turn, len(exchanges))
	for i, ex := range exchanges {
		turns[i] = generator.Turn{Query: ex.Query, Answer: ex.Answer}
	}
	return turns
}
