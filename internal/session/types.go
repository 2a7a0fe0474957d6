// Package session manages conversation sessions and their exchange history
// with a PostgreSQL backend.
//
// A session is a sequence of exchanges, each pairing a user query with the
// assistant's answer. Reads return a bounded trailing window of exchanges so
// prompt size stays constant regardless of conversation length.
package session

import (
	"time"

	"github.com/google/uuid"
)

// Session is a conversation session.
type Session struct {
	ID            uuid.UUID `json:"id"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
	ExchangeCount int       `json:"exchange_count"`
}

// Exchange is one completed question/answer pair within a session.
// SequenceNumber is 1-based and gap-free within a session.
type Exchange struct {
	ID             uuid.UUID `json:"id"`
	SessionID      uuid.UUID `json:"session_id"`
	SequenceNumber int       `json:"sequence_number"`
	Query          string    `json:"query"`
	Answer         string    `json:"answer"`
	CreatedAt      time.Time `json:"created_at"`
}
