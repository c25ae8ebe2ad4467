// Package session defines the interview session record and the Store
// interface over its persistence backend.
//
// A session is the metering and lifecycle record for one interview attempt.
// It is created lazily on the first completed turn, accumulates token usage
// additively, and is marked completed exactly once when the interview ends.
package session

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned by Get when no session exists for the given id.
var ErrNotFound = errors.New("session: not found")

// Session is one interview attempt's metering record.
type Session struct {
	ID            string
	UserID        string
	UserEmail     string
	InterviewType string
	StartTime     time.Time
	EndTime       time.Time // zero until completed
	TotalTokens   int64
	Completed     bool
}

// Store is the persistence abstraction for sessions. Implementations must be
// safe for concurrent use.
type Store interface {
	// Create inserts a new session and returns its id.
	Create(ctx context.Context, userID, userEmail, interviewType string) (string, error)

	// AddTokens increments the session's total by delta. The update is
	// additive at the store, never a read-modify-write, so concurrent
	// increments cannot overwrite each other.
	AddTokens(ctx context.Context, id string, delta int64) error

	// Complete marks the session completed and stamps its end time.
	// Completing an already-completed session is a no-op.
	Complete(ctx context.Context, id string) error

	// Get returns the session with the given id, or ErrNotFound.
	Get(ctx context.Context, id string) (Session, error)

	// List returns all sessions for userID ordered by start time, newest
	// first.
	List(ctx context.Context, userID string) ([]Session, error)
}
