// Package mock provides an in-memory implementation of [session.Store] for
// use in unit tests.
//
// The mock is safe for concurrent use. Set the Err* fields to inject
// failures per method; inspect call counters and stored sessions after.
package mock

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/intervox-ai/intervox/internal/session"
)

// Compile-time assertion that Store implements session.Store.
var _ session.Store = (*Store)(nil)

// Store is an in-memory mock implementation of [session.Store].
type Store struct {
	mu sync.Mutex

	// Err* fields, when non-nil, are returned by the corresponding method
	// before any state change.
	ErrCreate    error
	ErrAddTokens error
	ErrComplete  error
	ErrGet       error
	ErrList      error

	// Sessions holds the stored sessions keyed by id.
	Sessions map[string]*session.Session

	// Call counters.
	CreateCalls    int
	AddTokensCalls int
	CompleteCalls  int

	nextID int
}

// NewStore creates an empty mock store.
func NewStore() *Store {
	return &Store{Sessions: map[string]*session.Session{}}
}

// Create implements [session.Store]. Generated ids are "session-1",
// "session-2", ... in creation order.
func (s *Store) Create(ctx context.Context, userID, userEmail, interviewType string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.CreateCalls++
	if s.ErrCreate != nil {
		return "", s.ErrCreate
	}
	s.nextID++
	id := fmt.Sprintf("session-%d", s.nextID)
	s.Sessions[id] = &session.Session{
		ID:            id,
		UserID:        userID,
		UserEmail:     userEmail,
		InterviewType: interviewType,
		StartTime:     time.Now().Add(time.Duration(s.nextID) * time.Millisecond),
	}
	return id, nil
}

// AddTokens implements [session.Store].
func (s *Store) AddTokens(ctx context.Context, id string, delta int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.AddTokensCalls++
	if s.ErrAddTokens != nil {
		return s.ErrAddTokens
	}
	sess, ok := s.Sessions[id]
	if !ok {
		return session.ErrNotFound
	}
	sess.TotalTokens += delta
	return nil
}

// Complete implements [session.Store].
func (s *Store) Complete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.CompleteCalls++
	if s.ErrComplete != nil {
		return s.ErrComplete
	}
	sess, ok := s.Sessions[id]
	if !ok {
		return session.ErrNotFound
	}
	if !sess.Completed {
		sess.Completed = true
		sess.EndTime = time.Now()
	}
	return nil
}

// Get implements [session.Store].
func (s *Store) Get(ctx context.Context, id string) (session.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ErrGet != nil {
		return session.Session{}, s.ErrGet
	}
	sess, ok := s.Sessions[id]
	if !ok {
		return session.Session{}, session.ErrNotFound
	}
	return *sess, nil
}

// List implements [session.Store].
func (s *Store) List(ctx context.Context, userID string) ([]session.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ErrList != nil {
		return nil, s.ErrList
	}
	out := []session.Session{}
	for _, sess := range s.Sessions {
		if sess.UserID == userID {
			out = append(out, *sess)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartTime.After(out[j].StartTime) })
	return out, nil
}
