// Package usage tracks the token spend of one interview.
//
// A Tracker owns the session identity and the running token total for the
// interview it was bound to. The local total is authoritative: every metered
// operation increments it, unconditionally. The remote session store is
// updated best-effort behind a circuit breaker, so a dead store degrades the
// interview to local-only bookkeeping instead of blocking it.
//
// When the store is unreachable at session-creation time, the tracker
// synthesizes a local session id carrying the "local_" prefix. Local ids are
// never written to the store; token updates against them accumulate locally
// only.
package usage

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/intervox-ai/intervox/internal/observe"
	"github.com/intervox-ai/intervox/internal/resilience"
	"github.com/intervox-ai/intervox/internal/session"
)

// LocalPrefix marks session ids synthesized without remote backing.
const LocalPrefix = "local_"

// User identifies the interviewee a tracker accounts for.
type User struct {
	ID    string
	Email string
}

// Option configures a Tracker during construction.
type Option func(*Tracker)

// WithLogger overrides the logger. Default is slog.Default.
func WithLogger(l *slog.Logger) Option {
	return func(t *Tracker) { t.log = l }
}

// WithMetrics overrides the metrics sink. Default is observe.DefaultMetrics.
func WithMetrics(m *observe.Metrics) Option {
	return func(t *Tracker) { t.metrics = m }
}

// WithBreaker replaces the breaker guarding remote store calls. Useful in
// tests to force the open state.
func WithBreaker(b *resilience.Breaker) Option {
	return func(t *Tracker) { t.breaker = b }
}

// Tracker accounts for one interview's session and token total. It is safe
// for concurrent use, though in practice only the turn controller writes to
// it.
type Tracker struct {
	store   session.Store // nil = no remote store configured
	user    User
	log     *slog.Logger
	metrics *observe.Metrics
	breaker *resilience.Breaker

	mu            sync.Mutex
	interviewType string
	sessionID     string
	total         int64
	completed     bool
}

// NewTracker binds a tracker to a user and interview type. store may be nil
// when no session store is configured; the tracker then runs local-only and
// every session is a local session.
func NewTracker(store session.Store, user User, interviewType string, opts ...Option) *Tracker {
	t := &Tracker{
		store:         store,
		user:          user,
		interviewType: interviewType,
		log:           slog.Default(),
		metrics:       observe.DefaultMetrics(),
		breaker: resilience.New(resilience.Config{
			Name:         "session-store",
			ResetTimeout: 30 * time.Second,
		}),
	}
	for _, o := range opts {
		o(t)
	}
	return t
}

// EnsureSession makes sure a session id exists for the current interview.
// It is idempotent: once a session id is set, later calls return nil
// immediately. On remote creation failure a local id is synthesized and the
// error is reported once; the tracker remains fully usable.
func (t *Tracker) EnsureSession(ctx context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.sessionID != "" {
		return nil
	}

	if t.store != nil {
		var id string
		err := t.breaker.Execute(func() error {
			var cerr error
			id, cerr = t.store.Create(ctx, t.user.ID, t.user.Email, t.interviewType)
			return cerr
		})
		if err == nil {
			t.sessionID = id
			t.completed = false
			t.log.Info("session created", "session_id", id, "interview_type", t.interviewType)
			return nil
		}
		t.sessionID = localID()
		t.completed = false
		t.log.Warn("remote session creation failed, continuing locally",
			"session_id", t.sessionID, "error", err)
		return fmt.Errorf("usage: remote session creation failed: %w", err)
	}

	t.sessionID = localID()
	t.completed = false
	return nil
}

// AddTokens adds n to the running total. The local total is always updated;
// the remote increment is skipped for local sessions and is best-effort
// otherwise.
func (t *Tracker) AddTokens(ctx context.Context, n int64) {
	if n <= 0 {
		return
	}

	t.mu.Lock()
	t.total += n
	id := t.sessionID
	t.mu.Unlock()

	t.metrics.RecordTokens(ctx, "session", n)

	if t.store == nil || id == "" || IsLocal(id) {
		return
	}
	err := t.breaker.Execute(func() error {
		return t.store.AddTokens(ctx, id, n)
	})
	if err != nil {
		t.log.Warn("remote token update failed", "session_id", id, "delta", n, "error", err)
	}
}

// CompleteSession marks the session completed, once. Remote failures are
// logged and swallowed.
func (t *Tracker) CompleteSession(ctx context.Context) {
	t.mu.Lock()
	if t.sessionID == "" || t.completed {
		t.mu.Unlock()
		return
	}
	t.completed = true
	id := t.sessionID
	t.mu.Unlock()

	if t.store == nil || IsLocal(id) {
		return
	}
	err := t.breaker.Execute(func() error {
		return t.store.Complete(ctx, id)
	})
	if err != nil {
		t.log.Warn("remote session completion failed", "session_id", id, "error", err)
	}
}

// Reset completes the current session if one is active, then clears the
// session id and total and switches to the given interview type. Called when
// the interview type changes or a new interview starts.
func (t *Tracker) Reset(ctx context.Context, interviewType string) {
	t.CompleteSession(ctx)

	t.mu.Lock()
	defer t.mu.Unlock()
	t.sessionID = ""
	t.total = 0
	t.completed = false
	t.interviewType = interviewType
}

// SessionID returns the active session id, or "" before the first
// EnsureSession call.
func (t *Tracker) SessionID() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.sessionID
}

// Total returns the authoritative local token total.
func (t *Tracker) Total() int64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.total
}

// IsLocal reports whether id is a locally synthesized session id.
func IsLocal(id string) bool {
	return strings.HasPrefix(id, LocalPrefix)
}

func localID() string {
	return LocalPrefix + uuid.NewString()
}
