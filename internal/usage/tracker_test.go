package usage

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/intervox-ai/intervox/internal/resilience"
	"github.com/intervox-ai/intervox/internal/session/mock"
)

var testUser = User{ID: "user-1", Email: "candidate@example.com"}

func TestEnsureSession_CreatesRemoteSession(t *testing.T) {
	store := mock.NewStore()
	tr := NewTracker(store, testUser, "software-engineer")

	if err := tr.EnsureSession(context.Background()); err != nil {
		t.Fatalf("EnsureSession: %v", err)
	}
	id := tr.SessionID()
	if id == "" || IsLocal(id) {
		t.Fatalf("session id = %q, want a remote id", id)
	}
	sess, err := store.Get(context.Background(), id)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if sess.UserID != "user-1" || sess.InterviewType != "software-engineer" {
		t.Errorf("stored session = %+v", sess)
	}
}

func TestEnsureSession_Idempotent(t *testing.T) {
	store := mock.NewStore()
	tr := NewTracker(store, testUser, "software-engineer")

	for i := 0; i < 3; i++ {
		if err := tr.EnsureSession(context.Background()); err != nil {
			t.Fatalf("EnsureSession #%d: %v", i, err)
		}
	}
	if store.CreateCalls != 1 {
		t.Errorf("create calls = %d, want 1", store.CreateCalls)
	}
}

func TestEnsureSession_FallsBackToLocalID(t *testing.T) {
	store := mock.NewStore()
	store.ErrCreate = errors.New("store down")
	tr := NewTracker(store, testUser, "software-engineer")

	err := tr.EnsureSession(context.Background())
	if err == nil {
		t.Fatal("expected the creation failure to be reported")
	}
	id := tr.SessionID()
	if !strings.HasPrefix(id, LocalPrefix) {
		t.Fatalf("session id = %q, want %q prefix", id, LocalPrefix)
	}

	// Later calls are clean: the local session is established.
	if err := tr.EnsureSession(context.Background()); err != nil {
		t.Errorf("second EnsureSession: %v", err)
	}
	if store.CreateCalls != 1 {
		t.Errorf("create calls = %d, want 1", store.CreateCalls)
	}
}

func TestEnsureSession_LocalIDsAreUnique(t *testing.T) {
	store := mock.NewStore()
	store.ErrCreate = errors.New("store down")

	tr1 := NewTracker(store, testUser, "software-engineer")
	tr2 := NewTracker(store, testUser, "software-engineer")
	_ = tr1.EnsureSession(context.Background())
	_ = tr2.EnsureSession(context.Background())

	if tr1.SessionID() == tr2.SessionID() {
		t.Errorf("local ids collide: %q", tr1.SessionID())
	}
}

func TestAddTokens_UpdatesLocalAndRemote(t *testing.T) {
	store := mock.NewStore()
	tr := NewTracker(store, testUser, "software-engineer")
	if err := tr.EnsureSession(context.Background()); err != nil {
		t.Fatalf("EnsureSession: %v", err)
	}

	tr.AddTokens(context.Background(), 120)
	tr.AddTokens(context.Background(), 80)

	if tr.Total() != 200 {
		t.Errorf("local total = %d, want 200", tr.Total())
	}
	sess, err := store.Get(context.Background(), tr.SessionID())
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if sess.TotalTokens != 200 {
		t.Errorf("remote total = %d, want 200", sess.TotalTokens)
	}
}

func TestAddTokens_LocalTotalSurvivesRemoteFailure(t *testing.T) {
	store := mock.NewStore()
	tr := NewTracker(store, testUser, "software-engineer")
	if err := tr.EnsureSession(context.Background()); err != nil {
		t.Fatalf("EnsureSession: %v", err)
	}

	store.ErrAddTokens = errors.New("write timeout")
	tr.AddTokens(context.Background(), 50)
	tr.AddTokens(context.Background(), 70)

	// The local total never drops an addend.
	if tr.Total() != 120 {
		t.Errorf("local total = %d, want 120", tr.Total())
	}
}

func TestAddTokens_LocalSessionSkipsRemoteWrites(t *testing.T) {
	store := mock.NewStore()
	store.ErrCreate = errors.New("store down")
	tr := NewTracker(store, testUser, "software-engineer")
	_ = tr.EnsureSession(context.Background())

	store.ErrCreate = nil // store recovers, but the session stays local
	tr.AddTokens(context.Background(), 42)

	if tr.Total() != 42 {
		t.Errorf("local total = %d, want 42", tr.Total())
	}
	if store.AddTokensCalls != 0 {
		t.Errorf("remote writes attempted against a local id: %d", store.AddTokensCalls)
	}
}

func TestAddTokens_IgnoresNonPositive(t *testing.T) {
	tr := NewTracker(nil, testUser, "software-engineer")
	tr.AddTokens(context.Background(), 0)
	tr.AddTokens(context.Background(), -5)
	if tr.Total() != 0 {
		t.Errorf("total = %d, want 0", tr.Total())
	}
}

func TestAddTokens_SkippedWhenBreakerOpen(t *testing.T) {
	store := mock.NewStore()
	breaker := resilience.New(resilience.Config{
		Name:         "test",
		MaxFailures:  1,
		ResetTimeout: time.Hour,
	})
	tr := NewTracker(store, testUser, "software-engineer", WithBreaker(breaker))
	if err := tr.EnsureSession(context.Background()); err != nil {
		t.Fatalf("EnsureSession: %v", err)
	}

	// Trip the breaker.
	store.ErrAddTokens = errors.New("write timeout")
	tr.AddTokens(context.Background(), 10)
	if breaker.State() != resilience.StateOpen {
		t.Fatalf("breaker state = %v, want open", breaker.State())
	}

	store.ErrAddTokens = nil
	calls := store.AddTokensCalls
	tr.AddTokens(context.Background(), 20)

	if store.AddTokensCalls != calls {
		t.Error("remote write attempted while the breaker is open")
	}
	if tr.Total() != 30 {
		t.Errorf("local total = %d, want 30", tr.Total())
	}
}

func TestCompleteSession_Once(t *testing.T) {
	store := mock.NewStore()
	tr := NewTracker(store, testUser, "software-engineer")
	if err := tr.EnsureSession(context.Background()); err != nil {
		t.Fatalf("EnsureSession: %v", err)
	}

	tr.CompleteSession(context.Background())
	tr.CompleteSession(context.Background())

	if store.CompleteCalls != 1 {
		t.Errorf("complete calls = %d, want 1", store.CompleteCalls)
	}
	sess, err := store.Get(context.Background(), tr.SessionID())
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if !sess.Completed {
		t.Error("session not marked completed")
	}
}

func TestCompleteSession_NoSessionIsNoOp(t *testing.T) {
	store := mock.NewStore()
	tr := NewTracker(store, testUser, "software-engineer")
	tr.CompleteSession(context.Background())
	if store.CompleteCalls != 0 {
		t.Errorf("complete calls = %d, want 0", store.CompleteCalls)
	}
}

func TestReset_CompletesAndClears(t *testing.T) {
	store := mock.NewStore()
	tr := NewTracker(store, testUser, "software-engineer")
	if err := tr.EnsureSession(context.Background()); err != nil {
		t.Fatalf("EnsureSession: %v", err)
	}
	oldID := tr.SessionID()
	tr.AddTokens(context.Background(), 99)

	tr.Reset(context.Background(), "technical-product-support")

	if tr.SessionID() != "" {
		t.Errorf("session id = %q, want empty", tr.SessionID())
	}
	if tr.Total() != 0 {
		t.Errorf("total = %d, want 0", tr.Total())
	}
	sess, err := store.Get(context.Background(), oldID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if !sess.Completed {
		t.Error("old session not completed on reset")
	}

	// The next session uses the new interview type.
	if err := tr.EnsureSession(context.Background()); err != nil {
		t.Fatalf("EnsureSession: %v", err)
	}
	next, err := store.Get(context.Background(), tr.SessionID())
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if next.InterviewType != "technical-product-support" {
		t.Errorf("interview type = %q", next.InterviewType)
	}
}

func TestTracker_NilStoreRunsLocalOnly(t *testing.T) {
	tr := NewTracker(nil, testUser, "software-engineer")
	if err := tr.EnsureSession(context.Background()); err != nil {
		t.Fatalf("EnsureSession: %v", err)
	}
	if !IsLocal(tr.SessionID()) {
		t.Errorf("session id = %q, want local", tr.SessionID())
	}
	tr.AddTokens(context.Background(), 15)
	if tr.Total() != 15 {
		t.Errorf("total = %d, want 15", tr.Total())
	}
	tr.CompleteSession(context.Background())
}
