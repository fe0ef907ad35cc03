package workflow

import (
	"errors"
	"testing"
	"time"

	"ecohunt-be/models"
)

func newTestFlow(t *testing.T, userID string) *Flow {
	t.Helper()
	cfg := testConfig(models.SeverityLow, &stubVerifier{})
	cfg.ActingUserID = userID
	flow, err := New(cfg)
	if err != nil {
		t.Fatal(err)
	}
	return flow
}

func TestManagerRoundTrip(t *testing.T) {
	m := NewManager(DefaultSessionTTL)
	flow := newTestFlow(t, "alice")

	id, err := m.Add(flow)
	if err != nil {
		t.Fatal(err)
	}
	if id == "" {
		t.Fatal("expected a non-empty session ID")
	}

	got, err := m.Get(id, "alice")
	if err != nil {
		t.Fatal(err)
	}
	if got != flow {
		t.Fatal("expected the same flow back")
	}

	m.Remove(id)
	if _, err := m.Get(id, "alice"); !errors.Is(err, ErrSessionNotFound) {
		t.Fatalf("expected ErrSessionNotFound after removal, got %v", err)
	}
}

func TestManagerEnforcesOwnership(t *testing.T) {
	m := NewManager(DefaultSessionTTL)
	id, err := m.Add(newTestFlow(t, "alice"))
	if err != nil {
		t.Fatal(err)
	}

	if _, err := m.Get(id, "mallory"); !errors.Is(err, ErrSessionNotFound) {
		t.Fatalf("expected ErrSessionNotFound for another user, got %v", err)
	}
	// The owner is unaffected
	if _, err := m.Get(id, "alice"); err != nil {
		t.Fatal(err)
	}
}

func TestManagerExpiresSessions(t *testing.T) {
	m := NewManager(10 * time.Millisecond)
	id, err := m.Add(newTestFlow(t, "alice"))
	if err != nil {
		t.Fatal(err)
	}

	time.Sleep(30 * time.Millisecond)
	if _, err := m.Get(id, "alice"); !errors.Is(err, ErrSessionNotFound) {
		t.Fatalf("expected ErrSessionNotFound after expiry, got %v", err)
	}
}

func TestManagerIssuesDistinctIDs(t *testing.T) {
	m := NewManager(DefaultSessionTTL)
	seen := make(map[string]bool)
	for i := 0; i < 50; i++ {
		id, err := m.Add(newTestFlow(t, "alice"))
		if err != nil {
			t.Fatal(err)
		}
		if seen[id] {
			t.Fatalf("duplicate session ID %s", id)
		}
		seen[id] = true
	}
}
