package sqlite

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/nextlevelbuilder/hrdesk/internal/identity"
	"github.com/nextlevelbuilder/hrdesk/internal/session"
)

func openTest(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "hrdesk.db"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

var testKey = session.Key{TenantID: "acme", SenderID: "27820000001"}

// --- session tests ---

func TestLoadMissingSession(t *testing.T) {
	s := openTest(t)
	st, err := s.Load(context.Background(), testKey)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if st.Version != 0 || st.Flow != session.FlowNone || st.PendingFeedback != nil {
		t.Fatalf("expected empty state, got %+v", st)
	}
}

func TestSaveRoundTripAndConflict(t *testing.T) {
	s := openTest(t)
	ctx := context.Background()

	st := &session.State{}
	st.SetFlow(session.FlowAwaitingHRQuery)
	st.Urgency = "urgent"
	if err := s.Save(ctx, testKey, st); err != nil {
		t.Fatalf("first Save: %v", err)
	}
	if st.Version != 1 {
		t.Fatalf("Version = %d, want 1", st.Version)
	}

	a, _ := s.Load(ctx, testKey)
	b, _ := s.Load(ctx, testKey)
	if a.Flow != session.FlowAwaitingHRQuery || a.Urgency != "urgent" {
		t.Fatalf("loaded %+v", a)
	}

	a.ClearFlow()
	if err := s.Save(ctx, testKey, a); err != nil {
		t.Fatalf("Save a: %v", err)
	}
	b.PendingFeedback = &session.PendingFeedback{Query: "q"}
	if err := s.Save(ctx, testKey, b); !errors.Is(err, session.ErrConflict) {
		t.Fatalf("stale Save err = %v, want ErrConflict", err)
	}

	// A second insert for the same key loses too.
	if err := s.Save(ctx, testKey, &session.State{}); !errors.Is(err, session.ErrConflict) {
		t.Fatalf("duplicate insert err = %v, want ErrConflict", err)
	}
}

// --- processed log tests ---

func TestProcessedAndPrune(t *testing.T) {
	s := openTest(t)
	ctx := context.Background()
	old := time.Now().Add(-48 * time.Hour)

	if err := s.MarkProcessed(ctx, testKey, "wamid.1", old); err != nil {
		t.Fatalf("MarkProcessed: %v", err)
	}
	if err := s.MarkProcessed(ctx, testKey, "wamid.1", time.Now()); err != nil {
		t.Fatalf("repeat MarkProcessed: %v", err)
	}
	if err := s.MarkProcessed(ctx, testKey, "wamid.2", time.Now()); err != nil {
		t.Fatalf("MarkProcessed: %v", err)
	}

	ok, err := s.IsProcessed(ctx, testKey, "wamid.1")
	if err != nil || !ok {
		t.Fatalf("IsProcessed = %v, %v", ok, err)
	}
	other := session.Key{TenantID: "other", SenderID: testKey.SenderID}
	if ok, _ := s.IsProcessed(ctx, other, "wamid.1"); ok {
		t.Fatal("processed ids must be scoped by tenant")
	}

	n, err := s.PruneProcessed(ctx, time.Now().Add(-24*time.Hour))
	if err != nil || n != 1 {
		t.Fatalf("PruneProcessed = %d, %v; want 1", n, err)
	}
	if ok, _ := s.IsProcessed(ctx, testKey, "wamid.2"); !ok {
		t.Fatal("recent id was pruned")
	}
}

func TestPruneSessions(t *testing.T) {
	s := openTest(t)
	ctx := context.Background()
	s.now = func() time.Time { return time.Now().Add(-100 * 24 * time.Hour) }
	if err := s.Save(ctx, testKey, &session.State{}); err != nil {
		t.Fatalf("Save: %v", err)
	}
	s.now = time.Now
	n, err := s.PruneSessions(ctx, time.Now().Add(-90*24*time.Hour))
	if err != nil || n != 1 {
		t.Fatalf("PruneSessions = %d, %v; want 1", n, err)
	}
}

// --- employee tests ---

func TestSyncEmployees(t *testing.T) {
	s := openTest(t)
	ctx := context.Background()

	alice := identity.Identity{SenderID: "27820000001", TenantID: "acme", Role: "engineer", DisplayName: "Alice"}
	bob := identity.Identity{SenderID: "27820000002", TenantID: "acme", Role: "manager", DisplayName: "Bob"}

	if _, _, err := s.SyncEmployees(ctx, []identity.Identity{alice, bob}); err != nil {
		t.Fatalf("SyncEmployees: %v", err)
	}
	got, err := s.Resolve(ctx, bob.SenderID)
	if err != nil || got.DisplayName != "Bob" || got.TenantID != "acme" {
		t.Fatalf("Resolve = %+v, %v", got, err)
	}

	up, gone, err := s.SyncEmployees(ctx, []identity.Identity{alice})
	if err != nil || up != 1 || gone != 1 {
		t.Fatalf("SyncEmployees = %d, %d, %v; want 1, 1", up, gone, err)
	}
	if _, err := s.Resolve(ctx, bob.SenderID); !errors.Is(err, identity.ErrNotFound) {
		t.Fatalf("deactivated employee resolved: %v", err)
	}
}

func TestLogQuery(t *testing.T) {
	s := openTest(t)
	err := s.LogQuery(context.Background(), session.QueryRecord{Key: testKey, Query: "leave policy", Answer: "20 days", At: time.Now()})
	if err != nil {
		t.Fatalf("LogQuery: %v", err)
	}
	var n int
	if err := s.db.QueryRow(`SELECT COUNT(1) FROM query_log`).Scan(&n); err != nil || n != 1 {
		t.Fatalf("query_log rows = %d, %v", n, err)
	}
}
