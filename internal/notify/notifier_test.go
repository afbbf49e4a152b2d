package notify

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/confhub/confbot/internal/domain"
	store "github.com/confhub/confbot/internal/repository"
	"github.com/confhub/confbot/internal/session"
	"github.com/confhub/confbot/tests/helpers"
)

func newTestNotifier(t *testing.T) (*Notifier, *store.SQLiteStore, *session.UpdateCache, *helpers.FakeSender) {
	t.Helper()
	db := helpers.NewTestSQLiteStore(t)
	cache := session.NewUpdateCache()
	sender := helpers.NewFakeSender()
	return New(db, cache, sender, 5*time.Hour, 4*time.Hour), db, cache, sender
}

func registerUser(t *testing.T, db *store.SQLiteStore, chatID int64, username string) *domain.User {
	t.Helper()
	u, err := db.UpsertUser(context.Background(), chatID, username)
	if err != nil {
		t.Fatalf("UpsertUser: %v", err)
	}
	return u
}

func createPrivateList(t *testing.T, db *store.SQLiteStore, userID int64, eventIDs string) int64 {
	t.Helper()
	id, err := db.CreateList(context.Background(), &domain.EventList{
		UserID:     userID,
		Visibility: domain.VisibilityPrivate,
		Name:       "Priv_test",
		SecretKey:  userID,
		EventIDs:   eventIDs,
	})
	if err != nil {
		t.Fatalf("CreateList: %v", err)
	}
	return id
}

func insertUpdatedEvent(t *testing.T, db *store.SQLiteStore, name string, updatedAt time.Time) int64 {
	t.Helper()
	id, err := db.InsertEvent(context.Background(), &domain.Event{
		Name:       name,
		URL:        "https://example.com/" + name,
		UpdatedAt:  &updatedAt,
		UpdateType: "update:description",
	})
	if err != nil {
		t.Fatalf("InsertEvent: %v", err)
	}
	return id
}

func TestNewEventsCycleBroadcastsWithFailureIsolation(t *testing.T) {
	ctx := context.Background()
	n, db, _, sender := newTestNotifier(t)

	registerUser(t, db, 101, "alice")
	registerUser(t, db, 102, "bob")
	registerUser(t, db, 103, "carol")
	sender.FailFor(102, errors.New("bot blocked by user"))

	if _, err := db.InsertEvent(ctx, &domain.Event{Name: "fresh", URL: "https://example.com/fresh"}); err != nil {
		t.Fatalf("InsertEvent: %v", err)
	}

	if err := n.NewEventsCycle(ctx); err != nil {
		t.Fatalf("NewEventsCycle: %v", err)
	}

	// Bob's failure must not stop alice and carol from being notified.
	if got := len(sender.SentTo(101)); got != 1 {
		t.Fatalf("alice should get one broadcast, got %d", got)
	}
	if got := len(sender.SentTo(103)); got != 1 {
		t.Fatalf("carol should get one broadcast, got %d", got)
	}
	if got := len(sender.SentTo(102)); got != 0 {
		t.Fatalf("bob's send failed, got %d deliveries", got)
	}

	msg := sender.SentTo(101)[0]
	if msg.Keyboard[0][0].Data != domain.PayloadViewNewEvents {
		t.Fatalf("broadcast must carry the drill-down action, got %q", msg.Keyboard[0][0].Data)
	}
}

func TestNewEventsCycleQuietWhenNothingNew(t *testing.T) {
	ctx := context.Background()
	n, db, _, sender := newTestNotifier(t)

	registerUser(t, db, 101, "alice")
	old := time.Now().Add(-48 * time.Hour)
	if _, err := db.InsertEvent(ctx, &domain.Event{Name: "stale", URL: "https://example.com/stale", AddedAt: old}); err != nil {
		t.Fatalf("InsertEvent: %v", err)
	}

	if err := n.NewEventsCycle(ctx); err != nil {
		t.Fatalf("NewEventsCycle: %v", err)
	}
	if got := len(sender.Sent()); got != 0 {
		t.Fatalf("expected silence, got %d messages", got)
	}
}

func TestUpdatedEventsCycleTargetsListOwners(t *testing.T) {
	ctx := context.Background()
	n, db, cache, sender := newTestNotifier(t)

	alice := registerUser(t, db, 101, "alice")
	bob := registerUser(t, db, 102, "bob")
	carol := registerUser(t, db, 103, "carol")

	changed := insertUpdatedEvent(t, db, "venue-moved", time.Now())
	quiet, err := db.InsertEvent(ctx, &domain.Event{Name: "quiet", URL: "https://example.com/quiet"})
	if err != nil {
		t.Fatalf("InsertEvent: %v", err)
	}

	// Both alice and bob track the changed event; carol does not.
	createPrivateList(t, db, alice.ID, domain.IDSet{changed, quiet}.String())
	createPrivateList(t, db, bob.ID, domain.IDSet{changed}.String())
	createPrivateList(t, db, carol.ID, domain.IDSet{quiet}.String())

	if err := n.UpdatedEventsCycle(ctx); err != nil {
		t.Fatalf("UpdatedEventsCycle: %v", err)
	}

	for _, chat := range []int64{101, 102} {
		msgs := sender.SentTo(chat)
		if len(msgs) != 1 {
			t.Fatalf("chat %d should get exactly one notification, got %d", chat, len(msgs))
		}
		if msgs[0].Keyboard[0][0].Data != domain.PayloadViewUpdates {
			t.Fatalf("notification must carry the drill-down action")
		}
		stash, err := cache.Get(chat)
		if err != nil {
			t.Fatalf("cache for chat %d: %v", chat, err)
		}
		if len(stash) != 1 || stash[0] != changed {
			t.Fatalf("chat %d stash should hold only the changed id, got %v", chat, stash)
		}
	}
	if got := len(sender.SentTo(103)); got != 0 {
		t.Fatalf("carol has no changed events, got %d notifications", got)
	}
}

func TestUpdatedEventsCycleOverwritesStash(t *testing.T) {
	ctx := context.Background()
	n, db, cache, sender := newTestNotifier(t)

	alice := registerUser(t, db, 101, "alice")
	first := insertUpdatedEvent(t, db, "first-change", time.Now())
	listID := createPrivateList(t, db, alice.ID, domain.IDSet{first}.String())

	if err := n.UpdatedEventsCycle(ctx); err != nil {
		t.Fatalf("cycle 1: %v", err)
	}

	// Next cycle: the list now tracks a different freshly-updated event;
	// the first one fell out of the window.
	second := insertUpdatedEvent(t, db, "second-change", time.Now())
	if err := db.SetListEventIDs(ctx, listID, domain.IDSet{second}.String()); err != nil {
		t.Fatalf("SetListEventIDs: %v", err)
	}
	if err := n.UpdatedEventsCycle(ctx); err != nil {
		t.Fatalf("cycle 2: %v", err)
	}

	stash, err := cache.Get(101)
	if err != nil {
		t.Fatalf("cache: %v", err)
	}
	if len(stash) != 1 || stash[0] != second {
		t.Fatalf("stash must hold only the latest cycle's matches, got %v", stash)
	}
	if got := len(sender.SentTo(101)); got != 2 {
		t.Fatalf("expected one notification per cycle, got %d", got)
	}
}

func TestUpdatedEventsCycleSendFailureIsolated(t *testing.T) {
	ctx := context.Background()
	n, db, _, sender := newTestNotifier(t)

	alice := registerUser(t, db, 101, "alice")
	bob := registerUser(t, db, 102, "bob")
	sender.FailFor(101, errors.New("deactivated account"))

	changed := insertUpdatedEvent(t, db, "changed", time.Now())
	createPrivateList(t, db, alice.ID, domain.IDSet{changed}.String())
	createPrivateList(t, db, bob.ID, domain.IDSet{changed}.String())

	if err := n.UpdatedEventsCycle(ctx); err != nil {
		t.Fatalf("UpdatedEventsCycle: %v", err)
	}
	if got := len(sender.SentTo(102)); got != 1 {
		t.Fatalf("bob should still be notified, got %d", got)
	}
}
