package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/confhub/confbot/internal/domain"
	"github.com/confhub/confbot/internal/render"
	store "github.com/confhub/confbot/internal/repository"
	"github.com/confhub/confbot/internal/session"
	"github.com/confhub/confbot/internal/sharing"
	"github.com/confhub/confbot/tests/helpers"
)

type stubSummarizer struct{}

func (stubSummarizer) Summarize(_ context.Context, text string) (string, error) {
	return text, nil
}

type stubNLQuery struct {
	ids []int64
	err error
}

func (q stubNLQuery) Query(context.Context, string) ([]int64, error) {
	return q.ids, q.err
}

func newTestService(t *testing.T, nl NLQuery) (*Service, *store.SQLiteStore) {
	t.Helper()
	db := helpers.NewTestSQLiteStore(t)
	svc := New(db, session.NewStore(), session.NewUpdateCache(),
		render.NewFormatter(db, stubSummarizer{}), nl)
	return svc, db
}

func insertEvent(t *testing.T, db *store.SQLiteStore, name, tags string) int64 {
	t.Helper()
	id, err := db.InsertEvent(context.Background(), &domain.Event{
		Name:     name,
		URL:      "https://example.com/" + name,
		Date:     "3 Sep",
		Time:     "19:00",
		Location: "Hall A",
		Host:     "host",
		Tags:     tags,
	})
	if err != nil {
		t.Fatalf("InsertEvent: %v", err)
	}
	return id
}

func actionEventIDs(t *testing.T, row []domain.Action) []int64 {
	t.Helper()
	ids := make([]int64, 0, len(row))
	for _, a := range row {
		id, ok := domain.ParseDetailPayload(a.Data)
		if !ok {
			t.Fatalf("unexpected payload %q", a.Data)
		}
		ids = append(ids, id)
	}
	return ids
}

func TestBrowseTagThenPageForward(t *testing.T) {
	ctx := context.Background()
	svc, db := newTestService(t, stubNLQuery{})

	var ids []int64
	for i := 1; i <= 7; i++ {
		ids = append(ids, insertEvent(t, db, fmt.Sprintf("party-%d", i), "party,networking"))
	}
	const chatID = int64(900123456)
	if _, err := svc.Start(ctx, chatID, "guest"); err != nil {
		t.Fatalf("Start: %v", err)
	}

	view, err := svc.BrowseTag(ctx, chatID, "party")
	if err != nil {
		t.Fatalf("BrowseTag: %v", err)
	}
	if !strings.Contains(view.Text, "Events found: 7") {
		t.Fatalf("expected full count header, got %q", view.Text)
	}
	if len(view.Keyboard) != 2 {
		t.Fatalf("expected item row and paging row, got %d rows", len(view.Keyboard))
	}
	got := actionEventIDs(t, view.Keyboard[0])
	if len(got) != 5 || got[0] != ids[0] || got[4] != ids[4] {
		t.Fatalf("page 0 should show the first five events, got %v", got)
	}
	nav := view.Keyboard[1]
	if nav[1].Label != "1/2" {
		t.Fatalf("expected 1/2 indicator, got %q", nav[1].Label)
	}

	next, err := svc.Navigate(ctx, nav[2].Data)
	if err != nil {
		t.Fatalf("Navigate: %v", err)
	}
	if !next.Edit {
		t.Fatalf("paging must edit the message in place")
	}
	got = actionEventIDs(t, next.Keyboard[0])
	if len(got) != 2 || got[0] != ids[5] || got[1] != ids[6] {
		t.Fatalf("page 1 should show events 6 and 7, got %v", got)
	}
	if next.Keyboard[1][1].Label != "2/2" {
		t.Fatalf("expected 2/2 indicator, got %q", next.Keyboard[1][1].Label)
	}

	// Next from the last page stays put.
	again, err := svc.Navigate(ctx, next.Keyboard[1][2].Data)
	if err != nil {
		t.Fatalf("Navigate: %v", err)
	}
	if ids := actionEventIDs(t, again.Keyboard[0]); len(ids) != 2 {
		t.Fatalf("expected to stay on last page, got %v", ids)
	}
}

func TestBackToListKeepsOwnedListKeyboard(t *testing.T) {
	ctx := context.Background()
	svc, db := newTestService(t, stubNLQuery{})

	first := insertEvent(t, db, "keynote", "talks")
	second := insertEvent(t, db, "afterparty", "party")
	const chatID = int64(880765432)
	if _, err := svc.Start(ctx, chatID, "carol"); err != nil {
		t.Fatalf("Start: %v", err)
	}
	_, list, err := svc.userList(ctx, chatID, domain.VisibilityPrivate)
	if err != nil {
		t.Fatalf("userList: %v", err)
	}
	for _, id := range []int64{first, second} {
		if _, err := svc.MutateList(ctx, chatID, id, list.ID, true); err != nil {
			t.Fatalf("MutateList: %v", err)
		}
	}

	view, err := svc.MyEvents(ctx, chatID, domain.VisibilityPrivate)
	if err != nil {
		t.Fatalf("MyEvents: %v", err)
	}
	shareRow := view.Keyboard[len(view.Keyboard)-1]
	if shareRow[0].Data != domain.PayloadShareList {
		t.Fatalf("expected share row on own list, got %q", shareRow[0].Data)
	}

	if _, err := svc.EventDetail(ctx, chatID, first); err != nil {
		t.Fatalf("EventDetail: %v", err)
	}
	back, err := svc.BackToList(ctx, chatID)
	if err != nil {
		t.Fatalf("BackToList: %v", err)
	}
	if !back.Edit {
		t.Fatalf("back must edit the detail message in place")
	}
	if len(back.Keyboard) != len(view.Keyboard) {
		t.Fatalf("back lost keyboard rows: got %d, want %d", len(back.Keyboard), len(view.Keyboard))
	}
	restored := back.Keyboard[len(back.Keyboard)-1]
	if restored[0].Data != domain.PayloadShareList {
		t.Fatalf("back dropped the share row, got %q", restored[0].Data)
	}
}

func TestNavigateWithoutSession(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t, stubNLQuery{})

	row := navRow(0, 12345, 7, "", false)
	_, err := svc.Navigate(ctx, row[2].Data)
	if !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestNavigateMalformedToken(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t, stubNLQuery{})

	_, err := svc.Navigate(ctx, "pg:banana")
	if !errors.Is(err, domain.ErrDecodeFailure) {
		t.Fatalf("expected ErrDecodeFailure, got %v", err)
	}
}

func TestStartIsIdempotent(t *testing.T) {
	ctx := context.Background()
	svc, db := newTestService(t, stubNLQuery{})

	const chatID = int64(991234567)
	for i := 0; i < 2; i++ {
		if _, err := svc.Start(ctx, chatID, "alice"); err != nil {
			t.Fatalf("Start: %v", err)
		}
	}

	user, err := db.GetUserByChatID(ctx, chatID)
	if err != nil {
		t.Fatalf("GetUserByChatID: %v", err)
	}
	priv, err := db.GetListByUser(ctx, user.ID, domain.VisibilityPrivate)
	if err != nil {
		t.Fatalf("private list: %v", err)
	}
	pub, err := db.GetListByUser(ctx, user.ID, domain.VisibilityPublic)
	if err != nil {
		t.Fatalf("public list: %v", err)
	}
	if priv.Name != "Priv_alice" || pub.Name != "Pub_alice" {
		t.Fatalf("unexpected list names %q / %q", priv.Name, pub.Name)
	}
	if priv.SecretKey != 4567 {
		t.Fatalf("expected key derived from chat id tail, got %d", priv.SecretKey)
	}
}

func TestDeriveListKey(t *testing.T) {
	cases := []struct {
		chatID int64
		want   int64
	}{
		{991234567, 4567},          // first five digits dropped
		{123456789012, 6789012},    // long ids keep everything past the fifth digit
		{4321, 4321},               // short ids keep all their digits
		{100000, 0},                // all-zero tail
	}
	for _, tc := range cases {
		if got := deriveListKey(tc.chatID); got != tc.want {
			t.Fatalf("deriveListKey(%d) = %d, want %d", tc.chatID, got, tc.want)
		}
	}
}

func TestMutateListRoundTrip(t *testing.T) {
	ctx := context.Background()
	svc, db := newTestService(t, stubNLQuery{})

	evID := insertEvent(t, db, "workshop", "ai")
	const chatID = int64(991234567)
	if _, err := svc.Start(ctx, chatID, "alice"); err != nil {
		t.Fatalf("Start: %v", err)
	}
	user, _ := db.GetUserByChatID(ctx, chatID)
	list, _ := db.GetListByUser(ctx, user.ID, domain.VisibilityPrivate)

	view, err := svc.MutateList(ctx, chatID, evID, list.ID, true)
	if err != nil {
		t.Fatalf("add: %v", err)
	}
	if view.Keyboard[0][0].Data != domain.RemoveFromListPayload(evID, list.ID) {
		t.Fatalf("detail toggle should offer removal after add")
	}

	if _, err := svc.MutateList(ctx, chatID, evID, list.ID, false); err != nil {
		t.Fatalf("remove: %v", err)
	}
	list, _ = db.GetList(ctx, list.ID)
	if list.EventIDs != "" {
		t.Fatalf("expected empty member set after round trip, got %q", list.EventIDs)
	}
}

func TestMutateListRejectsForeignList(t *testing.T) {
	ctx := context.Background()
	svc, db := newTestService(t, stubNLQuery{})

	evID := insertEvent(t, db, "talk", "go")
	if _, err := svc.Start(ctx, 991234567, "alice"); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if _, err := svc.Start(ctx, 887654321, "bob"); err != nil {
		t.Fatalf("Start: %v", err)
	}
	alice, _ := db.GetUserByChatID(ctx, 991234567)
	aliceList, _ := db.GetListByUser(ctx, alice.ID, domain.VisibilityPrivate)

	_, err := svc.MutateList(ctx, 887654321, evID, aliceList.ID, true)
	if !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound for foreign list, got %v", err)
	}
}

func TestShareKeyResolvesOwnList(t *testing.T) {
	ctx := context.Background()
	svc, db := newTestService(t, stubNLQuery{})

	evID := insertEvent(t, db, "afterparty", "party")
	if _, err := svc.Start(ctx, 991234567, "alice"); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if _, err := svc.Start(ctx, 887654321, "bob"); err != nil {
		t.Fatalf("Start: %v", err)
	}
	alice, _ := db.GetUserByChatID(ctx, 991234567)
	list, _ := db.GetListByUser(ctx, alice.ID, domain.VisibilityPrivate)
	if _, err := svc.MutateList(ctx, 991234567, evID, list.ID, true); err != nil {
		t.Fatalf("add: %v", err)
	}

	share, err := svc.ShareKey(ctx, 991234567)
	if err != nil {
		t.Fatalf("ShareKey: %v", err)
	}
	encoded := share.Text[strings.LastIndex(share.Text, "\n")+1:]
	if !sharing.LooksLikeKey(encoded) {
		t.Fatalf("share text should end with an encoded key, got %q", share.Text)
	}

	view, err := svc.ResolveSharedKey(ctx, 887654321, encoded)
	if err != nil {
		t.Fatalf("ResolveSharedKey: %v", err)
	}
	got := actionEventIDs(t, view.Keyboard[0])
	if len(got) != 1 || got[0] != evID {
		t.Fatalf("shared list should show alice's event, got %v", got)
	}
	star := view.Keyboard[len(view.Keyboard)-1][0]
	if star.Data != domain.FavoritePayload(list.ID) {
		t.Fatalf("expected favorite action for list %d, got %q", list.ID, star.Data)
	}
}

func TestResolveSharedKeyFailuresAreUniform(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t, stubNLQuery{})

	_, malformedErr := svc.ResolveSharedKey(ctx, 1, "PBxyz")
	if !errors.Is(malformedErr, domain.ErrDecodeFailure) {
		t.Fatalf("expected ErrDecodeFailure, got %v", malformedErr)
	}

	_, missErr := svc.ResolveSharedKey(ctx, 1, sharing.EncodeKey(424242))
	if !errors.Is(missErr, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", missErr)
	}
}

func TestToggleFavoriteTwiceRestores(t *testing.T) {
	ctx := context.Background()
	svc, db := newTestService(t, stubNLQuery{})

	if _, err := svc.Start(ctx, 991234567, "alice"); err != nil {
		t.Fatalf("Start: %v", err)
	}
	user, _ := db.GetUserByChatID(ctx, 991234567)
	if err := db.SetFavoriteListIDs(ctx, user.ID, "12"); err != nil {
		t.Fatalf("seed favorites: %v", err)
	}

	// List id 1 must not be mistaken for a member because "12" is present.
	if _, err := svc.ToggleFavorite(ctx, 991234567, 1); err != nil {
		t.Fatalf("toggle on: %v", err)
	}
	user, _ = db.GetUserByChatID(ctx, 991234567)
	if user.FavoriteListIDs != "12,1" {
		t.Fatalf("expected 12,1 after first toggle, got %q", user.FavoriteListIDs)
	}

	if _, err := svc.ToggleFavorite(ctx, 991234567, 1); err != nil {
		t.Fatalf("toggle off: %v", err)
	}
	user, _ = db.GetUserByChatID(ctx, 991234567)
	if user.FavoriteListIDs != "12" {
		t.Fatalf("expected original set after second toggle, got %q", user.FavoriteListIDs)
	}
}

func TestSearchUsesNLQuery(t *testing.T) {
	ctx := context.Background()

	svcFail, _ := newTestService(t, stubNLQuery{err: fmt.Errorf("model busy: %w", domain.ErrUpstream)})
	_, err := svcFail.Search(ctx, 1, "what is on tonight")
	if !errors.Is(err, domain.ErrUpstream) {
		t.Fatalf("expected ErrUpstream, got %v", err)
	}

	svc, db := newTestService(t, stubNLQuery{})
	a := insertEvent(t, db, "keynote", "main")
	b := insertEvent(t, db, "closing", "main")
	svc.nlquery = stubNLQuery{ids: []int64{b, a}}

	view, err := svc.Search(ctx, 1, "what is on tonight")
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	got := actionEventIDs(t, view.Keyboard[0])
	if len(got) != 2 || got[0] != b || got[1] != a {
		t.Fatalf("expected resolver order preserved, got %v", got)
	}
}

func TestShowUpdatedEventsUsesLatestCycleOnly(t *testing.T) {
	ctx := context.Background()
	svc, db := newTestService(t, stubNLQuery{})

	a := insertEvent(t, db, "talk-a", "go")
	b := insertEvent(t, db, "talk-b", "go")

	svc.updates.Put(7, []int64{a})
	svc.updates.Put(7, []int64{b})

	view, err := svc.ShowUpdatedEvents(ctx, 7)
	if err != nil {
		t.Fatalf("ShowUpdatedEvents: %v", err)
	}
	got := actionEventIDs(t, view.Keyboard[0])
	if len(got) != 1 || got[0] != b {
		t.Fatalf("expected only the latest cycle's match, got %v", got)
	}

	none, err := svc.ShowUpdatedEvents(ctx, 8)
	if err != nil {
		t.Fatalf("ShowUpdatedEvents: %v", err)
	}
	if len(none.Keyboard) != 0 {
		t.Fatalf("expected plain message for users with no matches")
	}
}

func TestBrowseTagEmptyResult(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t, stubNLQuery{})

	view, err := svc.BrowseTag(ctx, 1, "quantum-knitting")
	if err != nil {
		t.Fatalf("BrowseTag: %v", err)
	}
	if view.Text != noResultsText {
		t.Fatalf("expected apology text, got %q", view.Text)
	}
}
