package sqlite

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/sakif/repo-rater/internal/apperror"
	"github.com/sakif/repo-rater/internal/model"
	"github.com/sakif/repo-rater/internal/repository"
)

// newTestDB creates a fresh in-memory database; t.Cleanup closes it.
func newTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := New(":memory:")
	if err != nil {
		t.Fatalf("failed to create test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func createTestCard(t *testing.T, db *DB, url string, userID *string, postedAt time.Time) *model.Card {
	t.Helper()
	card := &model.Card{
		URL:      url,
		UserID:   userID,
		Comment:  "nice",
		Rating:   4,
		PostedAt: postedAt,
	}
	if err := db.Create(context.Background(), card); err != nil {
		t.Fatalf("failed to create test card: %v", err)
	}
	return card
}

func TestCardCreate(t *testing.T) {
	db := newTestDB(t)

	card := &model.Card{
		URL:       "https://github.com/foo/bar",
		Comment:   "Great repo!",
		Rating:    5,
		Anonymous: true,
	}
	if err := db.Create(context.Background(), card); err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	if card.ID == "" {
		t.Error("Create() did not set card.ID")
	}
	if card.PostedAt.IsZero() {
		t.Error("Create() did not default card.PostedAt")
	}

	found, err := db.FindByURL(context.Background(), "https://github.com/foo/bar")
	if err != nil {
		t.Fatalf("FindByURL() error = %v", err)
	}
	if found.ID != card.ID {
		t.Errorf("ID = %q, want %q", found.ID, card.ID)
	}
	if found.Comment != "Great repo!" || found.Rating != 5 || !found.Anonymous {
		t.Errorf("stored card = %+v, fields not persisted", found)
	}
	if found.UserID != nil {
		t.Errorf("UserID = %v, want nil", *found.UserID)
	}
}

func TestCardCreate_KeepsPostedAt(t *testing.T) {
	db := newTestDB(t)
	at := time.Date(2026, 1, 2, 3, 4, 5, 6, time.UTC)

	card := createTestCard(t, db, "https://github.com/a/b", nil, at)

	found, err := db.FindByURL(context.Background(), card.URL)
	if err != nil {
		t.Fatalf("FindByURL(): %v", err)
	}
	if !found.PostedAt.Equal(at) {
		t.Errorf("PostedAt = %v, want %v", found.PostedAt, at)
	}
}

func TestCardFindByURL_NotFound(t *testing.T) {
	db := newTestDB(t)

	_, err := db.FindByURL(context.Background(), "https://github.com/none/none")
	if !errors.Is(err, apperror.ErrNotFound) {
		t.Errorf("FindByURL() error = %v, want ErrNotFound", err)
	}
}

func TestCardFindByURL_ExactMatchOnly(t *testing.T) {
	db := newTestDB(t)
	createTestCard(t, db, "https://github.com/foo/bar", nil, time.Now())

	_, err := db.FindByURL(context.Background(), "https://github.com/foo/bar/")
	if !errors.Is(err, apperror.ErrNotFound) {
		t.Errorf("FindByURL(trailing slash) error = %v, want ErrNotFound", err)
	}
}

func TestCardFindPostedSince(t *testing.T) {
	db := newTestDB(t)
	user := createTestUser(t, db, "1", "poster")
	now := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)

	createTestCard(t, db, "https://github.com/a/old", &user.ID, now.Add(-2*time.Minute))

	_, err := db.FindPostedSince(context.Background(), user.ID, now.Add(-time.Minute))
	if !errors.Is(err, apperror.ErrNotFound) {
		t.Fatalf("FindPostedSince() with only old cards: error = %v, want ErrNotFound", err)
	}

	recent := createTestCard(t, db, "https://github.com/a/new", &user.ID, now.Add(-30*time.Second))

	found, err := db.FindPostedSince(context.Background(), user.ID, now.Add(-time.Minute))
	if err != nil {
		t.Fatalf("FindPostedSince() error = %v", err)
	}
	if found.ID != recent.ID {
		t.Errorf("FindPostedSince() = %q, want %q", found.ID, recent.ID)
	}
}

func TestCardFindPostedSince_BoundaryIsExclusive(t *testing.T) {
	db := newTestDB(t)
	user := createTestUser(t, db, "2", "edge")
	since := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)

	createTestCard(t, db, "https://github.com/a/edge", &user.ID, since)

	_, err := db.FindPostedSince(context.Background(), user.ID, since)
	if !errors.Is(err, apperror.ErrNotFound) {
		t.Errorf("card posted exactly at since must not count: error = %v", err)
	}
}

func TestCardFindPostedSince_OtherUser(t *testing.T) {
	db := newTestDB(t)
	alice := createTestUser(t, db, "10", "alice")
	bob := createTestUser(t, db, "11", "bob")

	createTestCard(t, db, "https://github.com/a/x", &alice.ID, time.Now())

	_, err := db.FindPostedSince(context.Background(), bob.ID, time.Now().Add(-time.Minute))
	if !errors.Is(err, apperror.ErrNotFound) {
		t.Errorf("FindPostedSince(bob) error = %v, want ErrNotFound", err)
	}
}

func TestCardList_NewestFirstWithUsers(t *testing.T) {
	db := newTestDB(t)
	user := createTestUser(t, db, "3", "lister")
	base := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)

	createTestCard(t, db, "https://github.com/a/1", &user.ID, base)
	createTestCard(t, db, "https://github.com/a/2", nil, base.Add(time.Minute))
	createTestCard(t, db, "https://github.com/a/3", &user.ID, base.Add(2*time.Minute))

	cards, err := db.List(context.Background(), repository.ListOptions{})
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(cards) != 3 {
		t.Fatalf("List() returned %d cards, want 3", len(cards))
	}

	wantOrder := []string{"https://github.com/a/3", "https://github.com/a/2", "https://github.com/a/1"}
	for i, want := range wantOrder {
		if cards[i].URL != want {
			t.Errorf("cards[%d].URL = %q, want %q", i, cards[i].URL, want)
		}
	}

	if cards[0].User == nil || cards[0].User.Handle != "lister" {
		t.Errorf("cards[0].User = %+v, want resolved lister", cards[0].User)
	}
	if cards[1].User != nil {
		t.Errorf("cards[1].User = %+v, want nil for anonymous visitor", cards[1].User)
	}
}

func TestCardList_Pagination(t *testing.T) {
	db := newTestDB(t)
	base := time.Now()

	for i := 0; i < 5; i++ {
		createTestCard(t, db, "https://github.com/p/"+string(rune('a'+i)), nil, base.Add(time.Duration(i)*time.Second))
	}

	page, err := db.List(context.Background(), repository.ListOptions{Limit: 2, Offset: 4})
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(page) != 1 {
		t.Errorf("last page: got %d items, want 1", len(page))
	}

	all, err := db.List(context.Background(), repository.ListOptions{})
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(all) != 5 {
		t.Errorf("unbounded List() returned %d, want 5", len(all))
	}
}

func TestCardDuplicateURL_NotEnforcedBySchema(t *testing.T) {
	db := newTestDB(t)

	createTestCard(t, db, "https://github.com/dup/dup", nil, time.Now())
	dup := &model.Card{URL: "https://github.com/dup/dup", Comment: "again", Rating: 1}
	if err := db.Create(context.Background(), dup); err != nil {
		t.Fatalf("second Create() with same URL should succeed at the store level: %v", err)
	}
}
