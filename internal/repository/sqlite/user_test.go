package sqlite

import (
	"context"
	"errors"
	"testing"

	"github.com/sakif/repo-rater/internal/apperror"
	"github.com/sakif/repo-rater/internal/model"
)

func createTestUser(t *testing.T, db *DB, externalID, handle string) *model.User {
	t.Helper()
	user := &model.User{
		ExternalID: externalID,
		Name:       handle + " name",
		Handle:     handle,
		Image:      "https://avatars.githubusercontent.com/u/" + externalID,
	}
	if err := db.Upsert(context.Background(), user); err != nil {
		t.Fatalf("failed to create test user: %v", err)
	}
	return user
}

// =========================================================================
// UPSERT
// =========================================================================

func TestUserUpsert_NewUser(t *testing.T) {
	db := newTestDB(t)

	user := &model.User{
		ExternalID: "55555",
		Name:       "New User",
		Handle:     "new_user",
		Image:      "https://example.com/new.png",
	}
	if err := db.Upsert(context.Background(), user); err != nil {
		t.Fatalf("Upsert() (new) error = %v", err)
	}

	if user.ID == "" {
		t.Error("Upsert() did not set user.ID for new user")
	}
	if user.CreatedAt.IsZero() {
		t.Error("Upsert() did not set user.CreatedAt for new user")
	}
	if user.Blocked {
		t.Error("new user should not be blocked")
	}

	found, err := db.GetByExternalID(context.Background(), "55555")
	if err != nil {
		t.Fatalf("GetByExternalID() after Upsert: %v", err)
	}
	if found.Handle != "new_user" {
		t.Errorf("Handle = %q, want %q", found.Handle, "new_user")
	}
}

func TestUserUpsert_ExistingUser_UpdatesProfile(t *testing.T) {
	db := newTestDB(t)

	first := createTestUser(t, db, "66666", "original_login")
	originalID := first.ID

	second := &model.User{
		ExternalID: "66666",
		Name:       "Updated Name",
		Handle:     "updated_login",
		Image:      "https://example.com/new.png",
	}
	if err := db.Upsert(context.Background(), second); err != nil {
		t.Fatalf("Upsert() second sign-in: %v", err)
	}

	if second.ID != originalID {
		t.Errorf("Upsert() changed user ID: got %q, want %q", second.ID, originalID)
	}

	found, err := db.GetByExternalID(context.Background(), "66666")
	if err != nil {
		t.Fatalf("GetByExternalID(): %v", err)
	}
	if found.Handle != "updated_login" {
		t.Errorf("Handle after upsert = %q, want %q", found.Handle, "updated_login")
	}
	if found.Name != "Updated Name" {
		t.Errorf("Name after upsert = %q, want %q", found.Name, "Updated Name")
	}
	if found.Image != "https://example.com/new.png" {
		t.Errorf("Image after upsert = %q", found.Image)
	}
}

func TestUserUpsert_DoesNotChangeCreatedAt(t *testing.T) {
	db := newTestDB(t)

	usr := createTestUser(t, db, "77777", "timecheck")
	originalCreatedAt := usr.CreatedAt

	usr2 := &model.User{ExternalID: "77777", Handle: "timecheck_updated"}
	if err := db.Upsert(context.Background(), usr2); err != nil {
		t.Fatalf("Upsert() second: %v", err)
	}

	if !usr2.CreatedAt.Equal(originalCreatedAt) {
		t.Errorf("Upsert() changed CreatedAt: got %v, want %v", usr2.CreatedAt, originalCreatedAt)
	}
}

func TestUserUpsert_KeepsBlockState(t *testing.T) {
	db := newTestDB(t)
	createTestUser(t, db, "88888", "spammer")

	if err := db.Block(context.Background(), "88888", "Automatic block"); err != nil {
		t.Fatalf("Block(): %v", err)
	}

	again := &model.User{ExternalID: "88888", Handle: "spammer_renamed"}
	if err := db.Upsert(context.Background(), again); err != nil {
		t.Fatalf("Upsert(): %v", err)
	}
	if !again.Blocked {
		t.Error("Upsert() should report the stored block state")
	}
	if again.BlockReason != "Automatic block" {
		t.Errorf("BlockReason = %q, want %q", again.BlockReason, "Automatic block")
	}
}

// =========================================================================
// GET / BLOCK
// =========================================================================

func TestUserGetByExternalID_NotFound(t *testing.T) {
	db := newTestDB(t)

	_, err := db.GetByExternalID(context.Background(), "999999999")
	if err == nil {
		t.Fatal("GetByExternalID() should have returned an error for unknown id")
	}
	if !errors.Is(err, apperror.ErrNotFound) {
		t.Errorf("GetByExternalID() error = %v, want ErrNotFound", err)
	}
}

func TestUserBlock(t *testing.T) {
	db := newTestDB(t)
	createTestUser(t, db, "4242", "troll")

	if err := db.Block(context.Background(), "4242", "blacklisted words"); err != nil {
		t.Fatalf("Block() error = %v", err)
	}

	found, err := db.GetByExternalID(context.Background(), "4242")
	if err != nil {
		t.Fatalf("GetByExternalID(): %v", err)
	}
	if !found.Blocked {
		t.Error("user should be blocked")
	}
	if found.BlockReason != "blacklisted words" {
		t.Errorf("BlockReason = %q, want %q", found.BlockReason, "blacklisted words")
	}
}

func TestUserBlock_NotFound(t *testing.T) {
	db := newTestDB(t)

	err := db.Block(context.Background(), "nobody", "reason")
	if !errors.Is(err, apperror.ErrNotFound) {
		t.Errorf("Block() error = %v, want ErrNotFound", err)
	}
}
