package users

import (
	"context"
	"errors"
	"fmt"
	"testing"

	sqlite "github.com/glebarez/sqlite"
	"github.com/sevasetu/portal/internal/identity"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

func openTestDatabase(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())), &gorm.Config{})
	if err != nil {
		t.Fatalf("failed to open sqlite: %v", err)
	}
	if err := db.AutoMigrate(&User{}); err != nil {
		t.Fatalf("failed to migrate users schema: %v", err)
	}
	return db
}

func newTestService(t *testing.T, db *gorm.DB) *Service {
	t.Helper()
	counter := 0
	service, err := NewService(ServiceConfig{
		Database: db,
		IDProvider: func() string {
			counter++
			return fmt.Sprintf("generated-id-%d", counter)
		},
	})
	if err != nil {
		t.Fatalf("failed to create service: %v", err)
	}
	return service
}

func TestMirrorSessionCreatesRowOnFirstLogin(t *testing.T) {
	service := newTestService(t, openTestDatabase(t))

	session := identity.Session{
		AccessToken:  "access-1",
		RefreshToken: "refresh-1",
		User: identity.Profile{
			ID:    "provider-123",
			Email: "asha@example.com",
			UserMetadata: identity.Metadata{
				FullName:  "Asha Verma",
				AvatarURL: "https://example.com/avatar.png",
			},
		},
	}

	user, err := service.MirrorSession(context.Background(), ProviderGoogle, session)
	if err != nil {
		t.Fatalf("mirror failed: %v", err)
	}
	if user.Name != "Asha Verma" {
		t.Fatalf("expected full name to win, got %q", user.Name)
	}
	if user.ProviderID != "provider-123" {
		t.Fatalf("unexpected provider id %q", user.ProviderID)
	}
	if user.Provider != ProviderGoogle {
		t.Fatalf("unexpected provider %q", user.Provider)
	}
	if user.AvatarURL != "https://example.com/avatar.png" {
		t.Fatalf("unexpected avatar %q", user.AvatarURL)
	}
}

func TestMirrorSessionRepeatLoginKeepsSingleRow(t *testing.T) {
	db := openTestDatabase(t)
	service := newTestService(t, db)

	session := identity.Session{
		AccessToken: "access-1",
		User: identity.Profile{
			ID:    "provider-123",
			Email: "asha@example.com",
		},
	}

	first, err := service.MirrorSession(context.Background(), ProviderGoogle, session)
	if err != nil {
		t.Fatalf("first mirror failed: %v", err)
	}

	// Repeat login with different tokens must neither duplicate nor update.
	session.AccessToken = "access-2"
	session.User.UserMetadata.FullName = "Changed Name"
	second, err := service.MirrorSession(context.Background(), ProviderGoogle, session)
	if err != nil {
		t.Fatalf("second mirror failed: %v", err)
	}
	if second.ID != first.ID {
		t.Fatalf("expected stable row id, got %q then %q", first.ID, second.ID)
	}
	if second.AccessToken != "access-1" {
		t.Fatalf("expected row to keep original tokens, got %q", second.AccessToken)
	}

	var count int64
	if err := db.Model(&User{}).Where("p_id = ?", "provider-123").Count(&count).Error; err != nil {
		t.Fatalf("count failed: %v", err)
	}
	if count != 1 {
		t.Fatalf("expected exactly one mirrored row, got %d", count)
	}
}

func TestDisplayNamePriority(t *testing.T) {
	cases := []struct {
		name    string
		profile identity.Profile
		want    string
	}{
		{
			name: "full name wins",
			profile: identity.Profile{
				ID:           "id-1",
				Email:        "asha@example.com",
				UserMetadata: identity.Metadata{FullName: "Asha Verma"},
			},
			want: "Asha Verma",
		},
		{
			name:    "email local part when no full name",
			profile: identity.Profile{ID: "id-2", Email: "ravi.kumar@example.com"},
			want:    "ravi.kumar",
		},
		{
			name:    "guest label when nothing available",
			profile: identity.Profile{ID: "id-3"},
			want:    "Guest user-id-3",
		},
	}

	for _, testCase := range cases {
		t.Run(testCase.name, func(t *testing.T) {
			if got := displayName(testCase.profile); got != testCase.want {
				t.Fatalf("expected %q, got %q", testCase.want, got)
			}
		})
	}
}

func TestMirrorLocalStoresHashNotPlaintext(t *testing.T) {
	service := newTestService(t, openTestDatabase(t))

	hash, err := bcrypt.GenerateFromPassword([]byte("secret-password"), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("hash failed: %v", err)
	}

	session := identity.Session{
		User: identity.Profile{ID: "provider-456", Email: "dev@example.com"},
	}
	user, err := service.MirrorLocal(context.Background(), "Dev", session, string(hash))
	if err != nil {
		t.Fatalf("mirror failed: %v", err)
	}
	if user.PasswordHash == "secret-password" {
		t.Fatal("plaintext password must never reach the mirror")
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte("secret-password")); err != nil {
		t.Fatalf("stored hash does not verify: %v", err)
	}
	if user.Provider != ProviderLocal {
		t.Fatalf("expected local provider, got %q", user.Provider)
	}
}

func TestFindByProviderIDNotFound(t *testing.T) {
	service := newTestService(t, openTestDatabase(t))

	_, err := service.FindByProviderID(context.Background(), "missing")
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}
