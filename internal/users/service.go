package users

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/sevasetu/portal/internal/identity"
	"gorm.io/gorm"
)

// ErrNotFound indicates no mirrored row exists for the provider identity.
var ErrNotFound = errors.New("users: not found")

// ServiceConfig describes the dependencies required for the mirror store.
type ServiceConfig struct {
	Database   *gorm.DB
	IDProvider func() string
}

// Service keeps the local projection of identity-provider accounts.
type Service struct {
	db    *gorm.DB
	newID func() string
}

// NewService constructs the mirror service.
func NewService(cfg ServiceConfig) (*Service, error) {
	if cfg.Database == nil {
		return nil, fmt.Errorf("users: database connection required")
	}
	newID := cfg.IDProvider
	if newID == nil {
		newID = uuid.NewString
	}
	return &Service{db: cfg.Database, newID: newID}, nil
}

// FindByProviderID looks up the mirrored row by the provider-assigned user id.
func (s *Service) FindByProviderID(ctx context.Context, providerID string) (User, error) {
	var user User
	err := s.db.WithContext(ctx).Where("p_id = ?", providerID).First(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return User{}, ErrNotFound
	}
	if err != nil {
		return User{}, err
	}
	return user, nil
}

// MirrorSession ensures a mirrored row exists for the session's user and
// returns it. An existing row is returned as-is: repeat logins never update
// the projection.
func (s *Service) MirrorSession(ctx context.Context, provider Provider, sess identity.Session) (User, error) {
	if normalize(sess.User.ID) == "" {
		return User{}, fmt.Errorf("users: session has no provider user id")
	}

	existing, err := s.FindByProviderID(ctx, sess.User.ID)
	if err == nil {
		return existing, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return User{}, err
	}

	user := User{
		ID:           s.newID(),
		Name:         displayName(sess.User),
		Provider:     provider,
		AccessToken:  sess.AccessToken,
		RefreshToken: sess.RefreshToken,
		ProviderID:   sess.User.ID,
		Email:        normalize(sess.User.Email),
		AvatarURL:    normalize(sess.User.UserMetadata.AvatarURL),
	}
	if err := s.db.WithContext(ctx).Create(&user).Error; err != nil {
		// Concurrent callbacks for the same account race on the p_id unique
		// constraint; the row that won is the one we want.
		if winner, findErr := s.FindByProviderID(ctx, sess.User.ID); findErr == nil {
			return winner, nil
		}
		return User{}, err
	}
	return user, nil
}

// MirrorLocal records a freshly signed-up local account. The password column
// stores only the bcrypt hash; the identity provider remains the single
// source of truth for credentials.
func (s *Service) MirrorLocal(ctx context.Context, name string, sess identity.Session, passwordHash string) (User, error) {
	if normalize(sess.User.ID) == "" {
		return User{}, fmt.Errorf("users: session has no provider user id")
	}

	existing, err := s.FindByProviderID(ctx, sess.User.ID)
	if err == nil {
		return existing, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return User{}, err
	}

	resolved := normalize(name)
	if resolved == "" {
		resolved = displayName(sess.User)
	}
	user := User{
		ID:           s.newID(),
		Name:         resolved,
		PasswordHash: passwordHash,
		Provider:     ProviderLocal,
		ProviderID:   sess.User.ID,
		Email:        normalize(sess.User.Email),
	}
	if err := s.db.WithContext(ctx).Create(&user).Error; err != nil {
		if winner, findErr := s.FindByProviderID(ctx, sess.User.ID); findErr == nil {
			return winner, nil
		}
		return User{}, err
	}
	return user, nil
}

// displayName picks the best available label for a profile: the provider's
// full name, the email local-part, then a generated guest label.
func displayName(profile identity.Profile) string {
	if name := normalize(profile.UserMetadata.FullName); name != "" {
		return name
	}
	if email := normalize(profile.Email); email != "" {
		if at := strings.Index(email, "@"); at > 0 {
			return email[:at]
		}
		return email
	}
	return "Guest user-" + profile.ID
}
