package identity

import (
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const testSigningSecret = "test-jwt-secret"

func mintAccessToken(t *testing.T, subject string, issuedAt time.Time, ttl time.Duration) string {
	t.Helper()
	claims := jwt.RegisteredClaims{
		Subject:   subject,
		Audience:  []string{"authenticated"},
		IssuedAt:  jwt.NewNumericDate(issuedAt),
		ExpiresAt: jwt.NewNumericDate(issuedAt.Add(ttl)),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(testSigningSecret))
	if err != nil {
		t.Fatalf("failed to sign token: %v", err)
	}
	return signed
}

func TestValidateAcceptsProviderToken(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	validator, err := NewTokenValidator(TokenValidatorConfig{
		SigningSecret: []byte(testSigningSecret),
		Clock:         func() time.Time { return now },
	})
	if err != nil {
		t.Fatalf("failed to construct validator: %v", err)
	}

	token := mintAccessToken(t, "provider-123", now, time.Hour)
	subject, err := validator.Validate(token)
	if err != nil {
		t.Fatalf("validation failed: %v", err)
	}
	if subject != "provider-123" {
		t.Fatalf("unexpected subject %q", subject)
	}
}

func TestValidateRejectsExpiredToken(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	validator, err := NewTokenValidator(TokenValidatorConfig{
		SigningSecret: []byte(testSigningSecret),
		Clock:         func() time.Time { return now },
	})
	if err != nil {
		t.Fatalf("failed to construct validator: %v", err)
	}

	token := mintAccessToken(t, "provider-123", now.Add(-2*time.Hour), time.Hour)
	if _, err := validator.Validate(token); !errors.Is(err, ErrExpiredToken) {
		t.Fatalf("expected ErrExpiredToken, got %v", err)
	}
}

func TestValidateRejectsWrongSecret(t *testing.T) {
	validator, err := NewTokenValidator(TokenValidatorConfig{
		SigningSecret: []byte("different-secret"),
	})
	if err != nil {
		t.Fatalf("failed to construct validator: %v", err)
	}

	token := mintAccessToken(t, "provider-123", time.Now(), time.Hour)
	if _, err := validator.Validate(token); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken, got %v", err)
	}
}

func TestValidateRejectsEmptyToken(t *testing.T) {
	validator, err := NewTokenValidator(TokenValidatorConfig{
		SigningSecret: []byte(testSigningSecret),
	})
	if err != nil {
		t.Fatalf("failed to construct validator: %v", err)
	}
	if _, err := validator.Validate("  "); !errors.Is(err, ErrMissingToken) {
		t.Fatalf("expected ErrMissingToken, got %v", err)
	}
}

func TestNewTokenValidatorRequiresSecret(t *testing.T) {
	if _, err := NewTokenValidator(TokenValidatorConfig{}); !errors.Is(err, ErrMissingTokenSigningKey) {
		t.Fatalf("expected ErrMissingTokenSigningKey, got %v", err)
	}
}
