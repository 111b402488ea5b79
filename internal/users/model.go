package users

import "strings"

// Provider identifies how a user authenticates against the identity collaborator.
type Provider string

const (
	ProviderLocal  Provider = "local"
	ProviderGoogle Provider = "google"
)

// User is the mirrored profile row kept alongside the identity provider's
// account. The provider is authoritative for credentials; this row exists for
// fast local lookups keyed by the provider-assigned id.
type User struct {
	ID           string   `gorm:"column:id;primaryKey;size:36" json:"id"`
	Name         string   `gorm:"column:name;size:320;not null" json:"name"`
	PasswordHash string   `gorm:"column:pwd;size:72" json:"-"`
	Provider     Provider `gorm:"column:provider;size:32;not null" json:"provider"`
	AccessToken  string   `gorm:"column:access_token" json:"-"`
	RefreshToken string   `gorm:"column:refresh_token" json:"-"`
	ProviderID   string   `gorm:"column:p_id;size:190;not null;uniqueIndex" json:"providerId"`
	Email        string   `gorm:"column:email;size:320" json:"email,omitempty"`
	AvatarURL    string   `gorm:"column:pfp;size:512" json:"pfp,omitempty"`
}

// TableName exposes the table backing mirrored user rows.
func (User) TableName() string {
	return "users"
}

// ParseProvider validates a provider name from a request payload.
func ParseProvider(value string) (Provider, bool) {
	switch Provider(strings.ToLower(strings.TrimSpace(value))) {
	case ProviderLocal:
		return ProviderLocal, true
	case ProviderGoogle:
		return ProviderGoogle, true
	default:
		return "", false
	}
}

func normalize(value string) string {
	return strings.TrimSpace(value)
}
