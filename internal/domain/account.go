package domain

import (
	"strings"
	"time"
)

// Account is an internal user record. Email is optional and not unique:
// two providers may assert the same address and be merged onto one account.
type Account struct {
	ID        string
	Email     string
	Name      string
	CreatedAt time.Time
}

// Identity is the authenticated principal attached to a request.
type Identity struct {
	ID    string `json:"id"`
	Email string `json:"email"`
	Name  string `json:"name"`
}

func (a Account) Identity() Identity {
	return Identity{ID: a.ID, Email: a.Email, Name: a.Name}
}

// ProviderLink binds one external identity to exactly one account.
type ProviderLink struct {
	Provider  string
	Subject   string
	AccountID string
	CreatedAt time.Time
}

// ProviderAssertion is what an identity provider vouched for after a
// successful handshake. Subject is the provider's stable user id.
type ProviderAssertion struct {
	Provider string
	Subject  string
	Email    string
	Name     string
}

// DisplayName picks the display name, else given and family joined, else "".
func DisplayName(display, given, family string) string {
	if d := strings.TrimSpace(display); d != "" {
		return d
	}
	return strings.TrimSpace(strings.TrimSpace(given) + " " + strings.TrimSpace(family))
}

// NormalizeEmail lower-cases and trims an address; "" stays "".
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// DeletionToken is the persisted half of an account deletion link.
// Only the hash of the emailed value is stored.
type DeletionToken struct {
	Hash      string
	AccountID string
	ExpiresAt time.Time
	CreatedAt time.Time
}

func (t DeletionToken) Expired(now time.Time) bool {
	return !now.Before(t.ExpiresAt)
}

// BearerClaims is the verified content of a bearer credential.
type BearerClaims struct {
	AccountID string
	Email     string
	Name      string
	IssuedAt  time.Time
	ExpiresAt time.Time
}

func (c BearerClaims) Identity() Identity {
	return Identity{ID: c.AccountID, Email: c.Email, Name: c.Name}
}

// AuthMode selects what a completed login hands back to the client.
type AuthMode string

const (
	// ModeSession establishes a cookie-backed server session (browsers).
	ModeSession AuthMode = "session"
	// ModeToken mints a bearer credential (native and cross-origin clients).
	ModeToken AuthMode = "token"
)

func (m AuthMode) Valid() bool {
	return m == ModeSession || m == ModeToken
}
