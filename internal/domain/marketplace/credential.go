package marketplace

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrCredentialExpired indicates the access credential was rejected by the
	// marketplace and a refresh is required.
	ErrCredentialExpired = errors.New("marketplace: access credential expired")
	// ErrSessionExpired indicates the refresh credential itself is no longer
	// usable; the seller must re-authorize.
	ErrSessionExpired = errors.New("marketplace: session expired, re-authorization required")
	// ErrNoSession indicates no marketplace session has been established yet.
	ErrNoSession = errors.New("marketplace: no connected session")
)

// Credential is an opaque access/refresh credential pair issued by the
// marketplace. The access token is short-lived (hours); the refresh token is
// long-lived (months). The pipeline only ever observes expiry indirectly,
// through an authentication failure on an upstream call.
type Credential struct {
	AccessToken  string
	RefreshToken string
	ExpiresAt    time.Time
}

// HasAccess returns true if an access token is present.
func (c Credential) HasAccess() bool {
	return c.AccessToken != ""
}

// Session is the persisted marketplace connection for a seller: the current
// credential pair plus the seller identity resolved when it was issued.
type Session struct {
	SellerID   int64
	Nickname   string
	Credential Credential
	UpdatedAt  time.Time
}

// SessionStore persists the marketplace session. Implementations must replace
// the stored refresh token whenever a refresh yields a new one.
type SessionStore interface {
	// Load returns the current session, or ErrNoSession if the seller has
	// never connected.
	Load(ctx context.Context) (*Session, error)

	// Save creates or replaces the session.
	Save(ctx context.Context, session *Session) error
}

// CredentialProvider exchanges and renews marketplace credentials. It is the
// pipeline's only view of the OAuth machinery.
type CredentialProvider interface {
	// Refresh exchanges the refresh token for a new credential pair.
	// Returns ErrSessionExpired if the refresh token is rejected or the
	// response carries no access token.
	Refresh(ctx context.Context, refreshToken string) (*Credential, error)

	// Exchange trades a one-time authorization code for a credential pair.
	Exchange(ctx context.Context, code string) (*Credential, error)

	// AuthorizeURL returns the marketplace authorization URL carrying the
	// given anti-forgery state value.
	AuthorizeURL(state string) string
}
