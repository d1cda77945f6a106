// Package token manages the single Strava OAuth credential used to fetch activities:
// the persisted token cache, expiry checks, refresh on demand and the one permitted
// retry after an authorization failure.
package token

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrNotFound is returned by a Store that holds no token.
	ErrNotFound = errors.New("token not found")
	// ErrMalformed is returned by a Store whose persisted token cannot be decoded.
	ErrMalformed = errors.New("malformed token record")
)

// CachedToken is the persisted token record. ExpiresAt is always seconds since the epoch.
type CachedToken struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresAt    int64  `json:"expires_at"`
}

// ValidAt reports whether the token can still be used at now. A token expiring
// exactly at now is stale.
func (t CachedToken) ValidAt(now time.Time) bool {
	return t.AccessToken != "" && t.ExpiresAt > now.Unix()
}

// Store persists the one CachedToken. Save overwrites any previous record.
type Store interface {
	Load(ctx context.Context) (*CachedToken, error)
	Save(ctx context.Context, t *CachedToken) error
}

// Credentials are the client credentials and the fallback refresh token used
// when nothing usable has been persisted yet.
type Credentials struct {
	TokenURL     string
	ClientID     string
	ClientSecret string
	RefreshToken string
}

// State is where the manager is in the token lifecycle.
type State int

const (
	NoToken State = iota
	ValidCached
	Refreshing
	Invalid
)

func (s State) String() string {
	switch s {
	case NoToken:
		return "no_token"
	case ValidCached:
		return "valid_cached"
	case Refreshing:
		return "refreshing"
	case Invalid:
		return "invalid"
	}
	return "unknown"
}
