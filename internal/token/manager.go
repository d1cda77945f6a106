package token

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/lildude/lastactivity/internal/client"
	"github.com/lildude/lastactivity/internal/strava"
	"github.com/sirupsen/logrus"
	"golang.org/x/oauth2"
	"golang.org/x/sync/singleflight"
)

// RequestFunc performs one authorised API call using accessToken.
type RequestFunc func(ctx context.Context, accessToken string) error

// Manager owns the current token. It is safe for concurrent use; concurrent
// refreshes are collapsed into a single call to the token endpoint so two
// cycles can never race to overwrite the stored record.
type Manager struct {
	creds Credentials
	oauth *oauth2.Config
	store Store
	log   logrus.FieldLogger
	now   func() time.Time
	hc    *http.Client

	refreshes singleflight.Group

	mu      sync.Mutex
	state   State
	current *CachedToken
}

type Option func(*Manager)

// WithClock replaces time.Now, mostly for tests.
func WithClock(now func() time.Time) Option {
	return func(m *Manager) { m.now = now }
}

func WithLogger(l logrus.FieldLogger) Option {
	return func(m *Manager) { m.log = l }
}

// WithHTTPClient sets the client used for token endpoint calls.
func WithHTTPClient(hc *http.Client) Option {
	return func(m *Manager) { m.hc = hc }
}

func NewManager(creds Credentials, store Store, opts ...Option) *Manager {
	m := &Manager{
		creds: creds,
		oauth: strava.NewOAuthConfig(creds.ClientID, creds.ClientSecret, "", creds.TokenURL, ""),
		store: store,
		log:   logrus.StandardLogger(),
		now:   time.Now,
		state: NoToken,
	}
	for _, o := range opts {
		o(m)
	}
	return m
}

// State returns the current lifecycle state.
func (m *Manager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Current returns the token held in memory, if any.
func (m *Manager) Current() (CachedToken, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.current == nil {
		return CachedToken{}, false
	}
	return *m.current, true
}

// EnsureValidToken returns a bearer token that has not expired. A valid
// persisted token is returned without touching the network; otherwise the
// token endpoint is called once. Failures are reported as *AccessTokenError.
func (m *Manager) EnsureValidToken(ctx context.Context) (string, error) {
	rec, err := m.store.Load(ctx)
	switch {
	case err == nil:
		if rec.ValidAt(m.now()) {
			m.set(ValidCached, rec)
			return rec.AccessToken, nil
		}
		m.log.WithField("expires_at", rec.ExpiresAt).Info("cached token expired, refreshing")
		rt := rec.RefreshToken
		if rt == "" {
			rt = m.creds.RefreshToken
		}
		return m.refresh(ctx, rt)

	case errors.Is(err, ErrNotFound):
		m.set(NoToken, nil)
		m.log.Info("no cached token, refreshing")
		return m.refresh(ctx, m.creds.RefreshToken)

	case errors.Is(err, ErrMalformed):
		m.set(NoToken, nil)
		m.log.WithError(err).Warn("ignoring unreadable cached token")
		return m.refresh(ctx, m.creds.RefreshToken)

	default:
		m.set(Invalid, nil)
		return "", &AccessTokenError{Err: fmt.Errorf("loading cached token: %w", err)}
	}
}

// FetchWithAutoRefresh calls fn with a valid token. If Strava rejects the
// token with a 401 the token is refreshed and fn is called one more time; a
// second rejection is final. A 429 is returned as *RateLimitError straight
// away. Any other failure is a *StravaFetchError.
func (m *Manager) FetchWithAutoRefresh(ctx context.Context, fn RequestFunc) error {
	tok, err := m.EnsureValidToken(ctx)
	if err != nil {
		return err
	}

	err = fn(ctx, tok)
	if err == nil {
		return nil
	}
	status, header := responseOf(err)
	if status != http.StatusUnauthorized {
		return classify(status, header, err)
	}

	m.log.Warn("strava rejected access token, forcing refresh")
	rt := m.creds.RefreshToken
	if cur, ok := m.Current(); ok && cur.RefreshToken != "" {
		rt = cur.RefreshToken
	}
	tok, err = m.refresh(ctx, rt)
	if err != nil {
		return err
	}

	err = fn(ctx, tok)
	if err == nil {
		return nil
	}
	status, header = responseOf(err)
	return classify(status, header, err)
}

// Seed stores a token obtained outside the refresh flow, such as from the
// authorization code exchange.
func (m *Manager) Seed(ctx context.Context, t CachedToken) error {
	if t.AccessToken == "" || t.RefreshToken == "" {
		return errors.New("seed token is missing access or refresh token")
	}
	if err := m.store.Save(ctx, &t); err != nil {
		return fmt.Errorf("storing seeded token: %w", err)
	}
	m.set(ValidCached, &t)
	return nil
}

// FromOAuth2 converts a token returned by the oauth2 package.
func FromOAuth2(tok *oauth2.Token) CachedToken {
	return CachedToken{
		AccessToken:  tok.AccessToken,
		RefreshToken: tok.RefreshToken,
		ExpiresAt:    strava.ExpiresAt(tok),
	}
}

func (m *Manager) refresh(ctx context.Context, refreshToken string) (string, error) {
	v, err, shared := m.refreshes.Do("refresh", func() (interface{}, error) {
		return m.doRefresh(ctx, refreshToken)
	})
	if shared {
		m.log.Debug("joined in-flight token refresh")
	}
	if err != nil {
		return "", err
	}
	return v.(string), nil
}

func (m *Manager) doRefresh(ctx context.Context, refreshToken string) (string, error) {
	m.setState(Refreshing)

	if refreshToken == "" {
		m.set(Invalid, nil)
		return "", &AccessTokenError{Err: errors.New("no refresh token available")}
	}

	if m.hc != nil {
		ctx = context.WithValue(ctx, oauth2.HTTPClient, m.hc)
	}
	tok, err := strava.RefreshToken(ctx, m.oauth, refreshToken)
	if err != nil {
		m.set(Invalid, nil)
		return "", &AccessTokenError{Err: err}
	}

	ct := FromOAuth2(tok)
	if ct.RefreshToken == "" {
		ct.RefreshToken = refreshToken
	}
	if ct.ExpiresAt == 0 {
		m.set(Invalid, nil)
		return "", &AccessTokenError{Err: errors.New("token response has no expiry")}
	}
	if !ct.ValidAt(m.now()) {
		m.set(Invalid, nil)
		return "", &AccessTokenError{Err: fmt.Errorf("token endpoint returned a token expired at %d", ct.ExpiresAt)}
	}

	if err := m.store.Save(ctx, &ct); err != nil {
		// The token is still good for this cycle; the next one will refresh again.
		m.log.WithError(err).Error("unable to store refreshed token")
	}
	m.set(ValidCached, &ct)
	m.log.WithField("expires_at", ct.ExpiresAt).Info("refreshed access token")

	return ct.AccessToken, nil
}

func (m *Manager) set(s State, t *CachedToken) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.state = s
	m.current = t
}

func (m *Manager) setState(s State) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.state = s
}

// responseOf digs the HTTP status out of an API error. Zero means the call
// never got a response.
func responseOf(err error) (int, http.Header) {
	var apiErr *client.APIError
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode, apiErr.Header
	}
	return 0, nil
}

func classify(status int, header http.Header, err error) error {
	if status == http.StatusTooManyRequests {
		return newRateLimitError(header, err)
	}
	return &StravaFetchError{StatusCode: status, Err: err}
}
