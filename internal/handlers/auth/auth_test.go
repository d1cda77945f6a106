package auth

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"path/filepath"
	"strings"
	"testing"

	"github.com/jarcoal/httpmock"
	"github.com/lildude/lastactivity/internal/sessions"
	"github.com/lildude/lastactivity/internal/strava"
	"github.com/lildude/lastactivity/internal/token"
	"github.com/lildude/lastactivity/internal/tokenstore"
	"github.com/sirupsen/logrus"
)

var sessionKey = []byte("0123456789abcdef0123456789abcdef")

func TestAuthHandler(t *testing.T) {
	log := logrus.New()
	log.SetOutput(io.Discard)

	httpmock.Activate()
	defer httpmock.DeactivateAndReset()

	oat := `{
		"access_token":"123456789",
		"token_type":"Bearer",
		"refresh_token":"987654321",
		"expires_at":1657650636,
		"expires_in":21600,
		"athlete":{
			"id":1,
			"username":"test"
			}
		}`

	httpmock.RegisterResponder("POST", "https://www.strava.com/oauth/token",
		httpmock.NewStringResponder(200, oat))

	path := filepath.Join(t.TempDir(), "access_token.json")
	store := tokenstore.NewFile(path)
	creds := token.Credentials{TokenURL: strava.TokenURL, ClientID: "123", ClientSecret: "s3cr3t"}
	manager := token.NewManager(creds, store, token.WithLogger(log))

	cfg := strava.NewOAuthConfig("123", "s3cr3t", strava.AuthURL, strava.TokenURL, "http://localhost:8080/auth")
	handler := NewHandler(cfg, "test-state-token", sessions.NewStore(sessionKey, true), manager, log)

	tests := []struct {
		name     string
		query    string
		want     int
		location string
	}{
		{
			"no state redirects to strava",
			"",
			http.StatusFound,
			strava.AuthURL,
		},
		{
			"invalid state",
			"?state=invalid-state",
			http.StatusBadRequest,
			"",
		},
		{
			"valid state but no code",
			"?state=test-state-token",
			http.StatusBadRequest,
			"",
		},
		{
			"valid state and code",
			"?state=test-state-token&code=test-code",
			http.StatusFound,
			"/activity",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			req, err := http.NewRequest("GET", fmt.Sprintf("/auth%s", tc.query), nil) //nolint:noctx
			if err != nil {
				t.Fatal(err)
			}
			rr := httptest.NewRecorder()
			handler.ServeHTTP(rr, req)

			if status := rr.Code; status != tc.want {
				t.Errorf("%s: handler returned wrong status code: got %d want %d", tc.name, status, tc.want)
			}
			if loc := rr.Header().Get("Location"); !strings.HasPrefix(loc, tc.location) {
				t.Errorf("%s: expected redirect to %q, got %q", tc.name, tc.location, loc)
			}
		})
	}

	saved, err := store.Load(context.Background())
	if err != nil {
		t.Fatalf("expected seeded token, got %v", err)
	}
	want := &token.CachedToken{AccessToken: "123456789", RefreshToken: "987654321", ExpiresAt: 1657650636}
	if *saved != *want {
		t.Errorf("expected %+v, got %+v", want, saved)
	}
	if manager.State() != token.ValidCached {
		t.Errorf("expected manager state ValidCached, got %s", manager.State())
	}
}

func TestAuthHandlerGeneratedState(t *testing.T) {
	httpmock.Activate()
	defer httpmock.DeactivateAndReset()
	httpmock.RegisterResponder("POST", "https://www.strava.com/oauth/token",
		httpmock.NewStringResponder(200, `{"access_token":"a","refresh_token":"r","expires_at":1657650636}`))

	log := logrus.New()
	log.SetOutput(io.Discard)
	store := tokenstore.NewFile(filepath.Join(t.TempDir(), "access_token.json"))
	manager := token.NewManager(token.Credentials{TokenURL: strava.TokenURL}, store, token.WithLogger(log))
	cfg := strava.NewOAuthConfig("123", "s3cr3t", strava.AuthURL, strava.TokenURL, "")
	handler := NewHandler(cfg, "", sessions.NewStore(sessionKey, true), manager, log)

	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest("GET", "/auth", nil))

	u, err := url.Parse(rr.Header().Get("Location"))
	if err != nil {
		t.Fatal(err)
	}
	q := u.Query()
	state := q.Get("state")
	if state == "" {
		t.Fatal("expected a generated state in the redirect")
	}
	if q.Get("client_id") != "123" {
		t.Errorf("expected client_id 123, got %q", q.Get("client_id"))
	}
	if q.Get("scope") != "read,activity:read_all" {
		t.Errorf("expected scope read,activity:read_all, got %q", q.Get("scope"))
	}
	cookies := rr.Result().Cookies()
	if len(cookies) != 1 {
		t.Fatalf("expected a session cookie, got %d cookies", len(cookies))
	}

	// Without the cookie the generated state cannot be verified.
	rr = httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest("GET", "/auth?code=c&state="+state, nil))
	if rr.Code != http.StatusBadRequest {
		t.Errorf("expected 400 without session cookie, got %d", rr.Code)
	}

	req := httptest.NewRequest("GET", "/auth?code=c&state="+state, nil)
	req.AddCookie(cookies[0])
	rr = httptest.NewRecorder()
	handler.ServeHTTP(rr, req)
	if rr.Code != http.StatusFound || rr.Header().Get("Location") != "/activity" {
		t.Errorf("expected redirect to /activity, got %d %q", rr.Code, rr.Header().Get("Location"))
	}
	if _, err := store.Load(context.Background()); err != nil {
		t.Errorf("expected seeded token, got %v", err)
	}
}

func TestAuthHandlerExchangeFailure(t *testing.T) {
	httpmock.Activate()
	defer httpmock.DeactivateAndReset()
	httpmock.RegisterResponder("POST", "https://www.strava.com/oauth/token",
		httpmock.NewStringResponder(400, `{"message":"Bad Request","errors":[{"field":"code","code":"invalid"}]}`))

	log := logrus.New()
	log.SetOutput(io.Discard)
	cfg := strava.NewOAuthConfig("123", "s3cr3t", strava.AuthURL, strava.TokenURL, "")
	handler := NewHandler(cfg, "s", sessions.NewStore(sessionKey, true), nil, log)

	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest("GET", "/auth?state=s&code=bad", nil))
	if rr.Code != http.StatusBadGateway {
		t.Errorf("expected 502, got %d", rr.Code)
	}
}
