// Package sessions keeps the OAuth state between the redirect to Strava and
// the callback in a signed cookie.
package sessions

import (
	"errors"
	"net/http"

	"github.com/gorilla/sessions"
)

const (
	sessionName = "lastactivity-auth"
	stateKey    = "oauth_state"
)

// ErrNoState is returned when the request carries no OAuth state.
var ErrNoState = errors.New("no oauth state in session")

type Store struct {
	store *sessions.CookieStore
}

// NewStore returns a cookie store signed with key. Cookies are marked Secure
// unless insecure is set, for local development over plain HTTP.
func NewStore(key []byte, insecure bool) *Store {
	store := sessions.NewCookieStore(key)
	store.Options = &sessions.Options{
		Path:     "/",
		MaxAge:   600,
		HttpOnly: true,
		Secure:   !insecure,
		SameSite: http.SameSiteLaxMode,
	}
	return &Store{store: store}
}

// SaveState stores the OAuth state for the next callback.
func (s *Store) SaveState(w http.ResponseWriter, r *http.Request, state string) error {
	session, err := s.store.Get(r, sessionName)
	if err != nil && session == nil {
		return err
	}
	session.Values[stateKey] = state
	return session.Save(r, w)
}

// PopState returns the stored OAuth state and clears it so it is used once.
func (s *Store) PopState(w http.ResponseWriter, r *http.Request) (string, error) {
	session, err := s.store.Get(r, sessionName)
	if err != nil {
		return "", ErrNoState
	}
	state, ok := session.Values[stateKey].(string)
	if !ok || state == "" {
		return "", ErrNoState
	}
	delete(session.Values, stateKey)
	session.Options.MaxAge = -1
	if err := session.Save(r, w); err != nil {
		return "", err
	}
	return state, nil
}
