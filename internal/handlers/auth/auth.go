// Package auth implements the authentication handler.
package auth

import (
	"context"
	"net/http"

	"github.com/google/uuid"
	"github.com/lildude/lastactivity/internal/sessions"
	"github.com/lildude/lastactivity/internal/token"
	"github.com/sirupsen/logrus"
	"golang.org/x/oauth2"
)

// Seeder stores the token obtained from the authorization code exchange.
// Satisfied by *token.Manager.
type Seeder interface {
	Seed(ctx context.Context, t token.CachedToken) error
}

type Handler struct {
	oauth      *oauth2.Config
	stateToken string
	sessions   *sessions.Store
	tokens     Seeder
	log        logrus.FieldLogger
}

// NewHandler returns the OAuth bootstrap handler. When stateToken is empty a
// fresh state is generated for every login and kept in the session cookie.
func NewHandler(cfg *oauth2.Config, stateToken string, sess *sessions.Store, tokens Seeder, log logrus.FieldLogger) *Handler {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Handler{oauth: cfg, stateToken: stateToken, sessions: sess, tokens: tokens, log: log}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	err := r.ParseForm()
	if err != nil {
		h.log.WithError(err).Error("unable to parse form")
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	state := r.Form.Get("state")
	if state == "" {
		state = h.stateToken
		if state == "" {
			state = uuid.NewString()
		}
		if err := h.sessions.SaveState(w, r, state); err != nil {
			h.log.WithError(err).Error("unable to save session")
			http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
			return
		}
		u := h.oauth.AuthCodeURL(state)
		h.log.WithField("url", u).Info("redirecting to strava auth")
		http.Redirect(w, r, u, http.StatusFound)
		return
	}

	expected, err := h.sessions.PopState(w, r)
	if err != nil {
		expected = h.stateToken
	}
	if expected == "" || state != expected {
		http.Error(w, "state invalid", http.StatusBadRequest)
		return
	}
	code := r.Form.Get("code")
	if code == "" {
		http.Error(w, "code not found", http.StatusBadRequest)
		return
	}
	tok, err := h.oauth.Exchange(r.Context(), code)
	if err != nil {
		h.log.WithError(err).Error("token exchange failed")
		http.Error(w, http.StatusText(http.StatusBadGateway), http.StatusBadGateway)
		return
	}

	if err := h.tokens.Seed(r.Context(), token.FromOAuth2(tok)); err != nil {
		h.log.WithError(err).Error("unable to store token")
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	log := h.log
	if athlete, ok := tok.Extra("athlete").(map[string]any); ok {
		log = log.WithField("username", athlete["username"])
	}
	log.Info("successfully authenticated")

	http.Redirect(w, r, "/activity", http.StatusFound)
}
