// Package widget serves the latest activity summary to the map renderer.
package widget

import (
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/lildude/lastactivity/internal/activity"
	"github.com/lildude/lastactivity/internal/token"
	"github.com/paulmach/orb/geojson"
	"github.com/sirupsen/logrus"
)

type outcome struct {
	summary   *activity.Summary
	err       error
	updatedAt time.Time
}

// State holds the outcome of the most recent completed fetch cycle.
type State struct {
	mu   sync.RWMutex
	last *outcome
}

// Update records a cycle outcome. A failed cycle replaces the previous
// summary so the renderer never shows stale data as current.
func (s *State) Update(summary *activity.Summary, err error, at time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.last = &outcome{summary: summary, err: err, updatedAt: at}
}

func (s *State) snapshot() outcome {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.last == nil {
		return outcome{err: errNotReady}
	}
	return *s.last
}

type activityResponse struct {
	*activity.Summary
	UpdatedAt time.Time `json:"updatedAt"`
}

type errorResponse struct {
	Error string `json:"error"`
	Kind  string `json:"kind"`
}

var errNotReady = errors.New("no fetch cycle has completed yet")

type Handler struct {
	state *State
	log   logrus.FieldLogger
}

func NewHandler(state *State, log logrus.FieldLogger) *Handler {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Handler{state: state, log: log}
}

// Register adds the widget routes to mux.
func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /activity", h.Activity)
	mux.HandleFunc("GET /activity/route.geojson", h.Route)
	mux.HandleFunc("GET /healthz", Healthz)
}

func (h *Handler) Activity(w http.ResponseWriter, r *http.Request) {
	o := h.state.snapshot()
	if o.err != nil {
		h.writeError(w, o.err)
		return
	}
	h.writeJSON(w, "application/json", http.StatusOK, activityResponse{Summary: o.summary, UpdatedAt: o.updatedAt})
}

// Route serves the activity route as a GeoJSON LineString feature.
func (h *Handler) Route(w http.ResponseWriter, r *http.Request) {
	o := h.state.snapshot()
	if o.err != nil {
		h.writeError(w, o.err)
		return
	}
	summary := o.summary
	if summary == nil || len(summary.Path) < 2 {
		http.Error(w, "activity has no route", http.StatusNotFound)
		return
	}

	f := geojson.NewFeature(summary.Path.LineString())
	if summary.Name != nil {
		f.Properties["name"] = *summary.Name
	}
	if summary.Distance != nil {
		f.Properties["distance"] = *summary.Distance
		f.Properties["distanceUnits"] = summary.DistanceUnits
	}
	h.writeJSON(w, "application/geo+json", http.StatusOK, f)
}

func Healthz(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Write([]byte("ok")) //nolint:errcheck
}

func (h *Handler) writeError(w http.ResponseWriter, err error) {
	status, kind := classify(err)
	h.writeJSON(w, "application/json", status, errorResponse{Error: err.Error(), Kind: kind})
}

func classify(err error) (int, string) {
	var (
		rle *token.RateLimitError
		ate *token.AccessTokenError
		sfe *token.StravaFetchError
	)
	switch {
	case errors.Is(err, errNotReady):
		return http.StatusServiceUnavailable, "not_ready"
	case errors.As(err, &rle):
		return http.StatusTooManyRequests, "rate_limited"
	case errors.As(err, &ate):
		return http.StatusBadGateway, "access_token"
	case errors.As(err, &sfe):
		return http.StatusBadGateway, "fetch"
	}
	return http.StatusBadGateway, "unknown"
}

func (h *Handler) writeJSON(w http.ResponseWriter, contentType string, status int, v any) {
	body, err := json.Marshal(v)
	if err != nil {
		h.log.WithError(err).Error("unable to encode response")
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", contentType)
	w.WriteHeader(status)
	w.Write(body) //nolint:errcheck
}
