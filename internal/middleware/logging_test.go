package middleware

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/require"
)

func TestLogging(t *testing.T) {
	logger, hook := test.NewNullLogger()

	h := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
		_, err := w.Write([]byte("hi"))
		require.NoError(t, err, "should write response")
	})

	srv := httptest.NewServer(Logging(logger)(h))
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/test")
	require.NoError(t, err, "should make request to test server")
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err, "should read response body")
	defer resp.Body.Close() // nolint:errcheck

	require.Equal(t, http.StatusTeapot, resp.StatusCode)
	require.Equal(t, "hi", string(body))

	require.Len(t, hook.Entries, 1, "logger should be called once")
	entry := hook.LastEntry()
	require.Equal(t, logrus.InfoLevel, entry.Level)
	require.Equal(t, "got HTTP request", entry.Message)
	require.Equal(t, "GET", entry.Data["method"])
	require.Equal(t, "/test", entry.Data["uri"])
	require.Equal(t, http.StatusTeapot, entry.Data["status"])
	require.Equal(t, 2, entry.Data["size"], "size should be 2 (length of 'hi')")
	require.NotEmpty(t, entry.Data["duration"])
}

func TestCORS(t *testing.T) {
	called := false
	h := CORS(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { called = true }))

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodOptions, "/activity", nil))
	require.Equal(t, http.StatusNoContent, rr.Code)
	require.Equal(t, "*", rr.Header().Get("Access-Control-Allow-Origin"))
	require.False(t, called, "preflight should not reach the handler")

	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/activity", nil))
	require.True(t, called)
	require.Equal(t, "*", rr.Header().Get("Access-Control-Allow-Origin"))
}
