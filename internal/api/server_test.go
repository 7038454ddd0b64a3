package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/icco/riffloop/internal/store"
)

func newTestServer(t *testing.T) (*Server, store.Store) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	st, err := store.NewFileStore(t.TempDir())
	require.NoError(t, err)
	log := logrus.New()
	log.SetOutput(io.Discard)
	return New(st, Options{Log: log}), st
}

func do(t *testing.T, s *Server, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, r)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)
	return w
}

func TestHealth(t *testing.T) {
	s, _ := newTestServer(t)
	w := do(t, s, http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "healthy")
}

func TestSessionLifecycle(t *testing.T) {
	s, _ := newTestServer(t)

	w := do(t, s, http.MethodPut, "/api/v1/sessions/song", `{"sourceRef":"song.mp3","bpm":100,"chords":{"0.000":["Am","","",""]}}`)
	require.Equal(t, http.StatusNoContent, w.Code, w.Body.String())

	w = do(t, s, http.MethodGet, "/api/v1/sessions/song", "")
	require.Equal(t, http.StatusOK, w.Code)
	var rec store.Record
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &rec))
	assert.Equal(t, "song.mp3", rec.SourceRef)
	require.NotNil(t, rec.BPM)
	assert.Equal(t, 100, *rec.BPM)
	assert.Nil(t, rec.BeatsPerBar)
	assert.Equal(t, "Am", rec.Chords["0.000"][0])

	w = do(t, s, http.MethodGet, "/api/v1/sessions", "")
	require.Equal(t, http.StatusOK, w.Code)
	var list []store.Summary
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &list))
	require.Len(t, list, 1)
	assert.Equal(t, "song", list[0].ID)

	w = do(t, s, http.MethodDelete, "/api/v1/sessions/song", "")
	assert.Equal(t, http.StatusNoContent, w.Code)

	w = do(t, s, http.MethodGet, "/api/v1/sessions/song", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestCreateGeneratesID(t *testing.T) {
	s, st := newTestServer(t)
	w := do(t, s, http.MethodPost, "/api/v1/sessions", `{"sourceRef":"a.wav"}`)
	require.Equal(t, http.StatusCreated, w.Code)

	var body map[string]string
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	id := body["id"]
	assert.Len(t, id, 36)
	assert.Equal(t, "/api/v1/sessions/"+id, w.Header().Get("Location"))

	_, err := st.Load(t.Context(), id)
	assert.NoError(t, err)
}

func TestListEmptyIsArray(t *testing.T) {
	s, _ := newTestServer(t)
	w := do(t, s, http.MethodGet, "/api/v1/sessions", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `[]`, w.Body.String())
}

func TestBadRequests(t *testing.T) {
	s, _ := newTestServer(t)
	tests := []struct {
		name, method, path, body string
		want                     int
	}{
		{"malformed json", http.MethodPut, "/api/v1/sessions/x", `{`, http.StatusBadRequest},
		{"missing source", http.MethodPut, "/api/v1/sessions/x", `{"title":"t"}`, http.StatusBadRequest},
		{"bad tab", http.MethodPut, "/api/v1/sessions/x", `{"sourceRef":"a","tabs":{"0.000":[["x"]]}}`, http.StatusBadRequest},
		{"bad id", http.MethodPut, "/api/v1/sessions/..bad", `{"sourceRef":"a"}`, http.StatusBadRequest},
		{"delete missing", http.MethodDelete, "/api/v1/sessions/nope", "", http.StatusNotFound},
		{"grid missing", http.MethodGet, "/api/v1/sessions/nope/grid?duration=10", "", http.StatusNotFound},
		{"grid no duration", http.MethodGet, "/api/v1/sessions/nope/grid", "", http.StatusBadRequest},
		{"grid NaN duration", http.MethodGet, "/api/v1/sessions/nope/grid?duration=NaN", "", http.StatusBadRequest},
		{"grid infinite duration", http.MethodGet, "/api/v1/sessions/nope/grid?duration=Inf", "", http.StatusBadRequest},
		{"grid negative duration", http.MethodGet, "/api/v1/sessions/nope/grid?duration=-3", "", http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := do(t, s, tt.method, tt.path, tt.body)
			assert.Equal(t, tt.want, w.Code, w.Body.String())
			var e ErrorResponse
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &e))
			assert.NotEmpty(t, e.Error)
		})
	}
}

func TestGrid(t *testing.T) {
	s, _ := newTestServer(t)
	w := do(t, s, http.MethodPut, "/api/v1/sessions/g", `{"sourceRef":"a.wav","bpm":120,"beatsPerBar":3,"offsetSeconds":0.5}`)
	require.Equal(t, http.StatusNoContent, w.Code)

	w = do(t, s, http.MethodGet, "/api/v1/sessions/g/grid?duration=5", "")
	require.Equal(t, http.StatusOK, w.Code)
	var g GridResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &g))
	assert.Equal(t, []float64{0.5, 2, 3.5, 5}, g.Bars)
	require.NotNil(t, g.BarWidth)
	assert.Equal(t, 1.5, *g.BarWidth)
	assert.Equal(t, 12, g.SlotsPerBar)
}

func TestGridNonFiniteDurationOnExistingSession(t *testing.T) {
	s, _ := newTestServer(t)
	require.Equal(t, http.StatusNoContent, do(t, s, http.MethodPut, "/api/v1/sessions/g", `{"sourceRef":"a.wav","bpm":120}`).Code)
	for _, d := range []string{"NaN", "Inf", "-Inf", "infinity"} {
		w := do(t, s, http.MethodGet, "/api/v1/sessions/g/grid?duration="+d, "")
		assert.Equal(t, http.StatusBadRequest, w.Code, d)
	}
}

func TestGridHugeTempo(t *testing.T) {
	s, _ := newTestServer(t)
	do(t, s, http.MethodPut, "/api/v1/sessions/h", `{"sourceRef":"a.wav","bpm":1000000,"beatsPerBar":1}`)
	w := do(t, s, http.MethodGet, "/api/v1/sessions/h/grid?duration=5", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"bars":[],"barWidth":null,"slotsPerBar":4}`, w.Body.String())
}

func TestGridUnsetTempo(t *testing.T) {
	s, _ := newTestServer(t)
	do(t, s, http.MethodPut, "/api/v1/sessions/u", `{"sourceRef":"a.wav"}`)
	w := do(t, s, http.MethodGet, "/api/v1/sessions/u/grid?duration=5", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"bars":[],"barWidth":null,"slotsPerBar":16}`, w.Body.String())
}

func TestCORS(t *testing.T) {
	s, _ := newTestServer(t)
	req := httptest.NewRequest(http.MethodOptions, "/api/v1/sessions", nil)
	req.Header.Set("Origin", "http://example.com")
	req.Header.Set("Access-Control-Request-Method", http.MethodPut)
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)
	assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
}

type brokenStore struct{ store.Store }

func (brokenStore) List(_ context.Context) ([]store.Summary, error) {
	return nil, errors.New("disk on fire")
}

func TestInternalErrorsAreHidden(t *testing.T) {
	gin.SetMode(gin.TestMode)
	log := logrus.New()
	log.SetOutput(io.Discard)
	s := New(brokenStore{}, Options{Log: log})
	w := do(t, s, http.MethodGet, "/api/v1/sessions", "")
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.NotContains(t, w.Body.String(), "fire")
}
