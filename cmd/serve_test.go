package main

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/urbanclimate/suhi-cli/internal/catalog"
	"github.com/urbanclimate/suhi-cli/internal/config"
	"github.com/urbanclimate/suhi-cli/internal/monitoring"
)

func newTestServer(t *testing.T) (*server, catalog.Store) {
	t.Helper()

	st, err := catalog.NewSQLite(filepath.Join(t.TempDir(), "catalog.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })
	require.NoError(t, st.Migrate(context.Background()))

	s := &server{
		cfg:     &config.Config{},
		store:   st,
		metrics: monitoring.NewMetricsForTesting(),
	}
	return s, st
}

func TestServeHealth(t *testing.T) {
	s, _ := newTestServer(t)

	rec := httptest.NewRecorder()
	s.routes().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"ok"`)
}

func TestServeListRuns_Empty(t *testing.T) {
	s, _ := newTestServer(t)

	rec := httptest.NewRecorder()
	s.routes().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/runs", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "[]", strings.TrimSpace(rec.Body.String()))
}

func TestServeGetRun(t *testing.T) {
	s, st := newTestServer(t)

	run, err := st.CreateRun(context.Background(), "Graz", "summer", 2022)
	require.NoError(t, err)

	rec := httptest.NewRecorder()
	s.routes().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/runs/"+run.ID, nil))

	require.Equal(t, http.StatusOK, rec.Code)
	var got catalog.Run
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, "Graz", got.City)
	assert.Equal(t, catalog.RunStatusQueued, got.Status)
}

func TestServeGetRun_NotFound(t *testing.T) {
	s, _ := newTestServer(t)

	rec := httptest.NewRecorder()
	s.routes().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/runs/nope", nil))

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestServeListDecisions(t *testing.T) {
	s, st := newTestServer(t)

	run, err := st.CreateRun(context.Background(), "Graz", "summer", 2022)
	require.NoError(t, err)
	require.NoError(t, st.RecordDecisions(context.Background(), run.ID, []catalog.SceneDecision{
		{RunID: run.ID, SceneID: "LC08_L2SP_190027_20220615_20220628_02_T1", Sensor: "oli_tirs", Accepted: true},
	}))

	rec := httptest.NewRecorder()
	s.routes().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/runs/"+run.ID+"/decisions", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	var got []catalog.SceneDecision
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	require.Len(t, got, 1)
	assert.True(t, got[0].Accepted)
}

func TestServeStartRun_Validation(t *testing.T) {
	s, _ := newTestServer(t)

	tests := []struct {
		name string
		body string
	}{
		{"missing year", `{"season":"summer"}`},
		{"bad season", `{"season":"monsoon","year":2022}`},
		{"garbage body", `{`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			req := httptest.NewRequest(http.MethodPost, "/api/runs", strings.NewReader(tt.body))
			s.routes().ServeHTTP(rec, req)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
		})
	}
}
