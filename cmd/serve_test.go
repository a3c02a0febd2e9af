package main

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hmoscout/ingest-cli/internal/ingest"
	"github.com/hmoscout/ingest-cli/internal/match"
	"github.com/hmoscout/ingest-cli/internal/merge"
	"github.com/hmoscout/ingest-cli/internal/model"
)

// stubStore backs router tests; only the methods the handlers touch do
// anything useful.
type stubStore struct {
	runs     []model.IngestionRun
	listErr  error
	runCount int
}

func (s *stubStore) FindByExternalID(context.Context, string, string) (*model.StoredProperty, error) {
	return nil, nil
}
func (s *stubStore) FindByUPRN(context.Context, string) (*model.StoredProperty, error) {
	return nil, nil
}
func (s *stubStore) FindCandidates(context.Context, string) ([]model.StoredProperty, error) {
	return nil, nil
}
func (s *stubStore) Upsert(context.Context, model.Patch) (*model.StoredProperty, error) {
	return &model.StoredProperty{ID: "p1"}, nil
}
func (s *stubStore) CreateRun(context.Context) (*model.IngestionRun, error) {
	s.runCount++
	return &model.IngestionRun{ID: "r1", Status: model.RunStatusRunning, StartedAt: time.Now()}, nil
}
func (s *stubStore) CompleteRun(context.Context, *model.IngestionRun) error { return nil }
func (s *stubStore) ListRuns(context.Context, int) ([]model.IngestionRun, error) {
	return s.runs, s.listErr
}
func (s *stubStore) Migrate(context.Context) error { return nil }
func (s *stubStore) Close() error                  { return nil }

func testRouter(t *testing.T, st *stubStore) http.Handler {
	t.Helper()
	matcher, err := match.New(match.DefaultConfig())
	require.NoError(t, err)
	o := ingest.New(st, matcher, merge.NewPolicy(nil), nil, nil, nil, ingest.Options{})
	return newRouter(context.Background(), st, o)
}

func TestHealthEndpoint(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(testRouter(t, &stubStore{}))
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/health")
	require.NoError(t, err)
	defer resp.Body.Close() //nolint:errcheck
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var body map[string]string
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, "ok", body["status"])
}

func TestIngestEndpointAccepts(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(testRouter(t, &stubStore{}))
	defer srv.Close()

	resp, err := http.Post(srv.URL+"/ingest", "application/json", strings.NewReader(`{"source":"council_register"}`))
	require.NoError(t, err)
	defer resp.Body.Close() //nolint:errcheck
	assert.Equal(t, http.StatusAccepted, resp.StatusCode)
}

func TestIngestEndpointRejectsBadBody(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(testRouter(t, &stubStore{}))
	defer srv.Close()

	resp, err := http.Post(srv.URL+"/ingest", "application/json", strings.NewReader(`{`))
	require.NoError(t, err)
	defer resp.Body.Close() //nolint:errcheck
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestRunsEndpoint(t *testing.T) {
	t.Parallel()

	ended := time.Now().UTC()
	st := &stubStore{runs: []model.IngestionRun{
		{ID: "r1", Status: model.RunStatusComplete, StartedAt: ended.Add(-time.Minute), EndedAt: &ended},
	}}
	srv := httptest.NewServer(testRouter(t, st))
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/runs?limit=5")
	require.NoError(t, err)
	defer resp.Body.Close() //nolint:errcheck
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var runs []model.IngestionRun
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&runs))
	require.Len(t, runs, 1)
	assert.Equal(t, "r1", runs[0].ID)
}

func TestRunsEndpointInvalidLimit(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(testRouter(t, &stubStore{}))
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/runs?limit=banana")
	require.NoError(t, err)
	defer resp.Body.Close() //nolint:errcheck
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}
