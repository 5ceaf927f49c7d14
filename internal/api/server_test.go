package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/JakeFAU/cardimg-scraper/internal/batch"
	"github.com/JakeFAU/cardimg-scraper/internal/config"
	"github.com/JakeFAU/cardimg-scraper/internal/ingest"
	"github.com/JakeFAU/cardimg-scraper/internal/store"
	"github.com/JakeFAU/cardimg-scraper/internal/validate"
)

type mockProgress struct {
	batches   map[string]batch.Batch
	createErr error
	getErr    error
	created   []string
}

func (m *mockProgress) CreateBatch(_ context.Context, batchID string, itemKeys []string, expiresAt time.Time) error {
	if m.createErr != nil {
		return m.createErr
	}
	m.created = append(m.created, batchID)
	return nil
}

func (m *mockProgress) SetItemStatus(context.Context, string, string, batch.ItemStatus) error {
	return nil
}

func (m *mockProgress) GetBatch(_ context.Context, batchID string) (batch.Batch, error) {
	if m.getErr != nil {
		return batch.Batch{}, m.getErr
	}
	b, ok := m.batches[batchID]
	if !ok {
		return batch.Batch{}, store.ErrNotFound
	}
	return b, nil
}

func (m *mockProgress) DeleteExpired(context.Context) (int64, error) { return 0, nil }

type mockQueue struct {
	items []batch.WorkItem
}

func (m *mockQueue) Publish(_ context.Context, item batch.WorkItem) error {
	m.items = append(m.items, item)
	return nil
}

func (m *mockQueue) Receive(context.Context, func(context.Context, []batch.WorkItem) error) error {
	return nil
}

type staticID struct{}

func (staticID) NewID() (string, error) { return "0190e0a0-0000-7000-8000-000000000001", nil }

type staticClock struct{}

func (staticClock) Now() time.Time { return time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC) }

func newTestServer(progress *mockProgress, cfg config.Config) *Server {
	ingester := ingest.New(
		validate.New([]string{"scryfall.com"}),
		progress,
		&mockQueue{},
		staticID{},
		staticClock{},
		30*24*time.Hour,
		zap.NewNop(),
	)
	return NewServer(ingester, progress, cfg, zap.NewNop())
}

func TestSubmitBatchAccepted(t *testing.T) {
	t.Parallel()

	progress := &mockProgress{batches: map[string]batch.Batch{}}
	srv := newTestServer(progress, config.Config{})

	body := "Card Page URI\nhttps://scryfall.com/card/abc\n"
	req := httptest.NewRequest(http.MethodPost, "/v1/batches", strings.NewReader(body))
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	require.Equal(t, http.StatusAccepted, rec.Code)
	var resp map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.NotEmpty(t, resp["batchId"])
	require.Len(t, progress.created, 1)
}

func TestSubmitBatchValidationFailure(t *testing.T) {
	t.Parallel()

	progress := &mockProgress{batches: map[string]batch.Batch{}}
	srv := newTestServer(progress, config.Config{})

	body := "Card Page URI\nhttp://scryfall.com/card/abc\n"
	req := httptest.NewRequest(http.MethodPost, "/v1/batches", strings.NewReader(body))
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	require.Equal(t, http.StatusBadRequest, rec.Code)
	var report validate.Report
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &report))
	require.Equal(t, []string{"uri must begin with https"}, report.RowErrors[2])
	require.Empty(t, progress.created)
}

func TestSubmitBatchEmptyBody(t *testing.T) {
	t.Parallel()

	srv := newTestServer(&mockProgress{batches: map[string]batch.Batch{}}, config.Config{})

	req := httptest.NewRequest(http.MethodPost, "/v1/batches", strings.NewReader(""))
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	require.Equal(t, http.StatusBadRequest, rec.Code)
	var report validate.Report
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &report))
	require.Equal(t, "Request body missing or inaccessible", report.BodyError)
}

func TestSubmitBatchStoreFailureIsRedacted(t *testing.T) {
	t.Parallel()

	progress := &mockProgress{createErr: errors.New("pg: connection refused")}
	srv := newTestServer(progress, config.Config{})

	body := "Card Page URI\nhttps://scryfall.com/card/abc\n"
	req := httptest.NewRequest(http.MethodPost, "/v1/batches", strings.NewReader(body))
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	require.Equal(t, http.StatusInternalServerError, rec.Code)
	require.JSONEq(t, `{"error":"internal server error"}`, rec.Body.String())
	require.NotContains(t, rec.Body.String(), "connection refused")
}

func TestGetBatchFound(t *testing.T) {
	t.Parallel()

	expires := time.Date(2026, 9, 1, 0, 0, 0, 0, time.UTC)
	progress := &mockProgress{batches: map[string]batch.Batch{
		"batch-1": {
			ID: "batch-1",
			Progress: batch.ProgressDocument{
				"https://scryfall.com/card/abc": batch.StatusSuccess,
			},
			ExpiresAt: expires,
		},
	}}
	srv := newTestServer(progress, config.Config{})

	req := httptest.NewRequest(http.MethodGet, "/v1/batches/batch-1", nil)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var resp map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Equal(t, "batch-1", resp["batchId"])
	doc, ok := resp["progress"].(map[string]any)
	require.True(t, ok)
	require.Equal(t, "SUCCESS", doc["https://scryfall.com/card/abc"])
}

func TestGetBatchResponseShape(t *testing.T) {
	t.Parallel()

	progress := &mockProgress{batches: map[string]batch.Batch{
		"batch-1": {
			ID: "batch-1",
			Progress: batch.ProgressDocument{
				"https://scryfall.com/card/abc": batch.StatusPending,
			},
			ExpiresAt: time.Date(2026, 9, 1, 0, 0, 0, 0, time.UTC),
		},
	}}
	srv := newTestServer(progress, config.Config{})

	req := httptest.NewRequest(http.MethodGet, "/v1/batches/batch-1", nil)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var resp map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	// Exactly the query shape: the persisted layout's keys stay internal.
	require.ElementsMatch(t, []string{"batchId", "progress"}, keysOf(resp))
}

func keysOf(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	return keys
}

func TestGetBatchNotFound(t *testing.T) {
	t.Parallel()

	srv := newTestServer(&mockProgress{batches: map[string]batch.Batch{}}, config.Config{})

	req := httptest.NewRequest(http.MethodGet, "/v1/batches/unknown", nil)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestGetBatchStoreError(t *testing.T) {
	t.Parallel()

	progress := &mockProgress{getErr: store.ErrUnavailable}
	srv := newTestServer(progress, config.Config{})

	req := httptest.NewRequest(http.MethodGet, "/v1/batches/batch-1", nil)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	require.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestHealthz(t *testing.T) {
	t.Parallel()

	srv := newTestServer(&mockProgress{batches: map[string]batch.Batch{}}, config.Config{})

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
}

func TestReadyzUnavailableStore(t *testing.T) {
	t.Parallel()

	progress := &mockProgress{getErr: store.ErrUnavailable}
	srv := newTestServer(progress, config.Config{})

	req := httptest.NewRequest(http.MethodGet, "/readyz", nil)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestAPIKeyMiddleware(t *testing.T) {
	t.Parallel()

	cfg := config.Config{}
	cfg.Auth.Enabled = true
	cfg.Auth.APIKey = "secret"
	srv := newTestServer(&mockProgress{batches: map[string]batch.Batch{}}, cfg)

	req := httptest.NewRequest(http.MethodGet, "/v1/batches/some-id", nil)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	require.Equal(t, http.StatusForbidden, rec.Code)

	req = httptest.NewRequest(http.MethodGet, "/v1/batches/some-id", nil)
	req.Header.Set("X-API-Key", "secret")
	rec = httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	require.Equal(t, http.StatusNotFound, rec.Code)

	// Health stays open without a key.
	req = httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec = httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
}
