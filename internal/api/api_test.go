package api

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noface-00/prims/internal/analysis"
	"github.com/noface-00/prims/internal/model"
	"github.com/noface-00/prims/internal/store"
)

type stubService struct {
	snaps    map[string]*model.Snapshot
	analyzed []string
	statsErr error
}

func (s *stubService) Analyze(_ context.Context, id string) (*model.Snapshot, error) {
	if strings.TrimSpace(id) == "" {
		return nil, &model.ValidationError{Field: "product_id", Message: "must not be empty"}
	}
	if id == "down" {
		return nil, fmt.Errorf("resolve product: %w", model.ErrUnavailable)
	}
	snap, ok := s.snaps[id]
	if !ok {
		return nil, fmt.Errorf("resolve product %s: %w", id, model.ErrNotFound)
	}
	s.analyzed = append(s.analyzed, id)
	return snap, nil
}

func (s *stubService) Latest(_ context.Context, id string) (*model.Snapshot, error) {
	if snap, ok := s.snaps[id]; ok {
		return snap, nil
	}
	return nil, model.ErrNotFound
}

func (s *stubService) GeneralStats(context.Context) (model.GeneralStats, error) {
	if s.statsErr != nil {
		return model.GeneralStats{}, s.statsErr
	}
	return model.GeneralStats{
		TotalAnalyzed:      2,
		AvgPriceDifference: -3.5,
		Daily:              []model.DailyCount{{Date: "2025-06-15", Count: 2}},
	}, nil
}

func (s *stubService) SimilarListings(_ context.Context, name string) (*analysis.Similar, error) {
	if name == "" {
		return nil, &model.ValidationError{Field: "name", Message: "must not be empty"}
	}
	return &analysis.Similar{
		Query:    name,
		Cheapest: []analysis.SimilarItem{{Title: "a", Price: 10}},
		Priciest: []analysis.SimilarItem{{Title: "b", Price: 90}},
	}, nil
}

func newTestRouter(t *testing.T) (*stubService, *store.MemoryStore, http.Handler) {
	t.Helper()

	snap := &model.Snapshot{
		ProductID:   "v1|111|0",
		ProductName: "Nintendo Switch OLED",
		PriceActual: 95,
		TrustScore:  87.5,
		Alert:       model.AlertResult{Alert: model.AlertFair},
		Timestamp:   time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC),
	}
	svc := &stubService{snaps: map[string]*model.Snapshot{snap.ProductID: snap}}

	mem := store.NewMemoryStore()
	require.NoError(t, mem.Upsert(context.Background(), snap))

	metrics := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, "prims_analyses_total 1\n")
	})
	return svc, mem, NewRouter(svc, mem, metrics, zerolog.Nop())
}

func do(h http.Handler, method, target string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(method, target, nil))
	return rec
}

func TestAnalyzeRoute(t *testing.T) {
	svc, _, r := newTestRouter(t)

	rec := do(r, http.MethodPost, "/api/analysis/"+url.PathEscape("v1|111|0"))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var snap model.Snapshot
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &snap))
	assert.Equal(t, "v1|111|0", snap.ProductID)
	assert.Equal(t, 87.5, snap.TrustScore)
	assert.Equal(t, []string{"v1|111|0"}, svc.analyzed)
}

func TestAnalyzeRoute_Errors(t *testing.T) {
	_, _, r := newTestRouter(t)

	tests := []struct {
		target string
		status int
	}{
		{"/api/analysis/unknown", http.StatusNotFound},
		{"/api/analysis/down", http.StatusServiceUnavailable},
		{"/api/analysis/%20", http.StatusBadRequest},
	}
	for _, tt := range tests {
		rec := do(r, http.MethodPost, tt.target)
		assert.Equal(t, tt.status, rec.Code, tt.target)
		assert.Contains(t, rec.Body.String(), `"error"`)
	}
}

func TestLatestRoute(t *testing.T) {
	svc, _, r := newTestRouter(t)

	rec := do(r, http.MethodGet, "/api/analysis/"+url.PathEscape("v1|111|0"))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, svc.analyzed, "reading the latest analysis must not run one")

	rec = do(r, http.MethodGet, "/api/analysis/other")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestStatsRoute(t *testing.T) {
	svc, _, r := newTestRouter(t)

	rec := do(r, http.MethodGet, "/api/stats")
	require.Equal(t, http.StatusOK, rec.Code)

	var gs model.GeneralStats
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &gs))
	assert.Equal(t, int64(2), gs.TotalAnalyzed)
	assert.Len(t, gs.Daily, 1)

	svc.statsErr = fmt.Errorf("general statistics: %w", model.ErrUnavailable)
	rec = do(r, http.MethodGet, "/api/stats")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestSimilarRoute(t *testing.T) {
	_, _, r := newTestRouter(t)

	rec := do(r, http.MethodGet, "/api/similar?q="+url.QueryEscape("switch oled"))
	require.Equal(t, http.StatusOK, rec.Code)

	var res analysis.Similar
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res))
	assert.Equal(t, "switch oled", res.Query)
	assert.Len(t, res.Cheapest, 1)

	rec = do(r, http.MethodGet, "/api/similar")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestExportRoute(t *testing.T) {
	_, _, r := newTestRouter(t)

	rec := do(r, http.MethodGet, "/api/export")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Type"), "text/csv")

	records, err := csv.NewReader(rec.Body).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, "v1|111|0", records[1][0])

	rec = do(r, http.MethodGet, "/api/export?format=xlsx&limit=5")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, strings.HasPrefix(rec.Body.String(), "PK"), "xlsx is a zip archive")

	assert.Equal(t, http.StatusBadRequest, do(r, http.MethodGet, "/api/export?format=pdf").Code)
	assert.Equal(t, http.StatusBadRequest, do(r, http.MethodGet, "/api/export?limit=0").Code)
}

func TestExportRoute_NoSource(t *testing.T) {
	r := NewRouter(&stubService{}, nil, nil, zerolog.Nop())
	assert.Equal(t, http.StatusServiceUnavailable, do(r, http.MethodGet, "/api/export").Code)
	assert.Equal(t, http.StatusNotFound, do(r, http.MethodGet, "/metrics").Code)
}

func TestHealthAndMetrics(t *testing.T) {
	_, _, r := newTestRouter(t)

	rec := do(r, http.MethodGet, "/health")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())

	rec = do(r, http.MethodGet, "/metrics")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "prims_analyses_total")
}

func TestStatusFor(t *testing.T) {
	assert.Equal(t, http.StatusBadRequest, StatusFor(&model.ValidationError{Field: "x"}))
	assert.Equal(t, http.StatusNotFound, StatusFor(fmt.Errorf("wrap: %w", model.ErrNotFound)))
	assert.Equal(t, http.StatusServiceUnavailable, StatusFor(model.ErrUnavailable))
	assert.Equal(t, http.StatusGatewayTimeout, StatusFor(context.DeadlineExceeded))
	assert.Equal(t, http.StatusInternalServerError, StatusFor(errors.New("boom")))
}
