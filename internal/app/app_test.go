package app

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"animeranker/internal/jikan"
	"animeranker/pkg/database"
	"animeranker/pkg/models"
	"animeranker/pkg/utils"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type stubSource struct{ items []models.Anime }

func (s stubSource) TopAnime(context.Context, int, int) (jikan.Page, error) {
	return jikan.Page{Items: s.items}, nil
}
func (s stubSource) Search(context.Context, string, int) (jikan.Page, error) {
	return jikan.Page{Items: s.items}, nil
}
func (s stubSource) ByGenre(context.Context, int, int) (jikan.Page, error) {
	return jikan.Page{Items: s.items}, nil
}
func (s stubSource) Genres(context.Context) ([]jikan.Genre, error) {
	return []jikan.Genre{}, nil
}

func f64(v float64) *float64 { return &v }
func intp(v int) *int        { return &v }

func scenarioSource() stubSource {
	return stubSource{items: []models.Anime{
		{MalID: 1, Title: "Alpha", Score: f64(7.5), ScoredBy: intp(100), Genres: []string{}},
		{MalID: 2, Title: "Beta", Score: f64(9.0), ScoredBy: intp(40000), Genres: []string{}},
	}}
}

func newTestApp(t *testing.T, driver string) *App {
	t.Helper()
	cfg := utils.DefaultConfig()
	cfg.Store.Driver = driver
	cfg.Store.DSN = database.MemoryDSN("")

	a, err := New(cfg, WithSource(scenarioSource()))
	require.NoError(t, err)
	t.Cleanup(func() { _ = a.Close() })
	return a
}

func call(t *testing.T, h http.Handler, method, path, body, token string) *httptest.ResponseRecorder {
	t.Helper()
	var rd io.Reader
	if body != "" {
		rd = bytes.NewBufferString(body)
	}
	req := httptest.NewRequest(method, path, rd)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func TestScenario_EndToEnd(t *testing.T) {
	for _, driver := range []string{"memory", "sqlite"} {
		t.Run(driver, func(t *testing.T) {
			a := newTestApp(t, driver)
			r := a.Router()

			require.Equal(t, http.StatusOK, call(t, r, http.MethodGet, "/api/anime/popular", "", "").Code)
			assert.Equal(t, 2, a.Catalogue.Len())

			var list struct{ Data []models.Anime }
			w := call(t, r, http.MethodGet, "/api/anime?sort=rating", "", "")
			require.Equal(t, http.StatusOK, w.Code)
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &list))
			require.Len(t, list.Data, 2)
			assert.Equal(t, "Beta", list.Data[0].Title)
			assert.Equal(t, "Alpha", list.Data[1].Title)

			tok, _, err := a.Tokens.Sign("u1")
			require.NoError(t, err)
			w = call(t, r, http.MethodPost, "/api/ratings", `{"animeId": 2, "rating": 9}`, tok)
			require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

			var st struct{ Data models.UserStats }
			w = call(t, r, http.MethodGet, "/api/stats?userId=u1", "", "")
			require.Equal(t, http.StatusOK, w.Code)
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &st))
			assert.Equal(t, 1, st.Data.TotalRated)
			assert.Equal(t, 9.0, st.Data.AverageRating)
			assert.Equal(t, 1, st.Data.Favorites)

			// the pseudo-user saw nothing
			w = call(t, r, http.MethodGet, "/api/stats", "", "")
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &st))
			assert.Equal(t, 0, st.Data.TotalRated)
		})
	}
}

func TestHealthReadyMetrics(t *testing.T) {
	a := newTestApp(t, "sqlite")
	r := a.Router()

	w := call(t, r, http.MethodGet, "/health", "", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"ok","store":"sqlite","catalogue":0}`, w.Body.String())

	w = call(t, r, http.MethodGet, "/ready", "", "")
	assert.Equal(t, http.StatusOK, w.Code)

	call(t, r, http.MethodGet, "/api/anime/popular", "", "")
	w = call(t, r, http.MethodGet, "/metrics", "", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "animeranker_catalogue_entries 2")
	assert.Contains(t, w.Body.String(), `animeranker_http_requests_total{method="GET",route="/api/anime/popular",status="200"} 1`)
}

func TestReady_FailsWhenDatabaseClosed(t *testing.T) {
	a := newTestApp(t, "sqlite")
	r := a.Router()
	require.NoError(t, a.db.Close())

	w := call(t, r, http.MethodGet, "/ready", "", "")
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestRouter_UnknownRouteAndBadToken(t *testing.T) {
	a := newTestApp(t, "memory")
	r := a.Router()

	w := call(t, r, http.MethodGet, "/api/nothing-here", "", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.JSONEq(t, `{"error":"not found"}`, w.Body.String())

	w = call(t, r, http.MethodGet, "/api/ratings", "", "bogus")
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestNew_UnknownDriver(t *testing.T) {
	cfg := utils.DefaultConfig()
	cfg.Store.Driver = "postgres"
	_, err := New(cfg, WithSource(scenarioSource()))
	assert.Error(t, err)
}

func TestWarmup_FillsCatalogue(t *testing.T) {
	a := newTestApp(t, "memory")

	added, err := a.Warmup(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, added)
	assert.Equal(t, 2, a.Catalogue.Len())
}
