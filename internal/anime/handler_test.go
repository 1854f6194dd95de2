package anime

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"animeranker/internal/catalogue"
	"animeranker/internal/jikan"
	"animeranker/pkg/models"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type fakeSource struct {
	page    jikan.Page
	genres  []jikan.Genre
	err     error
	lastQ   string
	lastGID int
	calls   int
}

func (f *fakeSource) TopAnime(_ context.Context, _, _ int) (jikan.Page, error) {
	f.calls++
	return f.page, f.err
}

func (f *fakeSource) Search(_ context.Context, term string, _ int) (jikan.Page, error) {
	f.calls++
	f.lastQ = term
	return f.page, f.err
}

func (f *fakeSource) ByGenre(_ context.Context, genreID, _ int) (jikan.Page, error) {
	f.calls++
	f.lastGID = genreID
	return f.page, f.err
}

func (f *fakeSource) Genres(context.Context) ([]jikan.Genre, error) {
	f.calls++
	return f.genres, f.err
}

func f64(v float64) *float64 { return &v }
func intp(v int) *int        { return &v }

func samplePage() jikan.Page {
	return jikan.Page{Items: []models.Anime{
		{MalID: 1, Title: "Alpha", Score: f64(7.5), ScoredBy: intp(100), Genres: []string{"Drama"}, Status: "Finished Airing", Type: "TV"},
		{MalID: 2, Title: "Beta", Score: f64(9.0), ScoredBy: intp(40000), Genres: []string{"Action"}, Status: "Finished Airing", Type: "TV"},
		{MalID: 3, Title: "Gamma", Genres: []string{"Action"}, Status: "Not yet aired", Type: "Movie"},
	}}
}

func setup(src *fakeSource) (*gin.Engine, *catalogue.Cache) {
	cache := catalogue.New()
	r := gin.New()
	NewHandler(cache, src).RegisterRoutes(r.Group("/api"))
	return r, cache
}

func do(r *gin.Engine, method, path string, body any) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

type listBody struct {
	Data   []models.Anime `json:"data"`
	Total  int            `json:"total"`
	Limit  int            `json:"limit"`
	Offset int            `json:"offset"`
	Error  string         `json:"error"`
}

func decode(t *testing.T, w *httptest.ResponseRecorder) listBody {
	t.Helper()
	var b listBody
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &b), w.Body.String())
	return b
}

func titles(list []models.Anime) []string {
	out := make([]string, 0, len(list))
	for _, a := range list {
		out = append(out, a.Title)
	}
	return out
}

func TestPopular_CachesIntoCatalogue(t *testing.T) {
	src := &fakeSource{page: samplePage()}
	r, cache := setup(src)

	w := do(r, http.MethodGet, "/api/anime/popular", nil)
	require.Equal(t, http.StatusOK, w.Code)
	b := decode(t, w)
	require.Len(t, b.Data, 3)
	assert.Equal(t, 1, b.Data[0].ID)
	assert.Equal(t, 3, cache.Len())

	// a second fetch does not duplicate entries
	do(r, http.MethodGet, "/api/anime/popular", nil)
	assert.Equal(t, 3, cache.Len())
}

func TestSearch(t *testing.T) {
	src := &fakeSource{page: samplePage()}
	r, cache := setup(src)

	w := do(r, http.MethodGet, "/api/anime/search?q=%20%20", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, 0, src.calls)

	w = do(r, http.MethodGet, "/api/anime/search?q=beta", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "beta", src.lastQ)
	assert.Equal(t, 3, cache.Len())
}

func TestByGenre(t *testing.T) {
	src := &fakeSource{page: samplePage()}
	r, _ := setup(src)

	assert.Equal(t, http.StatusBadRequest, do(r, http.MethodGet, "/api/anime/genres/abc", nil).Code)

	w := do(r, http.MethodGet, "/api/anime/genres/22?page=2", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 22, src.lastGID)
}

func TestGenres(t *testing.T) {
	src := &fakeSource{genres: []jikan.Genre{{MalID: 1, Name: "Action", Count: 10}}}
	r, _ := setup(src)

	w := do(r, http.MethodGet, "/api/genres", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"name":"Action"`)
}

func TestUpstreamErrors(t *testing.T) {
	tests := []struct {
		err  error
		code int
	}{
		{&jikan.StatusError{Code: 500, Path: "/top/anime"}, http.StatusBadGateway},
		{fmt.Errorf("%w: open", jikan.ErrUnavailable), http.StatusServiceUnavailable},
		{fmt.Errorf("jikan request: %w", context.DeadlineExceeded), http.StatusGatewayTimeout},
		{errors.New("boom"), http.StatusBadGateway},
	}
	for _, tt := range tests {
		src := &fakeSource{err: tt.err}
		r, cache := setup(src)

		w := do(r, http.MethodGet, "/api/anime/popular", nil)
		assert.Equal(t, tt.code, w.Code, tt.err.Error())
		assert.NotEmpty(t, decode(t, w).Error)
		assert.Equal(t, 0, cache.Len())
	}
}

func TestList_FiltersSortsAndPages(t *testing.T) {
	r, cache := setup(&fakeSource{})
	cache.UpsertAll(samplePage().Items)

	b := decode(t, do(r, http.MethodGet, "/api/anime?sort=rating", nil))
	assert.Equal(t, []string{"Beta", "Alpha", "Gamma"}, titles(b.Data))
	assert.Equal(t, 3, b.Total)

	b = decode(t, do(r, http.MethodGet, "/api/anime?genre=Action&sort=title", nil))
	assert.Equal(t, []string{"Beta", "Gamma"}, titles(b.Data))

	b = decode(t, do(r, http.MethodGet, "/api/anime?minScore=8", nil))
	assert.Equal(t, []string{"Beta"}, titles(b.Data))

	b = decode(t, do(r, http.MethodGet, "/api/anime?type=TV&limit=1&offset=1", nil))
	assert.Equal(t, []string{"Beta"}, titles(b.Data))
	assert.Equal(t, 2, b.Total)
	assert.Equal(t, 1, b.Limit)
	assert.Equal(t, 1, b.Offset)

	b = decode(t, do(r, http.MethodGet, "/api/anime?q=GAM", nil))
	assert.Equal(t, []string{"Gamma"}, titles(b.Data))

	assert.Equal(t, http.StatusBadRequest, do(r, http.MethodGet, "/api/anime?sort=votes", nil).Code)
	assert.Equal(t, http.StatusBadRequest, do(r, http.MethodGet, "/api/anime?minScore=high", nil).Code)
}

func TestRankingAndGems(t *testing.T) {
	r, cache := setup(&fakeSource{})
	cache.UpsertAll(samplePage().Items)

	b := decode(t, do(r, http.MethodGet, "/api/anime/ranking", nil))
	assert.Equal(t, []string{"Beta", "Alpha"}, titles(b.Data))
	assert.Equal(t, 2, b.Total)

	b = decode(t, do(r, http.MethodGet, "/api/anime/gems", nil))
	assert.Equal(t, []string{"Beta"}, titles(b.Data))
}

func TestGetAndPatch(t *testing.T) {
	r, cache := setup(&fakeSource{})
	cache.UpsertAll(samplePage().Items)

	w := do(r, http.MethodGet, "/api/anime/2", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"title":"Beta"`)

	assert.Equal(t, http.StatusNotFound, do(r, http.MethodGet, "/api/anime/99", nil).Code)
	assert.Equal(t, http.StatusBadRequest, do(r, http.MethodGet, "/api/anime/zero", nil).Code)

	w = do(r, http.MethodPatch, "/api/anime/2", map[string]any{"synopsis": "Edited", "score": 8.8})
	require.Equal(t, http.StatusOK, w.Code)
	got, ok := cache.GetByID(2)
	require.True(t, ok)
	assert.Equal(t, "Edited", got.Synopsis)
	assert.Equal(t, 8.8, got.ScoreOrZero())
	assert.Equal(t, "Beta", got.Title)
	assert.Equal(t, 2, got.MalID)

	assert.Equal(t, http.StatusBadRequest, do(r, http.MethodPatch, "/api/anime/2", map[string]any{}).Code)
	assert.Equal(t, http.StatusBadRequest, do(r, http.MethodPatch, "/api/anime/2", map[string]any{"score": 11}).Code)
	assert.Equal(t, http.StatusNotFound, do(r, http.MethodPatch, "/api/anime/42", map[string]any{"title": "x"}).Code)
}
