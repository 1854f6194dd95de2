package jikan

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"animeranker/internal/metrics"
)

const topPayload = `{
  "pagination": {"last_visible_page": 40, "has_next_page": true, "current_page": 1},
  "data": [
    {
      "mal_id": 5114,
      "title": "Fullmetal Alchemist: Brotherhood",
      "title_english": "Fullmetal Alchemist: Brotherhood",
      "genres": [{"mal_id": 1, "name": "Action"}, {"mal_id": 2, "name": "Adventure"}],
      "synopsis": "Two brothers...",
      "images": {"jpg": {"image_url": "https://cdn.example/5114.jpg"}},
      "episodes": 64,
      "status": "Finished Airing",
      "aired": {"string": "Apr 5, 2009 to Jul 4, 2010"},
      "score": 9.1,
      "scored_by": 2200000,
      "type": "TV",
      "year": 2009
    },
    {
      "mal_id": 99999,
      "title": "Untitled Project",
      "title_english": null,
      "genres": [],
      "synopsis": null,
      "images": {"jpg": {"image_url": ""}},
      "episodes": null,
      "status": "Not yet aired",
      "aired": {"string": "?"},
      "score": 0,
      "scored_by": null,
      "type": null,
      "year": null
    }
  ]
}`

type upstream struct {
	*httptest.Server
	hits    atomic.Int32
	lastURL atomic.Value
}

func newUpstream(t *testing.T, handler http.HandlerFunc) *upstream {
	t.Helper()
	u := &upstream{}
	u.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		u.hits.Add(1)
		u.lastURL.Store(r.URL.String())
		handler(w, r)
	}))
	t.Cleanup(u.Close)
	return u
}

func newTestClient(t *testing.T, baseURL string, ttl time.Duration, m *metrics.Metrics) *Client {
	t.Helper()
	c, err := New(Config{BaseURL: baseURL, Timeout: 2 * time.Second, Rate: 1000, Burst: 100, CacheTTL: ttl}, m)
	require.NoError(t, err)
	t.Cleanup(c.Close)
	return c
}

func jsonBody(body string) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(body))
	}
}

func TestTopAnime_MapsPayload(t *testing.T) {
	up := newUpstream(t, jsonBody(topPayload))
	c := newTestClient(t, up.URL, 0, nil)

	page, err := c.TopAnime(context.Background(), 2, 10)
	require.NoError(t, err)
	assert.Equal(t, "/top/anime?limit=10&page=2&type=tv", up.lastURL.Load())

	require.Len(t, page.Items, 2)
	assert.True(t, page.Pagination.HasNextPage)

	fma := page.Items[0]
	assert.Equal(t, 5114, fma.MalID)
	assert.Equal(t, 0, fma.ID, "ids are assigned by the catalogue")
	assert.Equal(t, []string{"Action", "Adventure"}, fma.Genres)
	assert.Equal(t, "https://cdn.example/5114.jpg", fma.ImageURL)
	assert.Equal(t, "Apr 5, 2009 to Jul 4, 2010", fma.Aired)
	require.NotNil(t, fma.Score)
	assert.Equal(t, 9.1, *fma.Score)
	assert.Equal(t, 2200000, fma.ScoredByOrZero())
	assert.Equal(t, 2009, fma.YearOrZero())
	assert.Equal(t, "TV", fma.Type)

	bare := page.Items[1]
	assert.Empty(t, bare.EnglishTitle)
	assert.NotNil(t, bare.Genres)
	assert.Empty(t, bare.Genres)
	assert.Nil(t, bare.Score, "zero score means unscored")
	assert.Nil(t, bare.ScoredBy)
	assert.Nil(t, bare.Episodes)
	assert.Nil(t, bare.Year)
}

func TestTopAnime_ClampsLimit(t *testing.T) {
	up := newUpstream(t, jsonBody(`{"data": []}`))
	c := newTestClient(t, up.URL, 0, nil)

	page, err := c.TopAnime(context.Background(), 0, 500)
	require.NoError(t, err)
	assert.Empty(t, page.Items)
	assert.Equal(t, "/top/anime?limit=24&page=1&type=tv", up.lastURL.Load())
}

func TestSearchAndByGenre_Queries(t *testing.T) {
	up := newUpstream(t, jsonBody(`{"data": []}`))
	c := newTestClient(t, up.URL, 0, nil)

	_, err := c.Search(context.Background(), "cowboy bebop", 3)
	require.NoError(t, err)
	assert.Equal(t, "/anime?limit=24&page=3&q=cowboy+bebop", up.lastURL.Load())

	_, err = c.ByGenre(context.Background(), 22, 1)
	require.NoError(t, err)
	assert.Equal(t, "/anime?genres=22&limit=24&page=1", up.lastURL.Load())
}

func TestGenres(t *testing.T) {
	up := newUpstream(t, jsonBody(`{"data": [{"mal_id": 1, "name": "Action", "url": "https://myanimelist.net/anime/genre/1/Action", "count": 5000}]}`))
	c := newTestClient(t, up.URL, 0, nil)

	genres, err := c.Genres(context.Background())
	require.NoError(t, err)
	require.Len(t, genres, 1)
	assert.Equal(t, Genre{MalID: 1, Name: "Action", URL: "https://myanimelist.net/anime/genre/1/Action", Count: 5000}, genres[0])
	assert.Equal(t, "/genres/anime", up.lastURL.Load())
}

func TestCache_ServesRepeatRequests(t *testing.T) {
	up := newUpstream(t, jsonBody(topPayload))
	m := metrics.New()
	c := newTestClient(t, up.URL, time.Minute, m)

	for i := 0; i < 3; i++ {
		page, err := c.Search(context.Background(), "fullmetal", 1)
		require.NoError(t, err)
		require.Len(t, page.Items, 2)
	}
	assert.Equal(t, int32(1), up.hits.Load())
	assert.Equal(t, 2.0, testutil.ToFloat64(m.JikanRequests.WithLabelValues("search", metrics.OutcomeCacheHit)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.JikanRequests.WithLabelValues("search", metrics.OutcomeOK)))

	// different query, different key
	_, err := c.Search(context.Background(), "fullmetal", 2)
	require.NoError(t, err)
	assert.Equal(t, int32(2), up.hits.Load())
}

func TestStatusError(t *testing.T) {
	up := newUpstream(t, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})
	c := newTestClient(t, up.URL, time.Minute, nil)

	_, err := c.ByGenre(context.Background(), 12345, 1)
	require.Error(t, err)

	var se *StatusError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, http.StatusNotFound, se.Code)
	assert.Equal(t, "/anime", se.Path)

	// failures are not cached
	_, _ = c.ByGenre(context.Background(), 12345, 1)
	assert.Equal(t, int32(2), up.hits.Load())
}

func TestBreaker_OpensOnRepeatedServerErrors(t *testing.T) {
	up := newUpstream(t, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	})
	m := metrics.New()
	c := newTestClient(t, up.URL, 0, m)

	for i := 0; i < 5; i++ {
		_, err := c.TopAnime(context.Background(), 1, 24)
		require.Error(t, err)
		assert.False(t, errors.Is(err, ErrUnavailable))
	}

	_, err := c.TopAnime(context.Background(), 1, 24)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrUnavailable))
	assert.Equal(t, int32(5), up.hits.Load())
	assert.Equal(t, 1.0, testutil.ToFloat64(m.JikanRequests.WithLabelValues("top", metrics.OutcomeBreakerOpen)))
}

func TestBreaker_IgnoresClientErrors(t *testing.T) {
	up := newUpstream(t, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
	})
	c := newTestClient(t, up.URL, 0, nil)

	for i := 0; i < 8; i++ {
		_, err := c.Search(context.Background(), "x", 1)
		require.Error(t, err)
		assert.False(t, errors.Is(err, ErrUnavailable))
	}
	assert.Equal(t, int32(8), up.hits.Load())
}

func TestDecodeError(t *testing.T) {
	up := newUpstream(t, jsonBody(`{"data": [`))
	c := newTestClient(t, up.URL, 0, nil)

	_, err := c.TopAnime(context.Background(), 1, 24)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "decode top")
}

func TestCanceledContext(t *testing.T) {
	up := newUpstream(t, jsonBody(`{"data": []}`))
	c := newTestClient(t, up.URL, 0, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := c.Genres(ctx)
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.Canceled))
}
