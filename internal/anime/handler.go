package anime

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"animeranker/internal/catalogue"
	"animeranker/internal/jikan"
	"animeranker/internal/query"
	"animeranker/pkg/logging"
	"animeranker/pkg/models"
)

// Source is the upstream catalogue. *jikan.Client implements it.
type Source interface {
	TopAnime(ctx context.Context, page, limit int) (jikan.Page, error)
	Search(ctx context.Context, term string, page int) (jikan.Page, error)
	ByGenre(ctx context.Context, genreID, page int) (jikan.Page, error)
	Genres(ctx context.Context) ([]jikan.Genre, error)
}

type Handler struct {
	Catalogue *catalogue.Cache
	Source    Source
}

func NewHandler(cache *catalogue.Cache, src Source) *Handler {
	return &Handler{Catalogue: cache, Source: src}
}

func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("/genres", h.genres) // GET /api/genres

	a := rg.Group("/anime")
	a.GET("", h.list)                    // local catalogue view
	a.GET("/popular", h.popular)         // upstream top list
	a.GET("/search", h.search)           // upstream search
	a.GET("/genres/:genreId", h.byGenre) // upstream genre list
	a.GET("/ranking", h.ranking)         // scored entries, best first
	a.GET("/gems", h.gems)               // high score, few votes
	a.GET("/:id", h.getByID)
	a.PATCH("/:id", h.update)
}

func (h *Handler) popular(c *gin.Context) {
	page := parseInt(c.Query("page"), 1)
	limit := parseInt(c.Query("limit"), jikan.PageSize)

	res, err := h.Source.TopAnime(c.Request.Context(), page, limit)
	if err != nil {
		upstreamError(c, "popular", err)
		return
	}
	h.respondPage(c, res)
}

func (h *Handler) search(c *gin.Context) {
	q := strings.TrimSpace(c.Query("q"))
	if q == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "search query is required"})
		return
	}

	res, err := h.Source.Search(c.Request.Context(), q, parseInt(c.Query("page"), 1))
	if err != nil {
		upstreamError(c, "search", err)
		return
	}
	h.respondPage(c, res)
}

func (h *Handler) byGenre(c *gin.Context) {
	genreID, err := strconv.Atoi(c.Param("genreId"))
	if err != nil || genreID <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid genre id"})
		return
	}

	res, err := h.Source.ByGenre(c.Request.Context(), genreID, parseInt(c.Query("page"), 1))
	if err != nil {
		upstreamError(c, "genre", err)
		return
	}
	h.respondPage(c, res)
}

func (h *Handler) genres(c *gin.Context) {
	genres, err := h.Source.Genres(c.Request.Context())
	if err != nil {
		upstreamError(c, "genres", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": genres})
}

// respondPage caches the upstream entries and answers with the cached form,
// which carries the local ids.
func (h *Handler) respondPage(c *gin.Context, res jikan.Page) {
	items := h.Catalogue.UpsertAll(res.Items)
	c.JSON(http.StatusOK, gin.H{
		"data":       items,
		"pagination": res.Pagination,
	})
}

func (h *Handler) list(c *gin.Context) {
	lq := query.ListQuery{
		Q:      c.Query("q"),
		Limit:  parseInt(c.Query("limit"), query.DefaultLimit),
		Offset: parseInt(c.Query("offset"), 0),
		Criteria: query.Criteria{
			Genre:  strings.TrimSpace(c.Query("genre")),
			Status: strings.TrimSpace(c.Query("status")),
			Type:   strings.TrimSpace(c.Query("type")),
		},
	}

	if s := strings.TrimSpace(c.Query("minScore")); s != "" {
		v, err := strconv.ParseFloat(s, 64)
		if err != nil || v < 0 || v > 10 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "minScore must be a number between 0 and 10"})
			return
		}
		lq.Criteria.MinScore = &v
	}

	if s := c.Query("sort"); s != "" {
		key, ok := query.ParseSortKey(s)
		if !ok {
			c.JSON(http.StatusBadRequest, gin.H{"error": "sort must be one of popularity, rating, title, year"})
			return
		}
		lq.Sort = key
	}

	c.JSON(http.StatusOK, query.Run(h.Catalogue.List(), lq))
}

func (h *Handler) ranking(c *gin.Context) {
	ranked := query.Ranking(h.Catalogue.List())
	items, limit, offset := query.Page(ranked, parseInt(c.Query("limit"), query.DefaultLimit), parseInt(c.Query("offset"), 0))

	c.JSON(http.StatusOK, gin.H{
		"total":  len(ranked),
		"limit":  limit,
		"offset": offset,
		"data":   items,
	})
}

func (h *Handler) gems(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"data": query.HiddenGems(h.Catalogue.List())})
}

func (h *Handler) getByID(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	a, found := h.Catalogue.GetByID(id)
	if !found {
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": a})
}

func (h *Handler) update(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}

	var patch models.AnimePatch
	if err := c.ShouldBindJSON(&patch); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	if patch.Empty() {
		c.JSON(http.StatusBadRequest, gin.H{"error": "no fields to update"})
		return
	}
	if patch.Score != nil && (*patch.Score < 0 || *patch.Score > 10) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "score must be between 0 and 10"})
		return
	}

	a, err := h.Catalogue.Update(id, patch)
	if errors.Is(err, catalogue.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "update failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": a})
}

func parseID(c *gin.Context) (int, bool) {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return 0, false
	}
	return id, true
}

func upstreamError(c *gin.Context, op string, err error) {
	logging.Error().Err(err).Str("op", op).Msg("[anime] upstream call failed")

	switch {
	case errors.Is(err, jikan.ErrUnavailable):
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "anime source temporarily unavailable"})
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		c.JSON(http.StatusGatewayTimeout, gin.H{"error": "anime source timed out"})
	default:
		c.JSON(http.StatusBadGateway, gin.H{"error": "failed to fetch from anime source"})
	}
}

func parseInt(s string, def int) int {
	s = strings.TrimSpace(s)
	if s == "" {
		return def
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return def
	}
	return n
}
