package ratings

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"animeranker/internal/auth"
	"animeranker/internal/metrics"
	"animeranker/pkg/logging"
	"animeranker/pkg/models"
)

type Handler struct {
	Store   Store
	Metrics *metrics.Metrics
}

func NewHandler(store Store, m *metrics.Metrics) *Handler {
	return &Handler{Store: store, Metrics: m}
}

func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("/ratings", h.listByUser)                       // GET /api/ratings?userId=
	rg.GET("/ratings/subject/:subjectId", h.listBySubject) // GET /api/ratings/subject/5114
	rg.POST("/ratings", h.submit)
}

func (h *Handler) listByUser(c *gin.Context) {
	list, err := h.Store.ListByUser(c.Request.Context(), auth.RequestUser(c))
	if err != nil {
		logging.Error().Err(err).Msg("[ratings] list by user failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to fetch ratings"})
		return
	}

	// animeId -> rating, keyed as strings in JSON
	byAnime := make(map[int]int, len(list))
	for _, r := range list {
		byAnime[r.AnimeID] = r.Rating
	}
	c.JSON(http.StatusOK, gin.H{"data": byAnime})
}

func (h *Handler) listBySubject(c *gin.Context) {
	subjectID, err := strconv.Atoi(strings.TrimSpace(c.Param("subjectId")))
	if err != nil || subjectID <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid subject id"})
		return
	}

	list, err := h.Store.ListBySubject(c.Request.Context(), subjectID)
	if err != nil {
		logging.Error().Err(err).Msg("[ratings] list by subject failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to fetch ratings"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": list})
}

type submitReq struct {
	AnimeID *int `json:"animeId"`
	Rating  *int `json:"rating"`
}

func (h *Handler) submit(c *gin.Context) {
	var req submitReq
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	if req.AnimeID == nil || *req.AnimeID <= 0 || req.Rating == nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "animeId and rating are required"})
		return
	}
	if !models.ValidRating(*req.Rating) {
		c.JSON(http.StatusBadRequest, gin.H{"error": ErrInvalidValue.Error()})
		return
	}

	userID := auth.UserID(c)
	rating, created, err := h.Store.Upsert(c.Request.Context(), *req.AnimeID, userID, *req.Rating)
	if errors.Is(err, ErrInvalidValue) {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err != nil {
		logging.Error().Err(err).Int("anime_id", *req.AnimeID).Str("user_id", userID).Msg("[ratings] save failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to save rating"})
		return
	}
	h.Metrics.RatingSubmitted(created)

	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	c.JSON(status, gin.H{"data": rating})
}
