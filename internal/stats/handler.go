package stats

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"animeranker/internal/auth"
	"animeranker/pkg/logging"
)

type Handler struct {
	Aggregator *Aggregator
}

func NewHandler(agg *Aggregator) *Handler {
	return &Handler{Aggregator: agg}
}

func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("/stats", h.userStats) // GET /api/stats?userId=
}

func (h *Handler) userStats(c *gin.Context) {
	userID := auth.RequestUser(c)
	s, err := h.Aggregator.UserStats(c.Request.Context(), userID)
	if err != nil {
		logging.Error().Err(err).Str("user_id", userID).Msg("[stats] aggregate failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to fetch stats"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": s})
}
