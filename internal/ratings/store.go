package ratings

import (
	"context"
	"errors"
	"strings"

	"animeranker/pkg/models"
)

var (
	ErrNotFound     = errors.New("rating not found")
	ErrInvalidValue = errors.New("rating must be between 1 and 10")
	ErrDuplicate    = errors.New("rating already exists for this anime and user")
)

// Store owns every rating record. At most one rating exists per
// (anime, user) pair.
type Store interface {
	ListByUser(ctx context.Context, userID string) ([]models.Rating, error)
	ListBySubject(ctx context.Context, animeID int) ([]models.Rating, error)
	// Get returns nil, nil when the pair has no rating.
	Get(ctx context.Context, animeID int, userID string) (*models.Rating, error)
	Create(ctx context.Context, animeID int, userID string, value int) (*models.Rating, error)
	Update(ctx context.Context, animeID int, userID string, value int) (*models.Rating, error)
	// Upsert creates the rating or overwrites the existing one for the pair.
	// The bool is true when a new record was created.
	Upsert(ctx context.Context, animeID int, userID string, value int) (*models.Rating, bool, error)
}

func normalizeUser(userID string) string {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return models.DefaultUserID
	}
	return userID
}
