package stats

import (
	"context"
	"fmt"
	"math"

	"animeranker/pkg/models"
)

// FavoriteThreshold is the lowest rating counted as a favorite.
const FavoriteThreshold = 9

type RatingLister interface {
	ListByUser(ctx context.Context, userID string) ([]models.Rating, error)
}

type Aggregator struct {
	Ratings RatingLister
}

func NewAggregator(ratings RatingLister) *Aggregator {
	return &Aggregator{Ratings: ratings}
}

// UserStats aggregates all ratings of userID. A user without ratings
// gets zeroed stats.
func (a *Aggregator) UserStats(ctx context.Context, userID string) (models.UserStats, error) {
	list, err := a.Ratings.ListByUser(ctx, userID)
	if err != nil {
		return models.UserStats{}, fmt.Errorf("list user ratings: %w", err)
	}
	return Compute(list), nil
}

func Compute(list []models.Rating) models.UserStats {
	var s models.UserStats
	if len(list) == 0 {
		return s
	}

	sum := 0
	for _, r := range list {
		sum += r.Rating
		if r.Rating >= FavoriteThreshold {
			s.Favorites++
		}
		if models.ValidRating(r.Rating) {
			s.Distribution[r.Rating-1]++
		}
	}
	s.TotalRated = len(list)
	s.AverageRating = RoundTenth(float64(sum) / float64(len(list)))
	return s
}

// RoundTenth rounds half-up to one decimal place.
func RoundTenth(v float64) float64 {
	return math.Floor(v*10+0.5) / 10
}
