package models

import "time"

// DefaultUserID is the pseudo-user used when a request carries no identity.
const DefaultUserID = "default-user"

const (
	MinRating = 1
	MaxRating = 10
)

type Rating struct {
	ID        string    `json:"id"`
	AnimeID   int       `json:"animeId"` // MAL id of the rated subject
	UserID    string    `json:"userId"`
	Rating    int       `json:"rating"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// ValidRating reports whether v is inside the inclusive 1..10 range.
func ValidRating(v int) bool {
	return v >= MinRating && v <= MaxRating
}

type UserStats struct {
	TotalRated    int     `json:"totalRated"`
	AverageRating float64 `json:"averageRating"`
	Favorites     int     `json:"favorites"`
	// Distribution[i] counts ratings with value i+1.
	Distribution [MaxRating]int `json:"distribution"`
}
