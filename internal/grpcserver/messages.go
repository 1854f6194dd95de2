package grpcserver

import "animeranker/pkg/models"

type ListAnimeRequest struct {
	Q        string   `json:"q,omitempty"`
	Genre    string   `json:"genre,omitempty"`
	MinScore *float64 `json:"min_score,omitempty"`
	Status   string   `json:"status,omitempty"`
	Type     string   `json:"type,omitempty"`
	Sort     string   `json:"sort,omitempty"`
	Limit    int32    `json:"limit,omitempty"`
	Offset   int32    `json:"offset,omitempty"`
}

type ListAnimeResponse struct {
	Total  int32          `json:"total"`
	Limit  int32          `json:"limit"`
	Offset int32          `json:"offset"`
	Items  []models.Anime `json:"items"`
}

// GetAnimeRequest looks an entry up by local id, or by MAL id when Id is 0.
type GetAnimeRequest struct {
	Id    int32 `json:"id,omitempty"`
	MalId int32 `json:"mal_id,omitempty"`
}

type GetAnimeResponse struct {
	Anime models.Anime `json:"anime"`
}

type RateAnimeRequest struct {
	AnimeId int32 `json:"anime_id"`
	Rating  int32 `json:"rating"`
}

type RateAnimeResponse struct {
	Rating  models.Rating `json:"rating"`
	Created bool          `json:"created"`
}

type GetUserRatingsRequest struct {
	UserId string `json:"user_id,omitempty"`
}

type GetUserRatingsResponse struct {
	Ratings []models.Rating `json:"ratings"`
}

type GetStatsRequest struct {
	UserId string `json:"user_id,omitempty"`
}

type GetStatsResponse struct {
	Stats models.UserStats `json:"stats"`
}
