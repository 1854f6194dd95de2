package jikan

import (
	"strings"

	"animeranker/pkg/models"
)

// animePayload is the subset of the Jikan v4 anime resource we read.
type animePayload struct {
	MalID        int            `json:"mal_id"`
	Title        string         `json:"title"`
	TitleEnglish *string        `json:"title_english"`
	Genres       []namedPayload `json:"genres"`
	Synopsis     *string        `json:"synopsis"`
	Images       struct {
		JPG struct {
			ImageURL string `json:"image_url"`
		} `json:"jpg"`
	} `json:"images"`
	Episodes *int   `json:"episodes"`
	Status   string `json:"status"`
	Aired    struct {
		String string `json:"string"`
	} `json:"aired"`
	Score    *float64 `json:"score"`
	ScoredBy *int     `json:"scored_by"`
	Type     *string  `json:"type"`
	Year     *int     `json:"year"`
}

type namedPayload struct {
	MalID int    `json:"mal_id"`
	Name  string `json:"name"`
}

type Pagination struct {
	LastVisiblePage int  `json:"last_visible_page"`
	HasNextPage     bool `json:"has_next_page"`
	CurrentPage     int  `json:"current_page"`
}

type listResponse struct {
	Data       []animePayload `json:"data"`
	Pagination Pagination     `json:"pagination"`
}

// Genre is one entry of /genres/anime, passed through unchanged.
type Genre struct {
	MalID int    `json:"mal_id"`
	Name  string `json:"name"`
	URL   string `json:"url"`
	Count int    `json:"count"`
}

type genresResponse struct {
	Data []Genre `json:"data"`
}

// Page is one page of upstream results mapped to catalogue entries.
type Page struct {
	Items      []models.Anime
	Pagination Pagination
}

func toAnime(p animePayload) models.Anime {
	a := models.Anime{
		MalID:    p.MalID,
		Title:    p.Title,
		Genres:   make([]string, 0, len(p.Genres)),
		ImageURL: p.Images.JPG.ImageURL,
		Aired:    p.Aired.String,
		Status:   p.Status,
		Episodes: positiveInt(p.Episodes),
		Year:     positiveInt(p.Year),
		ScoredBy: positiveInt(p.ScoredBy),
	}
	if p.TitleEnglish != nil {
		a.EnglishTitle = strings.TrimSpace(*p.TitleEnglish)
	}
	for _, g := range p.Genres {
		if g.Name != "" {
			a.Genres = append(a.Genres, g.Name)
		}
	}
	if p.Synopsis != nil {
		a.Synopsis = *p.Synopsis
	}
	if p.Type != nil {
		a.Type = *p.Type
	}
	// upstream sends 0 or null for unscored entries
	if p.Score != nil && *p.Score > 0 {
		v := *p.Score
		a.Score = &v
	}
	return a
}

func positiveInt(v *int) *int {
	if v == nil || *v <= 0 {
		return nil
	}
	n := *v
	return &n
}
