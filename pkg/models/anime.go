package models

import "time"

// Anime is the cached, normalized form of a catalogue entry.
//
// The Jikan client maps every upstream payload into this structure first;
// the catalogue cache assigns ID and CreatedAt on first insertion.
type Anime struct {
	ID           int       `json:"id"`                     // synthetic, sequential
	MalID        int       `json:"malId"`                  // MyAnimeList id, unique
	Title        string    `json:"title"`                  // main (romaji) title
	EnglishTitle string    `json:"englishTitle,omitempty"` // alternate title
	Genres       []string  `json:"genres"`                 // upstream order
	Synopsis     string    `json:"synopsis,omitempty"`
	ImageURL     string    `json:"imageUrl,omitempty"`
	Aired        string    `json:"aired,omitempty"`
	Status       string    `json:"status,omitempty"`
	Type         string    `json:"type,omitempty"`
	Episodes     *int      `json:"episodes,omitempty"`
	Year         *int      `json:"year,omitempty"`
	Score        *float64  `json:"score,omitempty"` // 0.0 - 10.0
	ScoredBy     *int      `json:"scoredBy,omitempty"`
	CreatedAt    time.Time `json:"createdAt"`
}

// AnimePatch is a partial update. Only non-nil fields are applied.
type AnimePatch struct {
	Title        *string   `json:"title,omitempty"`
	EnglishTitle *string   `json:"englishTitle,omitempty"`
	Genres       *[]string `json:"genres,omitempty"`
	Synopsis     *string   `json:"synopsis,omitempty"`
	ImageURL     *string   `json:"imageUrl,omitempty"`
	Aired        *string   `json:"aired,omitempty"`
	Status       *string   `json:"status,omitempty"`
	Type         *string   `json:"type,omitempty"`
	Episodes     *int      `json:"episodes,omitempty"`
	Year         *int      `json:"year,omitempty"`
	Score        *float64  `json:"score,omitempty"`
	ScoredBy     *int      `json:"scoredBy,omitempty"`
}

// Apply merges the provided fields over a and returns the result.
// Identity fields (ID, MalID, CreatedAt) are never touched.
func (p AnimePatch) Apply(a Anime) Anime {
	if p.Title != nil {
		a.Title = *p.Title
	}
	if p.EnglishTitle != nil {
		a.EnglishTitle = *p.EnglishTitle
	}
	if p.Genres != nil {
		a.Genres = append([]string(nil), (*p.Genres)...)
	}
	if p.Synopsis != nil {
		a.Synopsis = *p.Synopsis
	}
	if p.ImageURL != nil {
		a.ImageURL = *p.ImageURL
	}
	if p.Aired != nil {
		a.Aired = *p.Aired
	}
	if p.Status != nil {
		a.Status = *p.Status
	}
	if p.Type != nil {
		a.Type = *p.Type
	}
	if p.Episodes != nil {
		v := *p.Episodes
		a.Episodes = &v
	}
	if p.Year != nil {
		v := *p.Year
		a.Year = &v
	}
	if p.Score != nil {
		v := *p.Score
		a.Score = &v
	}
	if p.ScoredBy != nil {
		v := *p.ScoredBy
		a.ScoredBy = &v
	}
	return a
}

// Empty reports whether the patch carries no fields.
func (p AnimePatch) Empty() bool {
	return p == AnimePatch{}
}

// ScoreOrZero returns the score, treating an absent one as 0.
func (a Anime) ScoreOrZero() float64 {
	if a.Score == nil {
		return 0
	}
	return *a.Score
}

// ScoredByOrZero returns the vote count, treating an absent one as 0.
func (a Anime) ScoredByOrZero() int {
	if a.ScoredBy == nil {
		return 0
	}
	return *a.ScoredBy
}

// YearOrZero returns the release year, treating an absent one as 0.
func (a Anime) YearOrZero() int {
	if a.Year == nil {
		return 0
	}
	return *a.Year
}
