// Package query derives catalogue views: free-text search, conjunctive
// filters, stable sorts and offset paging. Every function returns a new
// slice and leaves its input untouched.
package query

import (
	"cmp"
	"math"
	"slices"
	"strings"

	"animeranker/pkg/models"
)

type SortKey string

const (
	SortPopularity SortKey = "popularity"
	SortRating     SortKey = "rating"
	SortTitle      SortKey = "title"
	SortYear       SortKey = "year"
)

// ParseSortKey returns the key for s and false when s is not a known key.
func ParseSortKey(s string) (SortKey, bool) {
	switch k := SortKey(strings.ToLower(strings.TrimSpace(s))); k {
	case SortPopularity, SortRating, SortTitle, SortYear:
		return k, true
	default:
		return "", false
	}
}

// Criteria are independent and conjunctive. Zero values mean "not set".
type Criteria struct {
	Genre    string
	MinScore *float64
	Status   string
	Type     string
}

func (c Criteria) empty() bool {
	return c.Genre == "" && c.MinScore == nil && c.Status == "" && c.Type == ""
}

// Search matches q case-insensitively against title, English title and genres.
func Search(entries []models.Anime, q string) []models.Anime {
	term := strings.ToLower(q)
	out := make([]models.Anime, 0, len(entries))
	for _, a := range entries {
		if matches(a, term) {
			out = append(out, a)
		}
	}
	return out
}

func matches(a models.Anime, term string) bool {
	if strings.Contains(strings.ToLower(a.Title), term) {
		return true
	}
	if a.EnglishTitle != "" && strings.Contains(strings.ToLower(a.EnglishTitle), term) {
		return true
	}
	for _, g := range a.Genres {
		if strings.Contains(strings.ToLower(g), term) {
			return true
		}
	}
	return false
}

func Filter(entries []models.Anime, c Criteria) []models.Anime {
	if c.empty() {
		return slices.Clone(entries)
	}
	out := make([]models.Anime, 0, len(entries))
	for _, a := range entries {
		if c.Genre != "" && !slices.Contains(a.Genres, c.Genre) {
			continue
		}
		if c.MinScore != nil && (a.Score == nil || *a.Score < *c.MinScore) {
			continue
		}
		if c.Status != "" && a.Status != c.Status {
			continue
		}
		if c.Type != "" && a.Type != c.Type {
			continue
		}
		out = append(out, a)
	}
	return out
}

// Sort orders entries by key. Ties keep their input order; an unknown key
// returns the input order.
func Sort(entries []models.Anime, key SortKey) []models.Anime {
	out := slices.Clone(entries)
	var compare func(a, b models.Anime) int

	switch key {
	case SortPopularity:
		compare = func(a, b models.Anime) int { return cmp.Compare(b.ScoredByOrZero(), a.ScoredByOrZero()) }
	case SortRating:
		compare = func(a, b models.Anime) int { return cmp.Compare(b.ScoreOrZero(), a.ScoreOrZero()) }
	case SortTitle:
		compare = func(a, b models.Anime) int { return strings.Compare(a.Title, b.Title) }
	case SortYear:
		compare = func(a, b models.Anime) int { return cmp.Compare(b.YearOrZero(), a.YearOrZero()) }
	default:
		return out
	}
	slices.SortStableFunc(out, compare)
	return out
}

// Ranking lists scored entries, best first.
func Ranking(entries []models.Anime) []models.Anime {
	scored := make([]models.Anime, 0, len(entries))
	for _, a := range entries {
		if a.ScoreOrZero() > 0 {
			scored = append(scored, a)
		}
	}
	return Sort(scored, SortRating)
}

const (
	GemMinScore = 8.0
	GemMaxVotes = 50000
)

// HiddenGems lists highly scored entries that few people have voted on.
// Scores are grouped by their first decimal (8.49 and 8.40 share a band,
// 8.50 does not); higher bands come first and within a band fewer votes
// come first.
func HiddenGems(entries []models.Anime) []models.Anime {
	gems := make([]models.Anime, 0)
	for _, a := range entries {
		if a.ScoreOrZero() >= GemMinScore && a.ScoredByOrZero() > 0 && a.ScoredByOrZero() < GemMaxVotes {
			gems = append(gems, a)
		}
	}
	slices.SortStableFunc(gems, func(a, b models.Anime) int {
		if c := cmp.Compare(scoreBand(b), scoreBand(a)); c != 0 {
			return c
		}
		if c := cmp.Compare(a.ScoredByOrZero(), b.ScoredByOrZero()); c != 0 {
			return c
		}
		return cmp.Compare(b.ScoreOrZero(), a.ScoreOrZero())
	})
	return gems
}

// scoreBand truncates a score to tenths. Scores are rounded to hundredths
// first so 8.45 does not land in the 8.3 band through float error.
func scoreBand(a models.Anime) int {
	return int(math.Round(a.ScoreOrZero()*100)) / 10
}

const (
	DefaultLimit = 24
	MaxLimit     = 100
)

// Page returns the window [offset, offset+limit) and the clamped limit and
// offset actually used.
func Page(entries []models.Anime, limit, offset int) ([]models.Anime, int, int) {
	if limit <= 0 || limit > MaxLimit {
		limit = DefaultLimit
	}
	if offset < 0 {
		offset = 0
	}
	if offset >= len(entries) {
		return []models.Anime{}, limit, offset
	}
	end := min(offset+limit, len(entries))
	return slices.Clone(entries[offset:end]), limit, offset
}

// ListQuery bundles a full catalogue view request.
type ListQuery struct {
	Q        string
	Criteria Criteria
	Sort     SortKey
	Limit    int
	Offset   int
}

type Result struct {
	Total  int            `json:"total"`
	Limit  int            `json:"limit"`
	Offset int            `json:"offset"`
	Items  []models.Anime `json:"data"`
}

// Run applies search, filter, sort and paging in that order.
func Run(entries []models.Anime, q ListQuery) Result {
	view := entries
	if strings.TrimSpace(q.Q) != "" {
		view = Search(view, strings.TrimSpace(q.Q))
	}
	view = Filter(view, q.Criteria)
	if q.Sort != "" {
		view = Sort(view, q.Sort)
	}
	items, limit, offset := Page(view, q.Limit, q.Offset)
	return Result{Total: len(view), Limit: limit, Offset: offset, Items: items}
}
