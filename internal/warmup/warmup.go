// Package warmup preloads the catalogue from the upstream top list so the
// local views have data before the first browse request.
package warmup

import (
	"context"
	"fmt"

	"animeranker/internal/catalogue"
	"animeranker/internal/jikan"
	"animeranker/pkg/logging"
)

type TopFetcher interface {
	TopAnime(ctx context.Context, page, limit int) (jikan.Page, error)
}

type Preloader struct {
	Source    TopFetcher
	Catalogue *catalogue.Cache
	Pages     int
}

func NewPreloader(src TopFetcher, cache *catalogue.Cache, pages int) *Preloader {
	return &Preloader{Source: src, Catalogue: cache, Pages: pages}
}

// Run fetches up to Pages pages and returns how many new entries were
// cached. A failing page is logged and skipped; Run only errors when every
// page failed.
func (p *Preloader) Run(ctx context.Context) (int, error) {
	if p.Pages <= 0 {
		return 0, nil
	}

	before := p.Catalogue.Len()
	attempted, failed := 0, 0
	var lastErr error

	for page := 1; page <= p.Pages; page++ {
		if err := ctx.Err(); err != nil {
			return p.Catalogue.Len() - before, err
		}

		attempted++
		res, err := p.Source.TopAnime(ctx, page, jikan.PageSize)
		if err != nil {
			logging.Warn().Err(err).Int("page", page).Msg("[warmup] page failed")
			failed++
			lastErr = err
			continue
		}
		p.Catalogue.UpsertAll(res.Items)

		if !res.Pagination.HasNextPage {
			break
		}
	}

	added := p.Catalogue.Len() - before
	if failed > 0 && failed == attempted {
		return 0, fmt.Errorf("warmup: all pages failed: %w", lastErr)
	}
	logging.Info().Int("added", added).Int("failed_pages", failed).Msg("[warmup] catalogue preloaded")
	return added, nil
}
