package grpcserver

import (
	"context"
	"errors"
	"strings"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"animeranker/internal/catalogue"
	"animeranker/internal/metrics"
	"animeranker/internal/query"
	"animeranker/internal/ratings"
	"animeranker/internal/stats"
	"animeranker/pkg/models"
)

type Server struct {
	Catalogue *catalogue.Cache
	Ratings   ratings.Store
	Stats     *stats.Aggregator
	Metrics   *metrics.Metrics
}

func NewServer(cache *catalogue.Cache, store ratings.Store, agg *stats.Aggregator, m *metrics.Metrics) *Server {
	return &Server{Catalogue: cache, Ratings: store, Stats: agg, Metrics: m}
}

func (s *Server) ListAnime(ctx context.Context, req *ListAnimeRequest) (*ListAnimeResponse, error) {
	if req == nil {
		return nil, status.Error(codes.InvalidArgument, "request required")
	}

	lq := query.ListQuery{
		Q:      strings.TrimSpace(req.Q),
		Limit:  int(req.Limit),
		Offset: int(req.Offset),
		Criteria: query.Criteria{
			Genre:    strings.TrimSpace(req.Genre),
			MinScore: req.MinScore,
			Status:   strings.TrimSpace(req.Status),
			Type:     strings.TrimSpace(req.Type),
		},
	}
	if req.Sort != "" {
		key, ok := query.ParseSortKey(req.Sort)
		if !ok {
			return nil, status.Error(codes.InvalidArgument, "invalid sort key")
		}
		lq.Sort = key
	}

	res := query.Run(s.Catalogue.List(), lq)
	return &ListAnimeResponse{
		Total:  int32(res.Total),
		Limit:  int32(res.Limit),
		Offset: int32(res.Offset),
		Items:  res.Items,
	}, nil
}

func (s *Server) GetAnime(ctx context.Context, req *GetAnimeRequest) (*GetAnimeResponse, error) {
	if req == nil || (req.Id <= 0 && req.MalId <= 0) {
		return nil, status.Error(codes.InvalidArgument, "id or mal_id required")
	}

	var (
		a     models.Anime
		found bool
	)
	if req.Id > 0 {
		a, found = s.Catalogue.GetByID(int(req.Id))
	} else {
		a, found = s.Catalogue.GetByMalID(int(req.MalId))
	}
	if !found {
		return nil, status.Error(codes.NotFound, "not found")
	}
	return &GetAnimeResponse{Anime: a}, nil
}

func (s *Server) RateAnime(ctx context.Context, req *RateAnimeRequest) (*RateAnimeResponse, error) {
	if req == nil || req.AnimeId <= 0 {
		return nil, status.Error(codes.InvalidArgument, "anime_id required")
	}
	if !models.ValidRating(int(req.Rating)) {
		return nil, status.Error(codes.InvalidArgument, ratings.ErrInvalidValue.Error())
	}

	r, created, err := s.Ratings.Upsert(ctx, int(req.AnimeId), UserFromContext(ctx), int(req.Rating))
	if errors.Is(err, ratings.ErrInvalidValue) {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}
	if err != nil {
		return nil, status.Error(codes.Internal, "save failed")
	}
	s.Metrics.RatingSubmitted(created)

	return &RateAnimeResponse{Rating: *r, Created: created}, nil
}

func (s *Server) GetUserRatings(ctx context.Context, req *GetUserRatingsRequest) (*GetUserRatingsResponse, error) {
	if req == nil {
		req = &GetUserRatingsRequest{}
	}
	list, err := s.Ratings.ListByUser(ctx, requestUser(ctx, req.UserId))
	if err != nil {
		return nil, status.Error(codes.Internal, "list failed")
	}
	return &GetUserRatingsResponse{Ratings: list}, nil
}

func (s *Server) GetStats(ctx context.Context, req *GetStatsRequest) (*GetStatsResponse, error) {
	if req == nil {
		req = &GetStatsRequest{}
	}
	st, err := s.Stats.UserStats(ctx, requestUser(ctx, req.UserId))
	if err != nil {
		return nil, status.Error(codes.Internal, "stats failed")
	}
	return &GetStatsResponse{Stats: st}, nil
}

func requestUser(ctx context.Context, explicit string) string {
	if u := strings.TrimSpace(explicit); u != "" {
		return u
	}
	return UserFromContext(ctx)
}
