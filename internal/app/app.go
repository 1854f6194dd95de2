// Package app wires configuration, stores, the upstream client and both
// API surfaces into one process.
package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"google.golang.org/grpc"

	"animeranker/internal/anime"
	"animeranker/internal/auth"
	"animeranker/internal/catalogue"
	"animeranker/internal/grpcserver"
	"animeranker/internal/jikan"
	"animeranker/internal/metrics"
	"animeranker/internal/ratings"
	"animeranker/internal/stats"
	"animeranker/internal/warmup"
	"animeranker/pkg/database"
	"animeranker/pkg/logging"
	"animeranker/pkg/utils"
)

type App struct {
	Config    utils.Config
	Catalogue *catalogue.Cache
	Ratings   ratings.Store
	Stats     *stats.Aggregator
	Source    anime.Source
	Tokens    auth.TokenService
	Metrics   *metrics.Metrics

	db    *sql.DB
	jikan *jikan.Client
}

type Option func(*App)

// WithSource replaces the Jikan client, mainly for tests.
func WithSource(src anime.Source) Option {
	return func(a *App) { a.Source = src }
}

func New(cfg utils.Config, opts ...Option) (*App, error) {
	a := &App{
		Config:    cfg,
		Catalogue: catalogue.New(),
		Metrics:   metrics.New(),
		Tokens: auth.TokenService{
			Secret:   []byte(cfg.Auth.JWTSecret),
			Issuer:   cfg.Auth.JWTIssuer,
			Duration: cfg.Auth.JWTDuration,
		},
	}
	for _, opt := range opts {
		opt(a)
	}

	switch cfg.Store.Driver {
	case "sqlite":
		db, err := database.Open(database.Config{DSN: cfg.Store.DSN})
		if err != nil {
			return nil, err
		}
		if err := database.Migrate(db); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("db migrate: %w", err)
		}
		a.db = db
		a.Ratings = ratings.NewSQLStore(db)
	case "", "memory":
		a.Ratings = ratings.NewMemoryStore()
	default:
		return nil, fmt.Errorf("unknown store driver %q", cfg.Store.Driver)
	}
	a.Stats = stats.NewAggregator(a.Ratings)

	if a.Source == nil {
		client, err := jikan.New(jikan.Config{
			BaseURL:  cfg.Jikan.BaseURL,
			Timeout:  cfg.Jikan.Timeout,
			Rate:     cfg.Jikan.Rate,
			Burst:    cfg.Jikan.Burst,
			CacheTTL: cfg.Jikan.CacheTTL,
		}, a.Metrics)
		if err != nil {
			_ = a.Close()
			return nil, err
		}
		a.jikan = client
		a.Source = client
	}

	a.Metrics.GaugeFunc("catalogue_entries", "Entries held in the catalogue cache", func() float64 {
		return float64(a.Catalogue.Len())
	})
	return a, nil
}

// Router builds the HTTP surface.
func (a *App) Router() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), logging.GinLogger(), a.Metrics.Middleware())
	if err := r.SetTrustedProxies(a.Config.Server.TrustedProxies); err != nil {
		logging.Warn().Err(err).Msg("[app] invalid trusted proxies, trusting none")
		_ = r.SetTrustedProxies(nil)
	}

	r.GET("/health", a.health)
	r.GET("/ready", a.ready)
	r.GET("/metrics", gin.WrapH(a.Metrics.Handler()))

	api := r.Group("/api")
	api.Use(auth.Identity(a.Tokens))
	anime.NewHandler(a.Catalogue, a.Source).RegisterRoutes(api)
	ratings.NewHandler(a.Ratings, a.Metrics).RegisterRoutes(api)
	stats.NewHandler(a.Stats).RegisterRoutes(api)

	r.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
	})
	return r
}

// GRPCServer builds the gRPC surface over the same stores.
func (a *App) GRPCServer(opts ...grpc.ServerOption) *grpc.Server {
	svc := grpcserver.NewServer(a.Catalogue, a.Ratings, a.Stats, a.Metrics)
	return grpcserver.NewGRPCServer(svc, a.Tokens, opts...)
}

// Warmup preloads the catalogue from the upstream top list.
func (a *App) Warmup(ctx context.Context) (int, error) {
	return warmup.NewPreloader(a.Source, a.Catalogue, a.Config.Jikan.WarmupPages).Run(ctx)
}

func (a *App) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":    "ok",
		"store":     a.storeDriver(),
		"catalogue": a.Catalogue.Len(),
	})
}

func (a *App) ready(c *gin.Context) {
	if a.db != nil {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()

		if err := a.db.PingContext(ctx); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"status":   "not_ready",
				"db_error": err.Error(),
			})
			return
		}
	}
	c.JSON(http.StatusOK, gin.H{"status": "ready", "store": a.storeDriver()})
}

func (a *App) storeDriver() string {
	if a.db != nil {
		return "sqlite"
	}
	return "memory"
}

// Close releases the upstream cache and the database, if any.
func (a *App) Close() error {
	var errs []error
	if a.jikan != nil {
		a.jikan.Close()
	}
	if a.db != nil {
		if err := a.db.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close db: %w", err))
		}
	}
	return errors.Join(errs...)
}
