package main

import (
	"context"
	"errors"
	"net"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/gin-gonic/gin"
	"google.golang.org/grpc"

	"animeranker/internal/app"
	"animeranker/pkg/logging"
	"animeranker/pkg/utils"
)

func main() {
	cfg, err := utils.LoadConfig()
	if err != nil {
		logging.Fatal().Err(err).Msg("config load failed")
	}
	logging.Init(logging.Config{Level: cfg.Log.Level, Format: cfg.Log.Format})
	gin.SetMode(gin.ReleaseMode)

	a, err := app.New(cfg)
	if err != nil {
		logging.Fatal().Err(err).Msg("app init failed")
	}
	defer a.Close()

	httpSrv := &http.Server{
		Addr:    cfg.Server.HTTPAddr,
		Handler: a.Router(),
	}

	var (
		grpcSrv *grpc.Server
		grpcLis net.Listener
	)
	if cfg.Server.GRPCAddr != "" {
		// bind early so address errors show up before serving HTTP
		grpcLis, err = net.Listen("tcp", cfg.Server.GRPCAddr)
		if err != nil {
			logging.Fatal().Err(err).Str("addr", cfg.Server.GRPCAddr).Msg("grpc listen failed")
		}
		grpcSrv = a.GRPCServer()
	}

	errCh := make(chan error, 2)
	var wg sync.WaitGroup

	warmCtx, stopWarmup := context.WithCancel(context.Background())
	defer stopWarmup()
	wg.Add(1)
	go func() {
		defer wg.Done()
		if _, err := a.Warmup(warmCtx); err != nil && !errors.Is(err, context.Canceled) {
			logging.Warn().Err(err).Msg("catalogue warmup failed")
		}
	}()

	if grpcSrv != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			logging.Info().Str("addr", cfg.Server.GRPCAddr).Msg("gRPC server listening")
			if err := grpcSrv.Serve(grpcLis); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
				errCh <- err
			}
		}()
	}

	wg.Add(1)
	go func() {
		defer wg.Done()
		logging.Info().Str("addr", cfg.Server.HTTPAddr).Str("store", cfg.Store.Driver).Msg("HTTP API server listening")
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		logging.Info().Str("signal", sig.String()).Msg("shutdown signal received")
	case err := <-errCh:
		logging.Error().Err(err).Msg("server error")
	}

	logging.Info().Msg("shutting down servers")
	stopWarmup()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		logging.Error().Err(err).Msg("http shutdown error")
	}
	if grpcSrv != nil {
		stopped := make(chan struct{})
		go func() {
			grpcSrv.GracefulStop()
			close(stopped)
		}()
		select {
		case <-stopped:
		case <-shutdownCtx.Done():
			grpcSrv.Stop()
		}
	}

	wg.Wait()
	logging.Info().Msg("servers stopped")
}
