// Package main is the entry point for the mediavault server. It wires
// configuration, logging, storage, the upload and rexpump engines, and the
// public and admin HTTP listeners, then runs until signaled to shut down.
package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/rexmedia/mediavault/internal/config"
	"github.com/rexmedia/mediavault/internal/evmsig"
	"github.com/rexmedia/mediavault/internal/health"
	"github.com/rexmedia/mediavault/internal/httpapi"
	"github.com/rexmedia/mediavault/internal/metrics"
	"github.com/rexmedia/mediavault/internal/obslog"
	"github.com/rexmedia/mediavault/internal/rexpump"
	"github.com/rexmedia/mediavault/internal/store/blob"
	"github.com/rexmedia/mediavault/internal/store/meta"
	"github.com/rexmedia/mediavault/internal/upload"
)

func main() {
	configPath := flag.String("config", "", "path to config.toml (default: $MEDIAVAULT_CONFIG or ./config.toml)")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		panic(err)
	}

	log, err := obslog.NewDefault()
	if err != nil {
		panic(err)
	}
	defer log.Sync()

	if err := run(cfg, log); err != nil {
		log.Error("server exited with error", zap.Error(err))
		os.Exit(1)
	}
}

func run(cfg *config.Config, log obslog.Logger) error {
	metaPath := cfg.Storage.DataDir + "/mediavault.db"
	if err := os.MkdirAll(cfg.Storage.DataDir, 0o755); err != nil {
		return err
	}
	metaStore, err := meta.Open(metaPath)
	if err != nil {
		return err
	}
	defer metaStore.Close()

	blobStore, err := blob.New(cfg.Storage.DataDir, cfg.Storage.DirectoryLevels)
	if err != nil {
		return err
	}

	metricsReg := metrics.New()

	uploadEngine := upload.NewEngine(metaStore, blobStore, cfg, log)
	uploadEngine.SetMetrics(metricsReg)

	if err := uploadEngine.SeedDefaultMedia(); err != nil {
		return err
	}

	rpcClients := make(map[string]*evmsig.RPCClient, len(cfg.RexPump.Networks))
	for name := range cfg.RexPump.Networks {
		client := evmsig.NewRPCClient(name)
		client.OnFailure = func(endpoint string) {
			metricsReg.RPCFailuresTotal.WithLabelValues(endpoint).Inc()
		}
		rpcClients[name] = client
	}

	rexpumpEngine := rexpump.NewEngine(metaStore, uploadEngine, rpcClients, cfg, log)
	rexpumpEngine.SetMetrics(metricsReg)

	healthChecker := health.New(metaStore, blobStore)

	api := httpapi.New(cfg, metaStore, blobStore, uploadEngine, rexpumpEngine, healthChecker, metricsReg, log)

	sweeper := upload.NewSweeper(uploadEngine, cfg.Server.CleanupIntervalSeconds)
	if err := sweeper.Start(cfg.Server.CleanupIntervalSeconds); err != nil {
		return err
	}
	defer sweeper.Stop()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	publicSrv := &http.Server{
		Addr:         cfg.Server.Host + ":" + strconv.Itoa(cfg.Server.Port),
		Handler:      api.PublicRouter(),
		ReadTimeout:  cfg.Server.RequestTimeout(),
		WriteTimeout: 0, // streaming blob reads can run long
	}
	adminSrv := &http.Server{
		Addr:         cfg.Server.AdminHost + ":" + strconv.Itoa(cfg.Server.AdminPort),
		Handler:      api.AdminRouter(),
		ReadTimeout:  cfg.Server.RequestTimeout(),
		WriteTimeout: cfg.Server.RequestTimeout(),
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		log.Info("public listener starting", zap.String("addr", publicSrv.Addr))
		if err := publicSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		log.Info("admin listener starting", zap.String("addr", adminSrv.Addr))
		if err := adminSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		log.Info("shutting down")
		if err := publicSrv.Shutdown(shutdownCtx); err != nil {
			log.Warn("public listener shutdown error", zap.Error(err))
		}
		if err := adminSrv.Shutdown(shutdownCtx); err != nil {
			log.Warn("admin listener shutdown error", zap.Error(err))
		}
		return nil
	})

	return g.Wait()
}
