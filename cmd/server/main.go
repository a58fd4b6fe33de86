package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/vytor/starcards/internal/api"
	"github.com/vytor/starcards/internal/badges"
	"github.com/vytor/starcards/internal/catalog"
	"github.com/vytor/starcards/internal/config"
	"github.com/vytor/starcards/internal/db"
	"github.com/vytor/starcards/internal/ledger"
	"github.com/vytor/starcards/internal/logger"
	"github.com/vytor/starcards/internal/queue"
	"github.com/vytor/starcards/internal/remote"
	"github.com/vytor/starcards/internal/repository/sqlite"
	"github.com/vytor/starcards/internal/services"
	"github.com/vytor/starcards/internal/session"
	"github.com/vytor/starcards/internal/worker"
)

func main() {
	cfg := config.Load()

	// Initialize logger
	log := logger.New(
		logger.WithLevel(logger.ParseLevel(cfg.LogLevel)),
		logger.WithColors(true),
	)
	logger.SetDefault(log)

	log.Info("===========================================")
	log.Info("STAR Cards Server Starting")
	log.Info("===========================================")
	if err := cfg.Validate(); err != nil {
		log.Error("invalid configuration: %v", err)
		os.Exit(1)
	}
	log.Info("configuration loaded")
	log.Debug("addr=%s", cfg.Addr)
	log.Debug("db_path=%s", cfg.DBPath)
	log.Debug("catalog_path=%s", cfg.CatalogPath)
	log.Debug("assets_dir=%s", cfg.AssetsDir)
	log.Debug("log_level=%s", cfg.LogLevel)
	log.Debug("sync_enabled=%t", cfg.SyncEnabled())
	log.Debug("sync_timeout=%s", cfg.SyncTimeout)
	log.Debug("sync_worker_count=%d", cfg.SyncWorkerCount)
	log.Debug("sync_queue_size=%d", cfg.SyncQueueSize)

	// Open database
	database, err := db.Open(cfg.DBPath)
	if err != nil {
		log.Error("failed to open database: %v", err)
		os.Exit(1)
	}
	defer func() {
		log.Debug("closing database connection")
		database.Close()
	}()

	// A missing or broken catalog leaves the app usable with zero cards.
	cat, err := catalog.LoadFile(cfg.CatalogPath)
	if err != nil {
		log.Warn("failed to load card catalog, starting with no cards: %v", err)
		cat = catalog.Empty()
	}
	log.Info("catalog loaded: cards=%d, rejected=%d", cat.Len(), cat.Rejected())

	ctx, cancel := context.WithCancel(context.Background())

	// Remote sync is fire-and-forget through a small worker pool.
	syncClient := remote.New(cfg.SyncURL, cfg.SyncSecret,
		remote.WithTimeout(cfg.SyncTimeout),
		remote.WithUserAgent("starcards-server"),
	)
	syncPool := worker.NewPool(cfg.SyncWorkerCount, cfg.SyncQueueSize)
	syncPool.Start(ctx)

	evaluator := badges.NewEvaluator(sqlite.NewBadgeRepository(database.DB))
	opts := []ledger.Option{ledger.WithBadges(evaluator)}
	if syncClient.Enabled() {
		opts = append(opts, ledger.WithPusher(worker.NewPusher(syncPool, syncClient)))
	}
	progress := ledger.Open(ctx, sqlite.NewDocumentRepository(database.DB), opts...)

	// Initialize services
	studyService := services.NewStudyService(cat, progress, session.NewRegistry(), queue.NewRand(cfg.ShuffleSeed))
	dashboardService := services.NewDashboardService(cat, progress, syncClient, evaluator, cfg.TeacherPIN)
	progressService := services.NewProgressService(progress, cfg.TeacherPIN)

	srv := &api.Server{
		Catalog:    cat,
		Ledger:     progress,
		Study:      studyService,
		Dashboards: dashboardService,
		Progress:   progressService,
		DB:         database,
		AssetsDir:  cfg.AssetsDir,
	}

	// Configure HTTP server
	httpServer := &http.Server{
		Addr:         cfg.Addr,
		Handler:      srv.Routes(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start HTTP server
	go func() {
		log.Info("HTTP server listening on %s", cfg.Addr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("HTTP server error: %v", err)
			os.Exit(1)
		}
	}()

	// Wait for shutdown signal
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	sig := <-stop

	log.Info("received signal %v, initiating graceful shutdown", sig)

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	log.Debug("shutting down HTTP server")
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Error("HTTP server shutdown error: %v", err)
	}

	// Drain pending pushes before the worker context goes away.
	log.Debug("stopping sync pool")
	syncPool.Stop()
	cancel()

	log.Info("===========================================")
	log.Info("STAR Cards Server Stopped")
	log.Info("===========================================")
}
