package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"pricescout/pricescout/config"
	"pricescout/pricescout/controllers"
	"pricescout/pricescout/routes"
	"pricescout/pricescout/services/scraper"
	"pricescout/pricescout/sources/psql"
	"pricescout/pricescout/sources/psql/dao"
	"pricescout/pricescout/sources/storage"
	"pricescout/pricescout/utils/logging"

	"go.uber.org/zap"
)

func main() {
	logging.InitLogger()
	defer logging.Sync()
	cfg := config.LoadConfig()

	orch, stopBrowser, err := scraper.Setup(cfg)
	if err != nil {
		logging.ErrorLogger.Error("scraper setup error", zap.Error(err))
		os.Exit(1)
	}
	defer stopBrowser()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	// Optional run history
	var runs controllers.RunStore
	if cfg.DatabaseEnabled() {
		db, err := psql.NewDatabase(ctx, cfg)
		if err != nil {
			logging.ErrorLogger.Error("database connection error", zap.Error(err))
			os.Exit(1)
		}
		defer db.Close()
		runs = dao.NewSearchRunDAO(db.DB)
	}

	// Optional result cache
	var cache controllers.ResultCache
	if cfg.CacheEnabled() {
		minioClient, err := storage.NewMinIOClient(ctx, cfg)
		if err != nil {
			logging.ErrorLogger.Error("minio connection error", zap.Error(err))
			os.Exit(1)
		}
		cache = minioClient
	}

	searchCtrl := controllers.NewSearchController(orch, cache, runs, cfg.SiteID, cfg.SecondsPerBatch)
	healthCtrl := controllers.NewHealthController(orch)

	srv := &http.Server{
		Addr:    cfg.HTTPAddr,
		Handler: routes.NewRouter(cfg, searchCtrl, healthCtrl),
	}
	go func() {
		logging.AppLogger.Info("pricescout listening",
			zap.String("addr", cfg.HTTPAddr),
			zap.String("site", cfg.SiteID),
			zap.Bool("history", runs != nil),
			zap.Bool("cache", cache != nil),
		)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logging.ErrorLogger.Error("server listen error", zap.Error(err))
		}
	}()
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logging.ErrorLogger.Error("server shutdown error", zap.Error(err))
	}
	logging.AppLogger.Info("server shutdown complete")
}
