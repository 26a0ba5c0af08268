// Command server starts the NFT enrichment gateway.
package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/medashooter/gateway/internal/app"
	"github.com/medashooter/gateway/internal/config"
)

func main() {
	cfgPath := flag.String("config", "config.json", "path to config file")
	flag.Parse()

	log, err := newLogger()
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger init: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()
	sugar := log.Sugar()

	cfg, err := loadConfig(*cfgPath, sugar)
	if err != nil {
		sugar.Fatalw("config", "error", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	gw, err := app.New(ctx, cfg, sugar)
	cancel()
	if err != nil {
		sugar.Fatalw("app init", "error", err)
	}
	defer gw.Close()

	bgCtx, stopBG := context.WithCancel(context.Background())
	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		gw.RunAudit(bgCtx)
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		gw.RunCacheErrorSweep(bgCtx, 1*time.Hour)
	}()

	srv := &http.Server{
		Addr:    cfg.HTTPAddr,
		Handler: gw.Router,
	}

	go func() {
		sugar.Infow("listening", "addr", cfg.HTTPAddr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			sugar.Fatalw("http server", "error", err)
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh
	sugar.Infow("shutting down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		sugar.Errorw("http shutdown", "error", err)
	}

	stopBG()
	wg.Wait()
	sugar.Infow("shutdown complete")
}

func newLogger() (*zap.Logger, error) {
	if os.Getenv("ENV") == "production" {
		return zap.NewProduction()
	}
	return zap.NewDevelopment()
}

func loadConfig(path string, log *zap.SugaredLogger) (*config.Config, error) {
	cfg, err := config.Load(path)
	if err != nil {
		if os.IsNotExist(err) {
			log.Warnw("config file not found, using defaults", "path", path)
			cfg = config.DefaultConfig()
			cfg.DatabaseDSN = os.Getenv("DATABASE_DSN")
			return cfg, cfg.Validate()
		}
		return nil, err
	}
	return cfg, nil
}
