package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"fuels-pipeline/internal/api"
	"fuels-pipeline/internal/api/handler"
	"fuels-pipeline/internal/config"
	"fuels-pipeline/internal/logging"
	"fuels-pipeline/internal/metrics"
	"fuels-pipeline/internal/store"
	"fuels-pipeline/pkg/router"
	"fuels-pipeline/pkg/utils"

	"go.uber.org/zap"
)

// @title Fuels Pipeline API
// @version 1.0
// @description Runs the FastFuels domain, topography, feature and tree inventory job chain and serves its artifacts.
// @host localhost:8080
// @BasePath /api/v1
func main() {
	configPath := flag.String("config", "", "Path to the YAML config file")
	flag.Parse()

	if err := run(*configPath); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func run(configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	logger, err := logging.New(cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		return err
	}
	defer logger.Sync()

	// Init DB and output directory
	db, err := store.Open(cfg.DatabasePath)
	if err != nil {
		return fmt.Errorf("open run store: %w", err)
	}
	defer db.Close()
	if err := utils.NewOutputManager(cfg.OutputDir).EnsureOutputDirExists(); err != nil {
		return fmt.Errorf("create output dir: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Create router and register API routes
	m := metrics.New()
	h := handler.New(ctx, cfg, db, m, logger)
	r := router.New(logger.Named("http"))
	api.RegisterRoutes(r, h, m)

	// Start server; an active run is canceled with ctx and awaited before the store closes
	err = r.Start(ctx, cfg.Server.Addr, cfg.Server.ShutdownTimeout)
	stop()
	h.Wait()
	logger.Info("server stopped", zap.Error(err))
	return err
}
