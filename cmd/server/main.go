package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dgallion1/docchunk/internal/api"
	"github.com/dgallion1/docchunk/internal/app"
	"github.com/dgallion1/docchunk/internal/config"
	"github.com/dgallion1/docchunk/internal/pipeline"
)

func main() {
	cfg, err := config.Load("")
	if err == nil {
		err = cfg.ValidateServer()
	}
	log := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.SlogLevel()}))
	if err != nil {
		log.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Uploads from separate jobs all start at global index 0.
	storeOpts := cfg.StoreOptions()
	storeOpts.PerDocument = true

	engine, err := app.Build(cfg, storeOpts, log)
	if err != nil {
		log.Error("pipeline setup failed", "error", err)
		os.Exit(1)
	}

	worker := pipeline.NewWorker(engine.Coordinator, engine.Sink, cfg.ParserOptions(), log)
	orch := pipeline.NewOrchestrator(pipeline.OrchestratorConfig{
		WorkerCount:  cfg.WorkerCount,
		MaxQueueSize: cfg.MaxQueueSize,
		JobTTL:       cfg.JobTTL,
	}, worker, log)
	orch.Start(ctx)

	srv := api.NewServer(orch, engine.Catalog(), engine.LLM, engine.Metrics, log, cfg)

	httpServer := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      srv,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 120 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Graceful shutdown.
	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh
		log.Info("shutting down...")

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			log.Warn("http shutdown", "error", err)
		}

		orch.Stop()
		if err := engine.Close(); err != nil {
			log.Warn("close store", "error", err)
		}
	}()

	log.Info("starting docchunk", "port", cfg.Port, "workers", cfg.WorkerCount)
	if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Error("server error", "error", err)
		os.Exit(1)
	}
}
