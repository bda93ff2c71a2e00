package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sekai02/flashcache/internal/api"
	"github.com/sekai02/flashcache/internal/config"
)

func main() {
	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	cfg := config.Default()
	flag.StringVar(&cfg.DataPath, "data", cfg.DataPath, "Flash cache file")
	flag.StringVar(&cfg.IndexPath, "index", cfg.IndexPath, "Badger index directory (empty keeps the index in memory)")
	flag.Int64Var(&cfg.Capacity, "capacity", cfg.Capacity, "Cache file capacity in bytes, a multiple of the block size")
	flag.Int64Var(&cfg.PageSize, "page-size", cfg.PageSize, "Flash page size in bytes")
	flag.Int64Var(&cfg.BlockSize, "block-size", cfg.BlockSize, "Flash erase block size in bytes")
	flag.IntVar(&cfg.StreamCount, "streams", cfg.StreamCount, "Streams per entry")
	flag.Float64Var(&cfg.ReclaimThreshold, "reclaim-threshold", cfg.ReclaimThreshold, "Fraction of the log after which appends reclaim stale space")
	flag.Int64Var(&cfg.MinReclaimBytes, "min-reclaim", cfg.MinReclaimBytes, "Stale bytes required before a threshold reclaim (0 means one block)")
	flag.StringVar(&cfg.ListenAddr, "addr", cfg.ListenAddr, "HTTP listen address")
	flag.Parse()

	service, err := api.NewService(cfg)
	if err != nil {
		log.Fatal("Failed to open flash cache: ", err)
	}

	srv := &http.Server{
		Addr:    cfg.ListenAddr,
		Handler: newMux(service),
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		<-sigChan
		slog.Info("Shutting down gracefully...")
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(ctx); err != nil {
			slog.Warn("HTTP shutdown", "error", err)
		}
	}()

	slog.Info("Starting server", "addr", cfg.ListenAddr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		service.Close()
		log.Fatal(err)
	}

	if err := service.Close(); err != nil {
		slog.Error("Failed to close flash cache", "error", err)
		os.Exit(1)
	}
}
