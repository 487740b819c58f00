package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/fieldsync/fieldsync/internal/config"
	coresync "github.com/fieldsync/fieldsync/internal/core/sync"
	"github.com/fieldsync/fieldsync/internal/injector"
	"github.com/fieldsync/fieldsync/internal/observability/log"
	"github.com/fieldsync/fieldsync/internal/server"
	memorystore "github.com/fieldsync/fieldsync/internal/store/memory"
	mongostore "github.com/fieldsync/fieldsync/internal/store/mongo"
)

func main() {
	configPath := flag.String("config", "", "path to YAML configuration file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, "config error:", err)
		os.Exit(1)
	}

	logger := log.New(cfg.Log.Level)
	defer func() { _ = logger.Sync() }()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var (
		entities coresync.EntityStore
		logs     coresync.SyncLogStore
	)
	switch cfg.Store.Backend {
	case "mongo":
		st, err := mongostore.New(ctx, cfg.Store.Mongo)
		if err != nil {
			logger.Error("failed to connect to store", log.Error(err))
			os.Exit(1)
		}
		defer func() { _ = st.Close(context.Background()) }()
		entities, logs = st, st
	case "memory", "":
		st := memorystore.New()
		entities, logs = st, st
	default:
		logger.Error("unknown store backend", log.String("backend", cfg.Store.Backend))
		os.Exit(1)
	}

	engine := injector.InitializeEngine(entities, logs, logger)

	srv, err := server.New(cfg.Server, engine, logger)
	if err != nil {
		logger.Error("failed to build server", log.Error(err))
		os.Exit(1)
	}

	if err := srv.Start(ctx); err != nil {
		logger.Error("failed to start server", log.Error(err))
		os.Exit(1)
	}

	stopCh := make(chan os.Signal, 1)
	signal.Notify(stopCh, os.Interrupt, syscall.SIGTERM)
	<-stopCh
	cancel()

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout.Std())
	defer cancelShutdown()
	if err := srv.Stop(shutdownCtx); err != nil {
		logger.Error("shutdown failed", log.Error(err))
	}
}
