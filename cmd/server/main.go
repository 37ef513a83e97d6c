// Command server is the tick engine's process entrypoint: it wires
// config, logging, metrics, persistence and the gateway around a
// single in-memory World, then alternates between advancing the tick
// and serving HTTP until a signal asks for a graceful shutdown.
package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/caolo/simcore/auth"
	"github.com/caolo/simcore/cache"
	"github.com/caolo/simcore/config"
	"github.com/caolo/simcore/engine"
	"github.com/caolo/simcore/gateway"
	"github.com/caolo/simcore/persistence"
	"github.com/caolo/simcore/pkg/database"
	"github.com/caolo/simcore/pkg/monitoring"
	"github.com/caolo/simcore/scriptapi"
	"github.com/caolo/simcore/world"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	logger, err := cfg.CreateLogger()
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer logger.Sync()

	metrics := monitoring.New()

	db, err := database.Open(&cfg.Database, logger)
	if err != nil {
		logger.Fatal("database open failed", zap.Error(err))
	}
	if err := persistence.Migrate(db); err != nil {
		logger.Fatal("database migration failed", zap.Error(err))
	}

	redisCache, err := cache.NewRedisCache(&cfg.Redis, logger, metrics)
	if err != nil {
		logger.Fatal("redis connect failed", zap.Error(err))
	}
	defer redisCache.Close()

	schema := scriptapi.NewSchema()
	store := persistence.NewStore(db, redisCache, logger, &schema)

	w := world.New()
	var worldMu sync.RWMutex

	validator := auth.NewValidator(&cfg.Auth)

	hub := gateway.NewHub(logger, metrics)
	go hub.Run()

	server := &gateway.Server{
		World:      w,
		WorldMutex: &worldMu,
		Store:      store,
		Validator:  validator,
		Hub:        hub,
		Log:        logger,
		Metrics:    metrics,
	}
	router := gateway.NewRouter(server, &cfg.Security, validator)

	mux := http.NewServeMux()
	mux.Handle("/", router)
	mux.Handle("/metrics", metrics.Handler())

	httpServer := &http.Server{
		Addr:         cfg.GetServerAddress(),
		Handler:      mux,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	stopTicking := make(chan struct{})
	var tickWg sync.WaitGroup
	tickWg.Add(1)
	go runTickLoop(cfg, w, &worldMu, hub, metrics, logger, stopTicking, &tickWg)

	go func() {
		logger.Info("gateway listening", zap.String("addr", httpServer.Addr))
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("gateway failed", zap.Error(err))
		}
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
	<-sig

	logger.Info("shutting down")
	close(stopTicking)
	tickWg.Wait()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(ctx); err != nil {
		logger.Error("graceful shutdown failed", zap.Error(err))
	}
	logger.Info("stopped")
}

// runTickLoop advances world once per cfg.Engine.TickInterval, holding
// worldMu for write only around the tick itself so gateway reads never
// see a partially-applied tick. A failed tick (one or more aborted
// scripts) still publishes the snapshot — ScriptError never rolls back
// the mutations a tick already committed.
func runTickLoop(
	cfg *config.Config,
	w *world.World,
	worldMu *sync.RWMutex,
	hub *gateway.Hub,
	metrics *monitoring.Metrics,
	logger *zap.Logger,
	stop <-chan struct{},
	wg *sync.WaitGroup,
) {
	defer wg.Done()
	ticker := time.NewTicker(cfg.Engine.TickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			start := time.Now()
			worldMu.Lock()
			err := engine.Forward(w)
			snapshot := world.Snapshot(w)
			worldMu.Unlock()

			metrics.ObserveTick(time.Since(start), err != nil)
			if err != nil {
				logger.Warn("tick reported script error", zap.Error(err))
			}
			hub.Broadcast(snapshot)
		}
	}
}
