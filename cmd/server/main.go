package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/diewo77/conventions/internal/app"
	"github.com/diewo77/conventions/internal/config"
	"github.com/diewo77/conventions/internal/logger"
	"github.com/diewo77/conventions/internal/scheduler"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
)

var migrateOnlyFlag = flag.Bool("migrate-only", false, "Run DB migrations and exit")

func main() {
	flag.Parse()

	// Load environment variables from .env file
	_ = godotenv.Load()

	cfg := config.Load()
	if err := logger.Setup(cfg.Log); err != nil {
		log.Fatal().Err(err).Msg("invalid log configuration")
	}
	if err := cfg.Validate(); err != nil {
		log.Fatal().Err(err).Msg("invalid configuration")
	}

	c, err := app.Build(cfg, true)
	if err != nil {
		log.Fatal().Err(err).Msg("startup failed")
	}
	defer c.Close()

	if *migrateOnlyFlag {
		log.Info().Str("mode", cfg.App.Migrations).Msg("migrations completed")
		return
	}

	var sched *scheduler.Scheduler
	if cfg.Scheduler.Enabled {
		loc, _ := cfg.App.Location()
		sched, err = scheduler.New(c.Reconciler, scheduler.JobsFromConfig(cfg.Scheduler),
			cfg.Scheduler.JobTimeout, logger.WithComponent("scheduler"), scheduler.WithLocation(loc))
		if err != nil {
			log.Fatal().Err(err).Msg("scheduler setup failed")
		}
		if cfg.Scheduler.SweepOnStart {
			if _, err := c.Reconciler.RunAll(context.Background()); err != nil {
				log.Error().Err(err).Msg("startup sweep failed")
			}
		}
		sched.Start()
	}

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      withLogging(NewApp(c)),
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
		IdleTimeout:  time.Duration(cfg.Server.IdleTimeout) * time.Second,
	}

	go func() {
		log.Info().Str("port", cfg.Server.Port).Bool("dev", cfg.App.Dev).
			Bool("scheduler", cfg.Scheduler.Enabled).Msg("server starting")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info().Msg("shutdown signal received")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("http shutdown")
	}
	if sched != nil {
		if err := sched.Stop(ctx); err != nil {
			log.Error().Err(err).Msg("scheduler did not stop in time")
		}
	}
	log.Info().Msg("server stopped gracefully")
}
