package main

import (
	"context"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/sentinelx/sentinelx/pkg/config"
	"github.com/sentinelx/sentinelx/pkg/feeds"
	"github.com/sentinelx/sentinelx/pkg/intel"
	"github.com/sentinelx/sentinelx/pkg/pipeline"
	"github.com/sentinelx/sentinelx/pkg/scheduler"
	"github.com/sentinelx/sentinelx/pkg/server"
	"github.com/sentinelx/sentinelx/pkg/store"
	"github.com/sentinelx/sentinelx/pkg/telemetry"
	"github.com/sentinelx/sentinelx/pkg/yararules"
)

func main() {
	opts, err := config.ParseOptions()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to parse options")
	}

	level, err := zerolog.ParseLevel(*opts.LogLevel)
	if err != nil {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix

	cfg, err := config.ParseConfig(*opts.ConfigPath)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to parse config")
	}

	telemetry.InitMetrics()

	st, err := store.NewSQLiteStore(*opts.DatabasePath)
	if err != nil {
		log.Fatal().Err(err).Str("path", *opts.DatabasePath).Msg("failed to open store")
	}
	defer st.Close()

	repo := yararules.New(*opts.RulesPath)
	repo.FailOnCompileWarning = *opts.FailOnCompileWarning
	if err := repo.Rebuild(); err != nil {
		// keep serving; Match self-heals once the corpus compiles
		log.Error().Err(err).Msg("initial rule compile failed")
	}

	var aiClient intel.Client
	if hc := intel.NewHTTPClient(*opts.AIEndpoint, *opts.AIKey); hc != nil {
		aiClient = hc
	} else {
		log.Warn().Msg("AI completion endpoint not configured, fallback analysis disabled")
	}

	aggregator := feeds.NewAggregator(cfg, *opts.PulseKey, st, repo)
	pipe := pipeline.New(repo, st, aiClient)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	sched := scheduler.New(aggregator, time.Duration(*opts.SyncIntervalHours)*time.Hour)
	sched.Start(ctx)
	defer sched.Stop()

	srv := &http.Server{
		Addr: ":" + *opts.HTTPPort,
		Handler: (&server.Server{
			Scanner:       pipe,
			Store:         st,
			Syncer:        sched,
			MaxUploadSize: *opts.MaximumFileSize,
		}).Routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Info().Str("addr", srv.Addr).Msg("HTTP API listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error().Err(err).Msg("HTTP server failed")
			stop()
		}
	}()

	<-ctx.Done()
	log.Info().Msg("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("HTTP shutdown failed")
	}
}
