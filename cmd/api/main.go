/* Copyright (c) 2025 Hamed Shams <https://hamedshams.com>
 * SPDX-License-Identifier: BSD-3-Clause */
package main

import (
	"context"
	"os"
	"os/signal"
	"regexp"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"sprintboard/internal/adapters/jira"
	"sprintboard/internal/adapters/openai"
	"sprintboard/internal/catalog"
	"sprintboard/internal/config"
	httpx "sprintboard/internal/http"
	"sprintboard/internal/jobs"
	"sprintboard/internal/logger"
	"sprintboard/internal/replay"
	"sprintboard/internal/services"
	"sprintboard/internal/snapshot"
	"sprintboard/internal/targets"
)

func main() {
	_ = godotenv.Load()
	cfg := config.Load()
	log := logger.New(cfg)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Snapshot store: Postgres when configured, in-memory for dev runs
	var store services.SnapshotStore
	if cfg.DBDSN != "" {
		db := snapshot.MustOpen(ctx, cfg, log)
		defer db.Close()
		pg := snapshot.NewPostgresStore(db, log)
		if err := pg.Migrate(ctx); err != nil {
			log.Fatal().Err(err).Msg("snapshot migrate failed")
		}
		store = pg
	} else {
		log.Warn().Msg("DB_DSN not set, snapshots are in-memory and lost on restart")
		store = snapshot.NewMemoryStore()
	}

	// Adapters
	jc := jira.NewClient(cfg, log)
	var llm services.Summarizer
	if cfg.OpenAIKey != "" {
		llm = openai.NewClient(cfg, log)
	}

	// Targets settings, hot-reloaded on external edits
	targetStore := targets.NewFileStore(cfg.TargetsFile, log)
	if err := targetStore.Watch(ctx); err != nil {
		log.Warn().Err(err).Str("path", cfg.TargetsFile).Msg("targets watch unavailable")
	}

	pattern, err := regexp.Compile(cfg.SprintNamePattern)
	if err != nil {
		log.Fatal().Err(err).Str("pattern", cfg.SprintNamePattern).Msg("invalid SPRINT_NAME_PATTERN")
	}

	// Services
	cat := catalog.New(jc, cfg.JiraBoardIDs, pattern, cfg.CatalogTTL, log)
	pinner := replay.New(jc, log, cfg.ReplayBatchSize, cfg.ReplayBatchDelay)
	svc := services.New(cfg, log, jc, cat, pinner, store, targets.NewResolver(targetStore), llm)

	// HTTP server (Gin)
	router := httpx.NewRouter(cfg, log, svc, cat)

	// Cron
	cron := jobs.NewCron(cfg, log, svc, store)
	cron.Start()
	defer cron.Stop()

	// graceful shutdown
	errCh := make(chan error, 1)
	go func() { errCh <- router.Run(cfg.HTTPAddr) }()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	select {
	case <-sigCh:
		log.Info().Msg("shutting down...")
	case err := <-errCh:
		if err != nil {
			log.Error().Err(err).Msg("http server error")
		}
	}

	time.Sleep(500 * time.Millisecond)
}
