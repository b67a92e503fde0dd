/* Copyright (c) 2025 Hamed Shams <https://hamedshams.com>
 * SPDX-License-Identifier: BSD-3-Clause */
package main

import (
    "context"
    "os"
    "os/signal"
    "syscall"
    "time"

    "github.com/prometheus/client_golang/prometheus"

    "github.com/owentl/gitlab-prometheus/internal/adapters/gitlab"
    "github.com/owentl/gitlab-prometheus/internal/config"
    gphttp "github.com/owentl/gitlab-prometheus/internal/http"
    "github.com/owentl/gitlab-prometheus/internal/jobs"
    "github.com/owentl/gitlab-prometheus/internal/logger"
    "github.com/owentl/gitlab-prometheus/internal/metrics"
    "github.com/owentl/gitlab-prometheus/internal/services"
)

func main() {
    cfg := config.Load()
    log := logger.New(cfg)
    if err := config.Validate(cfg); err != nil {
        log.Fatal().Err(err).Msg("invalid configuration")
    }
    ctx, cancel := context.WithCancel(context.Background())
    defer cancel()

    // Adapters
    gl := gitlab.NewClient(cfg, log)

    // Publisher
    registry := metrics.New(prometheus.NewRegistry())

    // Services
    tax, err := services.NewTaxonomy(cfg)
    if err != nil {
        log.Fatal().Err(err).Msg("invalid label taxonomy")
    }
    svc := services.New(cfg, log, gl, registry, tax)

    // Warm the iteration cache so the first scrape skips the lookup
    {
        ctx2, cancel2 := context.WithTimeout(ctx, 20*time.Second)
        if err := svc.RefreshIteration(ctx2); err != nil {
            log.Error().Err(err).Msg("startup iteration resolve failed; first scrape will retry")
        }
        cancel2()
    }

    // Cron
    cr := jobs.NewCron(cfg, log, svc)
    cr.Start()
    defer cr.Stop()

    // Teams-file hot reload
    if cfg.TeamsFile != "" {
        go func() {
            if err := config.WatchTeamsFile(ctx, cfg.TeamsFile, log, svc.SetTeams); err != nil {
                log.Error().Err(err).Str("path", cfg.TeamsFile).Msg("teams file watch stopped")
            }
        }()
    }

    // HTTP server (Gin)
    router := gphttp.NewRouter(cfg, log, svc, registry.Handler())

    errCh := make(chan error, 1)
    go func() { errCh <- router.Run(cfg.HTTPAddr) }()

    sigCh := make(chan os.Signal, 1)
    signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

    select {
    case <-sigCh:
        log.Info().Msg("shutting down...")
    case err := <-errCh:
        if err != nil { log.Error().Err(err).Msg("http server error") }
    }

    time.Sleep(500 * time.Millisecond)
}
