/* Copyright (c) 2025 Hamed Shams <https://hamedshams.com>
 * SPDX-License-Identifier: BSD-3-Clause */
package http

import (
    "context"
    "net/http"

    "github.com/gin-gonic/gin"
    "github.com/rs/zerolog"

    "github.com/owentl/gitlab-prometheus/internal/config"
    "github.com/owentl/gitlab-prometheus/internal/domain"
)

type service interface {
    Refresh(ctx context.Context) error
    Snapshot() *domain.Snapshot
}

type Handlers struct {
    cfg     config.Config
    log     zerolog.Logger
    svc     service
    metrics http.Handler
}

func NewHandlers(cfg config.Config, log zerolog.Logger, svc service, metrics http.Handler) *Handlers {
    return &Handlers{cfg: cfg, log: log, svc: svc, metrics: metrics}
}

func (h *Handlers) Healthz(c *gin.Context) {
    c.JSON(http.StatusOK, gin.H{"ok": true})
}

// Metrics runs the full fetch-and-aggregate cycle, then renders whatever the
// registry holds. A failed refresh only logs: the registry still carries the
// previous snapshot, and stale-but-valid beats wrong.
func (h *Handlers) Metrics(c *gin.Context) {
    if err := h.svc.Refresh(c.Request.Context()); err != nil {
        h.log.Error().Err(err).Msg("scrape refresh failed; serving previous snapshot")
    }
    h.metrics.ServeHTTP(c.Writer, c.Request)
}

// Retro returns one team's tallies as JSON, for eyeballing outside Grafana.
func (h *Handlers) Retro(c *gin.Context) {
    snap := h.svc.Snapshot()
    if snap == nil {
        c.JSON(http.StatusServiceUnavailable, gin.H{"error": "no snapshot yet"})
        return
    }
    team := c.Param("team")
    tallies, ok := snap.Teams[team]
    if !ok {
        c.JSON(http.StatusNotFound, gin.H{"error": "unknown team: " + team})
        return
    }
    c.JSON(http.StatusOK, gin.H{"iteration": snap.Iteration, "team": team, "tallies": tallies})
}

func (h *Handlers) RefreshNow(c *gin.Context) {
    if err := h.svc.Refresh(c.Request.Context()); err != nil {
        c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
        return
    }
    c.JSON(http.StatusOK, gin.H{"status": "refreshed"})
}
