/* Copyright (c) 2025 Hamed Shams <https://hamedshams.com>
 * SPDX-License-Identifier: BSD-3-Clause */
package http

import (
    "net/http"

    "github.com/gin-gonic/gin"
    "github.com/rs/zerolog"

    "github.com/owentl/gitlab-prometheus/internal/config"
)

func NewRouter(cfg config.Config, log zerolog.Logger, svc service, metrics http.Handler) *gin.Engine {
    if cfg.AppEnv != "dev" { gin.SetMode(gin.ReleaseMode) }
    r := gin.New()
    r.Use(gin.Recovery())
    r.Use(func(c *gin.Context) {
        c.Next()
        log.Info().Str("m", c.Request.Method).Str("p", c.FullPath()).Int("s", c.Writer.Status()).Msg("http")
    })

    h := NewHandlers(cfg, log, svc, metrics)

    r.GET("/healthz", h.Healthz)
    r.GET("/metrics", h.Metrics)
    r.GET("/retro/:team", h.Retro)
    r.POST("/admin/refresh", h.RefreshNow)

    return r
}
