/* Copyright (c) 2025 Hamed Shams <https://hamedshams.com>
 * SPDX-License-Identifier: BSD-3-Clause */
package http

import (
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"sprintboard/internal/config"
)

func NewRouter(cfg config.Config, log zerolog.Logger, svc service, cat cacheClearer) *gin.Engine {
	if cfg.AppEnv != "dev" {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(func(c *gin.Context) {
		c.Next()
		log.Info().Str("m", c.Request.Method).Str("p", c.FullPath()).Int("s", c.Writer.Status()).Msg("http")
	})

	h := NewHandlers(cfg, log, svc, cat)

	r.GET("/healthz", h.Healthz)
	r.GET("/api/iterations", h.ListIterations)
	r.GET("/api/iterations/:id", h.IterationDetail)
	r.POST("/admin/snapshot/:id", h.EnsureSnapshot)
	r.POST("/admin/cache/clear", h.ClearCatalogCache)

	return r
}
