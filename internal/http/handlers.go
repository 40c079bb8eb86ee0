/* Copyright (c) 2025 Hamed Shams <https://hamedshams.com>
 * SPDX-License-Identifier: BSD-3-Clause */
package http

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"sprintboard/internal/adapters/jira"
	"sprintboard/internal/config"
	"sprintboard/internal/domain"
	"sprintboard/internal/services"
)

type service interface {
	ClosedIterations(ctx context.Context, limit int) ([]domain.Iteration, error)
	IterationDetail(ctx context.Context, iterationID int64, customer string) (*services.IterationDetail, error)
	EnsureSnapshot(ctx context.Context, iterationID int64) error
}

type cacheClearer interface {
	Invalidate()
}

type Handlers struct {
	cfg config.Config
	log zerolog.Logger
	svc service
	cat cacheClearer
}

func NewHandlers(cfg config.Config, log zerolog.Logger, svc service, cat cacheClearer) *Handlers {
	return &Handlers{cfg: cfg, log: log, svc: svc, cat: cat}
}

func (h *Handlers) Healthz(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

func (h *Handlers) ListIterations(c *gin.Context) {
	limit := 0
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid limit"})
			return
		}
		limit = n
	}
	iters, err := h.svc.ClosedIterations(c.Request.Context(), limit)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"iterations": iters})
}

func (h *Handlers) IterationDetail(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid iteration id"})
		return
	}
	detail, err := h.svc.IterationDetail(c.Request.Context(), id, c.Query("customer"))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, detail)
}

// EnsureSnapshot is the scheduler trigger boundary, also callable by an
// operator. Idempotent: repeat calls on a captured iteration are no-ops.
func (h *Handlers) EnsureSnapshot(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid iteration id"})
		return
	}
	if err := h.svc.EnsureSnapshot(c.Request.Context(), id); err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

func (h *Handlers) ClearCatalogCache(c *gin.Context) {
	h.cat.Invalidate()
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

// fail maps the error taxonomy onto status codes: exhausted-retry upstream
// failures read as "temporarily unavailable, retry"; anything else from the
// tracker is a configuration or logic problem.
func (h *Handlers) fail(c *gin.Context, err error) {
	if errors.Is(err, jira.ErrUpstreamUnavailable) {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "iteration data temporarily unavailable, retry"})
		return
	}
	var se *jira.StatusError
	if errors.As(err, &se) {
		h.log.Error().Int("upstream_status", se.Code).Msg("upstream rejected request")
		c.JSON(http.StatusBadGateway, gin.H{"error": "upstream rejected request"})
		return
	}
	c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
}
