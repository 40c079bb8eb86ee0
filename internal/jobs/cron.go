/* Copyright (c) 2025 Hamed Shams <https://hamedshams.com>
 * SPDX-License-Identifier: BSD-3-Clause */
package jobs

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"

	"sprintboard/internal/config"
	"sprintboard/internal/services"
)

type capturer interface {
	CaptureRecentlyClosed(ctx context.Context) error
}

// locker is satisfied by the Postgres snapshot store; the in-memory store is
// single-process so it simply skips locking.
type locker interface {
	TryAdvisoryLock(ctx context.Context, key int64) (bool, error)
	AdvisoryUnlock(ctx context.Context, key int64) error
}

type Cron struct {
	cfg   config.Config
	log   zerolog.Logger
	svc   capturer
	store services.SnapshotStore
	c     *cron.Cron
}

func NewCron(cfg config.Config, log zerolog.Logger, svc capturer, store services.SnapshotStore) *Cron {
	loc, err := time.LoadLocation(cfg.TZ)
	if err != nil {
		loc = time.Local
	}
	c := cron.New(cron.WithLocation(loc), cron.WithParser(cron.NewParser(cron.Minute|cron.Hour|cron.Dom|cron.Month|cron.Dow)))
	cr := &Cron{cfg: cfg, log: log, svc: svc, store: store, c: c}
	_, _ = c.AddFunc(cfg.CaptureCron, cr.capture)
	return cr
}

func (cr *Cron) Start() { cr.c.Start() }
func (cr *Cron) Stop()  { cr.c.Stop() }

func (cr *Cron) capture() {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
	defer cancel()
	const lockKey int64 = 727272
	if l, ok := cr.store.(locker); ok {
		got, err := l.TryAdvisoryLock(ctx, lockKey)
		if err != nil {
			cr.log.Error().Err(err).Msg("cron: lock error")
			return
		}
		if !got {
			cr.log.Info().Msg("cron: capture already running elsewhere")
			return
		}
		defer func() { _ = l.AdvisoryUnlock(context.Background(), lockKey) }()
	}
	cr.log.Info().Msg("cron: capture newly closed iterations")
	if err := cr.svc.CaptureRecentlyClosed(ctx); err != nil {
		cr.log.Error().Err(err).Msg("cron: capture failed")
	}
}
