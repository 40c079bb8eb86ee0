/* Copyright (c) 2025 Hamed Shams <https://hamedshams.com>
 * SPDX-License-Identifier: BSD-3-Clause */

// Package catalog discovers closed iterations across the configured boards
// and caches the sorted result for a bounded window.
package catalog

import (
	"context"
	"regexp"
	"sort"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"sprintboard/internal/domain"
)

// SprintLister is the slice of the tracker client the catalog needs.
type SprintLister interface {
	BoardSprints(ctx context.Context, boardID int64, state domain.IterationState) ([]domain.Iteration, error)
}

type cached struct {
	at         time.Time
	iterations []domain.Iteration
}

type Catalog struct {
	lister  SprintLister
	boards  []int64
	pattern *regexp.Regexp
	ttl     time.Duration
	log     zerolog.Logger

	cache atomic.Pointer[cached]
	now   func() time.Time
}

func New(lister SprintLister, boards []int64, pattern *regexp.Regexp, ttl time.Duration, log zerolog.Logger) *Catalog {
	return &Catalog{lister: lister, boards: boards, pattern: pattern, ttl: ttl, log: log, now: time.Now}
}

// Closed returns the closed iterations across all boards, newest first by
// completion time, at most limit entries (limit <= 0 means all). The full
// sorted superset is cached for the TTL window; calls within the window never
// touch the upstream regardless of limit. A refresh race can at worst serve a
// result a few milliseconds stale, which is fine here.
func (c *Catalog) Closed(ctx context.Context, limit int) ([]domain.Iteration, error) {
	if entry := c.cache.Load(); entry != nil && c.now().Sub(entry.at) < c.ttl {
		return slice(entry.iterations, limit), nil
	}

	byID := map[int64]domain.Iteration{}
	for _, board := range c.boards {
		sprints, err := c.lister.BoardSprints(ctx, board, domain.IterationClosed)
		if err != nil {
			return nil, err
		}
		for _, it := range sprints {
			if it.CompleteAt == nil {
				continue
			}
			if c.pattern != nil && !c.pattern.MatchString(it.Name) {
				continue
			}
			// boards are assumed non-conflicting; last writer wins
			byID[it.ID] = it
		}
	}
	all := make([]domain.Iteration, 0, len(byID))
	for _, it := range byID {
		all = append(all, it)
	}
	sort.Slice(all, func(i, j int) bool { return all[i].CompleteAt.After(*all[j].CompleteAt) })

	c.cache.Store(&cached{at: c.now(), iterations: all})
	c.log.Debug().Int("count", len(all)).Msg("catalog: refreshed closed iterations")
	return slice(all, limit), nil
}

// Invalidate drops the cached listing. It exists only for the administrative
// cache-clear surface; the catalog itself expires entries by time alone.
func (c *Catalog) Invalidate() {
	c.cache.Store(nil)
}

func slice(all []domain.Iteration, limit int) []domain.Iteration {
	if limit <= 0 || limit >= len(all) {
		return all
	}
	return all[:limit]
}
