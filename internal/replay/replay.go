/* Copyright (c) 2025 Hamed Shams <https://hamedshams.com>
 * SPDX-License-Identifier: BSD-3-Clause */

// Package replay reconstructs the status a work item held at a past instant
// from its append-only audit trail. The upstream tracker only exposes current
// state, so closed-iteration metrics depend on this replay.
package replay

import (
	"context"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"sprintboard/internal/domain"
)

// StatusAt returns the status the item held at the target instant. It is a
// pure function of (current status, creation time, ordered trail, target).
//
// ok is false when the item did not exist yet at the target instant; such
// items are not counted. Events timestamped exactly at the target are treated
// as already applied (inclusive boundary). When every status event falls
// after the target, the oldest such event's "from" value approximates the
// state before any in-window change. An item with no status events at all has
// held its current status since creation.
func StatusAt(current string, created time.Time, events []domain.ChangeEvent, at time.Time) (string, bool) {
	if created.After(at) {
		return "", false
	}
	fallback := ""
	haveFallback := false
	for i := len(events) - 1; i >= 0; i-- {
		e := events[i]
		if !strings.EqualFold(e.Field, "status") {
			continue
		}
		if !e.At.After(at) {
			return e.To, true
		}
		fallback = e.From
		haveFallback = true
	}
	if haveFallback {
		return fallback, true
	}
	return current, true
}

// HistoryFetcher provides a single item's trail. Exactly one upstream call
// per item.
type HistoryFetcher interface {
	ItemHistory(ctx context.Context, key string) (*domain.ItemHistory, error)
}

type Replayer struct {
	fetcher    HistoryFetcher
	log        zerolog.Logger
	batchSize  int
	batchDelay time.Duration
	sleep      func(time.Duration)
}

func New(fetcher HistoryFetcher, log zerolog.Logger, batchSize int, batchDelay time.Duration) *Replayer {
	if batchSize <= 0 {
		batchSize = 10
	}
	return &Replayer{fetcher: fetcher, log: log, batchSize: batchSize, batchDelay: batchDelay, sleep: time.Sleep}
}

// PinStatuses replaces each item's live status with the status it held at the
// target instant. Items are fetched in fixed-size concurrent batches with a
// delay between batches to stay under upstream rate limits; peak concurrency
// never exceeds the batch size.
//
// A fetch or parse failure for a single item keeps that item's current status
// rather than failing the batch. Items created after the target instant are
// dropped from the result.
func (r *Replayer) PinStatuses(ctx context.Context, items []domain.WorkItem, at time.Time) []domain.WorkItem {
	pinned := make([]domain.WorkItem, len(items))
	copy(pinned, items)
	drop := make([]bool, len(items))

	for start := 0; start < len(pinned); start += r.batchSize {
		end := start + r.batchSize
		if end > len(pinned) {
			end = len(pinned)
		}
		var g errgroup.Group
		for i := start; i < end; i++ {
			i := i
			g.Go(func() error {
				h, err := r.fetcher.ItemHistory(ctx, pinned[i].Key)
				if err != nil {
					r.log.Warn().Err(err).Str("key", pinned[i].Key).Msg("replay: history fetch failed, keeping current status")
					return nil
				}
				status, ok := StatusAt(h.Status, h.CreatedAt, h.Events, at)
				if !ok {
					drop[i] = true
					return nil
				}
				if status != "" {
					pinned[i].Status = status
				}
				return nil
			})
		}
		_ = g.Wait()
		if end < len(pinned) {
			r.sleep(r.batchDelay)
		}
	}

	out := pinned[:0]
	for i, it := range pinned {
		if !drop[i] {
			out = append(out, it)
		}
	}
	return out
}
