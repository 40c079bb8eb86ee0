/* Copyright (c) 2025 Hamed Shams <https://hamedshams.com>
 * SPDX-License-Identifier: BSD-3-Clause */
package services

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"sprintboard/internal/config"
	"sprintboard/internal/domain"
	"sprintboard/internal/metrics"
	"sprintboard/internal/targets"
)

// Tracker is the slice of the upstream client the orchestrator needs.
type Tracker interface {
	Sprint(ctx context.Context, sprintID int64) (*domain.Iteration, error)
	SprintIssues(ctx context.Context, sprintID int64) ([]domain.WorkItem, error)
}

// IterationSource lists closed iterations, newest first.
type IterationSource interface {
	Closed(ctx context.Context, limit int) ([]domain.Iteration, error)
}

// StatusPinner rewrites item statuses to their value at a past instant.
type StatusPinner interface {
	PinStatuses(ctx context.Context, items []domain.WorkItem, at time.Time) []domain.WorkItem
}

// SnapshotStore is the per-iteration system of record.
type SnapshotStore interface {
	Get(ctx context.Context, iterationID int64) (*domain.Snapshot, error)
	Put(ctx context.Context, snap *domain.Snapshot) (bool, error)
	ExistsClosed(ctx context.Context, iterationID int64) (bool, error)
}

// Summarizer produces the post-metrics natural-language sprint summary.
type Summarizer interface {
	SummarizeIteration(ctx context.Context, it domain.Iteration, m domain.Metrics) (string, error)
}

// IterationDetail is the resolved view handed to the dashboard layer.
type IterationDetail struct {
	Iteration domain.Iteration  `json:"iteration"`
	Items     []domain.WorkItem `json:"items"`
	Metrics   domain.Metrics    `json:"metrics"`
	Summary   string            `json:"summary,omitempty"`
	Customer  string            `json:"customer,omitempty"`
	Source    string            `json:"source"`
}

const (
	sourceSnapshot = "snapshot"
	sourceLive     = "live"
)

type Service struct {
	cfg     config.Config
	log     zerolog.Logger
	tracker Tracker
	catalog IterationSource
	pinner  StatusPinner
	store   SnapshotStore
	targets *targets.Resolver
	llm     Summarizer
}

func New(cfg config.Config, log zerolog.Logger, tracker Tracker, cat IterationSource, pinner StatusPinner, store SnapshotStore, resolver *targets.Resolver, llm Summarizer) *Service {
	return &Service{cfg: cfg, log: log, tracker: tracker, catalog: cat, pinner: pinner, store: store, targets: resolver, llm: llm}
}

// ClosedIterations lists recent closed iterations for the dashboard index.
func (s *Service) ClosedIterations(ctx context.Context, limit int) ([]domain.Iteration, error) {
	return s.catalog.Closed(ctx, limit)
}

// IterationDetail resolves one iteration's items and metrics, optionally
// scoped to a single customer.
//
// A stored snapshot always wins over live state. On a miss, live items are
// fetched; for a closed iteration each item's status is first pinned to the
// completion instant, the result is captured create-if-absent, and the frozen
// view is returned. Open iterations are served live and never captured.
func (s *Service) IterationDetail(ctx context.Context, iterationID int64, customer string) (*IterationDetail, error) {
	snap, err := s.store.Get(ctx, iterationID)
	if err != nil {
		return nil, fmt.Errorf("snapshot read: %w", err)
	}
	if snap != nil {
		return s.detailFromSnapshot(snap, customer), nil
	}

	it, err := s.tracker.Sprint(ctx, iterationID)
	if err != nil {
		return nil, fmt.Errorf("iteration %d: %w", iterationID, err)
	}
	items, err := s.tracker.SprintIssues(ctx, iterationID)
	if err != nil {
		return nil, fmt.Errorf("iteration %d items: %w", iterationID, err)
	}

	closed := it.State == domain.IterationClosed && it.CompleteAt != nil
	if closed {
		items = s.pinner.PinStatuses(ctx, items, *it.CompleteAt)
	}

	m := s.compute(iterationID, "", items)
	summary := ""
	if closed {
		summary = s.capture(ctx, *it, items, m)
	}

	detail := &IterationDetail{Iteration: *it, Items: items, Metrics: m, Summary: summary, Source: sourceLive}
	if customer != "" {
		detail.Customer = customer
		detail.Items = filterCustomer(items, customer)
		detail.Metrics = s.compute(iterationID, customer, detail.Items)
	}
	return detail, nil
}

// EnsureSnapshot captures a closed iteration once. Safe to call repeatedly:
// an existing snapshot makes it a no-op, and concurrent callers race only on
// the store's first-writer-wins insert. A not-yet-closed iteration is skipped.
func (s *Service) EnsureSnapshot(ctx context.Context, iterationID int64) error {
	snap, err := s.store.Get(ctx, iterationID)
	if err != nil {
		return fmt.Errorf("snapshot read: %w", err)
	}
	if snap != nil {
		return nil
	}
	it, err := s.tracker.Sprint(ctx, iterationID)
	if err != nil {
		return fmt.Errorf("iteration %d: %w", iterationID, err)
	}
	if it.State != domain.IterationClosed || it.CompleteAt == nil {
		s.log.Warn().Int64("iteration", iterationID).Str("state", string(it.State)).Msg("ensure snapshot: iteration not closed, skipping")
		return nil
	}
	items, err := s.tracker.SprintIssues(ctx, iterationID)
	if err != nil {
		return fmt.Errorf("iteration %d items: %w", iterationID, err)
	}
	items = s.pinner.PinStatuses(ctx, items, *it.CompleteAt)
	m := s.compute(iterationID, "", items)
	s.capture(ctx, *it, items, m)
	return nil
}

// CaptureRecentlyClosed walks the newest closed iterations and snapshots any
// that are missing. The scheduler invokes this periodically.
func (s *Service) CaptureRecentlyClosed(ctx context.Context) error {
	iters, err := s.catalog.Closed(ctx, s.cfg.CaptureLimit)
	if err != nil {
		return err
	}
	for _, it := range iters {
		ok, err := s.store.ExistsClosed(ctx, it.ID)
		if err != nil {
			return err
		}
		if ok {
			continue
		}
		if err := s.EnsureSnapshot(ctx, it.ID); err != nil {
			s.log.Error().Err(err).Int64("iteration", it.ID).Msg("capture: snapshot failed")
		}
	}
	return nil
}

// capture persists the frozen view, first writer wins. Persistence failure
// degrades to a log line; the computed result is still served.
func (s *Service) capture(ctx context.Context, it domain.Iteration, items []domain.WorkItem, m domain.Metrics) string {
	snap := &domain.Snapshot{Iteration: it, Items: items, Metrics: m, CapturedAt: time.Now().UTC()}
	if s.llm != nil {
		sum, err := s.llm.SummarizeIteration(ctx, it, m)
		if err != nil {
			s.log.Warn().Err(err).Int64("iteration", it.ID).Msg("capture: summary failed")
		} else {
			snap.Summary = sum
		}
	}
	created, err := s.store.Put(ctx, snap)
	if err != nil {
		s.log.Error().Err(err).Int64("iteration", it.ID).Msg("capture: snapshot write failed")
		return snap.Summary
	}
	if created {
		s.log.Info().Int64("iteration", it.ID).Int("items", len(items)).Msg("capture: snapshot stored")
	}
	return snap.Summary
}

// detailFromSnapshot serves a stored snapshot. A customer-scoped read derives
// a filtered copy and recomputes metrics against that customer's target; the
// stored record is never touched.
func (s *Service) detailFromSnapshot(snap *domain.Snapshot, customer string) *IterationDetail {
	detail := &IterationDetail{
		Iteration: snap.Iteration,
		Items:     snap.Items,
		Metrics:   snap.Metrics,
		Summary:   snap.Summary,
		Source:    sourceSnapshot,
	}
	if customer != "" {
		detail.Customer = customer
		detail.Items = filterCustomer(snap.Items, customer)
		detail.Metrics = s.compute(snap.Iteration.ID, customer, detail.Items)
	}
	return detail
}

func (s *Service) compute(iterationID int64, customer string, items []domain.WorkItem) domain.Metrics {
	total := metrics.TotalPoints(items)
	target := s.targets.Resolve(iterationID, customer, metrics.Customers(items), total)
	return metrics.Aggregate(items, target)
}

func filterCustomer(items []domain.WorkItem, customer string) []domain.WorkItem {
	out := make([]domain.WorkItem, 0, len(items))
	for _, it := range items {
		if it.Customer == customer {
			out = append(out, it)
		}
	}
	return out
}
