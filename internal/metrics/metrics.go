/* Copyright (c) 2025 Hamed Shams <https://hamedshams.com>
 * SPDX-License-Identifier: BSD-3-Clause */

// Package metrics derives per-iteration totals from a set of work items.
// All functions are pure; persistence and target lookup live elsewhere.
package metrics

import (
	"math"
	"sort"

	"sprintboard/internal/domain"
)

// TotalPoints sums point values across items, excluding terminal
// "will not do" states.
func TotalPoints(items []domain.WorkItem) float64 {
	total := 0.0
	for _, it := range items {
		if domain.Discarded(it.Status) {
			continue
		}
		total += it.Points
	}
	return total
}

// Customers returns the distinct non-empty customer labels observed, sorted.
func Customers(items []domain.WorkItem) []string {
	seen := map[string]struct{}{}
	for _, it := range items {
		if domain.Discarded(it.Status) {
			continue
		}
		if it.Customer != "" {
			seen[it.Customer] = struct{}{}
		}
	}
	out := make([]string, 0, len(seen))
	for c := range seen {
		out = append(out, c)
	}
	sort.Strings(out)
	return out
}

// Aggregate computes the derived metrics for a set of work items against a
// resolved point target. Items in a terminal "will not do" state contribute
// to nothing. The completion rate is completed/target as a half-up integer
// percentage; with no usable target it falls back to completed/total, and to
// 0 when both are zero.
func Aggregate(items []domain.WorkItem, target float64) domain.Metrics {
	m := domain.Metrics{
		Target: target,
		ByType: map[string]domain.TypeBreakdown{},
	}
	for _, it := range items {
		if domain.Discarded(it.Status) {
			continue
		}
		m.TotalPoints += it.Points
		done := it.Status == domain.StatusDone
		if done {
			m.CompletedPoints += it.Points
		}
		if it.Type == domain.TypeBug {
			m.BugCount++
		}
		b := m.ByType[it.Type]
		b.Count++
		b.Points += it.Points
		if done {
			b.DoneCount++
			b.DonePoints += it.Points
		}
		m.ByType[it.Type] = b
	}
	m.Customers = Customers(items)
	m.CompletionRate = completionRate(m.CompletedPoints, target, m.TotalPoints)
	return m
}

func completionRate(completed, target, total float64) int {
	denom := target
	if denom <= 0 {
		denom = total
	}
	if denom <= 0 {
		return 0
	}
	return int(math.Round(completed / denom * 100))
}
