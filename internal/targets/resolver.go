/* Copyright (c) 2025 Hamed Shams <https://hamedshams.com>
 * SPDX-License-Identifier: BSD-3-Clause */
package targets

import "sprintboard/internal/domain"

// Source exposes the two configured target lists.
type Source interface {
	CustomerTarget(customer string) (float64, bool)
	IterationTarget(iterationID int64) (domain.IterationTarget, bool)
}

// Resolver picks the completion-rate denominator for an iteration.
type Resolver struct {
	src Source
}

func NewResolver(src Source) *Resolver { return &Resolver{src: src} }

// Resolve returns the point target for an iteration.
//
// With a customer filter active the customer's configured target wins; absent
// one, the customer-filtered total becomes the target so the rate reads 100%
// only when everything is done. Without a filter, a persisted per-iteration
// target takes precedence over the sum of observed customers' targets, so
// historical iterations keep their manually recorded target even after
// customer targets drift. Customers with no configured target contribute 0.
func (r *Resolver) Resolve(iterationID int64, customer string, customers []string, totalPoints float64) float64 {
	if customer != "" {
		if t, ok := r.src.CustomerTarget(customer); ok {
			return t
		}
		return totalPoints
	}
	if t, ok := r.src.IterationTarget(iterationID); ok {
		return t.Points
	}
	sum := 0.0
	for _, c := range customers {
		if t, ok := r.src.CustomerTarget(c); ok {
			sum += t
		}
	}
	return sum
}
