/* Copyright (c) 2025 Hamed Shams <https://hamedshams.com>
 * SPDX-License-Identifier: BSD-3-Clause */
package domain

import "time"

// IterationState is the lifecycle state reported by the tracker.
type IterationState string

const (
	IterationFuture IterationState = "future"
	IterationActive IterationState = "active"
	IterationClosed IterationState = "closed"
)

// Work item statuses and types this service interprets. Everything else is
// carried through verbatim from the tracker.
const (
	StatusDone     = "Done"
	StatusCanceled = "Canceled"
	StatusWontDo   = "Won't Do"

	TypeBug = "Bug"
)

// Discarded reports whether a status is a terminal "will not do" state.
// Items in such a state are excluded from every aggregate.
func Discarded(status string) bool {
	return status == StatusCanceled || status == StatusWontDo
}

// Iteration mirrors a tracker sprint. It is created upstream and never
// mutated here; once a snapshot exists for a closed iteration the stored
// copy is authoritative.
type Iteration struct {
	ID         int64          `json:"id"`
	Name       string         `json:"name"`
	State      IterationState `json:"state"`
	Goal       string         `json:"goal,omitempty"`
	BoardID    int64          `json:"board_id,omitempty"`
	StartAt    *time.Time     `json:"start_at,omitempty"`
	EndAt      *time.Time     `json:"end_at,omitempty"`
	CompleteAt *time.Time     `json:"complete_at,omitempty"`
}

// WorkItem is one unit of trackable work within an iteration. For closed
// iterations Status holds the reconstructed at-close value, not the live one.
type WorkItem struct {
	Key        string     `json:"key"`
	Summary    string     `json:"summary"`
	Status     string     `json:"status"`
	Points     float64    `json:"points"`
	Customer   string     `json:"customer,omitempty"`
	Type       string     `json:"type"`
	Assignee   string     `json:"assignee,omitempty"`
	CreatedAt  *time.Time `json:"created_at,omitempty"`
	DueAt      *time.Time `json:"due_at,omitempty"`
	ResolvedAt *time.Time `json:"resolved_at,omitempty"`
}

// ChangeEvent is one recorded field transition in a work item's audit trail.
// Trails are append-only and ordered oldest first.
type ChangeEvent struct {
	At    time.Time `json:"at"`
	Field string    `json:"field"`
	From  string    `json:"from"`
	To    string    `json:"to"`
}

// ItemHistory is the raw material for point-in-time status reconstruction:
// the item's live status, its creation timestamp, and the full audit trail
// ordered oldest first.
type ItemHistory struct {
	Status    string        `json:"status"`
	CreatedAt time.Time     `json:"created_at"`
	Events    []ChangeEvent `json:"events"`
}

// TypeBreakdown accumulates per-item-type counts and points.
type TypeBreakdown struct {
	Count      int     `json:"count"`
	Points     float64 `json:"points"`
	DoneCount  int     `json:"done_count"`
	DonePoints float64 `json:"done_points"`
}

// Metrics is derived from a set of work items plus a resolved target. It is
// never persisted outside a Snapshot.
type Metrics struct {
	TotalPoints     float64                  `json:"total_points"`
	CompletedPoints float64                  `json:"completed_points"`
	Target          float64                  `json:"target"`
	CompletionRate  int                      `json:"completion_rate"`
	BugCount        int                      `json:"bug_count"`
	ByType          map[string]TypeBreakdown `json:"by_type"`
	Customers       []string                 `json:"customers"`
}

// Snapshot is the immutable record of a closed iteration: the frozen
// iteration, its work items at close time, and the derived metrics.
type Snapshot struct {
	Iteration  Iteration  `json:"iteration"`
	Items      []WorkItem `json:"items"`
	Metrics    Metrics    `json:"metrics"`
	Summary    string     `json:"summary,omitempty"`
	CapturedAt time.Time  `json:"captured_at"`
}

// CustomerTarget is a configured per-customer point goal.
type CustomerTarget struct {
	Customer string  `json:"customer"`
	Points   float64 `json:"points"`
}

// IterationTarget is a manually recorded point goal for one iteration,
// together with the customer set it was planned for.
type IterationTarget struct {
	IterationID int64     `json:"iteration_id"`
	Points      float64   `json:"points"`
	Customers   []string  `json:"customers,omitempty"`
	SavedAt     time.Time `json:"saved_at"`
}
