package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"sprintboard/internal/config"
	"sprintboard/internal/domain"
	"sprintboard/internal/snapshot"
	"sprintboard/internal/targets"
)

type fakeTracker struct {
	iteration   *domain.Iteration
	items       []domain.WorkItem
	err         error
	sprintCalls int
	issuesCalls int
}

func (f *fakeTracker) Sprint(_ context.Context, _ int64) (*domain.Iteration, error) {
	f.sprintCalls++
	if f.err != nil {
		return nil, f.err
	}
	cp := *f.iteration
	return &cp, nil
}

func (f *fakeTracker) SprintIssues(_ context.Context, _ int64) ([]domain.WorkItem, error) {
	f.issuesCalls++
	if f.err != nil {
		return nil, f.err
	}
	return append([]domain.WorkItem(nil), f.items...), nil
}

type fakeCatalog struct {
	iterations []domain.Iteration
	err        error
}

func (f *fakeCatalog) Closed(_ context.Context, limit int) ([]domain.Iteration, error) {
	if f.err != nil {
		return nil, f.err
	}
	if limit > 0 && limit < len(f.iterations) {
		return f.iterations[:limit], nil
	}
	return f.iterations, nil
}

// fakePinner marks every item Done and records the pin instant.
type fakePinner struct {
	calls int
	at    time.Time
}

func (f *fakePinner) PinStatuses(_ context.Context, items []domain.WorkItem, at time.Time) []domain.WorkItem {
	f.calls++
	f.at = at
	out := append([]domain.WorkItem(nil), items...)
	for i := range out {
		out[i].Status = domain.StatusDone
	}
	return out
}

type staticTargets map[string]float64

func (s staticTargets) CustomerTarget(c string) (float64, bool) {
	v, ok := s[c]
	return v, ok
}

func (staticTargets) IterationTarget(int64) (domain.IterationTarget, bool) {
	return domain.IterationTarget{}, false
}

func completeAt() *time.Time {
	t := time.Date(2026, 1, 24, 10, 0, 0, 0, time.UTC)
	return &t
}

func closedIteration() *domain.Iteration {
	return &domain.Iteration{ID: 7, Name: "Sprint 41", State: domain.IterationClosed, CompleteAt: completeAt()}
}

func activeIteration() *domain.Iteration {
	return &domain.Iteration{ID: 8, Name: "Sprint 42", State: domain.IterationActive}
}

func mixedItems() []domain.WorkItem {
	return []domain.WorkItem{
		{Key: "SB-1", Status: "In Progress", Points: 10, Customer: "acme"},
		{Key: "SB-2", Status: "In Progress", Points: 20, Customer: "globex"},
	}
}

func newTestService(tracker Tracker, cat IterationSource, pinner StatusPinner, store SnapshotStore, tg targets.Source) *Service {
	cfg := config.Config{CaptureLimit: 6}
	return New(cfg, zerolog.Nop(), tracker, cat, pinner, store, targets.NewResolver(tg), nil)
}

func TestIterationDetail_SnapshotHitSkipsUpstream(t *testing.T) {
	ctx := context.Background()
	store := snapshot.NewMemoryStore()
	stored := &domain.Snapshot{
		Iteration:  *closedIteration(),
		Items:      []domain.WorkItem{{Key: "SB-1", Status: domain.StatusDone, Points: 5}},
		Metrics:    domain.Metrics{TotalPoints: 5, CompletedPoints: 5, CompletionRate: 100},
		Summary:    "all done",
		CapturedAt: time.Now().UTC(),
	}
	if _, err := store.Put(ctx, stored); err != nil {
		t.Fatal(err)
	}

	tracker := &fakeTracker{}
	svc := newTestService(tracker, &fakeCatalog{}, &fakePinner{}, store, staticTargets{})

	got, err := svc.IterationDetail(ctx, 7, "")
	if err != nil {
		t.Fatalf("IterationDetail: %v", err)
	}
	if got.Source != "snapshot" {
		t.Errorf("source = %q, want snapshot", got.Source)
	}
	if got.Summary != "all done" || got.Metrics.CompletionRate != 100 {
		t.Errorf("stored view not served: %+v", got)
	}
	if tracker.sprintCalls != 0 || tracker.issuesCalls != 0 {
		t.Errorf("snapshot hit still called upstream: %d/%d", tracker.sprintCalls, tracker.issuesCalls)
	}
}

func TestIterationDetail_OpenIterationServedLiveAndNotCaptured(t *testing.T) {
	ctx := context.Background()
	store := snapshot.NewMemoryStore()
	tracker := &fakeTracker{iteration: activeIteration(), items: mixedItems()}
	pinner := &fakePinner{}
	svc := newTestService(tracker, &fakeCatalog{}, pinner, store, staticTargets{})

	got, err := svc.IterationDetail(ctx, 8, "")
	if err != nil {
		t.Fatalf("IterationDetail: %v", err)
	}
	if got.Source != "live" {
		t.Errorf("source = %q, want live", got.Source)
	}
	if pinner.calls != 0 {
		t.Error("open iteration must not be status-pinned")
	}
	if snap, _ := store.Get(ctx, 8); snap != nil {
		t.Error("open iteration must not be captured")
	}
	if got.Metrics.TotalPoints != 30 {
		t.Errorf("total = %v, want 30", got.Metrics.TotalPoints)
	}
}

func TestIterationDetail_ClosedMissPinsAndCaptures(t *testing.T) {
	ctx := context.Background()
	store := snapshot.NewMemoryStore()
	tracker := &fakeTracker{iteration: closedIteration(), items: mixedItems()}
	pinner := &fakePinner{}
	svc := newTestService(tracker, &fakeCatalog{}, pinner, store, staticTargets{})

	got, err := svc.IterationDetail(ctx, 7, "")
	if err != nil {
		t.Fatalf("IterationDetail: %v", err)
	}
	if pinner.calls != 1 || !pinner.at.Equal(*completeAt()) {
		t.Fatalf("items not pinned to the completion instant: calls=%d at=%v", pinner.calls, pinner.at)
	}
	if got.Metrics.CompletedPoints != 30 {
		t.Errorf("completed = %v, want 30 after pinning", got.Metrics.CompletedPoints)
	}

	snap, err := store.Get(ctx, 7)
	if err != nil || snap == nil {
		t.Fatalf("closed miss did not capture: (%v, %v)", snap, err)
	}

	// a second read serves the stored snapshot without touching upstream
	again, err := svc.IterationDetail(ctx, 7, "")
	if err != nil {
		t.Fatalf("second IterationDetail: %v", err)
	}
	if again.Source != "snapshot" || tracker.sprintCalls != 1 {
		t.Errorf("second read went live: source=%q sprintCalls=%d", again.Source, tracker.sprintCalls)
	}
}

func TestIterationDetail_CustomerFilterRecomputesWithoutMutatingStored(t *testing.T) {
	ctx := context.Background()
	store := snapshot.NewMemoryStore()
	stored := &domain.Snapshot{
		Iteration: *closedIteration(),
		Items: []domain.WorkItem{
			{Key: "SB-1", Status: "In Progress", Points: 10, Customer: "acme"},
			{Key: "SB-2", Status: domain.StatusDone, Points: 5, Customer: "acme"},
			{Key: "SB-3", Status: domain.StatusDone, Points: 20, Customer: "globex"},
		},
		Metrics: domain.Metrics{TotalPoints: 35, CompletedPoints: 25},
	}
	if _, err := store.Put(ctx, stored); err != nil {
		t.Fatal(err)
	}
	svc := newTestService(&fakeTracker{}, &fakeCatalog{}, &fakePinner{}, store, staticTargets{"globex": 20})

	got, err := svc.IterationDetail(ctx, 7, "globex")
	if err != nil {
		t.Fatalf("IterationDetail: %v", err)
	}
	if got.Customer != "globex" || len(got.Items) != 1 || got.Items[0].Key != "SB-3" {
		t.Fatalf("filter not applied: %+v", got)
	}
	if got.Metrics.TotalPoints != 20 || got.Metrics.CompletedPoints != 20 || got.Metrics.CompletionRate != 100 {
		t.Errorf("filtered metrics = %+v, want 20/20 at 100%%", got.Metrics)
	}

	snap, _ := store.Get(ctx, 7)
	if len(snap.Items) != 3 || snap.Metrics.TotalPoints != 35 {
		t.Errorf("customer filter mutated the stored snapshot: %+v", snap)
	}
}

func TestEnsureSnapshot_IsIdempotent(t *testing.T) {
	ctx := context.Background()
	store := snapshot.NewMemoryStore()
	tracker := &fakeTracker{iteration: closedIteration(), items: mixedItems()}
	pinner := &fakePinner{}
	svc := newTestService(tracker, &fakeCatalog{}, pinner, store, staticTargets{})

	if err := svc.EnsureSnapshot(ctx, 7); err != nil {
		t.Fatalf("first EnsureSnapshot: %v", err)
	}
	if err := svc.EnsureSnapshot(ctx, 7); err != nil {
		t.Fatalf("second EnsureSnapshot: %v", err)
	}
	if tracker.sprintCalls != 1 || pinner.calls != 1 {
		t.Errorf("repeat call did work again: sprint=%d pin=%d", tracker.sprintCalls, pinner.calls)
	}
}

func TestEnsureSnapshot_SkipsOpenIteration(t *testing.T) {
	ctx := context.Background()
	store := snapshot.NewMemoryStore()
	tracker := &fakeTracker{iteration: activeIteration()}
	svc := newTestService(tracker, &fakeCatalog{}, &fakePinner{}, store, staticTargets{})

	if err := svc.EnsureSnapshot(ctx, 8); err != nil {
		t.Fatalf("EnsureSnapshot: %v", err)
	}
	if snap, _ := store.Get(ctx, 8); snap != nil {
		t.Error("open iteration must not be captured")
	}
	if tracker.issuesCalls != 0 {
		t.Error("items fetched for an iteration that cannot be captured")
	}
}

func TestIterationDetail_UpstreamErrorPropagates(t *testing.T) {
	boom := errors.New("upstream down")
	tracker := &fakeTracker{err: boom}
	svc := newTestService(tracker, &fakeCatalog{}, &fakePinner{}, snapshot.NewMemoryStore(), staticTargets{})

	if _, err := svc.IterationDetail(context.Background(), 7, ""); !errors.Is(err, boom) {
		t.Fatalf("got err %v, want wrapped %v", err, boom)
	}
}

func TestCaptureRecentlyClosed_SkipsExisting(t *testing.T) {
	ctx := context.Background()
	store := snapshot.NewMemoryStore()
	already := &domain.Snapshot{Iteration: domain.Iteration{ID: 6, State: domain.IterationClosed}}
	if _, err := store.Put(ctx, already); err != nil {
		t.Fatal(err)
	}

	tracker := &fakeTracker{iteration: closedIteration(), items: mixedItems()}
	cat := &fakeCatalog{iterations: []domain.Iteration{
		{ID: 7, State: domain.IterationClosed, CompleteAt: completeAt()},
		{ID: 6, State: domain.IterationClosed, CompleteAt: completeAt()},
	}}
	svc := newTestService(tracker, cat, &fakePinner{}, store, staticTargets{})

	if err := svc.CaptureRecentlyClosed(ctx); err != nil {
		t.Fatalf("CaptureRecentlyClosed: %v", err)
	}
	if snap, _ := store.Get(ctx, 7); snap == nil {
		t.Error("missing iteration 7 not captured")
	}
	if tracker.sprintCalls != 1 {
		t.Errorf("captured %d iterations, want only the missing one", tracker.sprintCalls)
	}
}
