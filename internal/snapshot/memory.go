/* Copyright (c) 2025 Hamed Shams <https://hamedshams.com>
 * SPDX-License-Identifier: BSD-3-Clause */
package snapshot

import (
	"context"
	"sync"

	"sprintboard/internal/domain"
)

// MemoryStore keeps snapshots in process memory. It backs tests and dev runs
// without a database; each instance is constructed per process and injected,
// never shared as a package global.
type MemoryStore struct {
	mu    sync.RWMutex
	snaps map[int64]*domain.Snapshot
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{snaps: map[int64]*domain.Snapshot{}}
}

func (s *MemoryStore) Get(_ context.Context, iterationID int64) (*domain.Snapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	snap, ok := s.snaps[iterationID]
	if !ok {
		return nil, nil
	}
	// callers must never see the stored value through a shared pointer
	cp := *snap
	cp.Items = append([]domain.WorkItem(nil), snap.Items...)
	return &cp, nil
}

func (s *MemoryStore) Put(_ context.Context, snap *domain.Snapshot) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.snaps[snap.Iteration.ID]; ok {
		return false, nil
	}
	cp := *snap
	cp.Items = append([]domain.WorkItem(nil), snap.Items...)
	s.snaps[snap.Iteration.ID] = &cp
	return true, nil
}

func (s *MemoryStore) ExistsClosed(_ context.Context, iterationID int64) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	snap, ok := s.snaps[iterationID]
	return ok && snap.Iteration.State == domain.IterationClosed, nil
}
