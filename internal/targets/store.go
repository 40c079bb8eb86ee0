/* Copyright (c) 2025 Hamed Shams <https://hamedshams.com>
 * SPDX-License-Identifier: BSD-3-Clause */

// Package targets reads the externally-edited point-target settings: a
// customer -> target list and an iteration -> target list. The settings
// surface that writes the file is a separate application; this side only
// reads, and hot-reloads on file change.
package targets

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"sync/atomic"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"

	"sprintboard/internal/domain"
)

type settingsFile struct {
	Customers  []domain.CustomerTarget  `json:"customers"`
	Iterations []domain.IterationTarget `json:"iterations"`
}

type settings struct {
	customers  map[string]float64
	iterations map[int64]domain.IterationTarget
}

type FileStore struct {
	path string
	log  zerolog.Logger
	cur  atomic.Pointer[settings]
}

// NewFileStore loads the targets file. A missing file is not an error: no
// configured target just means the fallback denominator applies.
func NewFileStore(path string, log zerolog.Logger) *FileStore {
	s := &FileStore{path: path, log: log}
	s.cur.Store(&settings{customers: map[string]float64{}, iterations: map[int64]domain.IterationTarget{}})
	if err := s.Reload(); err != nil && !os.IsNotExist(err) {
		log.Warn().Err(err).Str("path", path).Msg("targets: initial load failed")
	}
	return s
}

// Reload re-reads the file. On parse error the last good version stays active.
func (s *FileStore) Reload() error {
	data, err := os.ReadFile(s.path)
	if err != nil {
		return err
	}
	var f settingsFile
	if err := json.Unmarshal(data, &f); err != nil {
		return err
	}
	next := &settings{
		customers:  make(map[string]float64, len(f.Customers)),
		iterations: make(map[int64]domain.IterationTarget, len(f.Iterations)),
	}
	for _, c := range f.Customers {
		if c.Customer != "" {
			next.customers[c.Customer] = c.Points
		}
	}
	for _, it := range f.Iterations {
		if it.IterationID > 0 {
			next.iterations[it.IterationID] = it
		}
	}
	s.cur.Store(next)
	return nil
}

// Watch reloads the store whenever the settings surface rewrites the file.
// The directory is watched rather than the file, since editors and atomic
// writers replace the file inode.
func (s *FileStore) Watch(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	dir := filepath.Dir(s.path)
	if err := watcher.Add(dir); err != nil {
		watcher.Close()
		return err
	}
	name := filepath.Base(s.path)
	go func() {
		defer watcher.Close()
		for {
			select {
			case <-ctx.Done():
				return
			case ev, ok := <-watcher.Events:
				if !ok {
					return
				}
				if filepath.Base(ev.Name) != name {
					continue
				}
				if ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
					continue
				}
				if err := s.Reload(); err != nil {
					s.log.Warn().Err(err).Str("path", s.path).Msg("targets: reload failed, keeping previous settings")
				} else {
					s.log.Info().Str("path", s.path).Msg("targets: reloaded")
				}
			case _, ok := <-watcher.Errors:
				if !ok {
					return
				}
			}
		}
	}()
	return nil
}

func (s *FileStore) CustomerTarget(customer string) (float64, bool) {
	v, ok := s.cur.Load().customers[customer]
	return v, ok
}

func (s *FileStore) IterationTarget(iterationID int64) (domain.IterationTarget, bool) {
	v, ok := s.cur.Load().iterations[iterationID]
	return v, ok
}
