// Copyright (c) 2025, PXELab Authors. All rights reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package store serves the collector's on-disk report inventory. One
// directory per host, each holding the report.json and capture tree
// that the diagnostic run produced. Scans are cached; the cache drops
// on filesystem events or TTL expiry, whichever comes first.
package store

import (
	"context"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"golang.org/x/sync/errgroup"

	"github.com/pxelab/bootprobe/pkg/defaults"
	"github.com/pxelab/bootprobe/pkg/errors"
	"github.com/pxelab/bootprobe/pkg/report"
)

// scanConcurrency bounds parallel report.json reads during a scan.
const scanConcurrency = 8

// Entry is one host's report as found on disk.
type Entry struct {
	Host     string          `json:"host"`
	Path     string          `json:"-"`
	Modified time.Time       `json:"last_modified"`
	Document report.Document `json:"document"`
}

// Store is the report inventory rooted at a single directory.
type Store struct {
	root string
	log  *slog.Logger
	ttl  time.Duration

	mu       sync.RWMutex
	cache    []*Entry
	cachedAt time.Time

	watcher *fsnotify.Watcher
	done    chan struct{}
}

// Option adjusts Store construction.
type Option func(*Store)

// WithCacheTTL overrides the scan cache lifetime.
func WithCacheTTL(ttl time.Duration) Option {
	return func(s *Store) { s.ttl = ttl }
}

// New opens a Store at root, creating the directory if needed. A
// filesystem watcher invalidates the scan cache when reports arrive;
// if watching fails the store still works on TTL expiry alone.
func New(root string, log *slog.Logger, opts ...Option) (*Store, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, errors.Wrap(errors.ErrCodeInternal, "failed to create reports root", err)
	}

	s := &Store{
		root: root,
		log:  log,
		ttl:  defaults.StoreCacheTTL,
		done: make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}

	w, err := fsnotify.NewWatcher()
	if err != nil {
		log.Warn("filesystem watch unavailable, relying on cache TTL", "error", err)
		return s, nil
	}
	if err := w.Add(root); err != nil {
		log.Warn("failed to watch reports root", "root", root, "error", err)
		w.Close()
		return s, nil
	}
	s.watcher = w
	go s.watch()
	return s, nil
}

// Close stops the filesystem watcher.
func (s *Store) Close() error {
	close(s.done)
	if s.watcher != nil {
		return s.watcher.Close()
	}
	return nil
}

// Root returns the reports root directory.
func (s *Store) Root() string { return s.root }

func (s *Store) watch() {
	for {
		select {
		case <-s.done:
			return
		case ev, ok := <-s.watcher.Events:
			if !ok {
				return
			}
			if ev.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Remove|fsnotify.Rename) != 0 {
				s.Invalidate()
			}
		case err, ok := <-s.watcher.Errors:
			if !ok {
				return
			}
			s.log.Warn("reports watch error", "error", err)
		}
	}
}

// Invalidate drops the scan cache.
func (s *Store) Invalidate() {
	s.mu.Lock()
	s.cache = nil
	s.mu.Unlock()
}

// List returns all host reports, newest first. Host directories with
// a missing or corrupt report.json are skipped with a warning, never
// a failure.
func (s *Store) List(ctx context.Context) ([]*Entry, error) {
	s.mu.RLock()
	if s.cache != nil && time.Since(s.cachedAt) < s.ttl {
		cached := s.cache
		s.mu.RUnlock()
		return cached, nil
	}
	s.mu.RUnlock()

	entries, err := s.scan(ctx)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	s.cache = entries
	s.cachedAt = time.Now()
	s.mu.Unlock()
	return entries, nil
}

func (s *Store) scan(ctx context.Context) ([]*Entry, error) {
	sctx, cancel := context.WithTimeout(ctx, defaults.StoreScanTimeout)
	defer cancel()

	dirents, err := os.ReadDir(s.root)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeInternal, "failed to read reports root", err)
	}

	var mu sync.Mutex
	var entries []*Entry

	g, gctx := errgroup.WithContext(sctx)
	g.SetLimit(scanConcurrency)
	for _, d := range dirents {
		if !d.IsDir() || strings.HasPrefix(d.Name(), ".") {
			continue
		}
		host := d.Name()
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			e, err := s.load(host)
			if err != nil {
				s.log.Warn("skipping unreadable report", "host", host, "error", err)
				return nil
			}
			mu.Lock()
			entries = append(entries, e)
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, errors.Wrap(errors.ErrCodeTimeout, "report scan interrupted", err)
	}

	sort.Slice(entries, func(i, j int) bool {
		if entries[i].Document.RunTimestamp != entries[j].Document.RunTimestamp {
			return entries[i].Document.RunTimestamp > entries[j].Document.RunTimestamp
		}
		return entries[i].Host < entries[j].Host
	})
	return entries, nil
}

// Get returns one host's report.
func (s *Store) Get(_ context.Context, host string) (*Entry, error) {
	// Host names come from URL paths; refuse anything that could
	// escape the root.
	if host == "" || strings.ContainsAny(host, "/\\") || host == ".." {
		return nil, errors.New(errors.ErrCodeInvalidRequest, "invalid host name")
	}
	e, err := s.load(host)
	if err != nil {
		return nil, errors.WrapWithContext(errors.ErrCodeNotFound,
			"report not found", err, map[string]any{"host": host})
	}
	return e, nil
}

func (s *Store) load(host string) (*Entry, error) {
	path := filepath.Join(s.root, host, report.FileNameJSON)
	fi, err := os.Stat(path)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var doc report.Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, err
	}
	return &Entry{
		Host:     host,
		Path:     filepath.Join(s.root, host),
		Modified: fi.ModTime(),
		Document: doc,
	}, nil
}

// Stats summarizes the inventory.
type Stats struct {
	TotalReports  int            `json:"total_reports"`
	RecentReports int            `json:"recent_reports_7d"`
	Degraded      int            `json:"degraded_reports"`
	StageStatus   map[string]int `json:"stage_status_distribution"`
	LastReport    string         `json:"last_report,omitempty"`
}

// Stats computes inventory statistics from a fresh List.
func (s *Store) Stats(ctx context.Context) (*Stats, error) {
	entries, err := s.List(ctx)
	if err != nil {
		return nil, err
	}

	st := &Stats{StageStatus: map[string]int{}}
	st.TotalReports = len(entries)
	cutoff := time.Now().AddDate(0, 0, -7)

	for _, e := range entries {
		if ts, err := time.Parse(time.RFC3339, e.Document.RunTimestamp); err == nil && ts.After(cutoff) {
			st.RecentReports++
		}
		if e.Document.Degraded {
			st.Degraded++
		}
		for _, status := range e.Document.StageStatus {
			st.StageStatus[string(status)]++
		}
	}
	if len(entries) > 0 {
		st.LastReport = entries[0].Document.RunTimestamp
	}
	return st, nil
}
