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

package store

import (
	"archive/tar"
	"bytes"
	"compress/gzip"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pxelab/bootprobe/pkg/report"
)

func discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func seedReport(t *testing.T, root, host, ts string) {
	t.Helper()
	doc := report.Document{
		Host:         host,
		RunID:        "run-" + host,
		RunTimestamp: ts,
	}
	data, err := json.Marshal(doc)
	require.NoError(t, err)
	dir := filepath.Join(root, host)
	require.NoError(t, os.MkdirAll(dir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, report.FileNameJSON), data, 0o644))
}

func newStore(t *testing.T) (*Store, string) {
	t.Helper()
	root := t.TempDir()
	s, err := New(root, discard())
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s, root
}

func TestListNewestFirst(t *testing.T) {
	s, root := newStore(t)
	seedReport(t, root, "node1", "2025-06-01T10:00:00Z")
	seedReport(t, root, "node2", "2025-06-02T10:00:00Z")
	seedReport(t, root, "node3", "2025-05-30T10:00:00Z")

	entries, err := s.List(context.Background())
	require.NoError(t, err)
	require.Len(t, entries, 3)
	assert.Equal(t, "node2", entries[0].Host)
	assert.Equal(t, "node1", entries[1].Host)
	assert.Equal(t, "node3", entries[2].Host)
}

func TestListToleratesCorruptReport(t *testing.T) {
	s, root := newStore(t)
	seedReport(t, root, "node1", "2025-06-01T10:00:00Z")

	bad := filepath.Join(root, "node2")
	require.NoError(t, os.MkdirAll(bad, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(bad, report.FileNameJSON), []byte("{not json"), 0o644))

	// a dir without report.json is skipped too
	require.NoError(t, os.MkdirAll(filepath.Join(root, "node3"), 0o755))

	entries, err := s.List(context.Background())
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "node1", entries[0].Host)
}

func TestListIgnoresHiddenAndFiles(t *testing.T) {
	s, root := newStore(t)
	seedReport(t, root, "node1", "2025-06-01T10:00:00Z")
	require.NoError(t, os.MkdirAll(filepath.Join(root, ".stage"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(root, "stray.tar.gz"), []byte("x"), 0o644))

	entries, err := s.List(context.Background())
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestGet(t *testing.T) {
	s, root := newStore(t)
	seedReport(t, root, "node1", "2025-06-01T10:00:00Z")

	e, err := s.Get(context.Background(), "node1")
	require.NoError(t, err)
	assert.Equal(t, "node1", e.Host)
	assert.Equal(t, "run-node1", e.Document.RunID)

	_, err = s.Get(context.Background(), "ghost")
	assert.Error(t, err)
}

func TestGetRejectsPathEscapes(t *testing.T) {
	s, _ := newStore(t)
	for _, host := range []string{"", "..", "a/b", `a\b`} {
		_, err := s.Get(context.Background(), host)
		assert.Error(t, err, "host %q should be rejected", host)
	}
}

func TestStats(t *testing.T) {
	s, root := newStore(t)
	recent := time.Now().UTC().Add(-time.Hour).Format(time.RFC3339)
	seedReport(t, root, "node1", recent)
	seedReport(t, root, "node2", "2024-01-01T00:00:00Z")

	st, err := s.Stats(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, st.TotalReports)
	assert.Equal(t, 1, st.RecentReports)
	assert.Equal(t, recent, st.LastReport)
}

func makeUpload(t *testing.T, entries map[string]string) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	gw := gzip.NewWriter(&buf)
	tw := tar.NewWriter(gw)
	for name, body := range entries {
		require.NoError(t, tw.WriteHeader(&tar.Header{
			Name:     name,
			Typeflag: tar.TypeReg,
			Mode:     0o644,
			Size:     int64(len(body)),
		}))
		_, err := tw.Write([]byte(body))
		require.NoError(t, err)
	}
	require.NoError(t, tw.Close())
	require.NoError(t, gw.Close())
	return &buf
}

func TestIngest(t *testing.T) {
	s, root := newStore(t)

	doc, err := json.Marshal(report.Document{Host: "node9", RunTimestamp: "2025-06-01T10:00:00Z"})
	require.NoError(t, err)

	buf := makeUpload(t, map[string]string{
		"node9/report.json":        string(doc),
		"node9/hardware/lscpu.txt": "cpu data",
	})

	hosts, err := s.Ingest(buf)
	require.NoError(t, err)
	assert.Equal(t, []string{"node9"}, hosts)
	assert.FileExists(t, filepath.Join(root, "node9", "hardware", "lscpu.txt"))

	e, err := s.Get(context.Background(), "node9")
	require.NoError(t, err)
	assert.Equal(t, "node9", e.Document.Host)
}

func TestIngestRejectsTraversal(t *testing.T) {
	s, root := newStore(t)

	buf := makeUpload(t, map[string]string{
		"../evil.txt": "boom",
	})

	_, err := s.Ingest(buf)
	require.Error(t, err)
	assert.NoFileExists(t, filepath.Join(filepath.Dir(root), "evil.txt"))
}

func TestIngestRejectsNonGzip(t *testing.T) {
	s, _ := newStore(t)
	_, err := s.Ingest(bytes.NewBufferString("plain text"))
	assert.Error(t, err)
}

func TestIngestInvalidatesCache(t *testing.T) {
	s, root := newStore(t)
	seedReport(t, root, "node1", "2025-06-01T10:00:00Z")

	entries, err := s.List(context.Background())
	require.NoError(t, err)
	require.Len(t, entries, 1)

	doc, err := json.Marshal(report.Document{Host: "node2", RunTimestamp: "2025-06-02T10:00:00Z"})
	require.NoError(t, err)
	_, err = s.Ingest(makeUpload(t, map[string]string{"node2/report.json": string(doc)}))
	require.NoError(t, err)

	entries, err = s.List(context.Background())
	require.NoError(t, err)
	assert.Len(t, entries, 2)
}

func TestWatcherInvalidatesCache(t *testing.T) {
	s, root := newStore(t)
	seedReport(t, root, "node1", "2025-06-01T10:00:00Z")

	_, err := s.List(context.Background())
	require.NoError(t, err)

	seedReport(t, root, "node2", "2025-06-02T10:00:00Z")

	// watcher delivery is asynchronous
	deadline := time.Now().Add(2 * time.Second)
	for {
		entries, err := s.List(context.Background())
		require.NoError(t, err)
		if len(entries) == 2 {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("cache never picked up new report, have %d entries", len(entries))
		}
		time.Sleep(20 * time.Millisecond)
	}
}

func TestIngestEmptyArchive(t *testing.T) {
	s, _ := newStore(t)
	buf := makeUpload(t, map[string]string{})
	_, err := s.Ingest(buf)
	require.Error(t, err)
}
