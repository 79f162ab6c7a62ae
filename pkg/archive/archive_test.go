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

package archive

import (
	"archive/tar"
	"compress/gzip"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func makeReportDir(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	host := filepath.Join(dir, "node1")
	require.NoError(t, os.MkdirAll(filepath.Join(host, "hardware"), 0o755))
	require.NoError(t, os.MkdirAll(filepath.Join(host, "performance", "cpu"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(host, "report.json"), []byte(`{"host":"node1"}`), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(host, "hardware", "lscpu.txt"), []byte("cpu data"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(host, "performance", "cpu", "sysbench_cpu.txt"), []byte("bench"), 0o644))
	return host
}

func listArchive(t *testing.T, path string) map[string]string {
	t.Helper()
	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()
	gr, err := gzip.NewReader(f)
	require.NoError(t, err)
	tr := tar.NewReader(gr)

	entries := map[string]string{}
	for {
		hdr, err := tr.Next()
		if err == io.EOF {
			break
		}
		require.NoError(t, err)
		var body []byte
		if hdr.Typeflag == tar.TypeReg {
			body, err = io.ReadAll(tr)
			require.NoError(t, err)
		}
		entries[hdr.Name] = string(body)
	}
	return entries
}

func TestArchiveName(t *testing.T) {
	ts := time.Date(2025, 6, 1, 14, 30, 5, 0, time.UTC)
	assert.Equal(t, "node1_report_20250601_143005.tar.gz", ArchiveName("node1", ts))
}

func TestPack(t *testing.T) {
	host := makeReportDir(t)
	dest := t.TempDir()

	path, err := Pack(host, dest, "node1", time.Date(2025, 6, 1, 14, 30, 5, 0, time.UTC))
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dest, "node1_report_20250601_143005.tar.gz"), path)

	entries := listArchive(t, path)
	assert.Equal(t, `{"host":"node1"}`, entries["node1/report.json"])
	assert.Equal(t, "cpu data", entries["node1/hardware/lscpu.txt"])
	assert.Equal(t, "bench", entries["node1/performance/cpu/sysbench_cpu.txt"])
	assert.Contains(t, entries, "node1/hardware")
}

func TestPackMissingDir(t *testing.T) {
	_, err := Pack(filepath.Join(t.TempDir(), "nope"), t.TempDir(), "node1", time.Now())
	assert.Error(t, err)
}

func TestHTTPUploader(t *testing.T) {
	var gotName string
	var gotBody []byte
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		f, hdr, err := r.FormFile("file")
		if err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		defer f.Close()
		gotName = hdr.Filename
		gotBody, _ = io.ReadAll(f)
		w.WriteHeader(http.StatusCreated)
	}))
	defer srv.Close()

	host := makeReportDir(t)
	path, err := Pack(host, t.TempDir(), "node1", time.Now())
	require.NoError(t, err)

	u := NewHTTPUploader(srv.URL)
	require.NoError(t, u.Upload(context.Background(), path))
	assert.Equal(t, filepath.Base(path), gotName)
	assert.NotEmpty(t, gotBody)
}

func TestHTTPUploaderRejected(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	host := makeReportDir(t)
	path, err := Pack(host, t.TempDir(), "node1", time.Now())
	require.NoError(t, err)

	u := NewHTTPUploader(srv.URL)
	assert.Error(t, u.Upload(context.Background(), path))
}

type fakeUploader struct {
	name  string
	err   error
	calls int
}

func (f *fakeUploader) Name() string { return f.name }
func (f *fakeUploader) Upload(context.Context, string) error {
	f.calls++
	return f.err
}

func TestDispatchStopsAtFirstSuccess(t *testing.T) {
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	bad := &fakeUploader{name: "http", err: fmt.Errorf("refused")}
	good := &fakeUploader{name: "scp"}
	spare := &fakeUploader{name: "spare"}

	ok := Dispatch(context.Background(), log, "/tmp/a.tar.gz", bad, good, spare)
	assert.True(t, ok)
	assert.Equal(t, 1, bad.calls)
	assert.Equal(t, 1, good.calls)
	assert.Equal(t, 0, spare.calls)
}

func TestDispatchAllFail(t *testing.T) {
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	a := &fakeUploader{name: "http", err: fmt.Errorf("refused")}
	b := &fakeUploader{name: "scp", err: fmt.Errorf("no route")}

	ok := Dispatch(context.Background(), log, "/tmp/a.tar.gz", a, b)
	assert.False(t, ok)
	assert.Equal(t, 1, a.calls)
	assert.Equal(t, 1, b.calls)
}
