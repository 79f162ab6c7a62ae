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

package fetch

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseMirror(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want any
	}{
		{name: "http", raw: "http://mirror.lab/artifacts", want: &HTTPGetter{}},
		{name: "https", raw: "https://mirror.lab/artifacts", want: &HTTPGetter{}},
		{name: "oci", raw: "oci://registry.lab/boot/artifacts:v1", want: &OCIGetter{}},
		{name: "local dir", raw: "/srv/media", want: &FileGetter{}},
		{name: "file scheme", raw: "file:///srv/media", want: &FileGetter{}},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			g, err := ParseMirror(tc.raw)
			require.NoError(t, err)
			assert.IsType(t, tc.want, g)
		})
	}
}

func TestParseMirrorInvalidOCIRef(t *testing.T) {
	_, err := ParseMirror("oci://registry.lab/UPPER/Case:tag")
	assert.Error(t, err)
}

func TestParseMirrorsPreservesOrder(t *testing.T) {
	getters, err := ParseMirrors([]string{
		"http://primary.lab/a",
		"http://secondary.lab/a",
		"/srv/media",
	})
	require.NoError(t, err)
	require.Len(t, getters, 3)
	assert.Equal(t, "http://primary.lab/a", getters[0].Name())
	assert.Equal(t, "http://secondary.lab/a", getters[1].Name())
	assert.Equal(t, "/srv/media", getters[2].Name())
}

func TestNewOCIGetterDefaultsTag(t *testing.T) {
	g, err := NewOCIGetter("oci://registry.lab/boot/artifacts")
	require.NoError(t, err)
	assert.Equal(t, "registry.lab", g.Registry)
	assert.Equal(t, "boot/artifacts", g.Repository)
	assert.Equal(t, "latest", g.Tag)
}

func TestHTTPGetterGet(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/artifacts/initrd.img" {
			http.NotFound(w, r)
			return
		}
		w.Write([]byte("initrd contents"))
	}))
	defer srv.Close()

	g := NewHTTPGetter(srv.URL + "/artifacts/")
	dest := t.TempDir()

	path, err := g.Get(context.Background(), "initrd.img", dest)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dest, "initrd.img"), path)

	body, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "initrd contents", string(body))
}

func TestHTTPGetterNotFound(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	defer srv.Close()

	g := NewHTTPGetter(srv.URL)
	_, err := g.Get(context.Background(), "missing.img", t.TempDir())
	assert.Error(t, err)

	// no partial file left behind
	_, statErr := os.Stat(filepath.Join(t.TempDir(), "missing.img"))
	assert.True(t, os.IsNotExist(statErr))
}

func TestFileGetterGet(t *testing.T) {
	src := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(src, "kernel"), []byte("vmlinuz"), 0o644))

	g := &FileGetter{Dir: src}
	dest := t.TempDir()

	path, err := g.Get(context.Background(), "kernel", dest)
	require.NoError(t, err)

	body, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "vmlinuz", string(body))
}

func TestFileGetterMissing(t *testing.T) {
	g := &FileGetter{Dir: t.TempDir()}
	_, err := g.Get(context.Background(), "kernel", t.TempDir())
	assert.Error(t, err)
}
