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
	"crypto/tls"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/distribution/reference"
	ocispec "github.com/opencontainers/image-spec/specs-go/v1"
	oras "oras.land/oras-go/v2"
	"oras.land/oras-go/v2/content/file"
	"oras.land/oras-go/v2/registry/remote"
	"oras.land/oras-go/v2/registry/remote/auth"
	"oras.land/oras-go/v2/registry/remote/credentials"

	"github.com/pxelab/bootprobe/pkg/errors"
)

// OCIScheme marks a mirror as an OCI registry reference.
const OCIScheme = "oci://"

// Getter retrieves one artifact from one mirror. Implementations
// return the local path of the retrieved file.
type Getter interface {
	// Name identifies the mirror in logs and results.
	Name() string
	// Get transfers artifact into destDir.
	Get(ctx context.Context, artifact, destDir string) (string, error)
}

// ParseMirror turns a mirror base location into a Getter. Supported
// forms: http(s)://host/path, oci://registry/repository:tag,
// file:///dir, and a plain local directory.
func ParseMirror(raw string) (Getter, error) {
	switch {
	case strings.HasPrefix(raw, OCIScheme):
		return NewOCIGetter(raw)
	case strings.HasPrefix(raw, "http://"), strings.HasPrefix(raw, "https://"):
		return NewHTTPGetter(raw), nil
	case strings.HasPrefix(raw, "file://"):
		return &FileGetter{Dir: strings.TrimPrefix(raw, "file://")}, nil
	default:
		return &FileGetter{Dir: raw}, nil
	}
}

// ParseMirrors parses an ordered mirror list, preserving order.
func ParseMirrors(raw []string) ([]Getter, error) {
	getters := make([]Getter, 0, len(raw))
	for _, r := range raw {
		g, err := ParseMirror(r)
		if err != nil {
			return nil, err
		}
		getters = append(getters, g)
	}
	return getters, nil
}

// HTTPGetter downloads artifacts over HTTP(S) relative to a base URL.
type HTTPGetter struct {
	BaseURL string
	Client  *http.Client
}

// NewHTTPGetter returns an HTTPGetter. Per-attempt deadlines come
// from the request context, so the client itself carries no timeout.
func NewHTTPGetter(baseURL string) *HTTPGetter {
	return &HTTPGetter{
		BaseURL: strings.TrimRight(baseURL, "/"),
		Client:  &http.Client{},
	}
}

func (g *HTTPGetter) Name() string { return g.BaseURL }

func (g *HTTPGetter) Get(ctx context.Context, artifact, destDir string) (string, error) {
	src, err := url.JoinPath(g.BaseURL, artifact)
	if err != nil {
		return "", fmt.Errorf("invalid artifact URL: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, src, nil)
	if err != nil {
		return "", fmt.Errorf("failed to build request: %w", err)
	}

	resp, err := g.Client.Do(req)
	if err != nil {
		return "", fmt.Errorf("transfer failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return "", errors.NewWithContext(errors.ErrCodeUnavailable,
			"mirror returned non-OK status",
			map[string]any{"url": src, "status": resp.StatusCode})
	}

	return writeArtifact(destDir, artifact, resp.Body)
}

// FileGetter copies artifacts from a local directory, typically an
// NFS or pre-seeded media mount.
type FileGetter struct {
	Dir string
}

func (g *FileGetter) Name() string { return g.Dir }

func (g *FileGetter) Get(_ context.Context, artifact, destDir string) (string, error) {
	src, err := os.Open(filepath.Join(g.Dir, artifact))
	if err != nil {
		return "", fmt.Errorf("failed to open source artifact: %w", err)
	}
	defer src.Close()
	return writeArtifact(destDir, artifact, src)
}

// OCIGetter pulls artifacts published to an OCI registry with ORAS.
type OCIGetter struct {
	Registry   string
	Repository string
	Tag        string
	PlainHTTP  bool
	// InsecureTLS skips certificate verification, for lab registries
	// with self-signed certs.
	InsecureTLS bool
}

// NewOCIGetter parses an oci://registry/repository:tag mirror. A
// missing tag defaults to latest.
func NewOCIGetter(raw string) (*OCIGetter, error) {
	ref, err := reference.ParseNormalizedNamed(strings.TrimPrefix(raw, OCIScheme))
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeInvalidRequest, "invalid OCI mirror reference", err)
	}

	tag := "latest"
	if tagged, ok := ref.(reference.Tagged); ok {
		tag = tagged.Tag()
	}

	return &OCIGetter{
		Registry:   reference.Domain(ref),
		Repository: reference.Path(ref),
		Tag:        tag,
	}, nil
}

func (g *OCIGetter) Name() string {
	return fmt.Sprintf("%s%s/%s:%s", OCIScheme, g.Registry, g.Repository, g.Tag)
}

func (g *OCIGetter) Get(ctx context.Context, artifact, destDir string) (string, error) {
	if err := os.MkdirAll(destDir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create dest dir: %w", err)
	}

	fs, err := file.New(destDir)
	if err != nil {
		return "", fmt.Errorf("failed to create file store: %w", err)
	}
	defer func() { _ = fs.Close() }()

	repo, err := remote.NewRepository(fmt.Sprintf("%s/%s", g.Registry, g.Repository))
	if err != nil {
		return "", fmt.Errorf("failed to initialize remote repository: %w", err)
	}
	repo.PlainHTTP = g.PlainHTTP
	repo.Client = createAuthClient(g.PlainHTTP, g.InsecureTLS)

	desc, err := oras.Copy(ctx, repo, g.Tag, fs, g.Tag, oras.DefaultCopyOptions)
	if err != nil {
		return "", fmt.Errorf("failed to pull artifact from registry: %w", err)
	}
	if desc.MediaType != ocispec.MediaTypeImageManifest {
		slog.Debug("pulled non-image manifest",
			"mediaType", desc.MediaType, "digest", desc.Digest.String())
	}

	// The artifact must surface as a named file in the pulled layer.
	path := filepath.Join(destDir, artifact)
	if _, err := os.Stat(path); err != nil {
		return "", errors.NewWithContext(errors.ErrCodeNotFound,
			"artifact not present in pulled image",
			map[string]any{"artifact": artifact, "reference": g.Name()})
	}
	return path, nil
}

// createAuthClient builds a registry client with Docker credential
// support and optional TLS relaxation.
func createAuthClient(plainHTTP, insecureTLS bool) *auth.Client {
	credStore, _ := credentials.NewStoreFromDocker(credentials.StoreOptions{})

	transport := http.DefaultTransport.(*http.Transport).Clone()
	if !plainHTTP && insecureTLS {
		if transport.TLSClientConfig == nil {
			transport.TLSClientConfig = &tls.Config{InsecureSkipVerify: true} //nolint:gosec
		} else {
			transport.TLSClientConfig.InsecureSkipVerify = true //nolint:gosec
		}
	}

	return &auth.Client{
		Client:     &http.Client{Transport: transport},
		Cache:      auth.NewCache(),
		Credential: credentials.Credential(credStore),
	}
}

// writeArtifact streams r into destDir/artifact, discarding partial
// output on error.
func writeArtifact(destDir, artifact string, r io.Reader) (string, error) {
	if err := os.MkdirAll(destDir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create dest dir: %w", err)
	}
	path := filepath.Join(destDir, filepath.Base(artifact))

	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("failed to create artifact file: %w", err)
	}
	if _, err := io.Copy(f, r); err != nil {
		f.Close()
		os.Remove(path)
		return "", fmt.Errorf("transfer interrupted: %w", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(path)
		return "", fmt.Errorf("failed to close artifact file: %w", err)
	}
	return path, nil
}
