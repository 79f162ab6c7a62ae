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
	"compress/gzip"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/pxelab/bootprobe/pkg/errors"
)

// maxUploadEntrySize caps a single extracted file. Probe captures are
// small; anything larger is not a report.
const maxUploadEntrySize = 256 << 20

// Ingest extracts an uploaded report archive (tar.gz) into the store
// root and returns the host directories it touched. Entries that
// would land outside the root are rejected outright.
func (s *Store) Ingest(r io.Reader) ([]string, error) {
	gr, err := gzip.NewReader(r)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeInvalidRequest, "upload is not a gzip stream", err)
	}
	defer gr.Close()

	hosts := map[string]bool{}
	tr := tar.NewReader(gr)
	for {
		hdr, err := tr.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, errors.Wrap(errors.ErrCodeInvalidRequest, "malformed upload archive", err)
		}

		rel, err := sanitizeEntry(hdr.Name)
		if err != nil {
			return nil, err
		}
		target := filepath.Join(s.root, rel)

		switch hdr.Typeflag {
		case tar.TypeDir:
			if err := os.MkdirAll(target, 0o755); err != nil {
				return nil, fmt.Errorf("failed to create %s: %w", target, err)
			}
		case tar.TypeReg:
			if hdr.Size > maxUploadEntrySize {
				return nil, errors.NewWithContext(errors.ErrCodeInvalidRequest,
					"archive entry too large",
					map[string]any{"entry": hdr.Name, "size": hdr.Size})
			}
			if err := writeEntry(target, tr, hdr.Size); err != nil {
				return nil, err
			}
		default:
			// Links and specials have no business in a report tree.
			return nil, errors.NewWithContext(errors.ErrCodeInvalidRequest,
				"unsupported archive entry type",
				map[string]any{"entry": hdr.Name})
		}

		if top := strings.SplitN(rel, string(filepath.Separator), 2)[0]; top != "" {
			hosts[top] = true
		}
	}

	if len(hosts) == 0 {
		return nil, errors.New(errors.ErrCodeInvalidRequest, "archive contains no report entries")
	}

	s.Invalidate()
	out := make([]string, 0, len(hosts))
	for h := range hosts {
		out = append(out, h)
	}
	return out, nil
}

// sanitizeEntry normalizes an archive path and rejects escapes.
func sanitizeEntry(name string) (string, error) {
	rel := filepath.Clean(filepath.FromSlash(name))
	if rel == "." || rel == "" {
		return "", errors.New(errors.ErrCodeInvalidRequest, "empty archive entry name")
	}
	if filepath.IsAbs(rel) || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", errors.NewWithContext(errors.ErrCodeInvalidRequest,
			"archive entry escapes the reports root",
			map[string]any{"entry": name})
	}
	return rel, nil
}

func writeEntry(target string, r io.Reader, size int64) error {
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return fmt.Errorf("failed to create %s: %w", filepath.Dir(target), err)
	}
	f, err := os.Create(target)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", target, err)
	}
	if _, err := io.Copy(f, io.LimitReader(r, size)); err != nil {
		f.Close()
		os.Remove(target)
		return fmt.Errorf("failed to extract %s: %w", target, err)
	}
	return f.Close()
}
