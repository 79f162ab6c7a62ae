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

// Package archive packs a host's report directory into a timestamped
// tar.gz and ships it off the machine. Upload is best effort: the boot
// image is discarded on reboot, so a failed upload is logged and the
// local archive is left behind for manual retrieval.
package archive

import (
	"archive/tar"
	"compress/gzip"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/pxelab/bootprobe/pkg/errors"
)

// timestampLayout matches the archive file name convention
// <host>_report_<timestamp>.tar.gz.
const timestampLayout = "20060102_150405"

// ArchiveName returns the archive file name for a host at ts.
func ArchiveName(host string, ts time.Time) string {
	return fmt.Sprintf("%s_report_%s.tar.gz", host, ts.Format(timestampLayout))
}

// Pack writes a gzip'd tarball of srcDir into destDir and returns the
// archive path. Entries are stored relative to srcDir's parent so the
// archive unpacks into a single <host>/ directory.
func Pack(srcDir, destDir, host string, ts time.Time) (string, error) {
	info, err := os.Stat(srcDir)
	if err != nil {
		return "", errors.Wrap(errors.ErrCodeNotFound, "report directory not found", err)
	}
	if !info.IsDir() {
		return "", errors.New(errors.ErrCodeInvalidRequest, "report path is not a directory")
	}

	if err := os.MkdirAll(destDir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create archive dir %s: %w", destDir, err)
	}

	path := filepath.Join(destDir, ArchiveName(host, ts))
	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("failed to create archive %s: %w", path, err)
	}
	defer f.Close()

	gw := gzip.NewWriter(f)
	tw := tar.NewWriter(gw)

	walkErr := filepath.Walk(srcDir, func(p string, fi os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(srcDir, p)
		if err != nil {
			return err
		}
		if rel == "." {
			return nil
		}
		hdr, err := tar.FileInfoHeader(fi, "")
		if err != nil {
			return err
		}
		hdr.Name = filepath.ToSlash(filepath.Join(host, rel))
		if err := tw.WriteHeader(hdr); err != nil {
			return err
		}
		if !fi.Mode().IsRegular() {
			return nil
		}
		src, err := os.Open(p)
		if err != nil {
			return err
		}
		defer src.Close()
		_, err = io.Copy(tw, src)
		return err
	})
	if walkErr != nil {
		tw.Close()
		gw.Close()
		os.Remove(path)
		return "", fmt.Errorf("failed to pack %s: %w", srcDir, walkErr)
	}

	if err := tw.Close(); err != nil {
		return "", fmt.Errorf("failed to finalize tar stream: %w", err)
	}
	if err := gw.Close(); err != nil {
		return "", fmt.Errorf("failed to finalize gzip stream: %w", err)
	}
	if err := f.Close(); err != nil {
		return "", fmt.Errorf("failed to close archive %s: %w", path, err)
	}

	return path, nil
}
