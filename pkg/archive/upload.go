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
	"context"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/pxelab/bootprobe/pkg/defaults"
	"github.com/pxelab/bootprobe/pkg/errors"
)

// Uploader ships an archive to a destination. Implementations return
// an error on failure; deciding whether that failure is fatal is the
// caller's business.
type Uploader interface {
	// Name identifies the transport in logs.
	Name() string
	// Upload sends the archive at path.
	Upload(ctx context.Context, path string) error
}

// Dispatch tries each uploader in order until one succeeds. Failures
// are logged and swallowed: archival never fails the diagnostic run.
// It reports whether any uploader succeeded.
func Dispatch(ctx context.Context, log *slog.Logger, path string, uploaders ...Uploader) bool {
	for _, u := range uploaders {
		if err := u.Upload(ctx, path); err != nil {
			log.Warn("archive upload failed",
				"transport", u.Name(),
				"archive", path,
				"error", err)
			continue
		}
		log.Info("archive uploaded", "transport", u.Name(), "archive", path)
		return true
	}
	log.Warn("all upload transports failed, archive retained locally", "archive", path)
	return false
}

// HTTPUploader POSTs the archive as a multipart form to a collector
// endpoint, e.g. http://collector:8080/api/v1/reports/upload.
type HTTPUploader struct {
	URL    string
	Client *http.Client
}

// NewHTTPUploader returns an HTTPUploader with a bounded client.
func NewHTTPUploader(url string) *HTTPUploader {
	return &HTTPUploader{
		URL:    url,
		Client: &http.Client{Timeout: defaults.HTTPClientTimeout},
	}
}

func (u *HTTPUploader) Name() string { return "http" }

func (u *HTTPUploader) Upload(ctx context.Context, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("failed to open archive: %w", err)
	}
	defer f.Close()

	pr, pw := io.Pipe()
	mw := multipart.NewWriter(pw)
	go func() {
		part, err := mw.CreateFormFile("file", filepath.Base(path))
		if err != nil {
			pw.CloseWithError(err)
			return
		}
		if _, err := io.Copy(part, f); err != nil {
			pw.CloseWithError(err)
			return
		}
		pw.CloseWithError(mw.Close())
	}()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u.URL, pr)
	if err != nil {
		return fmt.Errorf("failed to build upload request: %w", err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	resp, err := u.Client.Do(req)
	if err != nil {
		return errors.Wrap(errors.ErrCodeUnavailable, "collector unreachable", err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return errors.NewWithContext(errors.ErrCodeInternal,
			"collector rejected upload",
			map[string]any{"status": resp.StatusCode, "url": u.URL})
	}
	return nil
}

// SCPUploader copies the archive with the scp binary. Target is in
// scp syntax, e.g. diag@collector:/srv/reports/.
type SCPUploader struct {
	Target string
	// ExtraArgs is appended before source and target, for key and
	// host-key options on unattended boot images.
	ExtraArgs []string
}

func (u *SCPUploader) Name() string { return "scp" }

func (u *SCPUploader) Upload(ctx context.Context, path string) error {
	args := append([]string{"-q", "-o", "BatchMode=yes"}, u.ExtraArgs...)
	args = append(args, path, u.Target)

	cmd := exec.CommandContext(ctx, "scp", args...)
	out, err := cmd.CombinedOutput()
	if err != nil {
		return errors.WrapWithContext(errors.ErrCodeUnavailable,
			"scp transfer failed", err,
			map[string]any{"target": u.Target, "output": strings.TrimSpace(string(out))})
	}
	return nil
}
