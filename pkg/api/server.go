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

package api

import (
	"context"
	"log/slog"
	"os"

	"github.com/pxelab/bootprobe/pkg/logging"
	"github.com/pxelab/bootprobe/pkg/server"
	"github.com/pxelab/bootprobe/pkg/store"
)

const (
	name           = "bootprobed"
	versionDefault = "dev"

	// DefaultReportsDir is where ingested reports live unless
	// REPORTS_DIR overrides it.
	DefaultReportsDir = "/srv/bootprobe/reports"
)

var (
	// overridden during build with ldflags to reflect actual version info
	// e.g., -X "github.com/pxelab/bootprobe/pkg/api.version=1.0.0"
	version = versionDefault
	commit  = "unknown"
	date    = "unknown"
)

// Serve starts the collector API server and blocks until shutdown.
// It configures logging, opens the report store, sets up routes, and
// handles graceful shutdown.
func Serve(ctx context.Context) error {
	logging.SetDefaultStructuredLogger(name, version)
	slog.Info("starting",
		"name", name,
		"version", version,
		"commit", commit,
		"date", date,
	)

	root := os.Getenv("REPORTS_DIR")
	if root == "" {
		root = DefaultReportsDir
	}

	st, err := store.New(root, slog.Default())
	if err != nil {
		return err
	}
	defer st.Close()

	h := NewHandlers(st, slog.Default())

	cfg := server.NewConfig()
	cfg.Name = name
	cfg.Version = version
	cfg.Handlers = h.Routes()

	if err := server.RunWithConfig(ctx, cfg); err != nil {
		slog.Error("server exited with error", "error", err)
		return err
	}

	return nil
}
