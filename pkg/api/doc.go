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

// Package api provides the HTTP API of the bootprobed report collector.
//
// This package is a thin wrapper around the reusable pkg/server package,
// configuring it with the report inventory routes. Diagnosed hosts
// upload their archived reports here, and operators query the
// collected inventory.
//
// # Endpoints
//
// Application endpoints (rate limited):
//   - GET  /api/v1/reports                    - List all collected reports
//   - GET  /api/v1/reports/{host}             - One host's report
//   - GET  /api/v1/reports/{host}/analyze     - Scored analysis of one report
//   - POST /api/v1/reports/upload             - Upload a report archive (multipart, .tar.gz)
//   - GET  /api/v1/stats                      - Inventory statistics
//   - GET  /api/v1/health                     - Collector health with report count
//
// System endpoints (no rate limiting, provided by pkg/server):
//   - GET /health  - Liveness probe
//   - GET /ready   - Readiness probe
//   - GET /metrics - Prometheus metrics
//
// # Configuration
//
// The server is configured via environment variables:
//   - PORT: HTTP server port (default: 8080)
//   - LOG_LEVEL: Logging level (debug, info, warn, error)
//   - REPORTS_DIR: Report inventory root (default: /srv/bootprobe/reports)
//
// Version information is set at build time using ldflags:
//
//	go build -ldflags="-X 'github.com/pxelab/bootprobe/pkg/api.version=1.0.0'"
package api
