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

// Package server provides the HTTP server that backs the bootprobed
// report collector API.
//
// The server is a thin, reusable shell: callers register their API
// handlers through Config.Handlers and the server supplies the
// operational surface around them, which includes:
//
//   - Rate limiting using a token bucket (golang.org/x/time/rate)
//   - Request ID tracking via the X-Request-Id header
//   - Panic recovery with structured error responses
//   - Prometheus RED metrics on every API route
//   - Health and readiness probes at /health and /ready
//   - Graceful shutdown on SIGINT and SIGTERM
//
// Basic startup with custom handlers:
//
//	cfg := server.NewConfig()
//	cfg.Name = "bootprobed"
//	cfg.Handlers = map[string]http.HandlerFunc{
//	    "/api/v1/reports": listHandler,
//	}
//	if err := server.RunWithConfig(ctx, cfg); err != nil {
//	    log.Fatal(err)
//	}
//
// System endpoints (/health, /ready, /metrics) bypass rate limiting so
// that probes keep working while the API is saturated. Error responses
// share one JSON shape with a machine code, a request ID, and a
// retryable hint; see WriteError.
package server
