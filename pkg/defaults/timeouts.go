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

package defaults

import "time"

// Diagnostic run timeouts.
const (
	// ProbeTimeout is the default per-probe deadline. Individual probes
	// in the catalog may declare longer ones (stress tests) or shorter.
	ProbeTimeout = 60 * time.Second

	// RunTimeout is the default whole-run deadline. On expiry the run
	// still produces a report from whatever completed.
	RunTimeout = 20 * time.Minute

	// KillGrace is how long a probe process gets between SIGTERM and
	// SIGKILL when a deadline expires.
	KillGrace = 3 * time.Second
)

// Artifact acquisition defaults.
const (
	// FetchAttemptTimeout is the default per-attempt network timeout
	// when downloading an artifact from a mirror.
	FetchAttemptTimeout = 2 * time.Minute

	// FetchAttemptsPerMirror is the default attempt budget per mirror.
	FetchAttemptsPerMirror = 3

	// FetchRetryDelay separates attempts against the same mirror so a
	// failing endpoint is not hammered.
	FetchRetryDelay = 5 * time.Second
)

// Service supervision defaults.
const (
	// SupervisorPollInterval is the default liveness poll cadence.
	SupervisorPollInterval = 30 * time.Second

	// ServiceStartTimeout bounds a single service start action.
	ServiceStartTimeout = 30 * time.Second

	// ServiceSettleDelay is the pause after a restart before the next
	// liveness confirmation poll.
	ServiceSettleDelay = 2 * time.Second
)

// Server timeouts for HTTP server configuration.
const (
	// ServerReadTimeout is the maximum duration for reading request headers.
	ServerReadTimeout = 10 * time.Second

	// ServerWriteTimeout is the maximum duration for writing a response.
	// Uploads of large report archives need headroom.
	ServerWriteTimeout = 30 * time.Second

	// ServerIdleTimeout is the maximum duration to wait for the next request.
	ServerIdleTimeout = 120 * time.Second

	// ServerShutdownTimeout is the maximum duration for graceful shutdown.
	ServerShutdownTimeout = 30 * time.Second
)

// HTTP client timeouts for outbound requests (report upload, mirror fetch).
const (
	// HTTPClientTimeout is the default total timeout for HTTP requests.
	HTTPClientTimeout = 30 * time.Second

	// HTTPConnectTimeout is the timeout for establishing connections.
	HTTPConnectTimeout = 5 * time.Second

	// HTTPTLSHandshakeTimeout is the timeout for TLS handshake.
	HTTPTLSHandshakeTimeout = 5 * time.Second

	// HTTPResponseHeaderTimeout is the timeout for reading response headers.
	HTTPResponseHeaderTimeout = 10 * time.Second

	// HTTPIdleConnTimeout is the timeout for idle connections in the pool.
	HTTPIdleConnTimeout = 90 * time.Second

	// HTTPKeepAlive is the keep-alive duration for connections.
	HTTPKeepAlive = 30 * time.Second
)

// Report store defaults.
const (
	// StoreScanTimeout bounds a full reports-directory scan.
	StoreScanTimeout = 30 * time.Second

	// StoreCacheTTL is how long a scan result is served before the
	// directory is re-read, absent a change notification.
	StoreCacheTTL = 5 * time.Minute
)
