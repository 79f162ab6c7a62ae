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

package probe

import (
	"time"
)

// Status represents the outcome of a single probe execution.
type Status string

const (
	// StatusOK indicates the probe process exited successfully.
	StatusOK Status = "ok"
	// StatusFailed indicates the probe process exited with an error.
	StatusFailed Status = "failed"
	// StatusTimeout indicates the probe exceeded its deadline and was reaped.
	StatusTimeout Status = "timeout"
	// StatusSkipped indicates the probe was never started, usually
	// because its required tool is absent.
	StatusSkipped Status = "skipped"
)

// String returns the string representation of the Status.
func (s Status) String() string {
	return string(s)
}

// Statuses is the list of all probe statuses.
var Statuses = []Status{
	StatusOK,
	StatusFailed,
	StatusTimeout,
	StatusSkipped,
}

// Helper describes a short-lived companion process a probe needs while
// it runs, such as a local iperf3 listener for a loopback throughput
// test. The helper is started before the probe command and is always
// torn down before the probe is considered complete.
type Helper struct {
	// Tool is the executable name, resolved on PATH.
	Tool string
	// Args are the helper's command arguments.
	Args []string
	// WarmUp is how long to wait after starting the helper before
	// launching the probe command, giving listeners time to bind.
	WarmUp time.Duration
}

// Probe is a single diagnostic command with its own deadline and
// required tool. Probes are declared once in the catalog and are
// immutable for the duration of a run.
type Probe struct {
	// Name uniquely identifies the probe within its stage.
	Name string
	// Tool is the executable the probe requires. If the tool cannot be
	// resolved on PATH the probe is recorded skipped, never attempted.
	Tool string
	// Args are the command arguments.
	Args []string
	// Timeout is the per-probe deadline. Zero means the runner default.
	Timeout time.Duration
	// OutputFile is where combined output is captured, relative to the
	// stage's output directory.
	OutputFile string
	// Helper optionally names a companion process (see Helper).
	Helper *Helper
}

// Result is the immutable outcome of one probe execution. Exactly one
// Result exists per declared probe per run, even for skipped probes.
type Result struct {
	Probe    string        `json:"name" yaml:"name"`
	Stage    string        `json:"stage" yaml:"stage"`
	Status   Status        `json:"status" yaml:"status"`
	Output   string        `json:"output,omitempty" yaml:"output,omitempty"`
	Duration time.Duration `json:"duration" yaml:"duration"`
	Detail   string        `json:"detail,omitempty" yaml:"detail,omitempty"`
}

// Stage is a named grouping of probes executed in declaration order.
type Stage struct {
	// Name identifies the stage (hardware, cpu, memory, disk, network, power).
	Name string
	// Dir is the output subdirectory for the stage's captures, relative
	// to the report root (e.g. "performance/cpu").
	Dir string
	// Probes run sequentially in declaration order.
	Probes []Probe
}
