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

package diag

import (
	"time"

	"github.com/pxelab/bootprobe/pkg/probe"
	"github.com/pxelab/bootprobe/pkg/sysinfo"
)

// StageStatus classifies a whole stage in the report's stage_status map.
type StageStatus string

const (
	// StageCompleted means every probe in the stage produced ok.
	StageCompleted StageStatus = "completed"
	// StagePartial means the stage ran but at least one probe did not
	// finish ok.
	StagePartial StageStatus = "partial"
	// StageSkipped means no probe in the stage executed (all skipped,
	// or the stage declared no probes).
	StageSkipped StageStatus = "skipped"
)

// Run is one complete diagnostic execution for one host. Results are
// appended in declaration order by the orchestrator, which owns the Run
// until Seal; afterwards the Run is read-only.
type Run struct {
	Host        string              `json:"host" yaml:"host"`
	RunID       string              `json:"run_id" yaml:"run_id"`
	StartedAt   time.Time           `json:"run_timestamp" yaml:"run_timestamp"`
	Duration    time.Duration       `json:"-" yaml:"-"`
	Environment sysinfo.Environment `json:"environment" yaml:"environment"`
	// StageOrder preserves declaration order for deterministic reports.
	StageOrder []string       `json:"-" yaml:"-"`
	Results    []probe.Result `json:"results" yaml:"results"`
	// Degraded is set when the run hit its global deadline or was
	// interrupted before all stages completed.
	Degraded bool `json:"degraded" yaml:"degraded"`

	sealed bool
}

// Append records one probe result. Appending to a sealed Run panics:
// that is a programming error, not a runtime condition.
func (r *Run) Append(res probe.Result) {
	if r.sealed {
		panic("diag: append to sealed run")
	}
	r.Results = append(r.Results, res)
}

// Seal marks the run read-only and stamps its duration. Sealing twice
// is a no-op.
func (r *Run) Seal() {
	if r.sealed {
		return
	}
	r.sealed = true
	r.Duration = time.Since(r.StartedAt)
}

// Sealed reports whether the run has been sealed.
func (r *Run) Sealed() bool {
	return r.sealed
}

// StageStatusOf derives a stage's aggregate status from its results.
func (r *Run) StageStatusOf(stage string) StageStatus {
	var total, executed, ok int
	for _, res := range r.Results {
		if res.Stage != stage {
			continue
		}
		total++
		if res.Status != probe.StatusSkipped {
			executed++
		}
		if res.Status == probe.StatusOK {
			ok++
		}
	}

	switch {
	case total == 0 || executed == 0:
		return StageSkipped
	case ok == total:
		return StageCompleted
	default:
		return StagePartial
	}
}

// StageStatuses maps every declared stage to its aggregate status, in
// declaration order via StageOrder.
func (r *Run) StageStatuses() map[string]StageStatus {
	statuses := make(map[string]StageStatus, len(r.StageOrder))
	for _, name := range r.StageOrder {
		statuses[name] = r.StageStatusOf(name)
	}
	return statuses
}
