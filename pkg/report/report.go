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

// Package report synthesizes the machine-readable report document and
// the human summary from a sealed diagnostic run. Synthesis is a pure
// function of the run: identical runs yield byte-identical output.
package report

import (
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"
	"time"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/pxelab/bootprobe/pkg/diag"
	"github.com/pxelab/bootprobe/pkg/sysinfo"
)

// FileNameJSON and FileNameSummary are the report file names within a
// host's report directory.
const (
	FileNameJSON    = "report.json"
	FileNameSummary = "summary.txt"
)

// ProbeEntry is one probe's line in the report document.
type ProbeEntry struct {
	Name       string `json:"name"`
	Stage      string `json:"stage"`
	Status     string `json:"status"`
	Output     string `json:"output,omitempty"`
	DurationMS int64  `json:"duration_ms"`
	Detail     string `json:"detail,omitempty"`
}

// Document is the structured report. The field set is stable across
// versions: new stages add stage_status entries, existing keys are
// never removed.
type Document struct {
	Host            string                      `json:"host"`
	RunID           string                      `json:"run_id"`
	RunTimestamp    string                      `json:"run_timestamp"`
	DurationSeconds float64                     `json:"duration_seconds"`
	Degraded        bool                        `json:"degraded"`
	Environment     sysinfo.Environment         `json:"environment"`
	StageStatus     map[string]diag.StageStatus `json:"stage_status"`
	Probes          []ProbeEntry                `json:"probes"`
	ArtifactPaths   []string                    `json:"artifact_paths"`
}

// Report bundles the rendered document and summary.
type Report struct {
	Document Document
	JSON     []byte
	Summary  []byte
}

// Synthesize builds the Report from a sealed run. It refuses unsealed
// runs: the result list must be final before synthesis.
func Synthesize(run *diag.Run) (*Report, error) {
	if !run.Sealed() {
		return nil, fmt.Errorf("run %s is not sealed", run.RunID)
	}

	doc := Document{
		Host:            run.Host,
		RunID:           run.RunID,
		RunTimestamp:    run.StartedAt.UTC().Format(time.RFC3339),
		DurationSeconds: math.Round(run.Duration.Seconds()*1000) / 1000,
		Degraded:        run.Degraded,
		Environment:     run.Environment,
		StageStatus:     run.StageStatuses(),
		Probes:          make([]ProbeEntry, 0, len(run.Results)),
		ArtifactPaths:   make([]string, 0, len(run.Results)),
	}

	for _, res := range run.Results {
		doc.Probes = append(doc.Probes, ProbeEntry{
			Name:       res.Probe,
			Stage:      res.Stage,
			Status:     res.Status.String(),
			Output:     res.Output,
			DurationMS: res.Duration.Milliseconds(),
			Detail:     res.Detail,
		})
		if res.Output != "" {
			doc.ArtifactPaths = append(doc.ArtifactPaths, res.Output)
		}
	}

	js, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to marshal report: %w", err)
	}
	js = append(js, '\n')

	return &Report{
		Document: doc,
		JSON:     js,
		Summary:  []byte(summarize(run, doc)),
	}, nil
}

// Write renders the report files into dir (the host report directory).
func (r *Report) Write(dir string) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create report dir %s: %w", dir, err)
	}
	jsonPath := filepath.Join(dir, FileNameJSON)
	if err := os.WriteFile(jsonPath, r.JSON, 0o644); err != nil {
		return fmt.Errorf("failed to write %s: %w", jsonPath, err)
	}
	sumPath := filepath.Join(dir, FileNameSummary)
	if err := os.WriteFile(sumPath, r.Summary, 0o644); err != nil {
		return fmt.Errorf("failed to write %s: %w", sumPath, err)
	}
	return nil
}

var titler = cases.Title(language.English)

// summarize renders the line-oriented human summary. Ordering follows
// stage declaration order, then probe declaration order.
func summarize(run *diag.Run, doc Document) string {
	var b strings.Builder

	fmt.Fprintf(&b, "Diagnostic report for %s\n", doc.Host)
	fmt.Fprintf(&b, "Run:      %s\n", doc.RunID)
	fmt.Fprintf(&b, "Started:  %s\n", doc.RunTimestamp)
	fmt.Fprintf(&b, "Duration: %.1fs\n", doc.DurationSeconds)
	fmt.Fprintf(&b, "Kernel:   %s\n", doc.Environment.Kernel)
	fmt.Fprintf(&b, "OS:       %s (%s)\n", doc.Environment.OS, doc.Environment.Arch)
	fmt.Fprintf(&b, "CPU:      %d cores\n", doc.Environment.CPUCount)
	fmt.Fprintf(&b, "Memory:   %.1f GB\n", doc.Environment.MemoryGB)
	if doc.Degraded {
		b.WriteString("NOTE: run hit its deadline; results are partial\n")
	}

	b.WriteString("\nStages:\n")
	for _, stage := range run.StageOrder {
		var total, ok int
		for _, res := range run.Results {
			if res.Stage != stage {
				continue
			}
			total++
			if res.Status.String() == "ok" {
				ok++
			}
		}
		fmt.Fprintf(&b, "  %-10s %s (%d/%d ok)\n",
			titler.String(stage)+":", doc.StageStatus[stage], ok, total)
	}

	b.WriteString("\nProbes:\n")
	for _, p := range doc.Probes {
		line := fmt.Sprintf("  [%s] %s/%s", p.Status, p.Stage, p.Name)
		if p.Detail != "" {
			line += " - " + p.Detail
		}
		b.WriteString(line + "\n")
	}

	return b.String()
}
