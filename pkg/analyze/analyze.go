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

// Package analyze scores a collected report tree. Scores are marker
// based: each probe capture is checked for the tool's success marker
// (smartctl's PASSED line, iperf3's sender/receiver summary, and so
// on) rather than parsed in full. Component scores roll up into a
// 0-100 health score plus operator-facing recommendations.
package analyze

import (
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pxelab/bootprobe/pkg/sysinfo"
	"github.com/pxelab/bootprobe/pkg/version"
)

// Component statuses, ordered worst to best.
const (
	StatusUnknown = "unknown"
	StatusPoor    = "poor"
	StatusFair    = "fair"
	StatusGood    = "good"
)

// minKernel is the oldest kernel release the boot tooling is
// validated against.
var minKernel = version.MustParse("5.4")

// Component is one scored performance area.
type Component struct {
	Status  string            `json:"status"`
	Score   int               `json:"score"`
	Details map[string]string `json:"details,omitempty"`
}

// System is the environment slice of the analysis.
type System struct {
	CPUCount     int     `json:"cpu_count"`
	MemoryGB     float64 `json:"memory_gb"`
	Architecture string  `json:"architecture"`
	Kernel       string  `json:"kernel"`
}

// Analysis is the processed view of one host report.
type Analysis struct {
	Hostname        string               `json:"hostname"`
	ProcessedAt     string               `json:"processed_at"`
	System          System               `json:"system"`
	Performance     map[string]Component `json:"performance"`
	HealthScore     int                  `json:"health_score"`
	Recommendations []string             `json:"recommendations"`
}

// Run analyzes the report tree rooted at hostDir for the given host
// environment.
func Run(hostDir, host string, env sysinfo.Environment) *Analysis {
	a := &Analysis{
		Hostname:    host,
		ProcessedAt: time.Now().UTC().Format(time.RFC3339),
		System: System{
			CPUCount:     env.CPUCount,
			MemoryGB:     env.MemoryGB,
			Architecture: env.Arch,
			Kernel:       env.Kernel,
		},
		Performance: map[string]Component{
			"cpu":     {Status: StatusUnknown},
			"memory":  {Status: StatusUnknown},
			"disk":    {Status: StatusUnknown},
			"network": {Status: StatusUnknown},
		},
	}

	perfDir := filepath.Join(hostDir, "performance")
	if _, err := os.Stat(perfDir); err == nil {
		a.Performance["cpu"] = analyzeCPU(filepath.Join(perfDir, "cpu"))
		a.Performance["memory"] = analyzeMemory(filepath.Join(perfDir, "memory"))
		a.Performance["disk"] = analyzeDisk(filepath.Join(perfDir, "disk"))
		a.Performance["network"] = analyzeNetwork(filepath.Join(perfDir, "network"))
	}

	a.HealthScore = healthScore(a.Performance)
	a.Recommendations = recommendations(a)
	return a
}

// contains reports whether the capture file holds the marker. A
// missing or unreadable file never holds anything.
func contains(path, marker string) bool {
	data, err := os.ReadFile(path)
	if err != nil {
		return false
	}
	return strings.Contains(string(data), marker)
}

func analyzeCPU(dir string) Component {
	if !exists(dir) {
		return Component{Status: StatusUnknown}
	}
	c := Component{Status: StatusUnknown, Details: map[string]string{}}

	if path := filepath.Join(dir, "sysbench_cpu.txt"); exists(path) {
		if contains(path, "execution time") {
			c.Details["sysbench"] = "completed"
			c.Score += 25
		} else {
			c.Details["sysbench"] = "failed"
		}
	}
	if path := filepath.Join(dir, "stress_ng.txt"); exists(path) {
		if contains(path, "completed") {
			c.Details["stress_ng"] = "completed"
			c.Score += 25
		} else {
			c.Details["stress_ng"] = "failed"
		}
	}

	c.Status = grade(c.Score, 50, 25)
	return c
}

func analyzeMemory(dir string) Component {
	if !exists(dir) {
		return Component{Status: StatusUnknown}
	}
	c := Component{Status: StatusUnknown, Details: map[string]string{}}

	if path := filepath.Join(dir, "memtester.txt"); exists(path) {
		if contains(path, "PASS") && !contains(path, "FAIL") {
			c.Details["memtester"] = "passed"
			c.Score += 50
		} else {
			c.Details["memtester"] = "failed"
		}
	}
	if path := filepath.Join(dir, "stress_ng_memory.txt"); exists(path) {
		if contains(path, "completed") {
			c.Details["stress_ng"] = "completed"
			c.Score += 50
		} else {
			c.Details["stress_ng"] = "failed"
		}
	}

	c.Status = grade(c.Score, 75, 50)
	return c
}

func analyzeDisk(dir string) Component {
	if !exists(dir) {
		return Component{Status: StatusUnknown}
	}
	c := Component{Status: StatusUnknown, Details: map[string]string{}}

	entries, _ := os.ReadDir(dir)
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		disk := e.Name()
		if path := filepath.Join(dir, disk, "smart.txt"); exists(path) {
			if contains(path, "SMART overall-health self-assessment test result: PASSED") {
				c.Details[disk+"/smart"] = "passed"
				c.Score += 20
			} else {
				c.Details[disk+"/smart"] = "failed"
			}
		}
		if path := filepath.Join(dir, disk, "fio_randread.txt"); exists(path) {
			if contains(path, "IOPS") {
				c.Details[disk+"/fio_read"] = "completed"
				c.Score += 15
			} else {
				c.Details[disk+"/fio_read"] = "failed"
			}
		}
	}

	c.Status = grade(c.Score, 50, 25)
	return c
}

func analyzeNetwork(dir string) Component {
	if !exists(dir) {
		return Component{Status: StatusUnknown}
	}
	c := Component{Status: StatusUnknown, Details: map[string]string{}}

	if path := filepath.Join(dir, "iperf3_localhost.txt"); exists(path) {
		if contains(path, "sender") && contains(path, "receiver") {
			c.Details["iperf3"] = "completed"
			c.Score += 50
		} else {
			c.Details["iperf3"] = "failed"
		}
	}

	entries, _ := os.ReadDir(dir)
	for _, e := range entries {
		if !e.IsDir() || e.Name() == "lo" {
			continue
		}
		if exists(filepath.Join(dir, e.Name(), "ethtool.txt")) {
			c.Details[e.Name()] = "configured"
			c.Score += 25
		}
	}

	c.Status = grade(c.Score, 75, 50)
	return c
}

// healthScore rolls component scores (75 points, split evenly) and
// system presence (25 points) into a 0-100 value. Components left
// unknown never ran and count toward neither side of the ratio.
func healthScore(perf map[string]Component) int {
	total := 25.0
	max := 25.0

	share := 75.0 / float64(len(perf))
	for _, c := range perf {
		if c.Status == StatusUnknown {
			continue
		}
		total += float64(c.Score) / 100.0 * share
		max += share
	}
	return int(total / max * 100)
}

func recommendations(a *Analysis) []string {
	var recs []string

	if a.Performance["cpu"].Status == StatusPoor {
		recs = append(recs, "CPU performance is poor. Consider checking for thermal throttling or background processes.")
	}
	if a.Performance["memory"].Status == StatusPoor {
		recs = append(recs, "Memory tests failed. Check for faulty RAM modules or memory configuration.")
	}
	if a.Performance["disk"].Status == StatusPoor {
		recs = append(recs, "Disk performance is poor. Check SMART status and consider replacing failing drives.")
	}
	if a.Performance["network"].Status == StatusPoor {
		recs = append(recs, "Network performance is poor. Check cable connections and switch configuration.")
	}

	if kv, err := version.Parse(a.System.Kernel); err == nil && !kv.AtLeast(minKernel) {
		recs = append(recs, "Kernel "+a.System.Kernel+" is older than the validated minimum "+minKernel.String()+". Update the boot image.")
	}

	if len(recs) == 0 {
		recs = append(recs, "System appears to be healthy. Continue monitoring for any changes.")
	}
	return recs
}

func grade(score, good, fair int) string {
	switch {
	case score >= good:
		return StatusGood
	case score >= fair:
		return StatusFair
	default:
		return StatusPoor
	}
}

func exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
