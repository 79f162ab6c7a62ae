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

// Package sysinfo collects the environment summary embedded in every
// diagnostic report: kernel release, OS name, architecture, CPU count,
// and memory size. All values degrade to "unknown"/zero rather than
// failing the run.
package sysinfo

import (
	"context"
	"os"
	"runtime"
	"strconv"
	"strings"
)

var (
	kernelReleasePath      = "/proc/sys/kernel/osrelease"
	meminfoPath            = "/proc/meminfo"
	osReleasePathPrimary   = "/etc/os-release"
	osReleasePathSecondary = "/usr/lib/os-release"
)

// Environment summarizes the probed machine. Field names mirror the
// report document's environment block.
type Environment struct {
	Kernel   string  `json:"kernel" yaml:"kernel"`
	OS       string  `json:"os" yaml:"os"`
	Arch     string  `json:"arch" yaml:"arch"`
	CPUCount int     `json:"cpu_count" yaml:"cpu_count"`
	MemoryGB float64 `json:"memory_gb" yaml:"memory_gb"`
}

// Collect gathers the environment summary. Individual lookups that
// fail leave their field at its degraded default.
func Collect(ctx context.Context) Environment {
	env := Environment{
		Kernel:   "unknown",
		OS:       "unknown",
		Arch:     runtime.GOARCH,
		CPUCount: runtime.NumCPU(),
	}
	if ctx.Err() != nil {
		return env
	}

	if b, err := os.ReadFile(kernelReleasePath); err == nil {
		env.Kernel = strings.TrimSpace(string(b))
	}
	if name := osName(); name != "" {
		env.OS = name
	}
	env.MemoryGB = memoryGB()

	return env
}

// osName reads PRETTY_NAME (falling back to NAME) from os-release,
// trying the primary location first per the freedesktop.org spec.
func osName() string {
	root := osReleasePathPrimary
	if _, err := os.Stat(root); os.IsNotExist(err) {
		root = osReleasePathSecondary
	}

	parser := NewParser(WithVTrimChars(`"'`))
	params, err := parser.GetMap(root)
	if err != nil {
		return ""
	}
	if name := params["PRETTY_NAME"]; name != "" {
		return name
	}
	return params["NAME"]
}

// memoryGB reads MemTotal from /proc/meminfo, rounded to one decimal.
func memoryGB() float64 {
	parser := NewParser(WithKVDelimiter(":"))
	params, err := parser.GetMap(meminfoPath)
	if err != nil {
		return 0
	}

	// MemTotal is reported as "16384256 kB"
	total := strings.TrimSuffix(params["MemTotal"], "kB")
	kb, err := strconv.ParseFloat(strings.TrimSpace(total), 64)
	if err != nil {
		return 0
	}
	gb := kb / (1024 * 1024)
	return float64(int(gb*10+0.5)) / 10
}
