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
	"os/exec"
	"sync"
)

// Detector answers whether a diagnostic tool is available in the
// running environment. Absence is not an error condition: it downgrades
// the corresponding probe to skipped.
type Detector interface {
	Available(tool string) bool
}

// PathDetector resolves tools on the executable search path. Lookups
// are cached; the throwaway probing image does not change mid-run.
type PathDetector struct {
	mu    sync.Mutex
	cache map[string]bool
}

// NewPathDetector creates a PathDetector with an empty cache.
func NewPathDetector() *PathDetector {
	return &PathDetector{cache: make(map[string]bool)}
}

// Available reports whether tool resolves to an executable on PATH.
// An empty tool name is treated as always available, for probes that
// only touch the filesystem.
func (d *PathDetector) Available(tool string) bool {
	if tool == "" {
		return true
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	if present, ok := d.cache[tool]; ok {
		return present
	}
	_, err := exec.LookPath(tool)
	d.cache[tool] = err == nil
	return err == nil
}

// StaticDetector is a fixed capability table, used in tests and when a
// deployment wants to pin the tool set explicitly.
type StaticDetector map[string]bool

// Available reports the configured presence of tool. Unlisted tools are
// treated as absent.
func (d StaticDetector) Available(tool string) bool {
	if tool == "" {
		return true
	}
	return d[tool]
}
