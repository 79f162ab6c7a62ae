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
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"syscall"
	"time"

	"github.com/pxelab/bootprobe/pkg/defaults"
)

// Runner executes probes sequentially under per-probe deadlines,
// capturing combined output to files under OutputRoot. A Runner is
// owned by a single diagnostic run and is not safe for concurrent use.
type Runner struct {
	// Detector answers tool availability; required.
	Detector Detector
	// OutputRoot is the report directory for the current run.
	OutputRoot string
	// DefaultTimeout applies to probes that declare none.
	DefaultTimeout time.Duration
	// KillGrace is the SIGTERM→SIGKILL grace on deadline expiry.
	KillGrace time.Duration
	// Logger defaults to slog.Default.
	Logger *slog.Logger
}

// NewRunner creates a Runner with catalog defaults.
func NewRunner(detector Detector, outputRoot string) *Runner {
	return &Runner{
		Detector:       detector,
		OutputRoot:     outputRoot,
		DefaultTimeout: defaults.ProbeTimeout,
		KillGrace:      defaults.KillGrace,
		Logger:         slog.Default(),
	}
}

// Run executes one probe within its stage and returns its Result.
// Every path through this function produces a Result; execution errors
// are recorded, never raised. A canceled ctx (global deadline) is
// recorded the same way as a per-probe timeout.
func (r *Runner) Run(ctx context.Context, stage Stage, p Probe) Result {
	res := Result{
		Probe: p.Name,
		Stage: stage.Name,
	}

	if !r.Detector.Available(p.Tool) {
		res.Status = StatusSkipped
		res.Detail = fmt.Sprintf("tool %q not found", p.Tool)
		r.Logger.Info("probe skipped", "probe", p.Name, "stage", stage.Name, "tool", p.Tool)
		return res
	}

	// The global deadline may have expired between probes.
	if ctx.Err() != nil {
		res.Status = StatusSkipped
		res.Detail = "run deadline expired"
		return res
	}

	outPath, f, err := r.openOutput(stage, p)
	if err != nil {
		res.Status = StatusFailed
		res.Detail = err.Error()
		return res
	}
	defer func() { _ = f.Close() }()
	res.Output = outPath

	timeout := p.Timeout
	if timeout <= 0 {
		timeout = r.DefaultTimeout
	}

	var helperStop func()
	if p.Helper != nil {
		helperStop, err = r.startHelper(ctx, p.Helper)
		if err != nil {
			res.Status = StatusFailed
			res.Detail = fmt.Sprintf("helper %s: %v", p.Helper.Tool, err)
			return res
		}
		// Helper lifetime is bounded by the probe: torn down before the
		// probe is considered complete.
		defer helperStop()
	}

	r.Logger.Debug("probe starting",
		"probe", p.Name, "stage", stage.Name, "tool", p.Tool, "timeout", timeout.String())

	start := time.Now()
	status, detail := r.execute(ctx, f, p, timeout)
	res.Duration = time.Since(start)
	res.Status = status
	res.Detail = detail

	r.Logger.Info("probe finished",
		"probe", p.Name, "stage", stage.Name,
		"status", res.Status.String(), "duration", res.Duration.String())
	return res
}

// openOutput creates the stage directory and the probe's capture file.
func (r *Runner) openOutput(stage Stage, p Probe) (string, *os.File, error) {
	dir := filepath.Join(r.OutputRoot, stage.Dir)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", nil, fmt.Errorf("failed to create stage dir %s: %w", dir, err)
	}
	name := p.OutputFile
	if name == "" {
		name = p.Name + ".txt"
	}
	path := filepath.Join(dir, name)
	f, err := os.Create(path)
	if err != nil {
		return "", nil, fmt.Errorf("failed to create output file %s: %w", path, err)
	}
	rel, err := filepath.Rel(r.OutputRoot, path)
	if err != nil {
		rel = path
	}
	return rel, f, nil
}

// execute runs the probe command and classifies the outcome.
func (r *Runner) execute(ctx context.Context, out *os.File, p Probe, timeout time.Duration) (Status, string) {
	cmd := exec.Command(p.Tool, p.Args...)
	cmd.Stdout = out
	cmd.Stderr = out
	// Own process group so the whole tree can be reaped on expiry.
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}

	if err := cmd.Start(); err != nil {
		return StatusFailed, fmt.Sprintf("start: %v", err)
	}

	done := make(chan error, 1)
	go func() { done <- cmd.Wait() }()

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case err := <-done:
		if err != nil {
			return StatusFailed, err.Error()
		}
		return StatusOK, ""
	case <-timer.C:
		r.terminate(cmd, done)
		return StatusTimeout, fmt.Sprintf("exceeded %s", timeout)
	case <-ctx.Done():
		r.terminate(cmd, done)
		return StatusTimeout, "run deadline expired"
	}
}

// terminate reaps the command's process group: SIGTERM, a short grace,
// then SIGKILL. Safe to invoke after the process has already exited.
func (r *Runner) terminate(cmd *exec.Cmd, done <-chan error) {
	pgid := -cmd.Process.Pid

	// ESRCH just means the group is already gone.
	_ = syscall.Kill(pgid, syscall.SIGTERM)

	grace := time.NewTimer(r.KillGrace)
	defer grace.Stop()
	select {
	case <-done:
		return
	case <-grace.C:
	}

	_ = syscall.Kill(pgid, syscall.SIGKILL)
	<-done
}

// startHelper launches a probe's companion process in its own process
// group and returns an idempotent teardown function.
func (r *Runner) startHelper(ctx context.Context, h *Helper) (func(), error) {
	if !r.Detector.Available(h.Tool) {
		return nil, fmt.Errorf("tool %q not found", h.Tool)
	}

	cmd := exec.Command(h.Tool, h.Args...)
	cmd.Stdout = nil
	cmd.Stderr = nil
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("start: %w", err)
	}

	done := make(chan error, 1)
	go func() { done <- cmd.Wait() }()

	if h.WarmUp > 0 {
		warm := time.NewTimer(h.WarmUp)
		defer warm.Stop()
		select {
		case <-warm.C:
		case <-ctx.Done():
		case err := <-done:
			return nil, fmt.Errorf("exited during warm-up: %v", err)
		}
	}

	var stopped bool
	stop := func() {
		if stopped {
			return
		}
		stopped = true
		r.terminate(cmd, done)
	}
	return stop, nil
}
