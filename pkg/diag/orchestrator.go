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

// Package diag orchestrates one bounded diagnostic run: an ordered
// battery of probes under per-probe deadlines, wrapped in one overall
// deadline, always terminating with a sealed Run ready for report
// synthesis.
package diag

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/gofrs/flock"
	"github.com/google/uuid"

	"github.com/pxelab/bootprobe/pkg/defaults"
	apperrors "github.com/pxelab/bootprobe/pkg/errors"
	"github.com/pxelab/bootprobe/pkg/probe"
	"github.com/pxelab/bootprobe/pkg/sysinfo"
)

// Config is the orchestrator's explicit configuration, threaded in at
// construction time.
type Config struct {
	// Host identifies the probed machine in reports and archive names.
	Host string
	// ReportsRoot is the directory tree reports are written under; the
	// run writes to ReportsRoot/Host.
	ReportsRoot string
	// RunTimeout is the whole-run deadline. Zero means the default.
	RunTimeout time.Duration
	// ProbeTimeout overrides the default per-probe deadline for probes
	// that declare none. Zero means the default.
	ProbeTimeout time.Duration
}

// Orchestrator executes the declared stages sequentially for one host.
type Orchestrator struct {
	cfg      Config
	stages   []probe.Stage
	detector probe.Detector
	logger   *slog.Logger
}

// NewOrchestrator creates an Orchestrator. A nil detector gets the
// PATH-backed default.
func NewOrchestrator(cfg Config, stages []probe.Stage, detector probe.Detector) *Orchestrator {
	if cfg.RunTimeout <= 0 {
		cfg.RunTimeout = defaults.RunTimeout
	}
	if detector == nil {
		detector = probe.NewPathDetector()
	}
	return &Orchestrator{
		cfg:      cfg,
		stages:   stages,
		detector: detector,
		logger:   slog.Default(),
	}
}

// HostDir returns the report directory for the configured host.
func (o *Orchestrator) HostDir() string {
	return filepath.Join(o.cfg.ReportsRoot, o.cfg.Host)
}

// Execute runs the full battery and returns the sealed Run. The run is
// defined to always terminate with a result set covering every declared
// probe: global deadline expiry and cancellation degrade the run, they
// do not abort it. The returned error covers only environmental
// failures that prevent the run from starting at all (lock contention,
// unwritable report directory).
func (o *Orchestrator) Execute(ctx context.Context) (*Run, error) {
	hostDir := o.HostDir()
	if err := os.MkdirAll(hostDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create report dir %s: %w", hostDir, err)
	}

	// One diagnostic run per host directory at a time.
	lock := flock.New(filepath.Join(hostDir, ".run.lock"))
	locked, err := lock.TryLock()
	if err != nil {
		return nil, fmt.Errorf("failed to acquire run lock: %w", err)
	}
	if !locked {
		return nil, apperrors.NewWithContext(apperrors.ErrCodeUnavailable,
			"another diagnostic run is in progress", map[string]any{"host": o.cfg.Host})
	}
	defer func() { _ = lock.Unlock() }()

	run := &Run{
		Host:      o.cfg.Host,
		RunID:     uuid.New().String(),
		StartedAt: time.Now().UTC(),
	}
	for _, s := range o.stages {
		run.StageOrder = append(run.StageOrder, s.Name)
	}

	o.logger.Info("diagnostic run starting",
		"host", run.Host, "run_id", run.RunID,
		"stages", len(o.stages), "deadline", o.cfg.RunTimeout.String())

	runCtx, cancel := context.WithTimeout(ctx, o.cfg.RunTimeout)
	defer cancel()

	run.Environment = sysinfo.Collect(runCtx)

	runner := probe.NewRunner(o.detector, hostDir)
	if o.cfg.ProbeTimeout > 0 {
		runner.DefaultTimeout = o.cfg.ProbeTimeout
	}

	for _, stage := range o.stages {
		o.executeStage(runCtx, runner, stage, run)
	}

	if runCtx.Err() != nil {
		run.Degraded = true
		o.logger.Warn("run deadline expired, report will be partial",
			"host", run.Host, "run_id", run.RunID)
	}

	run.Seal()
	o.logger.Info("diagnostic run finished",
		"host", run.Host, "run_id", run.RunID,
		"duration", run.Duration.String(), "degraded", run.Degraded)
	return run, nil
}

// executeStage runs one stage's probes sequentially. Once the run
// deadline has expired the remaining probes are recorded skipped so
// every declared probe still yields exactly one result.
func (o *Orchestrator) executeStage(ctx context.Context, runner *probe.Runner, stage probe.Stage, run *Run) {
	if len(stage.Probes) == 0 {
		o.logger.Info("stage declared no probes", "stage", stage.Name)
		return
	}

	o.logger.Info("stage starting", "stage", stage.Name, "probes", len(stage.Probes))
	for _, p := range stage.Probes {
		if ctx.Err() != nil {
			run.Append(probe.Result{
				Probe:  p.Name,
				Stage:  stage.Name,
				Status: probe.StatusSkipped,
				Detail: "run deadline expired",
			})
			continue
		}
		run.Append(runner.Run(ctx, stage, p))
	}

	status := run.StageStatusOf(stage.Name)
	if status == StagePartial {
		// Recorded, not raised: a partial stage never aborts the run.
		err := apperrors.NewWithContext(apperrors.ErrCodeStageIncomplete,
			"stage finished with partial results", map[string]any{"stage": stage.Name})
		o.logger.Warn("stage incomplete", "stage", stage.Name, "error", err.Error())
	}
	o.logger.Info("stage finished", "stage", stage.Name, "status", string(status))
}
