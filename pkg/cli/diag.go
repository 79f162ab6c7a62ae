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

package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/urfave/cli/v3"

	"github.com/pxelab/bootprobe/pkg/archive"
	"github.com/pxelab/bootprobe/pkg/catalog"
	"github.com/pxelab/bootprobe/pkg/diag"
	"github.com/pxelab/bootprobe/pkg/report"
)

func diagCmd() *cli.Command {
	return &cli.Command{
		Name:                  "diag",
		EnableShellCompletion: true,
		Usage:                 "Run the hardware diagnostic battery",
		Description: `Run the staged hardware diagnostic battery on this machine:
  - hardware: inventory captures (lscpu, lspci, dmidecode, sensors)
  - cpu:      sysbench and stress-ng benchmarks
  - memory:   memtester and stress-ng memory pressure
  - disk:     SMART health and fio benchmarks per block device
  - network:  ethtool per interface and loopback iperf3 throughput
  - power:    supply and thermal captures

Probes whose tools are missing are reported as skipped, never failed.
The run always produces a report; expiry of the global deadline marks
the report degraded instead of aborting it, and the result line printed
on completion carries a partial marker.

The report is written under <reports-dir>/<host>/ as report.json and
summary.txt together with the raw probe captures. With --archive-dir
the report tree is packed into <host>_report_<timestamp>.tar.gz, and
with --upload-url or --scp-target the archive is delivered to a
collector, trying each target in order until one succeeds.`,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "host",
				Usage:   "Host name used in the report and archive (default: system hostname)",
				Sources: cli.EnvVars("BOOTPROBE_HOST"),
			},
			&cli.StringFlag{
				Name:    "reports-dir",
				Usage:   "Directory tree reports are written under",
				Sources: cli.EnvVars("BOOTPROBE_REPORTS_DIR"),
				Value:   "/var/lib/bootprobe/reports",
			},
			&cli.DurationFlag{
				Name:  "run-timeout",
				Usage: "Whole-run deadline (0 uses the default)",
			},
			&cli.DurationFlag{
				Name:  "probe-timeout",
				Usage: "Per-probe deadline for probes that declare none (0 uses the default)",
			},
			&cli.DurationFlag{
				Name:  "stress-duration",
				Usage: "Workload timer for CPU and memory stress probes",
				Value: 30 * time.Second,
			},
			&cli.StringSliceFlag{
				Name:  "disk",
				Usage: "Block device to probe (repeatable; default: discovered)",
			},
			&cli.StringSliceFlag{
				Name:  "interface",
				Usage: "Network interface to probe (repeatable; default: discovered)",
			},
			&cli.StringFlag{
				Name:  "fio-size",
				Usage: "Working set size for disk benchmarks",
				Value: "256M",
			},
			&cli.IntFlag{
				Name:  "iperf-port",
				Usage: "Loopback throughput test port",
				Value: 5201,
			},
			&cli.StringFlag{
				Name:  "archive-dir",
				Usage: "Pack the report tree into a tar.gz archive in this directory",
			},
			&cli.StringFlag{
				Name:    "upload-url",
				Usage:   "Collector upload endpoint (e.g. http://collector:8080/api/v1/reports/upload)",
				Sources: cli.EnvVars("BOOTPROBE_UPLOAD_URL"),
			},
			&cli.StringFlag{
				Name:    "scp-target",
				Usage:   "Fallback scp destination (e.g. user@collector:/srv/reports)",
				Sources: cli.EnvVars("BOOTPROBE_SCP_TARGET"),
			},
		},
		Action: runDiag,
	}
}

func runDiag(ctx context.Context, cmd *cli.Command) error {
	host := cmd.String("host")
	if host == "" {
		h, err := os.Hostname()
		if err != nil {
			return fmt.Errorf("failed to resolve hostname: %w", err)
		}
		host = h
	}

	ccfg := catalog.DefaultConfig()
	if disks := cmd.StringSlice("disk"); len(disks) > 0 {
		ccfg.Disks = disks
	}
	if ifaces := cmd.StringSlice("interface"); len(ifaces) > 0 {
		ccfg.Interfaces = ifaces
	}
	ccfg.StressDuration = cmd.Duration("stress-duration")
	ccfg.FioSize = cmd.String("fio-size")
	ccfg.IperfPort = int(cmd.Int("iperf-port"))

	orch := diag.NewOrchestrator(diag.Config{
		Host:         host,
		ReportsRoot:  cmd.String("reports-dir"),
		RunTimeout:   cmd.Duration("run-timeout"),
		ProbeTimeout: cmd.Duration("probe-timeout"),
	}, catalog.Stages(ccfg), nil)

	run, err := orch.Execute(ctx)
	if err != nil {
		return fmt.Errorf("diagnostic run failed to start: %w", err)
	}

	rep, err := report.Synthesize(run)
	if err != nil {
		return fmt.Errorf("failed to synthesize report: %w", err)
	}
	if err := rep.Write(orch.HostDir()); err != nil {
		return fmt.Errorf("failed to write report: %w", err)
	}

	slog.Info("report written",
		"host", host,
		"dir", orch.HostDir(),
		"degraded", run.Degraded)
	fmt.Println(diagOutcome(orch.HostDir(), run.Degraded))

	return shipReport(ctx, cmd, orch.HostDir(), host)
}

// diagOutcome is the result line printed on completion. A run that hit
// the global deadline still produced a report, flagged partial here and
// in the report's degraded field.
func diagOutcome(dir string, degraded bool) string {
	if degraded {
		return fmt.Sprintf("report written to %s (partial: run deadline expired)", dir)
	}
	return "report written to " + dir
}

// shipReport packs and delivers the report when archiving or any
// upload target is configured.
func shipReport(ctx context.Context, cmd *cli.Command, hostDir, host string) error {
	archiveDir := cmd.String("archive-dir")
	uploadURL := cmd.String("upload-url")
	scpTarget := cmd.String("scp-target")

	if archiveDir == "" && uploadURL == "" && scpTarget == "" {
		return nil
	}
	if archiveDir == "" {
		dir, err := os.MkdirTemp("", "bootprobe-archive-")
		if err != nil {
			return fmt.Errorf("failed to create archive dir: %w", err)
		}
		defer os.RemoveAll(dir)
		archiveDir = dir
	}

	path, err := archive.Pack(hostDir, archiveDir, host, time.Now())
	if err != nil {
		return fmt.Errorf("failed to pack report archive: %w", err)
	}
	slog.Info("report archived", "path", path)

	uploaders := buildUploaders(uploadURL, scpTarget)
	if len(uploaders) == 0 {
		return nil
	}

	if !archive.Dispatch(ctx, slog.Default(), path, uploaders...) {
		// The report is still on disk; delivery failure does not
		// invalidate the run.
		slog.Warn("all upload targets failed, report kept locally",
			"path", path)
	}
	return nil
}

func buildUploaders(uploadURL, scpTarget string) []archive.Uploader {
	var ups []archive.Uploader
	if uploadURL != "" {
		ups = append(ups, archive.NewHTTPUploader(uploadURL))
	}
	if scpTarget != "" {
		ups = append(ups, &archive.SCPUploader{Target: scpTarget})
	}
	return ups
}
