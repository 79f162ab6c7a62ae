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

	"github.com/urfave/cli/v3"

	"github.com/pxelab/bootprobe/pkg/supervisor"
)

func superviseCmd() *cli.Command {
	return &cli.Command{
		Name:                  "supervise",
		EnableShellCompletion: true,
		Usage:                 "Keep the PXE boot services alive",
		Description: `Supervise the address-assignment and file-transfer services that PXE
clients depend on. The supervisor polls both services on an interval
and restarts the address-assignment service when it dies. A dead
file-transfer service alone is logged but not restarted; when both are
dead the pair is force-restarted in the same cycle.

The service pair is declared in a YAML config:

  poll_interval: 15s
  settle_delay: 2s
  services:
    - name: dnsmasq.service
      role: address-assignment
      unit: true
    - name: tftpd
      role: file-transfer
      command: ["/usr/sbin/in.tftpd", "-L", "-s", "/srv/tftp"]

Services with unit: true are managed through systemd; others are
spawned and tracked directly.`,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:     "config",
				Aliases:  []string{"c"},
				Usage:    "Path to the supervisor YAML config",
				Sources:  cli.EnvVars("BOOTPROBE_SUPERVISOR_CONFIG"),
				Required: true,
			},
		},
		Action: runSupervise,
	}
}

func runSupervise(ctx context.Context, cmd *cli.Command) error {
	cfg, err := supervisor.LoadConfig(cmd.String("config"))
	if err != nil {
		return fmt.Errorf("invalid supervisor config: %w", err)
	}

	sup := supervisor.New(slog.Default(), cfg.Entries(),
		supervisor.WithInterval(cfg.PollInterval),
		supervisor.WithSettleDelay(cfg.SettleDelay))

	slog.Info("supervisor starting",
		"services", len(cfg.Services),
		"pollInterval", cfg.PollInterval.String())

	return sup.Run(ctx)
}
