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

	"github.com/pxelab/bootprobe/pkg/fetch"
)

func fetchCmd() *cli.Command {
	return &cli.Command{
		Name:                  "fetch",
		EnableShellCompletion: true,
		Usage:                 "Retrieve a boot artifact from prioritized mirrors",
		Description: `Retrieve a boot artifact (kernel, initrd, diagnostic image) from a
prioritized mirror list. Mirrors are tried strictly in the order given;
each mirror gets a fixed attempt budget before the next one is tried,
and an exhausted list is a terminal error.

Mirror forms:
  https://boot.example.com/images     HTTP(S) base URL
  file:///srv/tftp/images             Local directory
  oci://ghcr.io/pxelab/images:v3      OCI registry reference

With --sha256 the downloaded file is verified before it is accepted; a
digest mismatch counts as a failed attempt and the file is discarded.

Example:
  bootprobe fetch --artifact vmlinuz \
    --mirror https://boot-a.example.com/images \
    --mirror https://boot-b.example.com/images \
    --mirror oci://ghcr.io/pxelab/boot-images:latest \
    --dest /tmp/boot --sha256 9f86d08...`,
		Flags: []cli.Flag{
			&cli.StringSliceFlag{
				Name:     "mirror",
				Usage:    "Mirror in priority order (repeatable)",
				Sources:  cli.EnvVars("BOOTPROBE_MIRRORS"),
				Required: true,
			},
			&cli.StringFlag{
				Name:     "artifact",
				Usage:    "Artifact file name, resolved relative to each mirror",
				Required: true,
			},
			&cli.StringFlag{
				Name:  "dest",
				Usage: "Destination directory",
				Value: ".",
			},
			&cli.StringFlag{
				Name:  "sha256",
				Usage: "Expected hex digest of the artifact",
			},
			&cli.IntFlag{
				Name:  "attempts-per-mirror",
				Usage: "Attempt budget for each mirror",
				Value: fetch.DefaultPolicy().AttemptsPerMirror,
			},
			&cli.DurationFlag{
				Name:  "attempt-timeout",
				Usage: "Deadline for a single transfer",
				Value: fetch.DefaultPolicy().AttemptTimeout,
			},
			&cli.DurationFlag{
				Name:  "retry-delay",
				Usage: "Pause between consecutive attempts",
				Value: fetch.DefaultPolicy().RetryDelay,
			},
		},
		Action: runFetch,
	}
}

func runFetch(ctx context.Context, cmd *cli.Command) error {
	mirrors, err := fetch.ParseMirrors(cmd.StringSlice("mirror"))
	if err != nil {
		return fmt.Errorf("invalid mirror: %w", err)
	}

	policy := fetch.Policy{
		AttemptsPerMirror: int(cmd.Int("attempts-per-mirror")),
		AttemptTimeout:    cmd.Duration("attempt-timeout"),
		RetryDelay:        cmd.Duration("retry-delay"),
	}

	engine := fetch.NewEngine(mirrors, policy, slog.Default())

	res, err := engine.Fetch(ctx, fetch.Request{
		Artifact: cmd.String("artifact"),
		DestDir:  cmd.String("dest"),
		SHA256:   cmd.String("sha256"),
	})
	if err != nil {
		return err
	}

	slog.Info("artifact retrieved",
		"path", res.Path,
		"mirror", res.Mirror,
		"attempts", res.Attempts,
		"failedAttempts", res.FailedAttempts)
	fmt.Println(res.Path)
	return nil
}
