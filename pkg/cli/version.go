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

	"github.com/urfave/cli/v3"

	"github.com/pxelab/bootprobe/pkg/serializer"
)

func versionCmd() *cli.Command {
	return &cli.Command{
		Name:  "version",
		Usage: "Print version information",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "format",
				Usage: "Output format (json, yaml, table)",
				Value: string(serializer.FormatJSON),
			},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			f := serializer.Format(cmd.String("format"))
			if f.IsUnknown() {
				return fmt.Errorf("unknown output format: %q", f)
			}

			info := struct {
				Name    string `json:"name" yaml:"name"`
				Version string `json:"version" yaml:"version"`
				Commit  string `json:"commit" yaml:"commit"`
				Date    string `json:"date" yaml:"date"`
			}{
				Name:    name,
				Version: version,
				Commit:  commit,
				Date:    date,
			}

			w := serializer.NewWriter(f, nil)
			return w.Serialize(ctx, info)
		},
	}
}
