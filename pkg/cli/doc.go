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

// Package cli implements the bootprobe command line interface.
//
// The CLI uses the urfave/cli/v3 framework and delegates to specialized
// packages:
//
//   - diag      - run the hardware diagnostic battery (pkg/diag, pkg/catalog)
//   - fetch     - retrieve a boot artifact from prioritized mirrors (pkg/fetch)
//   - supervise - keep the PXE boot services alive (pkg/supervisor)
//
// Commands share a --log-level flag; logs are structured JSON on
// stderr so stdout stays parseable. The diag command can archive and
// upload its report to a bootprobed collector when --upload-url or
// --scp-target is set.
package cli
