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

package supervisor

import (
	"context"
	"fmt"
	"os/exec"
	"syscall"

	"github.com/coreos/go-systemd/v22/dbus"

	"github.com/pxelab/bootprobe/pkg/errors"
)

// Controller provides the environment-specific liveness and start
// capabilities for a service. The supervisor owns the policy;
// controllers own the mechanism.
type Controller interface {
	// Alive reports whether the service behind the token is a live
	// process. An invalid token is simply not alive, not an error.
	Alive(ctx context.Context, token Token) (bool, error)
	// Start launches the service and returns its new liveness token.
	Start(ctx context.Context, name string) (Token, error)
}

// ProcessController manages a service as a directly spawned process.
// Used on boot images without an init system worth the name.
type ProcessController struct {
	// Command is the argv to launch the service. The process is
	// expected to stay in the foreground (e.g. dnsmasq -k).
	Command []string
}

func (c *ProcessController) Alive(_ context.Context, token Token) (bool, error) {
	if !token.Valid() {
		return false, nil
	}
	// Signal 0 proves existence without touching the process.
	err := syscall.Kill(token.PID, 0)
	if err == nil {
		return true, nil
	}
	if err == syscall.EPERM {
		return true, nil
	}
	return false, nil
}

func (c *ProcessController) Start(_ context.Context, name string) (Token, error) {
	if len(c.Command) == 0 {
		return Token{}, errors.New(errors.ErrCodeInvalidRequest,
			"no start command configured for "+name)
	}

	cmd := exec.Command(c.Command[0], c.Command[1:]...)
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	if err := cmd.Start(); err != nil {
		return Token{}, errors.Wrap(errors.ErrCodeServiceDown,
			"failed to start "+name, err)
	}

	pid := cmd.Process.Pid
	// Reap on exit so a dead service never lingers as a zombie and
	// the next liveness check sees it gone.
	go func() { _ = cmd.Wait() }()

	return Token{PID: pid}, nil
}

// SystemdController manages a service through the systemd D-Bus API.
// The service name is the unit name, e.g. "dnsmasq.service".
type SystemdController struct {
	// NewConn is swappable for tests; defaults to a system bus
	// connection.
	NewConn func(ctx context.Context) (SystemdConn, error)
}

// SystemdConn is the slice of the dbus connection the controller uses.
type SystemdConn interface {
	GetUnitPropertiesContext(ctx context.Context, unit string) (map[string]any, error)
	RestartUnitContext(ctx context.Context, name string, mode string, ch chan<- string) (int, error)
	Close()
}

// NewSystemdController returns a controller bound to the system bus.
func NewSystemdController() *SystemdController {
	return &SystemdController{
		NewConn: func(ctx context.Context) (SystemdConn, error) {
			return dbus.NewSystemdConnectionContext(ctx)
		},
	}
}

func (c *SystemdController) Alive(ctx context.Context, token Token) (bool, error) {
	if !token.Valid() {
		return false, nil
	}
	err := syscall.Kill(token.PID, 0)
	return err == nil || err == syscall.EPERM, nil
}

func (c *SystemdController) Start(ctx context.Context, name string) (Token, error) {
	conn, err := c.NewConn(ctx)
	if err != nil {
		return Token{}, fmt.Errorf("failed to connect to systemd: %w", err)
	}
	defer conn.Close()

	done := make(chan string, 1)
	if _, err := conn.RestartUnitContext(ctx, name, "replace", done); err != nil {
		return Token{}, errors.Wrap(errors.ErrCodeServiceDown,
			"failed to restart unit "+name, err)
	}

	select {
	case result := <-done:
		if result != "done" {
			return Token{}, errors.NewWithContext(errors.ErrCodeServiceDown,
				"unit restart did not complete",
				map[string]any{"unit": name, "result": result})
		}
	case <-ctx.Done():
		return Token{}, fmt.Errorf("unit restart interrupted: %w", ctx.Err())
	}

	props, err := conn.GetUnitPropertiesContext(ctx, name)
	if err != nil {
		return Token{}, fmt.Errorf("failed to get unit properties: %w", err)
	}

	pid, _ := props["MainPID"].(uint32)
	if pid == 0 {
		return Token{}, errors.NewWithContext(errors.ErrCodeServiceDown,
			"unit reports no main process after restart",
			map[string]any{"unit": name})
	}
	return Token{PID: int(pid)}, nil
}
