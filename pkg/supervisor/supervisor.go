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
	"log/slog"
	"time"

	"github.com/pxelab/bootprobe/pkg/defaults"
)

// Entry pairs a service with the controller that manages it.
type Entry struct {
	Service    *Descriptor
	Controller Controller
}

// Supervisor polls its services on a fixed cadence and applies the
// restart policy. It owns all state and token mutation; nothing else
// writes to the descriptors.
type Supervisor struct {
	entries  []Entry
	interval time.Duration
	settle   time.Duration
	log      *slog.Logger
}

// Option adjusts Supervisor construction.
type Option func(*Supervisor)

// WithInterval overrides the poll interval.
func WithInterval(d time.Duration) Option {
	return func(s *Supervisor) { s.interval = d }
}

// WithSettleDelay overrides the pause between a restart and its
// liveness confirmation.
func WithSettleDelay(d time.Duration) Option {
	return func(s *Supervisor) { s.settle = d }
}

// New returns a Supervisor over entries.
func New(log *slog.Logger, entries []Entry, opts ...Option) *Supervisor {
	s := &Supervisor{
		entries:  entries,
		interval: defaults.SupervisorPollInterval,
		settle:   defaults.ServiceSettleDelay,
		log:      log,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Run polls until ctx is canceled. Cancellation exits the loop before
// the next cycle; no restarts are attempted on the way out.
func (s *Supervisor) Run(ctx context.Context) error {
	s.log.Info("supervisor starting",
		"services", len(s.entries),
		"interval", s.interval)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	// First cycle runs immediately so a cold start does not wait a
	// full interval before adopting the services.
	s.Cycle(ctx)

	for {
		select {
		case <-ctx.Done():
			s.log.Info("supervisor stopping", "reason", ctx.Err())
			return nil
		case <-ticker.C:
			s.Cycle(ctx)
		}
	}
}

// Cycle runs one poll pass: check every service, then apply the
// escalation policy to whatever is dead.
func (s *Supervisor) Cycle(ctx context.Context) {
	if ctx.Err() != nil {
		return
	}

	dead := make(map[Role]*Entry, len(s.entries))
	for i := range s.entries {
		e := &s.entries[i]
		alive, err := e.Controller.Alive(ctx, e.Service.Token())
		if err != nil {
			s.log.Warn("liveness check failed",
				"service", e.Service.Name, "error", err)
			continue
		}
		if alive {
			e.Service.setState(StateRunning)
			serviceUp.WithLabelValues(e.Service.Name).Set(1)
			continue
		}
		e.Service.setState(StateDead)
		serviceUp.WithLabelValues(e.Service.Name).Set(0)
		dead[e.Service.Role] = e
	}

	dhcp, dhcpDead := dead[RoleAddressAssignment]
	tftp, tftpDead := dead[RoleFileTransfer]

	switch {
	case dhcpDead && tftpDead:
		// Both gone at once points at the environment, not a single
		// flaky daemon. Force both back in the same cycle.
		s.log.Error("both boot services dead, forcing dual restart")
		forceRestarts.Inc()
		s.restart(ctx, dhcp)
		s.restart(ctx, tftp)
	case dhcpDead:
		s.log.Warn("address-assignment service dead, restarting",
			"service", dhcp.Service.Name)
		s.restart(ctx, dhcp)
	case tftpDead:
		// Deliberately left down. Boot clients re-request transfer
		// artifacts, and the dual-death path above still covers a
		// systemic failure.
		s.log.Warn("file-transfer service dead, not restarting",
			"service", tftp.Service.Name)
	}
}

// restart clears the stale token, invokes the start action, and
// confirms liveness after a settle delay.
func (s *Supervisor) restart(ctx context.Context, e *Entry) {
	e.Service.clearToken()
	e.Service.setState(StateRestarting)
	restarts.WithLabelValues(e.Service.Name).Inc()

	token, err := e.Controller.Start(ctx, e.Service.Name)
	if err != nil {
		s.log.Error("restart failed",
			"service", e.Service.Name, "error", err)
		e.Service.setState(StateDead)
		restartFailures.WithLabelValues(e.Service.Name).Inc()
		return
	}
	e.Service.setToken(token)

	if s.settle > 0 {
		select {
		case <-time.After(s.settle):
		case <-ctx.Done():
			return
		}
	}

	alive, err := e.Controller.Alive(ctx, e.Service.Token())
	if err == nil && alive {
		e.Service.setState(StateRunning)
		serviceUp.WithLabelValues(e.Service.Name).Set(1)
		s.log.Info("service restarted",
			"service", e.Service.Name, "pid", token.PID)
		return
	}
	s.log.Error("service did not come back after restart",
		"service", e.Service.Name)
	e.Service.setState(StateDead)
}
