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

// Package supervisor keeps the network-boot services alive. It polls
// the address-assignment (DHCP) and file-transfer (TFTP) services on
// a fixed cadence, restarts a dead address-assignment service, and
// force-restarts both when both are down at once. A dead file-transfer
// service alone is logged but not restarted: boot clients retry their
// downloads, and historically a solo TFTP restart has done more harm
// than good mid-transfer.
package supervisor

import "sync"

// Role classifies a supervised service for the escalation policy.
type Role string

const (
	// RoleAddressAssignment is the DHCP side of the boot path.
	RoleAddressAssignment Role = "address-assignment"
	// RoleFileTransfer is the TFTP side of the boot path.
	RoleFileTransfer Role = "file-transfer"
)

// State is a service's supervisory state.
type State string

const (
	StateUnknown    State = "unknown"
	StateRunning    State = "running"
	StateDead       State = "dead"
	StateRestarting State = "restarting"
)

// Token records the liveness identity of a running service, typically
// its main process ID. A zero PID means no identity is recorded.
type Token struct {
	PID int
}

// Valid reports whether the token points at a recorded process.
func (t Token) Valid() bool { return t.PID > 0 }

// Descriptor is one supervised service. State and token are written
// only by the supervisor loop; readers go through the accessors.
type Descriptor struct {
	// Name is the service identity, e.g. "dnsmasq-dhcp" or the
	// systemd unit name.
	Name string
	// Role drives the escalation policy.
	Role Role

	mu    sync.Mutex
	state State
	token Token
}

// NewDescriptor returns a Descriptor in StateUnknown.
func NewDescriptor(name string, role Role) *Descriptor {
	return &Descriptor{Name: name, Role: role, state: StateUnknown}
}

// State returns the current supervisory state.
func (d *Descriptor) State() State {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.state
}

func (d *Descriptor) setState(s State) {
	d.mu.Lock()
	d.state = s
	d.mu.Unlock()
}

// Token returns the recorded liveness token.
func (d *Descriptor) Token() Token {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.token
}

func (d *Descriptor) setToken(t Token) {
	d.mu.Lock()
	d.token = t
	d.mu.Unlock()
}

// clearToken drops stale liveness data. Always called before a
// restart so a failed start cannot leave the old identity behind.
func (d *Descriptor) clearToken() {
	d.setToken(Token{})
}
