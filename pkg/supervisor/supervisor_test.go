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
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeController scripts liveness per token and counts starts.
type fakeController struct {
	alive    bool
	startPID int
	startErr error
	starts   int
}

func (f *fakeController) Alive(_ context.Context, token Token) (bool, error) {
	if !token.Valid() {
		return false, nil
	}
	return f.alive, nil
}

func (f *fakeController) Start(context.Context, string) (Token, error) {
	f.starts++
	if f.startErr != nil {
		return Token{}, f.startErr
	}
	f.alive = true
	return Token{PID: f.startPID}, nil
}

func discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newPair() (dhcp, tftp *Entry, sup *Supervisor) {
	d := Entry{
		Service:    NewDescriptor("dnsmasq-dhcp", RoleAddressAssignment),
		Controller: &fakeController{startPID: 101},
	}
	t := Entry{
		Service:    NewDescriptor("dnsmasq-tftp", RoleFileTransfer),
		Controller: &fakeController{startPID: 202},
	}
	sup = New(discard(), []Entry{d, t}, WithSettleDelay(0))
	return &sup.entries[0], &sup.entries[1], sup
}

func TestCycleRestartsDeadAddressAssignment(t *testing.T) {
	dhcp, tftp, sup := newPair()

	// no token recorded yet, both look dead; only dhcp restarts and
	// tftp stays down per policy asymmetry... but both dead together
	// is the dual escalation path, so seed tftp as alive first.
	tftp.Service.setToken(Token{PID: 202})
	tftp.Controller.(*fakeController).alive = true

	sup.Cycle(context.Background())

	assert.Equal(t, StateRunning, dhcp.Service.State())
	assert.Equal(t, 1, dhcp.Controller.(*fakeController).starts)
	assert.Equal(t, Token{PID: 101}, dhcp.Service.Token())
	assert.Equal(t, StateRunning, tftp.Service.State())
	assert.Equal(t, 0, tftp.Controller.(*fakeController).starts)
}

func TestCycleFileTransferAloneNotRestarted(t *testing.T) {
	dhcp, tftp, sup := newPair()

	dhcp.Service.setToken(Token{PID: 101})
	dhcp.Controller.(*fakeController).alive = true
	tftp.Service.setToken(Token{PID: 202})
	tftp.Controller.(*fakeController).alive = false

	sup.Cycle(context.Background())

	assert.Equal(t, StateRunning, dhcp.Service.State())
	assert.Equal(t, StateDead, tftp.Service.State())
	assert.Equal(t, 0, tftp.Controller.(*fakeController).starts)
}

func TestCycleBothDeadForcesDualRestart(t *testing.T) {
	dhcp, tftp, sup := newPair()

	dhcp.Service.setToken(Token{PID: 101})
	tftp.Service.setToken(Token{PID: 202})

	sup.Cycle(context.Background())

	assert.Equal(t, 1, dhcp.Controller.(*fakeController).starts)
	assert.Equal(t, 1, tftp.Controller.(*fakeController).starts)
	assert.Equal(t, StateRunning, dhcp.Service.State())
	assert.Equal(t, StateRunning, tftp.Service.State())
}

func TestRestartClearsTokenBeforeStart(t *testing.T) {
	ctrl := &tokenRecordingController{}
	e := Entry{
		Service:    NewDescriptor("dnsmasq-dhcp", RoleAddressAssignment),
		Controller: ctrl,
	}
	ctrl.entry = e.Service
	e.Service.setToken(Token{PID: 999})
	sup := New(discard(), []Entry{e}, WithSettleDelay(0))

	sup.Cycle(context.Background())

	assert.False(t, ctrl.tokenAtStart.Valid(), "stale token must be cleared before restart")
}

// tokenRecordingController captures the descriptor token at Start time.
type tokenRecordingController struct {
	entry        *Descriptor
	tokenAtStart Token
	started      bool
}

func (c *tokenRecordingController) Alive(_ context.Context, token Token) (bool, error) {
	return c.started && token.Valid(), nil
}

func (c *tokenRecordingController) Start(context.Context, string) (Token, error) {
	if c.entry != nil {
		c.tokenAtStart = c.entry.Token()
	}
	c.started = true
	return Token{PID: 321}, nil
}

func TestRestartFailureLeavesServiceDead(t *testing.T) {
	dhcp, tftp, sup := newPair()
	tftp.Service.setToken(Token{PID: 202})
	tftp.Controller.(*fakeController).alive = true
	dhcp.Service.setToken(Token{PID: 101})
	dhcp.Controller.(*fakeController).startErr = context.DeadlineExceeded

	sup.Cycle(context.Background())

	assert.Equal(t, StateDead, dhcp.Service.State())
	assert.False(t, dhcp.Service.Token().Valid())
}

func TestRunExitsOnCancellation(t *testing.T) {
	_, _, sup := newPair()
	sup.interval = 10 * time.Millisecond

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- sup.Run(ctx) }()

	time.Sleep(30 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("supervisor did not exit after cancellation")
	}
}

func TestProcessControllerAlive(t *testing.T) {
	c := &ProcessController{}

	alive, err := c.Alive(context.Background(), Token{})
	require.NoError(t, err)
	assert.False(t, alive, "invalid token is not alive")

	// our own pid is certainly alive
	alive, err = c.Alive(context.Background(), Token{PID: 1})
	require.NoError(t, err)
	assert.True(t, alive)
}

func TestProcessControllerStart(t *testing.T) {
	c := &ProcessController{Command: []string{"sleep", "10"}}

	token, err := c.Start(context.Background(), "test-svc")
	require.NoError(t, err)
	require.True(t, token.Valid())

	alive, err := c.Alive(context.Background(), token)
	require.NoError(t, err)
	assert.True(t, alive)
}

func TestProcessControllerStartNoCommand(t *testing.T) {
	c := &ProcessController{}
	_, err := c.Start(context.Background(), "test-svc")
	assert.Error(t, err)
}
