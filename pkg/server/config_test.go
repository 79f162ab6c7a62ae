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

package server

import (
	"testing"
	"time"

	"github.com/pxelab/bootprobe/pkg/defaults"
	"github.com/stretchr/testify/assert"
)

func TestNewConfigDefaults(t *testing.T) {
	cfg := NewConfig()

	assert.Equal(t, 8080, cfg.Port)
	assert.Equal(t, defaults.ServerReadTimeout, cfg.ReadTimeout)
	assert.Equal(t, defaults.ServerWriteTimeout, cfg.WriteTimeout)
	assert.Equal(t, defaults.ServerIdleTimeout, cfg.IdleTimeout)
	assert.Equal(t, defaults.ServerShutdownTimeout, cfg.ShutdownTimeout)
}

func TestConfigPortFromEnv(t *testing.T) {
	t.Setenv("PORT", "9191")

	cfg := NewConfig()
	assert.Equal(t, 9191, cfg.Port)
}

func TestConfigPortEnvInvalid(t *testing.T) {
	t.Setenv("PORT", "not-a-port")

	cfg := NewConfig()
	assert.Equal(t, 8080, cfg.Port)
}

func TestConfigShutdownTimeoutFromEnv(t *testing.T) {
	t.Setenv("SHUTDOWN_TIMEOUT_SECONDS", "45")

	cfg := NewConfig()
	assert.Equal(t, 45*time.Second, cfg.ShutdownTimeout)
}

func TestConfigShutdownTimeoutEnvRejectsZero(t *testing.T) {
	t.Setenv("SHUTDOWN_TIMEOUT_SECONDS", "0")

	cfg := NewConfig()
	assert.Equal(t, defaults.ServerShutdownTimeout, cfg.ShutdownTimeout)
}
