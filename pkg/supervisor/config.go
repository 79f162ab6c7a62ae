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
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/pxelab/bootprobe/pkg/defaults"
	"github.com/pxelab/bootprobe/pkg/errors"
)

// ServiceConfig declares one supervised service.
type ServiceConfig struct {
	// Name is the service identity; for systemd management this is
	// the unit name.
	Name string `yaml:"name"`
	// Role is address-assignment or file-transfer.
	Role Role `yaml:"role"`
	// Unit selects systemd management when true; otherwise Command
	// is spawned directly.
	Unit bool `yaml:"unit,omitempty"`
	// Command is the argv for direct process management.
	Command []string `yaml:"command,omitempty"`
}

// Config is the supervisor's configuration document.
type Config struct {
	// PollInterval between liveness cycles.
	PollInterval time.Duration `yaml:"poll_interval,omitempty"`
	// SettleDelay between a restart and its confirmation check.
	SettleDelay time.Duration `yaml:"settle_delay,omitempty"`
	// Services are the supervised pair.
	Services []ServiceConfig `yaml:"services"`
}

// LoadConfig reads and validates a YAML config file.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config %s: %w", path, err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if cfg.PollInterval == 0 {
		cfg.PollInterval = defaults.SupervisorPollInterval
	}
	if cfg.SettleDelay == 0 {
		cfg.SettleDelay = defaults.ServiceSettleDelay
	}
	return &cfg, nil
}

// Validate rejects configs the supervisor cannot act on.
func (c *Config) Validate() error {
	if len(c.Services) == 0 {
		return errors.New(errors.ErrCodeInvalidRequest, "no services configured")
	}
	seen := map[Role]bool{}
	for _, s := range c.Services {
		if s.Name == "" {
			return errors.New(errors.ErrCodeInvalidRequest, "service name is required")
		}
		if s.Role != RoleAddressAssignment && s.Role != RoleFileTransfer {
			return errors.NewWithContext(errors.ErrCodeInvalidRequest,
				"unknown service role",
				map[string]any{"service": s.Name, "role": string(s.Role)})
		}
		if seen[s.Role] {
			return errors.NewWithContext(errors.ErrCodeInvalidRequest,
				"duplicate service role",
				map[string]any{"role": string(s.Role)})
		}
		seen[s.Role] = true
		if !s.Unit && len(s.Command) == 0 {
			return errors.NewWithContext(errors.ErrCodeInvalidRequest,
				"service needs a unit or a command",
				map[string]any{"service": s.Name})
		}
	}
	return nil
}

// Entries materializes the configured services into supervisor
// entries with their controllers.
func (c *Config) Entries() []Entry {
	entries := make([]Entry, 0, len(c.Services))
	for _, s := range c.Services {
		var ctrl Controller
		if s.Unit {
			ctrl = NewSystemdController()
		} else {
			ctrl = &ProcessController{Command: s.Command}
		}
		entries = append(entries, Entry{
			Service:    NewDescriptor(s.Name, s.Role),
			Controller: ctrl,
		})
	}
	return entries
}
