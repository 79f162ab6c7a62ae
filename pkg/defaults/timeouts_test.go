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

package defaults

import (
	"testing"
	"time"
)

func TestTimeoutConstants(t *testing.T) {
	tests := []struct {
		name     string
		timeout  time.Duration
		minValue time.Duration
		maxValue time.Duration
	}{
		{"ProbeTimeout", ProbeTimeout, 10 * time.Second, 5 * time.Minute},
		{"RunTimeout", RunTimeout, 5 * time.Minute, time.Hour},
		{"KillGrace", KillGrace, time.Second, 10 * time.Second},

		{"FetchAttemptTimeout", FetchAttemptTimeout, 30 * time.Second, 10 * time.Minute},
		{"FetchRetryDelay", FetchRetryDelay, time.Second, time.Minute},

		{"SupervisorPollInterval", SupervisorPollInterval, 5 * time.Second, 5 * time.Minute},
		{"ServiceStartTimeout", ServiceStartTimeout, 5 * time.Second, 2 * time.Minute},

		{"ServerReadTimeout", ServerReadTimeout, 5 * time.Second, 30 * time.Second},
		{"ServerWriteTimeout", ServerWriteTimeout, 15 * time.Second, 60 * time.Second},
		{"ServerIdleTimeout", ServerIdleTimeout, 60 * time.Second, 300 * time.Second},
		{"ServerShutdownTimeout", ServerShutdownTimeout, 10 * time.Second, 60 * time.Second},

		{"HTTPClientTimeout", HTTPClientTimeout, 10 * time.Second, 60 * time.Second},
		{"StoreScanTimeout", StoreScanTimeout, 5 * time.Second, 2 * time.Minute},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.timeout < tt.minValue || tt.timeout > tt.maxValue {
				t.Errorf("%s = %v, want between %v and %v",
					tt.name, tt.timeout, tt.minValue, tt.maxValue)
			}
		})
	}
}

// Probe deadlines must fit inside the run deadline, and retry pacing
// must fit inside the attempt timeout, or the budgets are meaningless.
func TestTimeoutRelationships(t *testing.T) {
	if ProbeTimeout >= RunTimeout {
		t.Error("ProbeTimeout must be shorter than RunTimeout")
	}
	if KillGrace >= ProbeTimeout {
		t.Error("KillGrace must be shorter than ProbeTimeout")
	}
	if FetchRetryDelay >= FetchAttemptTimeout {
		t.Error("FetchRetryDelay must be shorter than FetchAttemptTimeout")
	}
	if ServiceSettleDelay >= SupervisorPollInterval {
		t.Error("ServiceSettleDelay must be shorter than SupervisorPollInterval")
	}
}
