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
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	serviceUp = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "bootprobe_supervised_service_up",
			Help: "Whether a supervised service was alive at the last poll (1 = alive)",
		},
		[]string{"service"},
	)

	restarts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bootprobe_supervisor_restarts_total",
			Help: "Total restart attempts per supervised service",
		},
		[]string{"service"},
	)

	restartFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bootprobe_supervisor_restart_failures_total",
			Help: "Total restart attempts that failed per supervised service",
		},
		[]string{"service"},
	)

	forceRestarts = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "bootprobe_supervisor_force_restarts_total",
			Help: "Total dual force-restart escalations",
		},
	)
)
