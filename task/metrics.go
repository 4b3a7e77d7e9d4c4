// Copyright 2024 Blink Labs Software
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

package task

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type runnerMetrics struct {
	running  *prometheus.GaugeVec
	finished *prometheus.CounterVec
}

func newRunnerMetrics(registry prometheus.Registerer) *runnerMetrics {
	promautoFactory := promauto.With(registry)
	return &runnerMetrics{
		running: promautoFactory.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "toponym_tasks_running",
				Help: "background tasks currently running",
			},
			[]string{"task"},
		),
		finished: promautoFactory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "toponym_tasks_finished_total",
				Help: "background tasks that returned, by final status",
			},
			[]string{"task", "status"},
		),
	}
}
