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

package matcher

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type matcherMetrics struct {
	scanned     prometheus.Counter
	suggestions *prometheus.CounterVec
	runs        *prometheus.CounterVec
}

func newMatcherMetrics(registry prometheus.Registerer) *matcherMetrics {
	promautoFactory := promauto.With(registry)
	return &matcherMetrics{
		scanned: promautoFactory.NewCounter(prometheus.CounterOpts{
			Name: "toponym_matcher_toponyms_scanned_total",
			Help: "unplaced toponyms compared against candidates",
		}),
		suggestions: promautoFactory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "toponym_matcher_edges_written_total",
				Help: "new candidate edges written",
			},
			[]string{"table"},
		),
		runs: promautoFactory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "toponym_matcher_runs_total",
				Help: "matcher runs by result",
			},
			[]string{"result"},
		),
	}
}
