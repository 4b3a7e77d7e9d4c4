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

package cluster

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type clusterMetrics struct {
	runs      prometheus.Counter
	positions prometheus.Counter
}

func newClusterMetrics(registry prometheus.Registerer) *clusterMetrics {
	promautoFactory := promauto.With(registry)
	return &clusterMetrics{
		runs: promautoFactory.NewCounter(prometheus.CounterOpts{
			Name: "toponym_cluster_runs_total",
			Help: "clustering runs completed",
		}),
		positions: promautoFactory.NewCounter(prometheus.CounterOpts{
			Name: "toponym_cluster_positions_total",
			Help: "positions placed into clusters",
		}),
	}
}
