// Copyright 2025 Blink Labs Software
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

package database

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type storeMetrics struct {
	errors          *prometheus.CounterVec
	toponymsAdded   prometheus.Counter
	integrityNoops  prometheus.Counter
	positionsMerged prometheus.Counter
}

func newStoreMetrics(registry prometheus.Registerer) *storeMetrics {
	promautoFactory := promauto.With(registry)
	return &storeMetrics{
		errors: promautoFactory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "toponym_store_errors_total",
				Help: "store operations that returned an error",
			},
			[]string{"operation"},
		),
		toponymsAdded: promautoFactory.NewCounter(prometheus.CounterOpts{
			Name: "toponym_store_toponyms_added_total",
			Help: "toponym rows inserted",
		}),
		integrityNoops: promautoFactory.NewCounter(prometheus.CounterOpts{
			Name: "toponym_store_integrity_noops_total",
			Help: "inserts skipped because the row already existed",
		}),
		positionsMerged: promautoFactory.NewCounter(prometheus.CounterOpts{
			Name: "toponym_store_positions_merged_total",
			Help: "positions folded into a merged position",
		}),
	}
}
