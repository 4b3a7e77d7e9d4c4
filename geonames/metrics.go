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

package geonames

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type seedMetrics struct {
	rows      *prometheus.CounterVec
	positions prometheus.Counter
	toponyms  *prometheus.CounterVec
}

func newSeedMetrics(registry prometheus.Registerer) *seedMetrics {
	promautoFactory := promauto.With(registry)
	return &seedMetrics{
		rows: promautoFactory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "toponym_geonames_rows_read_total",
				Help: "dump rows read while seeding",
			},
			[]string{"dump"},
		),
		positions: promautoFactory.NewCounter(prometheus.CounterOpts{
			Name: "toponym_geonames_positions_seeded_total",
			Help: "positions inserted from country dumps",
		}),
		toponyms: promautoFactory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "toponym_geonames_toponyms_seeded_total",
				Help: "toponyms inserted while seeding",
			},
			[]string{"source"},
		),
	}
}
