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

package navigator

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type navigatorMetrics struct {
	decisions  *prometheus.CounterVec
	rejections *prometheus.CounterVec
}

func newNavigatorMetrics(registry prometheus.Registerer) *navigatorMetrics {
	promautoFactory := promauto.With(registry)
	return &navigatorMetrics{
		decisions: promautoFactory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "toponym_navigator_decisions_total",
				Help: "candidates accepted by a reviewer",
			},
			[]string{"table"},
		),
		rejections: promautoFactory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "toponym_navigator_rejections_total",
				Help: "candidates rejected by a reviewer",
			},
			[]string{"table"},
		),
	}
}
