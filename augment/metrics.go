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

package augment

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type wikiMetrics struct {
	requests     *prometheus.CounterVec
	titleLookups *prometheus.CounterVec
}

func newWikiMetrics(registry prometheus.Registerer) *wikiMetrics {
	promautoFactory := promauto.With(registry)
	return &wikiMetrics{
		requests: promautoFactory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "toponym_wiki_requests_total",
				Help: "requests sent to Wikipedia and WikiData",
			},
			[]string{"service", "result"},
		),
		titleLookups: promautoFactory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "toponym_wiki_title_lookups_total",
				Help: "Wikipedia title resolutions by cache result",
			},
			[]string{"result"},
		),
	}
}

type queueMetrics struct {
	batches  prometheus.Counter
	items    prometheus.Counter
	toponyms prometheus.Counter
	enqueued prometheus.Counter
}

func newQueueMetrics(registry prometheus.Registerer) *queueMetrics {
	promautoFactory := promauto.With(registry)
	return &queueMetrics{
		batches: promautoFactory.NewCounter(prometheus.CounterOpts{
			Name: "toponym_wiki_batches_total",
			Help: "augmentation batches processed",
		}),
		items: promautoFactory.NewCounter(prometheus.CounterOpts{
			Name: "toponym_wiki_items_processed_total",
			Help: "WikiData items marked as processed",
		}),
		toponyms: promautoFactory.NewCounter(prometheus.CounterOpts{
			Name: "toponym_wiki_toponyms_added_total",
			Help: "toponyms added from WikiData labels",
		}),
		enqueued: promautoFactory.NewCounter(prometheus.CounterOpts{
			Name: "toponym_wiki_enqueued_total",
			Help: "links added to the augmentation queue",
		}),
	}
}
