/*
Copyright 2022 The Numaproj Authors.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package accident

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/numaproj/linearroad/pkg/metrics"
)

// activeAccidents is the number of accidents currently declared
var activeAccidents = promauto.NewGaugeVec(prometheus.GaugeOpts{
	Subsystem: "accident",
	Name:      "active",
	Help:      "Number of active accidents",
}, []string{metrics.LabelPartition})

// accidentsCount counts accident declarations and retractions
var accidentsCount = promauto.NewCounterVec(prometheus.CounterOpts{
	Subsystem: "accident",
	Name:      "records_total",
	Help:      "Total number of accidents declared and cleared",
}, []string{metrics.LabelPartition, metrics.LabelReason})
