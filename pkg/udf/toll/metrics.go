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

package toll

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/numaproj/linearroad/pkg/metrics"
)

// tollsCount counts the notifications and assessments emitted, by whether a toll is charged
var tollsCount = promauto.NewCounterVec(prometheus.CounterOpts{
	Subsystem: "toll",
	Name:      "records_total",
	Help:      "Total number of toll notifications and assessments",
}, []string{metrics.LabelPartition, metrics.LabelStream, "charged"})

// assessedAmount is the sum of the assessed tolls
var assessedAmount = promauto.NewCounterVec(prometheus.CounterOpts{
	Subsystem: "toll",
	Name:      "assessed_amount_total",
	Help:      "Sum of all assessed tolls",
}, []string{metrics.LabelPartition})

// trackedVehicles is the number of vehicles with crossing state
var trackedVehicles = promauto.NewGaugeVec(prometheus.GaugeOpts{
	Subsystem: "toll",
	Name:      "vehicles",
	Help:      "Number of vehicles with crossing state",
}, []string{metrics.LabelPartition})

// evictionsCount counts vehicles whose crossing state was evicted
var evictionsCount = promauto.NewCounterVec(prometheus.CounterOpts{
	Subsystem: "toll",
	Name:      "evictions_total",
	Help:      "Total number of evicted vehicle states",
}, []string{metrics.LabelPartition, metrics.LabelReason})
