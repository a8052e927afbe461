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

package pipeline

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/numaproj/linearroad/pkg/metrics"
)

// routeMessagesCount is the number of messages delivered to the partitions of a stage
var routeMessagesCount = promauto.NewCounterVec(prometheus.CounterOpts{
	Subsystem: "pipeline",
	Name:      "route_total",
	Help:      "Total number of messages delivered to stage partitions",
}, []string{metrics.LabelStage, metrics.LabelStream})

// sourceMinute is the minute of the latest position report read
var sourceMinute = promauto.NewGauge(prometheus.GaugeOpts{
	Subsystem: "pipeline",
	Name:      "source_minute",
	Help:      "Minute of the latest position report read from the source",
})

// sinkWriteRetries is the number of failed sink write attempts
var sinkWriteRetries = promauto.NewCounterVec(prometheus.CounterOpts{
	Subsystem: "pipeline",
	Name:      "sink_write_failures_total",
	Help:      "Total number of failed sink write attempts",
}, []string{metrics.LabelSink})
