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

package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	LabelVersion   = "version"
	LabelPlatform  = "platform"
	LabelStage     = "stage"
	LabelPartition = "partition"
	LabelStream    = "stream"
	LabelSink      = "sink"
	LabelSource    = "source"
	LabelReason    = "reason"
)

var (
	BuildInfo = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "build_info",
		Help: "A metric with a constant value '1', labeled by binary version and platform",
	}, []string{LabelVersion, LabelPlatform})
)

// Sink metrics
var (
	SinkWriteCount = promauto.NewCounterVec(prometheus.CounterOpts{
		Subsystem: "sink",
		Name:      "write_total",
		Help:      "Total number of records written to a sink",
	}, []string{LabelSink, LabelStream})

	SinkWriteError = promauto.NewCounterVec(prometheus.CounterOpts{
		Subsystem: "sink",
		Name:      "write_error_total",
		Help:      "Total number of sink write errors",
	}, []string{LabelSink, LabelStream})
)

// Source metrics
var (
	SourceReadCount = promauto.NewCounterVec(prometheus.CounterOpts{
		Subsystem: "source",
		Name:      "read_total",
		Help:      "Total number of position reports read",
	}, []string{LabelSource})

	SourceSkipCount = promauto.NewCounterVec(prometheus.CounterOpts{
		Subsystem: "source",
		Name:      "skip_total",
		Help:      "Total number of input lines skipped",
	}, []string{LabelSource, LabelReason})
)
