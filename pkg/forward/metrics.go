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

package forward

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	metricspkg "github.com/numaproj/linearroad/pkg/metrics"
)

// readMessagesCount is used to indicate the number of data messages read
var readMessagesCount = promauto.NewCounterVec(prometheus.CounterOpts{
	Subsystem: "stage",
	Name:      "read_total",
	Help:      "Total number of data messages read",
}, []string{metricspkg.LabelStage, metricspkg.LabelPartition, metricspkg.LabelStream})

// writeMessagesCount is used to indicate the number of data messages written
var writeMessagesCount = promauto.NewCounterVec(prometheus.CounterOpts{
	Subsystem: "stage",
	Name:      "write_total",
	Help:      "Total number of data messages written",
}, []string{metricspkg.LabelStage, metricspkg.LabelPartition, metricspkg.LabelStream})

// dropMessagesCount is used to indicate the number of messages dropped
var dropMessagesCount = promauto.NewCounterVec(prometheus.CounterOpts{
	Subsystem: "stage",
	Name:      "drop_total",
	Help:      "Total number of messages dropped",
}, []string{metricspkg.LabelStage, metricspkg.LabelPartition, metricspkg.LabelStream, metricspkg.LabelReason})

// flushCount is used to indicate the number of flushes applied
var flushCount = promauto.NewCounterVec(prometheus.CounterOpts{
	Subsystem: "stage",
	Name:      "flush_total",
	Help:      "Total number of flushes applied",
}, []string{metricspkg.LabelStage, metricspkg.LabelPartition})

// closedMinute is the last minute closed by the stage
var closedMinute = promauto.NewGaugeVec(prometheus.GaugeOpts{
	Subsystem: "stage",
	Name:      "closed_minute",
	Help:      "Last event time minute closed by the stage",
}, []string{metricspkg.LabelStage, metricspkg.LabelPartition})

// bufferedMessages is the number of data messages held back by the merger
var bufferedMessages = promauto.NewGaugeVec(prometheus.GaugeOpts{
	Subsystem: "stage",
	Name:      "buffered_messages",
	Help:      "Number of data messages waiting for the other inputs",
}, []string{metricspkg.LabelStage, metricspkg.LabelPartition})

// processingTime is a histogram to observe the time spent on one input message
var processingTime = promauto.NewHistogramVec(prometheus.HistogramOpts{
	Subsystem: "stage",
	Name:      "processing_time",
	Help:      "Processing times of one input message (1 microsecond to 1 second)",
	Buckets:   prometheus.ExponentialBucketsRange(1, 1000000, 10),
}, []string{metricspkg.LabelStage, metricspkg.LabelPartition})
