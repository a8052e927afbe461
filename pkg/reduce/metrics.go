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

// Package reduce holds the minute windowed reducers of the pipeline: per vehicle speeds, per segment speeds
// and counts, and the latest average velocity.
package reduce

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/numaproj/linearroad/pkg/metrics"
)

// FlushedKeys is the number of keys a reducer closed in one flush.
var FlushedKeys = promauto.NewHistogramVec(prometheus.HistogramOpts{
	Subsystem: "reduce",
	Name:      "flushed_keys",
	Help:      "Number of keys closed by one flush",
	Buckets:   prometheus.ExponentialBuckets(1, 4, 8),
}, []string{metrics.LabelStage})
