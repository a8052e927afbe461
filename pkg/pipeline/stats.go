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
	"go.uber.org/atomic"

	"github.com/numaproj/linearroad/pkg/isb"
)

// Stats are the counters of a pipeline run.
type Stats struct {
	// Reports is the number of position reports read from the source.
	Reports int64 `json:"reports"`
	// Routed is the number of messages delivered to stage partitions.
	Routed int64 `json:"routed"`
	// Dropped is the number of messages rejected by a stage.
	Dropped int64 `json:"dropped"`
	// Written is the number of records written to the sinks, by stream.
	Written map[string]int64 `json:"written"`
}

type stats struct {
	reports *atomic.Int64
	routed  *atomic.Int64
	dropped *atomic.Int64
	written map[isb.StreamID]*atomic.Int64
}

func newStats() *stats {
	s := &stats{
		reports: atomic.NewInt64(0),
		routed:  atomic.NewInt64(0),
		dropped: atomic.NewInt64(0),
		written: make(map[isb.StreamID]*atomic.Int64, len(isb.Streams)),
	}
	for _, id := range isb.Streams {
		s.written[id] = atomic.NewInt64(0)
	}
	return s
}

func (s *stats) snapshot() Stats {
	r := Stats{
		Reports: s.reports.Load(),
		Routed:  s.routed.Load(),
		Dropped: s.dropped.Load(),
		Written: make(map[string]int64),
	}
	for id, c := range s.written {
		if n := c.Load(); n > 0 {
			r.Written[id.String()] = n
		}
	}
	return r
}
