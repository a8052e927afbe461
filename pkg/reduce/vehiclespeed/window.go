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

// Package vehiclespeed computes the average speed of every vehicle per minute and segment.
package vehiclespeed

import (
	"context"
	"fmt"
	"sort"

	"github.com/montanaflynn/stats"
	"go.uber.org/zap"

	"github.com/numaproj/linearroad/pkg/isb"
	"github.com/numaproj/linearroad/pkg/reduce"
	"github.com/numaproj/linearroad/pkg/shared/logging"
	"github.com/numaproj/linearroad/pkg/types"
	"github.com/numaproj/linearroad/pkg/udferr"
	"github.com/numaproj/linearroad/pkg/watermark/wmb"
)

// accumulator holds the speeds a vehicle reported in one segment during one minute.
type accumulator struct {
	vid    int32
	key    types.SegmentKey
	minute wmb.Minute
	speeds stats.Float64Data
}

func (a *accumulator) result() (*types.VehicleSpeed, error) {
	avg, err := stats.Mean(a.speeds)
	if err != nil {
		return nil, fmt.Errorf("vehicle %d minute %s: %w", a.vid, a.minute, err)
	}
	return &types.VehicleSpeed{VID: a.vid, Minute: a.minute, SegmentKey: a.key, AvgSpeed: avg}, nil
}

// Window keeps one open accumulator per vehicle. Partitioned by vehicle id.
type Window struct {
	open    map[int32]*accumulator
	flushed wmb.Minute
	log     *zap.SugaredLogger
}

func New(ctx context.Context) *Window {
	return &Window{
		open: make(map[int32]*accumulator),
		log:  logging.FromContext(ctx).Named("vehicle-speed"),
	}
}

// Apply adds a position report to the accumulator of its vehicle. A report of another minute or segment
// closes the open accumulator first.
func (w *Window) Apply(_ context.Context, msg *isb.Message) ([]*isb.Message, error) {
	p, ok := msg.Record.(*types.PositionReport)
	if !ok || msg.Stream != isb.PositionReports {
		return nil, udferr.Newf(udferr.NonRetryable, "vehicle speed window cannot consume %T from %s", msg.Record, msg.Stream)
	}
	if err := p.Validate(); err != nil {
		return nil, udferr.Newf(udferr.Retryable, "invalid position report: %v", err)
	}
	m := p.Minute()
	if m <= w.flushed {
		return nil, udferr.Newf(udferr.Late, "report of vehicle %d at %d, minute %s already flushed", p.VID, p.Time, w.flushed)
	}
	key := p.SegmentKey()
	var out []*isb.Message
	acc, ok := w.open[p.VID]
	if ok && (acc.minute != m || acc.key != key) {
		if m < acc.minute {
			return nil, udferr.Newf(udferr.Late, "report of vehicle %d at %d is behind its minute %s", p.VID, p.Time, acc.minute)
		}
		r, err := acc.result()
		if err != nil {
			return nil, err
		}
		out = append(out, isb.NewData(isb.VehicleSpeeds, r))
		ok = false
	}
	if !ok {
		acc = &accumulator{vid: p.VID, key: key, minute: m}
		w.open[p.VID] = acc
	}
	acc.speeds = append(acc.speeds, float64(p.Speed))
	return out, nil
}

// Flush closes every accumulator of minute m or earlier, ordered by vehicle id.
func (w *Window) Flush(_ context.Context, m wmb.Minute) ([]*isb.Message, error) {
	var closed []*accumulator
	for vid, acc := range w.open {
		if acc.minute <= m {
			closed = append(closed, acc)
			delete(w.open, vid)
		}
	}
	sort.Slice(closed, func(i, j int) bool {
		if closed[i].minute != closed[j].minute {
			return closed[i].minute < closed[j].minute
		}
		return closed[i].vid < closed[j].vid
	})
	out := make([]*isb.Message, 0, len(closed))
	for _, acc := range closed {
		r, err := acc.result()
		if err != nil {
			return nil, err
		}
		out = append(out, isb.NewData(isb.VehicleSpeeds, r))
	}
	if m > w.flushed {
		w.flushed = m
	}
	reduce.FlushedKeys.WithLabelValues("vehicle-speed").Observe(float64(len(closed)))
	w.log.Debugw("Closed vehicle speeds", "minute", m, "count", len(out), "open", len(w.open))
	return out, nil
}

// Open returns the number of vehicles with an open accumulator.
func (w *Window) Open() int {
	return len(w.open)
}
