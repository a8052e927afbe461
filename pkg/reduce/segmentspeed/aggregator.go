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

// Package segmentspeed reduces the vehicle speeds of a minute to the average speed and the car count of
// every segment.
package segmentspeed

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
	"github.com/numaproj/linearroad/pkg/window"
)

// vehicles maps a vehicle to its average speed in the segment.
type vehicles map[int32]float64

// Aggregator keeps one window per open minute. Partitioned by segment.
type Aggregator struct {
	windows *window.SortedWindowList[types.SegmentKey, vehicles]
	flushed wmb.Minute
	log     *zap.SugaredLogger
}

func New(ctx context.Context) *Aggregator {
	return &Aggregator{
		windows: window.NewSortedWindowList[types.SegmentKey, vehicles](),
		log:     logging.FromContext(ctx).Named("segment-speed"),
	}
}

// Apply adds a vehicle speed to the window of its minute.
func (a *Aggregator) Apply(_ context.Context, msg *isb.Message) ([]*isb.Message, error) {
	v, ok := msg.Record.(*types.VehicleSpeed)
	if !ok || msg.Stream != isb.VehicleSpeeds {
		return nil, udferr.Newf(udferr.NonRetryable, "segment speed aggregator cannot consume %T from %s", msg.Record, msg.Stream)
	}
	if v.Minute <= a.flushed {
		return nil, udferr.Newf(udferr.Late, "speed of vehicle %d for minute %s, already flushed %s", v.VID, v.Minute, a.flushed)
	}
	w, _ := a.windows.InsertIfNotPresent(v.Minute)
	vs, ok := w.State[v.SegmentKey]
	if !ok {
		vs = make(vehicles)
		w.State[v.SegmentKey] = vs
	}
	// a vehicle has one speed per segment and minute, a replay overwrites it
	vs[v.VID] = v.AvgSpeed
	return nil, nil
}

// Flush emits the segment speed and the car count of every segment of every minute up to m, ordered by
// minute and segment.
func (a *Aggregator) Flush(_ context.Context, m wmb.Minute) ([]*isb.Message, error) {
	var out []*isb.Message
	for _, w := range a.windows.RemoveWindows(m) {
		for _, key := range w.SortedKeys(types.SegmentKey.Less) {
			vs := w.State[key]
			data := make(stats.Float64Data, 0, len(vs))
			for _, s := range vs {
				data = append(data, s)
			}
			// summation order must not depend on map iteration
			sort.Float64s(data)
			avg, err := data.Mean()
			if err != nil {
				return nil, fmt.Errorf("segment %s minute %s: %w", key, w.Minute, err)
			}
			out = append(out,
				isb.NewData(isb.SegmentSpeeds, &types.SegmentSpeed{Minute: w.Minute, SegmentKey: key, AvgSpeed: avg}),
				isb.NewData(isb.CarCounts, &types.CarCount{Minute: w.Minute, SegmentKey: key, Count: len(vs)}),
			)
		}
	}
	if m > a.flushed {
		a.flushed = m
	}
	// every key yields a speed and a count
	reduce.FlushedKeys.WithLabelValues("segment-speed").Observe(float64(len(out) / 2))
	if next := a.windows.Front(); next != nil {
		a.log.Debugw("Closed segment speeds", "minute", m, "records", len(out), "openWindows", a.windows.Len(), "nextMinute", next.Minute)
	} else {
		a.log.Debugw("Closed segment speeds", "minute", m, "records", len(out))
	}
	return out, nil
}
