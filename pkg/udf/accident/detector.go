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

// Package accident detects accidents: places where several vehicles stopped. A vehicle is stopped once
// its last reports all show speed zero at one position. Accidents are declared and cleared explicitly, the
// toll engine uses them to waive tolls upstream of the accident.
package accident

import (
	"context"
	"sort"
	"strconv"

	"go.uber.org/zap"

	"github.com/numaproj/linearroad/pkg/isb"
	"github.com/numaproj/linearroad/pkg/shared/config"
	"github.com/numaproj/linearroad/pkg/shared/logging"
	"github.com/numaproj/linearroad/pkg/shared/queue"
	"github.com/numaproj/linearroad/pkg/types"
	"github.com/numaproj/linearroad/pkg/udferr"
	"github.com/numaproj/linearroad/pkg/watermark/wmb"
)

// place is the lane of a segment accidents are tracked for.
type place struct {
	types.SegmentKey
	lane types.Lane
}

func (p place) less(o place) bool {
	if p.SegmentKey != o.SegmentKey {
		return p.SegmentKey.Less(o.SegmentKey)
	}
	return p.lane < o.lane
}

type location struct {
	place
	position int32
}

type vehicle struct {
	history    *queue.OverflowQueue[*types.PositionReport]
	stopped    *location
	lastMinute wmb.Minute
}

// Detector tracks the stopped vehicles of one partition. Partitioned by expressway and direction.
type Detector struct {
	stoppedReports   int
	accidentVehicles int
	vehicles         map[int32]*vehicle
	// stopped holds the stopped vehicles per place
	stopped map[place]map[int32]struct{}
	// active holds the minute every declared accident was detected in
	active    map[place]wmb.Minute
	flushed   wmb.Minute
	partition string
	log       *zap.SugaredLogger
}

func New(ctx context.Context, partition int32, th config.Thresholds) *Detector {
	return &Detector{
		stoppedReports:   th.StoppedReports,
		accidentVehicles: th.AccidentVehicles,
		vehicles:         make(map[int32]*vehicle),
		stopped:          make(map[place]map[int32]struct{}),
		active:           make(map[place]wmb.Minute),
		partition:        strconv.Itoa(int(partition)),
		log:              logging.FromContext(ctx).Named("accident").With("partition", partition),
	}
}

// Apply adds a report to the history of its vehicle and declares or clears the accident at the place the
// vehicle stopped at or left.
func (d *Detector) Apply(_ context.Context, msg *isb.Message) ([]*isb.Message, error) {
	p, ok := msg.Record.(*types.PositionReport)
	if !ok || msg.Stream != isb.PositionReports {
		return nil, udferr.Newf(udferr.NonRetryable, "accident detector cannot consume %T from %s", msg.Record, msg.Stream)
	}
	if err := p.Validate(); err != nil {
		return nil, udferr.Newf(udferr.Retryable, "invalid position report: %v", err)
	}
	m := p.Minute()
	if m <= d.flushed {
		return nil, udferr.Newf(udferr.Late, "report of vehicle %d at %d, minute %s already flushed", p.VID, p.Time, d.flushed)
	}
	v, ok := d.vehicles[p.VID]
	if !ok {
		v = &vehicle{history: queue.New[*types.PositionReport](d.stoppedReports)}
		d.vehicles[p.VID] = v
	}
	v.history.Append(p)
	v.lastMinute = m

	loc := d.stoppedAt(v)
	if v.stopped != nil && loc != nil && *v.stopped == *loc {
		return nil, nil
	}
	var out []*isb.Message
	if v.stopped != nil {
		out = append(out, d.leave(p.VID, v.stopped.place, m)...)
	}
	v.stopped = loc
	if loc != nil {
		out = append(out, d.join(p.VID, loc.place, m)...)
	}
	if p.OnExitLane() {
		delete(d.vehicles, p.VID)
	}
	return out, nil
}

// stoppedAt returns the location the vehicle is stopped at, nil if it is not stopped.
func (d *Detector) stoppedAt(v *vehicle) *location {
	if !v.history.Full() {
		return nil
	}
	last, _ := v.history.Newest()
	if last.OnExitLane() {
		return nil
	}
	same := v.history.All(func(r *types.PositionReport) bool {
		return r.Speed == 0 && r.SegmentKey() == last.SegmentKey() && r.Lane == last.Lane && r.Position == last.Position
	})
	if !same {
		return nil
	}
	return &location{place: place{SegmentKey: last.SegmentKey(), lane: last.Lane}, position: last.Position}
}

func (d *Detector) join(vid int32, at place, m wmb.Minute) []*isb.Message {
	vs, ok := d.stopped[at]
	if !ok {
		vs = make(map[int32]struct{})
		d.stopped[at] = vs
	}
	vs[vid] = struct{}{}
	if _, ok := d.active[at]; ok || len(vs) < d.accidentVehicles {
		return nil
	}
	d.active[at] = m
	d.log.Infow("Accident detected", "segment", at.SegmentKey.String(), "lane", at.lane, "minute", m, "vehicles", len(vs))
	accidentsCount.WithLabelValues(d.partition, "detected").Inc()
	activeAccidents.WithLabelValues(d.partition).Set(float64(len(d.active)))
	return []*isb.Message{isb.NewData(isb.Accidents, &types.Accident{Minute: m, SegmentKey: at.SegmentKey, Lane: at.lane})}
}

func (d *Detector) leave(vid int32, at place, m wmb.Minute) []*isb.Message {
	vs := d.stopped[at]
	delete(vs, vid)
	if len(vs) == 0 {
		delete(d.stopped, at)
	}
	if _, ok := d.active[at]; !ok || len(vs) >= d.accidentVehicles {
		return nil
	}
	delete(d.active, at)
	activeAccidents.WithLabelValues(d.partition).Set(float64(len(d.active)))
	if m.IsTerminal() {
		return nil
	}
	d.log.Infow("Accident cleared", "segment", at.SegmentKey.String(), "lane", at.lane, "minute", m)
	accidentsCount.WithLabelValues(d.partition, "cleared").Inc()
	return []*isb.Message{isb.NewData(isb.Accidents, &types.Accident{Minute: m, SegmentKey: at.SegmentKey, Lane: at.lane, Cleared: true})}
}

// Flush forgets the vehicles that did not report during minute m or before. A stopped vehicle that
// disappeared leaves its place, which may clear the accident there.
func (d *Detector) Flush(_ context.Context, m wmb.Minute) ([]*isb.Message, error) {
	var gone []int32
	for vid, v := range d.vehicles {
		if v.lastMinute < m {
			gone = append(gone, vid)
		}
	}
	sort.Slice(gone, func(i, j int) bool { return gone[i] < gone[j] })
	var out []*isb.Message
	for _, vid := range gone {
		v := d.vehicles[vid]
		if v.stopped != nil {
			out = append(out, d.leave(vid, v.stopped.place, m)...)
		}
		delete(d.vehicles, vid)
	}
	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i].Record.(*types.Accident), out[j].Record.(*types.Accident)
		return place{a.SegmentKey, a.Lane}.less(place{b.SegmentKey, b.Lane})
	})
	if m > d.flushed {
		d.flushed = m
	}
	return out, nil
}

// Active returns the number of declared accidents.
func (d *Detector) Active() int {
	return len(d.active)
}

// Vehicles returns the number of vehicles with a report history.
func (d *Detector) Vehicles() int {
	return len(d.vehicles)
}
