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

// Package toll computes the toll of every segment a vehicle enters. On a crossing the vehicle is notified of
// the toll right away, the toll is assessed once the vehicle crossed into the next segment or left the
// expressway.
package toll

import (
	"context"
	"strconv"

	lru "github.com/hashicorp/golang-lru/v2"
	"go.uber.org/zap"

	"github.com/numaproj/linearroad/pkg/isb"
	"github.com/numaproj/linearroad/pkg/shared/config"
	"github.com/numaproj/linearroad/pkg/shared/logging"
	"github.com/numaproj/linearroad/pkg/types"
	"github.com/numaproj/linearroad/pkg/udferr"
	"github.com/numaproj/linearroad/pkg/watermark/wmb"
)

// Eviction reasons.
const (
	evictCapacity = "capacity"
	evictIdle     = "idle"
	evictEOS      = "eos"
)

type segmentMinute struct {
	types.SegmentKey
	minute wmb.Minute
}

// vehicle is the crossing state of one vehicle.
type vehicle struct {
	segment types.SegmentKey
	lane    types.Lane
	exited  bool
	// pending is the notification of the current segment, assessed on the next crossing
	pending    *types.TollNotification
	lastMinute wmb.Minute
}

// Engine is the toll state machine of one partition. Partitioned by expressway and direction.
type Engine struct {
	th       config.Thresholds
	opts     *options
	vehicles *lru.Cache[int32, *vehicle]
	counts   map[segmentMinute]int
	lavs     map[segmentMinute]int
	// accidents holds the minute of every active accident, per segment and lane
	accidents map[types.SegmentKey]map[types.Lane]wmb.Minute
	flushed   wmb.Minute
	// evicting is the reason of the running eviction, the cache reports capacity evictions on its own
	evicting  string
	partition string
	log       *zap.SugaredLogger
}

func New(ctx context.Context, partition int32, th config.Thresholds, opts ...Option) (*Engine, error) {
	o := defaultOptions()
	for _, opt := range opts {
		opt(o)
	}
	e := &Engine{
		th:        th,
		opts:      o,
		counts:    make(map[segmentMinute]int),
		lavs:      make(map[segmentMinute]int),
		accidents: make(map[types.SegmentKey]map[types.Lane]wmb.Minute),
		evicting:  evictCapacity,
		partition: strconv.Itoa(int(partition)),
		log:       logging.FromContext(ctx).Named("toll").With("partition", partition),
	}
	cache, err := lru.NewWithEvict[int32, *vehicle](th.VehicleCacheSize, e.onEvict)
	if err != nil {
		return nil, err
	}
	e.vehicles = cache
	return e, nil
}

func (e *Engine) onEvict(vid int32, v *vehicle) {
	evictionsCount.WithLabelValues(e.partition, e.evicting).Inc()
	if e.evicting == evictCapacity {
		e.log.Debugw("Evicted vehicle state", zap.Int32("vid", vid), zap.Stringer("lastMinute", v.lastMinute))
	}
}

// Apply consumes one record of any of the four inputs. The input is resolved from the stream of the message.
func (e *Engine) Apply(_ context.Context, msg *isb.Message) ([]*isb.Message, error) {
	switch msg.Stream {
	case isb.PositionReports:
		if p, ok := msg.Record.(*types.PositionReport); ok {
			return e.report(p)
		}
	case isb.CarCounts:
		if c, ok := msg.Record.(*types.CarCount); ok {
			if err := e.checkLate(c.Minute, msg); err != nil {
				return nil, err
			}
			e.counts[segmentMinute{c.SegmentKey, c.Minute}] = c.Count
			return nil, nil
		}
	case isb.Lavs:
		if l, ok := msg.Record.(*types.Lav); ok {
			if err := e.checkLate(l.Minute, msg); err != nil {
				return nil, err
			}
			e.lavs[segmentMinute{l.SegmentKey, l.Minute}] = l.Speed
			return nil, nil
		}
	case isb.Accidents:
		if a, ok := msg.Record.(*types.Accident); ok {
			if err := e.checkLate(a.Minute, msg); err != nil {
				return nil, err
			}
			e.accident(a)
			return nil, nil
		}
	}
	return nil, udferr.Newf(udferr.NonRetryable, "toll engine cannot consume %T from %s", msg.Record, msg.Stream)
}

func (e *Engine) checkLate(m wmb.Minute, msg *isb.Message) error {
	if m <= e.flushed {
		return udferr.Newf(udferr.Late, "%s of minute %s, minute %s already flushed", msg.Stream, m, e.flushed)
	}
	return nil
}

func (e *Engine) accident(a *types.Accident) {
	lanes := e.accidents[a.SegmentKey]
	if a.Cleared {
		delete(lanes, a.Lane)
		if len(lanes) == 0 {
			delete(e.accidents, a.SegmentKey)
		}
		return
	}
	if lanes == nil {
		lanes = make(map[types.Lane]wmb.Minute)
		e.accidents[a.SegmentKey] = lanes
	}
	if _, ok := lanes[a.Lane]; !ok {
		lanes[a.Lane] = a.Minute
	}
}

func (e *Engine) report(p *types.PositionReport) ([]*isb.Message, error) {
	if err := p.Validate(); err != nil {
		return nil, udferr.Newf(udferr.Retryable, "invalid position report: %v", err)
	}
	m := p.Minute()
	if m <= e.flushed {
		return nil, udferr.Newf(udferr.Late, "report of vehicle %d at %d, minute %s already flushed", p.VID, p.Time, e.flushed)
	}
	v, ok := e.vehicles.Get(p.VID)
	if !ok {
		v = &vehicle{}
		e.vehicles.Add(p.VID, v)
		trackedVehicles.WithLabelValues(e.partition).Set(float64(e.vehicles.Len()))
	}
	crossing := !ok || v.exited || v.segment != p.SegmentKey()
	v.lastMinute = m
	v.segment = p.SegmentKey()
	v.lane = p.Lane

	var out []*isb.Message
	if p.OnExitLane() {
		if !v.exited {
			out = e.assess(v, out)
		}
		v.exited = true
		v.pending = nil
		return out, nil
	}
	if !crossing {
		return nil, nil
	}
	n := &types.TollNotification{
		Type:     types.TollNotificationType,
		Time:     p.Time,
		EmitTime: e.opts.emitTime(p),
		VID:      p.VID,
		Speed:    e.lav(p.SegmentKey(), m-1),
		Toll:     e.Toll(p),
	}
	out = append(out, isb.NewData(isb.TollNotifications, n))
	tollsCount.WithLabelValues(e.partition, isb.TollNotifications.String(), strconv.FormatBool(n.Toll > 0)).Inc()
	if !v.exited {
		out = e.assess(v, out)
	}
	v.exited = false
	v.pending = n
	return out, nil
}

// assess emits the pending notification as the assessment of the segment the vehicle left.
func (e *Engine) assess(v *vehicle, out []*isb.Message) []*isb.Message {
	if v.pending == nil || v.pending.Toll <= 0 {
		return out
	}
	a := *v.pending
	tollsCount.WithLabelValues(e.partition, isb.TollAssessments.String(), "true").Inc()
	assessedAmount.WithLabelValues(e.partition).Add(float64(a.Toll))
	return append(out, isb.NewData(isb.TollAssessments, &a))
}

// Toll returns the toll of the segment of the report, from the statistics of the minute before the report.
// Reports on the exit lane are never charged.
func (e *Engine) Toll(p *types.PositionReport) int {
	if p.OnExitLane() {
		return 0
	}
	key, prev := p.SegmentKey(), p.Minute()-1
	count := e.counts[segmentMinute{key, prev}]
	if count <= e.th.Occupancy || e.lav(key, prev) >= e.th.SpeedLimit {
		return 0
	}
	if e.accidentAhead(key, p.Minute()) {
		return 0
	}
	d := count - e.th.Occupancy
	return e.th.TollFactor * d * d
}

// accidentAhead reports whether an accident detected before minute m is active in the segment or any of the
// lookahead segments downstream.
func (e *Engine) accidentAhead(key types.SegmentKey, m wmb.Minute) bool {
	for i := 0; i <= e.th.Lookahead; i++ {
		k, ok := key.Ahead(i)
		if !ok {
			return false
		}
		for _, at := range e.accidents[k] {
			if at < m {
				return true
			}
		}
	}
	return false
}

func (e *Engine) lav(key types.SegmentKey, m wmb.Minute) int {
	return e.lavs[segmentMinute{key, m}]
}

// Flush drops the statistics no report after minute m can use, and evicts the vehicles idle for longer than
// the idle interval. The terminal flush drops all state.
func (e *Engine) Flush(_ context.Context, m wmb.Minute) ([]*isb.Message, error) {
	if m <= e.flushed {
		return nil, nil
	}
	e.flushed = m
	if m.IsTerminal() {
		e.evicting = evictEOS
		e.vehicles.Purge()
		e.evicting = evictCapacity
		clear(e.counts)
		clear(e.lavs)
		clear(e.accidents)
		trackedVehicles.WithLabelValues(e.partition).Set(0)
		return nil, nil
	}
	for k := range e.counts {
		if k.minute < m {
			delete(e.counts, k)
		}
	}
	for k := range e.lavs {
		if k.minute < m {
			delete(e.lavs, k)
		}
	}
	e.evicting = evictIdle
	idle := wmb.Minute(e.th.VehicleIdleMinutes)
	evicted := 0
	for {
		_, v, ok := e.vehicles.GetOldest()
		if !ok || v.lastMinute+idle >= m {
			break
		}
		e.vehicles.RemoveOldest()
		evicted++
	}
	e.evicting = evictCapacity
	if evicted > 0 {
		e.log.Debugw("Evicted idle vehicles", zap.Int("count", evicted), zap.Stringer("minute", m))
	}
	trackedVehicles.WithLabelValues(e.partition).Set(float64(e.vehicles.Len()))
	return nil, nil
}

// Vehicles returns the number of vehicles with crossing state.
func (e *Engine) Vehicles() int {
	return e.vehicles.Len()
}
