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

// Package generator simulates expressway traffic in memory. Vehicles enter on the entrance ramp, travel
// in one of the three travel lanes and leave on the exit ramp, reporting their position every 30 seconds.
// Every expressway direction has a congested zone of slow traffic, and accidents are staged by pairs of
// vehicles that stop at the same place. The simulation is deterministic for a given seed.
package generator

import (
	"context"
	"fmt"
	"io"
	"math/rand"

	"github.com/numaproj/linearroad/pkg/metrics"
	"github.com/numaproj/linearroad/pkg/shared/config"
	"github.com/numaproj/linearroad/pkg/types"
)

const (
	name = "generator"
	// reportInterval is the number of seconds between two reports of a vehicle.
	reportInterval = 30
	segmentLength  = 5280
	roadLength     = (types.MaxSegment + 1) * segmentLength
	// accidentReports is the number of reports an accident vehicle stays stopped for.
	accidentReports = 10
	congestedLength = 6
	minTrip         = 5
	maxTrip         = 40
)

type phase int

const (
	entering phase = iota
	travelling
	stopped
	exiting
	done
)

type vehicle struct {
	vid       int32
	xway      int32
	dir       types.Direction
	lane      types.Lane
	entry     int64
	position  int32
	speed     int32
	phase     phase
	remaining int
}

// MemGen generates position reports.
type MemGen struct {
	rng       *rand.Rand
	end       int64
	now       int64
	buckets   [reportInterval][]*vehicle
	congested map[types.SegmentKey]bool
	pending   []*types.PositionReport
}

// NewMemGen builds the simulation described by g.
func NewMemGen(g config.Generator) (*MemGen, error) {
	switch {
	case g.XWays <= 0:
		return nil, fmt.Errorf("invalid generator: xways must be positive, got %d", g.XWays)
	case g.Minutes <= 0:
		return nil, fmt.Errorf("invalid generator: minutes must be positive, got %d", g.Minutes)
	case g.Vehicles < 0 || g.Accidents < 0:
		return nil, fmt.Errorf("invalid generator: vehicles and accidents must not be negative")
	case 2*g.Accidents > g.Vehicles:
		return nil, fmt.Errorf("invalid generator: %d accidents need %d vehicles, got %d", g.Accidents, 2*g.Accidents, g.Vehicles)
	}
	m := &MemGen{
		rng:       rand.New(rand.NewSource(g.Seed)),
		end:       int64(g.Minutes) * 60,
		congested: make(map[types.SegmentKey]bool),
	}
	for x := 0; x < g.XWays; x++ {
		for _, d := range []types.Direction{types.Eastbound, types.Westbound} {
			first := m.rng.Intn(types.MaxSegment + 2 - congestedLength)
			for s := first; s < first+congestedLength; s++ {
				m.congested[types.SegmentKey{XWay: int32(x), Segment: int16(s), Direction: d}] = true
			}
		}
	}
	vid := int32(0)
	for i := 0; i < g.Accidents; i++ {
		xway := int32(m.rng.Intn(g.XWays))
		dir := types.Direction(m.rng.Intn(2))
		lane := types.Lane(1 + m.rng.Intn(3))
		position := int32(m.rng.Intn(roadLength))
		latest := m.end - accidentReports*reportInterval
		var at int64
		if latest > 0 {
			at = m.rng.Int63n(latest)
		}
		for j := 0; j < 2; j++ {
			m.add(&vehicle{vid: vid, xway: xway, dir: dir, lane: lane, entry: at, position: position, phase: stopped, remaining: accidentReports})
			vid++
		}
	}
	for ; vid < int32(g.Vehicles); vid++ {
		dir := types.Direction(m.rng.Intn(2))
		m.add(&vehicle{
			vid:       vid,
			xway:      int32(m.rng.Intn(g.XWays)),
			dir:       dir,
			lane:      types.EntryLane,
			entry:     m.rng.Int63n(m.end),
			position:  int32(m.rng.Intn(roadLength)),
			speed:     int32(40 + m.rng.Intn(31)),
			phase:     entering,
			remaining: minTrip + m.rng.Intn(maxTrip-minTrip),
		})
	}
	return m, nil
}

func (m *MemGen) add(v *vehicle) {
	b := v.entry % reportInterval
	m.buckets[b] = append(m.buckets[b], v)
}

func (m *MemGen) GetName() string {
	return name
}

// Read returns the next report in event time order, io.EOF once the simulated time is over.
func (m *MemGen) Read(ctx context.Context) (*types.PositionReport, error) {
	for len(m.pending) == 0 {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if m.now >= m.end {
			return nil, io.EOF
		}
		for _, v := range m.buckets[m.now%reportInterval] {
			if v.entry <= m.now && v.phase != done {
				m.pending = append(m.pending, m.report(v))
			}
		}
		m.now++
	}
	p := m.pending[0]
	m.pending = m.pending[1:]
	metrics.SourceReadCount.WithLabelValues(name).Inc()
	return p, nil
}

// report returns the current report of v and moves it to where it will be 30 seconds later.
func (m *MemGen) report(v *vehicle) *types.PositionReport {
	p := &types.PositionReport{
		Time:      m.now,
		VID:       v.vid,
		XWay:      v.xway,
		Lane:      v.lane,
		Direction: v.dir,
		Segment:   int16(v.position / segmentLength),
		Position:  v.position,
	}
	switch v.phase {
	case stopped:
		v.remaining--
		if v.remaining == 0 {
			v.phase = travelling
			v.speed = int32(40 + m.rng.Intn(31))
			v.remaining = minTrip
		}
		return p
	case exiting:
		p.Speed = v.speed
		v.phase = done
		return p
	case entering:
		v.phase = travelling
		v.lane = types.Lane(1 + m.rng.Intn(3))
	default:
		v.remaining--
	}
	if m.congested[p.SegmentKey()] {
		p.Speed = int32(10 + m.rng.Intn(20))
	} else {
		p.Speed = v.speed + int32(m.rng.Intn(11)) - 5
	}
	next := v.position + p.Speed*segmentLength/120
	if v.dir == types.Westbound {
		next = v.position - p.Speed*segmentLength/120
	}
	if next < 0 || next >= roadLength || v.remaining <= 0 {
		v.phase = exiting
		v.lane = types.ExitLane
		return p
	}
	v.position = next
	return p
}

func (m *MemGen) Close() error {
	return nil
}
