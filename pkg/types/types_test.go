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

package types

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/numaproj/linearroad/pkg/watermark/wmb"
)

func TestSegmentKey_Ahead(t *testing.T) {
	east := SegmentKey{XWay: 1, Segment: 97, Direction: Eastbound}
	k, ok := east.Ahead(2)
	assert.True(t, ok)
	assert.Equal(t, SegmentKey{XWay: 1, Segment: 99, Direction: Eastbound}, k)
	_, ok = east.Ahead(3)
	assert.False(t, ok)

	west := SegmentKey{XWay: 1, Segment: 2, Direction: Westbound}
	k, ok = west.Ahead(0)
	assert.True(t, ok)
	assert.Equal(t, west, k)
	k, ok = west.Ahead(2)
	assert.True(t, ok)
	assert.Equal(t, int16(0), k.Segment)
	_, ok = west.Ahead(3)
	assert.False(t, ok)
}

func TestSegmentKey_Less(t *testing.T) {
	a := SegmentKey{XWay: 0, Segment: 50, Direction: Westbound}
	b := SegmentKey{XWay: 1, Segment: 1, Direction: Eastbound}
	c := SegmentKey{XWay: 0, Segment: 60, Direction: Eastbound}
	assert.True(t, a.Less(b))
	assert.True(t, c.Less(a))
	assert.False(t, a.Less(a))
	assert.Equal(t, "0:50:west", a.String())
}

func TestPositionReport_Validate(t *testing.T) {
	valid := PositionReport{Time: 10, VID: 3, Speed: 55, XWay: 0, Lane: 2, Direction: Westbound, Segment: 40, Position: 211200}
	assert.NoError(t, valid.Validate())
	assert.Equal(t, wmb.Minute(1), valid.Minute())
	assert.False(t, valid.OnExitLane())

	cases := map[string]func(p *PositionReport){
		"negative_time":  func(p *PositionReport) { p.Time = -1 },
		"negative_vid":   func(p *PositionReport) { p.VID = -1 },
		"speed":          func(p *PositionReport) { p.Speed = MaxSpeed + 1 },
		"lane":           func(p *PositionReport) { p.Lane = 5 },
		"direction":      func(p *PositionReport) { p.Direction = 2 },
		"segment":        func(p *PositionReport) { p.Segment = MaxSegment + 1 },
		"negative_pos":   func(p *PositionReport) { p.Position = -1 },
		"negative_speed": func(p *PositionReport) { p.Speed = -1 },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			p := valid
			mutate(&p)
			assert.Error(t, p.Validate())
		})
	}
}

func TestRecord_EventTime(t *testing.T) {
	key := SegmentKey{Segment: 4}
	assert.Equal(t, int64(179), (&VehicleSpeed{Minute: 3, SegmentKey: key}).EventTime())
	assert.Equal(t, int64(179), (&SegmentSpeed{Minute: 3, SegmentKey: key}).EventTime())
	assert.Equal(t, int64(179), (&CarCount{Minute: 3, SegmentKey: key}).EventTime())
	assert.Equal(t, int64(239), (&Lav{Minute: 3, SegmentKey: key}).EventTime())
	assert.Equal(t, int64(179), (&Accident{Minute: 3, SegmentKey: key}).EventTime())
	assert.Equal(t, int64(200), (&TollNotification{Time: 200, EmitTime: 210}).EventTime())
}
