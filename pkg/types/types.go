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

// Package types defines the records that flow between the Linear Road stages. Record is a closed set:
// only the types in this package implement it, so a type switch over a Record is exhaustive.
package types

import (
	"fmt"

	"github.com/numaproj/linearroad/pkg/watermark/wmb"
)

// Direction of travel on an expressway.
type Direction int8

const (
	Eastbound Direction = 0
	Westbound Direction = 1
)

func (d Direction) String() string {
	switch d {
	case Eastbound:
		return "east"
	case Westbound:
		return "west"
	default:
		return "unknown"
	}
}

// Lane of an expressway. Lane 0 is the entrance ramp and lane 4 the exit ramp.
type Lane int8

const (
	EntryLane Lane = 0
	ExitLane  Lane = 4
)

const (
	// MaxSegment is the highest segment number of an expressway.
	MaxSegment = 99
	// MaxSpeed is the highest speed a vehicle can report.
	MaxSpeed = 100
	// TollNotificationType is the output type of toll notifications and assessments.
	TollNotificationType = 0
)

// Record is implemented by every record a stage consumes or produces.
type Record interface {
	// EventTime returns the event time of the record, in seconds.
	EventTime() int64
	isRecord()
}

// SegmentKey identifies one segment of one direction of one expressway.
type SegmentKey struct {
	XWay      int32     `json:"xway"`
	Segment   int16     `json:"segment"`
	Direction Direction `json:"direction"`
}

func (k SegmentKey) String() string {
	return fmt.Sprintf("%d:%d:%s", k.XWay, k.Segment, k.Direction)
}

// Ahead returns the key of the segment i segments downstream in the direction of travel.
// It returns false if that segment is off the expressway.
func (k SegmentKey) Ahead(i int) (SegmentKey, bool) {
	seg := int(k.Segment)
	if k.Direction == Westbound {
		seg -= i
	} else {
		seg += i
	}
	if seg < 0 || seg > MaxSegment {
		return SegmentKey{}, false
	}
	return SegmentKey{XWay: k.XWay, Segment: int16(seg), Direction: k.Direction}, true
}

// Less orders keys by expressway, direction and segment.
func (k SegmentKey) Less(o SegmentKey) bool {
	if k.XWay != o.XWay {
		return k.XWay < o.XWay
	}
	if k.Direction != o.Direction {
		return k.Direction < o.Direction
	}
	return k.Segment < o.Segment
}

// PositionReport is emitted by every vehicle every 30 seconds.
type PositionReport struct {
	Time      int64     `json:"time"`
	VID       int32     `json:"vid"`
	Speed     int32     `json:"speed"`
	XWay      int32     `json:"xway"`
	Lane      Lane      `json:"lane"`
	Direction Direction `json:"direction"`
	Segment   int16     `json:"segment"`
	Position  int32     `json:"position"`
}

func (p *PositionReport) EventTime() int64 { return p.Time }
func (*PositionReport) isRecord()          {}

// Minute returns the minute the report was taken in.
func (p *PositionReport) Minute() wmb.Minute {
	return wmb.MinuteOf(p.Time)
}

// SegmentKey returns the segment the vehicle is in.
func (p *PositionReport) SegmentKey() SegmentKey {
	return SegmentKey{XWay: p.XWay, Segment: p.Segment, Direction: p.Direction}
}

// OnExitLane reports whether the vehicle is leaving the expressway.
func (p *PositionReport) OnExitLane() bool {
	return p.Lane == ExitLane
}

// Validate rejects reports with values outside the domain of the benchmark.
func (p *PositionReport) Validate() error {
	switch {
	case p.Time < 0:
		return fmt.Errorf("negative time %d", p.Time)
	case p.VID < 0:
		return fmt.Errorf("negative vehicle id %d", p.VID)
	case p.Speed < 0 || p.Speed > MaxSpeed:
		return fmt.Errorf("speed %d out of range", p.Speed)
	case p.Lane < EntryLane || p.Lane > ExitLane:
		return fmt.Errorf("lane %d out of range", p.Lane)
	case p.Direction != Eastbound && p.Direction != Westbound:
		return fmt.Errorf("unknown direction %d", p.Direction)
	case p.Segment < 0 || p.Segment > MaxSegment:
		return fmt.Errorf("segment %d out of range", p.Segment)
	case p.Position < 0:
		return fmt.Errorf("negative position %d", p.Position)
	}
	return nil
}

// VehicleSpeed is the average speed of one vehicle in one segment during one minute.
type VehicleSpeed struct {
	VID    int32      `json:"vid"`
	Minute wmb.Minute `json:"minute"`
	SegmentKey
	AvgSpeed float64 `json:"avgVehicleSpeed"`
}

func (v *VehicleSpeed) EventTime() int64 { return v.Minute.End() }
func (*VehicleSpeed) isRecord()          {}

// SegmentSpeed is the average of the vehicle averages of one segment during one minute.
type SegmentSpeed struct {
	Minute wmb.Minute `json:"minute"`
	SegmentKey
	AvgSpeed float64 `json:"avgSpeed"`
}

func (s *SegmentSpeed) EventTime() int64 { return s.Minute.End() }
func (*SegmentSpeed) isRecord()          {}

// CarCount is the number of distinct vehicles seen in one segment during one minute.
type CarCount struct {
	Minute wmb.Minute `json:"minute"`
	SegmentKey
	Count int `json:"count"`
}

func (c *CarCount) EventTime() int64 { return c.Minute.End() }
func (*CarCount) isRecord()          {}

// Lav is the latest average velocity of a segment: the mean segment speed over the window that
// ends with Minute. It is stamped one minute after the window closes.
type Lav struct {
	Minute wmb.Minute `json:"minute"`
	SegmentKey
	Speed int `json:"lav"`
}

func (l *Lav) EventTime() int64 { return (l.Minute + 1).End() }
func (*Lav) isRecord()          {}

// Accident marks a segment lane blocked by stopped vehicles. A record with Cleared set retracts
// an earlier accident of the same segment lane.
type Accident struct {
	Minute wmb.Minute `json:"minute"`
	SegmentKey
	Lane    Lane `json:"lane"`
	Cleared bool `json:"cleared"`
}

func (a *Accident) EventTime() int64 { return a.Minute.End() }
func (*Accident) isRecord()          {}

// TollNotification is both the toll notified to a vehicle entering a segment and, replayed once the
// vehicle left that segment, the assessed toll.
type TollNotification struct {
	Type     int   `json:"type"`
	Time     int64 `json:"time"`
	EmitTime int64 `json:"emitTime"`
	VID      int32 `json:"vid"`
	Speed    int   `json:"speed"`
	Toll     int   `json:"toll"`
}

func (t *TollNotification) EventTime() int64 { return t.Time }
func (*TollNotification) isRecord()          {}
