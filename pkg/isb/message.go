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

// Package isb defines the inter stage messages. A message is either a data message carrying one record,
// or a flush message carrying only the watermark barrier of its producer.
package isb

import (
	"fmt"

	"github.com/numaproj/linearroad/pkg/types"
	"github.com/numaproj/linearroad/pkg/watermark/wmb"
)

// MessageType represents the message type of the payload.
type MessageType int16

const (
	Data  MessageType = 1 << iota // Data payload
	Flush                         // Watermark Barrier
)

func (mt MessageType) String() string {
	switch mt {
	case Data:
		return "Data"
	case Flush:
		return "Flush"
	default:
		return "Unknown"
	}
}

// StreamID names a stream between stages. The set is closed.
type StreamID int16

const (
	PositionReports StreamID = iota
	VehicleSpeeds
	SegmentSpeeds
	CarCounts
	Lavs
	Accidents
	TollNotifications
	TollAssessments
)

// Streams lists every stream, in declaration order.
var Streams = []StreamID{
	PositionReports,
	VehicleSpeeds,
	SegmentSpeeds,
	CarCounts,
	Lavs,
	Accidents,
	TollNotifications,
	TollAssessments,
}

func (s StreamID) String() string {
	switch s {
	case PositionReports:
		return "position-reports"
	case VehicleSpeeds:
		return "vehicle-speed"
	case SegmentSpeeds:
		return "segment-speed"
	case CarCounts:
		return "car-count"
	case Lavs:
		return "lav"
	case Accidents:
		return "accident"
	case TollNotifications:
		return "toll-notifications"
	case TollAssessments:
		return "toll-assessments"
	default:
		return fmt.Sprintf("stream(%d)", int16(s))
	}
}

// ParseStreamID returns the stream with the given name.
func ParseStreamID(name string) (StreamID, error) {
	for _, s := range Streams {
		if s.String() == name {
			return s, nil
		}
	}
	return 0, fmt.Errorf("unknown stream %q", name)
}

// Header is the header of the message
type Header struct {
	// Kind indicates the kind of Message
	Kind MessageType
	// Stream is the stream the message travels on.
	Stream StreamID
	// Producer is the partition of the stage instance that wrote the message.
	Producer int32
	// ID is assigned by the runtime, it is empty for messages created inside a stage.
	ID string
	// EventTime when
	// Kind == Data is the event time of the record in seconds
	// Kind == Flush, value is ignored
	EventTime int64
	// Barrier when
	// Kind == Flush is the last minute the producer completed
	// Kind == Data, value is ignored
	Barrier wmb.WMB
}

// Body is the body of the message
type Body struct {
	Record types.Record
}

// Message is inter step message
type Message struct {
	Header
	Body
}

// NewData wraps the record into a data message of the given stream.
func NewData(stream StreamID, rec types.Record) *Message {
	return &Message{
		Header: Header{Kind: Data, Stream: stream, EventTime: rec.EventTime()},
		Body:   Body{Record: rec},
	}
}

// NewFlush returns the flush message for the given minute.
func NewFlush(stream StreamID, m wmb.Minute) *Message {
	return &Message{Header: Header{Kind: Flush, Stream: stream, Barrier: wmb.WMB{Minute: m}}}
}

// NewTerminal returns the flush message that ends the stream.
func NewTerminal(stream StreamID) *Message {
	return &Message{Header: Header{Kind: Flush, Stream: stream, Barrier: wmb.Terminal()}}
}

// IsFlush reports whether the message is a flush marker.
func (m *Message) IsFlush() bool {
	return m.Kind == Flush
}

// IsTerminal reports whether the message ends its stream.
func (m *Message) IsTerminal() bool {
	return m.Kind == Flush && m.Barrier.IsTerminal()
}

// From returns a shallow copy of the message stamped with the producing stream and partition.
func (m *Message) From(stream StreamID, producer int32) *Message {
	c := *m
	c.Stream = stream
	c.Producer = producer
	return &c
}

func (m *Message) String() string {
	if m.IsFlush() {
		return fmt.Sprintf("%s/%d flush(%s)", m.Stream, m.Producer, m.Barrier.Minute)
	}
	return fmt.Sprintf("%s/%d %+v", m.Stream, m.Producer, m.Record)
}
