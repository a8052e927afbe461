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

// Package wmb represents the watermark barrier (the flush marker) and the minute arithmetic it is built on.
// A barrier for minute T asserts that the producer has delivered everything it will ever deliver for the
// minutes up to and including T. The terminal barrier carries EndOfStream.
package wmb

import (
	"math"
	"strconv"
)

// SecondsPerMinute is the length of one window unit in event-time seconds.
const SecondsPerMinute = 60

// Minute is a benchmark minute number. Minute 1 covers the seconds [0, 59].
type Minute int64

// EndOfStream is the sentinel minute carried by the terminal barrier.
const EndOfStream = Minute(math.MaxInt64)

// MinuteOf returns the minute the given event time (in seconds) falls into.
func MinuteOf(t int64) Minute {
	return Minute(t/SecondsPerMinute + 1)
}

// Start returns the first second of the minute.
func (m Minute) Start() int64 {
	return (int64(m) - 1) * SecondsPerMinute
}

// End returns the last second of the minute.
func (m Minute) End() int64 {
	return int64(m)*SecondsPerMinute - 1
}

// IsTerminal reports whether m is the end of stream sentinel.
func (m Minute) IsTerminal() bool {
	return m == EndOfStream
}

func (m Minute) String() string {
	if m.IsTerminal() {
		return "eos"
	}
	return strconv.FormatInt(int64(m), 10)
}

// WMB is the watermark barrier carried by a flush message.
type WMB struct {
	// Minute is the last minute the producer has completed.
	Minute Minute
}

// Terminal returns the barrier that ends a stream.
func Terminal() WMB {
	return WMB{Minute: EndOfStream}
}

// IsTerminal reports whether the barrier ends the stream.
func (w WMB) IsTerminal() bool {
	return w.Minute.IsTerminal()
}

// Watermark converts the barrier into the watermark of the producing input.
// Records of a minute aligned producer are stamped with the last second of their minute, so after
// completing minute T the earliest stamp it can still produce is the end of minute T+1.
func (w WMB) Watermark(minuteAligned bool) Watermark {
	if w.IsTerminal() {
		return MaxWatermark
	}
	if minuteAligned {
		return Watermark((w.Minute + 1).End())
	}
	return Watermark(int64(w.Minute) * SecondsPerMinute)
}
