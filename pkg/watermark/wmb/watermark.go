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

package wmb

import (
	"math"
	"strconv"
)

// Watermark is the monotonically increasing watermark of an input, in event-time seconds.
// It is a lower bound: the input will not deliver anything stamped before the watermark.
type Watermark int64

// InitialWatermark is the watermark of an input that has not delivered anything yet.
var InitialWatermark = Watermark(-1)

// MaxWatermark is the watermark of an input that has reached the end of its stream.
var MaxWatermark = Watermark(math.MaxInt64)

func (w Watermark) String() string {
	switch w {
	case InitialWatermark:
		return "initial"
	case MaxWatermark:
		return "max"
	default:
		return strconv.FormatInt(int64(w), 10)
	}
}

// ClosedMinute returns the latest minute whose every second lies before the watermark.
func (w Watermark) ClosedMinute() Minute {
	if w == MaxWatermark {
		return EndOfStream
	}
	if w < 0 {
		return 0
	}
	return Minute(int64(w) / SecondsPerMinute)
}

func (w Watermark) After(t int64) bool {
	return int64(w) > t
}

func (w Watermark) AfterWatermark(compare Watermark) bool {
	return w > compare
}

func (w Watermark) Before(t int64) bool {
	return int64(w) < t
}

func (w Watermark) BeforeWatermark(compare Watermark) bool {
	return w < compare
}
