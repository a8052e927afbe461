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

// Package merge aligns several independently arriving input streams on event time. It releases their
// messages in event time order and inserts a flush message once every input has moved past a minute.
package merge

import (
	"container/list"
	"fmt"

	"github.com/numaproj/linearroad/pkg/isb"
	"github.com/numaproj/linearroad/pkg/udferr"
	"github.com/numaproj/linearroad/pkg/watermark/wmb"
)

// Input is one physical producer of one named stream.
type Input struct {
	Stream   isb.StreamID
	Producer int32
	// Offset is added to the event time of every data message before it is compared with other inputs.
	Offset int64
	// MinuteAligned is set when the producer stamps every record with the last second of its minute.
	MinuteAligned bool
}

func (in Input) String() string {
	return fmt.Sprintf("%s/%d", in.Stream, in.Producer)
}

type inputKey struct {
	stream   isb.StreamID
	producer int32
}

type entry struct {
	time int64
	msg  *isb.Message
}

type inputState struct {
	Input
	queue *list.List
	// wm is a lower bound on the merged time of every message the input will still deliver.
	wm   wmb.Watermark
	done bool
}

func (s *inputState) head() (*entry, bool) {
	e := s.queue.Front()
	if e == nil {
		return nil, false
	}
	return e.Value.(*entry), true
}

// Merger merges the inputs of one stage partition. It is not safe for concurrent use.
type Merger struct {
	inputs   []*inputState
	index    map[inputKey]*inputState
	out      isb.StreamID
	flushed  wmb.Minute
	buffered int
	finished bool
}

// NewMerger returns a merger over the given inputs. The flush messages it emits are tagged with stream.
func NewMerger(stream isb.StreamID, inputs ...Input) (*Merger, error) {
	if len(inputs) == 0 {
		return nil, fmt.Errorf("merger needs at least one input")
	}
	m := &Merger{
		index: make(map[inputKey]*inputState, len(inputs)),
		out:   stream,
	}
	for _, in := range inputs {
		k := inputKey{stream: in.Stream, producer: in.Producer}
		if _, ok := m.index[k]; ok {
			return nil, fmt.Errorf("duplicate input %s", in)
		}
		s := &inputState{Input: in, queue: list.New(), wm: wmb.InitialWatermark}
		m.inputs = append(m.inputs, s)
		m.index[k] = s
	}
	return m, nil
}

// Push accepts one message and returns the messages that became releasable, in event time order and
// interleaved with flush messages. A flush for minute T is returned after every released data message of
// minute T or earlier and before any data message of a later minute.
//
// A message from an unknown input is a NonRetryable error. A data message at or behind a closed minute, or
// behind the watermark of its input, is dropped with a Late error.
func (m *Merger) Push(msg *isb.Message) ([]*isb.Message, error) {
	in, ok := m.index[inputKey{stream: msg.Stream, producer: msg.Producer}]
	if !ok {
		return nil, udferr.Newf(udferr.NonRetryable, "message from unknown input %s/%d", msg.Stream, msg.Producer)
	}
	if msg.IsFlush() {
		if in.done {
			return nil, nil
		}
		if msg.IsTerminal() {
			in.done = true
			in.wm = wmb.MaxWatermark
		} else if w := msg.Barrier.Watermark(in.MinuteAligned); w.AfterWatermark(in.wm) {
			in.wm = w
		}
		return m.release(), nil
	}
	if in.done {
		return nil, udferr.Newf(udferr.Late, "input %s already ended, dropping event at %d", in, msg.EventTime)
	}
	t := msg.EventTime + in.Offset
	if in.wm.After(t) {
		return nil, udferr.Newf(udferr.Late, "input %s at watermark %s, dropping event at %d", in, in.wm, t)
	}
	if wmb.MinuteOf(t) <= m.flushed {
		return nil, udferr.Newf(udferr.Late, "minute %s already flushed, dropping event at %d", m.flushed, t)
	}
	in.queue.PushBack(&entry{time: t, msg: msg})
	in.wm = wmb.Watermark(t)
	m.buffered++
	return m.release(), nil
}

func (m *Merger) release() []*isb.Message {
	var out []*isb.Message
	minW := m.Watermark()
	closed := minW.ClosedMinute()
	for {
		var next *inputState
		var head *entry
		for _, in := range m.inputs {
			if e, ok := in.head(); ok && (head == nil || e.time < head.time) {
				next, head = in, e
			}
		}
		if head == nil || minW.Before(head.time) {
			break
		}
		if f := min(closed, wmb.MinuteOf(head.time)-1); f > m.flushed {
			out = append(out, isb.NewFlush(m.out, f))
			m.flushed = f
		}
		next.queue.Remove(next.queue.Front())
		m.buffered--
		out = append(out, head.msg)
	}
	if closed > m.flushed {
		if closed.IsTerminal() {
			out = append(out, isb.NewTerminal(m.out))
			m.finished = true
		} else {
			out = append(out, isb.NewFlush(m.out, closed))
		}
		m.flushed = closed
	}
	return out
}

// Watermark returns the smallest watermark of the inputs that have not ended.
func (m *Merger) Watermark() wmb.Watermark {
	w := wmb.MaxWatermark
	for _, in := range m.inputs {
		if !in.done && in.wm.BeforeWatermark(w) {
			w = in.wm
		}
	}
	return w
}

// Flushed returns the last minute a flush was emitted for.
func (m *Merger) Flushed() wmb.Minute {
	return m.flushed
}

// Buffered returns the number of data messages held back.
func (m *Merger) Buffered() int {
	return m.buffered
}

// Done reports whether every input ended and the terminal flush was emitted.
func (m *Merger) Done() bool {
	return m.finished
}

// Inputs returns the configured inputs.
func (m *Merger) Inputs() []Input {
	r := make([]Input, len(m.inputs))
	for i, in := range m.inputs {
		r[i] = in.Input
	}
	return r
}
