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

// Package lav computes the latest average velocity of every segment: the mean segment speed over the
// trailing window of minutes, emitted once the last minute of the window is closed.
package lav

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
)

type slot struct {
	minute wmb.Minute
	speed  float64
	set    bool
}

// history is the ring of the last segment speeds of one segment, indexed by minute modulo the window size.
type history struct {
	slots  []slot
	oldest wmb.Minute
	newest wmb.Minute
}

func (h *history) put(m wmb.Minute, speed float64) {
	h.slots[int64(m)%int64(len(h.slots))] = slot{minute: m, speed: speed, set: true}
	if m > h.newest {
		h.newest = m
	}
	if h.oldest == 0 || m < h.oldest {
		h.oldest = m
	}
}

// window returns the speeds of the minutes (k-size, k], oldest first. Each speed is truncated to whole mph
// before it enters the mean.
func (h *history) window(k wmb.Minute) stats.Float64Data {
	size := wmb.Minute(len(h.slots))
	var data stats.Float64Data
	for m := max(k-size+1, 1); m <= k; m++ {
		s := h.slots[int64(m)%int64(size)]
		if s.set && s.minute == m {
			data = append(data, float64(int64(s.speed)))
		}
	}
	return data
}

// Window is the LAV window. Partitioned by segment.
type Window struct {
	size    int
	keys    map[types.SegmentKey]*history
	emitted wmb.Minute
	newest  wmb.Minute
	log     *zap.SugaredLogger
}

// New returns a LAV window over the given number of minutes.
func New(ctx context.Context, minutes int) (*Window, error) {
	if minutes <= 0 {
		return nil, fmt.Errorf("lav window needs a positive number of minutes, got %d", minutes)
	}
	return &Window{
		size: minutes,
		keys: make(map[types.SegmentKey]*history),
		log:  logging.FromContext(ctx).Named("lav"),
	}, nil
}

// Apply records the speed of a segment in its slot.
func (w *Window) Apply(_ context.Context, msg *isb.Message) ([]*isb.Message, error) {
	s, ok := msg.Record.(*types.SegmentSpeed)
	if !ok || msg.Stream != isb.SegmentSpeeds {
		return nil, udferr.Newf(udferr.NonRetryable, "lav window cannot consume %T from %s", msg.Record, msg.Stream)
	}
	if s.Minute <= w.emitted {
		return nil, udferr.Newf(udferr.Late, "speed of segment %s for minute %s, lav already emitted for %s", s.SegmentKey, s.Minute, w.emitted)
	}
	h, ok := w.keys[s.SegmentKey]
	if !ok {
		h = &history{slots: make([]slot, w.size)}
		w.keys[s.SegmentKey] = h
	}
	h.put(s.Minute, s.AvgSpeed)
	if s.Minute > w.newest {
		w.newest = s.Minute
	}
	return nil, nil
}

// Flush emits the LAV of every segment for every minute up to m that has at least one speed in its window.
// Minutes without a speed are left out of the mean. The terminal flush emits up to the newest minute seen.
func (w *Window) Flush(_ context.Context, m wmb.Minute) ([]*isb.Message, error) {
	if m <= w.emitted {
		return nil, nil
	}
	to := m
	if m.IsTerminal() {
		to = w.newest
	}
	// no window ends after the newest speed plus the window size
	if last := w.newest + wmb.Minute(w.size) - 1; to > last {
		to = last
	}
	from := w.emitted + 1
	keys := make([]types.SegmentKey, 0, len(w.keys))
	for k := range w.keys {
		keys = append(keys, k)
	}
	if oldest := w.oldest(); oldest > from {
		from = oldest
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i].Less(keys[j]) })

	var out []*isb.Message
	for k := from; k <= to; k++ {
		for _, key := range keys {
			data := w.keys[key].window(k)
			if len(data) == 0 {
				continue
			}
			avg, err := data.Mean()
			if err != nil {
				return nil, fmt.Errorf("lav of segment %s minute %s: %w", key, k, err)
			}
			out = append(out, isb.NewData(isb.Lavs, &types.Lav{Minute: k, SegmentKey: key, Speed: int(avg)}))
		}
	}
	w.emitted = m
	w.evict(m)
	reduce.FlushedKeys.WithLabelValues("lav").Observe(float64(len(keys)))
	w.log.Debugw("Emitted lavs", "minute", m, "records", len(out), "segments", len(w.keys))
	return out, nil
}

func (w *Window) oldest() wmb.Minute {
	var oldest wmb.Minute
	for _, h := range w.keys {
		if oldest == 0 || h.oldest < oldest {
			oldest = h.oldest
		}
	}
	return oldest
}

// evict drops the segments whose speeds can no longer be part of a window after minute m.
func (w *Window) evict(m wmb.Minute) {
	for k, h := range w.keys {
		if m.IsTerminal() || h.newest+wmb.Minute(w.size)-1 <= m {
			delete(w.keys, k)
		}
	}
}

// Segments returns the number of segments with a speed in the window.
func (w *Window) Segments() int {
	return len(w.keys)
}
