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

package lav

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/numaproj/linearroad/pkg/isb"
	"github.com/numaproj/linearroad/pkg/types"
	"github.com/numaproj/linearroad/pkg/udferr"
	"github.com/numaproj/linearroad/pkg/watermark/wmb"
)

var (
	seg10 = types.SegmentKey{XWay: 1, Segment: 10}
	seg11 = types.SegmentKey{XWay: 1, Segment: 11}
)

func speed(m wmb.Minute, key types.SegmentKey, avg float64) *isb.Message {
	return isb.NewData(isb.SegmentSpeeds, &types.SegmentSpeed{Minute: m, SegmentKey: key, AvgSpeed: avg})
}

func newWindow(t *testing.T) *Window {
	t.Helper()
	w, err := New(context.Background(), 5)
	require.NoError(t, err)
	return w
}

func apply(t *testing.T, w *Window, msgs ...*isb.Message) {
	t.Helper()
	for _, msg := range msgs {
		out, err := w.Apply(context.Background(), msg)
		require.NoError(t, err)
		assert.Empty(t, out)
	}
}

func flush(t *testing.T, w *Window, m wmb.Minute) []*types.Lav {
	t.Helper()
	out, err := w.Flush(context.Background(), m)
	require.NoError(t, err)
	r := make([]*types.Lav, len(out))
	for i, msg := range out {
		assert.Equal(t, isb.Lavs, msg.Stream)
		r[i] = msg.Record.(*types.Lav)
		assert.Equal(t, (r[i].Minute+1).End(), msg.EventTime)
	}
	return r
}

func TestNew(t *testing.T) {
	_, err := New(context.Background(), 0)
	assert.Error(t, err)
}

func TestWindow_GapFilling(t *testing.T) {
	w := newWindow(t)
	expected := map[wmb.Minute]int{1: 10, 2: 10, 3: 20, 4: 20, 5: 30, 6: 40, 7: 40, 8: 50, 9: 50}
	for m := wmb.Minute(1); m <= 10; m++ {
		switch m {
		case 1:
			apply(t, w, speed(1, seg10, 10))
		case 3:
			apply(t, w, speed(3, seg10, 30))
		case 5:
			apply(t, w, speed(5, seg10, 50))
		}
		got := flush(t, w, m)
		want, ok := expected[m]
		if !ok {
			assert.Empty(t, got, "minute %d", m)
			continue
		}
		require.Len(t, got, 1, "minute %d", m)
		assert.Equal(t, &types.Lav{Minute: m, SegmentKey: seg10, Speed: want}, got[0])
	}
	assert.Equal(t, 0, w.Segments())
}

func TestWindow_TruncatesMean(t *testing.T) {
	w := newWindow(t)
	apply(t, w, speed(1, seg10, 10))
	flush(t, w, 1)
	apply(t, w, speed(2, seg10, 15))
	got := flush(t, w, 2)
	require.Len(t, got, 1)
	assert.Equal(t, 12, got[0].Speed)
}

func TestWindow_TruncatesEachMinute(t *testing.T) {
	w := newWindow(t)
	apply(t, w, speed(1, seg10, 39.6), speed(2, seg10, 40.6))
	got := flush(t, w, 2)
	require.Len(t, got, 2)
	assert.Equal(t, &types.Lav{Minute: 1, SegmentKey: seg10, Speed: 39}, got[0])
	assert.Equal(t, &types.Lav{Minute: 2, SegmentKey: seg10, Speed: 39}, got[1])
}

func TestWindow_FlushJump(t *testing.T) {
	w := newWindow(t)
	apply(t, w, speed(1, seg11, 20), speed(1, seg10, 40))
	got := flush(t, w, 3)
	require.Len(t, got, 6)
	for i, l := range got {
		assert.Equal(t, wmb.Minute(i/2+1), l.Minute)
	}
	assert.Equal(t, seg10, got[0].SegmentKey)
	assert.Equal(t, seg11, got[1].SegmentKey)
	assert.Equal(t, 40, got[0].Speed)
	assert.Equal(t, 20, got[1].Speed)
}

func TestWindow_Terminal(t *testing.T) {
	w := newWindow(t)
	apply(t, w, speed(1, seg10, 30))
	flush(t, w, 1)
	apply(t, w, speed(2, seg10, 50))
	got := flush(t, w, wmb.EndOfStream)
	require.Len(t, got, 1)
	assert.Equal(t, &types.Lav{Minute: 2, SegmentKey: seg10, Speed: 40}, got[0])
	assert.Equal(t, 0, w.Segments())
	assert.Empty(t, flush(t, w, wmb.EndOfStream))
}

func TestWindow_Late(t *testing.T) {
	w := newWindow(t)
	apply(t, w, speed(1, seg10, 30))
	first := flush(t, w, 2)
	require.Len(t, first, 2)

	_, err := w.Apply(context.Background(), speed(2, seg10, 90))
	assert.Equal(t, udferr.Late, udferr.KindOf(err))
	assert.Empty(t, flush(t, w, 2))

	_, err = w.Apply(context.Background(), isb.NewData(isb.VehicleSpeeds, &types.VehicleSpeed{}))
	assert.Equal(t, udferr.NonRetryable, udferr.KindOf(err))
}
