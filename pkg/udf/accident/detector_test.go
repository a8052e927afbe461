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

package accident

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/numaproj/linearroad/pkg/isb"
	"github.com/numaproj/linearroad/pkg/shared/config"
	"github.com/numaproj/linearroad/pkg/types"
	"github.com/numaproj/linearroad/pkg/udferr"
	"github.com/numaproj/linearroad/pkg/watermark/wmb"
)

var seg31 = types.SegmentKey{XWay: 0, Segment: 31, Direction: types.Westbound}

func report(t int64, vid, speed int32, lane types.Lane, pos int32) *isb.Message {
	return isb.NewData(isb.PositionReports, &types.PositionReport{
		Time: t, VID: vid, Speed: speed, XWay: 0, Lane: lane, Direction: types.Westbound, Segment: 31, Position: pos,
	})
}

func accidents(t *testing.T, msgs []*isb.Message) []types.Accident {
	t.Helper()
	var r []types.Accident
	for _, m := range msgs {
		assert.Equal(t, isb.Accidents, m.Stream)
		r = append(r, *m.Record.(*types.Accident))
	}
	return r
}

// stop feeds four zero speed reports of every vehicle, 30 seconds apart from start.
func stop(t *testing.T, d *Detector, start int64, lane types.Lane, pos int32, vids ...int32) []*isb.Message {
	t.Helper()
	var out []*isb.Message
	for i := int64(0); i < 4; i++ {
		for _, vid := range vids {
			res, err := d.Apply(context.Background(), report(start+i*30, vid, 0, lane, pos))
			require.NoError(t, err)
			out = append(out, res...)
		}
	}
	return out
}

func newDetector() *Detector {
	return New(context.Background(), 0, config.Default().Thresholds)
}

func TestDetector_TwoStoppedVehicles(t *testing.T) {
	d := newDetector()
	got := accidents(t, stop(t, d, 0, 1, 165000, 1, 2))
	require.Len(t, got, 1)
	assert.Equal(t, types.Accident{Minute: 2, SegmentKey: seg31, Lane: 1}, got[0])
	assert.Equal(t, 1, d.Active())

	// a third vehicle joining the same lane does not declare it again
	assert.Empty(t, stop(t, d, 120, 1, 165100, 3))
	assert.Equal(t, 1, d.Active())
}

func TestDetector_SingleStoppedVehicle(t *testing.T) {
	d := newDetector()
	assert.Empty(t, stop(t, d, 0, 1, 165000, 1))
	// three reports are not enough
	for i := int64(0); i < 3; i++ {
		_, err := d.Apply(context.Background(), report(i*30, 2, 0, 1, 165000))
		require.NoError(t, err)
	}
	assert.Equal(t, 0, d.Active())
}

func TestDetector_DifferentLanes(t *testing.T) {
	d := newDetector()
	assert.Empty(t, stop(t, d, 0, 1, 165000, 1))
	assert.Empty(t, stop(t, d, 0, 2, 165000, 2))
	assert.Equal(t, 0, d.Active())
}

func TestDetector_ExitLane(t *testing.T) {
	d := newDetector()
	assert.Empty(t, stop(t, d, 0, types.ExitLane, 165000, 1, 2))
	assert.Equal(t, 0, d.Active())
	assert.Equal(t, 0, d.Vehicles())
}

func TestDetector_ClearedWhenVehicleMoves(t *testing.T) {
	ctx := context.Background()
	d := newDetector()
	require.Len(t, stop(t, d, 0, 1, 165000, 1, 2), 1)

	out, err := d.Apply(ctx, report(150, 1, 30, 1, 165400))
	require.NoError(t, err)
	got := accidents(t, out)
	require.Len(t, got, 1)
	assert.Equal(t, types.Accident{Minute: 3, SegmentKey: seg31, Lane: 1, Cleared: true}, got[0])
	assert.Equal(t, int64(179), out[0].EventTime)
	assert.Equal(t, 0, d.Active())

	// the other vehicle alone is still stopped, but is no accident
	out, err = d.Apply(ctx, report(150, 2, 0, 1, 165000))
	require.NoError(t, err)
	assert.Empty(t, out)
}

func TestDetector_ClearedWhenVehiclesDisappear(t *testing.T) {
	ctx := context.Background()
	d := newDetector()
	require.Len(t, stop(t, d, 0, 1, 165000, 1, 2), 1)

	out, err := d.Flush(ctx, 2)
	require.NoError(t, err)
	assert.Empty(t, out)
	assert.Equal(t, 2, d.Vehicles())

	out, err = d.Flush(ctx, 3)
	require.NoError(t, err)
	got := accidents(t, out)
	require.Len(t, got, 1)
	assert.Equal(t, types.Accident{Minute: 3, SegmentKey: seg31, Lane: 1, Cleared: true}, got[0])
	assert.Equal(t, 0, d.Vehicles())
	assert.Equal(t, 0, d.Active())
}

func TestDetector_TerminalFlush(t *testing.T) {
	ctx := context.Background()
	d := newDetector()
	require.Len(t, stop(t, d, 0, 1, 165000, 1, 2), 1)
	out, err := d.Flush(ctx, wmb.EndOfStream)
	require.NoError(t, err)
	assert.Empty(t, out)
	assert.Equal(t, 0, d.Active())
	assert.Equal(t, 0, d.Vehicles())
}

func TestDetector_Rejects(t *testing.T) {
	ctx := context.Background()
	d := newDetector()
	_, err := d.Flush(ctx, 2)
	require.NoError(t, err)

	_, err = d.Apply(ctx, report(90, 1, 0, 1, 165000))
	assert.Equal(t, udferr.Late, udferr.KindOf(err))

	_, err = d.Apply(ctx, report(130, 1, 120, 1, 165000))
	assert.Equal(t, udferr.Retryable, udferr.KindOf(err))

	_, err = d.Apply(ctx, isb.NewData(isb.Lavs, &types.Lav{}))
	assert.Equal(t, udferr.NonRetryable, udferr.KindOf(err))
	assert.Equal(t, 0, d.Vehicles())
}
