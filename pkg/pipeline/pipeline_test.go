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

package pipeline

import (
	"context"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/numaproj/linearroad/pkg/isb"
	"github.com/numaproj/linearroad/pkg/shared/config"
	"github.com/numaproj/linearroad/pkg/sinks"
	"github.com/numaproj/linearroad/pkg/sinks/blackhole"
	"github.com/numaproj/linearroad/pkg/sources/generator"
	"github.com/numaproj/linearroad/pkg/types"
	"github.com/numaproj/linearroad/pkg/watermark/wmb"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type sliceSource struct {
	reports []*types.PositionReport
}

func (s *sliceSource) GetName() string { return "slice" }

func (s *sliceSource) Read(ctx context.Context) (*types.PositionReport, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if len(s.reports) == 0 {
		return nil, io.EOF
	}
	p := s.reports[0]
	s.reports = s.reports[1:]
	return p, nil
}

func (s *sliceSource) Close() error { return nil }

type recorder struct {
	sync.Mutex
	err error
	// failures is the number of writes that fail before the recorder recovers.
	failures int
	attempts int
	records  map[isb.StreamID][]types.Record
}

func newRecorder() *recorder {
	return &recorder{records: make(map[isb.StreamID][]types.Record)}
}

func (r *recorder) GetName() string { return "recorder" }

func (r *recorder) Write(_ context.Context, messages []*isb.Message) error {
	r.Lock()
	defer r.Unlock()
	r.attempts++
	if r.err != nil {
		return r.err
	}
	if r.failures > 0 {
		r.failures--
		return errors.New("broker unavailable")
	}
	for _, m := range messages {
		r.records[m.Stream] = append(r.records[m.Stream], m.Record)
	}
	return nil
}

func (r *recorder) Close() error { return nil }

func report(t int64, vid int32, speed int32, seg int16, lane types.Lane, pos int32) *types.PositionReport {
	return &types.PositionReport{Time: t, VID: vid, Speed: speed, XWay: 0, Lane: lane, Direction: types.Eastbound, Segment: seg, Position: pos}
}

// trafficReports stages a congested segment 10 and two vehicles stopped in segment 30.
func trafficReports() []*types.PositionReport {
	var r []*types.PositionReport
	for _, t := range []int64{0, 30, 60} {
		for vid := int32(1); vid <= 3; vid++ {
			r = append(r, report(t, vid, 20, 10, 1, 52900+vid*100+int32(t)))
		}
		if t == 30 {
			r = append(r, report(t, 7, 150, 12, 1, 63500))
		}
		if t == 60 {
			r = append(r, report(t, 4, 20, 10, 1, 52810))
		}
		r = append(r, report(t, 5, 0, 30, 2, 158500), report(t, 6, 0, 30, 2, 158500))
	}
	r = append(r, report(90, 5, 0, 30, 2, 158500), report(90, 6, 0, 30, 2, 158500))
	return append(r, report(120, 4, 20, 11, 1, 58100))
}

func testConfig() *config.Config {
	conf := config.Default()
	conf.Thresholds.Occupancy = 1
	conf.Pipeline.Partitions = 2
	conf.Pipeline.BufferSize = 4
	conf.Pipeline.SinkRetryInterval = time.Millisecond
	return &conf
}

func TestPipeline_Run(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	rec := newRecorder()
	p, err := New(ctx, testConfig(), &sliceSource{reports: trafficReports()}, []*sinks.Sink{sinks.NewSink(rec, sinks.OutputStreams...)})
	require.NoError(t, err)
	require.NoError(t, p.Run(ctx))
	assert.NoError(t, p.Healthy())

	seg10 := types.SegmentKey{XWay: 0, Segment: 10, Direction: types.Eastbound}
	seg30 := types.SegmentKey{XWay: 0, Segment: 30, Direction: types.Eastbound}

	assert.Equal(t, []types.Record{&types.Accident{Minute: 2, SegmentKey: seg30, Lane: 2}}, rec.records[isb.Accidents])
	assert.Contains(t, rec.records[isb.SegmentSpeeds], &types.SegmentSpeed{Minute: 1, SegmentKey: seg10, AvgSpeed: 20})
	assert.Contains(t, rec.records[isb.Lavs], &types.Lav{Minute: 1, SegmentKey: seg10, Speed: 20})
	assert.Contains(t, rec.records[isb.VehicleSpeeds], &types.VehicleSpeed{VID: 4, Minute: 2, SegmentKey: seg10, AvgSpeed: 20})
	assert.Empty(t, rec.records[isb.CarCounts])

	require.Len(t, rec.records[isb.TollAssessments], 1)
	a := rec.records[isb.TollAssessments][0].(*types.TollNotification)
	assert.Equal(t, int32(4), a.VID)
	assert.Equal(t, int64(60), a.Time)
	assert.Equal(t, 8, a.Toll)

	notified := map[int32][]int{}
	for _, r := range rec.records[isb.TollNotifications] {
		n := r.(*types.TollNotification)
		notified[n.VID] = append(notified[n.VID], n.Toll)
	}
	assert.Equal(t, map[int32][]int{1: {0}, 2: {0}, 3: {0}, 4: {8, 0}, 5: {0}, 6: {0}}, notified)

	stats := p.Stats()
	assert.Equal(t, int64(len(trafficReports())), stats.Reports)
	// the invalid report is rejected by the three stages reading position reports
	assert.Equal(t, int64(3), stats.Dropped)
	assert.Equal(t, int64(1), stats.Written[isb.Accidents.String()])
	assert.Equal(t, int64(7), stats.Written[isb.TollNotifications.String()])
	assert.Positive(t, stats.Routed)
}

func TestPipeline_Run_SinkFailure(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	rec := newRecorder()
	rec.err = errors.New("disk full")
	p, err := New(ctx, testConfig(), &sliceSource{reports: trafficReports()}, []*sinks.Sink{sinks.NewSink(rec, isb.TollNotifications)})
	require.NoError(t, err)
	err = p.Run(ctx)
	require.Error(t, err)
	var writeErr isb.MessageWriteErr
	require.ErrorAs(t, err, &writeErr)
	assert.Equal(t, "recorder", writeErr.Name)
	assert.Contains(t, err.Error(), "disk full")
	assert.Equal(t, err, p.Healthy())
	// the first attempt and every retry
	assert.Equal(t, testConfig().Pipeline.SinkRetries+1, rec.attempts)
}

func TestPipeline_Run_SinkRecovers(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	rec := newRecorder()
	rec.failures = 2
	p, err := New(ctx, testConfig(), &sliceSource{reports: trafficReports()}, []*sinks.Sink{sinks.NewSink(rec, isb.TollNotifications)})
	require.NoError(t, err)
	require.NoError(t, p.Run(ctx))
	assert.NoError(t, p.Healthy())
	assert.Len(t, rec.records[isb.TollNotifications], 7)
	assert.Equal(t, int64(7), p.Stats().Written[isb.TollNotifications.String()])
}

func TestPipeline_Run_SinkNoRetries(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	rec := newRecorder()
	rec.failures = 1
	conf := testConfig()
	conf.Pipeline.SinkRetries = 0
	p, err := New(ctx, conf, &sliceSource{reports: trafficReports()}, []*sinks.Sink{sinks.NewSink(rec, isb.TollNotifications)})
	require.NoError(t, err)
	var writeErr isb.MessageWriteErr
	require.ErrorAs(t, p.Run(ctx), &writeErr)
	assert.Contains(t, writeErr.Message, "broker unavailable")
	assert.Equal(t, 1, rec.attempts)
}

func TestPipeline_Run_Canceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	src, err := generator.NewMemGen(config.Generator{Seed: 1, XWays: 1, Vehicles: 10, Minutes: 60})
	require.NoError(t, err)
	p, err := New(ctx, testConfig(), src, nil)
	require.NoError(t, err)
	cancel()
	assert.ErrorIs(t, p.Run(ctx), context.Canceled)
}

func TestPipeline_Run_Generator(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	src, err := generator.NewMemGen(config.Generator{Seed: 42, XWays: 2, Vehicles: 300, Minutes: 5, Accidents: 1})
	require.NoError(t, err)
	bh := blackhole.NewBlackhole("blackhole")
	conf := config.Default()
	conf.Pipeline.Partitions = 3
	p, err := New(ctx, &conf, src, []*sinks.Sink{sinks.NewSink(bh, sinks.OutputStreams...)})
	require.NoError(t, err)
	require.NoError(t, p.Run(ctx))

	stats := p.Stats()
	assert.Positive(t, stats.Reports)
	assert.Zero(t, stats.Dropped)
	assert.Equal(t, int64(1), stats.Written[isb.Accidents.String()])
	assert.Positive(t, stats.Written[isb.TollNotifications.String()])
	var total int64
	for _, n := range stats.Written {
		total += n
	}
	assert.Equal(t, total, int64(bh.Written()))
}

func TestNew_Invalid(t *testing.T) {
	conf := testConfig()
	conf.Pipeline.Partitions = 0
	_, err := New(context.Background(), conf, &sliceSource{}, nil)
	assert.Error(t, err)

	conf = testConfig()
	conf.Thresholds.WindowMinutes = 0
	_, err = New(context.Background(), conf, &sliceSource{}, nil)
	assert.Error(t, err)
}

func TestTopology(t *testing.T) {
	built := map[string]bool{source: true}
	for _, s := range topology(config.Default().Thresholds) {
		for _, in := range s.inputs {
			assert.True(t, built[in.from], "%s consumes %s before it is built", s.name, in.stream)
			if in.stream == isb.Lavs {
				assert.Equal(t, -int64(wmb.SecondsPerMinute), in.offset)
			}
		}
		assert.NotEmpty(t, s.outputs)
		built[s.name] = true
	}
}
