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

	"github.com/numaproj/linearroad/pkg/forward/applier"
	"github.com/numaproj/linearroad/pkg/isb"
	"github.com/numaproj/linearroad/pkg/reduce/lav"
	"github.com/numaproj/linearroad/pkg/reduce/segmentspeed"
	"github.com/numaproj/linearroad/pkg/reduce/vehiclespeed"
	"github.com/numaproj/linearroad/pkg/shared/config"
	"github.com/numaproj/linearroad/pkg/shuffle"
	"github.com/numaproj/linearroad/pkg/udf/accident"
	"github.com/numaproj/linearroad/pkg/udf/toll"
	"github.com/numaproj/linearroad/pkg/watermark/wmb"
)

// Stage names.
const (
	VehicleSpeedStage = "vehicle-speed"
	SegmentSpeedStage = "segment-speed"
	LavStage          = "lav"
	AccidentStage     = "accident"
	TollStage         = "toll"
)

// source is the producer name of the position reports.
const source = ""

type inputSpec struct {
	stream isb.StreamID
	// from is the producing stage, source for the position reports.
	from          string
	offset        int64
	minuteAligned bool
}

type stageSpec struct {
	name    string
	key     shuffle.KeyFunc
	inputs  []inputSpec
	outputs []isb.StreamID
	build   func(ctx context.Context, partition int32) (applier.Applier, error)
}

// topology returns the stages in an order where every stage comes after its producers.
func topology(th config.Thresholds) []stageSpec {
	return []stageSpec{
		{
			name:    VehicleSpeedStage,
			key:     shuffle.ByVehicle,
			inputs:  []inputSpec{{stream: isb.PositionReports, from: source}},
			outputs: []isb.StreamID{isb.VehicleSpeeds},
			build: func(ctx context.Context, _ int32) (applier.Applier, error) {
				return vehiclespeed.New(ctx), nil
			},
		},
		{
			name:    SegmentSpeedStage,
			key:     shuffle.BySegment,
			inputs:  []inputSpec{{stream: isb.VehicleSpeeds, from: VehicleSpeedStage, minuteAligned: true}},
			outputs: []isb.StreamID{isb.SegmentSpeeds, isb.CarCounts},
			build: func(ctx context.Context, _ int32) (applier.Applier, error) {
				return segmentspeed.New(ctx), nil
			},
		},
		{
			name:    LavStage,
			key:     shuffle.BySegment,
			inputs:  []inputSpec{{stream: isb.SegmentSpeeds, from: SegmentSpeedStage, minuteAligned: true}},
			outputs: []isb.StreamID{isb.Lavs},
			build: func(ctx context.Context, _ int32) (applier.Applier, error) {
				return lav.New(ctx, th.WindowMinutes)
			},
		},
		{
			name:    AccidentStage,
			key:     shuffle.ByExpressway,
			inputs:  []inputSpec{{stream: isb.PositionReports, from: source}},
			outputs: []isb.StreamID{isb.Accidents},
			build: func(ctx context.Context, partition int32) (applier.Applier, error) {
				return accident.New(ctx, partition, th), nil
			},
		},
		{
			name: TollStage,
			key:  shuffle.ByExpressway,
			inputs: []inputSpec{
				{stream: isb.PositionReports, from: source},
				{stream: isb.CarCounts, from: SegmentSpeedStage, minuteAligned: true},
				// the lav of minute m is stamped at the end of minute m+1, it is merged as of minute m
				{stream: isb.Lavs, from: LavStage, offset: -wmb.SecondsPerMinute, minuteAligned: true},
				{stream: isb.Accidents, from: AccidentStage, minuteAligned: true},
			},
			outputs: []isb.StreamID{isb.TollNotifications, isb.TollAssessments},
			build: func(ctx context.Context, partition int32) (applier.Applier, error) {
				return toll.New(ctx, partition, th)
			},
		},
	}
}
