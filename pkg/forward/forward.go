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

/*
Package forward runs one stage partition: Merge (inputs) -> Apply (keyed computation) -> Forward (outputs).
The merger releases the input messages in event time order and decides when a minute is closed, the applier
turns data and flushes into output records, and every flush is forwarded on each output stream so the
next stage can close the same minute.
*/
package forward

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/numaproj/linearroad/pkg/forward/applier"
	"github.com/numaproj/linearroad/pkg/isb"
	"github.com/numaproj/linearroad/pkg/metrics"
	"github.com/numaproj/linearroad/pkg/udferr"
	"github.com/numaproj/linearroad/pkg/watermark/merge"
)

// validator is implemented by records that can be checked before they touch any state.
type validator interface {
	Validate() error
}

// Stage is one partition of a stage. It is not safe for concurrent use, the runtime feeds it from a
// single goroutine.
type Stage struct {
	name      string
	partition int32
	merger    *merge.Merger
	udf       applier.Applier
	outputs   []isb.StreamID
	opts      options
	labels    map[string]string
}

// NewStage creates the partition of the named stage. Flushes are forwarded on every stream of outputs.
func NewStage(name string, partition int32, merger *merge.Merger, udf applier.Applier, outputs []isb.StreamID, opts ...Option) (*Stage, error) {
	options := DefaultOptions()
	for _, o := range opts {
		if err := o(options); err != nil {
			return nil, err
		}
	}
	if merger == nil || udf == nil {
		return nil, fmt.Errorf("stage %s needs a merger and an applier", name)
	}
	s := &Stage{
		name:      name,
		partition: partition,
		merger:    merger,
		udf:       udf,
		outputs:   outputs,
		opts:      *options,
		labels: map[string]string{
			metrics.LabelStage:     name,
			metrics.LabelPartition: strconv.Itoa(int(partition)),
		},
	}
	s.opts.logger = s.opts.logger.With("stage", name, "partition", partition)
	s.opts.logger.Infow("Created stage", zap.Stringers("inputs", merger.Inputs()), zap.Stringers("outputs", outputs))
	return s, nil
}

// Name returns the stage name.
func (s *Stage) Name() string {
	return s.name
}

// Partition returns the partition index of the stage instance.
func (s *Stage) Partition() int32 {
	return s.partition
}

// Done reports whether the stage processed the end of all its inputs.
func (s *Stage) Done() bool {
	return s.merger.Done()
}

// Process consumes one input message and returns the output messages, stamped with this partition.
//
// An invalid record is rejected with a Retryable error before it reaches the merger, so the caller can
// redeliver or discard it. Late messages are dropped and logged, they never produce an error. Any other
// error is returned as is, a NonRetryable one means the stage cannot continue.
func (s *Stage) Process(ctx context.Context, msg *isb.Message) ([]*isb.Message, error) {
	start := time.Now()
	defer func() {
		processingTime.With(s.labels).Observe(float64(time.Since(start).Microseconds()))
	}()
	if !msg.IsFlush() {
		if v, ok := msg.Record.(validator); ok {
			if err := v.Validate(); err != nil {
				s.drop(msg, "invalid")
				return nil, udferr.Newf(udferr.Retryable, "invalid %s record: %v", msg.Stream, err)
			}
		}
	}
	released, err := s.merger.Push(msg)
	bufferedMessages.With(s.labels).Set(float64(s.merger.Buffered()))
	if err != nil {
		if udferr.KindOf(err) == udferr.Late {
			s.drop(msg, "late")
			s.opts.logger.Warnw("Dropping late message", zap.String("message", msg.String()), zap.Error(err))
			return nil, nil
		}
		return nil, err
	}
	var out []*isb.Message
	for _, m := range released {
		var res []*isb.Message
		if m.IsFlush() {
			res, err = s.flush(ctx, m)
		} else {
			readMessagesCount.With(s.withStream(m.Stream)).Inc()
			res, err = s.udf.Apply(ctx, m)
		}
		if err != nil {
			return out, fmt.Errorf("stage %s partition %d: %w", s.name, s.partition, err)
		}
		for _, r := range res {
			if !r.IsFlush() {
				r.Producer = s.partition
				writeMessagesCount.With(s.withStream(r.Stream)).Inc()
			}
		}
		out = append(out, res...)
	}
	return out, nil
}

func (s *Stage) flush(ctx context.Context, m *isb.Message) ([]*isb.Message, error) {
	minute := m.Barrier.Minute
	res, err := s.udf.Flush(ctx, minute)
	if err != nil {
		return nil, err
	}
	records := len(res)
	for _, stream := range s.outputs {
		res = append(res, isb.NewFlush(stream, minute).From(stream, s.partition))
	}
	flushCount.With(s.labels).Inc()
	if !minute.IsTerminal() {
		closedMinute.With(s.labels).Set(float64(minute))
	} else {
		s.opts.logger.Infow("Reached end of stream")
	}
	s.opts.logger.Debugw("Flushed", zap.Stringer("minute", minute), zap.Int("records", records))
	return res, nil
}

func (s *Stage) drop(msg *isb.Message, reason string) {
	l := s.withStream(msg.Stream)
	l[metrics.LabelReason] = reason
	dropMessagesCount.With(l).Inc()
}

func (s *Stage) withStream(stream isb.StreamID) map[string]string {
	return map[string]string{
		metrics.LabelStage:     s.name,
		metrics.LabelPartition: s.labels[metrics.LabelPartition],
		metrics.LabelStream:    stream.String(),
	}
}
