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

// Package pipeline runs the Linear Road topology in process. Every stage runs as a number of partitions, each
// in its own goroutine, connected by channels. Data messages are shuffled to the partition that owns their key
// and flush messages are broadcast to every partition of every consumer.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/atomic"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"k8s.io/apimachinery/pkg/util/wait"

	"github.com/numaproj/linearroad/pkg/forward"
	"github.com/numaproj/linearroad/pkg/isb"
	"github.com/numaproj/linearroad/pkg/shared/config"
	"github.com/numaproj/linearroad/pkg/shared/logging"
	"github.com/numaproj/linearroad/pkg/shuffle"
	"github.com/numaproj/linearroad/pkg/sinks"
	"github.com/numaproj/linearroad/pkg/sources"
	"github.com/numaproj/linearroad/pkg/udferr"
	"github.com/numaproj/linearroad/pkg/watermark/merge"
	"github.com/numaproj/linearroad/pkg/watermark/wmb"
)

type partition struct {
	stage *forward.Stage
	in    chan *isb.Message
}

type stageGroup struct {
	name       string
	key        shuffle.KeyFunc
	partitions []*partition
}

// Pipeline wires a source, the stages and the sinks.
type Pipeline struct {
	source sources.Sourcer
	sinks  []*sinks.Sink
	// sinkChs has one channel per sink, in the order of sinks.
	sinkChs []chan []*isb.Message
	// sinkStreams are the streams accepted by at least one sink.
	sinkStreams map[isb.StreamID]bool

	// sinkBackoff paces the attempts of a failed sink write.
	sinkBackoff wait.Backoff

	groups    []*stageGroup
	consumers map[isb.StreamID][]*stageGroup
	stats     *stats
	err       *atomic.Error
	log       *zap.SugaredLogger
}

// New builds the stages of the topology with the given number of partitions each. It does not start anything.
func New(ctx context.Context, conf *config.Config, src sources.Sourcer, sks []*sinks.Sink) (*Pipeline, error) {
	if conf.Pipeline.Partitions <= 0 {
		return nil, fmt.Errorf("pipeline needs a positive number of partitions, got %d", conf.Pipeline.Partitions)
	}
	p := &Pipeline{
		source:      src,
		sinks:       sks,
		sinkStreams: make(map[isb.StreamID]bool),
		sinkBackoff: wait.Backoff{
			Duration: conf.Pipeline.SinkRetryInterval,
			Factor:   2,
			Jitter:   0.1,
			Steps:    conf.Pipeline.SinkRetries + 1,
		},
		consumers:   make(map[isb.StreamID][]*stageGroup),
		stats:       newStats(),
		err:         atomic.NewError(nil),
		log:         logging.FromContext(ctx),
	}
	for _, s := range sks {
		p.sinkChs = append(p.sinkChs, make(chan []*isb.Message, conf.Pipeline.BufferSize))
		for _, id := range s.Streams() {
			p.sinkStreams[id] = true
		}
	}
	n := conf.Pipeline.Partitions
	producers := map[string]int{source: 1}
	for _, spec := range topology(conf.Thresholds) {
		g := &stageGroup{name: spec.name, key: spec.key}
		for i := 0; i < n; i++ {
			var inputs []merge.Input
			for _, in := range spec.inputs {
				count, ok := producers[in.from]
				if !ok {
					return nil, fmt.Errorf("stage %s consumes %s from %q which is not built yet", spec.name, in.stream, in.from)
				}
				for producer := 0; producer < count; producer++ {
					inputs = append(inputs, merge.Input{Stream: in.stream, Producer: int32(producer), Offset: in.offset, MinuteAligned: in.minuteAligned})
				}
			}
			merger, err := merge.NewMerger(spec.outputs[0], inputs...)
			if err != nil {
				return nil, fmt.Errorf("stage %s: %w", spec.name, err)
			}
			sctx := logging.WithLogger(ctx, logging.ForStage(ctx, spec.name, int32(i)))
			udf, err := spec.build(sctx, int32(i))
			if err != nil {
				return nil, fmt.Errorf("stage %s: %w", spec.name, err)
			}
			stage, err := forward.NewStage(spec.name, int32(i), merger, udf, spec.outputs, forward.WithLogger(p.log))
			if err != nil {
				return nil, err
			}
			g.partitions = append(g.partitions, &partition{stage: stage, in: make(chan *isb.Message, conf.Pipeline.BufferSize)})
		}
		for _, in := range spec.inputs {
			if !contains(p.consumers[in.stream], g) {
				p.consumers[in.stream] = append(p.consumers[in.stream], g)
			}
		}
		producers[spec.name] = n
		p.groups = append(p.groups, g)
	}
	return p, nil
}

func contains(groups []*stageGroup, g *stageGroup) bool {
	for _, c := range groups {
		if c == g {
			return true
		}
	}
	return false
}

// Run reads the source to its end and returns once every stage and sink is done, or on the first failure.
// A record rejected as Retryable cannot be redelivered in process, it is logged and dropped.
func (p *Pipeline) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)
	var stages sync.WaitGroup
	for _, group := range p.groups {
		for _, part := range group.partitions {
			part := part
			stages.Add(1)
			g.Go(func() error {
				defer stages.Done()
				return p.runPartition(ctx, part)
			})
		}
	}
	for i, s := range p.sinks {
		s, ch := s, p.sinkChs[i]
		g.Go(func() error {
			return p.runSink(ctx, s, ch)
		})
	}
	g.Go(func() error {
		stages.Wait()
		for _, ch := range p.sinkChs {
			close(ch)
		}
		return nil
	})
	g.Go(func() error {
		return p.runSource(ctx)
	})
	err := g.Wait()
	if err != nil {
		p.err.Store(err)
		return err
	}
	p.log.Infow("Pipeline finished", "reports", p.stats.reports.Load(), "dropped", p.stats.dropped.Load())
	return nil
}

// Healthy returns the error the pipeline failed with, if any.
func (p *Pipeline) Healthy() error {
	return p.err.Load()
}

// Stats returns the counters of the pipeline.
func (p *Pipeline) Stats() Stats {
	return p.stats.snapshot()
}

func (p *Pipeline) runSource(ctx context.Context) error {
	e := p.newEmitter()
	var current wmb.Minute
	for {
		r, err := p.source.Read(ctx)
		if errors.Is(err, io.EOF) {
			p.log.Infow("Source reached end of stream", "source", p.source.GetName(), "minute", current)
			return e.emit(ctx, []*isb.Message{isb.NewTerminal(isb.PositionReports)})
		}
		if err != nil {
			return fmt.Errorf("source %s: %w", p.source.GetName(), err)
		}
		p.stats.reports.Inc()
		var out []*isb.Message
		// the first report of a minute completes the previous one
		if m := r.Minute(); m > current {
			if m > 1 {
				out = append(out, isb.NewFlush(isb.PositionReports, m-1))
			}
			current = m
			sourceMinute.Set(float64(m))
		}
		out = append(out, isb.NewData(isb.PositionReports, r))
		if err := e.emit(ctx, out); err != nil {
			return err
		}
	}
}

func (p *Pipeline) runPartition(ctx context.Context, part *partition) error {
	e := p.newEmitter()
	log := p.log.With("stage", part.stage.Name(), "partition", part.stage.Partition())
	for !part.stage.Done() {
		var msg *isb.Message
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg = <-part.in:
		}
		out, err := part.stage.Process(ctx, msg)
		if emitErr := e.emit(ctx, out); emitErr != nil {
			return emitErr
		}
		if err != nil {
			switch udferr.KindOf(err) {
			case udferr.Retryable, udferr.Late:
				p.stats.dropped.Inc()
				log.Warnw("Dropping message", zap.String("message", msg.String()), zap.Error(err))
			default:
				return err
			}
		}
	}
	log.Debug("Partition done")
	return nil
}

func (p *Pipeline) runSink(ctx context.Context, s *sinks.Sink, ch <-chan []*isb.Message) error {
	for batch := range ch {
		if err := p.writeWithRetry(ctx, s, batch); err != nil {
			return err
		}
		for _, m := range batch {
			if s.Accepts(m.Stream) {
				p.stats.written[m.Stream].Inc()
			}
		}
	}
	return nil
}

// writeWithRetry writes the batch, retrying a failed write with backoff until the attempts are used up.
func (p *Pipeline) writeWithRetry(ctx context.Context, s *sinks.Sink, batch []*isb.Message) error {
	var (
		lastErr error
		attempt int
	)
	err := wait.ExponentialBackoffWithContext(ctx, p.sinkBackoff, func(ctx context.Context) (bool, error) {
		attempt++
		if lastErr = s.Write(ctx, batch); lastErr != nil {
			sinkWriteRetries.WithLabelValues(s.GetName()).Inc()
			p.log.Warnw("Failed to write to sink", zap.String("sink", s.GetName()), zap.Int("attempt", attempt), zap.Error(lastErr))
			return false, nil
		}
		return true, nil
	})
	if err == nil {
		return nil
	}
	if lastErr == nil {
		return err
	}
	return isb.MessageWriteErr{Name: s.GetName(), Header: batch[0].Header, Message: lastErr.Error()}
}

// emitter routes the messages of one producer. Shuffles are not safe for concurrent use, so every producer
// owns one per consuming stage.
type emitter struct {
	p        *Pipeline
	shuffles map[*stageGroup]*shuffle.Shuffle
}

func (p *Pipeline) newEmitter() *emitter {
	e := &emitter{p: p, shuffles: make(map[*stageGroup]*shuffle.Shuffle)}
	for _, g := range p.groups {
		e.shuffles[g] = shuffle.NewShuffle(len(g.partitions), g.key)
	}
	return e
}

func (e *emitter) emit(ctx context.Context, messages []*isb.Message) error {
	var toSinks []*isb.Message
	for _, m := range messages {
		if !m.IsFlush() && m.ID == "" {
			m.ID = uuid.NewString()
		}
		for _, g := range e.p.consumers[m.Stream] {
			if err := e.route(ctx, g, m); err != nil {
				return err
			}
		}
		if !m.IsFlush() && e.p.sinkStreams[m.Stream] {
			toSinks = append(toSinks, m)
		}
	}
	if len(toSinks) == 0 {
		return nil
	}
	for _, ch := range e.p.sinkChs {
		select {
		case ch <- toSinks:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}

func (e *emitter) route(ctx context.Context, g *stageGroup, m *isb.Message) error {
	targets := g.partitions
	if !m.IsFlush() {
		i, err := e.shuffles[g].Partition(m)
		if err != nil {
			return fmt.Errorf("routing to stage %s: %w", g.name, err)
		}
		targets = g.partitions[i : i+1]
	}
	e.p.stats.routed.Add(int64(len(targets)))
	routeMessagesCount.WithLabelValues(g.name, m.Stream.String()).Add(float64(len(targets)))
	for _, t := range targets {
		select {
		case t.in <- m:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}
