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

// Package sinks writes the output streams of the pipeline to external systems.
package sinks

import (
	"context"
	"fmt"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/numaproj/linearroad/pkg/isb"
	"github.com/numaproj/linearroad/pkg/metrics"
	"github.com/numaproj/linearroad/pkg/shared/config"
	"github.com/numaproj/linearroad/pkg/shared/logging"
	"github.com/numaproj/linearroad/pkg/sinks/blackhole"
	filesink "github.com/numaproj/linearroad/pkg/sinks/file"
	kafkasink "github.com/numaproj/linearroad/pkg/sinks/kafka"
	logsink "github.com/numaproj/linearroad/pkg/sinks/logger"
	redissink "github.com/numaproj/linearroad/pkg/sinks/redis"
	sqlitesink "github.com/numaproj/linearroad/pkg/sinks/sqlite"
)

// OutputStreams are the streams a sink consumes unless configured otherwise.
var OutputStreams = []isb.StreamID{
	isb.VehicleSpeeds,
	isb.SegmentSpeeds,
	isb.Lavs,
	isb.Accidents,
	isb.TollNotifications,
	isb.TollAssessments,
}

// TollStreams are the streams of the toll ledger.
var TollStreams = []isb.StreamID{isb.TollNotifications, isb.TollAssessments}

// Sink is a sinker restricted to a set of streams.
type Sink struct {
	Sinker
	streams map[isb.StreamID]struct{}
}

// NewSink restricts the sinker to the given streams.
func NewSink(s Sinker, streams ...isb.StreamID) *Sink {
	m := make(map[isb.StreamID]struct{}, len(streams))
	for _, id := range streams {
		m[id] = struct{}{}
	}
	return &Sink{Sinker: s, streams: m}
}

// Accepts reports whether the sink consumes the stream.
func (s *Sink) Accepts(stream isb.StreamID) bool {
	_, ok := s.streams[stream]
	return ok
}

// Streams returns the streams of the sink.
func (s *Sink) Streams() []isb.StreamID {
	var r []isb.StreamID
	for _, id := range isb.Streams {
		if s.Accepts(id) {
			r = append(r, id)
		}
	}
	return r
}

// Write writes the messages of the accepted streams, and counts them.
func (s *Sink) Write(ctx context.Context, messages []*isb.Message) error {
	var accepted []*isb.Message
	for _, m := range messages {
		if !m.IsFlush() && s.Accepts(m.Stream) {
			accepted = append(accepted, m)
		}
	}
	if len(accepted) == 0 {
		return nil
	}
	if err := s.Sinker.Write(ctx, accepted); err != nil {
		for _, m := range accepted {
			metrics.SinkWriteError.WithLabelValues(s.GetName(), m.Stream.String()).Inc()
		}
		return fmt.Errorf("sink %s: %w", s.GetName(), err)
	}
	for _, m := range accepted {
		metrics.SinkWriteCount.WithLabelValues(s.GetName(), m.Stream.String()).Inc()
	}
	return nil
}

// Build creates the configured sinks. Sinks already created are closed when a later one fails.
func Build(ctx context.Context, confs []config.Sink) ([]*Sink, error) {
	var built []*Sink
	for i, c := range confs {
		s, err := build(ctx, i, c)
		if err != nil {
			return nil, multierr.Append(err, CloseAll(built))
		}
		built = append(built, s)
	}
	return built, nil
}

func build(ctx context.Context, i int, c config.Sink) (*Sink, error) {
	log := logging.FromContext(ctx)
	name := fmt.Sprintf("%s-%d", c.Type, i)
	defaults := OutputStreams
	var sinker Sinker
	var err error
	switch c.Type {
	case config.SinkLog:
		sinker = logsink.NewToLog(name, logsink.WithLogger(log))
	case config.SinkBlackhole:
		sinker = blackhole.NewBlackhole(name)
	case config.SinkFile:
		sinker, err = filesink.NewToFile(name, c.Path)
	case config.SinkKafka:
		sinker, err = kafkasink.NewToKafka(name, c.Kafka, kafkasink.WithLogger(log))
	case config.SinkRedis:
		sinker, err = redissink.NewToRedis(ctx, name, c.Redis, redissink.WithLogger(log))
	case config.SinkSQLite:
		defaults = TollStreams
		sinker, err = sqlitesink.NewToSQLite(ctx, name, c.Path)
	default:
		return nil, fmt.Errorf("unknown sink type %q", c.Type)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create sink %s, %w", name, err)
	}
	streams := defaults
	if len(c.Streams) > 0 {
		streams = nil
		for _, n := range c.Streams {
			id, err := isb.ParseStreamID(n)
			if err != nil {
				_ = sinker.Close()
				return nil, fmt.Errorf("sink %s: %w", name, err)
			}
			streams = append(streams, id)
		}
	}
	log.Infow("Created sink", zap.String("sink", name), zap.Any("streams", streamNames(streams)))
	return NewSink(sinker, streams...), nil
}

func streamNames(ids []isb.StreamID) []string {
	r := make([]string, len(ids))
	for i, id := range ids {
		r[i] = id.String()
	}
	return r
}

// CloseAll closes every sink and combines the errors.
func CloseAll(sinks []*Sink) error {
	var err error
	for _, s := range sinks {
		err = multierr.Append(err, s.Close())
	}
	return err
}
