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

package redis

import (
	"context"
	"fmt"

	"github.com/goccy/go-json"
	"go.uber.org/zap"

	"github.com/numaproj/linearroad/pkg/isb"
	redisclient "github.com/numaproj/linearroad/pkg/shared/clients/redis"
	"github.com/numaproj/linearroad/pkg/shared/config"
	"github.com/numaproj/linearroad/pkg/shared/logging"
)

// streamAdder is the part of the redis client the sink uses.
type streamAdder interface {
	AddToStream(ctx context.Context, stream string, maxLen int64, values map[string]any) (string, error)
	Close() error
}

// ToRedis is a sink that appends every record to the redis stream of its stream.
type ToRedis struct {
	name         string
	streamPrefix string
	maxLen       int64
	client       streamAdder
	logger       *zap.SugaredLogger
}

type Option func(sink *ToRedis)

func WithLogger(log *zap.SugaredLogger) Option {
	return func(t *ToRedis) {
		t.logger = log
	}
}

// NewToRedis returns ToRedis type.
func NewToRedis(ctx context.Context, name string, conf *config.RedisConfig, opts ...Option) (*ToRedis, error) {
	if conf == nil {
		return nil, fmt.Errorf("redis sink %s is not configured", name)
	}
	client := redisclient.NewRedisClientFromConfig(conf)
	if err := client.Ping(ctx); err != nil {
		_ = client.Close()
		return nil, err
	}
	return newToRedis(name, conf, client, opts...), nil
}

func newToRedis(name string, conf *config.RedisConfig, client streamAdder, opts ...Option) *ToRedis {
	t := &ToRedis{
		name:         name,
		streamPrefix: conf.StreamPrefix,
		maxLen:       conf.MaxLen,
		client:       client,
	}
	for _, o := range opts {
		o(t)
	}
	if t.logger == nil {
		t.logger = logging.NewLogger()
	}
	t.logger = t.logger.With("sinkType", "redis").With("sink", name)
	return t
}

// GetName returns the name.
func (rs *ToRedis) GetName() string {
	return rs.name
}

// StreamName returns the redis stream of the stream.
func (rs *ToRedis) StreamName(stream isb.StreamID) string {
	return redisclient.GetRedisStreamName(rs.streamPrefix + stream.String())
}

// Write writes to the redis streams, stopping at the first failure.
func (rs *ToRedis) Write(ctx context.Context, messages []*isb.Message) error {
	for _, m := range messages {
		payload, err := json.Marshal(m.Record)
		if err != nil {
			return fmt.Errorf("failed to marshal %s, %w", m, err)
		}
		values := map[string]any{
			"producer":  m.Producer,
			"eventTime": m.EventTime,
			"record":    payload,
		}
		if _, err := rs.client.AddToStream(ctx, rs.StreamName(m.Stream), rs.maxLen, values); err != nil {
			rs.logger.Errorw("XADD failed", zap.Stringer("stream", m.Stream), zap.Error(err))
			return err
		}
	}
	return nil
}

func (rs *ToRedis) Close() error {
	return rs.client.Close()
}
