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

	"github.com/redis/go-redis/v9"

	"github.com/numaproj/linearroad/pkg/shared/config"
)

// RedisClient datatype to hold redis client attributes.
type RedisClient struct {
	Client redis.UniversalClient
}

// NewRedisClient returns a new Redis Client.
func NewRedisClient(options *redis.UniversalOptions) *RedisClient {
	client := new(RedisClient)
	client.Client = redis.NewUniversalClient(options)
	return client
}

// NewRedisClientFromConfig returns a new Redis Client for the sink configuration. Several addresses make a
// cluster client.
func NewRedisClientFromConfig(conf *config.RedisConfig) *RedisClient {
	return NewRedisClient(&redis.UniversalOptions{
		Addrs:    conf.Addrs,
		Password: conf.Password,
		DB:       conf.DB,
	})
}

// AddToStream appends the values to the stream and returns the entry ID. A positive maxLen trims the stream
// approximately to that length.
func (cl *RedisClient) AddToStream(ctx context.Context, stream string, maxLen int64, values map[string]any) (string, error) {
	args := &redis.XAddArgs{
		Stream: stream,
		Values: values,
	}
	if maxLen > 0 {
		args.MaxLen = maxLen
		args.Approx = true
	}
	return cl.Client.XAdd(ctx, args).Result()
}

// StreamInfo returns redis stream info
func (cl *RedisClient) StreamInfo(ctx context.Context, streamKey string) (*redis.XInfoStream, error) {
	return cl.Client.XInfoStream(ctx, streamKey).Result()
}

// IsStreamExists check the redis keys exists
func (cl *RedisClient) IsStreamExists(ctx context.Context, streamKey string) bool {
	_, err := cl.StreamInfo(ctx, streamKey)
	return err == nil
}

// Ping checks the connection.
func (cl *RedisClient) Ping(ctx context.Context) error {
	if err := cl.Client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("failed to ping redis, %w", err)
	}
	return nil
}

func (cl *RedisClient) Close() error {
	return cl.Client.Close()
}

// GetRedisStreamName returns the stream name in a hash tag, so a cluster keeps a stream on one slot.
func GetRedisStreamName(s string) string {
	return fmt.Sprintf("{%s}", s)
}
