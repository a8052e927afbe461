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

// Package config loads the pipeline configuration. Values come from an optional YAML file, are overridden by
// LRB_ prefixed environment variables and fall back to the Linear Road defaults. A value set explicitly,
// zero included, always wins over the default.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const EnvPrefix = "LRB"

// Sink types.
const (
	SinkLog       = "log"
	SinkBlackhole = "blackhole"
	SinkFile      = "file"
	SinkKafka     = "kafka"
	SinkRedis     = "redis"
	SinkSQLite    = "sqlite"
)

type Config struct {
	Thresholds Thresholds    `json:"thresholds"`
	Pipeline   Pipeline      `json:"pipeline"`
	Source     Source        `json:"source"`
	Sinks      []Sink        `json:"sinks"`
	Metrics    MetricsConfig `json:"metrics"`
}

// Thresholds are the constants of the benchmark, injectable so tests can use smaller values.
type Thresholds struct {
	// Occupancy is the car count above which a segment is congested.
	Occupancy int `json:"occupancy"`
	// SpeedLimit is the LAV below which a segment is congested.
	SpeedLimit int `json:"speedLimit"`
	// Lookahead is the number of downstream segments an accident suppresses tolls for.
	Lookahead int `json:"lookahead"`
	// WindowMinutes is the length of the LAV window.
	WindowMinutes int `json:"windowMinutes"`
	TollFactor    int `json:"tollFactor"`
	// StoppedReports is the number of identical zero speed reports after which a vehicle is stopped.
	StoppedReports int `json:"stoppedReports"`
	// AccidentVehicles is the number of stopped vehicles at one place that make an accident.
	AccidentVehicles int `json:"accidentVehicles"`
	// VehicleIdleMinutes is the event time silence after which the toll state of a vehicle is evicted.
	VehicleIdleMinutes int `json:"vehicleIdleMinutes"`
	VehicleCacheSize   int `json:"vehicleCacheSize"`
}

type Pipeline struct {
	// Partitions is the number of instances of every stage.
	Partitions int `json:"partitions"`
	BufferSize int `json:"bufferSize"`
	// SinkRetries is the number of times a failed sink write is retried before the pipeline fails.
	SinkRetries       int           `json:"sinkRetries"`
	SinkRetryInterval time.Duration `json:"sinkRetryInterval"`
}

type Source struct {
	// Path of an LRB input file, the generator is used when empty.
	Path      string    `json:"path"`
	Generator Generator `json:"generator"`
}

type Generator struct {
	Seed     int64 `json:"seed"`
	XWays    int   `json:"xways"`
	Vehicles int   `json:"vehicles"`
	Minutes  int   `json:"minutes"`
	// Accidents is the number of accidents staged during the run.
	Accidents int `json:"accidents"`
}

type Sink struct {
	Type string `json:"type"`
	// Streams restricts the sink to the named streams, all output streams when empty.
	Streams []string     `json:"streams"`
	Path    string       `json:"path"`
	Kafka   *KafkaConfig `json:"kafka"`
	Redis   *RedisConfig `json:"redis"`
}

type KafkaConfig struct {
	Brokers []string `json:"brokers"`
	// TopicPrefix is prepended to the stream name to build the topic.
	TopicPrefix string `json:"topicPrefix"`
	// Config is a sarama configuration in YAML.
	Config string `json:"config"`
}

type RedisConfig struct {
	Addrs        []string `json:"addrs"`
	Password     string   `json:"password"`
	DB           int      `json:"db"`
	StreamPrefix string   `json:"streamPrefix"`
	MaxLen       int64    `json:"maxLen"`
}

type MetricsConfig struct {
	Enabled bool `json:"enabled"`
	Port    int  `json:"port"`
}

// Default returns the configuration of the Linear Road Benchmark.
func Default() Config {
	return Config{
		Thresholds: Thresholds{
			Occupancy:          50,
			SpeedLimit:         40,
			Lookahead:          4,
			WindowMinutes:      5,
			TollFactor:         2,
			StoppedReports:     4,
			AccidentVehicles:   2,
			VehicleIdleMinutes: 5,
			VehicleCacheSize:   1 << 20,
		},
		Pipeline: Pipeline{
			Partitions:        4,
			BufferSize:        1024,
			SinkRetries:       3,
			SinkRetryInterval: 100 * time.Millisecond,
		},
		Source: Source{
			Generator: Generator{
				Seed:     1,
				XWays:    1,
				Vehicles: 1000,
				Minutes:  10,
			},
		},
		Sinks:   []Sink{{Type: SinkLog}},
		Metrics: MetricsConfig{Port: 2469},
	}
}

// envKeys are the keys that can be overridden from the environment, e.g. LRB_THRESHOLDS_OCCUPANCY.
var envKeys = []string{
	"thresholds.occupancy",
	"thresholds.speedLimit",
	"thresholds.lookahead",
	"thresholds.windowMinutes",
	"thresholds.tollFactor",
	"thresholds.stoppedReports",
	"thresholds.accidentVehicles",
	"thresholds.vehicleIdleMinutes",
	"thresholds.vehicleCacheSize",
	"pipeline.partitions",
	"pipeline.bufferSize",
	"pipeline.sinkRetries",
	"pipeline.sinkRetryInterval",
	"source.path",
	"metrics.enabled",
	"metrics.port",
}

// Load reads the configuration file at path, if any, over the defaults, applies environment overrides and
// validates the result.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	for _, k := range envKeys {
		if err := v.BindEnv(k); err != nil {
			return nil, fmt.Errorf("failed to bind env for %q, %w", k, err)
		}
	}
	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to load configuration file. %w", err)
		}
	}
	conf := Default()
	// configured sinks replace the default ones instead of being decoded into them
	if v.IsSet("sinks") {
		conf.Sinks = nil
	}
	if err := v.Unmarshal(&conf); err != nil {
		return nil, fmt.Errorf("failed unmarshal configuration file. %w", err)
	}
	if err := conf.Validate(); err != nil {
		return nil, err
	}
	return &conf, nil
}

func (c *Config) Validate() error {
	t := c.Thresholds
	for name, val := range map[string]int{
		"occupancy":          t.Occupancy,
		"speedLimit":         t.SpeedLimit,
		"windowMinutes":      t.WindowMinutes,
		"tollFactor":         t.TollFactor,
		"stoppedReports":     t.StoppedReports,
		"accidentVehicles":   t.AccidentVehicles,
		"vehicleIdleMinutes": t.VehicleIdleMinutes,
		"vehicleCacheSize":   t.VehicleCacheSize,
		"partitions":         c.Pipeline.Partitions,
	} {
		if val <= 0 {
			return fmt.Errorf("invalid config: %s must be positive, got %d", name, val)
		}
	}
	if t.Lookahead < 0 {
		return fmt.Errorf("invalid config: lookahead must not be negative, got %d", t.Lookahead)
	}
	if c.Pipeline.BufferSize < 0 {
		return fmt.Errorf("invalid config: bufferSize must not be negative, got %d", c.Pipeline.BufferSize)
	}
	if c.Pipeline.SinkRetries < 0 || c.Pipeline.SinkRetryInterval < 0 {
		return fmt.Errorf("invalid config: sink retries must not be negative, got %d every %s", c.Pipeline.SinkRetries, c.Pipeline.SinkRetryInterval)
	}
	for i, s := range c.Sinks {
		switch s.Type {
		case SinkLog, SinkBlackhole:
		case SinkFile, SinkSQLite:
			if s.Path == "" {
				return fmt.Errorf("invalid config: sink %d of type %s needs a path", i, s.Type)
			}
		case SinkKafka:
			if s.Kafka == nil || len(s.Kafka.Brokers) == 0 {
				return fmt.Errorf("invalid config: sink %d of type kafka needs brokers", i)
			}
		case SinkRedis:
			if s.Redis == nil || len(s.Redis.Addrs) == 0 {
				return fmt.Errorf("invalid config: sink %d of type redis needs addrs", i)
			}
		default:
			return fmt.Errorf("invalid config: unknown sink type %q", s.Type)
		}
	}
	return nil
}
