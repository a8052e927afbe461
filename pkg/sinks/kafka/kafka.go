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

package kafka

import (
	"context"
	"fmt"
	"strconv"

	"github.com/IBM/sarama"
	"github.com/goccy/go-json"
	"go.uber.org/zap"

	"github.com/numaproj/linearroad/pkg/isb"
	"github.com/numaproj/linearroad/pkg/shared/config"
	"github.com/numaproj/linearroad/pkg/shared/logging"
	"github.com/numaproj/linearroad/pkg/shared/util"
)

// ToKafka produce the output to a kafka sinks. Every stream goes to its own topic.
type ToKafka struct {
	name        string
	topicPrefix string
	producer    sarama.SyncProducer
	log         *zap.SugaredLogger
}

type Option func(*ToKafka)

func WithLogger(log *zap.SugaredLogger) Option {
	return func(t *ToKafka) {
		t.log = log
	}
}

// NewToKafka returns ToKafka type.
func NewToKafka(name string, conf *config.KafkaConfig, opts ...Option) (*ToKafka, error) {
	if conf == nil {
		return nil, fmt.Errorf("kafka sink %s is not configured", name)
	}
	saramaConfig, err := util.GetSaramaConfigFromYAMLString(conf.Config)
	if err != nil {
		return nil, err
	}
	producer, err := sarama.NewSyncProducer(conf.Brokers, saramaConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create kafka producer. %w", err)
	}
	return newToKafka(name, conf.TopicPrefix, producer, opts...), nil
}

func newToKafka(name, topicPrefix string, producer sarama.SyncProducer, opts ...Option) *ToKafka {
	toKafka := &ToKafka{name: name, topicPrefix: topicPrefix, producer: producer}
	for _, o := range opts {
		o(toKafka)
	}
	if toKafka.log == nil {
		toKafka.log = logging.NewLogger()
	}
	toKafka.log = toKafka.log.With("sinkType", "kafka").With("sink", name)
	return toKafka
}

// GetName returns the name.
func (tk *ToKafka) GetName() string {
	return tk.name
}

// Topic returns the topic of the stream.
func (tk *ToKafka) Topic(stream isb.StreamID) string {
	return tk.topicPrefix + stream.String()
}

// Write sends the messages in one batch.
func (tk *ToKafka) Write(_ context.Context, messages []*isb.Message) error {
	batch := make([]*sarama.ProducerMessage, 0, len(messages))
	for _, m := range messages {
		payload, err := json.Marshal(m.Record)
		if err != nil {
			return fmt.Errorf("failed to marshal %s, %w", m, err)
		}
		batch = append(batch, &sarama.ProducerMessage{
			Topic: tk.Topic(m.Stream),
			Key:   sarama.StringEncoder(strconv.FormatInt(int64(m.Producer), 10)),
			Value: sarama.ByteEncoder(payload),
		})
	}
	if err := tk.producer.SendMessages(batch); err != nil {
		tk.log.Errorw("SendMessages failed", zap.Error(err), zap.Int("messages", len(batch)))
		return err
	}
	return nil
}

func (tk *ToKafka) Close() error {
	tk.log.Info("Closing kafka producer...")
	return tk.producer.Close()
}
