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

package logger

import (
	"context"

	"go.uber.org/zap"

	"github.com/numaproj/linearroad/pkg/isb"
	"github.com/numaproj/linearroad/pkg/shared/logging"
)

// ToLog prints the output to a log sinks.
type ToLog struct {
	name   string
	logger *zap.SugaredLogger
}

type Option func(*ToLog)

func WithLogger(log *zap.SugaredLogger) Option {
	return func(t *ToLog) {
		t.logger = log
	}
}

// NewToLog returns ToLog type.
func NewToLog(name string, opts ...Option) *ToLog {
	toLog := &ToLog{name: name}
	for _, o := range opts {
		o(toLog)
	}
	if toLog.logger == nil {
		toLog.logger = logging.NewLogger()
	}
	toLog.logger = toLog.logger.Named("sink").With("sink", name)
	return toLog
}

// GetName returns the name.
func (t *ToLog) GetName() string {
	return t.name
}

// Write writes to the log.
func (t *ToLog) Write(_ context.Context, messages []*isb.Message) error {
	for _, message := range messages {
		t.logger.Infow("Record",
			zap.Stringer("stream", message.Stream),
			zap.Int32("producer", message.Producer),
			zap.Int64("eventTime", message.EventTime),
			zap.Any("record", message.Record))
	}
	return nil
}

func (t *ToLog) Close() error {
	_ = t.logger.Sync()
	return nil
}
