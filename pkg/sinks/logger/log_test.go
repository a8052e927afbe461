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
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/numaproj/linearroad/pkg/isb"
	"github.com/numaproj/linearroad/pkg/types"
)

func TestToLog_Write(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	s := NewToLog("log-0", WithLogger(zap.New(core).Sugar()))
	assert.Equal(t, "log-0", s.GetName())

	toll := &types.TollNotification{Time: 200, EmitTime: 200, VID: 7, Speed: 39, Toll: 2}
	msg := isb.NewData(isb.TollAssessments, toll)
	msg.Producer = 3
	require.NoError(t, s.Write(context.Background(), []*isb.Message{msg}))

	entries := logs.FilterMessage("Record").All()
	require.Len(t, entries, 1)
	fields := entries[0].ContextMap()
	assert.Equal(t, "toll-assessments", fields["stream"])
	assert.Equal(t, int32(3), fields["producer"])
	assert.Equal(t, int64(200), fields["eventTime"])
	assert.Equal(t, "log-0", fields["sink"])
	assert.NoError(t, s.Close())
}
