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

package sqlite

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/numaproj/linearroad/pkg/isb"
	"github.com/numaproj/linearroad/pkg/shared/logging"
	"github.com/numaproj/linearroad/pkg/types"
)

func toll(stream isb.StreamID, t int64, vid int32, amount int) *isb.Message {
	return isb.NewData(stream, &types.TollNotification{Time: t, EmitTime: t, VID: vid, Speed: 30, Toll: amount})
}

func TestToSQLite_Ledger(t *testing.T) {
	ctx := context.Background()
	s, err := NewToSQLite(ctx, "sqlite-0", ":memory:")
	require.NoError(t, err)
	defer func() { assert.NoError(t, s.Close()) }()

	require.NoError(t, s.Write(ctx, []*isb.Message{
		toll(isb.TollNotifications, 200, 7, 2),
		toll(isb.TollNotifications, 260, 7, 8),
		toll(isb.TollAssessments, 200, 7, 2),
		toll(isb.TollAssessments, 300, 8, 18),
		isb.NewData(isb.Lavs, &types.Lav{Minute: 3, Speed: 20}),
	}))
	// replayed assessment
	require.NoError(t, s.Write(ctx, []*isb.Message{toll(isb.TollAssessments, 200, 7, 2)}))

	n, err := s.Count(ctx, isb.TollNotifications)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	n, err = s.Count(ctx, isb.TollAssessments)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	balances, err := s.Balances(ctx)
	require.NoError(t, err)
	assert.Equal(t, map[int32]int{7: 2, 8: 18}, balances)
}

func TestToSQLite_CloseLogsLedger(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	ctx := logging.WithLogger(context.Background(), zap.New(core).Sugar())
	s, err := NewToSQLite(ctx, "sqlite-0", ":memory:")
	require.NoError(t, err)
	require.NoError(t, s.Write(ctx, []*isb.Message{
		toll(isb.TollNotifications, 200, 7, 2),
		toll(isb.TollAssessments, 200, 7, 2),
		toll(isb.TollAssessments, 300, 8, 18),
	}))
	require.NoError(t, s.Close())

	entries := logs.FilterMessage("Toll ledger").All()
	require.Len(t, entries, 1)
	fields := entries[0].ContextMap()
	assert.Equal(t, int64(1), fields["notifications"])
	assert.Equal(t, int64(2), fields["assessments"])
	assert.Equal(t, int64(2), fields["vehicles"])
	assert.Equal(t, int64(20), fields["revenue"])
	assert.Equal(t, "sqlite-0", fields["sink"])
}

func TestToSQLite_File(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "ledger.db")
	s, err := NewToSQLite(ctx, "sqlite-0", path)
	require.NoError(t, err)
	require.NoError(t, s.Write(ctx, []*isb.Message{toll(isb.TollAssessments, 300, 8, 18)}))
	require.NoError(t, s.Close())

	s, err = NewToSQLite(ctx, "sqlite-0", path)
	require.NoError(t, err)
	defer s.Close()
	balances, err := s.Balances(ctx)
	require.NoError(t, err)
	assert.Equal(t, map[int32]int{8: 18}, balances)
}
