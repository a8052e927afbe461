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

package generator

import (
	"context"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/numaproj/linearroad/pkg/shared/config"
	"github.com/numaproj/linearroad/pkg/types"
)

func generate(t *testing.T, g config.Generator) []*types.PositionReport {
	t.Helper()
	m, err := NewMemGen(g)
	require.NoError(t, err)
	var r []*types.PositionReport
	for {
		p, err := m.Read(context.Background())
		if err == io.EOF {
			break
		}
		require.NoError(t, err)
		r = append(r, p)
	}
	assert.NoError(t, m.Close())
	return r
}

func TestMemGen_Deterministic(t *testing.T) {
	g := config.Generator{Seed: 7, XWays: 2, Vehicles: 50, Minutes: 5, Accidents: 1}
	first := generate(t, g)
	assert.NotEmpty(t, first)
	assert.Equal(t, first, generate(t, g))
	g.Seed = 8
	assert.NotEqual(t, first, generate(t, g))
}

func TestMemGen_Reports(t *testing.T) {
	reports := generate(t, config.Generator{Seed: 1, XWays: 2, Vehicles: 200, Minutes: 10})
	last := map[int32]*types.PositionReport{}
	for i, p := range reports {
		require.NoError(t, p.Validate())
		assert.Less(t, p.Time, int64(600))
		assert.Less(t, p.XWay, int32(2))
		if i > 0 {
			assert.LessOrEqual(t, reports[i-1].Time, p.Time)
		}
		prev, ok := last[p.VID]
		if !ok {
			assert.Equal(t, types.EntryLane, p.Lane, "vehicle %d", p.VID)
		} else {
			assert.Equal(t, prev.Time+reportInterval, p.Time)
			assert.NotEqual(t, types.ExitLane, prev.Lane, "vehicle %d reported after exiting", p.VID)
			assert.Equal(t, prev.Direction, p.Direction)
		}
		last[p.VID] = p
	}
	assert.Greater(t, len(last), 150)
}

func TestMemGen_Accidents(t *testing.T) {
	reports := generate(t, config.Generator{Seed: 3, XWays: 1, Vehicles: 10, Minutes: 10, Accidents: 2})
	for _, pair := range [][2]int32{{0, 1}, {2, 3}} {
		var a, b []*types.PositionReport
		for _, p := range reports {
			switch p.VID {
			case pair[0]:
				a = append(a, p)
			case pair[1]:
				b = append(b, p)
			}
		}
		require.GreaterOrEqual(t, len(a), accidentReports)
		require.GreaterOrEqual(t, len(b), accidentReports)
		for i := 0; i < accidentReports; i++ {
			assert.Equal(t, int32(0), a[i].Speed)
			assert.Equal(t, a[0].Position, a[i].Position)
			other := *b[i]
			other.VID = a[i].VID
			assert.Equal(t, *a[i], other)
		}
	}
}

func TestNewMemGen_Invalid(t *testing.T) {
	for _, g := range []config.Generator{
		{XWays: 0, Vehicles: 1, Minutes: 1},
		{XWays: 1, Vehicles: 1, Minutes: 0},
		{XWays: 1, Vehicles: -1, Minutes: 1},
		{XWays: 1, Vehicles: 3, Minutes: 1, Accidents: 2},
	} {
		_, err := NewMemGen(g)
		assert.Error(t, err, "%+v", g)
	}
}

func TestMemGen_Canceled(t *testing.T) {
	m, err := NewMemGen(config.Generator{XWays: 1, Vehicles: 1, Minutes: 1})
	require.NoError(t, err)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = m.Read(ctx)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, "generator", m.GetName())
}
