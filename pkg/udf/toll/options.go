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

package toll

import (
	"github.com/numaproj/linearroad/pkg/types"
)

type options struct {
	// emitTime stamps the emit time of a notification caused by the report
	emitTime func(*types.PositionReport) int64
}

// Option to apply to the engine
type Option func(*options)

func defaultOptions() *options {
	return &options{
		emitTime: func(p *types.PositionReport) int64 { return p.Time },
	}
}

// WithEmitTime sets the function that stamps the emit time of notifications. It defaults to the report time.
func WithEmitTime(f func(*types.PositionReport) int64) Option {
	return func(o *options) {
		o.emitTime = f
	}
}
