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

package applier

import (
	"context"

	"github.com/numaproj/linearroad/pkg/isb"
	"github.com/numaproj/linearroad/pkg/watermark/wmb"
)

// Applier is the keyed computation of a stage. It sees the data messages of its partition in event time
// order, interleaved with the flush of every closed minute. Returned messages carry their output stream.
type Applier interface {
	// Apply processes one data message.
	Apply(ctx context.Context, msg *isb.Message) ([]*isb.Message, error)
	// Flush finalizes everything that belongs to minute m or earlier. m is wmb.EndOfStream at the end.
	Flush(ctx context.Context, m wmb.Minute) ([]*isb.Message, error)
}

// Funcs is an Applier built from two functions. A nil function produces nothing.
type Funcs struct {
	ApplyFunc func(context.Context, *isb.Message) ([]*isb.Message, error)
	FlushFunc func(context.Context, wmb.Minute) ([]*isb.Message, error)
}

func (f Funcs) Apply(ctx context.Context, msg *isb.Message) ([]*isb.Message, error) {
	if f.ApplyFunc == nil {
		return nil, nil
	}
	return f.ApplyFunc(ctx, msg)
}

func (f Funcs) Flush(ctx context.Context, m wmb.Minute) ([]*isb.Message, error) {
	if f.FlushFunc == nil {
		return nil, nil
	}
	return f.FlushFunc(ctx, m)
}
