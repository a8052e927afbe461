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

package sources

import (
	"context"

	"github.com/numaproj/linearroad/pkg/types"
)

// Sourcer interface defines what a Source should implement. Read returns the position reports in event time
// order and io.EOF once the input is exhausted.
type Sourcer interface {
	GetName() string
	Read(ctx context.Context) (*types.PositionReport, error)
	Close() error
}
