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

package blackhole

import (
	"context"

	"github.com/numaproj/linearroad/pkg/isb"
)

// Blackhole is a sink to emulate /dev/null
type Blackhole struct {
	name    string
	written int
}

// NewBlackhole returns a new Blackhole sink.
func NewBlackhole(name string) *Blackhole {
	return &Blackhole{name: name}
}

// GetName returns the name.
func (b *Blackhole) GetName() string {
	return b.name
}

// Write discards the messages.
func (b *Blackhole) Write(_ context.Context, messages []*isb.Message) error {
	b.written += len(messages)
	return nil
}

// Written returns the number of discarded messages.
func (b *Blackhole) Written() int {
	return b.written
}

func (b *Blackhole) Close() error {
	return nil
}
