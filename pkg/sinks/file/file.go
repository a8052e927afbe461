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

// Package file writes the records as JSON lines.
package file

import (
	"bufio"
	"context"
	"fmt"
	"os"

	"github.com/goccy/go-json"

	"github.com/numaproj/linearroad/pkg/isb"
	"github.com/numaproj/linearroad/pkg/types"
)

// Line is one line of the output file.
type Line struct {
	Stream   string          `json:"stream"`
	Producer int32           `json:"producer"`
	Record   json.RawMessage `json:"record"`
}

// ToFile appends the records to a file, one JSON document per line.
type ToFile struct {
	name string
	f    *os.File
	w    *bufio.Writer
	enc  *json.Encoder
}

// NewToFile creates or truncates the file at path.
func NewToFile(name, path string) (*ToFile, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, err
	}
	w := bufio.NewWriter(f)
	return &ToFile{name: name, f: f, w: w, enc: json.NewEncoder(w)}, nil
}

// GetName returns the name.
func (t *ToFile) GetName() string {
	return t.name
}

// Write writes the messages and flushes them to the file.
func (t *ToFile) Write(_ context.Context, messages []*isb.Message) error {
	for _, m := range messages {
		if err := t.enc.Encode(line{Stream: m.Stream.String(), Producer: m.Producer, Record: m.Record}); err != nil {
			return fmt.Errorf("failed to encode %s, %w", m, err)
		}
	}
	return t.w.Flush()
}

func (t *ToFile) Close() error {
	if err := t.w.Flush(); err != nil {
		_ = t.f.Close()
		return err
	}
	return t.f.Close()
}

type line struct {
	Stream   string       `json:"stream"`
	Producer int32        `json:"producer"`
	Record   types.Record `json:"record"`
}
