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

// Package file reads position reports from a Linear Road input file. Every line is one comma separated
// tuple: type, time, vid, speed, xway, lane, dir, seg, pos, followed by query fields. Only type 0 lines are
// position reports, the other query types are skipped.
package file

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/numaproj/linearroad/pkg/isb"
	"github.com/numaproj/linearroad/pkg/metrics"
	"github.com/numaproj/linearroad/pkg/shared/logging"
	sourceerr "github.com/numaproj/linearroad/pkg/sources/errors"
	"github.com/numaproj/linearroad/pkg/types"
)

const (
	positionReportType = "0"
	// positionFields is the number of leading fields of a position report.
	positionFields = 9
	// lineFields is the number of fields of a line of the input file.
	lineFields = 15
)

// FromFile reads position reports from a file.
type FromFile struct {
	name   string
	r      *csv.Reader
	closer io.Closer
	line   int
	logger *zap.SugaredLogger
}

type Option func(*FromFile)

func WithLogger(l *zap.SugaredLogger) Option {
	return func(f *FromFile) {
		f.logger = l
	}
}

// NewFromFile opens the file at path.
func NewFromFile(path string, opts ...Option) (*FromFile, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open input file, %w", err)
	}
	s := NewFromReader("file", f, opts...)
	s.closer = f
	return s, nil
}

// NewFromReader reads the lines of r.
func NewFromReader(name string, r io.Reader, opts ...Option) *FromFile {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true
	cr.ReuseRecord = true
	s := &FromFile{name: name, r: cr}
	for _, o := range opts {
		o(s)
	}
	if s.logger == nil {
		s.logger = logging.NewLogger()
	}
	s.logger = s.logger.With("source", name)
	return s
}

// GetName returns the name.
func (f *FromFile) GetName() string {
	return f.name
}

// Read returns the next position report. Lines that are not position reports or cannot be parsed are
// skipped and counted.
func (f *FromFile) Read(ctx context.Context) (*types.PositionReport, error) {
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		fields, err := f.r.Read()
		f.line++
		if errors.Is(err, io.EOF) {
			return nil, io.EOF
		}
		var parseErr *csv.ParseError
		if errors.As(err, &parseErr) {
			f.skip("malformed", isb.MessageReadErr{Name: f.name, Line: f.line, Message: parseErr.Err.Error()})
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read line %d, %w", f.line, &sourceerr.SourceReadErr{Message: err.Error()})
		}
		if len(fields) == 0 || fields[0] != positionReportType {
			metrics.SourceSkipCount.WithLabelValues(f.name, "type").Inc()
			continue
		}
		p, err := parse(fields)
		if err != nil {
			f.skip("malformed", isb.MessageReadErr{Name: f.name, Line: f.line, Payload: strings.Join(fields, ","), Message: err.Error()})
			continue
		}
		metrics.SourceReadCount.WithLabelValues(f.name).Inc()
		return p, nil
	}
}

func (f *FromFile) skip(reason string, err isb.MessageReadErr) {
	metrics.SourceSkipCount.WithLabelValues(f.name, reason).Inc()
	f.logger.Warnw("Skipping input line", zap.Error(err))
}

// bitSizes are the widths of the report fields that follow the type, in input order.
var bitSizes = [positionFields - 1]int{64, 32, 32, 32, 8, 8, 16, 32}

func parse(fields []string) (*types.PositionReport, error) {
	if len(fields) < positionFields {
		return nil, fmt.Errorf("expected at least %d fields, got %d", positionFields, len(fields))
	}
	var v [positionFields - 1]int64
	for i := range v {
		// out of range values fail here instead of wrapping in the conversions below
		n, err := strconv.ParseInt(strings.TrimSpace(fields[i+1]), 10, bitSizes[i])
		if err != nil {
			return nil, fmt.Errorf("field %d: %w", i+1, err)
		}
		v[i] = n
	}
	return &types.PositionReport{
		Time:      v[0],
		VID:       int32(v[1]),
		Speed:     int32(v[2]),
		XWay:      int32(v[3]),
		Lane:      types.Lane(v[4]),
		Direction: types.Direction(v[5]),
		Segment:   int16(v[6]),
		Position:  int32(v[7]),
	}, nil
}

func (f *FromFile) Close() error {
	if f.closer == nil {
		return nil
	}
	return f.closer.Close()
}

// WriteReport writes the report as a line of an input file.
func WriteReport(w *csv.Writer, p *types.PositionReport) error {
	line := make([]string, lineFields)
	for i := range line {
		line[i] = "-1"
	}
	line[0] = positionReportType
	for i, n := range []int64{p.Time, int64(p.VID), int64(p.Speed), int64(p.XWay), int64(p.Lane), int64(p.Direction), int64(p.Segment), int64(p.Position)} {
		line[i+1] = strconv.FormatInt(n, 10)
	}
	return w.Write(line)
}
