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

// Package shuffle routes data messages to the partitions of the consuming stage. Every message with the same
// key lands on the same partition, which owns all state of that key.
package shuffle

import (
	"encoding/binary"
	"hash"

	"github.com/spaolacci/murmur3"

	"github.com/numaproj/linearroad/pkg/isb"
	"github.com/numaproj/linearroad/pkg/types"
	"github.com/numaproj/linearroad/pkg/udferr"
)

// KeyFunc appends the partitioning key of the record to buf. It returns false if the record has no key.
type KeyFunc func(buf []byte, rec types.Record) ([]byte, bool)

// Shuffle shuffles messages among the partitions of one stage. It is not safe for concurrent use, every
// producer owns its own.
type Shuffle struct {
	partitions int
	key        KeyFunc
	hash       hash.Hash32
	buf        []byte
}

// NewShuffle returns a shuffle over the given number of partitions, keyed by key.
func NewShuffle(partitions int, key KeyFunc) *Shuffle {
	return &Shuffle{
		partitions: partitions,
		key:        key,
		hash:       murmur3.New32(),
		buf:        make([]byte, 0, 16),
	}
}

// Partition returns the partition the data message belongs to. A record the key function cannot key is a
// wiring defect and fails with a NonRetryable error.
func (s *Shuffle) Partition(msg *isb.Message) (int32, error) {
	if s.partitions <= 1 {
		return 0, nil
	}
	var ok bool
	s.buf, ok = s.key(s.buf[:0], msg.Record)
	if !ok {
		return 0, udferr.Newf(udferr.NonRetryable, "no partitioning key for %T on %s", msg.Record, msg.Stream)
	}
	return int32(s.generateHash(s.buf) % uint32(s.partitions)), nil
}

func (s *Shuffle) generateHash(key []byte) uint32 {
	s.hash.Reset()
	_, _ = s.hash.Write(key)
	return s.hash.Sum32()
}

// ByVehicle keys the records of one vehicle.
func ByVehicle(buf []byte, rec types.Record) ([]byte, bool) {
	switch r := rec.(type) {
	case *types.PositionReport:
		return binary.BigEndian.AppendUint32(buf, uint32(r.VID)), true
	case *types.VehicleSpeed:
		return binary.BigEndian.AppendUint32(buf, uint32(r.VID)), true
	case *types.TollNotification:
		return binary.BigEndian.AppendUint32(buf, uint32(r.VID)), true
	}
	return buf, false
}

// BySegment keys the records of one segment of one direction of one expressway.
func BySegment(buf []byte, rec types.Record) ([]byte, bool) {
	k, ok := segmentKey(rec)
	if !ok {
		return buf, false
	}
	buf = binary.BigEndian.AppendUint32(buf, uint32(k.XWay))
	buf = binary.BigEndian.AppendUint16(buf, uint16(k.Segment))
	return append(buf, byte(k.Direction)), true
}

// ByExpressway keys the records of one direction of one expressway.
func ByExpressway(buf []byte, rec types.Record) ([]byte, bool) {
	k, ok := segmentKey(rec)
	if !ok {
		return buf, false
	}
	buf = binary.BigEndian.AppendUint32(buf, uint32(k.XWay))
	return append(buf, byte(k.Direction)), true
}

func segmentKey(rec types.Record) (types.SegmentKey, bool) {
	switch r := rec.(type) {
	case *types.PositionReport:
		return r.SegmentKey(), true
	case *types.VehicleSpeed:
		return r.SegmentKey, true
	case *types.SegmentSpeed:
		return r.SegmentKey, true
	case *types.CarCount:
		return r.SegmentKey, true
	case *types.Lav:
		return r.SegmentKey, true
	case *types.Accident:
		return r.SegmentKey, true
	}
	return types.SegmentKey{}, false
}
