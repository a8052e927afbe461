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

package window

import (
	"sort"

	"github.com/numaproj/linearroad/pkg/watermark/wmb"
)

// Window is the state of one minute, per key.
type Window[K comparable, S any] struct {
	Minute wmb.Minute
	State  map[K]S
}

// NewWindow returns an empty window for the minute.
func NewWindow[K comparable, S any](m wmb.Minute) *Window[K, S] {
	return &Window[K, S]{Minute: m, State: make(map[K]S)}
}

// SortedKeys returns the keys of the window ordered by less.
func (w *Window[K, S]) SortedKeys(less func(a, b K) bool) []K {
	keys := make([]K, 0, len(w.State))
	for k := range w.State {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return less(keys[i], keys[j]) })
	return keys
}

// SortedWindowList is a list of windows sorted by minute from lowest to highest. It is owned by a single
// reducer and is not safe for concurrent use.
type SortedWindowList[K comparable, S any] struct {
	windows []*Window[K, S]
}

// NewSortedWindowList implements a window list ordered by minute. The Front/Head of the list will always have the
// smallest element while the End/Tail will have the largest element.
func NewSortedWindowList[K comparable, S any]() *SortedWindowList[K, S] {
	return &SortedWindowList[K, S]{
		windows: make([]*Window[K, S], 0),
	}
}

// InsertIfNotPresent returns the window of the minute, creating it if not present. The bool is true when
// the window was already present.
func (s *SortedWindowList[K, S]) InsertIfNotPresent(m wmb.Minute) (*Window[K, S], bool) {
	// windows are mostly created in order, check the tail first
	if n := len(s.windows); n > 0 && s.windows[n-1].Minute == m {
		return s.windows[n-1], true
	}
	index := sort.Search(len(s.windows), func(i int) bool {
		return s.windows[i].Minute >= m
	})
	if index < len(s.windows) && s.windows[index].Minute == m {
		return s.windows[index], true
	}
	window := NewWindow[K, S](m)
	s.windows = append(s.windows, nil)
	copy(s.windows[index+1:], s.windows[index:])
	s.windows[index] = window
	return window, false
}

// RemoveWindows removes the windows of minutes smaller than or equal to the given minute and returns them in order.
func (s *SortedWindowList[K, S]) RemoveWindows(m wmb.Minute) []*Window[K, S] {
	index := sort.Search(len(s.windows), func(i int) bool {
		return s.windows[i].Minute > m
	})

	removed := make([]*Window[K, S], index)
	copy(removed, s.windows[:index])

	s.windows = s.windows[index:]

	return removed
}

// Len returns the number of windows.
func (s *SortedWindowList[K, S]) Len() int {
	return len(s.windows)
}

// Front returns the smallest element from the list.
func (s *SortedWindowList[K, S]) Front() *Window[K, S] {
	if len(s.windows) == 0 {
		return nil
	}
	return s.windows[0]
}
