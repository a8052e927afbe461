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

package queue

// OverflowQueue is a queue with max size, the oldest elements automatically overflow.
// It is owned by a single stage instance and is not safe for concurrent use.
type OverflowQueue[T any] struct {
	elements []T
	maxSize  int
}

func New[T any](size int) *OverflowQueue[T] {
	return &OverflowQueue[T]{
		elements: make([]T, 0, size),
		maxSize:  size,
	}
}

// Append adds an element to the queue
func (q *OverflowQueue[T]) Append(value T) {
	if len(q.elements) >= q.maxSize {
		copy(q.elements, q.elements[1:])
		q.elements = q.elements[:len(q.elements)-1]
	}
	q.elements = append(q.elements, value)
}

// Newest returns the most recently appended element.
func (q *OverflowQueue[T]) Newest() (T, bool) {
	var zero T
	if len(q.elements) == 0 {
		return zero, false
	}
	return q.elements[len(q.elements)-1], true
}

// Full reports whether the queue holds max size elements.
func (q *OverflowQueue[T]) Full() bool {
	return len(q.elements) == q.maxSize
}

// All reports whether every element satisfies f. It is false for an empty queue.
func (q *OverflowQueue[T]) All(f func(T) bool) bool {
	if len(q.elements) == 0 {
		return false
	}
	for _, e := range q.elements {
		if !f(e) {
			return false
		}
	}
	return true
}
