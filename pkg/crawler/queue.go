// Copyright 2025 KrakLabs
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published
// by the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with this program. If not, see <https://www.gnu.org/licenses/>.
//
// For commercial licensing, contact: licensing@kraklabs.com
//
// SPDX-License-Identifier: AGPL-3.0-or-later

package crawler

import (
	"container/heap"
	"sync"
)

// ProjectTask is one unit of work: a project id and the time it was last
// (successfully or unsuccessfully) updated, used to order the queue so the
// least-recently-updated project is always picked next.
type ProjectTask struct {
	ProjectID  uint64
	LastUpdate int64
}

type taskHeap []ProjectTask

func (h taskHeap) Len() int { return len(h) }
func (h taskHeap) Less(i, j int) bool {
	if h[i].LastUpdate != h[j].LastUpdate {
		return h[i].LastUpdate < h[j].LastUpdate
	}
	return h[i].ProjectID < h[j].ProjectID
}
func (h taskHeap) Swap(i, j int)       { h[i], h[j] = h[j], h[i] }
func (h *taskHeap) Push(x interface{}) { *h = append(*h, x.(ProjectTask)) }
func (h *taskHeap) Pop() interface{} {
	old := *h
	n := len(old)
	item := old[n-1]
	*h = old[:n-1]
	return item
}

// Queue is a priority queue of ProjectTasks ordered by ascending
// LastUpdate (oldest first), shared by every worker in the pool. Pop
// blocks until a task is available, the queue is closed, or (while
// paused) until Resume is called.
type Queue struct {
	mu     sync.Mutex
	cond   *sync.Cond
	items  taskHeap
	closed bool
	paused bool
}

// NewQueue builds a Queue preloaded with tasks.
func NewQueue(tasks []ProjectTask) *Queue {
	q := &Queue{items: taskHeap(tasks)}
	q.cond = sync.NewCond(&q.mu)
	heap.Init(&q.items)
	return q
}

// Push adds a task, waking one blocked Pop call.
func (q *Queue) Push(t ProjectTask) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return
	}
	heap.Push(&q.items, t)
	q.cond.Signal()
}

// Pop blocks until a task is available or the queue is closed, in which
// case it returns (ProjectTask{}, false). While the queue is paused, Pop
// blocks even if tasks are queued, as if it were empty.
func (q *Queue) Pop() (ProjectTask, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	for (len(q.items) == 0 || q.paused) && !q.closed {
		q.cond.Wait()
	}
	if q.closed || len(q.items) == 0 {
		return ProjectTask{}, false
	}
	return heap.Pop(&q.items).(ProjectTask), true
}

// Pause stops Pop from handing out further tasks until Resume is called.
// Work already dequeued by a worker is unaffected; the controller's
// `pause` command takes effect at the next queue boundary, per the
// crawler's cancellation contract.
func (q *Queue) Pause() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.paused = true
}

// Resume reverses Pause, waking every blocked Pop call.
func (q *Queue) Resume() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.paused = false
	q.cond.Broadcast()
}

// Paused reports whether the queue is currently paused.
func (q *Queue) Paused() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.paused
}

// Len reports the number of tasks currently queued.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// Close wakes every blocked Pop call, which then return false. Safe to
// call more than once.
func (q *Queue) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.closed = true
	q.cond.Broadcast()
}
