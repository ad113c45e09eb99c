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
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestQueuePopsOldestFirst(t *testing.T) {
	q := NewQueue([]ProjectTask{
		{ProjectID: 1, LastUpdate: 300},
		{ProjectID: 2, LastUpdate: 100},
		{ProjectID: 3, LastUpdate: 200},
	})

	first, ok := q.Pop()
	require.True(t, ok)
	require.Equal(t, uint64(2), first.ProjectID)

	second, ok := q.Pop()
	require.True(t, ok)
	require.Equal(t, uint64(3), second.ProjectID)

	third, ok := q.Pop()
	require.True(t, ok)
	require.Equal(t, uint64(1), third.ProjectID)
}

func TestQueuePopBlocksUntilPush(t *testing.T) {
	q := NewQueue(nil)

	type result struct {
		task ProjectTask
		ok   bool
	}
	done := make(chan result, 1)
	go func() {
		task, ok := q.Pop()
		done <- result{task, ok}
	}()

	select {
	case <-done:
		t.Fatal("Pop returned before any task was pushed")
	case <-time.After(50 * time.Millisecond):
	}

	q.Push(ProjectTask{ProjectID: 42, LastUpdate: 1})

	select {
	case r := <-done:
		require.True(t, r.ok)
		require.Equal(t, uint64(42), r.task.ProjectID)
	case <-time.After(time.Second):
		t.Fatal("Pop never returned after Push")
	}
}

func TestQueueCloseUnblocksPop(t *testing.T) {
	q := NewQueue(nil)

	done := make(chan bool, 1)
	go func() {
		_, ok := q.Pop()
		done <- ok
	}()

	q.Close()

	select {
	case ok := <-done:
		require.False(t, ok)
	case <-time.After(time.Second):
		t.Fatal("Pop never returned after Close")
	}
}

func TestQueueLen(t *testing.T) {
	q := NewQueue([]ProjectTask{{ProjectID: 1}, {ProjectID: 2}})
	require.Equal(t, 2, q.Len())
	q.Pop()
	require.Equal(t, 1, q.Len())
}
