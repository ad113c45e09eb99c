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
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestControllerPauseBlocksPopUntilRun(t *testing.T) {
	q := NewQueue([]ProjectTask{{ProjectID: 1}})
	r := NewReporter()
	defer r.Close()
	ctl := NewController(q, r, func(string) error { return nil }, nil)

	ctl.dispatch("pause")
	require.True(t, q.Paused())

	ctl.dispatch("run")
	require.False(t, q.Paused())

	task, ok := q.Pop()
	require.True(t, ok)
	require.Equal(t, uint64(1), task.ProjectID)
}

func TestControllerStopTakesSavepointAndCloses(t *testing.T) {
	q := NewQueue(nil)
	r := NewReporter()
	defer r.Close()

	var savedName string
	cancelled := false
	ctl := NewController(q, r, func(name string) error {
		savedName = name
		return nil
	}, func() { cancelled = true })

	exit := ctl.dispatch("stop")
	require.True(t, exit)
	require.True(t, cancelled)
	require.Contains(t, savedName, "stop-")

	_, ok := q.Pop()
	require.False(t, ok, "stop must close the queue")
}

func TestControllerSavepointCommandDoesNotStopTheQueue(t *testing.T) {
	q := NewQueue([]ProjectTask{{ProjectID: 7}})
	r := NewReporter()
	defer r.Close()

	var names []string
	ctl := NewController(q, r, func(name string) error {
		names = append(names, name)
		return nil
	}, nil)

	exit := ctl.dispatch("savepoint")
	require.False(t, exit)
	require.Len(t, names, 1)
	require.True(t, strings.HasPrefix(names[0], "manual-"))

	task, ok := q.Pop()
	require.True(t, ok)
	require.Equal(t, uint64(7), task.ProjectID)
}

func TestControllerRunFromReader(t *testing.T) {
	q := NewQueue(nil)
	r := NewReporter()
	defer r.Close()

	cancelled := false
	ctl := NewController(q, r, func(string) error { return nil }, func() { cancelled = true })
	ctl.Run(strings.NewReader("pause\nrun\nstop\n"))

	require.True(t, cancelled)
}
