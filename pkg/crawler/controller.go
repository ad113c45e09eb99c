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
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"time"
)

// Controller reads line-oriented commands from an input stream (normally
// stdin) and drives the worker pool's Queue accordingly: `pause` and `run`
// gate further dequeues without disturbing in-flight work, `stop` takes an
// automatic savepoint before cancelling the run, `savepoint` takes one on
// demand, and `kill` terminates immediately with no savepoint at all,
// mirroring the spec's `abort(3)` contract (the operator accepts that the
// next startup restores to the latest savepoint).
type Controller struct {
	Queue     *Queue
	Reporter  *Reporter
	Savepoint func(name string) error
	Cancel    context.CancelFunc
}

// NewController builds a Controller wired to q, r and the savepoint/cancel
// callbacks a `stop` or `savepoint` command should invoke.
func NewController(q *Queue, r *Reporter, savepoint func(name string) error, cancel context.CancelFunc) *Controller {
	return &Controller{Queue: q, Reporter: r, Savepoint: savepoint, Cancel: cancel}
}

// Run reads newline-delimited commands from in until it is closed or
// returns an error, or until a `stop`/`kill` command ends the loop. It is
// meant to run in its own goroutine for the lifetime of one `update`
// invocation.
func (ctl *Controller) Run(in io.Reader) {
	scanner := bufio.NewScanner(in)
	for scanner.Scan() {
		if ctl.dispatch(strings.TrimSpace(scanner.Text())) {
			return
		}
	}
}

// dispatch handles one command line and reports whether the controller
// loop should exit (true for `stop` and `kill`).
func (ctl *Controller) dispatch(cmd string) (exit bool) {
	switch cmd {
	case "":
		return false
	case "pause":
		ctl.Queue.Pause()
		ctl.Reporter.Info("controller", "paused: no new projects will be dequeued")
		return false
	case "run":
		ctl.Queue.Resume()
		ctl.Reporter.Info("controller", "resumed")
		return false
	case "savepoint":
		ctl.takeSavepoint("manual")
		return false
	case "stop":
		ctl.takeSavepoint("stop")
		ctl.Queue.Close()
		if ctl.Cancel != nil {
			ctl.Cancel()
		}
		return true
	case "kill":
		ctl.Reporter.Info("controller", "killing without a savepoint; next startup reverts to the latest one")
		os.Exit(134) // 128 + SIGABRT, matching abort(3)'s conventional exit status
		return true
	default:
		ctl.Reporter.Info("controller", fmt.Sprintf("unrecognized command %q (expected pause/run/stop/kill/savepoint)", cmd))
		return false
	}
}

func (ctl *Controller) takeSavepoint(reason string) {
	name := fmt.Sprintf("%s-%d", reason, time.Now().UnixNano())
	if err := ctl.Savepoint(name); err != nil {
		ctl.Reporter.Error("controller", "savepoint failed", err)
		return
	}
	ctl.Reporter.Info("controller", fmt.Sprintf("savepoint %q created", name))
}
