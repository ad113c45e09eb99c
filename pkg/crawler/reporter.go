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
	"fmt"
	"os"
	"sync"

	"github.com/fatih/color"

	"github.com/kraklabs/codedj/internal/ui"
)

// MessageKind tags a TaskMessage's payload.
type MessageKind int

const (
	MsgStart MessageKind = iota
	MsgDone
	MsgError
	MsgProgress
	MsgInfo
	MsgExtra
	MsgColor
)

// TaskMessage is one event a worker reports about the task it is currently
// running (one project update). Name identifies the task across its whole
// lifetime, so the terminal reporter can prefix concurrent tasks' output
// with their name when more than one is in flight at once.
type TaskMessage struct {
	Name     string
	Kind     MessageKind
	Info     string
	Cause    error
	Progress int
	Max      int
	Color    color.Attribute
}

// Reporter fans worker TaskMessages into a single terminal writer,
// serializing otherwise-interleaved output from a worker pool. Send never
// blocks the caller: messages queue internally and drain as fast as the
// terminal loop can print them, since a worker finishing its 1000th project
// should never stall on a slow terminal.
type Reporter struct {
	in   chan TaskMessage
	done chan struct{}

	mu      sync.Mutex
	buf     []TaskMessage
	nonEmpty chan struct{}
}

// NewReporter starts the terminal loop in a background goroutine and
// returns a Reporter ready to accept Send calls.
func NewReporter() *Reporter {
	r := &Reporter{
		in:       make(chan TaskMessage),
		done:     make(chan struct{}),
		nonEmpty: make(chan struct{}, 1),
	}
	go r.buffer()
	go r.run()
	return r
}

// buffer is the unbounded-queue half of the pattern: it never blocks a
// caller of Send, appending to an internal slice instead, and wakes run
// whenever the slice becomes non-empty.
func (r *Reporter) buffer() {
	for msg := range r.in {
		r.mu.Lock()
		r.buf = append(r.buf, msg)
		r.mu.Unlock()
		select {
		case r.nonEmpty <- struct{}{}:
		default:
		}
	}
	close(r.nonEmpty)
}

func (r *Reporter) pop() (TaskMessage, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.buf) == 0 {
		return TaskMessage{}, false
	}
	msg := r.buf[0]
	r.buf = r.buf[1:]
	return msg, true
}

// run is the terminal loop: it maintains which task names are currently in
// flight and their assigned prefix color, printing each message as it
// drains, and exits once the input channel is closed and drained.
func (r *Reporter) run() {
	defer close(r.done)

	tasks := map[string]color.Attribute{}
	for range r.nonEmpty {
		for {
			msg, ok := r.pop()
			if !ok {
				break
			}
			r.handle(tasks, msg)
		}
	}
	for {
		msg, ok := r.pop()
		if !ok {
			return
		}
		r.handle(tasks, msg)
	}
}

func (r *Reporter) handle(tasks map[string]color.Attribute, msg TaskMessage) {
	switch msg.Kind {
	case MsgStart:
		tasks[msg.Name] = color.FgCyan
		r.print(tasks, msg.Name, msg.Info)
	case MsgDone:
		r.print(tasks, msg.Name, msg.Info)
		delete(tasks, msg.Name)
	case MsgError:
		text := msg.Info
		if msg.Cause != nil {
			text = fmt.Sprintf("%s: %v", text, msg.Cause)
		}
		fmt.Fprintln(os.Stderr, r.prefix(tasks, msg.Name)+ui.Red(text))
		delete(tasks, msg.Name)
	case MsgProgress:
		r.print(tasks, msg.Name, fmt.Sprintf("%d/%d", msg.Progress, msg.Max))
	case MsgInfo, MsgExtra:
		r.print(tasks, msg.Name, msg.Info)
	case MsgColor:
		tasks[msg.Name] = msg.Color
	}
}

// prefix renders "[name] " when more than one task is currently in flight,
// colored per that task's assignment, and nothing when only one is (the
// common case of a small, sequential crawl).
func (r *Reporter) prefix(tasks map[string]color.Attribute, name string) string {
	if len(tasks) <= 1 {
		return ""
	}
	attr, ok := tasks[name]
	if !ok {
		attr = color.FgWhite
	}
	return color.New(attr).Sprintf("[%s] ", name)
}

func (r *Reporter) print(tasks map[string]color.Attribute, name, text string) {
	fmt.Println(r.prefix(tasks, name) + text)
}

// Send queues msg for the terminal loop. Never blocks.
func (r *Reporter) Send(msg TaskMessage) { r.in <- msg }

// Start reports that name has begun, with a human-readable description.
func (r *Reporter) Start(name, info string) { r.Send(TaskMessage{Name: name, Kind: MsgStart, Info: info}) }

// Done reports that name finished successfully.
func (r *Reporter) Done(name, info string) { r.Send(TaskMessage{Name: name, Kind: MsgDone, Info: info}) }

// Error reports that name failed with cause.
func (r *Reporter) Error(name, info string, cause error) {
	r.Send(TaskMessage{Name: name, Kind: MsgError, Info: info, Cause: cause})
}

// Progress reports name's progress toward max.
func (r *Reporter) Progress(name string, progress, max int) {
	r.Send(TaskMessage{Name: name, Kind: MsgProgress, Progress: progress, Max: max})
}

// Info reports a plain informational line for name.
func (r *Reporter) Info(name, info string) { r.Send(TaskMessage{Name: name, Kind: MsgInfo, Info: info}) }

// Close stops accepting messages and blocks until every queued message has
// been printed.
func (r *Reporter) Close() {
	close(r.in)
	<-r.done
}
