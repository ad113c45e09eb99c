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

package main

import (
	"fmt"
	"os"
	"time"

	"github.com/fsnotify/fsnotify"
	flag "github.com/spf13/pflag"

	"github.com/kraklabs/codedj/internal/errors"
	"github.com/kraklabs/codedj/internal/ui"
	"github.com/kraklabs/codedj/pkg/codedj"
)

// runLog executes the 'log' CLI command, printing the superstore's command
// history: one line per codedj invocation that has ever touched this
// superstore, each paired with the duration it ran for.
func runLog(args []string, globals GlobalFlags) error {
	fs := flag.NewFlagSet("log", flag.ContinueOnError)
	follow := fs.Bool("follow", false, "Keep watching and print new entries as commands start and finish")
	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, `Usage: codedj log [options]

Description:
  Print the superstore's command history: every codedj invocation that
  has run against this superstore, in order, paired with the time it
  took. A command still in progress shows no end time.

Options:
`)
		fs.PrintDefaults()
	}
	if err := fs.Parse(args); err != nil {
		return errors.NewInputError("Invalid arguments", err.Error(), "Run 'codedj log --help' for usage")
	}

	db, err := codedj.Open(globals.Root)
	if err != nil {
		return openError(err)
	}
	defer db.Close()

	entries, err := db.CommandLogEntries()
	if err != nil {
		return errors.NewDatabaseError("Cannot read command log", err.Error(), "Revert to the latest savepoint", err)
	}
	printed := printCommandLog(entries, 0, globals)

	if !*follow {
		return nil
	}
	return followCommandLog(db, printed, globals)
}

// printCommandLog prints entries[from:] and returns the new total printed
// count, so a caller following the log knows where to resume from.
func printCommandLog(entries []codedj.CommandLogEntry, from int, globals GlobalFlags) int {
	var pending *codedj.CommandLogEntry
	for i := 0; i < from; i++ {
		if entries[i].Tag == codedj.CommandStartTag {
			pending = &entries[i]
		} else {
			pending = nil
		}
	}

	for i := from; i < len(entries); i++ {
		e := entries[i]
		if e.Tag == codedj.CommandStartTag {
			pending = &entries[i]
			ts := time.Unix(e.Time, 0).Format(time.RFC3339)
			if globals.Quiet {
				continue
			}
			ui.Infof("%s  start  v%s  %s", ts, e.Version, e.Cmd)
		} else {
			ts := time.Unix(e.Time, 0).Format(time.RFC3339)
			if pending != nil {
				dur := time.Duration(e.Time-pending.Time) * time.Second
				if !globals.Quiet {
					ui.Infof("%s  end    (%s)", ts, dur)
				}
			} else if !globals.Quiet {
				ui.Infof("%s  end", ts)
			}
			pending = nil
		}
	}
	return len(entries)
}

// followCommandLog watches the superstore's root directory for writes and
// reprints any command log entries appended since the last read, until the
// process is interrupted. codedj's command log is append-only, so a plain
// re-read past the last seen count is always correct: no entry is ever
// rewritten once written.
func followCommandLog(db *codedj.CodeDJ, seen int, globals GlobalFlags) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return errors.NewInternalError("Cannot watch superstore directory", err.Error(), "This is a bug", err)
	}
	defer watcher.Close()

	if err := watcher.Add(globals.Root); err != nil {
		return errors.NewPermissionError("Cannot watch superstore directory", err.Error(), "Check the --root path", err)
	}

	for {
		select {
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			entries, err := db.CommandLogEntries()
			if err != nil {
				return errors.NewDatabaseError("Cannot read command log", err.Error(), "Revert to the latest savepoint", err)
			}
			if len(entries) > seen {
				seen = printCommandLog(entries, seen, globals)
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			return errors.NewInternalError("Error watching superstore directory", err.Error(), "This is a bug", err)
		}
	}
}
