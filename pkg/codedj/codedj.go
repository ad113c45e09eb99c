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

package codedj

import (
	"encoding/binary"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/kraklabs/codedj/pkg/datastore"
	"github.com/kraklabs/codedj/pkg/store"
)

// CurrentCommandFileName is the sentinel recording an in-flight (or
// uncleanly terminated) command as a byte offset into the command log.
const CurrentCommandFileName = ".current-command"

// ErrUnterminatedCommand is returned by Open when the current-command
// sentinel is present: a prior command did not call EndCommand before the
// process ended. The operator must revert to the latest savepoint before
// this superstore can be opened again.
var ErrUnterminatedCommand = errors.New("codedj: prior command did not terminate cleanly; revert to the latest savepoint")

// ErrAlreadyExists is returned by Create when root already holds a
// superstore and force was not requested.
var ErrAlreadyExists = errors.New("codedj: superstore already exists")

// ErrCommandInProgress is returned by StartCommand if called while another
// command is already recorded as in-flight.
var ErrCommandInProgress = errors.New("codedj: a command is already in progress")

// CodeDJ is the locked superstore: a Datastore plus a command log,
// enforcing single-writer access and a single in-flight modifying command.
type CodeDJ struct {
	root string
	lock *store.FolderLock

	mu         sync.Mutex
	commandLog *store.TableWriter
	savepoints *store.SavepointLog
	nextLogID  uint64
	inFlight   bool

	Datastore *datastore.Datastore
}

func commandMarkerPath(root string) string { return filepath.Join(root, CurrentCommandFileName) }

// Create initializes a fresh superstore at root. It fails with
// ErrAlreadyExists if root already holds a superstore (its "log" command
// table exists) unless force is set; with force, the existing superstore
// is opened and its tables are kept.
func Create(root string, force bool) (*CodeDJ, error) {
	if _, err := os.Stat(filepath.Join(root, "log")); err == nil && !force {
		return nil, ErrAlreadyExists
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("codedj: create %s: %w", root, err)
	}
	return Open(root)
}

// Open opens an existing (or freshly created) superstore at root, taking
// its FolderLock. It fails with ErrUnterminatedCommand if a prior command
// was left in-flight.
func Open(root string) (*CodeDJ, error) {
	lock, err := store.AcquireFolderLock(root)
	if err != nil {
		return nil, err
	}

	if _, err := os.Stat(commandMarkerPath(root)); err == nil {
		lock.Release()
		return nil, ErrUnterminatedCommand
	} else if !os.IsNotExist(err) {
		lock.Release()
		return nil, fmt.Errorf("codedj: stat current-command marker: %w", err)
	}

	commandLog, err := store.OpenTable(root, "log")
	if err != nil {
		lock.Release()
		return nil, err
	}
	savepoints, err := store.OpenSavepointLog(root)
	if err != nil {
		commandLog.Close()
		lock.Release()
		return nil, err
	}
	ds, err := datastore.Open(root)
	if err != nil {
		savepoints.Close()
		commandLog.Close()
		lock.Release()
		return nil, err
	}

	nextLogID, err := countLogEntries(commandLog)
	if err != nil {
		ds.Close()
		savepoints.Close()
		commandLog.Close()
		lock.Release()
		return nil, err
	}

	return &CodeDJ{
		root:       root,
		lock:       lock,
		commandLog: commandLog,
		savepoints: savepoints,
		nextLogID:  nextLogID,
		Datastore:  ds,
	}, nil
}

func countLogEntries(table *store.TableWriter) (uint64, error) {
	var count uint64
	it, err := store.NewIterator(table.Path(), table.ConfirmedLen(), DecodeCommandLogEntry)
	if err != nil {
		return 0, err
	}
	err = it.Each(func(uint64, CommandLogEntry) error {
		count++
		return nil
	})
	return count, err
}

// StartCommand records a CommandStart entry for the invocation described by
// version and argv, then writes the current-command sentinel. It fails if a
// command is already recorded as in-flight.
func (c *CodeDJ) StartCommand(version, argv string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.inFlight {
		return ErrCommandInProgress
	}

	offset, err := c.commandLog.Append(c.nextLogID, CommandLogEntry{
		Tag:     CommandStartTag,
		Time:    time.Now().Unix(),
		Version: version,
		Cmd:     argv,
	})
	if err != nil {
		return fmt.Errorf("codedj: start command: %w", err)
	}
	c.nextLogID++
	if _, err := c.commandLog.Flush(); err != nil {
		return fmt.Errorf("codedj: start command: %w", err)
	}

	if err := writeCommandMarker(commandMarkerPath(c.root), offset); err != nil {
		return err
	}
	c.inFlight = true
	return nil
}

// EndCommand records a CommandEnd entry and clears the current-command
// sentinel. It is only valid following a successful StartCommand.
func (c *CodeDJ) EndCommand() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.inFlight {
		return fmt.Errorf("codedj: end command: no command in progress")
	}

	if _, err := c.commandLog.Append(c.nextLogID, CommandLogEntry{
		Tag:  CommandEndTag,
		Time: time.Now().Unix(),
	}); err != nil {
		return fmt.Errorf("codedj: end command: %w", err)
	}
	c.nextLogID++
	if _, err := c.commandLog.Flush(); err != nil {
		return fmt.Errorf("codedj: end command: %w", err)
	}

	if err := os.Remove(commandMarkerPath(c.root)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("codedj: end command: %w", err)
	}
	c.inFlight = false
	return nil
}

func writeCommandMarker(path string, offset int64) error {
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], uint64(offset))
	return os.WriteFile(path, buf[:], 0o644)
}

// Savepoint flushes and records a new named savepoint spanning the command
// log and every table in the Datastore (including every substore opened so
// far).
func (c *CodeDJ) Savepoint(name string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	sp := store.NewSavepoint(name, time.Now().Unix())
	if err := c.commandLog.AddToSavepoint(sp); err != nil {
		return err
	}
	if err := c.Datastore.AddToSavepoint(sp); err != nil {
		return err
	}
	return c.savepoints.Append(sp)
}

// RevertToSavepoint reverts the command log and the entire Datastore to the
// named savepoint. It does not touch the superstore's own lock/marker
// files; callers typically call this only while holding the lock, before
// any StartCommand.
func (c *CodeDJ) RevertToSavepoint(name string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	sp, ok := c.savepoints.Get(name)
	if !ok {
		return fmt.Errorf("codedj: no such savepoint %q", name)
	}
	if err := c.commandLog.RevertToSavepoint(sp); err != nil {
		return err
	}
	if err := c.Datastore.RevertToSavepoint(sp); err != nil {
		return err
	}

	nextLogID, err := countLogEntries(c.commandLog)
	if err != nil {
		return err
	}
	c.nextLogID = nextLogID
	return nil
}

// RevertToLatestSavepoint reverts to the most recently created savepoint.
func (c *CodeDJ) RevertToLatestSavepoint() error {
	latest, ok := c.savepoints.Latest()
	if !ok {
		return fmt.Errorf("codedj: no savepoint to revert to")
	}
	return c.RevertToSavepoint(latest.Name)
}

// CommandLogEntries returns every command-log entry in append order, for
// the `log` CLI command.
func (c *CodeDJ) CommandLogEntries() ([]CommandLogEntry, error) {
	var entries []CommandLogEntry
	it, err := store.NewIterator(c.commandLog.Path(), c.commandLog.ConfirmedLen(), DecodeCommandLogEntry)
	if err != nil {
		return nil, err
	}
	err = it.Each(func(_ uint64, e CommandLogEntry) error {
		entries = append(entries, e)
		return nil
	})
	return entries, err
}

// Close flushes and closes every underlying table, then releases the
// FolderLock.
func (c *CodeDJ) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.Datastore.Close(); err != nil {
		return err
	}
	if err := c.savepoints.Close(); err != nil {
		return err
	}
	if err := c.commandLog.Close(); err != nil {
		return err
	}
	return c.lock.Release()
}
