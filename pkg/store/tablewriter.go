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

// Package store implements CodeDJ's append-only storage engine: binary
// tables with a checkpoint/savepoint mechanism providing crash-consistent
// multi-file transactions and time-travel reads.
package store

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/kraklabs/codedj/pkg/serialize"
)

// CorruptionError is returned by Open when a table's on-disk length doesn't
// match its checkpoint: the table is corrupt and the caller must revert the
// whole datastore to its latest savepoint before any further writes.
type CorruptionError struct {
	Table     string
	OnDisk    int64
	Confirmed int64
}

func (e *CorruptionError) Error() string {
	return fmt.Sprintf("store: table %q is corrupt: on-disk length %d does not match checkpoint %d",
		e.Table, e.OnDisk, e.Confirmed)
}

// TableWriter is an append-only binary file <root>/<name> plus a checkpoint
// file <root>/<name>.checkpoint recording its last confirmed (flushed and
// fsynced) length.
type TableWriter struct {
	mu   sync.Mutex
	name string
	dir  string

	file *os.File
	bw   *bufio.Writer

	// writtenLen is the logical length of the stream including buffered,
	// not-yet-flushed bytes. confirmedLen is the length the checkpoint
	// file currently attests to.
	writtenLen   int64
	confirmedLen int64
}

func tablePath(dir, name string) string      { return filepath.Join(dir, name) }
func checkpointPath(dir, name string) string { return filepath.Join(dir, name) + ".checkpoint" }

// OpenTable opens (or creates) the table named name under dir, validating
// its checkpoint. It returns *CorruptionError if the on-disk length and
// checkpoint disagree; the caller must revert to the latest savepoint
// before retrying.
func OpenTable(dir, name string) (*TableWriter, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("store: mkdir %s: %w", dir, err)
	}

	path := tablePath(dir, name)
	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR, 0o644)
	if err != nil {
		return nil, fmt.Errorf("store: open table %s: %w", name, err)
	}

	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("store: stat table %s: %w", name, err)
	}
	onDisk := info.Size()

	confirmed, err := readCheckpoint(checkpointPath(dir, name))
	if err != nil {
		f.Close()
		return nil, err
	}

	if onDisk != confirmed {
		f.Close()
		return nil, &CorruptionError{Table: name, OnDisk: onDisk, Confirmed: confirmed}
	}

	if _, err := f.Seek(0, os.SEEK_END); err != nil {
		f.Close()
		return nil, fmt.Errorf("store: seek table %s: %w", name, err)
	}

	return &TableWriter{
		name:         name,
		dir:          dir,
		file:         f,
		bw:           bufio.NewWriter(f),
		writtenLen:   onDisk,
		confirmedLen: confirmed,
	}, nil
}

// readCheckpoint returns 0 if the checkpoint file does not exist (a brand
// new table), and errors if the two redundant u64s inside it disagree (a
// torn checkpoint write).
func readCheckpoint(path string) (int64, error) {
	buf, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("store: read checkpoint %s: %w", path, err)
	}
	if len(buf) != 16 {
		return 0, fmt.Errorf("store: checkpoint %s has unexpected length %d", path, len(buf))
	}
	a := binary.LittleEndian.Uint64(buf[0:8])
	b := binary.LittleEndian.Uint64(buf[8:16])
	if a != b {
		return 0, fmt.Errorf("store: checkpoint %s is torn: %d != %d", path, a, b)
	}
	return int64(a), nil
}

func writeCheckpoint(path string, length int64) error {
	var buf [16]byte
	binary.LittleEndian.PutUint64(buf[0:8], uint64(length))
	binary.LittleEndian.PutUint64(buf[8:16], uint64(length))

	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return fmt.Errorf("store: write checkpoint %s: %w", path, err)
	}
	defer f.Close()

	if _, err := f.Write(buf[:]); err != nil {
		return fmt.Errorf("store: write checkpoint %s: %w", path, err)
	}
	return f.Sync()
}

// Name returns the table's name, as used on disk and in savepoints.
func (t *TableWriter) Name() string { return t.name }

// Len returns the table's current logical length, including buffered bytes
// not yet confirmed by a checkpoint.
func (t *TableWriter) Len() int64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.writtenLen
}

// ConfirmedLen returns the length the last Flush (or Open) confirmed.
func (t *TableWriter) ConfirmedLen() int64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.confirmedLen
}

// Append writes id followed by the serialized value at the current offset
// and returns that offset. The write is buffered; durability is only
// guaranteed after the next successful Flush.
func (t *TableWriter) Append(id uint64, value serialize.Encoder) (int64, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	offset := t.writtenLen
	w := serialize.NewWriter(t.bw, t.writtenLen)

	if err := w.WriteUint64(id); err != nil {
		return 0, fmt.Errorf("store: append to %s: %w", t.name, err)
	}
	if err := value.WriteTo(w); err != nil {
		return 0, fmt.Errorf("store: append to %s: %w", t.name, err)
	}

	t.writtenLen = w.Offset()
	return offset, nil
}

// Flush flushes buffered bytes to the OS, fsyncs the file, then writes the
// confirmed length twice into the checkpoint file (duplicated to catch torn
// writes) and fsyncs that too. It returns the newly confirmed length.
func (t *TableWriter) Flush() (int64, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.flushLocked()
}

func (t *TableWriter) flushLocked() (int64, error) {
	if err := t.bw.Flush(); err != nil {
		return 0, fmt.Errorf("store: flush table %s: %w", t.name, err)
	}
	if err := t.file.Sync(); err != nil {
		return 0, fmt.Errorf("store: fsync table %s: %w", t.name, err)
	}
	if err := writeCheckpoint(checkpointPath(t.dir, t.name), t.writtenLen); err != nil {
		return 0, err
	}
	t.confirmedLen = t.writtenLen
	return t.confirmedLen, nil
}

// RevertToSavepoint truncates the table to the byte length recorded in sp
// (0 if the table is absent from sp), rewrites the checkpoint to match, and
// reopens the write buffer positioned at the new end.
func (t *TableWriter) RevertToSavepoint(sp *Savepoint) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	target := int64(sp.Size(t.name))

	if err := t.file.Truncate(target); err != nil {
		return fmt.Errorf("store: revert table %s: %w", t.name, err)
	}
	if _, err := t.file.Seek(target, os.SEEK_SET); err != nil {
		return fmt.Errorf("store: revert table %s: %w", t.name, err)
	}
	if err := writeCheckpoint(checkpointPath(t.dir, t.name), target); err != nil {
		return err
	}

	t.bw = bufio.NewWriter(t.file)
	t.writtenLen = target
	t.confirmedLen = target
	return nil
}

// AddToSavepoint flushes the table, then records its confirmed length into
// sp under its table name. It is an error to add the same table twice to
// one savepoint.
func (t *TableWriter) AddToSavepoint(sp *Savepoint) error {
	length, err := t.Flush()
	if err != nil {
		return err
	}
	return sp.Add(t.name, uint64(length))
}

// Verify reports whether the table's on-disk length matches its checkpoint,
// without attempting to fix a discrepancy. Open already performs this check;
// Verify exists for periodic health checks on a table that may have
// accumulated a tail through a non-TableWriter write (never expected in
// normal operation, but cheap to guard against).
func (t *TableWriter) Verify() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	info, err := t.file.Stat()
	if err != nil {
		return fmt.Errorf("store: stat table %s: %w", t.name, err)
	}
	if info.Size() != t.confirmedLen {
		return &CorruptionError{Table: t.name, OnDisk: info.Size(), Confirmed: t.confirmedLen}
	}
	return nil
}

// Close flushes and closes the underlying file.
func (t *TableWriter) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if _, err := t.flushLocked(); err != nil {
		return err
	}
	return t.file.Close()
}

// Path returns the absolute path to the table's data file, for use by
// TableIterator and IndexedReader which open their own read-only handles.
func (t *TableWriter) Path() string {
	return tablePath(t.dir, t.name)
}
