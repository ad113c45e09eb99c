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

package store

import (
	"fmt"
	"os"

	"github.com/kraklabs/codedj/pkg/serialize"
)

// SavepointLog is the dedicated table inside a datastore that records every
// Savepoint ever created, chronologically, by name. CodeDJ itself decides
// when to checkpoint every other table before appending here; SavepointLog
// only owns the record of what was checkpointed and when.
type SavepointLog struct {
	table *TableWriter
	byName map[string]*Savepoint
	order  []string
}

// OpenSavepointLog opens (or creates) the savepoints table under dir.
func OpenSavepointLog(dir string) (*SavepointLog, error) {
	table, err := OpenTable(dir, "savepoints")
	if err != nil {
		return nil, err
	}
	log := &SavepointLog{table: table, byName: map[string]*Savepoint{}}
	if err := log.load(); err != nil {
		table.Close()
		return nil, err
	}
	return log, nil
}

func (l *SavepointLog) load() error {
	f, err := os.Open(l.table.Path())
	if err != nil {
		return fmt.Errorf("store: open savepoint log: %w", err)
	}
	defer f.Close()

	r := serialize.NewReader(f, 0)
	limit := l.table.ConfirmedLen()
	for r.Offset() < limit {
		if _, err := r.ReadUint64(); err != nil { // record id, unused: name is the real key
			return fmt.Errorf("store: read savepoint log: %w", err)
		}
		sp := &Savepoint{}
		if err := sp.ReadFrom(r); err != nil {
			return fmt.Errorf("store: read savepoint log: %w", err)
		}
		if _, exists := l.byName[sp.Name]; !exists {
			l.order = append(l.order, sp.Name)
		}
		l.byName[sp.Name] = sp
	}
	return nil
}

// Append durably records sp. The caller must have already flushed every
// other table in the superstore and populated sp's per-table sizes; Append
// itself only appends the combined record and flushes the log table.
func (l *SavepointLog) Append(sp *Savepoint) error {
	if _, exists := l.byName[sp.Name]; exists {
		return fmt.Errorf("store: savepoint %q already exists", sp.Name)
	}
	id := uint64(len(l.order))
	if _, err := l.table.Append(id, sp); err != nil {
		return fmt.Errorf("store: append savepoint: %w", err)
	}
	if _, err := l.table.Flush(); err != nil {
		return fmt.Errorf("store: flush savepoint log: %w", err)
	}
	l.byName[sp.Name] = sp
	l.order = append(l.order, sp.Name)
	return nil
}

// Get returns the named savepoint, or (nil, false) if it does not exist.
func (l *SavepointLog) Get(name string) (*Savepoint, bool) {
	sp, ok := l.byName[name]
	return sp, ok
}

// Latest returns the most recently created savepoint, or (nil, false) if
// none exist yet.
func (l *SavepointLog) Latest() (*Savepoint, bool) {
	if len(l.order) == 0 {
		return nil, false
	}
	return l.byName[l.order[len(l.order)-1]], true
}

// Names returns every savepoint name in creation order.
func (l *SavepointLog) Names() []string {
	out := make([]string, len(l.order))
	copy(out, l.order)
	return out
}

// Table exposes the underlying TableWriter, e.g. so it can itself be
// included in a fresh savepoint (a savepoint records the savepoint log's
// own length too, same as any other table).
func (l *SavepointLog) Table() *TableWriter { return l.table }

// Close closes the underlying table.
func (l *SavepointLog) Close() error { return l.table.Close() }
