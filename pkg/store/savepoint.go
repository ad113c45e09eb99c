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

	"github.com/kraklabs/codedj/pkg/serialize"
)

// Savepoint is a named, timestamped tuple of per-table byte lengths spanning
// an entire superstore. It is immutable once created: two savepoints may
// not share a name, and a table not listed in a savepoint is treated as
// "revert to empty".
type Savepoint struct {
	Name  string
	Time  int64
	sizes map[string]uint64
}

// NewSavepoint creates an empty savepoint; callers populate it with
// AddToSavepoint calls against every table in the superstore before it is
// durably recorded.
func NewSavepoint(name string, unixTime int64) *Savepoint {
	return &Savepoint{Name: name, Time: unixTime, sizes: map[string]uint64{}}
}

// Add records table's confirmed length under this savepoint. It is an error
// to add the same table name twice.
func (sp *Savepoint) Add(table string, length uint64) error {
	if _, exists := sp.sizes[table]; exists {
		return fmt.Errorf("store: table %q already present in savepoint %q", table, sp.Name)
	}
	sp.sizes[table] = length
	return nil
}

// Size returns the recorded byte length for table, or 0 if table is absent
// from this savepoint (meaning: revert that table to empty).
func (sp *Savepoint) Size(table string) uint64 {
	return sp.sizes[table]
}

// Tables returns the set of table names recorded in this savepoint.
func (sp *Savepoint) Tables() []string {
	names := make([]string, 0, len(sp.sizes))
	for name := range sp.sizes {
		names = append(names, name)
	}
	return names
}

// WriteTo implements serialize.Encoder: <name:String><time:i64><sizes:Map<String,u64>>.
func (sp *Savepoint) WriteTo(w *serialize.Writer) error {
	if err := w.WriteString(sp.Name); err != nil {
		return err
	}
	if err := w.WriteInt64(sp.Time); err != nil {
		return err
	}
	if err := w.WriteUint64(uint64(len(sp.sizes))); err != nil {
		return err
	}
	for name, length := range sp.sizes {
		if err := w.WriteString(name); err != nil {
			return err
		}
		if err := w.WriteUint64(length); err != nil {
			return err
		}
	}
	return nil
}

// ReadFrom implements serialize.Decoder.
func (sp *Savepoint) ReadFrom(r *serialize.Reader) error {
	name, err := r.ReadString()
	if err != nil {
		return err
	}
	t, err := r.ReadInt64()
	if err != nil {
		return err
	}
	n, err := r.ReadUint64()
	if err != nil {
		return err
	}
	sizes := make(map[string]uint64, n)
	for i := uint64(0); i < n; i++ {
		tableName, err := r.ReadString()
		if err != nil {
			return err
		}
		length, err := r.ReadUint64()
		if err != nil {
			return err
		}
		sizes[tableName] = length
	}
	sp.Name = name
	sp.Time = t
	sp.sizes = sizes
	return nil
}
