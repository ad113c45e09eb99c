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

// Package mapping implements CodeDJ's dedup layer: a hash-keyed key minted
// to a dense id, backed by an append-only (Id, Key) table so the in-memory
// map can always be reconstructed on restart.
package mapping

import (
	"fmt"
	"sync"

	"github.com/kraklabs/codedj/pkg/serialize"
	"github.com/kraklabs/codedj/pkg/store"
)

// Key is any value a Mapping can dedup on: it must round-trip through the
// serialize package and support equality as a Go map key.
type Key interface {
	comparable
	serialize.Encoder
}

// DecodeKeyFunc decodes one Key from a reader, mirroring store.DecodeFunc.
type DecodeKeyFunc[K Key] func(r *serialize.Reader) (K, error)

// Mapping is a hash/key→id dedup table: an in-memory map for O(1) lookup,
// backed by a TableWriter recording (id, key) so the map can be rebuilt from
// disk. One Mapping instance exists per substore per entity kind (commits,
// hashes, paths, users).
type Mapping[K Key] struct {
	mu      sync.Mutex
	table   *store.TableWriter
	decode  DecodeKeyFunc[K]
	byKey   map[K]uint64
	nextID  uint64
}

// Open opens (or creates) the mapping's backing table under dir named name,
// then loads the in-memory map from whatever is already durable.
func Open[K Key](dir, name string, decode DecodeKeyFunc[K]) (*Mapping[K], error) {
	table, err := store.OpenTable(dir, name)
	if err != nil {
		return nil, err
	}
	m := &Mapping[K]{table: table, decode: decode, byKey: map[K]uint64{}}
	if err := m.load(); err != nil {
		table.Close()
		return nil, err
	}
	return m, nil
}

// load populates the in-memory map by iterating every durable record in the
// backing table, in append order, so later records for the same key (which
// should never happen in practice — ids are keys here, not values) simply
// overwrite earlier ones.
func (m *Mapping[K]) load() error {
	it, err := store.NewIterator(m.table.Path(), m.table.ConfirmedLen(), m.decode)
	if err != nil {
		return fmt.Errorf("mapping: load %s: %w", m.table.Name(), err)
	}
	var count uint64
	err = it.Each(func(id uint64, key K) error {
		m.byKey[key] = id
		count++
		return nil
	})
	if err != nil {
		return fmt.Errorf("mapping: load %s: %w", m.table.Name(), err)
	}
	m.nextID = count
	return nil
}

// GetOrCreate returns the id for key, minting a fresh one and durably
// appending (id, key) to the backing table if key has not been seen before.
// The append is buffered; callers are responsible for flushing the
// mapping's table (directly, or via the enclosing substore/savepoint) before
// relying on durability.
func (m *Mapping[K]) GetOrCreate(key K) (id uint64, isNew bool, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if id, ok := m.byKey[key]; ok {
		return id, false, nil
	}

	id = m.nextID
	if _, err := m.table.Append(id, key); err != nil {
		return 0, false, fmt.Errorf("mapping: get_or_create %s: %w", m.table.Name(), err)
	}
	m.byKey[key] = id
	m.nextID++
	return id, true, nil
}

// Get returns the id minted for key, if any.
func (m *Mapping[K]) Get(key K) (id uint64, ok bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	id, ok = m.byKey[key]
	return id, ok
}

// Len returns the number of ids minted so far.
func (m *Mapping[K]) Len() uint64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.nextID
}

// Clear drops the in-memory map, freeing its memory; the backing table is
// untouched and Reload can rebuild the map later.
func (m *Mapping[K]) Clear() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.byKey = map[K]uint64{}
}

// Reload clears then repopulates the in-memory map from disk.
func (m *Mapping[K]) Reload() error {
	m.mu.Lock()
	m.byKey = map[K]uint64{}
	m.mu.Unlock()
	return m.load()
}

// Table exposes the backing TableWriter, e.g. for inclusion in a savepoint.
func (m *Mapping[K]) Table() *store.TableWriter { return m.table }

// Close closes the backing table.
func (m *Mapping[K]) Close() error { return m.table.Close() }
