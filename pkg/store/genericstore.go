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
	"sync"

	"github.com/kraklabs/codedj/pkg/serialize"
)

// Store is an id-indexed append-only table where "latest write wins": a
// fresh Append(id, value) records a newer value for an id that already has
// one, and Get(id) returns the most recent. It backs both the spec's plain
// per-id stores (projects, path strings) and its "linked" stores (update
// logs, metadata) — the two differ only in how densely a given id is
// rewritten, not in mechanism.
type Store[T any] struct {
	mu     sync.Mutex
	table  *TableWriter
	decode DecodeFunc[T]
	index  *IndexedReader[T]
}

// OpenStore opens (or creates) the table named name under dir.
func OpenStore[T any](dir, name string, decode DecodeFunc[T]) (*Store[T], error) {
	table, err := OpenTable(dir, name)
	if err != nil {
		return nil, err
	}
	return &Store[T]{table: table, decode: decode}, nil
}

// Append writes a new record for id, invalidating any cached index so the
// next Get rebuilds it.
func (s *Store[T]) Append(id uint64, value serialize.Encoder) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	offset, err := s.table.Append(id, value)
	if err != nil {
		return 0, err
	}
	if s.index != nil {
		s.index.Close()
		s.index = nil
	}
	return offset, nil
}

// ensureIndex lazily (re)builds the offset index over everything durable.
// Callers must hold s.mu.
func (s *Store[T]) ensureIndex() error {
	if s.index != nil {
		return nil
	}
	limit := s.table.ConfirmedLen()
	ix, err := BuildIndexedReader(s.table.Path(), limit, "", s.decode)
	if err != nil {
		return fmt.Errorf("store: build index for %s: %w", s.table.Name(), err)
	}
	s.index = ix
	return nil
}

// Get returns the latest durable value recorded for id. Values written but
// not yet flushed are not visible (Get only ever sees confirmed data,
// matching the savepoint/durability model).
func (s *Store[T]) Get(id uint64) (value T, ok bool, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.ensureIndex(); err != nil {
		return value, false, err
	}
	return s.index.Get(id)
}

// Offset returns the byte offset of id's latest durable record, or
// (0, false) if id has never been written. Used by force-update bookkeeping
// that needs to cite where a prior value lives without re-reading it.
func (s *Store[T]) Offset(id uint64) (int64, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.ensureIndex(); err != nil {
		return 0, false, err
	}
	off, ok := s.index.Offset(id)
	return off, ok, nil
}

// Each iterates every durable (id, value) pair in append order; for ids
// written more than once this yields every version, oldest first.
func (s *Store[T]) Each(fn func(id uint64, value T) error) error {
	it, err := NewIterator(s.table.Path(), s.table.ConfirmedLen(), s.decode)
	if err != nil {
		return err
	}
	return it.Each(fn)
}

// Flush flushes the backing table and invalidates the cached index (a
// flush makes newly-appended records durable and thus visible to Get).
func (s *Store[T]) Flush() (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	n, err := s.table.Flush()
	if err != nil {
		return 0, err
	}
	if s.index != nil {
		s.index.Close()
		s.index = nil
	}
	return n, nil
}

// AddToSavepoint flushes and records this store's table length into sp.
func (s *Store[T]) AddToSavepoint(sp *Savepoint) error {
	return s.table.AddToSavepoint(sp)
}

// RevertToSavepoint truncates the backing table and drops any cached index.
func (s *Store[T]) RevertToSavepoint(sp *Savepoint) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.table.RevertToSavepoint(sp); err != nil {
		return err
	}
	if s.index != nil {
		s.index.Close()
		s.index = nil
	}
	return nil
}

// Table exposes the backing TableWriter.
func (s *Store[T]) Table() *TableWriter { return s.table }

// Close closes the backing table and any cached index.
func (s *Store[T]) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.index != nil {
		s.index.Close()
		s.index = nil
	}
	return s.table.Close()
}
