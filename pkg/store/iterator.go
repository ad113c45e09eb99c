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

// DecodeFunc decodes one record's value from r. It must consume exactly the
// bytes the matching encoder produced, the same round-trip contract every
// serializable type in CodeDJ upholds.
type DecodeFunc[T any] func(r *serialize.Reader) (T, error)

// Iterator streams (id, value) pairs from a table in chronological
// (append) order, bounded by a byte limit — normally a savepoint's recorded
// length for the table, so concurrent appends past that point are invisible
// to the iteration.
type Iterator[T any] struct {
	f      *os.File
	r      *serialize.Reader
	limit  int64
	decode DecodeFunc[T]
}

// NewIterator opens a read-only iterator over the table at path, yielding
// records up to limit bytes. Pass a table's ConfirmedLen() to iterate
// everything durable, or a Savepoint's Size(name) to iterate as of that
// savepoint.
func NewIterator[T any](path string, limit int64, decode DecodeFunc[T]) (*Iterator[T], error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			limit = 0
		} else {
			return nil, fmt.Errorf("store: open %s for iteration: %w", path, err)
		}
	}
	return &Iterator[T]{f: f, r: serialize.NewReader(f, 0), limit: limit, decode: decode}, nil
}

// Next returns the next (id, value) pair, or ok=false once the byte limit
// is reached.
func (it *Iterator[T]) Next() (id uint64, value T, ok bool, err error) {
	if it.r.Offset() >= it.limit {
		return 0, value, false, nil
	}
	id, err = it.r.ReadUint64()
	if err != nil {
		return 0, value, false, fmt.Errorf("store: iterate: %w", err)
	}
	value, err = it.decode(it.r)
	if err != nil {
		return 0, value, false, fmt.Errorf("store: iterate: %w", err)
	}
	return id, value, true, nil
}

// Close releases the iterator's file handle.
func (it *Iterator[T]) Close() error {
	if it.f == nil {
		return nil
	}
	return it.f.Close()
}

// Each drains the iterator, calling fn for every (id, value) pair in order.
// It closes the iterator before returning.
func (it *Iterator[T]) Each(fn func(id uint64, value T) error) error {
	defer it.Close()
	for {
		id, value, ok, err := it.Next()
		if err != nil {
			return err
		}
		if !ok {
			return nil
		}
		if err := fn(id, value); err != nil {
			return err
		}
	}
}
