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

	mmap "github.com/edsrzf/mmap-go"
	"github.com/kraklabs/codedj/pkg/serialize"
)

// IndexedReader gives O(1) "latest value for id" lookups over a table, up
// to a savepoint. It scans the table once (cost: one full linear scan up to
// the savepoint) to build an id -> last byte offset index, then
// memory-maps that index for lookups.
//
// Because CodeDJ ids are dense (0..N-1, no gaps), the index is simply a
// flat array of little-endian i64 offsets, one per id — no hashing or
// on-disk tree required.
type IndexedReader[T any] struct {
	tablePath     string
	decode        DecodeFunc[T]
	indexFile     *os.File
	mm            mmap.MMap
	count         uint64
	savepointName string
}

// BuildIndexedReader scans the table at tablePath up to limit bytes,
// records the byte offset of the latest record for every id it sees, and
// persists that index to tablePath+".index" (memory-mapped for Get).
// savepointName is recorded for cache-reuse bookkeeping by callers; it is
// not independently verified here.
func BuildIndexedReader[T any](tablePath string, limit int64, savepointName string, decode DecodeFunc[T]) (*IndexedReader[T], error) {
	offsets, err := scanOffsets(tablePath, limit, decode)
	if err != nil {
		return nil, err
	}
	indexPath := tablePath + ".index"
	if err := writeOffsetIndex(indexPath, offsets); err != nil {
		return nil, err
	}
	return openIndexedReader[T](tablePath, indexPath, savepointName, decode, uint64(len(offsets)))
}

// scanOffsets performs the one full linear scan, keeping the offset of the
// record start (before the id field) for the most recent write to each id.
func scanOffsets[T any](tablePath string, limit int64, decode DecodeFunc[T]) ([]int64, error) {
	f, err := os.Open(tablePath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("store: open %s for indexing: %w", tablePath, err)
	}
	defer f.Close()

	r := serialize.NewReader(f, 0)
	var offsets []int64
	for r.Offset() < limit {
		recordStart := r.Offset()
		id, err := r.ReadUint64()
		if err != nil {
			return nil, fmt.Errorf("store: index %s: %w", tablePath, err)
		}
		if _, err := decode(r); err != nil {
			return nil, fmt.Errorf("store: index %s: %w", tablePath, err)
		}
		if id >= uint64(len(offsets)) {
			grown := make([]int64, id+1)
			copy(grown, offsets)
			for i := len(offsets); i < len(grown); i++ {
				grown[i] = -1
			}
			offsets = grown
		}
		offsets[id] = recordStart
	}
	return offsets, nil
}

func writeOffsetIndex(path string, offsets []int64) error {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR|os.O_TRUNC, 0o644)
	if err != nil {
		return fmt.Errorf("store: create index %s: %w", path, err)
	}
	defer f.Close()

	w := serialize.NewWriter(f, 0)
	for _, off := range offsets {
		if err := w.WriteInt64(off); err != nil {
			return fmt.Errorf("store: write index %s: %w", path, err)
		}
	}
	return f.Sync()
}

func openIndexedReader[T any](tablePath, indexPath, savepointName string, decode DecodeFunc[T], count uint64) (*IndexedReader[T], error) {
	if count == 0 {
		return &IndexedReader[T]{tablePath: tablePath, decode: decode, savepointName: savepointName}, nil
	}

	f, err := os.OpenFile(indexPath, os.O_RDWR, 0o644)
	if err != nil {
		return nil, fmt.Errorf("store: open index %s: %w", indexPath, err)
	}
	mm, err := mmap.Map(f, mmap.RDONLY, 0)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("store: mmap index %s: %w", indexPath, err)
	}
	return &IndexedReader[T]{
		tablePath:     tablePath,
		decode:        decode,
		indexFile:     f,
		mm:            mm,
		count:         count,
		savepointName: savepointName,
	}, nil
}

// Count returns the number of unique ids indexed.
func (ix *IndexedReader[T]) Count() uint64 { return ix.count }

// SavepointName returns the savepoint this index was built against.
func (ix *IndexedReader[T]) SavepointName() string { return ix.savepointName }

// offsetFor returns the byte offset of id's latest record, or (0, false)
// if id is out of range or was never written (a hole).
func (ix *IndexedReader[T]) offsetFor(id uint64) (int64, bool) {
	if id >= ix.count {
		return 0, false
	}
	const width = 8
	start := id * width
	buf := ix.mm[start : start+width]
	off := int64(buf[0]) | int64(buf[1])<<8 | int64(buf[2])<<16 | int64(buf[3])<<24 |
		int64(buf[4])<<32 | int64(buf[5])<<40 | int64(buf[6])<<48 | int64(buf[7])<<56
	if off < 0 {
		return 0, false
	}
	return off, true
}

// Offset returns the byte offset of id's latest record, or (0, false) if id
// was never written. Exposed for callers (e.g. force-update bookkeeping)
// that need to cite where the prior value lives rather than read it.
func (ix *IndexedReader[T]) Offset(id uint64) (int64, bool) {
	return ix.offsetFor(id)
}

// Get returns the latest value stored for id, reading the record directly
// at its indexed offset.
func (ix *IndexedReader[T]) Get(id uint64) (value T, ok bool, err error) {
	offset, found := ix.offsetFor(id)
	if !found {
		return value, false, nil
	}

	f, err := os.Open(ix.tablePath)
	if err != nil {
		return value, false, fmt.Errorf("store: open %s: %w", ix.tablePath, err)
	}
	defer f.Close()

	if _, err := f.Seek(offset, os.SEEK_SET); err != nil {
		return value, false, fmt.Errorf("store: seek %s: %w", ix.tablePath, err)
	}
	r := serialize.NewReader(f, offset)
	if _, err := r.ReadUint64(); err != nil { // id, already known
		return value, false, fmt.Errorf("store: read %s: %w", ix.tablePath, err)
	}
	value, err = ix.decode(r)
	if err != nil {
		return value, false, fmt.Errorf("store: read %s: %w", ix.tablePath, err)
	}
	return value, true, nil
}

// Close unmaps the index and closes its file handle.
func (ix *IndexedReader[T]) Close() error {
	if ix.mm != nil {
		if err := ix.mm.Unmap(); err != nil {
			return err
		}
	}
	if ix.indexFile != nil {
		return ix.indexFile.Close()
	}
	return nil
}
