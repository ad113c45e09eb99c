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

// SplitStore partitions a Store[T] by an enumerated key K — one table per
// key value, each in its own subdirectory. It backs per-language project
// tables (split by StoreKind) and content-kind-partitioned blob storage
// (split by ContentsKind); holes (a key never opened) cost nothing on disk.
type SplitStore[T any, K comparable] struct {
	mu     sync.Mutex
	dir    string
	decode DecodeFunc[T]
	name   func(K) string
	stores map[K]*Store[T]
}

// OpenSplitStore prepares a SplitStore rooted at dir; individual per-key
// tables are created lazily on first use, not eagerly for every possible K.
func OpenSplitStore[T any, K comparable](dir string, name func(K) string, decode DecodeFunc[T]) *SplitStore[T, K] {
	return &SplitStore[T, K]{dir: dir, decode: decode, name: name, stores: map[K]*Store[T]{}}
}

// storeFor returns (opening if necessary) the Store for key. Callers must
// hold s.mu.
func (s *SplitStore[T, K]) storeFor(key K) (*Store[T], error) {
	if st, ok := s.stores[key]; ok {
		return st, nil
	}
	st, err := OpenStore(s.dir, s.name(key), s.decode)
	if err != nil {
		return nil, fmt.Errorf("store: open split table %v: %w", key, err)
	}
	s.stores[key] = st
	return st, nil
}

// Append writes a new record for id under partition key.
func (s *SplitStore[T, K]) Append(key K, id uint64, value serialize.Encoder) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	st, err := s.storeFor(key)
	if err != nil {
		return 0, err
	}
	return st.Append(id, value)
}

// Get returns the latest durable value for id under partition key.
func (s *SplitStore[T, K]) Get(key K, id uint64) (value T, ok bool, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	st, err := s.storeFor(key)
	if err != nil {
		return value, false, err
	}
	return st.Get(id)
}

// Each iterates every (id, value) pair stored under partition key.
func (s *SplitStore[T, K]) Each(key K, fn func(id uint64, value T) error) error {
	s.mu.Lock()
	st, err := s.storeFor(key)
	s.mu.Unlock()
	if err != nil {
		return err
	}
	return st.Each(fn)
}

// AddToSavepoint flushes and records every partition opened so far into sp.
// Partitions never opened contribute nothing (absence means "empty" per
// Savepoint.Size's default).
func (s *SplitStore[T, K]) AddToSavepoint(sp *Savepoint) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, st := range s.stores {
		if err := st.AddToSavepoint(sp); err != nil {
			return err
		}
	}
	return nil
}

// RevertToSavepoint reverts every opened partition to sp.
func (s *SplitStore[T, K]) RevertToSavepoint(sp *Savepoint) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, st := range s.stores {
		if err := st.RevertToSavepoint(sp); err != nil {
			return err
		}
	}
	return nil
}

// Close closes every partition opened so far.
func (s *SplitStore[T, K]) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, st := range s.stores {
		if err := st.Close(); err != nil {
			return err
		}
	}
	return nil
}
