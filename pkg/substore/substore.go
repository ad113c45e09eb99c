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

package substore

import (
	"fmt"
	"path/filepath"
	"reflect"

	"github.com/kraklabs/codedj/pkg/mapping"
	"github.com/kraklabs/codedj/pkg/serialize"
	"github.com/kraklabs/codedj/pkg/store"
)

func decodeSHA(r *serialize.Reader) (serialize.SHA, error) {
	var sha serialize.SHA
	err := sha.ReadFrom(r)
	return sha, err
}

func decodeStringKey(r *serialize.Reader) (serialize.StringKey, error) {
	var s serialize.StringKey
	err := s.ReadFrom(r)
	return s, err
}

func contentsKindName(k ContentsKind) string { return k.String() }

// Substore is a named bundle of tables for one StoreKind partition: all the
// commit/content/path/user data for every project assigned to this
// language (or SmallProjects). Mappings provide dedup; Stores/SplitStores
// hold the append-only payload each mapping's id addresses.
type Substore struct {
	Kind Kind
	dir  string

	Commits         *mapping.Mapping[serialize.SHA]
	CommitsInfo     *store.Store[Commit]
	CommitsMetadata *store.Store[serialize.Metadata]

	Hashes           *mapping.Mapping[serialize.SHA]
	Contents         *store.SplitStore[FileContents, ContentsKind]
	ContentsMetadata *store.Store[serialize.Metadata]

	Paths       *mapping.Mapping[serialize.SHA]
	PathStrings *store.Store[serialize.StringKey]

	Users         *mapping.Mapping[serialize.StringKey]
	UsersMetadata *store.Store[serialize.Metadata]

	loaded bool
}

// Open opens every table for kind under root (root being the datastore's
// directory; Open lays the substore out at root/<kind>/...). Mappings are
// loaded into memory immediately: Open is also what "ensure substore is
// loaded" (spec step 9) calls into.
func Open(root string, kind Kind) (*Substore, error) {
	dir := filepath.Join(root, kind.String())

	commits, err := mapping.Open(dir, "commits", decodeSHA)
	if err != nil {
		return nil, fmt.Errorf("substore %s: %w", kind, err)
	}
	commitsInfo, err := store.OpenStore(dir, "commits-info", DecodeCommit)
	if err != nil {
		return nil, fmt.Errorf("substore %s: %w", kind, err)
	}
	commitsMetadata, err := store.OpenStore(dir, "commits-metadata", DecodeMetadata)
	if err != nil {
		return nil, fmt.Errorf("substore %s: %w", kind, err)
	}

	hashes, err := mapping.Open(dir, "hashes", decodeSHA)
	if err != nil {
		return nil, fmt.Errorf("substore %s: %w", kind, err)
	}
	contentsDir := filepath.Join(dir, "contents")
	contents := store.OpenSplitStore[FileContents, ContentsKind](contentsDir, contentsKindName, DecodeFileContents)
	contentsMetadata, err := store.OpenStore(dir, "contents-metadata", DecodeMetadata)
	if err != nil {
		return nil, fmt.Errorf("substore %s: %w", kind, err)
	}

	paths, err := mapping.Open(dir, "paths", decodeSHA)
	if err != nil {
		return nil, fmt.Errorf("substore %s: %w", kind, err)
	}
	pathStrings, err := store.OpenStore(dir, "path-strings", decodeStringKey)
	if err != nil {
		return nil, fmt.Errorf("substore %s: %w", kind, err)
	}

	users, err := mapping.Open(dir, "users", decodeStringKey)
	if err != nil {
		return nil, fmt.Errorf("substore %s: %w", kind, err)
	}
	usersMetadata, err := store.OpenStore(dir, "users-metadata", DecodeMetadata)
	if err != nil {
		return nil, fmt.Errorf("substore %s: %w", kind, err)
	}

	return &Substore{
		Kind:             kind,
		dir:              dir,
		Commits:          commits,
		CommitsInfo:      commitsInfo,
		CommitsMetadata:  commitsMetadata,
		Hashes:           hashes,
		Contents:         contents,
		ContentsMetadata: contentsMetadata,
		Paths:            paths,
		PathStrings:      pathStrings,
		Users:            users,
		UsersMetadata:    usersMetadata,
		loaded:           true,
	}, nil
}

// ForceUpdatePriorOffsetKey is the prefix of the metadata key
// ("<prefix>:<id>") under which AddCommitInfoIfMissing records the prior
// record's byte offset when a force-updated commit changes.
const ForceUpdatePriorOffsetKey = "force-update-prior-offset"

// AddCommitInfoIfMissing writes commit at id, honoring the dedup
// short-circuit: if a record already exists at id and is byte-for-byte
// equal to commit, nothing is written. If a record exists but differs
// (only possible under force-update — normal ingestion never revisits an
// existing id) a new record is appended and the prior record's offset is
// logged into commits_metadata under ForceUpdatePriorOffsetKey. Returns
// whether a new record was appended.
func (s *Substore) AddCommitInfoIfMissing(id uint64, commit Commit, force bool) (appended bool, err error) {
	existing, ok, err := s.CommitsInfo.Get(id)
	if err != nil {
		return false, err
	}
	if !ok {
		if _, err := s.CommitsInfo.Append(id, commit); err != nil {
			return false, err
		}
		return true, nil
	}
	if reflect.DeepEqual(existing, commit) {
		return false, nil
	}
	if !force {
		// Non-forced re-visit of an already-populated id: nothing to do,
		// matches the "not is_new -> skip analysis" rule in the crawler.
		return false, nil
	}

	priorOffset, hasOffset, err := s.CommitsInfo.Offset(id)
	if err != nil {
		return false, err
	}
	if _, err := s.CommitsInfo.Append(id, commit); err != nil {
		return false, err
	}
	if hasOffset {
		priorKey := fmt.Sprintf("%s:%d", ForceUpdatePriorOffsetKey, id)
		if _, err := s.CommitsMetadata.Append(id, serialize.Metadata{
			Key:   priorKey,
			Value: fmt.Sprintf("%d", priorOffset),
		}); err != nil {
			return false, err
		}
	}
	return true, nil
}

// UpdateMetadataIfDiffer appends (key, value) to store under id only if the
// latest existing value for key differs (or none exists yet).
func UpdateMetadataIfDiffer(s *store.Store[serialize.Metadata], id uint64, key, value string) (appended bool, err error) {
	existing, ok, err := latestMetadataValue(s, id, key)
	if err != nil {
		return false, err
	}
	if ok && existing == value {
		return false, nil
	}
	if _, err := s.Append(id, serialize.Metadata{Key: key, Value: value}); err != nil {
		return false, err
	}
	return true, nil
}

// latestMetadataValue scans id's metadata history for the most recent
// value under key. Metadata is a LinkedStore: Get only returns the single
// latest (id, value) append, which for metadata keyed by (project/entity)
// id holds every key's most recent write in one record stream, so a scan
// via Each is required to isolate one key's history.
func latestMetadataValue(s *store.Store[serialize.Metadata], id uint64, key string) (value string, ok bool, err error) {
	err = s.Each(func(recordID uint64, m serialize.Metadata) error {
		if recordID == id && m.Key == key {
			value, ok = m.Value, true
		}
		return nil
	})
	return value, ok, err
}

// Flush flushes every table in the substore except the Contents
// partitions, which are flushed by AddToSavepoint and Close.
func (s *Substore) Flush() error {
	for _, f := range []func() (int64, error){
		s.Commits.Table().Flush,
		s.CommitsInfo.Flush,
		s.CommitsMetadata.Flush,
		s.Hashes.Table().Flush,
		s.ContentsMetadata.Flush,
		s.Paths.Table().Flush,
		s.PathStrings.Flush,
		s.Users.Table().Flush,
		s.UsersMetadata.Flush,
	} {
		if _, err := f(); err != nil {
			return err
		}
	}
	return nil
}

// AddToSavepoint flushes and records every table in the substore (including
// whichever Contents partitions have been opened) into sp.
func (s *Substore) AddToSavepoint(sp *store.Savepoint) error {
	if err := s.Commits.Table().AddToSavepoint(sp); err != nil {
		return err
	}
	if err := s.CommitsInfo.AddToSavepoint(sp); err != nil {
		return err
	}
	if err := s.CommitsMetadata.AddToSavepoint(sp); err != nil {
		return err
	}
	if err := s.Hashes.Table().AddToSavepoint(sp); err != nil {
		return err
	}
	if err := s.Contents.AddToSavepoint(sp); err != nil {
		return err
	}
	if err := s.ContentsMetadata.AddToSavepoint(sp); err != nil {
		return err
	}
	if err := s.Paths.Table().AddToSavepoint(sp); err != nil {
		return err
	}
	if err := s.PathStrings.AddToSavepoint(sp); err != nil {
		return err
	}
	if err := s.Users.Table().AddToSavepoint(sp); err != nil {
		return err
	}
	return s.UsersMetadata.AddToSavepoint(sp)
}

// RevertToSavepoint reverts every table, then reloads the id->hash mappings
// from the truncated tables so in-memory state matches disk again.
func (s *Substore) RevertToSavepoint(sp *store.Savepoint) error {
	if err := s.Commits.Table().RevertToSavepoint(sp); err != nil {
		return err
	}
	if err := s.CommitsInfo.RevertToSavepoint(sp); err != nil {
		return err
	}
	if err := s.CommitsMetadata.RevertToSavepoint(sp); err != nil {
		return err
	}
	if err := s.Hashes.Table().RevertToSavepoint(sp); err != nil {
		return err
	}
	if err := s.Contents.RevertToSavepoint(sp); err != nil {
		return err
	}
	if err := s.ContentsMetadata.RevertToSavepoint(sp); err != nil {
		return err
	}
	if err := s.Paths.Table().RevertToSavepoint(sp); err != nil {
		return err
	}
	if err := s.PathStrings.RevertToSavepoint(sp); err != nil {
		return err
	}
	if err := s.Users.Table().RevertToSavepoint(sp); err != nil {
		return err
	}
	if err := s.UsersMetadata.RevertToSavepoint(sp); err != nil {
		return err
	}

	for _, m := range []interface{ Reload() error }{s.Commits, s.Hashes, s.Paths, s.Users} {
		if err := m.Reload(); err != nil {
			return err
		}
	}
	return nil
}

// Clear drops every mapping's in-memory map, freeing memory for a
// substore that is not currently being written to. The backing tables are
// untouched.
func (s *Substore) Clear() {
	s.Commits.Clear()
	s.Hashes.Clear()
	s.Paths.Clear()
	s.Users.Clear()
	s.loaded = false
}

// Loaded reports whether this substore's mappings are currently resident
// in memory.
func (s *Substore) Loaded() bool { return s.loaded }

// Load repopulates every mapping's in-memory map from disk, the crawler's
// "ensure substore is loaded" step before processing a project assigned to
// this partition.
func (s *Substore) Load() error {
	for _, m := range []interface{ Reload() error }{s.Commits, s.Hashes, s.Paths, s.Users} {
		if err := m.Reload(); err != nil {
			return err
		}
	}
	s.loaded = true
	return nil
}

// Close closes every table in the substore.
func (s *Substore) Close() error {
	for _, c := range []interface{ Close() error }{
		s.Commits, s.CommitsInfo, s.CommitsMetadata,
		s.Hashes, s.Contents, s.ContentsMetadata,
		s.Paths, s.PathStrings,
		s.Users, s.UsersMetadata,
	} {
		if err := c.Close(); err != nil {
			return err
		}
	}
	return nil
}
