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

package datastore

import (
	"fmt"
	"path/filepath"
	"sync"

	"github.com/kraklabs/codedj/pkg/serialize"
	"github.com/kraklabs/codedj/pkg/store"
	"github.com/kraklabs/codedj/pkg/substore"
)

func storeKindName(k substore.Kind) string { return k.String() }

func decodeMetadata(r *serialize.Reader) (serialize.Metadata, error) {
	var m serialize.Metadata
	err := m.ReadFrom(r)
	return m, err
}

// Datastore owns the global, project-indexed tables plus the fixed array of
// per-language Substores every project's commit/content/path/user data
// actually lives in.
type Datastore struct {
	dir string

	Projects        *store.Store[Project]
	ProjectUpdates  *store.SplitStore[ProjectUpdateLog, substore.Kind]
	ProjectHeads    *store.SplitStore[ProjectHeads, substore.Kind]
	ProjectMetadata *store.SplitStore[serialize.Metadata, substore.Kind]

	mu              sync.Mutex
	projectSubstore *store.Store[uint8] // ProjectId -> substore.Kind, as a raw byte
	substores       map[substore.Kind]*substore.Substore

	urlsMu     sync.Mutex
	urls       map[string]uint64 // loaded lazily, writer-only
	urlsLoaded bool
}

func decodeKindByte(r *serialize.Reader) (uint8, error) { return r.ReadUint8() }

type kindByte uint8

func (k kindByte) WriteTo(w *serialize.Writer) error { return w.WriteUint8(uint8(k)) }

// Open opens (or creates) every global table under dir. Substores are
// opened lazily via Substore, matching the spec's memory-discipline intent
// that only substores currently being written to need to be resident.
func Open(dir string) (*Datastore, error) {
	projects, err := store.OpenStore(dir, "projects", DecodeProject)
	if err != nil {
		return nil, fmt.Errorf("datastore: %w", err)
	}
	projectSubstore, err := store.OpenStore(filepath.Join(dir, "project-substores"), "project-substores", decodeKindByte)
	if err != nil {
		return nil, fmt.Errorf("datastore: %w", err)
	}

	updates := store.OpenSplitStore[ProjectUpdateLog, substore.Kind](
		filepath.Join(dir, "project-updates"), storeKindName, DecodeProjectUpdateLog)
	heads := store.OpenSplitStore[ProjectHeads, substore.Kind](
		filepath.Join(dir, "project-heads"), storeKindName, DecodeProjectHeads)
	metadata := store.OpenSplitStore[serialize.Metadata, substore.Kind](
		filepath.Join(dir, "project-metadata"), storeKindName, decodeMetadata)

	return &Datastore{
		dir:             dir,
		Projects:        projects,
		ProjectUpdates:  updates,
		ProjectHeads:    heads,
		ProjectMetadata: metadata,
		projectSubstore: projectSubstore,
		substores:       map[substore.Kind]*substore.Substore{},
	}, nil
}

// Substore returns (opening on first use) the Substore for kind.
func (d *Datastore) Substore(kind substore.Kind) (*substore.Substore, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if ss, ok := d.substores[kind]; ok {
		return ss, nil
	}
	ss, err := substore.Open(d.dir, kind)
	if err != nil {
		return nil, err
	}
	d.substores[kind] = ss
	return ss, nil
}

// OpenSubstores returns every Substore currently opened this process
// (not necessarily every Kind — only those touched so far).
func (d *Datastore) OpenSubstores() []*substore.Substore {
	d.mu.Lock()
	defer d.mu.Unlock()

	out := make([]*substore.Substore, 0, len(d.substores))
	for _, ss := range d.substores {
		out = append(out, ss)
	}
	return out
}

// loadURLs populates the project-url set by scanning every Project record.
// Called lazily, and only by the writer, the first time AddProject needs to
// check for an existing URL.
func (d *Datastore) loadURLs() error {
	d.urlsMu.Lock()
	defer d.urlsMu.Unlock()
	if d.urlsLoaded {
		return nil
	}

	urls := map[string]uint64{}
	err := d.Projects.Each(func(id uint64, p Project) error {
		urls[p.IDString] = id
		return nil
	})
	if err != nil {
		return fmt.Errorf("datastore: load project urls: %w", err)
	}
	d.urls = urls
	d.urlsLoaded = true
	return nil
}

// AddProject mints a fresh ProjectId for project, unless its IDString
// already exists, in which case it returns the existing id and false.
func (d *Datastore) AddProject(project Project) (id uint64, created bool, err error) {
	if err := d.loadURLs(); err != nil {
		return 0, false, err
	}

	d.urlsMu.Lock()
	defer d.urlsMu.Unlock()

	if existing, ok := d.urls[project.IDString]; ok {
		return existing, false, nil
	}

	id, err = d.mintProjectID()
	if err != nil {
		return 0, false, err
	}
	if _, err := d.Projects.Append(id, project); err != nil {
		return 0, false, err
	}
	if _, err := d.projectSubstore.Append(id, kindByte(project.SubstoreKind)); err != nil {
		return 0, false, err
	}
	d.urls[project.IDString] = id
	return id, true, nil
}

// RenameProject appends a new Project record at id with a new IDString
// (the Kind and SubstoreKind are carried over unchanged), and registers the
// new URL in the in-memory dedup set. The old URL is left mapped to id too:
// it is no longer the canonical identity, but a second `add` of the stale
// URL should still resolve to the same project rather than mint a spurious
// duplicate.
func (d *Datastore) RenameProject(id uint64, newIDString string) error {
	if err := d.loadURLs(); err != nil {
		return err
	}

	project, ok, err := d.Projects.Get(id)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("datastore: rename project %d: no such project", id)
	}
	if project.IDString == newIDString {
		return nil
	}
	project.IDString = newIDString

	d.urlsMu.Lock()
	defer d.urlsMu.Unlock()

	if _, err := d.Projects.Append(id, project); err != nil {
		return err
	}
	d.urls[newIDString] = id
	return nil
}

// mintProjectID returns one past the highest project id recorded, by
// iterating the projects table (a renamed project has several records
// there, all under one id); it is O(n) but AddProject is a cold, rare path
// compared to the crawler's hot loop.
func (d *Datastore) mintProjectID() (uint64, error) {
	var next uint64
	err := d.Projects.Each(func(id uint64, _ Project) error {
		if id+1 > next {
			next = id + 1
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return next, nil
}

// UpdateProjectHeads appends a new ProjectHeads record for id under kind.
func (d *Datastore) UpdateProjectHeads(kind substore.Kind, id uint64, heads ProjectHeads) error {
	_, err := d.ProjectHeads.Append(kind, id, heads)
	return err
}

// UpdateProjectSubstore reassigns id's substore kind, appending both the
// project-substores record and a StatusTombstone update log entry under the
// *old* kind (so readers following that partition's log see the move).
func (d *Datastore) UpdateProjectSubstore(id uint64, oldKind, newKind substore.Kind, now int64, schemaVersion uint32) error {
	if _, err := d.projectSubstore.Append(id, kindByte(newKind)); err != nil {
		return err
	}
	return d.UpdateProjectUpdateStatus(oldKind, id, ProjectUpdateLog{
		Status:        StatusTombstone,
		Time:          now,
		SchemaVersion: schemaVersion,
		NewKind:       newKind,
	})
}

// UpdateProjectUpdateStatus appends a new ProjectUpdateLog entry for id
// under kind; the latest entry defines the project's current status.
func (d *Datastore) UpdateProjectUpdateStatus(kind substore.Kind, id uint64, entry ProjectUpdateLog) error {
	_, err := d.ProjectUpdates.Append(kind, id, entry)
	return err
}

// UpdateProjectMetadataIfDiffer appends (key, value) under id in kind's
// metadata partition, skipping the append if the latest existing value for
// key already equals value.
func (d *Datastore) UpdateProjectMetadataIfDiffer(kind substore.Kind, id uint64, key, value string) (appended bool, err error) {
	existing, ok, err := d.latestProjectMetadata(kind, id, key)
	if err != nil {
		return false, err
	}
	if ok && existing == value {
		return false, nil
	}
	if _, err := d.ProjectMetadata.Append(kind, id, serialize.Metadata{Key: key, Value: value}); err != nil {
		return false, err
	}
	return true, nil
}

func (d *Datastore) latestProjectMetadata(kind substore.Kind, id uint64, key string) (value string, ok bool, err error) {
	err = d.ProjectMetadata.Each(kind, func(recordID uint64, m serialize.Metadata) error {
		if recordID == id && m.Key == key {
			value, ok = m.Value, true
		}
		return nil
	})
	return value, ok, err
}

// ProjectSubstoreKind returns the most recently assigned substore.Kind for
// id.
func (d *Datastore) ProjectSubstoreKind(id uint64) (substore.Kind, bool, error) {
	kb, ok, err := d.projectSubstore.Get(id)
	if err != nil || !ok {
		return 0, false, err
	}
	return substore.Kind(kb), true, nil
}

// LatestUpdateStatus returns the most recent ProjectUpdateLog entry for id
// under kind.
func (d *Datastore) LatestUpdateStatus(kind substore.Kind, id uint64) (ProjectUpdateLog, bool, error) {
	return d.ProjectUpdates.Get(kind, id)
}

// LatestHeads returns the most recent ProjectHeads for id under kind.
func (d *Datastore) LatestHeads(kind substore.Kind, id uint64) (ProjectHeads, bool, error) {
	return d.ProjectHeads.Get(kind, id)
}

// AddToSavepoint flushes and records every global table, plus every
// substore opened so far, into sp.
func (d *Datastore) AddToSavepoint(sp *store.Savepoint) error {
	if err := d.Projects.AddToSavepoint(sp); err != nil {
		return err
	}
	if err := d.projectSubstore.AddToSavepoint(sp); err != nil {
		return err
	}
	if err := d.ProjectUpdates.AddToSavepoint(sp); err != nil {
		return err
	}
	if err := d.ProjectHeads.AddToSavepoint(sp); err != nil {
		return err
	}
	if err := d.ProjectMetadata.AddToSavepoint(sp); err != nil {
		return err
	}
	for _, ss := range d.OpenSubstores() {
		if err := ss.AddToSavepoint(sp); err != nil {
			return err
		}
	}
	return nil
}

// RevertToSavepoint reverts every global table and every opened substore to
// sp, then drops the lazily loaded URL set (it will reload from the
// reverted projects table on next AddProject).
func (d *Datastore) RevertToSavepoint(sp *store.Savepoint) error {
	if err := d.Projects.RevertToSavepoint(sp); err != nil {
		return err
	}
	if err := d.projectSubstore.RevertToSavepoint(sp); err != nil {
		return err
	}
	if err := d.ProjectUpdates.RevertToSavepoint(sp); err != nil {
		return err
	}
	if err := d.ProjectHeads.RevertToSavepoint(sp); err != nil {
		return err
	}
	if err := d.ProjectMetadata.RevertToSavepoint(sp); err != nil {
		return err
	}
	for _, ss := range d.OpenSubstores() {
		if err := ss.RevertToSavepoint(sp); err != nil {
			return err
		}
	}

	d.urlsMu.Lock()
	d.urlsLoaded = false
	d.urls = nil
	d.urlsMu.Unlock()
	return nil
}

// Close closes every global table and every substore opened so far.
func (d *Datastore) Close() error {
	if err := d.Projects.Close(); err != nil {
		return err
	}
	if err := d.projectSubstore.Close(); err != nil {
		return err
	}
	if err := d.ProjectUpdates.Close(); err != nil {
		return err
	}
	if err := d.ProjectHeads.Close(); err != nil {
		return err
	}
	if err := d.ProjectMetadata.Close(); err != nil {
		return err
	}
	for _, ss := range d.OpenSubstores() {
		if err := ss.Close(); err != nil {
			return err
		}
	}
	return nil
}
