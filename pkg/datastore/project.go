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

// Package datastore implements CodeDJ's global project tables and the
// fixed array of per-language Substores they reference.
package datastore

import (
	"github.com/kraklabs/codedj/pkg/serialize"
	"github.com/kraklabs/codedj/pkg/substore"
)

// ProjectKind distinguishes how a project's identity string is
// interpreted and where its metadata comes from.
type ProjectKind uint8

const (
	ProjectGit ProjectKind = iota
	ProjectGitHub
	ProjectTombstone
)

// Project is the append-only record of a tracked repository. A rename
// appends a new Project record at the same id; a substore reassignment is
// recorded only in the project-substores table (see UpdateProjectSubstore),
// so SubstoreKind here keeps the kind the record was written with. The id
// is minted once, at add_project, and never reassigned.
type Project struct {
	Kind         ProjectKind
	IDString     string // clone URL, or "user/repo" for ProjectGitHub
	SubstoreKind substore.Kind
}

// WriteTo implements serialize.Encoder.
func (p Project) WriteTo(w *serialize.Writer) error {
	if err := w.WriteUint8(uint8(p.Kind)); err != nil {
		return err
	}
	if err := w.WriteString(p.IDString); err != nil {
		return err
	}
	return w.WriteUint8(uint8(p.SubstoreKind))
}

// ReadFrom implements serialize.Decoder.
func (p *Project) ReadFrom(r *serialize.Reader) error {
	kind, err := r.ReadUint8()
	if err != nil {
		return err
	}
	idStr, err := r.ReadString()
	if err != nil {
		return err
	}
	sk, err := r.ReadUint8()
	if err != nil {
		return err
	}
	p.Kind = ProjectKind(kind)
	p.IDString = idStr
	p.SubstoreKind = substore.Kind(sk)
	return nil
}

// DecodeProject is the store.DecodeFunc for Project.
func DecodeProject(r *serialize.Reader) (Project, error) {
	var p Project
	err := p.ReadFrom(r)
	return p, err
}

// UpdateStatus is the tag of a ProjectUpdateLog entry; the latest entry for
// a project defines its current status.
type UpdateStatus uint8

const (
	StatusNoChange UpdateStatus = iota
	StatusOk
	StatusError
	StatusTombstone
)

// ProjectUpdateLog is one entry in a project's per-update append stream.
type ProjectUpdateLog struct {
	Status        UpdateStatus
	Time          int64
	SchemaVersion uint32
	ErrorMessage  string        // set only when Status == StatusError
	NewKind       substore.Kind // set only when Status == StatusTombstone
}

// WriteTo implements serialize.Encoder.
func (u ProjectUpdateLog) WriteTo(w *serialize.Writer) error {
	if err := w.WriteUint8(uint8(u.Status)); err != nil {
		return err
	}
	if err := w.WriteInt64(u.Time); err != nil {
		return err
	}
	if err := w.WriteUint32(u.SchemaVersion); err != nil {
		return err
	}
	switch u.Status {
	case StatusError:
		return w.WriteString(u.ErrorMessage)
	case StatusTombstone:
		return w.WriteUint8(uint8(u.NewKind))
	default:
		return nil
	}
}

// ReadFrom implements serialize.Decoder.
func (u *ProjectUpdateLog) ReadFrom(r *serialize.Reader) error {
	status, err := r.ReadUint8()
	if err != nil {
		return err
	}
	t, err := r.ReadInt64()
	if err != nil {
		return err
	}
	version, err := r.ReadUint32()
	if err != nil {
		return err
	}
	u.Status = UpdateStatus(status)
	u.Time = t
	u.SchemaVersion = version
	u.ErrorMessage = ""
	u.NewKind = 0

	switch u.Status {
	case StatusError:
		msg, err := r.ReadString()
		if err != nil {
			return err
		}
		u.ErrorMessage = msg
	case StatusTombstone:
		kind, err := r.ReadUint8()
		if err != nil {
			return err
		}
		u.NewKind = substore.Kind(kind)
	}
	return nil
}

// DecodeProjectUpdateLog is the store.DecodeFunc for ProjectUpdateLog.
func DecodeProjectUpdateLog(r *serialize.Reader) (ProjectUpdateLog, error) {
	var u ProjectUpdateLog
	err := u.ReadFrom(r)
	return u, err
}

// Head is one ref's observed position at the most recent successful
// update: the CommitId it resolves to in the project's substore, and the
// raw SHA it was fetched at.
type Head struct {
	CommitID uint64
	SHA      serialize.SHA
}

// ProjectHeads is the full set of a project's refs as of its most recent
// successful update.
type ProjectHeads struct {
	Refs map[string]Head
}

// WriteTo implements serialize.Encoder.
func (h ProjectHeads) WriteTo(w *serialize.Writer) error {
	if err := w.WriteUint64(uint64(len(h.Refs))); err != nil {
		return err
	}
	for name, head := range h.Refs {
		if err := w.WriteString(name); err != nil {
			return err
		}
		if err := w.WriteUint64(head.CommitID); err != nil {
			return err
		}
		if err := head.SHA.WriteTo(w); err != nil {
			return err
		}
	}
	return nil
}

// ReadFrom implements serialize.Decoder.
func (h *ProjectHeads) ReadFrom(r *serialize.Reader) error {
	n, err := r.ReadUint64()
	if err != nil {
		return err
	}
	const maxReasonableRefs = 1 << 20
	if n > maxReasonableRefs {
		return &serialize.SanityError{What: "project heads", N: n}
	}
	refs := make(map[string]Head, n)
	for i := uint64(0); i < n; i++ {
		name, err := r.ReadString()
		if err != nil {
			return err
		}
		commitID, err := r.ReadUint64()
		if err != nil {
			return err
		}
		var sha serialize.SHA
		if err := sha.ReadFrom(r); err != nil {
			return err
		}
		refs[name] = Head{CommitID: commitID, SHA: sha}
	}
	h.Refs = refs
	return nil
}

// DecodeProjectHeads is the store.DecodeFunc for ProjectHeads.
func DecodeProjectHeads(r *serialize.Reader) (ProjectHeads, error) {
	var h ProjectHeads
	err := h.ReadFrom(r)
	return h, err
}
