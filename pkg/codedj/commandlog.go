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

// Package codedj implements the CodeDJ superstore: a Datastore wrapped in a
// FolderLock and a command log, enforcing that at most one modifying
// command runs against a superstore at a time.
package codedj

import "github.com/kraklabs/codedj/pkg/serialize"

// CommandLogTag distinguishes the two record shapes appended to the
// command log.
type CommandLogTag uint8

const (
	CommandStartTag CommandLogTag = 0
	CommandEndTag   CommandLogTag = 1
)

// CommandLogEntry is a tagged union: CommandStart carries the invocation
// that began, CommandEnd only the time it finished.
type CommandLogEntry struct {
	Tag     CommandLogTag
	Time    int64
	Version string // set only for CommandStartTag
	Cmd     string // argv joined by spaces; set only for CommandStartTag
}

// WriteTo implements serialize.Encoder.
func (e CommandLogEntry) WriteTo(w *serialize.Writer) error {
	if err := w.WriteUint8(uint8(e.Tag)); err != nil {
		return err
	}
	if err := w.WriteInt64(e.Time); err != nil {
		return err
	}
	if e.Tag == CommandStartTag {
		if err := w.WriteString(e.Version); err != nil {
			return err
		}
		if err := w.WriteString(e.Cmd); err != nil {
			return err
		}
	}
	return nil
}

// ReadFrom implements serialize.Decoder.
func (e *CommandLogEntry) ReadFrom(r *serialize.Reader) error {
	tag, err := r.ReadUint8()
	if err != nil {
		return err
	}
	t, err := r.ReadInt64()
	if err != nil {
		return err
	}
	e.Tag = CommandLogTag(tag)
	e.Time = t
	e.Version = ""
	e.Cmd = ""

	if e.Tag == CommandStartTag {
		version, err := r.ReadString()
		if err != nil {
			return err
		}
		cmd, err := r.ReadString()
		if err != nil {
			return err
		}
		e.Version = version
		e.Cmd = cmd
	}
	return nil
}

// DecodeCommandLogEntry is the store.DecodeFunc for CommandLogEntry.
func DecodeCommandLogEntry(r *serialize.Reader) (CommandLogEntry, error) {
	var e CommandLogEntry
	err := e.ReadFrom(r)
	return e, err
}
