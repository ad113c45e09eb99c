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
	"unicode/utf8"

	"github.com/kraklabs/codedj/pkg/serialize"
)

// DeletedHashID is the sentinel HashId recorded in a Commit's Changes map
// for a path removed by that commit.
const DeletedHashID = ^uint64(0)

// Commit is the immutable record stored once per minted CommitId: author
// and committer identity and time, parent ids, the path->hash delta, and
// the commit message. Everything here is already resolved to ids — no SHAs
// or raw author strings appear at this layer.
type Commit struct {
	CommitterID   uint64
	CommitterTime int64
	AuthorID      uint64
	AuthorTime    int64
	Parents       []uint64
	Changes       map[uint64]uint64 // PathId -> HashId (DeletedHashID marks removal)
	Message       string            // escaped per EscapeMessage; always valid UTF-8
}

// WriteTo implements serialize.Encoder.
func (c Commit) WriteTo(w *serialize.Writer) error {
	if err := w.WriteUint64(c.CommitterID); err != nil {
		return err
	}
	if err := w.WriteInt64(c.CommitterTime); err != nil {
		return err
	}
	if err := w.WriteUint64(c.AuthorID); err != nil {
		return err
	}
	if err := w.WriteInt64(c.AuthorTime); err != nil {
		return err
	}
	if err := w.WriteUint64Slice(c.Parents); err != nil {
		return err
	}
	if err := w.WriteUint64Map(c.Changes); err != nil {
		return err
	}
	return w.WriteString(c.Message)
}

// ReadFrom implements serialize.Decoder.
func (c *Commit) ReadFrom(r *serialize.Reader) error {
	var err error
	if c.CommitterID, err = r.ReadUint64(); err != nil {
		return err
	}
	if c.CommitterTime, err = r.ReadInt64(); err != nil {
		return err
	}
	if c.AuthorID, err = r.ReadUint64(); err != nil {
		return err
	}
	if c.AuthorTime, err = r.ReadInt64(); err != nil {
		return err
	}
	if c.Parents, err = r.ReadUint64Slice(); err != nil {
		return err
	}
	if c.Changes, err = r.ReadUint64Map(); err != nil {
		return err
	}
	if c.Message, err = r.ReadString(); err != nil {
		return err
	}
	return nil
}

// DecodeCommit is the store.DecodeFunc for Commit.
func DecodeCommit(r *serialize.Reader) (Commit, error) {
	var c Commit
	err := c.ReadFrom(r)
	return c, err
}

// EscapeMessage renders arbitrary commit-message bytes as valid UTF-8:
// well-formed runs pass through unchanged; any byte that cannot begin or
// continue a valid UTF-8 sequence is rendered as "%xx" lowercase hex, byte
// by byte, so the escape is itself reversible given the raw original.
func EscapeMessage(raw []byte) string {
	var out []byte
	for len(raw) > 0 {
		r, size := utf8.DecodeRune(raw)
		if r == utf8.RuneError && size <= 1 {
			out = append(out, []byte(fmt.Sprintf("%%%02x", raw[0]))...)
			raw = raw[1:]
			continue
		}
		out = append(out, raw[:size]...)
		raw = raw[size:]
	}
	return string(out)
}
