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

package serialize

import "encoding/hex"

// SHASize is the width of a content hash: commits, file contents and paths
// are all addressed by a 20-byte SHA-1-shaped digest.
const SHASize = 20

// SHA is a 20-byte content hash: the dedup key for commits, file contents
// and paths. Paths are hashed as their UTF-8 bytes.
type SHA [SHASize]byte

// SerializedSize implements Sized.
func (SHA) SerializedSize() int { return SHASize }

// WriteTo writes the raw 20 bytes with no length prefix.
func (s SHA) WriteTo(w *Writer) error {
	return w.WriteBytes(s[:])
}

// ReadFrom reads 20 raw bytes into s.
func (s *SHA) ReadFrom(r *Reader) error {
	buf, err := r.ReadBytes(SHASize)
	if err != nil {
		return err
	}
	copy(s[:], buf)
	return nil
}

// String renders the SHA as lowercase hex.
func (s SHA) String() string {
	return hex.EncodeToString(s[:])
}

// IsZero reports whether s is the all-zero SHA.
func (s SHA) IsZero() bool {
	return s == SHA{}
}

// StringKey is a length-prefixed UTF-8 string that implements Encoder, for
// mappings keyed by text rather than by SHA (user identities, keyed by
// email).
type StringKey string

// WriteTo writes the string with a u32 length prefix.
func (s StringKey) WriteTo(w *Writer) error {
	return w.WriteString(string(s))
}

// ReadFrom reads a u32-length-prefixed string into s.
func (s *StringKey) ReadFrom(r *Reader) error {
	v, err := r.ReadString()
	if err != nil {
		return err
	}
	*s = StringKey(v)
	return nil
}
