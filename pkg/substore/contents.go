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

import "github.com/kraklabs/codedj/pkg/serialize"

// FileContents is the raw bytes of a deduplicated blob, keyed by HashId.
// Not every minted HashId has a FileContents record: langclass decides
// which extensions are worth persisting, and unstored hashes are simply
// absent from the contents SplitStore.
type FileContents []byte

// WriteTo implements serialize.Encoder, storing the bytes zstd-compressed.
func (c FileContents) WriteTo(w *serialize.Writer) error {
	return w.WriteBlob(c)
}

// ReadFrom implements serialize.Decoder.
func (c *FileContents) ReadFrom(r *serialize.Reader) error {
	b, err := r.ReadBlob()
	if err != nil {
		return err
	}
	*c = b
	return nil
}

// DecodeFileContents is the store.DecodeFunc for FileContents.
func DecodeFileContents(r *serialize.Reader) (FileContents, error) {
	var c FileContents
	err := c.ReadFrom(r)
	return c, err
}

// DecodeMetadata is the store.DecodeFunc for serialize.Metadata, shared by
// every metadata LinkedStore in a Substore.
func DecodeMetadata(r *serialize.Reader) (serialize.Metadata, error) {
	var m serialize.Metadata
	err := m.ReadFrom(r)
	return m, err
}
