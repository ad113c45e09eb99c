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

package mapping

import (
	"testing"

	"github.com/kraklabs/codedj/pkg/serialize"
	"github.com/stretchr/testify/require"
)

func decodeSHA(r *serialize.Reader) (serialize.SHA, error) {
	var sha serialize.SHA
	err := sha.ReadFrom(r)
	return sha, err
}

func shaOf(b byte) serialize.SHA {
	var sha serialize.SHA
	sha[0] = b
	return sha
}

func TestMappingGetOrCreateMintsDenseIDs(t *testing.T) {
	dir := t.TempDir()
	m, err := Open(dir, "hashes", decodeSHA)
	require.NoError(t, err)
	defer m.Close()

	id0, isNew0, err := m.GetOrCreate(shaOf(1))
	require.NoError(t, err)
	require.True(t, isNew0)
	require.EqualValues(t, 0, id0)

	id1, isNew1, err := m.GetOrCreate(shaOf(2))
	require.NoError(t, err)
	require.True(t, isNew1)
	require.EqualValues(t, 1, id1)

	// Repeat lookup of an existing key returns the same id and isNew=false.
	id0Again, isNew0Again, err := m.GetOrCreate(shaOf(1))
	require.NoError(t, err)
	require.False(t, isNew0Again)
	require.Equal(t, id0, id0Again)

	require.EqualValues(t, 2, m.Len())

	gotID, ok := m.Get(shaOf(2))
	require.True(t, ok)
	require.Equal(t, id1, gotID)

	_, ok = m.Get(shaOf(99))
	require.False(t, ok)
}

func TestMappingLoadReconstructsFromDisk(t *testing.T) {
	dir := t.TempDir()
	m, err := Open(dir, "hashes", decodeSHA)
	require.NoError(t, err)

	_, _, err = m.GetOrCreate(shaOf(1))
	require.NoError(t, err)
	_, _, err = m.GetOrCreate(shaOf(2))
	require.NoError(t, err)
	_, err = m.Table().Flush()
	require.NoError(t, err)
	require.NoError(t, m.Close())

	reopened, err := Open(dir, "hashes", decodeSHA)
	require.NoError(t, err)
	defer reopened.Close()

	require.EqualValues(t, 2, reopened.Len())
	id, ok := reopened.Get(shaOf(2))
	require.True(t, ok)
	require.EqualValues(t, 1, id)
}

func TestMappingClearThenReload(t *testing.T) {
	dir := t.TempDir()
	m, err := Open(dir, "hashes", decodeSHA)
	require.NoError(t, err)
	defer m.Close()

	_, _, err = m.GetOrCreate(shaOf(1))
	require.NoError(t, err)
	_, err = m.Table().Flush()
	require.NoError(t, err)

	m.Clear()
	_, ok := m.Get(shaOf(1))
	require.False(t, ok, "clear should drop the in-memory map")

	require.NoError(t, m.Reload())
	_, ok = m.Get(shaOf(1))
	require.True(t, ok)
}

func TestMappingStringKeyedByEmail(t *testing.T) {
	dir := t.TempDir()
	decode := func(r *serialize.Reader) (serialize.StringKey, error) {
		var s serialize.StringKey
		err := s.ReadFrom(r)
		return s, err
	}
	m, err := Open(dir, "users", decode)
	require.NoError(t, err)
	defer m.Close()

	id, isNew, err := m.GetOrCreate(serialize.StringKey("ada@example.com"))
	require.NoError(t, err)
	require.True(t, isNew)
	require.EqualValues(t, 0, id)

	idAgain, isNewAgain, err := m.GetOrCreate(serialize.StringKey("ada@example.com"))
	require.NoError(t, err)
	require.False(t, isNewAgain)
	require.Equal(t, id, idAgain)
}
