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
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestIndexedReaderReturnsLatestValuePerID(t *testing.T) {
	dir := t.TempDir()
	tw, err := OpenTable(dir, "widgets")
	require.NoError(t, err)

	_, err = tw.Append(0, fixedString("alpha-v1"))
	require.NoError(t, err)
	_, err = tw.Append(1, fixedString("beta-v1"))
	require.NoError(t, err)
	_, err = tw.Append(0, fixedString("alpha-v2"))
	require.NoError(t, err)
	limit, err := tw.Flush()
	require.NoError(t, err)
	require.NoError(t, tw.Close())

	ix, err := BuildIndexedReader(filepath.Join(dir, "widgets"), limit, "sp1", decodeFixedString)
	require.NoError(t, err)
	defer ix.Close()

	require.EqualValues(t, 2, ix.Count())

	v, ok, err := ix.Get(0)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, fixedString("alpha-v2"), v)

	v, ok, err = ix.Get(1)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, fixedString("beta-v1"), v)

	_, ok, err = ix.Get(99)
	require.NoError(t, err)
	require.False(t, ok)
}

func TestIndexedReaderOverEmptyTable(t *testing.T) {
	dir := t.TempDir()
	ix, err := BuildIndexedReader(filepath.Join(dir, "ghost"), 0, "sp1", decodeFixedString)
	require.NoError(t, err)
	defer ix.Close()

	require.EqualValues(t, 0, ix.Count())
	_, ok, err := ix.Get(0)
	require.NoError(t, err)
	require.False(t, ok)
}
