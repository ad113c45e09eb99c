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

func TestIteratorYieldsInAppendOrder(t *testing.T) {
	dir := t.TempDir()
	tw, err := OpenTable(dir, "widgets")
	require.NoError(t, err)

	for i, s := range []string{"alpha", "beta", "gamma"} {
		_, err := tw.Append(uint64(i), fixedString(s))
		require.NoError(t, err)
	}
	limit, err := tw.Flush()
	require.NoError(t, err)
	require.NoError(t, tw.Close())

	it, err := NewIterator(filepath.Join(dir, "widgets"), limit, decodeFixedString)
	require.NoError(t, err)

	var got []string
	require.NoError(t, it.Each(func(id uint64, value fixedString) error {
		got = append(got, string(value))
		return nil
	}))
	require.Equal(t, []string{"alpha", "beta", "gamma"}, got)
}

func TestIteratorRespectsSavepointLimit(t *testing.T) {
	dir := t.TempDir()
	tw, err := OpenTable(dir, "widgets")
	require.NoError(t, err)

	_, err = tw.Append(0, fixedString("alpha"))
	require.NoError(t, err)
	sp := NewSavepoint("sp1", 1)
	require.NoError(t, tw.AddToSavepoint(sp))

	_, err = tw.Append(1, fixedString("beta"))
	require.NoError(t, err)
	_, err = tw.Flush()
	require.NoError(t, err)
	require.NoError(t, tw.Close())

	it, err := NewIterator(filepath.Join(dir, "widgets"), int64(sp.Size("widgets")), decodeFixedString)
	require.NoError(t, err)

	var got []string
	require.NoError(t, it.Each(func(id uint64, value fixedString) error {
		got = append(got, string(value))
		return nil
	}))
	require.Equal(t, []string{"alpha"}, got)
}

func TestIteratorOverMissingTableIsEmpty(t *testing.T) {
	dir := t.TempDir()
	it, err := NewIterator(filepath.Join(dir, "ghost"), 0, decodeFixedString)
	require.NoError(t, err)

	_, _, ok, err := it.Next()
	require.NoError(t, err)
	require.False(t, ok)
	require.NoError(t, it.Close())
}
