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
	"testing"

	"github.com/stretchr/testify/require"
)

func TestStoreGetReturnsLatestDurableValue(t *testing.T) {
	dir := t.TempDir()
	s, err := OpenStore(dir, "projects", decodeFixedString)
	require.NoError(t, err)
	defer s.Close()

	_, err = s.Append(0, fixedString("v1"))
	require.NoError(t, err)
	_, err = s.Flush()
	require.NoError(t, err)

	v, ok, err := s.Get(0)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, fixedString("v1"), v)

	_, err = s.Append(0, fixedString("v2"))
	require.NoError(t, err)
	// Not yet flushed: Get still only sees durable data.
	v, ok, err = s.Get(0)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, fixedString("v1"), v)

	_, err = s.Flush()
	require.NoError(t, err)
	v, ok, err = s.Get(0)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, fixedString("v2"), v)
}

func TestStoreGetMissingID(t *testing.T) {
	dir := t.TempDir()
	s, err := OpenStore(dir, "projects", decodeFixedString)
	require.NoError(t, err)
	defer s.Close()

	_, ok, err := s.Get(42)
	require.NoError(t, err)
	require.False(t, ok)
}

type storeKindTest int

const (
	kindA storeKindTest = iota
	kindB
)

func nameForKind(k storeKindTest) string {
	if k == kindA {
		return "kind-a"
	}
	return "kind-b"
}

func TestSplitStorePartitionsByKey(t *testing.T) {
	dir := t.TempDir()
	ss := OpenSplitStore[fixedString, storeKindTest](dir, nameForKind, decodeFixedString)
	defer ss.Close()

	_, err := ss.Append(kindA, 0, fixedString("alpha"))
	require.NoError(t, err)
	_, err = ss.Append(kindB, 0, fixedString("beta"))
	require.NoError(t, err)
	require.NoError(t, ss.AddToSavepoint(NewSavepoint("sp", 1)))

	va, ok, err := ss.Get(kindA, 0)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, fixedString("alpha"), va)

	vb, ok, err := ss.Get(kindB, 0)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, fixedString("beta"), vb)

	_, ok, err = ss.Get(kindA, 99)
	require.NoError(t, err)
	require.False(t, ok)
}
