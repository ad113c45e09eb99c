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
	"bytes"
	"testing"

	"github.com/kraklabs/codedj/pkg/serialize"
	"github.com/stretchr/testify/require"
)

func TestSavepointAddRejectsDuplicateTable(t *testing.T) {
	sp := NewSavepoint("sp1", 42)
	require.NoError(t, sp.Add("commits", 100))
	require.Error(t, sp.Add("commits", 200))
}

func TestSavepointSizeDefaultsToZero(t *testing.T) {
	sp := NewSavepoint("sp1", 42)
	require.Equal(t, uint64(0), sp.Size("never-added"))
}

func TestSavepointRoundTrip(t *testing.T) {
	sp := NewSavepoint("sp1", 42)
	require.NoError(t, sp.Add("commits", 100))
	require.NoError(t, sp.Add("hashes", 200))

	var buf bytes.Buffer
	w := serialize.NewWriter(&buf, 0)
	require.NoError(t, sp.WriteTo(w))

	got := &Savepoint{}
	r := serialize.NewReader(&buf, 0)
	require.NoError(t, got.ReadFrom(r))

	require.Equal(t, sp.Name, got.Name)
	require.Equal(t, sp.Time, got.Time)
	require.Equal(t, sp.Size("commits"), got.Size("commits"))
	require.Equal(t, sp.Size("hashes"), got.Size("hashes"))
	require.ElementsMatch(t, sp.Tables(), got.Tables())
}

func TestSavepointLogAppendAndReopen(t *testing.T) {
	dir := t.TempDir()
	log, err := OpenSavepointLog(dir)
	require.NoError(t, err)

	sp1 := NewSavepoint("sp1", 1)
	require.NoError(t, sp1.Add("commits", 10))
	require.NoError(t, log.Append(sp1))

	sp2 := NewSavepoint("sp2", 2)
	require.NoError(t, sp2.Add("commits", 20))
	require.NoError(t, log.Append(sp2))

	require.ErrorContains(t, log.Append(NewSavepoint("sp1", 3)), "already exists")

	latest, ok := log.Latest()
	require.True(t, ok)
	require.Equal(t, "sp2", latest.Name)
	require.Equal(t, []string{"sp1", "sp2"}, log.Names())
	require.NoError(t, log.Close())

	reopened, err := OpenSavepointLog(dir)
	require.NoError(t, err)
	defer reopened.Close()

	got, ok := reopened.Get("sp1")
	require.True(t, ok)
	require.Equal(t, uint64(10), got.Size("commits"))
	require.Equal(t, []string{"sp1", "sp2"}, reopened.Names())
}
