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
	"os"
	"path/filepath"
	"testing"

	"github.com/kraklabs/codedj/pkg/serialize"
	"github.com/stretchr/testify/require"
)

type fixedString string

func (s fixedString) WriteTo(w *serialize.Writer) error { return w.WriteString(string(s)) }

func decodeFixedString(r *serialize.Reader) (fixedString, error) {
	s, err := r.ReadString()
	return fixedString(s), err
}

func TestTableWriterAppendAndFlush(t *testing.T) {
	dir := t.TempDir()
	tw, err := OpenTable(dir, "widgets")
	require.NoError(t, err)
	defer tw.Close()

	off0, err := tw.Append(0, fixedString("alpha"))
	require.NoError(t, err)
	require.Equal(t, int64(0), off0)

	off1, err := tw.Append(1, fixedString("beta"))
	require.NoError(t, err)
	require.True(t, off1 > off0)

	confirmed, err := tw.Flush()
	require.NoError(t, err)
	require.Equal(t, tw.Len(), confirmed)
	require.Equal(t, confirmed, tw.ConfirmedLen())
}

func TestTableWriterReopenAfterCleanClose(t *testing.T) {
	dir := t.TempDir()
	tw, err := OpenTable(dir, "widgets")
	require.NoError(t, err)
	_, err = tw.Append(0, fixedString("alpha"))
	require.NoError(t, err)
	require.NoError(t, tw.Close())

	tw2, err := OpenTable(dir, "widgets")
	require.NoError(t, err)
	defer tw2.Close()
	require.Equal(t, tw.ConfirmedLen(), tw2.ConfirmedLen())
}

func TestTableWriterDetectsCorruption(t *testing.T) {
	dir := t.TempDir()
	tw, err := OpenTable(dir, "widgets")
	require.NoError(t, err)
	_, err = tw.Append(0, fixedString("alpha"))
	require.NoError(t, err)
	_, err = tw.Flush()
	require.NoError(t, err)
	require.NoError(t, tw.Close())

	// Simulate a torn write: append raw bytes past the confirmed checkpoint
	// length without going through TableWriter.
	f, err := os.OpenFile(filepath.Join(dir, "widgets"), os.O_APPEND|os.O_WRONLY, 0o644)
	require.NoError(t, err)
	_, err = f.Write([]byte{0xff, 0xff, 0xff})
	require.NoError(t, err)
	require.NoError(t, f.Close())

	_, err = OpenTable(dir, "widgets")
	require.Error(t, err)
	var corrupt *CorruptionError
	require.ErrorAs(t, err, &corrupt)
	require.Equal(t, "widgets", corrupt.Table)
}

func TestTableWriterRevertToSavepoint(t *testing.T) {
	dir := t.TempDir()
	tw, err := OpenTable(dir, "widgets")
	require.NoError(t, err)
	defer tw.Close()

	_, err = tw.Append(0, fixedString("alpha"))
	require.NoError(t, err)

	sp := NewSavepoint("sp1", 1000)
	require.NoError(t, tw.AddToSavepoint(sp))
	lenAtSavepoint := tw.ConfirmedLen()

	_, err = tw.Append(1, fixedString("beta"))
	require.NoError(t, err)
	_, err = tw.Flush()
	require.NoError(t, err)
	require.True(t, tw.ConfirmedLen() > lenAtSavepoint)

	require.NoError(t, tw.RevertToSavepoint(sp))
	require.Equal(t, lenAtSavepoint, tw.ConfirmedLen())
	require.Equal(t, lenAtSavepoint, tw.Len())
}

func TestTableWriterRevertToSavepointMissingTableGoesEmpty(t *testing.T) {
	dir := t.TempDir()
	tw, err := OpenTable(dir, "widgets")
	require.NoError(t, err)
	defer tw.Close()

	_, err = tw.Append(0, fixedString("alpha"))
	require.NoError(t, err)
	_, err = tw.Flush()
	require.NoError(t, err)

	sp := NewSavepoint("empty", 1000) // widgets never added
	require.NoError(t, tw.RevertToSavepoint(sp))
	require.Equal(t, int64(0), tw.ConfirmedLen())
}
