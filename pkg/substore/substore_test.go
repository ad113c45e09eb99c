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
	"bytes"
	"testing"

	"github.com/kraklabs/codedj/pkg/serialize"
	"github.com/kraklabs/codedj/pkg/store"
	"github.com/stretchr/testify/require"
)

func TestCommitRoundTrip(t *testing.T) {
	c := Commit{
		CommitterID:   1,
		CommitterTime: 1000,
		AuthorID:      2,
		AuthorTime:    999,
		Parents:       []uint64{0, 1},
		Changes:       map[uint64]uint64{5: 10, 6: DeletedHashID},
		Message:       EscapeMessage([]byte{0x48, 0x69, 0xff}),
	}
	require.Equal(t, "Hi%ff", c.Message)

	var buf bytes.Buffer
	w := serialize.NewWriter(&buf, 0)
	require.NoError(t, c.WriteTo(w))

	var got Commit
	r := serialize.NewReader(&buf, 0)
	require.NoError(t, got.ReadFrom(r))
	require.Equal(t, c, got)
}

func TestSubstoreOpenAndAddCommitInfo(t *testing.T) {
	dir := t.TempDir()
	ss, err := Open(dir, Go)
	require.NoError(t, err)
	defer ss.Close()

	sha := serialize.SHA{1, 2, 3}
	id, isNew, err := ss.Commits.GetOrCreate(sha)
	require.NoError(t, err)
	require.True(t, isNew)

	commit := Commit{CommitterID: 0, CommitterTime: 1, AuthorID: 0, AuthorTime: 1, Message: "initial"}

	appended, err := ss.AddCommitInfoIfMissing(id, commit, false)
	require.NoError(t, err)
	require.True(t, appended)
	_, err = ss.CommitsInfo.Flush()
	require.NoError(t, err)

	// Re-adding the identical record is a no-op.
	appended, err = ss.AddCommitInfoIfMissing(id, commit, false)
	require.NoError(t, err)
	require.False(t, appended)

	// A changed record without force is also a no-op (not is_new -> skip).
	changed := commit
	changed.Message = "changed"
	appended, err = ss.AddCommitInfoIfMissing(id, changed, false)
	require.NoError(t, err)
	require.False(t, appended)

	// The same changed record under force is appended and logs the prior
	// offset.
	appended, err = ss.AddCommitInfoIfMissing(id, changed, true)
	require.NoError(t, err)
	require.True(t, appended)
	_, err = ss.CommitsInfo.Flush()
	require.NoError(t, err)

	stored, ok, err := ss.CommitsInfo.Get(id)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "changed", stored.Message)
}

func TestSubstoreSavepointRevert(t *testing.T) {
	dir := t.TempDir()
	ss, err := Open(dir, Go)
	require.NoError(t, err)
	defer ss.Close()

	sha1 := serialize.SHA{1}
	id1, _, err := ss.Commits.GetOrCreate(sha1)
	require.NoError(t, err)
	_, err = ss.CommitsInfo.Append(id1, Commit{Message: "one"})
	require.NoError(t, err)

	sp := store.NewSavepoint("sp1", 1)
	require.NoError(t, ss.AddToSavepoint(sp))

	sha2 := serialize.SHA{2}
	_, _, err = ss.Commits.GetOrCreate(sha2)
	require.NoError(t, err)
	_, err = ss.CommitsInfo.Flush()
	require.NoError(t, err)

	require.EqualValues(t, 2, ss.Commits.Len())

	require.NoError(t, ss.RevertToSavepoint(sp))
	require.EqualValues(t, 1, ss.Commits.Len())

	_, ok := ss.Commits.Get(sha2)
	require.False(t, ok)
}

func TestContentsKindNameMatchesLangclassBuckets(t *testing.T) {
	require.Equal(t, "source", ContentsSource.String())
	require.Equal(t, "binary", ContentsBinary.String())
}

func TestUpdateMetadataIfDiffer(t *testing.T) {
	dir := t.TempDir()
	ss, err := Open(dir, Go)
	require.NoError(t, err)
	defer ss.Close()

	appended, err := UpdateMetadataIfDiffer(ss.UsersMetadata, 0, "name", "Ada")
	require.NoError(t, err)
	require.True(t, appended)
	_, err = ss.UsersMetadata.Flush()
	require.NoError(t, err)

	appended, err = UpdateMetadataIfDiffer(ss.UsersMetadata, 0, "name", "Ada")
	require.NoError(t, err)
	require.False(t, appended)

	appended, err = UpdateMetadataIfDiffer(ss.UsersMetadata, 0, "name", "Ada Lovelace")
	require.NoError(t, err)
	require.True(t, appended)
}
