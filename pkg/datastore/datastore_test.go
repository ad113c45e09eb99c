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

package datastore

import (
	"testing"

	"github.com/kraklabs/codedj/pkg/serialize"
	"github.com/kraklabs/codedj/pkg/store"
	"github.com/kraklabs/codedj/pkg/substore"
	"github.com/stretchr/testify/require"
)

func TestAddProjectDedupsByURL(t *testing.T) {
	dir := t.TempDir()
	ds, err := Open(dir)
	require.NoError(t, err)
	defer ds.Close()

	p := Project{Kind: ProjectGitHub, IDString: "https://github.com/a/b.git", SubstoreKind: substore.SmallProjects}

	id1, created1, err := ds.AddProject(p)
	require.NoError(t, err)
	require.True(t, created1)
	require.EqualValues(t, 0, id1)

	id2, created2, err := ds.AddProject(p)
	require.NoError(t, err)
	require.False(t, created2)
	require.Equal(t, id1, id2)
}

func TestUpdateProjectMetadataIfDifferSkipsDuplicate(t *testing.T) {
	dir := t.TempDir()
	ds, err := Open(dir)
	require.NoError(t, err)
	defer ds.Close()

	appended, err := ds.UpdateProjectMetadataIfDiffer(substore.Go, 0, "github_metadata", `{"language":"Go"}`)
	require.NoError(t, err)
	require.True(t, appended)

	appended, err = ds.UpdateProjectMetadataIfDiffer(substore.Go, 0, "github_metadata", `{"language":"Go"}`)
	require.NoError(t, err)
	require.False(t, appended)

	appended, err = ds.UpdateProjectMetadataIfDiffer(substore.Go, 0, "github_metadata", `{"language":"Go","x":1}`)
	require.NoError(t, err)
	require.True(t, appended)
}

func TestUpdateProjectHeadsAndStatus(t *testing.T) {
	dir := t.TempDir()
	ds, err := Open(dir)
	require.NoError(t, err)
	defer ds.Close()

	heads := ProjectHeads{Refs: map[string]Head{
		"refs/heads/main": {CommitID: 5, SHA: serialize.SHA{1, 2, 3}},
	}}
	require.NoError(t, ds.UpdateProjectHeads(substore.Go, 0, heads))
	require.NoError(t, ds.UpdateProjectUpdateStatus(substore.Go, 0, ProjectUpdateLog{Status: StatusOk, Time: 100, SchemaVersion: 1}))

	gotHeads, ok, err := ds.LatestHeads(substore.Go, 0)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, uint64(5), gotHeads.Refs["refs/heads/main"].CommitID)

	status, ok, err := ds.LatestUpdateStatus(substore.Go, 0)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, StatusOk, status.Status)
}

func TestDatastoreSavepointRevert(t *testing.T) {
	dir := t.TempDir()
	ds, err := Open(dir)
	require.NoError(t, err)
	defer ds.Close()

	_, _, err = ds.AddProject(Project{IDString: "a", SubstoreKind: substore.SmallProjects})
	require.NoError(t, err)

	sp := store.NewSavepoint("sp1", 1)
	require.NoError(t, ds.AddToSavepoint(sp))

	_, _, err = ds.AddProject(Project{IDString: "b", SubstoreKind: substore.SmallProjects})
	require.NoError(t, err)

	require.NoError(t, ds.RevertToSavepoint(sp))

	_, created, err := ds.AddProject(Project{IDString: "b", SubstoreKind: substore.SmallProjects})
	require.NoError(t, err)
	require.True(t, created, "project b should have been reverted away")
}
