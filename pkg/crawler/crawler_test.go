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

package crawler

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/stretchr/testify/require"

	"github.com/kraklabs/codedj/internal/config"
	"github.com/kraklabs/codedj/pkg/codedj"
	"github.com/kraklabs/codedj/pkg/datastore"
	"github.com/kraklabs/codedj/pkg/gitremote"
	"github.com/kraklabs/codedj/pkg/substore"
)

func writeAndCommit(t *testing.T, wt *git.Worktree, dir, path, contents string) {
	t.Helper()
	full := filepath.Join(dir, path)
	require.NoError(t, os.MkdirAll(filepath.Dir(full), 0o755))
	require.NoError(t, os.WriteFile(full, []byte(contents), 0o644))
	_, err := wt.Add(path)
	require.NoError(t, err)
	sig := &object.Signature{Name: "tester", Email: "tester@example.com", When: time.Unix(1000, 0)}
	_, err = wt.Commit("msg", &git.CommitOptions{Author: sig, Committer: sig})
	require.NoError(t, err)
}

func newTestRemote(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	repo, err := git.PlainInit(dir, false)
	require.NoError(t, err)
	wt, err := repo.Worktree()
	require.NoError(t, err)
	writeAndCommit(t, wt, dir, "main.go", "package main\n")
	return dir
}

func newTestCrawler(t *testing.T) (*Crawler, uint64) {
	t.Helper()
	root := t.TempDir()
	db, err := codedj.Create(root, false)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	remoteDir := newTestRemote(t)
	id, created, err := db.Datastore.AddProject(datastore.Project{
		Kind:         datastore.ProjectGit,
		IDString:     remoteDir,
		SubstoreKind: substore.Generic,
	})
	require.NoError(t, err)
	require.True(t, created)

	cfg := config.DefaultConfig()
	c := New(db, cfg, nil, filepath.Join(root, "clones"))
	require.NoError(t, EnsureCloneDir(c.CloneDir))
	return c, id
}

func TestUpdateIngestsNewCommitsAndRecordsHeads(t *testing.T) {
	c, id := newTestCrawler(t)
	require.NoError(t, c.update(context.Background(), id))

	status, ok, err := c.DB.Datastore.LatestUpdateStatus(substore.Generic, id)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, datastore.StatusOk, status.Status)

	heads, ok, err := c.DB.Datastore.LatestHeads(substore.Generic, id)
	require.NoError(t, err)
	require.True(t, ok)
	require.Len(t, heads.Refs, 1)

	ss, err := c.DB.Datastore.Substore(substore.Generic)
	require.NoError(t, err)
	require.Equal(t, uint64(1), ss.Commits.Len())
}

func TestUpdateIsNoOpWhenHeadsUnchanged(t *testing.T) {
	c, id := newTestCrawler(t)
	require.NoError(t, c.update(context.Background(), id))
	require.NoError(t, c.update(context.Background(), id))

	status, ok, err := c.DB.Datastore.LatestUpdateStatus(substore.Generic, id)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, datastore.StatusNoChange, status.Status)
}

func TestUpdateSkipsProjectWithPriorError(t *testing.T) {
	c, id := newTestCrawler(t)
	require.NoError(t, c.DB.Datastore.UpdateProjectUpdateStatus(substore.Generic, id, datastore.ProjectUpdateLog{
		Status: datastore.StatusError, Time: 1, SchemaVersion: 1, ErrorMessage: "boom",
	}))

	require.NoError(t, c.update(context.Background(), id))

	status, ok, err := c.DB.Datastore.LatestUpdateStatus(substore.Generic, id)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, datastore.StatusError, status.Status, "update must not clear a prior error status on its own")
}

func TestChangedRefsDetectsNewHeadsAndSkipsUnchanged(t *testing.T) {
	hashA := plumbing.NewHash("aaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa")
	hashB := plumbing.NewHash("bbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbb")

	remote := []gitremote.RemoteHead{
		{Name: "refs/heads/main", Hash: hashA},
		{Name: "refs/heads/dev", Hash: hashB},
	}
	known := datastore.ProjectHeads{Refs: map[string]datastore.Head{
		"refs/heads/main": {SHA: shaFromHash(hashA)},
	}}

	changed := changedRefs(remote, known)
	require.Len(t, changed, 1)
	require.Equal(t, "refs/heads/dev", changed[0].Name)
}
