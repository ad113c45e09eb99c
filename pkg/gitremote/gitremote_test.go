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

package gitremote

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/stretchr/testify/require"
)

func commitFile(t *testing.T, wt *git.Worktree, dir, path, contents string) plumbing.Hash {
	t.Helper()
	full := filepath.Join(dir, path)
	require.NoError(t, os.MkdirAll(filepath.Dir(full), 0o755))
	require.NoError(t, os.WriteFile(full, []byte(contents), 0o644))
	_, err := wt.Add(path)
	require.NoError(t, err)

	sig := &object.Signature{Name: "tester", Email: "tester@example.com", When: time.Unix(1000, 0)}
	hash, err := wt.Commit("msg", &git.CommitOptions{Author: sig, Committer: sig})
	require.NoError(t, err)
	return hash
}

func TestWalkCommitsVisitsParentsBeforeChildren(t *testing.T) {
	dir := t.TempDir()
	repo, err := git.PlainInit(dir, false)
	require.NoError(t, err)
	wt, err := repo.Worktree()
	require.NoError(t, err)

	h1 := commitFile(t, wt, dir, "a.txt", "one")
	h2 := commitFile(t, wt, dir, "a.txt", "two")
	h3 := commitFile(t, wt, dir, "b.txt", "three")

	visited := VisitedSet{}
	var order []plumbing.Hash
	require.NoError(t, WalkCommits(repo, h3, visited, func(c *object.Commit) error {
		order = append(order, c.Hash)
		return nil
	}))

	require.Equal(t, []plumbing.Hash{h1, h2, h3}, order)
	require.True(t, visited[h1])
	require.True(t, visited[h3])
}

func TestWalkCommitsSkipsAlreadyVisited(t *testing.T) {
	dir := t.TempDir()
	repo, err := git.PlainInit(dir, false)
	require.NoError(t, err)
	wt, err := repo.Worktree()
	require.NoError(t, err)

	h1 := commitFile(t, wt, dir, "a.txt", "one")
	h2 := commitFile(t, wt, dir, "a.txt", "two")

	visited := VisitedSet{h1: true}
	var order []plumbing.Hash
	require.NoError(t, WalkCommits(repo, h2, visited, func(c *object.Commit) error {
		order = append(order, c.Hash)
		return nil
	}))

	require.Equal(t, []plumbing.Hash{h2}, order)
}

func TestDiffCommitRootCommitIsAllInserts(t *testing.T) {
	dir := t.TempDir()
	repo, err := git.PlainInit(dir, false)
	require.NoError(t, err)
	wt, err := repo.Worktree()
	require.NoError(t, err)

	h1 := commitFile(t, wt, dir, "a.txt", "one")
	c1, err := repo.CommitObject(h1)
	require.NoError(t, err)

	changes, err := DiffCommit(c1)
	require.NoError(t, err)
	require.Len(t, changes, 1)
	require.Equal(t, Insert, changes[0].Action)
	require.Equal(t, "a.txt", changes[0].Path)
}

func TestDiffCommitModify(t *testing.T) {
	dir := t.TempDir()
	repo, err := git.PlainInit(dir, false)
	require.NoError(t, err)
	wt, err := repo.Worktree()
	require.NoError(t, err)

	commitFile(t, wt, dir, "a.txt", "one")
	h2 := commitFile(t, wt, dir, "a.txt", "two")
	c2, err := repo.CommitObject(h2)
	require.NoError(t, err)

	changes, err := DiffCommit(c2)
	require.NoError(t, err)
	require.Len(t, changes, 1)
	require.Equal(t, Modify, changes[0].Action)
}

func TestAuthorOfAndIdentityKey(t *testing.T) {
	dir := t.TempDir()
	repo, err := git.PlainInit(dir, false)
	require.NoError(t, err)
	wt, err := repo.Worktree()
	require.NoError(t, err)

	h1 := commitFile(t, wt, dir, "a.txt", "one")
	c1, err := repo.CommitObject(h1)
	require.NoError(t, err)

	id := AuthorOf(c1)
	require.Equal(t, "tester@example.com", id.Key())
}
