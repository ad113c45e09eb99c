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
	"fmt"

	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/go-git/go-git/v5/utils/merkletrie"
)

// ChangeAction mirrors merkletrie's three possible per-path actions.
type ChangeAction int

const (
	Insert ChangeAction = iota
	Delete
	Modify
)

// PathChange is one file-level change between a commit and one of its
// parents, with the blob hashes needed to fetch old/new contents.
type PathChange struct {
	Path   string
	Action ChangeAction
	OldBlob plumbing.Hash
	NewBlob plumbing.Hash
	OldMode, NewMode string
}

// DiffCommit returns the union of path changes between c's tree and every
// parent's tree. A no-parent (root) commit is diffed against the empty
// tree, so every path in it shows up as an Insert. Merge commits union
// changes across all parents rather than picking one side, matching how a
// content-addressed store wants to record "this content entered the
// project through any parent" without caring which parent.
func DiffCommit(c *object.Commit) ([]PathChange, error) {
	tree, err := c.Tree()
	if err != nil {
		return nil, fmt.Errorf("gitremote: tree for %s: %w", c.Hash, err)
	}

	if c.NumParents() == 0 {
		changes, err := diffTrees(&object.Tree{}, tree)
		if err != nil {
			return nil, fmt.Errorf("gitremote: diff root commit %s: %w", c.Hash, err)
		}
		return changes, nil
	}

	seen := map[string]PathChange{}
	err = c.Parents().ForEach(func(parent *object.Commit) error {
		parentTree, err := parent.Tree()
		if err != nil {
			return fmt.Errorf("gitremote: tree for parent %s: %w", parent.Hash, err)
		}
		changes, err := diffTrees(parentTree, tree)
		if err != nil {
			return fmt.Errorf("gitremote: diff %s vs parent %s: %w", c.Hash, parent.Hash, err)
		}
		for _, ch := range changes {
			seen[ch.Path] = ch
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	out := make([]PathChange, 0, len(seen))
	for _, ch := range seen {
		out = append(out, ch)
	}
	return out, nil
}

func diffTrees(from, to *object.Tree) ([]PathChange, error) {
	treeChanges, err := from.Diff(to)
	if err != nil {
		return nil, err
	}

	out := make([]PathChange, 0, len(treeChanges))
	for _, tc := range treeChanges {
		action, err := tc.Action()
		if err != nil {
			return nil, err
		}

		pc := PathChange{}
		switch action {
		case merkletrie.Insert:
			pc.Action = Insert
			pc.Path = tc.To.Name
			pc.NewBlob = tc.To.TreeEntry.Hash
			pc.NewMode = tc.To.TreeEntry.Mode.String()
		case merkletrie.Delete:
			pc.Action = Delete
			pc.Path = tc.From.Name
			pc.OldBlob = tc.From.TreeEntry.Hash
			pc.OldMode = tc.From.TreeEntry.Mode.String()
		case merkletrie.Modify:
			pc.Action = Modify
			pc.Path = tc.To.Name
			pc.OldBlob = tc.From.TreeEntry.Hash
			pc.NewBlob = tc.To.TreeEntry.Hash
			pc.OldMode = tc.From.TreeEntry.Mode.String()
			pc.NewMode = tc.To.TreeEntry.Mode.String()
		}
		out = append(out, pc)
	}
	return out, nil
}

// BlobContents reads the full contents of the file at path in tree.
func BlobContents(tree *object.Tree, path string) ([]byte, error) {
	f, err := tree.File(path)
	if err != nil {
		return nil, fmt.Errorf("gitremote: read blob %s: %w", path, err)
	}
	contents, err := f.Contents()
	if err != nil {
		return nil, fmt.Errorf("gitremote: read blob %s: %w", path, err)
	}
	return []byte(contents), nil
}
