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

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"
)

// VisitedSet tracks commit hashes already delivered to a WalkCommits
// callback, shared across every head being walked for a project so a
// commit reachable from two branches is only processed once.
type VisitedSet map[plumbing.Hash]bool

// WalkCommits visits every commit reachable from head that is not already
// in visited, in parent-before-child order (a commit is visited only after
// all of its parents have been), and marks each as visited. This lets the
// per-project update logic assign ids and compute diffs assuming every
// parent it needs is already recorded.
func WalkCommits(repo *git.Repository, head plumbing.Hash, visited VisitedSet, fn func(*object.Commit) error) error {
	order, err := topoOrder(repo, head, visited)
	if err != nil {
		return err
	}
	for _, h := range order {
		c, err := repo.CommitObject(h)
		if err != nil {
			return fmt.Errorf("gitremote: load commit %s: %w", h, err)
		}
		if err := fn(c); err != nil {
			return err
		}
	}
	return nil
}

// CountReachable counts commits reachable from any of heads, visiting each
// at most once, stopping as soon as the count exceeds limit. It is used
// only to test "has this project crossed the small-projects commit
// threshold", never to obtain an exact count for a large repository, so
// scanning stops the moment the answer is known.
func CountReachable(repo *git.Repository, heads []plumbing.Hash, limit int) (int, error) {
	seen := map[plumbing.Hash]bool{}
	stack := make([]plumbing.Hash, 0, len(heads))
	for _, h := range heads {
		if !seen[h] {
			seen[h] = true
			stack = append(stack, h)
		}
	}

	count := 0
	for len(stack) > 0 && count <= limit {
		h := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		count++

		c, err := repo.CommitObject(h)
		if err != nil {
			return 0, fmt.Errorf("gitremote: load commit %s: %w", h, err)
		}
		for _, p := range c.ParentHashes {
			if !seen[p] {
				seen[p] = true
				stack = append(stack, p)
			}
		}
	}
	return count, nil
}

// topoOrder computes the reverse-postorder (parents before children) of
// every not-yet-visited commit reachable from head, via an iterative DFS to
// avoid recursion depth limits on long-lived repositories.
func topoOrder(repo *git.Repository, head plumbing.Hash, visited VisitedSet) ([]plumbing.Hash, error) {
	type frame struct {
		hash        plumbing.Hash
		parentIndex int
	}

	if visited[head] {
		return nil, nil
	}

	var order []plumbing.Hash
	onStack := map[plumbing.Hash]bool{}
	stack := []frame{{hash: head}}
	onStack[head] = true

	for len(stack) > 0 {
		top := &stack[len(stack)-1]

		if visited[top.hash] {
			stack = stack[:len(stack)-1]
			delete(onStack, top.hash)
			continue
		}

		c, err := repo.CommitObject(top.hash)
		if err != nil {
			return nil, fmt.Errorf("gitremote: load commit %s: %w", top.hash, err)
		}

		if top.parentIndex < len(c.ParentHashes) {
			parent := c.ParentHashes[top.parentIndex]
			top.parentIndex++
			if !visited[parent] && !onStack[parent] {
				stack = append(stack, frame{hash: parent})
				onStack[parent] = true
			}
			continue
		}

		order = append(order, top.hash)
		visited[top.hash] = true
		stack = stack[:len(stack)-1]
		delete(onStack, top.hash)
	}

	return order, nil
}
