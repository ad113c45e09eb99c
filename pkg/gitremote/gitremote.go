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

// Package gitremote performs the real git-protocol work a crawl step needs:
// listing a remote's branch heads, cloning or fetching exactly the refs
// that changed since the last update, and walking the resulting commit
// graph parent-before-child.
package gitremote

import (
	"fmt"
	"os"
	"strings"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/config"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/go-git/go-git/v5/plumbing/transport"
	httptransport "github.com/go-git/go-git/v5/plumbing/transport/http"
)

// RemoteHead is one refs/heads/* ref as reported by the remote, before any
// clone or fetch has happened.
type RemoteHead struct {
	Name string // e.g. "refs/heads/main"
	Hash plumbing.Hash
}

// AuthFor builds a go-git AuthMethod from a GitHub token. An empty token
// means unauthenticated access.
func AuthFor(token string) transport.AuthMethod {
	if token == "" {
		return nil
	}
	return &httptransport.BasicAuth{Username: "x-access-token", Password: token}
}

// ListRemoteHeads lists every refs/heads/* ref currently on the remote
// without cloning anything locally, so the crawler can diff against the
// project's last known heads before paying for a clone.
func ListRemoteHeads(url string, auth transport.AuthMethod) ([]RemoteHead, error) {
	remote := git.NewRemote(nil, &config.RemoteConfig{Name: "origin", URLs: []string{url}})

	refs, err := remote.List(&git.ListOptions{Auth: auth})
	if err != nil {
		return nil, fmt.Errorf("gitremote: list %s: %w", url, err)
	}

	var heads []RemoteHead
	for _, ref := range refs {
		if ref.Name().IsBranch() {
			heads = append(heads, RemoteHead{Name: string(ref.Name()), Hash: ref.Hash()})
		}
	}
	return heads, nil
}

// CloneOrFetch makes a bare clone of url into dir if dir does not exist,
// or opens and fetches it otherwise. The first clone transfers every
// branch of the remote; a later fetch transfers only the explicitly named
// refs, keeping fetches proportional to what actually changed.
func CloneOrFetch(dir, url string, refs []string, auth transport.AuthMethod) (*git.Repository, error) {
	specs := refSpecs(refs)

	if _, err := os.Stat(dir); err != nil {
		repo, err := git.PlainClone(dir, true, &git.CloneOptions{
			URL:           url,
			Auth:          auth,
			ReferenceName: plumbing.ReferenceName(refs[0]),
			SingleBranch:  false,
			NoCheckout:    true,
		})
		if err != nil {
			return nil, fmt.Errorf("gitremote: clone %s: %w", url, err)
		}
		return repo, nil
	}

	repo, err := git.PlainOpen(dir)
	if err != nil {
		return nil, fmt.Errorf("gitremote: open %s: %w", dir, err)
	}

	err = repo.Fetch(&git.FetchOptions{
		RemoteName: "origin",
		RefSpecs:   specs,
		Auth:       auth,
		Force:      true,
	})
	if err != nil && err != git.NoErrAlreadyUpToDate {
		return nil, fmt.Errorf("gitremote: fetch %s: %w", url, err)
	}
	return repo, nil
}

func refSpecs(refs []string) []config.RefSpec {
	specs := make([]config.RefSpec, 0, len(refs))
	for _, r := range refs {
		specs = append(specs, config.RefSpec(fmt.Sprintf("+%s:%s", r, r)))
	}
	return specs
}

// CommitHash resolves a ref name to its current commit hash within repo.
func CommitHash(repo *git.Repository, ref string) (plumbing.Hash, error) {
	r, err := repo.Reference(plumbing.ReferenceName(ref), true)
	if err != nil {
		return plumbing.ZeroHash, fmt.Errorf("gitremote: resolve %s: %w", ref, err)
	}
	return r.Hash(), nil
}

// CommitObject loads the commit object for hash.
func CommitObject(repo *git.Repository, hash plumbing.Hash) (*object.Commit, error) {
	c, err := repo.CommitObject(hash)
	if err != nil {
		return nil, fmt.Errorf("gitremote: load commit %s: %w", hash, err)
	}
	return c, nil
}

func isBranchRef(name string) bool {
	return strings.HasPrefix(name, "refs/heads/")
}
