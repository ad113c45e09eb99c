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
	"strings"

	"github.com/go-git/go-git/v5/plumbing/object"
)

// Identity is an author or committer identity. Key returns the lowercased
// email address, the key used for mapping-table dedup; the display name is
// not part of the key, so one email under several names is one identity.
type Identity struct {
	Name  string
	Email string
	When  int64 // unix seconds
}

func (id Identity) Key() string { return strings.ToLower(id.Email) }

// AuthorOf returns the commit's author identity.
func AuthorOf(c *object.Commit) Identity {
	return Identity{Name: c.Author.Name, Email: c.Author.Email, When: c.Author.When.Unix()}
}

// CommitterOf returns the commit's committer identity.
func CommitterOf(c *object.Commit) Identity {
	return Identity{Name: c.Committer.Name, Email: c.Committer.Email, When: c.Committer.When.Unix()}
}
