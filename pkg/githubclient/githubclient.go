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

// Package githubclient fetches per-project GitHub repository metadata,
// rotating across a pool of access tokens as each is rejected or exhausts
// its rate limit.
package githubclient

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/go-github/v32/github"
	"golang.org/x/oauth2"
)

// Metadata is the subset of a GitHub repository's API response CodeDJ
// stores, with every *_url field dropped except HTMLURL: those are all
// mechanically derived from owner/name and html_url, so storing them would
// only bloat the metadata log with redundant bytes.
type Metadata struct {
	HTMLURL       string `json:"html_url"`
	Language      string `json:"language"`
	DefaultBranch string `json:"default_branch"`
	Description   string `json:"description"`
	Fork          bool   `json:"fork"`
	Archived      bool   `json:"archived"`
	Stars         int    `json:"stargazers_count"`
	Private       bool   `json:"private"`
}

// Client rotates across a pool of tokens, sleeping once every token has
// reported an exhausted rate limit rather than failing the caller.
type Client struct {
	mu        sync.Mutex
	clients   []*github.Client
	current   int
	rateSleep time.Duration
}

// New builds a Client. An empty tokens slice produces a single
// unauthenticated client, heavily rate-limited by GitHub but still usable
// for light testing.
func New(tokens []string, rateSleep time.Duration) *Client {
	if rateSleep <= 0 {
		rateSleep = 10 * time.Minute
	}
	if len(tokens) == 0 {
		return &Client{clients: []*github.Client{github.NewClient(nil)}, rateSleep: rateSleep}
	}

	clients := make([]*github.Client, len(tokens))
	for i, tok := range tokens {
		ts := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: tok})
		clients[i] = github.NewClient(oauth2.NewClient(context.Background(), ts))
	}
	return &Client{clients: clients, rateSleep: rateSleep}
}

func (c *Client) tokenClient() (*github.Client, int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.clients[c.current], c.current
}

// nextToken advances past id, the token that just failed, unless another
// goroutine has already advanced past it (mirrors a CAS on "current == id").
func (c *Client) nextToken(id int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.current == id {
		c.current = (c.current + 1) % len(c.clients)
	}
}

// Repository fetches metadata for owner/name, rotating tokens on 401/403
// with a zero remaining rate limit and sleeping once every token in the
// pool has been tried within one rotation.
func (c *Client) Repository(ctx context.Context, owner, name string) (Metadata, error) {
	attempts := 0
	for {
		client, id := c.tokenClient()

		repo, resp, err := client.Repositories.Get(ctx, owner, name)
		if err == nil {
			return metadataFromRepo(repo), nil
		}

		if resp != nil && (resp.StatusCode == 401 || resp.StatusCode == 403) {
			if resp.Rate.Remaining == 0 {
				c.nextToken(id)
				attempts++
				if attempts >= len(c.clients) {
					time.Sleep(c.rateSleep)
					attempts = 0
				}
				continue
			}
		}
		return Metadata{}, fmt.Errorf("githubclient: get %s/%s: %w", owner, name, err)
	}
}

func metadataFromRepo(repo *github.Repository) Metadata {
	m := Metadata{
		HTMLURL:       repo.GetHTMLURL(),
		Language:      repo.GetLanguage(),
		DefaultBranch: repo.GetDefaultBranch(),
		Description:   repo.GetDescription(),
		Fork:          repo.GetFork(),
		Archived:      repo.GetArchived(),
		Stars:         repo.GetStargazersCount(),
		Private:       repo.GetPrivate(),
	}
	return m
}

// ParseOwnerRepo splits a GitHub "owner/name" or full https URL into its
// owner and repository name.
func ParseOwnerRepo(urlOrSlug string) (owner, name string, err error) {
	s := strings.TrimSuffix(urlOrSlug, ".git")
	s = strings.TrimPrefix(s, "https://github.com/")
	s = strings.TrimPrefix(s, "git@github.com:")
	parts := strings.Split(s, "/")
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", fmt.Errorf("githubclient: cannot parse owner/repo from %q", urlOrSlug)
	}
	return parts[0], parts[1], nil
}

// MarshalMetadata encodes m as the JSON string stored in project metadata,
// keyed "github_metadata".
func MarshalMetadata(m Metadata) (string, error) {
	b, err := json.Marshal(m)
	if err != nil {
		return "", fmt.Errorf("githubclient: marshal metadata: %w", err)
	}
	return string(b), nil
}
