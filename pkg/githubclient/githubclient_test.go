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

package githubclient

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) (*Client, *httptest.Server) {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	c := New([]string{"tok-a", "tok-b"}, 10*time.Millisecond)
	base, err := url.Parse(server.URL + "/")
	require.NoError(t, err)
	for _, gc := range c.clients {
		gc.BaseURL = base
	}
	return c, server
}

func TestRepositoryFetchesMetadata(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"html_url":"https://github.com/a/b","language":"Go","default_branch":"main"}`))
	})

	m, err := c.Repository(context.Background(), "a", "b")
	require.NoError(t, err)
	require.Equal(t, "Go", m.Language)
	require.Equal(t, "main", m.DefaultBranch)
}

func TestRepositoryRotatesTokenOnRateLimited403(t *testing.T) {
	var calls int
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls == 1 {
			w.Header().Set("X-RateLimit-Remaining", "0")
			w.WriteHeader(http.StatusForbidden)
			w.Write([]byte(`{"message":"rate limited"}`))
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"html_url":"https://github.com/a/b","language":"Go"}`))
	})

	m, err := c.Repository(context.Background(), "a", "b")
	require.NoError(t, err)
	require.Equal(t, "Go", m.Language)
	require.Equal(t, 2, calls)
}

func TestParseOwnerRepo(t *testing.T) {
	owner, name, err := ParseOwnerRepo("https://github.com/foo/bar.git")
	require.NoError(t, err)
	require.Equal(t, "foo", owner)
	require.Equal(t, "bar", name)

	_, _, err = ParseOwnerRepo("not-a-slug")
	require.Error(t, err)
}

func TestMarshalMetadataDropsNonHTMLURLFields(t *testing.T) {
	s, err := MarshalMetadata(Metadata{HTMLURL: "https://github.com/a/b", Language: "Go"})
	require.NoError(t, err)
	require.Contains(t, s, `"html_url"`)
	require.NotContains(t, s, "api.github.com")
}
