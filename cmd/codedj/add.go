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

package main

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	flag "github.com/spf13/pflag"

	"github.com/kraklabs/codedj/internal/errors"
	"github.com/kraklabs/codedj/internal/ui"
	"github.com/kraklabs/codedj/pkg/codedj"
	"github.com/kraklabs/codedj/pkg/datastore"
	"github.com/kraklabs/codedj/pkg/githubclient"
	"github.com/kraklabs/codedj/pkg/substore"
)

// runAdd executes the 'add' CLI command, registering one or more projects
// to crawl. Each argument is either a clone URL/slug or the path to a CSV
// file holding one URL per line (blank lines and lines starting with '#'
// are skipped); any mix of the two forms is accepted in a single
// invocation.
func runAdd(args []string, globals GlobalFlags) error {
	fs := flag.NewFlagSet("add", flag.ContinueOnError)
	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, `Usage: codedj add <path-or-url> [<path-or-url> ...] [options]

Description:
  Register one or more projects for the crawler to pick up on the next
  'codedj update'. Each argument is either:
    - a git clone URL (ssh:// or https://), stored as a ProjectGit
    - a "owner/repo" slug or github.com URL, stored as a ProjectGitHub
      (fetched via the configured GitHub token pool for metadata)
    - the path to a CSV file holding one URL or slug per line

  Adding a URL that is already registered is a no-op: the project keeps
  its existing ProjectId.

Options:
`)
		fs.PrintDefaults()
	}
	if err := fs.Parse(args); err != nil {
		return errors.NewInputError("Invalid arguments", err.Error(), "Run 'codedj add --help' for usage")
	}
	if fs.NArg() == 0 {
		return errors.NewInputError("Nothing to add", "add requires at least one URL or CSV path", "Run 'codedj add --help' for usage")
	}

	db, err := codedj.Open(globals.Root)
	if err != nil {
		return openError(err)
	}
	defer db.Close()

	if err := db.StartCommand(version, "codedj add "+strings.Join(fs.Args(), " ")); err != nil {
		return errors.NewDatabaseError("Cannot record command", err.Error(), "Revert to the latest savepoint", err)
	}
	defer db.EndCommand()

	var identities []string
	for _, arg := range fs.Args() {
		if looksLikeCSV(arg) {
			lines, err := readCSVLines(arg)
			if err != nil {
				return errors.NewInputError("Cannot read CSV file", err.Error(), "Check the path and file permissions")
			}
			identities = append(identities, lines...)
			continue
		}
		identities = append(identities, arg)
	}

	added, skipped := 0, 0
	for _, raw := range identities {
		project := classifyProject(raw)
		_, created, err := db.Datastore.AddProject(project)
		if err != nil {
			return errors.NewDatabaseError("Cannot add project", err.Error(), "Revert to the latest savepoint", err)
		}
		if created {
			added++
			if !globals.Quiet {
				ui.Infof("added %s", project.IDString)
			}
		} else {
			skipped++
		}
	}

	if !globals.Quiet {
		ui.Successf("%d project(s) added, %d already registered", added, skipped)
	}
	return nil
}

// looksLikeCSV treats any argument that is an existing regular file as a
// CSV list rather than a URL: a bare URL is never also a valid local path.
func looksLikeCSV(arg string) bool {
	info, err := os.Stat(arg)
	return err == nil && !info.IsDir()
}

func readCSVLines(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var lines []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		// A CSV may carry a URL as its first field; anything after the
		// first comma is ignored (the core only tracks the identity).
		if idx := strings.IndexByte(line, ','); idx >= 0 {
			line = strings.TrimSpace(line[:idx])
		}
		if line != "" {
			lines = append(lines, line)
		}
	}
	return lines, scanner.Err()
}

// classifyProject decides whether raw identifies a GitHub-hosted project
// (stored as "owner/repo" so the crawler can resolve both its clone URL and
// its GitHub metadata from the same string) or a plain git remote. A raw
// string is only treated as a GitHub slug when it names github.com
// explicitly, or has no scheme/host markers at all (a bare "owner/repo").
func classifyProject(raw string) datastore.Project {
	isGitHub := strings.Contains(raw, "github.com")
	if !isGitHub && !strings.ContainsAny(raw, ":@") {
		if parts := strings.Split(raw, "/"); len(parts) == 2 && parts[0] != "" && parts[1] != "" {
			isGitHub = true
		}
	}

	if isGitHub {
		if owner, name, err := githubclient.ParseOwnerRepo(raw); err == nil {
			return datastore.Project{Kind: datastore.ProjectGitHub, IDString: owner + "/" + name, SubstoreKind: substore.SmallProjects}
		}
	}
	return datastore.Project{Kind: datastore.ProjectGit, IDString: raw, SubstoreKind: substore.SmallProjects}
}
