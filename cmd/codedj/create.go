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
	"fmt"
	"os"
	"path/filepath"

	flag "github.com/spf13/pflag"

	"github.com/kraklabs/codedj/internal/config"
	"github.com/kraklabs/codedj/internal/errors"
	"github.com/kraklabs/codedj/internal/ui"
	"github.com/kraklabs/codedj/pkg/codedj"
)

// runCreate executes the 'create' CLI command, initializing a fresh
// superstore directory: the FolderLock, an empty command log, an empty
// savepoint log, and the global project tables. It fails with
// codedj.ErrAlreadyExists when the path already holds a superstore, unless
// --force is given; with --force the existing superstore is opened and its
// tables are kept.
func runCreate(args []string, globals GlobalFlags) error {
	fs := flag.NewFlagSet("create", flag.ContinueOnError)
	force := fs.Bool("force", false, "Open an existing superstore at path instead of failing (its tables are kept)")

	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, `Usage: codedj create <path> [options]

Description:
  Initialize a new, empty CodeDJ superstore at <path>. Creates the
  directory if needed, writes the FolderLock sentinel, and opens every
  global table so the path is ready for 'codedj add'.

Options:
`)
		fs.PrintDefaults()
	}

	if err := fs.Parse(args); err != nil {
		return errors.NewInputError("Invalid arguments", err.Error(), "Run 'codedj create --help' for usage")
	}
	if fs.NArg() != 1 {
		return errors.NewInputError(
			"Missing path",
			"create requires exactly one argument: the superstore directory to initialize",
			"Run 'codedj create <path>'",
		)
	}

	path := fs.Arg(0)
	db, err := codedj.Create(path, *force)
	if err != nil {
		if err == codedj.ErrAlreadyExists {
			return errors.NewInputError(
				"Superstore already exists",
				fmt.Sprintf("%s already holds a CodeDJ superstore", path),
				"Pass --force to open it as it is, or choose a different path",
			)
		}
		return errors.NewDatabaseError("Cannot create superstore", err.Error(), "Check directory permissions", err)
	}
	defer db.Close()

	if err := db.StartCommand(version, "codedj create "+path); err != nil {
		return errors.NewDatabaseError("Cannot record command", err.Error(), "This is a bug", err)
	}
	defer db.EndCommand()

	cfgPath := globals.Config
	if cfgPath == "" {
		cfgPath = filepath.Join(path, "codedj.yaml")
	}
	if _, err := os.Stat(cfgPath); os.IsNotExist(err) {
		if err := config.SaveConfig(config.DefaultConfig(), cfgPath); err != nil {
			return err
		}
	}

	if !globals.Quiet {
		ui.Success("Initialized CodeDJ superstore at " + path)
		ui.Infof("Configuration written to %s", cfgPath)
	}
	return nil
}
