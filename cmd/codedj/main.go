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

// Package main implements the codedj CLI for building and incrementally
// updating a content-addressed software-heritage store.
//
// Usage:
//
//	codedj create <path>                Initialize a new superstore
//	codedj add <path-or-url> [...]       Register one or more projects
//	codedj update [--parallel N]         Incrementally crawl registered projects
//	codedj log                           Show the command history
package main

import (
	"fmt"
	"os"

	flag "github.com/spf13/pflag"

	"github.com/kraklabs/codedj/internal/errors"
	"github.com/kraklabs/codedj/internal/ui"
)

var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

// GlobalFlags holds the flags recognized ahead of the subcommand name.
type GlobalFlags struct {
	JSON    bool
	NoColor bool
	Quiet   bool
	Root    string
	Config  string
}

func main() {
	var (
		showVersion = flag.BoolP("version", "V", false, "Show version and exit")
		jsonOutput  = flag.Bool("json", false, "Output in JSON format (for applicable commands)")
		noColor     = flag.Bool("no-color", false, "Disable color output")
		quiet       = flag.BoolP("quiet", "q", false, "Suppress non-essential output (progress, info messages)")
		root        = flag.StringP("root", "r", ".", "Path to the superstore directory")
		configPath  = flag.StringP("config", "c", "", "Path to codedj.yaml (default: <root>/codedj.yaml)")
	)

	flag.SetInterspersed(false)
	flag.Usage = printUsage

	flag.Parse()

	if *showVersion {
		fmt.Printf("codedj version %s\n", version)
		fmt.Printf("commit: %s\n", commit)
		fmt.Printf("built: %s\n", date)
		os.Exit(0)
	}

	if os.Getenv("NO_COLOR") != "" {
		*noColor = true
	}
	if *jsonOutput {
		*quiet = true
	}

	globals := GlobalFlags{JSON: *jsonOutput, NoColor: *noColor, Quiet: *quiet, Root: *root, Config: *configPath}
	ui.InitColors(globals.NoColor)

	args := flag.Args()
	if len(args) == 0 {
		flag.Usage()
		os.Exit(1)
	}

	command := args[0]
	cmdArgs := args[1:]

	var err error
	switch command {
	case "create":
		err = runCreate(cmdArgs, globals)
	case "add":
		err = runAdd(cmdArgs, globals)
	case "update":
		err = runUpdate(cmdArgs, globals)
	case "log":
		err = runLog(cmdArgs, globals)
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", command)
		flag.Usage()
		os.Exit(1)
	}

	if err != nil {
		errors.FatalError(err, globals.JSON)
	}
}

func printUsage() {
	fmt.Fprint(os.Stderr, `codedj - content-addressed software heritage store

Usage:
  codedj <command> [options]

Commands:
  create <path>           Initialize a new superstore at path
  add <path-or-url> ...   Register one or more git/GitHub projects to crawl
  update                  Incrementally crawl every registered project
  log                     Show the command history

Global Options:
  --json            Output in JSON format (for applicable commands)
  --no-color        Disable color output (respects NO_COLOR env var)
  -q, --quiet       Suppress non-essential output
  -r, --root        Path to the superstore directory (default: .)
  -c, --config      Path to codedj.yaml (default: <root>/codedj.yaml)
  -V, --version     Show version and exit

Examples:
  codedj create ./store
  codedj --root ./store add https://github.com/golang/go
  codedj --root ./store add projects.csv
  codedj --root ./store update --workers 32
  codedj --root ./store log

`)
}
