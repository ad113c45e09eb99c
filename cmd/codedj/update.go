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
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	flag "github.com/spf13/pflag"

	"github.com/kraklabs/codedj/internal/config"
	"github.com/kraklabs/codedj/internal/errors"
	"github.com/kraklabs/codedj/internal/ui"
	"github.com/kraklabs/codedj/pkg/codedj"
	"github.com/kraklabs/codedj/pkg/crawler"
	"github.com/kraklabs/codedj/pkg/githubclient"
)

// runUpdate executes the 'update' CLI command: it builds a priority queue
// from every registered, non-failed project and drains it with a pool of
// workers, each running one project through the incremental crawler
// pipeline. While a terminal is attached, typed commands (pause, run, stop,
// kill, savepoint) are read from stdin and drive the run without needing a
// signal.
func runUpdate(args []string, globals GlobalFlags) error {
	fs := flag.NewFlagSet("update", flag.ContinueOnError)
	workers := fs.IntP("parallel", "p", 0, "Number of concurrent update workers (default: config's crawler.workers)")
	fs.IntVar(workers, "workers", 0, "Alias for --parallel")
	metricsAddr := fs.String("metrics-addr", "", "HTTP listen address for Prometheus metrics (empty to disable)")
	cloneDir := fs.String("clone-dir", "", "Scratch directory for bare clones (default: <root>/.clones)")

	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, `Usage: codedj update [options]

Description:
  Incrementally crawl every registered project: list its remote heads,
  fetch only what changed since the last successful update, and ingest
  new commits into its assigned substore.

  While running, typed commands on stdin control the run:
    pause       stop dequeuing new projects (in-flight work finishes)
    run         resume dequeuing
    savepoint   take a named savepoint without stopping
    stop        take a savepoint, then stop cleanly
    kill        exit immediately, with no savepoint

Options:
`)
		fs.PrintDefaults()
	}
	if err := fs.Parse(args); err != nil {
		return errors.NewInputError("Invalid arguments", err.Error(), "Run 'codedj update --help' for usage")
	}

	cfgPath := globals.Config
	if cfgPath == "" {
		cfgPath = filepath.Join(globals.Root, "codedj.yaml")
	}
	cfg, err := config.LoadConfig(cfgPath)
	if err != nil {
		return err
	}
	if *workers > 0 {
		cfg.Crawler.Workers = *workers
	}

	db, err := codedj.Open(globals.Root)
	if err != nil {
		return openError(err)
	}
	defer db.Close()

	if err := db.StartCommand(version, "codedj update"); err != nil {
		return errors.NewDatabaseError("Cannot record command", err.Error(), "Revert to the latest savepoint", err)
	}
	defer db.EndCommand()

	dir := *cloneDir
	if dir == "" {
		dir = filepath.Join(globals.Root, ".clones")
	}
	if err := crawler.EnsureCloneDir(dir); err != nil {
		return errors.NewPermissionError("Cannot create clone directory", err.Error(), "Check filesystem permissions", err)
	}

	gh := githubclient.New(cfg.GitHub.Tokens, cfg.GitHub.RateLimitSleep)

	q, err := crawler.LoadQueue(db.Datastore)
	if err != nil {
		return errors.NewDatabaseError("Cannot build update queue", err.Error(), "Revert to the latest savepoint", err)
	}

	cr := crawler.New(db, cfg, gh, dir)

	if *metricsAddr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.HandlerFor(cr.Registry, promhttp.HandlerOpts{}))
		srv := &http.Server{Addr: *metricsAddr, Handler: mux, ReadHeaderTimeout: 10 * time.Second}
		go func() {
			if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				cr.Reporter.Error("metrics", "metrics server stopped", err)
			}
		}()
		if !globals.Quiet {
			ui.Infof("metrics listening on %s/metrics", *metricsAddr)
		}
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCtx, stopSignals := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stopSignals()

	ctl := crawler.NewController(q, cr.Reporter, db.Savepoint, cancel)
	go ctl.Run(os.Stdin)

	total := q.Len()
	if !globals.Quiet {
		ui.Infof("updating %d project(s) with %d worker(s)", total, cfg.Crawler.Workers)
	}

	runErr := cr.Run(sigCtx, q)
	cr.Reporter.Close()

	if runErr != nil && runErr != context.Canceled {
		return errors.NewNetworkError("Update run ended with an error", runErr.Error(), "Check the log above for the failing project", runErr)
	}

	if !globals.Quiet {
		ui.Success("Update run complete")
	}
	return nil
}
