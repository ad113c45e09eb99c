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

// Package config loads the operator-facing codedj.yaml configuration: the
// crawler's worker pool size, GitHub token pool, substore thresholds, and
// savepoint policy. Every field has a DefaultConfig value, so the file
// itself is optional.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/kraklabs/codedj/internal/errors"
	"gopkg.in/yaml.v3"
)

const configVersion = "1"

// Config is the top-level shape of codedj.yaml.
type Config struct {
	Version   string          `yaml:"version"`
	Crawler   CrawlerConfig   `yaml:"crawler"`
	GitHub    GitHubConfig    `yaml:"github"`
	Savepoint SavepointConfig `yaml:"savepoint"`
}

// CrawlerConfig controls the per-project update worker pool and the
// thresholds that drive substore assignment.
type CrawlerConfig struct {
	// Workers is the number of concurrent per-project update goroutines.
	Workers int `yaml:"workers"`

	// SmallProjectsThreshold is the commit count at or below which a project
	// is kept in the shared SmallProjects substore rather than its
	// language-specific one.
	SmallProjectsThreshold int `yaml:"small_projects_threshold"`

	// CloneTimeout is parsed and saved with the configuration; no crawler
	// step reads it, so clone and fetch run without a time limit.
	CloneTimeout time.Duration `yaml:"clone_timeout"`

	// RequeueBackoff is parsed and saved with the configuration; no crawler
	// step reads it.
	RequeueBackoff time.Duration `yaml:"requeue_backoff"`
}

// GitHubConfig controls the metadata client's token pool and rate-limit
// backoff.
type GitHubConfig struct {
	// Tokens is the pool of personal access tokens rotated between as each
	// is exhausted or rejected. May be empty (unauthenticated, heavily
	// rate-limited requests).
	Tokens []string `yaml:"tokens,omitempty"`

	// RateLimitSleep is how long to sleep after every token in the pool has
	// reported a zero remaining quota, before retrying from the first
	// token again.
	RateLimitSleep time.Duration `yaml:"rate_limit_sleep"`
}

// SavepointConfig controls automatic savepoint cadence during a long update
// run, independent of the savepoint every `stop` command takes before
// exiting.
type SavepointConfig struct {
	// Every triggers an automatic savepoint after this many projects have
	// been successfully updated. Zero disables automatic mid-run
	// savepoints (a savepoint is still taken on stop).
	Every int `yaml:"every"`
}

// DefaultConfig returns a Config with sensible defaults for a single-host
// crawl.
func DefaultConfig() *Config {
	return &Config{
		Version: configVersion,
		Crawler: CrawlerConfig{
			Workers:                16,
			SmallProjectsThreshold: 10,
			CloneTimeout:           15 * time.Minute,
			RequeueBackoff:         time.Minute,
		},
		GitHub: GitHubConfig{
			RateLimitSleep: 10 * time.Minute,
		},
		Savepoint: SavepointConfig{
			Every: 1000,
		},
	}
}

// LoadConfig reads and validates codedj.yaml at path. If path does not
// exist, DefaultConfig is returned with no error: the file is optional.
// Token pool and worker count env overrides are applied after parsing,
// matching the precedence operators expect from CI and container
// deployments where a mounted config file is inconvenient.
func LoadConfig(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			applyEnvOverrides(cfg)
			return cfg, nil
		}
		return nil, errors.NewConfigError(
			"Cannot read configuration file",
			fmt.Sprintf("Failed to read %s", path),
			"Check file permissions and ensure the file exists",
			err,
		)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, errors.NewConfigError(
			"Invalid configuration format",
			"YAML parsing failed - the config file contains syntax errors",
			fmt.Sprintf("Edit %s to fix syntax errors", path),
			err,
		)
	}

	if cfg.Version == "" {
		cfg.Version = configVersion
	} else if cfg.Version != configVersion {
		return nil, errors.NewConfigError(
			"Unsupported configuration version",
			fmt.Sprintf("Config version %q is not supported (expected %q)", cfg.Version, configVersion),
			"Update the version field, or regenerate the configuration file",
			nil,
		)
	}

	if cfg.Crawler.Workers <= 0 {
		cfg.Crawler.Workers = DefaultConfig().Crawler.Workers
	}

	applyEnvOverrides(cfg)
	return cfg, nil
}

// applyEnvOverrides lets CODEDJ_WORKERS and CODEDJ_GITHUB_TOKENS (a comma
// separated list) override the file without editing it, for CI runs.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("CODEDJ_WORKERS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.Crawler.Workers = n
		}
	}
	if v := os.Getenv("CODEDJ_GITHUB_TOKENS"); v != "" {
		cfg.GitHub.Tokens = strings.Split(v, ",")
	}
}

// SaveConfig writes cfg to path as YAML with permissions 0600, since it may
// carry GitHub tokens.
func SaveConfig(cfg *Config, path string) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return errors.NewInternalError(
			"Cannot encode configuration",
			"YAML marshaling failed unexpectedly",
			"This is a bug",
			err,
		)
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return errors.NewPermissionError(
			"Cannot write configuration file",
			fmt.Sprintf("Permission denied writing to %s", path),
			"Check file permissions and ensure sufficient disk space",
			err,
		)
	}
	return nil
}
