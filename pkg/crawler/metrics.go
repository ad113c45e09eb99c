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

package crawler

import "github.com/prometheus/client_golang/prometheus"

// Metrics are the crawler's Prometheus instruments, registered once per
// Crawler so multiple Crawlers in the same process (tests) don't collide on
// the default registry.
type Metrics struct {
	ProjectsUpdated  prometheus.Counter
	ProjectsNoChange prometheus.Counter
	ProjectsFailed   prometheus.Counter
	CommitsIngested  prometheus.Counter
	ContentsStored   prometheus.Counter
	CloneFailures    prometheus.Counter
	GitHubRequests   prometheus.Counter
	QueueDepth       prometheus.Gauge
}

// NewMetrics builds and registers a fresh Metrics set against reg. Passing
// prometheus.NewRegistry() (rather than the global DefaultRegisterer) keeps
// concurrent tests isolated.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		ProjectsUpdated: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "codedj", Subsystem: "crawler", Name: "projects_updated_total",
			Help: "Projects whose heads advanced and were fully ingested.",
		}),
		ProjectsNoChange: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "codedj", Subsystem: "crawler", Name: "projects_no_change_total",
			Help: "Projects whose remote heads matched the last known heads.",
		}),
		ProjectsFailed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "codedj", Subsystem: "crawler", Name: "projects_failed_total",
			Help: "Projects whose update step returned an error.",
		}),
		CommitsIngested: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "codedj", Subsystem: "crawler", Name: "commits_ingested_total",
			Help: "Commits newly minted (GetOrCreate isNew) across all substores.",
		}),
		ContentsStored: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "codedj", Subsystem: "crawler", Name: "contents_stored_total",
			Help: "Blobs whose bytes were written, per langclass.ShouldStoreContents.",
		}),
		CloneFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "codedj", Subsystem: "crawler", Name: "clone_failures_total",
			Help: "CloneOrFetch calls that returned an error.",
		}),
		GitHubRequests: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "codedj", Subsystem: "crawler", Name: "github_requests_total",
			Help: "Calls made through the githubclient metadata client.",
		}),
		QueueDepth: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "codedj", Subsystem: "crawler", Name: "queue_depth",
			Help: "Projects currently queued awaiting an update worker.",
		}),
	}
	reg.MustRegister(
		m.ProjectsUpdated, m.ProjectsNoChange, m.ProjectsFailed,
		m.CommitsIngested, m.ContentsStored, m.CloneFailures,
		m.GitHubRequests, m.QueueDepth,
	)
	return m
}
