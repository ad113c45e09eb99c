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

// Package crawler implements CodeDJ's incremental update loop: a priority
// queue of projects ordered by staleness, a worker pool that fetches only
// the refs that changed since the last successful update, and the
// commit-by-commit ingestion that populates a project's assigned substore.
package crawler

import (
	"context"
	"crypto/sha1"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/go-git/go-git/v5/plumbing/transport"
	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/sync/errgroup"

	"github.com/kraklabs/codedj/internal/config"
	"github.com/kraklabs/codedj/pkg/codedj"
	"github.com/kraklabs/codedj/pkg/datastore"
	"github.com/kraklabs/codedj/pkg/githubclient"
	"github.com/kraklabs/codedj/pkg/gitremote"
	"github.com/kraklabs/codedj/pkg/langclass"
	"github.com/kraklabs/codedj/pkg/serialize"
	"github.com/kraklabs/codedj/pkg/substore"
)

// Clock lets tests substitute a fixed time source; Now defaults to
// time.Now().Unix().
type Clock func() int64

// Crawler drives repeated per-project updates against a CodeDJ superstore,
// fetching only the refs a project's remote reports as changed and
// ingesting their new commits into the project's assigned substore.
type Crawler struct {
	DB       *codedj.CodeDJ
	Config   *config.Config
	GitHub   *githubclient.Client
	Reporter *Reporter
	Metrics  *Metrics
	Registry *prometheus.Registry
	CloneDir string
	Now      Clock

	schemaVersion uint32
	successCount  uint64
}

// New builds a Crawler. cloneDir is the scratch directory bare clones are
// kept under, one subdirectory per project id. Registry holds the Metrics
// instruments and is exported so callers can serve it over /metrics.
func New(db *codedj.CodeDJ, cfg *config.Config, gh *githubclient.Client, cloneDir string) *Crawler {
	reg := prometheus.NewRegistry()
	return &Crawler{
		DB:            db,
		Config:        cfg,
		GitHub:        gh,
		Reporter:      NewReporter(),
		Metrics:       NewMetrics(reg),
		Registry:      reg,
		CloneDir:      cloneDir,
		Now:           func() int64 { return time.Now().Unix() },
		schemaVersion: 1,
	}
}

// Run drains tasks from q with Config.Crawler.Workers concurrent workers
// until q is closed or ctx is cancelled, updating Metrics.QueueDepth as it
// goes. It returns once every worker has exited.
func (c *Crawler) Run(ctx context.Context, q *Queue) error {
	workers := c.Config.Crawler.Workers
	if workers <= 0 {
		workers = 1
	}

	stopWatch := make(chan struct{})
	defer close(stopWatch)
	go func() {
		select {
		case <-ctx.Done():
			q.Close()
		case <-stopWatch:
		}
	}()

	group, gctx := errgroup.WithContext(ctx)
	for i := 0; i < workers; i++ {
		group.Go(func() error {
			c.work(gctx, q)
			return nil
		})
	}
	if err := group.Wait(); err != nil {
		return err
	}
	return ctx.Err()
}

func (c *Crawler) work(ctx context.Context, q *Queue) {
	for {
		if ctx.Err() != nil {
			return
		}
		task, ok := q.Pop()
		if !ok {
			return
		}
		c.Metrics.QueueDepth.Set(float64(q.Len()))

		name := strconv.FormatUint(task.ProjectID, 10)
		c.Reporter.Start(name, "updating")
		c.runUpdate(ctx, name, task.ProjectID)
	}
}

// runUpdate calls update and turns a panic into a project-level Error log
// entry, so one corrupt repository or unexpected library panic never takes
// down the whole worker pool.
func (c *Crawler) runUpdate(ctx context.Context, name string, id uint64) {
	defer func() {
		if r := recover(); r != nil {
			c.Metrics.ProjectsFailed.Inc()
			c.Reporter.Error(name, "panic during update", fmt.Errorf("%v", r))
		}
	}()

	if err := c.update(ctx, id); err != nil {
		c.Metrics.ProjectsFailed.Inc()
		c.Reporter.Error(name, "update failed", err)
		return
	}

	c.maybeAutoSavepoint()
}

// maybeAutoSavepoint takes a savepoint every Config.Savepoint.Every
// successful project updates, independent of the savepoint a `stop`
// command takes on its way out. A zero Every disables this entirely.
func (c *Crawler) maybeAutoSavepoint() {
	every := c.Config.Savepoint.Every
	if every <= 0 {
		return
	}
	n := atomic.AddUint64(&c.successCount, 1)
	if n%uint64(every) != 0 {
		return
	}
	name := fmt.Sprintf("auto-%d", c.Now())
	if err := c.DB.Savepoint(name); err != nil {
		c.Reporter.Error("controller", "automatic savepoint failed", err)
		return
	}
	c.Reporter.Info("controller", fmt.Sprintf("automatic savepoint %q created after %d updates", name, n))
}

// update runs one project through the full incremental pipeline: load its
// last known state, list and diff remote heads, fetch only what changed,
// walk new commits parent-before-child, and record the new heads and
// update status. A project whose latest update status is an error is
// skipped, and stays skipped on every later run: re-adding its URL does not
// clear that status.
func (c *Crawler) update(ctx context.Context, id uint64) error {
	ds := c.DB.Datastore

	project, ok, err := ds.Projects.Get(id)
	if err != nil {
		return fmt.Errorf("crawler: load project %d: %w", id, err)
	}
	if !ok {
		return fmt.Errorf("crawler: no such project %d", id)
	}

	kind := project.SubstoreKind
	if k, ok, err := ds.ProjectSubstoreKind(id); err != nil {
		return fmt.Errorf("crawler: load substore kind %d: %w", id, err)
	} else if ok {
		kind = k
	}
	if last, ok, err := ds.LatestUpdateStatus(kind, id); err != nil {
		return fmt.Errorf("crawler: load status %d: %w", id, err)
	} else if ok && last.Status == datastore.StatusError {
		c.Reporter.Info(strconv.FormatUint(id, 10), "skipped: last update failed")
		return nil
	}

	tentativeLanguage, err := c.fetchGitHubMetadata(ctx, &project, id, kind, ds)
	if err != nil {
		return c.fail(kind, id, err)
	}

	cloneURL, auth, err := c.resolveRemote(project)
	if err != nil {
		return c.fail(kind, id, err)
	}

	remoteHeads, err := gitremote.ListRemoteHeads(cloneURL, auth)
	if err != nil {
		return c.fail(kind, id, fmt.Errorf("crawler: list remote heads: %w", err))
	}

	knownHeads, _, err := ds.LatestHeads(kind, id)
	if err != nil {
		return c.fail(kind, id, fmt.Errorf("crawler: load known heads: %w", err))
	}

	changed := changedRefs(remoteHeads, knownHeads)
	if len(changed) == 0 {
		c.Metrics.ProjectsNoChange.Inc()
		return ds.UpdateProjectUpdateStatus(kind, id, datastore.ProjectUpdateLog{
			Status: datastore.StatusNoChange, Time: c.Now(), SchemaVersion: c.schemaVersion,
		})
	}

	refNames := make([]string, 0, len(changed))
	for _, h := range changed {
		refNames = append(refNames, h.Name)
	}

	dir := filepath.Join(c.CloneDir, strconv.FormatUint(id, 10))
	repo, err := gitremote.CloneOrFetch(dir, cloneURL, refNames, auth)
	if err != nil {
		c.Metrics.CloneFailures.Inc()
		return c.fail(kind, id, err)
	}

	threshold := c.Config.Crawler.SmallProjectsThreshold
	if threshold <= 0 {
		threshold = substore.SmallProjectsThreshold
	}
	changedHashes := make([]plumbing.Hash, 0, len(changed))
	for _, h := range changed {
		changedHashes = append(changedHashes, h.Hash)
	}
	commitCount, err := gitremote.CountReachable(repo, changedHashes, threshold)
	if err != nil {
		return c.fail(kind, id, fmt.Errorf("crawler: count commits: %w", err))
	}

	kind, err = c.resolveSubstoreKind(kind, tentativeLanguage, commitCount > threshold, id, ds)
	if err != nil {
		return c.fail(kind, id, err)
	}

	ss, err := ds.Substore(kind)
	if err != nil {
		return c.fail(kind, id, fmt.Errorf("crawler: open substore %s: %w", kind, err))
	}
	if !ss.Loaded() {
		if err := ss.Load(); err != nil {
			return c.fail(kind, id, fmt.Errorf("crawler: load substore %s: %w", kind, err))
		}
	}

	visited := gitremote.VisitedSet{}
	newHeads := datastore.ProjectHeads{Refs: map[string]datastore.Head{}}
	for name, head := range knownHeads.Refs {
		newHeads.Refs[name] = head
	}

	for _, h := range changed {
		var headID uint64
		var haveHeadID bool
		err := gitremote.WalkCommits(repo, h.Hash, visited, func(commit *object.Commit) error {
			commitID, err := c.ingestCommit(ss, commit)
			if err != nil {
				return err
			}
			headID, haveHeadID = commitID, true
			return nil
		})
		if err != nil {
			return c.fail(kind, id, fmt.Errorf("crawler: walk %s: %w", h.Name, err))
		}
		if !haveHeadID {
			// h.Hash was already visited via another ref this run (or a
			// prior run); resolve its id directly instead of relying on the
			// walk callback, which skips already-visited commits entirely.
			resolvedID, ok := ss.Commits.Get(shaFromHash(h.Hash))
			if !ok {
				return c.fail(kind, id, fmt.Errorf("crawler: commit %s not minted after walk", h.Hash))
			}
			headID = resolvedID
		}
		newHeads.Refs[h.Name] = datastore.Head{CommitID: headID, SHA: shaFromHash(h.Hash)}
	}

	if err := ds.UpdateProjectHeads(kind, id, newHeads); err != nil {
		return c.fail(kind, id, fmt.Errorf("crawler: update heads: %w", err))
	}
	if err := ds.UpdateProjectUpdateStatus(kind, id, datastore.ProjectUpdateLog{
		Status: datastore.StatusOk, Time: c.Now(), SchemaVersion: c.schemaVersion,
	}); err != nil {
		return err
	}

	c.Metrics.ProjectsUpdated.Inc()
	c.Reporter.Done(strconv.FormatUint(id, 10), "updated")
	return nil
}

func (c *Crawler) fail(kind substore.Kind, id uint64, cause error) error {
	logErr := c.DB.Datastore.UpdateProjectUpdateStatus(kind, id, datastore.ProjectUpdateLog{
		Status: datastore.StatusError, Time: c.Now(), SchemaVersion: c.schemaVersion,
		ErrorMessage: cause.Error(),
	})
	if logErr != nil {
		return fmt.Errorf("%w (also failed to log: %v)", cause, logErr)
	}
	return cause
}

// resolveRemote derives a clone URL and auth method from a project's kind
// and identity string: a ProjectGit's IDString is already a clone URL; a
// ProjectGitHub's is an "owner/repo" slug resolved against github.com.
func (c *Crawler) resolveRemote(project datastore.Project) (url string, auth transport.AuthMethod, err error) {
	switch project.Kind {
	case datastore.ProjectGit:
		return project.IDString, nil, nil
	case datastore.ProjectGitHub:
		return "https://github.com/" + project.IDString + ".git", nil, nil
	default:
		return "", nil, fmt.Errorf("crawler: project %q has no fetchable remote (kind=%v)", project.IDString, project.Kind)
	}
}

// fetchGitHubMetadata is step 2 of the per-project update: for a
// ProjectGitHub project, fetch its current GitHub metadata, detect and
// apply a rename (html_url no longer matching the stored identity string),
// and store the metadata JSON if it differs from the last stored value. It
// returns the repository's reported primary language as a tentative
// substore hint, or "" if unavailable. A metadata fetch failure is
// swallowed here (treated as MetadataParse/RemoteFetch, non-fatal to the
// rest of the update) rather than aborting the project.
func (c *Crawler) fetchGitHubMetadata(ctx context.Context, project *datastore.Project, id uint64, kind substore.Kind, ds *datastore.Datastore) (tentativeLanguage string, err error) {
	if project.Kind != datastore.ProjectGitHub || c.GitHub == nil {
		return "", nil
	}

	owner, name, err := githubclient.ParseOwnerRepo(project.IDString)
	if err != nil {
		return "", nil
	}
	meta, err := c.GitHub.Repository(ctx, owner, name)
	c.Metrics.GitHubRequests.Inc()
	if err != nil {
		return "", nil
	}

	if slug := githubSlugFromHTMLURL(meta.HTMLURL); slug != "" && slug != project.IDString {
		if err := ds.RenameProject(id, slug); err != nil {
			return "", fmt.Errorf("crawler: rename project %d to %s: %w", id, slug, err)
		}
		project.IDString = slug
	}

	metaJSON, err := githubclient.MarshalMetadata(meta)
	if err != nil {
		return meta.Language, nil
	}
	if _, err := ds.UpdateProjectMetadataIfDiffer(kind, id, "github_metadata", metaJSON); err != nil {
		return "", fmt.Errorf("crawler: store github metadata for %d: %w", id, err)
	}

	return meta.Language, nil
}

// githubSlugFromHTMLURL extracts "owner/repo" from a GitHub html_url,
// mirroring the slug form ProjectGitHub identity strings are stored in.
func githubSlugFromHTMLURL(htmlURL string) string {
	owner, name, err := githubclient.ParseOwnerRepo(htmlURL)
	if err != nil {
		return ""
	}
	return owner + "/" + name
}

// resolveSubstoreKind implements step 8 of the per-project update: a
// project stays in SmallProjects until its commit count crosses the
// configured threshold; only then is it reassigned, preferring the
// tentative language hint from fetchGitHubMetadata and falling back to
// Generic when no hint is available.
func (c *Crawler) resolveSubstoreKind(current substore.Kind, tentativeLanguage string, crossedThreshold bool, id uint64, ds *datastore.Datastore) (substore.Kind, error) {
	if current != substore.SmallProjects || !crossedThreshold {
		return current, nil
	}

	target := substore.FromLanguage(tentativeLanguage)
	if target == current {
		return current, nil
	}

	if err := ds.UpdateProjectSubstore(id, current, target, c.Now(), c.schemaVersion); err != nil {
		return current, err
	}
	return target, nil
}

// ingestCommit dedups commit against the substore's Commits mapping,
// skipping full analysis when it is already known (from a prior run, or
// from another branch walked earlier this run), and otherwise resolves its
// author/committer/path/blob dependencies before recording it. Parent ids
// are always already present because WalkCommits guarantees parent-before-
// child order.
func (c *Crawler) ingestCommit(ss *substore.Substore, commit *object.Commit) (uint64, error) {
	sha := shaFromHash(commit.Hash)
	id, isNew, err := ss.Commits.GetOrCreate(sha)
	if err != nil {
		return 0, err
	}
	if !isNew {
		return id, nil
	}
	c.Metrics.CommitsIngested.Inc()

	authorID, _, err := ss.Users.GetOrCreate(serialize.StringKey(gitremote.AuthorOf(commit).Key()))
	if err != nil {
		return 0, err
	}
	committerID, _, err := ss.Users.GetOrCreate(serialize.StringKey(gitremote.CommitterOf(commit).Key()))
	if err != nil {
		return 0, err
	}

	tree, err := commit.Tree()
	if err != nil {
		return 0, fmt.Errorf("crawler: tree for %s: %w", commit.Hash, err)
	}

	changes, err := gitremote.DiffCommit(commit)
	if err != nil {
		return 0, err
	}

	changeMap := make(map[uint64]uint64, len(changes))
	for _, change := range changes {
		pathID, _, err := ss.Paths.GetOrCreate(pathKey(change.Path))
		if err != nil {
			return 0, err
		}

		if change.Action == gitremote.Delete {
			changeMap[pathID] = substore.DeletedHashID
			continue
		}

		hashID, hashIsNew, err := ss.Hashes.GetOrCreate(shaFromHash(change.NewBlob))
		if err != nil {
			return 0, err
		}
		changeMap[pathID] = hashID

		if hashIsNew && langclass.ShouldStoreContents(change.Path) {
			contents, err := gitremote.BlobContents(tree, change.Path)
			if err != nil {
				return 0, err
			}
			contentsKind := contentsKindFromName(langclass.ContentsKindName(change.Path))
			if _, err := ss.Contents.Append(contentsKind, hashID, substore.FileContents(contents)); err != nil {
				return 0, err
			}
			c.Metrics.ContentsStored.Inc()
		}
	}

	parents := make([]uint64, 0, commit.NumParents())
	for _, parentHash := range commit.ParentHashes {
		parentID, ok := ss.Commits.Get(shaFromHash(parentHash))
		if !ok {
			return 0, fmt.Errorf("crawler: parent %s of %s not yet minted", parentHash, commit.Hash)
		}
		parents = append(parents, parentID)
	}

	_, err = ss.AddCommitInfoIfMissing(id, substore.Commit{
		CommitterID:   committerID,
		CommitterTime: commit.Committer.When.Unix(),
		AuthorID:      authorID,
		AuthorTime:    commit.Author.When.Unix(),
		Parents:       parents,
		Changes:       changeMap,
		Message:       substore.EscapeMessage([]byte(commit.Message)),
	}, false)
	if err != nil {
		return 0, err
	}

	return id, nil
}

// shaFromHash reuses a go-git plumbing.Hash's 20 raw bytes directly as a
// serialize.SHA: both are SHA-1 digests of the same object, so no
// re-hashing is needed.
func shaFromHash(h plumbing.Hash) serialize.SHA {
	return serialize.SHA(h)
}

// pathKey hashes a repository path's UTF-8 bytes into the 20-byte key space
// the Paths mapping dedups on.
func pathKey(path string) serialize.SHA {
	return serialize.SHA(sha1.Sum([]byte(path)))
}

func contentsKindFromName(name string) substore.ContentsKind {
	switch name {
	case "source":
		return substore.ContentsSource
	case "markup":
		return substore.ContentsMarkup
	case "data":
		return substore.ContentsData
	default:
		return substore.ContentsBinary
	}
}

// changedRefs reports which of remote's refs/heads/* entries are missing
// from, or differ from, known — the set CloneOrFetch needs to fetch and
// WalkCommits needs to walk this update.
func changedRefs(remote []gitremote.RemoteHead, known datastore.ProjectHeads) []gitremote.RemoteHead {
	var out []gitremote.RemoteHead
	for _, h := range remote {
		existing, ok := known.Refs[h.Name]
		if !ok || existing.SHA != shaFromHash(h.Hash) {
			out = append(out, h)
		}
	}
	return out
}

// LoadQueue builds a Queue with one task per project in ds whose latest
// update status is not an error, ordered by its most recent update time
// (oldest first; a project never yet updated sorts before one just
// updated).
func LoadQueue(ds *datastore.Datastore) (*Queue, error) {
	var tasks []ProjectTask
	seen := map[uint64]bool{}
	err := ds.Projects.Each(func(id uint64, p datastore.Project) error {
		if seen[id] {
			return nil
		}
		seen[id] = true
		kind, ok, err := ds.ProjectSubstoreKind(id)
		if err != nil {
			return err
		}
		if !ok {
			kind = p.SubstoreKind
		}
		last, ok, err := ds.LatestUpdateStatus(kind, id)
		if err != nil {
			return err
		}
		if ok && last.Status == datastore.StatusError {
			return nil
		}
		var lastUpdate int64
		if ok {
			lastUpdate = last.Time
		}
		tasks = append(tasks, ProjectTask{ProjectID: id, LastUpdate: lastUpdate})
		return nil
	})
	if err != nil {
		return nil, err
	}
	return NewQueue(tasks), nil
}

// EnsureCloneDir creates the scratch clone directory if missing.
func EnsureCloneDir(dir string) error {
	return os.MkdirAll(dir, 0o755)
}
