// Copyright 2015 The Vanadium Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package update implements the update engine: given a resolved
// manifest, it brings each project's working tree into a state
// consistent with the manifest by pointing an internal manifest-rev ref at
// the target revision and reconciling the working tree.
package update

import (
	"fmt"
	"sort"
	"strings"

	"go.west.dev/west"
	"go.west.dev/west/gitutil"
	"go.west.dev/west/manifest"
	"go.west.dev/west/resolve"
	"go.west.dev/west/retry"
)

// maxNamedFailures is the cutoff past which the error-aggregation report
// switches from a per-project listing to a summary count.
const maxNamedFailures = 20

// UnknownProjectsError reports that the caller named projects that are not
// defined anywhere in the resolved manifest.
type UnknownProjectsError struct {
	Names []string
}

func (e *UnknownProjectsError) Error() string {
	return fmt.Sprintf("unknown project(s): %s", strings.Join(e.Names, ", "))
}

// ImportOnlyProjectsError reports that the caller named projects that exist
// only because an import contributed them, not because the manifest
// repository's own document declares them.
type ImportOnlyProjectsError struct {
	Names []string
}

func (e *ImportOnlyProjectsError) Error() string {
	return fmt.Sprintf("project(s) %s are only reachable via imports; run plain \"west update\" instead of naming them", strings.Join(e.Names, ", "))
}

// Options configures one update pass.
type Options struct {
	Topdir     string
	RemoteName string // defaults to "origin"
	Strategy   FetchStrategy
	Reconcile  ReconcileMode
	Caches     Caches
	Stats      *Stats
	// Status is called to capture a project's `git status` for
	// ReconcileKeepDescendants. If nil, no status is captured.
	Status func(g *gitutil.Git) (string, error)
	// FetchAttempts bounds how many times in all a single project's fetch
	// is attempted (retries use exponential backoff, package retry) before
	// the project is recorded as failed. Values <= 1 mean one attempt and
	// no retry.
	FetchAttempts int
}

func (o Options) fetchAttempts() int {
	if o.FetchAttempts <= 0 {
		return 1
	}
	return o.FetchAttempts
}

func (o Options) remoteName() string {
	if o.RemoteName == "" {
		return "origin"
	}
	return o.RemoteName
}

// ProjectResult is the per-project outcome of one update pass.
type ProjectResult struct {
	Project  *manifest.Project
	Err      error
	Guidance Guidance
	// KeptBranch is set when ReconcileKeepDescendants left a branch
	// checked out rather than detaching; StatusText carries that
	// branch's git status if the caller asked for it.
	KeptBranch string
	StatusText string
}

// Result aggregates the per-project outcomes of one update pass.
type Result struct {
	Results []ProjectResult
}

// Failed returns the subset of Results with a non-nil Err.
func (r *Result) Failed() []ProjectResult {
	var out []ProjectResult
	for _, pr := range r.Results {
		if pr.Err != nil {
			out = append(out, pr)
		}
	}
	return out
}

// Report renders the error-aggregation summary: a per-project listing if
// fewer than maxNamedFailures projects failed, otherwise a count.
func (r *Result) Report() string {
	failed := r.Failed()
	if len(failed) == 0 {
		return ""
	}
	if len(failed) < maxNamedFailures {
		names := make([]string, len(failed))
		for i, pr := range failed {
			names[i] = fmt.Sprintf("%s: %v", pr.Project.Name, pr.Err)
		}
		sort.Strings(names)
		return fmt.Sprintf("%d project(s) failed to update:\n  %s", len(failed), strings.Join(names, "\n  "))
	}
	return fmt.Sprintf("%d projects failed to update", len(failed))
}

// Engine drives the per-project pipeline.
type Engine struct {
	env *west.Env
}

// New returns an Engine using env for logging and git invocation context.
func New(env *west.Env) *Engine {
	return &Engine{env: env}
}

// newGit is overridden in tests to substitute a fake gitDriver.
var newGit = func(env *west.Env, dir string) gitDriver {
	return gitutil.New(env, dir)
}

// UpdateProject runs the per-project pipeline against a single project,
// returning the reconciliation guidance (if any) and an error
// that should be recorded against this project, not treated as fatal to
// the whole pass.
func (e *Engine) UpdateProject(p *manifest.Project, opts Options) ProjectResult {
	res := ProjectResult{Project: p}
	dir := p.AbsPath(opts.Topdir)
	if dir == "" {
		res.Err = fmt.Errorf("update: project %q has no absolute path (no workspace topdir)", p.Name)
		return res
	}
	g := newGit(e.env, dir)
	stats := opts.Stats
	if stats == nil {
		stats = NewStats(false)
	}

	var wasCloned bool
	if err := stats.Time(StepClonedCheck, func() error {
		wasCloned = isClonedRepo(g)
		return nil
	}); err != nil {
		res.Err = err
		return res
	}

	if !wasCloned {
		if err := stats.Time(StepInit, func() error {
			if err := g.Init(false); err != nil {
				return err
			}
			return g.RemoteAdd(opts.remoteName(), p.URL)
		}); err != nil {
			res.Err = fmt.Errorf("update: cloning %q: %w", p.Name, err)
			return res
		}
	}

	fetch, err := shouldFetch(g, opts.Strategy, p.Revision)
	if err != nil {
		res.Err = fmt.Errorf("update: deciding fetch strategy for %q: %w", p.Name, err)
		return res
	}

	fetchOpts, rs := fetchOptionsFor(p.Revision, p.CloneDepth)
	if fetch {
		url := p.URL
		if !wasCloned {
			if err := e.refreshAutoCache(p, opts); err != nil {
				// The cache is an optimization; a stale or unreachable
				// mirror must not fail the project.
				e.env.Logger.WithFields(west.Fields("project", p.Name)).Warnf("auto-cache refresh failed: %v", err)
			}
			if seed := opts.Caches.seedURL(p); seed != "" {
				url = seed
			}
		}
		if err := stats.Time(StepFetch, func() error {
			return retry.Function(e.env, func() error {
				return g.Fetch(url, fetchOpts)
			}, fmt.Sprintf("fetch %s for project %s", url, p.Name), retry.AttemptsOpt(opts.fetchAttempts()))
		}); err != nil {
			res.Err = fmt.Errorf("update: fetching %q: %w", p.Name, err)
			return res
		}
	}

	var target string
	if err := stats.Time(StepSHAFetch, func() error {
		var err error
		target, err = resolveManifestRevTarget(g, rs, p.Revision, fetch)
		return err
	}); err != nil {
		res.Err = fmt.Errorf("update: resolving manifest-rev for %q: %w", p.Name, err)
		return res
	}
	if err := g.UpdateRef(gitutil.ManifestRevRef, target); err != nil {
		res.Err = fmt.Errorf("update: setting manifest-rev for %q: %w", p.Name, err)
		return res
	}

	if err := stats.Time(StepClean, func() error {
		return cleanWestRefs(g)
	}); err != nil {
		res.Err = fmt.Errorf("update: cleaning refs/west/* for %q: %w", p.Name, err)
		return res
	}

	if err := stats.Time(StepHeadEnsure, func() error {
		if _, err := g.RevParseAbbrevHead(); err != nil {
			return g.CheckoutDetach(target)
		}
		return nil
	}); err != nil {
		res.Err = fmt.Errorf("update: ensuring HEAD for %q: %w", p.Name, err)
		return res
	}

	sha, err := g.RevParse(gitutil.ManifestRevRef)
	if err != nil {
		res.Err = fmt.Errorf("update: project %q: manifest-rev does not resolve (branch may have been deleted manually): %w", p.Name, err)
		return res
	}

	var statusFn func() (string, error)
	if opts.Status != nil {
		if gg, ok := g.(*gitutil.Git); ok {
			statusFn = func() (string, error) { return opts.Status(gg) }
		}
	}

	var outcome reconcileOutcome
	if err := stats.Time(StepCheckout, func() error {
		var err error
		outcome, err = reconcile(g, opts.Reconcile, sha, statusFn)
		return err
	}); err != nil {
		if outcome.RebaseFailed {
			res.Err = fmt.Errorf("update: rebasing %q onto manifest-rev failed: %w", p.Name, err)
		} else {
			res.Err = fmt.Errorf("update: reconciling %q: %w", p.Name, err)
		}
		return res
	}
	res.Guidance = outcome.Guidance
	res.KeptBranch = outcome.KeptBranch
	res.StatusText = outcome.StatusText
	return res
}

// refreshAutoCache brings the auto-cache's bare mirror for p up to date
// before it is consulted as a seed source. No-op unless an auto-cache
// directory is configured.
func (e *Engine) refreshAutoCache(p *manifest.Project, opts Options) error {
	return opts.Caches.RefreshAutoCache(p, func(dir, url string) error {
		mirror := newGit(e.env, dir)
		if !isClonedRepo(mirror) {
			if err := mirror.Init(true); err != nil {
				return err
			}
		}
		return mirror.Fetch(url, gitutil.FetchOptions{
			Refspecs: []string{"+refs/heads/*:refs/heads/*"},
			Tags:     true,
			Force:    true,
		})
	})
}

// cleanWestRefs deletes every ref under refs/west/*, the legacy scratch
// namespace cleaned on every update.
func cleanWestRefs(g gitDriver) error {
	refs, err := g.ForEachRef(gitutil.WestRefPrefix + "*")
	if err != nil {
		return err
	}
	for _, ref := range refs {
		if err := g.DeleteRef(ref); err != nil {
			return err
		}
	}
	return nil
}

// selectProjects picks the projects to update: default is every project;
// if names is non-empty every name must resolve to a
// project declared directly in the manifest repository's own document.
func selectProjects(all []*manifest.Project, names []string) ([]*manifest.Project, error) {
	if len(names) == 0 {
		return all, nil
	}
	byName := map[string]*manifest.Project{}
	for _, p := range all {
		byName[p.Name] = p
	}

	var unknown, importOnly []string
	var selected []*manifest.Project
	for _, n := range names {
		p, ok := byName[n]
		if !ok {
			unknown = append(unknown, n)
			continue
		}
		if p.ImportedBy != "" {
			importOnly = append(importOnly, n)
			continue
		}
		selected = append(selected, p)
	}
	if len(unknown) > 0 {
		return nil, &UnknownProjectsError{Names: unknown}
	}
	if len(importOnly) > 0 {
		return nil, &ImportOnlyProjectsError{Names: importOnly}
	}
	return selected, nil
}

// UpdateAll runs the per-project pipeline over the selected subset of
// projects, in the order they appear in all (manifest-resolution order),
// aggregating failures rather than stopping at the first one.
func (e *Engine) UpdateAll(all []*manifest.Project, names []string, opts Options) (*Result, error) {
	selected, err := selectProjects(all, names)
	if err != nil {
		return nil, err
	}
	res := &Result{}
	for _, p := range selected {
		res.Results = append(res.Results, e.UpdateProject(p, opts))
	}
	return res, nil
}

// updatingImporter implements resolve.Importer on top of the update
// engine: reading a file from a project's tree first ensures the project
// has been updated (at most once per run), then reads the blob at
// refs/heads/manifest-rev.
type updatingImporter struct {
	engine  *Engine
	opts    Options
	once    map[string]bool
	results *Result
}

func (u *updatingImporter) ensureUpdated(p *manifest.Project) {
	if u.once[p.Name] {
		return
	}
	u.once[p.Name] = true
	pr := u.engine.UpdateProject(p, u.opts)
	u.results.Results = append(u.results.Results, pr)
}

func (u *updatingImporter) ReadFile(p *manifest.Project, file string) ([]byte, error) {
	u.ensureUpdated(p)
	dir := p.AbsPath(u.opts.Topdir)
	g := gitutil.New(u.engine.env, dir)
	ok, err := g.ShowRef(gitutil.ManifestRevRef)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("project %q has no manifest-rev ref; it may have failed to update", p.Name)
	}
	return g.ReadBlobAt(gitutil.ManifestRevRef, file)
}

func (u *updatingImporter) ListDir(p *manifest.Project, dir string) ([]string, error) {
	u.ensureUpdated(p)
	abs := p.AbsPath(u.opts.Topdir)
	g := gitutil.New(u.engine.env, abs)
	return g.ListTreeAt(gitutil.ManifestRevRef, dir)
}

// ImportAwareUpdate resolves root in ForceProjectImports mode, updating
// each project-import target
// before reading its sub-manifest, and returns both the update Result (for
// every project touched, whether or not it ends up in the final resolved
// list) and the resolved manifest. If resolution fails because a
// sub-manifest could not be read (*resolve.ImportFailedError), that is not
// treated as fatal: the projects already updated are still reported, and
// the caller should surface the message and expect a clean retry on the
// next run.
func (e *Engine) ImportAwareUpdate(root *manifest.Manifest, self resolve.SelfImporter, opts Options) (*Result, *resolve.Result, error) {
	importer := &updatingImporter{engine: e, opts: opts, once: map[string]bool{}, results: &Result{}}
	rr, err := resolve.Resolve(root, resolve.Options{
		Topdir:   opts.Topdir,
		Flags:    resolve.ForceProjectImports,
		Self:     self,
		Projects: importer,
	})
	if err != nil {
		if _, ok := err.(*resolve.ImportFailedError); ok {
			return importer.results, nil, err
		}
		return importer.results, nil, err
	}
	return importer.results, rr, nil
}
