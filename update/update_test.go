// Copyright 2015 The Vanadium Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package update

import (
	"os"
	"os/exec"
	"path/filepath"
	"testing"

	"github.com/sirupsen/logrus"

	"go.west.dev/west"
	"go.west.dev/west/gitutil"
	"go.west.dev/west/manifest"
)

func requireGit(t *testing.T) {
	t.Helper()
	if _, err := exec.LookPath("git"); err != nil {
		t.Skip("git binary not available")
	}
}

func testEnv(t *testing.T) *west.Env {
	t.Helper()
	return west.NewEnv(t.TempDir(), logrus.ErrorLevel)
}

func runGit(t *testing.T, dir string, args ...string) string {
	t.Helper()
	cmd := exec.Command("git", args...)
	cmd.Dir = dir
	cmd.Env = append(os.Environ(),
		"GIT_AUTHOR_NAME=t", "GIT_AUTHOR_EMAIL=t@t.com",
		"GIT_COMMITTER_NAME=t", "GIT_COMMITTER_EMAIL=t@t.com")
	out, err := cmd.CombinedOutput()
	if err != nil {
		t.Fatalf("git %v: %v\n%s", args, err, out)
	}
	return string(out)
}

// newRemote creates a non-bare repo with one commit on "main" and returns
// its directory and HEAD SHA. Non-bare is fine here: the update engine
// fetches over the filesystem, and git happily serves a fetch from a
// checked-out repo's .git directory.
func newRemote(t *testing.T) (dir, sha string) {
	t.Helper()
	dir = t.TempDir()
	runGit(t, dir, "init", "-q", "-b", "main", dir)
	if err := os.WriteFile(filepath.Join(dir, "f.txt"), []byte("1"), 0o644); err != nil {
		t.Fatal(err)
	}
	runGit(t, dir, "add", "f.txt")
	runGit(t, dir, "commit", "-q", "-m", "c1")
	sha = firstLineOf(runGit(t, dir, "rev-parse", "HEAD"))
	return dir, sha
}

func commitMore(t *testing.T, dir, content string) string {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, "f.txt"), []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	runGit(t, dir, "add", "f.txt")
	runGit(t, dir, "commit", "-q", "-m", content)
	return firstLineOf(runGit(t, dir, "rev-parse", "HEAD"))
}

func firstLineOf(s string) string {
	for i, r := range s {
		if r == '\n' {
			return s[:i]
		}
	}
	return s
}

func TestUpdateProjectClonesAndSetsManifestRev(t *testing.T) {
	requireGit(t)
	remote, sha := newRemote(t)

	env := testEnv(t)
	topdir := t.TempDir()
	p := &manifest.Project{Name: "foo", URL: remote, Revision: "main", Path: "foo"}

	eng := New(env)
	res := eng.UpdateProject(p, Options{Topdir: topdir, Strategy: FetchAlways})
	if res.Err != nil {
		t.Fatalf("UpdateProject failed: %v", res.Err)
	}

	g := gitutil.New(env, p.AbsPath(topdir))
	got, err := g.RevParse(gitutil.ManifestRevRef)
	if err != nil {
		t.Fatalf("RevParse(manifest-rev): %v", err)
	}
	if got != sha {
		t.Fatalf("manifest-rev = %s, want %s", got, sha)
	}
}

func TestUpdateProjectIdempotent(t *testing.T) {
	requireGit(t)
	remote, sha := newRemote(t)

	env := testEnv(t)
	topdir := t.TempDir()
	p := &manifest.Project{Name: "foo", URL: remote, Revision: "main", Path: "foo"}

	eng := New(env)
	if res := eng.UpdateProject(p, Options{Topdir: topdir, Strategy: FetchAlways}); res.Err != nil {
		t.Fatalf("first update: %v", res.Err)
	}
	if res := eng.UpdateProject(p, Options{Topdir: topdir, Strategy: FetchAlways}); res.Err != nil {
		t.Fatalf("second update: %v", res.Err)
	}

	g := gitutil.New(env, p.AbsPath(topdir))
	got, err := g.RevParse(gitutil.ManifestRevRef)
	if err != nil {
		t.Fatal(err)
	}
	if got != sha {
		t.Fatalf("manifest-rev changed across idempotent updates: %s != %s", got, sha)
	}
}

func TestUpdateProjectPinnedToSHASkipsFetchUnderSmart(t *testing.T) {
	requireGit(t)
	remote, sha := newRemote(t)
	commitMore(t, remote, "2") // advance remote past sha

	env := testEnv(t)
	topdir := t.TempDir()
	p := &manifest.Project{Name: "foo", URL: remote, Revision: "main", Path: "foo"}

	eng := New(env)
	if res := eng.UpdateProject(p, Options{Topdir: topdir, Strategy: FetchAlways}); res.Err != nil {
		t.Fatalf("initial clone: %v", res.Err)
	}

	// Re-pin to the first commit by SHA; under "smart" this should not
	// need to fetch since the SHA is already locally resolvable.
	p.Revision = sha
	if res := eng.UpdateProject(p, Options{Topdir: topdir, Strategy: FetchSmart}); res.Err != nil {
		t.Fatalf("pinned update: %v", res.Err)
	}

	g := gitutil.New(env, p.AbsPath(topdir))
	got, err := g.RevParse(gitutil.ManifestRevRef)
	if err != nil {
		t.Fatal(err)
	}
	if got != sha {
		t.Fatalf("manifest-rev = %s, want %s", got, sha)
	}
}

func TestUpdateProjectKeepDescendants(t *testing.T) {
	requireGit(t)
	remote, _ := newRemote(t)

	env := testEnv(t)
	topdir := t.TempDir()
	p := &manifest.Project{Name: "foo", URL: remote, Revision: "main", Path: "foo"}

	eng := New(env)
	if res := eng.UpdateProject(p, Options{Topdir: topdir, Strategy: FetchAlways}); res.Err != nil {
		t.Fatalf("initial update: %v", res.Err)
	}

	// Advance the remote from S0 to S1 and update so the clone is at S1,
	// then build local work on top of S1. The branch is then a descendant
	// of the manifest revision, so keep-descendants must leave it alone.
	commitMore(t, remote, "3")
	if res := eng.UpdateProject(p, Options{Topdir: topdir, Strategy: FetchAlways}); res.Err != nil {
		t.Fatalf("update to S1: %v", res.Err)
	}

	dir := p.AbsPath(topdir)
	runGit(t, dir, "checkout", "-q", "-b", "work")
	localSHA := commitMore(t, dir, "local work")

	res := eng.UpdateProject(p, Options{Topdir: topdir, Strategy: FetchAlways, Reconcile: ReconcileKeepDescendants})
	if res.Err != nil {
		t.Fatalf("keep-descendants update: %v", res.Err)
	}
	if res.KeptBranch != "work" {
		t.Fatalf("KeptBranch = %q, want work", res.KeptBranch)
	}

	g := gitutil.New(env, dir)
	branch, err := g.RevParseAbbrevHead()
	if err != nil {
		t.Fatal(err)
	}
	if branch != "work" {
		t.Fatalf("branch = %q, want %q (keep-descendants should leave B checked out)", branch, "work")
	}
	head, err := g.RevParse("HEAD")
	if err != nil {
		t.Fatal(err)
	}
	if head != localSHA {
		t.Fatalf("HEAD moved under keep-descendants: %s != %s", head, localSHA)
	}
}

func TestUpdateProjectDefaultDetachesWithGuidance(t *testing.T) {
	requireGit(t)
	remote, _ := newRemote(t)

	env := testEnv(t)
	topdir := t.TempDir()
	p := &manifest.Project{Name: "foo", URL: remote, Revision: "main", Path: "foo"}

	eng := New(env)
	if res := eng.UpdateProject(p, Options{Topdir: topdir, Strategy: FetchAlways}); res.Err != nil {
		t.Fatalf("initial update: %v", res.Err)
	}

	dir := p.AbsPath(topdir)
	runGit(t, dir, "checkout", "-q", "-b", "work")
	localSHA := commitMore(t, dir, "local work")

	sha1 := commitMore(t, remote, "3")

	res := eng.UpdateProject(p, Options{Topdir: topdir, Strategy: FetchAlways, Reconcile: ReconcileDefault})
	if res.Err != nil {
		t.Fatalf("default-reconcile update: %v", res.Err)
	}
	if res.Guidance.Branch != "work" {
		t.Fatalf("Guidance.Branch = %q, want work", res.Guidance.Branch)
	}
	if res.Guidance.IsAncestor {
		t.Fatal("work's local commit is not built on the new S1, IsAncestor should be false")
	}

	g := gitutil.New(env, dir)
	head, err := g.RevParse("HEAD")
	if err != nil {
		t.Fatal(err)
	}
	if head != sha1 {
		t.Fatalf("HEAD = %s, want detached at new manifest-rev %s", head, sha1)
	}
	_ = localSHA
}

func TestSelectProjectsUnknown(t *testing.T) {
	all := []*manifest.Project{{Name: "a"}, {Name: "b"}}
	_, err := selectProjects(all, []string{"c"})
	if _, ok := err.(*UnknownProjectsError); !ok {
		t.Fatalf("expected UnknownProjectsError, got %v", err)
	}
}

func TestSelectProjectsImportOnly(t *testing.T) {
	all := []*manifest.Project{{Name: "a"}, {Name: "b", ImportedBy: "a"}}
	_, err := selectProjects(all, []string{"b"})
	if _, ok := err.(*ImportOnlyProjectsError); !ok {
		t.Fatalf("expected ImportOnlyProjectsError, got %v", err)
	}
}

func TestSelectProjectsDefaultAll(t *testing.T) {
	all := []*manifest.Project{{Name: "a"}, {Name: "b"}}
	got, err := selectProjects(all, nil)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 {
		t.Fatalf("selectProjects(nil) = %d projects, want 2", len(got))
	}
}

func TestReportListsFailures(t *testing.T) {
	r := &Result{}
	errTest := &UnknownProjectsError{Names: []string{"x"}}
	for i := 0; i < 3; i++ {
		r.Results = append(r.Results, ProjectResult{Project: &manifest.Project{Name: "p"}, Err: errTest})
	}
	if got := r.Report(); got == "" {
		t.Fatal("expected a non-empty report for failed projects")
	}
}
