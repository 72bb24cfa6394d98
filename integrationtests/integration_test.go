// Copyright 2024 The Fuchsia Authors. All rights reserved.
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package integrationtests

import (
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"testing"

	"go.west.dev/west/gitutil"
	"go.west.dev/west/manifest"
	"go.west.dev/west/resolve"
	"go.west.dev/west/update"
)

func TestUpdateWholeWorkspace(t *testing.T) {
	requireGit(t)

	libA := newRemoteProject(t, map[string]string{"a.txt": "a"})
	libB := newRemoteProject(t, map[string]string{"b.txt": "b"})

	env, root := newWorkspace(t, map[string]string{
		"west.yml": `
manifest:
  projects:
    - name: lib-a
      url: ` + libA + `
      revision: main
    - name: lib-b
      url: ` + libB + `
      revision: main
      path: libs/b
  self:
    path: manifest-repo
`,
	})

	rr, err := resolve.Resolve(root, resolve.Options{
		Topdir: env.Topdir,
		Self:   treeImporter{dir: filepath.Join(env.Topdir, "manifest-repo")},
	})
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}

	eng := update.New(env)
	res, err := eng.UpdateAll(rr.Projects[1:], nil, update.Options{Topdir: env.Topdir, Strategy: update.FetchAlways})
	if err != nil {
		t.Fatalf("UpdateAll: %v", err)
	}
	if report := res.Report(); report != "" {
		t.Fatalf("update failures:\n%s", report)
	}

	for _, p := range rr.Projects[1:] {
		g := gitutil.New(env, p.AbsPath(env.Topdir))
		if _, err := g.RevParse(gitutil.ManifestRevRef); err != nil {
			t.Errorf("project %s has no manifest-rev after update: %v", p.Name, err)
		}
	}
	if want := filepath.Join(env.Topdir, "libs", "b"); !isDir(t, want) {
		t.Errorf("lib-b not cloned at its manifest path %s", want)
	}
}

func TestImportAwareUpdateAcrossProjects(t *testing.T) {
	requireGit(t)

	leaf := newRemoteProject(t, map[string]string{"leaf.txt": "leaf"})
	hub := newRemoteProject(t, map[string]string{
		"west.yml": `
manifest:
  projects:
    - name: leaf
      url: ` + leaf + `
      revision: main
`,
	})

	env, root := newWorkspace(t, map[string]string{
		"west.yml": `
manifest:
  projects:
    - name: hub
      url: ` + hub + `
      revision: main
      import: true
  self:
    path: manifest-repo
`,
	})

	eng := update.New(env)
	opts := update.Options{Topdir: env.Topdir, Strategy: update.FetchAlways}
	results, resolved, err := eng.ImportAwareUpdate(root, treeImporter{dir: filepath.Join(env.Topdir, "manifest-repo")}, opts)
	if err != nil {
		t.Fatalf("ImportAwareUpdate: %v", err)
	}
	if report := results.Report(); report != "" {
		t.Fatalf("update failures:\n%s", report)
	}

	var names []string
	for _, p := range resolved.Projects {
		names = append(names, p.Name)
	}
	if got, want := strings.Join(names, " "), "manifest hub leaf"; got != want {
		t.Fatalf("resolved projects = %q, want %q", got, want)
	}

	// leaf came from hub's west.yml, so it is import-only and cannot be
	// named on the command line.
	_, err = eng.UpdateAll(resolved.Projects[1:], []string{"leaf"}, opts)
	if _, ok := err.(*update.ImportOnlyProjectsError); !ok {
		t.Fatalf("naming an imported project: got %v, want ImportOnlyProjectsError", err)
	}
}

func TestFrozenManifestAfterUpdate(t *testing.T) {
	requireGit(t)

	lib := newRemoteProject(t, map[string]string{"f.txt": "1"})

	env, root := newWorkspace(t, map[string]string{
		"west.yml": `
manifest:
  projects:
    - name: lib
      url: ` + lib + `
      revision: main
  self:
    path: manifest-repo
`,
	})

	rr, err := resolve.Resolve(root, resolve.Options{Topdir: env.Topdir})
	if err != nil {
		t.Fatal(err)
	}
	eng := update.New(env)
	if res, err := eng.UpdateAll(rr.Projects[1:], nil, update.Options{Topdir: env.Topdir, Strategy: update.FetchAlways}); err != nil {
		t.Fatal(err)
	} else if report := res.Report(); report != "" {
		t.Fatal(report)
	}

	resolved := manifest.NewResolved(root, rr.Projects, rr.GroupFilter)
	frozen, err := resolved.AsFrozenYAML(func(p *manifest.Project) (string, error) {
		g := gitutil.New(env, p.AbsPath(env.Topdir))
		return g.RevParse(gitutil.ManifestRevRef)
	})
	if err != nil {
		t.Fatalf("AsFrozenYAML: %v", err)
	}

	shaRE := regexp.MustCompile(`revision: [0-9a-f]{40}`)
	if !shaRE.MatchString(frozen) {
		t.Fatalf("frozen manifest has no 40-char SHA revision:\n%s", frozen)
	}

	// Freezing again with no intervening changes must be byte-identical.
	frozen2, err := resolved.AsFrozenYAML(func(p *manifest.Project) (string, error) {
		g := gitutil.New(env, p.AbsPath(env.Topdir))
		return g.RevParse(gitutil.ManifestRevRef)
	})
	if err != nil {
		t.Fatal(err)
	}
	if frozen != frozen2 {
		t.Fatal("frozen manifest not deterministic across identical passes")
	}
}

func TestUpdateMovesManifestRevWhenRemoteAdvances(t *testing.T) {
	requireGit(t)

	lib := newRemoteProject(t, map[string]string{"f.txt": "1"})

	env, root := newWorkspace(t, map[string]string{
		"west.yml": `
manifest:
  projects:
    - name: lib
      url: ` + lib + `
      revision: main
  self:
    path: manifest-repo
`,
	})

	rr, err := resolve.Resolve(root, resolve.Options{Topdir: env.Topdir})
	if err != nil {
		t.Fatal(err)
	}
	eng := update.New(env)
	opts := update.Options{Topdir: env.Topdir, Strategy: update.FetchAlways}
	if res, err := eng.UpdateAll(rr.Projects[1:], nil, opts); err != nil {
		t.Fatal(err)
	} else if report := res.Report(); report != "" {
		t.Fatal(report)
	}

	sha1 := commitFile(t, lib, "f.txt", "2")
	if res, err := eng.UpdateAll(rr.Projects[1:], nil, opts); err != nil {
		t.Fatal(err)
	} else if report := res.Report(); report != "" {
		t.Fatal(report)
	}

	g := gitutil.New(env, filepath.Join(env.Topdir, "lib"))
	got, err := g.RevParse(gitutil.ManifestRevRef)
	if err != nil {
		t.Fatal(err)
	}
	if got != sha1 {
		t.Fatalf("manifest-rev = %s, want advanced %s", got, sha1)
	}
}

func isDir(t *testing.T, path string) bool {
	t.Helper()
	fi, err := os.Stat(path)
	return err == nil && fi.IsDir()
}
