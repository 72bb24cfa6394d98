// Copyright 2015 The Vanadium Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package update

import (
	"os"
	"path/filepath"
	"testing"

	"go.west.dev/west/manifest"
)

// fakeSelf implements resolve.SelfImporter with no files at all (every read
// reports os.ErrNotExist), since the manifest repository's own tree isn't
// under test here.
type fakeSelf struct{}

func (fakeSelf) ReadFile(string) ([]byte, error)  { return nil, os.ErrNotExist }
func (fakeSelf) ListDir(string) ([]string, error) { return nil, os.ErrNotExist }

func TestImportAwareUpdateFetchesImportedProjectThenReadsManifest(t *testing.T) {
	requireGit(t)

	// sub is the project the root manifest imports a west.yml from.
	sub, _ := newRemote(t)
	writeFile(t, filepath.Join(sub, "west.yml"), `
manifest:
  projects:
    - name: leaf
      url: `+sub+`
      revision: main
`)
	runGit(t, sub, "add", "west.yml")
	runGit(t, sub, "commit", "-q", "-m", "add west.yml")

	root, err := manifest.Load(manifest.Source{Data: []byte(`
manifest:
  self:
    path: manifest-repo
  projects:
    - name: sub
      url: ` + sub + `
      revision: main
      import: true
`)})
	if err != nil {
		t.Fatalf("Load root manifest: %v", err)
	}

	env := testEnv(t)
	topdir := t.TempDir()
	eng := New(env)

	results, resolved, err := eng.ImportAwareUpdate(root, fakeSelf{}, Options{Topdir: topdir, Strategy: FetchAlways})
	if err != nil {
		t.Fatalf("ImportAwareUpdate failed: %v", err)
	}
	if resolved == nil {
		t.Fatal("expected a resolved result")
	}

	var names []string
	for _, p := range resolved.Projects {
		names = append(names, p.Name)
	}
	wantNames := map[string]bool{"manifest": true, "sub": true, "leaf": true}
	if len(names) != len(wantNames) {
		t.Fatalf("resolved projects = %v, want %v", names, wantNames)
	}
	for _, n := range names {
		if !wantNames[n] {
			t.Fatalf("unexpected project %q in resolved list", n)
		}
	}

	if len(results.Results) != 1 {
		t.Fatalf("expected exactly one project (sub) to be updated to read its import, got %d", len(results.Results))
	}
	if results.Results[0].Project.Name != "sub" {
		t.Fatalf("updated project = %q, want sub", results.Results[0].Project.Name)
	}
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}
