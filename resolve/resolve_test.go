// Copyright 2015 The Vanadium Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package resolve

import (
	"errors"
	"fmt"
	"os"
	"path"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"go.west.dev/west/manifest"
)

// memSelf serves self-imports from an in-memory file map keyed by
// workspace-relative path.
type memSelf map[string]string

func (m memSelf) ReadFile(file string) ([]byte, error) {
	if data, ok := m[file]; ok {
		return []byte(data), nil
	}
	return nil, os.ErrNotExist
}

func (m memSelf) ListDir(dir string) ([]string, error) {
	var names []string
	for f := range m {
		if path.Dir(f) == dir {
			names = append(names, path.Base(f))
		}
	}
	if len(names) == 0 {
		return nil, os.ErrNotExist
	}
	return names, nil
}

// memProjects serves project imports from a per-project in-memory file map.
type memProjects map[string]map[string]string

func (m memProjects) ReadFile(p *manifest.Project, file string) ([]byte, error) {
	files, ok := m[p.Name]
	if !ok {
		return nil, fmt.Errorf("project %q not cloned", p.Name)
	}
	data, ok := files[file]
	if !ok {
		return nil, os.ErrNotExist
	}
	return []byte(data), nil
}

func (m memProjects) ListDir(p *manifest.Project, dir string) ([]string, error) {
	files, ok := m[p.Name]
	if !ok {
		return nil, fmt.Errorf("project %q not cloned", p.Name)
	}
	var names []string
	for f := range files {
		if path.Dir(f) == dir {
			names = append(names, path.Base(f))
		}
	}
	if len(names) == 0 {
		return nil, os.ErrNotExist
	}
	return names, nil
}

func load(t *testing.T, doc string) *manifest.Manifest {
	t.Helper()
	m, err := manifest.Load(manifest.Source{Data: []byte(doc)})
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	return m
}

func names(projects []*manifest.Project) []string {
	var out []string
	for _, p := range projects {
		out = append(out, p.Name)
	}
	return out
}

func TestResolveNoImports(t *testing.T) {
	root := load(t, `
manifest:
  projects:
    - name: a
      url: https://x/a
    - name: b
      url: https://x/b
`)
	rr, err := Resolve(root, Options{Topdir: "/ws"})
	if err != nil {
		t.Fatal(err)
	}
	want := []string{"manifest", "a", "b"}
	if diff := cmp.Diff(want, names(rr.Projects)); diff != "" {
		t.Fatalf("projects mismatch (-want +got):\n%s", diff)
	}
}

func TestResolveProjectImportWithPrefixAndAllowlist(t *testing.T) {
	root := load(t, `
manifest:
  projects:
    - name: sub
      url: https://x/sub
      import:
        file: west.yml
        path-prefix: ext
        name-allowlist:
          - keep
`)
	importer := memProjects{
		"sub": {"west.yml": `
manifest:
  projects:
    - name: keep
      url: https://x/keep
    - name: drop
      url: https://x/drop
`},
	}
	rr, err := Resolve(root, Options{Topdir: "/ws", Projects: importer})
	if err != nil {
		t.Fatal(err)
	}
	want := []string{"manifest", "sub", "keep"}
	if diff := cmp.Diff(want, names(rr.Projects)); diff != "" {
		t.Fatalf("projects mismatch (-want +got):\n%s", diff)
	}
	keep := rr.Projects[2]
	if keep.Path != "ext/keep" {
		t.Fatalf("keep.Path = %q, want ext/keep", keep.Path)
	}
}

func TestResolveNestedPrefixesCompose(t *testing.T) {
	root := load(t, `
manifest:
  projects:
    - name: mid
      url: https://x/mid
      import:
        file: west.yml
        path-prefix: outer
`)
	importer := memProjects{
		"mid": {"west.yml": `
manifest:
  projects:
    - name: deep
      url: https://x/deep
      import:
        file: west.yml
        path-prefix: inner
`},
		"deep": {"west.yml": `
manifest:
  projects:
    - name: leaf
      url: https://x/leaf
`},
	}
	rr, err := Resolve(root, Options{Topdir: "/ws", Projects: importer})
	if err != nil {
		t.Fatal(err)
	}
	byName := map[string]*manifest.Project{}
	for _, p := range rr.Projects {
		byName[p.Name] = p
	}
	if got := byName["deep"].Path; got != "outer/deep" {
		t.Fatalf("deep.Path = %q, want outer/deep", got)
	}
	if got := byName["leaf"].Path; got != "outer/inner/leaf" {
		t.Fatalf("leaf.Path = %q, want outer/inner/leaf", got)
	}
}

func TestResolvePrefixEscapeIsMalformed(t *testing.T) {
	root := load(t, `
manifest:
  projects:
    - name: sub
      url: https://x/sub
      import:
        file: west.yml
        path-prefix: ../escape
`)
	importer := memProjects{"sub": {"west.yml": "manifest: {projects: []}"}}
	_, err := Resolve(root, Options{Topdir: "/ws", Projects: importer})
	var malformed *manifest.MalformedError
	if !errors.As(err, &malformed) {
		t.Fatalf("expected MalformedError for escaping path-prefix, got %v", err)
	}
}

func TestResolveDuplicateWinsFirst(t *testing.T) {
	root := load(t, `
manifest:
  projects:
    - name: x
      url: https://x/x
      revision: v1
    - name: sub
      url: https://x/sub
      import: true
`)
	importer := memProjects{
		"sub": {"west.yml": `
manifest:
  projects:
    - name: x
      url: https://other/x
      revision: v2
`},
	}
	rr, err := Resolve(root, Options{Topdir: "/ws", Projects: importer})
	if err != nil {
		t.Fatal(err)
	}
	var found *manifest.Project
	count := 0
	for _, p := range rr.Projects {
		if p.Name == "x" {
			found = p
			count++
		}
	}
	if count != 1 {
		t.Fatalf("project x appears %d times, want 1", count)
	}
	if found.Revision != "v1" {
		t.Fatalf("x.Revision = %q, want v1 (first occurrence wins)", found.Revision)
	}
}

func TestResolveGroupFilterComposition(t *testing.T) {
	root := load(t, `
manifest:
  version: "0.10"
  group-filter: [-a]
  projects:
    - name: sub
      url: https://x/sub
      import: true
`)
	importer := memProjects{
		"sub": {"west.yml": `
manifest:
  group-filter: [+a, -b]
  projects: []
`},
	}
	rr, err := Resolve(root, Options{Topdir: "/ws", Projects: importer})
	if err != nil {
		t.Fatal(err)
	}
	want := []string{"+a", "-b", "-a"}
	if diff := cmp.Diff(want, rr.GroupFilter); diff != "" {
		t.Fatalf("group-filter mismatch (-want +got):\n%s", diff)
	}
}

func TestResolveGroupFilterLegacy09(t *testing.T) {
	root := load(t, `
manifest:
  version: "0.9"
  group-filter: [-a]
  projects:
    - name: sub
      url: https://x/sub
      import: true
`)
	importer := memProjects{
		"sub": {"west.yml": `
manifest:
  group-filter: [+a, -b]
  projects: []
`},
	}
	rr, err := Resolve(root, Options{Topdir: "/ws", Projects: importer})
	if err != nil {
		t.Fatal(err)
	}
	want := []string{"-a"}
	if diff := cmp.Diff(want, rr.GroupFilter); diff != "" {
		t.Fatalf("legacy group-filter mismatch (-want +got):\n%s", diff)
	}
	joined := strings.Join(rr.Diagnostics, "\n")
	if !strings.Contains(joined, "legacy") {
		t.Fatalf("expected a legacy-semantics diagnostic, got %q", joined)
	}
}

func TestResolveSelfImportOrdering(t *testing.T) {
	// Self-imported projects come before the document's own project list.
	root := load(t, `
manifest:
  projects:
    - name: own
      url: https://x/own
  self:
    import: extra.yml
`)
	self := memSelf{"extra.yml": `
manifest:
  projects:
    - name: imported
      url: https://x/imported
`}
	rr, err := Resolve(root, Options{Topdir: "/ws", Self: self})
	if err != nil {
		t.Fatal(err)
	}
	want := []string{"manifest", "imported", "own"}
	if diff := cmp.Diff(want, names(rr.Projects)); diff != "" {
		t.Fatalf("ordering mismatch (-want +got):\n%s", diff)
	}
}

func TestResolveSelfImportDirectorySorted(t *testing.T) {
	root := load(t, `
manifest:
  projects: []
  self:
    import: sub
`)
	self := memSelf{
		"sub/20-b.yml": `
manifest:
  projects:
    - name: b
      url: https://x/b
`,
		"sub/10-a.yml": `
manifest:
  projects:
    - name: a
      url: https://x/a
`,
		"sub/readme.txt": "not a manifest",
	}
	rr, err := Resolve(root, Options{Topdir: "/ws", Self: self})
	if err != nil {
		t.Fatal(err)
	}
	want := []string{"manifest", "a", "b"}
	if diff := cmp.Diff(want, names(rr.Projects)); diff != "" {
		t.Fatalf("directory import order mismatch (-want +got):\n%s", diff)
	}
}

func TestResolveImportDepthExceeded(t *testing.T) {
	root := load(t, `
manifest:
  projects:
    - name: loop
      url: https://x/loop
      import: true
`)
	// loop imports a manifest that declares loop1 importing loop2, and so
	// on; each project serves a doc that declares and imports the next one.
	importer := memProjects{}
	for i := 0; i < 20; i++ {
		importer[fmt.Sprintf("loop%s", suffix(i))] = map[string]string{
			"west.yml": fmt.Sprintf(`
manifest:
  projects:
    - name: loop%s
      url: https://x/loop
      import: true
`, suffix(i+1)),
		}
	}
	_, err := Resolve(root, Options{Topdir: "/ws", Projects: importer})
	var depthErr *ImportDepthError
	if !errors.As(err, &depthErr) {
		t.Fatalf("expected ImportDepthError, got %v", err)
	}
}

func suffix(i int) string {
	if i == 0 {
		return ""
	}
	return fmt.Sprintf("%d", i)
}

func TestResolveImportFailedCarriesProjectAndFile(t *testing.T) {
	root := load(t, `
manifest:
  projects:
    - name: sub
      url: https://x/sub
      import: true
`)
	_, err := Resolve(root, Options{Topdir: "/ws", Projects: memProjects{}})
	var failed *ImportFailedError
	if !errors.As(err, &failed) {
		t.Fatalf("expected ImportFailedError, got %v", err)
	}
	if failed.Project != "sub" || failed.File != "west.yml" {
		t.Fatalf("ImportFailedError = %+v, want project sub / file west.yml", failed)
	}
}

func TestResolveIgnoreImports(t *testing.T) {
	root := load(t, `
manifest:
  projects:
    - name: sub
      url: https://x/sub
      import: true
  self:
    import: extra.yml
`)
	rr, err := Resolve(root, Options{Topdir: "/ws", Flags: IgnoreImports})
	if err != nil {
		t.Fatal(err)
	}
	want := []string{"manifest", "sub"}
	if diff := cmp.Diff(want, names(rr.Projects)); diff != "" {
		t.Fatalf("IgnoreImports mismatch (-want +got):\n%s", diff)
	}
}

func TestResolveIgnoreProjectImportsKeepsSelfImports(t *testing.T) {
	root := load(t, `
manifest:
  projects:
    - name: sub
      url: https://x/sub
      import: true
  self:
    import: extra.yml
`)
	self := memSelf{"extra.yml": `
manifest:
  projects:
    - name: fromself
      url: https://x/fromself
`}
	rr, err := Resolve(root, Options{Topdir: "/ws", Flags: IgnoreProjectImports, Self: self})
	if err != nil {
		t.Fatal(err)
	}
	want := []string{"manifest", "fromself", "sub"}
	if diff := cmp.Diff(want, names(rr.Projects)); diff != "" {
		t.Fatalf("IgnoreProjectImports mismatch (-want +got):\n%s", diff)
	}
}

func TestResolveFiltersApplyTransitively(t *testing.T) {
	// A blocklist on the outer import frame must also exclude projects
	// contributed by deeper imports.
	root := load(t, `
manifest:
  projects:
    - name: mid
      url: https://x/mid
      import:
        file: west.yml
        name-blocklist:
          - hidden
`)
	importer := memProjects{
		"mid": {"west.yml": `
manifest:
  projects:
    - name: deep
      url: https://x/deep
      import: true
`},
		"deep": {"west.yml": `
manifest:
  projects:
    - name: hidden
      url: https://x/hidden
    - name: visible
      url: https://x/visible
`},
	}
	rr, err := Resolve(root, Options{Topdir: "/ws", Projects: importer})
	if err != nil {
		t.Fatal(err)
	}
	want := []string{"manifest", "mid", "deep", "visible"}
	if diff := cmp.Diff(want, names(rr.Projects)); diff != "" {
		t.Fatalf("transitive filter mismatch (-want +got):\n%s", diff)
	}
}
