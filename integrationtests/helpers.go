// Copyright 2024 The Fuchsia Authors. All rights reserved.
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package integrationtests

import (
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"

	"go.west.dev/west"
	"go.west.dev/west/manifest"
	"go.west.dev/west/westtest/xtest"
)

func requireGit(t *testing.T) {
	t.Helper()
	if _, err := exec.LookPath("git"); err != nil {
		t.Skip("git binary not available")
	}
}

func runGit(t *testing.T, dir string, args ...string) string {
	t.Helper()
	cmd := exec.Command("git", args...)
	cmd.Dir = dir
	cmd.Env = append(os.Environ(),
		"GIT_AUTHOR_NAME=test", "GIT_AUTHOR_EMAIL=test@example.com",
		"GIT_COMMITTER_NAME=test", "GIT_COMMITTER_EMAIL=test@example.com")
	out, err := cmd.CombinedOutput()
	if err != nil {
		t.Fatalf("git %v in %s: %v\n%s", args, dir, err, out)
	}
	return strings.TrimSpace(string(out))
}

// newRemoteProject creates a checked-out repository with one commit on
// "main" containing the given files, and returns its path. The update
// engine fetches from it over the filesystem.
func newRemoteProject(t *testing.T, files map[string]string) string {
	t.Helper()
	dir := t.TempDir()
	runGit(t, dir, "init", "-q", "-b", "main", dir)
	writeFiles(t, dir, files)
	runGit(t, dir, "add", "-A")
	runGit(t, dir, "commit", "-q", "-m", "initial")
	return dir
}

func writeFiles(t *testing.T, dir string, files map[string]string) {
	t.Helper()
	for name, content := range files {
		path := filepath.Join(dir, filepath.FromSlash(name))
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
			t.Fatal(err)
		}
	}
}

func commitFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	writeFiles(t, dir, map[string]string{name: content})
	runGit(t, dir, "add", "-A")
	runGit(t, dir, "commit", "-q", "-m", "update "+name)
	return runGit(t, dir, "rev-parse", "HEAD")
}

// newWorkspace builds a workspace whose manifest repository working tree
// contains the given files (west.yml among them), and returns the
// environment plus the parsed root manifest. The manifest repository sits
// at <topdir>/manifest-repo, mirroring what init produces.
func newWorkspace(t *testing.T, manifestFiles map[string]string) (*west.Env, *manifest.Manifest) {
	t.Helper()
	env := xtest.NewX(t)
	repo := filepath.Join(env.Topdir, "manifest-repo")
	if err := os.MkdirAll(repo, 0o755); err != nil {
		t.Fatal(err)
	}
	writeFiles(t, repo, manifestFiles)

	m, err := manifest.Load(manifest.Source{
		File:     filepath.Join(repo, west.ManifestFileName),
		PathHint: "manifest-repo",
	})
	if err != nil {
		t.Fatalf("loading workspace manifest: %v", err)
	}
	return env, m
}

// treeImporter reads self-imports from the manifest repository working
// tree rooted at dir.
type treeImporter struct {
	dir string
}

func (s treeImporter) ReadFile(file string) ([]byte, error) {
	return os.ReadFile(filepath.Join(s.dir, file))
}

func (s treeImporter) ListDir(dir string) ([]string, error) {
	entries, err := os.ReadDir(filepath.Join(s.dir, dir))
	if err != nil {
		return nil, err
	}
	var names []string
	for _, e := range entries {
		if !e.IsDir() {
			names = append(names, e.Name())
		}
	}
	return names, nil
}
