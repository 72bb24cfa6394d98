// Copyright 2015 The Vanadium Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package gitutil

import (
	"os"
	"os/exec"
	"path/filepath"
	"testing"

	"github.com/sirupsen/logrus"

	"go.west.dev/west"
)

func testEnv(t *testing.T) *west.Env {
	t.Helper()
	return west.NewEnv(t.TempDir(), logrus.ErrorLevel)
}

func requireGit(t *testing.T) {
	t.Helper()
	if _, err := exec.LookPath("git"); err != nil {
		t.Skip("git binary not available")
	}
}

func initRepoWithCommit(t *testing.T, env *west.Env, dir string) (*Git, string) {
	t.Helper()
	g := New(env, dir)
	if err := g.Init(false); err != nil {
		t.Fatalf("Init: %v", err)
	}
	run := func(args ...string) {
		cmd := exec.Command("git", args...)
		cmd.Dir = dir
		cmd.Env = append(os.Environ(),
			"GIT_AUTHOR_NAME=t", "GIT_AUTHOR_EMAIL=t@t.com",
			"GIT_COMMITTER_NAME=t", "GIT_COMMITTER_EMAIL=t@t.com")
		if out, err := cmd.CombinedOutput(); err != nil {
			t.Fatalf("git %v: %v\n%s", args, err, out)
		}
	}
	if err := os.WriteFile(filepath.Join(dir, "README"), []byte("hi"), 0o644); err != nil {
		t.Fatal(err)
	}
	run("add", "README")
	run("commit", "-m", "initial")
	sha, err := g.RevParse("HEAD")
	if err != nil {
		t.Fatal(err)
	}
	return g, sha
}

func TestInitAndCommit(t *testing.T) {
	requireGit(t)
	env := testEnv(t)
	dir := t.TempDir()
	_, sha := initRepoWithCommit(t, env, dir)
	if len(sha) != 40 {
		t.Fatalf("expected a 40-char SHA, got %q", sha)
	}
}

func TestShowRefAndUpdateRef(t *testing.T) {
	requireGit(t)
	env := testEnv(t)
	dir := t.TempDir()
	g, sha := initRepoWithCommit(t, env, dir)

	if ok, err := g.ShowRef(ManifestRevRef); err != nil || ok {
		t.Fatalf("ShowRef before creation: ok=%v err=%v", ok, err)
	}
	if err := g.UpdateRef(ManifestRevRef, sha); err != nil {
		t.Fatal(err)
	}
	if ok, err := g.ShowRef(ManifestRevRef); err != nil || !ok {
		t.Fatalf("ShowRef after creation: ok=%v err=%v", ok, err)
	}
	if err := g.DeleteRef(ManifestRevRef); err != nil {
		t.Fatal(err)
	}
	if ok, _ := g.ShowRef(ManifestRevRef); ok {
		t.Fatal("expected manifest-rev to be gone after DeleteRef")
	}
}

func TestCatFileTypeAndIsAncestor(t *testing.T) {
	requireGit(t)
	env := testEnv(t)
	dir := t.TempDir()
	g, sha := initRepoWithCommit(t, env, dir)

	typ, err := g.CatFileType(sha)
	if err != nil {
		t.Fatal(err)
	}
	if typ != TypeCommit {
		t.Fatalf("CatFileType(%s) = %s, want commit", sha, typ)
	}

	ok, err := g.IsAncestor(sha, sha)
	if err != nil {
		t.Fatal(err)
	}
	if !ok {
		t.Fatal("expected a commit to be its own ancestor")
	}
}

func TestReadBlobAtAndListTreeAt(t *testing.T) {
	requireGit(t)
	env := testEnv(t)
	dir := t.TempDir()
	g, sha := initRepoWithCommit(t, env, dir)

	data, err := g.ReadBlobAt(sha, "README")
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != "hi" {
		t.Fatalf("ReadBlobAt = %q, want %q", data, "hi")
	}

	names, err := g.ListTreeAt(sha, "")
	if err != nil {
		t.Fatal(err)
	}
	if len(names) != 1 || names[0] != "README" {
		t.Fatalf("ListTreeAt = %v, want [README]", names)
	}
}

func TestIsSHA(t *testing.T) {
	cases := map[string]bool{
		"abc123": true,
		"deadbeefdeadbeefdeadbeefdeadbeefdeadbeef": true,
		"main": false,
		"v1.0": false,
		"deadbeefdeadbeefdeadbeefdeadbeefdeadbeef123": false,
	}
	for rev, want := range cases {
		if got := IsSHA(rev); got != want {
			t.Errorf("IsSHA(%q) = %v, want %v", rev, got, want)
		}
	}
}
