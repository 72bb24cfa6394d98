// Copyright 2015 The Vanadium Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package gitutil is a thin contract over an external git binary,
// exposing exactly the operations the
// update engine needs. It is not a general-purpose git library.
package gitutil

import (
	"bytes"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"go.west.dev/west"
)

// GitError carries the command context of a failed git invocation.
type GitError struct {
	Root        string
	Args        []string
	Output      string
	ErrorOutput string
	err         error
}

func newError(output, errorOutput string, err error, root string, args ...string) *GitError {
	return &GitError{Root: root, Args: args, Output: output, ErrorOutput: errorOutput, err: err}
}

func (ge *GitError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "(%s) git %s' failed:\n", ge.Root, strings.Join(ge.Args, " "))
	b.WriteString("stdout:\n")
	b.WriteString(ge.Output)
	b.WriteString("\nstderr:\n")
	b.WriteString(ge.ErrorOutput)
	fmt.Fprintf(&b, "\ncommand fail error: %v", ge.err)
	return b.String()
}

func (ge *GitError) Unwrap() error { return ge.err }

// CatFileType is the result of a CatFileType query.
type CatFileType string

const (
	TypeBlob   CatFileType = "blob"
	TypeTree   CatFileType = "tree"
	TypeTag    CatFileType = "tag"
	TypeCommit CatFileType = "commit"
	TypeOther  CatFileType = "other"
)

// Git is a handle onto a working directory through which every operation
// of the C2 contract is invoked.
type Git struct {
	env *west.Env
	dir string
}

// New returns a Git driver rooted at dir. dir need not exist yet; Init
// creates it.
func New(env *west.Env, dir string) *Git {
	return &Git{env: env, dir: dir}
}

// RootDir returns the directory this driver operates in.
func (g *Git) RootDir() string { return g.dir }

// Init runs "git init" (optionally --bare) at g.dir, creating it first.
func (g *Git) Init(bare bool) error {
	if err := os.MkdirAll(g.dir, 0o755); err != nil {
		return err
	}
	args := []string{"init"}
	if bare {
		args = append(args, "--bare")
	}
	args = append(args, g.dir)
	return g.run(args...)
}

// RemoteAdd adds a remote named name pointing at url.
func (g *Git) RemoteAdd(name, url string) error {
	return g.run("remote", "add", name, url)
}

// FetchOptions controls Fetch's behavior.
type FetchOptions struct {
	Refspecs []string
	Depth    int
	Tags     bool
	Force    bool
}

// Fetch fetches from url directly (never through a configured remote
// name, which is a convenience only) using the given refspecs.
func (g *Git) Fetch(url string, opts FetchOptions) error {
	args := []string{"fetch"}
	if opts.Tags {
		args = append(args, "--tags")
	}
	if opts.Force {
		args = append(args, "-f")
	}
	if opts.Depth > 0 {
		args = append(args, "--depth", fmt.Sprintf("%d", opts.Depth))
	}
	args = append(args, url)
	args = append(args, opts.Refspecs...)
	return g.run(args...)
}

// ShowRef reports whether ref exists.
func (g *Git) ShowRef(ref string) (bool, error) {
	err := g.run("show-ref", "--verify", "--quiet", ref)
	if err == nil {
		return true, nil
	}
	if _, ok := err.(*GitError); ok {
		return false, nil
	}
	return false, err
}

// RevParse resolves rev to a SHA.
func (g *Git) RevParse(rev string) (string, error) {
	out, err := g.runOutput("rev-parse", "--verify", rev)
	if err != nil {
		return "", err
	}
	return firstLine(out), nil
}

// RevParseAbbrevHead returns the current branch name, or "HEAD" if
// detached.
func (g *Git) RevParseAbbrevHead() (string, error) {
	out, err := g.runOutput("rev-parse", "--abbrev-ref", "HEAD")
	if err != nil {
		return "", err
	}
	return firstLine(out), nil
}

// CatFileType classifies rev as a blob, tree, tag, or commit.
func (g *Git) CatFileType(rev string) (CatFileType, error) {
	out, err := g.runOutput("cat-file", "-t", rev)
	if err != nil {
		return "", err
	}
	switch firstLine(out) {
	case "blob":
		return TypeBlob, nil
	case "tree":
		return TypeTree, nil
	case "tag":
		return TypeTag, nil
	case "commit":
		return TypeCommit, nil
	default:
		return TypeOther, nil
	}
}

// RevParseSymbolicFullName returns e.g. "refs/heads/main" for rev.
func (g *Git) RevParseSymbolicFullName(rev string) (string, error) {
	out, err := g.runOutput("rev-parse", "--symbolic-full-name", rev)
	if err != nil {
		return "", err
	}
	return firstLine(out), nil
}

// UpdateRef sets ref to point at target.
func (g *Git) UpdateRef(ref, target string) error {
	return g.run("update-ref", ref, target)
}

// DeleteRef removes ref.
func (g *Git) DeleteRef(ref string) error {
	return g.run("update-ref", "-d", ref)
}

// ForEachRef lists refs matching pattern.
func (g *Git) ForEachRef(pattern string) ([]string, error) {
	out, err := g.runOutput("for-each-ref", "--format=%(refname)", pattern)
	if err != nil {
		return nil, err
	}
	return out, nil
}

// CheckoutDetach detaches HEAD at rev.
func (g *Git) CheckoutDetach(rev string) error {
	return g.run("checkout", "--detach", rev)
}

// Rebase rebases the current branch onto onto.
func (g *Git) Rebase(onto string) error {
	return g.run("rebase", onto)
}

// Status returns "git status --short --branch" output for the working
// tree.
func (g *Git) Status() (string, error) {
	out, err := g.runOutput("status", "--short", "--branch")
	if err != nil {
		return "", err
	}
	return strings.Join(out, "\n"), nil
}

// IsAncestor reports whether ancestor is an ancestor of (or equal to)
// descendant.
func (g *Git) IsAncestor(ancestor, descendant string) (bool, error) {
	err := g.run("merge-base", "--is-ancestor", ancestor, descendant)
	if err == nil {
		return true, nil
	}
	if isExitStatusOne(err) {
		return false, nil
	}
	return false, err
}

// ReadBlobAt reads the content of path as it existed at rev ("git show
// rev:path").
func (g *Git) ReadBlobAt(rev, path string) ([]byte, error) {
	var stdout, stderr bytes.Buffer
	if err := g.runGit(&stdout, &stderr, "show", fmt.Sprintf("%s:%s", rev, path)); err != nil {
		return nil, newError(stdout.String(), stderr.String(), err, g.dir, "show", rev+":"+path)
	}
	return stdout.Bytes(), nil
}

// ListTreeAt returns the sorted child names of path's directory at rev.
func (g *Git) ListTreeAt(rev, path string) ([]string, error) {
	spec := rev + ":" + path
	if path == "" || path == "." {
		spec = rev + ":"
	}
	out, err := g.runOutput("ls-tree", "--name-only", spec)
	if err != nil {
		return nil, err
	}
	sort.Strings(out)
	return out, nil
}

func firstLine(lines []string) string {
	if len(lines) == 0 {
		return ""
	}
	return lines[0]
}

var exitStatusOneRE = regexp.MustCompile(`exit status 1$`)

func isExitStatusOne(err error) bool {
	ge, ok := err.(*GitError)
	if !ok {
		return false
	}
	return exitStatusOneRE.MatchString(ge.err.Error())
}

func (g *Git) run(args ...string) error {
	var stdout, stderr bytes.Buffer
	if err := g.runGit(&stdout, &stderr, args...); err != nil {
		return newError(stdout.String(), stderr.String(), err, g.dir, args...)
	}
	return nil
}

func trimOutput(o string) []string {
	out := strings.TrimSpace(o)
	if len(out) == 0 {
		return nil
	}
	return strings.Split(out, "\n")
}

func (g *Git) runOutput(args ...string) ([]string, error) {
	var stdout, stderr bytes.Buffer
	if err := g.runGit(&stdout, &stderr, args...); err != nil {
		return nil, newError(stdout.String(), stderr.String(), err, g.dir, args...)
	}
	return trimOutput(stdout.String()), nil
}

func (g *Git) runGit(stdout, stderr *bytes.Buffer, args ...string) error {
	cmd := exec.Command("git", args...)
	cmd.Dir = g.dir
	cmd.Stdout = stdout
	cmd.Stderr = stderr
	cmd.Env = append(os.Environ(), "GIT_ADVICE=0")
	if g.env != nil && g.env.Logger != nil {
		g.env.Logger.WithFields(west.Fields("dir", g.dir)).Tracef("run: git %s", strings.Join(args, " "))
	}
	err := cmd.Run()
	if g.env != nil && g.env.Logger != nil {
		g.env.Logger.WithFields(west.Fields("dir", g.dir, "stdout", stdout.String(), "stderr", stderr.String())).Tracef("finished: git %s", strings.Join(args, " "))
	}
	return err
}

// ManifestRevRef and WestRefPrefix name the two internal ref namespaces
// reserved by the update engine.
const (
	ManifestRevRef = "refs/heads/manifest-rev"
	WestRefPrefix  = "refs/west/"
)

// IsSHA reports whether rev looks like a (possibly abbreviated) commit
// SHA: up to 40 hex characters.
func IsSHA(rev string) bool {
	if len(rev) == 0 || len(rev) > 40 {
		return false
	}
	for _, r := range rev {
		if !((r >= '0' && r <= '9') || (r >= 'a' && r <= 'f') || (r >= 'A' && r <= 'F')) {
			return false
		}
	}
	return true
}

// JoinPath is a small helper kept for callers building refspecs and paths
// without importing path/filepath just for Join.
func JoinPath(elem ...string) string {
	return filepath.Join(elem...)
}
