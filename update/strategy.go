// Copyright 2015 The Vanadium Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package update

import (
	"fmt"
	"strings"

	"go.west.dev/west/gitutil"
)

// FetchStrategy selects when a project's working tree needs a network
// fetch before its manifest-rev can be resolved.
type FetchStrategy int

const (
	// FetchSmart skips the fetch when the revision is already locally
	// resolvable to a tag or commit SHA.
	FetchSmart FetchStrategy = iota
	// FetchAlways unconditionally fetches.
	FetchAlways
)

// refspec is the computed fetch refspec and manifest-rev target for a
// project's pinned revision.
type refspec struct {
	Refspecs        []string
	ManifestRevExpr string // "sha" for a literal SHA, "FETCH_HEAD^{commit}" otherwise
	SHA             string
}

func computeRefspec(revision string) refspec {
	if gitutil.IsSHA(revision) {
		return refspec{
			Refspecs:        []string{"refs/heads/*:refs/west/*"},
			ManifestRevExpr: "sha",
			SHA:             revision,
		}
	}
	return refspec{
		Refspecs:        []string{revision},
		ManifestRevExpr: "FETCH_HEAD^{commit}",
	}
}

// gitDriver is the subset of *gitutil.Git the update engine depends on; it
// is an interface so tests can substitute a fake without shelling out to a
// real git binary for every case.
type gitDriver interface {
	Init(bare bool) error
	RemoteAdd(name, url string) error
	Fetch(url string, opts gitutil.FetchOptions) error
	ShowRef(ref string) (bool, error)
	RevParse(rev string) (string, error)
	RevParseAbbrevHead() (string, error)
	CatFileType(rev string) (gitutil.CatFileType, error)
	RevParseSymbolicFullName(rev string) (string, error)
	UpdateRef(ref, target string) error
	DeleteRef(ref string) error
	ForEachRef(pattern string) ([]string, error)
	CheckoutDetach(rev string) error
	Rebase(onto string) error
	IsAncestor(ancestor, descendant string) (bool, error)
}

// isClonedRepo reports whether dir already looks like a git repo, by
// probing for a resolvable HEAD. A fresh Init'd-but-empty repo and a
// nonexistent directory both report false.
func isClonedRepo(g gitDriver) bool {
	_, err := g.RevParseAbbrevHead()
	return err == nil
}

// locallyResolvable reports whether revision is already resolvable to a
// tag or a commit SHA in the local object store, disambiguating branches
// via RevParseSymbolicFullName.
func locallyResolvable(g gitDriver, revision string) (bool, error) {
	typ, err := g.CatFileType(revision)
	if err != nil {
		return false, nil // not resolvable at all locally
	}
	switch typ {
	case gitutil.TypeCommit:
		full, err := g.RevParseSymbolicFullName(revision)
		if err == nil && full != "" && !strings.HasPrefix(full, "refs/tags/") {
			// A symbolic full name outside refs/tags/ means revision is a
			// branch, which must still be fetched to pick up new commits.
			return false, nil
		}
		return true, nil
	case gitutil.TypeTag:
		return true, nil
	default:
		return false, nil
	}
}

// shouldFetch implements the per-project fetch decision.
func shouldFetch(g gitDriver, strategy FetchStrategy, revision string) (bool, error) {
	if strategy == FetchAlways {
		return true, nil
	}
	if !isClonedRepo(g) {
		return true, nil
	}
	resolvable, err := locallyResolvable(g, revision)
	if err != nil {
		return false, err
	}
	return !resolvable, nil
}

// fetchOptionsFor builds the FetchOptions and returns the manifest-rev
// target expression for one project update pass.
func fetchOptionsFor(revision string, depth int) (gitutil.FetchOptions, refspec) {
	rs := computeRefspec(revision)
	opts := gitutil.FetchOptions{
		Refspecs: rs.Refspecs,
		Tags:     true,
		Force:    true,
	}
	if depth > 0 {
		opts.Depth = depth
	}
	return opts, rs
}

// resolveManifestRevTarget turns a refspec computed before the fetch into
// the actual target ref/SHA to set refs/heads/manifest-rev to. If fetched
// is false (the "smart" strategy skipped the network fetch because the
// revision was already locally resolvable), it resolves the revision
// directly instead of through FETCH_HEAD, which would otherwise still be
// left over from some earlier, unrelated fetch.
func resolveManifestRevTarget(g gitDriver, rs refspec, revision string, fetched bool) (string, error) {
	if rs.ManifestRevExpr == "sha" {
		return rs.SHA, nil
	}
	if !fetched {
		sha, err := g.RevParse(revision + "^{commit}")
		if err != nil {
			return "", fmt.Errorf("update: resolving %q locally: %w", revision, err)
		}
		return sha, nil
	}
	sha, err := g.RevParse(rs.ManifestRevExpr)
	if err != nil {
		return "", fmt.Errorf("update: resolving FETCH_HEAD: %w", err)
	}
	return sha, nil
}
