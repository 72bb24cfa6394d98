// Copyright 2015 The Vanadium Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package update

import (
	"golang.org/x/sync/errgroup"

	"go.west.dev/west"
	"go.west.dev/west/gitutil"
	"go.west.dev/west/manifest"
)

// BranchInfo is a read-only snapshot of one project's working tree: whether
// it is cloned, what branch is checked out ("HEAD" when detached), and what
// manifest-rev currently resolves to.
type BranchInfo struct {
	Project     *manifest.Project
	Cloned      bool
	Branch      string
	ManifestRev string
}

// Inspect gathers a BranchInfo per project. The inspection only reads from
// each repository, and no project is visited twice, so the lookups run
// concurrently; results come back in the projects' manifest-resolution
// order regardless. limit caps the number of concurrent git invocations
// (values < 1 mean unlimited).
func (e *Engine) Inspect(projects []*manifest.Project, topdir string, limit int) []BranchInfo {
	infos := make([]BranchInfo, len(projects))
	var g errgroup.Group
	if limit > 0 {
		g.SetLimit(limit)
	}
	for i, p := range projects {
		i, p := i, p
		g.Go(func() error {
			infos[i] = inspectProject(e.env, p, topdir)
			return nil
		})
	}
	g.Wait()
	return infos
}

func inspectProject(env *west.Env, p *manifest.Project, topdir string) BranchInfo {
	info := BranchInfo{Project: p}
	dir := p.AbsPath(topdir)
	if dir == "" {
		return info
	}
	git := gitutil.New(env, dir)
	branch, err := git.RevParseAbbrevHead()
	if err != nil {
		return info
	}
	info.Cloned = true
	info.Branch = branch
	if sha, err := git.RevParse(gitutil.ManifestRevRef); err == nil {
		info.ManifestRev = sha
	}
	return info
}
