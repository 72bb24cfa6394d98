// Copyright 2015 The Vanadium Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package update

import (
	"fmt"

	"go.west.dev/west/gitutil"
)

// ReconcileMode selects how the update engine treats a project whose
// current branch has local work, once manifest-rev has moved.
type ReconcileMode int

const (
	// ReconcileDefault detaches to the new SHA, printing fast-forward or
	// rebase guidance depending on ancestry.
	ReconcileDefault ReconcileMode = iota
	// ReconcileKeepDescendants leaves the current branch checked out (and
	// prints its status) when it is already a descendant of the new SHA.
	ReconcileKeepDescendants
	// ReconcileRebase rebases the current branch onto the new manifest-rev.
	ReconcileRebase
)

// Guidance is the user-facing follow-up advice attached to a Default
// reconciliation: how to get back onto the branch that was detached from.
type Guidance struct {
	// IsAncestor is true when the new SHA is an ancestor of (or equal to)
	// the branch that was detached, i.e. the branch can fast-forward.
	IsAncestor bool
	Branch     string
	SHA        string
}

func (g Guidance) String() string {
	if g.Branch == "" {
		return ""
	}
	if g.IsAncestor {
		return fmt.Sprintf("to return to your branch, run: git checkout %s", g.Branch)
	}
	return fmt.Sprintf("to rebase your branch onto the new revision, run: git rebase %s %s", g.SHA, g.Branch)
}

// reconcileOutcome is the per-project result of one reconciliation pass.
type reconcileOutcome struct {
	Detached     bool
	KeptBranch   string
	StatusText   string
	Rebased      bool
	RebaseFailed bool
	Guidance     Guidance
}

// reconcile brings the working tree to sha, manifest-rev's resolved
// commit, honoring mode when a branch is checked out.
func reconcile(g gitDriver, mode ReconcileMode, sha string, statusFn func() (string, error)) (reconcileOutcome, error) {
	branch, err := g.RevParseAbbrevHead()
	if err != nil {
		return reconcileOutcome{}, fmt.Errorf("update: determining current branch: %w", err)
	}

	if branch == "HEAD" {
		if err := g.CheckoutDetach(sha); err != nil {
			return reconcileOutcome{}, err
		}
		return reconcileOutcome{Detached: true}, nil
	}

	isAncestor, err := g.IsAncestor(sha, branch)
	if err != nil {
		return reconcileOutcome{}, fmt.Errorf("update: checking ancestry of %s: %w", branch, err)
	}

	switch {
	case mode == ReconcileKeepDescendants && isAncestor:
		out := reconcileOutcome{KeptBranch: branch}
		if statusFn != nil {
			status, err := statusFn()
			if err != nil {
				return out, fmt.Errorf("update: git status on %s: %w", branch, err)
			}
			out.StatusText = status
		}
		return out, nil
	case mode == ReconcileRebase:
		if err := g.Rebase(gitutil.ManifestRevRef); err != nil {
			return reconcileOutcome{RebaseFailed: true}, err
		}
		return reconcileOutcome{Rebased: true}, nil
	default:
		if err := g.CheckoutDetach(sha); err != nil {
			return reconcileOutcome{}, err
		}
		return reconcileOutcome{
			Detached: true,
			Guidance: Guidance{IsAncestor: isAncestor, Branch: branch, SHA: sha},
		}, nil
	}
}
