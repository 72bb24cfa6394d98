// Copyright 2015 The Vanadium Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package groups decides whether a project is active given the
// manifest's group-filter,
// the configuration-level group-filter, and command-line extras.
package groups

import (
	"strings"

	"go.west.dev/west/manifest"
)

// Token is one signed group-filter entry, e.g. "+foo" or "-bar".
type Token string

// Sign reports the enable/disable bit the token carries, and Name reports
// the bare group name, stripped of its leading sign. Sign returns false for
// a malformed token (callers are expected to have validated tokens via
// manifest.ValidGroupToken before they reach this package).
func (t Token) Sign() bool {
	return strings.HasPrefix(string(t), "+")
}

func (t Token) Name() string {
	s := string(t)
	if s == "" {
		return s
	}
	return s[1:]
}

// Filter is an ordered list of signed tokens, preserved in the order
// multiple sources contribute them. Later entries override earlier
// entries for the same token: the list is preserved, and the effective
// predicate is last sign wins.
type Filter []string

// Compose concatenates filters in a fixed order:
// imported-project filters, then the top-level manifest filter, then the
// configuration-level filter, then command-line extras. The caller supplies
// each layer already in that role; Compose only concatenates, it never
// reorders or deduplicates, since is_active's evaluation is defined to be
// "last sign wins" over the full list, not over a collapsed set.
func Compose(layers ...Filter) Filter {
	var out Filter
	for _, l := range layers {
		out = append(out, l...)
	}
	return out
}

// effective returns, for each group name appearing in filter, the last sign
// recorded for it.
func effective(filter Filter) map[string]bool {
	state := map[string]bool{}
	for _, tok := range filter {
		t := Token(tok)
		state[t.Name()] = t.Sign()
	}
	return state
}

// IsActive reports whether project p is active under the composed filter,
// with extras as additional command-line-supplied signed tokens applied on
// top. A project with no groups is always
// active. Otherwise it is active iff at least one of its groups is enabled
// by default, or is explicitly re-enabled by filter or extras, and none of
// the group's later overrides disable it — i.e. each group's own effective
// sign (default enabled, overridden by the last matching signed token
// across filter then extras) is consulted, and the project is active if
// any one of its groups ends up enabled.
func IsActive(p *manifest.Project, filter Filter, extras Filter) bool {
	if len(p.Groups) == 0 {
		return true
	}
	combined := effective(Compose(filter, extras))
	for _, g := range p.Groups {
		enabled, set := combined[g]
		if !set || enabled {
			return true
		}
	}
	return false
}
