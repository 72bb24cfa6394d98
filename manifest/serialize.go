// Copyright 2015 The Vanadium Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package manifest

import (
	"fmt"

	"gopkg.in/yaml.v3"
)

// Resolved is the fully-resolved view of a manifest tree:
// the manifest-project plus the deterministic, ordered project list and
// composed group-filter that package resolve produces. It is the input to
// as_dict/as_yaml/as_frozen_dict/as_frozen_yaml.
type Resolved struct {
	// Self is the manifest-project record, always first in Projects too.
	Self *Project
	// Projects is the full resolved list, manifest-project included.
	Projects []*Project
	// Remotes and Defaults come from the root document. They are not
	// themselves resolved (every project's URL has already been derived
	// from them by C3), but are preserved in AsDict/AsYAML. Projects are
	// emitted with their derived url, not with remote/repo-path.
	Remotes     []Remote
	Defaults    Defaults
	GroupFilter []string
}

// NewResolved builds a Resolved view from a root manifest document plus the
// project list and group-filter package resolve produced for it.
func NewResolved(root *Manifest, projects []*Project, groupFilter []string) *Resolved {
	return &Resolved{
		Self:        root.Self(),
		Projects:    projects,
		Remotes:     root.Remotes,
		Defaults:    root.Defaults,
		GroupFilter: groupFilter,
	}
}

// RevisionResolver resolves a project's manifest-rev to a full SHA, for
// AsFrozenDict. The update engine supplies an implementation backed by the
// project's local clone; package manifest stays free of a gitutil
// dependency.
type RevisionResolver func(p *Project) (string, error)

// projectDict renders one project into its as_dict shape: name, revision
// and url, then path and the optional fields only when non-default. The
// result is a plain map, so it carries no field order.
func projectDict(p *Project, revision string) map[string]interface{} {
	d := map[string]interface{}{
		"name":     p.Name,
		"revision": revision,
	}
	if p.URL != "" {
		d["url"] = p.URL
	}
	if p.Path != "" && p.Path != p.Name {
		d["path"] = p.Path
	}
	if p.CloneDepth > 0 {
		d["clone-depth"] = p.CloneDepth
	}
	if len(p.WestCommands) > 0 {
		d["west-commands"] = []string(p.WestCommands)
	}
	if len(p.Groups) > 0 {
		d["groups"] = p.Groups
	}
	if p.Userdata != nil {
		d["userdata"] = p.Userdata
	}
	if p.Submodules != nil {
		d["submodules"] = p.Submodules
	}
	return d
}

// AsDict renders the resolved manifest section as a map. Map keys carry no
// order; only the lists (remotes, projects, group-filter) keep theirs.
// Projects are emitted in resolution order, excluding the
// self-project (which is emitted under "self" instead, matching the
// original manifest document's shape).
func (r *Resolved) AsDict() map[string]interface{} {
	out := map[string]interface{}{}
	if len(r.Remotes) > 0 {
		var remotes []interface{}
		for _, rem := range r.Remotes {
			remotes = append(remotes, map[string]interface{}{"name": rem.Name, "url-base": rem.URLBase})
		}
		out["remotes"] = remotes
	}
	if r.Defaults.Remote != "" || r.Defaults.Revision != "" {
		defaults := map[string]interface{}{}
		if r.Defaults.Remote != "" {
			defaults["remote"] = r.Defaults.Remote
		}
		if r.Defaults.Revision != "" {
			defaults["revision"] = r.Defaults.Revision
		}
		out["defaults"] = defaults
	}
	self := map[string]interface{}{}
	if r.Self != nil && r.Self.Path != "" {
		self["path"] = r.Self.Path
	}
	out["self"] = self

	var projects []interface{}
	for _, p := range r.Projects {
		if p.Name == ReservedProjectName {
			continue
		}
		projects = append(projects, projectDict(p, p.Revision))
	}
	if len(projects) > 0 {
		out["projects"] = projects
	}
	if len(r.GroupFilter) > 0 {
		out["group-filter"] = r.GroupFilter
	}
	return out
}

// AsFrozenDict is AsDict but with every project's revision replaced by its
// manifest-rev SHA, resolved through resolve. It fails if resolve cannot
// produce a SHA for any project (e.g. the project isn't cloned yet).
func (r *Resolved) AsFrozenDict(resolve RevisionResolver) (map[string]interface{}, error) {
	out := map[string]interface{}{}
	if len(r.Remotes) > 0 {
		var remotes []interface{}
		for _, rem := range r.Remotes {
			remotes = append(remotes, map[string]interface{}{"name": rem.Name, "url-base": rem.URLBase})
		}
		out["remotes"] = remotes
	}
	self := map[string]interface{}{}
	if r.Self != nil && r.Self.Path != "" {
		self["path"] = r.Self.Path
	}
	out["self"] = self

	var projects []interface{}
	for _, p := range r.Projects {
		if p.Name == ReservedProjectName {
			continue
		}
		sha, err := resolve(p)
		if err != nil {
			return nil, fmt.Errorf("manifest: freezing project %q: %w", p.Name, err)
		}
		projects = append(projects, projectDict(p, sha))
	}
	if len(projects) > 0 {
		out["projects"] = projects
	}
	if len(r.GroupFilter) > 0 {
		out["group-filter"] = r.GroupFilter
	}
	return out, nil
}

// toYAML wraps a rendered dict under the top-level "manifest" key and
// marshals it with 2-space indentation, matching the original west's
// emitted style. Map keys are emitted in sorted order, not in the order of
// the source document.
func toYAML(dict map[string]interface{}) (string, error) {
	var n yaml.Node
	if err := n.Encode(map[string]interface{}{"manifest": dict}); err != nil {
		return "", err
	}
	var out yamlBuffer
	enc := yaml.NewEncoder(&out)
	enc.SetIndent(2)
	if err := enc.Encode(&n); err != nil {
		return "", err
	}
	if err := enc.Close(); err != nil {
		return "", err
	}
	return out.String(), nil
}

// AsYAML renders AsDict as a YAML document.
func (r *Resolved) AsYAML() (string, error) {
	return toYAML(r.AsDict())
}

// AsFrozenYAML renders AsFrozenDict as a YAML document.
func (r *Resolved) AsFrozenYAML(resolve RevisionResolver) (string, error) {
	dict, err := r.AsFrozenDict(resolve)
	if err != nil {
		return "", err
	}
	return toYAML(dict)
}

// yamlBuffer is a minimal io.Writer so we don't need bytes.Buffer's wider
// API surface just to satisfy yaml.NewEncoder.
type yamlBuffer struct {
	b []byte
}

func (y *yamlBuffer) Write(p []byte) (int, error) {
	y.b = append(y.b, p...)
	return len(p), nil
}

func (y *yamlBuffer) String() string {
	return string(y.b)
}
