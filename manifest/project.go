// Copyright 2015 The Vanadium Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package manifest implements the manifest model and loader: parsing one
// YAML document into Projects, Remotes, the
// self-project, group metadata and schema version, with defaults applied.
package manifest

import (
	"fmt"
	"path/filepath"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"
)

// ReservedProjectName is the one project name a manifest may never use
// it is reserved for the manifest-project itself.
const ReservedProjectName = "manifest"

// DefaultRevision is used when neither a project nor manifest.defaults
// supplies one.
const DefaultRevision = "master"

var groupTokenRE = regexp.MustCompile(`^[^\s,:+-][^\s,:]*$`)

// ValidGroupToken reports whether s is a legal (unsigned) group token: a
// non-empty string with no whitespace, comma, or colon, and not starting
// with '+' or '-'.
func ValidGroupToken(s string) bool {
	return s != "" && groupTokenRE.MatchString(s)
}

// Remote is local to the document that declares it; it is never part of a
// resolved project's exported shape.
type Remote struct {
	Name    string `yaml:"name"`
	URLBase string `yaml:"url-base"`
}

// Project is one manifest-declared repository.
type Project struct {
	Name         string      `yaml:"name"`
	URL          string      `yaml:"url,omitempty"`
	Remote       string      `yaml:"remote,omitempty"`
	RepoPath     string      `yaml:"repo-path,omitempty"`
	Revision     string      `yaml:"revision,omitempty"`
	Path         string      `yaml:"path,omitempty"`
	CloneDepth   int         `yaml:"clone-depth,omitempty"`
	WestCommands StringList  `yaml:"west-commands,omitempty"`
	Groups       []string    `yaml:"groups,omitempty"`
	Userdata     interface{} `yaml:"userdata,omitempty"`
	Submodules   interface{} `yaml:"submodules,omitempty"`
	Import       *ImportSpec `yaml:"import,omitempty"`

	// ImportedBy names the project whose import directive contributed
	// this project to the resolved tree; empty for projects declared
	// directly in the manifest repository's own document.
	ImportedBy string `yaml:"-"`
}

// AbsPath returns topdir joined with p.Path, or "" if topdir is empty.
func (p *Project) AbsPath(topdir string) string {
	if topdir == "" {
		return ""
	}
	return filepath.Join(topdir, p.Path)
}

// PosixPath is AbsPath with forward slashes, for manifests and logs that
// must be platform-independent.
func (p *Project) PosixPath(topdir string) string {
	abs := p.AbsPath(topdir)
	if abs == "" {
		return ""
	}
	return filepath.ToSlash(abs)
}

// Format substitutes "{name}", "{url}", "{remote}", "{revision}", "{path}"
// and "{cloned-path}" (the same value as "{path}") in template, mirroring
// the project formatting convention of the "list" front end. No other
// Project field has a placeholder.
func (p *Project) Format(template string) string {
	r := strings.NewReplacer(
		"{name}", p.Name,
		"{url}", p.URL,
		"{remote}", p.Remote,
		"{revision}", p.Revision,
		"{path}", p.Path,
		"{cloned-path}", p.Path,
	)
	return r.Replace(template)
}

// StringList decodes either a single YAML scalar (normalized to a
// one-element list) or a YAML sequence, the two shapes the
// "west-commands" field accepts.
type StringList []string

func (s *StringList) UnmarshalYAML(node *yaml.Node) error {
	switch {
	case node.Tag == "!!null":
		*s = nil
		return nil
	case node.Kind == yaml.ScalarNode:
		var one string
		if err := node.Decode(&one); err != nil {
			return err
		}
		*s = StringList{one}
		return nil
	case node.Kind == yaml.SequenceNode:
		var list []string
		if err := node.Decode(&list); err != nil {
			return err
		}
		*s = StringList(list)
		return nil
	default:
		return fmt.Errorf("manifest: expected a string or a list of strings, got %v", node.Tag)
	}
}
