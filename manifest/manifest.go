// Copyright 2015 The Vanadium Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package manifest

import (
	"bytes"
	"fmt"
	"os"
	"strings"

	"github.com/Masterminds/semver/v3"
	"gopkg.in/yaml.v3"
)

// MaxSchemaVersion is the newest manifest.version this implementation
// understands; MinSchemaVersion is the oldest.
const (
	MaxSchemaVersion = "0.13.0"
	MinSchemaVersion = "0.6.99"
	// LegacyGroupFilterVersion is the one schema version that enables the
	// legacy group-filter semantics.
	LegacyGroupFilterVersion = "0.9"
)

// MalformedError reports a schema violation or semantic constraint
// violation in a manifest document. It can carry more than one reason.
type MalformedError struct {
	Path    string
	Reasons []string
}

func (e *MalformedError) Error() string {
	if len(e.Reasons) <= 1 {
		reason := ""
		if len(e.Reasons) == 1 {
			reason = e.Reasons[0]
		}
		return fmt.Sprintf("malformed manifest %s: %s", e.Path, reason)
	}
	return fmt.Sprintf("malformed manifest %s:\n  - %s", e.Path, strings.Join(e.Reasons, "\n  - "))
}

// VersionError reports that a manifest requires a newer schema than this
// implementation supports. It must be surfaced before
// any other malformation diagnostic.
type VersionError struct {
	Path      string
	Requested string
	Max       string
}

func (e *VersionError) Error() string {
	return fmt.Sprintf("manifest %s requires schema version %s, but this build supports up to %s", e.Path, e.Requested, e.Max)
}

// Defaults is manifest.defaults: the fallback remote and revision applied
// to projects that don't specify their own.
type Defaults struct {
	Remote   string `yaml:"remote,omitempty"`
	Revision string `yaml:"revision,omitempty"`
}

// Manifest is the validated, defaults-applied representation of one YAML
// manifest document. It does not itself resolve
// imports; that is C4's job (package resolve), which calls Load once per
// document it visits.
type Manifest struct {
	SchemaVersion string
	Remotes       []Remote
	Defaults      Defaults
	// Projects are this document's own declared projects, in declared
	// order, with defaults already applied. It does not include the
	// self-project or any imported project.
	Projects []*Project
	// SelfPath, SelfWestCommands and SelfImport come from the `self`
	// section; use Self() to obtain the self-project as a *Project.
	SelfPath         string
	SelfWestCommands StringList
	SelfImport       *ImportSpec
	GroupFilter      []string
	// LegacyGroupFilter is true iff SchemaVersion == "0.9": only the
	// root document's own group-filter contributes, and
	// imported group-filters are discarded.
	LegacyGroupFilter bool
	// Diagnostics holds non-fatal deprecation notices (e.g. a 0.9
	// manifest declaring imported group-filters) for the caller to log.
	Diagnostics []string
}

// Self returns the self-project (manifest-project) record.
func (m *Manifest) Self() *Project {
	return &Project{
		Name:         ReservedProjectName,
		Revision:     "HEAD",
		Path:         m.SelfPath,
		WestCommands: m.SelfWestCommands,
	}
}

// document is the raw YAML shape of a manifest file.
type document struct {
	Manifest body `yaml:"manifest"`
}

type body struct {
	Version     string     `yaml:"version,omitempty"`
	Defaults    Defaults   `yaml:"defaults,omitempty"`
	Remotes     []Remote   `yaml:"remotes,omitempty"`
	Projects    []*Project `yaml:"projects,omitempty"`
	Self        selfBody   `yaml:"self,omitempty"`
	GroupFilter []string   `yaml:"group-filter,omitempty"`
}

type selfBody struct {
	Path         *string     `yaml:"path,omitempty"`
	WestCommands StringList  `yaml:"west-commands,omitempty"`
	Import       *ImportSpec `yaml:"import,omitempty"`
}

// peekDocument is used to read manifest.version in isolation, tolerating
// anything else in the document, so the version gate can run before full
// strict decoding: version errors must precede every other diagnostic.
type peekDocument struct {
	Manifest struct {
		Version string `yaml:"version"`
	} `yaml:"manifest"`
}

// Source identifies where a manifest document's bytes come from and, for
// project imports, what self.path should default to if the document
// itself doesn't set one.
type Source struct {
	// File, if non-empty, is read from disk. Mutually exclusive with Data.
	File string
	// Data is used verbatim if File is empty.
	Data []byte
	// PathHint supplies the loader-provided fallback for self.path.
	PathHint string
}

// Load parses and validates a single manifest document. It
// does not follow imports.
func Load(src Source) (*Manifest, error) {
	if src.File != "" && len(src.Data) != 0 {
		return nil, &MalformedError{Reasons: []string{"a manifest source may supply a file path or inline data, not both"}}
	}
	data := src.Data
	if src.File != "" {
		var err error
		data, err = os.ReadFile(src.File)
		if err != nil {
			return nil, err
		}
	}
	return parse(data, src.File, src.PathHint)
}

func padVersion(v string) string {
	if strings.Count(v, ".") == 1 {
		return v + ".0"
	}
	return v
}

func checkVersion(path, version string) error {
	parsed, err := semver.NewVersion(padVersion(version))
	if err != nil {
		return &MalformedError{Path: path, Reasons: []string{fmt.Sprintf("manifest.version %q is not a valid version", version)}}
	}
	max := semver.MustParse(padVersion(MaxSchemaVersion))
	if parsed.GreaterThan(max) {
		return &VersionError{Path: path, Requested: version, Max: MaxSchemaVersion}
	}
	min := semver.MustParse(padVersion(MinSchemaVersion))
	if parsed.LessThan(min) {
		return &MalformedError{Path: path, Reasons: []string{fmt.Sprintf("manifest.version %s is older than the minimum supported version %s", version, MinSchemaVersion)}}
	}
	return nil
}

func parse(data []byte, path, pathHint string) (*Manifest, error) {
	var peek peekDocument
	if err := yaml.Unmarshal(data, &peek); err != nil {
		return nil, &MalformedError{Path: path, Reasons: []string{err.Error()}}
	}
	if peek.Manifest.Version != "" {
		if err := checkVersion(path, peek.Manifest.Version); err != nil {
			return nil, err
		}
	}

	var doc document
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&doc); err != nil {
		return nil, &MalformedError{Path: path, Reasons: []string{err.Error()}}
	}

	return applyDefaults(&doc, path, pathHint)
}

func joinURL(base, tail string) string {
	return strings.TrimRight(base, "/") + "/" + tail
}

func applyDefaults(doc *document, path, pathHint string) (*Manifest, error) {
	var reasons []string

	remotes := map[string]Remote{}
	for _, r := range doc.Manifest.Remotes {
		remotes[r.Name] = r
	}
	if doc.Manifest.Defaults.Remote != "" {
		if _, ok := remotes[doc.Manifest.Defaults.Remote]; !ok {
			reasons = append(reasons, fmt.Sprintf("defaults.remote %q does not name a declared remote", doc.Manifest.Defaults.Remote))
		}
	}

	seenNames := map[string]bool{}
	seenPaths := map[string]bool{}

	for _, p := range doc.Manifest.Projects {
		if p.Name == "" {
			reasons = append(reasons, "a project is missing its name")
			continue
		}
		if p.Name == ReservedProjectName {
			reasons = append(reasons, fmt.Sprintf("project name %q is reserved for the manifest-project", ReservedProjectName))
		}
		if seenNames[p.Name] {
			reasons = append(reasons, fmt.Sprintf("duplicate project name %q", p.Name))
		}
		seenNames[p.Name] = true

		if p.Import != nil && len(p.Groups) > 0 {
			reasons = append(reasons, fmt.Sprintf("project %q must not set both groups and import", p.Name))
		}

		hasURL := p.URL != ""
		hasRemoteOrRepoPath := p.Remote != "" || p.RepoPath != ""
		if hasURL && hasRemoteOrRepoPath {
			reasons = append(reasons, fmt.Sprintf("project %q sets both url and remote/repo-path", p.Name))
		} else if !hasURL {
			remoteName := p.Remote
			if remoteName == "" {
				remoteName = doc.Manifest.Defaults.Remote
			}
			if remoteName == "" {
				reasons = append(reasons, fmt.Sprintf("project %q has neither url nor remote, and no default remote is set", p.Name))
			} else if remote, ok := remotes[remoteName]; !ok {
				reasons = append(reasons, fmt.Sprintf("project %q refers to undeclared remote %q", p.Name, remoteName))
			} else {
				tail := p.RepoPath
				if tail == "" {
					tail = p.Name
				}
				p.URL = joinURL(remote.URLBase, tail)
			}
		}

		if p.Revision == "" {
			p.Revision = doc.Manifest.Defaults.Revision
		}
		if p.Revision == "" {
			p.Revision = DefaultRevision
		}

		if p.Path == "" {
			p.Path = p.Name
		}
		if seenPaths[p.Path] {
			reasons = append(reasons, fmt.Sprintf("duplicate project path %q", p.Path))
		}
		seenPaths[p.Path] = true

		if p.CloneDepth < 0 {
			reasons = append(reasons, fmt.Sprintf("project %q has a negative clone-depth", p.Name))
		}

		for _, g := range p.Groups {
			if !ValidGroupToken(g) {
				reasons = append(reasons, fmt.Sprintf("project %q has an invalid group token %q", p.Name, g))
			}
		}
	}

	for _, g := range doc.Manifest.GroupFilter {
		if !validSignedToken(g) {
			reasons = append(reasons, fmt.Sprintf("invalid group-filter token %q", g))
		}
	}

	selfPath := pathHint
	if doc.Manifest.Self.Path != nil {
		if *doc.Manifest.Self.Path == "" {
			reasons = append(reasons, "self.path must not be empty")
		} else {
			selfPath = *doc.Manifest.Self.Path
		}
	}
	if selfPath != "" && seenPaths[selfPath] {
		reasons = append(reasons, fmt.Sprintf("the manifest-project path %q collides with a project path", selfPath))
	}
	if doc.Manifest.Self.Import != nil && (doc.Manifest.Self.Import.Kind == ImportBool) {
		reasons = append(reasons, "self.import may not be true or false")
	}

	if len(reasons) > 0 {
		return nil, &MalformedError{Path: path, Reasons: reasons}
	}

	version := doc.Manifest.Version
	m := &Manifest{
		SchemaVersion:     version,
		Remotes:           doc.Manifest.Remotes,
		Defaults:          doc.Manifest.Defaults,
		Projects:          doc.Manifest.Projects,
		SelfPath:          selfPath,
		SelfWestCommands:  doc.Manifest.Self.WestCommands,
		SelfImport:        doc.Manifest.Self.Import,
		GroupFilter:       doc.Manifest.GroupFilter,
		LegacyGroupFilter: version == LegacyGroupFilterVersion,
	}
	if m.LegacyGroupFilter {
		m.Diagnostics = append(m.Diagnostics, "schema version 0.9 uses legacy group-filter semantics: only the top-level group-filter applies, imported group-filters are ignored")
	}
	return m, nil
}

func validSignedToken(tok string) bool {
	if tok == "" {
		return false
	}
	if tok[0] == '+' || tok[0] == '-' {
		return ValidGroupToken(tok[1:])
	}
	return false
}
