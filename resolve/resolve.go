// Copyright 2015 The Vanadium Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package resolve turns a root manifest document plus its imports into a
// single deterministic, ordered projects list and composed group-filter.
// Sub-manifests are read from projects at their pinned revision (through a
// caller-supplied Importer) or from the manifest repository's own working
// tree (through a SelfImporter).
package resolve

import (
	"fmt"
	"path"
	"path/filepath"
	"sort"
	"strings"

	"github.com/jinzhu/copier"

	"go.west.dev/west"
	"go.west.dev/west/manifest"
)

// DefaultImportDepth bounds import recursion. An import loop shows up as an
// ImportDepthError rather than a stack overflow.
const DefaultImportDepth = 8

// Flags control how the resolver treats imports.
type Flags uint8

const (
	// IgnoreImports skips all imports entirely.
	IgnoreImports Flags = 1 << iota
	// IgnoreProjectImports processes self-imports but skips project
	// imports.
	IgnoreProjectImports
	// ForceProjectImports marks the pass as import-aware updating: the
	// caller's Importer is expected to fetch a project before reading from
	// it, so the resolver calls it even for projects that have never been
	// cloned.
	ForceProjectImports
)

func (f Flags) has(bit Flags) bool { return f&bit != 0 }

// ImportDepthError signals a likely import loop.
type ImportDepthError struct {
	Depth int
}

func (e *ImportDepthError) Error() string {
	return fmt.Sprintf("import depth exceeded %d; this usually indicates an import loop", e.Depth)
}

// ImportFailedError reports that a named sub-manifest could not be read:
// a missing file, a missing manifest-rev, or an uncloned project.
type ImportFailedError struct {
	Project string
	File    string
	Reason  string
}

func (e *ImportFailedError) Error() string {
	return fmt.Sprintf("failed to import %q from project %q: %s", e.File, e.Project, e.Reason)
}

// Importer reads one file from a project's tree at refs/heads/manifest-rev,
// or lists the files of a directory there. The update engine supplies an
// implementation backed by gitutil; tests can supply an in-memory one.
type Importer interface {
	ReadFile(project *manifest.Project, file string) ([]byte, error)
	// ListDir returns the file names directly inside dir in project's tree
	// at its pinned revision.
	ListDir(project *manifest.Project, dir string) ([]string, error)
}

// SelfImporter reads files from the manifest repository's own working
// tree, used for self-imports.
type SelfImporter interface {
	ReadFile(file string) ([]byte, error)
	ListDir(dir string) ([]string, error)
}

// Result is the resolver's output: the final ordered projects list
// (manifest-project first) and the final composed group-filter.
type Result struct {
	Projects    []*manifest.Project
	GroupFilter []string
	Diagnostics []string
}

// Options configures one resolution pass.
type Options struct {
	Topdir      string
	ImportDepth int // 0 means DefaultImportDepth
	Flags       Flags
	Self        SelfImporter
	Projects    Importer
}

type resolver struct {
	opts        Options
	maxDepth    int
	seenNames   map[string]bool
	projects    []*manifest.Project
	groupFilter []string
	diagnostics []string
	// legacyFilter is set when the root manifest declares schema 0.9:
	// only the root's own group-filter contributes, imported group-filters
	// are discarded with a deprecation diagnostic.
	legacyFilter bool
}

// Resolve resolves root (the top-level manifest document, already parsed
// by package manifest) into a Result.
func Resolve(root *manifest.Manifest, opts Options) (*Result, error) {
	if opts.ImportDepth <= 0 {
		opts.ImportDepth = DefaultImportDepth
	}
	r := &resolver{
		opts:         opts,
		maxDepth:     opts.ImportDepth,
		seenNames:    map[string]bool{},
		legacyFilter: root.LegacyGroupFilter,
	}

	self := root.Self()
	r.projects = append(r.projects, self)
	r.seenNames[self.Name] = true
	r.diagnostics = append(r.diagnostics, root.Diagnostics...)

	if err := r.resolveDocument(root, "", nil, 0, true); err != nil {
		return nil, err
	}

	return &Result{
		Projects:    r.projects,
		GroupFilter: r.groupFilter,
		Diagnostics: r.diagnostics,
	}, nil
}

// frame is one import-resolution recursion frame's filtering/path state.
// Filters and path-prefixes apply transitively to every project emitted
// through the frame, however deep the import that contributed it.
type frame struct {
	nameAllow  []string
	nameBlock  []string
	pathAllow  []string
	pathBlock  []string
	pathPrefix string
}

func (f *frame) compose(child frame) frame {
	return frame{
		nameAllow:  append(append([]string{}, f.nameAllow...), child.nameAllow...),
		nameBlock:  append(append([]string{}, f.nameBlock...), child.nameBlock...),
		pathAllow:  append(append([]string{}, f.pathAllow...), child.pathAllow...),
		pathBlock:  append(append([]string{}, f.pathBlock...), child.pathBlock...),
		pathPrefix: path.Join(f.pathPrefix, child.pathPrefix),
	}
}

// passes applies the frame's allow/block lists to p. Name filters take
// precedence over path filters when both exist.
func (f *frame) passes(p *manifest.Project) bool {
	if len(f.nameAllow) > 0 {
		if !matchAny(f.nameAllow, p.Name) {
			return false
		}
	} else if len(f.pathAllow) > 0 {
		if !matchAny(f.pathAllow, p.Path) {
			return false
		}
	}
	if matchAny(f.nameBlock, p.Name) {
		return false
	}
	if matchAny(f.pathBlock, p.Path) {
		return false
	}
	return true
}

func matchAny(patterns []string, s string) bool {
	for _, pat := range patterns {
		if ok, _ := filepath.Match(pat, s); ok {
			return true
		}
	}
	return false
}

// resolveDocument walks one document: self-imports first in declared
// order, then the document's own project list in declared order, following
// each project's import directive depth-first as it goes. The document's
// own group-filter is recorded last, after every filter its imports
// contributed, so that importing documents override imported ones.
func (r *resolver) resolveDocument(doc *manifest.Manifest, docPath string, f *frame, depth int, isRoot bool) error {
	if depth > r.maxDepth {
		return &ImportDepthError{Depth: r.maxDepth}
	}
	if f == nil {
		f = &frame{}
	}

	if !r.opts.Flags.has(IgnoreImports) && doc.SelfImport != nil {
		if err := r.resolveImportSpec(doc.SelfImport, docPath, f, depth, true, nil); err != nil {
			return err
		}
	}

	for _, p := range doc.Projects {
		if !r.seenNames[p.Name] && f.passes(p) {
			cp := clonePrefixed(p, f.pathPrefix)
			cp.ImportedBy = docPath
			r.seenNames[p.Name] = true
			r.projects = append(r.projects, cp)
		}

		if p.Import == nil {
			continue
		}
		if r.opts.Flags.has(IgnoreImports) || r.opts.Flags.has(IgnoreProjectImports) {
			continue
		}
		// A duplicate project (same name) is not re-emitted, but its own
		// import directive is still resolved: the path-prefix/filter
		// effects of the frame that declared it apply to whatever
		// projects its sub-imports contribute.
		if err := r.resolveImportSpec(p.Import, p.Name, f, depth, false, p); err != nil {
			return err
		}
	}

	r.appendGroupFilter(doc, isRoot)
	return nil
}

func (r *resolver) appendGroupFilter(doc *manifest.Manifest, isRoot bool) {
	if r.legacyFilter && !isRoot {
		if len(doc.GroupFilter) > 0 {
			r.diagnostics = append(r.diagnostics, "ignoring imported group-filter under legacy schema 0.9 semantics")
		}
		return
	}
	r.groupFilter = append(r.groupFilter, doc.GroupFilter...)
}

// clonePrefixed deep-copies p and prepends prefix to its path. The deep
// copy matters: sibling import frames must never alias the same userdata
// or submodules payload through a shared map.
func clonePrefixed(p *manifest.Project, prefix string) *manifest.Project {
	cp := &manifest.Project{}
	if err := copier.CopyWithOption(cp, p, copier.Option{DeepCopy: true}); err != nil {
		// CopyWithOption only fails on incompatible types, which cannot
		// happen copying *Project to *Project; fall back to a shallow
		// copy so resolution still proceeds rather than panicking.
		shallow := *p
		cp = &shallow
	}
	if prefix != "" {
		cp.Path = path.Join(prefix, cp.Path)
	}
	return cp
}

// resolveImportSpec expands one import directive into zero or more
// recursive resolveDocument calls. project is nil for a self-import.
func (r *resolver) resolveImportSpec(spec *manifest.ImportSpec, owner string, f *frame, depth int, isSelf bool, project *manifest.Project) error {
	switch spec.Kind {
	case manifest.ImportBool:
		if !spec.Bool {
			return nil
		}
		return r.importFile(west.ManifestFileName, owner, f, depth, isSelf, project)
	case manifest.ImportPath:
		return r.importPathOrDir(spec.Path, owner, f, depth, isSelf, project)
	case manifest.ImportFiles:
		for _, name := range spec.Files {
			if err := r.importFile(name, owner, f, depth, isSelf, project); err != nil {
				return err
			}
		}
		return nil
	case manifest.ImportMapKind:
		child := frame{
			nameAllow:  spec.Map.NameAllowlist,
			nameBlock:  spec.Map.NameBlocklist,
			pathAllow:  spec.Map.PathAllowlist,
			pathBlock:  spec.Map.PathBlocklist,
			pathPrefix: spec.Map.PathPrefix,
		}
		composed := f.compose(child)
		if err := validatePrefix(&composed, r.opts.Topdir); err != nil {
			return err
		}
		return r.importFileWithFrame(spec.Map.File, owner, &composed, depth, isSelf, project)
	default:
		return nil
	}
}

// validatePrefix rejects a composed path-prefix whose resulting absolute
// path escapes or equals the workspace topdir.
func validatePrefix(f *frame, topdir string) error {
	if f.pathPrefix == "" || topdir == "" {
		return nil
	}
	clean := filepath.Clean(f.pathPrefix)
	joined := filepath.Join(topdir, clean)
	rel, err := filepath.Rel(topdir, joined)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) || filepath.IsAbs(clean) {
		return &manifest.MalformedError{Reasons: []string{fmt.Sprintf("path-prefix %q escapes the workspace", f.pathPrefix)}}
	}
	if joined == topdir {
		return &manifest.MalformedError{Reasons: []string{fmt.Sprintf("path-prefix %q resolves to the workspace root", f.pathPrefix)}}
	}
	return nil
}

// importPathOrDir handles the string shape of an import directive, which
// may name either a file or a directory. The two are lexically
// indistinguishable in YAML, so it probes: if the name lists as a
// directory in the relevant tree, every *.yml inside is imported in
// lexicographic order; otherwise it is treated as a file.
func (r *resolver) importPathOrDir(name, owner string, f *frame, depth int, isSelf bool, project *manifest.Project) error {
	names, err := r.listDir(name, isSelf, project)
	if err == nil && len(names) > 0 {
		sort.Strings(names)
		for _, n := range names {
			if !strings.HasSuffix(n, ".yml") {
				continue
			}
			if err := r.importFileWithFrame(path.Join(name, n), owner, f, depth, isSelf, project); err != nil {
				return err
			}
		}
		return nil
	}
	return r.importFileWithFrame(name, owner, f, depth, isSelf, project)
}

func (r *resolver) importFile(name, owner string, f *frame, depth int, isSelf bool, project *manifest.Project) error {
	return r.importFileWithFrame(name, owner, f, depth, isSelf, project)
}

func (r *resolver) importFileWithFrame(file, owner string, f *frame, depth int, isSelf bool, project *manifest.Project) error {
	data, err := r.readFile(file, isSelf, project)
	if err != nil {
		if isSelf {
			return &manifest.MalformedError{Reasons: []string{fmt.Sprintf("self-import %q: %v", file, err)}}
		}
		return &ImportFailedError{Project: owner, File: file, Reason: err.Error()}
	}

	doc, err := manifest.Load(manifest.Source{Data: data})
	if err != nil {
		return err
	}
	return r.resolveDocument(doc, owner, f, depth+1, false)
}

func (r *resolver) readFile(file string, isSelf bool, project *manifest.Project) ([]byte, error) {
	if isSelf {
		if r.opts.Self == nil {
			return nil, fmt.Errorf("no self-importer configured")
		}
		return r.opts.Self.ReadFile(file)
	}
	if r.opts.Projects == nil {
		return nil, fmt.Errorf("no project importer configured")
	}
	return r.opts.Projects.ReadFile(project, file)
}

func (r *resolver) listDir(dir string, isSelf bool, project *manifest.Project) ([]string, error) {
	if isSelf {
		if r.opts.Self == nil {
			return nil, fmt.Errorf("no self-importer configured")
		}
		return r.opts.Self.ListDir(dir)
	}
	if r.opts.Projects == nil {
		return nil, fmt.Errorf("no project importer configured")
	}
	return r.opts.Projects.ListDir(project, dir)
}
