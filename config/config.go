// Copyright 2015 The Vanadium Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package config

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/ini.v1"

	"go.west.dev/west"
)

// MalformedError reports that a configuration file could not be parsed.
type MalformedError struct {
	Path string
	Err  error
}

func (e *MalformedError) Error() string {
	return fmt.Sprintf("malformed configuration file %s: %v", e.Path, e.Err)
}

func (e *MalformedError) Unwrap() error { return e.Err }

// Entry is one section.key = value pair as returned by Items.
type Entry struct {
	Key   string
	Value string
}

// Store is a handle onto the three-level configuration. A zero-value
// topdir is valid as long as LOCAL scope is
// never queried or written (e.g. before a workspace exists).
type Store struct {
	Topdir string
}

// New returns a Store rooted at topdir (the workspace root, used to locate
// the LOCAL principal file unless WEST_CONFIG_LOCAL overrides it).
func New(topdir string) *Store {
	return &Store{Topdir: topdir}
}

func splitKey(key string) (section, name string, err error) {
	idx := strings.IndexByte(key, '.')
	if idx <= 0 || idx == len(key)-1 {
		return "", "", fmt.Errorf("config: key %q must have the form section.key", key)
	}
	return key[:idx], key[idx+1:], nil
}

func fileExists(path string) bool {
	fi, err := os.Stat(path)
	return err == nil && !fi.IsDir()
}

// loadLevel loads a single level's principal file plus its .d/*.conf
// drop-ins (lexicographic order, applied after the principal so they take
// precedence within the level), returning the merged file and the list of
// files that contributed to it.
func loadLevel(principal string) (*ini.File, []string, error) {
	cfg, err := ini.LoadSources(ini.LoadOptions{Loose: true, AllowNonUniqueSections: false}, principal)
	if err != nil {
		return nil, nil, &MalformedError{Path: principal, Err: err}
	}
	var paths []string
	if fileExists(principal) {
		paths = append(paths, principal)
	}

	dir := dropinDir(principal)
	entries, err := os.ReadDir(dir)
	if err != nil {
		return cfg, paths, nil
	}
	var names []string
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".conf") {
			continue
		}
		names = append(names, e.Name())
	}
	sort.Strings(names)
	for _, n := range names {
		p := filepath.Join(dir, n)
		if err := cfg.Append(p); err != nil {
			return nil, nil, &MalformedError{Path: p, Err: err}
		}
		paths = append(paths, p)
	}
	return cfg, paths, nil
}

// levelsFor returns the scopes to merge, in application order (weakest
// precedence first), for a query at scope.
func levelsFor(scope Scope) []Scope {
	switch scope {
	case ALL:
		return []Scope{SYSTEM, GLOBAL, LOCAL}
	default:
		return []Scope{scope}
	}
}

func (s *Store) merged(scope Scope) (*ini.File, []string, error) {
	merged := ini.Empty()
	var paths []string
	for _, lvl := range levelsFor(scope) {
		principal := principalPath(lvl, s.Topdir)
		cfg, lvlPaths, err := loadLevel(principal)
		if err != nil {
			return nil, nil, err
		}
		paths = append(paths, lvlPaths...)
		for _, sec := range cfg.Sections() {
			name := sec.Name()
			if name == ini.DefaultSection && len(sec.Keys()) == 0 {
				continue
			}
			dst := merged.Section(name)
			for _, key := range sec.Keys() {
				dst.Key(key.Name()).SetValue(key.Value())
			}
		}
	}
	return merged, paths, nil
}

// Get returns the value of section.key and whether it was present,
// honoring the precedence rules of scope.
func (s *Store) Get(key string, scope Scope) (string, bool, error) {
	section, name, err := splitKey(key)
	if err != nil {
		return "", false, err
	}
	cfg, _, err := s.merged(scope)
	if err != nil {
		return "", false, err
	}
	sec, err := cfg.GetSection(section)
	if err != nil || !sec.HasKey(name) {
		return "", false, nil
	}
	return sec.Key(name).String(), true, nil
}

// resolveWriteScope maps ALL to LOCAL: writes never target every level at
// once, and default unscoped writes land in the local configuration.
func resolveWriteScope(scope Scope) Scope {
	if scope == ALL {
		return LOCAL
	}
	return scope
}

// Set writes section.key = value to the principal file at scope, creating
// the file and any parent directories if necessary. Drop-ins are never
// written to.
func (s *Store) Set(key, value string, scope Scope) error {
	section, name, err := splitKey(key)
	if err != nil {
		return err
	}
	return s.writePrincipal(resolveWriteScope(scope), func(cfg *ini.File) error {
		cfg.Section(section).Key(name).SetValue(value)
		return nil
	})
}

// Append requires section.key to already be present at scope (the merged
// view, including drop-ins) and rewrites the principal file with the
// current value plus suffix appended. The empty string counts as present.
func (s *Store) Append(key, suffix string, scope Scope) error {
	section, name, err := splitKey(key)
	if err != nil {
		return err
	}
	writeScope := resolveWriteScope(scope)
	current, ok, err := s.Get(key, writeScope)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("config: %s is not set at %s scope", key, writeScope)
	}
	return s.writePrincipal(writeScope, func(cfg *ini.File) error {
		cfg.Section(section).Key(name).SetValue(current + suffix)
		return nil
	})
}

// Delete removes section.key from scope. If scope is ALL, it is removed
// from every level's principal file where it is set.
func (s *Store) Delete(key string, scope Scope) error {
	if scope == ALL {
		for _, lvl := range []Scope{SYSTEM, GLOBAL, LOCAL} {
			if err := s.deleteAt(key, lvl); err != nil {
				return err
			}
		}
		return nil
	}
	return s.deleteAt(key, scope)
}

// DeleteDefault implements the unscoped default for Delete: local if the
// key is present there, else global, else a no-op.
func (s *Store) DeleteDefault(key string) error {
	for _, lvl := range []Scope{LOCAL, GLOBAL} {
		if _, ok, err := s.Get(key, lvl); err != nil {
			return err
		} else if ok {
			return s.deleteAt(key, lvl)
		}
	}
	return nil
}

func (s *Store) deleteAt(key string, scope Scope) error {
	section, name, err := splitKey(key)
	if err != nil {
		return err
	}
	principal := principalPath(scope, s.Topdir)
	if !fileExists(principal) {
		return nil
	}
	cfg, err := ini.LoadSources(ini.LoadOptions{Loose: true}, principal)
	if err != nil {
		return &MalformedError{Path: principal, Err: err}
	}
	sec, err := cfg.GetSection(section)
	if err != nil || !sec.HasKey(name) {
		return nil
	}
	sec.DeleteKey(name)
	return safeSave(cfg, principal)
}

// writePrincipal loads just the principal file (not drop-ins, which are
// read-only) at scope, applies mutate, and saves it atomically.
func (s *Store) writePrincipal(scope Scope, mutate func(*ini.File) error) error {
	principal := principalPath(scope, s.Topdir)
	if err := os.MkdirAll(filepath.Dir(principal), 0o755); err != nil {
		if os.IsPermission(err) {
			return &west.PermissionError{Path: principal, Err: err}
		}
		return err
	}
	cfg, err := ini.LoadSources(ini.LoadOptions{Loose: true}, principal)
	if err != nil {
		return &MalformedError{Path: principal, Err: err}
	}
	if err := mutate(cfg); err != nil {
		return err
	}
	return safeSave(cfg, principal)
}

// safeSave writes cfg to a temp file in the same directory and renames it
// into place, so a crash never leaves a half-written config file behind.
func safeSave(cfg *ini.File, path string) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), ".west-config-*.tmp")
	if err != nil {
		if os.IsPermission(err) {
			return &west.PermissionError{Path: path, Err: err}
		}
		return err
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)

	if _, err := cfg.WriteTo(tmp); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Rename(tmpPath, path); err != nil {
		if os.IsPermission(err) {
			return &west.PermissionError{Path: path, Err: err}
		}
		return err
	}
	return nil
}

// Items enumerates every section.key = value pair visible at scope,
// merged across drop-ins and (for ALL) across levels, sorted by key for
// determinism.
func (s *Store) Items(scope Scope) ([]Entry, error) {
	cfg, _, err := s.merged(scope)
	if err != nil {
		return nil, err
	}
	var entries []Entry
	for _, sec := range cfg.Sections() {
		name := sec.Name()
		if name == ini.DefaultSection && len(sec.Keys()) == 0 {
			continue
		}
		for _, key := range sec.Keys() {
			k := name + "." + key.Name()
			entries = append(entries, Entry{Key: k, Value: key.Value()})
		}
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Key < entries[j].Key })
	return entries, nil
}

// Paths returns every file that contributed to scope's merged view, in
// application order (weakest precedence first).
func (s *Store) Paths(scope Scope) ([]string, error) {
	_, paths, err := s.merged(scope)
	return paths, err
}
