// Copyright 2015 The Vanadium Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package manifest

import (
	"fmt"

	"gopkg.in/yaml.v3"
)

// ImportKind discriminates the five shapes an import directive may take.
// The shapes share no useful structure at the YAML level, so each gets
// its own tag and shape-specific data rather than a forced unification.
type ImportKind int

const (
	ImportNone ImportKind = iota
	ImportBool
	// ImportPath covers both a bare filename and a directory name: the
	// two are lexically indistinguishable in YAML and are disambiguated
	// by the resolver, which stats the path in the relevant tree.
	ImportPath
	ImportFiles
	ImportMapKind
)

// ImportMap is the mapping shape of an import directive.
type ImportMap struct {
	File          string
	NameAllowlist []string
	NameBlocklist []string
	PathAllowlist []string
	PathBlocklist []string
	PathPrefix    string
}

// ImportSpec is the parsed, normalized form of a manifest "import" value.
type ImportSpec struct {
	Kind  ImportKind
	Bool  bool
	Path  string
	Files []string
	Map   ImportMap
}

// importMapYAML mirrors ImportMap's YAML shape, including the legacy
// legacy whitelist/blacklist key synonyms older manifests still use.
type importMapYAML struct {
	File          string   `yaml:"file"`
	NameAllowlist []string `yaml:"name-allowlist"`
	NameBlocklist []string `yaml:"name-blocklist"`
	PathAllowlist []string `yaml:"path-allowlist"`
	PathBlocklist []string `yaml:"path-blocklist"`
	PathPrefix    string   `yaml:"path-prefix"`

	NameWhitelist []string `yaml:"name-whitelist"`
	NameBlacklist []string `yaml:"name-blacklist"`
	PathWhitelist []string `yaml:"path-whitelist"`
	PathBlacklist []string `yaml:"path-blacklist"`
}

func firstNonEmpty(primary, legacy []string) []string {
	if len(primary) > 0 {
		return primary
	}
	return legacy
}

func (m importMapYAML) normalize() ImportMap {
	return ImportMap{
		File:          m.File,
		NameAllowlist: firstNonEmpty(m.NameAllowlist, m.NameWhitelist),
		NameBlocklist: firstNonEmpty(m.NameBlocklist, m.NameBlacklist),
		PathAllowlist: firstNonEmpty(m.PathAllowlist, m.PathWhitelist),
		PathBlocklist: firstNonEmpty(m.PathBlocklist, m.PathBlacklist),
		PathPrefix:    m.PathPrefix,
	}
}

// UnmarshalYAML implements the five-shape decode: true/false, a filename,
// a list of filenames, a directory name, or a mapping.
func (i *ImportSpec) UnmarshalYAML(node *yaml.Node) error {
	switch node.Kind {
	case yaml.ScalarNode:
		if node.Tag == "!!bool" {
			var b bool
			if err := node.Decode(&b); err != nil {
				return err
			}
			i.Kind = ImportBool
			i.Bool = b
			return nil
		}
		var s string
		if err := node.Decode(&s); err != nil {
			return err
		}
		i.Kind = ImportPath
		i.Path = s
		return nil
	case yaml.SequenceNode:
		var list []string
		if err := node.Decode(&list); err != nil {
			return err
		}
		i.Kind = ImportFiles
		i.Files = list
		return nil
	case yaml.MappingNode:
		var m importMapYAML
		if err := node.Decode(&m); err != nil {
			return err
		}
		i.Kind = ImportMapKind
		i.Map = m.normalize()
		return nil
	default:
		return fmt.Errorf("manifest: import value must be a bool, string, list of strings, or mapping")
	}
}

// MarshalYAML renders the ImportSpec back to its original shape, for
// AsYAML round-tripping.
func (i *ImportSpec) MarshalYAML() (interface{}, error) {
	switch i.Kind {
	case ImportBool:
		return i.Bool, nil
	case ImportPath:
		return i.Path, nil
	case ImportFiles:
		return i.Files, nil
	case ImportMapKind:
		out := map[string]interface{}{}
		if i.Map.File != "" {
			out["file"] = i.Map.File
		}
		if len(i.Map.NameAllowlist) > 0 {
			out["name-allowlist"] = i.Map.NameAllowlist
		}
		if len(i.Map.NameBlocklist) > 0 {
			out["name-blocklist"] = i.Map.NameBlocklist
		}
		if len(i.Map.PathAllowlist) > 0 {
			out["path-allowlist"] = i.Map.PathAllowlist
		}
		if len(i.Map.PathBlocklist) > 0 {
			out["path-blocklist"] = i.Map.PathBlocklist
		}
		if i.Map.PathPrefix != "" {
			out["path-prefix"] = i.Map.PathPrefix
		}
		return out, nil
	default:
		return false, nil
	}
}
