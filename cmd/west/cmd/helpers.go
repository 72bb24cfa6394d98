// Copyright 2015 The Vanadium Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package cmd

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"go.west.dev/west"
	"go.west.dev/west/config"
	"go.west.dev/west/gitutil"
	"go.west.dev/west/manifest"
	"go.west.dev/west/resolve"
)

// configStore returns the layered configuration store rooted at the
// current workspace (LOCAL scope is unusable before init).
func configStore() *config.Store {
	return config.New(env.Topdir)
}

// manifestRepoDir returns the workspace-relative path of the manifest
// repository, as recorded by init under manifest.path.
func manifestRepoDir(store *config.Store) (string, error) {
	p, ok, err := store.Get("manifest.path", config.ALL)
	if err != nil {
		return "", err
	}
	if !ok || p == "" {
		return "", fmt.Errorf("manifest.path is not configured; is this workspace initialized?")
	}
	return p, nil
}

// manifestFileName returns the manifest file name inside the manifest
// repository, defaulting to west.yml.
func manifestFileName(store *config.Store) (string, error) {
	f, ok, err := store.Get("manifest.file", config.ALL)
	if err != nil {
		return "", err
	}
	if !ok || f == "" {
		return west.ManifestFileName, nil
	}
	return f, nil
}

// loadRootManifest reads and parses the workspace's top-level manifest
// document, without following imports.
func loadRootManifest(topdir string, store *config.Store) (*manifest.Manifest, string, error) {
	repo, err := manifestRepoDir(store)
	if err != nil {
		return nil, "", err
	}
	file, err := manifestFileName(store)
	if err != nil {
		return nil, "", err
	}
	m, err := manifest.Load(manifest.Source{
		File:     filepath.Join(topdir, repo, file),
		PathHint: repo,
	})
	if err != nil {
		return nil, "", err
	}
	return m, repo, nil
}

// workingTreeImporter reads self-imports from the manifest repository's
// working tree.
type workingTreeImporter struct {
	dir string
}

func (w workingTreeImporter) ReadFile(file string) ([]byte, error) {
	return os.ReadFile(filepath.Join(w.dir, file))
}

func (w workingTreeImporter) ListDir(dir string) ([]string, error) {
	entries, err := os.ReadDir(filepath.Join(w.dir, dir))
	if err != nil {
		return nil, err
	}
	var names []string
	for _, e := range entries {
		if !e.IsDir() {
			names = append(names, e.Name())
		}
	}
	return names, nil
}

// clonedTreeImporter reads project imports from each project's local
// clone at manifest-rev, without fetching anything.
type clonedTreeImporter struct {
	env    *west.Env
	topdir string
}

func (c clonedTreeImporter) ReadFile(p *manifest.Project, file string) ([]byte, error) {
	g := gitutil.New(c.env, p.AbsPath(c.topdir))
	return g.ReadBlobAt(gitutil.ManifestRevRef, file)
}

func (c clonedTreeImporter) ListDir(p *manifest.Project, dir string) ([]string, error) {
	g := gitutil.New(c.env, p.AbsPath(c.topdir))
	return g.ListTreeAt(gitutil.ManifestRevRef, dir)
}

// resolveFromClones resolves the workspace manifest, reading project
// sub-manifests from existing local clones only.
func resolveFromClones(topdir string, store *config.Store) (*manifest.Manifest, *resolve.Result, error) {
	root, repo, err := loadRootManifest(topdir, store)
	if err != nil {
		return nil, nil, err
	}
	rr, err := resolve.Resolve(root, resolve.Options{
		Topdir:   topdir,
		Self:     workingTreeImporter{dir: filepath.Join(topdir, repo)},
		Projects: clonedTreeImporter{env: env, topdir: topdir},
	})
	if err != nil {
		return nil, nil, err
	}
	return root, rr, nil
}

// configGroupFilter reads the configuration-level group-filter
// (manifest.group-filter, a comma-separated list of signed tokens).
func configGroupFilter(store *config.Store) ([]string, error) {
	v, ok, err := store.Get("manifest.group-filter", config.ALL)
	if err != nil || !ok {
		return nil, err
	}
	var tokens []string
	for _, tok := range strings.Split(v, ",") {
		tok = strings.TrimSpace(tok)
		if tok != "" {
			tokens = append(tokens, tok)
		}
	}
	return tokens, nil
}
