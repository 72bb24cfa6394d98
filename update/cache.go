// Copyright 2015 The Vanadium Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package update

import (
	"crypto/sha256"
	"encoding/hex"
	"os"
	"path/filepath"

	"go.west.dev/west/manifest"
)

// Caches configures the optional seed-clone sources consulted before a
// project's first clone. Any of the three may be the zero value to
// disable it.
type Caches struct {
	NameCache string
	PathCache string
	AutoCache string
}

// seedURL returns the file:// URL to clone from for p, preferring
// name-cache over path-cache over auto-cache, and "" if none has a seed.
// It does not itself populate the caches; RefreshAutoCache does that.
func (c Caches) seedURL(p *manifest.Project) string {
	if c.NameCache != "" {
		dir := filepath.Join(c.NameCache, p.Name)
		if isGitDir(dir) {
			return "file://" + dir
		}
	}
	if c.PathCache != "" {
		dir := filepath.Join(c.PathCache, filepath.FromSlash(p.Path))
		if isGitDir(dir) {
			return "file://" + dir
		}
	}
	if c.AutoCache != "" {
		dir := c.autoCacheDir(p)
		if isGitDir(dir) {
			return "file://" + dir
		}
	}
	return ""
}

func isGitDir(dir string) bool {
	fi, err := os.Stat(dir)
	return err == nil && fi.IsDir()
}

// autoCacheDir returns the bare-mirror directory west itself would
// maintain for p.URL, keyed by a hash of the URL so unrelated projects
// sharing a name never collide.
func (c Caches) autoCacheDir(p *manifest.Project) string {
	sum := sha256.Sum256([]byte(p.URL))
	return filepath.Join(c.AutoCache, hex.EncodeToString(sum[:])+".git")
}

// autoCacheInfoPath returns the sidecar file west writes next to an
// auto-cache mirror recording the URL it mirrors.
func (c Caches) autoCacheInfoPath(p *manifest.Project) string {
	sum := sha256.Sum256([]byte(p.URL))
	return filepath.Join(c.AutoCache, hex.EncodeToString(sum[:])+".info")
}

// RefreshAutoCache ensures the auto-cache mirror for p exists and is
// up to date, fetching it from p.URL with ensureMirror (normally a thin wrapper
// around a gitutil.Git rooted at the mirror directory). It is a no-op if
// AutoCache is unset.
func (c Caches) RefreshAutoCache(p *manifest.Project, ensureMirror func(dir, url string) error) error {
	if c.AutoCache == "" {
		return nil
	}
	dir := c.autoCacheDir(p)
	if err := ensureMirror(dir, p.URL); err != nil {
		return err
	}
	return os.WriteFile(c.autoCacheInfoPath(p), []byte(p.URL+"\n"), 0o644)
}
