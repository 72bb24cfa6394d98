// Copyright 2015 The Vanadium Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package west

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/sirupsen/logrus"
)

const (
	// MarkerDir is the directory whose presence in some ancestor of the
	// current directory identifies the root of a workspace.
	MarkerDir = ".west"

	// ManifestFileName is the name of the manifest file expected at the
	// manifest repository's root.
	ManifestFileName = "west.yml"

	// ZephyrBaseEnv names the environment variable consulted as a one-shot
	// fallback when no marker directory is found by walking upward.
	ZephyrBaseEnv = "ZEPHYR_BASE"
)

// Env is the ambient execution environment threaded through every west
// component: the resolved workspace root (if any), a structured logger, and
// the current working directory the process started in. It deliberately
// carries no mutable global state; Topdir, Config and Manifest values are
// passed explicitly between components.
type Env struct {
	// Topdir is the absolute workspace root, or "" if one hasn't been
	// located yet (e.g. during `west init`).
	Topdir string
	// Cwd is the directory the process was invoked from.
	Cwd    string
	Logger *logrus.Logger
}

// NewEnv builds an Env rooted at cwd with a logger at the given level.
func NewEnv(cwd string, level logrus.Level) *Env {
	logger := logrus.New()
	logger.SetLevel(level)
	return &Env{Cwd: cwd, Logger: logger}
}

// Fields is a thin convenience wrapper building the logrus.Fields west
// components attach to log lines (project name, path, operation kind).
func Fields(pairs ...interface{}) logrus.Fields {
	f := logrus.Fields{}
	for i := 0; i+1 < len(pairs); i += 2 {
		key, ok := pairs[i].(string)
		if !ok {
			continue
		}
		f[key] = pairs[i+1]
	}
	return f
}

// FindTopdir walks upward from start looking for a directory containing a
// MarkerDir subdirectory, returning the first ancestor (including start)
// where it is found. If none is found, the search restarts once from the
// directory named by ZEPHYR_BASE, unless start was already inside that
// directory (the fallback would then just repeat the failed search).
func FindTopdir(start string) (string, error) {
	abs, err := filepath.Abs(start)
	if err != nil {
		return "", err
	}
	abs = filepath.Clean(abs)

	for _, dir := range ancestors(abs) {
		if hasMarker(dir) {
			return dir, nil
		}
	}

	if zb := os.Getenv(ZephyrBaseEnv); zb != "" {
		if zb, err := filepath.Abs(zb); err == nil {
			zb = filepath.Clean(zb)
			if !within(abs, zb) {
				for _, dir := range ancestors(zb) {
					if hasMarker(dir) {
						return dir, nil
					}
				}
			}
		}
	}

	return "", &WorkspaceNotFoundError{Start: abs}
}

func hasMarker(dir string) bool {
	fi, err := os.Stat(filepath.Join(dir, MarkerDir))
	return err == nil && fi.IsDir()
}

// within reports whether path is dir or a descendant of dir.
func within(path, dir string) bool {
	rel, err := filepath.Rel(dir, path)
	if err != nil {
		return false
	}
	return rel == "." || (!strings.HasPrefix(rel, "..") && rel != "..")
}

// ancestors returns path and every ancestor directory up to the
// filesystem root, nearest first.
func ancestors(path string) []string {
	paths := []string{path}
	for {
		parent := filepath.Dir(path)
		if parent == path {
			break
		}
		paths = append(paths, parent)
		path = parent
	}
	return paths
}

// MarkerPath returns <topdir>/.west.
func MarkerPath(topdir string) string {
	return filepath.Join(topdir, MarkerDir)
}
