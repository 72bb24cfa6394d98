// Copyright 2015 The Vanadium Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package xtest provides utilities for testing west functionality.
package xtest

import (
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/sirupsen/logrus"

	"go.west.dev/west"
	"go.west.dev/west/gitutil"
)

// NewX builds a throwaway *west.Env rooted at a fresh temp directory, with
// the workspace marker directory already created and logging silenced so
// test output doesn't get noisy.
func NewX(t *testing.T) *west.Env {
	t.Helper()
	root := t.TempDir()
	if err := os.Mkdir(west.MarkerPath(root), 0o700); err != nil {
		t.Fatalf("mkdir %s: %v", west.MarkerPath(root), err)
	}

	logger := logrus.New()
	logger.SetOutput(io.Discard)

	return &west.Env{
		Topdir: root,
		Cwd:    root,
		Logger: logger,
	}
}

// NewBareRemote initializes a bare git repository under a fresh temp
// directory and returns its path, suitable for use as a project's URL in
// tests that exercise the update engine or manifest resolution against a
// real git binary.
func NewBareRemote(t *testing.T) string {
	t.Helper()
	dir := filepath.Join(t.TempDir(), "remote.git")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatalf("mkdir %s: %v", dir, err)
	}
	g := gitutil.New(west.NewEnv(dir, logrus.ErrorLevel), dir)
	if err := g.Init(true /* bare */); err != nil {
		t.Fatalf("git init --bare: %v", err)
	}
	return dir
}
