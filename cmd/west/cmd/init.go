// Copyright 2015 The Vanadium Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package cmd

import (
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"go.west.dev/west"
	"go.west.dev/west/config"
	"go.west.dev/west/gitutil"
	"go.west.dev/west/manifest"
)

func newInitCommand() *cobra.Command {
	var (
		manifestURL string
		manifestRev string
	)

	c := &cobra.Command{
		Use:   "init [directory]",
		Short: "create a workspace by cloning its manifest repository",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dir := "."
			if len(args) == 1 {
				dir = args[0]
			}
			topdir, err := filepath.Abs(dir)
			if err != nil {
				return err
			}
			if manifestURL == "" {
				return fmt.Errorf("init requires --manifest-url")
			}
			return runInit(topdir, manifestURL, manifestRev)
		},
	}

	c.Flags().StringVarP(&manifestURL, "manifest-url", "m", "", "manifest repository URL")
	c.Flags().StringVar(&manifestRev, "manifest-rev", "HEAD", "manifest revision to check out")
	return c
}

// runInit creates <topdir>/.west, clones the manifest repository into a
// temporary directory inside it, determines the repository's final path
// from self.path (falling back to the URL's base name), moves it into
// place, and records manifest.path in the local configuration. The
// temporary directory never survives: it is either renamed into place or
// removed.
func runInit(topdir, url, rev string) error {
	marker := west.MarkerPath(topdir)
	if _, err := os.Stat(marker); err == nil {
		return fmt.Errorf("%s already exists; the directory is already a workspace", marker)
	}
	if err := os.MkdirAll(marker, 0o755); err != nil {
		return err
	}

	tmp, err := os.MkdirTemp(marker, "manifest-tmp-")
	if err != nil {
		return err
	}
	defer os.RemoveAll(tmp)

	g := gitutil.New(env, tmp)
	if err := g.Init(false); err != nil {
		return err
	}
	if err := g.RemoteAdd("origin", url); err != nil {
		return err
	}
	if err := g.Fetch(url, gitutil.FetchOptions{Refspecs: []string{rev}, Tags: true, Force: true}); err != nil {
		return err
	}
	if err := g.CheckoutDetach("FETCH_HEAD"); err != nil {
		return err
	}

	m, err := manifest.Load(manifest.Source{File: filepath.Join(tmp, west.ManifestFileName)})
	if err != nil {
		return err
	}
	repoPath := m.SelfPath
	if repoPath == "" {
		repoPath = strings.TrimSuffix(path.Base(url), ".git")
	}

	dest := filepath.Join(topdir, filepath.FromSlash(repoPath))
	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return err
	}
	if err := os.Rename(tmp, dest); err != nil {
		return err
	}

	store := config.New(topdir)
	if err := store.Set("manifest.path", repoPath, config.LOCAL); err != nil {
		return err
	}
	if err := store.Set("manifest.file", west.ManifestFileName, config.LOCAL); err != nil {
		return err
	}

	fmt.Fprintf(os.Stdout, "%s\n", clr.Green("initialized workspace at %s (manifest repository at %s)", topdir, repoPath))
	return nil
}
