// Copyright 2015 The Vanadium Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package cmd implements west's command-line driver: a thin cobra-based
// shell over the config, manifest, resolve, groups and update packages.
// It stays deliberately small: enough subcommands to drive the engine end
// to end, with no custom help or usage formatting.
package cmd

import (
	"fmt"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"go.west.dev/west"
	westcolor "go.west.dev/west/color"
)

var (
	verbose   bool
	debug     bool
	colorMode string

	env *west.Env
	clr westcolor.Color
)

// Root returns the top-level "west" command.
func Root() *cobra.Command {
	root := &cobra.Command{
		Use:           "west",
		Short:         "west manages a workspace of git repositories pinned by a manifest",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			level := logrus.WarnLevel
			switch {
			case debug:
				level = logrus.DebugLevel
			case verbose:
				level = logrus.InfoLevel
			}

			cwd, err := os.Getwd()
			if err != nil {
				return err
			}
			env = west.NewEnv(cwd, level)

			if topdir, err := west.FindTopdir(cwd); err == nil {
				env.Topdir = topdir
			}

			clr = westcolor.New(westcolor.Mode(colorMode))
			return nil
		},
	}

	root.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable info-level logging")
	root.PersistentFlags().BoolVarP(&debug, "debug", "d", false, "enable debug-level logging")
	root.PersistentFlags().StringVar(&colorMode, "color", string(westcolor.Auto), "color output: always, never, or auto")

	root.AddCommand(
		newInitCommand(),
		newUpdateCommand(),
		newListCommand(),
		newManifestCommand(),
		newConfigCommand(),
		newVersionCommand(),
	)
	return root
}

// requireTopdir returns the located workspace root or a
// *west.WorkspaceNotFoundError-wrapping error if none was found.
func requireTopdir() (string, error) {
	if env.Topdir == "" {
		return "", fmt.Errorf("not inside a west workspace: %w", &west.WorkspaceNotFoundError{Start: env.Cwd})
	}
	return env.Topdir, nil
}
