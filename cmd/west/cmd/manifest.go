// Copyright 2015 The Vanadium Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"go.west.dev/west/gitutil"
	"go.west.dev/west/manifest"
)

func newManifestCommand() *cobra.Command {
	var (
		freeze   bool
		validate bool
		outPath  string
	)

	c := &cobra.Command{
		Use:   "manifest",
		Short: "print or validate the resolved manifest",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			topdir, err := requireTopdir()
			if err != nil {
				return err
			}
			store := configStore()

			if validate {
				if _, _, err := resolveFromClones(topdir, store); err != nil {
					return err
				}
				fmt.Fprintln(os.Stdout, clr.Green("manifest is valid"))
				return nil
			}

			root, rr, err := resolveFromClones(topdir, store)
			if err != nil {
				return err
			}
			resolved := manifest.NewResolved(root, rr.Projects, rr.GroupFilter)

			var out string
			if freeze {
				out, err = resolved.AsFrozenYAML(func(p *manifest.Project) (string, error) {
					g := gitutil.New(env, p.AbsPath(topdir))
					return g.RevParse(gitutil.ManifestRevRef)
				})
			} else {
				out, err = resolved.AsYAML()
			}
			if err != nil {
				return err
			}

			if outPath != "" {
				return os.WriteFile(outPath, []byte(out), 0o644)
			}
			fmt.Fprint(os.Stdout, out)
			return nil
		},
	}

	c.Flags().BoolVar(&freeze, "freeze", false, "pin every project's revision to its manifest-rev SHA")
	c.Flags().BoolVar(&validate, "validate", false, "only check that the manifest resolves")
	c.Flags().StringVarP(&outPath, "out", "o", "", "write the output to a file instead of stdout")
	return c
}
