// Copyright 2015 The Vanadium Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package cmd

import (
	"fmt"
	"os"
	"runtime"

	"github.com/spf13/cobra"

	"go.west.dev/west/groups"
	"go.west.dev/west/manifest"
	"go.west.dev/west/update"
)

func newListCommand() *cobra.Command {
	var (
		format   string
		all      bool
		branches bool
		extras   groupFilterFlag
	)

	c := &cobra.Command{
		Use:   "list",
		Short: "print the resolved projects list",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			topdir, err := requireTopdir()
			if err != nil {
				return err
			}
			store := configStore()
			_, rr, err := resolveFromClones(topdir, store)
			if err != nil {
				return err
			}

			cfgFilter, err := configGroupFilter(store)
			if err != nil {
				return err
			}
			filter := groups.Compose(rr.GroupFilter, cfgFilter)

			var selected []*manifest.Project
			for _, p := range rr.Projects {
				if !all && p.Name != manifest.ReservedProjectName && !groups.IsActive(p, filter, groups.Filter(extras)) {
					continue
				}
				selected = append(selected, p)
			}

			var infos []update.BranchInfo
			if branches {
				infos = update.New(env).Inspect(selected, topdir, runtime.NumCPU())
			}

			for i, p := range selected {
				line := p.Format(format)
				if branches {
					info := infos[i]
					switch {
					case !info.Cloned:
						line += " " + clr.Yellow("(not cloned)")
					case info.Branch == "HEAD":
						line += " " + clr.Default("(detached)")
					default:
						line += " " + clr.Cyan("(%s)", info.Branch)
					}
				}
				fmt.Fprintln(os.Stdout, line)
			}
			return nil
		},
	}

	c.Flags().StringVarP(&format, "format", "f", "{name} {path} {revision}", "per-project output template")
	c.Flags().BoolVar(&all, "all", false, "include projects deactivated by the group filter")
	c.Flags().BoolVar(&branches, "branches", false, "show each project's checked-out branch")
	c.Flags().Var(&extras, "group-filter", "additional signed group tokens, e.g. +optional,-docs")
	return c
}
