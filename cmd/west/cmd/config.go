// Copyright 2015 The Vanadium Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"go.west.dev/west/config"
)

func newConfigCommand() *cobra.Command {
	var (
		system bool
		global bool
		local  bool
		list   bool
		delete bool
		appnd  bool
	)

	c := &cobra.Command{
		Use:   "config [key [value]]",
		Short: "get, set, or list configuration values",
		Args:  cobra.MaximumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			scope, err := pickScope(system, global, local)
			if err != nil {
				return err
			}
			store := configStore()

			switch {
			case list:
				entries, err := store.Items(scope)
				if err != nil {
					return err
				}
				for _, e := range entries {
					fmt.Fprintf(os.Stdout, "%s=%s\n", e.Key, e.Value)
				}
				return nil
			case len(args) == 0:
				return fmt.Errorf("config requires a key (or --list)")
			case delete:
				if scope == config.ALL && !system && !global && !local {
					return store.DeleteDefault(args[0])
				}
				return store.Delete(args[0], scope)
			case len(args) == 1:
				v, ok, err := store.Get(args[0], scope)
				if err != nil {
					return err
				}
				if !ok {
					return fmt.Errorf("%s is not set", args[0])
				}
				fmt.Fprintln(os.Stdout, v)
				return nil
			case appnd:
				return store.Append(args[0], args[1], scope)
			default:
				return store.Set(args[0], args[1], scope)
			}
		},
	}

	c.Flags().BoolVar(&system, "system", false, "operate on the system-level configuration")
	c.Flags().BoolVar(&global, "global", false, "operate on the global (per-user) configuration")
	c.Flags().BoolVar(&local, "local", false, "operate on the workspace-local configuration")
	c.Flags().BoolVarP(&list, "list", "l", false, "list all configuration values")
	c.Flags().BoolVarP(&delete, "delete", "d", false, "delete the key")
	c.Flags().BoolVarP(&appnd, "append", "a", false, "append the value to the key's current value")
	return c
}

func pickScope(system, global, local bool) (config.Scope, error) {
	n := 0
	scope := config.ALL
	if system {
		n++
		scope = config.SYSTEM
	}
	if global {
		n++
		scope = config.GLOBAL
	}
	if local {
		n++
		scope = config.LOCAL
	}
	if n > 1 {
		return config.ALL, fmt.Errorf("at most one of --system, --global, --local may be given")
	}
	return scope, nil
}
