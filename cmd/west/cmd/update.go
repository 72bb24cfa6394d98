// Copyright 2015 The Vanadium Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package cmd

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"go.west.dev/west"
	"go.west.dev/west/config"
	"go.west.dev/west/gitutil"
	"go.west.dev/west/groups"
	"go.west.dev/west/manifest"
	"go.west.dev/west/resolve"
	"go.west.dev/west/update"
)

// groupFilterFlag collects repeated --group-filter values as signed
// tokens, validating each as it is set.
type groupFilterFlag []string

var _ pflag.Value = (*groupFilterFlag)(nil)

func (f *groupFilterFlag) String() string { return strings.Join(*f, ",") }
func (f *groupFilterFlag) Type() string   { return "groupFilter" }

func (f *groupFilterFlag) Set(v string) error {
	for _, tok := range strings.Split(v, ",") {
		tok = strings.TrimSpace(tok)
		if tok == "" {
			continue
		}
		if len(tok) < 2 || (tok[0] != '+' && tok[0] != '-') || !manifest.ValidGroupToken(tok[1:]) {
			return fmt.Errorf("invalid group-filter token %q (want +group or -group)", tok)
		}
		*f = append(*f, tok)
	}
	return nil
}

func newUpdateCommand() *cobra.Command {
	var (
		keepDescendants bool
		rebase          bool
		fetchMode       string
		fetchAttempts   int
		nameCache       string
		pathCache       string
		autoCache       string
		stats           bool
		extras          groupFilterFlag
	)

	c := &cobra.Command{
		Use:   "update [projects...]",
		Short: "bring each project's working tree in sync with the manifest",
		RunE: func(cmd *cobra.Command, args []string) error {
			topdir, err := requireTopdir()
			if err != nil {
				return err
			}
			if keepDescendants && rebase {
				return fmt.Errorf("--keep-descendants and --rebase are mutually exclusive")
			}

			opts := update.Options{
				Topdir:        topdir,
				FetchAttempts: fetchAttempts,
				Status:        func(g *gitutil.Git) (string, error) { return g.Status() },
				Caches: update.Caches{
					NameCache: nameCache,
					PathCache: pathCache,
					AutoCache: autoCache,
				},
			}
			switch fetchMode {
			case "smart":
				opts.Strategy = update.FetchSmart
			case "always":
				opts.Strategy = update.FetchAlways
			default:
				return fmt.Errorf("--fetch must be smart or always, got %q", fetchMode)
			}
			switch {
			case keepDescendants:
				opts.Reconcile = update.ReconcileKeepDescendants
			case rebase:
				opts.Reconcile = update.ReconcileRebase
			}
			if stats {
				opts.Stats = update.NewStats(true)
			}

			res, err := runUpdate(topdir, args, extras, opts)
			if err != nil {
				return err
			}
			if stats {
				for step, d := range opts.Stats.Totals() {
					fmt.Fprintf(os.Stdout, "%-16s %v\n", step, d)
				}
			}
			if report := res.Report(); report != "" {
				fmt.Fprintln(os.Stderr, clr.Red("%s", report))
				return &west.CommandError{ReturnCode: 1, Message: "update failed"}
			}
			fmt.Fprintln(os.Stdout, clr.Green("update complete"))
			return nil
		},
	}

	c.Flags().BoolVarP(&keepDescendants, "keep-descendants", "k", false, "keep a checked-out branch that descends from the new revision")
	c.Flags().BoolVarP(&rebase, "rebase", "r", false, "rebase the checked-out branch onto the new revision")
	c.Flags().StringVar(&fetchMode, "fetch", "smart", "fetch strategy: smart or always")
	c.Flags().IntVar(&fetchAttempts, "fetch-attempts", 1, "attempt each fetch up to N times in all (1 means no retry)")
	c.Flags().StringVar(&nameCache, "name-cache", "", "seed clones from <dir>/<name>")
	c.Flags().StringVar(&pathCache, "path-cache", "", "seed clones from <dir>/<path>")
	c.Flags().StringVar(&autoCache, "auto-cache", "", "maintain and seed from bare mirrors under <dir>")
	c.Flags().BoolVar(&stats, "stats", false, "print per-step timing totals")
	c.Flags().Var(&extras, "group-filter", "additional signed group tokens, e.g. +optional,-docs")
	return c
}

func runUpdate(topdir string, names []string, extras groupFilterFlag, opts update.Options) (*update.Result, error) {
	store := configStore()
	eng := update.New(env)

	if len(names) > 0 {
		return updateNamed(topdir, store, eng, names, opts)
	}

	root, repo, err := loadRootManifest(topdir, store)
	if err != nil {
		return nil, err
	}
	results, resolved, err := eng.ImportAwareUpdate(root, workingTreeImporter{dir: filepath.Join(topdir, repo)}, opts)
	var importErr *resolve.ImportFailedError
	if errors.As(err, &importErr) {
		// A missing sub-manifest is not fatal to the pass: the projects
		// already updated stand, and the next run retries the import.
		fmt.Fprintln(os.Stderr, clr.Yellow("%v; the file must exist at that project's manifest-rev — re-run update once it does", importErr))
		return results, nil
	}
	if err != nil {
		return nil, err
	}

	cfgFilter, err := configGroupFilter(store)
	if err != nil {
		return nil, err
	}
	filter := groups.Compose(resolved.GroupFilter, cfgFilter)

	updated := map[string]bool{}
	for _, pr := range results.Results {
		updated[pr.Project.Name] = true
	}
	var remaining []*manifest.Project
	for _, p := range resolved.Projects {
		if p.Name == manifest.ReservedProjectName || updated[p.Name] {
			continue
		}
		if !groups.IsActive(p, filter, groups.Filter(extras)) {
			continue
		}
		remaining = append(remaining, p)
	}

	rest, err := eng.UpdateAll(remaining, nil, opts)
	if err != nil {
		return nil, err
	}
	results.Results = append(results.Results, rest.Results...)
	printOutcomes(results)
	return results, nil
}

// updateNamed updates only the named projects, which must be declared
// directly in the manifest repository's own document rather than
// contributed through an import.
func updateNamed(topdir string, store *config.Store, eng *update.Engine, names []string, opts update.Options) (*update.Result, error) {
	_, rr, err := resolveFromClones(topdir, store)
	var importErr *resolve.ImportFailedError
	if errors.As(err, &importErr) {
		// Imported sub-manifests may not be readable yet; the named
		// projects must be declared at the top level anyway.
		root, _, lerr := loadRootManifest(topdir, store)
		if lerr != nil {
			return nil, lerr
		}
		rr, err = resolve.Resolve(root, resolve.Options{Topdir: topdir, Flags: resolve.IgnoreImports})
	}
	if err != nil {
		return nil, err
	}
	res, err := eng.UpdateAll(rr.Projects[1:], names, opts)
	if err != nil {
		return nil, err
	}
	printOutcomes(res)
	return res, nil
}

func printOutcomes(res *update.Result) {
	for _, pr := range res.Results {
		switch {
		case pr.Err != nil:
			fmt.Fprintf(os.Stderr, "%s\n", clr.Red("%s: %v", pr.Project.Name, pr.Err))
		case pr.KeptBranch != "":
			fmt.Fprintf(os.Stdout, "%s\n", clr.Yellow("%s: kept branch %s", pr.Project.Name, pr.KeptBranch))
			if pr.StatusText != "" {
				fmt.Fprintf(os.Stdout, "%s\n", clr.Default("%s", pr.StatusText))
			}
		case pr.Guidance.Branch != "":
			fmt.Fprintf(os.Stdout, "%s\n", clr.Default("%s: detached; %s", pr.Project.Name, pr.Guidance))
		default:
			fmt.Fprintf(os.Stdout, "%s\n", clr.Green("%s: up to date", pr.Project.Name))
		}
	}
}
