// Copyright 2015 The Vanadium Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package update

import "time"

// Step names the per-project pipeline sub-steps Stats can time.
type Step string

const (
	StepClonedCheck Step = "cloned-check"
	StepInit        Step = "init"
	StepFetch       Step = "fetch"
	StepClean       Step = "clean"
	StepHeadEnsure  Step = "head-ensure"
	StepSHAFetch    Step = "sha-fetch"
	StepAncestor    Step = "ancestor-check"
	StepRebase      Step = "rebase"
	StepCheckout    Step = "checkout"
)

// Stats accumulates wall-clock time per sub-step across every project
// processed in one update pass, when the caller opts in.
type Stats struct {
	enabled bool
	totals  map[Step]time.Duration
}

// NewStats returns a Stats recorder. If enabled is false, Time only runs fn
// and records nothing, so the engine can unconditionally instrument every step without an
// "if stats != nil" at every call site.
func NewStats(enabled bool) *Stats {
	return &Stats{enabled: enabled, totals: map[Step]time.Duration{}}
}

// Time runs fn, recording its wall-clock duration against step, and
// returns fn's error unchanged.
func (s *Stats) Time(step Step, fn func() error) error {
	if !s.enabled {
		return fn()
	}
	start := time.Now()
	err := fn()
	s.totals[step] += time.Since(start)
	return err
}

// Totals returns the accumulated per-step durations.
func (s *Stats) Totals() map[Step]time.Duration {
	out := make(map[Step]time.Duration, len(s.totals))
	for k, v := range s.totals {
		out[k] = v
	}
	return out
}
