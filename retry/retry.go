// Copyright 2015 The Vanadium Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package retry provides a facility for retrying function invocations,
// used by the update engine to ride out transient network failures during
// a project fetch without the per-project pipeline giving up immediately.
package retry

import (
	"fmt"
	"math"
	"math/rand"
	"time"

	"go.west.dev/west"
)

type RetryOpt interface {
	retryOpt()
}

type AttemptsOpt int

func (a AttemptsOpt) retryOpt() {}

type IntervalOpt time.Duration

func (i IntervalOpt) retryOpt() {}

const (
	defaultAttempts = 3
	defaultInterval = 5 * time.Second
)

type exponentialBackoff struct {
	InitialInterval time.Duration
	MaxInterval     time.Duration
	Multiplier      float64
	Iteration       int
	Rand            *rand.Rand
}

func newExponentialBackoff(initialInterval time.Duration, maxInterval time.Duration, multiplier float64) *exponentialBackoff {
	return &exponentialBackoff{
		InitialInterval: initialInterval,
		MaxInterval:     maxInterval,
		Multiplier:      multiplier,
		Rand:            rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

func (e *exponentialBackoff) nextBackoff() time.Duration {
	// Jitter by up to one initial interval so simultaneous retries don't
	// stampede in lockstep.
	next := time.Duration(float64(e.InitialInterval)*math.Pow(e.Multiplier, float64(e.Iteration)) +
		float64(e.InitialInterval)*e.Rand.Float64())
	e.Iteration++
	if next > e.MaxInterval {
		next = e.MaxInterval
	}
	return next
}

// Function retries fn for the given number of attempts at the given
// interval, with exponential backoff between attempts. env supplies the
// logger that reports retry attempts; task is
// a human-readable label for the operation being retried (e.g. "fetch
// origin for project zephyr").
func Function(env *west.Env, fn func() error, task string, opts ...RetryOpt) error {
	attempts, interval := defaultAttempts, defaultInterval
	for _, opt := range opts {
		switch typedOpt := opt.(type) {
		case AttemptsOpt:
			attempts = int(typedOpt)
		case IntervalOpt:
			interval = time.Duration(typedOpt)
		}
	}

	const maxInterval = 64 * time.Second
	backoff := newExponentialBackoff(interval, maxInterval, 2 /* multiplier */)
	var err error
	for i := 1; i <= attempts; i++ {
		if i > 1 && env != nil && env.Logger != nil {
			env.Logger.WithFields(west.Fields("attempt", i, "attempts", attempts)).Infof("retrying: %s", task)
		}
		if err = fn(); err == nil {
			return nil
		}
		if i < attempts {
			if env != nil && env.Logger != nil {
				env.Logger.WithFields(west.Fields("task", task)).Errorf("%v", err)
			}
			backoffInterval := backoff.nextBackoff()
			if env != nil && env.Logger != nil {
				env.Logger.Infof("waiting %s before next attempt: %s", backoffInterval, task)
			}
			time.Sleep(backoffInterval)
		}
	}
	if attempts > 1 {
		return fmt.Errorf("%q failed %d times in a row, last error: %w", task, attempts, err)
	}
	return err
}
