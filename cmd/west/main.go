// Copyright 2015 The Vanadium Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package main

import (
	"errors"
	"fmt"
	"os"

	"go.west.dev/west"
	"go.west.dev/west/cmd/west/cmd"
)

func main() {
	if err := cmd.Root().Execute(); err != nil {
		var cmdErr *west.CommandError
		if errors.As(err, &cmdErr) {
			// Already reported in detail by the subcommand.
			os.Exit(cmdErr.ReturnCode)
		}
		fmt.Fprintf(os.Stderr, "west: %v\n", err)
		os.Exit(1)
	}
}
