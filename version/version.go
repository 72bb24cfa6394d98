// Copyright 2016 The Fuchsia Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package version

import (
	"bytes"
	"fmt"
)

// Version is the release version of the west tool itself. It is unrelated
// to the manifest schema version, which package manifest gates separately.
const Version = "1.2.0"

var (
	// GitCommit and BuildTime are stamped via -ldflags at release time.
	GitCommit string
	BuildTime string
)

func FormattedVersion() string {
	var versionString bytes.Buffer
	fmt.Fprintf(&versionString, "%s", Version)
	if GitCommit != "" {
		fmt.Fprintf(&versionString, " %s", GitCommit)
	}
	if BuildTime != "" {
		fmt.Fprintf(&versionString, " %s", BuildTime)
	}
	return versionString.String()
}
