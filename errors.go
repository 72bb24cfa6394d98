// Copyright 2015 The Vanadium Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package west provides the ambient execution environment and the shared
// error taxonomy used by every west component.
package west

import "fmt"

// WorkspaceNotFoundError is returned by the workspace locator when no
// ancestor of the starting directory carries the marker directory, and the
// ZEPHYR_BASE fallback (if any) does not either.
type WorkspaceNotFoundError struct {
	Start string
}

func (e *WorkspaceNotFoundError) Error() string {
	return fmt.Sprintf("could not find a workspace (%s marker directory) starting from %q", MarkerDir, e.Start)
}

// CommandError reports the logical failure of a high-level operation that
// has already been reported to the user in detail; the driver only needs
// the return code.
type CommandError struct {
	ReturnCode int
	Message    string
}

func (e *CommandError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return fmt.Sprintf("command failed with code %d", e.ReturnCode)
}

// PermissionError distinguishes a permission-denied failure writing a
// configuration file so the driver can suggest elevation for system-scope
// writes.
type PermissionError struct {
	Path string
	Err  error
}

func (e *PermissionError) Error() string {
	return fmt.Sprintf("permission denied writing %s: %v", e.Path, e.Err)
}

func (e *PermissionError) Unwrap() error { return e.Err }
