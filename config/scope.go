// Copyright 2015 The Vanadium Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package config implements west's three-level (system/global/local)
// configuration store, backed by gopkg.in/ini.v1.
package config

import (
	"os"
	"path/filepath"
	"runtime"
)

// Scope selects which configuration level an operation targets.
type Scope int

const (
	// ALL queries across every level, local taking precedence over
	// global taking precedence over system.
	ALL Scope = iota
	SYSTEM
	GLOBAL
	LOCAL
)

func (s Scope) String() string {
	switch s {
	case SYSTEM:
		return "system"
	case GLOBAL:
		return "global"
	case LOCAL:
		return "local"
	default:
		return "all"
	}
}

const (
	envSystem = "WEST_CONFIG_SYSTEM"
	envGlobal = "WEST_CONFIG_GLOBAL"
	envLocal  = "WEST_CONFIG_LOCAL"
)

// defaultSystemPath returns the platform-default location of the system
// configuration file.
func defaultSystemPath() string {
	switch runtime.GOOS {
	case "windows":
		if pd := os.Getenv("PROGRAMDATA"); pd != "" {
			return filepath.Join(pd, "west", "config")
		}
		return `C:\ProgramData\west\config`
	case "darwin":
		return "/usr/local/etc/westconfig"
	default:
		return "/etc/westconfig"
	}
}

// defaultGlobalPath returns the platform-default location of the global
// (per-user) configuration file.
func defaultGlobalPath() string {
	if runtime.GOOS == "windows" {
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, ".westconfig")
		}
		return ".westconfig"
	}
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "west", "config")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ".westconfig"
	}
	return filepath.Join(home, ".westconfig")
}

// principalPath resolves the on-disk path of the principal file for scope,
// honoring the WEST_CONFIG_* environment overrides. topdir may be empty
// only when scope is not LOCAL.
func principalPath(scope Scope, topdir string) string {
	switch scope {
	case SYSTEM:
		if v := os.Getenv(envSystem); v != "" {
			return v
		}
		return defaultSystemPath()
	case GLOBAL:
		if v := os.Getenv(envGlobal); v != "" {
			return v
		}
		return defaultGlobalPath()
	case LOCAL:
		if v := os.Getenv(envLocal); v != "" {
			return v
		}
		return filepath.Join(topdir, ".west", "config")
	}
	return ""
}

// dropinDir returns the drop-in directory accompanying a principal file,
// e.g. "config" -> "config.d".
func dropinDir(principal string) string {
	return principal + ".d"
}
