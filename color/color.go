// Copyright 2017 The Fuchsia Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package color provides the status/error coloring used by cmd/west,
// backed by github.com/fatih/color with auto-detection via
// github.com/mattn/go-isatty.
package color

import (
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/mattn/go-isatty"
)

// Color renders formatted text in a fixed semantic palette the cmd/west
// driver uses for status lines (green = up to date / success, yellow =
// local changes kept, red = failure, cyan/blue/magenta for informational
// headers).
type Color interface {
	Green(format string, a ...any) string
	Yellow(format string, a ...any) string
	Red(format string, a ...any) string
	Cyan(format string, a ...any) string
	Blue(format string, a ...any) string
	Magenta(format string, a ...any) string
	Default(format string, a ...any) string
	Enabled() bool
}

type fattyColor struct {
	green, yellow, red, cyan, blue, magenta *color.Color
}

func newFattyColor() *fattyColor {
	return &fattyColor{
		green:   color.New(color.FgGreen),
		yellow:  color.New(color.FgYellow),
		red:     color.New(color.FgRed),
		cyan:    color.New(color.FgCyan),
		blue:    color.New(color.FgBlue),
		magenta: color.New(color.FgMagenta),
	}
}

func (c *fattyColor) Green(format string, a ...any) string   { return c.green.Sprintf(format, a...) }
func (c *fattyColor) Yellow(format string, a ...any) string  { return c.yellow.Sprintf(format, a...) }
func (c *fattyColor) Red(format string, a ...any) string     { return c.red.Sprintf(format, a...) }
func (c *fattyColor) Cyan(format string, a ...any) string    { return c.cyan.Sprintf(format, a...) }
func (c *fattyColor) Blue(format string, a ...any) string    { return c.blue.Sprintf(format, a...) }
func (c *fattyColor) Magenta(format string, a ...any) string { return c.magenta.Sprintf(format, a...) }
func (c *fattyColor) Default(format string, a ...any) string { return fmt.Sprintf(format, a...) }
func (c *fattyColor) Enabled() bool                          { return true }

type monochrome struct{}

func (monochrome) Green(format string, a ...any) string   { return fmt.Sprintf(format, a...) }
func (monochrome) Yellow(format string, a ...any) string  { return fmt.Sprintf(format, a...) }
func (monochrome) Red(format string, a ...any) string     { return fmt.Sprintf(format, a...) }
func (monochrome) Cyan(format string, a ...any) string    { return fmt.Sprintf(format, a...) }
func (monochrome) Blue(format string, a ...any) string    { return fmt.Sprintf(format, a...) }
func (monochrome) Magenta(format string, a ...any) string { return fmt.Sprintf(format, a...) }
func (monochrome) Default(format string, a ...any) string { return fmt.Sprintf(format, a...) }
func (monochrome) Enabled() bool                          { return false }

// Mode selects whether color is forced on, forced off, or auto-detected.
type Mode string

const (
	Always Mode = "always"
	Never  Mode = "never"
	Auto   Mode = "auto"
)

// New returns a Color for mode, auto-detecting a terminal via go-isatty and
// $TERM when mode is Auto.
func New(mode Mode) Color {
	enabled := mode != Never
	if mode != Always {
		if enabled {
			switch os.Getenv("TERM") {
			case "dumb", "":
				enabled = false
			}
		}
		if enabled {
			enabled = isatty.IsTerminal(os.Stdout.Fd()) || isatty.IsCygwinTerminal(os.Stdout.Fd())
		}
	}
	if enabled {
		return newFattyColor()
	}
	return monochrome{}
}
