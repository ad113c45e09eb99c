// Copyright 2025 KrakLabs
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published
// by the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with this program. If not, see <https://www.gnu.org/licenses/>.
//
// For commercial licensing, contact: licensing@kraklabs.com
//
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package ui centralizes terminal output: isatty-aware color, headers and
// labels for human-readable command output, and progress bars for the
// crawler's long-running update command.
package ui

import (
	"fmt"
	"os"
	"strconv"

	"github.com/fatih/color"
	"github.com/mattn/go-isatty"
)

// Color objects reused across commands. Bound once by InitColors so that
// --no-color and NO_COLOR disable them process-wide.
var (
	Cyan   = color.New(color.FgCyan)
	Green  = color.New(color.FgGreen)
	Yellow = color.New(color.FgYellow)
	Red    = colorString(color.FgRed)
	Dim    = color.New(color.Faint)
)

func colorString(attr color.Attribute) func(string) string {
	c := color.New(attr)
	return c.SprintFunc()
}

// InitColors disables color output when noColor is set, the NO_COLOR
// environment variable is present, or stdout is not a terminal.
func InitColors(noColor bool) {
	if noColor || os.Getenv("NO_COLOR") != "" || !isatty.IsTerminal(os.Stdout.Fd()) {
		color.NoColor = true
	}
}

// Header prints a bold cyan section title followed by a blank line.
func Header(title string) {
	color.New(color.FgCyan, color.Bold).Println(title)
	fmt.Println()
}

// SubHeader prints a bold label with no trailing blank line, for a nested
// section inside a Header block.
func SubHeader(title string) {
	fmt.Println(color.New(color.Bold).Sprint(title))
}

// Label renders a dim-bold field name, meant to precede a value on the same
// printed line.
func Label(text string) string {
	return color.New(color.Bold, color.FgHiBlack).Sprint(text)
}

// DimText renders low-emphasis text, used for paths and wrapped error
// causes that support the main message without competing with it.
func DimText(text string) string {
	return Dim.Sprint(text)
}

// CountText renders an integer count with thousands separators, for
// readability in large crawl summaries.
func CountText(n int) string {
	s := strconv.Itoa(n)
	neg := false
	if len(s) > 0 && s[0] == '-' {
		neg, s = true, s[1:]
	}
	for i := len(s) - 3; i > 0; i -= 3 {
		s = s[:i] + "," + s[i:]
	}
	if neg {
		s = "-" + s
	}
	return s
}

// Info prints a plain informational line.
func Info(args ...interface{}) { fmt.Println(args...) }

// Infof prints a formatted informational line.
func Infof(format string, args ...interface{}) { fmt.Printf(format+"\n", args...) }

// Success prints a green confirmation line.
func Success(args ...interface{}) { Green.Println(args...) }

// Successf prints a formatted green confirmation line.
func Successf(format string, args ...interface{}) { Green.Printf(format+"\n", args...) }

// Warning prints a yellow warning line to stderr.
func Warning(args ...interface{}) { Yellow.Fprintln(os.Stderr, args...) }

// Warningf prints a formatted yellow warning line to stderr.
func Warningf(format string, args ...interface{}) { Yellow.Fprintf(os.Stderr, format+"\n", args...) }
