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

// Package langclass classifies source files by path extension, for
// substore hinting and content-storage decisions, and classifies commit
// messages as bugfix-related for downstream analysis.
package langclass

import (
	"path/filepath"
	"strings"
)

// extensionLanguage is the fixed, lowercased-extension-to-language table.
// Unknown extensions classify as "none".
var extensionLanguage = map[string]string{
	"c": "C",

	"cc":  "C++",
	"cpp": "C++",
	"cxx": "C++",
	"c++": "C++",

	"cs": "C#",

	"m":  "Objective-C",
	"mm": "Objective-C",

	"go":   "Go",
	"java": "Java",
	"rb":   "Ruby",

	"js":  "JavaScript",
	"mjs": "JavaScript",

	"ts":  "TypeScript",
	"tsx": "TypeScript",

	"py":  "Python",
	"pyi": "Python",
	"pyc": "Python",
	"pyd": "Python",
	"pyo": "Python",
	"pyw": "Python",
	"pyz": "Python",

	"php":   "PHP",
	"phtml": "PHP",
	"php3":  "PHP",
	"php4":  "PHP",
	"php5":  "PHP",
	"phar":  "PHP",

	"hs":  "Haskell",
	"lhs": "Haskell",

	"scala": "Scala",
	"sc":    "Scala",

	"clj":  "Clojure",
	"cljs": "Clojure",
	"cljc": "Clojure",
	"edn":  "Clojure",

	"erl": "Erlang",
	"hrl": "Erlang",

	"coffee":    "CoffeeScript",
	"litcoffee": "CoffeeScript",

	"pl":  "Perl",
	"pm":  "Perl",
	"t":   "Perl",
	"pod": "Perl",
	"xs":  "Perl",
	"plx": "Perl",

	"rs": "Rust",
}

// Note: the extension table has a documented irregularity: a bare
// upper-case "C" extension (as in "Foo.C") also denotes C++ in the source
// corpus this table was distilled from. Extensions are lowercased before
// lookup everywhere else, so that distinction can't survive map-based
// lookup; ExtensionLanguage special-cases it before lowercasing.

// ExtensionLanguage returns the language name for a lowercased file
// extension (without the leading dot), or "none" if unrecognized.
func ExtensionLanguage(ext string) string {
	if ext == "C" {
		return "C++"
	}
	if lang, ok := extensionLanguage[strings.ToLower(ext)]; ok {
		return lang
	}
	return "none"
}

// LanguageForPath extracts path's extension and classifies it.
func LanguageForPath(path string) string {
	ext := filepath.Ext(path)
	ext = strings.TrimPrefix(ext, ".")
	return ExtensionLanguage(ext)
}

// markupExtensions and dataExtensions refine ContentsKind selection beyond
// "is this a known programming language" — they cover files worth storing
// (for provenance/search) that aren't source code in the Kind sense.
var markupExtensions = map[string]bool{
	"md": true, "rst": true, "txt": true, "html": true, "htm": true,
	"xml": true, "adoc": true,
}

var dataExtensions = map[string]bool{
	"json": true, "yaml": true, "yml": true, "toml": true, "csv": true,
	"ini": true, "cfg": true,
}

// ShouldStoreContents reports whether a blob at path is worth persisting:
// known source languages and the markup/data extensions above. Everything
// else (binaries, build artifacts, unrecognized extensions) still mints a
// HashId but its bytes are never written.
func ShouldStoreContents(path string) bool {
	ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(path), "."))
	if ExtensionLanguage(ext) != "none" {
		return true
	}
	return markupExtensions[ext] || dataExtensions[ext]
}

// ContentsKindName classifies a path's extension into one of the coarse
// content buckets ("source", "markup", "data", "binary") that
// substore.ContentsKind mirrors; callers map the name to the concrete enum
// to avoid an import cycle between langclass and substore.
func ContentsKindName(path string) string {
	ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(path), "."))
	switch {
	case ExtensionLanguage(ext) != "none":
		return "source"
	case markupExtensions[ext]:
		return "markup"
	case dataExtensions[ext]:
		return "data"
	default:
		return "binary"
	}
}

// bugfixKeywords is the fixed, case-insensitive keyword set a commit
// message is searched against to classify it as a bugfix commit. This
// classifier is consumed by downstream analysis, not the ingest path
// itself, but its contract is fixed here.
var bugfixKeywords = []string{
	"error", "bug", "fix", "issue", "mistake", "incorrect", "fault", "defect", "flaw",
}

// IsBugfixCommit reports whether message contains any bugfix keyword,
// matched case-insensitively as a substring.
func IsBugfixCommit(message string) bool {
	lower := strings.ToLower(message)
	for _, kw := range bugfixKeywords {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}
