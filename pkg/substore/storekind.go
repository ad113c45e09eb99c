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

// Package substore implements CodeDJ's per-language storage partitions: the
// StoreKind/ContentsKind enumerations, the commit/content/path/user record
// types, and the Substore bundle of tables they live in.
package substore

import "strings"

// Kind is the closed enumeration of substore partitions. New kinds are a
// schema change, never a runtime plugin: the crawler and datastore both
// hold a statically sized array indexed by Kind, not a dynamic registry.
type Kind int

const (
	SmallProjects Kind = iota
	C
	Cpp
	CSharp
	ObjectiveC
	Go
	Java
	Ruby
	JavaScript
	TypeScript
	Python
	PHP
	Haskell
	Scala
	Clojure
	Erlang
	CoffeeScript
	Perl
	Rust
	Generic
	Sentinel
)

// kindNames is indexed by Kind and doubles as the on-disk directory name
// for that partition.
var kindNames = [...]string{
	SmallProjects: "small-projects",
	C:             "c",
	Cpp:           "cpp",
	CSharp:        "csharp",
	ObjectiveC:    "objective-c",
	Go:            "go",
	Java:          "java",
	Ruby:          "ruby",
	JavaScript:    "javascript",
	TypeScript:    "typescript",
	Python:        "python",
	PHP:           "php",
	Haskell:       "haskell",
	Scala:         "scala",
	Clojure:       "clojure",
	Erlang:        "erlang",
	CoffeeScript:  "coffeescript",
	Perl:          "perl",
	Rust:          "rust",
	Generic:       "generic",
	Sentinel:      "sentinel",
}

// String renders k as its on-disk directory name.
func (k Kind) String() string {
	if int(k) < 0 || int(k) >= len(kindNames) {
		return "invalid"
	}
	return kindNames[k]
}

// Valid reports whether k is a recognized member of the enumeration.
func (k Kind) Valid() bool {
	return k >= SmallProjects && k < Sentinel
}

// AllKinds lists every partition below Sentinel, in declaration order —
// the set a Datastore must be prepared to open a Substore for.
func AllKinds() []Kind {
	kinds := make([]Kind, 0, Sentinel)
	for k := SmallProjects; k < Sentinel; k++ {
		kinds = append(kinds, k)
	}
	return kinds
}

// FromLanguage maps a language name, as reported by ExtensionLanguage or a
// GitHub "language" field, to its storage partition. Unrecognized or empty
// names fall back to Generic.
func FromLanguage(language string) Kind {
	switch strings.ToLower(strings.TrimSpace(language)) {
	case "c":
		return C
	case "c++":
		return Cpp
	case "c#":
		return CSharp
	case "objective-c":
		return ObjectiveC
	case "go":
		return Go
	case "java":
		return Java
	case "ruby":
		return Ruby
	case "javascript":
		return JavaScript
	case "typescript":
		return TypeScript
	case "python":
		return Python
	case "php":
		return PHP
	case "haskell":
		return Haskell
	case "scala":
		return Scala
	case "clojure":
		return Clojure
	case "erlang":
		return Erlang
	case "coffeescript":
		return CoffeeScript
	case "perl":
		return Perl
	case "rust":
		return Rust
	default:
		return Generic
	}
}

// SmallProjectsThreshold is the commit count above which a project is
// reassigned from SmallProjects to a language-specific partition.
const SmallProjectsThreshold = 10

// ContentsKind is the closed enumeration partitioning file-contents
// storage, orthogonal to Kind: it groups blobs by what they physically are
// (plain source text vs. something that compresses or dedups differently),
// not by language.
type ContentsKind int

const (
	ContentsSource ContentsKind = iota
	ContentsMarkup
	ContentsData
	ContentsBinary
	ContentsKindSentinel
)

var contentsKindNames = [...]string{
	ContentsSource:       "source",
	ContentsMarkup:       "markup",
	ContentsData:         "data",
	ContentsBinary:       "binary",
	ContentsKindSentinel: "sentinel",
}

// String renders k as its on-disk directory name.
func (k ContentsKind) String() string {
	if int(k) < 0 || int(k) >= len(contentsKindNames) {
		return "invalid"
	}
	return contentsKindNames[k]
}
