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

// Package errors wraps the stdlib errors package with a CodeDJError type
// that carries an operator-facing title, detail, and suggestion alongside
// the usual wrapped cause, plus FatalError for printing one and exiting
// with the kind's exit code.
package errors

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/kraklabs/codedj/internal/ui"
)

// New and Is/As/Unwrap re-export the stdlib so callers importing this
// package don't also need "errors" for plain sentinel errors.
var (
	New    = errors.New
	Is     = errors.Is
	As     = errors.As
	Unwrap = errors.Unwrap
)

// Kind classifies a CodeDJError for exit-code and presentation purposes.
type Kind int

const (
	KindInternal Kind = iota
	KindConfig
	KindInput
	KindPermission
	KindNetwork
	KindDatabase
)

func (k Kind) exitCode() int {
	switch k {
	case KindInput:
		return 2
	case KindConfig:
		return 3
	case KindPermission:
		return 4
	case KindNetwork:
		return 5
	case KindDatabase:
		return 6
	default:
		return 1
	}
}

func (k Kind) label() string {
	switch k {
	case KindConfig:
		return "Configuration Error"
	case KindInput:
		return "Input Error"
	case KindPermission:
		return "Permission Error"
	case KindNetwork:
		return "Network Error"
	case KindDatabase:
		return "Database Error"
	default:
		return "Internal Error"
	}
}

// CodeDJError is a structured, operator-facing error: a short title, a
// longer detail line, a suggested remedy, and an optional wrapped cause.
type CodeDJError struct {
	Kind       Kind
	Title      string
	Detail     string
	Suggestion string
	Cause      error
}

func (e *CodeDJError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Title, e.Detail, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Title, e.Detail)
}

func (e *CodeDJError) Unwrap() error { return e.Cause }

func newError(kind Kind, title, detail, suggestion string, cause error) error {
	return &CodeDJError{Kind: kind, Title: title, Detail: detail, Suggestion: suggestion, Cause: cause}
}

// NewInternalError reports a bug: something that should never happen given
// the program's own invariants.
func NewInternalError(title, detail, suggestion string, cause error) error {
	return newError(KindInternal, title, detail, suggestion, cause)
}

// NewConfigError reports a problem with the on-disk configuration file.
func NewConfigError(title, detail, suggestion string, cause error) error {
	return newError(KindConfig, title, detail, suggestion, cause)
}

// NewInputError reports a problem with arguments or input the operator
// supplied directly. cause is optional; pass nil when there is no
// underlying error.
func NewInputError(title, detail, suggestion string, cause ...error) error {
	var c error
	if len(cause) > 0 {
		c = cause[0]
	}
	return newError(KindInput, title, detail, suggestion, c)
}

// NewPermissionError reports a filesystem permission or locking failure.
func NewPermissionError(title, detail, suggestion string, cause error) error {
	return newError(KindPermission, title, detail, suggestion, cause)
}

// NewNetworkError reports a failure reaching a remote (GitHub, git remote,
// edge cache) service.
func NewNetworkError(title, detail, suggestion string, cause error) error {
	return newError(KindNetwork, title, detail, suggestion, cause)
}

// NewDatabaseError reports a failure reading or writing the superstore
// itself.
func NewDatabaseError(title, detail, suggestion string, cause error) error {
	return newError(KindDatabase, title, detail, suggestion, cause)
}

type jsonError struct {
	Error      string `json:"error"`
	Title      string `json:"title,omitempty"`
	Detail     string `json:"detail,omitempty"`
	Suggestion string `json:"suggestion,omitempty"`
}

// FatalError prints err to stderr (as JSON when jsonOutput is set) and
// exits with a kind-specific status code. A plain error not constructed via
// one of the New*Error helpers above is printed as-is and exits 1.
func FatalError(err error, jsonOutput bool) {
	if err == nil {
		return
	}

	var cerr *CodeDJError
	if !errors.As(err, &cerr) {
		cerr = &CodeDJError{Kind: KindInternal, Title: "Error", Detail: err.Error()}
	}

	if jsonOutput {
		enc := json.NewEncoder(os.Stderr)
		enc.Encode(jsonError{
			Error:      cerr.Error(),
			Title:      cerr.Title,
			Detail:     cerr.Detail,
			Suggestion: cerr.Suggestion,
		})
	} else {
		fmt.Fprintf(os.Stderr, "%s: %s\n", ui.Red(cerr.Kind.label()), cerr.Title)
		if cerr.Detail != "" {
			fmt.Fprintf(os.Stderr, "  %s\n", cerr.Detail)
		}
		if cerr.Cause != nil {
			fmt.Fprintf(os.Stderr, "  %s\n", ui.DimText(cerr.Cause.Error()))
		}
		if cerr.Suggestion != "" {
			fmt.Fprintf(os.Stderr, "  %s %s\n", ui.Label("Suggestion:"), cerr.Suggestion)
		}
	}

	os.Exit(cerr.Kind.exitCode())
}
