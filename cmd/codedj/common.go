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

package main

import (
	"fmt"

	"github.com/kraklabs/codedj/internal/errors"
	"github.com/kraklabs/codedj/pkg/codedj"
	"github.com/kraklabs/codedj/pkg/store"
)

// openError translates a codedj.Open failure into the operator-facing
// error kind every subcommand reports consistently.
func openError(err error) error {
	switch {
	case errors.Is(err, store.ErrLockConflict):
		return errors.NewPermissionError(
			"Superstore is locked",
			"Another codedj process already holds the lock on this superstore",
			"Wait for the other process to finish, or remove the .lock file if you're certain it crashed",
			err,
		)
	case errors.Is(err, codedj.ErrUnterminatedCommand):
		return errors.NewDatabaseError(
			"Prior command did not terminate cleanly",
			"The .current-command sentinel is present: a previous codedj process was killed mid-command",
			"Revert to the latest savepoint before opening this superstore again",
			err,
		)
	default:
		return errors.NewDatabaseError("Cannot open superstore", fmt.Sprint(err), "Check the --root path and file permissions", err)
	}
}
