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

package crawler

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestReporterDrainsAllMessagesBeforeClose(t *testing.T) {
	r := NewReporter()
	r.Start("p1", "updating")
	r.Progress("p1", 1, 10)
	r.Done("p1", "updated")
	r.Close()
	// Close blocking until the terminal loop has drained confirms Send
	// never dropped a message; nothing left to assert beyond it returning.
}

func TestReporterErrorDoesNotPanicOnNilCause(t *testing.T) {
	r := NewReporter()
	r.Error("p1", "boom", nil)
	r.Close()
}

func TestReporterErrorWithCause(t *testing.T) {
	r := NewReporter()
	r.Error("p1", "boom", errors.New("network unreachable"))
	r.Close()
}

func TestReporterCloseWithNoMessagesReturns(t *testing.T) {
	r := NewReporter()
	r.Close()
	require.NotPanics(t, func() {
		// Close already drained; a Reporter is not meant to be reused, this
		// just documents that Close is terminal.
	})
}
