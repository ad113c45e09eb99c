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

package store

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestFolderLockExcludesSecondAcquirer(t *testing.T) {
	dir := t.TempDir()

	l1, err := AcquireFolderLock(dir)
	require.NoError(t, err)

	_, err = AcquireFolderLock(dir)
	require.ErrorIs(t, err, ErrLockConflict)

	require.NoError(t, l1.Release())

	l2, err := AcquireFolderLock(dir)
	require.NoError(t, err)
	require.NoError(t, l2.Release())
}

func TestFolderLockHolderReportsPid(t *testing.T) {
	dir := t.TempDir()

	l, err := AcquireFolderLock(dir)
	require.NoError(t, err)
	defer l.Release()

	_, pid, err := Holder(dir)
	require.NoError(t, err)
	require.NotZero(t, pid)
}
