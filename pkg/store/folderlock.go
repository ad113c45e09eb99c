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
	"encoding/binary"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/gofrs/flock"
)

// LockFileName is the sentinel file a FolderLock creates at the superstore
// root, holding (time:i64, pid:u32).
const LockFileName = ".lock"

// ErrLockConflict is returned when another process already holds the
// FolderLock for a superstore root.
var ErrLockConflict = fmt.Errorf("store: folder is locked by another process")

// FolderLock is a single-writer advisory lock over a directory. At most one
// process may hold the lock for a given superstore root at a time; opening a
// second CodeDJ over an already-locked root fails with ErrLockConflict.
type FolderLock struct {
	path string
	fl   *flock.Flock
}

// AcquireFolderLock takes the advisory lock for root, writing a
// pid+timestamp sentinel file. It fails immediately (non-blocking) if
// another process holds the lock.
func AcquireFolderLock(root string) (*FolderLock, error) {
	path := filepath.Join(root, LockFileName)
	fl := flock.New(path)

	locked, err := fl.TryLock()
	if err != nil {
		return nil, fmt.Errorf("store: acquire lock: %w", err)
	}
	if !locked {
		return nil, ErrLockConflict
	}

	if err := writeLockSentinel(path); err != nil {
		_ = fl.Unlock()
		return nil, err
	}

	return &FolderLock{path: path, fl: fl}, nil
}

func writeLockSentinel(path string) error {
	var buf [12]byte
	binary.LittleEndian.PutUint64(buf[0:8], uint64(time.Now().Unix()))
	binary.LittleEndian.PutUint32(buf[8:12], uint32(os.Getpid()))
	return os.WriteFile(path, buf[:], 0o644)
}

// Release drops the lock and removes the sentinel file.
func (l *FolderLock) Release() error {
	if err := l.fl.Unlock(); err != nil {
		return fmt.Errorf("store: release lock: %w", err)
	}
	return os.Remove(l.path)
}

// Holder reads the (time, pid) recorded in an existing sentinel file,
// primarily useful for diagnostics when ErrLockConflict is returned.
func Holder(root string) (lockTime time.Time, pid uint32, err error) {
	buf, err := os.ReadFile(filepath.Join(root, LockFileName))
	if err != nil {
		return time.Time{}, 0, err
	}
	if len(buf) < 12 {
		return time.Time{}, 0, fmt.Errorf("store: truncated lock sentinel")
	}
	lockTime = time.Unix(int64(binary.LittleEndian.Uint64(buf[0:8])), 0)
	pid = binary.LittleEndian.Uint32(buf[8:12])
	return lockTime, pid, nil
}
