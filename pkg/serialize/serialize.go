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

// Package serialize implements the fixed- and variable-size encoding used by
// every on-disk table in CodeDJ: little-endian integers, length-prefixed
// strings, zstd-compressed blobs, and length-prefixed tuples/maps.
//
// The contract mirrors a narrow read/write trait rather than a generic
// interface: every serializable type exposes WriteTo(*Writer) error and a
// matching ReadFrom(*Reader) error, and offsets are tracked by the Writer and
// Reader themselves so callers never need to seek. Reads of a truncated
// stream return an error; they never panic.
package serialize

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
)

// Encoder is implemented by every value CodeDJ appends to a table.
type Encoder interface {
	WriteTo(w *Writer) error
}

// Decoder is implemented by every value CodeDJ reads back from a table.
type Decoder interface {
	ReadFrom(r *Reader) error
}

// Sized is implemented by fixed-size types so callers can pre-size buffers.
type Sized interface {
	// SerializedSize returns the number of bytes WriteTo will produce.
	SerializedSize() int
}

// Writer wraps an io.Writer and tracks the current byte offset so the
// table format never needs to seek.
type Writer struct {
	w      io.Writer
	offset int64
}

// NewWriter wraps w, assuming it is currently positioned at offset bytes
// into the underlying file.
func NewWriter(w io.Writer, offset int64) *Writer {
	return &Writer{w: w, offset: offset}
}

// Offset returns the current byte offset.
func (w *Writer) Offset() int64 { return w.offset }

func (w *Writer) write(p []byte) error {
	n, err := w.w.Write(p)
	w.offset += int64(n)
	if err != nil {
		return fmt.Errorf("serialize: write: %w", err)
	}
	return nil
}

// WriteUint8 writes a single byte.
func (w *Writer) WriteUint8(v uint8) error { return w.write([]byte{v}) }

// WriteBool writes a boolean as a single byte.
func (w *Writer) WriteBool(v bool) error {
	if v {
		return w.WriteUint8(1)
	}
	return w.WriteUint8(0)
}

// WriteUint32 writes v little-endian.
func (w *Writer) WriteUint32(v uint32) error {
	var buf [4]byte
	binary.LittleEndian.PutUint32(buf[:], v)
	return w.write(buf[:])
}

// WriteUint64 writes v little-endian.
func (w *Writer) WriteUint64(v uint64) error {
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], v)
	return w.write(buf[:])
}

// WriteInt64 writes v little-endian.
func (w *Writer) WriteInt64(v int64) error {
	return w.WriteUint64(uint64(v))
}

// WriteBytes writes the raw bytes of p with no length prefix.
func (w *Writer) WriteBytes(p []byte) error { return w.write(p) }

// WriteString writes s as a u32 length prefix followed by raw UTF-8 bytes.
func (w *Writer) WriteString(s string) error {
	if err := w.WriteUint32(uint32(len(s))); err != nil {
		return err
	}
	return w.write([]byte(s))
}

// Reader wraps an io.Reader and tracks the current byte offset.
type Reader struct {
	r      io.Reader
	offset int64
}

// NewReader wraps r, assuming it is currently positioned at offset bytes
// into the underlying file.
func NewReader(r io.Reader, offset int64) *Reader {
	return &Reader{r: bufio.NewReader(r), offset: offset}
}

// Offset returns the current byte offset.
func (r *Reader) Offset() int64 { return r.offset }

func (r *Reader) readFull(p []byte) error {
	n, err := io.ReadFull(r.r, p)
	r.offset += int64(n)
	if err != nil {
		return fmt.Errorf("serialize: read: %w", err)
	}
	return nil
}

// ReadUint8 reads a single byte.
func (r *Reader) ReadUint8() (uint8, error) {
	var buf [1]byte
	if err := r.readFull(buf[:]); err != nil {
		return 0, err
	}
	return buf[0], nil
}

// ReadBool reads a boolean stored as a single byte.
func (r *Reader) ReadBool() (bool, error) {
	v, err := r.ReadUint8()
	if err != nil {
		return false, err
	}
	return v != 0, nil
}

// ReadUint32 reads a little-endian u32.
func (r *Reader) ReadUint32() (uint32, error) {
	var buf [4]byte
	if err := r.readFull(buf[:]); err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(buf[:]), nil
}

// ReadUint64 reads a little-endian u64.
func (r *Reader) ReadUint64() (uint64, error) {
	var buf [8]byte
	if err := r.readFull(buf[:]); err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint64(buf[:]), nil
}

// ReadInt64 reads a little-endian i64.
func (r *Reader) ReadInt64() (int64, error) {
	v, err := r.ReadUint64()
	return int64(v), err
}

// ReadBytes reads exactly n raw bytes.
func (r *Reader) ReadBytes(n int) ([]byte, error) {
	buf := make([]byte, n)
	if err := r.readFull(buf); err != nil {
		return nil, err
	}
	return buf, nil
}

// ReadString reads a u32-length-prefixed UTF-8 string.
func (r *Reader) ReadString() (string, error) {
	n, err := r.ReadUint32()
	if err != nil {
		return "", err
	}
	// Guard against a corrupt length prefix turning a short truncated
	// stream into a multi-gigabyte allocation.
	const maxReasonableString = 1 << 30
	if n > maxReasonableString {
		return "", fmt.Errorf("serialize: string length %d exceeds sanity limit", n)
	}
	buf, err := r.ReadBytes(int(n))
	if err != nil {
		return "", err
	}
	return string(buf), nil
}
