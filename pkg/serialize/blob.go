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

package serialize

import (
	"bytes"
	"fmt"
	"io"
	"sync"

	"github.com/klauspost/compress/zstd"
)

// blobCompressionLevel is fixed at the spec's mandated zstd level 3: a
// balance between ratio and ingest throughput for the crawler's write path.
var blobCompressionLevel = zstd.EncoderLevelFromZstd(3)

var encoderPool = sync.Pool{
	New: func() any {
		enc, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(blobCompressionLevel))
		if err != nil {
			// Only fails on invalid options; ours are constant.
			panic(fmt.Sprintf("serialize: zstd encoder: %v", err))
		}
		return enc
	},
}

var decoderPool = sync.Pool{
	New: func() any {
		dec, err := zstd.NewReader(nil)
		if err != nil {
			panic(fmt.Sprintf("serialize: zstd decoder: %v", err))
		}
		return dec
	},
}

// WriteBlob writes p zstd-compressed, prefixed by its compressed length as a
// u64. Every byte blob in CodeDJ's tables (commit messages, file contents,
// GitHub metadata JSON) goes through this path.
func (w *Writer) WriteBlob(p []byte) error {
	enc := encoderPool.Get().(*zstd.Encoder)
	defer encoderPool.Put(enc)

	var buf bytes.Buffer
	enc.Reset(&buf)
	if _, err := enc.Write(p); err != nil {
		return fmt.Errorf("serialize: zstd compress: %w", err)
	}
	if err := enc.Close(); err != nil {
		return fmt.Errorf("serialize: zstd compress: %w", err)
	}

	compressed := buf.Bytes()
	if err := w.WriteUint64(uint64(len(compressed))); err != nil {
		return err
	}
	return w.write(compressed)
}

// ReadBlob reads back a value written by WriteBlob.
func (r *Reader) ReadBlob() ([]byte, error) {
	n, err := r.ReadUint64()
	if err != nil {
		return nil, err
	}
	const maxReasonableBlob = 1 << 34
	if n > maxReasonableBlob {
		return nil, fmt.Errorf("serialize: blob length %d exceeds sanity limit", n)
	}
	compressed, err := r.ReadBytes(int(n))
	if err != nil {
		return nil, err
	}

	dec := decoderPool.Get().(*zstd.Decoder)
	defer decoderPool.Put(dec)

	if err := dec.Reset(bytes.NewReader(compressed)); err != nil {
		return nil, fmt.Errorf("serialize: zstd reset: %w", err)
	}
	out, err := io.ReadAll(dec)
	if err != nil {
		return nil, fmt.Errorf("serialize: zstd decompress: %w", err)
	}
	return out, nil
}
