// Copyright (C) 2020-2022  Ambassador Labs
//
// SPDX-License-Identifier: Apache-2.0

package archive

import (
	"fmt"
	"io"
	"os"

	"github.com/klauspost/compress/zstd"
)

// minFastDecompressCapacity is the floor for fast_decompress_zstd's output
// buffer, used when 5x the input size is still tiny (a near-empty payload
// shouldn't cause repeated buffer growth on the first real write).
const minFastDecompressCapacity = 1 << 20 // 1 MiB

// CompressZstd streams in to out at the library's default compression
// level.
func CompressZstd(in io.Reader, out io.Writer) (err error) {
	w, err := zstd.NewWriter(out)
	if err != nil {
		return fmt.Errorf("archive: compress: %w", err)
	}
	defer func() {
		if cerr := w.Close(); err == nil {
			err = cerr
		}
	}()

	if _, err := io.Copy(w, in); err != nil {
		return fmt.Errorf("archive: compress: %w", err)
	}
	return nil
}

// DecompressZstd streams in to out.
func DecompressZstd(in io.Reader, out io.Writer) (err error) {
	r, err := zstd.NewReader(in)
	if err != nil {
		return fmt.Errorf("archive: decompress: %w", err)
	}
	defer r.Close()

	if _, err := io.Copy(out, r); err != nil {
		return fmt.Errorf("archive: decompress: %w", err)
	}
	return nil
}

// CompressZstdFile compresses the file at srcPath to dstPath, the path used
// when packing an inner archive into its distributable `.tar.zst` sibling.
func CompressZstdFile(srcPath, dstPath string) (err error) {
	in, err := os.Open(srcPath)
	if err != nil {
		return fmt.Errorf("archive: compress: %w", err)
	}
	defer in.Close()

	out, err := os.Create(dstPath)
	if err != nil {
		return fmt.Errorf("archive: compress: %w", err)
	}
	defer func() {
		if cerr := out.Close(); err == nil {
			err = cerr
		}
	}()

	return CompressZstd(in, out)
}

// DecompressZstdFile decompresses the file at srcPath to dstPath, the
// streamed path used by the unpack pipeline for payloads too large to hold
// in memory.
func DecompressZstdFile(srcPath, dstPath string) (err error) {
	in, err := os.Open(srcPath)
	if err != nil {
		return fmt.Errorf("archive: decompress: %w", err)
	}
	defer in.Close()

	out, err := os.Create(dstPath)
	if err != nil {
		return fmt.Errorf("archive: decompress: %w", err)
	}
	defer func() {
		if cerr := out.Close(); err == nil {
			err = cerr
		}
	}()

	return DecompressZstd(in, out)
}

// FastDecompressZstd decompresses an in-memory zstd frame in one shot. The
// output buffer is pre-sized to max(5*len(data), 1 MiB) to avoid repeated
// reallocation for the common case of a highly-compressed small package.
func FastDecompressZstd(data []byte) ([]byte, error) {
	d, err := zstd.NewReader(nil)
	if err != nil {
		return nil, fmt.Errorf("archive: fast decompress: %w", err)
	}
	defer d.Close()

	capacity := len(data) * 5
	if capacity < minFastDecompressCapacity {
		capacity = minFastDecompressCapacity
	}

	out, err := d.DecodeAll(data, make([]byte, 0, capacity))
	if err != nil {
		return nil, fmt.Errorf("archive: fast decompress: %w", err)
	}
	return out, nil
}
