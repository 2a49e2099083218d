// Copyright (C) 2020-2022  Ambassador Labs
//
// SPDX-License-Identifier: Apache-2.0

//go:build unix

package blake3hash

import (
	"math"
	"os"

	"github.com/zeebo/blake3"
	"golang.org/x/sys/unix"
)

// maxMmapSize bounds mmap to addressable sizes on 32-bit hosts; on 64-bit
// hosts it's effectively unbounded.
const maxMmapSize = min(1<<40, math.MaxInt)

// hashMmap hashes f by memory-mapping its first size bytes. ok is false if
// mmap itself isn't usable here, in which case the caller falls back to the
// read-loop path.
func hashMmap(f *os.File, size int64) (d Digest, ok bool, err error) {
	data, err := unix.Mmap(int(f.Fd()), 0, int(size), unix.PROT_READ, unix.MAP_SHARED)
	if err != nil {
		return Digest{}, false, nil
	}
	defer unix.Munmap(data) //nolint:errcheck

	sum := blake3.Sum256(data)
	return Digest(sum), true, nil
}
