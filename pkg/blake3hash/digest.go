// Copyright (C) 2020-2022  Ambassador Labs
//
// SPDX-License-Identifier: Apache-2.0

// Package blake3hash computes content digests and verifies detached
// Ed25519 signatures over them.
//
// Signatures are taken over the ASCII-hex representation of the BLAKE3
// digest, not over the raw digest bytes: this preserves wire compatibility
// with the established package format, whose
// signer hashes, hex-encodes, and only then signs.
package blake3hash

import (
	"encoding/hex"
	"errors"
	"io"
	"os"

	"github.com/zeebo/blake3"
	"golang.org/x/sync/errgroup"
)

// mmapThreshold is the size at or above which File prefers a memory-mapped read
// over a buffered read loop.
const mmapThreshold = 16 * 1024

const readLoopSize = 64 * 1024

// Digest is a BLAKE3-256 digest, stored as its raw 32 bytes.
type Digest [32]byte

// String returns the lowercase ASCII-hex representation of the digest, the
// same representation that gets signed.
func (d Digest) String() string {
	return hex.EncodeToString(d[:])
}

// ParseDigest decodes a 64-character hex digest, as used by
// Download.hash_blake3 and by FileEntry hashes.
func ParseDigest(s string) (Digest, error) {
	var d Digest
	bs, err := hex.DecodeString(s)
	if err != nil {
		return d, &DigestError{Op: "parse", Err: err}
	}
	if len(bs) != len(d) {
		return d, &DigestError{Op: "parse", Err: errWrongLength}
	}
	copy(d[:], bs)
	return d, nil
}

// File computes the BLAKE3 digest of the file at path. Files at or above
// mmapThreshold are memory-mapped; smaller files are read in 64KiB chunks.
func File(path string) (Digest, error) {
	f, err := os.Open(path)
	if err != nil {
		return Digest{}, &DigestError{Op: "hash", Err: err}
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return Digest{}, &DigestError{Op: "hash", Err: err}
	}

	if info.Size() >= mmapThreshold && info.Size() <= maxMmapSize {
		if d, ok, err := hashMmap(f, info.Size()); ok {
			return d, err
		}
		// fall through to the read-loop path if mmap isn't available
	}

	h := blake3.New()
	buf := make([]byte, readLoopSize)
	if _, err := io.CopyBuffer(h, f, buf); err != nil {
		return Digest{}, &DigestError{Op: "hash", Err: err}
	}
	var d Digest
	copy(d[:], h.Sum(nil))
	return d, nil
}

// Fast hashes an in-memory buffer directly, for the unpack pipeline's bulk
// in-memory fast path.
func Fast(data []byte) Digest {
	sum := blake3.Sum256(data)
	return Digest(sum)
}

// FastMany hashes several in-memory buffers concurrently: rather than
// hashing each buffer serially, one goroutine per buffer runs via errgroup.
// The unpack pipeline does not call it; its fast strategy hashes the single
// inner archive with Fast.
func FastMany(buffers [][]byte) []Digest {
	digests := make([]Digest, len(buffers))
	var g errgroup.Group
	for i, data := range buffers {
		i, data := i, data
		g.Go(func() error {
			digests[i] = Fast(data)
			return nil
		})
	}
	_ = g.Wait() // Fast never errors; Wait only joins the goroutines
	return digests
}

// DigestError wraps a failure to hash or parse a digest.
type DigestError struct {
	Op  string
	Err error
}

func (e *DigestError) Error() string { return "blake3hash: " + e.Op + ": " + e.Err.Error() }
func (e *DigestError) Unwrap() error { return e.Err }

var errWrongLength = errors.New("digest must be 64 hex characters")
