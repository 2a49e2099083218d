// Copyright (C) 2021-2022  Ambassador Labs
//
// SPDX-License-Identifier: Apache-2.0

// Package unpack implements the unpack pipeline: it turns an
// outer .nep file (FromFile) or a developer source directory
// (FromSourceDir) into a verified inner directory and parsed package
// manifest, picking between a bulk in-memory strategy and a
// streamed-to-scratch-disk strategy for a .nep file depending on its size.
package unpack

import (
	"archive/tar"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/datawire/dlib/dlog"
	"github.com/google/uuid"

	"github.com/nep-pkg/nep/pkg/archive"
	"github.com/nep-pkg/nep/pkg/blake3hash"
	"github.com/nep-pkg/nep/pkg/keystore"
	"github.com/nep-pkg/nep/pkg/pkgformat"
	"github.com/nep-pkg/nep/pkg/tomlformat"
)

// defaultAvailMem is a conservative stand-in for "memory currently
// available to the process": the pack carries no OS memory-query library
// (gopsutil and friends are absent from every example repo, and adding one
// only to pick a threshold isn't justified), so availMemBytes is a fixed
// estimate, overridable through Options.ThresholdBytes for callers that
// know better.
const defaultAvailMem = 2 << 30 // 2 GiB

// maxFastThreshold caps the fast-path cutoff at 500 MiB.
const maxFastThreshold = 500 << 20

// defaultThreshold computes min(avail_mem/10, 500MiB).
func defaultThreshold() int64 {
	t := int64(defaultAvailMem / 10)
	if t > maxFastThreshold {
		t = maxFastThreshold
	}
	return t
}

// Options configures a single Unpack call.
type Options struct {
	// VerifySignature requests BLAKE3-signature verification of the inner
	// archive against the signer's key (looked up in Keys). When false,
	// the author/signer cross-check downgrades to a warning.
	VerifySignature bool
	Keys            keystore.Store

	// ThresholdBytes overrides the fast/streamed strategy cutoff; zero
	// means defaultThreshold().
	ThresholdBytes int64

	// ScratchRoot is the process-owned temp root scratch subdirectories
	// are allocated under; empty means os.TempDir().
	ScratchRoot string

	// Debug retains the scratch directory instead of removing it, for
	// post-mortem inspection.
	Debug bool

	// Offline allows unpacking a developer source directory in place, the
	// only input mode that bypasses the outer archive entirely.
	Offline bool
}

// Result is what the pipeline produces: an unpacked, validated inner
// directory and its parsed package manifest.
type Result struct {
	InnerDir  string
	Manifest  *tomlformat.PackageManifest
	Signature *tomlformat.SignatureManifest
	// ScratchDir is the pipeline's own scratch subdirectory, removed on
	// success unless Debug is set.
	ScratchDir string
}

// Failure tags the unpack failure taxonomy so callers (the
// orchestrator) can react without string-matching.
type Failure string

const (
	FailureBadArchive        Failure = "bad_archive"
	FailureMissingSignature  Failure = "missing_signature"
	FailureSignatureInvalid  Failure = "signature_invalid"
	FailureSignerMismatch    Failure = "signer_mismatch"
	FailureInnerInvalid      Failure = "inner_invalid"
	FailureManifestInvalid   Failure = "manifest_invalid"
)

// Error is an unpack failure tagged with its taxonomy bucket.
type Error struct {
	Kind Failure
	Err  error
}

func (e *Error) Error() string { return fmt.Sprintf("unpack: %s: %v", e.Kind, e.Err) }
func (e *Error) Unwrap() error { return e.Err }

func fail(kind Failure, err error) error { return &Error{Kind: kind, Err: err} }

// CacheDir is the default process-owned scratch root. It's a named,
// stable location (rather than a bare os.MkdirTemp) so that debug-mode
// retention has somewhere predictable to point the user at.
func CacheDir() string {
	return filepath.Join(os.TempDir(), "nep-cache")
}

// scratchDir allocates a fresh pipeline-owned subdirectory named by stem
// with a random suffix to disambiguate two racing installs of the same
// package.
func scratchDir(root, stem string) (string, error) {
	if root == "" {
		root = CacheDir()
	}
	dir := filepath.Join(root, "nep-unpack-"+stem+"-"+uuid.NewString())
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", err
	}
	return dir, nil
}

func cleanupScratch(ctx context.Context, dir string, debug bool) {
	if debug {
		dlog.Debugf(ctx, "unpack: retaining scratch directory %s (debug mode)", dir)
		return
	}
	if err := os.RemoveAll(dir); err != nil {
		dlog.Warnf(ctx, "unpack: failed to remove scratch directory %s: %v", dir, err)
	}
}

// FromSourceDir validates a developer source directory in place (offline
// mode only), then copies it to a scratch directory
// so the caller always receives a disposable InnerDir.
func FromSourceDir(ctx context.Context, srcDir string, opts Options) (*Result, error) {
	if !opts.Offline {
		return nil, fail(FailureBadArchive, errors.New("source directory input requires offline mode"))
	}
	if err := pkgformat.InnerValidator(srcDir); err != nil {
		return nil, fail(FailureInnerInvalid, err)
	}

	stem := filepath.Base(srcDir)
	scratch, err := scratchDir(opts.ScratchRoot, stem)
	if err != nil {
		return nil, fail(FailureBadArchive, err)
	}
	innerDir := filepath.Join(scratch, "inner")
	if err := copyTree(srcDir, innerDir); err != nil {
		cleanupScratch(ctx, scratch, opts.Debug)
		return nil, fail(FailureBadArchive, err)
	}

	manifest, err := tomlformat.LoadPackageManifest(filepath.Join(innerDir, "package.toml"))
	if err != nil {
		cleanupScratch(ctx, scratch, opts.Debug)
		return nil, fail(FailureManifestInvalid, err)
	}
	if err := pkgformat.MainProgramValidator(filepath.Join(innerDir, manifest.Package.Name), manifest); err != nil {
		cleanupScratch(ctx, scratch, opts.Debug)
		return nil, fail(FailureManifestInvalid, err)
	}

	return &Result{InnerDir: innerDir, Manifest: manifest, ScratchDir: scratch}, nil
}

// FromFile unpacks an outer .nep file at path, picking the fast in-memory
// strategy when its size is at or under the threshold and the streamed
// strategy otherwise.
func FromFile(ctx context.Context, path string, opts Options) (result *Result, err error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fail(FailureBadArchive, err)
	}

	threshold := opts.ThresholdBytes
	if threshold <= 0 {
		threshold = defaultThreshold()
	}

	if info.Size() <= threshold {
		dlog.Debugf(ctx, "unpack: %s: %d bytes <= %d threshold, using fast strategy", path, info.Size(), threshold)
		return fastUnpack(ctx, path, opts)
	}
	dlog.Debugf(ctx, "unpack: %s: %d bytes > %d threshold, using streamed strategy", path, info.Size(), threshold)
	return streamedUnpack(ctx, path, opts)
}

// fastUnpack is the at-or-under-threshold strategy: read
// the outer tar fully into memory as a name->bytes map, validate, fast
// in-memory verify, bulk zstd-decompress, then extract to disk.
func fastUnpack(ctx context.Context, path string, opts Options) (*Result, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fail(FailureBadArchive, err)
	}

	entries, err := readTarToMap(raw)
	if err != nil {
		return nil, fail(FailureBadArchive, err)
	}

	sigData, ok := entries["signature.toml"]
	if !ok {
		return nil, fail(FailureMissingSignature, errors.New("missing signature.toml"))
	}
	sig, err := tomlformat.DecodeSignatureManifest(sigData)
	if err != nil {
		return nil, fail(FailureMissingSignature, err)
	}

	innerBytes, err := pkgformat.OuterHashmapValidator(entries, sig.RawNameStem)
	if err != nil {
		return nil, fail(FailureBadArchive, err)
	}

	if err := verifyFast(innerBytes, sig, opts); err != nil {
		return nil, err
	}

	innerTar, err := archive.FastDecompressZstd(innerBytes)
	if err != nil {
		return nil, fail(FailureBadArchive, err)
	}

	stem := sig.RawNameStem
	scratch, err := scratchDir(opts.ScratchRoot, stem)
	if err != nil {
		return nil, fail(FailureBadArchive, err)
	}
	innerDir := filepath.Join(scratch, "inner")
	if err := extractTarBytes(innerTar, innerDir); err != nil {
		cleanupScratch(ctx, scratch, opts.Debug)
		return nil, fail(FailureBadArchive, err)
	}

	return finish(ctx, scratch, innerDir, sig, opts)
}

// streamedUnpack is the over-threshold strategy: everything goes through
// scratch files on disk instead of memory.
func streamedUnpack(ctx context.Context, path string, opts Options) (*Result, error) {
	stem := filepath.Base(path)
	scratch, err := scratchDir(opts.ScratchRoot, stem)
	if err != nil {
		return nil, fail(FailureBadArchive, err)
	}

	outerDir := filepath.Join(scratch, "outer")
	if err := archive.ReleaseTar(path, outerDir); err != nil {
		cleanupScratch(ctx, scratch, opts.Debug)
		return nil, fail(FailureBadArchive, err)
	}

	sig, err := tomlformat.LoadSignatureManifest(filepath.Join(outerDir, "signature.toml"))
	if err != nil {
		cleanupScratch(ctx, scratch, opts.Debug)
		return nil, fail(FailureMissingSignature, err)
	}

	innerArchivePath, err := pkgformat.OuterValidator(outerDir, sig.RawNameStem)
	if err != nil {
		cleanupScratch(ctx, scratch, opts.Debug)
		return nil, fail(FailureBadArchive, err)
	}

	if opts.VerifySignature {
		if err := verifyStreamed(innerArchivePath, sig, opts); err != nil {
			cleanupScratch(ctx, scratch, opts.Debug)
			return nil, err
		}
	}

	innerTarPath := filepath.Join(scratch, "inner.tar")
	if err := archive.DecompressZstdFile(innerArchivePath, innerTarPath); err != nil {
		cleanupScratch(ctx, scratch, opts.Debug)
		return nil, fail(FailureBadArchive, err)
	}

	innerDir := filepath.Join(scratch, "inner")
	if err := archive.ReleaseTar(innerTarPath, innerDir); err != nil {
		cleanupScratch(ctx, scratch, opts.Debug)
		return nil, fail(FailureBadArchive, err)
	}

	return finish(ctx, scratch, innerDir, sig, opts)
}

func verifyFast(innerBytes []byte, sig *tomlformat.SignatureManifest, opts Options) error {
	if !opts.VerifySignature {
		return nil
	}
	if !sig.Signed() {
		return fail(FailureMissingSignature, errors.New("package is unsigned"))
	}
	pub, err := opts.Keys.PublicKey(sig.Signer)
	if err != nil {
		return fail(FailureSignatureInvalid, err)
	}
	ok, err := blake3hash.FastVerify(innerBytes, pub, sig.Signature)
	if err != nil {
		return fail(FailureSignatureInvalid, err)
	}
	if !ok {
		return fail(FailureSignatureInvalid, errors.New("signature does not match inner archive"))
	}
	return nil
}

func verifyStreamed(innerArchivePath string, sig *tomlformat.SignatureManifest, opts Options) error {
	if !sig.Signed() {
		return fail(FailureMissingSignature, errors.New("package is unsigned"))
	}
	pub, err := opts.Keys.PublicKey(sig.Signer)
	if err != nil {
		return fail(FailureSignatureInvalid, err)
	}
	ok, err := blake3hash.VerifyFile(innerArchivePath, pub, sig.Signature)
	if err != nil {
		return fail(FailureSignatureInvalid, err)
	}
	if !ok {
		return fail(FailureSignatureInvalid, errors.New("signature does not match inner archive"))
	}
	return nil
}

// finish validates the extracted inner directory, parses package.toml, and
// cross-checks the author/signer invariant. Signature
// verification disabled downgrades the cross-check to a warning rather
// than a failure.
func finish(ctx context.Context, scratch, innerDir string, sig *tomlformat.SignatureManifest, opts Options) (*Result, error) {
	if err := pkgformat.InnerValidator(innerDir); err != nil {
		cleanupScratch(ctx, scratch, opts.Debug)
		return nil, fail(FailureInnerInvalid, err)
	}

	manifest, err := tomlformat.LoadPackageManifest(filepath.Join(innerDir, "package.toml"))
	if err != nil {
		cleanupScratch(ctx, scratch, opts.Debug)
		return nil, fail(FailureManifestInvalid, err)
	}

	payloadDir := filepath.Join(innerDir, manifest.Package.Name)
	if err := pkgformat.MainProgramValidator(payloadDir, manifest); err != nil {
		cleanupScratch(ctx, scratch, opts.Debug)
		return nil, fail(FailureManifestInvalid, err)
	}

	signerEmail, err := manifest.Signer()
	if err != nil {
		cleanupScratch(ctx, scratch, opts.Debug)
		return nil, fail(FailureManifestInvalid, err)
	}
	if signerEmail != sig.Signer {
		msg := fmt.Errorf("signature.toml signer %q does not match first author %q", sig.Signer, signerEmail)
		if opts.VerifySignature {
			cleanupScratch(ctx, scratch, opts.Debug)
			return nil, fail(FailureSignerMismatch, msg)
		}
		dlog.Warnf(ctx, "unpack: %v (signature verification disabled)", msg)
	}

	return &Result{InnerDir: innerDir, Manifest: manifest, Signature: sig, ScratchDir: scratch}, nil
}

// readTarToMap reads every regular file member of an uncompressed tar
// stream into a name->bytes map, the outer archive's fast in-memory
// representation.
func readTarToMap(raw []byte) (map[string][]byte, error) {
	entries := make(map[string][]byte)
	tr := tar.NewReader(bytes.NewReader(raw))
	for {
		hdr, err := tr.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		if hdr.Typeflag != tar.TypeReg {
			continue
		}
		data, err := io.ReadAll(tr)
		if err != nil {
			return nil, err
		}
		entries[filepath.ToSlash(hdr.Name)] = data
	}
	return entries, nil
}

// extractTarBytes extracts an in-memory tar stream to dstDir, the
// in-memory twin of archive.ReleaseTar for the fast path's already-decoded
// byte slice.
func extractTarBytes(raw []byte, dstDir string) error {
	tmp, err := os.CreateTemp("", "nep-fast-unpack-*.tar")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(raw); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return archive.ReleaseTar(tmp.Name(), dstDir)
}

// copyTree recursively copies srcDir's contents to dstDir, used by
// FromSourceDir so offline-mode unpacking always hands back a disposable
// scratch copy rather than the developer's live source tree.
func copyTree(srcDir, dstDir string) error {
	return filepath.Walk(srcDir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(srcDir, path)
		if err != nil {
			return err
		}
		dst := filepath.Join(dstDir, rel)
		if info.IsDir() {
			return os.MkdirAll(dst, 0o755)
		}
		if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
			return err
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return err
		}
		return os.WriteFile(dst, data, info.Mode().Perm())
	})
}
