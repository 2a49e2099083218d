// Copyright (C) 2021-2022  Ambassador Labs
//
// SPDX-License-Identifier: Apache-2.0

package unpack_test

import (
	"context"
	"crypto/ed25519"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nep-pkg/nep/pkg/archive"
	"github.com/nep-pkg/nep/pkg/blake3hash"
	"github.com/nep-pkg/nep/pkg/keystore"
	"github.com/nep-pkg/nep/pkg/tomlformat"
	"github.com/nep-pkg/nep/pkg/unpack"
)

const testEmail = "tester@example.com"

const testPackageTOML = `format_version = 1

[package]
name = "Widget"
description = "test app"
template = "flat"
version = "1.0.0.0"
authors = [{ name = "Tester", email = "` + testEmail + `" }]
`

const testSetupTOML = `[[node]]
name = "log"
step = "Log"
msg = "installed"
`

// buildNep hand-assembles a .nep file the way pack does: inner tree ->
// tar -> zstd, signature.toml alongside, both tarred into the outer file.
// priv == nil produces an unsigned package; signer overrides the recorded
// signer email when non-empty.
func buildNep(t *testing.T, priv ed25519.PrivateKey, signer string) string {
	t.Helper()
	root := t.TempDir()

	inner := filepath.Join(root, "inner")
	require.NoError(t, os.MkdirAll(filepath.Join(inner, "workflows"), 0o755))
	require.NoError(t, os.MkdirAll(filepath.Join(inner, "Widget"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(inner, "package.toml"), []byte(testPackageTOML), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(inner, "workflows", "setup.toml"), []byte(testSetupTOML), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(inner, "Widget", "app.bin"), []byte("payload"), 0o644))

	const stem = "Widget_1.0.0.0"
	innerTar := filepath.Join(root, stem+".tar")
	require.NoError(t, archive.PackTar(inner, innerTar))

	outer := filepath.Join(root, "outer")
	require.NoError(t, os.MkdirAll(outer, 0o755))
	innerArchive := filepath.Join(outer, stem+".tar.zst")
	require.NoError(t, archive.CompressZstdFile(innerTar, innerArchive))

	if signer == "" {
		signer = testEmail
	}
	sig := &tomlformat.SignatureManifest{RawNameStem: stem, Signer: signer}
	if priv != nil {
		sigB64, err := blake3hash.SignFile(innerArchive, priv)
		require.NoError(t, err)
		sig.Signature = sigB64
	}
	sigData, err := tomlformat.EncodeSignatureManifest(sig)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(outer, "signature.toml"), sigData, 0o644))

	nepPath := filepath.Join(root, stem+".nep")
	require.NoError(t, archive.PackTar(outer, nepPath))
	return nepPath
}

func testOpts(t *testing.T, verify bool, trusted map[string]ed25519.PublicKey) unpack.Options {
	t.Helper()
	return unpack.Options{
		VerifySignature: verify,
		Keys:            &keystore.MapStore{Trusted: trusted},
		ScratchRoot:     t.TempDir(),
	}
}

func requireResult(t *testing.T, res *unpack.Result) {
	t.Helper()
	assert.Equal(t, "Widget", res.Manifest.Package.Name)
	assert.Equal(t, "1.0.0.0", res.Manifest.Package.Version)
	data, err := os.ReadFile(filepath.Join(res.InnerDir, "Widget", "app.bin"))
	require.NoError(t, err)
	assert.Equal(t, []byte("payload"), data)
}

func TestSignedPackageRoundTrip(t *testing.T) {
	pub, priv, err := ed25519.GenerateKey(nil)
	require.NoError(t, err)
	nepPath := buildNep(t, priv, "")

	res, err := unpack.FromFile(context.Background(), nepPath, testOpts(t, true, map[string]ed25519.PublicKey{testEmail: pub}))
	require.NoError(t, err)
	requireResult(t, res)
}

// The fast in-memory strategy and the streamed strategy must agree on any
// package both can handle; forcing the threshold to 1 byte drives the same
// file down the streamed path.
func TestFastAndStreamedStrategiesAgree(t *testing.T) {
	pub, priv, err := ed25519.GenerateKey(nil)
	require.NoError(t, err)
	nepPath := buildNep(t, priv, "")
	trusted := map[string]ed25519.PublicKey{testEmail: pub}

	fast, err := unpack.FromFile(context.Background(), nepPath, testOpts(t, true, trusted))
	require.NoError(t, err)

	streamedOpts := testOpts(t, true, trusted)
	streamedOpts.ThresholdBytes = 1
	streamed, err := unpack.FromFile(context.Background(), nepPath, streamedOpts)
	require.NoError(t, err)

	assert.Equal(t, fast.Manifest, streamed.Manifest)
	requireResult(t, fast)
	requireResult(t, streamed)
}

func TestUnsignedPackageRejectedWhenVerifying(t *testing.T) {
	nepPath := buildNep(t, nil, "")

	_, err := unpack.FromFile(context.Background(), nepPath, testOpts(t, true, nil))
	require.Error(t, err)
	var uerr *unpack.Error
	require.True(t, errors.As(err, &uerr))
	assert.Equal(t, unpack.FailureMissingSignature, uerr.Kind)
}

func TestUnsignedPackageAcceptedWithoutVerifying(t *testing.T) {
	nepPath := buildNep(t, nil, "")

	res, err := unpack.FromFile(context.Background(), nepPath, testOpts(t, false, nil))
	require.NoError(t, err)
	requireResult(t, res)
}

func TestTamperedSignatureRejected(t *testing.T) {
	pub, _, err := ed25519.GenerateKey(nil)
	require.NoError(t, err)
	_, otherPriv, err := ed25519.GenerateKey(nil)
	require.NoError(t, err)
	nepPath := buildNep(t, otherPriv, "") // signed with a key pub doesn't match

	_, err = unpack.FromFile(context.Background(), nepPath, testOpts(t, true, map[string]ed25519.PublicKey{testEmail: pub}))
	require.Error(t, err)
	var uerr *unpack.Error
	require.True(t, errors.As(err, &uerr))
	assert.Equal(t, unpack.FailureSignatureInvalid, uerr.Kind)
}

func TestSignerAuthorMismatch(t *testing.T) {
	const otherEmail = "other@example.com"
	otherPub, otherPriv, err := ed25519.GenerateKey(nil)
	require.NoError(t, err)
	nepPath := buildNep(t, otherPriv, otherEmail)

	// Strict: a valid signature from the wrong identity is still a
	// mismatch against the manifest's first author.
	_, err = unpack.FromFile(context.Background(), nepPath, testOpts(t, true, map[string]ed25519.PublicKey{otherEmail: otherPub}))
	require.Error(t, err)
	var uerr *unpack.Error
	require.True(t, errors.As(err, &uerr))
	assert.Equal(t, unpack.FailureSignerMismatch, uerr.Kind)

	// With verification disabled the cross-check downgrades to a warning.
	res, err := unpack.FromFile(context.Background(), nepPath, testOpts(t, false, nil))
	require.NoError(t, err)
	requireResult(t, res)
}

// Outer tar holding only signature.toml: the error must name the missing
// inner member.
func TestOuterMissingInnerArchive(t *testing.T) {
	root := t.TempDir()
	outer := filepath.Join(root, "outer")
	require.NoError(t, os.MkdirAll(outer, 0o755))

	sig := &tomlformat.SignatureManifest{RawNameStem: "Widget_1.0.0.0", Signer: testEmail}
	sigData, err := tomlformat.EncodeSignatureManifest(sig)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(outer, "signature.toml"), sigData, 0o644))

	nepPath := filepath.Join(root, "broken.nep")
	require.NoError(t, archive.PackTar(outer, nepPath))

	_, err = unpack.FromFile(context.Background(), nepPath, testOpts(t, false, nil))
	require.Error(t, err)
	assert.ErrorContains(t, err, "Widget_1.0.0.0.tar.zst")
}

func TestFromSourceDirRequiresOffline(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, "workflows"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(root, "package.toml"), []byte(testPackageTOML), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(root, "workflows", "setup.toml"), []byte(testSetupTOML), 0o644))

	_, err := unpack.FromSourceDir(context.Background(), root, unpack.Options{ScratchRoot: t.TempDir()})
	require.Error(t, err)

	res, err := unpack.FromSourceDir(context.Background(), root, unpack.Options{Offline: true, ScratchRoot: t.TempDir()})
	require.NoError(t, err)
	assert.Equal(t, "Widget", res.Manifest.Package.Name)
	assert.NotEqual(t, root, res.InnerDir, "source dir must be copied to scratch, not handed back live")
}
