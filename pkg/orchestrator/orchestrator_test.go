// Copyright (C) 2021-2022  Ambassador Labs
//
// SPDX-License-Identifier: Apache-2.0

package orchestrator_test

import (
	"context"
	"crypto/ed25519"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/nep-pkg/nep/pkg/flags"
	"github.com/nep-pkg/nep/pkg/installdb"
	"github.com/nep-pkg/nep/pkg/keystore"
	"github.com/nep-pkg/nep/pkg/orchestrator"
)

const setupToml = `[[node]]
name = "log"
step = "Log"
msg = "installed"
`

// buildSource writes a minimal, valid pack-source tree under dir/src:
// package.toml, workflows/setup.toml, and a payload directory named after
// the package holding a single marker file.
func buildSource(t *testing.T, dir, name, version, email string) string {
	return buildSourceWith(t, dir, name, version, email,
		map[string]string{"setup.toml": setupToml},
		map[string]string{"app.bin": "payload"})
}

// buildSourceWith is buildSource with explicit workflow files and payload
// contents, for the expandable/update scenarios.
func buildSourceWith(t *testing.T, dir, name, version, email string, workflows, payload map[string]string) string {
	t.Helper()
	src := filepath.Join(dir, "src")
	require.NoError(t, os.MkdirAll(filepath.Join(src, "workflows"), 0o755))
	require.NoError(t, os.MkdirAll(filepath.Join(src, name), 0o755))
	for file, content := range payload {
		require.NoError(t, os.WriteFile(filepath.Join(src, name, file), []byte(content), 0o644))
	}
	for file, content := range workflows {
		require.NoError(t, os.WriteFile(filepath.Join(src, "workflows", file), []byte(content), 0o644))
	}

	packageToml := "format_version = 1\n\n[package]\n" +
		"name = \"" + name + "\"\n" +
		"description = \"test app\"\n" +
		"template = \"flat\"\n" +
		"version = \"" + version + "\"\n" +
		"authors = [{ name = \"Tester\", email = \"" + email + "\" }]\n\n" +
		"[software]\n" +
		"scope = \"Acme\"\n" +
		"upstream = \"https://example.com\"\n" +
		"category = \"tool\"\n" +
		"language = \"go\"\n"
	require.NoError(t, os.WriteFile(filepath.Join(src, "package.toml"), []byte(packageToml), 0o644))
	return src
}

func newTestOrchestrator(t *testing.T, priv ed25519.PrivateKey, trusted map[string]ed25519.PublicKey) *orchestrator.Orchestrator {
	t.Helper()
	base := t.TempDir()
	scratch := t.TempDir()
	return &orchestrator.Orchestrator{
		DB:          installdb.New(base),
		Keys:        &keystore.MapStore{Own: priv, Trusted: trusted},
		ScratchRoot: scratch,
	}
}

func packPackage(t *testing.T, o *orchestrator.Orchestrator, name, version, email string) string {
	t.Helper()
	root := t.TempDir()
	src := buildSource(t, root, name, version, email)
	out := filepath.Join(root, name+"_"+version+".nep")
	require.NoError(t, o.Pack(context.Background(), src, out))
	return out
}

// TestInstallSignedPackage: a signed, packed, freshly-built package
// installs its payload and context under apps/<scope>/<name>/.
func TestInstallSignedPackage(t *testing.T) {
	flags.WithTable(flags.Table{Confirm: true}, func() {
		pub, priv, err := ed25519.GenerateKey(nil)
		require.NoError(t, err)
		o := newTestOrchestrator(t, priv, map[string]ed25519.PublicKey{"tester@example.com": pub})

		pkgFile := packPackage(t, o, "Widget", "1.0.0.0", "tester@example.com")
		require.NoError(t, o.Install(context.Background(), pkgFile))

		installDir := o.DB.InstallDir("Acme", "Widget")
		require.FileExists(t, filepath.Join(installDir, "app.bin"))
		require.FileExists(t, filepath.Join(installDir, ".nep_context", "package.toml"))

		meta, err := o.DB.InfoLocal("Acme", "Widget")
		require.NoError(t, err)
		require.Equal(t, "1.0.0.0", meta.Version)
	})
}

// TestRejectDowngradeOnUpdate: updating to a package
// whose version is not newer than what's installed is rejected and leaves
// the installed directory unchanged.
func TestRejectDowngradeOnUpdate(t *testing.T) {
	flags.WithTable(flags.Table{Confirm: true}, func() {
		pub, priv, err := ed25519.GenerateKey(nil)
		require.NoError(t, err)
		o := newTestOrchestrator(t, priv, map[string]ed25519.PublicKey{"tester@example.com": pub})

		newest := packPackage(t, o, "Widget", "1.75.4.2", "tester@example.com")
		require.NoError(t, o.Install(context.Background(), newest))

		older := packPackage(t, o, "Widget", "1.75.4.0", "tester@example.com")
		err = o.Update(context.Background(), older)
		require.Error(t, err)
		require.ErrorContains(t, err, "up to date")

		meta, err := o.DB.InfoLocal("Acme", "Widget")
		require.NoError(t, err)
		require.Equal(t, "1.75.4.2", meta.Version)
	})
}

// TestCleanRemovesGarbage: clean removes app
// directories that don't validate as installed, and empty scope dirs, but
// leaves a legitimately installed package alone.
func TestCleanRemovesGarbage(t *testing.T) {
	flags.WithTable(flags.Table{Confirm: true, QA: true}, func() {
		pub, priv, err := ed25519.GenerateKey(nil)
		require.NoError(t, err)
		o := newTestOrchestrator(t, priv, map[string]ed25519.PublicKey{"tester@example.com": pub})

		pkgFile := packPackage(t, o, "Widget", "1.0.0.0", "tester@example.com")
		require.NoError(t, o.Install(context.Background(), pkgFile))

		require.NoError(t, os.MkdirAll(o.DB.ScopeDir("FakeScopeFoo"), 0o755))
		require.NoError(t, os.MkdirAll(filepath.Join(o.DB.ScopeDir("FakeScopeBar"), "Dism++"), 0o755))
		require.NoError(t, os.MkdirAll(o.DB.BinDir(), 0o755))
		require.NoError(t, os.WriteFile(filepath.Join(o.DB.BinDir(), "invalid.cmd"), []byte("x"), 0o644))

		require.NoError(t, o.Clean(context.Background()))

		require.NoDirExists(t, o.DB.ScopeDir("FakeScopeFoo"))
		require.NoDirExists(t, filepath.Join(o.DB.ScopeDir("FakeScopeBar"), "Dism++"))
		require.NoFileExists(t, filepath.Join(o.DB.BinDir(), "invalid.cmd"))
		require.FileExists(t, filepath.Join(o.DB.InstallDir("Acme", "Widget"), "app.bin"))
	})
}

const pathSetupToml = `[[node]]
name = "entrance"
step = "Path"
record = "app.bin"
`

// TestUninstallLeavesNothingBehind checks the install-then-uninstall
// invariant: the installed directory is gone, the scope directory is gone,
// and no PATH shim the setup workflow created survives.
func TestUninstallLeavesNothingBehind(t *testing.T) {
	flags.WithTable(flags.Table{Confirm: true}, func() {
		pub, priv, err := ed25519.GenerateKey(nil)
		require.NoError(t, err)
		o := newTestOrchestrator(t, priv, map[string]ed25519.PublicKey{"tester@example.com": pub})

		root := t.TempDir()
		src := buildSourceWith(t, root, "Widget", "1.0.0.0", "tester@example.com",
			map[string]string{"setup.toml": pathSetupToml},
			map[string]string{"app.bin": "payload"})
		pkgFile := filepath.Join(root, "Widget_1.0.0.0.nep")
		require.NoError(t, o.Pack(context.Background(), src, pkgFile))

		require.NoError(t, o.Install(context.Background(), pkgFile))
		require.FileExists(t, filepath.Join(o.DB.BinDir(), "app.cmd"))
		require.FileExists(t, filepath.Join(o.DB.BinDir(), "Acme-app.cmd"))

		require.NoError(t, o.Uninstall(context.Background(), "Acme", "Widget"))
		require.NoDirExists(t, o.DB.InstallDir("Acme", "Widget"))
		require.NoDirExists(t, o.DB.ScopeDir("Acme"))
		require.NoFileExists(t, filepath.Join(o.DB.BinDir(), "app.cmd"))
		require.NoFileExists(t, filepath.Join(o.DB.BinDir(), "Acme-app.cmd"))
	})
}

// TestAuthorChangeForcesReinstall: when the fresh
// package's first author differs from the installed one, update runs a
// full uninstall followed by a fresh install rather than an in-place
// payload swap.
func TestAuthorChangeForcesReinstall(t *testing.T) {
	flags.WithTable(flags.Table{Confirm: true}, func() {
		pub, priv, err := ed25519.GenerateKey(nil)
		require.NoError(t, err)
		trusted := map[string]ed25519.PublicKey{
			"tester@example.com": pub,
			"other@example.com":  pub,
		}
		o := newTestOrchestrator(t, priv, trusted)

		original := packPackage(t, o, "Widget", "1.0.0.0", "tester@example.com")
		require.NoError(t, o.Install(context.Background(), original))

		fresh := packPackage(t, o, "Widget", "2.0.0.0", "other@example.com")
		require.NoError(t, o.Update(context.Background(), fresh))

		meta, err := o.DB.InfoLocal("Acme", "Widget")
		require.NoError(t, err)
		require.Equal(t, "2.0.0.0", meta.Version)
		require.Equal(t, "other@example.com", meta.Manifest.Package.Authors[0].Email)
	})
}

const expandToml = `[[node]]
name = "materialize"
step = "New"
at = "Code.bin"
`

// TestExpandableUpdate (with the network fetch
// swapped for a New step, keeping the test hermetic): an update package
// whose payload is delivered incomplete runs its expand workflow before
// setup, and the expand workflow itself never lands in .nep_context.
func TestExpandableUpdate(t *testing.T) {
	flags.WithTable(flags.Table{Confirm: true}, func() {
		pub, priv, err := ed25519.GenerateKey(nil)
		require.NoError(t, err)
		o := newTestOrchestrator(t, priv, map[string]ed25519.PublicKey{"tester@example.com": pub})

		v1 := packPackage(t, o, "Widget", "1.0.0.0", "tester@example.com")
		require.NoError(t, o.Install(context.Background(), v1))

		// Simulate the payload losing a file the update must restore.
		installDir := o.DB.InstallDir("Acme", "Widget")
		require.NoError(t, os.Remove(filepath.Join(installDir, "app.bin")))

		root := t.TempDir()
		src := buildSourceWith(t, root, "Widget", "1.1.0.0", "tester@example.com",
			map[string]string{"setup.toml": setupToml, "expand.toml": expandToml},
			map[string]string{"keep.txt": "still here"})
		v2 := filepath.Join(root, "Widget_1.1.0.0.nep")
		require.NoError(t, o.Pack(context.Background(), src, v2))

		require.NoError(t, o.Update(context.Background(), v2))

		require.FileExists(t, filepath.Join(installDir, "keep.txt"))
		require.FileExists(t, filepath.Join(installDir, "Code.bin"))
		require.NoFileExists(t, filepath.Join(installDir, ".nep_context", "workflows", "expand.toml"))

		meta, err := o.DB.InfoLocal("Acme", "Widget")
		require.NoError(t, err)
		require.Equal(t, "1.1.0.0", meta.Version)
	})
}
