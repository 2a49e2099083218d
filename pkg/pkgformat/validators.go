// Copyright (C) 2020-2022  Ambassador Labs
//
// SPDX-License-Identifier: Apache-2.0

// Package pkgformat implements the pure-predicate shape validators for the
// outer archive, inner archive, and installed directory layouts, plus
// manifest_validator, which checks a package.toml-listed path
// against a directory and an in-flight mixedfs.FS overlay.
package pkgformat

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/nep-pkg/nep/pkg/mixedfs"
	"github.com/nep-pkg/nep/pkg/peversion"
	"github.com/nep-pkg/nep/pkg/tomlformat"
)

// InnerValidator checks that dir has the required shape of an unpacked
// inner package: package.toml and workflows/setup.toml must both exist.
func InnerValidator(dir string) error {
	if !fileExists(filepath.Join(dir, "package.toml")) {
		return fmt.Errorf("pkgformat: %s: missing package.toml", dir)
	}
	if !fileExists(filepath.Join(dir, "workflows", "setup.toml")) {
		return fmt.Errorf("pkgformat: %s: missing workflows/setup.toml", dir)
	}
	return nil
}

// OuterValidator checks that dir has the required shape of an unpacked
// outer package: signature.toml and "<stem>.tar.zst" must both exist. It
// returns the absolute path of the inner archive member.
func OuterValidator(dir, stem string) (string, error) {
	if !fileExists(filepath.Join(dir, "signature.toml")) {
		return "", fmt.Errorf("pkgformat: %s: missing signature.toml", dir)
	}
	innerPath := filepath.Join(dir, stem+".tar.zst")
	if !fileExists(innerPath) {
		return "", fmt.Errorf("pkgformat: %s: missing `%s.tar.zst`", dir, stem)
	}
	return innerPath, nil
}

// OuterHashmapValidator is OuterValidator's fast-path twin: it validates
// against an in-memory "name -> bytes" map (the bulk-read outer tar)
// instead of a directory on disk, returning the inner archive's bytes.
func OuterHashmapValidator(entries map[string][]byte, stem string) ([]byte, error) {
	if _, ok := entries["signature.toml"]; !ok {
		return nil, fmt.Errorf("pkgformat: missing signature.toml")
	}
	inner, ok := entries[stem+".tar.zst"]
	if !ok {
		return nil, fmt.Errorf("pkgformat: missing `%s.tar.zst`", stem)
	}
	return inner, nil
}

// InstalledValidator checks that dir holds an installed package layout:
// ".nep_context/" must exist and itself satisfy InnerValidator. It returns
// the absolute path of the context directory.
func InstalledValidator(dir string) (string, error) {
	ctxDir := filepath.Join(dir, ".nep_context")
	info, err := os.Stat(ctxDir)
	if err != nil || !info.IsDir() {
		return "", fmt.Errorf("pkgformat: %s: missing .nep_context/", dir)
	}
	if err := InnerValidator(ctxDir); err != nil {
		return "", fmt.Errorf("pkgformat: %s: %w", dir, err)
	}
	return ctxDir, nil
}

// ManifestValidator checks that every path in manifest resolves either on
// the real disk under payloadDir or in mfs. A missing path is a warning
// (reported via warn, which may be nil to discard warnings) when
// mfs.VarWarnManifest is set; otherwise it's a hard error.
func ManifestValidator(payloadDir string, manifest []string, mfs *mixedfs.FS, warn func(string)) error {
	for _, p := range manifest {
		if mfs.Exists(p) {
			continue
		}
		if _, err := os.Stat(filepath.Join(payloadDir, filepath.FromSlash(p))); err == nil {
			continue
		}
		if mfs.VarWarnManifest {
			if warn != nil {
				warn(fmt.Sprintf("pkgformat: manifest path %q not found (may be produced at runtime)", p))
			}
			continue
		}
		return fmt.Errorf("pkgformat: manifest path %q does not exist", p)
	}
	return nil
}

// MainProgramValidator checks the manifest's software.main_program
// invariant against a payload directory: when main_program names a
// relative path that exists on disk, its embedded executable version must
// be readable. A main_program that doesn't exist yet is not an error here
// (the payload may be produced by an expand workflow); an absolute
// main_program points outside the payload and is left to the host.
func MainProgramValidator(payloadDir string, m *tomlformat.PackageManifest) error {
	if m.Software == nil || m.Software.MainProgram == "" {
		return nil
	}
	mp := m.Software.MainProgram
	if filepath.IsAbs(mp) {
		return nil
	}
	path := filepath.Join(payloadDir, filepath.FromSlash(mp))
	if _, err := os.Stat(path); err != nil {
		return nil
	}
	if err := peversion.ReadFile(path); err != nil {
		return fmt.Errorf("pkgformat: failed to get main program (%q) file version: %w", mp, err)
	}
	return nil
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
