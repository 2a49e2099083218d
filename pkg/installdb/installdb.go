// Copyright (C) 2021-2022  Ambassador Labs
//
// SPDX-License-Identifier: Apache-2.0

// Package installdb manages the on-disk installed-package layout:
// <base>/apps/<scope>/<name>/ holding the payload at its root plus a
// sibling .nep_context/ with the original inner package's manifests and
// workflows, and <base>/bin/ holding PATH shims.
package installdb

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/nep-pkg/nep/pkg/pkgformat"
	"github.com/nep-pkg/nep/pkg/tomlformat"
)

// DB is a handle on one installed-database root.
type DB struct {
	Base string
}

// New returns a handle on the installed database rooted at base.
func New(base string) *DB { return &DB{Base: base} }

// AppsDir is <base>/apps.
func (db *DB) AppsDir() string { return filepath.Join(db.Base, "apps") }

// BinDir is <base>/bin, where PATH shims live.
func (db *DB) BinDir() string { return filepath.Join(db.Base, "bin") }

// InstallDir is the installed directory for one package, <base>/apps/<scope>/<name>/.
func (db *DB) InstallDir(scope, name string) string {
	return filepath.Join(db.AppsDir(), scope, name)
}

// ContextDir is the .nep_context/ sibling directory inside an installed
// package's directory.
func (db *DB) ContextDir(scope, name string) string {
	return filepath.Join(db.InstallDir(scope, name), ".nep_context")
}

// ScopeDir is <base>/apps/<scope>/, the vendor namespace directory.
func (db *DB) ScopeDir(scope string) string {
	return filepath.Join(db.AppsDir(), scope)
}

// Meta is the parsed view InfoLocal returns: enough of the installed
// context to drive the orchestrator's reject-if-installed,
// reject-on-downgrade, and author-equality checks.
type Meta struct {
	Scope      string
	Name       string
	Version    string
	Manifest   *tomlformat.PackageManifest
	ContextDir string
}

// InfoLocal reads back an installed package's .nep_context/package.toml,
// the predicate the orchestrator's "already installed" / "downgrade"
// checks are built on. It returns an error if the
// package is not installed or its context is malformed — callers that only
// care about "is it installed" should check the error, not parse it.
func (db *DB) InfoLocal(scope, name string) (*Meta, error) {
	installDir := db.InstallDir(scope, name)
	ctxDir, err := pkgformat.InstalledValidator(installDir)
	if err != nil {
		return nil, fmt.Errorf("installdb: %s/%s: not installed: %w", scope, name, err)
	}
	manifest, err := tomlformat.LoadPackageManifest(filepath.Join(ctxDir, "package.toml"))
	if err != nil {
		return nil, fmt.Errorf("installdb: %s/%s: %w", scope, name, err)
	}
	return &Meta{
		Scope:      scope,
		Name:       name,
		Version:    manifest.Package.Version,
		Manifest:   manifest,
		ContextDir: ctxDir,
	}, nil
}

// List returns the Meta of every apps/<scope>/<name> directory under the
// database that validates as an installed package; directories that fail
// InfoLocal are skipped. Clean uses it as the set of legitimate installs.
func (db *DB) List() ([]Meta, error) {
	scopes, err := os.ReadDir(db.AppsDir())
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("installdb: list: %w", err)
	}

	var out []Meta
	for _, scopeEntry := range scopes {
		if !scopeEntry.IsDir() {
			continue
		}
		names, err := os.ReadDir(db.ScopeDir(scopeEntry.Name()))
		if err != nil {
			return nil, fmt.Errorf("installdb: list: %w", err)
		}
		for _, nameEntry := range names {
			if !nameEntry.IsDir() {
				continue
			}
			meta, err := db.InfoLocal(scopeEntry.Name(), nameEntry.Name())
			if err != nil {
				continue // not a legal installed package; clean's concern, not list's
			}
			out = append(out, *meta)
		}
	}
	return out, nil
}

// MovePayload relocates a freshly-unpacked payload directory to its final
// installed location, creating parent directories as needed.
func (db *DB) MovePayload(scope, name, payloadDir string) error {
	dst := db.InstallDir(scope, name)
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return fmt.Errorf("installdb: move payload: %w", err)
	}
	if err := os.RemoveAll(dst); err != nil {
		return fmt.Errorf("installdb: move payload: %w", err)
	}
	if err := os.Rename(payloadDir, dst); err != nil {
		return fmt.Errorf("installdb: move payload: %w", err)
	}
	return nil
}

// MoveContext relocates the leftover inner directory (manifests + workflows,
// payload already moved out) to its .nep_context/ sibling.
func (db *DB) MoveContext(scope, name, innerDir string) error {
	dst := db.ContextDir(scope, name)
	if err := os.RemoveAll(dst); err != nil {
		return fmt.Errorf("installdb: move context: %w", err)
	}
	if err := os.Rename(innerDir, dst); err != nil {
		return fmt.Errorf("installdb: move context: %w", err)
	}
	return nil
}

// RemoveInstall deletes an installed package's directory entirely, and
// its now-empty scope directory if that is the only
// thing left in it.
func (db *DB) RemoveInstall(scope, name string) error {
	if err := os.RemoveAll(db.InstallDir(scope, name)); err != nil {
		return fmt.Errorf("installdb: remove: %w", err)
	}
	return db.removeScopeDirIfEmpty(scope)
}

func (db *DB) removeScopeDirIfEmpty(scope string) error {
	entries, err := os.ReadDir(db.ScopeDir(scope))
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("installdb: remove scope dir: %w", err)
	}
	if len(entries) > 0 {
		return nil
	}
	if err := os.Remove(db.ScopeDir(scope)); err != nil {
		return fmt.Errorf("installdb: remove scope dir: %w", err)
	}
	return nil
}

// ShimPath is the PATH shim file for alias (optionally scope-qualified),
// <base>/bin/<alias>.cmd or <base>/bin/<scope>-<alias>.cmd.
func (db *DB) ShimPath(alias string) string {
	return filepath.Join(db.BinDir(), alias+".cmd")
}

// ShimPathScoped is the scope-qualified sibling shim, <base>/bin/<scope>-<alias>.cmd.
func (db *DB) ShimPathScoped(scope, alias string) string {
	return filepath.Join(db.BinDir(), scope+"-"+alias+".cmd")
}
