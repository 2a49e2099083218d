// Copyright (C) 2020-2022  Ambassador Labs
//
// SPDX-License-Identifier: Apache-2.0

// Package tomlformat decodes the three TOML manifests nep packages carry:
// package.toml, signature.toml, and workflow files. package.toml and
// signature.toml decoding is strict — an unrecognized key is an error, not
// a silently-ignored field — so a typo in a hand-edited manifest is caught
// at parse time rather than producing a package that silently misbehaves
// at install time. A workflow file's node body keys are kept in
// RawNode.Params for pkg/workflow's step decoder to check; top-level keys
// other than `node` are ignored.
package tomlformat

import (
	"bytes"
	"fmt"
	"net/url"
	"os"

	"github.com/BurntSushi/toml"

	"github.com/nep-pkg/nep/pkg/author"
)

// PackageManifest is the decoded form of package.toml.
type PackageManifest struct {
	FormatVersion int             `toml:"format_version"`
	Package       PackageSection  `toml:"package"`
	Software      *SoftwareSection `toml:"software"`
}

// PackageSection is package.toml's required [package] table.
type PackageSection struct {
	Name        string          `toml:"name"`
	Description string          `toml:"description"`
	Template    string          `toml:"template"`
	Version     string          `toml:"version"`
	Authors     []author.Author `toml:"authors"`
	License     string          `toml:"license,omitempty"`
}

// SoftwareSection is package.toml's optional [software] table.
type SoftwareSection struct {
	Scope        string   `toml:"scope"`
	Upstream     string   `toml:"upstream"`
	Category     string   `toml:"category"`
	Language     string   `toml:"language"`
	MainProgram  string   `toml:"main_program,omitempty"`
	Tags         []string `toml:"tags,omitempty"`
	RegistryID   string   `toml:"registry_entry_id,omitempty"`
}

// Signer returns the package's signer: the first author's email, which
// package.toml's invariants require to be present.
func (m *PackageManifest) Signer() (string, error) {
	if len(m.Package.Authors) == 0 {
		return "", fmt.Errorf("tomlformat: package.toml: authors must be non-empty")
	}
	first := m.Package.Authors[0]
	if first.Email == "" {
		return "", fmt.Errorf("tomlformat: package.toml: first author %q has no email (package signer)", first.Name)
	}
	return first.Email, nil
}

// DecodePackageManifest strictly decodes package.toml from data.
func DecodePackageManifest(data []byte) (*PackageManifest, error) {
	var m PackageManifest
	md, err := toml.Decode(string(data), &m)
	if err != nil {
		return nil, fmt.Errorf("tomlformat: package.toml: %w", err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		return nil, fmt.Errorf("tomlformat: package.toml: unrecognized key %q", undecoded[0].String())
	}
	if err := m.validate(); err != nil {
		return nil, err
	}
	return &m, nil
}

// LoadPackageManifest reads and decodes package.toml from path.
func LoadPackageManifest(path string) (*PackageManifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("tomlformat: package.toml: %w", err)
	}
	return DecodePackageManifest(data)
}

// EncodePackageManifest serializes m back to TOML text. Decoding the
// result reproduces m.
func EncodePackageManifest(m *PackageManifest) ([]byte, error) {
	if err := m.validate(); err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	if err := toml.NewEncoder(&buf).Encode(m); err != nil {
		return nil, fmt.Errorf("tomlformat: package.toml: %w", err)
	}
	return buf.Bytes(), nil
}

func (m *PackageManifest) validate() error {
	if len(m.Package.Authors) == 0 {
		return fmt.Errorf("tomlformat: package.toml: authors must be non-empty")
	}
	if _, err := m.Signer(); err != nil {
		return err
	}
	if m.Software != nil {
		u, err := url.Parse(m.Software.Upstream)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			return fmt.Errorf("tomlformat: package.toml: software.upstream should be a valid url, got %q", m.Software.Upstream)
		}
	}
	return nil
}
