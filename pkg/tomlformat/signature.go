// Copyright (C) 2020-2022  Ambassador Labs
//
// SPDX-License-Identifier: Apache-2.0

package tomlformat

import (
	"bytes"
	"fmt"
	"os"

	"github.com/BurntSushi/toml"
)

// SignatureManifest is the decoded form of signature.toml.
type SignatureManifest struct {
	RawNameStem string `toml:"raw_name_stem"`
	Signer      string `toml:"signer"`
	Signature   string `toml:"signature,omitempty"`
}

// Signed reports whether the package carries a signature. An absent
// signature field means the package is "unsigned"; it is not an
// error by itself.
func (m *SignatureManifest) Signed() bool { return m.Signature != "" }

// DecodeSignatureManifest strictly decodes signature.toml from data.
func DecodeSignatureManifest(data []byte) (*SignatureManifest, error) {
	var m SignatureManifest
	md, err := toml.Decode(string(data), &m)
	if err != nil {
		return nil, fmt.Errorf("tomlformat: signature.toml: %w", err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		return nil, fmt.Errorf("tomlformat: signature.toml: unrecognized key %q", undecoded[0].String())
	}
	if m.RawNameStem == "" {
		return nil, fmt.Errorf("tomlformat: signature.toml: raw_name_stem is required")
	}
	if m.Signer == "" {
		return nil, fmt.Errorf("tomlformat: signature.toml: signer is required")
	}
	return &m, nil
}

// LoadSignatureManifest reads and decodes signature.toml from path.
func LoadSignatureManifest(path string) (*SignatureManifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("tomlformat: signature.toml: %w", err)
	}
	return DecodeSignatureManifest(data)
}

// EncodeSignatureManifest serializes m back to TOML text, used by pack
// after computing the inner archive's signature.
func EncodeSignatureManifest(m *SignatureManifest) ([]byte, error) {
	var buf bytes.Buffer
	if err := toml.NewEncoder(&buf).Encode(m); err != nil {
		return nil, fmt.Errorf("tomlformat: signature.toml: %w", err)
	}
	return buf.Bytes(), nil
}
