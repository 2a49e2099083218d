// Copyright (C) 2020-2022  Ambassador Labs
//
// SPDX-License-Identifier: Apache-2.0

package tomlformat_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nep-pkg/nep/pkg/tomlformat"
)

const validPackageTOML = `
format_version = 1

[package]
name = "demo"
description = "a demo package"
template = "generic"
version = "1.0.0.0"

[[package.authors]]
name = "Alice"
email = "alice@example.com"

[software]
scope = "alice"
upstream = "https://example.com/demo"
category = "utility"
language = "go"
`

func TestDecodePackageManifest(t *testing.T) {
	m, err := tomlformat.DecodePackageManifest([]byte(validPackageTOML))
	require.NoError(t, err)
	assert.Equal(t, "demo", m.Package.Name)
	assert.Equal(t, "1.0.0.0", m.Package.Version)
	require.NotNil(t, m.Software)
	assert.Equal(t, "alice", m.Software.Scope)

	signer, err := m.Signer()
	require.NoError(t, err)
	assert.Equal(t, "alice@example.com", signer)
}

func TestDecodePackageManifestRejectsUnknownKey(t *testing.T) {
	_, err := tomlformat.DecodePackageManifest([]byte(validPackageTOML + "\nbogus_key = 1\n"))
	assert.Error(t, err)
}

func TestDecodePackageManifestRejectsEmptyAuthors(t *testing.T) {
	doc := `
format_version = 1
[package]
name = "demo"
description = "d"
template = "generic"
version = "1.0.0.0"
`
	_, err := tomlformat.DecodePackageManifest([]byte(doc))
	assert.Error(t, err)
}

func TestDecodePackageManifestRejectsAuthorWithoutEmail(t *testing.T) {
	doc := `
format_version = 1
[package]
name = "demo"
description = "d"
template = "generic"
version = "1.0.0.0"

[[package.authors]]
name = "Alice"
`
	_, err := tomlformat.DecodePackageManifest([]byte(doc))
	assert.Error(t, err)
}

func TestDecodeSignatureManifestUnsigned(t *testing.T) {
	doc := `
raw_name_stem = "demo-1.0.0.0"
signer = "alice@example.com"
`
	m, err := tomlformat.DecodeSignatureManifest([]byte(doc))
	require.NoError(t, err)
	assert.False(t, m.Signed())
}

func TestDecodeSignatureManifestSigned(t *testing.T) {
	doc := `
raw_name_stem = "demo-1.0.0.0"
signer = "alice@example.com"
signature = "c2lnbmF0dXJl"
`
	m, err := tomlformat.DecodeSignatureManifest([]byte(doc))
	require.NoError(t, err)
	assert.True(t, m.Signed())
}

func TestDecodeSignatureManifestRequiresRawNameStem(t *testing.T) {
	_, err := tomlformat.DecodeSignatureManifest([]byte(`signer = "a@b.com"`))
	assert.Error(t, err)
}

const sampleWorkflowTOML = `
[[node]]
name = "link shortcut"
step = "Link"
source_file = "bin/demo.exe"
target = "desktop"

[[node]]
name = "run installer"
step = "Execute"
c_if = "${ExitCode} == 0"
command = "installer.exe --silent"
wait = "sync"
`

func TestDecodeWorkflowPreservesOrderAndParams(t *testing.T) {
	w, err := tomlformat.DecodeWorkflow([]byte(sampleWorkflowTOML))
	require.NoError(t, err)
	require.Len(t, w.Node, 2)

	assert.Equal(t, "Link", w.Node[0].Step)
	assert.Equal(t, "bin/demo.exe", w.Node[0].Params["source_file"])

	assert.Equal(t, "Execute", w.Node[1].Step)
	assert.Equal(t, "${ExitCode} == 0", w.Node[1].CIf)
	assert.Equal(t, "installer.exe --silent", w.Node[1].Params["command"])
}

func TestDecodeWorkflowRejectsMissingStep(t *testing.T) {
	_, err := tomlformat.DecodeWorkflow([]byte(`
[[node]]
name = "oops"
`))
	assert.Error(t, err)
}

func TestPackageManifestSerializeRoundTrip(t *testing.T) {
	m, err := tomlformat.DecodePackageManifest([]byte(validPackageTOML))
	require.NoError(t, err)

	data, err := tomlformat.EncodePackageManifest(m)
	require.NoError(t, err)

	back, err := tomlformat.DecodePackageManifest(data)
	require.NoError(t, err)
	assert.Equal(t, m, back)
}

func TestSignatureManifestSerializeRoundTrip(t *testing.T) {
	m := &tomlformat.SignatureManifest{
		RawNameStem: "demo-1.0.0.0",
		Signer:      "alice@example.com",
		Signature:   "c2lnbmF0dXJl",
	}
	data, err := tomlformat.EncodeSignatureManifest(m)
	require.NoError(t, err)

	back, err := tomlformat.DecodeSignatureManifest(data)
	require.NoError(t, err)
	assert.Equal(t, m, back)
}

func TestDecodePackageManifestRejectsNonURLUpstream(t *testing.T) {
	for _, upstream := range []string{"", "not a url", "example.com/demo", "ftp://example.com/demo"} {
		doc := `
format_version = 1
[package]
name = "demo"
description = "d"
template = "generic"
version = "1.0.0.0"

[[package.authors]]
name = "Alice"
email = "alice@example.com"

[software]
scope = "alice"
upstream = "` + upstream + `"
category = "utility"
language = "go"
`
		_, err := tomlformat.DecodePackageManifest([]byte(doc))
		assert.Error(t, err, "upstream %q must be rejected", upstream)
	}
}
