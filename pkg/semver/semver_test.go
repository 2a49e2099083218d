// Copyright (C) 2020-2022  Ambassador Labs
//
// SPDX-License-Identifier: Apache-2.0

package semver_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nep-pkg/nep/pkg/semver"
)

func mustParse(t *testing.T, s string) semver.Version {
	t.Helper()
	v, err := semver.Parse(s)
	require.NoError(t, err)
	return v
}

func TestParseStringRoundTrip(t *testing.T) {
	v := mustParse(t, "1.2.3.4")
	assert.Equal(t, "1.2.3.4", v.String())
	assert.Equal(t, semver.New(1, 2, 3, 4), v)
}

func TestParseRejectsWrongArity(t *testing.T) {
	_, err := semver.Parse("1.2.3")
	assert.Error(t, err)
	_, err = semver.Parse("1.2.3.4.5")
	assert.Error(t, err)
}

func TestParseRejectsNonNumeric(t *testing.T) {
	_, err := semver.Parse("1.2.3.x")
	assert.Error(t, err)
}

func TestCompareOrdersTripleBeforeReserved(t *testing.T) {
	v1 := mustParse(t, "1.2.3.4")
	v2 := mustParse(t, "1.3.3.1")
	assert.True(t, v1.Less(v2), "lower minor must sort below higher minor regardless of reserved")

	v1 = mustParse(t, "9.114.2.1")
	v2 = mustParse(t, "10.0.0.0")
	assert.True(t, v1.Less(v2))

	v1 = mustParse(t, "114.514.1919.810")
	v2 = mustParse(t, "114.514.1919.810")
	assert.True(t, v1.Equal(v2))

	v1 = mustParse(t, "1.2.3.10")
	v2 = mustParse(t, "1.2.3.2")
	assert.True(t, v1.GreaterOrEqual(v2), "reserved field breaks ties numerically, not lexicographically as text")
}

func TestCompareReservedOnlyBreaksTies(t *testing.T) {
	lower := mustParse(t, "1.2.3.99")
	higher := mustParse(t, "1.2.4.0")
	assert.True(t, lower.Less(higher), "reserved must never outweigh the patch field")
}
