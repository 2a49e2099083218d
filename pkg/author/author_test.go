// Copyright (C) 2020-2022  Ambassador Labs
//
// SPDX-License-Identifier: Apache-2.0

package author_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/nep-pkg/nep/pkg/author"
)

func TestEqualByEmailWhenBothCarryOne(t *testing.T) {
	a := author.Author{Name: "Alice", Email: "alice@example.com"}
	b := author.Author{Name: "Alice Liddell", Email: "alice@example.com"}
	assert.True(t, a.Equal(b), "matching signer email must be identity even across a display-name change")
}

func TestNotEqualByDifferingEmail(t *testing.T) {
	a := author.Author{Name: "Alice", Email: "alice@example.com"}
	b := author.Author{Name: "Alice", Email: "alice@other.example.com"}
	assert.False(t, a.Equal(b), "differing emails must not be papered over by a matching name")
}

func TestEqualByNameWhenEitherLacksEmail(t *testing.T) {
	a := author.Author{Name: "Bob"}
	b := author.Author{Name: "Bob", Email: "bob@example.com"}
	assert.True(t, a.Equal(b))

	c := author.Author{Name: "Bob"}
	assert.True(t, a.Equal(c))
}

func TestNotEqualByDifferingName(t *testing.T) {
	a := author.Author{Name: "Bob"}
	b := author.Author{Name: "Robert"}
	assert.False(t, a.Equal(b))
}
