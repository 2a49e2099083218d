// Copyright (C) 2021-2022  Ambassador Labs
//
// SPDX-License-Identifier: Apache-2.0

// Package keystore defines the abstract key material interface the signing
// pipeline requires: "give me my pair", "give me someone's public key by
// email". The host process supplies an implementation (OS keychain, a PEM
// file, an
// HSM); nep's core only ever consumes a Store, never a concrete format.
package keystore

import (
	"crypto/ed25519"
	"errors"
	"fmt"
)

// ErrNotFound is returned by PublicKey when no key is on file for an email,
// and by PrivateKey when the host has no signing identity configured.
var ErrNotFound = errors.New("keystore: no key on file")

// Store is the key material abstraction signing and verification are built
// on. Implementations are free to back PrivateKey with an OS
// keychain, a PEM file on disk, or anything else; nep's core never parses
// key material itself.
type Store interface {
	// PrivateKey returns the host's own signing identity, used by the pack
	// pipeline. Returns ErrNotFound if the host has no identity configured.
	PrivateKey() (ed25519.PrivateKey, error)

	// PublicKey returns the public key on file for signer's email, used by
	// the unpack pipeline to verify a package's signature. Returns
	// ErrNotFound if no key is on file for that email.
	PublicKey(email string) (ed25519.PublicKey, error)
}

// MapStore is a Store backed by an in-memory map, the shape tests use and
// the simplest possible host integration (a static trust list). It implements
// Store directly rather than through a file format, since key material
// formats are explicitly out of scope here.
type MapStore struct {
	Own     ed25519.PrivateKey
	Trusted map[string]ed25519.PublicKey
}

func (s *MapStore) PrivateKey() (ed25519.PrivateKey, error) {
	if len(s.Own) == 0 {
		return nil, fmt.Errorf("keystore: own private key: %w", ErrNotFound)
	}
	return s.Own, nil
}

func (s *MapStore) PublicKey(email string) (ed25519.PublicKey, error) {
	pub, ok := s.Trusted[email]
	if !ok {
		return nil, fmt.Errorf("keystore: %s: %w", email, ErrNotFound)
	}
	return pub, nil
}
