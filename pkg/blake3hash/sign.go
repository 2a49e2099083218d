// Copyright (C) 2020-2022  Ambassador Labs
//
// SPDX-License-Identifier: Apache-2.0

package blake3hash

import (
	"crypto/ed25519"
	"encoding/base64"
	"errors"
)

// SignError is returned by Sign and Verify; its Op names the operation that
// failed ("sign" for a malformed private key, "verify" for a signature that
// is not valid base64 or not 64 bytes long). A well-formed signature that
// simply does not match is reported by Verify as false with a nil error.
type SignError struct {
	Op  string
	Err error
}

func (e *SignError) Error() string { return "blake3hash: " + e.Op + ": " + e.Err.Error() }
func (e *SignError) Unwrap() error { return e.Err }

var errBadSignatureLength = errors.New("signature is not a valid base64-encoded ed25519 signature")

// Sign signs the hex representation of digest with priv, returning the
// standard-base64-encoded 64-byte signature recorded as signature.toml's
// `signature` field.
//
// Per the format's invariant, the thing that gets signed is the ASCII hex
// text of the digest, not the 32 raw digest bytes.
func Sign(digest Digest, priv ed25519.PrivateKey) (string, error) {
	if len(priv) != ed25519.PrivateKeySize {
		return "", &SignError{Op: "sign", Err: errors.New("malformed ed25519 private key")}
	}
	sig := ed25519.Sign(priv, []byte(digest.String()))
	return base64.StdEncoding.EncodeToString(sig), nil
}

// Verify checks a base64-encoded Ed25519 signature over digest's hex
// representation against signer's public key.
func Verify(digest Digest, signer ed25519.PublicKey, sigB64 string) (bool, error) {
	sig, err := base64.StdEncoding.DecodeString(sigB64)
	if err != nil {
		return false, &SignError{Op: "verify", Err: errBadSignatureLength}
	}
	if len(sig) != ed25519.SignatureSize {
		return false, &SignError{Op: "verify", Err: errBadSignatureLength}
	}
	return ed25519.Verify(signer, []byte(digest.String()), sig), nil
}

// SignFile hashes the file at path with File and signs the resulting
// digest, the streamed path used when packing.
func SignFile(path string, priv ed25519.PrivateKey) (string, error) {
	digest, err := File(path)
	if err != nil {
		return "", err
	}
	return Sign(digest, priv)
}

// VerifyFile hashes the file at path with File and verifies sigB64 against
// it, the streamed path used by the unpack pipeline.
func VerifyFile(path string, signer ed25519.PublicKey, sigB64 string) (bool, error) {
	digest, err := File(path)
	if err != nil {
		return false, err
	}
	return Verify(digest, signer, sigB64)
}

// FastVerify verifies sigB64 against the digest of an in-memory buffer, the
// bulk in-memory path used by the unpack pipeline's fast strategy.
func FastVerify(data []byte, signer ed25519.PublicKey, sigB64 string) (bool, error) {
	return Verify(Fast(data), signer, sigB64)
}
