// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package ndn

import (
	"crypto/hmac"
	"crypto/sha256"
	"crypto/subtle"
	"fmt"

	"github.com/named-data/ndnd/std/security/signer"
)

// Signer fills in the signature of a Data packet and seals it. It is
// called after the name, MetaInfo and content are final.
type Signer interface {
	Sign(data *Data) error
}

// DigestSigner signs with a SHA-256 digest of the signed portion.
type DigestSigner struct{}

// Sign implements Signer.
func (DigestSigner) Sign(data *Data) error {
	return data.sign(signer.NewSha256Signer())
}

// KeyedSignerKeyLength is the secret length NewKeyedSigner requires.
const KeyedSignerKeyLength = 32

// KeyedSigner signs with HMAC-SHA256 under a shared secret.
type KeyedSigner struct {
	key []byte
}

// NewKeyedSigner returns a signer for the given key. The key must be
// exactly KeyedSignerKeyLength bytes.
func NewKeyedSigner(key []byte) (*KeyedSigner, error) {
	if len(key) != KeyedSignerKeyLength {
		return nil, fmt.Errorf("keyed signer: key must be %d bytes, got %d", KeyedSignerKeyLength, len(key))
	}
	return &KeyedSigner{key: append([]byte(nil), key...)}, nil
}

// Sign implements Signer.
func (s *KeyedSigner) Sign(data *Data) error {
	return data.sign(signer.NewHmacSigner(s.key))
}

// Verify reports whether data carries a valid signature under this key.
func (s *KeyedSigner) Verify(data *Data) bool {
	if data.Signature.Type != SignatureHmacWithSha256 || !data.sealed() {
		return false
	}
	mac := hmac.New(sha256.New, s.key)
	mac.Write(data.seal.signed)
	return hmac.Equal(mac.Sum(nil), data.Signature.Value)
}

// VerifyDigest reports whether a DigestSha256-signed packet is intact.
func VerifyDigest(data *Data) bool {
	if data.Signature.Type != SignatureDigestSha256 || !data.sealed() {
		return false
	}
	digest := sha256.Sum256(data.seal.signed)
	return subtle.ConstantTimeCompare(digest[:], data.Signature.Value) == 1
}
