// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package transform

import (
	"bytes"
	"crypto/rand"
	"crypto/sha256"
	"fmt"
	"io"

	"golang.org/x/crypto/chacha20poly1305"
	"golang.org/x/crypto/hkdf"

	"github.com/bureau-foundation/cnl/lib/namespace"
)

// SealedVersion is the format version carried in every sealed
// envelope. It is authenticated as part of the AAD.
const SealedVersion byte = 0x01

// sealedMagic starts every sealed envelope:
//
//	"CNLS" | version (1 byte) | nonce (24 bytes) | ciphertext+tag
var sealedMagic = []byte("CNLS")

// SealedOverhead is the per-payload size increase of a Sealer.
const SealedOverhead = 4 + 1 + chacha20poly1305.NonceSizeX + chacha20poly1305.Overhead

// hkdfInfoContent separates the content key from any other key derived
// from the same shared secret. Changing it invalidates all sealed
// content.
var hkdfInfoContent = []byte("cnl.content.v1")

// Sealer is a symmetric Stage for groups that share a secret: it seals
// payloads with XChaCha20-Poly1305 under a key derived from the secret
// with HKDF-SHA256. Both producer and consumer use the same Sealer.
type Sealer struct {
	key []byte
}

// NewSealer derives the content key from sharedSecret. The secret
// should carry at least 32 bytes of entropy.
func NewSealer(sharedSecret []byte) (*Sealer, error) {
	if len(sharedSecret) == 0 {
		return nil, fmt.Errorf("shared secret is empty")
	}
	reader := hkdf.New(sha256.New, sharedSecret, nil, hkdfInfoContent)
	key := make([]byte, chacha20poly1305.KeySize)
	if _, err := io.ReadFull(reader, key); err != nil {
		return nil, fmt.Errorf("HKDF key derivation failed: %w", err)
	}
	return &Sealer{key: key}, nil
}

func sealedAAD() []byte {
	aad := make([]byte, 0, len(sealedMagic)+1)
	aad = append(aad, sealedMagic...)
	return append(aad, SealedVersion)
}

// Encode implements Stage.
func (s *Sealer) Encode(payload []byte) ([]byte, error) {
	aead, err := chacha20poly1305.NewX(s.key)
	if err != nil {
		return nil, fmt.Errorf("creating XChaCha20-Poly1305 cipher: %w", err)
	}

	var nonce [chacha20poly1305.NonceSizeX]byte
	if _, err := io.ReadFull(rand.Reader, nonce[:]); err != nil {
		return nil, fmt.Errorf("generating random nonce: %w", err)
	}

	output := make([]byte, 0, SealedOverhead+len(payload))
	output = append(output, sealedMagic...)
	output = append(output, SealedVersion)
	output = append(output, nonce[:]...)
	return aead.Seal(output, nonce[:], payload, sealedAAD()), nil
}

// Detect implements Stage.
func (*Sealer) Detect(content []byte) bool { return bytes.HasPrefix(content, sealedMagic) }

// Decrypts implements Stage.
func (*Sealer) Decrypts() bool { return true }

// Decode implements Stage. Every failure wraps namespace.ErrDecryption.
func (s *Sealer) Decode(content []byte) ([]byte, error) {
	if len(content) < SealedOverhead {
		return nil, fmt.Errorf("%w: sealed envelope is %d bytes, minimum is %d",
			namespace.ErrDecryption, len(content), SealedOverhead)
	}
	version := content[len(sealedMagic)]
	if version != SealedVersion {
		return nil, fmt.Errorf("%w: sealed envelope version %d is not supported",
			namespace.ErrDecryption, version)
	}
	nonceStart := len(sealedMagic) + 1
	nonce := content[nonceStart : nonceStart+chacha20poly1305.NonceSizeX]
	ciphertext := content[nonceStart+chacha20poly1305.NonceSizeX:]

	aead, err := chacha20poly1305.NewX(s.key)
	if err != nil {
		return nil, fmt.Errorf("creating XChaCha20-Poly1305 cipher: %w", err)
	}
	plaintext, err := aead.Open(nil, nonce, ciphertext, sealedAAD())
	if err != nil {
		return nil, fmt.Errorf("%w: %v", namespace.ErrDecryption, err)
	}
	return plaintext, nil
}
