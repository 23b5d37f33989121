// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"bytes"
	"fmt"
	"os"

	"github.com/zeebo/blake3"

	"github.com/bureau-foundation/cnl/lib/config"
	"github.com/bureau-foundation/cnl/lib/ndn"
	"github.com/bureau-foundation/cnl/lib/transform"
)

// contentType labels every object the producer publishes.
const contentType = "text/plain; charset=utf-8"

// signingKeyContext separates packet signing keys from any other key
// derived from the same secret.
const signingKeyContext = "cnl 2026 packet signing key v1"

// role selects which side of an asymmetric stage to build.
type role int

const (
	producerRole role = iota
	consumerRole
)

// buildChain assembles the content transform chain from the stream
// configuration: compression first, then sealing or age encryption.
func buildChain(stream config.StreamConfig, side role) (transform.Chain, error) {
	tag, err := transform.ParseCompressionTag(stream.Compression)
	if err != nil {
		return nil, err
	}
	chain := transform.Chain{transform.Compressor{Tag: tag, ContentType: contentType}}

	switch {
	case stream.SecretFile != "":
		secret, err := readSecret(stream.SecretFile)
		if err != nil {
			return nil, err
		}
		sealer, err := transform.NewSealer(secret)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", stream.SecretFile, err)
		}
		chain = append(chain, sealer)
	case side == producerRole && stream.RecipientsFile != "":
		encrypter, err := transform.LoadAgeEncrypter(stream.RecipientsFile)
		if err != nil {
			return nil, err
		}
		chain = append(chain, encrypter)
	case side == consumerRole && stream.IdentityFile != "":
		decrypter, err := transform.LoadAgeDecrypter(stream.IdentityFile)
		if err != nil {
			return nil, err
		}
		chain = append(chain, decrypter)
	}
	return chain, nil
}

// buildSigner returns a keyed signer derived from the signing key
// file and the stream prefix, or nil when none is configured and
// packets carry a digest.
func buildSigner(stream config.StreamConfig, prefix ndn.Name) (*ndn.KeyedSigner, error) {
	if stream.SigningKeyFile == "" {
		return nil, nil
	}
	secret, err := readSecret(stream.SigningKeyFile)
	if err != nil {
		return nil, err
	}
	material := append(secret, 0)
	material = append(material, prefix.Bytes()...)
	key := make([]byte, ndn.KeyedSignerKeyLength)
	blake3.DeriveKey(signingKeyContext, material, key)
	return ndn.NewKeyedSigner(key)
}

func readSecret(path string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading secret: %w", err)
	}
	secret := bytes.TrimSpace(data)
	if len(secret) == 0 {
		return nil, fmt.Errorf("secret file %s is empty", path)
	}
	return secret, nil
}
