// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package transform

import (
	"bytes"
	"fmt"
	"io"
	"os"

	"filippo.io/age"

	"github.com/bureau-foundation/cnl/lib/namespace"
)

// ageHeader starts every binary age file.
var ageHeader = []byte("age-encryption.org/v1\n")

// AgeEncrypter is a producer Stage that encrypts payloads to a set of
// age recipients.
type AgeEncrypter struct {
	recipients []age.Recipient
}

// NewAgeEncrypter parses recipient strings (age1... public keys). At
// least one is required.
func NewAgeEncrypter(recipientKeys ...string) (*AgeEncrypter, error) {
	if len(recipientKeys) == 0 {
		return nil, fmt.Errorf("at least one recipient is required")
	}
	recipients := make([]age.Recipient, 0, len(recipientKeys))
	for _, key := range recipientKeys {
		recipient, err := age.ParseX25519Recipient(key)
		if err != nil {
			return nil, fmt.Errorf("parsing recipient %q: %w", key, err)
		}
		recipients = append(recipients, recipient)
	}
	return &AgeEncrypter{recipients: recipients}, nil
}

// LoadAgeEncrypter reads recipients from a recipients file, one per
// line, as written by age-keygen -y.
func LoadAgeEncrypter(path string) (*AgeEncrypter, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening recipients file: %w", err)
	}
	defer file.Close()
	recipients, err := age.ParseRecipients(file)
	if err != nil {
		return nil, fmt.Errorf("parsing recipients file %s: %w", path, err)
	}
	return &AgeEncrypter{recipients: recipients}, nil
}

// Encode implements Stage.
func (e *AgeEncrypter) Encode(payload []byte) ([]byte, error) {
	var ciphertext bytes.Buffer
	writer, err := age.Encrypt(&ciphertext, e.recipients...)
	if err != nil {
		return nil, fmt.Errorf("creating age encryptor: %w", err)
	}
	if _, err := writer.Write(payload); err != nil {
		return nil, fmt.Errorf("writing payload to age encryptor: %w", err)
	}
	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("finalizing age encryption: %w", err)
	}
	return ciphertext.Bytes(), nil
}

// Detect implements Stage.
func (*AgeEncrypter) Detect(content []byte) bool { return bytes.HasPrefix(content, ageHeader) }

// Decrypts implements Stage.
func (*AgeEncrypter) Decrypts() bool { return true }

// Decode implements Stage. An encrypter holds no identities, so it can
// never decrypt.
func (*AgeEncrypter) Decode([]byte) ([]byte, error) {
	return nil, fmt.Errorf("%w: no age identity configured", namespace.ErrDecryption)
}

// AgeDecrypter is a consumer Stage that decrypts age ciphertext with a
// set of identities.
type AgeDecrypter struct {
	identities []age.Identity
}

// NewAgeDecrypter parses identity strings (AGE-SECRET-KEY-1...).
func NewAgeDecrypter(identityKeys ...string) (*AgeDecrypter, error) {
	if len(identityKeys) == 0 {
		return nil, fmt.Errorf("at least one identity is required")
	}
	identities := make([]age.Identity, 0, len(identityKeys))
	for _, key := range identityKeys {
		identity, err := age.ParseX25519Identity(key)
		if err != nil {
			return nil, fmt.Errorf("parsing identity: %w", err)
		}
		identities = append(identities, identity)
	}
	return &AgeDecrypter{identities: identities}, nil
}

// LoadAgeDecrypter reads identities from an identity file as written
// by age-keygen.
func LoadAgeDecrypter(path string) (*AgeDecrypter, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening identity file: %w", err)
	}
	defer file.Close()
	identities, err := age.ParseIdentities(file)
	if err != nil {
		return nil, fmt.Errorf("parsing identity file %s: %w", path, err)
	}
	return &AgeDecrypter{identities: identities}, nil
}

// Encode implements Stage. Decrypters are consumer-only and pass
// payloads through unchanged.
func (*AgeDecrypter) Encode(payload []byte) ([]byte, error) { return payload, nil }

// Detect implements Stage.
func (*AgeDecrypter) Detect(content []byte) bool { return bytes.HasPrefix(content, ageHeader) }

// Decrypts implements Stage.
func (*AgeDecrypter) Decrypts() bool { return true }

// Decode implements Stage. Any failure is a decryption failure.
func (d *AgeDecrypter) Decode(content []byte) ([]byte, error) {
	reader, err := age.Decrypt(bytes.NewReader(content), d.identities...)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", namespace.ErrDecryption, err)
	}
	plaintext, err := io.ReadAll(reader)
	if err != nil {
		return nil, fmt.Errorf("%w: reading plaintext: %v", namespace.ErrDecryption, err)
	}
	return plaintext, nil
}
