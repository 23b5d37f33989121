// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package transform provides content transformers and encoders for
// namespace trees.
//
// A [Chain] of [Stage] values is installed on a namespace node with
// SetEncoder (producer side) and SetTransformer (consumer side). Each
// stage wraps payloads in a self-describing envelope:
//
//   - [Compressor]: LZ4 or zstd, chosen per payload by
//     [SelectCompression] when the tag is [CompressionAuto].
//   - [Sealer]: XChaCha20-Poly1305 under an HKDF-derived group key.
//   - [AgeEncrypter] and [AgeDecrypter]: public-key encryption to age
//     X25519 recipients.
//
// Decryption failures wrap namespace.ErrDecryption, which moves the
// receiving node to the DecryptionError state. Any other stage failure
// leaves the node in its last progress state.
package transform
