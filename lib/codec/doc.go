// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package codec provides the library's standard CBOR encoding
// configuration.
//
// CBOR is the format of the structured payloads the library carries
// inside Data packets: the delegation set of a _latest packet and the
// ContentMetaInfo of a _meta packet. The packets themselves are NDN
// TLV (see lib/ndn). The encoder uses Core Deterministic Encoding so
// that re-encoding a payload reproduces the signed bytes.
//
//	data, err := codec.Marshal(value)
//	err = codec.Unmarshal(data, &value)
//
// Payload types use `cbor` struct tags with short keys.
package codec
