// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package ndn is the packet model the rest of the library is written
// against: hierarchical names, Interest and Data packets, network
// nacks, and the delegation set used as a redirect. It is a thin layer
// over the ndnd encoding and NDN 2022 packet spec.
//
// [Name] and [Component] are the ndnd encoding types. Typed components
// (sequence number, version, segment, timestamp, implicit SHA-256
// digest) use the NonNegativeInteger encoding, so canonical ordering
// puts numeric components in numeric order. [ComponentKey] is the
// comparable form used as a map key:
//
//	name := ndn.MustParseName("/demo/stream/seq=4/_meta")
//	sequence, err := ndn.SequenceNumber(name.At(-2))
//
// Packets are plain structs. [EncodeData], [EncodeInterest] and
// [EncodePacket] produce NDN TLV; a Nack travels as an NDNLPv2 link
// packet around the rejected Interest. [ReadPacket] frames one TLV off
// a byte stream. A Data packet's implicit digest is the SHA-256 of its
// TLV encoding; see [Data.FullName]. [Interest.MatchesData] applies the
// exact-name, CanBePrefix, implicit-digest and MustBeFresh rules a
// forwarder and a producer cache both need.
//
// Signing is thin: [DigestSigner] for integrity and [KeyedSigner]
// (HMAC-SHA256) for a shared-secret deployment. Trust schemas and
// certificate chains are outside this package.
package ndn
