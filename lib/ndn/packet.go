// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package ndn

import (
	"bytes"
	"errors"
	"time"

	ndnlib "github.com/named-data/ndnd/std/ndn"
	spec "github.com/named-data/ndnd/std/ndn/spec_2022"
)

// ErrMalformed is returned for any name, component, or packet that
// does not decode. Callers treat it as untrusted input and drop it.
var ErrMalformed = errors.New("malformed packet")

// DefaultInterestLifetime is used when an Interest carries no lifetime.
const DefaultInterestLifetime = 4 * time.Second

// ContentType is the MetaInfo content type of a Data packet.
type ContentType = ndnlib.ContentType

const (
	ContentTypeBlob = ndnlib.ContentTypeBlob
	ContentTypeLink = ndnlib.ContentTypeLink
	ContentTypeKey  = ndnlib.ContentTypeKey
	ContentTypeNack = ndnlib.ContentTypeNack
)

// MetaInfo carries the producer-declared metadata of a Data packet.
type MetaInfo struct {
	ContentType ContentType

	// FreshnessPeriod is how long after arrival the packet may be
	// served to an Interest with MustBeFresh. Zero means never fresh.
	// The wire carries whole milliseconds.
	FreshnessPeriod time.Duration

	// FinalBlockID names the last segment of a segmented object.
	FinalBlockID *Component
}

// Equal reports whether two MetaInfo values encode identically.
func (m MetaInfo) Equal(other MetaInfo) bool {
	if m.ContentType != other.ContentType || m.FreshnessPeriod != other.FreshnessPeriod {
		return false
	}
	if m.FinalBlockID == nil || other.FinalBlockID == nil {
		return m.FinalBlockID == nil && other.FinalBlockID == nil
	}
	return m.FinalBlockID.Equal(*other.FinalBlockID)
}

// SignatureType identifies how a Data packet was signed.
type SignatureType = ndnlib.SigType

const (
	// SignatureDigestSha256 is a bare SHA-256 digest of the signed
	// portion. It provides integrity, not authenticity.
	SignatureDigestSha256 = ndnlib.SignatureDigestSha256

	// SignatureHmacWithSha256 is an HMAC-SHA256 over the signed
	// portion, keyed by a secret shared between producer and consumer.
	SignatureHmacWithSha256 = ndnlib.SignatureHmacWithSha256
)

// Signature is the signature info and value of a Data packet.
type Signature struct {
	Type       SignatureType
	KeyLocator Name
	Value      []byte
}

// Data is a named, signed packet of content.
//
// Signing or decoding seals the packet: it keeps the TLV encoding and
// the signed portion alongside the fields. Changing a field afterwards
// breaks the seal, so the old signature no longer verifies and the
// packet is encoded afresh.
type Data struct {
	Name      Name
	MetaInfo  MetaInfo
	Content   []byte
	Signature Signature

	seal *seal
}

// seal is the encoding of a Data packet and the field values it was
// made from.
type seal struct {
	wire     []byte
	signed   []byte
	name     Name
	metaInfo MetaInfo
	content  []byte
}

// sealed reports whether the fields still match the kept encoding.
func (d *Data) sealed() bool {
	return d.seal != nil &&
		d.Name.Equal(d.seal.name) &&
		d.MetaInfo.Equal(d.seal.metaInfo) &&
		bytes.Equal(d.Content, d.seal.content)
}

// Interest is a request for a Data packet by name.
type Interest struct {
	Name        Name
	CanBePrefix bool
	MustBeFresh bool
	Lifetime    time.Duration
	Nonce       uint32
}

// EffectiveLifetime returns the Interest lifetime, or
// DefaultInterestLifetime when none is set.
func (i *Interest) EffectiveLifetime() time.Duration {
	if i.Lifetime <= 0 {
		return DefaultInterestLifetime
	}
	return i.Lifetime
}

// MatchesData reports whether data satisfies the Interest. The Data
// name must equal the Interest name, or be under it when CanBePrefix
// is set. An Interest whose last component is an implicit digest
// matches only the Data whose full name equals it. MustBeFresh
// requires a positive freshness period.
func (i *Interest) MatchesData(data *Data) bool {
	if i.MustBeFresh && data.MetaInfo.FreshnessPeriod <= 0 {
		return false
	}

	if len(i.Name) > 0 && IsImplicitSha256Digest(i.Name.At(-1)) {
		if len(i.Name) != len(data.Name)+1 {
			return false
		}
		fullName, err := data.FullName()
		if err != nil {
			return false
		}
		return i.Name.Equal(fullName)
	}

	if i.CanBePrefix {
		return i.Name.IsPrefix(data.Name)
	}
	return i.Name.Equal(data.Name)
}

// NackReason explains why a forwarder rejected an Interest. The values
// are the NDNLPv2 reason codes.
type NackReason uint64

const (
	NackNone       = NackReason(spec.NackReasonNone)
	NackCongestion = NackReason(spec.NackReasonCongestion)
	NackDuplicate  = NackReason(spec.NackReasonDuplicate)
	NackNoRoute    = NackReason(spec.NackReasonNoRoute)
)

// String returns the reason's name.
func (r NackReason) String() string {
	switch r {
	case NackCongestion:
		return "congestion"
	case NackDuplicate:
		return "duplicate"
	case NackNoRoute:
		return "no-route"
	default:
		return "none"
	}
}

// Nack is a network negative acknowledgement for an Interest.
type Nack struct {
	Interest Interest
	Reason   NackReason
}
