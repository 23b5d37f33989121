// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package object

import (
	"bytes"
	"errors"
	"fmt"
	"time"

	"github.com/zeebo/blake3"

	"github.com/bureau-foundation/cnl/lib/codec"
	"github.com/bureau-foundation/cnl/lib/ndn"
)

// NameComponentMeta is the child of an object namespace holding its
// ContentMetaInfo packet.
const NameComponentMeta = "_meta"

// MetaComponent is NameComponentMeta as a name component.
var MetaComponent = ndn.NewGenericComponent(NameComponentMeta)

// ErrDigestMismatch is returned when an assembled object does not
// match the size or digest announced in its ContentMetaInfo.
var ErrDigestMismatch = errors.New("object digest mismatch")

// ContentMetaInfo describes a generalized object. It is the content of
// the object's _meta packet.
type ContentMetaInfo struct {
	// ContentType is a MIME type for the object bytes.
	ContentType string `cbor:"t"`

	// Timestamp is the production time in Unix milliseconds.
	Timestamp int64 `cbor:"ts"`

	// HasSegments is true when the object is carried in seg=N
	// children. Otherwise the object is Other itself.
	HasSegments bool `cbor:"s,omitempty"`

	// Other is application information about a segmented object, or
	// the whole object when HasSegments is false.
	Other []byte `cbor:"o,omitempty"`

	// Size is the object length in bytes.
	Size uint64 `cbor:"z"`

	// Digest is the BLAKE3-256 hash of the object bytes.
	Digest []byte `cbor:"d,omitempty"`
}

// Time returns Timestamp as a time.Time.
func (m *ContentMetaInfo) Time() time.Time { return time.UnixMilli(m.Timestamp) }

// Encode returns the CBOR encoding.
func (m *ContentMetaInfo) Encode() ([]byte, error) { return codec.Marshal(m) }

// DecodeContentMetaInfo decodes a _meta packet payload.
func DecodeContentMetaInfo(wire []byte) (*ContentMetaInfo, error) {
	var meta ContentMetaInfo
	if err := codec.Unmarshal(wire, &meta); err != nil {
		return nil, fmt.Errorf("%w: content meta info: %v", ndn.ErrMalformed, err)
	}
	return &meta, nil
}

// Verify checks object against the announced size and digest. A
// ContentMetaInfo without a digest only checks the size.
func (m *ContentMetaInfo) Verify(object []byte) error {
	if uint64(len(object)) != m.Size {
		return fmt.Errorf("%w: %d bytes, announced %d", ErrDigestMismatch, len(object), m.Size)
	}
	if len(m.Digest) == 0 {
		return nil
	}
	digest := blake3.Sum256(object)
	if !bytes.Equal(digest[:], m.Digest) {
		return fmt.Errorf("%w: blake3 %x, announced %x", ErrDigestMismatch, digest, m.Digest)
	}
	return nil
}

func digestOf(object []byte) []byte {
	digest := blake3.Sum256(object)
	return digest[:]
}
