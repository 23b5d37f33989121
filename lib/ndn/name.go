// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package ndn

import (
	"fmt"
	"strings"

	enc "github.com/named-data/ndnd/std/encoding"
)

// Name is an NDN name. It is the ndnd encoding type, so names compare,
// order and print with the canonical NDN rules.
type Name = enc.Name

// Component is one typed NDN name component.
type Component = enc.Component

// ImplicitSha256DigestLength is the value length of an implicit digest
// component.
const ImplicitSha256DigestLength = 32

// ComponentKey is the comparable form of a Component. Component holds
// a byte slice and cannot key a map directly.
type ComponentKey struct {
	typ   enc.TLNum
	value string
}

// KeyOf returns the map key of component.
func KeyOf(component Component) ComponentKey {
	return ComponentKey{typ: component.Typ, value: string(component.Val)}
}

// NewGenericComponent returns a generic component holding value.
func NewGenericComponent(value string) Component {
	return enc.NewGenericComponent(value)
}

// NewSequenceNumberComponent returns a "seq=" component.
func NewSequenceNumberComponent(sequence uint64) Component {
	return enc.NewSequenceNumComponent(sequence)
}

// NewVersionComponent returns a "v=" component.
func NewVersionComponent(version uint64) Component {
	return enc.NewVersionComponent(version)
}

// NewSegmentComponent returns a "seg=" component.
func NewSegmentComponent(segment uint64) Component {
	return enc.NewSegmentComponent(segment)
}

// NewTimestampComponent returns a "t=" component.
func NewTimestampComponent(timestamp uint64) Component {
	return enc.NewTimestampComponent(timestamp)
}

// NewImplicitSha256DigestComponent returns the implicit digest
// component for a SHA-256 digest.
func NewImplicitSha256DigestComponent(digest []byte) (Component, error) {
	if len(digest) != ImplicitSha256DigestLength {
		return Component{}, fmt.Errorf("%w: implicit digest of %d bytes", ErrMalformed, len(digest))
	}
	return Component{
		Typ: enc.TypeImplicitSha256DigestComponent,
		Val: append([]byte(nil), digest...),
	}, nil
}

// IsImplicitSha256Digest reports whether component is an implicit
// digest.
func IsImplicitSha256Digest(component Component) bool {
	return component.Typ == enc.TypeImplicitSha256DigestComponent
}

// SequenceNumber decodes a "seq=" component.
func SequenceNumber(component Component) (uint64, error) {
	return number(component, enc.TypeSequenceNumNameComponent, "sequence number")
}

// Version decodes a "v=" component.
func Version(component Component) (uint64, error) {
	return number(component, enc.TypeVersionNameComponent, "version")
}

// Segment decodes a "seg=" component.
func Segment(component Component) (uint64, error) {
	return number(component, enc.TypeSegmentNameComponent, "segment")
}

// number decodes a NonNegativeInteger component of the given type.
func number(component Component, typ enc.TLNum, kind string) (uint64, error) {
	if component.Typ != typ {
		return 0, fmt.Errorf("%w: %s is not a %s component", ErrMalformed, component, kind)
	}
	switch len(component.Val) {
	case 1, 2, 4, 8:
		return component.NumberVal(), nil
	default:
		return 0, fmt.Errorf("%w: %s value of %d bytes", ErrMalformed, kind, len(component.Val))
	}
}

// ParseName parses an NDN URI. A leading "ndn:" scheme and a trailing
// slash are accepted.
func ParseName(uri string) (Name, error) {
	trimmed := strings.TrimPrefix(uri, "ndn:")
	if !strings.HasPrefix(trimmed, "/") {
		return nil, fmt.Errorf("%w: name %q does not start with /", ErrMalformed, uri)
	}
	if len(trimmed) > 1 {
		trimmed = strings.TrimSuffix(trimmed, "/")
	}
	if trimmed == "/" {
		return Name{}, nil
	}
	name, err := enc.NameFromStr(trimmed)
	if err != nil {
		return nil, fmt.Errorf("%w: name %q: %v", ErrMalformed, uri, err)
	}
	for _, component := range name {
		if IsImplicitSha256Digest(component) && len(component.Val) != ImplicitSha256DigestLength {
			return nil, fmt.Errorf("%w: name %q: implicit digest of %d bytes", ErrMalformed, uri, len(component.Val))
		}
	}
	return name, nil
}

// MustParseName is ParseName for literals. It panics on error.
func MustParseName(uri string) Name {
	name, err := ParseName(uri)
	if err != nil {
		panic(err)
	}
	return name
}
