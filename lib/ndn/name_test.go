// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package ndn

import (
	"bytes"
	"errors"
	"sort"
	"testing"
)

func TestParseNameRoundTrip(t *testing.T) {
	for _, uri := range []string{
		"/",
		"/demo",
		"/demo/stream/seq=4/_meta",
		"/demo/stream/seq=4/seg=0",
		"/a/v=1700000000000",
		"/a/t=12345",
	} {
		name, err := ParseName(uri)
		if err != nil {
			t.Fatalf("ParseName(%q): %v", uri, err)
		}
		if got := name.String(); got != uri {
			t.Errorf("ParseName(%q).String() = %q", uri, got)
		}
		again, err := ParseName(name.String())
		if err != nil || !again.Equal(name) {
			t.Errorf("reparsing %s = %s, %v", name, again, err)
		}
	}
}

func TestParseNameAcceptsSchemeAndTrailingSlash(t *testing.T) {
	name, err := ParseName("ndn:/demo/stream/")
	if err != nil {
		t.Fatalf("ParseName: %v", err)
	}
	if !name.Equal(MustParseName("/demo/stream")) {
		t.Errorf("got %s, want /demo/stream", name)
	}
}

func TestParseNameRejectsMalformed(t *testing.T) {
	for _, uri := range []string{
		"",
		"demo/stream",
		"/a/seq=notanumber",
	} {
		if _, err := ParseName(uri); !errors.Is(err, ErrMalformed) {
			t.Errorf("ParseName(%q) error = %v, want ErrMalformed", uri, err)
		}
	}
}

func TestTypedComponentValues(t *testing.T) {
	sequence := NewSequenceNumberComponent(300)
	if !sequence.IsSequenceNum() {
		t.Fatal("sequence component not recognized")
	}
	value, err := SequenceNumber(sequence)
	if err != nil || value != 300 {
		t.Fatalf("SequenceNumber = %d, %v; want 300", value, err)
	}
	if _, err := Segment(sequence); !errors.Is(err, ErrMalformed) {
		t.Errorf("Segment of a sequence component error = %v, want ErrMalformed", err)
	}
	if _, err := SequenceNumber(NewGenericComponent("x")); !errors.Is(err, ErrMalformed) {
		t.Errorf("SequenceNumber of a generic component error = %v, want ErrMalformed", err)
	}

	for _, number := range []uint64{0, 0xff, 0x100, 0xffff, 0x10000, 0xffffffff, 0x100000000} {
		got, err := Segment(NewSegmentComponent(number))
		if err != nil || got != number {
			t.Errorf("segment %d decoded as %d, %v", number, got, err)
		}
	}
	if version, err := Version(NewVersionComponent(1_700_000_000_000)); err != nil || version != 1_700_000_000_000 {
		t.Errorf("Version = %d, %v", version, err)
	}

	truncated := Component{Typ: NewSegmentComponent(0).Typ, Val: []byte{1, 0, 0}}
	if _, err := Segment(truncated); !errors.Is(err, ErrMalformed) {
		t.Errorf("Segment of a 3-byte value error = %v, want ErrMalformed", err)
	}
}

func TestImplicitDigestComponent(t *testing.T) {
	digest := bytes.Repeat([]byte{0xab}, ImplicitSha256DigestLength)
	component, err := NewImplicitSha256DigestComponent(digest)
	if err != nil {
		t.Fatalf("NewImplicitSha256DigestComponent: %v", err)
	}
	if !IsImplicitSha256Digest(component) {
		t.Error("digest component not recognized")
	}
	digest[0] = 0
	if component.Val[0] != 0xab {
		t.Error("component aliases the caller's digest")
	}
	if _, err := NewImplicitSha256DigestComponent([]byte{1, 2}); !errors.Is(err, ErrMalformed) {
		t.Errorf("short digest error = %v, want ErrMalformed", err)
	}
	if IsImplicitSha256Digest(NewGenericComponent("x")) {
		t.Error("generic component reported as a digest")
	}
}

func TestComponentKey(t *testing.T) {
	keys := map[ComponentKey]string{
		KeyOf(NewGenericComponent("a")):       "generic",
		KeyOf(NewSequenceNumberComponent(97)): "sequence",
	}
	if len(keys) != 2 {
		t.Fatalf("distinct components share a key: %v", keys)
	}
	if keys[KeyOf(MustParseName("/a").At(0))] != "generic" {
		t.Error("an equal component does not find its key")
	}
	if keys[KeyOf(MustParseName("/seq=97").At(0))] != "sequence" {
		t.Error("a parsed sequence component does not find its key")
	}
}

func TestCanonicalComponentOrder(t *testing.T) {
	// Typed numeric components sort numerically because the shorter
	// encoding sorts first.
	components := []Component{
		NewSequenceNumberComponent(256),
		NewGenericComponent("b"),
		NewSequenceNumberComponent(2),
		NewGenericComponent("aa"),
		NewGenericComponent("a"),
		NewSequenceNumberComponent(10),
	}
	sort.Slice(components, func(i, j int) bool {
		return components[i].Compare(components[j]) < 0
	})
	want := []string{"a", "b", "aa", "seq=2", "seq=10", "seq=256"}
	for i, component := range components {
		if component.String() != want[i] {
			t.Errorf("position %d: got %s, want %s", i, component, want[i])
		}
	}
}

func TestNamePrefixAndAt(t *testing.T) {
	name := MustParseName("/a/b/c")
	if got := name.Prefix(-1); !got.Equal(MustParseName("/a/b")) {
		t.Errorf("Prefix(-1) = %s", got)
	}
	if got := name.At(-1).String(); got != "c" {
		t.Errorf("At(-1) = %s", got)
	}

	// Derived names never alias the receiver.
	prefix := name.Prefix(2)
	extended := prefix.Append(NewGenericComponent("x"))
	other := prefix.Append(NewGenericComponent("y"))
	if extended.String() != "/a/b/x" || other.String() != "/a/b/y" {
		t.Errorf("Append aliased: %s %s", extended, other)
	}
	if name.String() != "/a/b/c" {
		t.Errorf("receiver mutated: %s", name)
	}
}

func TestNameIsPrefixAndCompare(t *testing.T) {
	short := MustParseName("/a/b")
	long := MustParseName("/a/b/c")
	if !short.IsPrefix(long) || !short.IsPrefix(short) {
		t.Error("IsPrefix should hold for a proper prefix and for itself")
	}
	if long.IsPrefix(short) {
		t.Error("a longer name is not a prefix of a shorter one")
	}
	if short.Compare(long) >= 0 || long.Compare(short) <= 0 || short.Compare(short) != 0 {
		t.Error("a proper prefix should sort first")
	}
	if !(Name{}).IsPrefix(long) {
		t.Error("the empty name is a prefix of every name")
	}
}

func TestNameSurvivesDataEncoding(t *testing.T) {
	name := MustParseName("/demo/seq=7/v=3/seg=0")
	wire, err := EncodeData(&Data{Name: name})
	if err != nil {
		t.Fatalf("EncodeData: %v", err)
	}
	decoded, err := DecodeData(wire)
	if err != nil {
		t.Fatalf("DecodeData: %v", err)
	}
	if !decoded.Name.Equal(name) {
		t.Errorf("decoded name %s, want %s", decoded.Name, name)
	}
	if segment, err := Segment(decoded.Name.At(-1)); err != nil || segment != 0 {
		t.Errorf("decoded segment = %d, %v", segment, err)
	}
}
