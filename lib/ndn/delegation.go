// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package ndn

import (
	"fmt"
	"sort"

	enc "github.com/named-data/ndnd/std/encoding"

	"github.com/bureau-foundation/cnl/lib/codec"
)

// Delegation is one entry of a DelegationSet: a name and its
// preference. Lower preference values are preferred.
type Delegation struct {
	Preference int
	Name       Name
}

// delegationWire is a Delegation on the wire. The name is kept in its
// TLV encoding.
type delegationWire struct {
	Preference int    `cbor:"p"`
	Name       []byte `cbor:"n"`
}

// DelegationSet is an ordered list of redirect targets. It is the
// content of a _latest packet, where a single entry names the newest
// sequence of a stream.
type DelegationSet struct {
	entries []Delegation
}

// Add inserts a delegation, keeping entries sorted by preference (and
// by name among equal preferences). An existing entry with the same
// name is replaced.
func (s *DelegationSet) Add(preference int, name Name) {
	s.Remove(name)
	entry := Delegation{Preference: preference, Name: name}
	index := sort.Search(len(s.entries), func(i int) bool {
		existing := s.entries[i]
		if existing.Preference != preference {
			return existing.Preference > preference
		}
		return existing.Name.Compare(name) > 0
	})
	s.entries = append(s.entries, Delegation{})
	copy(s.entries[index+1:], s.entries[index:])
	s.entries[index] = entry
}

// Remove deletes every entry with the given name. Returns true if any
// entry was removed.
func (s *DelegationSet) Remove(name Name) bool {
	kept := s.entries[:0]
	removed := false
	for _, entry := range s.entries {
		if entry.Name.Equal(name) {
			removed = true
			continue
		}
		kept = append(kept, entry)
	}
	s.entries = kept
	return removed
}

// Len returns the number of entries.
func (s *DelegationSet) Len() int { return len(s.entries) }

// Get returns the entry at index i in preference order.
func (s *DelegationSet) Get(i int) Delegation { return s.entries[i] }

// Encode returns the CBOR encoding of the set.
func (s *DelegationSet) Encode() ([]byte, error) {
	entries := make([]delegationWire, 0, len(s.entries))
	for _, entry := range s.entries {
		entries = append(entries, delegationWire{Preference: entry.Preference, Name: entry.Name.Bytes()})
	}
	return codec.Marshal(entries)
}

// DecodeDelegationSet decodes a set produced by Encode. Entries are
// re-sorted, so a hostile encoder cannot reorder preferences.
func DecodeDelegationSet(wire []byte) (*DelegationSet, error) {
	var entries []delegationWire
	if err := codec.Unmarshal(wire, &entries); err != nil {
		return nil, fmt.Errorf("%w: delegation set: %v", ErrMalformed, err)
	}
	set := &DelegationSet{}
	for _, entry := range entries {
		name, err := enc.NameFromBytes(entry.Name)
		if err != nil {
			return nil, fmt.Errorf("%w: delegation name: %v", ErrMalformed, err)
		}
		set.Add(entry.Preference, name)
	}
	return set, nil
}
