// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package face

import (
	"errors"
	"fmt"
	"time"

	"github.com/bureau-foundation/cnl/lib/ndn"
)

// ErrProduceOnly is returned by Fanout.ExpressInterest.
var ErrProduceOnly = errors.New("fanout face only answers interests")

// Fanout is a producer-side Face spanning every connected StreamFace.
// Prefix registrations apply to current and future members, and
// PutData offers each Data to all of them. A member is dropped when its
// connection closes.
type Fanout struct {
	loop    *Loop
	options Options

	members       []*fanoutMember
	nextPrefixID  uint64
	registrations map[uint64]fanoutRegistration
}

type fanoutMember struct {
	face *StreamFace
	// ids maps a Fanout registration id to the member's own id.
	ids map[uint64]uint64
}

type fanoutRegistration struct {
	prefix     ndn.Name
	onInterest OnInterest
}

var _ Face = (*Fanout)(nil)

// NewFanout returns an empty Fanout bound to loop.
func NewFanout(loop *Loop, options Options) *Fanout {
	return &Fanout{
		loop:          loop,
		options:       options.withDefaults(),
		registrations: make(map[uint64]fanoutRegistration),
	}
}

// Add makes member part of the fanout. Safe to call from any
// goroutine; the member joins on the loop.
func (f *Fanout) Add(member *StreamFace) {
	f.loop.Post(func() {
		entry := &fanoutMember{face: member, ids: make(map[uint64]uint64)}
		for id, registration := range f.registrations {
			f.registerOn(entry, id, registration)
		}
		f.members = append(f.members, entry)
		f.options.Logger.Info("consumer connected", "members", len(f.members))
	})
	go func() {
		<-member.Done()
		f.loop.Post(func() { f.remove(member) })
	}()
}

// Len returns the number of connected members.
func (f *Fanout) Len() int { return len(f.members) }

func (f *Fanout) remove(member *StreamFace) {
	for i, entry := range f.members {
		if entry.face == member {
			f.members = append(f.members[:i], f.members[i+1:]...)
			f.options.Logger.Info("consumer disconnected", "members", len(f.members))
			return
		}
	}
}

func (f *Fanout) registerOn(entry *fanoutMember, id uint64, registration fanoutRegistration) {
	memberID, err := entry.face.RegisterPrefix(registration.prefix, registration.onInterest)
	if err != nil {
		f.options.Logger.Warn("registering prefix on member",
			"prefix", registration.prefix.String(),
			"error", err,
		)
		return
	}
	entry.ids[id] = memberID
}

// ExpressInterest implements Face. A Fanout never sends Interests.
func (f *Fanout) ExpressInterest(interest *ndn.Interest, _ OnData, _ OnTimeout, _ OnNack) (uint64, error) {
	return 0, fmt.Errorf("expressing %s: %w", interest.Name, ErrProduceOnly)
}

// PutData implements Face.
func (f *Fanout) PutData(data *ndn.Data) error {
	var errs []error
	for _, entry := range f.members {
		if err := entry.face.PutData(data); err != nil && !errors.Is(err, ErrClosed) {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// RegisterPrefix implements Face.
func (f *Fanout) RegisterPrefix(prefix ndn.Name, onInterest OnInterest) (uint64, error) {
	f.nextPrefixID++
	id := f.nextPrefixID
	registration := fanoutRegistration{prefix: prefix, onInterest: onInterest}
	f.registrations[id] = registration
	for _, entry := range f.members {
		f.registerOn(entry, id, registration)
	}
	return id, nil
}

// UnregisterPrefix implements Face.
func (f *Fanout) UnregisterPrefix(id uint64) {
	delete(f.registrations, id)
	for _, entry := range f.members {
		if memberID, ok := entry.ids[id]; ok {
			entry.face.UnregisterPrefix(memberID)
			delete(entry.ids, id)
		}
	}
}

// RemovePendingInterest implements Face. There is nothing pending.
func (f *Fanout) RemovePendingInterest(uint64) {}

// CallLater implements Face.
func (f *Fanout) CallLater(delay time.Duration, callback func()) {
	f.options.Clock.AfterFunc(delay, func() { f.loop.Post(callback) })
}

// Now implements Face.
func (f *Fanout) Now() time.Time { return f.options.Clock.Now() }
