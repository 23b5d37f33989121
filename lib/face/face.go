// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package face

import (
	"errors"
	"time"

	"github.com/bureau-foundation/cnl/lib/ndn"
)

// ErrClosed is returned by operations on a face whose transport has
// shut down.
var ErrClosed = errors.New("face closed")

// OnData is called when a Data packet satisfies an expressed Interest.
type OnData func(interest *ndn.Interest, data *ndn.Data)

// OnTimeout is called when an expressed Interest's lifetime elapses
// without Data.
type OnTimeout func(interest *ndn.Interest)

// OnNack is called when the network rejects an expressed Interest.
type OnNack func(interest *ndn.Interest, nack *ndn.Nack)

// OnInterest is called for an incoming Interest under a registered
// prefix. The handler answers, now or later, with Face.PutData.
type OnInterest func(prefix ndn.Name, interest *ndn.Interest)

// Face is the transport boundary of the library: express Interests,
// answer them with Data, register prefixes, and defer work. Every
// callback runs on the face's Loop, and every method must be called
// from that loop (or before it starts).
type Face interface {
	// ExpressInterest sends interest and arranges for exactly one of
	// onData, onTimeout, or onNack to be called. Any callback may be
	// nil. Returns an id for RemovePendingInterest.
	ExpressInterest(interest *ndn.Interest, onData OnData, onTimeout OnTimeout, onNack OnNack) (uint64, error)

	// RemovePendingInterest forgets a pending Interest. None of its
	// callbacks will be called.
	RemovePendingInterest(id uint64)

	// PutData sends data toward every pending Interest it satisfies.
	PutData(data *ndn.Data) error

	// RegisterPrefix routes incoming Interests under prefix to
	// onInterest. Returns an id for UnregisterPrefix.
	RegisterPrefix(prefix ndn.Name, onInterest OnInterest) (uint64, error)

	// UnregisterPrefix removes a registration.
	UnregisterPrefix(id uint64)

	// CallLater runs callback on the loop after delay.
	CallLater(delay time.Duration, callback func())

	// Now returns the face's current time.
	Now() time.Time
}
