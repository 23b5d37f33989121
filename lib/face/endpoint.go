// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package face

import (
	"cmp"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"slices"
	"time"

	"github.com/bureau-foundation/cnl/lib/clock"
	"github.com/bureau-foundation/cnl/lib/ndn"
)

// Options configures the shared parts of every face implementation.
type Options struct {
	// Clock schedules interest lifetimes and deferred calls. Defaults
	// to clock.Real().
	Clock clock.Clock

	// Logger receives transport diagnostics and recovered callback
	// panics. Defaults to slog.Default().
	Logger *slog.Logger

	// Metrics is optional.
	Metrics *Metrics
}

func (o Options) withDefaults() Options {
	if o.Clock == nil {
		o.Clock = clock.Real()
	}
	if o.Logger == nil {
		o.Logger = slog.Default()
	}
	return o
}

// pendingInterest is one entry of the pending interest table.
type pendingInterest struct {
	id        uint64
	interest  *ndn.Interest
	onData    OnData
	onTimeout OnTimeout
	onNack    OnNack
	timer     *clock.Timer
}

type registration struct {
	id         uint64
	prefix     ndn.Name
	onInterest OnInterest
}

// endpoint holds the pending interest table and the prefix
// registrations. MemoryFace and StreamFace embed it and add the
// transport. All fields are owned by the loop goroutine.
type endpoint struct {
	loop    *Loop
	options Options

	nextID        uint64
	pending       map[uint64]*pendingInterest
	registrations map[uint64]*registration
	closed        bool
}

func newEndpoint(loop *Loop, options Options) endpoint {
	return endpoint{
		loop:          loop,
		options:       options.withDefaults(),
		pending:       make(map[uint64]*pendingInterest),
		registrations: make(map[uint64]*registration),
	}
}

func (e *endpoint) Now() time.Time { return e.options.Clock.Now() }

func (e *endpoint) CallLater(delay time.Duration, callback func()) {
	e.options.Clock.AfterFunc(delay, func() { e.loop.Post(callback) })
}

// addPending records an outgoing Interest and starts its lifetime
// timer. A zero nonce is replaced with a random one.
func (e *endpoint) addPending(interest *ndn.Interest, onData OnData, onTimeout OnTimeout, onNack OnNack) (*pendingInterest, error) {
	if e.closed {
		return nil, ErrClosed
	}
	if len(interest.Name) == 0 {
		return nil, fmt.Errorf("%w: interest without a name", ndn.ErrMalformed)
	}
	if interest.Nonce == 0 {
		interest.Nonce = rand.Uint32() | 1
	}

	e.nextID++
	entry := &pendingInterest{
		id:        e.nextID,
		interest:  interest,
		onData:    onData,
		onTimeout: onTimeout,
		onNack:    onNack,
	}
	e.pending[entry.id] = entry
	entry.timer = e.options.Clock.AfterFunc(interest.EffectiveLifetime(), func() {
		e.loop.Post(func() { e.expire(entry.id) })
	})
	e.options.Metrics.interestExpressed()
	return entry, nil
}

func (e *endpoint) RemovePendingInterest(id uint64) {
	if entry, ok := e.pending[id]; ok {
		entry.timer.Stop()
		delete(e.pending, id)
	}
}

func (e *endpoint) expire(id uint64) {
	entry, ok := e.pending[id]
	if !ok {
		return
	}
	delete(e.pending, id)
	e.options.Metrics.timeout()
	if entry.onTimeout != nil {
		e.invoke("timeout", entry.interest.Name, func() { entry.onTimeout(entry.interest) })
	}
}

// satisfy delivers data to every pending Interest it matches, in the
// order the Interests were expressed. Returns the number satisfied.
func (e *endpoint) satisfy(data *ndn.Data) int {
	var matched []*pendingInterest
	for _, entry := range e.pending {
		if entry.interest.MatchesData(data) {
			matched = append(matched, entry)
		}
	}
	slices.SortFunc(matched, func(a, b *pendingInterest) int { return cmp.Compare(a.id, b.id) })

	for _, entry := range matched {
		entry.timer.Stop()
		delete(e.pending, entry.id)
	}
	if len(matched) > 0 {
		e.options.Metrics.dataReceived()
	}
	for _, entry := range matched {
		if entry.onData != nil {
			e.invoke("data", data.Name, func() { entry.onData(entry.interest, data) })
		}
	}
	return len(matched)
}

// rejectPending delivers a nack to the pending Interest it names.
func (e *endpoint) rejectPending(nack *ndn.Nack) {
	for id, entry := range e.pending {
		if entry.interest.Nonce != nack.Interest.Nonce || !entry.interest.Name.Equal(nack.Interest.Name) {
			continue
		}
		entry.timer.Stop()
		delete(e.pending, id)
		e.options.Metrics.nack()
		if entry.onNack != nil {
			e.invoke("nack", entry.interest.Name, func() { entry.onNack(entry.interest, nack) })
		}
		return
	}
}

func (e *endpoint) RegisterPrefix(prefix ndn.Name, onInterest OnInterest) (uint64, error) {
	if e.closed {
		return 0, ErrClosed
	}
	if onInterest == nil {
		return 0, fmt.Errorf("registering %s: nil interest handler", prefix)
	}
	e.nextID++
	e.registrations[e.nextID] = &registration{id: e.nextID, prefix: prefix, onInterest: onInterest}
	return e.nextID, nil
}

func (e *endpoint) UnregisterPrefix(id uint64) {
	delete(e.registrations, id)
}

// route returns the registration with the longest prefix of name, or
// nil. Equal-length registrations resolve to the oldest.
func (e *endpoint) route(name ndn.Name) *registration {
	var best *registration
	for _, candidate := range e.registrations {
		if !candidate.prefix.IsPrefix(name) {
			continue
		}
		if best == nil || len(candidate.prefix) > len(best.prefix) ||
			(len(candidate.prefix) == len(best.prefix) && candidate.id < best.id) {
			best = candidate
		}
	}
	return best
}

// dispatchInterest hands an incoming Interest to its registration.
// Returns false when no registration covers it.
func (e *endpoint) dispatchInterest(interest *ndn.Interest) bool {
	target := e.route(interest.Name)
	if target == nil {
		return false
	}
	e.options.Metrics.interestReceived()
	e.invoke("interest", interest.Name, func() { target.onInterest(target.prefix, interest) })
	return true
}

// invoke runs an application callback, recovering and logging a panic
// so that one bad callback cannot stop the loop.
func (e *endpoint) invoke(kind string, name ndn.Name, callback func()) {
	defer func() {
		if recovered := recover(); recovered != nil {
			e.options.Logger.Error("face callback panicked",
				"callback", kind,
				"name", name.String(),
				"panic", fmt.Sprint(recovered),
			)
		}
	}()
	callback()
}
