// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package clock

import "time"

// Clock abstracts the two time operations the library needs: reading
// the current time (for version components and freshness expiry) and
// scheduling a deferred callback (interest lifetimes, re-polling the
// _latest pointer, marking content stale).
//
// Callbacks registered with AfterFunc must not touch a name tree
// directly. Faces wrap them so that the callback is posted onto the
// face's event loop and runs on the same logical thread as every
// other state transition.
type Clock interface {
	// Now returns the current time.
	Now() time.Time

	// AfterFunc waits for duration d, then calls f. The returned Timer
	// cancels the pending call with Stop. If d <= 0, f runs
	// immediately in a new goroutine (real) or synchronously (fake).
	AfterFunc(d time.Duration, f func()) *Timer
}

// Timer is a scheduled callback.
type Timer struct {
	stopFunc func() bool
}

// Stop prevents the Timer from firing. Returns true if the call stops
// the timer, false if it has already fired or been stopped.
func (t *Timer) Stop() bool { return t.stopFunc() }
