// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package clock provides an injectable time source for the face event
// loop and everything scheduled on it.
//
// Faces own a Clock. Interest lifetimes, the stream handler's _latest
// re-poll, and freshness expiry of cached content are all scheduled
// through Face.CallLater, which in turn calls Clock.AfterFunc and posts
// the callback onto the event loop when it fires. In production,
// Real() provides the standard library behavior. In tests, Fake()
// provides a clock that advances only when Advance is called:
//
//	c := clock.Fake(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
//	forwarder := face.NewForwarder(c, nil)
//	// ... express interests ...
//	c.Advance(4 * time.Second) // interest lifetime elapses
//	forwarder.ProcessEvents()  // timeout callbacks run
package clock
