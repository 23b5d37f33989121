// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package face is the transport boundary between a name tree and the
// network: expressing Interests, answering them with Data, registering
// prefixes, and scheduling deferred work.
//
// Everything runs on a [Loop]. Transport goroutines and timers only
// post closures to it, so the name tree and pipeline code above this
// package need no locking. A host runs the loop with [Loop.Run], or
// polls [Loop.ProcessEvents] from its own main loop.
//
// Three implementations are provided:
//
//   - [MemoryFace], attached to an in-process [Forwarder]. Tests pair
//     it with a fake clock from lib/clock for deterministic timing.
//   - [StreamFace], which exchanges NDN TLV packets over a TCP
//     connection. [Listen] and [Dial] create them. A dead-nonce list
//     drops Interests that loop back.
//   - [Fanout], a producer-side face spanning every StreamFace a
//     [Listener] accepts, so one name tree serves many consumers.
//
// [ExpressWithRetry] layers exponential re-expression on any Face, and
// [Metrics] exports Prometheus counters for face traffic.
package face
