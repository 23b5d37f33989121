// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package namespace is the hierarchical name cache at the center of
// the library. A tree of [Namespace] nodes mirrors the name hierarchy;
// each node tracks a retrieval [State], holds at most one Data packet,
// and reports every state change to observers registered on it or on
// any ancestor.
//
// Nodes are created on first reference:
//
//	root := namespace.New(ndn.MustParseName("/demo"))
//	meta := root.Child(ndn.NewSequenceNumberComponent(4)).GenericChild("_meta")
//
// Creating the intermediate nodes of a deep name is silent; only the
// final node reports NameExists. Attaching data moves a node through
// DataReceived, the optional transform states, and ContentReady. Data
// with a freshness period later becomes ContentReadyButStale.
//
// Faces, transformers, encoders, signers, loggers, and retry policies
// are set on a node and inherited by every descendant that has none of
// its own. A node registered with [Namespace.SetFace] answers incoming
// Interests from the cache by longest-prefix match; Interests it
// cannot answer stay pending while [OnObjectNeeded] observers get the
// chance to produce the data.
//
// Trees are not safe for concurrent use. All calls and callbacks run
// on the face loop. The one exception is callback id allocation, which
// is shared by every tree in the process.
package namespace
