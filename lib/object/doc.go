// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package object publishes and retrieves objects larger than one Data
// packet on a namespace tree.
//
// A generalized object at /prefix/obj is described by a
// [ContentMetaInfo] in /prefix/obj/_meta. Small objects travel inside
// the _meta packet; larger ones, or ones with application "other"
// info, are split into /prefix/obj/seg=0 .. seg=N, each carrying
// seg=N as its FinalBlockID. Consumers verify the reassembled object
// against the size and BLAKE3 digest in _meta before it reaches
// ContentReady.
package object
