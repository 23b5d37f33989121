// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package stream publishes and follows a sequence of generalized
// objects under one namespace.
//
// A producer publishes objects at /prefix/seq=0, /prefix/seq=1, and so
// on. When an Interest for /prefix/_latest arrives, the producer
// answers with a new versioned child /prefix/_latest/v=<now ms> whose
// content is a one-entry delegation set naming the newest sequence.
// The packet's freshness period tells consumers how long it may be
// cached.
//
// A consumer requests _latest with MustBeFresh and follows the pointer.
// In polling mode (pipeline size zero) it fetches the one named
// sequence and asks for _latest again after half the freshness period.
// In pipelined mode it keeps a window of sequence numbers requested
// ahead and only returns to _latest when the highest request times
// out. A timeout on _latest itself is retried after one freshness
// period.
package stream
