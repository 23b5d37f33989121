// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package pipeline keeps a window of sequence-numbered requests in
// flight. It is the scheduler behind both segment fetching and the
// pipelined mode of sequenced streams.
//
// [Pipeline.Fill] walks forward from the highest completed sequence
// and issues requests until the window is full. Completions may arrive
// in any order; [Pipeline.Complete] counts each one once, advances the
// high-water mark, runs the per-request notification, and refills.
// In-flight requests are explicit [Record] values, inspectable with
// [Pipeline.Pending].
package pipeline
