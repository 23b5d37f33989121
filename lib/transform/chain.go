// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package transform

import (
	"fmt"

	"github.com/bureau-foundation/cnl/lib/namespace"
	"github.com/bureau-foundation/cnl/lib/ndn"
)

// Stage is one reversible step of a Chain.
type Stage interface {
	// Encode wraps a producer payload.
	Encode(payload []byte) ([]byte, error)

	// Detect reports whether content carries this stage's envelope.
	Detect(content []byte) bool

	// Decode reverses Encode on content for which Detect is true.
	Decode(content []byte) ([]byte, error)

	// Decrypts reports whether Decode is a decryption, which selects
	// the progress state reported while it runs.
	Decrypts() bool
}

// Chain applies stages in order when encoding and undoes them in
// reverse order when transforming received content. A Chain is both a
// namespace.Encoder and a namespace.Transformer, so one value
// configured on a subtree root serves producers and consumers alike.
//
// Content that lacks a stage's envelope passes through that stage
// untouched, which lets a consumer chain read plain content too.
type Chain []Stage

var (
	_ namespace.Encoder     = Chain(nil)
	_ namespace.Transformer = Chain(nil)
)

// Encode implements namespace.Encoder.
func (c Chain) Encode(payload []byte) ([]byte, error) {
	var err error
	for index, stage := range c {
		payload, err = stage.Encode(payload)
		if err != nil {
			return nil, fmt.Errorf("stage %d: %w", index, err)
		}
	}
	return payload, nil
}

// Transform implements namespace.Transformer. It runs synchronously:
// progress is reported as each matching stage starts and done is
// called exactly once before Transform returns.
func (c Chain) Transform(data *ndn.Data, progress func(namespace.State), done func(any, error)) {
	content := data.Content
	for index := len(c) - 1; index >= 0; index-- {
		stage := c[index]
		if !stage.Detect(content) {
			continue
		}
		if stage.Decrypts() {
			progress(namespace.Decrypting)
		} else {
			progress(namespace.TransformingContent)
		}
		decoded, err := stage.Decode(content)
		if err != nil {
			done(nil, err)
			return
		}
		content = decoded
	}
	done(content, nil)
}
