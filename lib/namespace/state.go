// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package namespace

import "strconv"

// State is the retrieval state of a Namespace node. The numeric order
// is significant: "state >= InterestExpressed" means a request for the
// node has already been issued or completed.
type State int

const (
	NameExists State = iota
	InterestExpressed
	// InterestTimeout is also entered on a network nack.
	InterestTimeout
	DataReceived
	Decrypting
	DecryptionError
	TransformingContent
	ContentReady
	ContentReadyButStale
)

var stateNames = [...]string{
	NameExists:           "NAME_EXISTS",
	InterestExpressed:    "INTEREST_EXPRESSED",
	InterestTimeout:      "INTEREST_TIMEOUT",
	DataReceived:         "DATA_RECEIVED",
	Decrypting:           "DECRYPTING",
	DecryptionError:      "DECRYPTION_ERROR",
	TransformingContent:  "TRANSFORMING_CONTENT",
	ContentReady:         "CONTENT_READY",
	ContentReadyButStale: "CONTENT_READY_BUT_STALE",
}

// String returns the upper-case state name, for logs.
func (s State) String() string {
	if s >= 0 && int(s) < len(stateNames) {
		return stateNames[s]
	}
	return "State(" + strconv.Itoa(int(s)) + ")"
}
