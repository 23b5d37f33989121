// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package face

import (
	"time"

	"github.com/bureau-foundation/cnl/lib/ndn"
)

const (
	// DefaultRetryInitialLifetime is the lifetime of the first attempt.
	DefaultRetryInitialLifetime = 4 * time.Second

	// DefaultRetryMaxLifetime caps the doubled lifetime. Once the next
	// attempt would exceed it, the timeout is surfaced.
	DefaultRetryMaxLifetime = 16 * time.Second
)

// RetryOptions configures ExpressWithRetry.
type RetryOptions struct {
	InitialLifetime time.Duration
	MaxLifetime     time.Duration
}

func (o RetryOptions) withDefaults() RetryOptions {
	if o.InitialLifetime <= 0 {
		o.InitialLifetime = DefaultRetryInitialLifetime
	}
	if o.MaxLifetime <= 0 {
		o.MaxLifetime = DefaultRetryMaxLifetime
	}
	return o
}

// ExpressWithRetry expresses interest and re-expresses it on each
// timeout with double the previous lifetime and a fresh nonce. When
// the doubled lifetime would exceed MaxLifetime, onTimeout is called
// once with the last attempt. A nack ends the retries immediately.
// With the defaults the attempts last 4 s, 8 s, and 16 s.
func ExpressWithRetry(face Face, interest *ndn.Interest, onData OnData, onTimeout OnTimeout, onNack OnNack, options RetryOptions) error {
	options = options.withDefaults()
	attempt := *interest
	if attempt.Lifetime <= 0 {
		attempt.Lifetime = options.InitialLifetime
	}
	return expressAttempt(face, &attempt, onData, onTimeout, onNack, options.MaxLifetime)
}

func expressAttempt(face Face, interest *ndn.Interest, onData OnData, onTimeout OnTimeout, onNack OnNack, maxLifetime time.Duration) error {
	retry := func(timedOut *ndn.Interest) {
		next := *timedOut
		next.Lifetime = timedOut.Lifetime * 2
		next.Nonce = 0
		if next.Lifetime > maxLifetime {
			if onTimeout != nil {
				onTimeout(timedOut)
			}
			return
		}
		if err := expressAttempt(face, &next, onData, onTimeout, onNack, maxLifetime); err != nil && onTimeout != nil {
			onTimeout(timedOut)
		}
	}
	_, err := face.ExpressInterest(interest, onData, retry, onNack)
	return err
}
