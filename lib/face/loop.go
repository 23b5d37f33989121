// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package face

import (
	"context"
	"sync"
)

// Loop is the single logical thread that runs every face callback,
// name-tree transition, and deferred call. Other goroutines (stream
// readers, real-clock timers) never touch library state directly: they
// Post a closure and the loop runs it.
//
// A host either calls Run from one goroutine, or polls ProcessEvents
// from its own main loop. Tests typically do the latter together with
// a fake clock.
type Loop struct {
	mu    sync.Mutex
	queue []func()
	wake  chan struct{}
}

// NewLoop returns an empty loop.
func NewLoop() *Loop {
	return &Loop{wake: make(chan struct{}, 1)}
}

// Post queues f to run on the loop. Safe to call from any goroutine,
// including from inside a running callback.
func (l *Loop) Post(f func()) {
	l.mu.Lock()
	l.queue = append(l.queue, f)
	l.mu.Unlock()

	select {
	case l.wake <- struct{}{}:
	default:
	}
}

// ProcessEvents runs queued closures in FIFO order until the queue is
// empty, including closures posted while draining. Returns the number
// of closures run.
func (l *Loop) ProcessEvents() int {
	count := 0
	for {
		l.mu.Lock()
		if len(l.queue) == 0 {
			l.mu.Unlock()
			return count
		}
		next := l.queue[0]
		l.queue[0] = nil
		l.queue = l.queue[1:]
		l.mu.Unlock()

		next()
		count++
	}
}

// Pending returns the number of queued closures.
func (l *Loop) Pending() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.queue)
}

// Run processes events until ctx is cancelled. Returns ctx.Err().
func (l *Loop) Run(ctx context.Context) error {
	for {
		l.ProcessEvents()
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-l.wake:
		}
	}
}
