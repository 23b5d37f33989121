// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package pipeline

import (
	"fmt"
	"log/slog"
	"maps"
	"slices"
)

// Record is one in-flight request: the sequence number and the
// notification to run when it completes.
type Record struct {
	Sequence uint64
	Notify   func(sequence uint64)
}

// Options configures a Pipeline.
type Options struct {
	// Size is the window: the number of requests kept outstanding by
	// Fill. Zero disables Fill, for callers that track single
	// requests themselves.
	Size int

	// Request issues the fetch for a sequence number. Required for
	// Fill.
	Request func(sequence uint64) error

	// Skip reports whether a sequence number needs no request because
	// its object is already held or it was requested elsewhere. Pending
	// sequences are always skipped.
	Skip func(sequence uint64) bool

	// OnComplete is the notification stored in records created by
	// Fill.
	OnComplete func(sequence uint64)

	// Logger receives recovered notification panics. Defaults to
	// slog.Default().
	Logger *slog.Logger
}

// Pipeline schedules sequence-numbered requests over a sliding window
// and keeps order-independent accounting of their completions. It is
// not safe for concurrent use; like the name tree it runs on the face
// loop.
type Pipeline struct {
	options Options

	requested    int
	reported     int
	maxRequested int64
	maxReported  int64
	// final is the last sequence Fill may request, or -1.
	final   int64
	pending map[uint64]*Record
}

// New returns an empty pipeline. Nothing is requested until Fill or
// Track is called.
func New(options Options) *Pipeline {
	if options.Logger == nil {
		options.Logger = slog.Default()
	}
	return &Pipeline{
		options:      options,
		maxRequested: -1,
		maxReported:  -1,
		final:        -1,
		pending:      make(map[uint64]*Record),
	}
}

// Size returns the window size.
func (p *Pipeline) Size() int { return p.options.Size }

// SetSize changes the window size. Negative sizes are treated as zero.
func (p *Pipeline) SetSize(size int) { p.options.Size = max(size, 0) }

// SetFinal stops Fill at sequence, inclusive. Used when the last
// segment of an object is known.
func (p *Pipeline) SetFinal(sequence uint64) { p.final = int64(sequence) }

// Requested returns the number of requests counted as issued.
func (p *Pipeline) Requested() int { return p.requested }

// Reported returns the number of completions.
func (p *Pipeline) Reported() int { return p.reported }

// Outstanding returns Requested minus Reported: the number of requests
// the window considers in flight.
func (p *Pipeline) Outstanding() int { return p.requested - p.reported }

// MaxRequested returns the highest sequence requested, or -1.
func (p *Pipeline) MaxRequested() int64 { return p.maxRequested }

// MaxReported returns the highest sequence completed, or -1.
func (p *Pipeline) MaxReported() int64 { return p.maxReported }

// Pending returns the in-flight sequence numbers in ascending order.
func (p *Pipeline) Pending() []uint64 {
	return slices.Sorted(maps.Keys(p.pending))
}

// IsPending reports whether sequence is in flight.
func (p *Pipeline) IsPending(sequence uint64) bool {
	_, ok := p.pending[sequence]
	return ok
}

// Reset restarts the window at next, keeping the completion count.
// Requests still in flight are forgotten by the window but stay
// pending, so a late completion is still reported once.
func (p *Pipeline) Reset(next uint64) {
	p.requested = p.reported
	p.maxReported = int64(next) - 1
}

// Track records a request issued by the caller for sequence, with its
// own completion notification.
func (p *Pipeline) Track(sequence uint64, notify func(sequence uint64)) {
	p.pending[sequence] = &Record{Sequence: sequence, Notify: notify}
	p.requested++
	p.maxRequested = max(p.maxRequested, int64(sequence))
}

// Fill issues requests for the next sequence numbers after
// MaxReported until Outstanding reaches Size, skipping sequences that
// are pending or for which Skip returns true.
func (p *Pipeline) Fill() error {
	cursor := p.maxReported
	for p.requested-p.reported < p.options.Size {
		cursor++
		if p.final >= 0 && cursor > p.final {
			return nil
		}
		sequence := uint64(cursor)
		if p.IsPending(sequence) || (p.options.Skip != nil && p.options.Skip(sequence)) {
			continue
		}

		p.Track(sequence, p.options.OnComplete)
		if err := p.options.Request(sequence); err != nil {
			delete(p.pending, sequence)
			p.requested--
			return fmt.Errorf("requesting sequence %d: %w", sequence, err)
		}
	}
	return nil
}

// Complete accounts for the completion of sequence, runs its
// notification, and refills the window. Returns false, doing nothing,
// if sequence is not pending; each request is reported at most once.
func (p *Pipeline) Complete(sequence uint64) bool {
	record, ok := p.pending[sequence]
	if !ok {
		return false
	}
	delete(p.pending, sequence)

	p.reported++
	p.maxReported = max(p.maxReported, int64(sequence))
	p.notify(record)

	if err := p.Fill(); err != nil {
		p.options.Logger.Warn("refilling pipeline failed", "sequence", sequence, "error", err)
	}
	return true
}

// Abandon forgets a pending request without reporting it, for
// example after a final timeout. The window slot stays counted until
// the next Reset.
func (p *Pipeline) Abandon(sequence uint64) {
	delete(p.pending, sequence)
}

func (p *Pipeline) notify(record *Record) {
	if record.Notify == nil {
		return
	}
	defer func() {
		if recovered := recover(); recovered != nil {
			p.options.Logger.Error("completion notification panicked",
				"sequence", record.Sequence,
				"panic", fmt.Sprint(recovered),
			)
		}
	}()
	record.Notify(record.Sequence)
}
