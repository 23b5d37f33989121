// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package pipeline

import (
	"bytes"
	"errors"
	"log/slog"
	"slices"
	"strings"
	"testing"
)

type requestLog struct {
	requested []uint64
	completed []uint64
}

func newTestPipeline(size int, log *requestLog) *Pipeline {
	return New(Options{
		Size: size,
		Request: func(sequence uint64) error {
			log.requested = append(log.requested, sequence)
			return nil
		},
		OnComplete: func(sequence uint64) {
			log.completed = append(log.completed, sequence)
		},
	})
}

func TestOutOfOrderCompletion(t *testing.T) {
	var log requestLog
	p := newTestPipeline(3, &log)
	p.SetFinal(7)
	p.Reset(5)
	if err := p.Fill(); err != nil {
		t.Fatalf("Fill: %v", err)
	}
	if !slices.Equal(log.requested, []uint64{5, 6, 7}) {
		t.Fatalf("requested = %v, want [5 6 7]", log.requested)
	}
	if p.MaxRequested() != 7 || p.Outstanding() != 3 {
		t.Fatalf("maxRequested = %d, outstanding = %d", p.MaxRequested(), p.Outstanding())
	}

	p.Complete(6)
	p.Complete(7)

	if p.MaxReported() != 7 {
		t.Errorf("maxReported = %d, want 7", p.MaxReported())
	}
	if p.Outstanding() != 1 {
		t.Errorf("outstanding = %d, want 1", p.Outstanding())
	}
	if pending := p.Pending(); !slices.Equal(pending, []uint64{5}) {
		t.Errorf("pending = %v, want [5]", pending)
	}
	if !slices.Equal(log.completed, []uint64{6, 7}) {
		t.Errorf("completed = %v, want [6 7]", log.completed)
	}

	p.Complete(5)
	if p.Outstanding() != 0 || p.Reported() != 3 || len(p.Pending()) != 0 {
		t.Errorf("after all completions: outstanding %d, reported %d, pending %v",
			p.Outstanding(), p.Reported(), p.Pending())
	}
	if p.MaxReported() != 7 {
		t.Errorf("a late completion lowered maxReported to %d", p.MaxReported())
	}
}

func TestCompleteIsReportedOnce(t *testing.T) {
	var log requestLog
	p := newTestPipeline(1, &log)
	p.SetFinal(0)
	p.Fill()
	if !p.Complete(0) {
		t.Fatal("Complete(0) = false for a pending request")
	}
	if p.Complete(0) {
		t.Error("second Complete(0) = true")
	}
	if p.Complete(99) {
		t.Error("Complete of a never-requested sequence = true")
	}
	if len(log.completed) != 1 || p.Reported() != 1 {
		t.Errorf("completed = %v, reported = %d", log.completed, p.Reported())
	}
}

func TestSlidingWindowRefills(t *testing.T) {
	var log requestLog
	p := newTestPipeline(2, &log)
	p.Fill()
	if !slices.Equal(log.requested, []uint64{0, 1}) {
		t.Fatalf("requested = %v", log.requested)
	}
	p.Complete(0)
	if !slices.Equal(log.requested, []uint64{0, 1, 2}) {
		t.Fatalf("requested after completing 0 = %v", log.requested)
	}
	p.Complete(2)
	// Cursor starts after maxReported (2), and 1 is still in flight.
	if !slices.Equal(log.requested, []uint64{0, 1, 2, 3}) {
		t.Fatalf("requested after completing 2 = %v", log.requested)
	}
}

func TestFillSkipsHeldSequences(t *testing.T) {
	var log requestLog
	held := map[uint64]bool{1: true, 2: true}
	p := New(Options{
		Size:    2,
		Request: func(sequence uint64) error { log.requested = append(log.requested, sequence); return nil },
		Skip:    func(sequence uint64) bool { return held[sequence] },
	})
	p.Fill()
	if !slices.Equal(log.requested, []uint64{0, 3}) {
		t.Errorf("requested = %v, want [0 3]", log.requested)
	}
}

func TestResetCarriesReportedOver(t *testing.T) {
	var log requestLog
	p := newTestPipeline(2, &log)
	p.Fill()
	p.Complete(0)
	// 1 and 2 are in flight; jump ahead as if _latest said 10.
	p.Reset(10)
	if p.Requested() != p.Reported() || p.MaxReported() != 9 {
		t.Fatalf("after Reset: requested %d, reported %d, maxReported %d",
			p.Requested(), p.Reported(), p.MaxReported())
	}
	p.Fill()
	if got := log.requested[len(log.requested)-2:]; !slices.Equal(got, []uint64{10, 11}) {
		t.Errorf("requested after reset = %v", log.requested)
	}
	// A request from before the reset still completes once.
	if !p.Complete(1) {
		t.Error("pre-reset request was lost")
	}
}

func TestFillRequestError(t *testing.T) {
	failure := errors.New("no face")
	p := New(Options{Size: 3, Request: func(uint64) error { return failure }})
	if err := p.Fill(); !errors.Is(err, failure) {
		t.Fatalf("Fill error = %v, want %v", err, failure)
	}
	if p.Requested() != 0 || len(p.Pending()) != 0 {
		t.Errorf("failed request was counted: requested %d, pending %v", p.Requested(), p.Pending())
	}
}

func TestTrackAndAbandon(t *testing.T) {
	p := New(Options{})
	notified := 0
	p.Track(4, func(uint64) { notified++ })
	if p.MaxRequested() != 4 || !p.IsPending(4) {
		t.Fatalf("Track did not record sequence 4")
	}
	p.Abandon(4)
	if p.Complete(4) || notified != 0 {
		t.Error("an abandoned request completed")
	}
}

func TestNotificationPanicIsRecovered(t *testing.T) {
	var output bytes.Buffer
	requested := 0
	p := New(Options{
		Size:       1,
		Request:    func(uint64) error { requested++; return nil },
		OnComplete: func(uint64) { panic("consumer bug") },
		Logger:     slog.New(slog.NewTextHandler(&output, nil)),
	})
	p.SetFinal(1)
	p.Fill()
	p.Complete(0)

	if requested != 2 {
		t.Errorf("window did not refill after a panicking notification: %d requests", requested)
	}
	if !strings.Contains(output.String(), "consumer bug") {
		t.Errorf("panic not logged: %s", output.String())
	}
}

func TestNegativeSizeIsZero(t *testing.T) {
	p := New(Options{})
	p.SetSize(-4)
	if p.Size() != 0 {
		t.Errorf("Size = %d, want 0", p.Size())
	}
}
