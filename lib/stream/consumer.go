// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package stream

import (
	"fmt"
	"time"

	"github.com/bureau-foundation/cnl/lib/namespace"
	"github.com/bureau-foundation/cnl/lib/ndn"
	"github.com/bureau-foundation/cnl/lib/object"
)

// Consume starts following the stream by requesting _latest. It is
// equivalent to calling ObjectNeeded on the stream namespace.
func (h *Handler) Consume() error {
	if err := h.latest.ObjectNeeded(true); err != nil {
		return fmt.Errorf("requesting %s: %w", h.latest.Name(), err)
	}
	return nil
}

func (h *Handler) onStateChanged(_, changed *namespace.Namespace, state namespace.State, _ uint64) {
	if state == namespace.InterestTimeout {
		h.onTimeout(changed)
		return
	}
	if state != namespace.ContentReady || !h.isVersionedLatest(changed) {
		return
	}
	// A producer does not follow its own pointer.
	if h.producedSequenceNumber >= 0 {
		return
	}
	h.onLatest(changed)
}

func (h *Handler) onTimeout(changed *namespace.Namespace) {
	if changed == h.latest {
		h.logger.Info("_latest timed out, retrying after the freshness period",
			"name", changed.Name().String(),
			"delay", h.latestPacketFreshnessPeriod,
		)
		h.pullLatestAfter(h.latestPacketFreshnessPeriod)
		return
	}

	sequence, ok := h.metaSequence(changed)
	if !ok {
		return
	}
	h.window.Abandon(sequence)
	if h.pipelineSize > 0 && int64(sequence) == h.window.MaxRequested() {
		h.logger.Info("highest pipelined request timed out, requesting _latest",
			"name", changed.Name().String(),
		)
		if err := h.latest.ObjectNeeded(true); err != nil {
			h.logger.Warn("requesting _latest failed", "name", h.latest.Name().String(), "error", err)
		}
	}
}

// metaSequence returns the sequence number of a /stream/seq=N/_meta
// node.
func (h *Handler) metaSequence(node *namespace.Namespace) (uint64, bool) {
	name := node.Name()
	if len(name) != len(h.namespace.Name())+2 || !name.At(-1).Equal(object.MetaComponent) {
		return 0, false
	}
	sequence, err := ndn.SequenceNumber(name.At(-2))
	if err != nil {
		return 0, false
	}
	return sequence, true
}

func (h *Handler) isVersionedLatest(node *namespace.Namespace) bool {
	name := node.Name()
	return len(name) == len(h.latest.Name())+1 &&
		h.latest.Name().IsPrefix(name) &&
		name.At(-1).IsVersion()
}

// onLatest follows a received _latest packet. Packets with no entries
// or a target that is not a sequence child of the stream are ignored.
func (h *Handler) onLatest(versioned *namespace.Namespace) {
	delegations, err := ndn.DecodeDelegationSet(versioned.ContentBytes())
	if err != nil || delegations.Len() == 0 {
		return
	}
	target := delegations.Get(0).Name
	streamName := h.namespace.Name()
	if len(target) != len(streamName)+1 || !streamName.IsPrefix(target) {
		return
	}
	sequence, err := ndn.SequenceNumber(target.At(-1))
	if err != nil {
		return
	}

	targetNamespace := h.sequenceNamespace(sequence)
	if targetNamespace.Content() == nil {
		if h.pipelineSize == 0 {
			h.fetchOne(sequence)
		} else {
			h.window.Reset(sequence)
			if err := h.window.Fill(); err != nil {
				h.logger.Warn("filling pipeline failed", "sequence", sequence, "error", err)
			}
		}
	}

	if h.pipelineSize == 0 {
		period := versioned.Data().MetaInfo.FreshnessPeriod
		if period <= 0 {
			return
		}
		h.pullLatestAfter(period / 2)
	}
}

// fetchOne requests a single sequence in polling mode unless its _meta
// was already requested.
func (h *Handler) fetchOne(sequence uint64) {
	meta := h.sequenceNamespace(sequence).Child(object.MetaComponent)
	if meta.State() >= namespace.InterestExpressed {
		return
	}
	h.window.Track(sequence, h.report)
	if err := h.requestSequence(sequence); err != nil {
		h.window.Abandon(sequence)
		h.logger.Warn("requesting sequence failed", "sequence", sequence, "error", err)
	}
}

func (h *Handler) requestSequence(sequence uint64) error {
	return h.objects.Fetch(h.sequenceNamespace(sequence), func(meta *object.ContentMetaInfo, objectNamespace *namespace.Namespace) {
		h.delivered[sequence] = delivery{meta: meta, objectNamespace: objectNamespace}
		h.window.Complete(sequence)
	})
}

func (h *Handler) alreadyRequested(sequence uint64) bool {
	meta := h.sequenceNamespace(sequence).Child(object.MetaComponent)
	return meta.Data() != nil || meta.State() >= namespace.InterestExpressed
}

// report is the completion notification of every sequence record. The
// pipeline runs it once per sequence and recovers a panic from the
// application callback.
func (h *Handler) report(sequence uint64) {
	delivered, ok := h.delivered[sequence]
	delete(h.delivered, sequence)
	if !ok || h.onSequencedObject == nil {
		return
	}
	h.onSequencedObject(sequence, delivered.meta, delivered.objectNamespace)
}

func (h *Handler) pullLatestAfter(delay time.Duration) {
	nodeFace := h.latest.Face()
	if nodeFace == nil {
		h.logger.Warn("cannot schedule _latest request without a face", "name", h.latest.Name().String())
		return
	}
	nodeFace.CallLater(delay, func() {
		if err := h.latest.ObjectNeeded(true); err != nil {
			h.logger.Warn("requesting _latest failed", "name", h.latest.Name().String(), "error", err)
		}
	})
}

func (h *Handler) now() time.Time {
	if nodeFace := h.namespace.Face(); nodeFace != nil {
		return nodeFace.Now()
	}
	return time.Now()
}
