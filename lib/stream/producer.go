// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package stream

import (
	"fmt"

	"github.com/bureau-foundation/cnl/lib/namespace"
	"github.com/bureau-foundation/cnl/lib/ndn"
)

// SetObject publishes object as the generalized object at sequence and
// makes sequence the target of future _latest packets. other, when
// non-empty, is carried in the _meta packet and forces segmentation.
func (h *Handler) SetObject(sequence uint64, object []byte, contentType string, other []byte) error {
	sequenceNamespace := h.sequenceNamespace(sequence)
	if _, err := h.objects.SetObject(sequenceNamespace, object, contentType, other); err != nil {
		return fmt.Errorf("publishing sequence %d: %w", sequence, err)
	}
	h.producedSequenceNumber = int64(sequence)
	return nil
}

// AddObject publishes object at ProducedSequenceNumber()+1.
func (h *Handler) AddObject(object []byte, contentType string, other []byte) error {
	return h.SetObject(uint64(h.producedSequenceNumber+1), object, contentType, other)
}

// onObjectNeeded starts a consumer when the stream namespace itself is
// needed, and answers a need for _latest with a new versioned pointer
// to the produced sequence number.
func (h *Handler) onObjectNeeded(_, needed *namespace.Namespace, _ uint64) bool {
	if needed == h.namespace {
		if err := h.latest.ObjectNeeded(true); err != nil {
			h.logger.Warn("requesting _latest failed", "name", h.latest.Name().String(), "error", err)
		}
		return true
	}
	if needed != h.latest || h.producedSequenceNumber < 0 {
		return false
	}

	if err := h.publishLatest(); err != nil {
		h.logger.Error("producing _latest failed", "name", h.latest.Name().String(), "error", err)
		return false
	}
	return true
}

func (h *Handler) publishLatest() error {
	sequenceName := h.namespace.Name().Append(
		ndn.NewSequenceNumberComponent(uint64(h.producedSequenceNumber)))
	delegations := &ndn.DelegationSet{}
	delegations.Add(1, sequenceName)
	payload, err := delegations.Encode()
	if err != nil {
		return err
	}

	version := uint64(h.now().UnixMilli())
	versioned := h.latest.Child(ndn.NewVersionComponent(version))
	metaInfo := ndn.MetaInfo{FreshnessPeriod: h.latestPacketFreshnessPeriod}
	if _, err := versioned.Publish(payload, metaInfo); err != nil {
		return err
	}
	h.logger.Debug("produced _latest",
		"name", versioned.Name().String(),
		"sequence", h.producedSequenceNumber,
	)
	return nil
}
