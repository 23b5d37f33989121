// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package namespace

import (
	"errors"
	"fmt"
	"time"

	"github.com/bureau-foundation/cnl/lib/ndn"
)

// SetData attaches a Data packet received from the network (or built
// by the caller) and moves the node to DataReceived. The nearest
// Transformer, if any, then produces the content; without one the
// packet's content is used directly and the node reaches ContentReady
// before SetData returns.
//
// Data is attached at most once. A second call returns false and does
// nothing. The packet name must equal the node name.
func (n *Namespace) SetData(data *ndn.Data) (bool, error) {
	if n.data != nil {
		return false, nil
	}
	if !data.Name.Equal(n.name) {
		return false, fmt.Errorf("%w: %s attached to %s", ErrNameMismatch, data.Name, n.name)
	}

	n.attach(data)

	transformer := n.resolveTransformer()
	if transformer == nil {
		n.setContent(data.Content)
		return true, nil
	}
	n.runTransform(transformer, data)
	return true, nil
}

// Publish builds, signs, and attaches a Data packet for this node from
// a plain payload, then answers any pending Interest it satisfies. The
// content of the packet is the payload passed through the nearest
// Encoder; the node's own content is the plain payload. If the node
// already has data, Publish returns it unchanged.
func (n *Namespace) Publish(payload []byte, metaInfo ndn.MetaInfo) (*ndn.Data, error) {
	if n.data != nil {
		return n.data, nil
	}

	content := payload
	if encoder := n.resolveEncoder(); encoder != nil {
		encoded, err := encoder.Encode(payload)
		if err != nil {
			return nil, fmt.Errorf("encoding content for %s: %w", n.name, err)
		}
		content = encoded
	}

	data := &ndn.Data{Name: n.name, MetaInfo: metaInfo, Content: content}
	if err := n.resolveSigner().Sign(data); err != nil {
		return nil, fmt.Errorf("signing %s: %w", n.name, err)
	}

	n.attach(data)
	n.setContent(payload)
	return data, nil
}

// SetObject sets the node content to an object that did not come from
// a single Data packet, such as a reassembled segmented object, and
// moves the node to ContentReady.
func (n *Namespace) SetObject(object any) {
	n.content = object
	n.hasContent = true
	n.setState(ContentReady)
}

func (n *Namespace) attach(data *ndn.Data) {
	n.data = data
	n.markFresh()
	n.setState(DataReceived)
	n.answerPendingInterests(data)
}

func (n *Namespace) runTransform(transformer Transformer, data *ndn.Data) {
	finished := false
	progress := func(state State) {
		if !finished {
			n.setState(state)
		}
	}
	done := func(content any, err error) {
		if finished {
			return
		}
		finished = true
		if err == nil {
			n.setContent(content)
			return
		}
		if errors.Is(err, ErrDecryption) {
			n.Logger().Warn("decrypting content failed", "name", n.name.String(), "error", err)
			n.setState(DecryptionError)
			return
		}
		n.Logger().Error("transforming content failed", "name", n.name.String(), "error", err)
	}
	transformer.Transform(data, progress, done)
}

func (n *Namespace) setContent(content any) {
	n.content = content
	n.hasContent = true
	n.setState(ContentReady)
	n.scheduleStale()
}

// markFresh starts the freshness period of the attached data from the
// face's current time.
func (n *Namespace) markFresh() {
	period := n.data.MetaInfo.FreshnessPeriod
	nodeFace := n.Face()
	if period <= 0 || nodeFace == nil {
		n.staleAt = time.Time{}
		return
	}
	n.staleAt = nodeFace.Now().Add(period)
}

// scheduleStale moves the node to ContentReadyButStale when its data's
// freshness period runs out, unless the data is refreshed first.
func (n *Namespace) scheduleStale() {
	nodeFace := n.Face()
	if n.staleAt.IsZero() || nodeFace == nil {
		return
	}
	n.freshGeneration++
	generation := n.freshGeneration
	nodeFace.CallLater(n.staleAt.Sub(nodeFace.Now()), func() {
		if n.freshGeneration == generation && n.state == ContentReady {
			n.setState(ContentReadyButStale)
		}
	})
}

// isStale reports whether the attached data's freshness period has
// run out at now.
func (n *Namespace) isStale(now time.Time) bool {
	return !n.staleAt.IsZero() && !now.Before(n.staleAt)
}

// refresh handles a redelivery of data the node already holds: the
// freshness period restarts and observers see ContentReady again.
func (n *Namespace) refresh() {
	if !n.hasContent {
		return
	}
	n.markFresh()
	n.setState(ContentReady)
	n.scheduleStale()
}
