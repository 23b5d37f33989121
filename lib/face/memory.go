// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package face

import (
	"fmt"

	"github.com/bureau-foundation/cnl/lib/ndn"
)

// Forwarder connects MemoryFaces in one process. An Interest from one
// face goes to the longest matching registration on each other face;
// Data from one face satisfies the pending Interests of every other
// face. There is no content store: Data nobody is waiting for is
// dropped, exactly as on a real network.
type Forwarder struct {
	loop    *Loop
	options Options
	faces   []*MemoryFace
}

// NewForwarder returns a forwarder whose faces share loop and the
// clock in options.
func NewForwarder(loop *Loop, options Options) *Forwarder {
	return &Forwarder{loop: loop, options: options.withDefaults()}
}

// Loop returns the loop shared by every face of the forwarder.
func (f *Forwarder) Loop() *Loop { return f.loop }

// NewFace attaches a new face to the forwarder.
func (f *Forwarder) NewFace() *MemoryFace {
	face := &MemoryFace{endpoint: newEndpoint(f.loop, f.options), forwarder: f}
	f.faces = append(f.faces, face)
	return face
}

func (f *Forwarder) forwardInterest(from *MemoryFace, interest *ndn.Interest) {
	routed := false
	for _, face := range f.faces {
		if face == from || face.closed {
			continue
		}
		if face.dispatchInterest(interest) {
			routed = true
		}
	}
	if !routed {
		from.rejectPending(&ndn.Nack{Interest: *interest, Reason: ndn.NackNoRoute})
	}
}

func (f *Forwarder) forwardData(from *MemoryFace, data *ndn.Data) {
	for _, face := range f.faces {
		if face == from || face.closed {
			continue
		}
		face.satisfy(data)
	}
}

// MemoryFace is a Face attached to a Forwarder.
type MemoryFace struct {
	endpoint
	forwarder *Forwarder
}

var _ Face = (*MemoryFace)(nil)

// ExpressInterest implements Face. The Interest is forwarded on the
// next loop iteration, so callbacks never run before this returns.
func (m *MemoryFace) ExpressInterest(interest *ndn.Interest, onData OnData, onTimeout OnTimeout, onNack OnNack) (uint64, error) {
	entry, err := m.addPending(interest, onData, onTimeout, onNack)
	if err != nil {
		return 0, fmt.Errorf("expressing %s: %w", interest.Name, err)
	}
	sent := *entry.interest
	m.loop.Post(func() { m.forwarder.forwardInterest(m, &sent) })
	return entry.id, nil
}

// PutData implements Face.
func (m *MemoryFace) PutData(data *ndn.Data) error {
	if m.closed {
		return fmt.Errorf("putting %s: %w", data.Name, ErrClosed)
	}
	m.options.Metrics.dataSent()
	m.loop.Post(func() { m.forwarder.forwardData(m, data) })
	return nil
}

// Close detaches the face. Pending Interests still time out.
func (m *MemoryFace) Close() {
	m.closed = true
}
