// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package namespace

import (
	"fmt"
	"time"

	"github.com/bureau-foundation/cnl/lib/face"
	"github.com/bureau-foundation/cnl/lib/ndn"
)

// pendingInterest is an incoming Interest the tree could not answer
// when it arrived. It is answered if matching data is attached before
// it expires.
type pendingInterest struct {
	interest *ndn.Interest
	expires  time.Time
}

// SetFace sets the face used by network operations on this node and
// descendants without their own. With register set, the node's name
// is registered with the face and incoming Interests under it are
// answered from the tree. Any previous registration of this node is
// removed first.
func (n *Namespace) SetFace(nodeFace face.Face, register bool) error {
	if n.face != nil && n.registrationID != 0 {
		n.face.UnregisterPrefix(n.registrationID)
		n.registrationID = 0
	}
	n.face = nodeFace
	if !register || nodeFace == nil {
		return nil
	}
	id, err := nodeFace.RegisterPrefix(n.name, n.onInterest)
	if err != nil {
		return fmt.Errorf("registering %s: %w", n.name, err)
	}
	n.registrationID = id
	return nil
}

// ExpressInterest requests this node's name from the network through
// the nearest face, re-expressing with growing lifetimes until the
// retry policy gives up. Data that arrives is attached to the node of
// its name (a descendant when the name is longer). A final timeout or
// a nack moves this node to InterestTimeout.
func (n *Namespace) ExpressInterest(mustBeFresh bool) error {
	nodeFace := n.Face()
	if nodeFace == nil {
		return fmt.Errorf("expressing interest for %s: %w", n.name, ErrNoFace)
	}

	interest := &ndn.Interest{
		Name:        n.name,
		CanBePrefix: true,
		MustBeFresh: mustBeFresh,
	}
	onData := func(_ *ndn.Interest, data *ndn.Data) { n.receiveData(data) }
	onTimeout := func(*ndn.Interest) {
		n.Logger().Debug("interest timed out", "name", n.name.String())
		n.setState(InterestTimeout)
	}
	onNack := func(_ *ndn.Interest, nack *ndn.Nack) {
		n.Logger().Debug("interest nacked", "name", n.name.String(), "reason", nack.Reason.String())
		n.setState(InterestTimeout)
	}
	if err := face.ExpressWithRetry(nodeFace, interest, onData, onTimeout, onNack, n.resolveRetry()); err != nil {
		return fmt.Errorf("expressing interest for %s: %w", n.name, err)
	}
	n.setState(InterestExpressed)
	return nil
}

func (n *Namespace) receiveData(data *ndn.Data) {
	node, err := n.Descendant(data.Name)
	if err != nil {
		n.Logger().Warn("dropping data outside the requested namespace",
			"name", n.name.String(), "data", data.Name.String())
		return
	}
	if node.data != nil {
		node.refresh()
		return
	}
	if _, err := node.SetData(data); err != nil {
		n.Logger().Warn("attaching received data failed", "name", data.Name.String(), "error", err)
	}
}

// ObjectNeeded asks for the object of this node. OnObjectNeeded
// observers at this node and its ancestors are asked first; if none
// of them will produce it, an Interest is expressed.
func (n *Namespace) ObjectNeeded(mustBeFresh bool) error {
	if n.fireOnObjectNeeded() {
		return nil
	}
	return n.ExpressInterest(mustBeFresh)
}

// onInterest answers an incoming Interest from the tree. Without a
// match the Interest is kept pending and OnObjectNeeded observers get
// a chance to produce the data.
func (n *Namespace) onInterest(_ ndn.Name, interest *ndn.Interest) {
	name := interest.Name
	if len(name) > 0 && ndn.IsImplicitSha256Digest(name.At(-1)) {
		name = name.Prefix(-1)
	}
	if !n.name.IsPrefix(name) {
		return
	}

	target, err := n.Descendant(name)
	if err != nil {
		return
	}
	now := n.Face().Now()
	if best := findBestMatch(target, interest, now); best != nil {
		if err := n.Face().PutData(best.data); err != nil {
			n.Logger().Warn("answering interest failed", "name", interest.Name.String(), "error", err)
		}
		return
	}

	n.pendingInterests = append(n.pendingInterests, pendingInterest{
		interest: interest,
		expires:  now.Add(interest.EffectiveLifetime()),
	})
	target.fireOnObjectNeeded()
}

// findBestMatch returns the node under namespace holding the data
// that best answers interest: the longest matching name, with children
// scanned in descending component order so that among equal-length
// matches the smallest component wins. A child match always beats the
// node's own data. Stale data never answers a MustBeFresh Interest.
func findBestMatch(namespace *Namespace, interest *ndn.Interest, now time.Time) *Namespace {
	var best *Namespace
	for i := len(namespace.sortedChildKeys) - 1; i >= 0; i-- {
		child := namespace.children[ndn.KeyOf(namespace.sortedChildKeys[i])]
		childBest := findBestMatch(child, interest, now)
		if childBest != nil && (best == nil || len(childBest.name) >= len(best.name)) {
			best = childBest
		}
	}
	if best != nil {
		return best
	}

	if namespace.data == nil || !interest.MatchesData(namespace.data) {
		return nil
	}
	if interest.MustBeFresh && namespace.isStale(now) {
		return nil
	}
	return namespace
}

// answerPendingInterests sends data once from each registered
// ancestor holding a pending Interest it satisfies.
func (n *Namespace) answerPendingInterests(data *ndn.Data) {
	for node := n; node != nil; node = node.parent {
		if len(node.pendingInterests) == 0 || node.face == nil {
			continue
		}
		now := node.face.Now()
		remaining := node.pendingInterests[:0]
		answered := false
		for _, pending := range node.pendingInterests {
			if !now.Before(pending.expires) {
				continue
			}
			if pending.interest.MatchesData(data) {
				answered = true
				continue
			}
			remaining = append(remaining, pending)
		}
		if answered {
			if err := node.face.PutData(data); err != nil {
				node.Logger().Warn("answering pending interest failed",
					"name", data.Name.String(), "error", err)
			}
		}
		node.pendingInterests = remaining
	}
}
