// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package namespace

import (
	"fmt"
	"slices"
	"sync"
)

// OnStateChanged is called when the state of a node changes. namespace
// is the node the observer was added to; changed is the node whose
// state changed (namespace itself or a descendant). state may differ
// from changed.State() if an earlier observer changed it again.
type OnStateChanged func(namespace, changed *Namespace, state State, callbackID uint64)

// OnObjectNeeded is called when the object of needed is requested,
// either by the application through ObjectNeeded or by an incoming
// Interest the cache cannot answer. Returning true means the observer
// will produce the object, so no Interest is expressed.
type OnObjectNeeded func(namespace, needed *Namespace, callbackID uint64) bool

type stateObserver struct {
	id       uint64
	callback OnStateChanged
}

type objectNeededObserver struct {
	id       uint64
	callback OnObjectNeeded
}

var (
	callbackIDMu   sync.Mutex
	lastCallbackID uint64
)

// nextCallbackID returns an id unique across every tree in the process.
func nextCallbackID() uint64 {
	callbackIDMu.Lock()
	defer callbackIDMu.Unlock()
	lastCallbackID++
	return lastCallbackID
}

// AddOnStateChanged registers callback for state changes of this node
// and all its descendants. Returns an id for RemoveCallback.
func (n *Namespace) AddOnStateChanged(callback OnStateChanged) uint64 {
	id := nextCallbackID()
	n.onStateChanged = append(n.onStateChanged, stateObserver{id: id, callback: callback})
	return id
}

// AddOnObjectNeeded registers callback for object requests on this
// node and all its descendants. Returns an id for RemoveCallback.
func (n *Namespace) AddOnObjectNeeded(callback OnObjectNeeded) uint64 {
	id := nextCallbackID()
	n.onObjectNeeded = append(n.onObjectNeeded, objectNeededObserver{id: id, callback: callback})
	return id
}

// RemoveCallback removes the callback with the given id from this node.
// Descendants are not searched. Removing an unknown id does nothing.
// Safe to call from inside a callback.
func (n *Namespace) RemoveCallback(id uint64) {
	n.onStateChanged = slices.DeleteFunc(n.onStateChanged,
		func(observer stateObserver) bool { return observer.id == id })
	n.onObjectNeeded = slices.DeleteFunc(n.onObjectNeeded,
		func(observer objectNeededObserver) bool { return observer.id == id })
}

func (n *Namespace) hasStateObserver(id uint64) bool {
	return slices.ContainsFunc(n.onStateChanged, func(observer stateObserver) bool { return observer.id == id })
}

func (n *Namespace) hasObjectNeededObserver(id uint64) bool {
	return slices.ContainsFunc(n.onObjectNeeded, func(observer objectNeededObserver) bool { return observer.id == id })
}

// setState records the new state and notifies observers at this node,
// then at each ancestor up to the root. It does not check whether the
// state actually changed.
func (n *Namespace) setState(state State) {
	n.state = state
	for node := n; node != nil; node = node.parent {
		node.fireOnStateChanged(n, state)
	}
}

func (n *Namespace) fireOnStateChanged(changed *Namespace, state State) {
	// Iterate a snapshot: callbacks may add or remove observers.
	for _, observer := range slices.Clone(n.onStateChanged) {
		if !n.hasStateObserver(observer.id) {
			continue
		}
		n.invokeStateObserver(observer, changed, state)
	}
}

func (n *Namespace) invokeStateObserver(observer stateObserver, changed *Namespace, state State) {
	defer func() {
		if recovered := recover(); recovered != nil {
			n.Logger().Error("state observer panicked",
				"name", changed.name.String(),
				"state", state.String(),
				"callback_id", observer.id,
				"panic", fmt.Sprint(recovered),
			)
		}
	}()
	observer.callback(n, changed, state, observer.id)
}

// fireOnObjectNeeded asks the observers at this node and every
// ancestor whether they can produce the object of n. Every observer is
// asked even after one says yes.
func (n *Namespace) fireOnObjectNeeded() bool {
	canProduce := false
	for node := n; node != nil; node = node.parent {
		for _, observer := range slices.Clone(node.onObjectNeeded) {
			if !node.hasObjectNeededObserver(observer.id) {
				continue
			}
			if node.invokeObjectNeededObserver(observer, n) {
				canProduce = true
			}
		}
	}
	return canProduce
}

func (n *Namespace) invokeObjectNeededObserver(observer objectNeededObserver, needed *Namespace) (produced bool) {
	defer func() {
		if recovered := recover(); recovered != nil {
			n.Logger().Error("object-needed observer panicked",
				"name", needed.name.String(),
				"callback_id", observer.id,
				"panic", fmt.Sprint(recovered),
			)
			produced = false
		}
	}()
	return observer.callback(n, needed, observer.id)
}
