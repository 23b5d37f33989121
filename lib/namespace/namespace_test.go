// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package namespace

import (
	"errors"
	"sync"
	"testing"

	"github.com/bureau-foundation/cnl/lib/ndn"
)

type stateEvent struct {
	observer *Namespace
	changed  string
	state    State
}

// recordStates adds an observer to node that appends every event.
func recordStates(node *Namespace, events *[]stateEvent) uint64 {
	return node.AddOnStateChanged(func(observer, changed *Namespace, state State, _ uint64) {
		*events = append(*events, stateEvent{observer: observer, changed: changed.Name().String(), state: state})
	})
}

func TestDescendantBuildsAncestorChain(t *testing.T) {
	root := New(ndn.MustParseName("/a"))
	deep := ndn.MustParseName("/a/b/c/d")

	node, err := root.Descendant(deep)
	if err != nil {
		t.Fatalf("Descendant: %v", err)
	}
	if !node.Name().Equal(deep) {
		t.Fatalf("node name = %s, want %s", node.Name(), deep)
	}

	foundRoot := false
	for ancestor := node; ancestor != nil; ancestor = ancestor.Parent() {
		if ancestor.Parent() != nil && len(ancestor.Name()) != len(ancestor.Parent().Name())+1 {
			t.Errorf("%s is not one component longer than its parent", ancestor.Name())
		}
		if ancestor.Name().Equal(ndn.MustParseName("/a")) {
			foundRoot = ancestor == root
		}
	}
	if !foundRoot {
		t.Error("ancestor chain does not include the root")
	}
	if node.Root() != root {
		t.Error("Root() did not return the root")
	}

	again, _ := root.Descendant(deep)
	if again != node {
		t.Error("repeated Descendant returned a different instance")
	}
	middle, _ := root.Descendant(ndn.MustParseName("/a/b"))
	if middle.Child(ndn.NewGenericComponent("c")) != node.Parent() {
		t.Error("Child and Descendant disagree on the same node")
	}
	self, _ := root.Descendant(root.Name())
	if self != root {
		t.Error("Descendant of the node's own name should return the node")
	}
}

func TestDescendantPrefixViolation(t *testing.T) {
	root := New(ndn.MustParseName("/a"))
	if _, err := root.Descendant(ndn.MustParseName("/b/c")); !errors.Is(err, ErrPrefixViolation) {
		t.Fatalf("Descendant(/b/c) error = %v, want ErrPrefixViolation", err)
	}
	if len(root.ChildComponents()) != 0 {
		t.Error("a failed Descendant modified the tree")
	}
}

func TestIntermediateNodesAreSilent(t *testing.T) {
	root := New(ndn.MustParseName("/root"))
	var events []stateEvent
	recordStates(root, &events)

	if _, err := root.Descendant(ndn.MustParseName("/root/a/b/c")); err != nil {
		t.Fatalf("Descendant: %v", err)
	}
	if len(events) != 1 {
		t.Fatalf("got %d events, want 1: %+v", len(events), events)
	}
	if events[0].changed != "/root/a/b/c" || events[0].state != NameExists {
		t.Errorf("event = %+v, want NAME_EXISTS for /root/a/b/c", events[0])
	}

	// Intermediate observers see only the leaf, too.
	intermediate, _ := root.Descendant(ndn.MustParseName("/root/a"))
	var intermediateEvents []stateEvent
	recordStates(intermediate, &intermediateEvents)
	events = nil
	root.Descendant(ndn.MustParseName("/root/a/x/y"))
	if len(intermediateEvents) != 1 || intermediateEvents[0].changed != "/root/a/x/y" {
		t.Errorf("intermediate observer events = %+v", intermediateEvents)
	}

	// Existing nodes fire nothing.
	events = nil
	root.Descendant(ndn.MustParseName("/root/a/b/c"))
	if len(events) != 0 {
		t.Errorf("looking up an existing node fired %d events", len(events))
	}
}

func TestChildComponentsSortedSnapshot(t *testing.T) {
	root := New(ndn.MustParseName("/r"))
	for _, component := range []ndn.Component{
		ndn.NewSequenceNumberComponent(10),
		ndn.NewGenericComponent("b"),
		ndn.NewSequenceNumberComponent(2),
		ndn.NewGenericComponent("a"),
		ndn.NewGenericComponent("aa"),
	} {
		root.Child(component)
	}

	snapshot := root.ChildComponents()
	want := []string{"a", "b", "aa", "seq=2", "seq=10"}
	if len(snapshot) != len(want) {
		t.Fatalf("ChildComponents = %v", snapshot)
	}
	for i := range want {
		if snapshot[i].String() != want[i] {
			t.Errorf("position %d = %s, want %s", i, snapshot[i], want[i])
		}
	}

	root.GenericChild("0")
	if len(snapshot) != len(want) {
		t.Error("snapshot changed after adding a child")
	}
	if !root.HasChild(ndn.NewGenericComponent("0")) || root.HasChild(ndn.NewGenericComponent("zz")) {
		t.Error("HasChild disagrees with the children added")
	}
	if len(root.ChildComponents()) != len(want)+1 {
		t.Error("new child missing from a fresh snapshot")
	}
}

func TestCallbackIDsUniqueAcrossTrees(t *testing.T) {
	const trees = 8
	const perTree = 50
	ids := make(chan uint64, trees*perTree)
	var wait sync.WaitGroup
	for i := range trees {
		wait.Add(1)
		go func() {
			defer wait.Done()
			root := New(ndn.MustParseName("/t").Append(ndn.NewSequenceNumberComponent(uint64(i))))
			for range perTree {
				ids <- root.AddOnStateChanged(func(*Namespace, *Namespace, State, uint64) {})
			}
		}()
	}
	wait.Wait()
	close(ids)

	seen := make(map[uint64]bool)
	for id := range ids {
		if seen[id] {
			t.Fatalf("callback id %d allocated twice", id)
		}
		seen[id] = true
	}
}

func TestStateString(t *testing.T) {
	if ContentReadyButStale.String() != "CONTENT_READY_BUT_STALE" || State(42).String() != "State(42)" {
		t.Errorf("unexpected strings: %s %s", ContentReadyButStale, State(42))
	}
	if !(NameExists < InterestExpressed && InterestTimeout < DataReceived && ContentReady < ContentReadyButStale) {
		t.Error("state order changed")
	}
	if int(ContentReady) != 7 {
		t.Errorf("ContentReady = %d, want 7", ContentReady)
	}
}
