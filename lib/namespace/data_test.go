// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package namespace

import (
	"bytes"
	"errors"
	"fmt"
	"testing"

	"github.com/bureau-foundation/cnl/lib/ndn"
)

func statesOf(events []stateEvent) []State {
	states := make([]State, len(events))
	for i, event := range events {
		states[i] = event.state
	}
	return states
}

func equalStates(a, b []State) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func TestSetDataWithoutTransformer(t *testing.T) {
	root := New(ndn.MustParseName("/r"))
	node := root.GenericChild("x")
	var events []stateEvent
	recordStates(node, &events)

	data := &ndn.Data{Name: node.Name(), Content: []byte("payload")}
	attached, err := node.SetData(data)
	if err != nil || !attached {
		t.Fatalf("SetData = %v, %v", attached, err)
	}
	if want := []State{DataReceived, ContentReady}; !equalStates(statesOf(events), want) {
		t.Errorf("states = %v, want %v", statesOf(events), want)
	}
	if node.Data() != data || !bytes.Equal(node.ContentBytes(), []byte("payload")) {
		t.Errorf("data or content not set")
	}
}

func TestSetDataIsIdempotent(t *testing.T) {
	root := New(ndn.MustParseName("/r"))
	node := root.GenericChild("x")
	first := &ndn.Data{Name: node.Name(), Content: []byte("first")}
	node.SetData(first)

	var events []stateEvent
	recordStates(root, &events)
	attached, err := node.SetData(&ndn.Data{Name: node.Name(), Content: []byte("second")})
	if err != nil || attached {
		t.Fatalf("second SetData = %v, %v; want false, nil", attached, err)
	}
	if len(events) != 0 {
		t.Errorf("second SetData fired %v", statesOf(events))
	}
	if node.Data() != first || string(node.ContentBytes()) != "first" {
		t.Error("second SetData replaced the data")
	}
}

func TestSetDataNameMismatch(t *testing.T) {
	root := New(ndn.MustParseName("/r"))
	node := root.GenericChild("x")
	var events []stateEvent
	recordStates(node, &events)

	_, err := node.SetData(&ndn.Data{Name: ndn.MustParseName("/r/x/y")})
	if !errors.Is(err, ErrNameMismatch) {
		t.Fatalf("SetData error = %v, want ErrNameMismatch", err)
	}
	if node.Data() != nil || node.State() != NameExists || len(events) != 0 {
		t.Error("a rejected SetData modified the node")
	}
}

type upperTransformer struct{}

func (upperTransformer) Transform(data *ndn.Data, progress func(State), done func(any, error)) {
	progress(TransformingContent)
	done(bytes.ToUpper(data.Content), nil)
}

type deferredTransformer struct {
	finish func()
}

func (d *deferredTransformer) Transform(data *ndn.Data, progress func(State), done func(any, error)) {
	progress(Decrypting)
	d.finish = func() {
		progress(TransformingContent)
		done(string(data.Content), nil)
	}
}

type failingTransformer struct {
	err error
}

func (f failingTransformer) Transform(_ *ndn.Data, progress func(State), done func(any, error)) {
	progress(Decrypting)
	done(nil, f.err)
	// Late calls after done are ignored.
	progress(ContentReady)
	done("late", nil)
}

func TestTransformerSynchronous(t *testing.T) {
	root := New(ndn.MustParseName("/r"))
	root.SetTransformer(upperTransformer{})
	node, _ := root.Descendant(ndn.MustParseName("/r/a/b"))
	var events []stateEvent
	recordStates(node, &events)

	node.SetData(&ndn.Data{Name: node.Name(), Content: []byte("quiet")})
	want := []State{DataReceived, TransformingContent, ContentReady}
	if !equalStates(statesOf(events), want) {
		t.Errorf("states = %v, want %v", statesOf(events), want)
	}
	if string(node.ContentBytes()) != "QUIET" {
		t.Errorf("content = %q", node.ContentBytes())
	}
	if string(node.Data().Content) != "quiet" {
		t.Error("transform modified the attached packet")
	}
}

func TestTransformerDeferredAndOverride(t *testing.T) {
	root := New(ndn.MustParseName("/r"))
	root.SetTransformer(upperTransformer{})
	sub := root.GenericChild("sub")
	deferred := &deferredTransformer{}
	sub.SetTransformer(deferred)
	node := sub.GenericChild("x")

	node.SetData(&ndn.Data{Name: node.Name(), Content: []byte("later")})
	if node.State() != Decrypting || node.Content() != nil {
		t.Fatalf("state = %s before the transform finished", node.State())
	}
	deferred.finish()
	if node.State() != ContentReady || node.Content() != "later" {
		t.Errorf("state = %s, content = %v", node.State(), node.Content())
	}
}

func TestTransformerErrors(t *testing.T) {
	tests := []struct {
		name  string
		err   error
		state State
	}{
		{"decryption", fmt.Errorf("%w: wrong key", ErrDecryption), DecryptionError},
		{"other", errors.New("corrupt envelope"), Decrypting},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			root := New(ndn.MustParseName("/r"))
			root.SetTransformer(failingTransformer{err: test.err})
			node := root.GenericChild("x")
			node.SetData(&ndn.Data{Name: node.Name(), Content: []byte("?")})
			if node.State() != test.state {
				t.Errorf("state = %s, want %s", node.State(), test.state)
			}
			if node.Content() != nil {
				t.Errorf("content = %v after a failed transform", node.Content())
			}
		})
	}
}

type prefixEncoder struct{}

func (prefixEncoder) Encode(payload []byte) ([]byte, error) {
	return append([]byte("enc:"), payload...), nil
}

func TestPublish(t *testing.T) {
	root := New(ndn.MustParseName("/r"))
	root.SetEncoder(prefixEncoder{})
	node := root.GenericChild("x")

	data, err := node.Publish([]byte("plain"), ndn.MetaInfo{})
	if err != nil {
		t.Fatalf("Publish: %v", err)
	}
	if string(data.Content) != "enc:plain" {
		t.Errorf("packet content = %q", data.Content)
	}
	if string(node.ContentBytes()) != "plain" || node.State() != ContentReady {
		t.Errorf("node content = %q, state = %s", node.ContentBytes(), node.State())
	}
	if !ndn.VerifyDigest(data) {
		t.Error("published packet is not signed with the default signer")
	}

	again, _ := node.Publish([]byte("other"), ndn.MetaInfo{})
	if again != data {
		t.Error("second Publish replaced the data")
	}
}

func TestPublishWithKeyedSigner(t *testing.T) {
	signer, err := ndn.NewKeyedSigner(bytes.Repeat([]byte{7}, ndn.KeyedSignerKeyLength))
	if err != nil {
		t.Fatalf("NewKeyedSigner: %v", err)
	}
	root := New(ndn.MustParseName("/r"))
	root.SetSigner(signer)
	data, err := root.GenericChild("x").Publish([]byte("signed"), ndn.MetaInfo{})
	if err != nil {
		t.Fatalf("Publish: %v", err)
	}
	if !signer.Verify(data) {
		t.Error("published packet does not verify under the inherited signer")
	}
}

func TestSetObject(t *testing.T) {
	root := New(ndn.MustParseName("/r"))
	var events []stateEvent
	recordStates(root, &events)
	type frame struct{ width, height int }
	root.SetObject(frame{640, 480})
	if root.Content() != (frame{640, 480}) || root.State() != ContentReady {
		t.Errorf("content = %v, state = %s", root.Content(), root.State())
	}
	if len(events) != 1 || events[0].state != ContentReady {
		t.Errorf("events = %+v", events)
	}
}
