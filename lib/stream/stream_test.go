// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package stream

import (
	"errors"
	"slices"
	"testing"
	"time"

	"github.com/bureau-foundation/cnl/lib/clock"
	"github.com/bureau-foundation/cnl/lib/face"
	"github.com/bureau-foundation/cnl/lib/namespace"
	"github.com/bureau-foundation/cnl/lib/ndn"
	"github.com/bureau-foundation/cnl/lib/object"
)

// recordingFace counts the Interests expressed through it.
type recordingFace struct {
	face.Face
	expressed []string
}

func (r *recordingFace) ExpressInterest(interest *ndn.Interest, onData face.OnData, onTimeout face.OnTimeout, onNack face.OnNack) (uint64, error) {
	r.expressed = append(r.expressed, interest.Name.String())
	return r.Face.ExpressInterest(interest, onData, onTimeout, onNack)
}

func (r *recordingFace) count(name string) int {
	count := 0
	for _, expressed := range r.expressed {
		if expressed == name {
			count++
		}
	}
	return count
}

type network struct {
	clock     *clock.FakeClock
	loop      *face.Loop
	forwarder *face.Forwarder
}

func newNetwork() *network {
	fakeClock := clock.Fake(time.Unix(1_700_000_000, 0))
	loop := face.NewLoop()
	return &network{
		clock:     fakeClock,
		loop:      loop,
		forwarder: face.NewForwarder(loop, face.Options{Clock: fakeClock}),
	}
}

func (n *network) advance(d time.Duration) {
	n.clock.Advance(d)
	n.loop.ProcessEvents()
}

func (n *network) producer(t *testing.T, prefix string, pipelineSize int) *Handler {
	t.Helper()
	root := namespace.New(ndn.MustParseName(prefix))
	if err := root.SetFace(n.forwarder.NewFace(), true); err != nil {
		t.Fatalf("producer SetFace: %v", err)
	}
	return NewHandler(root, pipelineSize, nil, Options{})
}

func (n *network) consumer(t *testing.T, prefix string, pipelineSize int, onObject OnSequencedGeneralizedObject) (*Handler, *recordingFace) {
	t.Helper()
	recording := &recordingFace{Face: n.forwarder.NewFace()}
	root := namespace.New(ndn.MustParseName(prefix))
	if err := root.SetFace(recording, false); err != nil {
		t.Fatalf("consumer SetFace: %v", err)
	}
	return NewHandler(root, pipelineSize, onObject, Options{}), recording
}

func latestURI(prefix string) string {
	return ndn.MustParseName(prefix).Append(LatestComponent).String()
}

type report struct {
	sequence uint64
	content  string
}

func collect(reports *[]report) OnSequencedGeneralizedObject {
	return func(sequence uint64, meta *object.ContentMetaInfo, objectNamespace *namespace.Namespace) {
		*reports = append(*reports, report{sequence: sequence, content: string(objectNamespace.ContentBytes())})
	}
}

func TestDefaults(t *testing.T) {
	root := namespace.New(ndn.MustParseName("/app"))
	handler := NewHandler(root, -5, nil, Options{})
	if handler.PipelineSize() != 0 {
		t.Errorf("PipelineSize = %d, want 0 for a negative size", handler.PipelineSize())
	}
	if handler.LatestPacketFreshnessPeriod() != DefaultLatestPacketFreshnessPeriod {
		t.Errorf("LatestPacketFreshnessPeriod = %v", handler.LatestPacketFreshnessPeriod())
	}
	if handler.ProducedSequenceNumber() != -1 {
		t.Errorf("ProducedSequenceNumber = %d, want -1", handler.ProducedSequenceNumber())
	}
	if handler.MaxSegmentPayloadLength() != object.DefaultMaxSegmentPayloadLength {
		t.Errorf("MaxSegmentPayloadLength = %d", handler.MaxSegmentPayloadLength())
	}
	handler.SetMaxSegmentPayloadLength(100)
	if handler.MaxSegmentPayloadLength() != 100 {
		t.Errorf("MaxSegmentPayloadLength after set = %d", handler.MaxSegmentPayloadLength())
	}
	handler.SetLatestPacketFreshnessPeriod(-time.Second)
	if handler.LatestPacketFreshnessPeriod() != 0 {
		t.Errorf("negative freshness = %v, want 0", handler.LatestPacketFreshnessPeriod())
	}
	if !root.HasChild(LatestComponent) {
		t.Error("handler did not create the _latest child")
	}
}

func TestSetPipelineSizeSignLock(t *testing.T) {
	tests := []struct {
		name    string
		initial int
		next    int
		wantErr bool
		want    int
	}{
		{"positive to zero", 8, 0, true, 8},
		{"positive to negative", 8, -1, true, 8},
		{"zero to positive", 0, 3, true, 0},
		{"positive to positive", 8, 2, false, 2},
		{"zero to negative", 0, -4, false, 0},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			handler := NewHandler(namespace.New(ndn.MustParseName("/app")), test.initial, nil, Options{})
			err := handler.SetPipelineSize(test.next)
			if test.wantErr != errors.Is(err, ErrPipelineSign) {
				t.Errorf("SetPipelineSize(%d) error = %v, want ErrPipelineSign: %v", test.next, err, test.wantErr)
			}
			if handler.PipelineSize() != test.want {
				t.Errorf("PipelineSize = %d, want %d", handler.PipelineSize(), test.want)
			}
			if handler.Pipeline().Size() != test.want {
				t.Errorf("window size = %d, want %d", handler.Pipeline().Size(), test.want)
			}
		})
	}
}

func TestProducedSequenceNumber(t *testing.T) {
	handler := NewHandler(namespace.New(ndn.MustParseName("/app")), 8, nil, Options{})
	if err := handler.AddObject([]byte("a"), "text/plain", nil); err != nil {
		t.Fatalf("AddObject: %v", err)
	}
	if handler.ProducedSequenceNumber() != 0 {
		t.Errorf("after AddObject = %d, want 0", handler.ProducedSequenceNumber())
	}
	handler.SetObject(10, []byte("b"), "text/plain", nil)
	handler.AddObject([]byte("c"), "text/plain", nil)
	if handler.ProducedSequenceNumber() != 11 {
		t.Errorf("after SetObject(10), AddObject = %d, want 11", handler.ProducedSequenceNumber())
	}
	sequence := handler.Namespace().Child(ndn.NewSequenceNumberComponent(11))
	if string(sequence.ContentBytes()) != "c" {
		t.Errorf("seq=11 content = %q", sequence.ContentBytes())
	}
}

type failingEncoder struct{}

func (failingEncoder) Encode([]byte) ([]byte, error) { return nil, errors.New("encoder offline") }

func TestFailedPublishKeepsProducedSequenceNumber(t *testing.T) {
	root := namespace.New(ndn.MustParseName("/app"))
	handler := NewHandler(root, 0, nil, Options{})
	if err := handler.SetObject(5, []byte("a"), "text/plain", nil); err != nil {
		t.Fatalf("SetObject(5): %v", err)
	}

	if err := handler.SetObject(5, []byte("again"), "text/plain", nil); !errors.Is(err, object.ErrAlreadyPublished) {
		t.Errorf("republishing seq=5 error = %v, want ErrAlreadyPublished", err)
	}
	if handler.ProducedSequenceNumber() != 5 {
		t.Errorf("after a rejected republish = %d, want 5", handler.ProducedSequenceNumber())
	}

	root.SetEncoder(failingEncoder{})
	if err := handler.SetObject(9, []byte("b"), "text/plain", nil); err == nil {
		t.Fatal("SetObject succeeded with a failing encoder")
	}
	if handler.ProducedSequenceNumber() != 5 {
		t.Errorf("after a failed publish = %d, want 5", handler.ProducedSequenceNumber())
	}
	if err := handler.AddObject([]byte("c"), "text/plain", nil); err == nil {
		t.Fatal("AddObject succeeded with a failing encoder")
	}
	if handler.ProducedSequenceNumber() != 5 {
		t.Errorf("after a failed AddObject = %d, want 5", handler.ProducedSequenceNumber())
	}
}

func TestLatestTimeoutRetriesAfterFreshnessPeriod(t *testing.T) {
	net := newNetwork()
	consumer, recording := net.consumer(t, "/app", 0, nil)
	latest := latestURI("/app")

	if err := consumer.Consume(); err != nil {
		t.Fatalf("Consume: %v", err)
	}
	net.loop.ProcessEvents()

	if consumer.latest.State() != namespace.InterestTimeout {
		t.Fatalf("_latest state = %s, want INTEREST_TIMEOUT", consumer.latest.State())
	}
	if got := recording.count(latest); got != 1 {
		t.Fatalf("_latest interests after the nack = %d, want 1", got)
	}
	if net.clock.PendingCount() == 0 {
		t.Fatal("no retry scheduled")
	}

	net.advance(DefaultLatestPacketFreshnessPeriod - time.Millisecond)
	if got := recording.count(latest); got != 1 {
		t.Fatalf("_latest interests before the freshness period = %d, want 1", got)
	}
	net.advance(time.Millisecond)
	if got := recording.count(latest); got != 2 {
		t.Fatalf("_latest interests after the freshness period = %d, want 2", got)
	}
}

func TestPollingEndToEnd(t *testing.T) {
	net := newNetwork()
	producer := net.producer(t, "/app", 0)
	if err := producer.SetObject(0, []byte("hello"), "text/plain", nil); err != nil {
		t.Fatalf("SetObject: %v", err)
	}

	var reports []report
	consumer, recording := net.consumer(t, "/app", 0, collect(&reports))
	latest := latestURI("/app")
	if err := consumer.Namespace().ObjectNeeded(false); err != nil {
		t.Fatalf("ObjectNeeded: %v", err)
	}
	net.loop.ProcessEvents()

	if want := []report{{0, "hello"}}; !slices.Equal(reports, want) {
		t.Fatalf("reports = %v, want %v", reports, want)
	}
	meta := ndn.MustParseName("/app").
		Append(ndn.NewSequenceNumberComponent(0), object.MetaComponent).String()
	if got := recording.count(meta); got != 1 {
		t.Errorf("_meta interests for seq 0 = %d, want 1", got)
	}
	for _, name := range recording.expressed {
		if name != latest && name != meta {
			t.Errorf("unexpected interest for %s", name)
		}
	}

	half := DefaultLatestPacketFreshnessPeriod / 2
	net.advance(half - time.Millisecond)
	if got := recording.count(latest); got != 1 {
		t.Fatalf("_latest interests before half the freshness period = %d, want 1", got)
	}
	net.advance(time.Millisecond)
	if got := recording.count(latest); got != 2 {
		t.Fatalf("_latest interests at half the freshness period = %d, want 2", got)
	}

	// The repeated pointer names a sequence already held.
	net.advance(3 * DefaultLatestPacketFreshnessPeriod)
	if len(reports) != 1 {
		t.Errorf("reports after further polls = %v, want one", reports)
	}
	if got := recording.count(meta); got != 1 {
		t.Errorf("_meta interests for seq 0 after polls = %d, want 1", got)
	}
	if consumer.Pipeline().Reported() != 1 {
		t.Errorf("Reported = %d, want 1", consumer.Pipeline().Reported())
	}
}

func TestPollingFollowsNewSequence(t *testing.T) {
	net := newNetwork()
	producer := net.producer(t, "/app", 0)
	producer.AddObject([]byte("first"), "text/plain", nil)

	var reports []report
	consumer, _ := net.consumer(t, "/app", 0, collect(&reports))
	consumer.Consume()
	net.loop.ProcessEvents()

	producer.AddObject([]byte("second"), "text/plain", nil)
	// The first pointer stays fresh for one period; the poll after it
	// goes stale makes the producer publish a new one.
	for range 4 {
		net.advance(DefaultLatestPacketFreshnessPeriod / 2)
	}

	want := []report{{0, "first"}, {1, "second"}}
	if !slices.Equal(reports, want) {
		t.Errorf("reports = %v, want %v", reports, want)
	}
}

func TestPipelinedFetch(t *testing.T) {
	net := newNetwork()
	producer := net.producer(t, "/app", 8)
	for _, payload := range []string{"a", "b", "c", "d", "e"} {
		producer.AddObject([]byte(payload), "text/plain", nil)
	}

	var reports []report
	consumer, recording := net.consumer(t, "/app", 3, collect(&reports))
	consumer.Consume()
	net.loop.ProcessEvents()

	window := consumer.Pipeline()
	if want := []report{{4, "e"}}; !slices.Equal(reports, want) {
		t.Fatalf("reports = %v, want %v", reports, want)
	}
	if pending := window.Pending(); !slices.Equal(pending, []uint64{5, 6, 7}) {
		t.Errorf("pending = %v, want [5 6 7]", pending)
	}

	producer.AddObject([]byte("f"), "text/plain", nil)
	net.loop.ProcessEvents()

	if want := []report{{4, "e"}, {5, "f"}}; !slices.Equal(reports, want) {
		t.Fatalf("reports = %v, want %v", reports, want)
	}
	if pending := window.Pending(); !slices.Equal(pending, []uint64{6, 7, 8}) {
		t.Errorf("pending = %v, want [6 7 8]", pending)
	}
	if window.MaxRequested() != 8 || window.MaxReported() != 5 || window.Outstanding() != 3 {
		t.Errorf("maxRequested=%d maxReported=%d outstanding=%d, want 8 5 3",
			window.MaxRequested(), window.MaxReported(), window.Outstanding())
	}

	// Nothing more is produced: the highest request times out after
	// its retries and the consumer goes back to _latest.
	latest := latestURI("/app")
	if got := recording.count(latest); got != 1 {
		t.Fatalf("_latest interests before the timeout = %d, want 1", got)
	}
	for range 30 {
		net.advance(time.Second)
	}
	if got := recording.count(latest); got != 2 {
		t.Errorf("_latest interests after the highest request timed out = %d, want 2", got)
	}
}

func TestMalformedLatestIsIgnored(t *testing.T) {
	foreign := &ndn.DelegationSet{}
	foreign.Add(1, ndn.MustParseName("/other").Append(ndn.NewSequenceNumberComponent(1)))
	notSequence := &ndn.DelegationSet{}
	notSequence.Add(1, ndn.MustParseName("/app/name"))
	tooDeep := &ndn.DelegationSet{}
	tooDeep.Add(1, ndn.MustParseName("/app").Append(ndn.NewSequenceNumberComponent(1), ndn.NewGenericComponent("x")))

	tests := []struct {
		name        string
		delegations *ndn.DelegationSet
		content     []byte
	}{
		{"empty set", &ndn.DelegationSet{}, nil},
		{"foreign target", foreign, nil},
		{"not a sequence", notSequence, nil},
		{"too deep", tooDeep, nil},
		{"undecodable", nil, []byte{0xff}},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			net := newNetwork()
			consumer, recording := net.consumer(t, "/app", 0, nil)

			content := test.content
			if test.delegations != nil {
				content, _ = test.delegations.Encode()
			}
			versioned := consumer.latest.Child(ndn.NewVersionComponent(1))
			versioned.SetData(&ndn.Data{
				Name:     versioned.Name(),
				MetaInfo: ndn.MetaInfo{FreshnessPeriod: time.Second},
				Content:  content,
			})
			net.advance(10 * time.Second)

			if len(recording.expressed) != 0 {
				t.Errorf("interests expressed for a malformed pointer: %v", recording.expressed)
			}
			if consumer.Namespace().HasChild(ndn.NewSequenceNumberComponent(1)) {
				t.Error("sequence namespace created for a malformed pointer")
			}
		})
	}
}

func TestProducerWithoutObjectsDoesNotAnswerLatest(t *testing.T) {
	net := newNetwork()
	producer := net.producer(t, "/app", 8)
	consumer, _ := net.consumer(t, "/app", 8, nil)
	consumer.Consume()
	net.loop.ProcessEvents()

	if children := producer.latest.ChildComponents(); len(children) != 0 {
		t.Errorf("producer published _latest versions %v with nothing produced", children)
	}
}

func TestSequencedCallbackPanicIsRecovered(t *testing.T) {
	net := newNetwork()
	producer := net.producer(t, "/app", 2)
	producer.AddObject([]byte("a"), "text/plain", nil)
	producer.AddObject([]byte("b"), "text/plain", nil)

	consumer, _ := net.consumer(t, "/app", 2, func(uint64, *object.ContentMetaInfo, *namespace.Namespace) {
		panic("consumer bug")
	})
	consumer.Consume()
	net.loop.ProcessEvents()
	producer.AddObject([]byte("c"), "text/plain", nil)
	net.loop.ProcessEvents()

	if reported := consumer.Pipeline().Reported(); reported != 2 {
		t.Errorf("Reported = %d, want 2 despite panicking callbacks", reported)
	}
}

func TestCloseDetachesHandler(t *testing.T) {
	net := newNetwork()
	producer := net.producer(t, "/app", 8)
	producer.AddObject([]byte("a"), "text/plain", nil)
	producer.Close()

	consumer, _ := net.consumer(t, "/app", 8, nil)
	consumer.Consume()
	net.loop.ProcessEvents()

	if children := producer.latest.ChildComponents(); len(children) != 0 {
		t.Errorf("closed producer published _latest versions %v", children)
	}
}
