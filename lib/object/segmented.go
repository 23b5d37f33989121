// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package object

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/bureau-foundation/cnl/lib/namespace"
	"github.com/bureau-foundation/cnl/lib/ndn"
	"github.com/bureau-foundation/cnl/lib/pipeline"
)

const (
	// DefaultMaxSegmentPayloadLength is the largest segment payload
	// the producer writes unless configured otherwise.
	DefaultMaxSegmentPayloadLength = 8000

	// DefaultSegmentPipelineSize is the number of segment Interests a
	// consumer keeps outstanding.
	DefaultSegmentPipelineSize = 8
)

// ErrSegmentFetch is passed to the failure callback when a segment
// cannot be retrieved.
var ErrSegmentFetch = errors.New("segment fetch failed")

// Options configures the object handlers.
type Options struct {
	// MaxSegmentPayloadLength bounds the payload of each produced
	// segment. Defaults to DefaultMaxSegmentPayloadLength.
	MaxSegmentPayloadLength int

	// PipelineSize is the consumer's segment window. Defaults to
	// DefaultSegmentPipelineSize.
	PipelineSize int

	// Logger defaults to slog.Default().
	Logger *slog.Logger
}

func (o Options) withDefaults() Options {
	if o.MaxSegmentPayloadLength <= 0 {
		o.MaxSegmentPayloadLength = DefaultMaxSegmentPayloadLength
	}
	if o.PipelineSize <= 0 {
		o.PipelineSize = DefaultSegmentPipelineSize
	}
	if o.Logger == nil {
		o.Logger = slog.Default()
	}
	return o
}

// SegmentedObjectHandler splits a payload into seg=N children of a
// namespace and reassembles them on the consumer side.
type SegmentedObjectHandler struct {
	options Options
}

// NewSegmentedObjectHandler returns a handler with the given options.
func NewSegmentedObjectHandler(options Options) *SegmentedObjectHandler {
	return &SegmentedObjectHandler{options: options.withDefaults()}
}

// MaxSegmentPayloadLength returns the producer's segment size.
func (h *SegmentedObjectHandler) MaxSegmentPayloadLength() int {
	return h.options.MaxSegmentPayloadLength
}

// SetMaxSegmentPayloadLength changes the producer's segment size.
// Non-positive values restore the default.
func (h *SegmentedObjectHandler) SetMaxSegmentPayloadLength(length int) {
	if length <= 0 {
		length = DefaultMaxSegmentPayloadLength
	}
	h.options.MaxSegmentPayloadLength = length
}

// Publish splits payload into segments under objectNamespace and
// publishes each one. Every segment carries the FinalBlockID of the
// last. An empty payload is one empty segment. Returns the number of
// segments.
func (h *SegmentedObjectHandler) Publish(objectNamespace *namespace.Namespace, payload []byte) (int, error) {
	length := h.options.MaxSegmentPayloadLength
	count := max((len(payload)+length-1)/length, 1)
	final := ndn.NewSegmentComponent(uint64(count - 1))

	for index := range count {
		start := index * length
		end := min(start+length, len(payload))
		segment := objectNamespace.Child(ndn.NewSegmentComponent(uint64(index)))
		metaInfo := ndn.MetaInfo{FinalBlockID: &final}
		if _, err := segment.Publish(payload[start:end], metaInfo); err != nil {
			return index, fmt.Errorf("publishing segment %d of %s: %w", index, objectNamespace.Name(), err)
		}
	}
	return count, nil
}

// Fetch retrieves the segments under objectNamespace: segment 0
// first, to learn the final segment number, then the rest through a
// window of DefaultSegmentPipelineSize Interests. When every segment
// has content, onObject receives the concatenated payload. onFailure,
// if set, is called once if a segment times out or cannot be
// decrypted; the fetch stops there.
func (h *SegmentedObjectHandler) Fetch(objectNamespace *namespace.Namespace, onObject func(payload []byte), onFailure func(error)) error {
	fetch := &segmentFetch{
		namespace: objectNamespace,
		logger:    h.options.Logger,
		onObject:  onObject,
		onFailure: onFailure,
		final:     -1,
	}
	fetch.window = pipeline.New(pipeline.Options{
		Size:    h.options.PipelineSize,
		Request: fetch.request,
		Skip:    fetch.skip,
		Logger:  h.options.Logger,
	})
	fetch.callbackID = objectNamespace.AddOnStateChanged(fetch.onStateChanged)

	first := objectNamespace.Child(ndn.NewSegmentComponent(0))
	if first.Content() != nil {
		fetch.learnFinal(first)
		return fetch.advance()
	}
	fetch.window.Track(0, nil)
	if err := first.ExpressInterest(false); err != nil {
		objectNamespace.RemoveCallback(fetch.callbackID)
		return fmt.Errorf("fetching first segment of %s: %w", objectNamespace.Name(), err)
	}
	return nil
}

type segmentFetch struct {
	namespace  *namespace.Namespace
	window     *pipeline.Pipeline
	logger     *slog.Logger
	onObject   func([]byte)
	onFailure  func(error)
	callbackID uint64
	final      int64
	finished   bool
}

func (f *segmentFetch) segment(index uint64) *namespace.Namespace {
	return f.namespace.Child(ndn.NewSegmentComponent(index))
}

func (f *segmentFetch) request(index uint64) error {
	return f.segment(index).ExpressInterest(false)
}

func (f *segmentFetch) skip(index uint64) bool {
	segment := f.segment(index)
	return segment.Content() != nil || segment.State() >= namespace.InterestExpressed
}

func (f *segmentFetch) onStateChanged(_, changed *namespace.Namespace, state namespace.State, _ uint64) {
	if f.finished || changed.Parent() != f.namespace {
		return
	}
	component := changed.Name().At(-1)
	index, err := ndn.Segment(component)
	if err != nil {
		return
	}

	switch state {
	case namespace.ContentReady:
		if index == 0 && f.final < 0 {
			f.learnFinal(changed)
		}
		f.window.Complete(index)
		if err := f.advance(); err != nil {
			f.fail(err)
		}
	case namespace.InterestTimeout:
		f.fail(fmt.Errorf("%w: %s timed out", ErrSegmentFetch, changed.Name()))
	case namespace.DecryptionError:
		f.fail(fmt.Errorf("%w: %s could not be decrypted", ErrSegmentFetch, changed.Name()))
	}
}

// learnFinal reads FinalBlockID from segment 0. A packet without one
// is the only segment.
func (f *segmentFetch) learnFinal(first *namespace.Namespace) {
	f.final = 0
	if data := first.Data(); data != nil && data.MetaInfo.FinalBlockID != nil {
		if final, err := ndn.Segment(*data.MetaInfo.FinalBlockID); err == nil {
			f.final = int64(final)
		}
	}
	f.window.SetFinal(uint64(f.final))
}

// advance fills the window and delivers the object once every segment
// has content.
func (f *segmentFetch) advance() error {
	if f.final < 0 || f.finished {
		return nil
	}
	if err := f.window.Fill(); err != nil {
		return err
	}

	var payload []byte
	for index := range uint64(f.final) + 1 {
		segment := f.namespace.Child(ndn.NewSegmentComponent(index))
		if segment.Content() == nil {
			return nil
		}
		payload = append(payload, segment.ContentBytes()...)
	}
	f.finish()
	f.onObject(payload)
	return nil
}

func (f *segmentFetch) fail(err error) {
	if f.finished {
		return
	}
	f.finish()
	f.logger.Warn("segmented fetch failed", "name", f.namespace.Name().String(), "error", err)
	if f.onFailure != nil {
		f.onFailure(err)
	}
}

func (f *segmentFetch) finish() {
	f.finished = true
	f.namespace.RemoveCallback(f.callbackID)
}
