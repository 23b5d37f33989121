// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package stream

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/bureau-foundation/cnl/lib/namespace"
	"github.com/bureau-foundation/cnl/lib/ndn"
	"github.com/bureau-foundation/cnl/lib/object"
	"github.com/bureau-foundation/cnl/lib/pipeline"
)

const (
	// NameComponentLatest is the child of a stream namespace holding
	// versioned pointers to the newest sequence number.
	NameComponentLatest = "_latest"

	// NameComponentMeta is the child of each sequence namespace
	// holding the object's ContentMetaInfo.
	NameComponentMeta = object.NameComponentMeta

	// DefaultPipelineSize is the number of sequence numbers a
	// pipelined consumer keeps outstanding.
	DefaultPipelineSize = 8

	// DefaultLatestPacketFreshnessPeriod is the freshness period of
	// produced _latest packets.
	DefaultLatestPacketFreshnessPeriod = time.Second
)

// LatestComponent is NameComponentLatest as a name component.
var LatestComponent = ndn.NewGenericComponent(NameComponentLatest)

// ErrPipelineSign is returned by SetPipelineSize when the new size
// would switch between polling mode (zero) and pipelined mode.
var ErrPipelineSign = errors.New("pipeline size cannot change between zero and non-zero")

// OnSequencedGeneralizedObject is called once for each sequence number
// whose generalized object has been retrieved. The object bytes are
// objectNamespace.ContentBytes().
type OnSequencedGeneralizedObject func(sequence uint64, meta *object.ContentMetaInfo, objectNamespace *namespace.Namespace)

// Options configures a Handler.
type Options struct {
	// LatestPacketFreshnessPeriod is the freshness period of produced
	// _latest packets. Defaults to DefaultLatestPacketFreshnessPeriod.
	LatestPacketFreshnessPeriod time.Duration

	// MaxSegmentPayloadLength is passed to the object handler.
	MaxSegmentPayloadLength int

	// SegmentPipelineSize is the window used for the segments of one
	// object.
	SegmentPipelineSize int

	// Logger defaults to the namespace's logger.
	Logger *slog.Logger
}

type delivery struct {
	meta            *object.ContentMetaInfo
	objectNamespace *namespace.Namespace
}

// Handler publishes or follows a stream of generalized objects at
// sequence-numbered children of a namespace, using a _latest child to
// announce the newest sequence number.
//
// With a non-zero pipeline size a consumer resolves _latest once and
// then keeps that many sequence numbers requested ahead, returning to
// _latest only when the highest request times out. With a zero
// pipeline size it polls _latest continuously and fetches whatever
// sequence number it names.
//
// A Handler runs on the face loop of its namespace and is not safe for
// concurrent use.
type Handler struct {
	namespace *namespace.Namespace
	latest    *namespace.Namespace
	objects   *object.GeneralizedObjectHandler
	window    *pipeline.Pipeline
	logger    *slog.Logger

	pipelineSize                int
	latestPacketFreshnessPeriod time.Duration
	producedSequenceNumber      int64
	onSequencedObject           OnSequencedGeneralizedObject
	delivered                   map[uint64]delivery

	stateCallbackID  uint64
	neededCallbackID uint64
}

// NewHandler attaches a stream handler to streamNamespace. A negative
// pipelineSize is treated as zero. onSequencedObject may be nil, in
// which case applications observe ContentReady on the sequence
// namespaces instead.
func NewHandler(streamNamespace *namespace.Namespace, pipelineSize int, onSequencedObject OnSequencedGeneralizedObject, options Options) *Handler {
	if options.LatestPacketFreshnessPeriod <= 0 {
		options.LatestPacketFreshnessPeriod = DefaultLatestPacketFreshnessPeriod
	}
	logger := options.Logger
	if logger == nil {
		logger = streamNamespace.Logger()
	}

	h := &Handler{
		namespace: streamNamespace,
		latest:    streamNamespace.Child(LatestComponent),
		objects: object.NewGeneralizedObjectHandler(object.Options{
			MaxSegmentPayloadLength: options.MaxSegmentPayloadLength,
			PipelineSize:            options.SegmentPipelineSize,
			Logger:                  logger,
		}),
		logger:                      logger,
		pipelineSize:                max(pipelineSize, 0),
		latestPacketFreshnessPeriod: options.LatestPacketFreshnessPeriod,
		producedSequenceNumber:      -1,
		onSequencedObject:           onSequencedObject,
		delivered:                   make(map[uint64]delivery),
	}
	h.window = pipeline.New(pipeline.Options{
		Size:       h.pipelineSize,
		Request:    h.requestSequence,
		Skip:       h.alreadyRequested,
		OnComplete: h.report,
		Logger:     logger,
	})
	h.neededCallbackID = streamNamespace.AddOnObjectNeeded(h.onObjectNeeded)
	h.stateCallbackID = streamNamespace.AddOnStateChanged(h.onStateChanged)
	return h
}

// Namespace returns the stream namespace.
func (h *Handler) Namespace() *namespace.Namespace { return h.namespace }

// Pipeline returns the sequence window, for inspection.
func (h *Handler) Pipeline() *pipeline.Pipeline { return h.window }

// ProducedSequenceNumber returns the last sequence number published by
// SetObject or AddObject, or -1.
func (h *Handler) ProducedSequenceNumber() int64 { return h.producedSequenceNumber }

// LatestPacketFreshnessPeriod returns the freshness period of produced
// _latest packets.
func (h *Handler) LatestPacketFreshnessPeriod() time.Duration {
	return h.latestPacketFreshnessPeriod
}

// SetLatestPacketFreshnessPeriod sets the freshness period of produced
// _latest packets. Negative periods are treated as zero.
func (h *Handler) SetLatestPacketFreshnessPeriod(period time.Duration) {
	h.latestPacketFreshnessPeriod = max(period, 0)
}

// PipelineSize returns the pipeline size. Zero means polling mode.
func (h *Handler) PipelineSize() int { return h.pipelineSize }

// SetPipelineSize changes the window of a pipelined handler. A
// negative size is treated as zero. Switching between zero and
// non-zero returns ErrPipelineSign and leaves the size unchanged.
func (h *Handler) SetPipelineSize(size int) error {
	size = max(size, 0)
	if (size == 0) != (h.pipelineSize == 0) {
		return fmt.Errorf("%w: %d to %d", ErrPipelineSign, h.pipelineSize, size)
	}
	h.pipelineSize = size
	h.window.SetSize(size)
	return nil
}

// MaxSegmentPayloadLength returns the segment size of produced
// objects.
func (h *Handler) MaxSegmentPayloadLength() int { return h.objects.MaxSegmentPayloadLength() }

// SetMaxSegmentPayloadLength sets the segment size of produced
// objects.
func (h *Handler) SetMaxSegmentPayloadLength(length int) {
	h.objects.SetMaxSegmentPayloadLength(length)
}

// Close detaches the handler from its namespace.
func (h *Handler) Close() {
	h.namespace.RemoveCallback(h.stateCallbackID)
	h.namespace.RemoveCallback(h.neededCallbackID)
}

func (h *Handler) sequenceNamespace(sequence uint64) *namespace.Namespace {
	return h.namespace.Child(ndn.NewSequenceNumberComponent(sequence))
}
