// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package object

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/bureau-foundation/cnl/lib/codec"
	"github.com/bureau-foundation/cnl/lib/namespace"
	"github.com/bureau-foundation/cnl/lib/ndn"
)

// ErrAlreadyPublished is returned by SetObject when the object
// namespace already holds a _meta packet.
var ErrAlreadyPublished = errors.New("object already published")

// OnGeneralizedObject is called when a generalized object has been
// retrieved and set on objectNamespace. The object bytes are
// objectNamespace.ContentBytes().
type OnGeneralizedObject func(meta *ContentMetaInfo, objectNamespace *namespace.Namespace)

// GeneralizedObjectHandler publishes and retrieves generalized
// objects: a _meta packet holding a ContentMetaInfo, plus seg=N
// children when the object does not fit in the _meta packet.
type GeneralizedObjectHandler struct {
	segmented *SegmentedObjectHandler
	logger    *slog.Logger
}

// NewGeneralizedObjectHandler returns a handler with the given options.
func NewGeneralizedObjectHandler(options Options) *GeneralizedObjectHandler {
	options = options.withDefaults()
	return &GeneralizedObjectHandler{
		segmented: NewSegmentedObjectHandler(options),
		logger:    options.Logger,
	}
}

// MaxSegmentPayloadLength returns the producer's segment size.
func (h *GeneralizedObjectHandler) MaxSegmentPayloadLength() int {
	return h.segmented.MaxSegmentPayloadLength()
}

// SetMaxSegmentPayloadLength changes the producer's segment size.
func (h *GeneralizedObjectHandler) SetMaxSegmentPayloadLength(length int) {
	h.segmented.SetMaxSegmentPayloadLength(length)
}

// SetObject publishes object under objectNamespace. An object that
// fits in one segment and has no other info travels inside the _meta
// packet; otherwise it is segmented and other is carried in _meta.
// objectNamespace itself reaches ContentReady with the object. An
// object is published at most once per namespace.
func (h *GeneralizedObjectHandler) SetObject(objectNamespace *namespace.Namespace, object []byte, contentType string, other []byte) (*ContentMetaInfo, error) {
	if objectNamespace.Child(MetaComponent).Data() != nil {
		return nil, fmt.Errorf("%w: %s", ErrAlreadyPublished, objectNamespace.Name())
	}
	meta := &ContentMetaInfo{
		ContentType: contentType,
		Timestamp:   now(objectNamespace).UnixMilli(),
		Size:        uint64(len(object)),
		Digest:      digestOf(object),
	}

	if len(other) > 0 || len(object) > h.segmented.MaxSegmentPayloadLength() {
		meta.HasSegments = true
		meta.Other = other
		if _, err := h.segmented.Publish(objectNamespace, object); err != nil {
			return nil, err
		}
	} else {
		meta.Other = object
	}

	wire, err := meta.Encode()
	if err != nil {
		return nil, fmt.Errorf("encoding content meta info for %s: %w", objectNamespace.Name(), err)
	}
	if _, err := objectNamespace.Child(MetaComponent).Publish(wire, ndn.MetaInfo{}); err != nil {
		return nil, fmt.Errorf("publishing _meta of %s: %w", objectNamespace.Name(), err)
	}
	objectNamespace.SetObject(object)
	return meta, nil
}

// Fetch requests the _meta packet of objectNamespace and, if needed,
// its segments. When the object is verified against the announced
// digest it is set on objectNamespace and onObject is called. A
// failure after the _meta request is logged; the _meta node's own
// state shows timeouts.
func (h *GeneralizedObjectHandler) Fetch(objectNamespace *namespace.Namespace, onObject OnGeneralizedObject) error {
	h.Attach(objectNamespace, onObject)
	if err := objectNamespace.Child(MetaComponent).ObjectNeeded(false); err != nil {
		return fmt.Errorf("fetching _meta of %s: %w", objectNamespace.Name(), err)
	}
	return nil
}

// Attach waits for the _meta packet of objectNamespace without
// requesting it, then proceeds as Fetch. Returns the observer id,
// which is removed once the object is delivered.
func (h *GeneralizedObjectHandler) Attach(objectNamespace *namespace.Namespace, onObject OnGeneralizedObject) uint64 {
	metaNamespace := objectNamespace.Child(MetaComponent)
	var callbackID uint64
	callbackID = objectNamespace.AddOnStateChanged(func(_, changed *namespace.Namespace, state namespace.State, _ uint64) {
		if changed != metaNamespace || state != namespace.ContentReady {
			return
		}
		objectNamespace.RemoveCallback(callbackID)
		h.onMeta(objectNamespace, metaNamespace.ContentBytes(), onObject)
	})
	return callbackID
}

func (h *GeneralizedObjectHandler) onMeta(objectNamespace *namespace.Namespace, wire []byte, onObject OnGeneralizedObject) {
	meta, err := DecodeContentMetaInfo(wire)
	if err != nil {
		diagnostic, _ := codec.Diagnose(wire)
		h.logger.Warn("dropping undecodable _meta",
			"name", objectNamespace.Name().String(),
			"error", err,
			"cbor", diagnostic,
		)
		return
	}

	if !meta.HasSegments {
		h.deliver(objectNamespace, meta, meta.Other, onObject)
		return
	}
	err = h.segmented.Fetch(objectNamespace, func(payload []byte) {
		h.deliver(objectNamespace, meta, payload, onObject)
	}, nil)
	if err != nil {
		h.logger.Warn("fetching segments failed", "name", objectNamespace.Name().String(), "error", err)
	}
}

func (h *GeneralizedObjectHandler) deliver(objectNamespace *namespace.Namespace, meta *ContentMetaInfo, object []byte, onObject OnGeneralizedObject) {
	if err := meta.Verify(object); err != nil {
		h.logger.Error("rejecting generalized object", "name", objectNamespace.Name().String(), "error", err)
		return
	}
	objectNamespace.SetObject(object)
	if onObject == nil {
		return
	}
	defer func() {
		if recovered := recover(); recovered != nil {
			h.logger.Error("generalized object callback panicked",
				"name", objectNamespace.Name().String(),
				"panic", fmt.Sprint(recovered),
			)
		}
	}()
	onObject(meta, objectNamespace)
}

func now(node *namespace.Namespace) time.Time {
	if nodeFace := node.Face(); nodeFace != nil {
		return nodeFace.Now()
	}
	return time.Now()
}
