// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package namespace

import (
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"github.com/bureau-foundation/cnl/lib/face"
	"github.com/bureau-foundation/cnl/lib/ndn"
)

var (
	// ErrPrefixViolation is returned when a descendant name does not
	// start with the node's own name.
	ErrPrefixViolation = errors.New("name is not under this namespace")

	// ErrNameMismatch is returned when a Data packet is attached to a
	// node whose name differs from the packet's.
	ErrNameMismatch = errors.New("data name does not equal namespace name")

	// ErrNoFace is returned by network operations when neither the
	// node nor any ancestor has a face.
	ErrNoFace = errors.New("no face set on this namespace or an ancestor")

	// ErrDecryption marks a transform failure as a decryption failure.
	// Transformers wrap it so the node enters DecryptionError.
	ErrDecryption = errors.New("decryption failed")
)

// Transformer turns an attached Data packet into node content, for
// example by decrypting and decompressing it. It may finish
// synchronously or call done later from the loop. progress reports
// intermediate states (Decrypting, TransformingContent).
type Transformer interface {
	Transform(data *ndn.Data, progress func(State), done func(content any, err error))
}

// Encoder is the producer-side counterpart of a Transformer: it turns
// a plain payload into the content of a published Data packet.
type Encoder interface {
	Encode(payload []byte) ([]byte, error)
}

// Namespace is one node of a name tree. The root is created with New
// and owned by the caller; every other node is owned by its parent and
// created on first reference.
//
// A Namespace is not safe for concurrent use. All calls, and all
// callbacks it makes, happen on the face loop.
type Namespace struct {
	name     ndn.Name
	parent   *Namespace
	children map[ndn.ComponentKey]*Namespace
	// sortedChildKeys always holds exactly the keys of children, in
	// canonical component order.
	sortedChildKeys []ndn.Component

	state   State
	data    *ndn.Data
	content any
	// hasContent is set once content is ready, even if it is nil.
	hasContent bool
	// staleAt is when the attached data stops being fresh. Zero when
	// the data has no freshness period or no face supplies a clock.
	staleAt         time.Time
	freshGeneration uint64

	// Nearest-ancestor settings; nil means inherit.
	face        face.Face
	transformer Transformer
	encoder     Encoder
	signer      ndn.Signer
	logger      *slog.Logger
	retry       *face.RetryOptions

	onStateChanged []stateObserver
	onObjectNeeded []objectNeededObserver

	// Set when this node registered its name with its face.
	registrationID   uint64
	pendingInterests []pendingInterest
}

// New returns the root of a new tree with the given base name.
func New(name ndn.Name) *Namespace {
	return &Namespace{
		name:     slices.Clone(name),
		children: make(map[ndn.ComponentKey]*Namespace),
	}
}

// Name returns the full name of the node. Callers must not modify it.
func (n *Namespace) Name() ndn.Name { return n.name }

// Parent returns the parent node, or nil for the root.
func (n *Namespace) Parent() *Namespace { return n.parent }

// Root returns the root of the tree.
func (n *Namespace) Root() *Namespace {
	root := n
	for root.parent != nil {
		root = root.parent
	}
	return root
}

// State returns the current state.
func (n *Namespace) State() State { return n.state }

// Data returns the attached Data packet, or nil.
func (n *Namespace) Data() *ndn.Data { return n.data }

// Content returns the node's content: the transformed payload of the
// attached Data, or an object set with SetObject. Nil until the node
// reaches ContentReady.
func (n *Namespace) Content() any { return n.content }

// ContentBytes returns Content as a byte slice, or nil if the content
// is not bytes.
func (n *Namespace) ContentBytes() []byte {
	content, _ := n.content.([]byte)
	return content
}

// HasChild reports whether a child with the given component exists.
func (n *Namespace) HasChild(component ndn.Component) bool {
	_, ok := n.children[ndn.KeyOf(component)]
	return ok
}

// ChildComponents returns the components of all children in canonical
// order. The slice is a snapshot and does not change when children are
// added later.
func (n *Namespace) ChildComponents() []ndn.Component {
	return slices.Clone(n.sortedChildKeys)
}

// Child returns the child with the given component, creating it (and
// firing NameExists) if needed.
func (n *Namespace) Child(component ndn.Component) *Namespace {
	if child, ok := n.children[ndn.KeyOf(component)]; ok {
		return child
	}
	return n.createChild(component, true)
}

// GenericChild is Child with a generic component.
func (n *Namespace) GenericChild(value string) *Namespace {
	return n.Child(ndn.NewGenericComponent(value))
}

// Descendant returns the node with the given full name, creating any
// missing nodes on the way. Only the creation of the final node fires
// observers. A name equal to the node's own returns the node itself.
func (n *Namespace) Descendant(name ndn.Name) (*Namespace, error) {
	if !n.name.IsPrefix(name) {
		return nil, fmt.Errorf("%w: %s is not under %s", ErrPrefixViolation, name, n.name)
	}
	node := n
	for len(node.name) < len(name) {
		component := name[len(node.name)]
		if child, ok := node.children[ndn.KeyOf(component)]; ok {
			node = child
			continue
		}
		leaf := len(node.name) == len(name)-1
		node = node.createChild(component, leaf)
	}
	return node, nil
}

func (n *Namespace) createChild(component ndn.Component, fireCallbacks bool) *Namespace {
	child := &Namespace{
		name:     n.name.Append(component),
		parent:   n,
		children: make(map[ndn.ComponentKey]*Namespace),
	}
	n.children[ndn.KeyOf(component)] = child

	index, _ := slices.BinarySearchFunc(n.sortedChildKeys, component, func(a, b ndn.Component) int {
		return a.Compare(b)
	})
	n.sortedChildKeys = slices.Insert(n.sortedChildKeys, index, component)

	if fireCallbacks {
		child.setState(NameExists)
	}
	return child
}

// SetTransformer sets the transformer used when Data is attached to
// this node or a descendant without its own.
func (n *Namespace) SetTransformer(transformer Transformer) { n.transformer = transformer }

// SetEncoder sets the encoder used by Publish on this node or a
// descendant without its own.
func (n *Namespace) SetEncoder(encoder Encoder) { n.encoder = encoder }

// SetSigner sets the signer used by Publish on this node or a
// descendant without its own. The default is ndn.DigestSigner.
func (n *Namespace) SetSigner(signer ndn.Signer) { n.signer = signer }

// SetLogger sets the logger for this node and descendants without
// their own. The default is slog.Default().
func (n *Namespace) SetLogger(logger *slog.Logger) { n.logger = logger }

// SetRetryOptions sets the re-expression policy used by ExpressInterest
// on this node and descendants without their own.
func (n *Namespace) SetRetryOptions(options face.RetryOptions) { n.retry = &options }

// Face returns the face set on this node or the nearest ancestor, or
// nil.
func (n *Namespace) Face() face.Face {
	for node := n; node != nil; node = node.parent {
		if node.face != nil {
			return node.face
		}
	}
	return nil
}

func (n *Namespace) resolveTransformer() Transformer {
	for node := n; node != nil; node = node.parent {
		if node.transformer != nil {
			return node.transformer
		}
	}
	return nil
}

func (n *Namespace) resolveEncoder() Encoder {
	for node := n; node != nil; node = node.parent {
		if node.encoder != nil {
			return node.encoder
		}
	}
	return nil
}

func (n *Namespace) resolveSigner() ndn.Signer {
	for node := n; node != nil; node = node.parent {
		if node.signer != nil {
			return node.signer
		}
	}
	return ndn.DigestSigner{}
}

func (n *Namespace) resolveRetry() face.RetryOptions {
	for node := n; node != nil; node = node.parent {
		if node.retry != nil {
			return *node.retry
		}
	}
	return face.RetryOptions{}
}

// Logger returns the logger set on this node or the nearest ancestor.
func (n *Namespace) Logger() *slog.Logger {
	for node := n; node != nil; node = node.parent {
		if node.logger != nil {
			return node.logger
		}
	}
	return slog.Default()
}
