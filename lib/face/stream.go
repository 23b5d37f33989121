// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package face

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/bureau-foundation/cnl/lib/ndn"
)

// DefaultDeadNonceCapacity bounds the dead-nonce list of a StreamFace.
const DefaultDeadNonceCapacity = 4096

// StreamOptions configures a StreamFace.
type StreamOptions struct {
	Options

	// DeadNonceCapacity is the number of recently seen (name, nonce)
	// pairs remembered to drop looping Interests.
	DeadNonceCapacity int
}

type nonceKey struct {
	name  string
	nonce uint32
}

// incomingInterest is an Interest received from the peer that has not
// been answered yet.
type incomingInterest struct {
	interest *ndn.Interest
	expires  time.Time
}

// StreamFace is a Face over a byte stream (TCP or a unix socket)
// carrying NDN TLV packets back to back, as an NDN forwarder's stream
// faces do. A Nack travels as an NDNLPv2 link packet. A reader
// goroutine decodes packets and posts them to the loop; everything
// else happens on the loop.
//
// Incoming Interests are dispatched to the local registration with the
// longest matching prefix. With no registration the peer gets a
// NoRoute nack. PutData is sent only if it satisfies an unexpired
// Interest from the peer.
type StreamFace struct {
	endpoint

	conn       net.Conn
	writeMu    sync.Mutex
	deadNonces *lru.Cache[nonceKey, struct{}]
	incoming   []incomingInterest

	closeOnce sync.Once
	done      chan struct{}
}

var _ Face = (*StreamFace)(nil)

// NewStreamFace wraps an established connection and starts reading
// from it.
func NewStreamFace(conn net.Conn, loop *Loop, options StreamOptions) (*StreamFace, error) {
	capacity := options.DeadNonceCapacity
	if capacity <= 0 {
		capacity = DefaultDeadNonceCapacity
	}
	deadNonces, err := lru.New[nonceKey, struct{}](capacity)
	if err != nil {
		return nil, fmt.Errorf("creating dead-nonce list: %w", err)
	}

	face := &StreamFace{
		endpoint:   newEndpoint(loop, options.Options),
		conn:       conn,
		deadNonces: deadNonces,
		done:       make(chan struct{}),
	}
	go face.readLoop()
	return face, nil
}

// Dial connects to a listening StreamFace at address (host:port).
func Dial(ctx context.Context, address string, loop *Loop, options StreamOptions) (*StreamFace, error) {
	conn, err := (&net.Dialer{Timeout: 10 * time.Second}).DialContext(ctx, "tcp", address)
	if err != nil {
		return nil, fmt.Errorf("dialing %s: %w", address, err)
	}
	face, err := NewStreamFace(conn, loop, options)
	if err != nil {
		conn.Close()
		return nil, err
	}
	return face, nil
}

// Listener accepts inbound StreamFace connections.
type Listener struct {
	listener net.Listener
}

// Listen opens a TCP listener on address (for example ":6363", or
// "127.0.0.1:0" for a random port).
func Listen(address string) (*Listener, error) {
	listener, err := net.Listen("tcp", address)
	if err != nil {
		return nil, fmt.Errorf("listening on %s: %w", address, err)
	}
	return &Listener{listener: listener}, nil
}

// Accept blocks for the next connection and wraps it in a StreamFace
// bound to loop.
func (l *Listener) Accept(loop *Loop, options StreamOptions) (*StreamFace, error) {
	conn, err := l.listener.Accept()
	if err != nil {
		return nil, err
	}
	face, err := NewStreamFace(conn, loop, options)
	if err != nil {
		conn.Close()
		return nil, err
	}
	return face, nil
}

// Address returns the listening address in "host:port" form.
func (l *Listener) Address() string {
	return l.listener.Addr().String()
}

// Close stops accepting connections. Established faces stay open.
func (l *Listener) Close() error {
	return l.listener.Close()
}

// ExpressInterest implements Face.
func (s *StreamFace) ExpressInterest(interest *ndn.Interest, onData OnData, onTimeout OnTimeout, onNack OnNack) (uint64, error) {
	entry, err := s.addPending(interest, onData, onTimeout, onNack)
	if err != nil {
		return 0, fmt.Errorf("expressing %s: %w", interest.Name, err)
	}
	sent := *entry.interest
	if err := s.send(&ndn.Packet{Interest: &sent}); err != nil {
		s.RemovePendingInterest(entry.id)
		return 0, fmt.Errorf("expressing %s: %w", interest.Name, err)
	}
	return entry.id, nil
}

// PutData implements Face.
func (s *StreamFace) PutData(data *ndn.Data) error {
	if s.closed {
		return fmt.Errorf("putting %s: %w", data.Name, ErrClosed)
	}
	now := s.Now()
	remaining := s.incoming[:0]
	satisfied := false
	for _, waiting := range s.incoming {
		if !now.Before(waiting.expires) {
			continue
		}
		if waiting.interest.MatchesData(data) {
			satisfied = true
			continue
		}
		remaining = append(remaining, waiting)
	}
	s.incoming = remaining
	if !satisfied {
		return nil
	}

	s.options.Metrics.dataSent()
	if err := s.send(&ndn.Packet{Data: data}); err != nil {
		return fmt.Errorf("putting %s: %w", data.Name, err)
	}
	return nil
}

// Done is closed when the connection has shut down.
func (s *StreamFace) Done() <-chan struct{} { return s.done }

// Close shuts down the connection. Pending Interests still time out.
func (s *StreamFace) Close() error {
	var err error
	s.closeOnce.Do(func() {
		err = s.conn.Close()
	})
	return err
}

func (s *StreamFace) send(packet *ndn.Packet) error {
	wire, err := ndn.EncodePacket(packet)
	if err != nil {
		return err
	}
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	if _, err := s.conn.Write(wire); err != nil {
		if errors.Is(err, net.ErrClosed) || errors.Is(err, io.ErrClosedPipe) {
			return ErrClosed
		}
		return err
	}
	return nil
}

func (s *StreamFace) readLoop() {
	defer close(s.done)
	reader := bufio.NewReader(s.conn)
	for {
		wire, err := ndn.ReadPacket(reader)
		if err != nil {
			if !errors.Is(err, io.EOF) && !errors.Is(err, net.ErrClosed) {
				s.options.Logger.Warn("stream face read failed",
					"remote", s.conn.RemoteAddr().String(),
					"error", err,
				)
			}
			s.loop.Post(func() { s.closed = true })
			s.Close()
			return
		}
		packet, err := ndn.DecodePacket(wire)
		if err != nil {
			s.options.Logger.Debug("dropping malformed packet",
				"remote", s.conn.RemoteAddr().String(),
				"error", err,
			)
			continue
		}
		s.loop.Post(func() { s.receive(packet) })
	}
}

func (s *StreamFace) receive(packet *ndn.Packet) {
	switch {
	case packet.Interest != nil:
		s.receiveInterest(packet.Interest)
	case packet.Data != nil:
		s.satisfy(packet.Data)
	case packet.Nack != nil:
		s.rejectPending(packet.Nack)
	}
}

func (s *StreamFace) receiveInterest(interest *ndn.Interest) {
	key := nonceKey{name: interest.Name.String(), nonce: interest.Nonce}
	if s.deadNonces.Contains(key) {
		s.options.Logger.Debug("dropping looping interest", "name", key.name, "nonce", interest.Nonce)
		return
	}
	s.deadNonces.Add(key, struct{}{})

	s.incoming = append(s.incoming, incomingInterest{
		interest: interest,
		expires:  s.Now().Add(interest.EffectiveLifetime()),
	})
	if s.dispatchInterest(interest) {
		return
	}

	s.incoming = s.incoming[:len(s.incoming)-1]
	if err := s.send(&ndn.Packet{Nack: &ndn.Nack{Interest: *interest, Reason: ndn.NackNoRoute}}); err != nil {
		s.options.Logger.Debug("sending nack failed", "name", key.name, "error", err)
	}
}
