// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package ndn

import (
	"bytes"
	"crypto/sha256"
	"encoding/binary"
	"fmt"
	"io"

	enc "github.com/named-data/ndnd/std/encoding"
	ndnlib "github.com/named-data/ndnd/std/ndn"
	spec "github.com/named-data/ndnd/std/ndn/spec_2022"
	"github.com/named-data/ndnd/std/types/optional"
)

// Outer TLV types of the packets a stream carries.
const (
	tlvInterest enc.TLNum = 0x05
	tlvData     enc.TLNum = 0x06
	tlvLpPacket enc.TLNum = 0x64
)

// MaxPacketSize bounds one TLV packet on a stream.
const MaxPacketSize = 8800

// Packet is the envelope exchanged by stream faces. Exactly one field
// is set. On the wire it is a bare Interest or Data TLV, or an
// NDNLPv2 LpPacket carrying a Nack header and the rejected Interest.
type Packet struct {
	Interest *Interest
	Data     *Data
	Nack     *Nack
}

// Validate checks that exactly one packet kind is present and that it
// carries a name.
func (p *Packet) Validate() error {
	count := 0
	if p.Interest != nil {
		count++
		if len(p.Interest.Name) == 0 {
			return fmt.Errorf("%w: interest without a name", ErrMalformed)
		}
	}
	if p.Data != nil {
		count++
		if len(p.Data.Name) == 0 {
			return fmt.Errorf("%w: data without a name", ErrMalformed)
		}
	}
	if p.Nack != nil {
		count++
	}
	if count != 1 {
		return fmt.Errorf("%w: packet envelope holds %d packets", ErrMalformed, count)
	}
	return nil
}

// EncodePacket returns the TLV encoding of packet.
func EncodePacket(packet *Packet) ([]byte, error) {
	if err := packet.Validate(); err != nil {
		return nil, err
	}
	switch {
	case packet.Interest != nil:
		return EncodeInterest(packet.Interest)
	case packet.Data != nil:
		return EncodeData(packet.Data)
	default:
		return encodeNack(packet.Nack)
	}
}

// DecodePacket decodes one TLV packet as read by ReadPacket. An
// LpPacket without a Nack header is unwrapped to its fragment.
func DecodePacket(wire []byte) (*Packet, error) {
	typ, err := outerType(wire)
	if err != nil {
		return nil, err
	}
	var packet *Packet
	switch typ {
	case tlvInterest:
		interest, err := DecodeInterest(wire)
		if err != nil {
			return nil, err
		}
		packet = &Packet{Interest: interest}
	case tlvData:
		data, err := DecodeData(wire)
		if err != nil {
			return nil, err
		}
		packet = &Packet{Data: data}
	case tlvLpPacket:
		packet, err = decodeLpPacket(wire)
		if err != nil {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("%w: unknown packet type %#x", ErrMalformed, uint64(typ))
	}
	if err := packet.Validate(); err != nil {
		return nil, err
	}
	return packet, nil
}

// ReadPacket reads one TLV packet from r and returns its full
// encoding, header included.
func ReadPacket(r io.ByteReader) ([]byte, error) {
	var header bytes.Buffer
	if _, err := readVarNumber(r, &header); err != nil {
		return nil, err
	}
	length, err := readVarNumber(r, &header)
	if err != nil {
		return nil, noEOF(err)
	}
	if length > MaxPacketSize {
		return nil, fmt.Errorf("%w: packet of %d bytes exceeds %d", ErrMalformed, length, MaxPacketSize)
	}
	wire := make([]byte, header.Len()+int(length))
	copy(wire, header.Bytes())
	for i := header.Len(); i < len(wire); i++ {
		b, err := r.ReadByte()
		if err != nil {
			return nil, noEOF(err)
		}
		wire[i] = b
	}
	return wire, nil
}

// readVarNumber reads an NDN TLV variable-length number, appending the
// raw bytes to header.
func readVarNumber(r io.ByteReader, header *bytes.Buffer) (uint64, error) {
	first, err := r.ReadByte()
	if err != nil {
		return 0, err
	}
	header.WriteByte(first)
	var size int
	switch first {
	case 0xfd:
		size = 2
	case 0xfe:
		size = 4
	case 0xff:
		size = 8
	default:
		return uint64(first), nil
	}
	var buffer [8]byte
	for i := range size {
		b, err := r.ReadByte()
		if err != nil {
			return 0, noEOF(err)
		}
		buffer[8-size+i] = b
	}
	header.Write(buffer[8-size:])
	return binary.BigEndian.Uint64(buffer[:]), nil
}

// noEOF turns an EOF inside a packet into ErrUnexpectedEOF.
func noEOF(err error) error {
	if err == io.EOF {
		return io.ErrUnexpectedEOF
	}
	return err
}

func outerType(wire []byte) (enc.TLNum, error) {
	var header bytes.Buffer
	typ, err := readVarNumber(bytes.NewReader(wire), &header)
	if err != nil {
		return 0, fmt.Errorf("%w: empty packet", ErrMalformed)
	}
	return enc.TLNum(typ), nil
}

// EncodeInterest returns the TLV encoding of interest. The lifetime is
// always written, so the receiver sees the effective lifetime.
func EncodeInterest(interest *Interest) ([]byte, error) {
	config := &ndnlib.InterestConfig{
		CanBePrefix: interest.CanBePrefix,
		MustBeFresh: interest.MustBeFresh,
		Lifetime:    optional.Some(interest.EffectiveLifetime()),
		Nonce:       optional.Some(interest.Nonce),
	}
	encoded, err := spec.Spec{}.MakeInterest(interest.Name, config, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("encoding interest %s: %w", interest.Name, err)
	}
	return encoded.Wire.Join(), nil
}

// DecodeInterest decodes an Interest from its TLV encoding.
func DecodeInterest(wire []byte) (*Interest, error) {
	packet, _, err := spec.Spec{}.ReadInterest(enc.NewBufferView(wire))
	if err != nil {
		return nil, fmt.Errorf("%w: interest: %v", ErrMalformed, err)
	}
	interest := &Interest{
		Name:        packet.Name(),
		CanBePrefix: packet.CanBePrefix(),
		MustBeFresh: packet.MustBeFresh(),
	}
	if lifetime, ok := packet.Lifetime().Get(); ok {
		interest.Lifetime = lifetime
	}
	if nonce, ok := packet.Nonce().Get(); ok {
		interest.Nonce = nonce
	}
	return interest, nil
}

func encodeNack(nack *Nack) ([]byte, error) {
	fragment, err := EncodeInterest(&nack.Interest)
	if err != nil {
		return nil, err
	}
	packet := &spec.Packet{
		LpPacket: &spec.LpPacket{
			Nack:     &spec.NetworkNack{Reason: uint64(nack.Reason)},
			Fragment: enc.Wire{fragment},
		},
	}
	encoder := spec.PacketEncoder{}
	encoder.Init(packet)
	return encoder.Encode(packet).Join(), nil
}

func decodeLpPacket(wire []byte) (*Packet, error) {
	packet, _, err := spec.ReadPacket(enc.NewBufferView(wire))
	if err != nil {
		return nil, fmt.Errorf("%w: link packet: %v", ErrMalformed, err)
	}
	lp := packet.LpPacket
	if lp == nil || len(lp.Fragment) == 0 {
		return nil, fmt.Errorf("%w: link packet without a fragment", ErrMalformed)
	}
	fragment := lp.Fragment.Join()
	if lp.Nack == nil {
		return DecodePacket(fragment)
	}
	interest, err := DecodeInterest(fragment)
	if err != nil {
		return nil, err
	}
	return &Packet{Nack: &Nack{Interest: *interest, Reason: NackReason(lp.Nack.Reason)}}, nil
}

// EncodeData returns the TLV encoding of data. A packet that was never
// signed, or was changed after signing, is encoded with a
// DigestSha256 signature; data itself is left as it is.
func EncodeData(data *Data) ([]byte, error) {
	if data.sealed() {
		return data.seal.wire, nil
	}
	unsigned := *data
	if err := (DigestSigner{}).Sign(&unsigned); err != nil {
		return nil, err
	}
	return unsigned.seal.wire, nil
}

// DecodeData decodes a Data packet from its TLV encoding. The result
// is sealed, so its signature can be verified.
func DecodeData(wire []byte) (*Data, error) {
	packet, signed, err := spec.Spec{}.ReadData(enc.NewBufferView(wire))
	if err != nil {
		return nil, fmt.Errorf("%w: data: %v", ErrMalformed, err)
	}
	data := &Data{
		Name:    packet.Name(),
		Content: packet.Content().Join(),
	}
	if contentType, ok := packet.ContentType().Get(); ok {
		data.MetaInfo.ContentType = contentType
	}
	if freshness, ok := packet.Freshness().Get(); ok {
		data.MetaInfo.FreshnessPeriod = freshness
	}
	if final, ok := packet.FinalBlockID().Get(); ok {
		data.MetaInfo.FinalBlockID = &final
	}
	if signature := packet.Signature(); signature != nil {
		data.Signature = Signature{
			Type:       signature.SigType(),
			KeyLocator: signature.KeyName(),
			Value:      signature.SigValue(),
		}
	}
	data.seal = &seal{
		wire:     wire,
		signed:   signed.Join(),
		name:     data.Name,
		metaInfo: data.MetaInfo,
		content:  bytes.Clone(data.Content),
	}
	return data, nil
}

// sign encodes data with signer and replaces its fields with the
// encoded result, sealing it.
func (d *Data) sign(signer ndnlib.Signer) error {
	config := &ndnlib.DataConfig{
		ContentType: optional.Some(d.MetaInfo.ContentType),
	}
	if d.MetaInfo.FreshnessPeriod > 0 {
		config.Freshness = optional.Some(d.MetaInfo.FreshnessPeriod)
	}
	if d.MetaInfo.FinalBlockID != nil {
		config.FinalBlockID = optional.Some(*d.MetaInfo.FinalBlockID)
	}
	var content enc.Wire
	if len(d.Content) > 0 {
		content = enc.Wire{d.Content}
	}

	encoded, err := spec.Spec{}.MakeData(d.Name, config, content, signer)
	if err != nil {
		return fmt.Errorf("encoding data %s: %w", d.Name, err)
	}
	decoded, err := DecodeData(encoded.Wire.Join())
	if err != nil {
		return fmt.Errorf("re-reading data %s: %w", d.Name, err)
	}
	*d = *decoded
	return nil
}

// FullName returns the Data name with its implicit SHA-256 digest
// component appended. The digest covers the whole TLV encoding,
// signature included.
func (d *Data) FullName() (Name, error) {
	wire, err := EncodeData(d)
	if err != nil {
		return nil, fmt.Errorf("encoding data for implicit digest: %w", err)
	}
	digest := sha256.Sum256(wire)
	component, err := NewImplicitSha256DigestComponent(digest[:])
	if err != nil {
		return nil, err
	}
	return d.Name.Append(component), nil
}
