// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package transform

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
)

// CompressionTag identifies the compression algorithm of an envelope.
// The values are part of the envelope format.
type CompressionTag uint8

const (
	// CompressionNone stores the payload as is. Used when compression
	// would not make it smaller.
	CompressionNone CompressionTag = 0

	// CompressionLZ4 is LZ4 block compression: fast, moderate ratio.
	CompressionLZ4 CompressionTag = 1

	// CompressionZstd is zstd at the default level: better ratio for
	// text-like content.
	CompressionZstd CompressionTag = 2

	// CompressionAuto is not stored. It asks Compressor to probe each
	// payload with SelectCompression.
	CompressionAuto CompressionTag = 0xff
)

// String returns the configuration name of the tag.
func (tag CompressionTag) String() string {
	switch tag {
	case CompressionNone:
		return "none"
	case CompressionLZ4:
		return "lz4"
	case CompressionZstd:
		return "zstd"
	case CompressionAuto:
		return "auto"
	default:
		return fmt.Sprintf("unknown(%d)", tag)
	}
}

// ParseCompressionTag parses a configuration name.
func ParseCompressionTag(name string) (CompressionTag, error) {
	switch name {
	case "none":
		return CompressionNone, nil
	case "lz4":
		return CompressionLZ4, nil
	case "zstd":
		return CompressionZstd, nil
	case "auto":
		return CompressionAuto, nil
	default:
		return 0, fmt.Errorf("unknown compression %q", name)
	}
}

// compressionMagic starts every compression envelope:
//
//	"CNLZ" | tag (1 byte) | uncompressed length (uvarint) | body
var compressionMagic = []byte("CNLZ")

// maxUncompressedSize bounds the declared length of an envelope so a
// hostile packet cannot force a huge allocation.
const maxUncompressedSize = 64 << 20

var errIncompressible = errors.New("data is incompressible")

var (
	zstdEncoder *zstd.Encoder
	zstdDecoder *zstd.Decoder
)

func init() {
	var err error
	zstdEncoder, err = zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		panic("transform: zstd encoder initialization failed: " + err.Error())
	}
	zstdDecoder, err = zstd.NewReader(nil, zstd.WithDecoderMaxMemory(maxUncompressedSize))
	if err != nil {
		panic("transform: zstd decoder initialization failed: " + err.Error())
	}
}

// Compressor is a Stage that wraps payloads in a compression envelope.
type Compressor struct {
	// Tag selects the algorithm. CompressionAuto probes each payload.
	Tag CompressionTag

	// ContentType short-circuits the probe for known text types.
	ContentType string
}

var _ Stage = Compressor{}

// Encode implements Stage. A payload that does not compress is stored
// with CompressionNone.
func (c Compressor) Encode(payload []byte) ([]byte, error) {
	tag := c.Tag
	if tag == CompressionAuto {
		tag = SelectCompression(payload, c.ContentType)
	}

	body, err := compress(payload, tag)
	if errors.Is(err, errIncompressible) {
		tag, body, err = CompressionNone, payload, nil
	}
	if err != nil {
		return nil, err
	}

	envelope := make([]byte, 0, len(compressionMagic)+1+binary.MaxVarintLen64+len(body))
	envelope = append(envelope, compressionMagic...)
	envelope = append(envelope, byte(tag))
	envelope = binary.AppendUvarint(envelope, uint64(len(payload)))
	return append(envelope, body...), nil
}

// Detect implements Stage.
func (Compressor) Detect(content []byte) bool {
	return bytes.HasPrefix(content, compressionMagic)
}

// Decrypts implements Stage.
func (Compressor) Decrypts() bool { return false }

// Decode implements Stage.
func (Compressor) Decode(content []byte) ([]byte, error) {
	rest := content[len(compressionMagic):]
	if len(rest) < 1 {
		return nil, fmt.Errorf("compression envelope: missing tag")
	}
	tag := CompressionTag(rest[0])
	size, read := binary.Uvarint(rest[1:])
	if read <= 0 {
		return nil, fmt.Errorf("compression envelope: bad length")
	}
	if size > maxUncompressedSize {
		return nil, fmt.Errorf("compression envelope: declared size %d exceeds %d", size, maxUncompressedSize)
	}
	return decompress(rest[1+read:], tag, int(size))
}

func compress(data []byte, tag CompressionTag) ([]byte, error) {
	switch tag {
	case CompressionNone:
		return data, nil
	case CompressionLZ4:
		destination := make([]byte, lz4.CompressBlockBound(len(data)))
		written, err := lz4.CompressBlock(data, destination, nil)
		if err != nil {
			return nil, fmt.Errorf("lz4 compress: %w", err)
		}
		// Zero means lz4 found nothing to compress.
		if written == 0 || written >= len(data) {
			return nil, errIncompressible
		}
		return destination[:written], nil
	case CompressionZstd:
		compressed := zstdEncoder.EncodeAll(data, nil)
		if len(compressed) >= len(data) {
			return nil, errIncompressible
		}
		return compressed, nil
	default:
		return nil, fmt.Errorf("unsupported compression tag %d", tag)
	}
}

func decompress(body []byte, tag CompressionTag, size int) ([]byte, error) {
	switch tag {
	case CompressionNone:
		if len(body) != size {
			return nil, fmt.Errorf("uncompressed body: size %d does not match declared %d", len(body), size)
		}
		return body, nil
	case CompressionLZ4:
		destination := make([]byte, size)
		read, err := lz4.UncompressBlock(body, destination)
		if err != nil {
			return nil, fmt.Errorf("lz4 decompress: %w", err)
		}
		if read != size {
			return nil, fmt.Errorf("lz4 decompress: got %d bytes, declared %d", read, size)
		}
		return destination, nil
	case CompressionZstd:
		result, err := zstdDecoder.DecodeAll(body, make([]byte, 0, size))
		if err != nil {
			return nil, fmt.Errorf("zstd decompress: %w", err)
		}
		if len(result) != size {
			return nil, fmt.Errorf("zstd decompress: got %d bytes, declared %d", len(result), size)
		}
		return result, nil
	default:
		return nil, fmt.Errorf("unsupported compression tag %d", tag)
	}
}

// SelectCompression picks an algorithm for data. Known text content
// types get zstd without probing. Otherwise data is compressed with
// zstd as a probe: a ratio of at least 1.5 selects zstd, at least 1.1
// selects LZ4, and anything less is stored uncompressed.
func SelectCompression(data []byte, contentType string) CompressionTag {
	switch contentType {
	case "text/plain", "text/html", "text/csv", "text/markdown",
		"application/json", "application/x-ndjson", "application/xml":
		return CompressionZstd
	}
	if len(data) == 0 {
		return CompressionNone
	}

	ratio := float64(len(data)) / float64(len(zstdEncoder.EncodeAll(data, nil)))
	switch {
	case ratio >= 1.5:
		return CompressionZstd
	case ratio >= 1.1:
		return CompressionLZ4
	default:
		return CompressionNone
	}
}
