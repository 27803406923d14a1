package persist

import (
	"encoding/binary"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/hupe1980/cla"
	"github.com/hupe1980/cla/internal/conv"
	"github.com/hupe1980/cla/internal/hash"
	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
)

const (
	// Magic identifies envelope blobs (ASCII: "CLA1").
	Magic = "CLA1"
	// Version is the current envelope format version.
	Version = 1

	// Header layout: magic[4] version[1] kind[1] reserved[2] raw[4] payload[4]
	headerSize  = 16
	trailerSize = 4
)

var (
	ErrInvalidMagic   = errors.New("invalid magic number")
	ErrInvalidVersion = errors.New("unsupported version")
	ErrUnknownKind    = errors.New("unknown compression kind")
)

// Compression selects the envelope payload codec.
type Compression uint8

const (
	// CompressionNone stores the serialized block as is.
	CompressionNone Compression = 0
	// CompressionLZ4 uses LZ4 block compression.
	CompressionLZ4 Compression = 1
	// CompressionZSTD uses zstd at the default level.
	CompressionZSTD Compression = 2
)

func (c Compression) String() string {
	switch c {
	case CompressionNone:
		return "none"
	case CompressionLZ4:
		return "lz4"
	case CompressionZSTD:
		return "zstd"
	default:
		return fmt.Sprintf("compression(%d)", uint8(c))
	}
}

// ParseCompression maps "none", "lz4" or "zstd" to a Compression.
func ParseCompression(s string) (Compression, error) {
	switch strings.ToLower(s) {
	case "", "none":
		return CompressionNone, nil
	case "lz4":
		return CompressionLZ4, nil
	case "zstd":
		return CompressionZSTD, nil
	default:
		return 0, fmt.Errorf("%w: %q", ErrUnknownKind, s)
	}
}

// ChecksumMismatchError is returned when envelope verification fails.
type ChecksumMismatchError struct {
	Expected uint32
	Actual   uint32
}

func (e *ChecksumMismatchError) Error() string {
	return fmt.Sprintf("checksum mismatch: expected 0x%08x, got 0x%08x", e.Expected, e.Actual)
}

// Unwrap lets errors.Is match cla.ErrCorrupt.
func (e *ChecksumMismatchError) Unwrap() error { return cla.ErrCorrupt }

var (
	zstdEncoderPool sync.Pool
	zstdDecoderPool sync.Pool
)

func getZstdEncoder() (*zstd.Encoder, error) {
	if v := zstdEncoderPool.Get(); v != nil {
		return v.(*zstd.Encoder), nil
	}
	return zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
}

func getZstdDecoder() (*zstd.Decoder, error) {
	if v := zstdDecoderPool.Get(); v != nil {
		return v.(*zstd.Decoder), nil
	}
	return zstd.NewReader(nil)
}

// checksum is the CRC32-C of header followed by payload.
func checksum(header, payload []byte) uint32 {
	h := hash.NewCRC32C()
	_, _ = h.Write(header)
	_, _ = h.Write(payload)
	return h.Sum32()
}

// seal wraps a serialized block into an envelope. The kind actually used is
// returned: LZ4 falls back to none when the block does not shrink.
func seal(raw []byte, kind Compression) ([]byte, Compression, error) {
	rawSize, err := conv.IntToUint32(len(raw))
	if err != nil {
		return nil, 0, err
	}

	var payload []byte
	switch kind {
	case CompressionNone:
		payload = raw
	case CompressionLZ4:
		buf := make([]byte, lz4.CompressBlockBound(len(raw)))
		n, err := lz4.CompressBlock(raw, buf, nil)
		if err != nil {
			return nil, 0, err
		}
		if n == 0 {
			kind, payload = CompressionNone, raw
		} else {
			payload = buf[:n]
		}
	case CompressionZSTD:
		enc, err := getZstdEncoder()
		if err != nil {
			return nil, 0, err
		}
		payload = enc.EncodeAll(raw, nil)
		zstdEncoderPool.Put(enc)
	default:
		return nil, 0, fmt.Errorf("%w: %d", ErrUnknownKind, kind)
	}

	payloadSize, err := conv.IntToUint32(len(payload))
	if err != nil {
		return nil, 0, err
	}

	out := make([]byte, headerSize+len(payload)+trailerSize)
	copy(out[0:4], Magic)
	out[4] = Version
	out[5] = byte(kind)
	binary.LittleEndian.PutUint32(out[8:], rawSize)
	binary.LittleEndian.PutUint32(out[12:], payloadSize)
	copy(out[headerSize:], payload)

	end := headerSize + len(payload)
	binary.LittleEndian.PutUint32(out[end:], checksum(out[:headerSize], payload))
	return out, kind, nil
}

// unseal verifies an envelope and returns the serialized block.
func unseal(data []byte) ([]byte, error) {
	if len(data) < headerSize+trailerSize {
		return nil, fmt.Errorf("%w: envelope too small (%d bytes)", cla.ErrCorrupt, len(data))
	}
	if string(data[0:4]) != Magic {
		return nil, fmt.Errorf("%w: %w: got %q", cla.ErrCorrupt, ErrInvalidMagic, data[0:4])
	}
	if data[4] != Version {
		return nil, fmt.Errorf("%w: got %d", ErrInvalidVersion, data[4])
	}

	end := len(data) - trailerSize
	want := binary.LittleEndian.Uint32(data[end:])
	if got := checksum(data[:headerSize], data[headerSize:end]); got != want {
		return nil, &ChecksumMismatchError{Expected: want, Actual: got}
	}

	kind := Compression(data[5])
	rawSize := int(binary.LittleEndian.Uint32(data[8:]))
	payloadSize := int(binary.LittleEndian.Uint32(data[12:]))
	if headerSize+payloadSize != end {
		return nil, fmt.Errorf("%w: payload size %d does not match envelope", cla.ErrCorrupt, payloadSize)
	}
	payload := data[headerSize:end]

	var raw []byte
	switch kind {
	case CompressionNone:
		raw = payload
	case CompressionLZ4:
		raw = make([]byte, rawSize)
		n, err := lz4.UncompressBlock(payload, raw)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", cla.ErrCorrupt, err)
		}
		raw = raw[:n]
	case CompressionZSTD:
		dec, err := getZstdDecoder()
		if err != nil {
			return nil, err
		}
		raw, err = dec.DecodeAll(payload, make([]byte, 0, rawSize))
		zstdDecoderPool.Put(dec)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", cla.ErrCorrupt, err)
		}
	default:
		return nil, fmt.Errorf("%w: %w: %d", cla.ErrCorrupt, ErrUnknownKind, kind)
	}

	if len(raw) != rawSize {
		return nil, fmt.Errorf("%w: decompressed size mismatch: %d != %d", cla.ErrCorrupt, len(raw), rawSize)
	}
	return raw, nil
}
