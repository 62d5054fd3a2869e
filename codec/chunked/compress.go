package chunked

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"

	"github.com/andybalholm/brotli"
	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
)

// Compression selects the per-chunk compression codec.
type Compression uint16

const (
	CompNone Compression = 0
	CompZstd Compression = 1
	CompLZ4  Compression = 2
	CompBR   Compression = 3
)

// String returns the descriptor id of the compression codec.
func (c Compression) String() string {
	switch c {
	case CompNone:
		return "none"
	case CompZstd:
		return "zstd"
	case CompLZ4:
		return "lz4"
	case CompBR:
		return "brotli"
	}
	return fmt.Sprintf("compression(%d)", uint16(c))
}

func parseCompression(id string) (Compression, error) {
	switch id {
	case "none":
		return CompNone, nil
	case "zstd":
		return CompZstd, nil
	case "lz4":
		return CompLZ4, nil
	case "brotli":
		return CompBR, nil
	}
	return 0, fmt.Errorf("%w: compression id %q", ErrCorrupt, id)
}

// compressChunk compresses raw chunk bytes. Compressed payloads carry
// an 8-byte uncompressed length prefix so decompression can be bounded;
// CompNone payloads are the raw bytes with no prefix.
func compressChunk(comp Compression, raw []byte) ([]byte, error) {
	if comp == CompNone {
		return raw, nil
	}
	var compressed []byte
	var err error
	switch comp {
	case CompZstd:
		compressed, err = zstdCompress(raw)
	case CompLZ4:
		compressed, err = lz4Compress(raw)
	case CompBR:
		compressed, err = brotliCompress(raw)
	default:
		return nil, fmt.Errorf("%w: unknown compression %d", ErrCorrupt, comp)
	}
	if err != nil {
		return nil, err
	}
	payload := make([]byte, 8, 8+len(compressed))
	binary.LittleEndian.PutUint64(payload, uint64(len(raw)))
	return append(payload, compressed...), nil
}

// decompressChunk reverses compressChunk. expected bounds the output so
// a corrupt or hostile file cannot expand past the chunk size the
// descriptor promised.
func decompressChunk(comp Compression, payload []byte, expected uint64) ([]byte, error) {
	if comp == CompNone {
		if uint64(len(payload)) != expected {
			return nil, fmt.Errorf("%w: raw chunk is %d bytes, want %d", ErrCorrupt, len(payload), expected)
		}
		return payload, nil
	}
	if len(payload) < 8 {
		return nil, fmt.Errorf("%w: chunk payload too short for length prefix", ErrCorrupt)
	}
	uncompressed := binary.LittleEndian.Uint64(payload[:8])
	if uncompressed != expected {
		return nil, fmt.Errorf("%w: chunk declares %d bytes, descriptor wants %d", ErrCorrupt, uncompressed, expected)
	}
	body := payload[8:]

	var out []byte
	var err error
	switch comp {
	case CompZstd:
		out, err = zstdDecompress(body, expected)
	case CompLZ4:
		out, err = lz4Decompress(body, expected)
	case CompBR:
		out, err = brotliDecompress(body, expected)
	default:
		return nil, fmt.Errorf("%w: unknown compression %d", ErrCorrupt, comp)
	}
	if err != nil {
		return nil, err
	}
	if uint64(len(out)) != expected {
		return nil, fmt.Errorf("%w: chunk decompressed to %d bytes, want %d", ErrCorrupt, len(out), expected)
	}
	return out, nil
}

func zstdCompress(in []byte) ([]byte, error) {
	enc, err := zstd.NewWriter(nil)
	if err != nil {
		return nil, err
	}
	defer enc.Close()
	return enc.EncodeAll(in, nil), nil
}

func zstdDecompress(in []byte, expected uint64) ([]byte, error) {
	dec, err := zstd.NewReader(nil)
	if err != nil {
		return nil, err
	}
	defer dec.Close()
	out, err := dec.DecodeAll(in, nil)
	if err != nil {
		return nil, err
	}
	if uint64(len(out)) > expected {
		return nil, fmt.Errorf("%w: zstd chunk expanded beyond declared size", ErrCorrupt)
	}
	return out, nil
}

func lz4Compress(in []byte) ([]byte, error) {
	var buf bytes.Buffer
	zw := lz4.NewWriter(&buf)
	if _, err := zw.Write(in); err != nil {
		_ = zw.Close()
		return nil, err
	}
	if err := zw.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func lz4Decompress(in []byte, expected uint64) ([]byte, error) {
	r := lz4.NewReader(bytes.NewReader(in))
	out, err := io.ReadAll(io.LimitReader(r, int64(expected)+1))
	if err != nil {
		return nil, err
	}
	if uint64(len(out)) > expected {
		return nil, fmt.Errorf("%w: lz4 chunk expanded beyond declared size", ErrCorrupt)
	}
	return out, nil
}

func brotliCompress(in []byte) ([]byte, error) {
	var buf bytes.Buffer
	bw := brotli.NewWriter(&buf)
	if _, err := bw.Write(in); err != nil {
		_ = bw.Close()
		return nil, err
	}
	if err := bw.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func brotliDecompress(in []byte, expected uint64) ([]byte, error) {
	r := brotli.NewReader(bytes.NewReader(in))
	out, err := io.ReadAll(io.LimitReader(r, int64(expected)+1))
	if err != nil {
		return nil, err
	}
	if uint64(len(out)) > expected {
		return nil, fmt.Errorf("%w: brotli chunk expanded beyond declared size", ErrCorrupt)
	}
	return out, nil
}
