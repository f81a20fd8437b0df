package bundle

import (
	"errors"
	"fmt"
	"sync"

	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
)

// Compression identifies how an object's payload block is stored. The
// values are written into the container directory, so they never change.
type Compression uint8

const (
	CompressionNone Compression = 0
	CompressionLZ4  Compression = 1
	CompressionZstd Compression = 2
)

func (c Compression) String() string {
	switch c {
	case CompressionNone:
		return "none"
	case CompressionLZ4:
		return "lz4"
	case CompressionZstd:
		return "zstd"
	default:
		return fmt.Sprintf("unknown(%d)", c)
	}
}

var errIncompressible = errors.New("block is incompressible")

var (
	zstdOnce    sync.Once
	zstdEncoder *zstd.Encoder
	zstdDecoder *zstd.Decoder
	zstdInitErr error
)

func zstdCodecs() (*zstd.Encoder, *zstd.Decoder, error) {
	zstdOnce.Do(func() {
		zstdEncoder, zstdInitErr = zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
		if zstdInitErr != nil {
			return
		}
		zstdDecoder, zstdInitErr = zstd.NewReader(nil)
	})
	return zstdEncoder, zstdDecoder, zstdInitErr
}

// compressBlock returns the stored form of data and the tag that was
// actually used. LZ4 blocks that do not shrink are stored uncompressed.
func compressBlock(data []byte, tag Compression) ([]byte, Compression, error) {
	switch tag {
	case CompressionNone:
		return data, CompressionNone, nil
	case CompressionLZ4:
		out, err := compressLZ4(data)
		if errors.Is(err, errIncompressible) {
			return data, CompressionNone, nil
		}
		return out, CompressionLZ4, err
	case CompressionZstd:
		enc, _, err := zstdCodecs()
		if err != nil {
			return nil, tag, fmt.Errorf("zstd init: %w", err)
		}
		return enc.EncodeAll(data, nil), CompressionZstd, nil
	default:
		return nil, tag, fmt.Errorf("unsupported compression %s", tag)
	}
}

func decompressBlock(stored []byte, tag Compression, size int) ([]byte, error) {
	switch tag {
	case CompressionNone:
		if len(stored) != size {
			return nil, fmt.Errorf("uncompressed block is %d bytes, directory says %d", len(stored), size)
		}
		return stored, nil
	case CompressionLZ4:
		out := make([]byte, size)
		n, err := lz4.UncompressBlock(stored, out)
		if err != nil {
			return nil, fmt.Errorf("lz4 decompress: %w", err)
		}
		if n != size {
			return nil, fmt.Errorf("lz4 block decoded to %d bytes, directory says %d", n, size)
		}
		return out, nil
	case CompressionZstd:
		_, dec, err := zstdCodecs()
		if err != nil {
			return nil, fmt.Errorf("zstd init: %w", err)
		}
		out, err := dec.DecodeAll(stored, make([]byte, 0, size))
		if err != nil {
			return nil, fmt.Errorf("zstd decompress: %w", err)
		}
		if len(out) != size {
			return nil, fmt.Errorf("zstd block decoded to %d bytes, directory says %d", len(out), size)
		}
		return out, nil
	default:
		return nil, fmt.Errorf("unsupported compression %s", tag)
	}
}

func compressLZ4(data []byte) ([]byte, error) {
	if len(data) == 0 {
		return nil, errIncompressible
	}
	dst := make([]byte, lz4.CompressBlockBound(len(data)))
	n, err := lz4.CompressBlock(data, dst, nil)
	if err != nil {
		return nil, fmt.Errorf("lz4 compress: %w", err)
	}
	if n == 0 || n >= len(data) {
		return nil, errIncompressible
	}
	return dst[:n], nil
}
