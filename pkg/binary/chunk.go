package binary

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
)

const (
	headerSize      = 32
	chunkHeaderSize = 16

	// DefaultMaxChunkBytes bounds the declared size of a single chunk.
	DefaultMaxChunkBytes = 256 << 20
)

var (
	fileMagic     = []byte("<roblox!")
	fileSignature = []byte{0x89, 0xFF, 0x0D, 0x0A, 0x1A, 0x0A}
	zstdMagic     = []byte{0x28, 0xB5, 0x2F, 0xFD}
	endPayload    = []byte("</roblox>")
)

// Chunk names
const (
	chunkMeta = "META"
	chunkInst = "INST"
	chunkProp = "PROP"
	chunkPrnt = "PRNT"
	chunkEnd  = "END\x00"
)

// Compression selects how chunk payloads are written. Decoding accepts all of
// them regardless of this setting.
type Compression int

const (
	CompressionLZ4 Compression = iota
	CompressionZstd
	CompressionNone
)

func (c Compression) String() string {
	switch c {
	case CompressionLZ4:
		return "lz4"
	case CompressionZstd:
		return "zstd"
	case CompressionNone:
		return "none"
	}
	return fmt.Sprintf("Compression(%d)", int(c))
}

// ParseCompression parses "lz4", "zstd" or "none".
func ParseCompression(s string) (Compression, error) {
	switch strings.ToLower(s) {
	case "lz4", "":
		return CompressionLZ4, nil
	case "zstd":
		return CompressionZstd, nil
	case "none":
		return CompressionNone, nil
	}
	return 0, fmt.Errorf("unknown compression %q", s)
}

// Limits bounds the resources a decoder will commit to a single file.
type Limits struct {
	MaxChunkBytes int
}

// DefaultLimits returns the limits used when none are configured.
func DefaultLimits() Limits {
	return Limits{MaxChunkBytes: DefaultMaxChunkBytes}
}

// fileHeader is the fixed-size prologue of a file.
type fileHeader struct {
	Version      uint16
	NumClasses   int32
	NumInstances int32
}

func (h fileHeader) encode() []byte {
	buf := make([]byte, headerSize)
	copy(buf, fileMagic)
	copy(buf[8:], fileSignature)
	binary.LittleEndian.PutUint16(buf[14:], h.Version)
	binary.LittleEndian.PutUint32(buf[16:], uint32(h.NumClasses))
	binary.LittleEndian.PutUint32(buf[20:], uint32(h.NumInstances))
	return buf
}

func readHeader(r io.Reader) (fileHeader, error) {
	var h fileHeader
	buf := make([]byte, headerSize)
	if _, err := io.ReadFull(r, buf); err != nil {
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			return h, fmt.Errorf("%w: file shorter than header", ErrUnsupportedFormat)
		}
		return h, fmt.Errorf("failed to read header: %w", err)
	}
	if !bytes.Equal(buf[:8], fileMagic) || !bytes.Equal(buf[8:14], fileSignature) {
		return h, fmt.Errorf("%w: bad magic", ErrUnsupportedFormat)
	}
	h.Version = binary.LittleEndian.Uint16(buf[14:])
	if h.Version != 0 {
		return h, fmt.Errorf("%w: version %d", ErrUnsupportedFormat, h.Version)
	}
	h.NumClasses = int32(binary.LittleEndian.Uint32(buf[16:]))
	h.NumInstances = int32(binary.LittleEndian.Uint32(buf[20:]))
	if h.NumClasses < 0 || h.NumInstances < 0 {
		return h, malformed("negative counts in header")
	}
	return h, nil
}

// chunk is one decompressed chunk.
type chunk struct {
	Name        string
	Compression Compression
	Data        []byte
}

// writeChunk compresses payload according to c and writes it framed. When a
// payload does not compress it is stored raw.
func writeChunk(w io.Writer, name string, payload []byte, c Compression) error {
	var body []byte
	if name != chunkEnd {
		switch c {
		case CompressionLZ4:
			dst := make([]byte, lz4.CompressBlockBound(len(payload)))
			n, err := lz4.CompressBlock(payload, dst, nil)
			if err != nil {
				return fmt.Errorf("failed to compress %s chunk: %w", strings.TrimRight(name, "\x00"), err)
			}
			if n > 0 && n < len(payload) {
				body = dst[:n]
			}
		case CompressionZstd:
			body = zstdEncoder().EncodeAll(payload, nil)
		}
	}

	hdr := make([]byte, chunkHeaderSize)
	copy(hdr, name)
	if body != nil {
		binary.LittleEndian.PutUint32(hdr[4:], uint32(len(body)))
	} else {
		body = payload
	}
	binary.LittleEndian.PutUint32(hdr[8:], uint32(len(payload)))

	if _, err := w.Write(hdr); err != nil {
		return fmt.Errorf("failed to write chunk header: %w", err)
	}
	if _, err := w.Write(body); err != nil {
		return fmt.Errorf("failed to write chunk payload: %w", err)
	}
	return nil
}

// chunkReader reads framed chunks from a stream.
type chunkReader struct {
	r      io.Reader
	limits Limits
	zstd   *zstd.Decoder
}

func newChunkReader(r io.Reader, limits Limits) *chunkReader {
	if limits.MaxChunkBytes <= 0 {
		limits.MaxChunkBytes = DefaultMaxChunkBytes
	}
	return &chunkReader{r: r, limits: limits}
}

// next returns the next chunk. io.EOF is returned only when the stream ends
// cleanly on a chunk boundary.
func (cr *chunkReader) next() (*chunk, error) {
	hdr := make([]byte, chunkHeaderSize)
	n, err := io.ReadFull(cr.r, hdr)
	if err != nil {
		if errors.Is(err, io.EOF) && n == 0 {
			return nil, io.EOF
		}
		if errors.Is(err, io.ErrUnexpectedEOF) {
			return nil, malformed("truncated chunk header")
		}
		return nil, fmt.Errorf("failed to read chunk header: %w", err)
	}

	c := &chunk{Name: string(hdr[:4]), Compression: CompressionNone}
	compressed := binary.LittleEndian.Uint32(hdr[4:])
	size := binary.LittleEndian.Uint32(hdr[8:])
	if uint64(size) > uint64(cr.limits.MaxChunkBytes) || uint64(compressed) > uint64(cr.limits.MaxChunkBytes) {
		return nil, malformed("%s chunk of %d bytes exceeds limit %d", c.label(), size, cr.limits.MaxChunkBytes)
	}

	stored := size
	if compressed != 0 {
		stored = compressed
	}
	body := make([]byte, stored)
	if _, err := io.ReadFull(cr.r, body); err != nil {
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			return nil, malformed("truncated %s chunk", c.label())
		}
		return nil, fmt.Errorf("failed to read %s chunk: %w", c.label(), err)
	}

	if compressed == 0 {
		c.Data = body
		return c, nil
	}

	if bytes.HasPrefix(body, zstdMagic) {
		c.Compression = CompressionZstd
		if cr.zstd == nil {
			dec, err := zstd.NewReader(nil,
				zstd.WithDecoderConcurrency(1),
				zstd.WithDecoderMaxMemory(uint64(cr.limits.MaxChunkBytes)))
			if err != nil {
				return nil, fmt.Errorf("failed to create zstd decoder: %w", err)
			}
			cr.zstd = dec
		}
		c.Data, err = cr.zstd.DecodeAll(body, make([]byte, 0, size))
		if err != nil {
			return nil, malformed("%s chunk: zstd: %v", c.label(), err)
		}
	} else {
		c.Compression = CompressionLZ4
		c.Data = make([]byte, size)
		n, err := lz4.UncompressBlock(body, c.Data)
		if err != nil {
			return nil, malformed("%s chunk: lz4: %v", c.label(), err)
		}
		c.Data = c.Data[:n]
	}
	if len(c.Data) != int(size) {
		return nil, malformed("%s chunk decompressed to %d bytes, header says %d", c.label(), len(c.Data), size)
	}
	return c, nil
}

func (cr *chunkReader) close() {
	if cr.zstd != nil {
		cr.zstd.Close()
	}
}

func (c *chunk) label() string {
	return strings.TrimRight(c.Name, "\x00")
}
