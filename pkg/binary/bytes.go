package binary

import (
	"bytes"
	"encoding/binary"
	"math"
)

// byteReader is a bounds checked cursor over a chunk payload. Every read that
// would run past the end fails with ErrMalformedFile.
type byteReader struct {
	buf []byte
	off int
}

func newByteReader(buf []byte) *byteReader {
	return &byteReader{buf: buf}
}

func (r *byteReader) remaining() int {
	return len(r.buf) - r.off
}

func (r *byteReader) take(n int) ([]byte, error) {
	if n < 0 || n > r.remaining() {
		return nil, malformed("need %d bytes at offset %d, have %d", n, r.off, r.remaining())
	}
	b := r.buf[r.off : r.off+n]
	r.off += n
	return b, nil
}

func (r *byteReader) u8() (byte, error) {
	b, err := r.take(1)
	if err != nil {
		return 0, err
	}
	return b[0], nil
}

func (r *byteReader) u32() (uint32, error) {
	b, err := r.take(4)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(b), nil
}

func (r *byteReader) f32() (float32, error) {
	u, err := r.u32()
	return math.Float32frombits(u), err
}

// count reads a u32 element count and checks that count elements of
// elemSize bytes can still be present.
func (r *byteReader) count(elemSize int) (int, error) {
	n, err := r.u32()
	if err != nil {
		return 0, err
	}
	if elemSize > 0 && uint64(n)*uint64(elemSize) > uint64(r.remaining()) {
		return 0, malformed("count %d exceeds remaining %d bytes", n, r.remaining())
	}
	return int(n), nil
}

func (r *byteReader) str() ([]byte, error) {
	n, err := r.u32()
	if err != nil {
		return nil, err
	}
	if uint64(n) > uint64(r.remaining()) {
		return nil, malformed("string length %d exceeds remaining %d bytes", n, r.remaining())
	}
	return r.take(int(n))
}

// interleaved reads n values of width bytes stored byte-plane by byte-plane
// and returns them un-interleaved.
func (r *byteReader) interleaved(n, width int) ([]byte, error) {
	if n < 0 || uint64(n)*uint64(width) > uint64(r.remaining()) {
		return nil, malformed("interleaved array of %d x %d bytes exceeds remaining %d", n, width, r.remaining())
	}
	src, err := r.take(n * width)
	if err != nil {
		return nil, err
	}
	out := make([]byte, n*width)
	for i := 0; i < n; i++ {
		for b := 0; b < width; b++ {
			out[i*width+b] = src[b*n+i]
		}
	}
	return out, nil
}

// byteWriter accumulates a chunk payload.
type byteWriter struct {
	bytes.Buffer
}

func (w *byteWriter) u8(v byte) {
	w.WriteByte(v)
}

func (w *byteWriter) u32(v uint32) {
	var b [4]byte
	binary.LittleEndian.PutUint32(b[:], v)
	w.Write(b[:])
}

func (w *byteWriter) f32(v float32) {
	w.u32(math.Float32bits(v))
}

func (w *byteWriter) str(s []byte) {
	w.u32(uint32(len(s)))
	w.Write(s)
}

// interleaved writes values of width bytes laid out byte-plane by byte-plane.
func (w *byteWriter) interleaved(values []byte, width int) {
	n := len(values) / width
	out := make([]byte, len(values))
	for i := 0; i < n; i++ {
		for b := 0; b < width; b++ {
			out[b*n+i] = values[i*width+b]
		}
	}
	w.Write(out)
}
