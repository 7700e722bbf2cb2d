package binary

import (
	"encoding/binary"
	"math"
)

func zigzag32(v int32) uint32   { return uint32(v<<1) ^ uint32(v>>31) }
func unzigzag32(u uint32) int32 { return int32(u>>1) ^ -int32(u&1) }
func zigzag64(v int64) uint64   { return uint64(v<<1) ^ uint64(v>>63) }
func unzigzag64(u uint64) int64 { return int64(u>>1) ^ -int64(u&1) }

// Floats in interleaved columns keep the sign in the lowest bit.
func rotateFloat(f float32) uint32 {
	bits := math.Float32bits(f)
	return bits<<1 | bits>>31
}

func unrotateFloat(u uint32) float32 {
	return math.Float32frombits(u>>1 | u<<31)
}

func (w *byteWriter) u32Column(values []uint32) {
	buf := make([]byte, 4*len(values))
	for i, v := range values {
		binary.BigEndian.PutUint32(buf[4*i:], v)
	}
	w.interleaved(buf, 4)
}

func (r *byteReader) u32Column(n int) ([]uint32, error) {
	buf, err := r.interleaved(n, 4)
	if err != nil {
		return nil, err
	}
	out := make([]uint32, n)
	for i := range out {
		out[i] = binary.BigEndian.Uint32(buf[4*i:])
	}
	return out, nil
}

func (w *byteWriter) i32Column(values []int32) {
	u := make([]uint32, len(values))
	for i, v := range values {
		u[i] = zigzag32(v)
	}
	w.u32Column(u)
}

func (r *byteReader) i32Column(n int) ([]int32, error) {
	u, err := r.u32Column(n)
	if err != nil {
		return nil, err
	}
	out := make([]int32, n)
	for i, v := range u {
		out[i] = unzigzag32(v)
	}
	return out, nil
}

func (w *byteWriter) i64Column(values []int64) {
	buf := make([]byte, 8*len(values))
	for i, v := range values {
		binary.BigEndian.PutUint64(buf[8*i:], zigzag64(v))
	}
	w.interleaved(buf, 8)
}

func (r *byteReader) i64Column(n int) ([]int64, error) {
	buf, err := r.interleaved(n, 8)
	if err != nil {
		return nil, err
	}
	out := make([]int64, n)
	for i := range out {
		out[i] = unzigzag64(binary.BigEndian.Uint64(buf[8*i:]))
	}
	return out, nil
}

func (w *byteWriter) f32Column(values []float32) {
	u := make([]uint32, len(values))
	for i, v := range values {
		u[i] = rotateFloat(v)
	}
	w.u32Column(u)
}

func (r *byteReader) f32Column(n int) ([]float32, error) {
	u, err := r.u32Column(n)
	if err != nil {
		return nil, err
	}
	out := make([]float32, n)
	for i, v := range u {
		out[i] = unrotateFloat(v)
	}
	return out, nil
}

// Referent arrays store each id as the difference from the previous one.
func (w *byteWriter) referents(ids []int32) {
	deltas := make([]int32, len(ids))
	var last int32
	for i, id := range ids {
		deltas[i] = id - last
		last = id
	}
	w.i32Column(deltas)
}

func (r *byteReader) referents(n int) ([]int32, error) {
	ids, err := r.i32Column(n)
	if err != nil {
		return nil, err
	}
	var last int32
	for i, delta := range ids {
		last += delta
		ids[i] = last
	}
	return ids, nil
}
