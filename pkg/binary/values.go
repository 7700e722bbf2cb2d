package binary

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/ssargent/rbxdom/pkg/types"
)

// Wire type ids
const (
	wireString       byte = 0x01
	wireBool         byte = 0x02
	wireInt32        byte = 0x03
	wireFloat32      byte = 0x04
	wireFloat64      byte = 0x05
	wireUDim         byte = 0x06
	wireUDim2        byte = 0x07
	wireBrickColor   byte = 0x0B
	wireColor3       byte = 0x0C
	wireVector2      byte = 0x0D
	wireVector3      byte = 0x0E
	wireCFrame       byte = 0x10
	wireEnum         byte = 0x12
	wireRef          byte = 0x13
	wireVector3int16 byte = 0x14
	wireNumberRange  byte = 0x17
	wireColor3uint8  byte = 0x1A
	wireInt64        byte = 0x1B
)

// Reserved referent ids
const (
	refNone       int32 = -1
	refUnresolved int32 = -2
)

// refTable translates between dom referents and file-local ids.
type refTable struct {
	ids  map[types.Ref]int32
	refs map[int32]types.Ref
}

func (t *refTable) id(ref types.Ref) int32 {
	if ref.IsNone() {
		return refNone
	}
	if id, ok := t.ids[ref]; ok {
		return id
	}
	return refUnresolved
}

func (t *refTable) ref(id int32) types.Ref {
	if id == refNone {
		return types.NoneRef()
	}
	if ref, ok := t.refs[id]; ok {
		return ref
	}
	return types.UnresolvedRef()
}

// valueCodec encodes and decodes one property column. Values handed to encode
// have already been checked to share the codec's wire type. A codec without
// encode and decode is known but unimplemented.
type valueCodec struct {
	wire   byte
	kind   types.Type
	encode func(w *byteWriter, values []types.Variant, refs *refTable)
	decode func(r *byteReader, n int, refs *refTable) ([]types.Variant, error)
}

func (c *valueCodec) implemented() bool {
	return c.encode != nil && c.decode != nil
}

var (
	codecsByType = make(map[types.Type]*valueCodec)
	codecsByWire = make(map[byte]*valueCodec)
)

func register(c *valueCodec) {
	codecsByType[c.kind] = c
	if _, ok := codecsByWire[c.wire]; !ok {
		codecsByWire[c.wire] = c
	}
}

func init() {
	register(&valueCodec{wire: wireString, kind: types.TypeString, encode: encodeStrings, decode: decodeStrings})
	// BinaryString shares the wire type; decoding yields String or
	// BinaryString depending on the property descriptor.
	register(&valueCodec{wire: wireString, kind: types.TypeBinaryString, encode: encodeStrings, decode: decodeStrings})
	register(&valueCodec{wire: wireBool, kind: types.TypeBool, encode: encodeBools, decode: decodeBools})
	register(&valueCodec{wire: wireInt32, kind: types.TypeInt32, encode: encodeInt32s, decode: decodeInt32s})
	register(&valueCodec{wire: wireFloat32, kind: types.TypeFloat32, encode: encodeFloat32s, decode: decodeFloat32s})
	register(&valueCodec{wire: wireFloat64, kind: types.TypeFloat64, encode: encodeFloat64s, decode: decodeFloat64s})
	register(&valueCodec{wire: wireUDim, kind: types.TypeUDim})
	register(&valueCodec{wire: wireUDim2, kind: types.TypeUDim2})
	register(&valueCodec{wire: wireBrickColor, kind: types.TypeBrickColor, encode: encodeBrickColors, decode: decodeBrickColors})
	register(&valueCodec{wire: wireColor3, kind: types.TypeColor3, encode: encodeColor3s, decode: decodeColor3s})
	register(&valueCodec{wire: wireVector2, kind: types.TypeVector2, encode: encodeVector2s, decode: decodeVector2s})
	register(&valueCodec{wire: wireVector3, kind: types.TypeVector3, encode: encodeVector3s, decode: decodeVector3s})
	register(&valueCodec{wire: wireCFrame, kind: types.TypeCFrame, encode: encodeCFrames, decode: decodeCFrames})
	register(&valueCodec{wire: wireEnum, kind: types.TypeEnum, encode: encodeEnums, decode: decodeEnums})
	register(&valueCodec{wire: wireRef, kind: types.TypeRef, encode: encodeRefs, decode: decodeRefs})
	register(&valueCodec{wire: wireVector3int16, kind: types.TypeVector3int16, encode: encodeVector3int16s, decode: decodeVector3int16s})
	register(&valueCodec{wire: wireNumberRange, kind: types.TypeNumberRange, encode: encodeNumberRanges, decode: decodeNumberRanges})
	register(&valueCodec{wire: wireColor3uint8, kind: types.TypeColor3uint8, encode: encodeColor3uint8s, decode: decodeColor3uint8s})
	register(&valueCodec{wire: wireInt64, kind: types.TypeInt64, encode: encodeInt64s, decode: decodeInt64s})
}

// codecForType returns the codec for t, failing with ErrUnimplementedType when
// none exists or it has no implementation.
func codecForType(t types.Type) (*valueCodec, error) {
	c, ok := codecsByType[t]
	if !ok || !c.implemented() {
		return nil, ErrUnimplementedType
	}
	return c, nil
}

// codecForWire returns the codec for a wire type id read from a file.
func codecForWire(wire byte) (*valueCodec, error) {
	c, ok := codecsByWire[wire]
	if !ok {
		return nil, fmt.Errorf("%w: unknown wire type 0x%02X", ErrMalformedValue, wire)
	}
	if !c.implemented() {
		return nil, fmt.Errorf("%w: wire type 0x%02X (%s)", ErrUnimplementedType, wire, c.kind)
	}
	return c, nil
}

// sameWire reports whether a value of type t may be written in a column of
// type column.
func sameWire(t, column types.Type) bool {
	if t == column {
		return true
	}
	a, okA := codecsByType[t]
	b, okB := codecsByType[column]
	return okA && okB && a.wire == b.wire
}

func encodeStrings(w *byteWriter, values []types.Variant, _ *refTable) {
	for _, v := range values {
		switch s := v.(type) {
		case types.String:
			w.str([]byte(s))
		case types.BinaryString:
			w.str(s)
		}
	}
}

func decodeStrings(r *byteReader, n int, _ *refTable) ([]types.Variant, error) {
	out := make([]types.Variant, n)
	for i := range out {
		s, err := r.str()
		if err != nil {
			return nil, err
		}
		b := make([]byte, len(s))
		copy(b, s)
		out[i] = types.BinaryString(b)
	}
	return out, nil
}

func encodeBools(w *byteWriter, values []types.Variant, _ *refTable) {
	for _, v := range values {
		if v.(types.Bool) {
			w.u8(1)
		} else {
			w.u8(0)
		}
	}
}

func decodeBools(r *byteReader, n int, _ *refTable) ([]types.Variant, error) {
	b, err := r.take(n)
	if err != nil {
		return nil, err
	}
	out := make([]types.Variant, n)
	for i := range out {
		out[i] = types.Bool(b[i] != 0)
	}
	return out, nil
}

func encodeInt32s(w *byteWriter, values []types.Variant, _ *refTable) {
	col := make([]int32, len(values))
	for i, v := range values {
		col[i] = int32(v.(types.Int32))
	}
	w.i32Column(col)
}

func decodeInt32s(r *byteReader, n int, _ *refTable) ([]types.Variant, error) {
	col, err := r.i32Column(n)
	if err != nil {
		return nil, err
	}
	out := make([]types.Variant, n)
	for i, v := range col {
		out[i] = types.Int32(v)
	}
	return out, nil
}

func encodeInt64s(w *byteWriter, values []types.Variant, _ *refTable) {
	col := make([]int64, len(values))
	for i, v := range values {
		col[i] = int64(v.(types.Int64))
	}
	w.i64Column(col)
}

func decodeInt64s(r *byteReader, n int, _ *refTable) ([]types.Variant, error) {
	col, err := r.i64Column(n)
	if err != nil {
		return nil, err
	}
	out := make([]types.Variant, n)
	for i, v := range col {
		out[i] = types.Int64(v)
	}
	return out, nil
}

func encodeFloat32s(w *byteWriter, values []types.Variant, _ *refTable) {
	col := make([]float32, len(values))
	for i, v := range values {
		col[i] = float32(v.(types.Float32))
	}
	w.f32Column(col)
}

func decodeFloat32s(r *byteReader, n int, _ *refTable) ([]types.Variant, error) {
	col, err := r.f32Column(n)
	if err != nil {
		return nil, err
	}
	out := make([]types.Variant, n)
	for i, v := range col {
		out[i] = types.Float32(v)
	}
	return out, nil
}

func encodeFloat64s(w *byteWriter, values []types.Variant, _ *refTable) {
	var b [8]byte
	for _, v := range values {
		binary.LittleEndian.PutUint64(b[:], math.Float64bits(float64(v.(types.Float64))))
		w.Write(b[:])
	}
}

func decodeFloat64s(r *byteReader, n int, _ *refTable) ([]types.Variant, error) {
	if uint64(n)*8 > uint64(r.remaining()) {
		return nil, malformed("float64 column of %d values exceeds chunk", n)
	}
	out := make([]types.Variant, n)
	for i := range out {
		b, err := r.take(8)
		if err != nil {
			return nil, err
		}
		out[i] = types.Float64(math.Float64frombits(binary.LittleEndian.Uint64(b)))
	}
	return out, nil
}

func encodeEnums(w *byteWriter, values []types.Variant, _ *refTable) {
	col := make([]uint32, len(values))
	for i, v := range values {
		col[i] = uint32(v.(types.Enum))
	}
	w.u32Column(col)
}

func decodeEnums(r *byteReader, n int, _ *refTable) ([]types.Variant, error) {
	col, err := r.u32Column(n)
	if err != nil {
		return nil, err
	}
	out := make([]types.Variant, n)
	for i, v := range col {
		out[i] = types.Enum(v)
	}
	return out, nil
}

func encodeBrickColors(w *byteWriter, values []types.Variant, _ *refTable) {
	col := make([]uint32, len(values))
	for i, v := range values {
		col[i] = uint32(v.(types.BrickColor))
	}
	w.u32Column(col)
}

func decodeBrickColors(r *byteReader, n int, _ *refTable) ([]types.Variant, error) {
	col, err := r.u32Column(n)
	if err != nil {
		return nil, err
	}
	out := make([]types.Variant, n)
	for i, v := range col {
		out[i] = types.BrickColor(v)
	}
	return out, nil
}

// floatColumns writes each component as its own interleaved float column.
func (w *byteWriter) floatColumns(n, width int, component func(i, c int) float32) {
	col := make([]float32, n)
	for c := 0; c < width; c++ {
		for i := 0; i < n; i++ {
			col[i] = component(i, c)
		}
		w.f32Column(col)
	}
}

func (r *byteReader) floatColumns(n, width int) ([][]float32, error) {
	cols := make([][]float32, width)
	for c := range cols {
		col, err := r.f32Column(n)
		if err != nil {
			return nil, err
		}
		cols[c] = col
	}
	return cols, nil
}

func encodeColor3s(w *byteWriter, values []types.Variant, _ *refTable) {
	w.floatColumns(len(values), 3, func(i, c int) float32 {
		v := values[i].(types.Color3)
		return [3]float32{v.R, v.G, v.B}[c]
	})
}

func decodeColor3s(r *byteReader, n int, _ *refTable) ([]types.Variant, error) {
	cols, err := r.floatColumns(n, 3)
	if err != nil {
		return nil, err
	}
	out := make([]types.Variant, n)
	for i := range out {
		out[i] = types.Color3{R: cols[0][i], G: cols[1][i], B: cols[2][i]}
	}
	return out, nil
}

func encodeVector2s(w *byteWriter, values []types.Variant, _ *refTable) {
	w.floatColumns(len(values), 2, func(i, c int) float32 {
		v := values[i].(types.Vector2)
		return [2]float32{v.X, v.Y}[c]
	})
}

func decodeVector2s(r *byteReader, n int, _ *refTable) ([]types.Variant, error) {
	cols, err := r.floatColumns(n, 2)
	if err != nil {
		return nil, err
	}
	out := make([]types.Variant, n)
	for i := range out {
		out[i] = types.Vector2{X: cols[0][i], Y: cols[1][i]}
	}
	return out, nil
}

func (w *byteWriter) vector3Columns(vs []types.Vector3) {
	w.floatColumns(len(vs), 3, func(i, c int) float32 {
		return [3]float32{vs[i].X, vs[i].Y, vs[i].Z}[c]
	})
}

func (r *byteReader) vector3Columns(n int) ([]types.Vector3, error) {
	cols, err := r.floatColumns(n, 3)
	if err != nil {
		return nil, err
	}
	out := make([]types.Vector3, n)
	for i := range out {
		out[i] = types.Vector3{X: cols[0][i], Y: cols[1][i], Z: cols[2][i]}
	}
	return out, nil
}

func encodeVector3s(w *byteWriter, values []types.Variant, _ *refTable) {
	vs := make([]types.Vector3, len(values))
	for i, v := range values {
		vs[i] = v.(types.Vector3)
	}
	w.vector3Columns(vs)
}

func decodeVector3s(r *byteReader, n int, _ *refTable) ([]types.Variant, error) {
	vs, err := r.vector3Columns(n)
	if err != nil {
		return nil, err
	}
	out := make([]types.Variant, n)
	for i, v := range vs {
		out[i] = v
	}
	return out, nil
}

func encodeCFrames(w *byteWriter, values []types.Variant, _ *refTable) {
	positions := make([]types.Vector3, len(values))
	for i, v := range values {
		cf := v.(types.CFrame)
		positions[i] = cf.Position
		if id, ok := basicRotationID(cf.Orientation); ok {
			w.u8(id)
			continue
		}
		w.u8(0)
		for _, row := range []types.Vector3{cf.Orientation.X, cf.Orientation.Y, cf.Orientation.Z} {
			w.f32(row.X)
			w.f32(row.Y)
			w.f32(row.Z)
		}
	}
	w.vector3Columns(positions)
}

func decodeCFrames(r *byteReader, n int, _ *refTable) ([]types.Variant, error) {
	if n > r.remaining() {
		return nil, malformed("cframe column of %d values exceeds chunk", n)
	}
	orientations := make([]types.Matrix3, n)
	for i := range orientations {
		id, err := r.u8()
		if err != nil {
			return nil, err
		}
		if id != 0 {
			m, ok := matrixFromRotationID(id)
			if !ok {
				return nil, fmt.Errorf("%w: invalid rotation id %d", ErrMalformedValue, id)
			}
			orientations[i] = m
			continue
		}
		var f [9]float32
		for j := range f {
			if f[j], err = r.f32(); err != nil {
				return nil, err
			}
		}
		orientations[i] = types.Matrix3{
			X: types.Vector3{X: f[0], Y: f[1], Z: f[2]},
			Y: types.Vector3{X: f[3], Y: f[4], Z: f[5]},
			Z: types.Vector3{X: f[6], Y: f[7], Z: f[8]},
		}
	}
	positions, err := r.vector3Columns(n)
	if err != nil {
		return nil, err
	}
	out := make([]types.Variant, n)
	for i := range out {
		out[i] = types.CFrame{Position: positions[i], Orientation: orientations[i]}
	}
	return out, nil
}

func encodeRefs(w *byteWriter, values []types.Variant, refs *refTable) {
	ids := make([]int32, len(values))
	for i, v := range values {
		ids[i] = refs.id(v.(types.Ref))
	}
	w.referents(ids)
}

func decodeRefs(r *byteReader, n int, refs *refTable) ([]types.Variant, error) {
	ids, err := r.referents(n)
	if err != nil {
		return nil, err
	}
	out := make([]types.Variant, n)
	for i, id := range ids {
		out[i] = refs.ref(id)
	}
	return out, nil
}

func encodeVector3int16s(w *byteWriter, values []types.Variant, _ *refTable) {
	var b [6]byte
	for _, v := range values {
		vec := v.(types.Vector3int16)
		binary.LittleEndian.PutUint16(b[0:], uint16(vec.X))
		binary.LittleEndian.PutUint16(b[2:], uint16(vec.Y))
		binary.LittleEndian.PutUint16(b[4:], uint16(vec.Z))
		w.Write(b[:])
	}
}

func decodeVector3int16s(r *byteReader, n int, _ *refTable) ([]types.Variant, error) {
	if uint64(n)*6 > uint64(r.remaining()) {
		return nil, malformed("vector3int16 column of %d values exceeds chunk", n)
	}
	out := make([]types.Variant, n)
	for i := range out {
		b, err := r.take(6)
		if err != nil {
			return nil, err
		}
		out[i] = types.Vector3int16{
			X: int16(binary.LittleEndian.Uint16(b[0:])),
			Y: int16(binary.LittleEndian.Uint16(b[2:])),
			Z: int16(binary.LittleEndian.Uint16(b[4:])),
		}
	}
	return out, nil
}

func encodeNumberRanges(w *byteWriter, values []types.Variant, _ *refTable) {
	for _, v := range values {
		nr := v.(types.NumberRange)
		w.f32(nr.Min)
		w.f32(nr.Max)
	}
}

func decodeNumberRanges(r *byteReader, n int, _ *refTable) ([]types.Variant, error) {
	if uint64(n)*8 > uint64(r.remaining()) {
		return nil, malformed("number range column of %d values exceeds chunk", n)
	}
	out := make([]types.Variant, n)
	for i := range out {
		lo, err := r.f32()
		if err != nil {
			return nil, err
		}
		hi, err := r.f32()
		if err != nil {
			return nil, err
		}
		out[i] = types.NumberRange{Min: lo, Max: hi}
	}
	return out, nil
}

func encodeColor3uint8s(w *byteWriter, values []types.Variant, _ *refTable) {
	for c := 0; c < 3; c++ {
		for _, v := range values {
			col := v.(types.Color3uint8)
			w.u8([3]uint8{col.R, col.G, col.B}[c])
		}
	}
}

func decodeColor3uint8s(r *byteReader, n int, _ *refTable) ([]types.Variant, error) {
	b, err := r.take(3 * n)
	if err != nil {
		return nil, err
	}
	out := make([]types.Variant, n)
	for i := range out {
		out[i] = types.Color3uint8{R: b[i], G: b[n+i], B: b[2*n+i]}
	}
	return out, nil
}
