package types

// Variant is a property value. The set of implementations is closed to this
// package.
type Variant interface {
	Type() Type
	variant()
}

// String is UTF-8 text.
type String string

// BinaryString is an opaque byte string.
type BinaryString []byte

type Bool bool

type Int32 int32

type Int64 int64

type Float32 float32

type Float64 float64

// Enum is the ordinal of an enum item.
type Enum uint32

// BrickColor is a palette number.
type BrickColor uint32

// Color3 is a color with float components, nominally in [0, 1].
type Color3 struct {
	R float32 `yaml:"r" json:"r"`
	G float32 `yaml:"g" json:"g"`
	B float32 `yaml:"b" json:"b"`
}

// Color3uint8 is a color with byte components.
type Color3uint8 struct {
	R uint8 `yaml:"r" json:"r"`
	G uint8 `yaml:"g" json:"g"`
	B uint8 `yaml:"b" json:"b"`
}

type Vector2 struct {
	X float32 `yaml:"x" json:"x"`
	Y float32 `yaml:"y" json:"y"`
}

type Vector3 struct {
	X float32 `yaml:"x" json:"x"`
	Y float32 `yaml:"y" json:"y"`
	Z float32 `yaml:"z" json:"z"`
}

type Vector3int16 struct {
	X int16 `yaml:"x" json:"x"`
	Y int16 `yaml:"y" json:"y"`
	Z int16 `yaml:"z" json:"z"`
}

// Matrix3 is a 3x3 rotation matrix stored by rows.
type Matrix3 struct {
	X Vector3 `yaml:"x" json:"x"`
	Y Vector3 `yaml:"y" json:"y"`
	Z Vector3 `yaml:"z" json:"z"`
}

// IdentityMatrix3 returns the identity rotation.
func IdentityMatrix3() Matrix3 {
	return Matrix3{
		X: Vector3{X: 1},
		Y: Vector3{Y: 1},
		Z: Vector3{Z: 1},
	}
}

// Transpose returns m with rows and columns swapped.
func (m Matrix3) Transpose() Matrix3 {
	return Matrix3{
		X: Vector3{X: m.X.X, Y: m.Y.X, Z: m.Z.X},
		Y: Vector3{X: m.X.Y, Y: m.Y.Y, Z: m.Z.Y},
		Z: Vector3{X: m.X.Z, Y: m.Y.Z, Z: m.Z.Z},
	}
}

// CFrame is a coordinate frame: a position and an orientation.
type CFrame struct {
	Position    Vector3 `yaml:"position" json:"position"`
	Orientation Matrix3 `yaml:"orientation" json:"orientation"`
}

// NewCFrame returns a frame at pos with the identity orientation.
func NewCFrame(pos Vector3) CFrame {
	return CFrame{Position: pos, Orientation: IdentityMatrix3()}
}

type NumberRange struct {
	Min float32 `yaml:"min" json:"min"`
	Max float32 `yaml:"max" json:"max"`
}

// UDim is a one-dimensional UI distance: a fraction of the parent size plus
// a pixel offset.
type UDim struct {
	Scale  float32 `yaml:"scale" json:"scale"`
	Offset int32   `yaml:"offset" json:"offset"`
}

// UDim2 is a two-dimensional UI distance.
type UDim2 struct {
	X UDim `yaml:"x" json:"x"`
	Y UDim `yaml:"y" json:"y"`
}

// Unimplemented marks a value whose type has no representation yet.
// TypeName names the missing type.
type Unimplemented struct {
	TypeName string `yaml:"type_name" json:"type_name"`
}

func (String) Type() Type        { return TypeString }
func (BinaryString) Type() Type  { return TypeBinaryString }
func (Bool) Type() Type          { return TypeBool }
func (Int32) Type() Type         { return TypeInt32 }
func (Int64) Type() Type         { return TypeInt64 }
func (Float32) Type() Type       { return TypeFloat32 }
func (Float64) Type() Type       { return TypeFloat64 }
func (Enum) Type() Type          { return TypeEnum }
func (BrickColor) Type() Type    { return TypeBrickColor }
func (Color3) Type() Type        { return TypeColor3 }
func (Color3uint8) Type() Type   { return TypeColor3uint8 }
func (Vector2) Type() Type       { return TypeVector2 }
func (Vector3) Type() Type       { return TypeVector3 }
func (Vector3int16) Type() Type  { return TypeVector3int16 }
func (CFrame) Type() Type        { return TypeCFrame }
func (NumberRange) Type() Type   { return TypeNumberRange }
func (UDim) Type() Type          { return TypeUDim }
func (UDim2) Type() Type         { return TypeUDim2 }
func (Unimplemented) Type() Type { return TypeUnimplemented }

func (String) variant()        {}
func (BinaryString) variant()  {}
func (Bool) variant()          {}
func (Int32) variant()         {}
func (Int64) variant()         {}
func (Float32) variant()       {}
func (Float64) variant()       {}
func (Enum) variant()          {}
func (BrickColor) variant()    {}
func (Color3) variant()        {}
func (Color3uint8) variant()   {}
func (Vector2) variant()       {}
func (Vector3) variant()       {}
func (Vector3int16) variant()  {}
func (CFrame) variant()        {}
func (NumberRange) variant()   {}
func (UDim) variant()          {}
func (UDim2) variant()         {}
func (Unimplemented) variant() {}

// Zero returns the zero-equivalent value for t. It reports false for types that
// have no zero value, such as TypeUnimplemented.
func Zero(t Type) (Variant, bool) {
	switch t {
	case TypeString:
		return String(""), true
	case TypeBinaryString:
		return BinaryString{}, true
	case TypeBool:
		return Bool(false), true
	case TypeInt32:
		return Int32(0), true
	case TypeInt64:
		return Int64(0), true
	case TypeFloat32:
		return Float32(0), true
	case TypeFloat64:
		return Float64(0), true
	case TypeEnum:
		return Enum(0), true
	case TypeBrickColor:
		return BrickColor(0), true
	case TypeColor3:
		return Color3{}, true
	case TypeColor3uint8:
		return Color3uint8{}, true
	case TypeVector2:
		return Vector2{}, true
	case TypeVector3:
		return Vector3{}, true
	case TypeVector3int16:
		return Vector3int16{}, true
	case TypeCFrame:
		return NewCFrame(Vector3{}), true
	case TypeNumberRange:
		return NumberRange{}, true
	case TypeUDim:
		return UDim{}, true
	case TypeUDim2:
		return UDim2{}, true
	case TypeRef:
		return NoneRef(), true
	}
	return nil, false
}
