package types

import "fmt"

// Type tags the kind of a Variant.
type Type uint8

const (
	TypeInvalid Type = iota
	TypeString
	TypeBinaryString
	TypeBool
	TypeInt32
	TypeInt64
	TypeFloat32
	TypeFloat64
	TypeEnum
	TypeBrickColor
	TypeColor3
	TypeColor3uint8
	TypeVector2
	TypeVector3
	TypeVector3int16
	TypeCFrame
	TypeNumberRange
	TypeUDim
	TypeUDim2
	TypeRef
	TypeUnimplemented
)

var typeNames = map[Type]string{
	TypeString:        "String",
	TypeBinaryString:  "BinaryString",
	TypeBool:          "Bool",
	TypeInt32:         "Int32",
	TypeInt64:         "Int64",
	TypeFloat32:       "Float32",
	TypeFloat64:       "Float64",
	TypeEnum:          "Enum",
	TypeBrickColor:    "BrickColor",
	TypeColor3:        "Color3",
	TypeColor3uint8:   "Color3uint8",
	TypeVector2:       "Vector2",
	TypeVector3:       "Vector3",
	TypeVector3int16:  "Vector3int16",
	TypeCFrame:        "CFrame",
	TypeNumberRange:   "NumberRange",
	TypeUDim:          "UDim",
	TypeUDim2:         "UDim2",
	TypeRef:           "Ref",
	TypeUnimplemented: "Unimplemented",
}

var typesByName = func() map[string]Type {
	m := make(map[string]Type, len(typeNames))
	for t, name := range typeNames {
		m[name] = t
	}
	return m
}()

func (t Type) String() string {
	if name, ok := typeNames[t]; ok {
		return name
	}
	return fmt.Sprintf("Type(%d)", uint8(t))
}

// ParseType looks up a Type by its String name.
func ParseType(name string) (Type, bool) {
	t, ok := typesByName[name]
	return t, ok
}

// MarshalText implements encoding.TextMarshaler.
func (t Type) MarshalText() ([]byte, error) {
	return []byte(t.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (t *Type) UnmarshalText(b []byte) error {
	parsed, ok := ParseType(string(b))
	if !ok {
		return fmt.Errorf("unknown value type %q", string(b))
	}
	*t = parsed
	return nil
}
