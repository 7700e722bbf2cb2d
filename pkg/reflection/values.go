package reflection

import (
	"encoding/base64"
	"fmt"

	"gopkg.in/yaml.v3"

	"github.com/ssargent/rbxdom/pkg/types"
)

// decodeValue reads a default value of type t from a YAML node. Composite
// values are flat sequences of their components.
func decodeValue(t types.Type, node *yaml.Node) (types.Variant, error) {
	switch t {
	case types.TypeString:
		var s string
		err := node.Decode(&s)
		return types.String(s), err
	case types.TypeBinaryString:
		var s string
		if err := node.Decode(&s); err != nil {
			return nil, err
		}
		b, err := base64.StdEncoding.DecodeString(s)
		return types.BinaryString(b), err
	case types.TypeBool:
		var b bool
		err := node.Decode(&b)
		return types.Bool(b), err
	case types.TypeInt32:
		var i int32
		err := node.Decode(&i)
		return types.Int32(i), err
	case types.TypeInt64:
		var i int64
		err := node.Decode(&i)
		return types.Int64(i), err
	case types.TypeFloat32:
		var f float32
		err := node.Decode(&f)
		return types.Float32(f), err
	case types.TypeFloat64:
		var f float64
		err := node.Decode(&f)
		return types.Float64(f), err
	case types.TypeEnum:
		var u uint32
		err := node.Decode(&u)
		return types.Enum(u), err
	case types.TypeBrickColor:
		var u uint32
		err := node.Decode(&u)
		return types.BrickColor(u), err
	case types.TypeRef:
		if node.Tag == "!!null" || node.Value == "null" {
			return types.NoneRef(), nil
		}
		return nil, fmt.Errorf("reference defaults must be null")
	case types.TypeColor3uint8, types.TypeVector3int16:
		var c []int32
		if err := decodeComponents(node, &c, 3); err != nil {
			return nil, err
		}
		if t == types.TypeColor3uint8 {
			return types.Color3uint8{R: uint8(c[0]), G: uint8(c[1]), B: uint8(c[2])}, nil
		}
		return types.Vector3int16{X: int16(c[0]), Y: int16(c[1]), Z: int16(c[2])}, nil
	}

	var f []float32
	switch t {
	case types.TypeColor3:
		if err := decodeComponents(node, &f, 3); err != nil {
			return nil, err
		}
		return types.Color3{R: f[0], G: f[1], B: f[2]}, nil
	case types.TypeVector2:
		if err := decodeComponents(node, &f, 2); err != nil {
			return nil, err
		}
		return types.Vector2{X: f[0], Y: f[1]}, nil
	case types.TypeVector3:
		if err := decodeComponents(node, &f, 3); err != nil {
			return nil, err
		}
		return types.Vector3{X: f[0], Y: f[1], Z: f[2]}, nil
	case types.TypeNumberRange:
		if err := decodeComponents(node, &f, 2); err != nil {
			return nil, err
		}
		return types.NumberRange{Min: f[0], Max: f[1]}, nil
	case types.TypeUDim:
		if err := decodeComponents(node, &f, 2); err != nil {
			return nil, err
		}
		return types.UDim{Scale: f[0], Offset: int32(f[1])}, nil
	case types.TypeUDim2:
		if err := decodeComponents(node, &f, 4); err != nil {
			return nil, err
		}
		return types.UDim2{
			X: types.UDim{Scale: f[0], Offset: int32(f[1])},
			Y: types.UDim{Scale: f[2], Offset: int32(f[3])},
		}, nil
	case types.TypeCFrame:
		if err := decodeComponents(node, &f, 12); err != nil {
			return nil, err
		}
		return types.CFrame{
			Position: types.Vector3{X: f[0], Y: f[1], Z: f[2]},
			Orientation: types.Matrix3{
				X: types.Vector3{X: f[3], Y: f[4], Z: f[5]},
				Y: types.Vector3{X: f[6], Y: f[7], Z: f[8]},
				Z: types.Vector3{X: f[9], Y: f[10], Z: f[11]},
			},
		}, nil
	}
	return nil, fmt.Errorf("type %s cannot have a default value", t)
}

func decodeComponents[T any](node *yaml.Node, out *[]T, n int) error {
	if err := node.Decode(out); err != nil {
		return err
	}
	if len(*out) != n {
		return fmt.Errorf("expected %d components, got %d", n, len(*out))
	}
	return nil
}

// encodeValue is the inverse of decodeValue.
func encodeValue(v types.Variant) (interface{}, error) {
	switch val := v.(type) {
	case types.String:
		return string(val), nil
	case types.BinaryString:
		return base64.StdEncoding.EncodeToString(val), nil
	case types.Bool:
		return bool(val), nil
	case types.Int32:
		return int32(val), nil
	case types.Int64:
		return int64(val), nil
	case types.Float32:
		return float32(val), nil
	case types.Float64:
		return float64(val), nil
	case types.Enum:
		return uint32(val), nil
	case types.BrickColor:
		return uint32(val), nil
	case types.Ref:
		return nil, nil
	case types.Color3uint8:
		return []int32{int32(val.R), int32(val.G), int32(val.B)}, nil
	case types.Vector3int16:
		return []int32{int32(val.X), int32(val.Y), int32(val.Z)}, nil
	case types.Color3:
		return []float32{val.R, val.G, val.B}, nil
	case types.Vector2:
		return []float32{val.X, val.Y}, nil
	case types.Vector3:
		return []float32{val.X, val.Y, val.Z}, nil
	case types.NumberRange:
		return []float32{val.Min, val.Max}, nil
	case types.UDim:
		return []float32{val.Scale, float32(val.Offset)}, nil
	case types.UDim2:
		return []float32{val.X.Scale, float32(val.X.Offset), val.Y.Scale, float32(val.Y.Offset)}, nil
	case types.CFrame:
		p, o := val.Position, val.Orientation
		return []float32{
			p.X, p.Y, p.Z,
			o.X.X, o.X.Y, o.X.Z,
			o.Y.X, o.Y.Y, o.Y.Z,
			o.Z.X, o.Z.Y, o.Z.Z,
		}, nil
	}
	return nil, fmt.Errorf("type %s cannot have a default value", v.Type())
}
