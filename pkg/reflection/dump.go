package reflection

import (
	"encoding/json"
	"fmt"
	"io"
	"strconv"

	"github.com/ssargent/rbxdom/pkg/types"
)

const dumpRootSuperclass = "<<<ROOT>>>"

// apiDump mirrors the parts of the Roblox JSON API dump that describe
// properties.
type apiDump struct {
	Version int            `json:"Version"`
	Classes []apiDumpClass `json:"Classes"`
}

type apiDumpClass struct {
	Name       string          `json:"Name"`
	Superclass string          `json:"Superclass"`
	Tags       []string        `json:"Tags"`
	Members    []apiDumpMember `json:"Members"`
}

type apiDumpMember struct {
	MemberType string `json:"MemberType"`
	Name       string `json:"Name"`
	ValueType  struct {
		Category string `json:"Category"`
		Name     string `json:"Name"`
	} `json:"ValueType"`
}

// primitiveTypes maps API dump primitive and data type names to Variant kinds.
var primitiveTypes = map[string]types.Type{
	"bool":            types.TypeBool,
	"int":             types.TypeInt32,
	"int64":           types.TypeInt64,
	"float":           types.TypeFloat32,
	"double":          types.TypeFloat64,
	"string":          types.TypeString,
	"Content":         types.TypeString,
	"ProtectedString": types.TypeString,
	"BinaryString":    types.TypeBinaryString,
	"BrickColor":      types.TypeBrickColor,
	"Color3":          types.TypeColor3,
	"Color3uint8":     types.TypeColor3uint8,
	"Vector2":         types.TypeVector2,
	"Vector3":         types.TypeVector3,
	"Vector3int16":    types.TypeVector3int16,
	"CFrame":          types.TypeCFrame,
	"NumberRange":     types.TypeNumberRange,
	"UDim":            types.TypeUDim,
	"UDim2":           types.TypeUDim2,
}

// LoadDump reads a Roblox JSON API dump. Dumps carry no default values, so
// every descriptor's Default is nil.
func LoadDump(r io.Reader) (*Database, error) {
	var dump apiDump
	if err := json.NewDecoder(r).Decode(&dump); err != nil {
		return nil, fmt.Errorf("failed to parse API dump: %w", err)
	}

	classes := make([]*ClassDescriptor, 0, len(dump.Classes))
	for _, dc := range dump.Classes {
		superclass := dc.Superclass
		if superclass == dumpRootSuperclass {
			superclass = ""
		}
		class := &ClassDescriptor{
			Name:       dc.Name,
			Superclass: superclass,
			Tags:       dc.Tags,
			Properties: make(map[string]*PropertyDescriptor),
		}
		for _, member := range dc.Members {
			if member.MemberType != "Property" {
				continue
			}
			class.Properties[member.Name] = &PropertyDescriptor{
				Name:     member.Name,
				Type:     dumpValueType(member.ValueType.Category, member.ValueType.Name),
				TypeName: member.ValueType.Name,
			}
		}
		classes = append(classes, class)
	}
	return NewDatabase(strconv.Itoa(dump.Version), classes...), nil
}

func dumpValueType(category, name string) types.Type {
	switch category {
	case "Enum":
		return types.TypeEnum
	case "Class":
		return types.TypeRef
	}
	if t, ok := primitiveTypes[name]; ok {
		return t
	}
	return types.TypeUnimplemented
}
