package reflection

import (
	"fmt"
	"io"
	"sort"

	"gopkg.in/yaml.v3"

	"github.com/ssargent/rbxdom/pkg/types"
)

// tableFile is the on-disk YAML shape of a Database.
type tableFile struct {
	Version string       `yaml:"version"`
	Classes []tableClass `yaml:"classes"`
}

type tableClass struct {
	Name       string               `yaml:"name"`
	Superclass string               `yaml:"superclass,omitempty"`
	Tags       []string             `yaml:"tags,omitempty"`
	Properties []tableProperty      `yaml:"properties,omitempty"`
	Defaults   map[string]yaml.Node `yaml:"defaults,omitempty"`
}

// tableProperty.Type is a Variant name. SourceType keeps the name the
// property was declared with when that differs, e.g. an enum's name.
type tableProperty struct {
	Name       string    `yaml:"name"`
	Type       string    `yaml:"type"`
	SourceType string    `yaml:"source_type,omitempty"`
	Aliases    []string  `yaml:"aliases,omitempty"`
	Default    yaml.Node `yaml:"default,omitempty"`
}

// LoadYAML reads a database table written by WriteYAML.
func LoadYAML(r io.Reader) (*Database, error) {
	var file tableFile
	if err := yaml.NewDecoder(r).Decode(&file); err != nil {
		return nil, fmt.Errorf("failed to parse reflection table: %w", err)
	}

	classes := make([]*ClassDescriptor, 0, len(file.Classes))
	for _, tc := range file.Classes {
		class := &ClassDescriptor{
			Name:       tc.Name,
			Superclass: tc.Superclass,
			Tags:       tc.Tags,
			Properties: make(map[string]*PropertyDescriptor, len(tc.Properties)),
		}
		for _, tp := range tc.Properties {
			kind, err := tableType(tp.Type)
			if err != nil {
				return nil, fmt.Errorf("class %s property %s: %w", tc.Name, tp.Name, err)
			}
			prop := &PropertyDescriptor{
				Name:     tp.Name,
				Type:     kind,
				TypeName: tp.Type,
				Aliases:  tp.Aliases,
			}
			if tp.SourceType != "" {
				prop.TypeName = tp.SourceType
			}
			if tp.Default.Kind != 0 {
				def, err := decodeValue(prop.Type, &tp.Default)
				if err != nil {
					return nil, fmt.Errorf("class %s property %s: invalid default: %w", tc.Name, tp.Name, err)
				}
				prop.Default = def
			}
			class.Properties[prop.Name] = prop
		}
		classes = append(classes, class)
	}

	db := NewDatabase(file.Version, classes...)

	// Class level defaults need the whole hierarchy to find property types.
	for _, tc := range file.Classes {
		class, _ := db.LookupClass(tc.Name)
		for name, node := range tc.Defaults {
			node := node
			prop, ok := db.FindProperty(tc.Name, name)
			if !ok {
				return nil, fmt.Errorf("class %s: default for undeclared property %s", tc.Name, name)
			}
			def, err := decodeValue(prop.Type, &node)
			if err != nil {
				return nil, fmt.Errorf("class %s property %s: invalid default: %w", tc.Name, name, err)
			}
			class.Defaults[prop.Name] = def
		}
	}
	return db, nil
}

// WriteYAML writes db as a YAML table readable by LoadYAML. Output is sorted
// so that equal databases produce equal bytes.
func (db *Database) WriteYAML(w io.Writer) error {
	file := tableFile{Version: db.Version}
	for _, name := range db.ClassNames() {
		class := db.classes[name]
		tc := tableClass{
			Name:       class.Name,
			Superclass: class.Superclass,
			Tags:       class.Tags,
		}

		for _, prop := range uniqueProperties(class) {
			tp := tableProperty{Name: prop.Name, Type: prop.Type.String(), Aliases: prop.Aliases}
			if prop.TypeName != "" && prop.TypeName != tp.Type {
				tp.SourceType = prop.TypeName
			}
			if prop.Default != nil {
				if err := encodeNode(&tp.Default, prop.Default); err != nil {
					return fmt.Errorf("class %s property %s: %w", class.Name, prop.Name, err)
				}
			}
			tc.Properties = append(tc.Properties, tp)
		}

		if len(class.Defaults) > 0 {
			tc.Defaults = make(map[string]yaml.Node, len(class.Defaults))
			for propName, value := range class.Defaults {
				var node yaml.Node
				if err := encodeNode(&node, value); err != nil {
					return fmt.Errorf("class %s default %s: %w", class.Name, propName, err)
				}
				tc.Defaults[propName] = node
			}
		}
		file.Classes = append(file.Classes, tc)
	}

	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(&file); err != nil {
		return fmt.Errorf("failed to write reflection table: %w", err)
	}
	return enc.Close()
}

// tableType resolves a table type name. Variant names are preferred, API dump
// primitive names are accepted, and anything else is rejected so a typo does
// not silently become Unimplemented.
func tableType(name string) (types.Type, error) {
	if t, ok := types.ParseType(name); ok && t != types.TypeInvalid {
		return t, nil
	}
	if t, ok := primitiveTypes[name]; ok {
		return t, nil
	}
	return types.TypeInvalid, fmt.Errorf("unknown property type %q", name)
}

func encodeNode(node *yaml.Node, value types.Variant) error {
	plain, err := encodeValue(value)
	if err != nil {
		return err
	}
	if err := node.Encode(plain); err != nil {
		return err
	}
	if node.Kind == yaml.SequenceNode {
		node.Style = yaml.FlowStyle
	}
	return nil
}

// uniqueProperties returns each declared property once, sorted by name.
func uniqueProperties(class *ClassDescriptor) []*PropertyDescriptor {
	seen := make(map[string]*PropertyDescriptor, len(class.Properties))
	for _, prop := range class.Properties {
		seen[prop.Name] = prop
	}
	out := make([]*PropertyDescriptor, 0, len(seen))
	for _, prop := range seen {
		out = append(out, prop)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}
