package reflection

import (
	"sort"

	"github.com/ssargent/rbxdom/pkg/types"
)

const serviceTag = "Service"

// PropertyDescriptor describes one property of a class.
type PropertyDescriptor struct {
	Name     string        // canonical name
	Type     types.Type    // TypeUnimplemented when TypeName has no Variant kind
	TypeName string        // type name as given by the source data
	Aliases  []string      // names the property may appear under in old files
	Default  types.Variant // nil when no default is declared
}

// ClassDescriptor describes a class and the properties it declares itself.
type ClassDescriptor struct {
	Name       string
	Superclass string
	Tags       []string
	// Properties is keyed by canonical name and by every alias.
	Properties map[string]*PropertyDescriptor
	// Defaults overrides inherited property defaults for this class.
	Defaults map[string]types.Variant
}

// IsService reports whether the class is tagged as a service.
func (c *ClassDescriptor) IsService() bool {
	for _, tag := range c.Tags {
		if tag == serviceTag {
			return true
		}
	}
	return false
}

// Database indexes class descriptors by name.
type Database struct {
	Version string
	classes map[string]*ClassDescriptor
}

// NewDatabase builds a database from classes. Property maps are re-indexed so
// that every alias resolves to its descriptor.
func NewDatabase(version string, classes ...*ClassDescriptor) *Database {
	db := &Database{
		Version: version,
		classes: make(map[string]*ClassDescriptor, len(classes)),
	}
	for _, class := range classes {
		indexed := make(map[string]*PropertyDescriptor, len(class.Properties))
		for _, prop := range class.Properties {
			indexed[prop.Name] = prop
			for _, alias := range prop.Aliases {
				indexed[alias] = prop
			}
		}
		class.Properties = indexed
		if class.Defaults == nil {
			class.Defaults = make(map[string]types.Variant)
		}
		db.classes[class.Name] = class
	}
	return db
}

// LookupClass returns the descriptor for a class name.
func (db *Database) LookupClass(name string) (*ClassDescriptor, bool) {
	class, ok := db.classes[name]
	return class, ok
}

// ClassNames returns every class name in sorted order.
func (db *Database) ClassNames() []string {
	names := make([]string, 0, len(db.classes))
	for name := range db.classes {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// FindProperty resolves a property (or alias) on class or any superclass.
func (db *Database) FindProperty(class, property string) (*PropertyDescriptor, bool) {
	for _, c := range db.lineage(class) {
		if prop, ok := c.Properties[property]; ok {
			return prop, true
		}
	}
	return nil, false
}

// CanonicalName returns the canonical name for property on class, or property
// itself when it is not declared.
func (db *Database) CanonicalName(class, property string) string {
	if prop, ok := db.FindProperty(class, property); ok {
		return prop.Name
	}
	return property
}

// FindDefault returns the default value for a property on class. Class level
// overrides win over the declaring descriptor's default.
func (db *Database) FindDefault(class, property string) (types.Variant, bool) {
	prop, ok := db.FindProperty(class, property)
	if !ok {
		return nil, false
	}
	for _, c := range db.lineage(class) {
		if v, ok := c.Defaults[prop.Name]; ok {
			return v, true
		}
	}
	if prop.Default != nil {
		return prop.Default, true
	}
	return nil, false
}

// IsService reports whether class is a known service.
func (db *Database) IsService(class string) bool {
	c, ok := db.classes[class]
	return ok && c.IsService()
}

// lineage returns class followed by its superclasses. It stops at unknown
// classes and at repeats, so a malformed table cannot loop.
func (db *Database) lineage(class string) []*ClassDescriptor {
	var out []*ClassDescriptor
	seen := make(map[string]struct{})
	for name := class; name != ""; {
		if _, dup := seen[name]; dup {
			break
		}
		seen[name] = struct{}{}
		c, ok := db.classes[name]
		if !ok {
			break
		}
		out = append(out, c)
		name = c.Superclass
	}
	return out
}
