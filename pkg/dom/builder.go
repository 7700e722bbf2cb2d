package dom

import (
	"github.com/ssargent/rbxdom/pkg/types"
)

// InstanceBuilder describes an instance and its descendants before they are
// added to a WeakDom.
type InstanceBuilder struct {
	referent   types.Ref
	class      string
	name       string
	properties map[string]types.Variant
	children   []*InstanceBuilder
}

// NewInstanceBuilder creates a builder for class with a freshly minted
// referent. The name defaults to the class name.
func NewInstanceBuilder(class string) *InstanceBuilder {
	return &InstanceBuilder{
		referent:   types.NewRef(),
		class:      class,
		name:       class,
		properties: make(map[string]types.Variant),
	}
}

// Referent returns the referent the instance will have once inserted.
func (b *InstanceBuilder) Referent() types.Ref { return b.referent }

// Class returns the class name.
func (b *InstanceBuilder) Class() string { return b.class }

// Name returns the instance name.
func (b *InstanceBuilder) Name() string { return b.name }

// WithName sets the instance name.
func (b *InstanceBuilder) WithName(name string) *InstanceBuilder {
	b.name = name
	return b
}

// WithProperty sets a single property.
func (b *InstanceBuilder) WithProperty(name string, value types.Variant) *InstanceBuilder {
	b.properties[name] = value
	return b
}

// WithProperties sets every property in props.
func (b *InstanceBuilder) WithProperties(props map[string]types.Variant) *InstanceBuilder {
	for name, value := range props {
		b.properties[name] = value
	}
	return b
}

// WithChild appends a child.
func (b *InstanceBuilder) WithChild(child *InstanceBuilder) *InstanceBuilder {
	b.children = append(b.children, child)
	return b
}

// WithChildren appends children in order.
func (b *InstanceBuilder) WithChildren(children ...*InstanceBuilder) *InstanceBuilder {
	b.children = append(b.children, children...)
	return b
}
