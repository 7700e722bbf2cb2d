package dom

import (
	"sort"

	"github.com/ssargent/rbxdom/pkg/types"
)

// Instance is a node owned by a WeakDom. Its structure can only be changed
// through the owning dom.
type Instance struct {
	referent   types.Ref
	parent     types.Ref
	children   []types.Ref
	class      string
	name       string
	properties map[string]types.Variant
}

func (i *Instance) Referent() types.Ref { return i.referent }

// Parent returns the parent referent, or the none referent for the root.
func (i *Instance) Parent() types.Ref { return i.parent }

func (i *Instance) Class() string { return i.class }

func (i *Instance) Name() string { return i.name }

// Children returns a copy of the ordered child referents.
func (i *Instance) Children() []types.Ref {
	out := make([]types.Ref, len(i.children))
	copy(out, i.children)
	return out
}

// NumChildren returns the number of direct children.
func (i *Instance) NumChildren() int { return len(i.children) }

// Property returns the value of a single property.
func (i *Instance) Property(name string) (types.Variant, bool) {
	v, ok := i.properties[name]
	return v, ok
}

// Properties returns a copy of the property map.
func (i *Instance) Properties() map[string]types.Variant {
	out := make(map[string]types.Variant, len(i.properties))
	for name, value := range i.properties {
		out[name] = value
	}
	return out
}

// PropertyNames returns the property names in sorted order.
func (i *Instance) PropertyNames() []string {
	names := make([]string, 0, len(i.properties))
	for name := range i.properties {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// NumProperties returns the number of properties set on the instance.
func (i *Instance) NumProperties() int { return len(i.properties) }
