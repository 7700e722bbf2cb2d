package dom

import (
	"encoding/base64"
	"encoding/json"
	"fmt"

	"github.com/ssargent/rbxdom/pkg/types"
)

const unknownIDLabel = "[unknown ID]"

// DomViewer redacts the nondeterministic parts of a dom so it can be compared
// across runs. Referents are replaced with labels assigned in pre-order
// ("referent-0", "referent-1", ...). Labels persist across calls on the same
// viewer.
type DomViewer struct {
	referentMap  map[types.Ref]string
	nextReferent int
}

// NewDomViewer constructs a viewer with no interned referents.
func NewDomViewer() *DomViewer {
	return &DomViewer{referentMap: make(map[types.Ref]string)}
}

// ViewedInstance is a redacted, serializable view of an instance.
type ViewedInstance struct {
	Referent   string                 `yaml:"referent" json:"referent"`
	Name       string                 `yaml:"name" json:"name"`
	Class      string                 `yaml:"class" json:"class"`
	Properties map[string]ViewedValue `yaml:"properties" json:"properties"`
	Children   []ViewedInstance       `yaml:"children" json:"children"`
}

// ViewedValue is a property value with references replaced by labels.
// Exactly one of Ref or Value is meaningful: Value is nil for references.
type ViewedValue struct {
	Ref   string
	Value types.Variant
}

// MarshalYAML renders references as their label and other values as a
// single-entry map keyed by type name.
func (v ViewedValue) MarshalYAML() (interface{}, error) {
	if v.Value == nil {
		return v.Ref, nil
	}
	return map[string]interface{}{v.Value.Type().String(): plainValue(v.Value)}, nil
}

// MarshalJSON mirrors MarshalYAML.
func (v ViewedValue) MarshalJSON() ([]byte, error) {
	if v.Value == nil {
		return json.Marshal(v.Ref)
	}
	return json.Marshal(map[string]interface{}{v.Value.Type().String(): plainValue(v.Value)})
}

func plainValue(v types.Variant) interface{} {
	switch val := v.(type) {
	case types.BinaryString:
		return base64.StdEncoding.EncodeToString(val)
	case types.String:
		return string(val)
	default:
		return val
	}
}

// View views the whole dom starting at its root.
func (v *DomViewer) View(d *WeakDom) ViewedInstance {
	v.populate(d, d.RootRef())
	return v.view(d, d.RootRef())
}

// ViewChildren views each child of the root.
func (v *DomViewer) ViewChildren(d *WeakDom) []ViewedInstance {
	children := d.Root().children
	for _, ref := range children {
		v.populate(d, ref)
	}
	out := make([]ViewedInstance, 0, len(children))
	for _, ref := range children {
		out = append(out, v.view(d, ref))
	}
	return out
}

// Label returns the label interned for ref, if any.
func (v *DomViewer) Label(ref types.Ref) (string, bool) {
	label, ok := v.referentMap[ref]
	return label, ok
}

func (v *DomViewer) populate(d *WeakDom, ref types.Ref) {
	for _, r := range d.subtree(ref) {
		if _, ok := v.referentMap[r]; ok {
			continue
		}
		v.referentMap[r] = fmt.Sprintf("referent-%d", v.nextReferent)
		v.nextReferent++
	}
}

// view assembles nested views bottom-up over the pre-order list, so no
// recursion is needed on deep trees.
func (v *DomViewer) view(d *WeakDom, ref types.Ref) ViewedInstance {
	order := d.subtree(ref)
	built := make(map[types.Ref]ViewedInstance, len(order))
	for i := len(order) - 1; i >= 0; i-- {
		inst := d.mustGet(order[i])

		children := make([]ViewedInstance, 0, len(inst.children))
		for _, child := range inst.children {
			children = append(children, built[child])
			delete(built, child)
		}

		built[inst.referent] = ViewedInstance{
			Referent:   v.referentMap[inst.referent],
			Name:       inst.name,
			Class:      inst.class,
			Properties: v.viewProperties(inst),
			Children:   children,
		}
	}
	return built[ref]
}

func (v *DomViewer) viewProperties(inst *Instance) map[string]ViewedValue {
	out := make(map[string]ViewedValue, len(inst.properties))
	for name, value := range inst.properties {
		ref, isRef := value.(types.Ref)
		if !isRef {
			out[name] = ViewedValue{Value: value}
			continue
		}
		switch label, ok := v.referentMap[ref]; {
		case ok:
			out[name] = ViewedValue{Ref: label}
		case ref.IsNone():
			out[name] = ViewedValue{Ref: "null"}
		default:
			out[name] = ViewedValue{Ref: unknownIDLabel}
		}
	}
	return out
}
