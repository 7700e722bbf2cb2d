package dom

import (
	"fmt"

	"github.com/ssargent/rbxdom/pkg/types"
)

// WeakDom owns a tree of instances rooted at a single implicit root.
type WeakDom struct {
	instances map[types.Ref]*Instance
	root      types.Ref
}

// New creates a dom whose root is built from root, including all of its
// descendants. It panics if the builder tree repeats a referent.
func New(root *InstanceBuilder) *WeakDom {
	d := &WeakDom{
		instances: make(map[types.Ref]*Instance),
		root:      root.referent,
	}
	if err := d.insertTree(types.NoneRef(), root); err != nil {
		panic(fmt.Sprintf("dom: invalid root builder: %v", err))
	}
	return d
}

// RootRef returns the referent of the root instance.
func (d *WeakDom) RootRef() types.Ref { return d.root }

// Root returns the root instance.
func (d *WeakDom) Root() *Instance { return d.mustGet(d.root) }

// Len returns the number of live instances, including the root.
func (d *WeakDom) Len() int { return len(d.instances) }

// Get returns the instance for ref. Removed and unknown referents report false.
func (d *WeakDom) Get(ref types.Ref) (*Instance, bool) {
	inst, ok := d.instances[ref]
	return inst, ok
}

// Contains reports whether ref names a live instance.
func (d *WeakDom) Contains(ref types.Ref) bool {
	_, ok := d.instances[ref]
	return ok
}

// Insert adds the builder's tree as the last child of parent and returns the
// new instance's referent. Nothing is inserted when an error is returned.
func (d *WeakDom) Insert(parent types.Ref, builder *InstanceBuilder) (types.Ref, error) {
	if _, ok := d.instances[parent]; !ok {
		return types.NoneRef(), fmt.Errorf("%w: %s", ErrParentNotFound, parent)
	}
	if err := d.insertTree(parent, builder); err != nil {
		return types.NoneRef(), err
	}
	return builder.referent, nil
}

// SetName renames an instance.
func (d *WeakDom) SetName(ref types.Ref, name string) error {
	inst, ok := d.instances[ref]
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, ref)
	}
	inst.name = name
	return nil
}

// SetProperty sets a property value on an instance.
func (d *WeakDom) SetProperty(ref types.Ref, name string, value types.Variant) error {
	inst, ok := d.instances[ref]
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, ref)
	}
	inst.properties[name] = value
	return nil
}

// RemoveProperty deletes a property and returns its previous value, if any.
func (d *WeakDom) RemoveProperty(ref types.Ref, name string) (types.Variant, error) {
	inst, ok := d.instances[ref]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, ref)
	}
	old := inst.properties[name]
	delete(inst.properties, name)
	return old, nil
}

// Remove deletes ref and all of its descendants. It returns every referent
// that became invalid, in pre-order.
func (d *WeakDom) Remove(ref types.Ref) ([]types.Ref, error) {
	inst, ok := d.instances[ref]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, ref)
	}
	if ref == d.root {
		return nil, ErrRemoveRoot
	}

	removed := d.subtree(ref)
	d.unlink(inst)
	for _, r := range removed {
		delete(d.instances, r)
	}
	return removed, nil
}

// Reparent moves ref to be the last child of newParent.
func (d *WeakDom) Reparent(ref, newParent types.Ref) error {
	inst, ok := d.instances[ref]
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, ref)
	}
	parent, ok := d.instances[newParent]
	if !ok {
		return fmt.Errorf("%w: %s", ErrParentNotFound, newParent)
	}
	if ref == d.root {
		return ErrCycle
	}
	for cur := newParent; !cur.IsNone(); cur = d.mustGet(cur).parent {
		if cur == ref {
			return ErrCycle
		}
	}

	d.unlink(inst)
	inst.parent = newParent
	parent.children = append(parent.children, ref)
	return nil
}

// Descendants returns ref and everything below it in pre-order, children in
// their stored order.
func (d *WeakDom) Descendants(ref types.Ref) ([]types.Ref, error) {
	if _, ok := d.instances[ref]; !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, ref)
	}
	return d.subtree(ref), nil
}

func (d *WeakDom) subtree(ref types.Ref) []types.Ref {
	var out []types.Ref
	stack := []types.Ref{ref}
	for len(stack) > 0 {
		cur := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		out = append(out, cur)

		children := d.mustGet(cur).children
		for i := len(children) - 1; i >= 0; i-- {
			stack = append(stack, children[i])
		}
	}
	return out
}

// unlink detaches inst from its parent's child list.
func (d *WeakDom) unlink(inst *Instance) {
	if inst.parent.IsNone() {
		return
	}
	parent := d.mustGet(inst.parent)
	for i, child := range parent.children {
		if child == inst.referent {
			parent.children = append(parent.children[:i], parent.children[i+1:]...)
			return
		}
	}
	panic(fmt.Sprintf("dom: %s missing from children of its parent %s", inst.referent, inst.parent))
}

// insertTree validates the whole builder tree before touching the dom, so a
// failed insert leaves it unchanged.
func (d *WeakDom) insertTree(parent types.Ref, root *InstanceBuilder) error {
	type pending struct {
		parent  types.Ref
		builder *InstanceBuilder
	}

	seen := make(map[types.Ref]struct{})
	var order []pending
	stack := []pending{{parent: parent, builder: root}}
	for len(stack) > 0 {
		cur := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		ref := cur.builder.referent
		if !ref.IsSome() {
			return fmt.Errorf("%w: %s", ErrDuplicateReferent, ref)
		}
		if _, dup := seen[ref]; dup {
			return fmt.Errorf("%w: %s", ErrDuplicateReferent, ref)
		}
		if _, exists := d.instances[ref]; exists {
			return fmt.Errorf("%w: %s", ErrDuplicateReferent, ref)
		}
		seen[ref] = struct{}{}
		order = append(order, cur)

		children := cur.builder.children
		for i := len(children) - 1; i >= 0; i-- {
			stack = append(stack, pending{parent: ref, builder: children[i]})
		}
	}

	for _, p := range order {
		b := p.builder
		props := make(map[string]types.Variant, len(b.properties))
		for name, value := range b.properties {
			props[name] = value
		}
		d.instances[b.referent] = &Instance{
			referent:   b.referent,
			parent:     p.parent,
			children:   make([]types.Ref, 0, len(b.children)),
			class:      b.class,
			name:       b.name,
			properties: props,
		}
		if !p.parent.IsNone() {
			parent := d.mustGet(p.parent)
			parent.children = append(parent.children, b.referent)
		}
	}
	return nil
}

func (d *WeakDom) mustGet(ref types.Ref) *Instance {
	inst, ok := d.instances[ref]
	if !ok {
		panic(fmt.Sprintf("dom: referent %s is linked but not owned by this dom", ref))
	}
	return inst
}
