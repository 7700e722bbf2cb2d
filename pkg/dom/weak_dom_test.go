package dom

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ssargent/rbxdom/pkg/types"
)

func TestNew_BuildsTree(t *testing.T) {
	childA := NewInstanceBuilder("Folder").WithName("A")
	childB := NewInstanceBuilder("StringValue").WithProperty("Value", types.String("Hello"))
	root := NewInstanceBuilder("Folder").WithName("Root").WithChildren(childA, childB)

	d := New(root)

	assert.Equal(t, 3, d.Len())
	assert.Equal(t, root.Referent(), d.RootRef())
	assert.Equal(t, []types.Ref{childA.Referent(), childB.Referent()}, d.Root().Children())
	assert.True(t, d.Root().Parent().IsNone())

	b, ok := d.Get(childB.Referent())
	require.True(t, ok)
	assert.Equal(t, "StringValue", b.Class())
	assert.Equal(t, "StringValue", b.Name())
	assert.Equal(t, d.RootRef(), b.Parent())

	value, ok := b.Property("Value")
	require.True(t, ok)
	assert.Equal(t, types.String("Hello"), value)
}

func TestNew_DuplicateBuilderPanics(t *testing.T) {
	child := NewInstanceBuilder("Folder")
	root := NewInstanceBuilder("Folder").WithChildren(child, child)

	assert.Panics(t, func() { New(root) })
}

func TestInsert(t *testing.T) {
	d := New(NewInstanceBuilder("Folder"))

	t.Run("appends to parent", func(t *testing.T) {
		first, err := d.Insert(d.RootRef(), NewInstanceBuilder("Part"))
		require.NoError(t, err)
		second, err := d.Insert(d.RootRef(), NewInstanceBuilder("Part"))
		require.NoError(t, err)

		children := d.Root().Children()
		require.Len(t, children, 2)
		assert.Equal(t, first, children[0])
		assert.Equal(t, second, children[1])
	})

	t.Run("unknown parent", func(t *testing.T) {
		before := d.Len()
		_, err := d.Insert(types.NewRef(), NewInstanceBuilder("Part"))
		assert.ErrorIs(t, err, ErrParentNotFound)
		assert.Equal(t, before, d.Len())
	})

	t.Run("builder reused", func(t *testing.T) {
		b := NewInstanceBuilder("Part")
		_, err := d.Insert(d.RootRef(), b)
		require.NoError(t, err)

		before := d.Len()
		_, err = d.Insert(d.RootRef(), b)
		assert.ErrorIs(t, err, ErrDuplicateReferent)
		assert.Equal(t, before, d.Len())
	})

	t.Run("nested builders", func(t *testing.T) {
		leaf := NewInstanceBuilder("Part")
		mid := NewInstanceBuilder("Model").WithChild(leaf)
		ref, err := d.Insert(d.RootRef(), mid)
		require.NoError(t, err)

		inst, ok := d.Get(leaf.Referent())
		require.True(t, ok)
		assert.Equal(t, ref, inst.Parent())
	})
}

func TestSetProperty(t *testing.T) {
	d := New(NewInstanceBuilder("IntValue"))

	require.NoError(t, d.SetProperty(d.RootRef(), "Value", types.Int32(5)))
	v, ok := d.Root().Property("Value")
	require.True(t, ok)
	assert.Equal(t, types.Int32(5), v)

	err := d.SetProperty(types.NewRef(), "Value", types.Int32(1))
	assert.ErrorIs(t, err, ErrNotFound)

	old, err := d.RemoveProperty(d.RootRef(), "Value")
	require.NoError(t, err)
	assert.Equal(t, types.Int32(5), old)
	assert.Equal(t, 0, d.Root().NumProperties())

	require.NoError(t, d.SetName(d.RootRef(), "Counter"))
	assert.Equal(t, "Counter", d.Root().Name())
}

func TestProperties_ReturnsCopy(t *testing.T) {
	d := New(NewInstanceBuilder("Folder").WithProperty("A", types.Bool(true)))

	props := d.Root().Properties()
	props["B"] = types.Bool(false)

	assert.Equal(t, 1, d.Root().NumProperties())
	assert.Equal(t, []string{"A"}, d.Root().PropertyNames())
}

func TestRemove_InvalidatesSubtree(t *testing.T) {
	grandchild := NewInstanceBuilder("Part")
	child := NewInstanceBuilder("Model").WithChild(grandchild)
	sibling := NewInstanceBuilder("Folder")
	d := New(NewInstanceBuilder("Folder").WithChildren(child, sibling))

	removed, err := d.Remove(child.Referent())
	require.NoError(t, err)
	assert.Equal(t, []types.Ref{child.Referent(), grandchild.Referent()}, removed)

	for _, ref := range removed {
		_, ok := d.Get(ref)
		assert.False(t, ok)
		assert.ErrorIs(t, d.SetProperty(ref, "X", types.Bool(true)), ErrNotFound)
	}
	assert.Equal(t, []types.Ref{sibling.Referent()}, d.Root().Children())
	assert.Equal(t, 2, d.Len())

	_, err = d.Remove(child.Referent())
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestRemove_Root(t *testing.T) {
	d := New(NewInstanceBuilder("Folder"))
	_, err := d.Remove(d.RootRef())
	assert.ErrorIs(t, err, ErrRemoveRoot)
}

func TestReparent(t *testing.T) {
	a := NewInstanceBuilder("Folder").WithName("A")
	b := NewInstanceBuilder("Folder").WithName("B")
	leaf := NewInstanceBuilder("Part")
	a.WithChild(leaf)
	d := New(NewInstanceBuilder("Folder").WithChildren(a, b))

	require.NoError(t, d.Reparent(leaf.Referent(), b.Referent()))

	aInst, _ := d.Get(a.Referent())
	bInst, _ := d.Get(b.Referent())
	leafInst, _ := d.Get(leaf.Referent())
	assert.Empty(t, aInst.Children())
	assert.Equal(t, []types.Ref{leaf.Referent()}, bInst.Children())
	assert.Equal(t, b.Referent(), leafInst.Parent())

	t.Run("cycle", func(t *testing.T) {
		assert.ErrorIs(t, d.Reparent(b.Referent(), leaf.Referent()), ErrCycle)
		assert.ErrorIs(t, d.Reparent(b.Referent(), b.Referent()), ErrCycle)
		assert.ErrorIs(t, d.Reparent(d.RootRef(), a.Referent()), ErrCycle)
	})

	t.Run("missing", func(t *testing.T) {
		assert.ErrorIs(t, d.Reparent(types.NewRef(), a.Referent()), ErrNotFound)
		assert.ErrorIs(t, d.Reparent(a.Referent(), types.NewRef()), ErrParentNotFound)
	})
}

func TestDescendants_PreOrder(t *testing.T) {
	var names []string
	leaf1 := NewInstanceBuilder("Part").WithName("1.1")
	one := NewInstanceBuilder("Model").WithName("1").WithChild(leaf1)
	two := NewInstanceBuilder("Model").WithName("2")
	d := New(NewInstanceBuilder("Folder").WithName("0").WithChildren(one, two))

	refs, err := d.Descendants(d.RootRef())
	require.NoError(t, err)
	for _, ref := range refs {
		inst, _ := d.Get(ref)
		names = append(names, inst.Name())
	}
	assert.Equal(t, []string{"0", "1", "1.1", "2"}, names)

	_, err = d.Descendants(types.NewRef())
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestDeepTree(t *testing.T) {
	const depth = 100000
	root := NewInstanceBuilder("Folder")
	cur := root
	for i := 0; i < depth; i++ {
		next := NewInstanceBuilder("Folder").WithName(fmt.Sprintf("level %d", i))
		cur.WithChild(next)
		cur = next
	}

	d := New(root)
	assert.Equal(t, depth+1, d.Len())

	refs, err := d.Descendants(d.RootRef())
	require.NoError(t, err)
	assert.Len(t, refs, depth+1)
}
