package dom

import (
	"encoding/json"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/ssargent/rbxdom/pkg/types"
)

func TestViewer_RedactSingle(t *testing.T) {
	d := New(NewInstanceBuilder("Folder").WithName("Root"))

	view := NewDomViewer().View(d)

	assert.Equal(t, ViewedInstance{
		Referent:   "referent-0",
		Name:       "Root",
		Class:      "Folder",
		Properties: map[string]ViewedValue{},
		Children:   []ViewedInstance{},
	}, view)
}

func TestViewer_RedactMulti(t *testing.T) {
	root := NewInstanceBuilder("Folder").WithName("Root")
	for i := 0; i < 4; i++ {
		root.WithChild(NewInstanceBuilder("Folder").WithName(fmt.Sprintf("Child %d", i)))
	}
	d := New(root)

	view := NewDomViewer().View(d)

	assert.Equal(t, "referent-0", view.Referent)
	require.Len(t, view.Children, 4)
	for i, child := range view.Children {
		assert.Equal(t, fmt.Sprintf("referent-%d", i+1), child.Referent)
		assert.Equal(t, fmt.Sprintf("Child %d", i), child.Name)
	}
}

func TestViewer_RedactValues(t *testing.T) {
	root := NewInstanceBuilder("ObjectValue").WithName("Root")
	root.WithProperty("Value", root.Referent())
	root.WithProperty("Elsewhere", types.NewRef())
	root.WithProperty("Nothing", types.NoneRef())
	root.WithProperty("Label", types.String("hi"))
	d := New(root)

	view := NewDomViewer().View(d)

	assert.Equal(t, ViewedValue{Ref: "referent-0"}, view.Properties["Value"])
	assert.Equal(t, ViewedValue{Ref: unknownIDLabel}, view.Properties["Elsewhere"])
	assert.Equal(t, ViewedValue{Ref: "null"}, view.Properties["Nothing"])
	assert.Equal(t, ViewedValue{Value: types.String("hi")}, view.Properties["Label"])
}

func TestViewer_StableAcrossDoms(t *testing.T) {
	build := func() *WeakDom {
		return New(NewInstanceBuilder("Model").WithChildren(
			NewInstanceBuilder("Part").WithName("A"),
			NewInstanceBuilder("Part").WithName("B").WithChild(NewInstanceBuilder("Decal")),
		))
	}

	first, err := yaml.Marshal(NewDomViewer().View(build()))
	require.NoError(t, err)
	second, err := yaml.Marshal(NewDomViewer().View(build()))
	require.NoError(t, err)

	assert.Equal(t, string(first), string(second))
	assert.Contains(t, string(first), "referent: referent-3")
}

func TestViewer_ViewChildren(t *testing.T) {
	a := NewInstanceBuilder("Folder").WithName("A")
	b := NewInstanceBuilder("ObjectValue").WithName("B").WithProperty("Value", a.Referent())
	d := New(NewInstanceBuilder("DataModel").WithChildren(a, b))

	viewer := NewDomViewer()
	views := viewer.ViewChildren(d)

	require.Len(t, views, 2)
	assert.Equal(t, "referent-0", views[0].Referent)
	assert.Equal(t, "referent-1", views[1].Referent)
	assert.Equal(t, ViewedValue{Ref: "referent-0"}, views[1].Properties["Value"])

	_, ok := viewer.Label(d.RootRef())
	assert.False(t, ok)

	again := viewer.ViewChildren(d)
	assert.Equal(t, views, again)
}

func TestViewedValue_Marshal(t *testing.T) {
	out, err := yaml.Marshal(map[string]ViewedValue{
		"Value": {Value: types.String("Hello")},
		"Ref":   {Ref: "referent-2"},
	})
	require.NoError(t, err)
	assert.Equal(t, "Ref: referent-2\nValue:\n    String: Hello\n", string(out))

	js, err := json.Marshal(ViewedValue{Value: types.BinaryString("ab")})
	require.NoError(t, err)
	assert.JSONEq(t, `{"BinaryString":"YWI="}`, string(js))
}
