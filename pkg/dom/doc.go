// Package dom provides WeakDom, an arena that owns a forest of instances and
// addresses them by opaque referent.
//
// Instances are created from an InstanceBuilder, which carries a referent
// minted up front so a tree can refer to its own members before it is
// inserted. Every structural mutation goes through the WeakDom, which keeps
// parent and child links consistent:
//
//	dom := dom.New(dom.NewInstanceBuilder("Folder").WithName("Root"))
//	ref, err := dom.Insert(dom.RootRef(), dom.NewInstanceBuilder("StringValue").
//		WithProperty("Value", types.String("Hello")))
//
// Reference-valued properties are plain types.Ref values. They are never
// followed implicitly, may point anywhere (or nowhere), and do not keep their
// targets alive.
//
// A WeakDom is not safe for concurrent mutation. Callers serialize access.
package dom
