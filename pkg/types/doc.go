// Package types defines the values that live inside a dom: the opaque Ref
// referent that identifies an instance, and the Variant union of property
// values.
//
// # Variants
//
// Variant is a closed union. Every case is a concrete Go type in this package
// and reports its Type tag:
//
//	String, BinaryString, Bool, Int32, Int64, Float32, Float64, Enum,
//	BrickColor, Color3, Color3uint8, Vector2, Vector3, Vector3int16,
//	CFrame, NumberRange, UDim, UDim2, Ref
//
// Unimplemented is the explicit marker for a value whose type has no codec.
// It is never substituted for a real value; serializers must reject it.
//
// # Referents
//
// Ref wraps a KSUID, so referents are unique across doms and are never reused
// after the instance they named is removed. The zero Ref is the "none" value.
// UnresolvedRef marks a reference whose target was outside the data it was
// decoded from.
package types
