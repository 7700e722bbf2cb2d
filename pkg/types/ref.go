package types

import (
	"fmt"

	"github.com/segmentio/ksuid"
)

const (
	noneText       = "null"
	unresolvedText = "unresolved"
)

// Ref is an opaque referent for an instance. Refs are comparable and can be
// used as map keys.
type Ref struct {
	id ksuid.KSUID
}

// NewRef mints a new, globally unique referent.
func NewRef() Ref {
	return Ref{id: ksuid.New()}
}

// NoneRef returns the referent meaning "no instance".
func NoneRef() Ref {
	return Ref{}
}

// UnresolvedRef returns the marker for a reference whose target is unknown.
// It is distinct from NoneRef and never names a live instance.
func UnresolvedRef() Ref {
	return Ref{id: ksuid.Max}
}

// IsNone reports whether r is the "none" referent.
func (r Ref) IsNone() bool { return r.id == ksuid.Nil }

// IsUnresolved reports whether r is the unresolved marker.
func (r Ref) IsUnresolved() bool { return r.id == ksuid.Max }

// IsSome reports whether r could name an instance.
func (r Ref) IsSome() bool { return !r.IsNone() && !r.IsUnresolved() }

func (r Ref) String() string {
	switch {
	case r.IsNone():
		return noneText
	case r.IsUnresolved():
		return unresolvedText
	default:
		return r.id.String()
	}
}

// ParseRef parses the output of Ref.String.
func ParseRef(s string) (Ref, error) {
	switch s {
	case noneText, "":
		return NoneRef(), nil
	case unresolvedText:
		return UnresolvedRef(), nil
	}
	id, err := ksuid.Parse(s)
	if err != nil {
		return Ref{}, fmt.Errorf("invalid referent %q: %w", s, err)
	}
	return Ref{id: id}, nil
}

// MarshalText implements encoding.TextMarshaler.
func (r Ref) MarshalText() ([]byte, error) {
	return []byte(r.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (r *Ref) UnmarshalText(b []byte) error {
	parsed, err := ParseRef(string(b))
	if err != nil {
		return err
	}
	*r = parsed
	return nil
}

func (Ref) Type() Type { return TypeRef }
func (Ref) variant()   {}
