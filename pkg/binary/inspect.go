package binary

import (
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"unicode/utf8"

	"github.com/ssargent/rbxdom/pkg/types"
)

// DecodedModel is a chunk by chunk rendering of a file, meant for snapshots
// and debugging. Referents are shown as file-local ids.
type DecodedModel struct {
	Version      uint16         `yaml:"version" json:"version"`
	NumClasses   int32          `yaml:"num_classes" json:"num_classes"`
	NumInstances int32          `yaml:"num_instances" json:"num_instances"`
	Chunks       []DecodedChunk `yaml:"chunks" json:"chunks"`
}

// DecodedChunk is one chunk of a DecodedModel. Exactly one of the payload
// fields is set for known chunks; unknown chunks only report their size.
type DecodedChunk struct {
	Name        string            `yaml:"name" json:"name"`
	Compression string            `yaml:"compression" json:"compression"`
	Size        int               `yaml:"size" json:"size"`
	Metadata    map[string]string `yaml:"metadata,omitempty" json:"metadata,omitempty"`
	Inst        *DecodedInst      `yaml:"inst,omitempty" json:"inst,omitempty"`
	Prop        *DecodedProp      `yaml:"prop,omitempty" json:"prop,omitempty"`
	Prnt        []ParentLink      `yaml:"prnt,omitempty" json:"prnt,omitempty"`
	Skipped     bool              `yaml:"skipped,omitempty" json:"skipped,omitempty"`
}

type DecodedInst struct {
	ClassID   uint32  `yaml:"class_id" json:"class_id"`
	ClassName string  `yaml:"class_name" json:"class_name"`
	Service   bool    `yaml:"service,omitempty" json:"service,omitempty"`
	Referents []int32 `yaml:"referents" json:"referents"`
}

type DecodedProp struct {
	ClassID  uint32        `yaml:"class_id" json:"class_id"`
	Property string        `yaml:"property" json:"property"`
	Type     string        `yaml:"type" json:"type"`
	Values   []interface{} `yaml:"values" json:"values"`
}

type ParentLink struct {
	Child  int32 `yaml:"child" json:"child"`
	Parent int32 `yaml:"parent" json:"parent"`
}

// Inspect reads a file without building a dom. Property values are rendered
// without consulting a reflection database.
func Inspect(r io.Reader, limits Limits) (*DecodedModel, error) {
	header, err := readHeader(r)
	if err != nil {
		return nil, err
	}
	model := &DecodedModel{
		Version:      header.Version,
		NumClasses:   header.NumClasses,
		NumInstances: header.NumInstances,
	}

	counts := make(map[uint32]int)
	cr := newChunkReader(r, limits)
	defer cr.close()
	for {
		c, err := cr.next()
		if errors.Is(err, io.EOF) {
			return nil, malformed("missing END chunk")
		}
		if err != nil {
			return nil, err
		}

		dc := DecodedChunk{Name: c.label(), Compression: c.Compression.String(), Size: len(c.Data)}
		br := newByteReader(c.Data)
		switch c.Name {
		case chunkEnd:
			model.Chunks = append(model.Chunks, dc)
			return model, nil
		case chunkMeta:
			dec := &Decoder{metadata: make(map[string]string)}
			err = dec.readMeta(br)
			dc.Metadata = dec.metadata
		case chunkInst:
			dc.Inst, err = inspectInst(br)
			if err == nil {
				counts[dc.Inst.ClassID] = len(dc.Inst.Referents)
			}
		case chunkProp:
			dc.Prop, err = inspectProp(br, counts)
		case chunkPrnt:
			dc.Prnt, err = inspectPrnt(br)
		default:
			dc.Skipped = true
		}
		if err != nil {
			return nil, fmt.Errorf("%s chunk: %w", c.label(), err)
		}
		model.Chunks = append(model.Chunks, dc)
	}
}

func inspectInst(r *byteReader) (*DecodedInst, error) {
	inst := &DecodedInst{}
	var err error
	if inst.ClassID, err = r.u32(); err != nil {
		return nil, err
	}
	name, err := r.str()
	if err != nil {
		return nil, err
	}
	inst.ClassName = string(name)
	format, err := r.u8()
	if err != nil {
		return nil, err
	}
	inst.Service = format == 1
	n, err := r.count(4)
	if err != nil {
		return nil, err
	}
	if inst.Referents, err = r.referents(n); err != nil {
		return nil, err
	}
	return inst, nil
}

func inspectProp(r *byteReader, counts map[uint32]int) (*DecodedProp, error) {
	prop := &DecodedProp{}
	var err error
	if prop.ClassID, err = r.u32(); err != nil {
		return nil, err
	}
	n, ok := counts[prop.ClassID]
	if !ok {
		return nil, malformed("property for unlisted class id %d", prop.ClassID)
	}
	name, err := r.str()
	if err != nil {
		return nil, err
	}
	prop.Property = string(name)
	wire, err := r.u8()
	if err != nil {
		return nil, err
	}

	if wire == wireRef {
		prop.Type = types.TypeRef.String()
		ids, err := r.referents(n)
		if err != nil {
			return nil, err
		}
		for _, id := range ids {
			prop.Values = append(prop.Values, id)
		}
		return prop, nil
	}

	codec, err := codecForWire(wire)
	if err != nil {
		return nil, err
	}
	prop.Type = codec.kind.String()
	values, err := codec.decode(r, n, &refTable{})
	if err != nil {
		return nil, err
	}
	for _, v := range values {
		prop.Values = append(prop.Values, inspectValue(v))
	}
	return prop, nil
}

// inspectValue renders wire strings as text when they are valid UTF-8 and as
// base64 otherwise.
func inspectValue(v types.Variant) interface{} {
	if s, ok := v.(types.BinaryString); ok {
		if utf8.Valid(s) {
			return string(s)
		}
		return base64.StdEncoding.EncodeToString(s)
	}
	return v
}

func inspectPrnt(r *byteReader) ([]ParentLink, error) {
	if _, err := r.u8(); err != nil {
		return nil, err
	}
	n, err := r.count(8)
	if err != nil {
		return nil, err
	}
	children, err := r.referents(n)
	if err != nil {
		return nil, err
	}
	parents, err := r.referents(n)
	if err != nil {
		return nil, err
	}
	links := make([]ParentLink, n)
	for i := range links {
		links[i] = ParentLink{Child: children[i], Parent: parents[i]}
	}
	return links, nil
}
