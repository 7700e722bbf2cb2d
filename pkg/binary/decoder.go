package binary

import (
	"errors"
	"fmt"
	"io"
	"unicode/utf8"

	"github.com/rs/zerolog"

	"github.com/ssargent/rbxdom/pkg/dom"
	"github.com/ssargent/rbxdom/pkg/reflection"
	"github.com/ssargent/rbxdom/pkg/types"
)

// DefaultRootClass is the class of the root a decoded model is attached under
// when the caller does not supply one.
const DefaultRootClass = "DataModel"

// DecodeOptions configures a Decoder.
type DecodeOptions struct {
	// Database resolves aliases and string typing. Nil means
	// reflection.Default().
	Database *reflection.Database
	Limits   Limits
	// Logger receives debug output. Nil disables logging.
	Logger *zerolog.Logger
}

// UnknownProperty is a property a file carried that the database does not
// declare. Its values are kept under the literal name.
type UnknownProperty struct {
	Class    string
	Property string
}

// Decoder reads the binary model format into a dom.WeakDom.
type Decoder struct {
	db       *reflection.Database
	limits   Limits
	logger   zerolog.Logger
	metadata map[string]string
	unknown  []UnknownProperty
}

// NewDecoder creates a decoder.
func NewDecoder(opts DecodeOptions) *Decoder {
	dec := &Decoder{db: opts.Database, limits: opts.Limits, logger: zerolog.Nop()}
	if dec.db == nil {
		dec.db = reflection.Default()
	}
	if dec.limits.MaxChunkBytes <= 0 {
		dec.limits = DefaultLimits()
	}
	if opts.Logger != nil {
		dec.logger = *opts.Logger
	}
	return dec
}

// Decode reads a model using default options.
func Decode(r io.Reader) (*dom.WeakDom, error) {
	return NewDecoder(DecodeOptions{}).Decode(r)
}

// Metadata returns the META entries of the last decoded file.
func (dec *Decoder) Metadata() map[string]string {
	return dec.metadata
}

// UnknownProperties returns the undeclared properties seen in the last decoded
// file, in the order they were first read.
func (dec *Decoder) UnknownProperties() []UnknownProperty {
	return dec.unknown
}

// Decode reads a model and attaches its top level instances under a new
// DataModel root.
func (dec *Decoder) Decode(r io.Reader) (*dom.WeakDom, error) {
	return dec.DecodeUnder(r, dom.NewInstanceBuilder(DefaultRootClass))
}

// decodeClass is a class read from an INST chunk.
type decodeClass struct {
	name string
	ids  []int32
}

// decodeState holds everything read so far from one file.
type decodeState struct {
	classes  map[uint32]*decodeClass
	builders map[int32]*dom.InstanceBuilder
	order    []int32
	table    *refTable
	parents  map[int32]int32
	linked   []int32
	sawPrnt  bool
	unknown  map[UnknownProperty]struct{}
}

// DecodeUnder reads a model and attaches its top level instances under root.
// root must not be used again by the caller.
func (dec *Decoder) DecodeUnder(r io.Reader, root *dom.InstanceBuilder) (*dom.WeakDom, error) {
	dec.metadata = make(map[string]string)
	dec.unknown = nil

	header, err := readHeader(r)
	if err != nil {
		return nil, err
	}

	st := &decodeState{
		classes:  make(map[uint32]*decodeClass),
		builders: make(map[int32]*dom.InstanceBuilder),
		table:    &refTable{refs: make(map[int32]types.Ref)},
		parents:  make(map[int32]int32),
		unknown:  make(map[UnknownProperty]struct{}),
	}

	cr := newChunkReader(r, dec.limits)
	defer cr.close()
	for {
		c, err := cr.next()
		if errors.Is(err, io.EOF) {
			return nil, malformed("missing END chunk")
		}
		if err != nil {
			return nil, err
		}
		if c.Name == chunkEnd {
			break
		}

		dec.logger.Debug().Str("chunk", c.label()).Int("size", len(c.Data)).Msg("reading chunk")
		switch c.Name {
		case chunkMeta:
			err = dec.readMeta(newByteReader(c.Data))
		case chunkInst:
			err = dec.readInst(newByteReader(c.Data), st, header)
		case chunkProp:
			err = dec.readProp(newByteReader(c.Data), st)
		case chunkPrnt:
			err = dec.readPrnt(newByteReader(c.Data), st)
		default:
			dec.logger.Debug().Str("chunk", c.label()).Msg("skipping unknown chunk")
		}
		if err != nil {
			return nil, fmt.Errorf("%s chunk: %w", c.label(), err)
		}
	}

	tree, err := dec.assemble(st, root)
	if err != nil {
		return nil, err
	}
	dec.logger.Debug().Int("instances", len(st.order)).Msg("decoded model")
	return tree, nil
}

func (dec *Decoder) readMeta(r *byteReader) error {
	n, err := r.count(8)
	if err != nil {
		return err
	}
	for i := 0; i < n; i++ {
		k, err := r.str()
		if err != nil {
			return err
		}
		v, err := r.str()
		if err != nil {
			return err
		}
		dec.metadata[string(k)] = string(v)
	}
	return nil
}

func (dec *Decoder) readInst(r *byteReader, st *decodeState, header fileHeader) error {
	classID, err := r.u32()
	if err != nil {
		return err
	}
	if _, dup := st.classes[classID]; dup {
		return malformed("class id %d listed twice", classID)
	}
	if classID >= uint32(header.NumClasses) {
		return malformed("class id %d out of range (%d classes)", classID, header.NumClasses)
	}
	name, err := r.str()
	if err != nil {
		return err
	}
	format, err := r.u8()
	if err != nil {
		return err
	}
	if format > 1 {
		return malformed("unknown object format %d", format)
	}
	n, err := r.count(4)
	if err != nil {
		return err
	}
	ids, err := r.referents(n)
	if err != nil {
		return err
	}
	if format == 1 {
		if _, err := r.take(n); err != nil {
			return err
		}
	}

	class := &decodeClass{name: string(name), ids: ids}
	for _, id := range ids {
		if id < 0 {
			return malformed("negative referent %d", id)
		}
		if _, dup := st.builders[id]; dup {
			return malformed("referent %d listed twice", id)
		}
		b := dom.NewInstanceBuilder(class.name)
		st.builders[id] = b
		st.table.refs[id] = b.Referent()
		st.order = append(st.order, id)
	}
	if len(st.order) > int(header.NumInstances) {
		return malformed("more instances than the header declares (%d)", header.NumInstances)
	}
	st.classes[classID] = class
	return nil
}

func (dec *Decoder) readProp(r *byteReader, st *decodeState) error {
	classID, err := r.u32()
	if err != nil {
		return err
	}
	class, ok := st.classes[classID]
	if !ok {
		return malformed("property for unlisted class id %d", classID)
	}
	rawName, err := r.str()
	if err != nil {
		return err
	}
	name := string(rawName)
	wire, err := r.u8()
	if err != nil {
		return err
	}

	codec, err := codecForWire(wire)
	if err != nil {
		return &PropertyError{Class: class.name, Property: name, Type: fmt.Sprintf("0x%02X", wire), Err: err}
	}
	values, err := codec.decode(r, len(class.ids), st.table)
	if err != nil {
		return &PropertyError{Class: class.name, Property: name, Type: codec.kind.String(), Err: err}
	}

	if name == nameProperty {
		for i, id := range class.ids {
			if s, ok := values[i].(types.BinaryString); ok {
				st.builders[id].WithName(string(s))
			}
		}
		return nil
	}

	desc, declared := dec.db.FindProperty(class.name, name)
	if declared {
		name = desc.Name
	} else {
		key := UnknownProperty{Class: class.name, Property: name}
		if _, seen := st.unknown[key]; !seen {
			st.unknown[key] = struct{}{}
			dec.unknown = append(dec.unknown, key)
			dec.logger.Debug().Str("class", class.name).Str("property", name).Msg("unknown property")
		}
	}

	if codec.wire == wireString {
		typeStrings(values, desc)
	}
	for i, id := range class.ids {
		st.builders[id].WithProperty(name, values[i])
	}
	return nil
}

// typeStrings decides between String and BinaryString for a wire string
// column. Undeclared columns are text only when every value is valid UTF-8.
func typeStrings(values []types.Variant, desc *reflection.PropertyDescriptor) {
	text := true
	if desc != nil && desc.Type == types.TypeBinaryString {
		text = false
	} else if desc == nil || desc.Type != types.TypeString {
		for _, v := range values {
			if !utf8.Valid(v.(types.BinaryString)) {
				text = false
				break
			}
		}
	}
	if !text {
		return
	}
	for i, v := range values {
		values[i] = types.String(v.(types.BinaryString))
	}
}

func (dec *Decoder) readPrnt(r *byteReader, st *decodeState) error {
	if st.sawPrnt {
		return malformed("more than one PRNT chunk")
	}
	st.sawPrnt = true

	version, err := r.u8()
	if err != nil {
		return err
	}
	if version != 0 {
		return malformed("unknown PRNT version %d", version)
	}
	n, err := r.count(8)
	if err != nil {
		return err
	}
	children, err := r.referents(n)
	if err != nil {
		return err
	}
	parents, err := r.referents(n)
	if err != nil {
		return err
	}

	for i, child := range children {
		parent := parents[i]
		if _, ok := st.builders[child]; !ok {
			return malformed("parent link for unknown referent %d", child)
		}
		if _, dup := st.parents[child]; dup {
			return malformed("referent %d linked twice", child)
		}
		if parent != refNone {
			if _, ok := st.builders[parent]; !ok {
				return malformed("referent %d has unknown parent %d", child, parent)
			}
		}
		st.parents[child] = parent
		st.linked = append(st.linked, child)
	}
	return nil
}

// assemble links builders into a tree under root. Export roots come first in
// PRNT order, then instances PRNT never mentioned in INST order.
func (dec *Decoder) assemble(st *decodeState, root *dom.InstanceBuilder) (*dom.WeakDom, error) {
	var top []int32
	kids := make(map[int32][]int32)
	for _, child := range st.linked {
		parent := st.parents[child]
		if parent == refNone {
			top = append(top, child)
			continue
		}
		kids[parent] = append(kids[parent], child)
	}
	for _, id := range st.order {
		if _, ok := st.parents[id]; !ok {
			top = append(top, id)
		}
	}

	// Every instance has at most one parent, so anything not reachable from
	// the top level is part of a cycle.
	reached := 0
	stack := append([]int32(nil), top...)
	for len(stack) > 0 {
		id := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		reached++
		stack = append(stack, kids[id]...)
	}
	if reached != len(st.order) {
		return nil, malformed("parent links contain a cycle")
	}

	for parent, children := range kids {
		b := st.builders[parent]
		for _, child := range children {
			b.WithChild(st.builders[child])
		}
	}
	for _, id := range top {
		root.WithChild(st.builders[id])
	}
	return dom.New(root), nil
}
