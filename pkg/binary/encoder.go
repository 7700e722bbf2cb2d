package binary

import (
	"bytes"
	"fmt"
	"io"
	"sort"

	"github.com/rs/zerolog"

	"github.com/ssargent/rbxdom/pkg/dom"
	"github.com/ssargent/rbxdom/pkg/reflection"
	"github.com/ssargent/rbxdom/pkg/types"
)

const nameProperty = "Name"

// EncodeOptions configures an Encoder.
type EncodeOptions struct {
	// Database resolves property types, aliases and defaults. Nil means
	// reflection.Default().
	Database *reflection.Database
	// Compression applies to every chunk except END.
	Compression Compression
	// Metadata is written as a META chunk when non-empty.
	Metadata map[string]string
	// Logger receives debug output. Nil disables logging.
	Logger *zerolog.Logger
}

// Encoder writes dom subtrees in the binary model format.
type Encoder struct {
	db     *reflection.Database
	opts   EncodeOptions
	logger zerolog.Logger
}

// NewEncoder creates an encoder.
func NewEncoder(opts EncodeOptions) *Encoder {
	e := &Encoder{db: opts.Database, opts: opts, logger: zerolog.Nop()}
	if e.db == nil {
		e.db = reflection.Default()
	}
	if opts.Logger != nil {
		e.logger = *opts.Logger
	}
	return e
}

// Encode writes roots and their descendants using default options.
func Encode(w io.Writer, d *dom.WeakDom, roots []types.Ref) error {
	return NewEncoder(EncodeOptions{}).Encode(w, d, roots)
}

// exportClass is one class of the selection with its instances in collection
// order.
type exportClass struct {
	id        uint32
	name      string
	instances []*dom.Instance
}

// Encode writes roots and their descendants to w. Nothing is written unless
// the whole selection encodes.
func (e *Encoder) Encode(w io.Writer, d *dom.WeakDom, roots []types.Ref) error {
	for _, root := range roots {
		if !d.Contains(root) {
			return fmt.Errorf("%w: root %s", ErrUnknownID, root)
		}
	}

	refs := collect(d, roots)
	table := &refTable{ids: make(map[types.Ref]int32, len(refs))}
	for i, ref := range refs {
		table.ids[ref] = int32(i)
	}
	classes := groupByClass(d, refs)

	var buf bytes.Buffer
	buf.Write(fileHeader{
		NumClasses:   int32(len(classes)),
		NumInstances: int32(len(refs)),
	}.encode())

	if len(e.opts.Metadata) > 0 {
		if err := e.emit(&buf, chunkMeta, e.metaChunk()); err != nil {
			return err
		}
	}
	for _, class := range classes {
		if err := e.emit(&buf, chunkInst, e.instChunk(class, table)); err != nil {
			return err
		}
	}
	for _, class := range classes {
		if err := e.propChunks(&buf, class, table); err != nil {
			return err
		}
	}
	if err := e.emit(&buf, chunkPrnt, e.prntChunk(d, refs, table)); err != nil {
		return err
	}
	if err := e.emit(&buf, chunkEnd, endPayload); err != nil {
		return err
	}

	if _, err := w.Write(buf.Bytes()); err != nil {
		return fmt.Errorf("failed to write model: %w", err)
	}
	e.logger.Debug().
		Int("classes", len(classes)).
		Int("instances", len(refs)).
		Int("bytes", buf.Len()).
		Msg("encoded model")
	return nil
}

func (e *Encoder) emit(buf *bytes.Buffer, name string, payload []byte) error {
	e.logger.Debug().Str("chunk", name).Int("size", len(payload)).Msg("writing chunk")
	return writeChunk(buf, name, payload, e.opts.Compression)
}

// collect walks each root in pre-order. Instances reachable from more than
// one root are exported once.
func collect(d *dom.WeakDom, roots []types.Ref) []types.Ref {
	seen := make(map[types.Ref]struct{})
	var out []types.Ref
	for _, root := range roots {
		stack := []types.Ref{root}
		for len(stack) > 0 {
			ref := stack[len(stack)-1]
			stack = stack[:len(stack)-1]
			if _, dup := seen[ref]; dup {
				continue
			}
			seen[ref] = struct{}{}
			out = append(out, ref)

			inst, _ := d.Get(ref)
			children := inst.Children()
			for i := len(children) - 1; i >= 0; i-- {
				stack = append(stack, children[i])
			}
		}
	}
	return out
}

// groupByClass groups instances by class. Classes are numbered in name order.
func groupByClass(d *dom.WeakDom, refs []types.Ref) []*exportClass {
	byName := make(map[string]*exportClass)
	for _, ref := range refs {
		inst, _ := d.Get(ref)
		class, ok := byName[inst.Class()]
		if !ok {
			class = &exportClass{name: inst.Class()}
			byName[inst.Class()] = class
		}
		class.instances = append(class.instances, inst)
	}

	classes := make([]*exportClass, 0, len(byName))
	for _, class := range byName {
		classes = append(classes, class)
	}
	sort.Slice(classes, func(i, j int) bool { return classes[i].name < classes[j].name })
	for i, class := range classes {
		class.id = uint32(i)
	}
	return classes
}

func (e *Encoder) metaChunk() []byte {
	keys := make([]string, 0, len(e.opts.Metadata))
	for k := range e.opts.Metadata {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var w byteWriter
	w.u32(uint32(len(keys)))
	for _, k := range keys {
		w.str([]byte(k))
		w.str([]byte(e.opts.Metadata[k]))
	}
	return w.Bytes()
}

func (e *Encoder) instChunk(class *exportClass, table *refTable) []byte {
	var w byteWriter
	w.u32(class.id)
	w.str([]byte(class.name))

	service := e.db.IsService(class.name)
	if service {
		w.u8(1)
	} else {
		w.u8(0)
	}
	w.u32(uint32(len(class.instances)))

	ids := make([]int32, len(class.instances))
	for i, inst := range class.instances {
		ids[i] = table.id(inst.Referent())
	}
	w.referents(ids)

	if service {
		for range class.instances {
			w.u8(1)
		}
	}
	return w.Bytes()
}

// canonicalProperties returns each instance's properties keyed by canonical
// name. A value stored under the canonical name wins over one stored under
// an alias; between aliases the lowest sorting name wins.
func (e *Encoder) canonicalProperties(inst *dom.Instance) map[string]types.Variant {
	props := inst.Properties()
	out := make(map[string]types.Variant, len(props))
	for _, name := range inst.PropertyNames() {
		canonical := e.db.CanonicalName(inst.Class(), name)
		if _, taken := out[canonical]; taken && canonical != name {
			continue
		}
		out[canonical] = props[name]
	}
	if _, ok := out[nameProperty]; ok {
		e.logger.Debug().
			Str("class", inst.Class()).
			Str("instance", inst.Name()).
			Msg("ignoring Name property, the instance name is written instead")
	}
	return out
}

func (e *Encoder) propChunks(buf *bytes.Buffer, class *exportClass, table *refTable) error {
	props := make([]map[string]types.Variant, len(class.instances))
	names := map[string]struct{}{nameProperty: {}}
	for i, inst := range class.instances {
		props[i] = e.canonicalProperties(inst)
		for name := range props[i] {
			names[name] = struct{}{}
		}
	}

	sorted := make([]string, 0, len(names))
	for name := range names {
		sorted = append(sorted, name)
	}
	sort.Strings(sorted)

	for _, name := range sorted {
		var values []types.Variant
		var err error
		if name == nameProperty {
			values = make([]types.Variant, len(class.instances))
			for i, inst := range class.instances {
				values[i] = types.String(inst.Name())
			}
		} else {
			values, err = e.column(class, name, props)
			if err != nil {
				return err
			}
		}

		codec, err := codecForType(values[0].Type())
		if err != nil {
			return &PropertyError{Class: class.name, Property: name, Type: values[0].Type().String(), Err: err}
		}

		var w byteWriter
		w.u32(class.id)
		w.str([]byte(name))
		w.u8(codec.wire)
		codec.encode(&w, values, table)
		if err := e.emit(buf, chunkProp, w.Bytes()); err != nil {
			return err
		}
	}
	return nil
}

// column resolves one value per instance: its own value, else the class
// default, else the zero value of the column type.
func (e *Encoder) column(class *exportClass, name string, props []map[string]types.Variant) ([]types.Variant, error) {
	fail := func(t types.Type, err error) error {
		return &PropertyError{Class: class.name, Property: name, Type: t.String(), Err: err}
	}
	for _, p := range props {
		if v, ok := p[name]; ok && v == nil {
			return nil, &PropertyError{Class: class.name, Property: name, Type: "nil", Err: fmt.Errorf("%w: nil value", ErrTypeMismatch)}
		}
	}

	kind := types.TypeInvalid
	if desc, ok := e.db.FindProperty(class.name, name); ok && desc.Type != types.TypeUnimplemented {
		kind = desc.Type
	} else {
		for _, p := range props {
			if v, ok := p[name]; ok {
				kind = v.Type()
				break
			}
		}
	}

	if _, err := codecForType(kind); err != nil {
		return nil, fail(kind, err)
	}

	values := make([]types.Variant, len(props))
	for i, p := range props {
		v, ok := p[name]
		if !ok {
			v, ok = e.db.FindDefault(class.name, name)
		}
		if !ok {
			v, ok = types.Zero(kind)
		}
		if !ok {
			return nil, fail(kind, ErrUnimplementedType)
		}
		if v == nil {
			return nil, fail(kind, fmt.Errorf("%w: nil value", ErrTypeMismatch))
		}
		if _, err := codecForType(v.Type()); err != nil {
			return nil, fail(v.Type(), err)
		}
		if !sameWire(v.Type(), kind) {
			return nil, fail(v.Type(), fmt.Errorf("%w: expected %s", ErrTypeMismatch, kind))
		}
		values[i] = v
	}
	return values, nil
}

func (e *Encoder) prntChunk(d *dom.WeakDom, refs []types.Ref, table *refTable) []byte {
	children := make([]int32, len(refs))
	parents := make([]int32, len(refs))
	for i, ref := range refs {
		inst, _ := d.Get(ref)
		children[i] = int32(i)
		parents[i] = refNone
		if id, ok := table.ids[inst.Parent()]; ok {
			parents[i] = id
		}
	}

	var w byteWriter
	w.u8(0)
	w.u32(uint32(len(refs)))
	w.referents(children)
	w.referents(parents)
	return w.Bytes()
}
