package binary

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ssargent/rbxdom/pkg/dom"
	"github.com/ssargent/rbxdom/pkg/types"
)

func encodeBytes(t *testing.T, tree *dom.WeakDom, roots ...types.Ref) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, Encode(&buf, tree, roots))
	return buf.Bytes()
}

func roundTrip(t *testing.T, tree *dom.WeakDom, roots ...types.Ref) *dom.WeakDom {
	t.Helper()
	decoded, err := Decode(bytes.NewReader(encodeBytes(t, tree, roots...)))
	require.NoError(t, err)
	return decoded
}

// topLevel returns the instances attached directly under the decoded root.
func topLevel(t *testing.T, d *dom.WeakDom) []*dom.Instance {
	t.Helper()
	var out []*dom.Instance
	for _, ref := range d.Root().Children() {
		inst, ok := d.Get(ref)
		require.True(t, ok)
		out = append(out, inst)
	}
	return out
}

func findByName(t *testing.T, d *dom.WeakDom, name string) *dom.Instance {
	t.Helper()
	refs, err := d.Descendants(d.RootRef())
	require.NoError(t, err)
	for _, ref := range refs {
		inst, _ := d.Get(ref)
		if inst.Name() == name {
			return inst
		}
	}
	t.Fatalf("no instance named %q", name)
	return nil
}

// rawFile assembles a file from hand written chunk payloads.
type rawFile struct {
	header fileHeader
	chunks []rawChunk
}

type rawChunk struct {
	name    string
	payload []byte
}

func (f rawFile) bytes(t *testing.T) []byte {
	t.Helper()
	var buf bytes.Buffer
	buf.Write(f.header.encode())
	for _, c := range f.chunks {
		require.NoError(t, writeChunk(&buf, c.name, c.payload, CompressionNone))
	}
	return buf.Bytes()
}

func instPayload(classID uint32, class string, ids ...int32) []byte {
	var w byteWriter
	w.u32(classID)
	w.str([]byte(class))
	w.u8(0)
	w.u32(uint32(len(ids)))
	w.referents(ids)
	return w.Bytes()
}

func prntPayload(children, parents []int32) []byte {
	var w byteWriter
	w.u8(0)
	w.u32(uint32(len(children)))
	w.referents(children)
	w.referents(parents)
	return w.Bytes()
}

func propPayload(classID uint32, name string, wire byte, column []byte) []byte {
	var w byteWriter
	w.u32(classID)
	w.str([]byte(name))
	w.u8(wire)
	w.Write(column)
	return w.Bytes()
}

func endChunk() rawChunk {
	return rawChunk{chunkEnd, endPayload}
}
