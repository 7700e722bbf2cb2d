package binary

import (
	"bytes"
	"errors"
	"math"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ssargent/rbxdom/pkg/dom"
	"github.com/ssargent/rbxdom/pkg/reflection"
	"github.com/ssargent/rbxdom/pkg/types"
)

func TestRoundTrip_Values(t *testing.T) {
	rotated := types.CFrame{
		Position: types.Vector3{X: 1, Y: -2, Z: 3.5},
		Orientation: types.Matrix3{
			X: types.Vector3{X: 0.6, Y: -0.8},
			Y: types.Vector3{X: 0.8, Y: 0.6},
			Z: types.Vector3{Z: 1},
		},
	}
	flipped := types.CFrame{
		Position: types.Vector3{X: 10},
		Orientation: types.Matrix3{
			X: types.Vector3{X: -1},
			Y: types.Vector3{Y: 1},
			Z: types.Vector3{Z: -1},
		},
	}

	tests := []struct {
		name  string
		value types.Variant
	}{
		{"string", types.String("héllo")},
		{"empty string", types.String("")},
		{"binary string", types.BinaryString{0xFF, 0x00, 0xFE}},
		{"bool", types.Bool(true)},
		{"int32", types.Int32(-123456)},
		{"int32 min", types.Int32(math.MinInt32)},
		{"int64", types.Int64(math.MaxInt64)},
		{"float32", types.Float32(-0.125)},
		{"float64", types.Float64(math.Pi)},
		{"enum", types.Enum(256)},
		{"brick color", types.BrickColor(1004)},
		{"color3", types.Color3{R: 1, G: 0.5, B: 0.25}},
		{"color3uint8", types.Color3uint8{R: 255, G: 128, B: 1}},
		{"vector2", types.Vector2{X: -1.5, Y: 2}},
		{"vector3", types.Vector3{X: 1, Y: 2, Z: -3}},
		{"vector3int16", types.Vector3int16{X: -32768, Y: 0, Z: 32767}},
		{"cframe identity", types.NewCFrame(types.Vector3{X: 5, Y: 6, Z: 7})},
		{"cframe axis aligned", flipped},
		{"cframe rotated", rotated},
		{"number range", types.NumberRange{Min: 0.5, Max: 10}},
		{"none ref", types.NoneRef()},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tree := dom.New(dom.NewInstanceBuilder("Folder").WithChildren(
				dom.NewInstanceBuilder("Folder").WithName("With").WithProperty("Custom", tt.value),
				dom.NewInstanceBuilder("Folder").WithName("Without"),
			))

			decoded := roundTrip(t, tree, tree.RootRef())
			got, ok := findByName(t, decoded, "With").Property("Custom")
			require.True(t, ok)
			assert.Equal(t, tt.value.Type(), got.Type())
			assert.Equal(t, tt.value, got)

			zero, _ := types.Zero(tt.value.Type())
			got, ok = findByName(t, decoded, "Without").Property("Custom")
			require.True(t, ok)
			assert.Equal(t, zero, got)
		})
	}
}

func TestRoundTrip_References(t *testing.T) {
	outside := dom.NewInstanceBuilder("Part").WithName("Outside")
	target := dom.NewInstanceBuilder("Part").WithName("Target")
	model := dom.NewInstanceBuilder("Model").WithName("Export").WithChildren(
		target,
		dom.NewInstanceBuilder("ObjectValue").WithName("Internal").WithProperty("Value", target.Referent()),
		dom.NewInstanceBuilder("ObjectValue").WithName("External").WithProperty("Value", outside.Referent()),
		dom.NewInstanceBuilder("ObjectValue").WithName("Empty"),
		dom.NewInstanceBuilder("ObjectValue").WithName("Dangling").WithProperty("Value", types.NewRef()),
	)
	model.WithProperty("PrimaryPart", target.Referent())
	tree := dom.New(dom.NewInstanceBuilder("DataModel").WithChildren(model, outside))

	decoded := roundTrip(t, tree, model.Referent())
	decodedTarget := findByName(t, decoded, "Target")

	v, _ := findByName(t, decoded, "Export").Property("PrimaryPart")
	assert.Equal(t, decodedTarget.Referent(), v)

	v, _ = findByName(t, decoded, "Internal").Property("Value")
	assert.Equal(t, decodedTarget.Referent(), v)

	v, _ = findByName(t, decoded, "External").Property("Value")
	assert.True(t, v.(types.Ref).IsUnresolved())

	v, _ = findByName(t, decoded, "Dangling").Property("Value")
	assert.True(t, v.(types.Ref).IsUnresolved())

	v, _ = findByName(t, decoded, "Empty").Property("Value")
	assert.True(t, v.(types.Ref).IsNone(), "declared default is none")

	// Unresolved markers survive another round trip.
	again := roundTrip(t, decoded, decoded.Root().Children()...)
	v, _ = findByName(t, again, "External").Property("Value")
	assert.True(t, v.(types.Ref).IsUnresolved())
}

func TestRoundTrip_PreservesStructure(t *testing.T) {
	tree := dom.New(dom.NewInstanceBuilder("Folder").WithName("Root").WithChildren(
		dom.NewInstanceBuilder("Folder").WithName("A").WithChildren(
			dom.NewInstanceBuilder("Part").WithName("A1"),
			dom.NewInstanceBuilder("Folder").WithName("A2"),
		),
		dom.NewInstanceBuilder("Part").WithName("B"),
		dom.NewInstanceBuilder("Folder").WithName("C").WithChild(
			dom.NewInstanceBuilder("Part").WithName("C1"),
		),
	))

	decoded := roundTrip(t, tree, tree.RootRef())
	viewer := dom.NewDomViewer()
	want := dom.NewDomViewer().View(tree)
	got := viewer.ViewChildren(decoded)
	require.Len(t, got, 1)

	var names func(v dom.ViewedInstance) []string
	names = func(v dom.ViewedInstance) []string {
		out := []string{v.Name}
		for _, c := range v.Children {
			out = append(out, names(c)...)
		}
		return out
	}
	assert.Equal(t, names(want), names(got[0]))
}

func TestRoundTrip_PartialExport(t *testing.T) {
	sub := dom.NewInstanceBuilder("Folder").WithName("Sub").WithChild(dom.NewInstanceBuilder("Part"))
	tree := dom.New(dom.NewInstanceBuilder("Folder").WithName("Top").WithChild(sub))

	decoded := roundTrip(t, tree, sub.Referent())
	top := topLevel(t, decoded)
	require.Len(t, top, 1)
	assert.Equal(t, "Sub", top[0].Name())
	assert.Equal(t, 1, top[0].NumChildren())
}

func TestDecodeUnder(t *testing.T) {
	tree := dom.New(dom.NewInstanceBuilder("Folder").WithName("Imported"))
	data := encodeBytes(t, tree, tree.RootRef())

	root := dom.NewInstanceBuilder("Model").WithName("Container")
	decoded, err := NewDecoder(DecodeOptions{}).DecodeUnder(bytes.NewReader(data), root)
	require.NoError(t, err)
	assert.Equal(t, root.Referent(), decoded.RootRef())
	assert.Equal(t, "Container", decoded.Root().Name())
	assert.Equal(t, "Imported", topLevel(t, decoded)[0].Name())
}

func TestDecode_StringTyping(t *testing.T) {
	db := reflection.NewDatabase("test",
		&reflection.ClassDescriptor{
			Name: "Holder",
			Properties: map[string]*reflection.PropertyDescriptor{
				"Text": {Name: "Text", Type: types.TypeString},
				"Blob": {Name: "Blob", Type: types.TypeBinaryString, Aliases: []string{"OldBlob"}},
			},
		},
	)

	var w byteWriter
	w.str([]byte("ok"))
	textColumn := append([]byte(nil), w.Bytes()...)

	file := rawFile{
		header: fileHeader{NumClasses: 1, NumInstances: 1},
		chunks: []rawChunk{
			{chunkInst, instPayload(0, "Holder", 0)},
			{chunkProp, propPayload(0, "Text", wireString, textColumn)},
			{chunkProp, propPayload(0, "OldBlob", wireString, textColumn)},
			{chunkProp, propPayload(0, "Guess", wireString, textColumn)},
			{chunkProp, propPayload(0, "GuessBinary", wireString, []byte{2, 0, 0, 0, 0xC3, 0x28})},
			{chunkPrnt, prntPayload([]int32{0}, []int32{-1})},
			endChunk(),
		},
	}

	dec := NewDecoder(DecodeOptions{Database: db})
	decoded, err := dec.Decode(bytes.NewReader(file.bytes(t)))
	require.NoError(t, err)

	inst := topLevel(t, decoded)[0]
	assert.Equal(t, map[string]types.Variant{
		"Text":        types.String("ok"),
		"Blob":        types.BinaryString("ok"),
		"Guess":       types.String("ok"),
		"GuessBinary": types.BinaryString{0xC3, 0x28},
	}, inst.Properties())
	assert.Equal(t, []UnknownProperty{
		{Class: "Holder", Property: "Guess"},
		{Class: "Holder", Property: "GuessBinary"},
	}, dec.UnknownProperties())
}

func TestDecode_SkipsUnknownChunks(t *testing.T) {
	tree := dom.New(dom.NewInstanceBuilder("Folder").WithName("Kept"))
	data := encodeBytes(t, tree, tree.RootRef())

	var spliced bytes.Buffer
	spliced.Write(data[:headerSize])
	require.NoError(t, writeChunk(&spliced, "SSTR", []byte("whatever is in here"), CompressionLZ4))
	spliced.Write(data[headerSize:])

	decoded, err := Decode(bytes.NewReader(spliced.Bytes()))
	require.NoError(t, err)
	assert.Equal(t, "Kept", topLevel(t, decoded)[0].Name())

	model, err := Inspect(bytes.NewReader(spliced.Bytes()), DefaultLimits())
	require.NoError(t, err)
	assert.Equal(t, "SSTR", model.Chunks[0].Name)
	assert.True(t, model.Chunks[0].Skipped)
}

func TestDecode_UnknownWireType(t *testing.T) {
	file := rawFile{
		header: fileHeader{NumClasses: 1, NumInstances: 1},
		chunks: []rawChunk{
			{chunkInst, instPayload(0, "Folder", 0)},
			{chunkProp, propPayload(0, "Mystery", 0x99, []byte{1, 2, 3, 4})},
			{chunkPrnt, prntPayload([]int32{0}, []int32{-1})},
			endChunk(),
		},
	}
	_, err := Decode(bytes.NewReader(file.bytes(t)))
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrMalformedValue), "got %v", err)

	var perr *PropertyError
	require.True(t, errors.As(err, &perr))
	assert.Equal(t, "Mystery", perr.Property)
}

func TestDecode_Malformed(t *testing.T) {
	inst := rawChunk{chunkInst, instPayload(0, "Folder", 0, 1)}
	tests := []struct {
		name   string
		chunks []rawChunk
	}{
		{"missing end", []rawChunk{inst}},
		{"prop before inst", []rawChunk{
			{chunkProp, propPayload(0, "Name", wireString, nil)},
			endChunk(),
		}},
		{"short prop column", []rawChunk{inst,
			{chunkProp, propPayload(0, "Flag", wireBool, []byte{1})},
			endChunk(),
		}},
		{"class id out of range", []rawChunk{
			{chunkInst, instPayload(5, "Folder", 0)},
			endChunk(),
		}},
		{"duplicate class id", []rawChunk{inst, inst, endChunk()}},
		{"duplicate referent", []rawChunk{
			{chunkInst, instPayload(0, "Folder", 0, 0)},
			endChunk(),
		}},
		{"parent cycle", []rawChunk{inst,
			{chunkPrnt, prntPayload([]int32{0, 1}, []int32{1, 0})},
			endChunk(),
		}},
		{"self parent", []rawChunk{inst,
			{chunkPrnt, prntPayload([]int32{0, 1}, []int32{0, -1})},
			endChunk(),
		}},
		{"unknown parent", []rawChunk{inst,
			{chunkPrnt, prntPayload([]int32{0}, []int32{7})},
			endChunk(),
		}},
		{"unknown child", []rawChunk{inst,
			{chunkPrnt, prntPayload([]int32{9}, []int32{-1})},
			endChunk(),
		}},
		{"linked twice", []rawChunk{inst,
			{chunkPrnt, prntPayload([]int32{0, 0}, []int32{-1, -1})},
			endChunk(),
		}},
		{"huge count", []rawChunk{
			{chunkInst, func() []byte {
				var w byteWriter
				w.u32(0)
				w.str([]byte("Folder"))
				w.u8(0)
				w.u32(math.MaxUint32)
				return w.Bytes()
			}()},
			endChunk(),
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			file := rawFile{header: fileHeader{NumClasses: 1, NumInstances: 2}, chunks: tt.chunks}
			_, err := Decode(bytes.NewReader(file.bytes(t)))
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrMalformedFile), "got %v", err)
		})
	}
}

func TestDecode_Truncated(t *testing.T) {
	tree := dom.New(dom.NewInstanceBuilder("Model").WithChildren(
		dom.NewInstanceBuilder("Part").WithProperty("CFrame", types.NewCFrame(types.Vector3{X: 1})),
		dom.NewInstanceBuilder("StringValue").WithProperty("Value", types.String("text")),
	))
	data := encodeBytes(t, tree, tree.RootRef())

	for n := 0; n < len(data); n++ {
		_, err := Decode(bytes.NewReader(data[:n]))
		require.Error(t, err, "prefix of %d bytes", n)
		assert.True(t, errors.Is(err, ErrMalformedFile) || errors.Is(err, ErrUnsupportedFormat), "prefix of %d bytes: %v", n, err)
	}
	_, err := Decode(bytes.NewReader(data))
	assert.NoError(t, err)
}

func TestDecode_TrailingBytesAfterEnd(t *testing.T) {
	tree := dom.New(dom.NewInstanceBuilder("Folder"))
	data := append(encodeBytes(t, tree, tree.RootRef()), "garbage"...)
	_, err := Decode(bytes.NewReader(data))
	assert.NoError(t, err)
}

func TestDecode_MissingPrntAttachesUnderRoot(t *testing.T) {
	file := rawFile{
		header: fileHeader{NumClasses: 1, NumInstances: 2},
		chunks: []rawChunk{
			{chunkInst, instPayload(0, "Folder", 3, 1)},
			endChunk(),
		},
	}
	decoded, err := Decode(bytes.NewReader(file.bytes(t)))
	require.NoError(t, err)
	assert.Len(t, topLevel(t, decoded), 2)
}

func TestDecode_Logging(t *testing.T) {
	var logs bytes.Buffer
	logger := zerolog.New(&logs).Level(zerolog.DebugLevel)

	tree := dom.New(dom.NewInstanceBuilder("Folder").WithProperty("Odd", types.Bool(true)))
	data := encodeBytes(t, tree, tree.RootRef())

	_, err := NewDecoder(DecodeOptions{Logger: &logger}).Decode(bytes.NewReader(data))
	require.NoError(t, err)
	assert.True(t, strings.Contains(logs.String(), `"property":"Odd"`), logs.String())
	assert.True(t, strings.Contains(logs.String(), "decoded model"))
}
