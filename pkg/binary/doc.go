// Package binary reads and writes the Roblox binary model format (.rbxm and
// .rbxl) to and from a dom.WeakDom.
//
// # File Layout
//
// A file is a 32 byte header followed by chunks:
//
//	[<roblox!][89 FF 0D 0A 1A 0A][version u16][classes i32][instances i32][reserved 8]
//	META? INST* PROP* PRNT END
//
// Every chunk carries a 16 byte header:
//
//	[name 4][compressed length u32][uncompressed length u32][reserved 4]
//
// A compressed length of zero means the payload is stored raw. Otherwise the
// payload is an LZ4 block, or a zstd frame when it starts with the zstd magic.
// Chunks with unknown names are skipped.
//
// INST lists the instances of one class. PROP holds one property column for
// every instance of a class. PRNT links each instance to its parent.
//
// # Referents
//
// Instances are numbered in collection order. A reference to an instance
// outside the exported selection is written as -2 and decodes as
// types.UnresolvedRef, which is distinct from types.NoneRef (-1).
//
// # Usage
//
//	var buf bytes.Buffer
//	if err := binary.Encode(&buf, tree, []types.Ref{tree.RootRef()}); err != nil {
//		return err
//	}
//	decoded, err := binary.Decode(&buf)
//
// Encoders and Decoders are not safe for concurrent use.
package binary
