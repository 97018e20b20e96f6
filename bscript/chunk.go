// Package bscript reads and writes the opcode/push-data chunk stream of a
// Bitcoin script.
//
// Only the opcodes needed to build and inspect pay-to-pubkey-hash and SFP
// token scripts are named here. Any other opcode byte survives a
// Parse/Serialize round trip as an opaque chunk; nothing in this package
// interprets scripts.
package bscript

import (
	"encoding/binary"
	"fmt"

	"github.com/bsv-blockchain/go-sdk/script"
)

// Opcodes understood by this package.
const (
	OpFalse       = script.OpFALSE
	OpPushData1   = script.OpPUSHDATA1
	OpPushData2   = script.OpPUSHDATA2
	OpPushData4   = script.OpPUSHDATA4
	OpNop         = script.OpNOP
	OpReturn      = script.OpRETURN
	OpDup         = script.OpDUP
	OpHash160     = script.OpHASH160
	OpEqualVerify = script.OpEQUALVERIFY
	OpCheckSig    = script.OpCHECKSIG
)

// maxDirectPush is the largest payload a single length-byte opcode can carry.
const maxDirectPush = 0x4b

// Chunk is one element of a script: either a bare opcode or a push of Data.
// For pushes Op records the push opcode that was used, so non-minimal
// encodings survive a round trip.
type Chunk struct {
	Op   byte
	Data []byte
}

// IsPush reports whether the chunk pushes data (OP_0 included).
func (c Chunk) IsPush() bool {
	return c.Op <= OpPushData4
}

// Bytes returns the wire encoding of the chunk.
func (c Chunk) Bytes() []byte {
	return appendChunk(nil, c)
}

// Parse splits a script into chunks. A push whose declared length runs past
// the end of b yields the chunks parsed so far together with ErrTruncatedPush.
func Parse(b []byte) ([]Chunk, error) {
	var chunks []Chunk
	for pos := 0; pos < len(b); {
		c, next, err := readChunk(b, pos)
		if err != nil {
			return chunks, fmt.Errorf("%w: chunk %d at offset %d", err, len(chunks), pos)
		}
		chunks = append(chunks, c)
		pos = next
	}
	return chunks, nil
}

// Serialize encodes chunks back into script bytes.
func Serialize(chunks []Chunk) []byte {
	var out []byte
	for _, c := range chunks {
		out = appendChunk(out, c)
	}
	return out
}

// readChunk decodes the chunk starting at pos and returns it with the offset
// of the next chunk.
func readChunk(b []byte, pos int) (Chunk, int, error) {
	op := b[pos]
	pos++
	if op > OpPushData4 {
		return Chunk{Op: op}, pos, nil
	}

	var n uint64
	switch op {
	case OpPushData1:
		if len(b)-pos < 1 {
			return Chunk{}, 0, ErrTruncatedPush
		}
		n = uint64(b[pos])
		pos++
	case OpPushData2:
		if len(b)-pos < 2 {
			return Chunk{}, 0, ErrTruncatedPush
		}
		n = uint64(binary.LittleEndian.Uint16(b[pos:]))
		pos += 2
	case OpPushData4:
		if len(b)-pos < 4 {
			return Chunk{}, 0, ErrTruncatedPush
		}
		n = uint64(binary.LittleEndian.Uint32(b[pos:]))
		pos += 4
	default:
		n = uint64(op)
	}

	if n > uint64(len(b)-pos) {
		return Chunk{}, 0, ErrTruncatedPush
	}
	data := make([]byte, n)
	copy(data, b[pos:pos+int(n)])
	return Chunk{Op: op, Data: data}, pos + int(n), nil
}

func appendChunk(out []byte, c Chunk) []byte {
	out = append(out, c.Op)
	switch {
	case c.Op == OpPushData1:
		out = append(out, byte(len(c.Data)))
	case c.Op == OpPushData2:
		out = binary.LittleEndian.AppendUint16(out, uint16(len(c.Data)))
	case c.Op == OpPushData4:
		out = binary.LittleEndian.AppendUint32(out, uint32(len(c.Data)))
	case c.Op > OpPushData4:
		return out
	}
	return append(out, c.Data...)
}
