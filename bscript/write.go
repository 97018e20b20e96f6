package bscript

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/bsv-blockchain/go-sdk/script"
)

// WriteOpcode appends a bare opcode to s.
func WriteOpcode(s *script.Script, op byte) {
	*s = append(*s, op)
}

// WriteBuffer appends the shortest push-data encoding of b to s. An empty
// buffer is written as OP_0.
//
// Payloads of 2^32 bytes or more cannot be encoded and cause a panic wrapping
// ErrCannotPush.
func WriteBuffer(s *script.Script, b []byte) {
	n := uint64(len(b))
	switch {
	case n == 0:
		*s = append(*s, OpFalse)
		return
	case n <= maxDirectPush:
		*s = append(*s, byte(n))
	case n <= math.MaxUint8:
		*s = append(*s, OpPushData1, byte(n))
	case n <= math.MaxUint16:
		*s = append(*s, OpPushData2)
		*s = binary.LittleEndian.AppendUint16(*s, uint16(n))
	case n <= math.MaxUint32:
		*s = append(*s, OpPushData4)
		*s = binary.LittleEndian.AppendUint32(*s, uint32(n))
	default:
		panic(fmt.Errorf("%w: %d bytes", ErrCannotPush, n))
	}
	*s = append(*s, b...)
}

// SetChunk replaces the payload of the direct push at chunk index with
// newBytes. The length byte at that position is taken as the old payload size
// and the old payload is spliced out; every other byte of the script is kept.
// Payloads longer than 75 bytes are written with OP_PUSHDATA1.
//
// Chunk positions after index shift when the payload size changes, so callers
// holding parsed chunks must re-parse.
func SetChunk(s *script.Script, index int, newBytes []byte) error {
	if len(newBytes) > math.MaxUint8 {
		return fmt.Errorf("%w: got %d", ErrChunkTooLarge, len(newBytes))
	}
	if index < 0 {
		return fmt.Errorf("%w: %d", ErrChunkIndex, index)
	}

	b := []byte(*s)
	pos := 0
	for i := 0; i < index; i++ {
		if pos >= len(b) {
			return fmt.Errorf("%w: %d (script has %d chunks)", ErrChunkIndex, index, i)
		}
		_, next, err := readChunk(b, pos)
		if err != nil {
			return fmt.Errorf("%w: walking to chunk %d", err, index)
		}
		pos = next
	}
	if pos >= len(b) {
		return fmt.Errorf("%w: %d", ErrChunkIndex, index)
	}

	oldSize := int(b[pos])
	if oldSize > maxDirectPush {
		return fmt.Errorf("%w: opcode 0x%02x at chunk %d", ErrNotDirectPush, b[pos], index)
	}
	end := pos + 1 + oldSize
	if end > len(b) {
		return fmt.Errorf("%w: chunk %d", ErrTruncatedPush, index)
	}

	out := make([]byte, 0, len(b)-oldSize+len(newBytes)+1)
	out = append(out, b[:pos]...)
	if len(newBytes) > maxDirectPush {
		out = append(out, OpPushData1)
	}
	out = append(out, byte(len(newBytes)))
	out = append(out, newBytes...)
	out = append(out, b[end:]...)
	*s = out
	return nil
}

// AppendVarInt appends the Bitcoin compact-size encoding of n.
func AppendVarInt(b []byte, n uint64) []byte {
	switch {
	case n < 0xfd:
		return append(b, byte(n))
	case n <= math.MaxUint16:
		b = append(b, 0xfd)
		return binary.LittleEndian.AppendUint16(b, uint16(n))
	case n <= math.MaxUint32:
		b = append(b, 0xfe)
		return binary.LittleEndian.AppendUint32(b, uint32(n))
	default:
		b = append(b, 0xff)
		return binary.LittleEndian.AppendUint64(b, n)
	}
}
