package tx

import (
	"encoding/binary"
	"fmt"

	"github.com/bitfsorg/libsfp-go/bscript"
	"github.com/bsv-blockchain/go-sdk/chainhash"
	"github.com/bsv-blockchain/go-sdk/transaction"
)

// Sighash flag bits.
const (
	SighashAll          uint32 = 0x01
	SighashNone         uint32 = 0x02
	SighashSingle       uint32 = 0x03
	SighashForkID       uint32 = 0x40
	SighashAnyoneCanPay uint32 = 0x80

	sighashBaseMask uint32 = 0x1f

	// DefaultSighash is ALL with the fork id bit.
	DefaultSighash = SighashAll | SighashForkID
)

// ScriptEnableSighashForkID is the verification flag that turns on the fork
// id digest algorithm.
const ScriptEnableSighashForkID uint32 = 1 << 16

// SingleBugHash is returned in place of a digest when a SIGHASH_SINGLE
// signature is requested for an input with no output at the same index under
// the legacy algorithm.
var SingleBugHash = [chainhash.HashSize]byte{31: 0x01}

// SighashPreimage returns the bytes that are double-hashed to produce the
// signature digest for input nIn. Under the legacy algorithm an out-of-range
// SIGHASH_SINGLE input yields SingleBugHash itself.
func SighashPreimage(tx *transaction.Transaction, nIn int, subscript []byte, amount uint64, hashType, flags uint32) ([]byte, error) {
	preimage, _, err := sighashPreimage(tx, nIn, subscript, amount, hashType, flags)
	return preimage, err
}

// Sighash returns the signature digest for input nIn. The SIGHASH_SINGLE bug
// sentinel is passed through unhashed.
func Sighash(tx *transaction.Transaction, nIn int, subscript []byte, amount uint64, hashType, flags uint32) ([]byte, error) {
	preimage, singleBug, err := sighashPreimage(tx, nIn, subscript, amount, hashType, flags)
	if err != nil {
		return nil, err
	}
	if singleBug {
		return preimage, nil
	}
	h := chainhash.DoubleHashH(preimage)
	return h[:], nil
}

func sighashPreimage(tx *transaction.Transaction, nIn int, subscript []byte, amount uint64, hashType, flags uint32) ([]byte, bool, error) {
	if tx == nil {
		return nil, false, fmt.Errorf("%w: transaction", ErrNilParam)
	}
	if nIn < 0 || nIn >= len(tx.Inputs) {
		return nil, false, fmt.Errorf("%w: %d of %d", ErrInputIndex, nIn, len(tx.Inputs))
	}
	if hashType&SighashForkID != 0 && flags&ScriptEnableSighashForkID != 0 {
		return forkIDPreimage(tx, nIn, subscript, amount, hashType), false, nil
	}
	return legacyPreimage(tx, nIn, subscript, hashType)
}

// ---------------------------------------------------------------------------
// Fork id digest
// ---------------------------------------------------------------------------

func forkIDPreimage(tx *transaction.Transaction, nIn int, subscript []byte, amount uint64, hashType uint32) []byte {
	base := hashType & sighashBaseMask
	anyoneCanPay := hashType&SighashAnyoneCanPay != 0

	var hashPrevouts, hashSequence, hashOutputs [chainhash.HashSize]byte

	if !anyoneCanPay {
		var buf []byte
		for _, in := range tx.Inputs {
			buf = appendOutpoint(buf, in)
		}
		hashPrevouts = chainhash.DoubleHashH(buf)
	}

	if !anyoneCanPay && base != SighashSingle && base != SighashNone {
		var buf []byte
		for _, in := range tx.Inputs {
			buf = binary.LittleEndian.AppendUint32(buf, in.SequenceNumber)
		}
		hashSequence = chainhash.DoubleHashH(buf)
	}

	switch {
	case base != SighashSingle && base != SighashNone:
		var buf []byte
		for _, out := range tx.Outputs {
			buf = appendOutput(buf, out.Satoshis, lockingBytes(out))
		}
		hashOutputs = chainhash.DoubleHashH(buf)
	case base == SighashSingle && nIn < len(tx.Outputs):
		out := tx.Outputs[nIn]
		hashOutputs = chainhash.DoubleHashH(appendOutput(nil, out.Satoshis, lockingBytes(out)))
	}

	in := tx.Inputs[nIn]
	buf := make([]byte, 0, 156+len(subscript))
	buf = binary.LittleEndian.AppendUint32(buf, tx.Version)
	buf = append(buf, hashPrevouts[:]...)
	buf = append(buf, hashSequence[:]...)
	buf = appendOutpoint(buf, in)
	buf = bscript.AppendVarInt(buf, uint64(len(subscript)))
	buf = append(buf, subscript...)
	buf = binary.LittleEndian.AppendUint64(buf, amount)
	buf = binary.LittleEndian.AppendUint32(buf, in.SequenceNumber)
	buf = append(buf, hashOutputs[:]...)
	buf = binary.LittleEndian.AppendUint32(buf, tx.LockTime)
	return binary.LittleEndian.AppendUint32(buf, hashType)
}

// ---------------------------------------------------------------------------
// Legacy digest
// ---------------------------------------------------------------------------

type legacyInput struct {
	in       *transaction.TransactionInput
	unlock   []byte
	sequence uint32
}

type legacyOutput struct {
	satoshis uint64
	script   []byte
}

func legacyPreimage(tx *transaction.Transaction, nIn int, subscript []byte, hashType uint32) ([]byte, bool, error) {
	base := hashType & sighashBaseMask

	ins := make([]legacyInput, len(tx.Inputs))
	for i, in := range tx.Inputs {
		ins[i] = legacyInput{in: in, sequence: in.SequenceNumber}
	}
	ins[nIn].unlock = subscript

	outs := make([]legacyOutput, len(tx.Outputs))
	for i, out := range tx.Outputs {
		outs[i] = legacyOutput{satoshis: out.Satoshis, script: lockingBytes(out)}
	}

	switch base {
	case SighashNone:
		outs = nil
		zeroOtherSequences(ins, nIn)
	case SighashSingle:
		if nIn >= len(outs) {
			log.Debugf("SIGHASH_SINGLE input %d has no matching output (%d outputs)", nIn, len(outs))
			return SingleBugHash[:], true, nil
		}
		outs = outs[:nIn+1]
		for i := 0; i < nIn; i++ {
			outs[i] = legacyOutput{satoshis: ^uint64(0)}
		}
		zeroOtherSequences(ins, nIn)
	}

	if hashType&SighashAnyoneCanPay != 0 {
		ins = ins[nIn : nIn+1]
	}

	buf := binary.LittleEndian.AppendUint32(nil, tx.Version)
	buf = bscript.AppendVarInt(buf, uint64(len(ins)))
	for _, li := range ins {
		buf = appendOutpoint(buf, li.in)
		buf = bscript.AppendVarInt(buf, uint64(len(li.unlock)))
		buf = append(buf, li.unlock...)
		buf = binary.LittleEndian.AppendUint32(buf, li.sequence)
	}
	buf = bscript.AppendVarInt(buf, uint64(len(outs)))
	for _, lo := range outs {
		buf = appendOutput(buf, lo.satoshis, lo.script)
	}
	buf = binary.LittleEndian.AppendUint32(buf, tx.LockTime)
	return binary.LittleEndian.AppendUint32(buf, hashType), false, nil
}

func zeroOtherSequences(ins []legacyInput, nIn int) {
	for i := range ins {
		if i != nIn {
			ins[i].sequence = 0
		}
	}
}

// ---------------------------------------------------------------------------
// Serialization helpers
// ---------------------------------------------------------------------------

func appendOutpoint(b []byte, in *transaction.TransactionInput) []byte {
	if in.SourceTXID != nil {
		b = append(b, in.SourceTXID[:]...)
	} else {
		b = append(b, make([]byte, chainhash.HashSize)...)
	}
	return binary.LittleEndian.AppendUint32(b, in.SourceTxOutIndex)
}

func appendOutput(b []byte, satoshis uint64, lockingScript []byte) []byte {
	b = binary.LittleEndian.AppendUint64(b, satoshis)
	b = bscript.AppendVarInt(b, uint64(len(lockingScript)))
	return append(b, lockingScript...)
}

func lockingBytes(out *transaction.TransactionOutput) []byte {
	if out.LockingScript == nil {
		return nil
	}
	return []byte(*out.LockingScript)
}
