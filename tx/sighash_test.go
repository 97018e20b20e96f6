package tx

import (
	"bytes"
	"encoding/binary"
	"encoding/hex"
	"testing"

	"github.com/bsv-blockchain/go-sdk/chainhash"
	"github.com/bsv-blockchain/go-sdk/script"
	"github.com/bsv-blockchain/go-sdk/transaction"
	"github.com/bsv-blockchain/go-sdk/transaction/sighash"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fakeTxID(t *testing.T, b byte) *chainhash.Hash {
	t.Helper()
	h, err := chainhash.NewHash(bytes.Repeat([]byte{b}, 32))
	require.NoError(t, err)
	return h
}

// sighashFixture returns a transaction with two inputs and two outputs plus
// the locking scripts and amounts of the outputs being spent.
func sighashFixture(t *testing.T) (*transaction.Transaction, []*transaction.TransactionOutput) {
	t.Helper()
	kp := testKeyPair(t)
	other := testKeyPair(t)

	prev := []*transaction.TransactionOutput{
		p2pkhOutput(t, kp.Address, 70000),
		p2pkhOutput(t, kp.Address, 30000),
	}

	tx := transaction.NewTransaction()
	tx.AddInput(&transaction.TransactionInput{
		SourceTXID:       fakeTxID(t, 0x11),
		SourceTxOutIndex: 3,
		UnlockingScript:  &script.Script{},
		SequenceNumber:   0xfffffffe,
	})
	tx.AddInput(&transaction.TransactionInput{
		SourceTXID:       fakeTxID(t, 0x22),
		SourceTxOutIndex: 1,
		UnlockingScript:  &script.Script{0x00, 0x00},
		SequenceNumber:   DefaultSequence,
	})
	tx.AddOutput(p2pkhOutput(t, other.Address, 60000))
	tx.AddOutput(p2pkhOutput(t, kp.Address, 39000))
	tx.LockTime = 500
	return tx, prev
}

// ---------------------------------------------------------------------------
// Legacy
// ---------------------------------------------------------------------------

func TestSighash_SingleBug(t *testing.T) {
	tx, prev := sighashFixture(t)
	tx.Outputs = tx.Outputs[:1]

	got, err := Sighash(tx, 1, []byte(*prev[1].LockingScript), prev[1].Satoshis, SighashSingle, ScriptEnableSighashForkID)
	require.NoError(t, err)
	assert.Equal(t, "0000000000000000000000000000000000000000000000000000000000000001", hex.EncodeToString(got))

	pre, err := SighashPreimage(tx, 1, nil, 0, SighashSingle|SighashAnyoneCanPay, 0)
	require.NoError(t, err)
	assert.Equal(t, SingleBugHash[:], pre)
}

func TestSighash_LegacyAll(t *testing.T) {
	tx, prev := sighashFixture(t)
	sub := []byte(*prev[0].LockingScript)

	pre, err := SighashPreimage(tx, 0, sub, prev[0].Satoshis, SighashAll, ScriptEnableSighashForkID)
	require.NoError(t, err)

	expected := transaction.NewTransaction()
	expected.Version = tx.Version
	expected.LockTime = tx.LockTime
	expected.AddInput(&transaction.TransactionInput{
		SourceTXID:       tx.Inputs[0].SourceTXID,
		SourceTxOutIndex: tx.Inputs[0].SourceTxOutIndex,
		UnlockingScript:  script.NewFromBytes(sub),
		SequenceNumber:   tx.Inputs[0].SequenceNumber,
	})
	expected.AddInput(&transaction.TransactionInput{
		SourceTXID:       tx.Inputs[1].SourceTXID,
		SourceTxOutIndex: tx.Inputs[1].SourceTxOutIndex,
		UnlockingScript:  &script.Script{},
		SequenceNumber:   tx.Inputs[1].SequenceNumber,
	})
	for _, out := range tx.Outputs {
		expected.AddOutput(out)
	}
	want := binary.LittleEndian.AppendUint32(expected.Bytes(), SighashAll)
	assert.Equal(t, want, pre)

	digest, err := Sighash(tx, 0, sub, prev[0].Satoshis, SighashAll, 0)
	require.NoError(t, err)
	h := chainhash.DoubleHashH(want)
	assert.Equal(t, h[:], digest)
}

func TestSighash_LegacyNone(t *testing.T) {
	tx, prev := sighashFixture(t)
	pre, err := SighashPreimage(tx, 1, []byte(*prev[1].LockingScript), 0, SighashNone, 0)
	require.NoError(t, err)

	parsed, err := transaction.NewTransactionFromBytes(pre[:len(pre)-4])
	require.NoError(t, err)
	assert.Empty(t, parsed.Outputs)
	require.Len(t, parsed.Inputs, 2)
	assert.Equal(t, uint32(0), parsed.Inputs[0].SequenceNumber)
	assert.Equal(t, DefaultSequence, parsed.Inputs[1].SequenceNumber)
	assert.Equal(t, []byte{0x02, 0, 0, 0}, pre[len(pre)-4:])
}

func TestSighash_LegacySingle(t *testing.T) {
	tx, prev := sighashFixture(t)
	pre, err := SighashPreimage(tx, 1, []byte(*prev[1].LockingScript), 0, SighashSingle, 0)
	require.NoError(t, err)

	parsed, err := transaction.NewTransactionFromBytes(pre[:len(pre)-4])
	require.NoError(t, err)
	require.Len(t, parsed.Outputs, 2)
	assert.Equal(t, ^uint64(0), parsed.Outputs[0].Satoshis)
	assert.Empty(t, []byte(*parsed.Outputs[0].LockingScript))
	assert.Equal(t, tx.Outputs[1].Satoshis, parsed.Outputs[1].Satoshis)
	assert.Equal(t, uint32(0), parsed.Inputs[0].SequenceNumber)
}

func TestSighash_LegacyAnyoneCanPay(t *testing.T) {
	tx, prev := sighashFixture(t)
	sub := []byte(*prev[1].LockingScript)
	pre, err := SighashPreimage(tx, 1, sub, 0, SighashAll|SighashAnyoneCanPay, 0)
	require.NoError(t, err)

	parsed, err := transaction.NewTransactionFromBytes(pre[:len(pre)-4])
	require.NoError(t, err)
	require.Len(t, parsed.Inputs, 1)
	assert.Equal(t, tx.Inputs[1].SourceTXID.String(), parsed.Inputs[0].SourceTXID.String())
	assert.Equal(t, sub, []byte(*parsed.Inputs[0].UnlockingScript))
	assert.Len(t, parsed.Outputs, 2)
}

// ---------------------------------------------------------------------------
// Fork id
// ---------------------------------------------------------------------------

func TestSighash_ForkIDLayout(t *testing.T) {
	tx, prev := sighashFixture(t)
	sub := []byte(*prev[1].LockingScript)
	amount := prev[1].Satoshis

	pre, err := SighashPreimage(tx, 1, sub, amount, DefaultSighash, ScriptEnableSighashForkID)
	require.NoError(t, err)
	require.Len(t, pre, 4+32+32+36+1+len(sub)+8+4+32+4+4)

	var outpoints, sequences, outputs []byte
	for _, in := range tx.Inputs {
		outpoints = appendOutpoint(outpoints, in)
		sequences = binary.LittleEndian.AppendUint32(sequences, in.SequenceNumber)
	}
	for _, out := range tx.Outputs {
		outputs = appendOutput(outputs, out.Satoshis, []byte(*out.LockingScript))
	}
	hashPrevouts := chainhash.DoubleHashH(outpoints)
	hashSequence := chainhash.DoubleHashH(sequences)
	hashOutputs := chainhash.DoubleHashH(outputs)

	off := 0
	next := func(n int) []byte {
		b := pre[off : off+n]
		off += n
		return b
	}
	assert.Equal(t, tx.Version, binary.LittleEndian.Uint32(next(4)))
	assert.Equal(t, hashPrevouts[:], next(32))
	assert.Equal(t, hashSequence[:], next(32))
	op := next(36)
	assert.Equal(t, tx.Inputs[1].SourceTXID[:], op[:32])
	assert.Equal(t, uint32(1), binary.LittleEndian.Uint32(op[32:]))
	assert.Equal(t, byte(len(sub)), next(1)[0])
	assert.Equal(t, sub, next(len(sub)))
	assert.Equal(t, amount, binary.LittleEndian.Uint64(next(8)))
	assert.Equal(t, DefaultSequence, binary.LittleEndian.Uint32(next(4)))
	assert.Equal(t, hashOutputs[:], next(32))
	assert.Equal(t, uint32(500), binary.LittleEndian.Uint32(next(4)))
	assert.Equal(t, DefaultSighash, binary.LittleEndian.Uint32(next(4)))
}

func TestSighash_ForkIDZeroedHashes(t *testing.T) {
	tx, prev := sighashFixture(t)
	sub := []byte(*prev[0].LockingScript)
	zero := make([]byte, 32)

	pre, err := SighashPreimage(tx, 0, sub, 1, SighashNone|SighashForkID|SighashAnyoneCanPay, ScriptEnableSighashForkID)
	require.NoError(t, err)
	assert.Equal(t, zero, pre[4:36], "hashPrevouts")
	assert.Equal(t, zero, pre[36:68], "hashSequence")
	assert.Equal(t, zero, pre[len(pre)-40:len(pre)-8], "hashOutputs")

	pre, err = SighashPreimage(tx, 1, sub, 1, SighashSingle|SighashForkID, ScriptEnableSighashForkID)
	require.NoError(t, err)
	assert.NotEqual(t, zero, pre[4:36])
	assert.Equal(t, zero, pre[36:68])
	single := chainhash.DoubleHashH(appendOutput(nil, tx.Outputs[1].Satoshis, []byte(*tx.Outputs[1].LockingScript)))
	assert.Equal(t, single[:], pre[len(pre)-40:len(pre)-8])

	tx.Outputs = tx.Outputs[:1]
	pre, err = SighashPreimage(tx, 1, sub, 1, SighashSingle|SighashForkID, ScriptEnableSighashForkID)
	require.NoError(t, err)
	assert.Equal(t, zero, pre[len(pre)-40:len(pre)-8])
}

func TestSighash_ForkIDMatchesSDK(t *testing.T) {
	tx, prev := sighashFixture(t)
	for i, out := range prev {
		tx.Inputs[i].SetSourceTxOutput(out)
	}

	for i := range tx.Inputs {
		want, err := tx.CalcInputSignatureHash(uint32(i), sighash.AllForkID)
		require.NoError(t, err)
		got, err := Sighash(tx, i, []byte(*prev[i].LockingScript), prev[i].Satoshis, DefaultSighash, ScriptEnableSighashForkID)
		require.NoError(t, err)
		assert.Equal(t, want, got, "input %d", i)
	}
}

func TestSighash_Errors(t *testing.T) {
	tx, _ := sighashFixture(t)

	_, err := Sighash(tx, 2, nil, 0, DefaultSighash, ScriptEnableSighashForkID)
	assert.ErrorIs(t, err, ErrInputIndex)

	_, err = Sighash(tx, -1, nil, 0, DefaultSighash, ScriptEnableSighashForkID)
	assert.ErrorIs(t, err, ErrInputIndex)

	_, err = Sighash(nil, 0, nil, 0, DefaultSighash, ScriptEnableSighashForkID)
	assert.ErrorIs(t, err, ErrNilParam)
}
