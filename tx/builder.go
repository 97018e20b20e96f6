package tx

import (
	"fmt"

	"github.com/bitfsorg/libsfp-go/bscript"
	"github.com/bsv-blockchain/go-sdk/chainhash"
	"github.com/bsv-blockchain/go-sdk/script"
	"github.com/bsv-blockchain/go-sdk/transaction"

	ec "github.com/bsv-blockchain/go-sdk/primitives/ec"
)

// Options configures a Builder.
type Options struct {
	Dust             uint64 // smallest spendable output amount
	FeePerKb         uint64 // satoshis per 1000 bytes
	DustChangeToFees bool   // fold sub-dust change into the fee instead of failing
	Mainnet          bool   // address encoding for slot registration
	Version          uint32
	LockTime         uint32
}

// DefaultOptions returns the builder defaults.
func DefaultOptions() Options {
	return Options{
		Dust:             DefaultDust,
		FeePerKb:         DefaultFeePerKb,
		DustChangeToFees: true,
		Mainnet:          true,
		Version:          1,
	}
}

// Builder assembles a transaction from staged inputs and outputs, adds a
// change output that covers the fee, and fills registered signature slots.
//
// Staging methods record inputs and outputs; Build copies them into a fresh
// transaction on every pass. A Builder is not safe for concurrent use.
type Builder struct {
	opts Options

	tx   *transaction.Transaction
	vin  []*transaction.TransactionInput
	vout []*transaction.TransactionOutput

	utxos  map[string]*transaction.TransactionOutput
	sigOps *SigOperations

	changeScript *script.Script
	changeAmount uint64
	feeAmount    uint64
	lastErr      error
}

// NewBuilder returns an empty builder.
func NewBuilder(opts Options) *Builder {
	if opts.Version == 0 {
		opts.Version = 1
	}
	return &Builder{
		opts:   opts,
		tx:     newTx(opts),
		utxos:  make(map[string]*transaction.TransactionOutput),
		sigOps: NewSigOperations(),
	}
}

func newTx(opts Options) *transaction.Transaction {
	t := transaction.NewTransaction()
	t.Version = opts.Version
	t.LockTime = opts.LockTime
	return t
}

// Options returns the builder configuration.
func (b *Builder) Options() Options { return b.opts }

// Reset discards the in-progress transaction. Staged inputs, outputs, the
// UTXO map and the slot registry are kept.
func (b *Builder) Reset() { b.tx = newTx(b.opts) }

// ---------------------------------------------------------------------------
// Staging
// ---------------------------------------------------------------------------

// AddOutput stages an output paying amount to lockingScript.
func (b *Builder) AddOutput(amount uint64, lockingScript *script.Script) {
	b.vout = append(b.vout, &transaction.TransactionOutput{
		Satoshis:      amount,
		LockingScript: cloneScript(lockingScript),
	})
}

// OutputToAddress stages a pay-to-pubkey-hash output.
func (b *Builder) OutputToAddress(amount uint64, address string) error {
	s, err := bscript.ScriptFromAddress(address)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrScriptBuild, err)
	}
	b.AddOutput(amount, s)
	return nil
}

// AddDataOutput stages a zero-value OP_FALSE OP_RETURN output carrying pushes.
func (b *Builder) AddDataOutput(pushes ...[]byte) {
	b.AddOutput(0, bscript.DataScript(pushes...))
}

// SetChangeAddress sets the change destination to a pay-to-pubkey-hash script.
func (b *Builder) SetChangeAddress(address string) error {
	s, err := bscript.ScriptFromAddress(address)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrScriptBuild, err)
	}
	b.changeScript = s
	return nil
}

// SetChangeScript sets the change destination.
func (b *Builder) SetChangeScript(s *script.Script) {
	b.changeScript = cloneScript(s)
}

// InputFromPubKeyHash stages a spend of a pay-to-pubkey-hash output. The
// unlocking script is two placeholders, filled by a signature at chunk 0 and
// the public key at chunk 1. When pub is non-nil it is written immediately.
func (b *Builder) InputFromPubKeyHash(txid *chainhash.Hash, vout uint32, out *transaction.TransactionOutput, pub *ec.PublicKey) error {
	if txid == nil || out == nil || out.LockingScript == nil {
		return fmt.Errorf("%w: txid or previous output", ErrNilParam)
	}
	address, err := bscript.AddressFromScript(*out.LockingScript, b.opts.Mainnet)
	if err != nil {
		return fmt.Errorf("%w: %s:%d: %w", ErrScriptBuild, txid, vout, err)
	}

	unlock := &script.Script{}
	bscript.WriteOpcode(unlock, bscript.OpFalse)
	if pub != nil {
		bscript.WriteBuffer(unlock, pub.Compressed())
	} else {
		bscript.WriteOpcode(unlock, bscript.OpFalse)
	}

	b.vin = append(b.vin, &transaction.TransactionInput{
		SourceTXID:       txid,
		SourceTxOutIndex: vout,
		UnlockingScript:  unlock,
		SequenceNumber:   DefaultSequence,
	})
	b.SetUTXO(txid, vout, out)
	b.sigOps.AddOne(txid, vout, 0, SlotSignature, address, DefaultSighash)
	b.sigOps.AddOne(txid, vout, 1, SlotPubKey, address, 0)
	return nil
}

// InputFromUTXO stages a pay-to-pubkey-hash spend of u.
func (b *Builder) InputFromUTXO(u *UTXO, pub *ec.PublicKey) error {
	txid, err := u.Hash()
	if err != nil {
		return err
	}
	return b.InputFromPubKeyHash(txid, u.Vout, u.Output(), pub)
}

// InputFromScript stages a spend with a caller-supplied unlocking script and
// no slot registration. The input is placed before the last staged input.
func (b *Builder) InputFromScript(txid *chainhash.Hash, vout uint32, out *transaction.TransactionOutput, unlock *script.Script, sequence uint32) {
	in := &transaction.TransactionInput{
		SourceTXID:       txid,
		SourceTxOutIndex: vout,
		UnlockingScript:  cloneScript(unlock),
		SequenceNumber:   sequence,
	}
	if n := len(b.vin); n == 0 {
		b.vin = append(b.vin, in)
	} else {
		last := b.vin[n-1]
		b.vin[n-1] = in
		b.vin = append(b.vin, last)
	}
	b.SetUTXO(txid, vout, out)
}

// SetUTXO records the previous output spent by an outpoint.
func (b *Builder) SetUTXO(txid *chainhash.Hash, vout uint32, out *transaction.TransactionOutput) {
	b.utxos[OutpointKey(txid, vout)] = out
}

// UTXO returns the previous output for an outpoint.
func (b *Builder) UTXO(txid *chainhash.Hash, vout uint32) (*transaction.TransactionOutput, bool) {
	out, ok := b.utxos[OutpointKey(txid, vout)]
	return out, ok
}

// ImportPartiallySignedTx replaces the in-progress transaction with raw and
// the UTXO map with utxos. A nil map keeps the current one.
func (b *Builder) ImportPartiallySignedTx(raw []byte, utxos map[string]*transaction.TransactionOutput) error {
	t, err := transaction.NewTransactionFromBytes(raw)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidTx, err)
	}
	b.tx = t
	if utxos != nil {
		b.utxos = utxos
	}
	return nil
}

// StageFromTx makes the in-progress transaction's inputs and outputs the
// staged ones, so a later Build starts from them.
func (b *Builder) StageFromTx() {
	b.vin = b.vin[:0]
	for _, in := range b.tx.Inputs {
		b.vin = append(b.vin, cloneInput(in))
	}
	b.vout = b.vout[:0]
	for _, out := range b.tx.Outputs {
		b.vout = append(b.vout, cloneOutput(out))
	}
}

// SetSigOperations replaces the slot registry.
func (b *Builder) SetSigOperations(ops *SigOperations) {
	if ops == nil {
		ops = NewSigOperations()
	}
	b.sigOps = ops
}

// AppendOutput adds an output directly to the in-progress transaction.
func (b *Builder) AppendOutput(out *transaction.TransactionOutput) {
	b.tx.AddOutput(cloneOutput(out))
}

// ---------------------------------------------------------------------------
// Build
// ---------------------------------------------------------------------------

// BuildOutputs copies staged outputs into the transaction and returns their
// total. Outputs below dust are skipped unless they are OP_FALSE OP_RETURN.
func (b *Builder) BuildOutputs() uint64 {
	var total uint64
	for i, out := range b.vout {
		if out.Satoshis < b.opts.Dust && !bscript.IsNonSpendable(lockingBytes(out)) {
			log.Warnf("Skipping output %d: %d satoshis is below dust %d", i, out.Satoshis, b.opts.Dust)
			continue
		}
		total += out.Satoshis
		b.tx.AddOutput(cloneOutput(out))
	}
	return total
}

// BuildInputs copies staged inputs into the transaction until their UTXO
// total reaches target, then takes up to extra more. It returns the total.
func (b *Builder) BuildInputs(target uint64, extra int) uint64 {
	var total uint64
	for _, in := range b.vin {
		if len(b.tx.Inputs) >= MaxInputs {
			log.Warnf("Input limit %d reached", MaxInputs)
			break
		}
		if out, ok := b.utxos[inputKey(in)]; ok {
			total += out.Satoshis
		}
		b.tx.AddInput(cloneInput(in))
		if total >= target {
			if extra <= 0 {
				break
			}
			extra--
		}
	}
	if total < target {
		log.Debugf("Not enough funds for outputs: have %d, need %d", total, target)
	}
	return total
}

// Build assembles the transaction with a change output. With useAllInputs
// every staged input is spent; otherwise inputs are added until outputs plus
// fee are covered with change above dust.
//
// Build returns false when the transaction cannot be funded; LastError then
// describes the reason.
func (b *Builder) Build(useAllInputs bool) bool {
	b.lastErr = nil
	if len(b.vin) == 0 {
		return b.fail(ErrNoInputs)
	}
	if b.changeScript == nil || len(*b.changeScript) == 0 {
		return b.fail(ErrNoChangeScript)
	}

	extra := 0
	if useAllInputs {
		extra = len(b.vin) - 1
	}

	var change, fee uint64
	for ; extra < len(b.vin); extra++ {
		b.tx = newTx(b.opts)
		outAmount := b.BuildOutputs()
		changeOut := &transaction.TransactionOutput{LockingScript: cloneScript(b.changeScript)}

		inAmount := b.BuildInputs(outAmount, extra)
		if inAmount < outAmount {
			return b.fail(fmt.Errorf("%w: inputs %d < outputs %d", ErrInsufficientFunds, inAmount, outAmount))
		}

		change = inAmount - outAmount
		changeOut.Satoshis = change
		b.tx.AddOutput(changeOut)

		fee = b.EstimateFee()
		if change >= fee && change-fee > b.opts.Dust {
			break
		}
	}

	if change < fee {
		return b.fail(fmt.Errorf("%w: change %d < fee %d", ErrInsufficientFunds, change, fee))
	}
	change -= fee
	b.tx.Outputs[len(b.tx.Outputs)-1].Satoshis = change

	if change < b.opts.Dust {
		if !b.opts.DustChangeToFees {
			return b.fail(fmt.Errorf("%w: %d < %d", ErrDustChange, change, b.opts.Dust))
		}
		b.tx.Outputs = b.tx.Outputs[:len(b.tx.Outputs)-1]
		fee += change
		change = 0
	}
	if len(b.tx.Outputs) == 0 {
		return b.fail(ErrNoOutputs)
	}

	b.changeAmount = change
	b.feeAmount = fee
	log.Debugf("Built tx with %d inputs, %d outputs, change %d, fee %d",
		len(b.tx.Inputs), len(b.tx.Outputs), change, fee)
	return true
}

func (b *Builder) fail(err error) bool {
	b.lastErr = err
	log.Warnf("Build failed: %v", err)
	return false
}

// LastError returns the reason the last Build returned false.
func (b *Builder) LastError() error { return b.lastErr }

// EstimateSize returns the serialized size of the transaction with every
// registered slot counted at its worst-case filled size.
func (b *Builder) EstimateSize() int {
	size := len(b.tx.Bytes())
	for _, in := range b.tx.Inputs {
		slots := b.sigOps.Get(in.SourceTXID, in.SourceTxOutIndex)
		if len(slots) == 0 {
			continue
		}
		var chunks []bscript.Chunk
		if in.UnlockingScript != nil {
			chunks, _ = bscript.Parse(*in.UnlockingScript)
		}
		for _, slot := range slots {
			if slot.Index < len(chunks) {
				size -= len(chunks[slot.Index].Data) + 1
			}
			switch slot.Kind {
			case SlotSignature:
				size += SigSize
			case SlotPubKey:
				size += PubKeySize
			}
		}
	}
	return size + 1
}

// EstimateFee returns the fee for the estimated size at the configured rate.
func (b *Builder) EstimateFee() uint64 {
	return EstimateFee(b.EstimateSize(), b.opts.FeePerKb)
}

// Change returns the change amount of the last successful Build.
func (b *Builder) Change() uint64 { return b.changeAmount }

// Fee returns the fee of the last successful Build.
func (b *Builder) Fee() uint64 { return b.feeAmount }

// ---------------------------------------------------------------------------
// Accessors
// ---------------------------------------------------------------------------

// Tx returns the in-progress transaction.
func (b *Builder) Tx() *transaction.Transaction { return b.tx }

// Bytes returns the serialized transaction.
func (b *Builder) Bytes() []byte { return b.tx.Bytes() }

// Hex returns the serialized transaction as hex.
func (b *Builder) Hex() string { return b.tx.Hex() }

// TxID returns the transaction id.
func (b *Builder) TxID() *chainhash.Hash { return b.tx.TxID() }

// UTXOs returns the map of previous outputs keyed by OutpointKey.
func (b *Builder) UTXOs() map[string]*transaction.TransactionOutput { return b.utxos }

// SigOperations returns the slot registry.
func (b *Builder) SigOperations() *SigOperations { return b.sigOps }

// Sighash returns the signature digest of input nIn in the in-progress
// transaction with the fork id algorithm enabled.
func (b *Builder) Sighash(hashType uint32, nIn int, subscript []byte, amount uint64) ([]byte, error) {
	return Sighash(b.tx, nIn, subscript, amount, hashType, ScriptEnableSighashForkID)
}

// ---------------------------------------------------------------------------
// Copy helpers
// ---------------------------------------------------------------------------

func cloneScript(s *script.Script) *script.Script {
	if s == nil {
		return &script.Script{}
	}
	cp := make(script.Script, len(*s))
	copy(cp, *s)
	return &cp
}

func cloneInput(in *transaction.TransactionInput) *transaction.TransactionInput {
	return &transaction.TransactionInput{
		SourceTXID:       in.SourceTXID,
		SourceTxOutIndex: in.SourceTxOutIndex,
		UnlockingScript:  cloneScript(in.UnlockingScript),
		SequenceNumber:   in.SequenceNumber,
	}
}

func cloneOutput(out *transaction.TransactionOutput) *transaction.TransactionOutput {
	return &transaction.TransactionOutput{
		Satoshis:      out.Satoshis,
		LockingScript: cloneScript(out.LockingScript),
	}
}
