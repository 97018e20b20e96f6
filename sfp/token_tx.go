package sfp

import (
	"errors"
	"fmt"
	"sort"

	"github.com/bitfsorg/libsfp-go/bscript"
	"github.com/bitfsorg/libsfp-go/tx"
	"github.com/bsv-blockchain/go-sdk/script"
	"github.com/bsv-blockchain/go-sdk/transaction"
)

// AddUnlockScript registers the signature slots of a token input and, when
// the input's unlocking script is still empty, writes the placeholder script.
// Issuer slots exist only for version 0.2 and later.
func AddUnlockScript(data *TokenData, nIn int, b *tx.Builder) error {
	if data == nil || b == nil {
		return fmt.Errorf("%w: token data or builder", ErrNilParam)
	}
	inputs := b.Tx().Inputs
	if nIn < 0 || nIn >= len(inputs) {
		return fmt.Errorf("%w: %d", tx.ErrInputIndex, nIn)
	}
	in := inputs[nIn]
	withIssuer := versionAtLeast(data.Version, 0.2)

	ops := b.SigOperations()
	ops.AddOne(in.SourceTXID, in.SourceTxOutIndex, SlotAuthorizerSig, tx.SlotSignature, data.Authorizer, tx.DefaultSighash)
	ops.AddOne(in.SourceTXID, in.SourceTxOutIndex, SlotAuthorizerPubKey, tx.SlotPubKey, data.Authorizer, 0)
	ops.AddOne(in.SourceTXID, in.SourceTxOutIndex, SlotOwnerSig, tx.SlotSignature, data.Address, tx.DefaultSighash)
	ops.AddOne(in.SourceTXID, in.SourceTxOutIndex, SlotOwnerPubKey, tx.SlotPubKey, data.Address, 0)
	if withIssuer {
		ops.AddOne(in.SourceTXID, in.SourceTxOutIndex, SlotIssuerSig, tx.SlotSignature, data.Issuer, tx.DefaultSighash)
		ops.AddOne(in.SourceTXID, in.SourceTxOutIndex, SlotIssuerPubKey, tx.SlotPubKey, data.Issuer, 0)
	}

	if in.UnlockingScript != nil && len(*in.UnlockingScript) > 0 {
		return nil
	}

	placeholder := []byte{0x00}
	var pushes [unlockSlots][]byte
	pushes[SlotOwnerSig] = placeholder
	pushes[SlotOwnerPubKey] = placeholder
	pushes[SlotAuthorizerSig] = placeholder
	pushes[SlotAuthorizerPubKey] = placeholder
	pushes[SlotVersion] = []byte(ProtocolPrefix + data.Version)
	pushes[SlotNtxidSig] = placeholder
	if withIssuer {
		pushes[SlotIssuerSig] = placeholder
		pushes[SlotIssuerPubKey] = placeholder
	}

	unlock := &script.Script{}
	for _, p := range pushes {
		bscript.WriteBuffer(unlock, p)
	}
	in.UnlockingScript = unlock
	return nil
}

// ---------------------------------------------------------------------------
// Aggregation
// ---------------------------------------------------------------------------

// AssetsAggregator sums token amounts per alias.
type AssetsAggregator struct {
	totals map[string]uint64
}

// NewAssetsAggregator returns an empty aggregator.
func NewAssetsAggregator() *AssetsAggregator {
	return &AssetsAggregator{totals: make(map[string]uint64)}
}

// Add adds amount to alias's total.
func (a *AssetsAggregator) Add(alias string, amount uint64) {
	a.totals[alias] += amount
}

// Sum returns alias's total, or zero.
func (a *AssetsAggregator) Sum(alias string) uint64 { return a.totals[alias] }

// Has reports whether alias has been added.
func (a *AssetsAggregator) Has(alias string) bool {
	_, ok := a.totals[alias]
	return ok
}

// Len returns the number of distinct aliases.
func (a *AssetsAggregator) Len() int { return len(a.totals) }

// Aliases returns the aliases in lexical order.
func (a *AssetsAggregator) Aliases() []string {
	out := make([]string, 0, len(a.totals))
	for alias := range a.totals {
		out = append(out, alias)
	}
	sort.Strings(out)
	return out
}

// ---------------------------------------------------------------------------
// Token transaction
// ---------------------------------------------------------------------------

// TokenInput is a transaction input that spends a token output.
type TokenInput struct {
	TokenData
	Index  int
	Unlock []byte
}

// HasParam reports whether the unlocking script chunk at pos holds something
// other than a placeholder.
func (in *TokenInput) HasParam(pos int) bool {
	chunks, _ := bscript.Parse(in.Unlock)
	if pos < 0 || pos >= len(chunks) {
		return false
	}
	d := chunks[pos].Data
	return len(d) > 0 && !(len(d) == 1 && d[0] == 0x00)
}

// TokenOutput is a transaction output carrying a token.
type TokenOutput struct {
	TokenData
	Index    int
	Script   []byte
	Satoshis uint64
}

// TokenTransaction is the token view of a transaction: which inputs spend
// tokens, which outputs create them, and the per-alias totals on each side.
type TokenTransaction struct {
	codec     *Codec
	issuers   map[string]string
	outpoints map[Outpoint]bool

	Inputs        []*TokenInput
	Outputs       []*TokenOutput
	AssetsInputs  *AssetsAggregator
	AssetsOutputs *AssetsAggregator
}

// NewTokenTransaction returns an empty token view that writes outputs with codec.
func NewTokenTransaction(codec *Codec) *TokenTransaction {
	return &TokenTransaction{
		codec:         codec,
		issuers:       make(map[string]string),
		outpoints:     make(map[Outpoint]bool),
		AssetsInputs:  NewAssetsAggregator(),
		AssetsOutputs: NewAssetsAggregator(),
	}
}

func (t *TokenTransaction) addInput(in *TokenInput) {
	t.Inputs = append(t.Inputs, in)
	t.AssetsInputs.Add(in.Alias, in.Amount)
	t.issuers[in.Alias] = in.Issuer
}

func (t *TokenTransaction) addOutput(out *TokenOutput) {
	t.Outputs = append(t.Outputs, out)
	t.AssetsOutputs.Add(out.Alias, out.Amount)
}

// ImportInputs scans b's inputs and records every one whose previous output
// is a token. Each token input gets its unlock slots registered and, if its
// unlocking script is empty, the placeholder script.
func (t *TokenTransaction) ImportInputs(b *tx.Builder) error {
	t.Inputs = nil
	t.AssetsInputs = NewAssetsAggregator()
	t.outpoints = make(map[Outpoint]bool)

	for i, in := range b.Tx().Inputs {
		t.outpoints[OutpointOf(in)] = true

		prev, ok := b.UTXO(in.SourceTXID, in.SourceTxOutIndex)
		if !ok || prev.LockingScript == nil {
			continue
		}
		data, err := t.codec.ParseOutput(*prev.LockingScript)
		if errors.Is(err, ErrNotToken) {
			continue
		}
		if err != nil {
			return fmt.Errorf("input %d: %w", i, err)
		}
		if err := AddUnlockScript(data, i, b); err != nil {
			return fmt.Errorf("input %d: %w", i, err)
		}
		t.addInput(&TokenInput{
			TokenData: *data,
			Index:     i,
			Unlock:    append([]byte(nil), *in.UnlockingScript...),
		})
	}
	log.Debugf("Imported %d token inputs", len(t.Inputs))
	return nil
}

// ImportOutputs records every token output already present in b's
// transaction. Scripts are left unchanged.
func (t *TokenTransaction) ImportOutputs(b *tx.Builder) error {
	for i, out := range b.Tx().Outputs {
		if out.LockingScript == nil {
			continue
		}
		data, err := t.codec.ParseOutput(*out.LockingScript)
		if errors.Is(err, ErrNotToken) {
			continue
		}
		if err != nil {
			return fmt.Errorf("output %d: %w", i, err)
		}
		t.addOutput(&TokenOutput{
			TokenData: *data,
			Index:     i,
			Script:    append([]byte(nil), *out.LockingScript...),
			Satoshis:  out.Satoshis,
		})
	}
	return nil
}

// CreateOutputs appends a token output to b's transaction for each request,
// linked to the outpoint spent by the first input. An alias already spent by
// a token input keeps that input's issuer; a new alias is issued by the
// requested owner.
func (t *TokenTransaction) CreateOutputs(b *tx.Builder, outputs []TokenData) error {
	inputs := b.Tx().Inputs
	if len(inputs) == 0 {
		return ErrNoInputs
	}
	link := OutpointOf(inputs[0])

	for _, req := range outputs {
		data := req
		data.Issuer = data.Address
		if issuer, ok := t.issuers[data.Alias]; ok && t.AssetsInputs.Has(data.Alias) && issuer != "" {
			data.Issuer = issuer
		}
		data.Authorizer = t.codec.Address()
		data.Version = Version
		data.Link = &Outpoint{TxID: link.TxID, Vout: link.Vout}

		s, err := t.codec.CreateOutput(&data, link)
		if err != nil {
			return err
		}
		data.State = EncodeState(data.Amount, data.Notes)

		out := &transaction.TransactionOutput{
			Satoshis:      MinimumOutputAmount(len(*s)),
			LockingScript: s,
		}
		index := len(b.Tx().Outputs)
		b.AppendOutput(out)
		t.addOutput(&TokenOutput{
			TokenData: data,
			Index:     index,
			Script:    append([]byte(nil), *s...),
			Satoshis:  out.Satoshis,
		})
		log.Debugf("Created %s output %d: %d to %s", data.Alias, index, data.Amount, data.Address)
	}
	return nil
}

// InputsAmountEqualOutputsAmount reports whether, for every alias spent by a
// token input, the output total equals the input total.
func (t *TokenTransaction) InputsAmountEqualOutputsAmount() bool {
	for alias, amount := range t.AssetsInputs.totals {
		if t.AssetsOutputs.Sum(alias) != amount {
			return false
		}
	}
	return true
}

// AllInputsHaveParam reports whether every token input's unlocking script
// has a value at chunk pos.
func (t *TokenTransaction) AllInputsHaveParam(pos int) bool {
	for _, in := range t.Inputs {
		if !in.HasParam(pos) {
			return false
		}
	}
	return true
}

// HasMultipleOutputsPerAsset reports whether the transaction has more token
// outputs than distinct aliases. The count spans the whole transaction, so a
// mint beside a transfer split over two outputs is reported too.
func (t *TokenTransaction) HasMultipleOutputsPerAsset() bool {
	return len(t.Outputs) != t.AssetsOutputs.Len()
}
