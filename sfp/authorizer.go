package sfp

import (
	"encoding/hex"
	"errors"
	"fmt"
	"slices"

	"github.com/bitfsorg/libsfp-go/signer"
	"github.com/bitfsorg/libsfp-go/storage"
	"github.com/bitfsorg/libsfp-go/tx"
	"github.com/bsv-blockchain/go-sdk/chainhash"
	"github.com/bsv-blockchain/go-sdk/script"
	"github.com/bsv-blockchain/go-sdk/transaction"

	ec "github.com/bsv-blockchain/go-sdk/primitives/ec"
)

// ntxidTrailer follows the DER signature written into the ntxid slot.
const ntxidTrailer = 0x00

// NtxidDigest returns the digest signed into ntxid slots: the legacy
// SIGHASH_ALL digest of input 0 with an empty subscript, byte-reversed.
func NtxidDigest(b *tx.Builder) ([]byte, error) {
	digest, err := b.Sighash(tx.SighashAll, 0, nil, 0)
	if err != nil {
		return nil, err
	}
	slices.Reverse(digest)
	return digest, nil
}

// Authorizer validates and countersigns token transactions for one domain
// and records the token outputs it authorizes.
type Authorizer struct {
	codec *Codec
	store storage.Store
	opts  tx.Options
}

// NewAuthorizer returns an authorizer for the key encoded in wif.
func NewAuthorizer(wif string, store storage.Store, opts tx.Options) (*Authorizer, error) {
	priv, err := ec.PrivateKeyFromWif(wif)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidKey, err)
	}
	return NewAuthorizerFromKey(priv, store, opts)
}

// NewAuthorizerFromKey returns an authorizer for priv.
func NewAuthorizerFromKey(priv *ec.PrivateKey, store storage.Store, opts tx.Options) (*Authorizer, error) {
	if store == nil {
		return nil, fmt.Errorf("%w: store", ErrNilParam)
	}
	codec, err := NewCodec(priv, opts.Mainnet)
	if err != nil {
		return nil, err
	}
	log.Debugf("Authorizer address %s", codec.Address())
	return &Authorizer{codec: codec, store: store, opts: opts}, nil
}

// Address returns the authorizer's address.
func (a *Authorizer) Address() string { return a.codec.Address() }

// Codec returns the codec that writes this authorizer's outputs.
func (a *Authorizer) Codec() *Codec { return a.codec }

// RecoverUTXOs looks up the recorded token outputs spent by t's inputs.
// Inputs that spend anything else are absent from the result.
func (a *Authorizer) RecoverUTXOs(t *transaction.Transaction) (map[string]*transaction.TransactionOutput, error) {
	utxos := make(map[string]*transaction.TransactionOutput)
	for _, in := range t.Inputs {
		rec, err := a.store.SelectTokenUtxo(in.SourceTXID.String(), in.SourceTxOutIndex)
		if errors.Is(err, storage.ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrStore, err)
		}
		s, err := hex.DecodeString(rec.Script)
		if err != nil {
			return nil, fmt.Errorf("%w: token utxo %d script: %w", ErrStore, rec.ID, err)
		}
		utxos[tx.OutpointKey(in.SourceTXID, in.SourceTxOutIndex)] = &transaction.TransactionOutput{
			Satoshis:      rec.Satoshis,
			LockingScript: script.NewFromBytes(s),
		}
	}
	return utxos, nil
}

// BuildTokenTx imports a client's draft transaction, prepares its token
// inputs for signing and appends the requested token outputs.
func (a *Authorizer) BuildTokenTx(raw []byte, outputs []TokenData) (*tx.Builder, *TokenTransaction, error) {
	b := tx.NewBuilder(a.opts)
	if err := b.ImportPartiallySignedTx(raw, nil); err != nil {
		return nil, nil, fmt.Errorf("%w: %w", ErrInvalidTx, err)
	}
	utxos, err := a.RecoverUTXOs(b.Tx())
	if err != nil {
		return nil, nil, err
	}
	for _, in := range b.Tx().Inputs {
		if out, ok := utxos[tx.OutpointKey(in.SourceTXID, in.SourceTxOutIndex)]; ok {
			b.SetUTXO(in.SourceTXID, in.SourceTxOutIndex, out)
		}
	}

	tt := NewTokenTransaction(a.codec)
	if err := tt.ImportInputs(b); err != nil {
		return nil, nil, err
	}
	if err := tt.ImportOutputs(b); err != nil {
		return nil, nil, err
	}
	if len(outputs) > 0 {
		if err := tt.CreateOutputs(b, outputs); err != nil {
			return nil, nil, err
		}
	}
	return b, tt, nil
}

// Validate checks the mint rules: a new alias gets exactly one output, and
// an alias already in the registry may only be minted by its issuer. Every
// linked output must point at an outpoint the transaction spends.
func (a *Authorizer) Validate(tt *TokenTransaction) error {
	for _, out := range tt.Outputs {
		if out.Link != nil && !tt.outpoints[*out.Link] {
			err := fmt.Errorf("%w: output %d links %s", ErrUnlinkedOutput, out.Index, out.Link)
			log.Warnf("Rejecting token tx: %v", err)
			return err
		}
	}

	for _, alias := range tt.AssetsOutputs.Aliases() {
		if tt.AssetsInputs.Has(alias) || !a.signedAlias(tt, alias) {
			continue
		}
		if tt.HasMultipleOutputsPerAsset() {
			err := fmt.Errorf("%w: %s", ErrMultipleMintOutputs, alias)
			log.Warnf("Rejecting token tx: %v", err)
			return err
		}
		asset, err := a.store.SelectAsset(alias)
		if errors.Is(err, storage.ErrNotFound) {
			continue
		}
		if err != nil {
			return fmt.Errorf("%w: %w", ErrStore, err)
		}
		if issuer := mintIssuer(tt, alias); asset.IssuerAddress != issuer {
			err := fmt.Errorf("%w: %s is issued by %s, not %s", ErrIssuerMismatch, alias, asset.IssuerAddress, issuer)
			log.Warnf("Rejecting token tx: %v", err)
			return err
		}
	}
	return nil
}

// signedAlias reports whether this authorizer wrote the outputs of alias.
// Outputs of other domains are left to their own authorizers.
func (a *Authorizer) signedAlias(tt *TokenTransaction, alias string) bool {
	for _, out := range tt.Outputs {
		if out.Alias == alias && out.Authorizer == a.Address() {
			return true
		}
	}
	return false
}

// mintIssuer returns the issuer recorded in the output minting alias.
func mintIssuer(tt *TokenTransaction, alias string) string {
	for _, out := range tt.Outputs {
		if out.Alias != alias {
			continue
		}
		if out.Issuer != "" {
			return out.Issuer
		}
		return out.Address
	}
	return ""
}

// Authorize countersigns a validated token transaction. Every token input
// must carry its owner's signature, and amounts must balance unless every
// token input is also signed by its issuer. The authorizer fills its own
// slots, signs the transaction digest into each token input's ntxid slot and
// records new assets and token outputs in one store update. It returns the
// final transaction id.
func (a *Authorizer) Authorize(b *tx.Builder, tt *TokenTransaction) (*chainhash.Hash, error) {
	if b == nil || tt == nil {
		return nil, fmt.Errorf("%w: builder or token transaction", ErrNilParam)
	}
	if !tt.AllInputsHaveParam(SlotOwnerSig) {
		log.Warnf("Refusing to authorize: %v", ErrMissingOwnerSig)
		return nil, ErrMissingOwnerSig
	}
	if !tt.InputsAmountEqualOutputsAmount() && !tt.AllInputsHaveParam(SlotIssuerSig) {
		log.Warnf("Refusing to authorize: %v", ErrUnbalanced)
		return nil, ErrUnbalanced
	}

	filled := b.SignWithKeyPairs([]tx.KeyPair{a.codec.KeyPair()})
	log.Debugf("Filled %d authorizer slots", filled)

	digest, err := NtxidDigest(b)
	if err != nil {
		return nil, fmt.Errorf("%w: ntxid: %w", tx.ErrSigningFailed, err)
	}
	ctx := signer.Acquire()
	sig, err := ctx.Sign(a.codec.KeyPair().PrivateKey, digest)
	ctx.Release()
	if err != nil {
		return nil, fmt.Errorf("%w: ntxid: %w", tx.ErrSigningFailed, err)
	}
	sig = append(sig, ntxidTrailer)
	for _, in := range tt.Inputs {
		if in.Authorizer != a.Address() {
			continue
		}
		if err := b.FillSig(in.Index, SlotNtxidSig, sig); err != nil {
			return nil, err
		}
	}

	txid := b.TxID()
	if err := a.persist(txid, tt); err != nil {
		return nil, err
	}
	log.Infof("Authorized %s with %d token inputs and %d token outputs", txid, len(tt.Inputs), len(tt.Outputs))
	return txid, nil
}

// persist records mints and every token output of txid atomically.
func (a *Authorizer) persist(txid *chainhash.Hash, tt *TokenTransaction) error {
	err := a.store.Update(func(stx storage.Tx) error {
		assets := make(map[string]*storage.Asset)
		for _, alias := range tt.AssetsOutputs.Aliases() {
			if !a.signedAlias(tt, alias) {
				continue
			}
			asset, err := stx.SelectAsset(alias)
			if err == nil {
				assets[alias] = asset
				continue
			}
			if !errors.Is(err, storage.ErrNotFound) {
				return err
			}
			if tt.AssetsInputs.Has(alias) {
				log.Warnf("Spent asset %s is not registered", alias)
				continue
			}
			asset = &storage.Asset{Alias: alias, IssuerAddress: mintIssuerAddress(tt, alias)}
			if _, err := stx.InsertAsset(asset); err != nil {
				return err
			}
			assets[alias] = asset
		}

		for _, out := range tt.Outputs {
			asset, ok := assets[out.Alias]
			if !ok {
				continue
			}
			_, err := stx.InsertTokenUtxo(&storage.TokenUTXO{
				AssetID:  asset.ID,
				TxID:     txid.String(),
				Vout:     uint32(out.Index),
				Script:   hex.EncodeToString(out.Script),
				Satoshis: out.Satoshis,
				Amount:   out.Amount,
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("%w: record %s: %w", ErrStore, txid, err)
	}
	return nil
}

// mintIssuerAddress returns the owner of the output minting alias, which
// becomes the asset's issuer of record.
func mintIssuerAddress(tt *TokenTransaction, alias string) string {
	for _, out := range tt.Outputs {
		if out.Alias == alias {
			return out.Address
		}
	}
	return ""
}

// ---------------------------------------------------------------------------
// Protocol rounds
// ---------------------------------------------------------------------------

// BuildResult is the authorizer's answer to a build request.
type BuildResult struct {
	Raw    []byte
	SigOps *tx.SigOperations
}

// BuildAction runs the first round: it adds the requested token outputs and
// unlock placeholders to raw, validates the result and returns it with the
// signature slots the client must fill.
func (a *Authorizer) BuildAction(raw []byte, outputs []TokenData) (*BuildResult, error) {
	b, tt, err := a.BuildTokenTx(raw, outputs)
	if err != nil {
		return nil, err
	}
	if err := a.Validate(tt); err != nil {
		return nil, err
	}
	return &BuildResult{Raw: b.Bytes(), SigOps: b.SigOperations()}, nil
}

// AuthorizeAction runs the second round on a client-signed transaction and
// returns the fully authorized transaction and its id.
func (a *Authorizer) AuthorizeAction(raw []byte) ([]byte, *chainhash.Hash, error) {
	b, tt, err := a.BuildTokenTx(raw, nil)
	if err != nil {
		return nil, nil, err
	}
	if err := a.Validate(tt); err != nil {
		return nil, nil, err
	}
	txid, err := a.Authorize(b, tt)
	if err != nil {
		return nil, nil, err
	}
	return b.Bytes(), txid, nil
}
