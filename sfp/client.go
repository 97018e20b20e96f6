package sfp

import (
	"encoding/hex"
	"fmt"

	"github.com/bitfsorg/libsfp-go/storage"
	"github.com/bitfsorg/libsfp-go/tx"
	"github.com/bsv-blockchain/go-sdk/chainhash"
	"github.com/bsv-blockchain/go-sdk/script"
	"github.com/bsv-blockchain/go-sdk/transaction"
)

// Service is the authorizer of one domain as seen by a client.
// *Authorizer implements it in process.
type Service interface {
	BuildAction(raw []byte, outputs []TokenData) (*BuildResult, error)
	AuthorizeAction(raw []byte) ([]byte, *chainhash.Hash, error)
}

// Compile-time interface check.
var _ Service = (*Authorizer)(nil)

// Resolver returns the authorizer responsible for a domain.
type Resolver func(domain string) (Service, error)

func resolveDomain(resolve Resolver, domain string) (Service, error) {
	svc, err := resolve(domain)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrNoAuthorizer, domain, err)
	}
	if svc == nil {
		return nil, fmt.Errorf("%w: %s", ErrNoAuthorizer, domain)
	}
	return svc, nil
}

// AddTransferInputs stages every unspent wallet output of asset as a token
// input with an empty unlocking script. The authorizer writes the unlock
// placeholders and slot list in the first round. It returns the token
// amount staged.
func AddTransferInputs(b *tx.Builder, store storage.Store, walletID int64, asset *storage.Asset) (uint64, error) {
	if b == nil || store == nil || asset == nil {
		return 0, fmt.Errorf("%w: builder, store or asset", ErrNilParam)
	}
	rows, err := store.SelectUtxos(walletID, asset.ID, true)
	if err != nil {
		return 0, fmt.Errorf("%w: %w", ErrStore, err)
	}

	var total uint64
	for _, u := range rows {
		txid, err := tx.ParseTxID(u.TxID)
		if err != nil {
			return 0, fmt.Errorf("%w: utxo %d: %w", ErrStore, u.ID, err)
		}
		s, err := hex.DecodeString(u.Script)
		if err != nil {
			return 0, fmt.Errorf("%w: utxo %d script: %w", ErrStore, u.ID, err)
		}
		out := &transaction.TransactionOutput{Satoshis: u.Satoshis, LockingScript: script.NewFromBytes(s)}
		b.InputFromScript(txid, u.Vout, out, &script.Script{}, tx.DefaultSequence)
		b.SigOperations().SetMany(txid, u.Vout, nil)
		total += u.Amount
	}
	log.Debugf("Staged %d %s inputs holding %d", len(rows), asset.Alias, total)
	return total, nil
}

// RequestTokenOutputs sends the staged transaction to the authorizer of each
// requested output's domain in turn. Each authorizer adds its token outputs
// and unlock placeholders; the returned transaction and signature slots
// replace the builder's draft. The staged inputs and outputs are then
// replaced with the result so that funding and Build continue from it.
//
// A mint links to the first input, so at least one input must be staged.
func RequestTokenOutputs(b *tx.Builder, outputs []TokenData, resolve Resolver) error {
	if b == nil || resolve == nil {
		return fmt.Errorf("%w: builder or resolver", ErrNilParam)
	}
	if len(outputs) == 0 {
		return nil
	}

	b.Reset()
	b.BuildOutputs()
	b.BuildInputs(0, tx.MaxInputs)
	if len(b.Tx().Inputs) == 0 {
		return ErrNoInputs
	}

	domains, groups := GroupByAuthorizer(outputs)
	for _, domain := range domains {
		svc, err := resolveDomain(resolve, domain)
		if err != nil {
			return err
		}
		res, err := svc.BuildAction(b.Bytes(), groups[domain])
		if err != nil {
			return fmt.Errorf("domain %s: %w", domain, err)
		}
		if err := b.ImportPartiallySignedTx(res.Raw, nil); err != nil {
			return fmt.Errorf("domain %s: %w", domain, err)
		}
		b.SigOperations().Merge(res.SigOps)
		log.Debugf("Authorizer for %s added %d outputs", domain, len(groups[domain]))
	}

	b.StageFromTx()
	return nil
}

// RequestAuthorization sends the built and owner-signed transaction to the
// authorizer of every domain whose tokens it spends or creates, in
// first-seen order, and imports each countersigned result. It returns the
// final transaction id.
func RequestAuthorization(b *tx.Builder, resolve Resolver) (*chainhash.Hash, error) {
	if b == nil || resolve == nil {
		return nil, fmt.Errorf("%w: builder or resolver", ErrNilParam)
	}
	domains := TokenDomains(b)
	if len(domains) == 0 {
		return b.TxID(), nil
	}

	var txid *chainhash.Hash
	for _, domain := range domains {
		svc, err := resolveDomain(resolve, domain)
		if err != nil {
			return nil, err
		}
		raw, id, err := svc.AuthorizeAction(b.Bytes())
		if err != nil {
			return nil, fmt.Errorf("domain %s: %w", domain, err)
		}
		if err := b.ImportPartiallySignedTx(raw, nil); err != nil {
			return nil, fmt.Errorf("domain %s: %w", domain, err)
		}
		txid = id
	}
	log.Infof("Transaction %s authorized by %d domains", txid, len(domains))
	return txid, nil
}

// TokenDomains returns the authorizer domains of the token outputs spent and
// created by b's transaction, in first-seen order.
func TokenDomains(b *tx.Builder) []string {
	mainnet := b.Options().Mainnet
	seen := make(map[string]bool)
	var domains []string
	add := func(s *script.Script) {
		if s == nil {
			return
		}
		data, err := ParseOutput(*s, mainnet)
		if err != nil {
			return
		}
		if d := AuthorizerDomain(data.Alias); !seen[d] {
			seen[d] = true
			domains = append(domains, d)
		}
	}
	for _, in := range b.Tx().Inputs {
		if prev, ok := b.UTXO(in.SourceTXID, in.SourceTxOutIndex); ok {
			add(prev.LockingScript)
		}
	}
	for _, out := range b.Tx().Outputs {
		add(out.LockingScript)
	}
	return domains
}
