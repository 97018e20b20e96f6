// Package storage persists the wallet's unspent outputs, the asset registry
// and authorized token outputs.
//
// Transaction ids are stored as display-order hex and scripts as hex, so
// records can be compared directly with explorer output.
package storage

import (
	"encoding/hex"
	"fmt"

	"github.com/bitfsorg/libsfp-go/tx"
)

// UTXO is a wallet-owned output.
type UTXO struct {
	ID           int64
	WalletID     int64
	FromWalletID int64
	Satoshis     uint64
	Address      string
	AddressIndex int64
	TxID         string
	Vout         uint32
	Script       string // locking script, hex
	SpentTxID    string // empty while unspent
	Amount       uint64 // token amount, zero for plain outputs
	AssetID      int64  // zero for plain outputs
}

// Spent reports whether the output has been consumed.
func (u *UTXO) Spent() bool { return u.SpentTxID != "" }

// TxUTXO converts the record to the builder's input form.
func (u *UTXO) TxUTXO() (*tx.UTXO, error) {
	h, err := tx.ParseTxID(u.TxID)
	if err != nil {
		return nil, fmt.Errorf("%w: utxo %d: %w", ErrInvalidRecord, u.ID, err)
	}
	s, err := hex.DecodeString(u.Script)
	if err != nil {
		return nil, fmt.Errorf("%w: utxo %d script: %w", ErrInvalidRecord, u.ID, err)
	}
	return &tx.UTXO{TxID: h.CloneBytes(), Vout: u.Vout, Amount: u.Satoshis, ScriptPubKey: s}, nil
}

// Asset binds an alias to the address that first minted it.
type Asset struct {
	ID            int64
	Alias         string
	IssuerAddress string
}

// TokenUTXO is a token output countersigned by the authorizer.
type TokenUTXO struct {
	ID       int64
	AssetID  int64
	TxID     string
	Vout     uint32
	Script   string // locking script, hex
	Satoshis uint64
	Amount   uint64 // token amount carried in the state payload
}

// Tx is the set of operations available inside an atomic update.
type Tx interface {
	// InsertUtxo stores u, assigns its ID and returns it.
	InsertUtxo(u *UTXO) (int64, error)

	// UpdateUtxoSpent marks the output txid:vout as spent by spentTxID.
	UpdateUtxoSpent(txid string, vout uint32, spentTxID string) error

	// SelectAsset returns the asset bound to alias, or ErrNotFound.
	SelectAsset(alias string) (*Asset, error)

	// InsertAsset stores a, assigns its ID and returns it. Aliases are unique.
	InsertAsset(a *Asset) (int64, error)

	// SelectTokenUtxo returns the token output at txid:vout, or ErrNotFound.
	SelectTokenUtxo(txid string, vout uint32) (*TokenUTXO, error)

	// InsertTokenUtxo stores u, assigns its ID and returns it.
	InsertTokenUtxo(u *TokenUTXO) (int64, error)
}

// Store persists wallet and token records.
type Store interface {
	Tx

	// SelectUtxos lists a wallet's outputs for assetID in ID order.
	SelectUtxos(walletID, assetID int64, excludeSpent bool) ([]*UTXO, error)

	// Update runs fn atomically: every write fn makes is kept if it returns
	// nil and none is kept otherwise.
	Update(fn func(Tx) error) error

	// Close releases the store.
	Close() error
}

// Funding adapts a Store to tx.UTXOSource over a wallet's unspent plain
// outputs.
type Funding struct {
	Store Store
}

var _ tx.UTXOSource = Funding{}
var _ tx.SpendRecorder = Store(nil)

// SpendableUTXOs lists the wallet's unspent outputs that carry no asset.
func (f Funding) SpendableUTXOs(walletID int64) ([]*tx.UTXO, error) {
	rows, err := f.Store.SelectUtxos(walletID, 0, true)
	if err != nil {
		return nil, err
	}
	out := make([]*tx.UTXO, 0, len(rows))
	for _, r := range rows {
		u, err := r.TxUTXO()
		if err != nil {
			log.Warnf("Skipping utxo %d: %v", r.ID, err)
			continue
		}
		out = append(out, u)
	}
	return out, nil
}

func outpointKey(txid string, vout uint32) string {
	return fmt.Sprintf("%s:%d", txid, vout)
}

func validateUtxo(u *UTXO) error {
	if u == nil {
		return fmt.Errorf("%w: utxo", ErrNilParam)
	}
	if u.TxID == "" {
		return fmt.Errorf("%w: utxo txid is empty", ErrInvalidRecord)
	}
	return nil
}

func validateAsset(a *Asset) error {
	if a == nil {
		return fmt.Errorf("%w: asset", ErrNilParam)
	}
	if a.Alias == "" {
		return fmt.Errorf("%w: asset alias is empty", ErrInvalidRecord)
	}
	return nil
}

func validateTokenUtxo(u *TokenUTXO) error {
	if u == nil {
		return fmt.Errorf("%w: token utxo", ErrNilParam)
	}
	if u.TxID == "" {
		return fmt.Errorf("%w: token utxo txid is empty", ErrInvalidRecord)
	}
	return nil
}
