package tx

import (
	"encoding/hex"
	"fmt"

	"github.com/bsv-blockchain/go-sdk/chainhash"
)

// UTXOSource lists a wallet's spendable outputs in the order they should be
// consumed.
type UTXOSource interface {
	SpendableUTXOs(walletID int64) ([]*UTXO, error)
}

// SpendRecorder marks an output as consumed by a transaction. Transaction ids
// are display hex.
type SpendRecorder interface {
	UpdateUtxoSpent(txid string, vout uint32, spentTxID string) error
}

// Fund stages a wallet's spendable outputs one at a time as
// pay-to-pubkey-hash inputs until Build(true) succeeds. It reports false
// with the last build error when the wallet runs out of outputs.
func Fund(b *Builder, src UTXOSource, walletID int64) (bool, error) {
	if len(b.vin) > 0 && b.Build(true) {
		return true, nil
	}

	utxos, err := src.SpendableUTXOs(walletID)
	if err != nil {
		return false, fmt.Errorf("tx: list utxos for wallet %d: %w", walletID, err)
	}

	staged := make(map[string]bool, len(b.vin))
	for _, in := range b.vin {
		staged[inputKey(in)] = true
	}

	for _, u := range utxos {
		if len(b.vin) >= MaxInputs {
			break
		}
		txid, err := u.Hash()
		if err != nil {
			log.Warnf("Skipping utxo with bad txid: %v", err)
			continue
		}
		if staged[OutpointKey(txid, u.Vout)] {
			continue
		}
		if err := b.InputFromPubKeyHash(txid, u.Vout, u.Output(), nil); err != nil {
			log.Warnf("Skipping utxo %s:%d: %v", txid, u.Vout, err)
			continue
		}
		staged[OutpointKey(txid, u.Vout)] = true
		if b.Build(true) {
			return true, nil
		}
	}

	err = b.LastError()
	if err == nil {
		err = ErrInsufficientFunds
	}
	return false, fmt.Errorf("tx: fund wallet %d: %w", walletID, err)
}

// MarkSpent records every input of the built transaction as spent by it.
func MarkSpent(b *Builder, sink SpendRecorder) error {
	spent := b.TxID().String()
	for _, in := range b.tx.Inputs {
		if err := sink.UpdateUtxoSpent(in.SourceTXID.String(), in.SourceTxOutIndex, spent); err != nil {
			return fmt.Errorf("tx: mark %s spent: %w", inputKey(in), err)
		}
	}
	return nil
}

// ParseTxID decodes a display-order hex transaction id.
func ParseTxID(s string) (*chainhash.Hash, error) {
	b, err := hex.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidTxID, err)
	}
	if len(b) != TxIDLen {
		return nil, fmt.Errorf("%w: got %d", ErrInvalidTxID, len(b))
	}
	for i, j := 0, len(b)-1; i < j; i, j = i+1, j-1 {
		b[i], b[j] = b[j], b[i]
	}
	return chainhash.NewHash(b)
}
