package tx

import (
	"fmt"

	"github.com/bsv-blockchain/go-sdk/chainhash"
	"github.com/bsv-blockchain/go-sdk/script"
	"github.com/bsv-blockchain/go-sdk/transaction"
)

// TxIDLen is the length of a transaction id.
const TxIDLen = 32

// UTXO is an unspent output that can be staged as a builder input.
type UTXO struct {
	TxID         []byte `json:"txid"`          // 32 bytes, internal byte order
	Vout         uint32 `json:"vout"`
	Amount       uint64 `json:"amount"`        // satoshis
	ScriptPubKey []byte `json:"script_pubkey"` // locking script bytes
}

// Hash returns the UTXO's transaction id as a chainhash.
func (u *UTXO) Hash() (*chainhash.Hash, error) {
	if len(u.TxID) != TxIDLen {
		return nil, fmt.Errorf("%w: got %d", ErrInvalidTxID, len(u.TxID))
	}
	return chainhash.NewHash(u.TxID)
}

// Output returns the UTXO as a transaction output.
func (u *UTXO) Output() *transaction.TransactionOutput {
	return &transaction.TransactionOutput{
		Satoshis:      u.Amount,
		LockingScript: script.NewFromBytes(u.ScriptPubKey),
	}
}

// OutpointKey is the registry and UTXO-map key for an outpoint: the display
// hex of the transaction id, a colon, and the output index.
func OutpointKey(txid *chainhash.Hash, vout uint32) string {
	return fmt.Sprintf("%s:%d", txid.String(), vout)
}

func inputKey(in *transaction.TransactionInput) string {
	return OutpointKey(in.SourceTXID, in.SourceTxOutIndex)
}
