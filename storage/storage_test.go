package storage

import (
	"encoding/hex"
	"errors"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// storeFactories runs each shared test against every Store implementation.
func storeFactories(t *testing.T) map[string]func() Store {
	t.Helper()
	return map[string]func() Store{
		"mem": func() Store { return NewMemStore() },
		"bolt": func() Store {
			s, err := OpenBoltStore(filepath.Join(t.TempDir(), "nested", "wallet.db"))
			require.NoError(t, err)
			return s
		},
	}
}

func forEachStore(t *testing.T, fn func(t *testing.T, s Store)) {
	for name, open := range storeFactories(t) {
		t.Run(name, func(t *testing.T) {
			s := open()
			t.Cleanup(func() { _ = s.Close() })
			fn(t, s)
		})
	}
}

func txidHex(b byte) string {
	return strings.Repeat(hex.EncodeToString([]byte{b}), 32)
}

func sampleUtxo(walletID int64, b byte, vout uint32, sats uint64) *UTXO {
	return &UTXO{
		WalletID: walletID,
		Satoshis: sats,
		Address:  "1BitcoinEaterAddressDontSendf59kuE",
		TxID:     txidHex(b),
		Vout:     vout,
		Script:   "76a914759d6677091e973b9e9d99f19c68fbf43e3f05f988ac",
	}
}

// ---------------------------------------------------------------------------
// UTXOs
// ---------------------------------------------------------------------------

func TestStore_InsertAndSelectUtxos(t *testing.T) {
	forEachStore(t, func(t *testing.T, s Store) {
		a := sampleUtxo(1, 0xaa, 0, 1000)
		id, err := s.InsertUtxo(a)
		require.NoError(t, err)
		assert.Equal(t, int64(1), id)
		assert.Equal(t, id, a.ID)

		_, err = s.InsertUtxo(sampleUtxo(1, 0xbb, 2, 2000))
		require.NoError(t, err)
		_, err = s.InsertUtxo(sampleUtxo(2, 0xcc, 0, 3000))
		require.NoError(t, err)

		token := sampleUtxo(1, 0xdd, 0, 546)
		token.AssetID = 7
		token.Amount = 100
		_, err = s.InsertUtxo(token)
		require.NoError(t, err)

		rows, err := s.SelectUtxos(1, 0, true)
		require.NoError(t, err)
		require.Len(t, rows, 2)
		assert.Equal(t, uint64(1000), rows[0].Satoshis)
		assert.Equal(t, uint64(2000), rows[1].Satoshis)
		assert.Less(t, rows[0].ID, rows[1].ID)

		rows, err = s.SelectUtxos(1, 7, true)
		require.NoError(t, err)
		require.Len(t, rows, 1)
		assert.Equal(t, uint64(100), rows[0].Amount)
	})
}

func TestStore_DuplicateUtxo(t *testing.T) {
	forEachStore(t, func(t *testing.T, s Store) {
		_, err := s.InsertUtxo(sampleUtxo(1, 0xaa, 0, 1000))
		require.NoError(t, err)
		_, err = s.InsertUtxo(sampleUtxo(1, 0xaa, 0, 1000))
		assert.ErrorIs(t, err, ErrDuplicate)
	})
}

func TestStore_UpdateUtxoSpent(t *testing.T) {
	forEachStore(t, func(t *testing.T, s Store) {
		u := sampleUtxo(1, 0xaa, 1, 1000)
		_, err := s.InsertUtxo(u)
		require.NoError(t, err)

		require.NoError(t, s.UpdateUtxoSpent(u.TxID, 1, txidHex(0xee)))

		rows, err := s.SelectUtxos(1, 0, true)
		require.NoError(t, err)
		assert.Empty(t, rows)

		rows, err = s.SelectUtxos(1, 0, false)
		require.NoError(t, err)
		require.Len(t, rows, 1)
		assert.True(t, rows[0].Spent())
		assert.Equal(t, txidHex(0xee), rows[0].SpentTxID)

		err = s.UpdateUtxoSpent(u.TxID, 9, txidHex(0xee))
		assert.ErrorIs(t, err, ErrNotFound)
	})
}

func TestStore_InvalidRecords(t *testing.T) {
	forEachStore(t, func(t *testing.T, s Store) {
		_, err := s.InsertUtxo(nil)
		assert.ErrorIs(t, err, ErrNilParam)
		_, err = s.InsertUtxo(&UTXO{})
		assert.ErrorIs(t, err, ErrInvalidRecord)
		_, err = s.InsertAsset(&Asset{})
		assert.ErrorIs(t, err, ErrInvalidRecord)
		_, err = s.InsertTokenUtxo(nil)
		assert.ErrorIs(t, err, ErrNilParam)
	})
}

// ---------------------------------------------------------------------------
// Assets and token outputs
// ---------------------------------------------------------------------------

func TestStore_Assets(t *testing.T) {
	forEachStore(t, func(t *testing.T, s Store) {
		_, err := s.SelectAsset("gold")
		assert.ErrorIs(t, err, ErrNotFound)

		id, err := s.InsertAsset(&Asset{Alias: "gold", IssuerAddress: "1Issuer"})
		require.NoError(t, err)

		got, err := s.SelectAsset("gold")
		require.NoError(t, err)
		assert.Equal(t, id, got.ID)
		assert.Equal(t, "1Issuer", got.IssuerAddress)

		_, err = s.InsertAsset(&Asset{Alias: "gold", IssuerAddress: "1Other"})
		assert.ErrorIs(t, err, ErrDuplicate)
	})
}

func TestStore_TokenUtxos(t *testing.T) {
	forEachStore(t, func(t *testing.T, s Store) {
		_, err := s.SelectTokenUtxo(txidHex(0x01), 0)
		assert.ErrorIs(t, err, ErrNotFound)

		rec := &TokenUTXO{AssetID: 1, TxID: txidHex(0x01), Vout: 2, Script: "51", Satoshis: 2000, Amount: 150}
		_, err = s.InsertTokenUtxo(rec)
		require.NoError(t, err)

		got, err := s.SelectTokenUtxo(txidHex(0x01), 2)
		require.NoError(t, err)
		assert.Equal(t, *rec, *got)

		_, err = s.InsertTokenUtxo(&TokenUTXO{TxID: txidHex(0x01), Vout: 2})
		assert.ErrorIs(t, err, ErrDuplicate)
	})
}

// ---------------------------------------------------------------------------
// Update
// ---------------------------------------------------------------------------

func TestStore_UpdateCommits(t *testing.T) {
	forEachStore(t, func(t *testing.T, s Store) {
		err := s.Update(func(tx Tx) error {
			if _, err := tx.InsertAsset(&Asset{Alias: "silver", IssuerAddress: "1Issuer"}); err != nil {
				return err
			}
			a, err := tx.SelectAsset("silver")
			if err != nil {
				return err
			}
			_, err = tx.InsertTokenUtxo(&TokenUTXO{AssetID: a.ID, TxID: txidHex(0x02), Vout: 0, Amount: 5})
			return err
		})
		require.NoError(t, err)

		_, err = s.SelectAsset("silver")
		assert.NoError(t, err)
		_, err = s.SelectTokenUtxo(txidHex(0x02), 0)
		assert.NoError(t, err)
	})
}

func TestStore_UpdateRollsBack(t *testing.T) {
	forEachStore(t, func(t *testing.T, s Store) {
		boom := errors.New("boom")
		err := s.Update(func(tx Tx) error {
			if _, err := tx.InsertAsset(&Asset{Alias: "copper", IssuerAddress: "1Issuer"}); err != nil {
				return err
			}
			if _, err := tx.InsertUtxo(sampleUtxo(1, 0x03, 0, 10)); err != nil {
				return err
			}
			return boom
		})
		assert.ErrorIs(t, err, boom)

		_, err = s.SelectAsset("copper")
		assert.ErrorIs(t, err, ErrNotFound)
		rows, err := s.SelectUtxos(1, 0, false)
		require.NoError(t, err)
		assert.Empty(t, rows)

		// A later insert still succeeds after the aborted one.
		_, err = s.InsertAsset(&Asset{Alias: "copper", IssuerAddress: "1Issuer"})
		assert.NoError(t, err)
	})
}

// ---------------------------------------------------------------------------
// Adapters
// ---------------------------------------------------------------------------

func TestFunding_SpendableUTXOs(t *testing.T) {
	s := NewMemStore()
	_, err := s.InsertUtxo(sampleUtxo(4, 0xaa, 3, 5000))
	require.NoError(t, err)

	bad := sampleUtxo(4, 0xbb, 0, 10)
	bad.Script = "zz"
	_, err = s.InsertUtxo(bad)
	require.NoError(t, err)

	spent := sampleUtxo(4, 0xcc, 0, 10)
	spent.SpentTxID = txidHex(0x01)
	_, err = s.InsertUtxo(spent)
	require.NoError(t, err)

	got, err := Funding{Store: s}.SpendableUTXOs(4)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, uint32(3), got[0].Vout)
	assert.Equal(t, uint64(5000), got[0].Amount)
	assert.Equal(t, txidHex(0xaa), hex.EncodeToString(reversed(got[0].TxID)))
}

func TestUTXO_TxUTXO(t *testing.T) {
	u := sampleUtxo(1, 0x00, 0, 1)
	u.TxID = "01" + strings.Repeat("00", 31)
	got, err := u.TxUTXO()
	require.NoError(t, err)
	assert.Equal(t, byte(0x01), got.TxID[31], "display order is reversed")

	u.TxID = "abc"
	_, err = u.TxUTXO()
	assert.ErrorIs(t, err, ErrInvalidRecord)
}

func TestBoltStore_Reopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "wallet.db")
	s, err := OpenBoltStore(path)
	require.NoError(t, err)
	_, err = s.InsertAsset(&Asset{Alias: "gold", IssuerAddress: "1Issuer"})
	require.NoError(t, err)
	require.NoError(t, s.Close())

	s, err = OpenBoltStore(path)
	require.NoError(t, err)
	defer s.Close()

	a, err := s.SelectAsset("gold")
	require.NoError(t, err)
	assert.Equal(t, int64(1), a.ID)

	id, err := s.InsertAsset(&Asset{Alias: "silver"})
	require.NoError(t, err)
	assert.Equal(t, int64(2), id)
}

func reversed(b []byte) []byte {
	out := make([]byte, len(b))
	for i := range b {
		out[len(b)-1-i] = b[i]
	}
	return out
}
