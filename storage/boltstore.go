package storage

import (
	"bytes"
	"encoding/binary"
	"encoding/gob"
	"fmt"
	"os"
	"path/filepath"

	"go.etcd.io/bbolt"
)

var (
	bucketUtxos      = []byte("utxos")
	bucketUtxoIndex  = []byte("utxo_outpoints")
	bucketAssets     = []byte("assets")
	bucketAssetAlias = []byte("asset_alias")
	bucketTokens     = []byte("token_utxos")
	bucketTokenIndex = []byte("token_outpoints")

	allBuckets = [][]byte{
		bucketUtxos, bucketUtxoIndex, bucketAssets,
		bucketAssetAlias, bucketTokens, bucketTokenIndex,
	}
)

// BoltStore is a Store backed by a bbolt database file.
type BoltStore struct {
	db *bbolt.DB
}

// Compile-time interface check.
var _ Store = (*BoltStore)(nil)

// OpenBoltStore opens or creates the database at dbPath. The parent
// directory is created if it does not exist.
func OpenBoltStore(dbPath string) (*BoltStore, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0700); err != nil {
		return nil, fmt.Errorf("%w: create directory: %w", ErrIOFailure, err)
	}
	db, err := bbolt.Open(dbPath, 0600, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: open bolt db: %w", ErrIOFailure, err)
	}

	err = db.Update(func(btx *bbolt.Tx) error {
		for _, name := range allBuckets {
			if _, err := btx.CreateBucketIfNotExists(name); err != nil {
				return fmt.Errorf("boltstore: create bucket %q: %w", name, err)
			}
		}
		return nil
	})
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("%w: create buckets: %w", ErrIOFailure, err)
	}

	log.Debugf("Opened store at %s", dbPath)
	return &BoltStore{db: db}, nil
}

// Close closes the underlying database.
func (s *BoltStore) Close() error { return s.db.Close() }

// idKey encodes a record id as an 8-byte big-endian key so cursors walk
// records in insertion order.
func idKey(id int64) []byte {
	k := make([]byte, 8)
	binary.BigEndian.PutUint64(k, uint64(id))
	return k
}

// encodeGob serializes a value using gob encoding.
func encodeGob(v interface{}) ([]byte, error) {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(v); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// decodeGob deserializes gob-encoded data into a value.
func decodeGob(data []byte, v interface{}) error {
	return gob.NewDecoder(bytes.NewReader(data)).Decode(v)
}

// ---------------------------------------------------------------------------
// boltTx implements Tx within a read-write bbolt transaction.
// ---------------------------------------------------------------------------

type boltTx struct {
	btx *bbolt.Tx
}

// insert assigns the next sequence of bucket to a record, stores it and
// indexes it under indexKey.
func (t boltTx) insert(bucket, index []byte, indexKey []byte, assign func(int64) interface{}) (int64, error) {
	b := t.btx.Bucket(bucket)
	seq, err := b.NextSequence()
	if err != nil {
		return 0, fmt.Errorf("%w: next sequence: %w", ErrIOFailure, err)
	}
	id := int64(seq)
	data, err := encodeGob(assign(id))
	if err != nil {
		return 0, fmt.Errorf("boltstore: encode %s: %w", bucket, err)
	}
	if err := b.Put(idKey(id), data); err != nil {
		return 0, fmt.Errorf("%w: put %s: %w", ErrIOFailure, bucket, err)
	}
	if err := t.btx.Bucket(index).Put(indexKey, idKey(id)); err != nil {
		return 0, fmt.Errorf("%w: put %s: %w", ErrIOFailure, index, err)
	}
	return id, nil
}

// lookup resolves indexKey through index and decodes the record into v.
func (t boltTx) lookup(bucket, index []byte, indexKey []byte, v interface{}) error {
	id := t.btx.Bucket(index).Get(indexKey)
	if id == nil {
		return ErrNotFound
	}
	data := t.btx.Bucket(bucket).Get(id)
	if data == nil {
		return ErrNotFound
	}
	if err := decodeGob(data, v); err != nil {
		return fmt.Errorf("boltstore: decode %s: %w", bucket, err)
	}
	return nil
}

func (t boltTx) InsertUtxo(u *UTXO) (int64, error) {
	if err := validateUtxo(u); err != nil {
		return 0, err
	}
	key := []byte(outpointKey(u.TxID, u.Vout))
	if t.btx.Bucket(bucketUtxoIndex).Get(key) != nil {
		return 0, fmt.Errorf("%w: utxo %s", ErrDuplicate, key)
	}
	id, err := t.insert(bucketUtxos, bucketUtxoIndex, key, func(id int64) interface{} {
		rec := *u
		rec.ID = id
		return &rec
	})
	if err != nil {
		return 0, err
	}
	u.ID = id
	return id, nil
}

func (t boltTx) UpdateUtxoSpent(txid string, vout uint32, spentTxID string) error {
	key := []byte(outpointKey(txid, vout))
	var u UTXO
	if err := t.lookup(bucketUtxos, bucketUtxoIndex, key, &u); err != nil {
		return fmt.Errorf("utxo %s: %w", key, err)
	}
	u.SpentTxID = spentTxID
	data, err := encodeGob(&u)
	if err != nil {
		return fmt.Errorf("boltstore: encode utxo: %w", err)
	}
	if err := t.btx.Bucket(bucketUtxos).Put(idKey(u.ID), data); err != nil {
		return fmt.Errorf("%w: update utxo: %w", ErrIOFailure, err)
	}
	return nil
}

func (t boltTx) SelectAsset(alias string) (*Asset, error) {
	var a Asset
	if err := t.lookup(bucketAssets, bucketAssetAlias, []byte(alias), &a); err != nil {
		return nil, fmt.Errorf("asset %q: %w", alias, err)
	}
	return &a, nil
}

func (t boltTx) InsertAsset(a *Asset) (int64, error) {
	if err := validateAsset(a); err != nil {
		return 0, err
	}
	if t.btx.Bucket(bucketAssetAlias).Get([]byte(a.Alias)) != nil {
		return 0, fmt.Errorf("%w: asset %q", ErrDuplicate, a.Alias)
	}
	id, err := t.insert(bucketAssets, bucketAssetAlias, []byte(a.Alias), func(id int64) interface{} {
		rec := *a
		rec.ID = id
		return &rec
	})
	if err != nil {
		return 0, err
	}
	a.ID = id
	return id, nil
}

func (t boltTx) SelectTokenUtxo(txid string, vout uint32) (*TokenUTXO, error) {
	key := []byte(outpointKey(txid, vout))
	var u TokenUTXO
	if err := t.lookup(bucketTokens, bucketTokenIndex, key, &u); err != nil {
		return nil, fmt.Errorf("token utxo %s: %w", key, err)
	}
	return &u, nil
}

func (t boltTx) InsertTokenUtxo(u *TokenUTXO) (int64, error) {
	if err := validateTokenUtxo(u); err != nil {
		return 0, err
	}
	key := []byte(outpointKey(u.TxID, u.Vout))
	if t.btx.Bucket(bucketTokenIndex).Get(key) != nil {
		return 0, fmt.Errorf("%w: token utxo %s", ErrDuplicate, key)
	}
	id, err := t.insert(bucketTokens, bucketTokenIndex, key, func(id int64) interface{} {
		rec := *u
		rec.ID = id
		return &rec
	})
	if err != nil {
		return 0, err
	}
	u.ID = id
	return id, nil
}

// ---------------------------------------------------------------------------
// BoltStore
// ---------------------------------------------------------------------------

// InsertUtxo stores u and returns its new ID.
func (s *BoltStore) InsertUtxo(u *UTXO) (id int64, err error) {
	err = s.db.Update(func(btx *bbolt.Tx) error {
		id, err = boltTx{btx}.InsertUtxo(u)
		return err
	})
	return id, err
}

// UpdateUtxoSpent marks txid:vout as spent by spentTxID.
func (s *BoltStore) UpdateUtxoSpent(txid string, vout uint32, spentTxID string) error {
	return s.db.Update(func(btx *bbolt.Tx) error {
		return boltTx{btx}.UpdateUtxoSpent(txid, vout, spentTxID)
	})
}

// SelectAsset returns the asset bound to alias.
func (s *BoltStore) SelectAsset(alias string) (a *Asset, err error) {
	err = s.db.View(func(btx *bbolt.Tx) error {
		a, err = boltTx{btx}.SelectAsset(alias)
		return err
	})
	return a, err
}

// InsertAsset stores a and returns its new ID.
func (s *BoltStore) InsertAsset(a *Asset) (id int64, err error) {
	err = s.db.Update(func(btx *bbolt.Tx) error {
		id, err = boltTx{btx}.InsertAsset(a)
		return err
	})
	return id, err
}

// SelectTokenUtxo returns the token output at txid:vout.
func (s *BoltStore) SelectTokenUtxo(txid string, vout uint32) (u *TokenUTXO, err error) {
	err = s.db.View(func(btx *bbolt.Tx) error {
		u, err = boltTx{btx}.SelectTokenUtxo(txid, vout)
		return err
	})
	return u, err
}

// InsertTokenUtxo stores u and returns its new ID.
func (s *BoltStore) InsertTokenUtxo(u *TokenUTXO) (id int64, err error) {
	err = s.db.Update(func(btx *bbolt.Tx) error {
		id, err = boltTx{btx}.InsertTokenUtxo(u)
		return err
	})
	return id, err
}

// SelectUtxos lists a wallet's outputs for assetID in ID order.
func (s *BoltStore) SelectUtxos(walletID, assetID int64, excludeSpent bool) ([]*UTXO, error) {
	var out []*UTXO
	err := s.db.View(func(btx *bbolt.Tx) error {
		return btx.Bucket(bucketUtxos).ForEach(func(_, v []byte) error {
			var u UTXO
			if err := decodeGob(v, &u); err != nil {
				return fmt.Errorf("boltstore: decode utxo: %w", err)
			}
			if matchUtxo(&u, walletID, assetID, excludeSpent) {
				out = append(out, &u)
			}
			return nil
		})
	})
	if err != nil {
		return nil, fmt.Errorf("boltstore: select utxos: %w", err)
	}
	return out, nil
}

// Update runs fn inside a single read-write bbolt transaction.
func (s *BoltStore) Update(fn func(Tx) error) error {
	return s.db.Update(func(btx *bbolt.Tx) error {
		return fn(boltTx{btx})
	})
}
