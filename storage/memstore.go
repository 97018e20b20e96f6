package storage

import (
	"fmt"
	"sync"
)

// MemStore is an in-memory Store for tests and ephemeral wallets.
type MemStore struct {
	mu    sync.RWMutex
	state *memState
}

// Compile-time interface check.
var _ Store = (*MemStore)(nil)

// NewMemStore creates an empty in-memory store.
func NewMemStore() *MemStore {
	return &MemStore{state: newMemState()}
}

type memState struct {
	utxos     map[int64]*UTXO
	utxoIdx   map[string]int64
	assets    map[int64]*Asset
	aliases   map[string]int64
	tokens    map[int64]*TokenUTXO
	tokenIdx  map[string]int64
	nextUtxo  int64
	nextAsset int64
	nextToken int64
}

func newMemState() *memState {
	return &memState{
		utxos:    make(map[int64]*UTXO),
		utxoIdx:  make(map[string]int64),
		assets:   make(map[int64]*Asset),
		aliases:  make(map[string]int64),
		tokens:   make(map[int64]*TokenUTXO),
		tokenIdx: make(map[string]int64),
	}
}

// clone returns a copy that can be mutated without touching st.
func (st *memState) clone() *memState {
	cp := newMemState()
	for id, u := range st.utxos {
		v := *u
		cp.utxos[id] = &v
	}
	for k, id := range st.utxoIdx {
		cp.utxoIdx[k] = id
	}
	for id, a := range st.assets {
		v := *a
		cp.assets[id] = &v
	}
	for k, id := range st.aliases {
		cp.aliases[k] = id
	}
	for id, t := range st.tokens {
		v := *t
		cp.tokens[id] = &v
	}
	for k, id := range st.tokenIdx {
		cp.tokenIdx[k] = id
	}
	cp.nextUtxo, cp.nextAsset, cp.nextToken = st.nextUtxo, st.nextAsset, st.nextToken
	return cp
}

// ---------------------------------------------------------------------------
// memTx implements Tx over a memState.
// ---------------------------------------------------------------------------

type memTx struct {
	st *memState
}

func (t memTx) InsertUtxo(u *UTXO) (int64, error) {
	if err := validateUtxo(u); err != nil {
		return 0, err
	}
	key := outpointKey(u.TxID, u.Vout)
	if _, ok := t.st.utxoIdx[key]; ok {
		return 0, fmt.Errorf("%w: utxo %s", ErrDuplicate, key)
	}
	t.st.nextUtxo++
	rec := *u
	rec.ID = t.st.nextUtxo
	t.st.utxos[rec.ID] = &rec
	t.st.utxoIdx[key] = rec.ID
	u.ID = rec.ID
	return rec.ID, nil
}

func (t memTx) UpdateUtxoSpent(txid string, vout uint32, spentTxID string) error {
	id, ok := t.st.utxoIdx[outpointKey(txid, vout)]
	if !ok {
		return fmt.Errorf("%w: utxo %s:%d", ErrNotFound, txid, vout)
	}
	t.st.utxos[id].SpentTxID = spentTxID
	return nil
}

func (t memTx) SelectAsset(alias string) (*Asset, error) {
	id, ok := t.st.aliases[alias]
	if !ok {
		return nil, fmt.Errorf("%w: asset %q", ErrNotFound, alias)
	}
	a := *t.st.assets[id]
	return &a, nil
}

func (t memTx) InsertAsset(a *Asset) (int64, error) {
	if err := validateAsset(a); err != nil {
		return 0, err
	}
	if _, ok := t.st.aliases[a.Alias]; ok {
		return 0, fmt.Errorf("%w: asset %q", ErrDuplicate, a.Alias)
	}
	t.st.nextAsset++
	rec := *a
	rec.ID = t.st.nextAsset
	t.st.assets[rec.ID] = &rec
	t.st.aliases[rec.Alias] = rec.ID
	a.ID = rec.ID
	return rec.ID, nil
}

func (t memTx) SelectTokenUtxo(txid string, vout uint32) (*TokenUTXO, error) {
	id, ok := t.st.tokenIdx[outpointKey(txid, vout)]
	if !ok {
		return nil, fmt.Errorf("%w: token utxo %s:%d", ErrNotFound, txid, vout)
	}
	u := *t.st.tokens[id]
	return &u, nil
}

func (t memTx) InsertTokenUtxo(u *TokenUTXO) (int64, error) {
	if err := validateTokenUtxo(u); err != nil {
		return 0, err
	}
	key := outpointKey(u.TxID, u.Vout)
	if _, ok := t.st.tokenIdx[key]; ok {
		return 0, fmt.Errorf("%w: token utxo %s", ErrDuplicate, key)
	}
	t.st.nextToken++
	rec := *u
	rec.ID = t.st.nextToken
	t.st.tokens[rec.ID] = &rec
	t.st.tokenIdx[key] = rec.ID
	u.ID = rec.ID
	return rec.ID, nil
}

// ---------------------------------------------------------------------------
// MemStore
// ---------------------------------------------------------------------------

// InsertUtxo stores u and returns its new ID.
func (s *MemStore) InsertUtxo(u *UTXO) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return memTx{s.state}.InsertUtxo(u)
}

// UpdateUtxoSpent marks txid:vout as spent by spentTxID.
func (s *MemStore) UpdateUtxoSpent(txid string, vout uint32, spentTxID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return memTx{s.state}.UpdateUtxoSpent(txid, vout, spentTxID)
}

// SelectAsset returns the asset bound to alias.
func (s *MemStore) SelectAsset(alias string) (*Asset, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return memTx{s.state}.SelectAsset(alias)
}

// InsertAsset stores a and returns its new ID.
func (s *MemStore) InsertAsset(a *Asset) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return memTx{s.state}.InsertAsset(a)
}

// SelectTokenUtxo returns the token output at txid:vout.
func (s *MemStore) SelectTokenUtxo(txid string, vout uint32) (*TokenUTXO, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return memTx{s.state}.SelectTokenUtxo(txid, vout)
}

// InsertTokenUtxo stores u and returns its new ID.
func (s *MemStore) InsertTokenUtxo(u *TokenUTXO) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return memTx{s.state}.InsertTokenUtxo(u)
}

// SelectUtxos lists a wallet's outputs for assetID in ID order.
func (s *MemStore) SelectUtxos(walletID, assetID int64, excludeSpent bool) ([]*UTXO, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*UTXO
	for id := int64(1); id <= s.state.nextUtxo; id++ {
		u, ok := s.state.utxos[id]
		if !ok || !matchUtxo(u, walletID, assetID, excludeSpent) {
			continue
		}
		cp := *u
		out = append(out, &cp)
	}
	return out, nil
}

// Update runs fn against a private copy of the store and installs the copy
// only when fn succeeds.
func (s *MemStore) Update(fn func(Tx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	staged := s.state.clone()
	if err := fn(memTx{staged}); err != nil {
		return err
	}
	s.state = staged
	return nil
}

// Close is a no-op.
func (s *MemStore) Close() error { return nil }

func matchUtxo(u *UTXO, walletID, assetID int64, excludeSpent bool) bool {
	if u.WalletID != walletID || u.AssetID != assetID {
		return false
	}
	return !excludeSpent || !u.Spent()
}
