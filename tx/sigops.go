package tx

import (
	"encoding/json"

	"github.com/bsv-blockchain/go-sdk/chainhash"
)

// SlotKind distinguishes what a signature slot is filled with.
type SlotKind int

const (
	// SlotSignature is filled with a DER signature plus sighash byte.
	SlotSignature SlotKind = iota
	// SlotPubKey is filled with a compressed public key.
	SlotPubKey
)

func (k SlotKind) String() string {
	switch k {
	case SlotSignature:
		return "sig"
	case SlotPubKey:
		return "pubKey"
	default:
		return "unknown"
	}
}

// SigSlot names one chunk of an input's unlocking script that is filled at
// signing time.
type SigSlot struct {
	Index   int      `json:"index"`   // chunk index within the unlocking script
	Kind    SlotKind `json:"kind"`    // signature or public key
	Address string   `json:"address"` // address whose key fills the slot
	Sighash uint32   `json:"sighash"` // sighash flags for signature slots
}

// SigOperations maps previous outpoints to the ordered slots of the input
// spending them. Slots are filled in insertion order.
//
// A SigOperations is owned by one Builder and is not safe for concurrent use.
type SigOperations struct {
	slots map[string][]SigSlot
	order []string
}

// NewSigOperations returns an empty registry.
func NewSigOperations() *SigOperations {
	return &SigOperations{slots: make(map[string][]SigSlot)}
}

func (o *SigOperations) put(key string, slots []SigSlot) {
	if _, ok := o.slots[key]; !ok {
		o.order = append(o.order, key)
	}
	o.slots[key] = slots
}

// SetOne replaces the slots for an outpoint with a single slot.
func (o *SigOperations) SetOne(txid *chainhash.Hash, vout uint32, index int, kind SlotKind, address string, sighash uint32) {
	if sighash == 0 {
		sighash = DefaultSighash
	}
	o.put(OutpointKey(txid, vout), []SigSlot{{Index: index, Kind: kind, Address: address, Sighash: sighash}})
}

// SetMany replaces the slots for an outpoint. Zero sighash values default to
// DefaultSighash.
func (o *SigOperations) SetMany(txid *chainhash.Hash, vout uint32, slots []SigSlot) {
	cp := make([]SigSlot, len(slots))
	for i, s := range slots {
		if s.Sighash == 0 {
			s.Sighash = DefaultSighash
		}
		cp[i] = s
	}
	o.put(OutpointKey(txid, vout), cp)
}

// SetPubKeyHash registers the standard pay-to-pubkey-hash pair: a signature
// at chunk 0 and the public key at chunk 1.
func (o *SigOperations) SetPubKeyHash(txid *chainhash.Hash, vout uint32, address string, sighash uint32) {
	o.SetMany(txid, vout, []SigSlot{
		{Index: 0, Kind: SlotSignature, Address: address, Sighash: sighash},
		{Index: 1, Kind: SlotPubKey, Address: address},
	})
}

// AddOne appends a slot to the outpoint's list.
func (o *SigOperations) AddOne(txid *chainhash.Hash, vout uint32, index int, kind SlotKind, address string, sighash uint32) {
	if sighash == 0 {
		sighash = DefaultSighash
	}
	key := OutpointKey(txid, vout)
	o.put(key, append(o.slots[key], SigSlot{Index: index, Kind: kind, Address: address, Sighash: sighash}))
}

// Merge copies every outpoint registered in other into o, replacing any
// slots o already holds for the same outpoint.
func (o *SigOperations) Merge(other *SigOperations) {
	if other == nil {
		return
	}
	for _, key := range other.order {
		o.put(key, append([]SigSlot(nil), other.slots[key]...))
	}
}

// Get returns the slots registered for an outpoint, or nil.
func (o *SigOperations) Get(txid *chainhash.Hash, vout uint32) []SigSlot {
	return o.slots[OutpointKey(txid, vout)]
}

// Clear removes every slot for an outpoint.
func (o *SigOperations) Clear(txid *chainhash.Hash, vout uint32) {
	key := OutpointKey(txid, vout)
	if _, ok := o.slots[key]; !ok {
		return
	}
	delete(o.slots, key)
	for i, k := range o.order {
		if k == key {
			o.order = append(o.order[:i], o.order[i+1:]...)
			break
		}
	}
}

// Keys returns the registered outpoint keys in insertion order.
func (o *SigOperations) Keys() []string {
	out := make([]string, len(o.order))
	copy(out, o.order)
	return out
}

// Len returns the number of registered outpoints.
func (o *SigOperations) Len() int {
	return len(o.order)
}

// sigOpsEntry is the wire form of one outpoint's slots.
type sigOpsEntry struct {
	Outpoint string    `json:"outpoint"`
	Slots    []SigSlot `json:"slots"`
}

// MarshalJSON encodes the registry as an ordered list of outpoints and slots.
func (o *SigOperations) MarshalJSON() ([]byte, error) {
	entries := make([]sigOpsEntry, 0, len(o.order))
	for _, key := range o.order {
		entries = append(entries, sigOpsEntry{Outpoint: key, Slots: o.slots[key]})
	}
	return json.Marshal(entries)
}

// UnmarshalJSON replaces the registry with the encoded entries.
func (o *SigOperations) UnmarshalJSON(data []byte) error {
	var entries []sigOpsEntry
	if err := json.Unmarshal(data, &entries); err != nil {
		return err
	}
	o.slots = make(map[string][]SigSlot, len(entries))
	o.order = nil
	for _, e := range entries {
		o.put(e.Outpoint, e.Slots)
	}
	return nil
}
