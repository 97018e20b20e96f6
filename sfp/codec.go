// Package sfp encodes and authorizes SFP token outputs.
//
// A token output is a locking script that carries the protocol version, the
// asset alias, the pubkey hashes of the authorizer, owner and issuer, an
// authorizer signature over the outpoint the token is linked to, a fixed
// redeem template and, after OP_RETURN, a state payload holding the amount.
//
// Token transfers are built in two rounds with the authorizer responsible for
// the alias's domain. In the first the authorizer adds token outputs and
// unlock placeholders to the client's draft transaction. In the second, after
// the client has signed the owner and issuer slots, the authorizer checks the
// transaction, countersigns it and records the resulting token outputs.
package sfp

import (
	"bytes"
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"

	"github.com/bitfsorg/libsfp-go/bscript"
	"github.com/bitfsorg/libsfp-go/signer"
	"github.com/bitfsorg/libsfp-go/tx"
	"github.com/bsv-blockchain/go-sdk/chainhash"
	"github.com/bsv-blockchain/go-sdk/script"
	"github.com/bsv-blockchain/go-sdk/transaction"

	ec "github.com/bsv-blockchain/go-sdk/primitives/ec"
)

// Version is the protocol version written into new token outputs.
const Version = "0.3"

// ProtocolPrefix tags the version chunk of a token output.
const ProtocolPrefix = "sfp@"

// Locking script chunk positions.
const (
	ChunkVersion    = 1
	ChunkAlias      = 2
	ChunkAuthorizer = 3
	ChunkOwner      = 4
	ChunkIssuer     = 5
	ChunkLinkSig    = 6
	ChunkLink       = 7
)

// Unlocking script chunk positions.
const (
	SlotOwnerSig         = 0
	SlotOwnerPubKey      = 1
	SlotAuthorizerSig    = 2
	SlotAuthorizerPubKey = 3
	SlotVersion          = 4
	SlotNtxidSig         = 5
	SlotIssuerSig        = 6
	SlotIssuerPubKey     = 7

	unlockSlots = 8
)

const (
	// QuantityLength is the size of the little-endian amount that opens the state.
	QuantityLength = 8

	// StateTrailerLength is the size of the suffix that closes the state: the
	// little-endian length of amount and notes in three bytes.
	StateTrailerLength = 3

	// OutpointLength is the size of a serialized outpoint.
	OutpointLength = chainhash.HashSize + 4
)

// MaxNotesLength is the longest notes string whose state length fits the
// 24-bit trailer.
const MaxNotesLength = 1<<24 - 1 - QuantityLength

// templateOps is the redeem logic placed between the link and OP_RETURN.
var templateOps = mustDecodeHex("000000000000005d79577a75567a567a567a567a567a567a5c79567a75557a557a557a557a557a5b79557a75547a547a547a547a5a79547a75537a537a537a5979537a75527a527a5779527a75517a5879517a75615f7901008791635e79a9537987695f795f79ac696851790087916900790087916956795e798769011479a954798769011579011579ac69011279a955798769011379011379ac77777777777777777777777777777777777777777777")

func mustDecodeHex(s string) []byte {
	b, err := hex.DecodeString(s)
	if err != nil {
		panic(err)
	}
	return b
}

// ---------------------------------------------------------------------------
// Outpoint
// ---------------------------------------------------------------------------

// Outpoint identifies a transaction output. A token output is linked to the
// outpoint spent by the first input of the transaction that created it.
type Outpoint struct {
	TxID chainhash.Hash
	Vout uint32
}

// OutpointOf returns the outpoint spent by in.
func OutpointOf(in *transaction.TransactionInput) Outpoint {
	var o Outpoint
	if in.SourceTXID != nil {
		o.TxID = *in.SourceTXID
	}
	o.Vout = in.SourceTxOutIndex
	return o
}

// Bytes returns the 36-byte wire form: txid in internal order, then the
// index as little-endian uint32.
func (o Outpoint) Bytes() []byte {
	b := make([]byte, 0, OutpointLength)
	b = append(b, o.TxID[:]...)
	return binary.LittleEndian.AppendUint32(b, o.Vout)
}

// String returns the outpoint as "txid:vout" with the txid in display order.
func (o Outpoint) String() string {
	return tx.OutpointKey(&o.TxID, o.Vout)
}

func parseOutpoint(b []byte) (*Outpoint, error) {
	if len(b) != OutpointLength {
		return nil, fmt.Errorf("%w: link is %d bytes", ErrInvalidToken, len(b))
	}
	var o Outpoint
	copy(o.TxID[:], b[:chainhash.HashSize])
	o.Vout = binary.LittleEndian.Uint32(b[chainhash.HashSize:])
	return &o, nil
}

// ---------------------------------------------------------------------------
// Token data
// ---------------------------------------------------------------------------

// TokenData is the decoded content of a token output, or the request for one.
type TokenData struct {
	Alias      string
	Amount     uint64
	Address    string // owner
	Authorizer string
	Issuer     string // empty before version 0.2
	Notes      string
	State      []byte // raw state payload, set by ParseOutput
	Version    string
	Link       *Outpoint // nil before version 0.3
}

// EncodeState builds a state payload: the amount as little-endian uint64,
// the notes, and the length trailer.
func EncodeState(amount uint64, notes string) []byte {
	b := make([]byte, 0, QuantityLength+len(notes)+StateTrailerLength)
	b = binary.LittleEndian.AppendUint64(b, amount)
	b = append(b, notes...)
	n := QuantityLength + len(notes)
	return append(b, byte(n), byte(n>>8), byte(n>>16))
}

// DecodeState splits a state payload into amount and notes.
func DecodeState(state []byte) (uint64, string, error) {
	if len(state) < QuantityLength+StateTrailerLength {
		return 0, "", fmt.Errorf("%w: state is %d bytes", ErrInvalidToken, len(state))
	}
	amount := binary.LittleEndian.Uint64(state[:QuantityLength])
	notes := string(state[QuantityLength : len(state)-StateTrailerLength])
	return amount, notes, nil
}

// MinimumOutputAmount returns the smallest satoshi value that keeps an output
// with a locking script of scriptLen bytes above the dust relay limit.
func MinimumOutputAmount(scriptLen int) uint64 {
	const (
		dustRelayFee    = 250
		dustLimitFactor = 4
		inputBytes      = 148
		amountBytes     = 9
	)
	size := uint64(scriptLen + amountBytes + inputBytes)
	return (dustLimitFactor*size*dustRelayFee + 999) / 1000
}

// AuthorizerDomain returns the part of an alias after its first '@'. An
// alias without '@' is its own domain.
func AuthorizerDomain(alias string) string {
	if _, domain, ok := strings.Cut(alias, "@"); ok {
		return domain
	}
	return alias
}

// GroupByAuthorizer groups requested outputs by the domain of their alias.
// Domains are returned in first-seen order.
func GroupByAuthorizer(outputs []TokenData) ([]string, map[string][]TokenData) {
	var order []string
	groups := make(map[string][]TokenData)
	for _, out := range outputs {
		d := AuthorizerDomain(out.Alias)
		if _, ok := groups[d]; !ok {
			order = append(order, d)
		}
		groups[d] = append(groups[d], out)
	}
	return order, groups
}

// versionAtLeast reports whether version v is min or later.
func versionAtLeast(v string, min float64) bool {
	f, err := strconv.ParseFloat(v, 64)
	return err == nil && f >= min
}

// ---------------------------------------------------------------------------
// Codec
// ---------------------------------------------------------------------------

// Codec writes token outputs signed by one authorizer key and reads token
// outputs of any authorizer.
type Codec struct {
	key     tx.KeyPair
	pkh     []byte
	mainnet bool
}

// NewCodec returns a codec for the authorizer key priv.
func NewCodec(priv *ec.PrivateKey, mainnet bool) (*Codec, error) {
	kp, err := tx.NewKeyPair(priv, mainnet)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidKey, err)
	}
	pkh, err := bscript.PubKeyHashFromAddress(kp.Address)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidKey, err)
	}
	return &Codec{key: kp, pkh: pkh, mainnet: mainnet}, nil
}

// Address returns the authorizer's address.
func (c *Codec) Address() string { return c.key.Address }

// KeyPair returns the authorizer's key pair.
func (c *Codec) KeyPair() tx.KeyPair { return c.key }

// Mainnet reports whether addresses are encoded for mainnet.
func (c *Codec) Mainnet() bool { return c.mainnet }

// CreateOutput builds the locking script for data linked to link. The state
// is encoded from data.Amount and data.Notes; an empty Issuer means the owner
// is the issuer.
func (c *Codec) CreateOutput(data *TokenData, link Outpoint) (*script.Script, error) {
	if data == nil {
		return nil, fmt.Errorf("%w: token data", ErrNilParam)
	}
	if data.Alias == "" {
		return nil, fmt.Errorf("%w: empty alias", ErrInvalidToken)
	}
	if len(data.Notes) > MaxNotesLength {
		return nil, fmt.Errorf("%w: notes are %d bytes", ErrInvalidToken, len(data.Notes))
	}
	owner, err := bscript.PubKeyHashFromAddress(data.Address)
	if err != nil {
		return nil, fmt.Errorf("%w: owner: %w", ErrInvalidToken, err)
	}
	issuer := owner
	if data.Issuer != "" {
		if issuer, err = bscript.PubKeyHashFromAddress(data.Issuer); err != nil {
			return nil, fmt.Errorf("%w: issuer: %w", ErrInvalidToken, err)
		}
	}

	linkBytes := link.Bytes()
	digest := chainhash.DoubleHashH(linkBytes)
	ctx := signer.Acquire()
	defer ctx.Release()
	linkSig, err := ctx.Sign(c.key.PrivateKey, digest[:])
	if err != nil {
		return nil, fmt.Errorf("%w: sign link: %w", ErrInvalidKey, err)
	}

	s := &script.Script{}
	bscript.WriteOpcode(s, bscript.OpNop)
	bscript.WriteBuffer(s, []byte(ProtocolPrefix+Version))
	bscript.WriteBuffer(s, []byte(data.Alias))
	bscript.WriteBuffer(s, c.pkh)
	bscript.WriteBuffer(s, owner)
	bscript.WriteBuffer(s, issuer)
	bscript.WriteBuffer(s, linkSig)
	bscript.WriteBuffer(s, linkBytes)
	*s = append(*s, templateOps...)
	bscript.WriteOpcode(s, bscript.OpReturn)
	bscript.WriteBuffer(s, EncodeState(data.Amount, data.Notes))
	return s, nil
}

// ParseOutput decodes a token locking script using the codec's network.
func (c *Codec) ParseOutput(s []byte) (*TokenData, error) {
	return ParseOutput(s, c.mainnet)
}

// ParseOutput decodes a token locking script. Scripts whose version chunk is
// not an sfp@ tag return ErrNotToken.
func ParseOutput(s []byte, mainnet bool) (*TokenData, error) {
	chunks, err := bscript.Parse(s)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrNotToken, err)
	}
	if len(chunks) <= ChunkVersion {
		return nil, ErrNotToken
	}
	tag := chunks[ChunkVersion].Data
	if !bytes.HasPrefix(tag, []byte(ProtocolPrefix)) {
		return nil, ErrNotToken
	}
	version := string(tag[len(ProtocolPrefix):])
	if !versionAtLeast(version, 0) {
		return nil, fmt.Errorf("%w: version %q", ErrNotToken, version)
	}
	if len(chunks) <= ChunkLink+1 {
		return nil, fmt.Errorf("%w: %d chunks", ErrInvalidToken, len(chunks))
	}

	data := &TokenData{
		Alias:   string(chunks[ChunkAlias].Data),
		Version: version,
	}
	if data.Authorizer, err = bscript.AddressFromPubKeyHash(chunks[ChunkAuthorizer].Data, mainnet); err != nil {
		return nil, fmt.Errorf("%w: authorizer: %w", ErrInvalidToken, err)
	}
	if data.Address, err = bscript.AddressFromPubKeyHash(chunks[ChunkOwner].Data, mainnet); err != nil {
		return nil, fmt.Errorf("%w: owner: %w", ErrInvalidToken, err)
	}
	if versionAtLeast(version, 0.2) {
		if data.Issuer, err = bscript.AddressFromPubKeyHash(chunks[ChunkIssuer].Data, mainnet); err != nil {
			return nil, fmt.Errorf("%w: issuer: %w", ErrInvalidToken, err)
		}
	}
	if versionAtLeast(version, 0.3) {
		if data.Link, err = parseOutpoint(chunks[ChunkLink].Data); err != nil {
			return nil, err
		}
	}

	data.State = append([]byte(nil), chunks[len(chunks)-1].Data...)
	if data.Amount, data.Notes, err = DecodeState(data.State); err != nil {
		return nil, err
	}
	return data, nil
}

// IsToken reports whether s is an SFP token output.
func IsToken(s []byte) bool {
	chunks, err := bscript.Parse(s)
	if err != nil || len(chunks) <= ChunkVersion {
		return false
	}
	return bytes.HasPrefix(chunks[ChunkVersion].Data, []byte(ProtocolPrefix))
}
