package bscript

import (
	"fmt"

	"github.com/bsv-blockchain/go-sdk/script"
)

// PubKeyHashLen is the length of a HASH160 public key hash.
const PubKeyHashLen = 20

// IsPubKeyHashOut reports whether s is OP_DUP OP_HASH160 <hash> OP_EQUALVERIFY OP_CHECKSIG.
func IsPubKeyHashOut(s []byte) bool {
	chunks, err := Parse(s)
	if err != nil || len(chunks) < 5 {
		return false
	}
	return chunks[0].Op == OpDup &&
		chunks[1].Op == OpHash160 &&
		len(chunks[2].Data) > 0 &&
		chunks[3].Op == OpEqualVerify &&
		chunks[4].Op == OpCheckSig
}

// IsNonSpendable reports whether s starts with OP_FALSE OP_RETURN.
func IsNonSpendable(s []byte) bool {
	return len(s) >= 2 && s[0] == OpFalse && s[1] == OpReturn
}

// PubKeyHashScript builds a pay-to-pubkey-hash locking script for pkh.
func PubKeyHashScript(pkh []byte) *script.Script {
	s := &script.Script{}
	WriteOpcode(s, OpDup)
	WriteOpcode(s, OpHash160)
	WriteBuffer(s, pkh)
	WriteOpcode(s, OpEqualVerify)
	WriteOpcode(s, OpCheckSig)
	return s
}

// DataScript builds an OP_FALSE OP_RETURN script carrying pushes.
func DataScript(pushes ...[]byte) *script.Script {
	s := &script.Script{}
	WriteOpcode(s, OpFalse)
	WriteOpcode(s, OpReturn)
	for _, p := range pushes {
		WriteBuffer(s, p)
	}
	return s
}

// PubKeyHashFromAddress decodes a base58check address into its 20-byte hash.
func PubKeyHashFromAddress(address string) ([]byte, error) {
	addr, err := script.NewAddressFromString(address)
	if err != nil {
		return nil, fmt.Errorf("%w: %q: %w", ErrInvalidAddress, address, err)
	}
	pkh := []byte(addr.PublicKeyHash)
	if len(pkh) != PubKeyHashLen {
		return nil, fmt.Errorf("%w: %q decodes to %d bytes", ErrInvalidAddress, address, len(pkh))
	}
	return pkh, nil
}

// AddressFromPubKeyHash encodes pkh as a base58check address for mainnet or testnet.
func AddressFromPubKeyHash(pkh []byte, mainnet bool) (string, error) {
	addr, err := script.NewAddressFromPublicKeyHash(pkh, mainnet)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrInvalidAddress, err)
	}
	return addr.AddressString, nil
}

// ScriptFromAddress builds the pay-to-pubkey-hash locking script for address.
func ScriptFromAddress(address string) (*script.Script, error) {
	pkh, err := PubKeyHashFromAddress(address)
	if err != nil {
		return nil, err
	}
	return PubKeyHashScript(pkh), nil
}

// AddressFromScript returns the address paid by a pay-to-pubkey-hash script.
func AddressFromScript(s []byte, mainnet bool) (string, error) {
	if !IsPubKeyHashOut(s) {
		return "", ErrNotPubKeyHash
	}
	chunks, _ := Parse(s)
	return AddressFromPubKeyHash(chunks[2].Data, mainnet)
}
